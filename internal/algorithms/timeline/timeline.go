// Package timeline implements Algorithm C (Cross-Device Timeline
// Alignment), grounded on original_source/algorithms/timeline_alignment.py:
// per-item timestamp confidence assignment, per-device grouping, and
// pairwise clock-drift detection within a 5-minute window.
package timeline

import (
	"sort"
	"time"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/canonical"
	"github.com/evident-labs/evidcore/internal/model"
)

const (
	confidenceExact   = "exact"
	confidenceDerived = "derived"
	confidenceUnknown = "unknown"
)

var confidenceOrder = map[string]int{confidenceExact: 0, confidenceDerived: 1, confidenceUnknown: 2}

// Algorithm is Algorithm C.
type Algorithm struct{}

func (Algorithm) ID() string          { return "timeline_alignment" }
func (Algorithm) Version() string     { return "1.0.0" }
func (Algorithm) Description() string { return "normalizes cross-device timestamps and detects clock drift for a case" }

type deviceEvent struct {
	evidenceItemID int64
	timestamp      time.Time
}

func (a Algorithm) Execute(rc algorithm.Context, params model.AlgorithmParams) (map[string]any, error) {
	if _, err := rc.Relational.LoadCase(rc.Ctx, params.CaseID, params.TenantID); err != nil {
		return nil, err
	}
	items, err := rc.Relational.ListLinkedEvidence(rc.Ctx, params.CaseID)
	if err != nil {
		return nil, err
	}

	var entries []map[string]any
	var assumptions []map[string]any
	var inputHashes []string
	deviceGroups := map[string][]deviceEvent{}

	for _, it := range items {
		if it.SHA256 != "" {
			inputHashes = append(inputHashes, it.SHA256)
		}

		var ts time.Time
		var confidence string
		switch {
		case it.CollectedAt != nil:
			ts = *it.CollectedAt
			confidence = confidenceExact
		case !it.CreatedAt.IsZero():
			ts = it.CreatedAt
			confidence = confidenceDerived
			assumptions = append(assumptions, map[string]any{
				"evidence_item_id": it.EvidenceItemID,
				"assumption":       "used record created_at as timestamp proxy; original collection date unavailable",
				"original_filename": it.OriginalFilename,
			})
		default:
			confidence = confidenceUnknown
		}

		deviceLabel := it.DeviceLabel
		if deviceLabel == "" {
			deviceLabel = "unknown_device"
		}

		var tsISO any
		if !ts.IsZero() {
			tsISO = ts.UTC().Format(time.RFC3339Nano)
		}
		entry := map[string]any{
			"evidence_item_id":      it.EvidenceItemID,
			"hash_sha256":           it.SHA256,
			"original_filename":     it.OriginalFilename,
			"device_label":          deviceLabel,
			"device_type":           it.DeviceType,
			"timestamp_iso":         tsISO,
			"timestamp_confidence":  confidence,
			"file_type":             it.FileType,
			"duration_seconds":      it.DurationSeconds,
		}
		entries = append(entries, entry)

		if !ts.IsZero() {
			deviceGroups[deviceLabel] = append(deviceGroups[deviceLabel], deviceEvent{evidenceItemID: it.EvidenceItemID, timestamp: ts})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ci := confidenceOrder[entries[i]["timestamp_confidence"].(string)]
		cj := confidenceOrder[entries[j]["timestamp_confidence"].(string)]
		if ci != cj {
			return ci < cj
		}
		ti, _ := entries[i]["timestamp_iso"].(string)
		tj, _ := entries[j]["timestamp_iso"].(string)
		if ti == "" {
			ti = "9999"
		}
		if tj == "" {
			tj = "9999"
		}
		return ti < tj
	})

	drifts := detectClockDrift(deviceGroups)

	deviceSummary := map[string]any{}
	deviceNames := make([]string, 0, len(deviceGroups))
	for d := range deviceGroups {
		deviceNames = append(deviceNames, d)
	}
	sort.Strings(deviceNames)
	for _, d := range deviceNames {
		events := deviceGroups[d]
		earliest, latest := events[0].timestamp, events[0].timestamp
		for _, e := range events {
			if e.timestamp.Before(earliest) {
				earliest = e.timestamp
			}
			if e.timestamp.After(latest) {
				latest = e.timestamp
			}
		}
		deviceSummary[d] = map[string]any{
			"event_count": len(events),
			"earliest":    earliest.UTC().Format(time.RFC3339Nano),
			"latest":      latest.UTC().Format(time.RFC3339Nano),
		}
	}

	breakdown := map[string]int{confidenceExact: 0, confidenceDerived: 0, confidenceUnknown: 0}
	for _, e := range entries {
		breakdown[e["timestamp_confidence"].(string)]++
	}

	result := map[string]any{
		"case_id":               params.CaseID,
		"total_entries":         len(entries),
		"confidence_breakdown":  breakdown,
		"timeline_entries":      entries,
		"clock_drift_analysis":  drifts,
		"device_summary":        deviceSummary,
		"assumptions":           assumptions,
	}
	timelineHash, err := canonical.Hash(result)
	if err != nil {
		return nil, err
	}
	result["timeline_hash"] = timelineHash
	result["output_hashes"] = []string{timelineHash}
	result["input_hashes"] = inputHashes
	return result, nil
}

func detectClockDrift(deviceGroups map[string][]deviceEvent) []map[string]any {
	deviceIDs := make([]string, 0, len(deviceGroups))
	for d := range deviceGroups {
		deviceIDs = append(deviceIDs, d)
	}
	sort.Strings(deviceIDs)

	var drifts []map[string]any
	for i := 0; i < len(deviceIDs); i++ {
		for j := i + 1; j < len(deviceIDs); j++ {
			devA, devB := deviceIDs[i], deviceIDs[j]
			eventsA := append([]deviceEvent(nil), deviceGroups[devA]...)
			eventsB := append([]deviceEvent(nil), deviceGroups[devB]...)
			sort.Slice(eventsA, func(i, j int) bool { return eventsA[i].timestamp.Before(eventsA[j].timestamp) })
			sort.Slice(eventsB, func(i, j int) bool { return eventsB[i].timestamp.Before(eventsB[j].timestamp) })

			var offsets []float64
			for _, ea := range eventsA {
				for _, eb := range eventsB {
					delta := ea.timestamp.Sub(eb.timestamp).Seconds()
					if abs(delta) <= 300 {
						offsets = append(offsets, delta)
					}
				}
			}
			if len(offsets) == 0 {
				continue
			}
			sort.Float64s(offsets)
			median := offsets[len(offsets)/2]
			minOff, maxOff := offsets[0], offsets[0]
			for _, o := range offsets {
				if o < minOff {
					minOff = o
				}
				if o > maxOff {
					maxOff = o
				}
			}
			assessment := "significant"
			switch {
			case abs(median) < 2:
				assessment = "negligible"
			case abs(median) < 30:
				assessment = "minor"
			}
			drifts = append(drifts, map[string]any{
				"device_a": devA, "device_b": devB, "sample_count": len(offsets),
				"median_offset_seconds": round3(median), "min_offset_seconds": round3(minOff),
				"max_offset_seconds": round3(maxOff), "assessment": assessment,
			})
		}
	}
	return drifts
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func round3(v float64) float64 {
	scaled := v * 1000
	if scaled < 0 {
		return float64(int(scaled-0.5)) / 1000
	}
	return float64(int(scaled+0.5)) / 1000
}
