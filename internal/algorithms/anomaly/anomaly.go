// Package anomaly implements Algorithm G (Access Anomaly Detector),
// grounded on original_source/algorithms/access_anomaly.py: four
// sub-detectors over a case's custody/audit log (download bursts,
// share-link abuse, auth-failure bursts, off-hours access), each producing
// a statistical observation rather than an accusation.
//
// The lookback window is anchored to params.Extra["reference_time"]
// (RFC3339) rather than the wall clock, so two runs with identical params
// against identical custody data always scan the identical window — the
// determinism requirement forbids reading current time for any value that
// influences the payload, and the scan boundary is such a value.
package anomaly

import (
	"sort"
	"time"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/canonical"
	"github.com/evident-labs/evidcore/internal/model"
)

const (
	severityInfo    = "info"
	severityWarning = "warning"
	severityAlert   = "alert"
)

var severityOrder = map[string]int{severityAlert: 0, severityWarning: 1, severityInfo: 2}

// Algorithm is Algorithm G.
type Algorithm struct{}

func (Algorithm) ID() string          { return "access_anomaly" }
func (Algorithm) Version() string     { return "1.0.0" }
func (Algorithm) Description() string { return "detects statistically anomalous access patterns in a case's custody log" }

// ExtraParamsSchema requires reference_time, when present, to be a string.
// The date-time format is declared but not asserted by the draft 2020-12
// validator, so a string that does not parse as RFC3339 passes and Execute
// then applies no lookback cutoff. The numeric fields Execute also reads
// (lookback_days and the three burst thresholds) are not constrained here.
func (Algorithm) ExtraParamsSchema() string {
	return `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"reference_time": {
				"type": "string",
				"format": "date-time"
			}
		}
	}`
}

type entry struct {
	evidenceItemID int64
	action         string
	actor          string
	timestamp      time.Time
	ipAddress      string
}

func (a Algorithm) Execute(rc algorithm.Context, params model.AlgorithmParams) (map[string]any, error) {
	if _, err := rc.Relational.LoadCase(rc.Ctx, params.CaseID, params.TenantID); err != nil {
		return nil, err
	}
	items, err := rc.Relational.ListLinkedEvidence(rc.Ctx, params.CaseID)
	if err != nil {
		return nil, err
	}

	lookbackDays := intExtra(params.Extra, "lookback_days", 30)
	downloadThreshold := intExtra(params.Extra, "download_burst_threshold", 5)
	shareThreshold := intExtra(params.Extra, "share_abuse_threshold", 20)
	authThreshold := intExtra(params.Extra, "auth_failure_threshold", 10)

	var since time.Time
	if refStr, ok := params.Extra["reference_time"].(string); ok && refStr != "" {
		if ref, perr := time.Parse(time.RFC3339, refStr); perr == nil {
			since = ref.AddDate(0, 0, -lookbackDays)
		}
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.EvidenceItemID)
	}
	custody, err := rc.Relational.ListCustody(rc.Ctx, params.CaseID, ids, since)
	if err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(custody))
	for _, c := range custody {
		ip := c.IPAddress
		if ip == "" {
			ip = "unknown"
		}
		actor := c.ActorName
		if actor == "" {
			actor = "unknown"
		}
		entries = append(entries, entry{
			evidenceItemID: c.EvidenceItemID, action: c.Action, actor: actor,
			timestamp: c.Timestamp, ipAddress: ip,
		})
	}

	// The burst detectors group through maps; order their findings by
	// subject so the payload does not depend on map iteration order.
	subject := func(m map[string]any) string {
		id, _ := m["evidence_item_id"].(string)
		actor, _ := m["actor"].(string)
		ip, _ := m["ip_address"].(string)
		return id + "\x00" + actor + "\x00" + ip
	}
	bySubject := func(list []map[string]any) []map[string]any {
		sort.Slice(list, func(i, j int) bool { return subject(list[i]) < subject(list[j]) })
		return list
	}
	var anomalies []map[string]any
	anomalies = append(anomalies, bySubject(detectDownloadBursts(entries, downloadThreshold))...)
	anomalies = append(anomalies, bySubject(detectShareLinkAbuse(entries, shareThreshold))...)
	anomalies = append(anomalies, bySubject(detectAuthFailures(entries, authThreshold))...)
	anomalies = append(anomalies, detectOffHoursAccess(entries)...)

	sort.SliceStable(anomalies, func(i, j int) bool {
		return severityOrder[anomalies[i]["severity"].(string)] < severityOrder[anomalies[j]["severity"].(string)]
	})

	typeCounts := map[string]int{}
	severityCounts := map[string]int{}
	for _, an := range anomalies {
		typeCounts[an["type"].(string)]++
		severityCounts[an["severity"].(string)]++
	}

	report := map[string]any{
		"case_id":                params.CaseID,
		"lookback_days":          lookbackDays,
		"audit_entries_scanned":  len(entries),
		"total_anomalies":        len(anomalies),
		"anomalies":              anomalies,
		"summary_by_type":        typeCounts,
		"summary_by_severity":    severityCounts,
		"parameters": map[string]any{
			"lookback_days": lookbackDays, "download_burst_threshold": downloadThreshold,
			"share_abuse_threshold": shareThreshold, "auth_failure_threshold": authThreshold,
		},
	}
	reportHash, err := canonical.Hash(report)
	if err != nil {
		return nil, err
	}
	report["report_hash"] = reportHash
	report["output_hashes"] = []string{reportHash}
	return report, nil
}

// windowBurstCount counts, for timestamps sorted ascending starting at
// index i, how many fall within windowMinutes of timestamps[i].
func windowBurstCount(timestamps []time.Time, i int, windowMinutes int) int {
	windowEnd := timestamps[i].Add(time.Duration(windowMinutes) * time.Minute)
	count := 0
	for _, t := range timestamps[i:] {
		if !t.After(windowEnd) {
			count++
		}
	}
	return count
}

func detectDownloadBursts(entries []entry, threshold int) []map[string]any {
	const windowMinutes = 10
	groups := map[[2]string][]time.Time{}
	for _, e := range entries {
		if containsFold(e.action, "download") {
			key := [2]string{itoa(e.evidenceItemID), e.actor}
			groups[key] = append(groups[key], e.timestamp)
		}
	}
	var out []map[string]any
	for key, timestamps := range groups {
		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })
		for i := range timestamps {
			count := windowBurstCount(timestamps, i, windowMinutes)
			if count >= threshold {
				out = append(out, map[string]any{
					"type": "download_burst", "severity": severityWarning,
					"evidence_item_id": key[0], "actor": key[1], "count_in_window": count,
					"window_start": timestamps[i].UTC().Format(time.RFC3339), "window_minutes": windowMinutes,
				})
				break
			}
		}
	}
	return out
}

func detectShareLinkAbuse(entries []entry, threshold int) []map[string]any {
	const windowMinutes = 60
	ipAccesses := map[string][]time.Time{}
	for _, e := range entries {
		if containsFold(e.action, "share") || containsFold(e.action, "accessed") {
			ipAccesses[e.ipAddress] = append(ipAccesses[e.ipAddress], e.timestamp)
		}
	}
	var out []map[string]any
	for ip, timestamps := range ipAccesses {
		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })
		for i := range timestamps {
			count := windowBurstCount(timestamps, i, windowMinutes)
			if count >= threshold {
				out = append(out, map[string]any{
					"type": "share_link_abuse", "severity": severityAlert, "ip_address": ip,
					"count_in_window": count, "window_start": timestamps[i].UTC().Format(time.RFC3339),
					"window_minutes": windowMinutes,
				})
				break
			}
		}
	}
	return out
}

func detectAuthFailures(entries []entry, threshold int) []map[string]any {
	const windowMinutes = 15
	ipFailures := map[string][]time.Time{}
	for _, e := range entries {
		action := lower(e.action)
		if containsFold(action, "fail") && (containsFold(action, "auth") || containsFold(action, "login")) {
			ipFailures[e.ipAddress] = append(ipFailures[e.ipAddress], e.timestamp)
		}
	}
	var out []map[string]any
	for ip, timestamps := range ipFailures {
		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })
		for i := range timestamps {
			count := windowBurstCount(timestamps, i, windowMinutes)
			if count >= threshold {
				out = append(out, map[string]any{
					"type": "auth_failure_burst", "severity": severityAlert, "ip_address": ip,
					"count_in_window": count, "window_start": timestamps[i].UTC().Format(time.RFC3339),
					"window_minutes": windowMinutes,
				})
				break
			}
		}
	}
	return out
}

func detectOffHoursAccess(entries []entry) []map[string]any {
	const offHoursStart, offHoursEnd = 22, 6
	counts := map[string]int{}
	for _, e := range entries {
		hour := e.timestamp.UTC().Hour()
		if hour >= offHoursStart || hour < offHoursEnd {
			counts[e.actor]++
		}
	}
	actors := make([]string, 0, len(counts))
	for actor := range counts {
		actors = append(actors, actor)
	}
	sort.Slice(actors, func(i, j int) bool {
		if counts[actors[i]] != counts[actors[j]] {
			return counts[actors[i]] > counts[actors[j]]
		}
		return actors[i] < actors[j]
	})
	var out []map[string]any
	for _, actor := range actors {
		if counts[actor] >= 5 {
			out = append(out, map[string]any{
				"type": "off_hours_access", "severity": severityInfo, "actor": actor,
				"off_hours_count": counts[actor], "hours_range": "22:00-6:00 UTC",
			})
		}
	}
	return out
}

func containsFold(s, substr string) bool {
	return len(s) >= len(substr) && indexFold(lower(s), lower(substr)) >= 0
}

func indexFold(s, substr string) int {
	if substr == "" {
		return 0
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

func intExtra(extra map[string]any, key string, def int) int {
	if v, ok := extra[key].(float64); ok {
		return int(v)
	}
	return def
}
