// Package redaction implements Algorithm F (Redaction Verification),
// grounded on original_source/algorithms/redaction_verify.py: four
// non-destructive checks comparing a redacted derivative against its
// original. The PDF text-layer and annotation checks mirror the original's
// own ImportError fallback (reported as unavailable rather than fabricating
// a PDF-parsing dependency); the byte-leakage and hash-difference checks
// are fully implemented since they require only stdlib byte comparison.
package redaction

import (
	"bytes"
	"sort"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/canonical"
	"github.com/evident-labs/evidcore/internal/model"
)

const (
	statusPass    = "pass"
	statusFail    = "fail"
	statusWarning = "warning"
	statusSkipped = "skipped"

	minLeakSampleRun = 50
	maxLeakSamples   = 100
)

// Algorithm is Algorithm F.
type Algorithm struct{}

func (Algorithm) ID() string          { return "redaction_verify" }
func (Algorithm) Version() string     { return "1.0.0" }
func (Algorithm) Description() string { return "verifies redacted derivatives are non-reversible and properly burned in" }

func (a Algorithm) Execute(rc algorithm.Context, params model.AlgorithmParams) (map[string]any, error) {
	if _, err := rc.Relational.LoadCase(rc.Ctx, params.CaseID, params.TenantID); err != nil {
		return nil, err
	}
	items, err := rc.Relational.ListLinkedEvidence(rc.Ctx, params.CaseID)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].EvidenceItemID < items[j].EvidenceItemID })

	var results []map[string]any
	var inputHashes []string
	counts := map[string]int{statusPass: 0, statusFail: 0, statusWarning: 0, statusSkipped: 0}

	for _, it := range items {
		if !it.IsRedacted || it.SHA256 == "" {
			continue
		}
		inputHashes = append(inputHashes, it.SHA256)

		if rc.Store == nil {
			counts[statusSkipped]++
			results = append(results, map[string]any{
				"evidence_item_id": it.EvidenceItemID, "original_filename": it.OriginalFilename,
				"status": statusSkipped, "reason": "no evidence store available",
			})
			continue
		}

		manifest, merr := rc.Store.LoadManifest(it.EvidenceID)
		if merr != nil {
			counts[statusSkipped]++
			results = append(results, map[string]any{
				"evidence_item_id": it.EvidenceItemID, "original_filename": it.OriginalFilename,
				"status": statusSkipped, "reason": "manifest not found",
			})
			continue
		}

		var redactedDesc *model.DerivativeDescriptor
		for i := range manifest.Derivatives {
			d := manifest.Derivatives[i]
			if d.DerivativeType == "redacted" || d.DerivativeType == "redacted_copy" {
				redactedDesc = &d
				break
			}
		}
		if redactedDesc == nil {
			counts[statusSkipped]++
			results = append(results, map[string]any{
				"evidence_item_id": it.EvidenceItemID, "original_filename": it.OriginalFilename,
				"status": statusSkipped, "reason": "no redacted derivative in manifest",
			})
			continue
		}

		originalData, oerr := rc.Store.Get(originalKeyFor(manifest))
		derivKey := "derivatives/" + manifest.SHA256[:4] + "/" + manifest.SHA256 + "/" + redactedDesc.DerivativeType + "/" + redactedDesc.Filename
		derivData, derr := rc.Store.Get(derivKey)
		if oerr != nil || derr != nil {
			counts[statusSkipped]++
			results = append(results, map[string]any{
				"evidence_item_id": it.EvidenceItemID, "original_filename": it.OriginalFilename,
				"status": statusSkipped, "reason": "original or redacted bytes unavailable",
			})
			continue
		}

		checks := map[string]any{
			"pdf_text_layer": map[string]any{
				"has_text_layer": nil, "note": "PDF text-layer extraction not available; check skipped",
			},
			"pdf_annotations": map[string]any{
				"has_unapplied_redactions": nil, "note": "PDF annotation inspection not available; check skipped",
			},
		}
		leak := checkByteLeakage(originalData, derivData)
		checks["byte_leakage"] = leak
		hashDiffers := redactedDesc.SHA256 != manifest.SHA256
		checks["hash_difference"] = map[string]any{"hashes_differ": hashDiffers}

		status := statusPass
		reason := ""
		if !hashDiffers {
			status = statusFail
			reason = "redacted derivative has identical hash to original"
		} else if leak["potential_leakage"].(bool) {
			status = statusWarning
			reason = "potential byte-level leakage detected"
		}
		counts[status]++

		results = append(results, map[string]any{
			"evidence_item_id": it.EvidenceItemID, "original_filename": it.OriginalFilename,
			"original_hash": manifest.SHA256, "derivative_hash": redactedDesc.SHA256,
			"status": status, "reason": reason, "checks": checks,
		})
	}

	report := map[string]any{
		"case_id":     params.CaseID,
		"items":       results,
		"summary":     counts,
		"parameters":  map[string]any{"min_leak_sample_run": minLeakSampleRun, "max_leak_samples": maxLeakSamples},
	}
	reportHash, err := canonical.Hash(report)
	if err != nil {
		return nil, err
	}
	report["report_hash"] = reportHash
	report["output_hashes"] = []string{reportHash}
	report["input_hashes"] = inputHashes
	return report, nil
}

// checkByteLeakage extracts printable-ASCII runs of length >= 50 from
// original (capped at 100 samples) and reports whether any appears
// verbatim in the redacted derivative's bytes.
func checkByteLeakage(original, redacted []byte) map[string]any {
	var segments [][]byte
	var current []byte
	flush := func() {
		if len(current) >= minLeakSampleRun {
			segments = append(segments, append([]byte(nil), current...))
		}
		current = nil
	}
	for _, b := range original {
		if b >= 32 && b < 127 {
			current = append(current, b)
		} else {
			flush()
		}
	}
	flush()

	total := len(segments)
	if total > maxLeakSamples {
		total = maxLeakSamples
	}
	leaked := 0
	for _, seg := range segments[:total] {
		if bytes.Contains(redacted, seg) {
			leaked++
		}
	}
	return map[string]any{
		"segments_checked": total, "segments_found_in_redacted": leaked,
		"potential_leakage": leaked > 0,
	}
}

func originalKeyFor(m *model.EvidenceManifest) string {
	return "originals/" + m.SHA256[:4] + "/" + m.SHA256 + "/" + m.OriginalFilename
}
