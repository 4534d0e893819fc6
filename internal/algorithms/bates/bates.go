// Package bates implements Algorithm E (Bates + Exhibit Set Generator),
// grounded on original_source/algorithms/bates_generator.py: deterministic
// Bates numbering over a case's evidence, sorted by ID, producing a stamped
// derivative for each item. PDF stamping uses the same deterministic
// text-marker fallback the original falls back to when no PDF-overlay
// library is available, rather than fabricating a dependency for it.
package bates

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/canonical"
	"github.com/evident-labs/evidcore/internal/model"
)

// Algorithm is Algorithm E.
type Algorithm struct{}

func (Algorithm) ID() string          { return "bates_generator" }
func (Algorithm) Version() string     { return "1.0.0" }
func (Algorithm) Description() string { return "generates Bates-numbered derivative copies for court production" }

func (a Algorithm) Execute(rc algorithm.Context, params model.AlgorithmParams) (map[string]any, error) {
	if _, err := rc.Relational.LoadCase(rc.Ctx, params.CaseID, params.TenantID); err != nil {
		return nil, err
	}
	items, err := rc.Relational.ListLinkedEvidence(rc.Ctx, params.CaseID)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].EvidenceItemID < items[j].EvidenceItemID })

	prefix := stringExtra(params.Extra, "prefix", "EVD")
	startNumber := intExtra(params.Extra, "start_number", 1)
	numberWidth := intExtra(params.Extra, "number_width", 6)
	stampPosition := stringExtra(params.Extra, "stamp_position", "bottom_right")

	var exhibits []map[string]any
	var inputHashes, outputHashes []string
	current := startNumber

	for _, it := range items {
		if it.SHA256 == "" {
			continue
		}
		inputHashes = append(inputHashes, it.SHA256)
		batesNumber := generateBatesNumber(prefix, current, numberWidth)
		current++

		manifest, merr := lookupManifest(rc, it.EvidenceID)
		if merr != nil || rc.Store == nil {
			exhibits = append(exhibits, map[string]any{
				"bates_number": batesNumber, "evidence_item_id": it.EvidenceItemID,
				"original_hash": it.SHA256, "original_filename": it.OriginalFilename,
				"status": "skipped", "reason": "original file not found on disk",
			})
			continue
		}
		data, gerr := rc.Store.Get(originalKeyFor(manifest))
		if gerr != nil {
			exhibits = append(exhibits, map[string]any{
				"bates_number": batesNumber, "evidence_item_id": it.EvidenceItemID,
				"original_hash": it.SHA256, "original_filename": it.OriginalFilename,
				"status": "error", "reason": gerr.Error(),
			})
			continue
		}

		marker := fmt.Sprintf("[BATES: %s]\n", batesNumber)
		stamped := append([]byte(marker), data...)

		// derivative_hash is computed from the deterministic stamped bytes
		// directly, not read back from the (best-effort, possibly
		// suppressed-in-replay) derivative write, so the payload — and
		// therefore result_hash — is identical whether or not the write
		// actually happens.
		derivativeHash := sha256Hex(stamped)
		outputHashes = append(outputHashes, derivativeHash)

		var derivErr error
		if rc.Derivatives != nil {
			_, err := rc.Derivatives.StoreDerivative(rc.Ctx, it.SHA256, "bates_stamped", batesNumber+"_"+it.OriginalFilename, stamped, map[string]any{
				"bates_number": batesNumber, "stamp_position": stampPosition,
			})
			if err != nil {
				derivErr = err
			}
		}

		status := "generated"
		reason := ""
		if derivErr != nil {
			status = "error"
			reason = derivErr.Error()
		}
		exhibits = append(exhibits, map[string]any{
			"bates_number": batesNumber, "evidence_item_id": it.EvidenceItemID,
			"original_hash": it.SHA256, "original_filename": it.OriginalFilename,
			"derivative_hash": derivativeHash, "status": status, "reason": reason,
		})
	}

	generatedCount, skippedCount, errorCount := 0, 0, 0
	for _, ex := range exhibits {
		switch ex["status"] {
		case "generated":
			generatedCount++
		case "skipped":
			skippedCount++
		case "error":
			errorCount++
		}
	}

	report := map[string]any{
		"case_id": params.CaseID,
		"exhibits": exhibits,
		"parameters": map[string]any{
			"prefix": prefix, "start_number": startNumber, "number_width": numberWidth, "stamp_position": stampPosition,
		},
		"total_exhibits":  len(exhibits),
		"generated_count": generatedCount,
		"skipped_count":   skippedCount,
		"error_count":     errorCount,
		"end_number":      current - 1,
	}
	manifestHash, err := canonical.Hash(report)
	if err != nil {
		return nil, err
	}
	report["manifest_hash"] = manifestHash
	report["output_hashes"] = append(outputHashes, manifestHash)
	report["input_hashes"] = inputHashes
	return report, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func generateBatesNumber(prefix string, number, width int) string {
	return fmt.Sprintf("%s-%0*d", prefix, width, number)
}

func lookupManifest(rc algorithm.Context, evidenceID string) (*model.EvidenceManifest, error) {
	if rc.Store == nil || evidenceID == "" {
		return nil, fmt.Errorf("no manifest reference")
	}
	return rc.Store.LoadManifest(evidenceID)
}

func originalKeyFor(m *model.EvidenceManifest) string {
	return "originals/" + m.SHA256[:4] + "/" + m.SHA256 + "/" + m.OriginalFilename
}

func stringExtra(extra map[string]any, key, def string) string {
	if v, ok := extra[key].(string); ok {
		return v
	}
	return def
}

func intExtra(extra map[string]any, key string, def int) int {
	if v, ok := extra[key].(float64); ok {
		return int(v)
	}
	return def
}
