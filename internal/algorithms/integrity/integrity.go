// Package integrity implements Algorithm D (Integrity Verification Sweep),
// grounded on original_source/algorithms/integrity_sweep.py: recompute each
// item's on-disk SHA-256 against its recorded hash and classify
// pass/fail/missing/error, emitting a per-item audit entry for each check.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/canonical"
	"github.com/evident-labs/evidcore/internal/errs"
	"github.com/evident-labs/evidcore/internal/model"
)

const (
	statusPass    = "pass"
	statusFail    = "fail"
	statusMissing = "missing"
	statusError   = "error"
)

// Algorithm is Algorithm D.
type Algorithm struct{}

func (Algorithm) ID() string          { return "integrity_sweep" }
func (Algorithm) Version() string     { return "1.0.0" }
func (Algorithm) Description() string { return "recomputes and verifies on-disk hashes for every item linked to a case" }

func (a Algorithm) Execute(rc algorithm.Context, params model.AlgorithmParams) (map[string]any, error) {
	if _, err := rc.Relational.LoadCase(rc.Ctx, params.CaseID, params.TenantID); err != nil {
		return nil, err
	}
	items, err := rc.Relational.ListLinkedEvidence(rc.Ctx, params.CaseID)
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	var inputHashes []string
	counts := map[string]int{statusPass: 0, statusFail: 0, statusMissing: 0, statusError: 0}

	for _, it := range items {
		if it.SHA256 == "" {
			counts[statusError]++
			results = append(results, map[string]any{
				"evidence_item_id": it.EvidenceItemID, "original_filename": it.OriginalFilename,
				"status": statusError, "detail": "no sha256 recorded",
			})
			continue
		}
		inputHashes = append(inputHashes, it.SHA256)

		manifest, merr := lookupManifest(rc, it.EvidenceID)
		if merr != nil || rc.Store == nil {
			counts[statusMissing]++
			results = append(results, map[string]any{
				"evidence_item_id": it.EvidenceItemID, "original_filename": it.OriginalFilename,
				"expected_hash": it.SHA256, "status": statusMissing, "detail": "original file not found",
			})
			emitAudit(rc, it, statusMissing, "")
			continue
		}

		key := originalKeyFor(manifest)
		data, gerr := rc.Store.Get(key)
		var status, detail, computed string
		switch {
		case gerr != nil:
			if kind, ok := errs.KindOf(gerr); ok && kind == errs.KindNotFound {
				status = statusMissing
				detail = "original file not found"
			} else {
				status = statusError
				detail = gerr.Error()
			}
		default:
			sum := sha256.Sum256(data)
			computed = hex.EncodeToString(sum[:])
			if computed == it.SHA256 {
				status = statusPass
			} else {
				status = statusFail
				detail = "hash mismatch"
			}
		}
		counts[status]++
		results = append(results, map[string]any{
			"evidence_item_id": it.EvidenceItemID, "original_filename": it.OriginalFilename,
			"expected_hash": it.SHA256, "computed_hash": computed, "status": status, "detail": detail,
		})
		emitAudit(rc, it, status, computed)
	}

	report := map[string]any{
		"case_id":     params.CaseID,
		"total_items": len(items),
		"summary":     counts,
		"all_passed":  counts[statusFail] == 0 && counts[statusMissing] == 0 && counts[statusError] == 0,
		"items":       results,
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

func lookupManifest(rc algorithm.Context, evidenceID string) (*model.EvidenceManifest, error) {
	if rc.Store == nil || evidenceID == "" {
		return nil, errs.New(errs.KindNotFound, "no manifest reference")
	}
	return rc.Store.LoadManifest(evidenceID)
}

func originalKeyFor(m *model.EvidenceManifest) string {
	return "originals/" + m.SHA256[:4] + "/" + m.SHA256 + "/" + m.OriginalFilename
}

func emitAudit(rc algorithm.Context, it model.EvidenceRef, status, computed string) {
	if rc.Audit == nil {
		return
	}
	action := "integrity_verified"
	if status != statusPass {
		action = "integrity_failed"
	}
	rc.Audit.Record(rc.Ctx, it.EvidenceID, action, "system", map[string]any{
		"expected_hash": it.SHA256, "computed_hash": computed, "status": status,
	})
}
