// Package export implements the Sealed Export Builder (§4.7), grounded on
// original_source/algorithms/sealed_export.py for the file set and
// SEAL.json shape, and on Mindburn-Labs-helm's core/cmd/helm/export_pack.go
// for the deterministic-archive discipline this package follows: entries
// written in a fixed order (reports sorted by algorithm ID, then the fixed
// set of other files), every entry's hash except SEAL_HASH.txt's recorded
// as it is written, and a final seal binding the whole manifest.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/canonical"
	"github.com/evident-labs/evidcore/internal/errs"
	"github.com/evident-labs/evidcore/internal/integritystatement"
	"github.com/evident-labs/evidcore/internal/model"
)

// courtPackageAlgorithms is the fixed export-scope algorithm set from §4.7
// step 1, run in this order; their reports are written to the ZIP sorted by
// algorithm ID, independently of this run order.
var courtPackageAlgorithms = []string{
	"integrity_sweep", "provenance_graph", "timeline_alignment",
	"bates_generator", "redaction_verify", "access_anomaly",
}

// Result is the outcome of Build.
type Result struct {
	PackageBytes      []byte
	SealHash          string
	AlgorithmsRun     []string
	AlgorithmVersions map[string]string
	TotalFiles        int
}

// Builder assembles a sealed court export package for one case.
type Builder struct {
	Registry *algorithm.Registry
}

// Build executes the export-scope algorithm set, assembles a ZIP archive of
// reports/derived artifacts/audit extract/integrity statement, and seals it
// with a SEAL.json + SEAL_HASH.txt pair. generatedAt must be supplied by the
// caller (never read internally). The reports and SEAL.json carry each
// algorithm run's run_id and timing fields, so two builds from identical
// store/db state produce different package bytes.
func (b *Builder) Build(rc algorithm.Context, caseID, tenantID int64, generatedAt time.Time) (Result, error) {
	results := b.runAlgorithms(rc, caseID, tenantID)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fileManifest := map[string]string{}

	writeEntry := func(name string, data []byte) error {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: time.Unix(0, 0).UTC()})
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		fileManifest[name] = canonical.HashBytes(data)
		return nil
	}

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		result := results[id]
		reportJSON, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return Result{}, errs.Wrap(errs.KindValidationError, "marshal "+id+" report", err)
		}
		if err := writeEntry("reports/"+id+"_report.json", reportJSON); err != nil {
			return Result{}, err
		}
	}

	versionManifest := b.buildVersionManifest()
	vmBytes, err := json.MarshalIndent(versionManifest, "", "  ")
	if err != nil {
		return Result{}, errs.Wrap(errs.KindValidationError, "marshal version manifest", err)
	}
	if err := writeEntry("ALGORITHM_VERSIONS.json", vmBytes); err != nil {
		return Result{}, err
	}

	if tr, ok := results["timeline_alignment"]; ok && tr.Success {
		if err := writeEntry("TIMELINE_NOTES.txt", []byte(buildTimelineNotes(tr))); err != nil {
			return Result{}, err
		}
	}
	if rr, ok := results["redaction_verify"]; ok && rr.Success {
		if err := writeEntry("REDACTION_VERIFICATION.txt", []byte(buildRedactionStatement(rr))); err != nil {
			return Result{}, err
		}
	}
	if ir, ok := results["integrity_sweep"]; ok && ir.Success {
		if err := writeEntry("INTEGRITY_SWEEP_SUMMARY.txt", []byte(buildIntegritySummary(ir))); err != nil {
			return Result{}, err
		}
	}

	auditLog, err := extractAuditLog(rc, caseID)
	if err != nil {
		return Result{}, err
	}
	auditBytes, err := json.MarshalIndent(auditLog, "", "  ")
	if err != nil {
		return Result{}, errs.Wrap(errs.KindValidationError, "marshal audit log", err)
	}
	if err := writeEntry("audit_log.json", auditBytes); err != nil {
		return Result{}, err
	}

	manifestHash, err := canonical.Hash(sortedManifest(fileManifest))
	if err != nil {
		return Result{}, err
	}
	statement, err := integritystatement.Generate(integritystatement.Request{
		Scope: "COURT_PACKAGE", ScopeID: caseScopeID(caseID),
		ManifestSHA256: manifestHash, GeneratedAt: generatedAt,
		StatementID: "IS-" + generatedAt.UTC().Format("20060102150405") + "-" + manifestHash[:8],
	})
	if err != nil {
		return Result{}, err
	}
	if err := writeEntry("INTEGRITY_STATEMENT.txt", []byte(statement.Text)); err != nil {
		return Result{}, err
	}

	seal := b.buildSeal(caseID, tenantID, generatedAt, fileManifest, results, versionManifest)
	sealBytes, err := json.MarshalIndent(seal, "", "  ")
	if err != nil {
		return Result{}, errs.Wrap(errs.KindValidationError, "marshal seal", err)
	}
	sealHash := canonical.HashBytes(sealBytes)
	if err := writeEntry("SEAL.json", sealBytes); err != nil {
		return Result{}, err
	}

	sealHashText := "INTEGRITY SEAL\n" +
		"===============\n" +
		"SEAL.json SHA-256: " + sealHash + "\n\n" +
		"To verify this package:\n" +
		"1. Compute SHA-256 of SEAL.json\n" +
		"2. Compare with the hash above\n" +
		"3. For each file listed in SEAL.json file_manifest, compute SHA-256 and compare\n" +
		"4. If all hashes match, the package is intact.\n"
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "SEAL_HASH.txt", Method: zip.Deflate, Modified: time.Unix(0, 0).UTC()})
	if err != nil {
		return Result{}, err
	}
	if _, err := w.Write([]byte(sealHashText)); err != nil {
		return Result{}, err
	}

	if err := zw.Close(); err != nil {
		return Result{}, errs.Wrap(errs.KindValidationError, "close zip writer", err)
	}

	algoVersions := make(map[string]string, len(results))
	for id, r := range results {
		algoVersions[id] = r.AlgorithmVersion
	}

	if rc.Audit != nil {
		rc.Audit.Record(rc.Ctx, "", "export.sealed_package_built", "sealed_export_builder", map[string]any{
			"case_id": caseID, "tenant_id": tenantID, "seal_hash": sealHash, "file_count": len(fileManifest),
		})
	}

	return Result{
		PackageBytes: buf.Bytes(), SealHash: sealHash, AlgorithmsRun: ids,
		AlgorithmVersions: algoVersions, TotalFiles: len(fileManifest),
	}, nil
}

func (b *Builder) runAlgorithms(rc algorithm.Context, caseID, tenantID int64) map[string]model.AlgorithmResult {
	results := make(map[string]model.AlgorithmResult, len(courtPackageAlgorithms))
	params := model.AlgorithmParams{CaseID: caseID, TenantID: tenantID, ActorName: "sealed_export"}
	for _, id := range courtPackageAlgorithms {
		alg, err := b.Registry.Get(id, "")
		if err != nil {
			continue
		}
		result, err := algorithm.Run(rc, alg, params, nil)
		if err != nil {
			result = model.AlgorithmResult{AlgorithmID: id, AlgorithmVersion: alg.Version(), Success: false, Error: err.Error()}
		}
		results[id] = result
	}
	return results
}

type versionManifestEntry struct {
	AlgorithmID string `json:"algorithm_id"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Module      string `json:"module"`
	ModuleHash  string `json:"module_hash"`
}

// buildVersionManifest records, for every registered algorithm, a stable
// module identifier (its Go import path) and a content hash derived from
// (algorithm_id, version, description) — Go binaries do not carry readable
// per-package source at runtime the way the original's importlib-based
// source hash did, so this is a deterministic proxy rather than a literal
// source-file digest; see DESIGN.md.
func (b *Builder) buildVersionManifest() []versionManifestEntry {
	algs := b.Registry.List()
	sort.Slice(algs, func(i, j int) bool {
		if algs[i].ID() != algs[j].ID() {
			return algs[i].ID() < algs[j].ID()
		}
		return algs[i].Version() < algs[j].Version()
	})
	entries := make([]versionManifestEntry, 0, len(algs))
	for _, alg := range algs {
		moduleHash, _ := canonical.Hash(map[string]string{
			"algorithm_id": alg.ID(), "version": alg.Version(), "description": alg.Description(),
		})
		entries = append(entries, versionManifestEntry{
			AlgorithmID: alg.ID(), Version: alg.Version(), Description: alg.Description(),
			Module: "github.com/evident-labs/evidcore/internal/algorithms/" + packageNameFor(alg.ID()),
			ModuleHash: moduleHash,
		})
	}
	return entries
}

func packageNameFor(algorithmID string) string {
	switch algorithmID {
	case "bulk_dedup":
		return "dedup"
	case "provenance_graph":
		return "provenance"
	case "timeline_alignment":
		return "timeline"
	case "integrity_sweep":
		return "integrity"
	case "bates_generator":
		return "bates"
	case "redaction_verify":
		return "redaction"
	case "access_anomaly":
		return "anomaly"
	default:
		return algorithmID
	}
}

func (b *Builder) buildSeal(caseID, tenantID int64, generatedAt time.Time, fileManifest map[string]string, results map[string]model.AlgorithmResult, versionManifest []versionManifestEntry) model.SealDocument {
	sorted := sortedManifest(fileManifest)
	manifestHash, _ := canonical.Hash(sorted)

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	summary := make([]model.AlgorithmSummaryEntry, 0, len(ids))
	versions := make(map[string]string, len(ids))
	for _, id := range ids {
		r := results[id]
		summary = append(summary, model.AlgorithmSummaryEntry{
			AlgorithmID: id, Version: r.AlgorithmVersion, RunID: r.RunID, Success: r.Success,
			ResultHash: r.ResultHash, ParamsHash: r.ParamsHash, IntegrityCheck: r.IntegrityCheck,
			InputCount: len(r.InputHashes), OutputCount: len(r.OutputHashes), DurationSeconds: r.DurationSeconds,
		})
		versions[id] = r.AlgorithmVersion
	}

	return model.SealDocument{
		SealVersion: "1.0", CaseID: caseID, TenantID: tenantID, GeneratedAt: generatedAt.UTC(),
		FileManifest: sorted, FileCount: len(sorted), ManifestHash: manifestHash,
		AlgorithmSummary: summary, AlgorithmVersions: versions,
		VerificationInstructions: "1. Compute SHA-256 of SEAL.json and compare with SEAL_HASH.txt. " +
			"2. For each entry in file_manifest, compute SHA-256 of the file. " +
			"3. Compare computed hashes with the recorded hashes. " +
			"4. If all hashes match, the package integrity is verified. " +
			"5. Review algorithm_summary for per-algorithm result hashes.",
	}
}

func sortedManifest(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func caseScopeID(caseID int64) string {
	return "CASE-" + itoa(caseID)
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

func buildTimelineNotes(r model.AlgorithmResult) string {
	lines := "TIMESTAMP NORMALIZATION NOTES\n" + sepLine() + "\n\n"
	lines += formatKV("Total entries", r.Payload["total_entries"])
	if breakdown, ok := r.Payload["confidence_breakdown"].(map[string]int); ok {
		lines += formatKV("Exact timestamps", breakdown["exact"])
		lines += formatKV("Derived timestamps", breakdown["derived"])
		lines += formatKV("Unknown timestamps", breakdown["unknown"])
	}
	if assumptions, ok := r.Payload["assumptions"].([]map[string]any); ok && len(assumptions) > 0 {
		lines += "\nAssumptions:\n"
		for _, a := range assumptions {
			lines += "  - " + anyToString(a["assumption"]) + "\n"
		}
	}
	lines += "\nAlgorithm: timeline_alignment v" + r.AlgorithmVersion + "\n"
	lines += "Result hash: " + r.ResultHash + "\n"
	return lines
}

func buildRedactionStatement(r model.AlgorithmResult) string {
	lines := "REDACTION VERIFICATION STATEMENT\n" + sepLine() + "\n\n"
	if summary, ok := r.Payload["summary"].(map[string]int); ok {
		lines += formatKV("Passed", summary[statusKey("pass")])
		lines += formatKV("Warnings", summary[statusKey("warning")])
		lines += formatKV("Failed", summary[statusKey("fail")])
		lines += formatKV("Skipped", summary[statusKey("skipped")])
	}
	lines += "\nMethodology:\n"
	lines += "  1. Byte-pattern scanning to detect original content leakage.\n"
	lines += "  2. Hash comparison to confirm derivative differs from original.\n"
	lines += "\nAlgorithm: redaction_verify v" + r.AlgorithmVersion + "\n"
	lines += "Result hash: " + r.ResultHash + "\n\n"
	lines += "This verification report describes technical observations only.\n"
	lines += "It does not constitute a legal determination of redaction adequacy.\n"
	return lines
}

func buildIntegritySummary(r model.AlgorithmResult) string {
	allPassed, _ := r.Payload["all_passed"].(bool)
	status := "ISSUES DETECTED"
	if allPassed {
		status = "ALL PASSED"
	}
	lines := "INTEGRITY SWEEP SUMMARY\n" + sepLine() + "\n\n"
	lines += "Status: " + status + "\n"
	if summary, ok := r.Payload["summary"].(map[string]int); ok {
		lines += formatKV("Passed", summary[statusKey("pass")])
		lines += formatKV("Failed", summary[statusKey("fail")])
		lines += formatKV("Missing", summary[statusKey("missing")])
		lines += formatKV("Errors", summary[statusKey("error")])
	}
	lines += "\nAlgorithm: integrity_sweep v" + r.AlgorithmVersion + "\n"
	lines += "Result hash: " + r.ResultHash + "\n"
	return lines
}

func statusKey(s string) string { return s }

func sepLine() string { return "========================================" }

func formatKV(label string, v any) string {
	return label + ": " + anyToString(v) + "\n"
}

func anyToString(v any) string {
	if v == nil {
		return "N/A"
	}
	switch t := v.(type) {
	case string:
		return t
	case int:
		return itoa(int64(t))
	case int64:
		return itoa(t)
	case float64:
		return itoa(int64(t))
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func extractAuditLog(rc algorithm.Context, caseID int64) ([]map[string]any, error) {
	items, err := rc.Relational.ListLinkedEvidence(rc.Ctx, caseID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.EvidenceItemID)
	}
	records, err := rc.Relational.ListCustody(rc.Ctx, caseID, ids, time.Time{})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, map[string]any{
			"evidence_item_id": rec.EvidenceItemID, "action": rec.Action,
			"actor_name": rec.ActorName, "timestamp": rec.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}
