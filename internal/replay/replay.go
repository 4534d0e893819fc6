// Package replay implements the Replay Harness (§4.6), grounded on
// original_source/algorithms/replay.py: re-executes every recorded
// algorithm run for a case against the exact registered (id, version) pair
// used originally, and compares the resulting hashes against the stored
// record. Replay is read-only — it runs with ReplayMode set and no
// DerivativeWriter, so a replayed algorithm that would normally write a
// derivative observes a nil capability instead.
package replay

import (
	"encoding/json"
	"time"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/auditsink"
	"github.com/evident-labs/evidcore/internal/canonical"
	"github.com/evident-labs/evidcore/internal/model"
	"github.com/evident-labs/evidcore/internal/relational"
)

// Verdict is the comparison result for one replayed run.
type Verdict struct {
	OriginalRunID          string            `json:"original_run_id"`
	AlgorithmID            string            `json:"algorithm_id"`
	AlgorithmVersion       string            `json:"algorithm_version"`
	OriginalResultHash     string            `json:"original_result_hash"`
	ReplayResultHash       string            `json:"replay_result_hash"`
	Match                  bool              `json:"match"`
	OriginalParamsHash     string            `json:"original_params_hash"`
	ReplayParamsHash       string            `json:"replay_params_hash"`
	ParamsMatch            bool              `json:"params_match"`
	OriginalIntegrityCheck string            `json:"original_integrity_check"`
	ReplayIntegrityCheck   string            `json:"replay_integrity_check"`
	IntegrityMatch         bool              `json:"integrity_match"`
	ReplaySuccess          bool              `json:"replay_success"`
	ReplayError            string            `json:"replay_error,omitempty"`
	DeltaDetails           map[string]string `json:"delta_details,omitempty"`
}

// Report aggregates every Verdict for a case-scoped replay run.
type Report struct {
	CaseID          int64     `json:"case_id"`
	TenantID        int64     `json:"tenant_id"`
	ReplayedAt      time.Time `json:"replayed_at"`
	TotalRuns       int       `json:"total_runs"`
	Matched         int       `json:"matched"`
	Mismatched      int       `json:"mismatched"`
	Skipped         int       `json:"skipped"`
	Errors          int       `json:"errors"`
	AllReproducible bool      `json:"all_reproducible"`
	Verdicts        []Verdict `json:"verdicts"`
	ReportHash      string    `json:"report_hash"`
}

// reportForHash excludes ReplayedAt (wall clock) and ReportHash itself from
// the hashed form, matching the determinism requirement that no wall-clock
// value may enter a hash.
type reportForHash struct {
	CaseID          int64     `json:"case_id"`
	TenantID        int64     `json:"tenant_id"`
	TotalRuns       int       `json:"total_runs"`
	Matched         int       `json:"matched"`
	Mismatched      int       `json:"mismatched"`
	Skipped         int       `json:"skipped"`
	Errors          int       `json:"errors"`
	AllReproducible bool      `json:"all_reproducible"`
	Verdicts        []Verdict `json:"verdicts"`
}

// Engine replays recorded runs against a live registry, store, and
// relational service.
type Engine struct {
	Registry   *algorithm.Registry
	Relational relational.Service
	Store      algorithm.EvidenceReader
	Audit      auditsink.Sink
}

// ReplayCase re-executes every successful recorded run for caseID, in the
// order they were originally created, optionally restricted to
// algorithmFilter.
func (e *Engine) ReplayCase(ctx algorithm.Context, caseID, tenantID int64, algorithmFilter []string) (Report, error) {
	runs, err := e.Relational.ListRunRecords(ctx.Ctx, caseID, algorithmFilter)
	if err != nil {
		return Report{}, err
	}

	verdicts := make([]Verdict, 0, len(runs))
	matched, mismatched, errCount := 0, 0, 0

	for _, run := range runs {
		v := e.replaySingle(ctx, run)
		verdicts = append(verdicts, v)
		switch {
		case v.ReplayError != "":
			errCount++
		case v.Match:
			matched++
		default:
			mismatched++
		}
	}

	report := Report{
		CaseID: caseID, TenantID: tenantID, ReplayedAt: time.Now().UTC(),
		TotalRuns: len(runs), Matched: matched, Mismatched: mismatched,
		Skipped: 0, Errors: errCount,
		AllReproducible: mismatched == 0 && errCount == 0,
		Verdicts:        verdicts,
	}

	hash, err := canonical.Hash(reportForHash{
		CaseID: report.CaseID, TenantID: report.TenantID, TotalRuns: report.TotalRuns,
		Matched: report.Matched, Mismatched: report.Mismatched, Skipped: report.Skipped,
		Errors: report.Errors, AllReproducible: report.AllReproducible, Verdicts: report.Verdicts,
	})
	if err != nil {
		return Report{}, err
	}
	report.ReportHash = hash

	if e.Audit != nil {
		e.Audit.Record(ctx.Ctx, "", "replay.completed", "replay_engine", map[string]any{
			"case_id": caseID, "tenant_id": tenantID, "total_runs": report.TotalRuns,
			"matched": report.Matched, "mismatched": report.Mismatched, "errors": report.Errors,
			"all_reproducible": report.AllReproducible, "report_hash": report.ReportHash,
		})
	}

	return report, nil
}

func (e *Engine) replaySingle(ctx algorithm.Context, run model.AlgorithmRunRecord) Verdict {
	alg, err := e.Registry.Get(run.AlgorithmID, run.AlgorithmVersion)
	if err != nil {
		return Verdict{
			OriginalRunID: run.RunID, AlgorithmID: run.AlgorithmID, AlgorithmVersion: run.AlgorithmVersion,
			OriginalResultHash: run.ResultHash, OriginalParamsHash: run.ParamsHash,
			OriginalIntegrityCheck: run.IntegrityCheck,
			ReplayError:            "algorithm " + run.AlgorithmID + "@" + run.AlgorithmVersion + " not found in registry",
		}
	}

	var params model.AlgorithmParams
	if uerr := json.Unmarshal([]byte(run.ParamsJSON), &params); uerr != nil {
		params = model.AlgorithmParams{CaseID: run.CaseID, TenantID: run.TenantID, ActorName: "replay"}
	}

	replayCtx := ctx
	replayCtx.ReplayMode = true
	replayCtx.Derivatives = nil

	result, err := algorithm.Run(replayCtx, alg, params, nil)
	if err != nil {
		return Verdict{
			OriginalRunID: run.RunID, AlgorithmID: run.AlgorithmID, AlgorithmVersion: run.AlgorithmVersion,
			OriginalResultHash: run.ResultHash, OriginalParamsHash: run.ParamsHash,
			OriginalIntegrityCheck: run.IntegrityCheck,
			ReplayError:            err.Error(),
		}
	}

	resultMatch := run.ResultHash == result.ResultHash
	paramsMatch := run.ParamsHash == result.ParamsHash
	integrityMatch := run.IntegrityCheck == result.IntegrityCheck

	delta := map[string]string{}
	if !resultMatch {
		delta["result_hash_original"] = run.ResultHash
		delta["result_hash_replay"] = result.ResultHash
	}
	if !paramsMatch {
		delta["params_hash_original"] = run.ParamsHash
		delta["params_hash_replay"] = result.ParamsHash
	}
	if !integrityMatch {
		delta["integrity_original"] = run.IntegrityCheck
		delta["integrity_replay"] = result.IntegrityCheck
	}
	if len(delta) == 0 {
		delta = nil
	}

	return Verdict{
		OriginalRunID: run.RunID, AlgorithmID: run.AlgorithmID, AlgorithmVersion: run.AlgorithmVersion,
		OriginalResultHash: run.ResultHash, ReplayResultHash: result.ResultHash, Match: resultMatch,
		OriginalParamsHash: run.ParamsHash, ReplayParamsHash: result.ParamsHash, ParamsMatch: paramsMatch,
		OriginalIntegrityCheck: run.IntegrityCheck, ReplayIntegrityCheck: result.IntegrityCheck, IntegrityMatch: integrityMatch,
		ReplaySuccess: result.Success, ReplayError: result.Error, DeltaDetails: delta,
	}
}
