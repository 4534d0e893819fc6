// Package algorithm implements the Algorithm Framework: a base contract
// every analysis algorithm satisfies, a process-wide Registry keyed by
// (algorithm_id, version), and the eight-step run protocol that wraps every
// invocation in a self-verifying AlgorithmResult envelope.
package algorithm

import (
	"context"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/evident-labs/evidcore/internal/auditsink"
	"github.com/evident-labs/evidcore/internal/canonical"
	"github.com/evident-labs/evidcore/internal/errs"
	"github.com/evident-labs/evidcore/internal/model"
	"github.com/evident-labs/evidcore/internal/relational"
)

// Context is the capability set an algorithm's Execute may draw on. Not
// every algorithm uses every field; unused fields are left nil by callers
// that don't provide that capability.
type Context struct {
	Ctx         context.Context
	Store       EvidenceReader
	Derivatives DerivativeWriter
	Relational  relational.Service
	Audit       auditsink.Sink
	ReplayMode  bool
}

// EvidenceReader is the subset of the evidence store an algorithm needs:
// read-only access to manifests and original bytes, keyed by the store's
// own evidence_id (model.EvidenceRef.EvidenceID), not the relational
// service's evidence_item_id.
type EvidenceReader interface {
	LoadManifest(evidenceID string) (*model.EvidenceManifest, error)
	Get(key string) ([]byte, error)
}

// DerivativeWriter is the capability only derivative-producing algorithms
// (the Bates Generator) need; the other algorithms are read-only and do not
// use it.
type DerivativeWriter interface {
	StoreDerivative(ctx context.Context, originalSHA256, derivativeType, filename string, data []byte, parameters map[string]any) (model.DerivativeDescriptor, error)
}

// Algorithm is the base contract from §4.5. Execute must be a pure function
// of (params, the relevant subset of store/db state reachable through rc):
// no wall-clock reads, no RNGs, no dependence on map iteration order, no
// network calls, no locale-dependent formatting.
type Algorithm interface {
	ID() string
	Version() string
	Description() string
	Execute(rc Context, params model.AlgorithmParams) (payload map[string]any, err error)
}

// ExtraParamsValidator is implemented by algorithms whose
// AlgorithmParams.Extra has a fixed shape worth rejecting early. Extra is
// otherwise a free-form bag; an algorithm that keys off specific fields in
// it (e.g. access_anomaly's reference_time) implements this so a malformed
// Extra value fails fast in Run rather than silently no-oping inside
// Execute. Most algorithms do not implement this interface.
type ExtraParamsValidator interface {
	// ExtraParamsSchema returns a JSON Schema (draft 2020-12) document that
	// params.Extra must validate against.
	ExtraParamsSchema() string
}

// Registry is a process-wide (algorithm_id) -> (version -> Algorithm) table.
type Registry struct {
	byID   map[string]map[string]Algorithm
	frozen bool
	warn   func(msg string)
}

// NewRegistry constructs an empty registry. warn, if non-nil, is called
// when Register replaces an already-registered (id, version) pair.
func NewRegistry(warn func(msg string)) *Registry {
	if warn == nil {
		warn = func(string) {}
	}
	return &Registry{byID: make(map[string]map[string]Algorithm), warn: warn}
}

// Register adds alg, keyed by (ID, Version). Idempotent: re-registering an
// already-registered (id, version) replaces the prior binding and calls
// warn rather than erroring, whether or not the new value is identical.
func (r *Registry) Register(alg Algorithm) error {
	if r.frozen {
		return errs.New(errs.KindValidationError, "registry is frozen")
	}
	versions, ok := r.byID[alg.ID()]
	if !ok {
		versions = make(map[string]Algorithm)
		r.byID[alg.ID()] = versions
	}
	if _, exists := versions[alg.Version()]; exists {
		r.warn("algorithm " + alg.ID() + "@" + alg.Version() + " re-registered, replacing prior binding")
	}
	versions[alg.Version()] = alg
	return nil
}

// Freeze locks the registry against further registration.
func (r *Registry) Freeze() { r.frozen = true }

// Get returns the algorithm for id. If version is empty, the highest
// registered semver is returned.
func (r *Registry) Get(id, version string) (Algorithm, error) {
	versions, ok := r.byID[id]
	if !ok || len(versions) == 0 {
		return nil, errs.New(errs.KindAlgorithmNotRegistered, id)
	}
	if version != "" {
		alg, ok := versions[version]
		if !ok {
			return nil, errs.New(errs.KindAlgorithmNotRegistered, id+"@"+version)
		}
		return alg, nil
	}
	var best *semver.Version
	var bestAlg Algorithm
	for v, alg := range versions {
		sv, err := semver.NewVersion(v)
		if err != nil {
			continue
		}
		if best == nil || sv.GreaterThan(best) {
			best = sv
			bestAlg = alg
		}
	}
	if bestAlg == nil {
		return nil, errs.New(errs.KindAlgorithmNotRegistered, id)
	}
	return bestAlg, nil
}

// List returns every registered algorithm across every id and version.
func (r *Registry) List() []Algorithm {
	var out []Algorithm
	for _, versions := range r.byID {
		for _, alg := range versions {
			out = append(out, alg)
		}
	}
	return out
}

// IDs returns the set of distinct registered algorithm_id values.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	return out
}

// resultEnvelope is the canonical shape hashed to produce IntegrityCheck: an
// AlgorithmResult with IntegrityCheck itself blanked out, so the check can
// never depend on its own value. run_id and duration_seconds are excluded
// for the same reason started_at/completed_at are: each is unique per
// invocation (a fresh UUID, a wall-clock delta) and would make
// integrity_check differ between two runs of identical params, or between
// an original run and its replay, even when nothing about the underlying
// data changed — violating the algorithm-determinism and replay properties.
type resultEnvelope struct {
	AlgorithmID      string         `json:"algorithm_id"`
	AlgorithmVersion string         `json:"algorithm_version"`
	InputHashes      []string       `json:"input_hashes"`
	OutputHashes     []string       `json:"output_hashes"`
	ParamsHash       string         `json:"params_hash"`
	ResultHash       string         `json:"result_hash"`
	Payload          map[string]any `json:"payload"`
	Success          bool           `json:"success"`
	Error            string         `json:"error,omitempty"`
	Warnings         []string       `json:"warnings,omitempty"`
}

// validateExtraParams compiles schema (a JSON Schema document) and checks
// extra against it, grounded on the teacher's firewall.PolicyFirewall
// pattern of compiling a per-tool JSON Schema and validating params before
// dispatch. extra is treated as an empty object when nil, so an algorithm
// whose schema has no required fields accepts an unset Extra.
func validateExtraParams(algorithmID, schema string, extra map[string]any) error {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	schemaURL := "https://evidcore.local/algorithms/" + algorithmID + "/extra.schema.json"
	if err := compiler.AddResource(schemaURL, strings.NewReader(schema)); err != nil {
		return errs.Wrap(errs.KindValidationError, "compile extra params schema for "+algorithmID, err)
	}
	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		return errs.Wrap(errs.KindValidationError, "compile extra params schema for "+algorithmID, err)
	}

	doc := extra
	if doc == nil {
		doc = map[string]any{}
	}
	if err := compiled.Validate(doc); err != nil {
		return errs.Wrap(errs.KindValidationError, "extra params failed validation for "+algorithmID, err)
	}
	return nil
}

// Run executes alg under the eight-step protocol of §4.5: mint run_id,
// hash params, invoke Execute, hash the payload, and seal the whole
// envelope with an integrity_check hash. started_at/completed_at are
// recorded but excluded from every hash — no wall-clock value may
// participate in a determinism check.
func Run(rc Context, alg Algorithm, params model.AlgorithmParams, inputHashes []string) (model.AlgorithmResult, error) {
	runID := uuid.NewString()
	startedAt := time.Now().UTC()

	paramsHash, err := canonical.Hash(params)
	if err != nil {
		return model.AlgorithmResult{}, errs.Wrap(errs.KindValidationError, "hash params", err)
	}

	if validator, ok := alg.(ExtraParamsValidator); ok {
		if err := validateExtraParams(alg.ID(), validator.ExtraParamsSchema(), params.Extra); err != nil {
			return model.AlgorithmResult{}, err
		}
	}

	payload, execErr := alg.Execute(rc, params)
	completedAt := time.Now().UTC()
	duration := completedAt.Sub(startedAt).Seconds()

	result := model.AlgorithmResult{
		AlgorithmID:      alg.ID(),
		AlgorithmVersion: alg.Version(),
		RunID:            runID,
		InputHashes:      inputHashes,
		ParamsHash:       paramsHash,
		StartedAt:        startedAt,
		CompletedAt:      completedAt,
		DurationSeconds:  duration,
	}

	if execErr != nil {
		result.Success = false
		result.Error = execErr.Error()
		result.Payload = map[string]any{}
	} else {
		result.Success = true
		result.Payload = payload
		if oh, ok := payload["output_hashes"].([]string); ok {
			result.OutputHashes = oh
		}
	}

	resultHash, err := canonical.Hash(result.Payload)
	if err != nil {
		return model.AlgorithmResult{}, errs.Wrap(errs.KindValidationError, "hash payload", err)
	}
	result.ResultHash = resultHash

	integrityCheck, err := canonical.Hash(resultEnvelope{
		AlgorithmID: result.AlgorithmID, AlgorithmVersion: result.AlgorithmVersion,
		InputHashes: result.InputHashes, OutputHashes: result.OutputHashes, ParamsHash: result.ParamsHash,
		ResultHash: result.ResultHash, Payload: result.Payload,
		Success: result.Success, Error: result.Error, Warnings: result.Warnings,
	})
	if err != nil {
		return model.AlgorithmResult{}, errs.Wrap(errs.KindValidationError, "hash integrity envelope", err)
	}
	result.IntegrityCheck = integrityCheck

	if rc.Audit != nil {
		action := "algorithm.completed"
		if !result.Success {
			action = "algorithm.failed"
		}
		rc.Audit.Record(rc.Ctx, "", action, "system", map[string]any{
			"algorithm_id": result.AlgorithmID, "algorithm_version": result.AlgorithmVersion,
			"run_id": result.RunID, "params_hash": result.ParamsHash, "result_hash": result.ResultHash,
			"integrity_check": result.IntegrityCheck, "duration_seconds": result.DurationSeconds,
			"input_count": len(result.InputHashes), "output_count": len(result.OutputHashes),
		})
	}

	return result, nil
}
