// Package model defines the core data types shared across the evidence
// store, algorithm framework, replay harness, and export builder. Every
// type here is canonicalizable: its JSON struct tags define the exact
// shape that canonical.Hash sees.
package model

import "time"

// DerivativeDescriptor describes one byte artifact produced from an
// original. Derivatives reference exactly one original by hash; there is
// no derivative-of-derivative chain stored at this layer.
type DerivativeDescriptor struct {
	DerivativeType string            `json:"derivative_type"`
	Filename       string            `json:"filename"`
	SHA256         string            `json:"sha256"`
	SizeBytes      int64             `json:"size_bytes"`
	CreatedAt      time.Time         `json:"created_at"`
	Parameters     map[string]any    `json:"parameters,omitempty"`
}

// AuditEntry is one append-only event in a manifest's custody trail.
// Invariant: timestamps within a manifest are monotonically non-decreasing.
type AuditEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Details   map[string]any `json:"details,omitempty"`
}

// EvidenceManifest is the per-identity record of ingest metadata,
// derivatives, and audit trail. It is the only mutable structure in the
// evidence core, and mutations are strictly append-only.
type EvidenceManifest struct {
	EvidenceID       string                 `json:"evidence_id"`
	SHA256           string                 `json:"sha256"`
	OriginalFilename string                 `json:"original_filename"`
	MIME             string                 `json:"mime"`
	SizeBytes        int64                  `json:"size_bytes"`
	IngestedAt       time.Time              `json:"ingested_at"`
	IngestActor      string                 `json:"ingest_actor"`
	DeviceLabel      string                 `json:"device_label,omitempty"`
	Derivatives      []DerivativeDescriptor `json:"derivatives"`
	Audit            []AuditEntry           `json:"audit"`
}

// IngestResult is returned by Store.Ingest.
type IngestResult struct {
	EvidenceID string `json:"evidence_id"`
	SHA256     string `json:"sha256"`
	SizeBytes  int64  `json:"size_bytes"`
	IsNew      bool   `json:"is_new"`
}

// AlgorithmParams is the immutable input to a single algorithm run.
// Canonicalizable: params_hash = canonical.Hash(params).
type AlgorithmParams struct {
	CaseID    int64          `json:"case_id"`
	TenantID  int64          `json:"tenant_id"`
	ActorID   *int64         `json:"actor_id,omitempty"`
	ActorName string         `json:"actor_name,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// AlgorithmResult is the self-verifying envelope every algorithm run
// produces. IntegrityCheck is the hash of the canonical form of every
// other field except RunID, StartedAt, CompletedAt and DurationSeconds;
// ResultHash is the hash of the canonical Payload alone.
// StartedAt/CompletedAt/Duration are framework-level and are excluded from
// ResultHash — no wall-clock value may enter Payload.
type AlgorithmResult struct {
	AlgorithmID      string         `json:"algorithm_id"`
	AlgorithmVersion string         `json:"algorithm_version"`
	RunID            string         `json:"run_id"`
	InputHashes      []string       `json:"input_hashes"`
	OutputHashes     []string       `json:"output_hashes"`
	ParamsHash       string         `json:"params_hash"`
	ResultHash       string         `json:"result_hash"`
	Payload          map[string]any `json:"payload"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      time.Time      `json:"completed_at"`
	DurationSeconds  float64        `json:"duration_seconds"`
	Success          bool           `json:"success"`
	Error            string         `json:"error,omitempty"`
	Warnings         []string       `json:"warnings,omitempty"`
	IntegrityCheck   string         `json:"integrity_check"`
}

// AlgorithmRunRecord is the persisted form of an AlgorithmResult, scoped to
// a case/tenant, used as the replay manifest.
type AlgorithmRunRecord struct {
	RunID            string         `json:"run_id"`
	CaseID           int64          `json:"case_id"`
	TenantID         int64          `json:"tenant_id"`
	AlgorithmID      string         `json:"algorithm_id"`
	AlgorithmVersion string         `json:"algorithm_version"`
	ParamsJSON       string         `json:"params_json"`
	ParamsHash       string         `json:"params_hash"`
	ResultHash       string         `json:"result_hash"`
	IntegrityCheck   string         `json:"integrity_check"`
	Success          bool           `json:"success"`
	CreatedAt        time.Time      `json:"created_at"`
}

// ProvenanceEdge is a directed labeled link in the provenance DAG.
type ProvenanceEdge struct {
	SourceHash       string         `json:"source_hash"`
	TargetHash       string         `json:"target_hash"`
	Transformation   string         `json:"transformation"`
	AlgorithmID      string         `json:"algorithm_id,omitempty"`
	AlgorithmVersion string         `json:"algorithm_version,omitempty"`
	RunID            string         `json:"run_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at,omitempty"`
	Parameters       map[string]any `json:"parameters,omitempty"`
}

// SealDocument is the binding file that hashes every entry in an export
// archive.
type SealDocument struct {
	SealVersion             string            `json:"seal_version"`
	CaseID                  int64             `json:"case_id"`
	TenantID                int64             `json:"tenant_id"`
	GeneratedAt             time.Time         `json:"generated_at"`
	FileManifest            map[string]string `json:"file_manifest"`
	FileCount               int               `json:"file_count"`
	ManifestHash            string            `json:"manifest_hash"`
	AlgorithmSummary        []AlgorithmSummaryEntry `json:"algorithm_summary"`
	AlgorithmVersions       map[string]string `json:"algorithm_versions"`
	VerificationInstructions string          `json:"verification_instructions"`
}

// AlgorithmSummaryEntry is one line of the seal's per-algorithm summary.
type AlgorithmSummaryEntry struct {
	AlgorithmID    string `json:"algorithm_id"`
	Version        string `json:"version"`
	RunID          string `json:"run_id"`
	Success        bool   `json:"success"`
	ResultHash     string `json:"result_hash"`
	ParamsHash     string `json:"params_hash"`
	IntegrityCheck string `json:"integrity_check"`
	InputCount     int    `json:"input_count"`
	OutputCount    int    `json:"output_count"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// EvidenceRef is what the external relational metadata service returns
// when listing evidence linked to a case.
type EvidenceRef struct {
	EvidenceItemID   int64      `json:"evidence_item_id"`
	EvidenceID       string     `json:"evidence_id"` // evidence-store manifest ID
	SHA256           string     `json:"sha256"`
	OriginalFilename string     `json:"original_filename"`
	FileType         string     `json:"file_type"`
	FileSizeBytes    int64      `json:"file_size_bytes"`
	CollectedAt      *time.Time `json:"collected_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	IsRedacted       bool       `json:"is_redacted"`
	DeviceLabel      string     `json:"device_label,omitempty"`
	DeviceType       string     `json:"device_type,omitempty"`
	DurationSeconds  *float64   `json:"duration_seconds,omitempty"`
}

// CustodyRecord is one row from the relational service's audit/custody log.
type CustodyRecord struct {
	EvidenceItemID int64     `json:"evidence_item_id"`
	Action         string    `json:"action"`
	ActorID        *int64    `json:"actor_id,omitempty"`
	ActorName      string    `json:"actor_name"`
	Timestamp      time.Time `json:"timestamp"`
	IPAddress      string    `json:"ip_address,omitempty"`
	HashAfter      string    `json:"hash_after,omitempty"`
}

// Case is the minimal projection of the external relational service's
// legal-case row that this core needs for tenant scoping.
type Case struct {
	CaseID   int64 `json:"case_id"`
	TenantID int64 `json:"tenant_id"`
}
