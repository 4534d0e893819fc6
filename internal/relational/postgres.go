package relational

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/evident-labs/evidcore/internal/errs"
	"github.com/evident-labs/evidcore/internal/model"
)

// schema is applied idempotently on Init. legal_cases and algorithm_runs
// carry tenant_id, and LoadCase filters by it explicitly; the other
// queries filter by case_id (or evidence_item_id) only. Row-level security
// is enabled on legal_cases, but this schema defines no policies for it.
const schema = `
CREATE TABLE IF NOT EXISTS legal_cases (
	case_id BIGINT PRIMARY KEY,
	tenant_id BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS case_evidence (
	case_id BIGINT NOT NULL,
	evidence_item_id BIGINT NOT NULL,
	unlinked_at TIMESTAMPTZ,
	PRIMARY KEY (case_id, evidence_item_id)
);

CREATE TABLE IF NOT EXISTS evidence_items (
	evidence_item_id BIGINT PRIMARY KEY,
	evidence_id TEXT NOT NULL,
	sha256 TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	file_type TEXT,
	file_size_bytes BIGINT,
	collected_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	is_redacted BOOLEAN NOT NULL DEFAULT FALSE,
	device_label TEXT,
	device_type TEXT,
	duration_seconds DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS chain_of_custody (
	id BIGSERIAL PRIMARY KEY,
	evidence_item_id BIGINT NOT NULL,
	action TEXT NOT NULL,
	actor_id BIGINT,
	actor_name TEXT,
	action_timestamp TIMESTAMPTZ NOT NULL,
	ip_address TEXT,
	hash_after TEXT
);

CREATE TABLE IF NOT EXISTS algorithm_runs (
	run_id TEXT PRIMARY KEY,
	case_id BIGINT NOT NULL,
	tenant_id BIGINT NOT NULL,
	algorithm_id TEXT NOT NULL,
	algorithm_version TEXT NOT NULL,
	params_json TEXT NOT NULL,
	params_hash TEXT NOT NULL,
	result_hash TEXT NOT NULL,
	integrity_check TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

ALTER TABLE legal_cases ENABLE ROW LEVEL SECURITY;
`

// Postgres is the reference relational.Service adapter backed by
// database/sql + lib/pq, grounded on the teacher's PostgresLedger.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection using dsn ("postgres://...").
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.KindStoreUnavailable, "open postgres", err)
	}
	return &Postgres{db: db}, nil
}

// Init applies the schema. Safe to call repeatedly.
func (p *Postgres) Init(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return errs.Wrap(errs.KindStoreUnavailable, "apply schema", err)
	}
	return nil
}

func (p *Postgres) LoadCase(ctx context.Context, caseID, tenantID int64) (*model.Case, error) {
	var c model.Case
	row := p.db.QueryRowContext(ctx,
		`SELECT case_id, tenant_id FROM legal_cases WHERE case_id = $1 AND tenant_id = $2`,
		caseID, tenantID)
	if err := row.Scan(&c.CaseID, &c.TenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.New(errs.KindCaseNotFoundOrDenied, "case not found or access denied")
		}
		return nil, errs.Wrap(errs.KindStoreUnavailable, "load case", err)
	}
	return &c, nil
}

func (p *Postgres) ListLinkedEvidence(ctx context.Context, caseID int64) ([]model.EvidenceRef, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT ei.evidence_item_id, ei.evidence_id, ei.sha256, ei.original_filename,
		       ei.file_type, ei.file_size_bytes, ei.collected_at, ei.created_at, ei.is_redacted,
		       COALESCE(ei.device_label, ''), COALESCE(ei.device_type, ''), ei.duration_seconds
		FROM case_evidence ce
		JOIN evidence_items ei ON ei.evidence_item_id = ce.evidence_item_id
		WHERE ce.case_id = $1 AND ce.unlinked_at IS NULL
		ORDER BY ei.evidence_item_id`, caseID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStoreUnavailable, "list linked evidence", err)
	}
	defer rows.Close()

	var refs []model.EvidenceRef
	for rows.Next() {
		var r model.EvidenceRef
		var collected sql.NullTime
		var duration sql.NullFloat64
		if err := rows.Scan(&r.EvidenceItemID, &r.EvidenceID, &r.SHA256, &r.OriginalFilename,
			&r.FileType, &r.FileSizeBytes, &collected, &r.CreatedAt, &r.IsRedacted,
			&r.DeviceLabel, &r.DeviceType, &duration); err != nil {
			return nil, errs.Wrap(errs.KindStoreUnavailable, "scan evidence row", err)
		}
		if collected.Valid {
			r.CollectedAt = &collected.Time
		}
		if duration.Valid {
			r.DurationSeconds = &duration.Float64
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func (p *Postgres) ListCustody(ctx context.Context, caseID int64, evidenceItemIDs []int64, since time.Time) ([]model.CustodyRecord, error) {
	if len(evidenceItemIDs) == 0 {
		return nil, nil
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT evidence_item_id, action, actor_id, COALESCE(actor_name, 'unknown'),
		       action_timestamp, COALESCE(ip_address, 'unknown'), COALESCE(hash_after, '')
		FROM chain_of_custody
		WHERE evidence_item_id = ANY($1) AND action_timestamp >= $2
		ORDER BY action_timestamp`, pq.Array(evidenceItemIDs), since)
	if err != nil {
		return nil, errs.Wrap(errs.KindStoreUnavailable, "list custody", err)
	}
	defer rows.Close()

	var records []model.CustodyRecord
	for rows.Next() {
		var r model.CustodyRecord
		var actorID sql.NullInt64
		if err := rows.Scan(&r.EvidenceItemID, &r.Action, &actorID, &r.ActorName,
			&r.Timestamp, &r.IPAddress, &r.HashAfter); err != nil {
			return nil, errs.Wrap(errs.KindStoreUnavailable, "scan custody row", err)
		}
		if actorID.Valid {
			r.ActorID = &actorID.Int64
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (p *Postgres) StoreRunRecord(ctx context.Context, record model.AlgorithmRunRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO algorithm_runs
			(run_id, case_id, tenant_id, algorithm_id, algorithm_version,
			 params_json, params_hash, result_hash, integrity_check, success, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (run_id) DO NOTHING`,
		record.RunID, record.CaseID, record.TenantID, record.AlgorithmID, record.AlgorithmVersion,
		record.ParamsJSON, record.ParamsHash, record.ResultHash, record.IntegrityCheck,
		record.Success, record.CreatedAt)
	if err != nil {
		return errs.Wrap(errs.KindStoreUnavailable, "store run record", err)
	}
	return nil
}

func (p *Postgres) ListRunRecords(ctx context.Context, caseID int64, algorithmFilter []string) ([]model.AlgorithmRunRecord, error) {
	query := `
		SELECT run_id, case_id, tenant_id, algorithm_id, algorithm_version,
		       params_json, params_hash, result_hash, integrity_check, success, created_at
		FROM algorithm_runs
		WHERE case_id = $1 AND success = TRUE`
	args := []any{caseID}
	if len(algorithmFilter) > 0 {
		query += ` AND algorithm_id = ANY($2)`
		args = append(args, pq.Array(algorithmFilter))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindStoreUnavailable, "list run records", err)
	}
	defer rows.Close()

	var records []model.AlgorithmRunRecord
	for rows.Next() {
		var r model.AlgorithmRunRecord
		if err := rows.Scan(&r.RunID, &r.CaseID, &r.TenantID, &r.AlgorithmID, &r.AlgorithmVersion,
			&r.ParamsJSON, &r.ParamsHash, &r.ResultHash, &r.IntegrityCheck, &r.Success, &r.CreatedAt); err != nil {
			return nil, errs.Wrap(errs.KindStoreUnavailable, "scan run record", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
