// Package relational defines the narrow interface the evidence core uses
// to consult the external relational metadata service (cases, linked
// evidence, custody log, run records). LoadCase takes both case_id and
// tenant_id and fails with CaseNotFoundOrDenied when the pair does not
// match; the other queries take case_id alone and do not filter by tenant.
// Both IDs are opaque scalars owned by the caller's system of record.
package relational

import (
	"context"
	"time"

	"github.com/evident-labs/evidcore/internal/model"
)

// Service is the external collaborator contract from spec §6.
type Service interface {
	LoadCase(ctx context.Context, caseID, tenantID int64) (*model.Case, error)
	ListLinkedEvidence(ctx context.Context, caseID int64) ([]model.EvidenceRef, error)
	ListCustody(ctx context.Context, caseID int64, evidenceItemIDs []int64, since time.Time) ([]model.CustodyRecord, error)
	StoreRunRecord(ctx context.Context, record model.AlgorithmRunRecord) error
	ListRunRecords(ctx context.Context, caseID int64, algorithmFilter []string) ([]model.AlgorithmRunRecord, error)
}
