package relational

import (
	"context"
	"sort"
	"time"

	"github.com/evident-labs/evidcore/internal/errs"
	"github.com/evident-labs/evidcore/internal/model"
)

// Memory is an in-process Service fake used by algorithm and replay tests.
// It is not a production backend; production deployments use Postgres.
type Memory struct {
	Cases    map[[2]int64]model.Case
	Links    map[int64][]model.EvidenceRef
	Custody  map[int64][]model.CustodyRecord
	Runs     []model.AlgorithmRunRecord
}

// NewMemory constructs an empty fake.
func NewMemory() *Memory {
	return &Memory{
		Cases:   make(map[[2]int64]model.Case),
		Links:   make(map[int64][]model.EvidenceRef),
		Custody: make(map[int64][]model.CustodyRecord),
	}
}

func (m *Memory) LoadCase(_ context.Context, caseID, tenantID int64) (*model.Case, error) {
	c, ok := m.Cases[[2]int64{caseID, tenantID}]
	if !ok {
		return nil, errs.New(errs.KindCaseNotFoundOrDenied, "case not found or access denied")
	}
	return &c, nil
}

func (m *Memory) ListLinkedEvidence(_ context.Context, caseID int64) ([]model.EvidenceRef, error) {
	return m.Links[caseID], nil
}

func (m *Memory) ListCustody(_ context.Context, caseID int64, evidenceItemIDs []int64, since time.Time) ([]model.CustodyRecord, error) {
	want := make(map[int64]bool, len(evidenceItemIDs))
	for _, id := range evidenceItemIDs {
		want[id] = true
	}
	var out []model.CustodyRecord
	for _, rec := range m.Custody[caseID] {
		if want[rec.EvidenceItemID] && !rec.Timestamp.Before(since) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) StoreRunRecord(_ context.Context, record model.AlgorithmRunRecord) error {
	m.Runs = append(m.Runs, record)
	return nil
}

func (m *Memory) ListRunRecords(_ context.Context, caseID int64, algorithmFilter []string) ([]model.AlgorithmRunRecord, error) {
	allow := make(map[string]bool, len(algorithmFilter))
	for _, a := range algorithmFilter {
		allow[a] = true
	}
	var out []model.AlgorithmRunRecord
	for _, r := range m.Runs {
		if r.CaseID != caseID || !r.Success {
			continue
		}
		if len(algorithmFilter) > 0 && !allow[r.AlgorithmID] {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
