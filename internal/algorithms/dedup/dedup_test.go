package dedup_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/algorithms/dedup"
	"github.com/evident-labs/evidcore/internal/model"
	"github.com/evident-labs/evidcore/internal/relational"
)

func TestDedup_ExactDuplicateGrouping(t *testing.T) {
	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}
	rel.Links[1] = []model.EvidenceRef{
		{EvidenceItemID: 1, EvidenceID: "ev-1", SHA256: "aaa", OriginalFilename: "a.txt"},
		{EvidenceItemID: 2, EvidenceID: "ev-2", SHA256: "aaa", OriginalFilename: "b.txt"},
		{EvidenceItemID: 3, EvidenceID: "ev-3", SHA256: "bbb", OriginalFilename: "c.txt"},
	}

	alg := dedup.Algorithm{}
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel}
	payload, err := alg.Execute(rc, model.AlgorithmParams{CaseID: 1, TenantID: 1, Extra: map[string]any{"near_dedup": false}})
	require.NoError(t, err)

	assert.Equal(t, 3, payload["total_items"])
	assert.Equal(t, 2, payload["unique_hashes"])
	assert.Equal(t, 1, payload["exact_duplicate_groups"])
}

func TestDedup_UnknownCaseFails(t *testing.T) {
	rel := relational.NewMemory()
	alg := dedup.Algorithm{}
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel}
	_, err := alg.Execute(rc, model.AlgorithmParams{CaseID: 99, TenantID: 1})
	require.Error(t, err)
}
