package bates_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/algorithms/bates"
	"github.com/evident-labs/evidcore/internal/evidence"
	"github.com/evident-labs/evidcore/internal/lock"
	"github.com/evident-labs/evidcore/internal/model"
	"github.com/evident-labs/evidcore/internal/relational"
	"github.com/evident-labs/evidcore/internal/storage"
)

func TestBates_GeneratesSequentialNumbersSortedByID(t *testing.T) {
	backend, err := storage.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	store := evidence.New(backend, lock.NewInMemory())

	first, err := store.Ingest(context.Background(), strings.NewReader("AAA"), "a.txt", "text/plain", "alice", "", "")
	require.NoError(t, err)
	second, err := store.Ingest(context.Background(), strings.NewReader("BBB"), "b.txt", "text/plain", "alice", "", "")
	require.NoError(t, err)

	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}
	rel.Links[1] = []model.EvidenceRef{
		{EvidenceItemID: 1, EvidenceID: first.EvidenceID, SHA256: first.SHA256, OriginalFilename: "a.txt"},
		{EvidenceItemID: 2, EvidenceID: second.EvidenceID, SHA256: second.SHA256, OriginalFilename: "b.txt"},
	}

	alg := bates.Algorithm{}
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel, Store: store, Derivatives: store}
	payload, err := alg.Execute(rc, model.AlgorithmParams{CaseID: 1, TenantID: 1, Extra: map[string]any{"prefix": "CASE", "number_width": float64(4)}})
	require.NoError(t, err)

	exhibits := payload["exhibits"].([]map[string]any)
	require.Len(t, exhibits, 2)
	assert.Equal(t, "CASE-0001", exhibits[0]["bates_number"])
	assert.Equal(t, "CASE-0002", exhibits[1]["bates_number"])
	assert.Equal(t, "generated", exhibits[0]["status"])
}
