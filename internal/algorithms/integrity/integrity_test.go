package integrity_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/algorithms/integrity"
	"github.com/evident-labs/evidcore/internal/evidence"
	"github.com/evident-labs/evidcore/internal/lock"
	"github.com/evident-labs/evidcore/internal/model"
	"github.com/evident-labs/evidcore/internal/relational"
	"github.com/evident-labs/evidcore/internal/storage"
)

func TestIntegrity_AllPassedWhenHashesMatch(t *testing.T) {
	backend, err := storage.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	store := evidence.New(backend, lock.NewInMemory())

	res, err := store.Ingest(context.Background(), strings.NewReader("AAA"), "file.txt", "text/plain", "alice", "", "")
	require.NoError(t, err)

	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}
	rel.Links[1] = []model.EvidenceRef{
		{EvidenceItemID: 1, EvidenceID: res.EvidenceID, SHA256: res.SHA256, OriginalFilename: "file.txt"},
	}

	alg := integrity.Algorithm{}
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel, Store: storeAdapter{store}}
	payload, err := alg.Execute(rc, model.AlgorithmParams{CaseID: 1, TenantID: 1})
	require.NoError(t, err)
	assert.True(t, payload["all_passed"].(bool))
}

func TestIntegrity_MissingWhenNoManifest(t *testing.T) {
	backend, err := storage.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	store := evidence.New(backend, lock.NewInMemory())

	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}
	rel.Links[1] = []model.EvidenceRef{
		{EvidenceItemID: 1, EvidenceID: "nonexistent", SHA256: "deadbeef", OriginalFilename: "file.txt"},
	}

	alg := integrity.Algorithm{}
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel, Store: storeAdapter{store}}
	payload, err := alg.Execute(rc, model.AlgorithmParams{CaseID: 1, TenantID: 1})
	require.NoError(t, err)
	assert.False(t, payload["all_passed"].(bool))
	summary := payload["summary"].(map[string]int)
	assert.Equal(t, 1, summary["missing"])
}

type storeAdapter struct{ s *evidence.Store }

func (a storeAdapter) LoadManifest(evidenceID string) (*model.EvidenceManifest, error) {
	return a.s.LoadManifest(evidenceID)
}
func (a storeAdapter) Get(key string) ([]byte, error) { return a.s.Get(key) }
