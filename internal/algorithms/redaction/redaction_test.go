package redaction_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/algorithms/redaction"
	"github.com/evident-labs/evidcore/internal/evidence"
	"github.com/evident-labs/evidcore/internal/lock"
	"github.com/evident-labs/evidcore/internal/model"
	"github.com/evident-labs/evidcore/internal/relational"
	"github.com/evident-labs/evidcore/internal/storage"
)

func TestRedaction_PassesWhenDerivativeDiffersAndNoLeakage(t *testing.T) {
	backend, err := storage.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	store := evidence.New(backend, lock.NewInMemory())

	res, err := store.Ingest(context.Background(), strings.NewReader("confidential contents over fifty characters long here"), "doc.txt", "text/plain", "alice", "", "")
	require.NoError(t, err)
	_, err = store.StoreDerivative(context.Background(), res.SHA256, "redacted", "doc_redacted.txt", []byte("REDACTED"), nil)
	require.NoError(t, err)

	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}
	rel.Links[1] = []model.EvidenceRef{
		{EvidenceItemID: 1, EvidenceID: res.EvidenceID, SHA256: res.SHA256, OriginalFilename: "doc.txt", IsRedacted: true},
	}

	alg := redaction.Algorithm{}
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel, Store: store}
	payload, err := alg.Execute(rc, model.AlgorithmParams{CaseID: 1, TenantID: 1})
	require.NoError(t, err)

	items := payload["items"].([]map[string]any)
	require.Len(t, items, 1)
	assert.Equal(t, "pass", items[0]["status"])
}

func TestRedaction_FailsWhenDerivativeIdenticalToOriginal(t *testing.T) {
	backend, err := storage.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	store := evidence.New(backend, lock.NewInMemory())

	res, err := store.Ingest(context.Background(), strings.NewReader("AAA"), "doc.txt", "text/plain", "alice", "", "")
	require.NoError(t, err)
	_, err = store.StoreDerivative(context.Background(), res.SHA256, "redacted", "doc_redacted.txt", []byte("AAA"), nil)
	require.NoError(t, err)

	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}
	rel.Links[1] = []model.EvidenceRef{
		{EvidenceItemID: 1, EvidenceID: res.EvidenceID, SHA256: res.SHA256, OriginalFilename: "doc.txt", IsRedacted: true},
	}

	alg := redaction.Algorithm{}
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel, Store: store}
	payload, err := alg.Execute(rc, model.AlgorithmParams{CaseID: 1, TenantID: 1})
	require.NoError(t, err)

	items := payload["items"].([]map[string]any)
	require.Len(t, items, 1)
	assert.Equal(t, "fail", items[0]["status"])
}
