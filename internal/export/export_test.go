package export_test

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/algorithms"
	"github.com/evident-labs/evidcore/internal/evidence"
	"github.com/evident-labs/evidcore/internal/export"
	"github.com/evident-labs/evidcore/internal/lock"
	"github.com/evident-labs/evidcore/internal/model"
	"github.com/evident-labs/evidcore/internal/relational"
	"github.com/evident-labs/evidcore/internal/storage"
)

func TestBuilder_BuildProducesSealedPackage(t *testing.T) {
	backend, err := storage.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	store := evidence.New(backend, lock.NewInMemory())

	ingested, err := store.Ingest(context.Background(), strings.NewReader("evidence contents"), "a.txt", "text/plain", "alice", "", "")
	require.NoError(t, err)

	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}
	rel.Links[1] = []model.EvidenceRef{
		{EvidenceItemID: 1, EvidenceID: ingested.EvidenceID, SHA256: ingested.SHA256, OriginalFilename: "a.txt"},
	}

	reg := algorithms.NewRegistry(nil)
	rc := algorithm.Context{Ctx: context.Background(), Store: store, Derivatives: store, Relational: rel}
	builder := export.Builder{Registry: reg}

	result, err := builder.Build(rc, 1, 1, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotEmpty(t, result.SealHash)
	assert.Greater(t, result.TotalFiles, 0)

	zr, err := zip.NewReader(bytes.NewReader(result.PackageBytes), int64(len(result.PackageBytes)))
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.True(t, names["SEAL.json"])
	assert.True(t, names["SEAL_HASH.txt"])
	assert.True(t, names["ALGORITHM_VERSIONS.json"])
	assert.True(t, names["audit_log.json"])
	assert.True(t, names["INTEGRITY_STATEMENT.txt"])
	assert.True(t, names["reports/integrity_sweep_report.json"])
}
