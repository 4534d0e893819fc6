package provenance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/algorithms/provenance"
	"github.com/evident-labs/evidcore/internal/model"
	"github.com/evident-labs/evidcore/internal/relational"
)

func TestProvenance_BuildsDeterministicGraph(t *testing.T) {
	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}
	rel.Links[1] = []model.EvidenceRef{
		{EvidenceItemID: 1, EvidenceID: "ev-1", SHA256: "aaa", OriginalFilename: "a.txt"},
	}

	alg := provenance.Algorithm{}
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel}

	p1, err := alg.Execute(rc, model.AlgorithmParams{CaseID: 1, TenantID: 1})
	require.NoError(t, err)
	p2, err := alg.Execute(rc, model.AlgorithmParams{CaseID: 1, TenantID: 1})
	require.NoError(t, err)

	assert.Equal(t, p1["graph_hash"], p2["graph_hash"])
	stats := p1["statistics"].(map[string]any)
	assert.Equal(t, 1, stats["originals"])
}
