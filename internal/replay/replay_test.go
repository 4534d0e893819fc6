package replay_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/algorithms"
	"github.com/evident-labs/evidcore/internal/model"
	"github.com/evident-labs/evidcore/internal/relational"
	"github.com/evident-labs/evidcore/internal/replay"
)

func TestReplayCase_MatchesWhenStoreUnchanged(t *testing.T) {
	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}
	rel.Links[1] = []model.EvidenceRef{
		{EvidenceItemID: 1, EvidenceID: "ev-1", SHA256: "aaa", OriginalFilename: "a.txt"},
	}

	reg := algorithms.NewRegistry(nil)
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel}
	params := model.AlgorithmParams{CaseID: 1, TenantID: 1}
	alg, err := reg.Get("integrity_sweep", "")
	require.NoError(t, err)

	first, err := algorithm.Run(rc, alg, params, nil)
	require.NoError(t, err)

	paramsJSON, err := json.Marshal(params)
	require.NoError(t, err)
	rel.Runs = append(rel.Runs, model.AlgorithmRunRecord{
		RunID: first.RunID, CaseID: 1, TenantID: 1,
		AlgorithmID: first.AlgorithmID, AlgorithmVersion: first.AlgorithmVersion,
		ParamsJSON: string(paramsJSON), ParamsHash: first.ParamsHash,
		ResultHash: first.ResultHash, IntegrityCheck: first.IntegrityCheck, Success: true,
	})

	engine := replay.Engine{Registry: reg, Relational: rel}
	report, err := engine.ReplayCase(rc, 1, 1, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalRuns)
	assert.Equal(t, 1, report.Matched)
	assert.True(t, report.AllReproducible)
	assert.True(t, report.Verdicts[0].Match)
	assert.True(t, report.Verdicts[0].ParamsMatch)
	assert.True(t, report.Verdicts[0].IntegrityMatch)
}

func TestReplayCase_UnregisteredAlgorithmReportsError(t *testing.T) {
	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}
	rel.Runs = append(rel.Runs, model.AlgorithmRunRecord{
		RunID: "run-x", CaseID: 1, TenantID: 1, AlgorithmID: "nonexistent", AlgorithmVersion: "9.9.9",
		ParamsJSON: "{}", Success: true,
	})

	reg := algorithms.NewRegistry(nil)
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel}
	engine := replay.Engine{Registry: reg, Relational: rel}
	report, err := engine.ReplayCase(rc, 1, 1, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Errors)
	assert.False(t, report.AllReproducible)
	assert.NotEmpty(t, report.Verdicts[0].ReplayError)
}
