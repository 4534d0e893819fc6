package timeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/algorithms/timeline"
	"github.com/evident-labs/evidcore/internal/model"
	"github.com/evident-labs/evidcore/internal/relational"
)

func TestTimeline_MinorDriftAssessment(t *testing.T) {
	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}

	base := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	tsA := base
	tsB := base.Add(3200 * time.Millisecond) // 3.2s drift => "minor"

	rel.Links[1] = []model.EvidenceRef{
		{EvidenceItemID: 1, SHA256: "aaa", DeviceLabel: "phone-a", CollectedAt: &tsA},
		{EvidenceItemID: 2, SHA256: "bbb", DeviceLabel: "phone-b", CollectedAt: &tsB},
	}

	alg := timeline.Algorithm{}
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel}
	payload, err := alg.Execute(rc, model.AlgorithmParams{CaseID: 1, TenantID: 1})
	require.NoError(t, err)

	drifts := payload["clock_drift_analysis"].([]map[string]any)
	require.Len(t, drifts, 1)
	assert.Equal(t, "minor", drifts[0]["assessment"])
}

func TestTimeline_MissingTimestampIsUnknown(t *testing.T) {
	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}
	rel.Links[1] = []model.EvidenceRef{{EvidenceItemID: 1, SHA256: "aaa"}}

	alg := timeline.Algorithm{}
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel}
	payload, err := alg.Execute(rc, model.AlgorithmParams{CaseID: 1, TenantID: 1})
	require.NoError(t, err)

	entries := payload["timeline_entries"].([]map[string]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "unknown", entries[0]["timestamp_confidence"])
}
