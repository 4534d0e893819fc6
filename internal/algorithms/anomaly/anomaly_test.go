package anomaly_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/algorithms/anomaly"
	"github.com/evident-labs/evidcore/internal/model"
	"github.com/evident-labs/evidcore/internal/relational"
)

func TestAnomaly_DownloadBurstDetected(t *testing.T) {
	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}
	rel.Links[1] = []model.EvidenceRef{{EvidenceItemID: 1, EvidenceID: "ev-1", SHA256: "aaa"}}

	base := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	var custody []model.CustodyRecord
	for i := 0; i < 5; i++ {
		custody = append(custody, model.CustodyRecord{
			EvidenceItemID: 1, Action: "download", ActorName: "bob",
			Timestamp: base.Add(time.Duration(i) * time.Minute), IPAddress: "10.0.0.1",
		})
	}
	rel.Custody[1] = custody

	alg := anomaly.Algorithm{}
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel}
	payload, err := alg.Execute(rc, model.AlgorithmParams{CaseID: 1, TenantID: 1, Extra: map[string]any{
		"reference_time": base.Add(time.Hour).Format(time.RFC3339),
	}})
	require.NoError(t, err)

	anomalies := payload["anomalies"].([]map[string]any)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "download_burst", anomalies[0]["type"])
	assert.Equal(t, "warning", anomalies[0]["severity"])
}

func TestAnomaly_OffHoursAccessCounted(t *testing.T) {
	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}
	rel.Links[1] = []model.EvidenceRef{{EvidenceItemID: 1, EvidenceID: "ev-1", SHA256: "aaa"}}

	base := time.Date(2026, 7, 15, 23, 0, 0, 0, time.UTC)
	var custody []model.CustodyRecord
	for i := 0; i < 5; i++ {
		custody = append(custody, model.CustodyRecord{
			EvidenceItemID: 1, Action: "view", ActorName: "carol",
			Timestamp: base.Add(time.Duration(i) * time.Hour * 24), IPAddress: "10.0.0.2",
		})
	}
	rel.Custody[1] = custody

	alg := anomaly.Algorithm{}
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel}
	payload, err := alg.Execute(rc, model.AlgorithmParams{CaseID: 1, TenantID: 1, Extra: map[string]any{
		"reference_time": base.Add(240 * time.Hour).Format(time.RFC3339),
	}})
	require.NoError(t, err)

	anomalies := payload["anomalies"].([]map[string]any)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "off_hours_access", anomalies[0]["type"])
	assert.Equal(t, "info", anomalies[0]["severity"])
	assert.Equal(t, "carol", anomalies[0]["actor"])
}

func TestAnomaly_NoReferenceTimeScansAllHistory(t *testing.T) {
	rel := relational.NewMemory()
	rel.Cases[[2]int64{1, 1}] = model.Case{CaseID: 1, TenantID: 1}
	rel.Links[1] = []model.EvidenceRef{{EvidenceItemID: 1, EvidenceID: "ev-1", SHA256: "aaa"}}
	rel.Custody[1] = []model.CustodyRecord{
		{EvidenceItemID: 1, Action: "view", ActorName: "dave", Timestamp: time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)},
	}

	alg := anomaly.Algorithm{}
	rc := algorithm.Context{Ctx: context.Background(), Relational: rel}
	payload, err := alg.Execute(rc, model.AlgorithmParams{CaseID: 1, TenantID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, payload["audit_entries_scanned"])
}
