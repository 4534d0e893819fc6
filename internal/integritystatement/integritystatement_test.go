package integritystatement_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evident-labs/evidcore/internal/integritystatement"
)

func baseRequest() integritystatement.Request {
	return integritystatement.Request{
		Scope: "CASE", ScopeID: "CASE-2026-001",
		ManifestSHA256: "abc123", ManifestFilename: "manifest.json",
		GeneratedAt: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
		StatementID: "IS-20260210120000-deadbeef",
	}
}

func TestGenerate_IsByteIdenticalAcrossCalls(t *testing.T) {
	r1, err := integritystatement.Generate(baseRequest())
	require.NoError(t, err)
	r2, err := integritystatement.Generate(baseRequest())
	require.NoError(t, err)

	assert.Equal(t, r1.Text, r2.Text)
	assert.Equal(t, r1.TextSHA256, r2.TextSHA256)
}

func TestGenerate_EmbedsVerifiableSelfHash(t *testing.T) {
	res, err := integritystatement.Generate(baseRequest())
	require.NoError(t, err)
	assert.Contains(t, res.Text, res.TextSHA256)
	assert.True(t, integritystatement.Verify(res.Text, selfHashLine(res.Text)))
}

func TestGenerate_NeverContainsUnqualifiedLegalAdvice(t *testing.T) {
	res, err := integritystatement.Generate(baseRequest())
	require.NoError(t, err)
	idx := indexOf(res.Text, "legal advice")
	require.GreaterOrEqual(t, idx, 13)
	assert.Equal(t, " no ", res.Text[idx-4:idx])
}

func TestGenerate_RequiresStatementID(t *testing.T) {
	req := baseRequest()
	req.StatementID = ""
	_, err := integritystatement.Generate(req)
	assert.Error(t, err)
}

func selfHashLine(text string) string {
	idx := indexOf(text, "Self-hash of this statement: ")
	if idx < 0 {
		return ""
	}
	rest := text[idx+len("Self-hash of this statement: "):]
	end := indexOf(rest, "\n")
	if end < 0 {
		end = len(rest)
	}
	return rest[:end]
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
