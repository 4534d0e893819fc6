//go:build property
// +build property

package integritystatement_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/evident-labs/evidcore/internal/integritystatement"
)

// TestGenerate_SelfHashAlwaysVerifies checks, for arbitrary non-empty
// StatementID/ScopeID/ManifestSHA256 values, that the embedded self-hash
// always round-trips through Verify — the core guarantee an auditor relies
// on when checking a statement's own integrity without external state.
func TestGenerate_SelfHashAlwaysVerifies(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("generated statement's self-hash verifies", prop.ForAll(
		func(statementID, scopeID, manifestHash string) bool {
			if statementID == "" {
				return true
			}
			res, err := integritystatement.Generate(integritystatement.Request{
				Scope: "COURT_PACKAGE", ScopeID: scopeID, ManifestSHA256: manifestHash,
				GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), StatementID: statementID,
			})
			if err != nil {
				return false
			}
			return integritystatement.Verify(res.Text, res.TextSHA256)
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestGenerate_IsByteIdenticalForIdenticalInputs checks that Generate is a
// pure function of its Request: calling it twice with the same fields
// (including the same GeneratedAt instant) always produces identical text.
func TestGenerate_IsByteIdenticalForIdenticalInputs(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Generate(req) == Generate(req)", prop.ForAll(
		func(statementID, scopeID string) bool {
			if statementID == "" {
				return true
			}
			req := integritystatement.Request{
				Scope: "COURT_PACKAGE", ScopeID: scopeID, ManifestSHA256: "deadbeef",
				GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), StatementID: statementID,
			}
			first, err1 := integritystatement.Generate(req)
			second, err2 := integritystatement.Generate(req)
			if err1 != nil || err2 != nil {
				return false
			}
			return first.Text == second.Text && first.TextSHA256 == second.TextSHA256
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
