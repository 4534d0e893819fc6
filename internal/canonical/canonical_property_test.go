//go:build property
// +build property

package canonical_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/evident-labs/evidcore/internal/canonical"
)

// TestHash_InsensitiveToMapKeyOrder verifies that two maps built from the
// same (key, value) pairs in different insertion orders always canonicalize
// and hash identically — the core guarantee every result_hash/params_hash
// comparison in the replay harness depends on.
func TestHash_InsensitiveToMapKeyOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("canonical hash does not depend on map insertion order", prop.ForAll(
		func(keys []string, values []string) bool {
			pairs := make(map[string]string)
			for i := 0; i < len(keys) && i < len(values); i++ {
				if keys[i] != "" {
					pairs[keys[i]] = values[i]
				}
			}
			if len(pairs) == 0 {
				return true
			}

			forward := make(map[string]any, len(pairs))
			for k, v := range pairs {
				forward[k] = v
			}
			hash1, err1 := canonical.Hash(forward)

			reversed := make(map[string]any, len(pairs))
			var rk []string
			for k := range pairs {
				rk = append(rk, k)
			}
			for i := len(rk) - 1; i >= 0; i-- {
				reversed[rk[i]] = pairs[rk[i]]
			}
			hash2, err2 := canonical.Hash(reversed)

			if err1 != nil || err2 != nil {
				return false
			}
			return hash1 == hash2
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestHash_IsDeterministicAcrossRepeatedCalls verifies Hash(v) is a pure
// function of v: calling it twice on an identical value always agrees.
func TestHash_IsDeterministicAcrossRepeatedCalls(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("hashing the same value twice agrees", prop.ForAll(
		func(a, b, c string) bool {
			v := map[string]any{"a": a, "b": b, "c": c}
			h1, err1 := canonical.Hash(v)
			h2, err2 := canonical.Hash(v)
			if err1 != nil || err2 != nil {
				return false
			}
			return h1 == h2
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestHash_SliceOrderIsSignificant verifies that, unlike map keys, slice
// element order DOES change the hash — canonicalization preserves array
// order since it is semantically meaningful (e.g. ordered timeline entries).
func TestHash_SliceOrderIsSignificant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("reordering a non-palindromic slice changes the hash", prop.ForAll(
		func(a, b string) bool {
			if a == b {
				return true
			}
			h1, err1 := canonical.Hash([]string{a, b})
			h2, err2 := canonical.Hash([]string{b, a})
			if err1 != nil || err2 != nil {
				return false
			}
			return h1 != h2
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
