// Package algorithms is the wiring point binding every concrete algorithm
// implementation into an algorithm.Registry. Callers (the CLI, the replay
// harness) import this package for its side-effect-free constructor rather
// than importing each algorithms/<name> package directly.
package algorithms

import (
	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/algorithms/anomaly"
	"github.com/evident-labs/evidcore/internal/algorithms/bates"
	"github.com/evident-labs/evidcore/internal/algorithms/dedup"
	"github.com/evident-labs/evidcore/internal/algorithms/integrity"
	"github.com/evident-labs/evidcore/internal/algorithms/provenance"
	"github.com/evident-labs/evidcore/internal/algorithms/redaction"
	"github.com/evident-labs/evidcore/internal/algorithms/timeline"
)

// NewRegistry builds and freezes a registry containing every algorithm this
// core ships (A through G). warn is forwarded to algorithm.NewRegistry.
func NewRegistry(warn func(string)) *algorithm.Registry {
	reg := algorithm.NewRegistry(warn)
	for _, alg := range []algorithm.Algorithm{
		dedup.Algorithm{},
		provenance.Algorithm{},
		timeline.Algorithm{},
		integrity.Algorithm{},
		bates.Algorithm{},
		redaction.Algorithm{},
		anomaly.Algorithm{},
	} {
		_ = reg.Register(alg)
	}
	reg.Freeze()
	return reg
}
