// Package auditsink defines the external audit-collaborator contract from
// spec §6: a best-effort recorder of (evidence_id, action, actor, details)
// events whose failures never propagate to the caller.
package auditsink

import (
	"context"

	"github.com/evident-labs/evidcore/internal/evidence"
	"github.com/evident-labs/evidcore/internal/observability"
)

// Sink records an audit event. Implementations must never return an error
// to the caller for a failed record — failures are logged and swallowed,
// per §6's "best-effort; failures are logged but never propagated" rule.
type Sink interface {
	Record(ctx context.Context, evidenceID, action, actor string, details map[string]any)
}

// EvidenceStoreSink routes audit events into an evidence.Store's manifest
// audit trail when evidenceID is non-empty, and otherwise only logs (used
// by algorithm/replay events that are case-scoped rather than item-scoped).
type EvidenceStoreSink struct {
	store *evidence.Store
	obs   *observability.Provider
}

// New constructs a Sink backed by store. obs may be nil.
func New(store *evidence.Store, obs *observability.Provider) *EvidenceStoreSink {
	return &EvidenceStoreSink{store: store, obs: obs}
}

func (s *EvidenceStoreSink) Record(ctx context.Context, evidenceID, action, actor string, details map[string]any) {
	if evidenceID != "" {
		if err := s.store.AppendAudit(ctx, evidenceID, action, actor, details); err != nil {
			s.obs.Log().Warn("audit record failed", "evidence_id", evidenceID, "action", action, "error", err)
			return
		}
	}
	s.obs.Log().Info("audit event", "evidence_id", evidenceID, "action", action, "actor", actor)
}
