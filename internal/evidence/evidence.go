// Package evidence implements the content-addressed Evidence Store façade
// over a storage.Backend: ingest, derivative storage, manifest
// read-modify-write, and audit append, all serialized per evidence_id via
// a lock.Manager.
package evidence

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/evident-labs/evidcore/internal/canonical"
	"github.com/evident-labs/evidcore/internal/errs"
	"github.com/evident-labs/evidcore/internal/lock"
	"github.com/evident-labs/evidcore/internal/model"
	"github.com/evident-labs/evidcore/internal/storage"
)

// Store is the Evidence Store façade described in §4.3.
type Store struct {
	backend storage.Backend
	locks   lock.Manager
	now     func() time.Time
}

// New constructs a Store. now defaults to time.Now; tests may override it
// via WithClock.
func New(backend storage.Backend, locks lock.Manager) *Store {
	return &Store{backend: backend, locks: locks, now: time.Now}
}

// WithClock overrides the store's time source, for deterministic tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func originalKey(sha256Hex, filename string) string {
	return fmt.Sprintf("originals/%s/%s/%s", sha256Hex[:4], sha256Hex, filename)
}

func derivativeKey(sha256Hex, derivativeType, filename string) string {
	return fmt.Sprintf("derivatives/%s/%s/%s/%s", sha256Hex[:4], sha256Hex, derivativeType, filename)
}

func manifestKey(evidenceID string) string {
	return fmt.Sprintf("manifests/%s.json", evidenceID)
}

// Ingest streams r through a SHA-256 hasher and stores it content-addressed.
// If the original already exists under its hash, Ingest links to it rather
// than rewriting (IsNew=false). A fresh manifest is created if one does not
// already exist for this content. expectedSHA256, if non-empty, must match
// the computed hash or Ingest returns errs.KindIntegrityMismatch.
func (s *Store) Ingest(ctx context.Context, r io.Reader, originalFilename, mime, ingester, deviceLabel, expectedSHA256 string) (model.IngestResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.IngestResult{}, errs.Wrap(errs.KindStoreUnavailable, "read ingest stream", err)
	}
	sum := sha256.Sum256(data)
	sha := hex.EncodeToString(sum[:])
	if expectedSHA256 != "" && expectedSHA256 != sha {
		return model.IngestResult{}, errs.New(errs.KindIntegrityMismatch, "ingest: computed hash does not match expected_sha256")
	}

	key := originalKey(sha, originalFilename)
	exists, err := s.backend.Exists(key)
	if err != nil {
		return model.IngestResult{}, errs.Wrap(errs.KindStoreUnavailable, "check original existence", err)
	}
	isNew := !exists
	if isNew {
		if _, err := s.backend.Put(key, data, sha); err != nil {
			// KeyExists races with a concurrent ingest of the same bytes;
			// content-addressing makes that benign — treat as link-only.
			if kind, ok := errs.KindOf(err); !ok || kind != errs.KindKeyExists {
				return model.IngestResult{}, errs.Wrap(errs.KindStoreUnavailable, "store original", err)
			}
			isNew = false
		}
	}

	evidenceID, err := s.evidenceIDForSHA(sha)
	if err != nil {
		return model.IngestResult{}, err
	}

	unlock, err := s.locks.Lock(ctx, evidenceID)
	if err != nil {
		return model.IngestResult{}, errs.Wrap(errs.KindStoreUnavailable, "acquire manifest lock", err)
	}
	defer unlock()

	manifest, found, err := s.readManifest(evidenceID)
	if err != nil {
		return model.IngestResult{}, err
	}
	ts := s.now().UTC()
	if !found {
		manifest = &model.EvidenceManifest{
			EvidenceID:       evidenceID,
			SHA256:           sha,
			OriginalFilename: originalFilename,
			MIME:             mime,
			SizeBytes:        int64(len(data)),
			IngestedAt:       ts,
			IngestActor:      ingester,
			DeviceLabel:      deviceLabel,
			Derivatives:      []model.DerivativeDescriptor{},
			Audit:            []model.AuditEntry{},
		}
	}
	manifest.Audit = appendAudit(manifest.Audit, ts, "ingested", ingester, map[string]any{
		"is_new": isNew, "sha256": sha, "size_bytes": int64(len(data)),
	})
	if err := s.writeManifest(manifest); err != nil {
		return model.IngestResult{}, err
	}

	return model.IngestResult{EvidenceID: evidenceID, SHA256: sha, SizeBytes: int64(len(data)), IsNew: isNew}, nil
}

// evidenceIDForSHA derives a stable evidence_id from the content hash: the
// spec calls evidence_id "a freshly minted opaque identifier distinct from
// the SHA-256" but requires repeat ingests of the same bytes to resolve to
// one manifest, so the mint happens exactly once (on first ingest) and is
// then looked up deterministically via a small index object stored
// alongside the original.
func (s *Store) evidenceIDForSHA(sha string) (string, error) {
	indexKey := fmt.Sprintf("originals/%s/%s/.evidence_id", sha[:4], sha)
	res, err := s.backend.Get(indexKey)
	if err == nil {
		return string(res.Data), nil
	}
	if kind, ok := errs.KindOf(err); !ok || kind != errs.KindNotFound {
		return "", errs.Wrap(errs.KindStoreUnavailable, "load evidence id index", err)
	}
	id := uuid.NewString()
	if _, err := s.backend.Put(indexKey, []byte(id), ""); err != nil {
		if kind, ok := errs.KindOf(err); ok && kind == errs.KindKeyExists {
			// Lost a race to mint the index; re-read the winner's value.
			res, err := s.backend.Get(indexKey)
			if err != nil {
				return "", errs.Wrap(errs.KindStoreUnavailable, "reload evidence id index after race", err)
			}
			return string(res.Data), nil
		}
		return "", errs.Wrap(errs.KindStoreUnavailable, "mint evidence id", err)
	}
	return id, nil
}

// StoreDerivative writes a derivative artifact content-addressed under the
// owning original's hash, appends its descriptor to the manifest, and
// records a derivative_created audit entry.
func (s *Store) StoreDerivative(ctx context.Context, originalSHA256, derivativeType, filename string, data []byte, parameters map[string]any) (model.DerivativeDescriptor, error) {
	evidenceID, err := s.evidenceIDForSHA(originalSHA256)
	if err != nil {
		return model.DerivativeDescriptor{}, err
	}

	key := derivativeKey(originalSHA256, derivativeType, filename)
	sum := sha256.Sum256(data)
	sha := hex.EncodeToString(sum[:])
	if _, err := s.backend.Put(key, data, sha); err != nil {
		if kind, ok := errs.KindOf(err); !ok || kind != errs.KindKeyExists {
			return model.DerivativeDescriptor{}, errs.Wrap(errs.KindStoreUnavailable, "store derivative", err)
		}
	}

	unlock, err := s.locks.Lock(ctx, evidenceID)
	if err != nil {
		return model.DerivativeDescriptor{}, errs.Wrap(errs.KindStoreUnavailable, "acquire manifest lock", err)
	}
	defer unlock()

	manifest, found, err := s.readManifest(evidenceID)
	if err != nil {
		return model.DerivativeDescriptor{}, err
	}
	if !found {
		return model.DerivativeDescriptor{}, errs.New(errs.KindNotFound, "manifest not found for original")
	}

	ts := s.now().UTC()
	desc := model.DerivativeDescriptor{
		DerivativeType: derivativeType,
		Filename:       filename,
		SHA256:         sha,
		SizeBytes:      int64(len(data)),
		CreatedAt:      ts,
		Parameters:     parameters,
	}
	manifest.Derivatives = append(manifest.Derivatives, desc)
	manifest.Audit = appendAudit(manifest.Audit, ts, "derivative_created", "system", map[string]any{
		"derivative_type": derivativeType, "filename": filename, "sha256": sha,
	})
	if err := s.writeManifest(manifest); err != nil {
		return model.DerivativeDescriptor{}, err
	}
	return desc, nil
}

// LoadManifest reads and deserializes the manifest for evidenceID. Returns
// errs.KindNotFound if it does not exist.
func (s *Store) LoadManifest(evidenceID string) (*model.EvidenceManifest, error) {
	manifest, found, err := s.readManifest(evidenceID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.New(errs.KindNotFound, "manifest not found")
	}
	return manifest, nil
}

// AppendAudit appends an audit entry to the evidence_id's manifest under
// lock, guaranteeing the resulting timestamp sequence is monotonically
// non-decreasing by clamping to max(now, last_entry_ts).
func (s *Store) AppendAudit(ctx context.Context, evidenceID, action, actor string, details map[string]any) error {
	unlock, err := s.locks.Lock(ctx, evidenceID)
	if err != nil {
		return errs.Wrap(errs.KindStoreUnavailable, "acquire manifest lock", err)
	}
	defer unlock()

	manifest, found, err := s.readManifest(evidenceID)
	if err != nil {
		return err
	}
	if !found {
		return errs.New(errs.KindNotFound, "manifest not found")
	}
	ts := s.now().UTC()
	manifest.Audit = appendAudit(manifest.Audit, ts, action, actor, details)
	return s.writeManifest(manifest)
}

// Get returns the raw bytes stored under key (an original or derivative
// path returned by OriginalPath/DerivativePath).
func (s *Store) Get(key string) ([]byte, error) {
	res, err := s.backend.Get(key)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// appendAudit enforces the monotonic-timestamp invariant from §4.3.
func appendAudit(entries []model.AuditEntry, ts time.Time, action, actor string, details map[string]any) []model.AuditEntry {
	if len(entries) > 0 {
		last := entries[len(entries)-1].Timestamp
		if ts.Before(last) {
			ts = last
		}
	}
	return append(entries, model.AuditEntry{Timestamp: ts, Action: action, Actor: actor, Details: details})
}

// OriginalPath resolves an item's original to a fetchable key for the
// configured backend. Resolution of the stored filename requires a manifest lookup,
// so callers pass the evidenceID whose manifest names the original.
func (s *Store) OriginalPath(evidenceID string) (string, error) {
	manifest, err := s.LoadManifest(evidenceID)
	if err != nil {
		return "", err
	}
	return originalKey(manifest.SHA256, manifest.OriginalFilename), nil
}

// DerivativePath resolves (evidenceID, derivativeType, filename) to a
// fetchable key, validating the derivative is listed in the manifest.
func (s *Store) DerivativePath(evidenceID, derivativeType, filename string) (string, error) {
	manifest, err := s.LoadManifest(evidenceID)
	if err != nil {
		return "", err
	}
	for _, d := range manifest.Derivatives {
		if d.DerivativeType == derivativeType && d.Filename == filename {
			return derivativeKey(manifest.SHA256, derivativeType, filename), nil
		}
	}
	return "", errs.New(errs.KindNotFound, "derivative not listed in manifest")
}

func (s *Store) readManifest(evidenceID string) (*model.EvidenceManifest, bool, error) {
	res, err := s.backend.Get(manifestKey(evidenceID))
	if err != nil {
		if kind, ok := errs.KindOf(err); ok && kind == errs.KindNotFound {
			return nil, false, nil
		}
		return nil, false, errs.Wrap(errs.KindStoreUnavailable, "load manifest", err)
	}
	var manifest model.EvidenceManifest
	if err := json.NewDecoder(bytes.NewReader(res.Data)).Decode(&manifest); err != nil {
		return nil, false, errs.Wrap(errs.KindStoreUnavailable, "decode manifest", err)
	}
	return &manifest, true, nil
}

func (s *Store) writeManifest(manifest *model.EvidenceManifest) error {
	data, err := canonical.Canonical(manifest)
	if err != nil {
		return errs.Wrap(errs.KindStoreUnavailable, "encode manifest", err)
	}
	key := manifestKey(manifest.EvidenceID)
	if exists, err := s.backend.Exists(key); err != nil {
		return errs.Wrap(errs.KindStoreUnavailable, "check manifest existence", err)
	} else if exists {
		if _, err := s.backend.Delete(key); err != nil {
			return errs.Wrap(errs.KindStoreUnavailable, "replace manifest", err)
		}
	}
	if _, err := s.backend.Put(key, data, ""); err != nil {
		return errs.Wrap(errs.KindStoreUnavailable, "store manifest", err)
	}
	return nil
}
