// Package staging implements Chunked Upload Staging (§4.8), grounded on
// original_source/services/chunked_upload.py: a filesystem-backed staging
// area, distinct from the evidence store, that assembles large uploads
// chunk-by-chunk before handing the assembled artifact to
// evidence.Store.Ingest. Paths are formed by joining the staging root with
// the staging ID (and, for the assembled file, the original filename);
// unlike internal/storage's LocalFS backend, neither is checked for
// escaping the root.
package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evident-labs/evidcore/internal/errs"
)

// MaxChunkSizeBytes is the largest single chunk the service accepts.
const MaxChunkSizeBytes = 10 * 1024 * 1024 // 10 MiB

// DefaultTimeout is how long an idle staging session is kept before
// CleanupExpired removes it.
const DefaultTimeout = 4 * time.Hour

// Session is the persisted metadata for one in-progress chunked upload.
type Session struct {
	StagingID        string    `json:"staging_id"`
	OriginalFilename string    `json:"original_filename"`
	TotalChunks      int       `json:"total_chunks"`
	TotalSize        int64     `json:"total_size"`
	ExpectedSHA256   string    `json:"expected_sha256"`
	CreatedAt        time.Time `json:"created_at"`
	ChunksReceived   []int     `json:"chunks_received"`
	UploaderID       *int64    `json:"uploader_id,omitempty"`
	DeviceLabel      string    `json:"device_label,omitempty"`
}

// FinalizeResult is the outcome of Finalize.
type FinalizeResult struct {
	Success       bool   `json:"success"`
	StagingID     string `json:"staging_id"`
	AssembledPath string `json:"assembled_path,omitempty"`
	SHA256        string `json:"sha256,omitempty"`
	SizeBytes     int64  `json:"size_bytes,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Service manages staging session directories under a root path.
type Service struct {
	root         string
	maxChunk     int64
	mu           sync.Mutex
	now          func() time.Time
}

// NewService creates (if needed) root and returns a Service rooted there.
func NewService(root string) (*Service, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.Wrap(errs.KindStoreUnavailable, "resolve staging root", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, errs.Wrap(errs.KindStoreUnavailable, "create staging root", err)
	}
	return &Service{root: abs, maxChunk: MaxChunkSizeBytes, now: func() time.Time { return time.Now().UTC() }}, nil
}

// WithClock overrides the time source, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) sessionDir(stagingID string) string {
	return filepath.Join(s.root, stagingID)
}

func (s *Service) sessionMetaPath(stagingID string) string {
	return filepath.Join(s.sessionDir(stagingID), "session.json")
}

func (s *Service) chunkPath(stagingID string, chunkIndex int) string {
	return filepath.Join(s.sessionDir(stagingID), "chunk_"+zeroPad(chunkIndex, 6))
}

// Init creates a new staging session and persists its metadata.
func (s *Service) Init(originalFilename string, totalChunks int, totalSize int64, expectedSHA256 string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := Session{
		StagingID: uuid.NewString(), OriginalFilename: originalFilename,
		TotalChunks: totalChunks, TotalSize: totalSize, ExpectedSHA256: expectedSHA256,
		CreatedAt: s.now(), ChunksReceived: []int{},
	}
	if err := os.MkdirAll(s.sessionDir(session.StagingID), 0o750); err != nil {
		return Session{}, errs.Wrap(errs.KindStoreUnavailable, "create session dir", err)
	}
	if err := s.saveSession(session); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *Service) saveSession(session Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindValidationError, "marshal session", err)
	}
	tmp := s.sessionMetaPath(session.StagingID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return errs.Wrap(errs.KindStoreUnavailable, "write session metadata", err)
	}
	if err := os.Rename(tmp, s.sessionMetaPath(session.StagingID)); err != nil {
		return errs.Wrap(errs.KindStoreUnavailable, "rename session metadata", err)
	}
	return nil
}

// LoadSession reads session metadata, or returns errs.KindNotFound if the
// session is missing or has already been cleaned up.
func (s *Service) LoadSession(stagingID string) (Session, error) {
	data, err := os.ReadFile(s.sessionMetaPath(stagingID))
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, errs.New(errs.KindNotFound, "staging session not found: "+stagingID)
		}
		return Session{}, errs.Wrap(errs.KindStoreUnavailable, "read session metadata", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, errs.Wrap(errs.KindValidationError, "decode session metadata", err)
	}
	return session, nil
}

// ReceiveChunk validates chunkIndex and streams r to the chunk's on-disk
// slot. Re-sending a chunk overwrites the prior bytes (idempotent).
func (s *Service) ReceiveChunk(stagingID string, chunkIndex int, r io.Reader) error {
	session, err := s.LoadSession(stagingID)
	if err != nil {
		return err
	}
	if chunkIndex < 0 || chunkIndex >= session.TotalChunks {
		return errs.New(errs.KindValidationError, "chunk index out of range")
	}

	path := s.chunkPath(stagingID, chunkIndex)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errs.Wrap(errs.KindStoreUnavailable, "create chunk temp file", err)
	}
	written, copyErr := io.CopyN(f, r, s.maxChunk+1)
	closeErr := f.Close()
	if copyErr != nil && copyErr != io.EOF {
		_ = os.Remove(tmp)
		return errs.Wrap(errs.KindStoreUnavailable, "write chunk", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return errs.Wrap(errs.KindStoreUnavailable, "close chunk file", closeErr)
	}
	if written > s.maxChunk {
		_ = os.Remove(tmp)
		return errs.New(errs.KindValidationError, "chunk exceeds max chunk size")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errs.Wrap(errs.KindStoreUnavailable, "rename chunk into place", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session, err = s.LoadSession(stagingID)
	if err != nil {
		return err
	}
	if !containsInt(session.ChunksReceived, chunkIndex) {
		session.ChunksReceived = append(session.ChunksReceived, chunkIndex)
		sort.Ints(session.ChunksReceived)
		if err := s.saveSession(session); err != nil {
			return err
		}
	}
	return nil
}

// Finalize requires every chunk index to be present, concatenates them in
// ascending order while hashing, and verifies against ExpectedSHA256/
// TotalSize when those were supplied at Init. On any mismatch the
// assembled file is deleted and FinalizeResult.Success is false.
func (s *Service) Finalize(stagingID string) (FinalizeResult, error) {
	session, err := s.LoadSession(stagingID)
	if err != nil {
		return FinalizeResult{}, err
	}

	missing := missingChunks(session)
	if len(missing) > 0 {
		return FinalizeResult{Success: false, StagingID: stagingID, Error: "missing chunks"}, nil
	}

	assembledPath := filepath.Join(s.sessionDir(stagingID), session.OriginalFilename)
	out, err := os.Create(assembledPath)
	if err != nil {
		return FinalizeResult{}, errs.Wrap(errs.KindStoreUnavailable, "create assembled file", err)
	}
	h := sha256.New()
	var size int64
	for i := 0; i < session.TotalChunks; i++ {
		chunkData, rerr := os.ReadFile(s.chunkPath(stagingID, i))
		if rerr != nil {
			out.Close()
			_ = os.Remove(assembledPath)
			return FinalizeResult{Success: false, StagingID: stagingID, Error: "assembly failed: " + rerr.Error()}, nil
		}
		if _, werr := out.Write(chunkData); werr != nil {
			out.Close()
			_ = os.Remove(assembledPath)
			return FinalizeResult{Success: false, StagingID: stagingID, Error: "assembly failed: " + werr.Error()}, nil
		}
		h.Write(chunkData)
		size += int64(len(chunkData))
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(assembledPath)
		return FinalizeResult{Success: false, StagingID: stagingID, Error: "assembly failed: " + err.Error()}, nil
	}

	actualSHA256 := hex.EncodeToString(h.Sum(nil))

	if session.ExpectedSHA256 != "" && actualSHA256 != session.ExpectedSHA256 {
		_ = os.Remove(assembledPath)
		return FinalizeResult{Success: false, StagingID: stagingID, SHA256: actualSHA256, SizeBytes: size,
			Error: "integrity check failed: expected " + session.ExpectedSHA256 + ", got " + actualSHA256}, nil
	}
	if session.TotalSize != 0 && size != session.TotalSize {
		_ = os.Remove(assembledPath)
		return FinalizeResult{Success: false, StagingID: stagingID, SHA256: actualSHA256, SizeBytes: size,
			Error: "size mismatch"}, nil
	}

	return FinalizeResult{Success: true, StagingID: stagingID, AssembledPath: assembledPath, SHA256: actualSHA256, SizeBytes: size}, nil
}

// Cleanup removes all staging data for stagingID.
func (s *Service) Cleanup(stagingID string) error {
	if err := os.RemoveAll(s.sessionDir(stagingID)); err != nil {
		return errs.Wrap(errs.KindStoreUnavailable, "remove staging session", err)
	}
	return nil
}

// CleanupExpired removes every session whose CreatedAt is older than
// maxAge, returning the count removed.
func (s *Service) CleanupExpired(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errs.Wrap(errs.KindStoreUnavailable, "list staging root", err)
	}

	now := s.now()
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		session, err := s.LoadSession(entry.Name())
		if err != nil {
			continue
		}
		if now.Sub(session.CreatedAt) > maxAge {
			if err := s.Cleanup(entry.Name()); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func missingChunks(session Session) []int {
	received := make(map[int]bool, len(session.ChunksReceived))
	for _, i := range session.ChunksReceived {
		received[i] = true
	}
	var missing []int
	for i := 0; i < session.TotalChunks; i++ {
		if !received[i] {
			missing = append(missing, i)
		}
	}
	return missing
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func zeroPad(n, width int) string {
	s := itoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
