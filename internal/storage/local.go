package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evident-labs/evidcore/internal/errs"
)

const hashBlockSize = 1 << 16 // 64 KiB

// LocalFS is a filesystem-backed Backend. Writes go to a temp file inside
// the target's parent directory and are renamed into place, so concurrent
// readers never observe a partial write.
type LocalFS struct {
	root string
}

// NewLocalFS creates (if needed) root and returns a Backend rooted there.
func NewLocalFS(root string) (*LocalFS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.Wrap(errs.KindStoreUnavailable, "resolve store root", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, errs.Wrap(errs.KindStoreUnavailable, "create store root", err)
	}
	return &LocalFS{root: abs}, nil
}

// resolve strips a leading slash (§9 Open Question: this module's keys
// never carry one) and rejects any key whose cleaned form escapes root.
func (s *LocalFS) resolve(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", errs.New(errs.KindInvalidKey, "empty key")
	}
	cleaned := filepath.Clean(key)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || filepath.IsAbs(cleaned) {
		return "", errs.New(errs.KindInvalidKey, "key escapes store root: "+key)
	}
	full := filepath.Join(s.root, cleaned)
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errs.New(errs.KindInvalidKey, "key escapes store root: "+key)
	}
	return full, nil
}

func (s *LocalFS) Put(key string, data []byte, expectedSHA256 string) (PutResult, error) {
	return s.PutStream(key, strings.NewReader(string(data)), expectedSHA256)
}

func (s *LocalFS) PutStream(key string, r io.Reader, expectedSHA256 string) (PutResult, error) {
	path, err := s.resolve(key)
	if err != nil {
		return PutResult{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return PutResult{}, errs.Wrap(errs.KindStoreUnavailable, "create parent dir", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return PutResult{}, errs.Wrap(errs.KindStoreUnavailable, "create temp file", err)
	}

	h := sha256.New()
	size, copyErr := io.Copy(io.MultiWriter(f, h), r)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp)
		if copyErr != nil {
			return PutResult{}, errs.Wrap(errs.KindStoreUnavailable, "write temp file", copyErr)
		}
		return PutResult{}, errs.Wrap(errs.KindStoreUnavailable, "close temp file", closeErr)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if expectedSHA256 != "" && actual != expectedSHA256 {
		_ = os.Remove(tmp)
		return PutResult{}, errs.New(errs.KindIntegrityMismatch,
			"expected "+expectedSHA256+", got "+actual)
	}

	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(tmp)
		return PutResult{}, errs.New(errs.KindKeyExists, key)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return PutResult{}, errs.Wrap(errs.KindStoreUnavailable, "rename temp into place", err)
	}

	return PutResult{Key: key, SHA256: actual, SizeBytes: size}, nil
}

func (s *LocalFS) Get(key string) (GetResult, error) {
	path, err := s.resolve(key)
	if err != nil {
		return GetResult{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return GetResult{}, errs.New(errs.KindNotFound, key)
		}
		return GetResult{}, errs.Wrap(errs.KindStoreUnavailable, "read file", err)
	}
	sum := sha256.Sum256(data)
	return GetResult{Data: data, SHA256: hex.EncodeToString(sum[:]), SizeBytes: int64(len(data))}, nil
}

func (s *LocalFS) GetStream(key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.New(errs.KindNotFound, key)
		}
		return nil, errs.Wrap(errs.KindStoreUnavailable, "open file", err)
	}
	return f, nil
}

func (s *LocalFS) Exists(key string) (bool, error) {
	path, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	_, statErr := os.Stat(path)
	if statErr == nil {
		return true, nil
	}
	if os.IsNotExist(statErr) {
		return false, nil
	}
	return false, errs.Wrap(errs.KindStoreUnavailable, "stat file", statErr)
}

// Delete removes key. Exists for administrative cleanup only; production
// code paths never call it on originals.
func (s *LocalFS) Delete(key string) (bool, error) {
	path, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errs.Wrap(errs.KindStoreUnavailable, "remove file", err)
	}
	return true, nil
}

func (s *LocalFS) ListKeys(prefix string) ([]string, error) {
	base := s.root
	if prefix != "" {
		p, err := s.resolve(prefix)
		if err != nil {
			return nil, err
		}
		base = p
	}
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return []string{}, nil
	}

	var keys []string
	err := filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStoreUnavailable, "walk store", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalFS) Size(key string) (int64, bool, error) {
	path, err := s.resolve(key)
	if err != nil {
		return 0, false, err
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return 0, false, nil
		}
		return 0, false, errs.Wrap(errs.KindStoreUnavailable, "stat file", statErr)
	}
	return info.Size(), true, nil
}
