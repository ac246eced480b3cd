package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
)

// FileBackend persists values as a single JSON object on disk. Every write
// rewrites the whole document through a temp file and rename while holding
// an exclusive file lock, so concurrent processes sharing the path never
// observe a torn document.
type FileBackend struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// NewFileBackend prepares a JSON document backend at path, creating parent
// directories as needed. The document itself is created on first write.
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		return nil, backendError("open", "", errors.New("empty path"))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, backendError("create directory", "", err)
	}
	return &FileBackend{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the document location.
func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) Exists(key string) (bool, error) {
	_, ok, err := b.Read(key)
	return ok, err
}

func (b *FileBackend) Read(key string) (any, bool, error) {
	doc, err := b.snapshot()
	if err != nil {
		return nil, false, backendError("read", key, err)
	}
	value, ok := doc[key]
	return value, ok, nil
}

func (b *FileBackend) Write(key string, value any) error {
	// Round-trip the value so the caller gets an error before the document
	// is touched when it cannot be encoded.
	if _, err := encodeValue(value); err != nil {
		return backendError("encode", key, err)
	}
	return b.update(key, func(doc map[string]any) bool {
		doc[key] = value
		return true
	})
}

func (b *FileBackend) Delete(key string) error {
	return b.update(key, func(doc map[string]any) bool {
		if _, ok := doc[key]; !ok {
			return false
		}
		delete(doc, key)
		return true
	})
}

func (b *FileBackend) ListKeys() ([]string, error) {
	doc, err := b.snapshot()
	if err != nil {
		return nil, backendError("list", "", err)
	}
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *FileBackend) snapshot() (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.lock.RLock(); err != nil {
		return nil, fmt.Errorf("acquire shared lock: %w", err)
	}
	defer func() { _ = b.lock.Unlock() }()
	return b.load()
}

func (b *FileBackend) update(key string, mutate func(map[string]any) bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.lock.Lock(); err != nil {
		return backendError("lock", key, err)
	}
	defer func() { _ = b.lock.Unlock() }()

	doc, err := b.load()
	if err != nil {
		return backendError("read", key, err)
	}
	if !mutate(doc) {
		return nil
	}
	if err := b.save(doc); err != nil {
		return backendError("write", key, err)
	}
	return nil
}

func (b *FileBackend) load() (map[string]any, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", b.path, err)
	}
	return doc, nil
}

func (b *FileBackend) save(doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		cleanup()
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}
