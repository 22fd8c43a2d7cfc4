// Package jsonfile implements the local-file submission store: a single JSON
// array rewritten on every append.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/couchcryptid/skylore-service/internal/domain"
)

const backend = "local"

// Store reads and appends submissions in a JSON array file.
// Appends from one process are serialized; separate processes writing the
// same file still race, and the last rename wins.
type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore creates a Store for the file at path. The file need not exist
// until the first append.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: local data path is required", domain.ErrConfiguration)
	}
	return &Store{path: path, logger: logger}, nil
}

// Name identifies the store variant.
func (s *Store) Name() string { return backend }

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// FetchAll reads the whole file and returns one raw record per array entry.
func (s *Store) FetchAll(ctx context.Context) ([]domain.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.DataSourceError{Backend: backend, Op: "fetch", Err: err}
	}

	entries, err := s.readEntries()
	if err != nil {
		return nil, &domain.DataSourceError{Backend: backend, Op: "fetch", Err: err}
	}

	raws := make([]domain.RawRecord, len(entries))
	for i, fields := range entries {
		raws[i] = domain.RawRecord{Source: domain.SourceLocal, Index: i, Fields: fields}
	}
	return raws, nil
}

// Append adds sub to the array. The new array is written to a temporary
// file in the same directory and renamed over the original, so a crash
// mid-write leaves the previous file intact.
func (s *Store) Append(ctx context.Context, sub domain.Submission) error {
	if err := ctx.Err(); err != nil {
		return &domain.DataSourceError{Backend: backend, Op: "append", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readEntries()
	if errors.Is(err, fs.ErrNotExist) {
		entries, err = nil, nil
	}
	if err != nil {
		return &domain.DataSourceError{Backend: backend, Op: "append", Err: err}
	}

	for _, e := range entries {
		if id, _ := e["id"].(string); id != "" && id == sub.ID {
			return &domain.DataSourceError{Backend: backend, Op: "append", Err: fmt.Errorf("duplicate id %q", sub.ID)}
		}
	}

	obj, err := toObject(sub)
	if err != nil {
		return &domain.DataSourceError{Backend: backend, Op: "append", Err: err}
	}
	entries = append(entries, obj)

	if err := s.writeAtomic(entries); err != nil {
		return &domain.DataSourceError{Backend: backend, Op: "append", Err: err}
	}
	s.logger.Debug("submission appended", "path", s.path, "id", sub.ID, "records", len(entries))
	return nil
}

// EnsureFile seeds an empty array when the backing file does not exist yet,
// so a fresh deployment serves an empty table instead of failing reads.
// An existing file is left untouched.
func (s *Store) EnsureFile() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(s.path)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return &domain.DataSourceError{Backend: backend, Op: "init", Err: err}
	}
	if err := s.writeAtomic(nil); err != nil {
		return &domain.DataSourceError{Backend: backend, Op: "init", Err: err}
	}
	s.logger.Info("seeded empty submissions file", "path", s.path)
	return nil
}

// Ping reports whether the backing file is readable.
func (s *Store) Ping(_ context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return &domain.DataSourceError{Backend: backend, Op: "ping", Err: err}
	}
	return nil
}

func (s *Store) readEntries() ([]map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var entries []map[string]any
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *Store) writeAtomic(entries []map[string]any) error {
	if entries == nil {
		entries = []map[string]any{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode submissions: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// toObject encodes a submission with the canonical file keys. Round-tripping
// through JSON keeps existing entries and new ones in the same shape.
func toObject(sub domain.Submission) (map[string]any, error) {
	if sub.ConstellationNames == nil {
		sub.ConstellationNames = []string{}
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	return obj, nil
}
