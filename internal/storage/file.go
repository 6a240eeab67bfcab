package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStateName is the document FileKV keeps under its directory.
const FileStateName = "state.json"

// FileKV keeps every key in one JSON document under Dir. SetMany rewrites the
// whole document through a synced temporary file and a single rename, so
// readers and restarts see either the old or the new set of values.
type FileKV struct {
	Dir string

	mu sync.Mutex
}

func (s *FileKV) path() string {
	return filepath.Join(s.Dir, FileStateName)
}

func (s *FileKV) read() (map[string][]byte, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string][]byte), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	doc := make(map[string][]byte)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	return doc, nil
}

func (s *FileKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, false, err
	}
	val, ok := doc[key]
	return val, ok, nil
}

func (s *FileKV) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, []Entry{{Key: key, Value: value}})
}

func (s *FileKV) SetMany(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Dir != "." {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	doc, err := s.read()
	if err != nil {
		return err
	}
	for _, e := range entries {
		doc[e.Key] = append([]byte(nil), e.Value...)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}

	tmp := s.path() + ".tmp"
	if err := writeSynced(tmp, raw); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func writeSynced(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open state tmp: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("sync state tmp: %w", err)
	}
	return file.Close()
}

func (s *FileKV) Close() error {
	return nil
}
