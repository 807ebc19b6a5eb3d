// Package store owns the single persisted line-delimited-JSON file that
// backs the knowledge graph, and the cooperative lock that serializes
// writers against it. Store itself never caches file contents in process —
// every Load re-reads from disk.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mironmax/mcp-memory-server-concurrent/pkg/graph"
)

// Store is a single-file line-delimited-JSON persistence layer with
// write-temp-then-rename atomic replace.
type Store struct {
	path string
}

// New returns a Store rooted at path. The parent directory is created (if
// missing) lazily, on first AtomicReplace, not here.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the store's configured file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the store file and returns the complete graph. A missing file
// is not an error: it is treated as an empty graph, so a brand-new memory
// file is indistinguishable from an existing-but-empty one. Any other read
// error, or a line that fails to parse, is returned wrapped in ErrStoreIO /
// ErrMalformedRecord respectively — loading is strict, never lenient.
func (s *Store) Load() (*graph.State, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return graph.New(), nil
		}
		return nil, fmt.Errorf("%w: opening %s: %v", ErrStoreIO, s.path, err)
	}
	defer f.Close()

	st := graph.New()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var kind recordKind
		if err := json.Unmarshal(line, &kind); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, lineNo, err)
		}

		switch kind.Type {
		case "entity":
			var rec entityRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, lineNo, err)
			}
			if rec.Name == "" {
				return nil, fmt.Errorf("%w: line %d: entity missing name", ErrMalformedRecord, lineNo)
			}
			st.Entities = append(st.Entities, recordToEntity(rec))
		case "relation":
			var rec relationRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, lineNo, err)
			}
			st.Relations = append(st.Relations, recordToRelation(rec))
		default:
			return nil, fmt.Errorf("%w: line %d: unknown record type %q", ErrMalformedRecord, lineNo, kind.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrStoreIO, s.path, err)
	}

	st.Rebuild()
	return st, nil
}

// Serialize renders the graph in the store's on-disk format: entities first
// in their current order, then relations, each as one JSON object per line.
func Serialize(st *graph.State) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, e := range st.Entities {
		_ = enc.Encode(entityToRecord(e))
	}
	for _, r := range st.Relations {
		_ = enc.Encode(relationToRecord(r))
	}
	return buf.Bytes()
}

// AtomicReplace writes content to a sibling temp file and renames it over
// the live path. On POSIX, rename within the same directory/filesystem is
// atomic, so a concurrent reader's Load always observes either the
// pre-replace or post-replace content in full, never a torn file. The
// parent directory is created if missing.
func (s *Store) AtomicReplace(content []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrStoreIO, dir, err)
	}

	tmpPath := fmt.Sprintf("%s.tmp.%s", s.path, uuid.NewString())
	if err := writeFileSync(tmpPath, content); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: writing %s: %v", ErrStoreIO, tmpPath, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming %s to %s: %v", ErrStoreIO, tmpPath, s.path, err)
	}
	return nil
}

// writeFileSync writes content to path and fsyncs it before returning, so
// the rename that follows is never reordered ahead of the data landing on
// disk.
func writeFileSync(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
