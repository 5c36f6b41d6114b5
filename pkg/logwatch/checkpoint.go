package logwatch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
)

// Checkpoint marks ingestion progress: the byte offset of the next
// unread position in the log file, plus the file's identity so rotation
// can be told apart from appends.
//
// Known limitation: if a rotated-away file's inode number is reused by
// its replacement, the replacement is treated as a continuation and its
// first Position bytes are skipped. The store's uniqueness constraint
// means this can only lose lines, never duplicate them.
type Checkpoint struct {
	Position int64  `json:"position"`
	Inode    uint64 `json:"inode"`
}

// CheckpointStore persists the singleton ingestion checkpoint.
// A corrupt or missing record loads as the zero value, which restarts
// ingestion from the top of the file; idempotent insertion makes that safe.
type CheckpointStore interface {
	Load() (Checkpoint, error)
	Save(Checkpoint) error
}

// FileCheckpointStore keeps the checkpoint in a small JSON file,
// rewritten atomically on every save.
type FileCheckpointStore struct {
	path string
}

// NewFileCheckpointStore creates a file-backed checkpoint store
func NewFileCheckpointStore(path string) *FileCheckpointStore {
	return &FileCheckpointStore{path: path}
}

// Load reads the stored checkpoint. Absent and corrupt state files both
// yield the zero checkpoint without error.
func (s *FileCheckpointStore) Load() (Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, nil
		}
		return Checkpoint{}, fmt.Errorf("failed to read checkpoint %s: %w", s.path, err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		// Corrupt state restarts from the top of the file.
		return Checkpoint{}, nil
	}
	if cp.Position < 0 {
		return Checkpoint{}, nil
	}
	return cp, nil
}

// Save writes the checkpoint via a temp file and rename so a crash
// mid-write can never leave a torn record behind.
func (s *FileCheckpointStore) Save(cp Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace checkpoint %s: %w", s.path, err)
	}
	return nil
}

// MemoryCheckpointStore is an in-memory CheckpointStore for tests and
// embedded use.
type MemoryCheckpointStore struct {
	mu sync.Mutex
	cp Checkpoint
}

// NewMemoryCheckpointStore creates an empty in-memory checkpoint store
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{}
}

// Load returns the last saved checkpoint (zero value if none)
func (s *MemoryCheckpointStore) Load() (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cp, nil
}

// Save stores the checkpoint
func (s *MemoryCheckpointStore) Save(cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cp = cp
	return nil
}
