package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gatewaylabs/logwatch/pkg/sqlite"
)

// SQLiteTestHelper provides a throwaway on-disk event database for tests
type SQLiteTestHelper struct {
	Client *sqlite.Client
	Dir    string
}

// NewSQLiteTestHelper creates a temp directory with a fresh, schema-ready
// database inside it
func NewSQLiteTestHelper(ctx context.Context) (*SQLiteTestHelper, error) {
	dir, err := os.MkdirTemp("", "logwatch-test-")
	if err != nil {
		return nil, fmt.Errorf("failed to create test dir: %w", err)
	}

	client, err := sqlite.NewClient(ctx, sqlite.Config{
		Path: filepath.Join(dir, "events.db"),
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}

	if err := client.EnsureSchema(ctx); err != nil {
		_ = client.Close()
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create test schema: %w", err)
	}

	return &SQLiteTestHelper{Client: client, Dir: dir}, nil
}

// Path returns a path inside the helper's temp directory
func (h *SQLiteTestHelper) Path(name string) string {
	return filepath.Join(h.Dir, name)
}

// Close releases the database and removes the temp directory
func (h *SQLiteTestHelper) Close() error {
	err := h.Client.Close()
	if removeErr := os.RemoveAll(h.Dir); err == nil {
		err = removeErr
	}
	return err
}
