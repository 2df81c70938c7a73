package testutil

import (
	"testing"

	"homedrive/internal/drive"
	"homedrive/internal/index"
)

// NewTestIndex creates an in-memory SQLite index with the schema applied.
// The index is automatically closed when the test completes.
func NewTestIndex(t *testing.T) drive.Index {
	t.Helper()

	idx, err := index.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}

	t.Cleanup(func() {
		idx.Close()
	})

	return idx
}
