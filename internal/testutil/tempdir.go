// Package testutil holds small test helpers shared across this module's
// packages, adapted from the teacher's common/testutil.
package testutil

import (
	"os"
	"testing"
)

// TempDir creates a fresh directory for one test and arranges for its
// removal at test cleanup.
func TempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "lsmkv-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}
