package testsupport

import (
	"path/filepath"
	"testing"

	"cohesivm/internal/database"
)

// MustOpenDatabase opens a fresh store in a per-test temp directory and
// closes it on cleanup.
func MustOpenDatabase(t testing.TB) *database.Database {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "cohesivm.db"), nil)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close test database: %v", err)
		}
	})
	return db
}
