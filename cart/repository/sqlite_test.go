package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/internal/infra"
)

func TestSqliteStorage(t *testing.T) {
	c := context.Background()
	db, err := infra.OpenSqlite(c, filepath.Join(t.TempDir(), "storefront.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	require.NoError(t, infra.MigrateSqlite(c, db, "file://../../migrations/sqlite"))

	storageContract(t, NewSqliteStorage(db, testStorageName))
}
