package dbsqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilscan/fogstore/internal/database/dbsqlite"
)

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	db, err := dbsqlite.OpenDB(filepath.Join(t.TempDir(), "fogstore.db"))
	require.NoError(t, err)
	defer db.Close()

	v, err := dbsqlite.SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	// a fresh database is rejected until migrated
	assert.Error(t, dbsqlite.CheckSchema(ctx, db))

	require.NoError(t, dbsqlite.Migrate(ctx, db))
	require.NoError(t, dbsqlite.CheckSchema(ctx, db))

	v, err = dbsqlite.SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Greater(t, v, 0)

	// migrating an up-to-date database is a no-op
	require.NoError(t, dbsqlite.Migrate(ctx, db))
	v2, err := dbsqlite.SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, v, v2)
}
