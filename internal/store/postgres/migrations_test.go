package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/10_add_index.sql":          {Data: []byte("CREATE INDEX b ON t (b);")},
		"migrations/2_add_column.sql":          {Data: []byte("ALTER TABLE t ADD COLUMN b TEXT;")},
		"migrations/1_initial_schema.sql":      {Data: []byte("CREATE TABLE t (a TEXT);")},
		"migrations/notes.txt":                 {Data: []byte("ignored")},
		"migrations/draft_without_version.sql": {Data: []byte("SELECT 1;")},
	}

	migrations, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	require.Equal(t, 1, migrations[0].version)
	require.Equal(t, "1_initial_schema.sql", migrations[0].name)
	require.Equal(t, 2, migrations[1].version)
	require.Equal(t, 10, migrations[2].version)
	require.Equal(t, "CREATE INDEX b ON t (b);", migrations[2].sql)
}

func TestLoadMigrations_duplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/1_initial_schema.sql": {Data: []byte("SELECT 1;")},
		"migrations/1_other.sql":          {Data: []byte("SELECT 2;")},
	}

	_, err := loadMigrations(fsys)
	require.ErrorContains(t, err, "share version 1")
}

func TestLoadMigrations_embedded(t *testing.T) {
	migrations, err := loadMigrations(migrationsFS)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	require.Equal(t, 1, migrations[0].version)
	require.Contains(t, migrations[0].sql, "CREATE TABLE")
	require.Contains(t, migrations[0].sql, "schema_migrations")
}
