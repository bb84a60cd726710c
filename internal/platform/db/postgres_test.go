package db

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/migrations"
)

func TestMigrationNamesSortedAndFiltered(t *testing.T) {
	files := fstest.MapFS{
		"0002_more.sql": {Data: []byte("SELECT 2;")},
		"0001_init.sql": {Data: []byte("SELECT 1;")},
		"README.md":     {Data: []byte("notes")},
		"nested/x.sql":  {Data: []byte("SELECT 3;")},
	}
	names, err := migrationNames(files)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_more.sql"}, names)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	names, err := migrationNames(migrations.Files)
	require.NoError(t, err)
	assert.Contains(t, names, "0001_init.sql")
}

func TestConnectRejectsEmptyDSN(t *testing.T) {
	_, err := Connect("  ", PoolOptions{})
	assert.Error(t, err)
}

func TestInitMigrationCarriesElectionAndRoleIndexes(t *testing.T) {
	script, err := fs.ReadFile(migrations.Files, "0001_init.sql")
	require.NoError(t, err)
	schema := string(script)
	assert.Contains(t, schema, "ON elections (class_name, status);")
	assert.NotContains(t, schema, "UNIQUE INDEX IF NOT EXISTS elections_class_status")
	assert.Contains(t, schema, "ON students (class_name) WHERE role = 'CR';")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS election_idempotency")
}
