package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The repos here write raw SQL, so column drift between the queries and
// the schema only surfaces at runtime.  Keep the DDL honest for the
// columns that already bit us once.
func TestInitMigrationDeclaresQueriedColumns(t *testing.T) {
	ddl, err := os.ReadFile(filepath.Join("..", "..", "migrations", "001_init.sql"))
	require.NoError(t, err)
	schema := string(ddl)

	assert.Contains(t, schema, "revoked_at TIMESTAMP NULL")
	assert.NotContains(t, schema, "revoked    TINYINT")
	assert.Contains(t, schema, "token_hash CHAR(64)")
	assert.Contains(t, schema, "ticket_token")
	assert.Contains(t, schema, "call_expires_at")
}
