package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLDialect_NormalizeDSN(t *testing.T) {
	d := NewMySQLDialect()

	dsn, err := d.NormalizeDSN("user:pass@tcp(localhost:3306)/estimates")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "sql_mode=")

	_, err = d.NormalizeDSN("user:pass@tcp(localhost:3306)estimates")
	assert.Error(t, err)
}

func TestMySQLDialect_UpsertSQL(t *testing.T) {
	sql := NewMySQLDialect().UpsertSQL("t", []string{"id", "a", "b"}, "id", []string{"a", "b"})
	assert.Equal(t, "INSERT INTO t (id, a, b) VALUES (:id, :a, :b) ON DUPLICATE KEY UPDATE a = VALUES(a), b = VALUES(b)", sql)
}

func TestMySQLDialect_CreateTableSQL(t *testing.T) {
	ddl := NewMySQLDialect().CreateTableSQL("CREATE TABLE IF NOT EXISTS t (id VARCHAR(8), schedule TEXT);")
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS t (id VARCHAR(8), schedule MEDIUMTEXT) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;", ddl)
}
