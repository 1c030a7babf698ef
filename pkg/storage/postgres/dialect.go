package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/LENAX/proc-estimator/pkg/storage"
)

// PostgresDialect PostgreSQL方言实现（对外导出）
type PostgresDialect struct{}

// NewPostgresDialect 创建PostgreSQL方言实例
func NewPostgresDialect() *PostgresDialect {
	return &PostgresDialect{}
}

// Name 返回方言名称
func (d *PostgresDialect) Name() string {
	return "postgres"
}

// DriverName 返回驱动名
func (d *PostgresDialect) DriverName() string {
	return "postgres"
}

// NormalizeDSN URL形式的DSN转换为key=value形式，并固定会话时区为UTC
func (d *PostgresDialect) NormalizeDSN(dsn string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", fmt.Errorf("postgres dsn is empty")
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		converted, err := pq.ParseURL(dsn)
		if err != nil {
			return "", err
		}
		dsn = converted
	}
	if !strings.Contains(dsn, "timezone=") {
		dsn += " timezone=UTC"
	}
	return dsn, nil
}

// UpsertSQL 返回PostgreSQL的UPSERT语句（使用ON CONFLICT DO UPDATE）
func (d *PostgresDialect) UpsertSQL(tableName string, columns []string, conflictColumn string, updateColumns []string) string {
	namedPlaceholders := make([]string, len(columns))
	for i, col := range columns {
		namedPlaceholders[i] = ":" + col
	}

	updateParts := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		updateParts[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		tableName,
		strings.Join(columns, ", "),
		strings.Join(namedPlaceholders, ", "),
		conflictColumn,
		strings.Join(updateParts, ", "),
	)
}

// CreateTableSQL 转换DDL为PostgreSQL兼容格式
func (d *PostgresDialect) CreateTableSQL(schema string) string {
	result := strings.ReplaceAll(schema, "DATETIME", "TIMESTAMP")
	result = strings.ReplaceAll(result, "REAL NOT NULL", "DOUBLE PRECISION NOT NULL")
	return result
}

// ConfigureDB 时区已经通过DSN设置，无需额外语句
func (d *PostgresDialect) ConfigureDB() []string {
	return nil
}

// Open 通过DSN打开PostgreSQL估算记录存储
func Open(dsn string, pool storage.PoolOptions) (*storage.SQLEstimateRepo, error) {
	return storage.OpenEstimateRepo(NewPostgresDialect(), dsn, pool)
}

// 确保实现接口
var _ storage.Dialect = (*PostgresDialect)(nil)
