package mysql

import (
	"fmt"
	"strings"

	driver "github.com/go-sql-driver/mysql"

	"github.com/LENAX/proc-estimator/pkg/storage"
)

const defaultSQLMode = "'STRICT_TRANS_TABLES,NO_ZERO_IN_DATE,NO_ZERO_DATE,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'"

// MySQLDialect MySQL方言实现（对外导出）
type MySQLDialect struct{}

// NewMySQLDialect 创建MySQL方言实例
func NewMySQLDialect() *MySQLDialect {
	return &MySQLDialect{}
}

// Name 返回方言名称
func (d *MySQLDialect) Name() string {
	return "mysql"
}

// DriverName 返回驱动名
func (d *MySQLDialect) DriverName() string {
	return "mysql"
}

// NormalizeDSN 确保parseTime=true，并为每个连接设置sql_mode
// dsn格式: user:password@tcp(host:port)/dbname
func (d *MySQLDialect) NormalizeDSN(dsn string) (string, error) {
	cfg, err := driver.ParseDSN(strings.TrimSpace(dsn))
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["sql_mode"]; !ok {
		cfg.Params["sql_mode"] = defaultSQLMode
	}
	return cfg.FormatDSN(), nil
}

// UpsertSQL 返回MySQL的UPSERT语句（使用ON DUPLICATE KEY UPDATE）
func (d *MySQLDialect) UpsertSQL(tableName string, columns []string, conflictColumn string, updateColumns []string) string {
	namedPlaceholders := make([]string, len(columns))
	for i, col := range columns {
		namedPlaceholders[i] = ":" + col
	}

	updateParts := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		updateParts[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		tableName,
		strings.Join(columns, ", "),
		strings.Join(namedPlaceholders, ", "),
		strings.Join(updateParts, ", "),
	)
}

// CreateTableSQL 转换DDL为MySQL兼容格式
func (d *MySQLDialect) CreateTableSQL(schema string) string {
	result := strings.ReplaceAll(schema, "REAL NOT NULL", "DOUBLE NOT NULL")
	result = strings.ReplaceAll(result, "schedule TEXT", "schedule MEDIUMTEXT")

	if !strings.Contains(result, "ENGINE=") && strings.Contains(result, "CREATE TABLE") {
		result = strings.TrimRight(strings.TrimSpace(result), ";") + " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;"
	}
	return result
}

// ConfigureDB sql_mode已经通过DSN设置
func (d *MySQLDialect) ConfigureDB() []string {
	return nil
}

// Open 通过DSN打开MySQL估算记录存储
func Open(dsn string, pool storage.PoolOptions) (*storage.SQLEstimateRepo, error) {
	return storage.OpenEstimateRepo(NewMySQLDialect(), dsn, pool)
}

// 确保实现接口
var _ storage.Dialect = (*MySQLDialect)(nil)
