package storage

// Dialect 数据库方言接口（对外导出）
// 估算记录表的DDL以SQLite语法书写，由各方言转换
type Dialect interface {
	// Name 返回方言名称（如 "sqlite", "mysql", "postgres"）
	Name() string

	// DriverName 返回 database/sql 注册的驱动名
	DriverName() string

	// NormalizeDSN 补齐驱动需要的连接参数
	NormalizeDSN(dsn string) (string, error)

	// UpsertSQL 返回INSERT或UPDATE的SQL语句（使用:name命名参数）
	// tableName: 表名
	// columns: 列名列表
	// conflictColumn: 冲突判断列（通常是主键）
	// updateColumns: 需要更新的列（不含主键）
	UpsertSQL(tableName string, columns []string, conflictColumn string, updateColumns []string) string

	// CreateTableSQL 返回创建表的DDL语句
	CreateTableSQL(schema string) string

	// ConfigureDB 打开连接后需要执行的SQL语句
	ConfigureDB() []string
}
