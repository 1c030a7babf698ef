package storage

import (
	"fmt"
	"strings"

	"github.com/LENAX/proc-estimator/pkg/storage"
	"github.com/LENAX/proc-estimator/pkg/storage/mysql"
	"github.com/LENAX/proc-estimator/pkg/storage/postgres"
	pkgsqlite "github.com/LENAX/proc-estimator/pkg/storage/sqlite"
)

// DatabaseFactory 数据库工厂接口（内部使用）
type DatabaseFactory interface {
	// EstimateRepository 返回估算记录Repository
	EstimateRepository() storage.EstimateRepository
	// Close 关闭数据库连接
	Close() error
}

// opener 各数据库的打开函数
type opener func(dsn string, pool storage.PoolOptions) (*storage.SQLEstimateRepo, error)

var openers = map[string]opener{
	"sqlite":     pkgsqlite.Open,
	"sqlite3":    pkgsqlite.Open,
	"mysql":      mysql.Open,
	"postgres":   postgres.Open,
	"postgresql": postgres.Open,
}

// NewDatabaseFactory 创建数据库工厂（内部方法）
// dbType: 数据库类型（sqlite/mysql/postgres）
// dsn: 数据库连接字符串
func NewDatabaseFactory(dbType, dsn string, pool storage.PoolOptions) (DatabaseFactory, error) {
	open, ok := openers[strings.ToLower(dbType)]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
	repo, err := open(dsn, pool)
	if err != nil {
		return nil, fmt.Errorf("create %s repository failed: %w", dbType, err)
	}
	return &sqlFactory{repo: repo}, nil
}

// sqlFactory 基于SQL的数据库工厂（内部实现）
type sqlFactory struct {
	repo *storage.SQLEstimateRepo
}

func (f *sqlFactory) EstimateRepository() storage.EstimateRepository {
	return f.repo
}

func (f *sqlFactory) Close() error {
	return f.repo.Close()
}
