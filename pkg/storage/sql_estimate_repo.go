package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/LENAX/proc-estimator/pkg/core/schedule"
	"github.com/LENAX/proc-estimator/pkg/storage/dao"
)

const (
	estimateTable = "estimate_records"
	// DefaultListLimit List未指定数量时的默认值
	DefaultListLimit = 20
)

// estimateSchema 以SQLite语法书写，由Dialect.CreateTableSQL转换
const estimateSchema = `CREATE TABLE IF NOT EXISTS estimate_records (
	id VARCHAR(64) PRIMARY KEY,
	workflow_name VARCHAR(255) NOT NULL,
	fingerprint VARCHAR(64) NOT NULL,
	algorithm VARCHAR(16) NOT NULL,
	requested_deadline INTEGER NOT NULL,
	deadline INTEGER NOT NULL,
	time_precision INTEGER NOT NULL,
	processors INTEGER NOT NULL,
	critical_path INTEGER NOT NULL,
	makespan INTEGER NOT NULL,
	task_count INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	schedule TEXT,
	create_time DATETIME NOT NULL
);`

// PoolOptions 连接池参数
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLEstimateRepo 基于sqlx的估算记录存储（对外导出）
type SQLEstimateRepo struct {
	db      *sqlx.DB
	dialect Dialect
}

// OpenEstimateRepo 按方言打开数据库并初始化表结构
func OpenEstimateRepo(dialect Dialect, dsn string, pool PoolOptions) (*SQLEstimateRepo, error) {
	normalized, err := dialect.NormalizeDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("解析%s DSN失败: %w", dialect.Name(), err)
	}

	db, err := sqlx.Open(dialect.DriverName(), normalized)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	for _, stmt := range dialect.ConfigureDB() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("配置%s失败: %w", dialect.Name(), err)
		}
	}

	repo, err := NewSQLEstimateRepo(db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewSQLEstimateRepo 使用已有连接创建Repository，并确保表存在
func NewSQLEstimateRepo(db *sqlx.DB, dialect Dialect) (*SQLEstimateRepo, error) {
	if _, err := db.Exec(dialect.CreateTableSQL(estimateSchema)); err != nil {
		return nil, fmt.Errorf("创建estimate_records表失败: %w", err)
	}
	return &SQLEstimateRepo{db: db, dialect: dialect}, nil
}

// Close 关闭数据库连接（对外导出）
func (r *SQLEstimateRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Save 保存估算记录
func (r *SQLEstimateRepo) Save(ctx context.Context, record *EstimateRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("估算记录ID不能为空")
	}
	row, err := toDAO(record)
	if err != nil {
		return err
	}

	query := r.dialect.UpsertSQL(estimateTable, dao.EstimateColumns, "id", dao.EstimateColumns[1:])
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("保存估算记录失败: ID=%s, Error=%w", record.ID, err)
	}
	return nil
}

// GetByID 根据ID查询记录
func (r *SQLEstimateRepo) GetByID(ctx context.Context, id string) (*EstimateRecord, error) {
	query := r.db.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(dao.EstimateColumns, ", "), estimateTable))

	var row dao.EstimateDAO
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: estimate %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("查询估算记录失败: ID=%s, Error=%w", id, err)
	}
	return fromDAO(&row)
}

// Delete 删除记录
func (r *SQLEstimateRepo) Delete(ctx context.Context, id string) error {
	query := r.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", estimateTable))
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("删除估算记录失败: ID=%s, Error=%w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: estimate %s", ErrNotFound, id)
	}
	return nil
}

// List 按创建时间倒序查询
func (r *SQLEstimateRepo) List(ctx context.Context, limit int) ([]*EstimateRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY create_time DESC, id DESC LIMIT ?",
		strings.Join(dao.EstimateColumns, ", "), estimateTable)
	return r.selectRecords(ctx, query, normalizeLimit(limit))
}

// ListByFingerprint 查询同一工作流的历史估算
func (r *SQLEstimateRepo) ListByFingerprint(ctx context.Context, fingerprint string, limit int) ([]*EstimateRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE fingerprint = ? ORDER BY create_time DESC, id DESC LIMIT ?",
		strings.Join(dao.EstimateColumns, ", "), estimateTable)
	return r.selectRecords(ctx, query, fingerprint, normalizeLimit(limit))
}

func (r *SQLEstimateRepo) selectRecords(ctx context.Context, query string, args ...any) ([]*EstimateRecord, error) {
	var rows []dao.EstimateDAO
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("查询估算记录失败: %w", err)
	}
	records := make([]*EstimateRecord, 0, len(rows))
	for i := range rows {
		rec, err := fromDAO(&rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func toDAO(rec *EstimateRecord) (*dao.EstimateDAO, error) {
	placements := rec.Schedule
	if placements == nil {
		placements = []schedule.Placement{}
	}
	data, err := json.Marshal(placements)
	if err != nil {
		return nil, fmt.Errorf("序列化调度结果失败: %w", err)
	}
	created := rec.CreateTime
	if created.IsZero() {
		created = time.Now()
	}
	return &dao.EstimateDAO{
		ID:                rec.ID,
		WorkflowName:      rec.WorkflowName,
		Fingerprint:       rec.Fingerprint,
		Algorithm:         rec.Algorithm,
		RequestedDeadline: rec.RequestedDeadline,
		Deadline:          rec.Deadline,
		TimePrecision:     rec.Precision,
		Processors:        rec.Processors,
		CriticalPath:      rec.CriticalPath,
		Makespan:          rec.Makespan,
		TaskCount:         rec.TaskCount,
		DurationMs:        rec.Duration.Milliseconds(),
		Schedule:          string(data),
		CreateTime:        created.UTC().Truncate(time.Second),
	}, nil
}

func fromDAO(row *dao.EstimateDAO) (*EstimateRecord, error) {
	var placements []schedule.Placement
	if row.Schedule != "" {
		if err := json.Unmarshal([]byte(row.Schedule), &placements); err != nil {
			return nil, fmt.Errorf("解析调度结果失败: ID=%s, Error=%w", row.ID, err)
		}
	}
	return &EstimateRecord{
		ID:                row.ID,
		WorkflowName:      row.WorkflowName,
		Fingerprint:       row.Fingerprint,
		Algorithm:         row.Algorithm,
		RequestedDeadline: row.RequestedDeadline,
		Deadline:          row.Deadline,
		Precision:         row.TimePrecision,
		Processors:        row.Processors,
		CriticalPath:      row.CriticalPath,
		Makespan:          row.Makespan,
		TaskCount:         row.TaskCount,
		Duration:          time.Duration(row.DurationMs) * time.Millisecond,
		Schedule:          placements,
		CreateTime:        row.CreateTime,
	}, nil
}

// 确保实现接口
var _ EstimateRepository = (*SQLEstimateRepo)(nil)
