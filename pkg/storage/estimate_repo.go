package storage

import (
	"context"
	"time"

	"github.com/LENAX/proc-estimator/pkg/core/schedule"
)

// EstimateRecord 一次估算的持久化记录（对外导出）
type EstimateRecord struct {
	ID                string               // 记录ID（UUID）
	WorkflowName      string               // 工作流名称
	Fingerprint       string               // 工作流指纹
	Algorithm         string               // 算法名称
	RequestedDeadline int                  // 请求的截止时间（0表示关键路径）
	Deadline          int                  // 实际使用的截止时间
	Precision         int                  // 时间精度
	Processors        int                  // 处理器数量估算
	CriticalPath      int                  // 关键路径长度
	Makespan          int                  // 调度完成时间
	TaskCount         int                  // 任务数
	Duration          time.Duration        // 估算耗时
	Schedule          []schedule.Placement // 调度结果
	CreateTime        time.Time            // 创建时间
}

// EstimateCRUDRepository 估算记录通用CRUD接口（对外导出）
type EstimateCRUDRepository interface {
	BaseRepository
	// Save 保存估算记录（创建或更新）
	Save(ctx context.Context, record *EstimateRecord) error
	// GetByID 根据ID查询记录，不存在时返回ErrNotFound
	GetByID(ctx context.Context, id string) (*EstimateRecord, error)
	// Delete 删除记录
	Delete(ctx context.Context, id string) error
	// List 按创建时间倒序查询最近的记录
	List(ctx context.Context, limit int) ([]*EstimateRecord, error)
}

// EstimateRepository 估算记录业务存储接口（对外导出）
type EstimateRepository interface {
	EstimateCRUDRepository

	// ListByFingerprint 查询同一工作流的历史估算
	ListByFingerprint(ctx context.Context, fingerprint string, limit int) ([]*EstimateRecord, error)
}
