package dao

import (
	"time"
)

// EstimateDAO estimate_records表的数据访问对象（内部使用）
type EstimateDAO struct {
	ID                string    `db:"id"`
	WorkflowName      string    `db:"workflow_name"`
	Fingerprint       string    `db:"fingerprint"`
	Algorithm         string    `db:"algorithm"`
	RequestedDeadline int       `db:"requested_deadline"`
	Deadline          int       `db:"deadline"`
	TimePrecision     int       `db:"time_precision"`
	Processors        int       `db:"processors"`
	CriticalPath      int       `db:"critical_path"`
	Makespan          int       `db:"makespan"`
	TaskCount         int       `db:"task_count"`
	DurationMs        int64     `db:"duration_ms"`
	Schedule          string    `db:"schedule"` // JSON格式存储
	CreateTime        time.Time `db:"create_time"`
}

// EstimateColumns estimate_records表的列，顺序与DDL一致
var EstimateColumns = []string{
	"id",
	"workflow_name",
	"fingerprint",
	"algorithm",
	"requested_deadline",
	"deadline",
	"time_precision",
	"processors",
	"critical_path",
	"makespan",
	"task_count",
	"duration_ms",
	"schedule",
	"create_time",
}
