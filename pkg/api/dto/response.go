package dto

import (
	"time"

	"github.com/LENAX/proc-estimator/pkg/core/schedule"
)

// APIResponse 通用API响应结构
type APIResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) APIResponse[any] {
	return APIResponse[any]{
		Code:    code,
		Message: message,
	}
}

// EstimateResponse 估算结果
type EstimateResponse struct {
	ID                string               `json:"id"`
	WorkflowName      string               `json:"workflow_name"`
	Algorithm         string               `json:"algorithm"`
	Processors        int                  `json:"processors"`
	RequestedDeadline int                  `json:"requested_deadline"`
	Deadline          int                  `json:"deadline"`
	Precision         int                  `json:"precision"`
	CriticalPath      int                  `json:"critical_path"`
	Makespan          int                  `json:"makespan"`
	TaskCount         int                  `json:"task_count"`
	Cached            bool                 `json:"cached"`
	Duration          string               `json:"duration"`
	Schedule          []schedule.Placement `json:"schedule,omitempty"`
	Clusters          map[string]int       `json:"clusters,omitempty"`
}

// EstimateSummary 历史记录摘要
type EstimateSummary struct {
	ID           string    `json:"id"`
	WorkflowName string    `json:"workflow_name"`
	Fingerprint  string    `json:"fingerprint"`
	Algorithm    string    `json:"algorithm"`
	Processors   int       `json:"processors"`
	Deadline     int       `json:"deadline"`
	CriticalPath int       `json:"critical_path"`
	TaskCount    int       `json:"task_count"`
	Duration     string    `json:"duration"`
	CreatedAt    time.Time `json:"created_at"`
}

// EstimateDetail 历史记录详情
type EstimateDetail struct {
	EstimateSummary
	RequestedDeadline int                  `json:"requested_deadline"`
	Precision         int                  `json:"precision"`
	Makespan          int                  `json:"makespan"`
	Schedule          []schedule.Placement `json:"schedule"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// ListResponse 列表响应
type ListResponse[T any] struct {
	Total int `json:"total"`
	Items []T `json:"items"`
}
