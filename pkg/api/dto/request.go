package dto

import "github.com/LENAX/proc-estimator/pkg/workflow"

// EstimateRequest 估算请求
type EstimateRequest struct {
	Workflow  *workflow.Workflow `json:"workflow" binding:"required"`
	Algorithm string             `json:"algorithm" binding:"omitempty"`
	Deadline  int                `json:"deadline" binding:"omitempty,min=0"`
	Precision int                `json:"precision" binding:"omitempty,min=0"`
}

// ListQueryRequest 通用列表查询请求
type ListQueryRequest struct {
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Fingerprint string `form:"fingerprint" binding:"omitempty,len=64,hexadecimal"` // 只看同一工作流的记录
}

// GetDefaultLimit 获取默认limit
func (r *ListQueryRequest) GetDefaultLimit() int {
	if r.Limit <= 0 {
		return 20
	}
	return r.Limit
}
