package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LENAX/proc-estimator/pkg/api/dto"
	"github.com/LENAX/proc-estimator/pkg/core/dag"
	"github.com/LENAX/proc-estimator/pkg/core/estimator"
	"github.com/LENAX/proc-estimator/pkg/core/schedule"
	"github.com/LENAX/proc-estimator/pkg/storage"
	"github.com/LENAX/proc-estimator/pkg/workflow"
)

// EstimateHandler 估算API处理器
type EstimateHandler struct {
	estimator        *estimator.Estimator
	defaultAlgorithm schedule.Algorithm
}

// NewEstimateHandler 创建EstimateHandler
func NewEstimateHandler(est *estimator.Estimator, defaultAlgorithm schedule.Algorithm) *EstimateHandler {
	return &EstimateHandler{estimator: est, defaultAlgorithm: defaultAlgorithm}
}

// Create 执行估算
// POST /api/v1/estimates
func (h *EstimateHandler) Create(c *gin.Context) {
	var req dto.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	alg := h.defaultAlgorithm
	if req.Algorithm != "" {
		parsed, err := schedule.ParseAlgorithm(req.Algorithm)
		if err != nil {
			respondError(c, err)
			return
		}
		alg = parsed
	}

	res, err := h.estimator.Estimate(c.Request.Context(), estimator.Request{
		Workflow:  req.Workflow,
		Algorithm: alg,
		Deadline:  req.Deadline,
		Precision: req.Precision,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.EstimateResponse{
		ID:                res.ID,
		WorkflowName:      res.WorkflowName,
		Algorithm:         res.Algorithm.String(),
		Processors:        res.Processors,
		RequestedDeadline: res.RequestedDeadline,
		Deadline:          res.Deadline,
		Precision:         res.Precision,
		CriticalPath:      res.CriticalPath,
		Makespan:          res.Makespan,
		TaskCount:         res.TaskCount,
		Cached:            res.Cached,
		Duration:          formatDuration(res.Duration),
		Schedule:          res.Schedule,
		Clusters:          res.Clusters,
	}))
}

// List 查询最近的估算记录
// GET /api/v1/estimates
func (h *EstimateHandler) List(c *gin.Context) {
	var query dto.ListQueryRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("查询参数错误: %v", err)))
		return
	}

	var (
		records []*storage.EstimateRecord
		err     error
	)
	if query.Fingerprint != "" {
		records, err = h.estimator.HistoryByFingerprint(c.Request.Context(), query.Fingerprint, query.GetDefaultLimit())
	} else {
		records, err = h.estimator.History(c.Request.Context(), query.GetDefaultLimit())
	}
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]dto.EstimateSummary, 0, len(records))
	for _, rec := range records {
		items = append(items, toSummary(rec))
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.EstimateSummary]{
		Total: len(items),
		Items: items,
	}))
}

// Get 查询单条估算记录
// GET /api/v1/estimates/:id
func (h *EstimateHandler) Get(c *gin.Context) {
	rec, err := h.estimator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.EstimateDetail{
		EstimateSummary:   toSummary(rec),
		RequestedDeadline: rec.RequestedDeadline,
		Precision:         rec.Precision,
		Makespan:          rec.Makespan,
		Schedule:          rec.Schedule,
	}))
}

// Delete 删除估算记录
// DELETE /api/v1/estimates/:id
func (h *EstimateHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.estimator.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"id": id}))
}

func toSummary(rec *storage.EstimateRecord) dto.EstimateSummary {
	return dto.EstimateSummary{
		ID:           rec.ID,
		WorkflowName: rec.WorkflowName,
		Fingerprint:  rec.Fingerprint,
		Algorithm:    rec.Algorithm,
		Processors:   rec.Processors,
		Deadline:     rec.Deadline,
		CriticalPath: rec.CriticalPath,
		TaskCount:    rec.TaskCount,
		Duration:     formatDuration(rec.Duration),
		CreatedAt:    rec.CreateTime,
	}
}

// respondError 将领域错误映射为HTTP状态码
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrMalformedWorkflow),
		errors.Is(err, dag.ErrMalformedGraph),
		errors.Is(err, dag.ErrCycle),
		errors.Is(err, schedule.ErrUnknownAlgorithm),
		errors.Is(err, estimator.ErrInvalidRequest),
		errors.Is(err, estimator.ErrDeadlineTooLarge):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, estimator.ErrStorageDisabled):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.NewErrorResponse(status, err.Error()))
}
