package estimator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/LENAX/proc-estimator/pkg/config"
	"github.com/LENAX/proc-estimator/pkg/core/cache"
	"github.com/LENAX/proc-estimator/pkg/core/dag"
	"github.com/LENAX/proc-estimator/pkg/core/schedule"
	"github.com/LENAX/proc-estimator/pkg/storage"
	"github.com/LENAX/proc-estimator/pkg/workflow"
)

var (
	// ErrInvalidRequest 请求参数不合法
	ErrInvalidRequest = errors.New("invalid estimate request")
	// ErrDeadlineTooLarge 缩放后的截止时间超过上限
	ErrDeadlineTooLarge = errors.New("deadline exceeds the configured maximum")
	// ErrStorageDisabled 未配置历史存储
	ErrStorageDisabled = errors.New("estimate history storage is not configured")
)

// Options 估算器参数（对外导出）
type Options struct {
	CostModel        dag.CostModel
	MaxDeadline      int // 缩放后截止时间上限，0表示不限制
	DefaultPrecision int
	BTS              schedule.BTSOptions
	HEFTWorkers      int
	CacheTTL         time.Duration
}

// Request 估算请求
type Request struct {
	Workflow  *workflow.Workflow
	Algorithm schedule.Algorithm
	Deadline  int // 0表示使用关键路径长度
	Precision int // 0表示使用默认精度，仅BTS使用
}

// Result 估算结果，时间均为原始时间单位
type Result struct {
	ID                string               `json:"id"`
	WorkflowName      string               `json:"workflow_name"`
	Fingerprint       string               `json:"fingerprint"`
	Algorithm         schedule.Algorithm   `json:"algorithm"`
	Processors        int                  `json:"processors"`
	RequestedDeadline int                  `json:"requested_deadline"`
	Deadline          int                  `json:"deadline"`
	Precision         int                  `json:"precision"`
	CriticalPath      int                  `json:"critical_path"`
	Makespan          int                  `json:"makespan"`
	TaskCount         int                  `json:"task_count"`
	Iterations        int                  `json:"iterations"`
	Schedule          []schedule.Placement `json:"schedule,omitempty"`
	Clusters          map[string]int       `json:"clusters,omitempty"`
	Duration          time.Duration        `json:"duration"`
	Cached            bool                 `json:"cached"`
	CreatedAt         time.Time            `json:"created_at"`
}

// Estimator 处理器数量估算器（对外导出）
type Estimator struct {
	opts  Options
	repo  storage.EstimateRepository
	cache cache.ResultCache[*Result]
}

// New 创建估算器，repo与resultCache均可为nil
func New(opts Options, repo storage.EstimateRepository, resultCache cache.ResultCache[*Result]) *Estimator {
	if opts.CostModel.Bandwidth <= 0 {
		opts.CostModel = dag.DefaultCostModel()
	}
	if opts.DefaultPrecision < 1 {
		opts.DefaultPrecision = 1
	}
	if opts.HEFTWorkers < 1 {
		opts.HEFTWorkers = 1
	}
	return &Estimator{opts: opts, repo: repo, cache: resultCache}
}

// NewFromConfig 根据配置创建估算器
func NewFromConfig(cfg *config.EstimatorConfig, repo storage.EstimateRepository) *Estimator {
	est := cfg.ProcEstimator.Estimation
	opts := Options{
		CostModel:        dag.CostModel{Bandwidth: est.Bandwidth, Latency: est.Latency},
		MaxDeadline:      est.MaxDeadline,
		DefaultPrecision: est.DefaultPrecision,
		BTS:              schedule.BTSOptions{Goal: est.BalanceGoal, MaxIterations: est.BalanceMaxIterations},
		HEFTWorkers:      cfg.GetHEFTWorkers(),
	}

	var resultCache cache.ResultCache[*Result]
	if c := cfg.ProcEstimator.Storage.Cache; c.Enabled {
		opts.CacheTTL = c.DefaultTTL
		resultCache = cache.NewMemoryResultCache[*Result](c.DefaultTTL, c.CleanInterval)
	}
	return New(opts, repo, resultCache)
}

// Close 释放缓存与存储
func (e *Estimator) Close() error {
	var errs []error
	if e.cache != nil {
		errs = append(errs, e.cache.Close())
	}
	if e.repo != nil {
		errs = append(errs, e.repo.Close())
	}
	return errors.Join(errs...)
}

// Estimate 执行一次估算
func (e *Estimator) Estimate(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	precision, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	fingerprint, err := req.Workflow.Fingerprint()
	if err != nil {
		return nil, err
	}
	key := e.cacheKey(fingerprint, req.Algorithm, req.Deadline, precision)
	if e.cache != nil {
		if hit, ok := e.cache.Get(key); ok {
			log.Debugf("[Estimator] 命中缓存: Workflow=%s, Algorithm=%s", hit.WorkflowName, hit.Algorithm)
			res := hit.clone()
			res.Cached = true
			return res, nil
		}
	}

	g, err := req.Workflow.Graph(e.opts.CostModel)
	if err != nil {
		return nil, err
	}
	cp := g.CriticalPath()
	if err := cp.ComputeAll(); err != nil {
		return nil, err
	}
	length, err := cp.Length()
	if err != nil {
		return nil, err
	}

	deadline := req.Deadline
	if deadline == 0 {
		deadline = length
	}

	var (
		plan  *schedule.Plan
		scale = 1
	)
	switch req.Algorithm {
	case schedule.BTS:
		scale = precision
		plan, err = e.planBTS(g, deadline, precision)
	case schedule.DSC:
		plan, err = schedule.PlanDSC(g)
	case schedule.IterHEFT:
		plan, err = schedule.PlanIterHEFT(ctx, g, deadline, schedule.IterHEFTOptions{Workers: e.opts.HEFTWorkers})
	default:
		err = fmt.Errorf("%w: %d", schedule.ErrUnknownAlgorithm, int(req.Algorithm))
	}
	if err != nil {
		return nil, err
	}

	res := &Result{
		ID:                uuid.NewString(),
		WorkflowName:      req.Workflow.Name,
		Fingerprint:       fingerprint,
		Algorithm:         req.Algorithm,
		Processors:        plan.Processors,
		RequestedDeadline: req.Deadline,
		Deadline:          plan.Deadline * scale,
		Precision:         precision,
		CriticalPath:      length,
		Makespan:          plan.Makespan * scale,
		TaskCount:         g.TaskCount(),
		Iterations:        plan.Iterations,
		Schedule:          rescale(plan.Schedule, scale),
		Clusters:          plan.Clusters,
		Duration:          time.Since(started),
		CreatedAt:         time.Now(),
	}
	if !req.Algorithm.UsesDeadline() {
		res.Deadline = 0
	}

	log.Infof("✅ [Estimator] 估算完成: Workflow=%s, Algorithm=%s, Processors=%d, Deadline=%d, CriticalPath=%d, Duration=%v",
		res.WorkflowName, res.Algorithm, res.Processors, res.Deadline, res.CriticalPath, res.Duration)

	if e.cache != nil {
		if err := e.cache.Set(key, res, e.opts.CacheTTL); err != nil {
			log.Warnf("⚠️ [Estimator] 写入缓存失败: %v", err)
		}
	}
	e.persist(ctx, res)
	return res, nil
}

// validate 校验请求，返回实际使用的精度
func (e *Estimator) validate(req Request) (int, error) {
	if req.Workflow == nil {
		return 0, fmt.Errorf("%w: workflow is required", ErrInvalidRequest)
	}
	if _, err := req.Algorithm.MarshalText(); err != nil {
		return 0, err
	}
	if req.Deadline < 0 {
		return 0, fmt.Errorf("%w: deadline must be >= 0, got %d", ErrInvalidRequest, req.Deadline)
	}
	precision := req.Precision
	if precision == 0 {
		precision = e.opts.DefaultPrecision
	}
	if precision < 1 {
		return 0, fmt.Errorf("%w: precision must be >= 1, got %d", ErrInvalidRequest, req.Precision)
	}
	return precision, nil
}

// planBTS 按精度缩放后运行BTS
func (e *Estimator) planBTS(g *dag.Graph, deadline, precision int) (*schedule.Plan, error) {
	scaled := g.Scale(precision)
	rft := deadline / precision
	if rft < 1 {
		rft = 1
	}

	cp := scaled.CriticalPath()
	if err := cp.ComputeAll(); err != nil {
		return nil, err
	}
	length, err := cp.Length()
	if err != nil {
		return nil, err
	}
	effective := rft
	if length > effective {
		effective = length
	}
	if e.opts.MaxDeadline > 0 && effective > e.opts.MaxDeadline {
		return nil, fmt.Errorf("%w: scaled deadline %d > %d (increase precision)", ErrDeadlineTooLarge, effective, e.opts.MaxDeadline)
	}
	return schedule.PlanBTS(scaled, rft, e.opts.BTS)
}

func (e *Estimator) cacheKey(fingerprint string, alg schedule.Algorithm, deadline, precision int) string {
	raw := fmt.Sprintf("%s|%s|%d|%d|%d|%d|%d|%d", fingerprint, alg, deadline, precision,
		e.opts.CostModel.Bandwidth, e.opts.CostModel.Latency, e.opts.BTS.Goal, e.opts.BTS.MaxIterations)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// persist 保存历史记录，失败只记录日志
func (e *Estimator) persist(ctx context.Context, res *Result) {
	if e.repo == nil {
		return
	}
	if err := e.repo.Save(ctx, toRecord(res)); err != nil {
		log.Warnf("⚠️ [Estimator] 保存估算记录失败: ID=%s, Error=%v", res.ID, err)
		return
	}
	log.Debugf("[Estimator] 估算记录已保存: ID=%s", res.ID)
}

// History 查询最近的估算记录
func (e *Estimator) History(ctx context.Context, limit int) ([]*storage.EstimateRecord, error) {
	if e.repo == nil {
		return nil, ErrStorageDisabled
	}
	return e.repo.List(ctx, limit)
}

// HistoryByFingerprint 查询同一工作流（相同指纹）的估算记录
func (e *Estimator) HistoryByFingerprint(ctx context.Context, fingerprint string, limit int) ([]*storage.EstimateRecord, error) {
	if e.repo == nil {
		return nil, ErrStorageDisabled
	}
	return e.repo.ListByFingerprint(ctx, fingerprint, limit)
}

// Delete 删除估算记录，同时清空结果缓存，避免命中缓存时返回已删除的ID
func (e *Estimator) Delete(ctx context.Context, id string) error {
	if e.repo == nil {
		return ErrStorageDisabled
	}
	if err := e.repo.Delete(ctx, id); err != nil {
		return err
	}
	if e.cache != nil {
		if err := e.cache.Clear(); err != nil {
			log.Warnf("⚠️ [Estimator] 清空缓存失败: %v", err)
		}
	}
	log.Infof("🗑️ [Estimator] 估算记录已删除: ID=%s", id)
	return nil
}

// Get 根据ID查询估算记录
func (e *Estimator) Get(ctx context.Context, id string) (*storage.EstimateRecord, error) {
	if e.repo == nil {
		return nil, ErrStorageDisabled
	}
	return e.repo.GetByID(ctx, id)
}

// clone 深拷贝切片与map，缓存中的结果不与调用方共享
func (r *Result) clone() *Result {
	out := *r
	if r.Schedule != nil {
		out.Schedule = append([]schedule.Placement(nil), r.Schedule...)
	}
	if r.Clusters != nil {
		out.Clusters = make(map[string]int, len(r.Clusters))
		for k, v := range r.Clusters {
			out.Clusters[k] = v
		}
	}
	return &out
}

func rescale(placements []schedule.Placement, scale int) []schedule.Placement {
	if scale <= 1 {
		return placements
	}
	out := make([]schedule.Placement, len(placements))
	for i, p := range placements {
		p.Start *= scale
		p.Finish *= scale
		out[i] = p
	}
	return out
}

func toRecord(res *Result) *storage.EstimateRecord {
	return &storage.EstimateRecord{
		ID:                res.ID,
		WorkflowName:      res.WorkflowName,
		Fingerprint:       res.Fingerprint,
		Algorithm:         res.Algorithm.String(),
		RequestedDeadline: res.RequestedDeadline,
		Deadline:          res.Deadline,
		Precision:         res.Precision,
		Processors:        res.Processors,
		CriticalPath:      res.CriticalPath,
		Makespan:          res.Makespan,
		TaskCount:         res.TaskCount,
		Duration:          res.Duration,
		Schedule:          res.Schedule,
		CreateTime:        res.CreatedAt,
	}
}
