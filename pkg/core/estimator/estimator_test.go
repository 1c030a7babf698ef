package estimator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/proc-estimator/pkg/config"
	"github.com/LENAX/proc-estimator/pkg/core/cache"
	"github.com/LENAX/proc-estimator/pkg/core/dag"
	"github.com/LENAX/proc-estimator/pkg/core/schedule"
	"github.com/LENAX/proc-estimator/pkg/storage"
	"github.com/LENAX/proc-estimator/pkg/storage/sqlite"
	"github.com/LENAX/proc-estimator/pkg/workflow"
)

func diamond() *workflow.Workflow {
	return &workflow.Workflow{
		Name: "diamond",
		Tasks: []workflow.Task{
			{ID: "j1", Weight: 10}, {ID: "j2", Weight: 10}, {ID: "j3", Weight: 10}, {ID: "j4", Weight: 10},
		},
		Dependencies: []workflow.Dependency{
			{From: "j1", To: "j2"}, {From: "j1", To: "j3"}, {From: "j2", To: "j4"}, {From: "j3", To: "j4"},
		},
	}
}

func TestEstimate_Algorithms(t *testing.T) {
	est := New(Options{HEFTWorkers: 2}, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name       string
		alg        schedule.Algorithm
		deadline   int
		processors int
		effective  int
	}{
		{"BTS at critical path", schedule.BTS, 0, 2, 30},
		{"BTS with room to serialize", schedule.BTS, 40, 1, 40},
		{"BTS below critical path", schedule.BTS, 20, 2, 30},
		{"IterHEFT below critical path", schedule.IterHEFT, 20, 2, 30},
		{"IterHEFT relaxed", schedule.IterHEFT, 40, 1, 40},
		{"DSC", schedule.DSC, 0, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: tt.alg, Deadline: tt.deadline})
			require.NoError(t, err)
			assert.Equal(t, tt.processors, res.Processors)
			assert.Equal(t, tt.effective, res.Deadline)
			assert.Equal(t, 30, res.CriticalPath)
			assert.Equal(t, 4, res.TaskCount)
			assert.NotEmpty(t, res.ID)
			assert.False(t, res.Cached)
		})
	}
}

func TestEstimate_DSCClusters(t *testing.T) {
	res, err := New(Options{}, nil, nil).Estimate(context.Background(), Request{Workflow: diamond(), Algorithm: schedule.DSC})
	require.NoError(t, err)
	assert.Len(t, res.Clusters, 4)
	assert.Equal(t, 30, res.Makespan)
}

func TestEstimate_PrecisionScalesBTS(t *testing.T) {
	res, err := New(Options{}, nil, nil).Estimate(context.Background(), Request{
		Workflow:  diamond(),
		Algorithm: schedule.BTS,
		Deadline:  40,
		Precision: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processors)
	assert.Equal(t, 40, res.Deadline)
	assert.Equal(t, 10, res.Precision)
	require.Len(t, res.Schedule, 4)
	for _, p := range res.Schedule {
		assert.Zero(t, p.Start%10, p.TaskID)
		assert.Equal(t, 10, p.Finish-p.Start, p.TaskID)
		assert.LessOrEqual(t, p.Finish, 40, p.TaskID)
	}
}

func TestEstimate_DeadlineTooLarge(t *testing.T) {
	est := New(Options{MaxDeadline: 20}, nil, nil)
	ctx := context.Background()

	_, err := est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.BTS, Deadline: 30})
	assert.ErrorIs(t, err, ErrDeadlineTooLarge)

	// 精度为2时截止时间缩放到15
	res, err := est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.BTS, Deadline: 30, Precision: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processors)

	// 上限只约束BTS
	_, err = est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.IterHEFT, Deadline: 30})
	assert.NoError(t, err)
}

func TestEstimate_InvalidRequests(t *testing.T) {
	est := New(Options{}, nil, nil)
	ctx := context.Background()

	_, err := est.Estimate(ctx, Request{Algorithm: schedule.BTS})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.BTS, Deadline: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.BTS, Precision: -2})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.Algorithm(42)})
	assert.ErrorIs(t, err, schedule.ErrUnknownAlgorithm)
}

func TestEstimate_CycleIsFatal(t *testing.T) {
	wf := diamond()
	wf.Dependencies = append(wf.Dependencies, workflow.Dependency{From: "j4", To: "j1"})

	res, err := New(Options{}, nil, nil).Estimate(context.Background(), Request{Workflow: wf, Algorithm: schedule.BTS})
	assert.ErrorIs(t, err, dag.ErrCycle)
	assert.Nil(t, res)
}

func TestEstimate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}, nil, nil).Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.IterHEFT})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEstimate_UsesCache(t *testing.T) {
	resultCache := cache.NewMemoryResultCache[*Result](time.Minute, time.Minute)
	est := New(Options{}, nil, resultCache)
	defer est.Close()
	ctx := context.Background()

	first, err := est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.BTS})
	require.NoError(t, err)
	second, err := est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.BTS})
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, resultCache.Len())

	// 参数不同不命中
	third, err := est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.BTS, Deadline: 40})
	require.NoError(t, err)
	assert.False(t, third.Cached)
}

func TestEstimate_CacheHitDoesNotShareSlices(t *testing.T) {
	resultCache := cache.NewMemoryResultCache[*Result](time.Minute, time.Minute)
	est := New(Options{}, nil, resultCache)
	defer est.Close()
	ctx := context.Background()

	_, err := est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.DSC})
	require.NoError(t, err)

	hit, err := est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.DSC})
	require.NoError(t, err)
	require.True(t, hit.Cached)
	require.NotEmpty(t, hit.Schedule)
	hit.Schedule[0].Start = -100
	hit.Clusters["j1"] = -1

	again, err := est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.DSC})
	require.NoError(t, err)
	assert.NotEqual(t, -100, again.Schedule[0].Start)
	assert.NotEqual(t, -1, again.Clusters["j1"])
}

func TestEstimate_PersistsHistory(t *testing.T) {
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "history.db"), storage.PoolOptions{MaxOpenConns: 1})
	require.NoError(t, err)
	est := New(Options{}, repo, nil)
	defer est.Close()
	ctx := context.Background()

	res, err := est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.IterHEFT, Deadline: 40})
	require.NoError(t, err)

	rec, err := est.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "IterHEFT", rec.Algorithm)
	assert.Equal(t, 1, rec.Processors)
	assert.Equal(t, 40, rec.RequestedDeadline)
	assert.Len(t, rec.Schedule, 4)

	history, err := est.History(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	same, err := est.HistoryByFingerprint(ctx, res.Fingerprint, 10)
	require.NoError(t, err)
	require.Len(t, same, 1)
	assert.Equal(t, res.ID, same[0].ID)
	other, err := est.HistoryByFingerprint(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, est.Delete(ctx, res.ID))
	_, err = est.Get(ctx, res.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, est.Delete(ctx, res.ID), storage.ErrNotFound)
}

func TestEstimate_DeleteClearsCache(t *testing.T) {
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "history.db"), storage.PoolOptions{MaxOpenConns: 1})
	require.NoError(t, err)
	resultCache := cache.NewMemoryResultCache[*Result](time.Minute, time.Minute)
	est := New(Options{}, repo, resultCache)
	defer est.Close()
	ctx := context.Background()

	first, err := est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.BTS})
	require.NoError(t, err)
	require.NoError(t, est.Delete(ctx, first.ID))
	assert.Equal(t, 0, resultCache.Len())

	second, err := est.Estimate(ctx, Request{Workflow: diamond(), Algorithm: schedule.BTS})
	require.NoError(t, err)
	assert.False(t, second.Cached)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEstimate_HistoryWithoutStorage(t *testing.T) {
	est := New(Options{}, nil, nil)
	_, err := est.History(context.Background(), 10)
	assert.ErrorIs(t, err, ErrStorageDisabled)
	_, err = est.Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrStorageDisabled)
	_, err = est.HistoryByFingerprint(context.Background(), "fp", 10)
	assert.ErrorIs(t, err, ErrStorageDisabled)
	assert.ErrorIs(t, est.Delete(context.Background(), "x"), ErrStorageDisabled)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ProcEstimator.Storage.Cache.Enabled = true
	est := NewFromConfig(cfg, nil)
	defer est.Close()

	assert.NotNil(t, est.cache)
	assert.Equal(t, cfg.GetHEFTWorkers(), est.opts.HEFTWorkers)
	assert.Equal(t, cfg.ProcEstimator.Estimation.MaxDeadline, est.opts.MaxDeadline)

	res, err := est.Estimate(context.Background(), Request{Workflow: diamond(), Algorithm: schedule.BTS})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processors)
}
