package schedule

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/proc-estimator/pkg/core/dag"
)

func buildDiamond(t *testing.T, w int) *dag.Graph {
	t.Helper()
	g, err := dag.Build(
		[]dag.TaskSpec{{ID: "j1", Weight: w}, {ID: "j2", Weight: w}, {ID: "j3", Weight: w}, {ID: "j4", Weight: w}},
		[]dag.DependencySpec{
			{From: "j1", To: "j2"},
			{From: "j1", To: "j3"},
			{From: "j2", To: "j4"},
			{From: "j3", To: "j4"},
		},
		dag.BuildOptions{CostModel: dag.DefaultCostModel()},
	)
	require.NoError(t, err)
	return g
}

func buildChain(t *testing.T, n, w int) *dag.Graph {
	t.Helper()
	tasks := make([]dag.TaskSpec, n)
	var deps []dag.DependencySpec
	for i := range tasks {
		tasks[i] = dag.TaskSpec{ID: fmt.Sprintf("c%d", i), Weight: w}
		if i > 0 {
			deps = append(deps, dag.DependencySpec{From: fmt.Sprintf("c%d", i-1), To: fmt.Sprintf("c%d", i)})
		}
	}
	g, err := dag.Build(tasks, deps, dag.BuildOptions{})
	require.NoError(t, err)
	return g
}

// buildRandom 固定种子生成的随机DAG，只从小下标连向大下标
func buildRandom(t *testing.T, seed int64, n int) *dag.Graph {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	tasks := make([]dag.TaskSpec, n)
	var deps []dag.DependencySpec
	for i := 0; i < n; i++ {
		tasks[i] = dag.TaskSpec{ID: fmt.Sprintf("n%d", i), Weight: rng.Intn(10)}
		for j := 0; j < i; j++ {
			if rng.Float64() < 0.15 {
				deps = append(deps, dag.DependencySpec{
					From: fmt.Sprintf("n%d", j),
					To:   fmt.Sprintf("n%d", i),
					Size: int64(rng.Intn(4)),
				})
			}
		}
	}
	g, err := dag.Build(tasks, deps, dag.BuildOptions{CostModel: dag.DefaultCostModel()})
	require.NoError(t, err)
	return g
}

func criticalPath(t *testing.T, g *dag.Graph) int {
	t.Helper()
	length, err := g.CriticalPath().Length()
	require.NoError(t, err)
	return length
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in   string
		want Algorithm
	}{
		{"BTS", BTS},
		{"bts", BTS},
		{"DSC", DSC},
		{"IterHEFT", IterHEFT},
		{"iterheft", IterHEFT},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseAlgorithm("HEFT")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
	assert.Contains(t, err.Error(), "supported: BTS, DSC, IterHEFT")

	var a Algorithm
	require.NoError(t, a.UnmarshalText([]byte("dsc")))
	assert.Equal(t, DSC, a)
	text, err := IterHEFT.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "IterHEFT", string(text))
	assert.False(t, DSC.UsesDeadline())
	assert.Equal(t, []Algorithm{BTS, DSC, IterHEFT}, Algorithms())
}

func TestChain_AllAlgorithmsNeedOneProcessor(t *testing.T) {
	g := buildChain(t, 6, 5)

	bts, err := PlanBTS(g, 30, BTSOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, bts.Processors)

	dsc, err := PlanDSC(g)
	require.NoError(t, err)
	assert.Equal(t, 1, dsc.Processors)

	heft, err := PlanIterHEFT(context.Background(), g, 30, IterHEFTOptions{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, heft.Processors)
	assert.Equal(t, 30, heft.Makespan)
}

func TestBTS_Diamond(t *testing.T) {
	g := buildDiamond(t, 10)

	tight, err := PlanBTS(g, 30, BTSOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, tight.Processors)
	assert.Equal(t, 30, tight.Deadline)

	loose, err := PlanBTS(g, 40, BTSOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, loose.Processors)
	assert.Len(t, loose.Schedule, 4)
}

func TestBTS_DeadlineBelowCriticalPathIsRaised(t *testing.T) {
	g := buildDiamond(t, 10)

	plan, err := PlanBTS(g, 20, BTSOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Processors)
	assert.Equal(t, 30, plan.Deadline)
}

func TestIterHEFT_Scenario(t *testing.T) {
	g := buildDiamond(t, 10)
	ctx := context.Background()

	plan, err := PlanIterHEFT(ctx, g, 20, IterHEFTOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Processors)
	assert.Equal(t, 30, plan.Deadline)
	assert.Equal(t, 30, plan.Makespan)

	plan, err = PlanIterHEFT(ctx, g, 40, IterHEFTOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Processors)
	assert.Equal(t, 40, plan.Makespan)
}

func TestDSC_Diamond(t *testing.T) {
	g := buildDiamond(t, 10)

	plan, err := PlanDSC(g)
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Processors)
	assert.Equal(t, 30, plan.Makespan)
	assert.Equal(t, plan.Clusters["j1"], plan.Clusters["j2"])
	assert.Equal(t, plan.Clusters["j1"], plan.Clusters["j4"])
	assert.NotEqual(t, plan.Clusters["j1"], plan.Clusters["j3"])
}

func TestDSC_ClusterCountWithinBounds(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		g := buildRandom(t, seed, 40)
		plan, err := PlanDSC(g)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, plan.Processors, 1)
		assert.LessOrEqual(t, plan.Processors, g.TaskCount())
		assert.Len(t, plan.Clusters, g.TaskCount())
	}
}

func TestDSC_IndependentTasksGetOwnClusters(t *testing.T) {
	g, err := dag.Build(
		[]dag.TaskSpec{{ID: "a", Weight: 3}, {ID: "b", Weight: 3}, {ID: "c", Weight: 3}},
		nil,
		dag.BuildOptions{},
	)
	require.NoError(t, err)

	plan, err := PlanDSC(g)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.Processors)
}

func TestBTS_FeasibleAtCriticalPath(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			g := buildRandom(t, seed, 30)
			rft := criticalPath(t, g)

			d, err := NewDiagram(g, rft)
			require.NoError(t, err)
			d.Stack()
			require.NoError(t, d.Feasible())

			d.Balance(DefaultBalanceGoal, DefaultBalanceIterations)
			require.NoError(t, d.Feasible())
			assert.LessOrEqual(t, d.Height(), g.TaskCount())
			assert.LessOrEqual(t, d.Makespan(), rft)
		})
	}
}

func TestBTS_FeasibleWithSlack(t *testing.T) {
	for seed := int64(11); seed <= 15; seed++ {
		g := buildRandom(t, seed, 30)
		rft := criticalPath(t, g) * 2

		d, err := NewDiagram(g, rft)
		require.NoError(t, err)
		d.Stack()
		stacked := d.Height()
		d.Balance(DefaultBalanceGoal, DefaultBalanceIterations)
		require.NoError(t, d.Feasible())
		assert.LessOrEqual(t, d.Height(), stacked)
	}
}

func TestDiagram_RejectsDeadlineBelowCriticalPath(t *testing.T) {
	g := buildDiamond(t, 10)
	_, err := NewDiagram(g, 29)
	assert.Error(t, err)
}

func TestDiagram_BalanceWithoutPropagation(t *testing.T) {
	g, err := dag.Build(
		[]dag.TaskSpec{{ID: "x", Weight: 2}, {ID: "y", Weight: 2}},
		nil,
		dag.BuildOptions{},
	)
	require.NoError(t, err)

	d, err := NewDiagram(g, 4)
	require.NoError(t, err)
	x, _ := g.Index("x")
	y, _ := g.Index("y")
	d.place(x, 0)
	d.place(y, 0)
	require.Equal(t, 2, d.Height())

	iterations := d.Balance(1, 10)
	assert.Equal(t, 1, iterations)
	assert.Equal(t, 1, d.Height())
	require.NoError(t, d.Feasible())
}

func TestDiagram_BalanceWithPropagation(t *testing.T) {
	g := buildDiamond(t, 1)
	d, err := NewDiagram(g, 4)
	require.NoError(t, err)

	idx := func(id string) int {
		i, ok := g.Index(id)
		require.True(t, ok)
		return i
	}
	// j2和j3在时间单位1重叠，两者都被j1/j4夹住，只能带着j4一起右移
	d.place(idx("j1"), 0)
	d.place(idx("j2"), 1)
	d.place(idx("j3"), 1)
	d.place(idx("j4"), 2)
	require.Equal(t, 2, d.Height())
	require.False(t, d.moveWithoutPropagation(2))

	d.Balance(1, 10)
	assert.Equal(t, 1, d.Height())
	require.NoError(t, d.Feasible())
	assert.Equal(t, 4, d.Makespan())
}

func TestDiagram_ZeroWeightTasksDoNotOccupy(t *testing.T) {
	g, err := dag.Build(
		[]dag.TaskSpec{{ID: "a", Weight: 3}, {ID: "marker", Weight: 0}, {ID: "b", Weight: 3}},
		[]dag.DependencySpec{{From: "a", To: "marker"}, {From: "marker", To: "b"}},
		dag.BuildOptions{},
	)
	require.NoError(t, err)

	plan, err := PlanBTS(g, 6, BTSOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Processors)
	for _, p := range plan.Schedule {
		if p.TaskID == "marker" {
			assert.Equal(t, 3, p.Start)
			assert.Equal(t, p.Start, p.Finish)
		}
	}
}

func TestDiagram_StackTieBreakFollowsRelativeCounts(t *testing.T) {
	g, err := dag.Build(
		[]dag.TaskSpec{{ID: "a", Weight: 1}, {ID: "b", Weight: 1}},
		[]dag.DependencySpec{{From: "a", To: "b"}},
		dag.BuildOptions{},
	)
	require.NoError(t, err)

	d, err := NewDiagram(g, 5)
	require.NoError(t, err)
	d.Stack()
	require.NoError(t, d.Feasible())

	starts := make(map[string]int)
	for _, p := range d.Placements() {
		starts[p.TaskID] = p.Start
	}
	// a的后代多于祖先，取最早的最低峰值窗口；b相反，取最晚的
	assert.Equal(t, 0, starts["a"])
	assert.Equal(t, 4, starts["b"])
}

func TestDiagram_ZeroWeightTasksAreResolvedAfterStacking(t *testing.T) {
	g, err := dag.Build(
		[]dag.TaskSpec{{ID: "gate", Weight: 0}, {ID: "work", Weight: 2}},
		[]dag.DependencySpec{{From: "gate", To: "work"}},
		dag.BuildOptions{},
	)
	require.NoError(t, err)

	d, err := NewDiagram(g, 4)
	require.NoError(t, err)
	d.Stack()
	require.NoError(t, d.Feasible())

	starts := make(map[string]int)
	for _, p := range d.Placements() {
		starts[p.TaskID] = p.Start
	}
	assert.Equal(t, 2, starts["work"])
	assert.Equal(t, 0, starts["gate"])
	assert.Equal(t, 1, d.Height())
}

func TestHEFT_RespectsPrecedence(t *testing.T) {
	g := buildRandom(t, 42, 40)
	require.NoError(t, g.CriticalPath().ComputeAll())

	res, err := HEFT(g, 3)
	require.NoError(t, err)
	require.Len(t, res.Schedule, g.TaskCount())

	start := make(map[string]Placement, len(res.Schedule))
	for _, p := range res.Schedule {
		start[p.TaskID] = p
		assert.GreaterOrEqual(t, p.Processor, 0)
		assert.Less(t, p.Processor, 3)
	}
	for _, e := range g.Edges {
		if g.IsSentinel(e.From) || g.IsSentinel(e.To) {
			continue
		}
		from := start[g.Nodes[e.From].ID]
		to := start[g.Nodes[e.To].ID]
		assert.LessOrEqual(t, from.Finish+e.Cost, to.Start)
	}
}

func TestHEFT_RejectsNonPositiveSize(t *testing.T) {
	g := buildDiamond(t, 1)
	_, err := HEFT(g, 0)
	assert.Error(t, err)
}

func TestIterHEFT_NonIncreasingInDeadline(t *testing.T) {
	ctx := context.Background()
	for seed := int64(1); seed <= 5; seed++ {
		g := buildRandom(t, seed, 30)
		length := criticalPath(t, g)

		prev := g.TaskCount() + 1
		for rft := length; rft <= 3*length+1; rft += 3 {
			plan, err := PlanIterHEFT(ctx, g, rft, IterHEFTOptions{Workers: 1})
			require.NoError(t, err)
			assert.LessOrEqual(t, plan.Processors, prev, "seed=%d rft=%d", seed, rft)
			assert.LessOrEqual(t, plan.Makespan, plan.Deadline)
			prev = plan.Processors
		}
	}
}

func TestIterHEFT_ParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()
	for seed := int64(1); seed <= 5; seed++ {
		g := buildRandom(t, seed, 30)
		length := criticalPath(t, g)

		seq, err := PlanIterHEFT(ctx, g, length, IterHEFTOptions{Workers: 1})
		require.NoError(t, err)
		par, err := PlanIterHEFT(ctx, g, length, IterHEFTOptions{Workers: 4})
		require.NoError(t, err)
		assert.Equal(t, seq.Processors, par.Processors)
	}
}

func TestIterHEFT_CancelledContext(t *testing.T) {
	g := buildDiamond(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := PlanIterHEFT(ctx, g, 30, IterHEFTOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmptyGraph(t *testing.T) {
	g, err := dag.Build(nil, nil, dag.BuildOptions{})
	require.NoError(t, err)

	bts, err := PlanBTS(g, 0, BTSOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, bts.Processors)

	dsc, err := PlanDSC(g)
	require.NoError(t, err)
	assert.Equal(t, 0, dsc.Processors)

	heft, err := PlanIterHEFT(context.Background(), g, 0, IterHEFTOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, heft.Processors)
}
