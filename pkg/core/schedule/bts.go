package schedule

import (
	log "github.com/sirupsen/logrus"

	"github.com/LENAX/proc-estimator/pkg/core/dag"
)

const (
	// DefaultBalanceGoal 再平衡的目标高度
	DefaultBalanceGoal = 1
	// DefaultBalanceIterations 再平衡迭代次数上限
	DefaultBalanceIterations = 10000
)

// BTSOptions BTS参数
type BTSOptions struct {
	Goal          int
	MaxIterations int
}

func (o BTSOptions) withDefaults() BTSOptions {
	if o.Goal < 1 {
		o.Goal = DefaultBalanceGoal
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultBalanceIterations
	}
	return o
}

// PlanBTS 在截止时间rft内装箱所有任务，占用图高度即处理器数量
// rft小于关键路径时提升到关键路径长度
func PlanBTS(g *dag.Graph, rft int, opts BTSOptions) (*Plan, error) {
	opts = opts.withDefaults()

	rft, err := floorDeadline(g, rft)
	if err != nil {
		return nil, err
	}

	d, err := NewDiagram(g, rft)
	if err != nil {
		return nil, err
	}
	d.Stack()
	stacked := d.Height()
	iterations := d.Balance(opts.Goal, opts.MaxIterations)

	plan := &Plan{
		Algorithm:  BTS,
		Processors: atLeastOne(g, d.Height()),
		Deadline:   d.Deadline(),
		Makespan:   d.Makespan(),
		Schedule:   d.Placements(),
		Iterations: iterations,
	}
	log.Debugf("[BTS] 估算完成: RFT=%d, Stacked=%d, Balanced=%d", rft, stacked, plan.Processors)
	return plan, nil
}

// floorDeadline 截止时间不能低于关键路径长度
func floorDeadline(g *dag.Graph, rft int) (int, error) {
	cp := g.CriticalPath()
	if err := cp.ComputeAll(); err != nil {
		return 0, err
	}
	length, err := cp.Length()
	if err != nil {
		return 0, err
	}
	if rft < length {
		log.Debugf("[Schedule] 截止时间%d低于关键路径%d，已提升", rft, length)
		return length, nil
	}
	return rft, nil
}

// atLeastOne 非空图至少需要一个处理器
func atLeastOne(g *dag.Graph, n int) int {
	if n < 1 && g.TaskCount() > 0 {
		return 1
	}
	return n
}
