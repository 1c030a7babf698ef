package schedule

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/LENAX/proc-estimator/pkg/core/dag"
)

// HEFTResult 单次HEFT调度结果
type HEFTResult struct {
	Processors int
	Makespan   int
	Schedule   []Placement
}

// HEFT 在size个同构处理器上做列表调度
// 调用前需对g的关键路径执行ComputeAll；每次运行只读图结构，可并发调用
func HEFT(g *dag.Graph, size int) (*HEFTResult, error) {
	if size < 1 {
		return nil, fmt.Errorf("processor count must be positive, got %d", size)
	}
	cp := g.CriticalPath()

	avail := make([]int, size)
	completion := make([]int, len(g.Edges))
	remaining := make([]int, g.Len())
	for i := range g.Nodes {
		remaining[i] = len(g.Nodes[i].In)
	}

	rank := func(n int) int {
		return cp.Down(n) + g.Nodes[n].Weight
	}

	ready := []int{dag.Top}
	schedule := make([]Placement, 0, g.TaskCount())
	bottomReady := 0

	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]

		est := 0
		for _, ei := range g.Nodes[n].In {
			if completion[ei] > est {
				est = completion[ei]
			}
		}

		start, finish := est, est
		switch {
		case n == dag.Bottom:
			bottomReady = est
		case n == dag.Top:
		default:
			r := pickResource(avail, est)
			if avail[r] > start {
				start = avail[r]
			}
			finish = start + g.Nodes[n].Weight
			avail[r] = finish
			schedule = append(schedule, Placement{TaskID: g.Nodes[n].ID, Start: start, Finish: finish, Processor: r})
		}

		for _, ei := range g.Nodes[n].Out {
			e := &g.Edges[ei]
			completion[ei] = finish + e.Cost
			remaining[e.To]--
			if remaining[e.To] == 0 {
				ready = insertByRank(ready, e.To, rank)
			}
		}
	}

	makespan := bottomReady
	for _, a := range avail {
		if a > makespan {
			makespan = a
		}
	}
	return &HEFTResult{Processors: size, Makespan: makespan, Schedule: schedule}, nil
}

// pickResource 第一个在est前空闲的处理器，否则选最早空闲的（相同取第一个）
func pickResource(avail []int, est int) int {
	least := 0
	for r, a := range avail {
		if a <= est {
			return r
		}
		if a < avail[least] {
			least = r
		}
	}
	return least
}

// insertByRank 按rank降序插入，相同rank排在已有节点之后
func insertByRank(queue []int, n int, rank func(int) int) []int {
	rn := rank(n)
	pos := len(queue)
	for i, q := range queue {
		if rank(q) < rn {
			pos = i
			break
		}
	}
	queue = append(queue, 0)
	copy(queue[pos+1:], queue[pos:])
	queue[pos] = n
	return queue
}

// IterHEFTOptions IterHEFT参数
type IterHEFTOptions struct {
	// Workers 并行试算的处理器数量个数，1表示顺序搜索
	Workers int
}

// PlanIterHEFT 从下界开始逐个增加处理器数，返回第一个使makespan不超过rft的数量
func PlanIterHEFT(ctx context.Context, g *dag.Graph, rft int, opts IterHEFTOptions) (*Plan, error) {
	rft, err := floorDeadline(g, rft)
	if err != nil {
		return nil, err
	}
	tasks := g.TaskCount()
	if tasks == 0 {
		return &Plan{Algorithm: IterHEFT, Deadline: rft}, nil
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	lower := 1
	if rft > 0 {
		if k := (g.TotalWeight() + rft - 1) / rft; k > lower {
			lower = k
		}
	}
	if lower > tasks {
		lower = tasks
	}

	iterations := 0
	for k := lower; k <= tasks; k += workers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := workers
		if k+batch-1 > tasks {
			batch = tasks - k + 1
		}

		results := make([]*HEFTResult, batch)
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(workers)
		for i := 0; i < batch; i++ {
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				res, err := HEFT(g, k+i)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		iterations += batch

		for _, res := range results {
			if res.Makespan <= rft || res.Processors == tasks {
				log.Debugf("[IterHEFT] 估算完成: RFT=%d, Processors=%d, Makespan=%d, Trials=%d",
					rft, res.Processors, res.Makespan, iterations)
				return &Plan{
					Algorithm:  IterHEFT,
					Processors: res.Processors,
					Deadline:   rft,
					Makespan:   res.Makespan,
					Schedule:   res.Schedule,
					Iterations: iterations,
				}, nil
			}
		}
	}
	return nil, fmt.Errorf("[IterHEFT] no processor count satisfied deadline %d", rft)
}
