package schedule

import (
	"container/heap"

	log "github.com/sirupsen/logrus"

	"github.com/LENAX/proc-estimator/pkg/core/dag"
)

// dscState DSC单次运行的状态
type dscState struct {
	g         *dag.Graph
	cp        *dag.CriticalPath
	topLevel  []int
	cluster   []int
	finish    []int // 每个簇的结束时间
	remaining []int // 未检查的父节点数
}

// PlanDSC 主导序列聚类：簇数即处理器数量，不使用截止时间
func PlanDSC(g *dag.Graph) (*Plan, error) {
	cp := g.CriticalPath()
	if err := cp.ComputeAll(); err != nil {
		return nil, err
	}

	n := g.Len()
	s := &dscState{
		g:         g,
		cp:        cp,
		topLevel:  make([]int, n),
		cluster:   make([]int, n),
		remaining: make([]int, n),
	}
	for i := range s.cluster {
		s.cluster[i] = -1
		s.remaining[i] = len(g.Nodes[i].In)
	}

	free := &freeQueue{}
	heap.Push(free, freeEntry{node: dag.Top, priority: cp.Down(dag.Top)})
	seq := 1

	for free.Len() > 0 {
		x := heap.Pop(free).(freeEntry).node
		if !g.IsSentinel(x) {
			s.assign(x)
		}
		for _, ei := range g.Nodes[x].Out {
			c := g.Edges[ei].To
			s.remaining[c]--
			if s.remaining[c] == 0 {
				s.topLevel[c] = s.tentativeTopLevel(c)
				heap.Push(free, freeEntry{node: c, priority: s.topLevel[c] + cp.Down(c), seq: seq})
				seq++
			}
		}
	}

	clusters := make(map[string]int, g.TaskCount())
	schedule := make([]Placement, 0, g.TaskCount())
	for i := dag.Bottom + 1; i < n; i++ {
		clusters[g.Nodes[i].ID] = s.cluster[i]
		schedule = append(schedule, Placement{
			TaskID:    g.Nodes[i].ID,
			Start:     s.topLevel[i],
			Finish:    s.topLevel[i] + g.Nodes[i].Weight,
			Processor: -1,
		})
	}

	plan := &Plan{
		Algorithm:  DSC,
		Processors: len(s.finish),
		Makespan:   s.topLevel[dag.Bottom],
		Schedule:   schedule,
		Clusters:   clusters,
	}
	log.Debugf("[DSC] 聚类完成: Tasks=%d, Clusters=%d", g.TaskCount(), plan.Processors)
	return plan, nil
}

// tentativeTopLevel 所有父节点都在不同簇时的开始时间
func (s *dscState) tentativeTopLevel(n int) int {
	tl := 0
	for _, ei := range s.g.Nodes[n].In {
		e := &s.g.Edges[ei]
		if v := s.topLevel[e.From] + s.g.Nodes[e.From].Weight + e.Cost; v > tl {
			tl = v
		}
	}
	return tl
}

// assign 尝试并入某个父节点所在的簇，并入后开始时间不晚于tentative时才接受
func (s *dscState) assign(n int) {
	tl := s.topLevel[n]
	for _, ei := range s.g.Nodes[n].In {
		p := s.g.Edges[ei].From
		if s.g.IsSentinel(p) {
			continue
		}
		c := s.cluster[p]
		if merged := s.mergedTopLevel(n, c); merged <= tl {
			s.cluster[n] = c
			s.topLevel[n] = merged
			s.finish[c] = merged + s.g.Nodes[n].Weight
			return
		}
	}

	s.cluster[n] = len(s.finish)
	s.finish = append(s.finish, tl+s.g.Nodes[n].Weight)
}

// mergedTopLevel 节点并入簇c后的开始时间：同簇父节点的通信开销记为0
func (s *dscState) mergedTopLevel(n, c int) int {
	tl := s.finish[c]
	for _, ei := range s.g.Nodes[n].In {
		e := &s.g.Edges[ei]
		v := s.topLevel[e.From] + s.g.Nodes[e.From].Weight
		if s.cluster[e.From] != c {
			v += e.Cost
		}
		if v > tl {
			tl = v
		}
	}
	return tl
}

type freeEntry struct {
	node     int
	priority int
	seq      int
}

// freeQueue 按 topLevel + downLength 从大到小，相同时先进先出
type freeQueue []freeEntry

func (q freeQueue) Len() int { return len(q) }
func (q freeQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q freeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *freeQueue) Push(x any)   { *q = append(*q, x.(freeEntry)) }
func (q *freeQueue) Pop() any {
	old := *q
	e := old[len(old)-1]
	*q = old[:len(old)-1]
	return e
}
