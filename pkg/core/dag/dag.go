package dag

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	godag "github.com/begmaroman/go-dag"
)

// Graph 任务图（对外导出）
// 节点与边以下标寻址，Nodes[Top]和Nodes[Bottom]是两个哨兵节点
type Graph struct {
	Nodes []Node
	Edges []Edge

	index map[string]int
	cp    *CriticalPath

	relMu   sync.Mutex
	rel     []relatives
	relDone []bool
}

func newGraph(capacity int) *Graph {
	g := &Graph{
		Nodes: make([]Node, 0, capacity+2),
		index: make(map[string]int, capacity+2),
	}
	g.addNode(TopID, "TOP", 0)
	g.addNode(BottomID, "BOTTOM", 0)
	return g
}

func (g *Graph) addNode(id, name string, weight int) int {
	idx := len(g.Nodes)
	g.Nodes = append(g.Nodes, Node{ID: id, Name: name, Weight: weight})
	g.index[id] = idx
	return idx
}

func (g *Graph) addEdge(from, to int, label string, size int64, cost int) {
	idx := len(g.Edges)
	g.Edges = append(g.Edges, Edge{From: from, To: to, Label: label, Size: size, Cost: cost})
	g.Nodes[from].Out = append(g.Nodes[from].Out, idx)
	g.Nodes[to].In = append(g.Nodes[to].In, idx)
}

// Build 从任务/依赖描述构建任务图（对外导出）
// 没有声明输入的任务自动挂到TOP下，没有声明输出的任务自动连到BOTTOM，开销均为0
func Build(tasks []TaskSpec, deps []DependencySpec, opts BuildOptions) (*Graph, error) {
	g := newGraph(len(tasks))

	for i, t := range tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("%w: tasks[%d].id is empty", ErrMalformedGraph, i)
		}
		if t.ID == TopID || t.ID == BottomID {
			return nil, fmt.Errorf("%w: task id %q is reserved", ErrMalformedGraph, t.ID)
		}
		if _, exists := g.index[t.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate task id %q", ErrMalformedGraph, t.ID)
		}
		if t.Weight < 0 {
			return nil, fmt.Errorf("%w: task %q has negative weight %d", ErrMalformedGraph, t.ID, t.Weight)
		}
		name := t.Name
		if name == "" {
			name = t.ID
		}
		g.addNode(t.ID, name, t.Weight)
	}

	merged, err := g.mergeDependencies(deps)
	if err != nil {
		return nil, err
	}

	for _, d := range merged {
		g.addEdge(g.index[d.From], g.index[d.To], d.Label, d.Size, opts.CostModel.Cost(d.Size))
	}

	// 补齐哨兵边
	for i := Bottom + 1; i < len(g.Nodes); i++ {
		if len(g.Nodes[i].In) == 0 {
			g.addEdge(Top, i, "", 0, 0)
		}
		if len(g.Nodes[i].Out) == 0 {
			g.addEdge(i, Bottom, "", 0, 0)
		}
	}

	// 先在下标图上一次性检测环（线性时间），确认有环后才用 go-dag 定位闭合边
	g.cp = NewCriticalPath(g)
	if !opts.SkipCycleCheck {
		if err := g.cp.ComputeAll(); err != nil {
			if located := locateCycle(tasks, merged); located != nil {
				return nil, located
			}
			return nil, err
		}
	}
	return g, nil
}

// mergeDependencies 校验依赖并合并重复的(from,to)：数据量相加，label合并
func (g *Graph) mergeDependencies(deps []DependencySpec) ([]DependencySpec, error) {
	type key struct{ from, to string }
	pos := make(map[key]int, len(deps))
	merged := make([]DependencySpec, 0, len(deps))

	for i, d := range deps {
		if d.From == "" || d.To == "" {
			return nil, fmt.Errorf("%w: dependencies[%d] has an empty endpoint", ErrMalformedGraph, i)
		}
		if _, ok := g.index[d.From]; !ok || d.From == TopID || d.From == BottomID {
			return nil, fmt.Errorf("%w: dependencies[%d] references unknown task %q", ErrMalformedGraph, i, d.From)
		}
		if _, ok := g.index[d.To]; !ok || d.To == TopID || d.To == BottomID {
			return nil, fmt.Errorf("%w: dependencies[%d] references unknown task %q", ErrMalformedGraph, i, d.To)
		}
		if d.From == d.To {
			return nil, fmt.Errorf("%w: task %q depends on itself", ErrMalformedGraph, d.From)
		}
		if d.Size < 0 {
			return nil, fmt.Errorf("%w: dependencies[%d] has negative size %d", ErrMalformedGraph, i, d.Size)
		}

		k := key{d.From, d.To}
		if p, ok := pos[k]; ok {
			merged[p].Size += d.Size
			if d.Label != "" {
				if merged[p].Label == "" {
					merged[p].Label = d.Label
				} else {
					merged[p].Label = merged[p].Label + "," + d.Label
				}
			}
			continue
		}
		pos[k] = len(merged)
		merged = append(merged, d)
	}
	return merged, nil
}

// cycleLocateLimit 超过该任务数时不再定位闭合边，go-dag 每次 AddEdge 都要遍历祖先/后代
const cycleLocateLimit = 2000

// vertex go-dag 顶点（实现 Identifiable 与 Hashable 接口）
type vertex struct {
	id string
}

func (v *vertex) ID() string {
	return v.id
}

// Hash 按任务ID计算哈希，未导出字段无法被默认的JSON哈希区分
func (v *vertex) Hash() (godag.VHash, error) {
	return godag.ToHash(v.id)
}

// locateCycle 按依赖顺序把边加入 go-dag，AddEdge 拒绝的第一条边即闭合环的边
// 返回nil表示未能定位
func locateCycle(tasks []TaskSpec, deps []DependencySpec) error {
	if len(tasks) > cycleLocateLimit {
		return nil
	}
	d := godag.NewDAG[*vertex]()
	for _, t := range tasks {
		if _, err := d.AddVertex(&vertex{id: t.ID}); err != nil {
			return nil
		}
	}
	for _, dep := range deps {
		if err := d.AddEdge(dep.From, dep.To); err != nil {
			var loop godag.EdgeLoopError
			if errors.As(err, &loop) {
				return fmt.Errorf("%w: dependency %s -> %s closes a cycle", ErrCycle, dep.From, dep.To)
			}
			return nil
		}
	}
	return nil
}

// Len 节点总数（含哨兵）
func (g *Graph) Len() int {
	return len(g.Nodes)
}

// TaskCount 非哨兵节点数
func (g *Graph) TaskCount() int {
	return len(g.Nodes) - 2
}

// IsSentinel 是否为TOP/BOTTOM
func (g *Graph) IsSentinel(i int) bool {
	return i == Top || i == Bottom
}

// Index 根据任务ID查找节点下标
func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// TotalWeight 所有任务执行时间之和
func (g *Graph) TotalWeight() int {
	total := 0
	for i := range g.Nodes {
		total += g.Nodes[i].Weight
	}
	return total
}

// CriticalPath 返回该图的关键路径分析器
func (g *Graph) CriticalPath() *CriticalPath {
	return g.cp
}

// Scale 按精度粗化时间粒度，返回新图：weight/cost 替换为 ceil(value / precision)
func (g *Graph) Scale(precision int) *Graph {
	if precision <= 1 {
		return g
	}
	p := int64(precision)
	scaled := &Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
		index: make(map[string]int, len(g.index)),
	}
	for i, n := range g.Nodes {
		scaled.Nodes[i] = Node{
			ID:     n.ID,
			Name:   n.Name,
			Weight: int(ceilDiv(int64(n.Weight), p)),
			In:     append([]int(nil), n.In...),
			Out:    append([]int(nil), n.Out...),
		}
	}
	for i, e := range g.Edges {
		e.Cost = int(ceilDiv(int64(e.Cost), p))
		scaled.Edges[i] = e
	}
	for id, i := range g.index {
		scaled.index[id] = i
	}
	scaled.cp = NewCriticalPath(scaled)
	return scaled
}

// AncestorCount 祖先数量（不含哨兵）
func (g *Graph) AncestorCount(i int) int {
	return g.relativesOf(i).ancestorCount
}

// DescendantCount 后代数量（不含哨兵）
func (g *Graph) DescendantCount(i int) int {
	return g.relativesOf(i).descendantCount
}

// AncestorWeight 祖先执行时间之和
func (g *Graph) AncestorWeight(i int) int {
	return g.relativesOf(i).ancestorWeight
}

// DescendantWeight 后代执行时间之和
func (g *Graph) DescendantWeight(i int) int {
	return g.relativesOf(i).descendantWeight
}

// DependentWeight 祖先与后代执行时间之和
func (g *Graph) DependentWeight(i int) int {
	r := g.relativesOf(i)
	return r.ancestorWeight + r.descendantWeight
}

// relativesOf 只缓存数量与权重和，遍历用的集合用完即弃
func (g *Graph) relativesOf(i int) relatives {
	g.relMu.Lock()
	defer g.relMu.Unlock()

	if g.rel == nil {
		g.rel = make([]relatives, len(g.Nodes))
		g.relDone = make([]bool, len(g.Nodes))
	}
	if g.relDone[i] {
		return g.rel[i]
	}

	var r relatives
	r.ancestorCount, r.ancestorWeight = g.reach(i, true)
	r.descendantCount, r.descendantWeight = g.reach(i, false)
	g.rel[i] = r
	g.relDone[i] = true
	return r
}

// reach 沿入边(up=true)或出边遍历可达的非哨兵节点，返回数量与权重和
func (g *Graph) reach(start int, up bool) (int, int) {
	seen := make(map[int]bool)
	stack := []int{start}
	weight := 0
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		edges := g.Nodes[cur].Out
		if up {
			edges = g.Nodes[cur].In
		}
		for _, ei := range edges {
			next := g.Edges[ei].To
			if up {
				next = g.Edges[ei].From
			}
			if g.IsSentinel(next) || seen[next] {
				continue
			}
			seen[next] = true
			weight += g.Nodes[next].Weight
			stack = append(stack, next)
		}
	}
	return len(seen), weight
}

// String 便于调试输出
func (g *Graph) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Graph{tasks=%d, edges=%d}", g.TaskCount(), len(g.Edges))
	return b.String()
}
