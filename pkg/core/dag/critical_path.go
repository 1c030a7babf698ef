package dag

import (
	"fmt"
	"sync"
)

const unknown = -1

// CriticalPath 关键路径分析器（对外导出）
// upLength: 从TOP到节点开始的最长路径；downLength: 从节点结束到BOTTOM的最长路径
// 两者都按需计算并缓存，使用显式栈避免深图递归溢出
type CriticalPath struct {
	g    *Graph
	mu   sync.Mutex
	up   []int
	down []int
}

// NewCriticalPath 创建关键路径分析器
func NewCriticalPath(g *Graph) *CriticalPath {
	cp := &CriticalPath{
		g:    g,
		up:   make([]int, len(g.Nodes)),
		down: make([]int, len(g.Nodes)),
	}
	for i := range cp.up {
		cp.up[i] = unknown
		cp.down[i] = unknown
	}
	return cp
}

// UpLength 节点的up-length
func (cp *CriticalPath) UpLength(i int) (int, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if err := cp.solve(cp.up, i, true); err != nil {
		return 0, err
	}
	return cp.up[i], nil
}

// DownLength 节点的down-length
func (cp *CriticalPath) DownLength(i int) (int, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if err := cp.solve(cp.down, i, false); err != nil {
		return 0, err
	}
	return cp.down[i], nil
}

// ComputeAll 计算所有节点的up/down-length
// 并发读取（Up/Down）之前必须先调用
func (cp *CriticalPath) ComputeAll() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	for i := range cp.g.Nodes {
		if err := cp.solve(cp.up, i, true); err != nil {
			return err
		}
		if err := cp.solve(cp.down, i, false); err != nil {
			return err
		}
	}
	return nil
}

// Length 关键路径长度，即 up-length(BOTTOM)
func (cp *CriticalPath) Length() (int, error) {
	return cp.UpLength(Bottom)
}

// Up 读取已计算的up-length，调用前需ComputeAll
func (cp *CriticalPath) Up(i int) int {
	return cp.up[i]
}

// Down 读取已计算的down-length，调用前需ComputeAll
func (cp *CriticalPath) Down(i int) int {
	return cp.down[i]
}

type frame struct {
	node int
	next int
}

// solve 后序DFS：所有邻居求值完成后再计算当前节点
// 访问到仍在栈上的节点说明存在环
func (cp *CriticalPath) solve(memo []int, start int, up bool) error {
	if memo[start] != unknown {
		return nil
	}
	g := cp.g
	onStack := map[int]bool{start: true}
	stack := []frame{{node: start}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		edges := g.Nodes[top.node].Out
		if up {
			edges = g.Nodes[top.node].In
		}

		if top.next < len(edges) {
			e := g.Edges[edges[top.next]]
			top.next++
			nb := e.To
			if up {
				nb = e.From
			}
			if memo[nb] != unknown {
				continue
			}
			if onStack[nb] {
				return fmt.Errorf("%w: node %q is reachable from itself", ErrCycle, g.Nodes[nb].ID)
			}
			onStack[nb] = true
			stack = append(stack, frame{node: nb})
			continue
		}

		best := 0
		for _, ei := range edges {
			e := g.Edges[ei]
			var v int
			if up {
				v = memo[e.From] + g.Nodes[e.From].Weight + e.Cost
			} else {
				v = e.Cost + g.Nodes[e.To].Weight + memo[e.To]
			}
			if v > best {
				best = v
			}
		}
		memo[top.node] = best
		delete(onStack, top.node)
		stack = stack[:len(stack)-1]
	}
	return nil
}
