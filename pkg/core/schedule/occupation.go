package schedule

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/LENAX/proc-estimator/pkg/core/dag"
)

// Diagram 占用图（对外导出）
// counts[t] 表示时间单位t内正在执行的任务数；占用者由当前放置位置推导，不单独存储
// lb/rb 是节点的最早开始/最晚结束时间，放置后收缩为[start, start+w]
type Diagram struct {
	g   *dag.Graph
	cp  *dag.CriticalPath
	rft int

	counts []int32

	lb, rb   []int
	olb, orb []int
	start    []int
	placed   []bool

	depWeight []int
	ancCount  []int
	descCount []int

	ws *workSet
}

// NewDiagram 为给定截止时间创建占用图，截止时间不能小于关键路径
func NewDiagram(g *dag.Graph, rft int) (*Diagram, error) {
	cp := g.CriticalPath()
	if err := cp.ComputeAll(); err != nil {
		return nil, err
	}
	length, err := cp.Length()
	if err != nil {
		return nil, err
	}
	if rft < length {
		return nil, fmt.Errorf("deadline %d is below the critical path length %d", rft, length)
	}

	n := g.Len()
	d := &Diagram{
		g:         g,
		cp:        cp,
		rft:       rft,
		counts:    make([]int32, rft),
		lb:        make([]int, n),
		rb:        make([]int, n),
		olb:       make([]int, n),
		orb:       make([]int, n),
		start:     make([]int, n),
		placed:    make([]bool, n),
		depWeight: make([]int, n),
		ancCount:  make([]int, n),
		descCount: make([]int, n),
	}

	for i := 0; i < n; i++ {
		switch i {
		case dag.Top:
			d.pin(i, 0)
		case dag.Bottom:
			d.pin(i, rft)
		default:
			d.lb[i] = cp.Up(i)
			d.rb[i] = rft - cp.Down(i)
			d.olb[i] = d.lb[i]
			d.orb[i] = d.rb[i]
			d.start[i] = -1
			d.depWeight[i] = g.DependentWeight(i)
			d.ancCount[i] = g.AncestorCount(i)
			d.descCount[i] = g.DescendantCount(i)
		}
	}
	d.ws = &workSet{d: d, pos: make([]int, n)}
	return d, nil
}

func (d *Diagram) pin(i, at int) {
	d.lb[i], d.rb[i] = at, at
	d.olb[i], d.orb[i] = at, at
	d.start[i] = at
	d.placed[i] = true
}

func (d *Diagram) weight(i int) int {
	return d.g.Nodes[i].Weight
}

func (d *Diagram) slack(i int) int {
	return d.rb[i] - d.lb[i]
}

// Deadline 占用图对应的截止时间
func (d *Diagram) Deadline() int {
	return d.rft
}

// Stack 放置阶段：按松弛度从小到大依次放置，选择窗口内峰值最低的开始时间
// 零权重任务不参与放置，边界照常经由它们传递，最后固定在各自的最早开始时间
func (d *Diagram) Stack() {
	d.ws.items = d.ws.items[:0]
	for i := range d.ws.pos {
		d.ws.pos[i] = -1
	}
	var zero []int
	for i := dag.Bottom + 1; i < d.g.Len(); i++ {
		if d.placed[i] {
			continue
		}
		if d.weight(i) == 0 {
			zero = append(zero, i)
			continue
		}
		d.ws.pos[i] = len(d.ws.items)
		d.ws.items = append(d.ws.items, i)
	}
	heap.Init(d.ws)

	for d.ws.Len() > 0 {
		n := heap.Pop(d.ws).(int)
		w := d.weight(n)
		preferLate := d.ancCount[n] > d.descCount[n]
		s, _ := d.minPeakStart(d.lb[n], d.rb[n]-w, w, preferLate)
		d.place(n, s)
		d.propagate(n)
	}
	for _, n := range zero {
		d.place(n, d.lb[n])
	}
	log.Debugf("[BTS] 放置完成: Tasks=%d, RFT=%d, Height=%d", d.g.TaskCount(), d.rft, d.Height())
}

func (d *Diagram) place(n, s int) {
	w := d.weight(n)
	d.start[n] = s
	d.lb[n] = s
	d.rb[n] = s + w
	d.placed[n] = true
	d.occupy(s, w, 1)
}

func (d *Diagram) occupy(s, w int, delta int32) {
	for t := s; t < s+w; t++ {
		d.counts[t] += delta
	}
}

// minPeakStart 在[lo, hi]中寻找使窗口[s, s+w)内最大占用最小的开始时间
// 滑动窗口最大值，单调队列实现
func (d *Diagram) minPeakStart(lo, hi, w int, preferLate bool) (int, int32) {
	best, bestPeak := lo, int32(math.MaxInt32)
	deque := make([]int, 0, w)
	for t := lo; t < hi+w; t++ {
		for len(deque) > 0 && d.counts[deque[len(deque)-1]] <= d.counts[t] {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, t)

		s := t - w + 1
		if s < lo {
			continue
		}
		if deque[0] < s {
			deque = deque[1:]
		}
		peak := d.counts[deque[0]]
		if peak < bestPeak || (preferLate && peak == bestPeak) {
			best, bestPeak = s, peak
		}
	}
	return best, bestPeak
}

// propagate 放置后收紧未放置邻居的边界，逐层传递直到不再收紧
func (d *Diagram) propagate(n int) {
	work := []int{n}
	for len(work) > 0 {
		x := work[len(work)-1]
		work = work[:len(work)-1]
		node := &d.g.Nodes[x]
		w := node.Weight

		for _, ei := range node.In {
			e := &d.g.Edges[ei]
			p := e.From
			if d.placed[p] {
				continue
			}
			if nr := d.rb[x] - w - e.Cost; nr < d.rb[p] {
				d.rb[p] = nr
				d.ws.fix(p)
				work = append(work, p)
			}
		}
		for _, ei := range node.Out {
			e := &d.g.Edges[ei]
			c := e.To
			if d.placed[c] {
				continue
			}
			if nl := d.lb[x] + w + e.Cost; nl > d.lb[c] {
				d.lb[c] = nl
				d.ws.fix(c)
				work = append(work, c)
			}
		}
	}
}

// Height 占用图高度，即最大占用数
func (d *Diagram) Height() int {
	h, _ := d.peak()
	return int(h)
}

// peak 返回最大占用及其出现的时间单位数
func (d *Diagram) peak() (int32, int) {
	var h int32
	count := 0
	for _, c := range d.counts {
		switch {
		case c > h:
			h, count = c, 1
		case c == h:
			count++
		}
	}
	return h, count
}

// Balance 再平衡阶段：不断尝试移动占据最高时间槽的任务，直到高度不高于goal或无法移动
// 返回实际执行的迭代次数
func (d *Diagram) Balance(goal, maxIterations int) int {
	if goal < 1 {
		goal = 1
	}
	iter := 0
	for ; iter < maxIterations; iter++ {
		h, count := d.peak()
		if int(h) <= goal {
			break
		}
		if d.moveWithoutPropagation(h) {
			continue
		}
		if d.moveWithPropagation(h, count) {
			continue
		}
		break
	}
	log.Debugf("[BTS] 再平衡完成: Iterations=%d, Height=%d", iter, d.Height())
	return iter
}

func (d *Diagram) occupies(n int, prefix []int) bool {
	w := d.weight(n)
	if w == 0 {
		return false
	}
	s := d.start[n]
	return prefix[s+w]-prefix[s] > 0
}

// moveWithoutPropagation 在父子节点之间的空闲窗口内平移单个任务
func (d *Diagram) moveWithoutPropagation(h int32) bool {
	prefix := make([]int, len(d.counts)+1)
	for t, c := range d.counts {
		prefix[t+1] = prefix[t]
		if c == h {
			prefix[t+1]++
		}
	}

	for n := dag.Bottom + 1; n < d.g.Len(); n++ {
		if !d.occupies(n, prefix) {
			continue
		}
		w := d.weight(n)
		s := d.start[n]
		lo, hi := d.freeWindow(n)

		d.occupy(s, w, -1)
		best, peak := d.minPeakStart(lo, hi, w, false)
		if peak < h-1 {
			d.start[n] = best
			d.occupy(best, w, 1)
			return true
		}
		d.occupy(s, w, 1)
	}
	return false
}

// freeWindow 在已放置的父/子节点约束下，节点可选的开始时间区间
func (d *Diagram) freeWindow(n int) (int, int) {
	node := &d.g.Nodes[n]
	lo := 0
	for _, ei := range node.In {
		e := &d.g.Edges[ei]
		if v := d.start[e.From] + d.weight(e.From) + e.Cost; v > lo {
			lo = v
		}
	}
	hi := d.rft - node.Weight
	for _, ei := range node.Out {
		e := &d.g.Edges[ei]
		if v := d.start[e.To] - e.Cost - node.Weight; v < hi {
			hi = v
		}
	}
	return lo, hi
}

// moveWithPropagation 将占据第一个最高时间槽的任务整体左移或右移，并推动其祖先/后代
func (d *Diagram) moveWithPropagation(h int32, count int) bool {
	t := -1
	for i, c := range d.counts {
		if c == h {
			t = i
			break
		}
	}
	if t < 0 {
		return false
	}

	var left, right []int
	for n := dag.Bottom + 1; n < d.g.Len(); n++ {
		w := d.weight(n)
		if w == 0 || d.start[n] > t || d.start[n]+w <= t {
			continue
		}
		if t-w >= d.olb[n] {
			left = append(left, n)
		}
		if t+1+w <= d.orb[n] {
			right = append(right, n)
		}
	}

	d.sortCandidates(left, d.g.AncestorWeight)
	d.sortCandidates(right, d.g.DescendantWeight)

	for _, n := range left {
		if d.tryShift(n, t-d.weight(n), true, h, count) {
			return true
		}
	}
	for _, n := range right {
		if d.tryShift(n, t+1, false, h, count) {
			return true
		}
	}
	return false
}

func (d *Diagram) sortCandidates(nodes []int, key func(int) int) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if ka, kb := key(a), key(b); ka != kb {
			return ka < kb
		}
		if wa, wb := d.weight(a), d.weight(b); wa != wb {
			return wa < wb
		}
		return a < b
	})
}

// tryShift 移动节点并推动相关节点；只有(高度, 最高槽数量)按字典序下降时才保留
func (d *Diagram) tryShift(n, newStart int, left bool, h int32, count int) bool {
	undo := make(map[int]int)
	ok := d.shift(n, newStart, left, undo)
	if ok {
		for m, old := range undo {
			d.occupy(old, d.weight(m), -1)
			d.occupy(d.start[m], d.weight(m), 1)
		}
		nh, nc := d.peak()
		if nh < h || (nh == h && nc < count) {
			return true
		}
		for m, old := range undo {
			d.occupy(d.start[m], d.weight(m), -1)
			d.occupy(old, d.weight(m), 1)
		}
	}
	for m, old := range undo {
		d.start[m] = old
	}
	return false
}

func (d *Diagram) shift(n, newStart int, left bool, undo map[int]int) bool {
	set := func(x, v int) {
		if _, seen := undo[x]; !seen {
			undo[x] = d.start[x]
		}
		d.start[x] = v
	}

	set(n, newStart)
	work := []int{n}
	for len(work) > 0 {
		x := work[len(work)-1]
		work = work[:len(work)-1]
		node := &d.g.Nodes[x]

		if left {
			for _, ei := range node.In {
				e := &d.g.Edges[ei]
				p := e.From
				latest := d.start[x] - e.Cost - d.weight(p)
				if d.start[p] <= latest {
					continue
				}
				if d.g.IsSentinel(p) || latest < d.olb[p] {
					return false
				}
				set(p, latest)
				work = append(work, p)
			}
			continue
		}

		for _, ei := range node.Out {
			e := &d.g.Edges[ei]
			c := e.To
			earliest := d.start[x] + node.Weight + e.Cost
			if d.start[c] >= earliest {
				continue
			}
			if d.g.IsSentinel(c) || earliest+d.weight(c) > d.orb[c] {
				return false
			}
			set(c, earliest)
			work = append(work, c)
		}
	}
	return true
}

// Feasible 检查当前放置是否满足所有依赖与截止时间
func (d *Diagram) Feasible() error {
	for i, e := range d.g.Edges {
		if !d.placed[e.From] || !d.placed[e.To] {
			return fmt.Errorf("edge %d has an unplaced endpoint", i)
		}
		if d.start[e.From]+d.weight(e.From)+e.Cost > d.start[e.To] {
			return fmt.Errorf("edge %s -> %s violated", d.g.Nodes[e.From].ID, d.g.Nodes[e.To].ID)
		}
	}
	for i := dag.Bottom + 1; i < d.g.Len(); i++ {
		if d.start[i] < 0 || d.start[i]+d.weight(i) > d.rft {
			return fmt.Errorf("task %s placed outside [0, %d]", d.g.Nodes[i].ID, d.rft)
		}
	}
	return nil
}

// Placements 返回所有非哨兵任务的放置结果
func (d *Diagram) Placements() []Placement {
	out := make([]Placement, 0, d.g.TaskCount())
	for i := dag.Bottom + 1; i < d.g.Len(); i++ {
		out = append(out, Placement{
			TaskID:    d.g.Nodes[i].ID,
			Start:     d.start[i],
			Finish:    d.start[i] + d.weight(i),
			Processor: -1,
		})
	}
	return out
}

// Makespan 最晚的任务结束时间
func (d *Diagram) Makespan() int {
	m := 0
	for i := dag.Bottom + 1; i < d.g.Len(); i++ {
		if f := d.start[i] + d.weight(i); f > m {
			m = f
		}
	}
	return m
}

// workSet 待放置节点的最小堆
type workSet struct {
	d     *Diagram
	items []int
	pos   []int
}

func (w *workSet) Len() int { return len(w.items) }

func (w *workSet) Less(i, j int) bool {
	a, b := w.items[i], w.items[j]
	if sa, sb := w.d.slack(a), w.d.slack(b); sa != sb {
		return sa < sb
	}
	if da, db := w.d.depWeight[a], w.d.depWeight[b]; da != db {
		return da > db
	}
	return a < b
}

func (w *workSet) Swap(i, j int) {
	w.items[i], w.items[j] = w.items[j], w.items[i]
	w.pos[w.items[i]] = i
	w.pos[w.items[j]] = j
}

func (w *workSet) Push(x any) {
	n := x.(int)
	w.pos[n] = len(w.items)
	w.items = append(w.items, n)
}

func (w *workSet) Pop() any {
	last := len(w.items) - 1
	n := w.items[last]
	w.items = w.items[:last]
	w.pos[n] = -1
	return n
}

func (w *workSet) fix(n int) {
	if p := w.pos[n]; p >= 0 {
		heap.Fix(w, p)
	}
}
