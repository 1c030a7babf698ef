package dag

import (
	"errors"
)

const (
	// TopID 入口哨兵节点ID
	TopID = "__top__"
	// BottomID 出口哨兵节点ID
	BottomID = "__bottom__"

	// Top 入口哨兵在Nodes中的下标
	Top = 0
	// Bottom 出口哨兵在Nodes中的下标
	Bottom = 1
)

var (
	// ErrMalformedGraph 输入的任务/依赖描述不合法
	ErrMalformedGraph = errors.New("malformed task graph")
	// ErrCycle 检测到循环依赖
	ErrCycle = errors.New("dependency cycle detected")
)

// Node 任务图节点（对外导出）
// 调度阶段的临时字段不挂在Node上，由各算法按节点下标自行维护
type Node struct {
	ID     string // 节点ID（Task ID）
	Name   string // 逻辑名称
	Weight int    // 执行时间（时间单位）
	In     []int  // 入边下标
	Out    []int  // 出边下标
}

// Edge 任务图的边（对外导出）
type Edge struct {
	From  int    // 前置节点下标
	To    int    // 后置节点下标
	Label string // 关联的逻辑资源（通常是文件名）
	Size  int64  // 数据量
	Cost  int    // 数据传输开销（时间单位）
}

// TaskSpec 构建任务图时的任务描述
type TaskSpec struct {
	ID     string
	Name   string
	Weight int
}

// DependencySpec 构建任务图时的依赖描述
type DependencySpec struct {
	From  string
	To    string
	Label string
	Size  int64
}

// CostModel 数据传输开销模型: cost = ceil(size / Bandwidth) + Latency
type CostModel struct {
	Bandwidth int64
	Latency   int64
}

// DefaultCostModel bandwidth=1, latency=0
func DefaultCostModel() CostModel {
	return CostModel{Bandwidth: 1, Latency: 0}
}

// Cost 根据数据量计算传输开销
func (m CostModel) Cost(size int64) int {
	bw := m.Bandwidth
	if bw <= 0 {
		bw = 1
	}
	return int(ceilDiv(size, bw) + m.Latency)
}

// BuildOptions 任务图构建选项
type BuildOptions struct {
	CostModel      CostModel
	SkipCycleCheck bool // 跳过构建时的环检测（已知无环的输入）
}

// relatives 祖先/后代的缓存信息
type relatives struct {
	ancestorCount    int
	descendantCount  int
	ancestorWeight   int
	descendantWeight int
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
