package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAlgorithm 未知的估算算法
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// Algorithm 处理器数量估算算法（对外导出）
type Algorithm int

const (
	// BTS 有界时间槽装箱 + 再平衡
	BTS Algorithm = iota
	// DSC 主导序列聚类
	DSC
	// IterHEFT 迭代最早完成时间列表调度
	IterHEFT
)

var algorithmNames = map[Algorithm]string{
	BTS:      "BTS",
	DSC:      "DSC",
	IterHEFT: "IterHEFT",
}

// Algorithms 所有支持的算法
func Algorithms() []Algorithm {
	return []Algorithm{BTS, DSC, IterHEFT}
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// UsesDeadline DSC不使用截止时间
func (a Algorithm) UsesDeadline() bool {
	return a != DSC
}

// ParseAlgorithm 解析算法名称（大小写不敏感）
func ParseAlgorithm(name string) (Algorithm, error) {
	for alg, n := range algorithmNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return alg, nil
		}
	}
	supported := make([]string, 0, len(algorithmNames))
	for _, alg := range Algorithms() {
		supported = append(supported, alg.String())
	}
	return 0, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownAlgorithm, name, strings.Join(supported, ", "))
}

// MarshalText 实现 encoding.TextMarshaler
func (a Algorithm) MarshalText() ([]byte, error) {
	if _, ok := algorithmNames[a]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Placement 单个任务的调度结果
type Placement struct {
	TaskID    string `json:"task_id" yaml:"task_id"`
	Start     int    `json:"start" yaml:"start"`
	Finish    int    `json:"finish" yaml:"finish"`
	Processor int    `json:"processor" yaml:"processor"` // 仅HEFT分配处理器，其余算法为-1
}

// Plan 算法输出（对外导出）
type Plan struct {
	Algorithm  Algorithm      `json:"algorithm"`
	Processors int            `json:"processors"`
	Deadline   int            `json:"deadline"`
	Makespan   int            `json:"makespan"`
	Schedule   []Placement    `json:"schedule,omitempty"`
	Clusters   map[string]int `json:"clusters,omitempty"`
	Iterations int            `json:"iterations"`
}
