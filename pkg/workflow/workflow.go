package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LENAX/proc-estimator/pkg/core/dag"
)

// ErrMalformedWorkflow 工作流描述不合法
var ErrMalformedWorkflow = errors.New("malformed workflow")

// Workflow 工作流描述（对外导出）
type Workflow struct {
	Name         string       `yaml:"name" json:"name"`
	Description  string       `yaml:"description,omitempty" json:"description,omitempty"`
	Tasks        []Task       `yaml:"tasks" json:"tasks"`
	Dependencies []Dependency `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// Task 任务描述，Weight为预估执行时间
type Task struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Weight int    `yaml:"weight" json:"weight"`
}

// Dependency 任务依赖，Size为需要传输的数据量
type Dependency struct {
	From  string `yaml:"from" json:"from"`
	To    string `yaml:"to" json:"to"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
	Size  int64  `yaml:"size,omitempty" json:"size,omitempty"`
}

// Validate 校验必填字段
func (w *Workflow) Validate() error {
	if w == nil {
		return fmt.Errorf("%w: workflow is nil", ErrMalformedWorkflow)
	}
	for i, t := range w.Tasks {
		if t.ID == "" {
			return fmt.Errorf("%w: tasks[%d] is missing an id", ErrMalformedWorkflow, i)
		}
		if t.Weight < 0 {
			return fmt.Errorf("%w: task %q has negative weight", ErrMalformedWorkflow, t.ID)
		}
	}
	for i, d := range w.Dependencies {
		if d.From == "" || d.To == "" {
			return fmt.Errorf("%w: dependencies[%d] is missing from/to", ErrMalformedWorkflow, i)
		}
		if d.Size < 0 {
			return fmt.Errorf("%w: dependencies[%d] has negative size", ErrMalformedWorkflow, i)
		}
	}
	return nil
}

// Graph 按传输开销模型构建任务图
func (w *Workflow) Graph(cost dag.CostModel) (*dag.Graph, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	tasks := make([]dag.TaskSpec, len(w.Tasks))
	for i, t := range w.Tasks {
		tasks[i] = dag.TaskSpec{ID: t.ID, Name: t.Name, Weight: t.Weight}
	}
	deps := make([]dag.DependencySpec, len(w.Dependencies))
	for i, d := range w.Dependencies {
		deps[i] = dag.DependencySpec{From: d.From, To: d.To, Label: d.Label, Size: d.Size}
	}
	return dag.Build(tasks, deps, dag.BuildOptions{CostModel: cost})
}

// Fingerprint 工作流内容的sha256摘要，用于结果缓存
func (w *Workflow) Fingerprint() (string, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("encode workflow: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
