package workflow

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Pegasus DAX 结构
type daxDocument struct {
	XMLName  xml.Name   `xml:"adag"`
	Name     string     `xml:"name,attr"`
	Jobs     []daxJob   `xml:"job"`
	Children []daxChild `xml:"child"`
}

type daxJob struct {
	ID      string    `xml:"id,attr"`
	Name    string    `xml:"name,attr"`
	Runtime string    `xml:"runtime,attr"`
	Uses    []daxUses `xml:"uses"`
}

type daxUses struct {
	File string `xml:"file,attr"`
	Name string `xml:"name,attr"`
	Link string `xml:"link,attr"`
	Size string `xml:"size,attr"`
}

type daxChild struct {
	Ref     string      `xml:"ref,attr"`
	Parents []daxParent `xml:"parent"`
}

type daxParent struct {
	Ref string `xml:"ref,attr"`
}

func (u daxUses) fileName() string {
	if u.File != "" {
		return u.File
	}
	return u.Name
}

// parseDAX 解析DAX：weight=ceil(runtime)，边的数据量为父任务输出且子任务输入的文件大小之和
func parseDAX(r io.Reader) (*Workflow, error) {
	var doc daxDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode dax: %v", ErrMalformedWorkflow, err)
	}

	wf := &Workflow{Name: doc.Name}
	outputs := make(map[string]map[string]int64, len(doc.Jobs))
	inputs := make(map[string]map[string]int64, len(doc.Jobs))

	for i, job := range doc.Jobs {
		if job.ID == "" {
			return nil, fmt.Errorf("%w: job[%d] is missing an id", ErrMalformedWorkflow, i)
		}
		weight := 0
		if job.Runtime != "" {
			rt, err := strconv.ParseFloat(strings.TrimSpace(job.Runtime), 64)
			if err != nil || rt < 0 {
				return nil, fmt.Errorf("%w: job %q has invalid runtime %q", ErrMalformedWorkflow, job.ID, job.Runtime)
			}
			weight = int(math.Ceil(rt))
		}
		wf.Tasks = append(wf.Tasks, Task{ID: job.ID, Name: job.Name, Weight: weight})

		outputs[job.ID] = map[string]int64{}
		inputs[job.ID] = map[string]int64{}
		for _, u := range job.Uses {
			var size int64
			if u.Size != "" {
				s, err := strconv.ParseInt(strings.TrimSpace(u.Size), 10, 64)
				if err != nil || s < 0 {
					return nil, fmt.Errorf("%w: job %q file %q has invalid size %q", ErrMalformedWorkflow, job.ID, u.fileName(), u.Size)
				}
				size = s
			}
			switch strings.ToLower(u.Link) {
			case "output":
				outputs[job.ID][u.fileName()] = size
			case "input":
				inputs[job.ID][u.fileName()] = size
			}
		}
	}

	for _, child := range doc.Children {
		if child.Ref == "" {
			return nil, fmt.Errorf("%w: child element is missing ref", ErrMalformedWorkflow)
		}
		for _, parent := range child.Parents {
			if parent.Ref == "" {
				return nil, fmt.Errorf("%w: parent of %q is missing ref", ErrMalformedWorkflow, child.Ref)
			}
			size, files := sharedFiles(outputs[parent.Ref], inputs[child.Ref])
			wf.Dependencies = append(wf.Dependencies, Dependency{
				From:  parent.Ref,
				To:    child.Ref,
				Label: strings.Join(files, ","),
				Size:  size,
			})
		}
	}
	return wf, nil
}

// sharedFiles 父任务输出与子任务输入的交集，文件名排序保证结果稳定
func sharedFiles(out, in map[string]int64) (int64, []string) {
	var files []string
	var total int64
	for name, size := range out {
		if _, ok := in[name]; ok {
			files = append(files, name)
			total += size
		}
	}
	sort.Strings(files)
	return total, files
}
