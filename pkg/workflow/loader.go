package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format 工作流描述格式
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatDAX  Format = "dax"
)

// DetectFormat 根据文件扩展名推断格式
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".dax", ".xml":
		return FormatDAX, nil
	default:
		return "", fmt.Errorf("%w: cannot infer format of %q (expected .yaml, .yml, .json, .dax or .xml)", ErrMalformedWorkflow, path)
	}
}

// LoadFile 从文件加载工作流
func LoadFile(path string) (*Workflow, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workflow file: %w", err)
	}
	defer f.Close()

	wf, err := Load(f, format)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if wf.Name == "" {
		wf.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return wf, nil
}

// Load 按指定格式解析工作流并校验
func Load(r io.Reader, format Format) (*Workflow, error) {
	var (
		wf  *Workflow
		err error
	)
	switch format {
	case FormatYAML:
		wf = &Workflow{}
		if err = yaml.NewDecoder(r).Decode(wf); err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: decode yaml: %v", ErrMalformedWorkflow, err)
		}
	case FormatJSON:
		wf = &Workflow{}
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err = dec.Decode(wf); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrMalformedWorkflow, err)
		}
	case FormatDAX:
		if wf, err = parseDAX(r); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrMalformedWorkflow, format)
	}

	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return wf, nil
}

// Parse 解析内存中的工作流描述
func Parse(data []byte, format Format) (*Workflow, error) {
	return Load(bytes.NewReader(data), format)
}
