package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/proc-estimator/pkg/core/dag"
)

const diamondYAML = `
name: diamond
tasks:
  - id: j1
    weight: 10
  - id: j2
    weight: 10
  - id: j3
    weight: 10
  - id: j4
    weight: 10
dependencies:
  - {from: j1, to: j2}
  - {from: j1, to: j3}
  - {from: j2, to: j4}
  - {from: j3, to: j4}
`

const sampleDAX = `<?xml version="1.0" encoding="UTF-8"?>
<adag xmlns="http://pegasus.isi.edu/schema/DAX" version="2.1" name="montage">
  <job id="ID00000" namespace="Montage" name="mProjectPP" version="1.0" runtime="13.21">
    <uses file="region.hdr" link="input" size="304"/>
    <uses file="p1.fits" link="output" size="4000"/>
    <uses file="a1.fits" link="output" size="100"/>
  </job>
  <job id="ID00001" namespace="Montage" name="mDiffFit" version="1.0" runtime="10">
    <uses file="p1.fits" link="input" size="4000"/>
    <uses file="a1.fits" link="input" size="100"/>
    <uses file="d1.fits" link="output" size="50"/>
  </job>
  <job id="ID00002" namespace="Montage" name="mConcatFit" version="1.0" runtime="0.4">
    <uses file="d1.fits" link="input" size="50"/>
  </job>
  <child ref="ID00001">
    <parent ref="ID00000"/>
  </child>
  <child ref="ID00002">
    <parent ref="ID00001"/>
    <parent ref="ID00000"/>
  </child>
</adag>`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_YAML(t *testing.T) {
	wf, err := LoadFile(writeFile(t, "diamond.yaml", diamondYAML))
	require.NoError(t, err)

	assert.Equal(t, "diamond", wf.Name)
	assert.Len(t, wf.Tasks, 4)
	assert.Len(t, wf.Dependencies, 4)

	g, err := wf.Graph(dag.DefaultCostModel())
	require.NoError(t, err)
	length, err := g.CriticalPath().Length()
	require.NoError(t, err)
	assert.Equal(t, 30, length)
}

func TestLoadFile_JSON(t *testing.T) {
	content := `{"tasks":[{"id":"a","weight":3},{"id":"b","weight":4}],
		"dependencies":[{"from":"a","to":"b","size":2,"label":"f"}]}`
	wf, err := LoadFile(writeFile(t, "pair.json", content))
	require.NoError(t, err)

	assert.Equal(t, "pair", wf.Name)
	require.Len(t, wf.Dependencies, 1)
	assert.Equal(t, int64(2), wf.Dependencies[0].Size)
}

func TestLoad_JSONRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`{"tasks":[],"jobs":[]}`), FormatJSON)
	assert.ErrorIs(t, err, ErrMalformedWorkflow)
}

func TestLoadFile_DAX(t *testing.T) {
	wf, err := LoadFile(writeFile(t, "montage.dax", sampleDAX))
	require.NoError(t, err)

	assert.Equal(t, "montage", wf.Name)
	require.Len(t, wf.Tasks, 3)
	assert.Equal(t, 14, wf.Tasks[0].Weight)
	assert.Equal(t, 10, wf.Tasks[1].Weight)
	assert.Equal(t, 1, wf.Tasks[2].Weight)
	assert.Equal(t, "mProjectPP", wf.Tasks[0].Name)

	require.Len(t, wf.Dependencies, 3)
	assert.Equal(t, Dependency{From: "ID00000", To: "ID00001", Label: "a1.fits,p1.fits", Size: 4100}, wf.Dependencies[0])
	assert.Equal(t, Dependency{From: "ID00001", To: "ID00002", Label: "d1.fits", Size: 50}, wf.Dependencies[1])
	// 没有共享文件的依赖只保留顺序约束
	assert.Equal(t, Dependency{From: "ID00000", To: "ID00002"}, wf.Dependencies[2])
}

func TestLoad_DAXInvalidRuntime(t *testing.T) {
	_, err := Parse([]byte(`<adag><job id="a" runtime="fast"/></adag>`), FormatDAX)
	assert.ErrorIs(t, err, ErrMalformedWorkflow)
}

func TestLoad_DAXMissingJobID(t *testing.T) {
	_, err := Parse([]byte(`<adag><job runtime="1"/></adag>`), FormatDAX)
	assert.ErrorIs(t, err, ErrMalformedWorkflow)
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"wf.yaml": FormatYAML,
		"wf.YML":  FormatYAML,
		"wf.json": FormatJSON,
		"wf.dax":  FormatDAX,
		"wf.xml":  FormatDAX,
	}
	for path, want := range tests {
		got, err := DetectFormat(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := DetectFormat("wf.txt")
	assert.ErrorIs(t, err, ErrMalformedWorkflow)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		wf   *Workflow
	}{
		{"nil", nil},
		{"missing task id", &Workflow{Tasks: []Task{{Weight: 1}}}},
		{"negative weight", &Workflow{Tasks: []Task{{ID: "a", Weight: -1}}}},
		{"missing dependency endpoint", &Workflow{Tasks: []Task{{ID: "a"}}, Dependencies: []Dependency{{From: "a"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.wf.Validate(), ErrMalformedWorkflow)
		})
	}
}

func TestGraph_PropagatesBuildErrors(t *testing.T) {
	wf := &Workflow{
		Tasks:        []Task{{ID: "a", Weight: 1}, {ID: "b", Weight: 1}},
		Dependencies: []Dependency{{From: "a", To: "b"}, {From: "b", To: "a"}},
	}
	_, err := wf.Graph(dag.DefaultCostModel())
	assert.ErrorIs(t, err, dag.ErrCycle)
}

func TestFingerprint(t *testing.T) {
	a, err := Parse([]byte(diamondYAML), FormatYAML)
	require.NoError(t, err)
	b, err := Parse([]byte(diamondYAML), FormatYAML)
	require.NoError(t, err)

	fa, err := a.Fingerprint()
	require.NoError(t, err)
	fb, err := b.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
	assert.Len(t, fa, 64)

	b.Tasks[0].Weight = 11
	fc, err := b.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, fa, fc)
}

func TestLoadFile_BundledExamples(t *testing.T) {
	diamond, err := LoadFile("../../examples/workflows/diamond.yaml")
	require.NoError(t, err)
	assert.Len(t, diamond.Tasks, 4)

	montage, err := LoadFile("../../examples/workflows/montage.dax")
	require.NoError(t, err)
	assert.Equal(t, "montage-small", montage.Name)
	assert.Len(t, montage.Tasks, 5)
	require.Len(t, montage.Dependencies, 4)
	assert.Equal(t, Dependency{From: "ID00000", To: "ID00002", Label: "p1.fits", Size: 4000}, montage.Dependencies[0])

	_, err = montage.Graph(dag.DefaultCostModel())
	require.NoError(t, err)
}
