package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftedsignal/sigma-powerquery/sigma"
)

func TestResolve_CategoryTable(t *testing.T) {
	p := New()
	ls := sigma.LogSource{Category: "process_creation"}

	assert.Equal(t, "tgt.process.image.path", p.Resolve("Image", ls))
	assert.Equal(t, "tgt.process.cmdline", p.Resolve("CommandLine", ls))
	assert.Equal(t, "src.process.image.path", p.Resolve("ParentImage", ls))
}

func TestResolve_CategoryBeatsGeneric(t *testing.T) {
	p := New()

	// Image means the acting process for file events, the target for
	// process creation.
	assert.Equal(t, "src.process.image.path", p.Resolve("Image", sigma.LogSource{Category: "file_event"}))
	assert.Equal(t, "tgt.process.image.path", p.Resolve("Image", sigma.LogSource{Category: "process_creation"}))
}

func TestResolve_GenericFallback(t *testing.T) {
	p := New()
	ls := sigma.LogSource{Category: "some_unknown_category"}

	assert.Equal(t, "tgt.process.cmdline", p.Resolve("CommandLine", ls))
}

func TestResolve_Passthrough(t *testing.T) {
	p := New()
	ls := sigma.LogSource{Category: "process_creation"}

	assert.Equal(t, "tgt.process.pid", p.Resolve("ProcessId", ls))
	assert.Equal(t, "SomeCustomField", p.Resolve("SomeCustomField", ls))
}

func TestApply_RewritesTree(t *testing.T) {
	p := New()
	rule := &sigma.Rule{
		Metadata: sigma.Metadata{
			LogSource: sigma.LogSource{Category: "process_creation"},
		},
		Condition: sigma.And{Children: []sigma.Node{
			sigma.FieldEquals{Field: "Image", Value: sigma.String{Value: "cmd.exe", Match: sigma.MatchSuffix}},
			sigma.Not{Operand: sigma.FieldEquals{Field: "User", Value: sigma.String{Value: "SYSTEM"}}},
		}},
	}

	out := p.Apply(rule)

	and, ok := out.Condition.(sigma.And)
	require.True(t, ok)
	leaf := and.Children[0].(sigma.FieldEquals)
	assert.Equal(t, "tgt.process.image.path", leaf.Field)

	not := and.Children[1].(sigma.Not)
	inner := not.Operand.(sigma.FieldEquals)
	assert.Equal(t, "tgt.process.user", inner.Field)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	p := New()
	rule := &sigma.Rule{
		Metadata: sigma.Metadata{
			Fields:    []string{"Image"},
			LogSource: sigma.LogSource{Category: "process_creation"},
		},
		Condition: sigma.FieldEquals{Field: "Image", Value: sigma.String{Value: "cmd.exe"}},
	}

	out := p.Apply(rule)

	assert.Equal(t, "Image", rule.Condition.(sigma.FieldEquals).Field)
	assert.Equal(t, []string{"Image"}, rule.Metadata.Fields)
	assert.Equal(t, "tgt.process.image.path", out.Condition.(sigma.FieldEquals).Field)
	assert.Equal(t, []string{"tgt.process.image.path"}, out.Metadata.Fields)
}

func TestApply_KeywordLeafUntouched(t *testing.T) {
	p := New()
	rule := &sigma.Rule{
		Metadata:  sigma.Metadata{LogSource: sigma.LogSource{Category: "process_creation"}},
		Condition: sigma.FieldEquals{Value: sigma.String{Value: "mimikatz", Match: sigma.MatchSubstring}},
	}

	out := p.Apply(rule)

	leaf := out.Condition.(sigma.FieldEquals)
	assert.Empty(t, leaf.Field)
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yml")
	overlay := `
process_creation:
    CustomField: tgt.process.custom
    Image: my.image.override
generic:
    Hostname: endpoint.name
new_category:
    SomeField: some.column
`
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o644))

	p := New()
	require.NoError(t, p.LoadOverlay(path))

	pc := sigma.LogSource{Category: "process_creation"}
	assert.Equal(t, "tgt.process.custom", p.Resolve("CustomField", pc))
	assert.Equal(t, "my.image.override", p.Resolve("Image", pc), "overlay overrides builtin")
	assert.Equal(t, "tgt.process.cmdline", p.Resolve("CommandLine", pc), "untouched builtin survives")
	assert.Equal(t, "endpoint.name", p.Resolve("Hostname", sigma.LogSource{Category: "registry_event"}))
	assert.Equal(t, "some.column", p.Resolve("SomeField", sigma.LogSource{Category: "new_category"}))
}

func TestLoadOverlay_MissingFile(t *testing.T) {
	p := New()
	err := p.LoadOverlay(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadOverlay_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("process_creation: [not a map"), 0o644))

	p := New()
	assert.Error(t, p.LoadOverlay(path))
}
