package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftedsignal/sigma-powerquery/pipeline"
	"github.com/craftedsignal/sigma-powerquery/sigma"
)

func parseRule(t *testing.T, content string) *sigma.Rule {
	t.Helper()
	rule, err := sigma.ParseRule([]byte(content))
	require.NoError(t, err)
	return rule
}

func TestConvert_NoPipeline(t *testing.T) {
	rule := parseRule(t, `
title: Encoded PowerShell
fields:
    - ProcessName
    - CommandLine
logsource:
    category: process_creation
detection:
    selection:
        ProcessName: powershell.exe
        CommandLine|contains:
            - '-enc'
            - '-e '
    condition: selection
`)
	c := New(nil)
	query, err := c.Convert(rule)
	require.NoError(t, err)

	want := `(ProcessName = "powershell.exe" and (CommandLine contains "-enc" or CommandLine contains "-e ")) | columns ProcessName,CommandLine`
	assert.Equal(t, want, query)
}

func TestConvert_PipelineMapsFields(t *testing.T) {
	rule := parseRule(t, `
title: Mapped
logsource:
    category: process_creation
detection:
    selection:
        Image|endswith: '\powershell.exe'
    condition: selection
`)
	c := New(pipeline.New())
	query, err := c.Convert(rule)
	require.NoError(t, err)

	assert.Equal(t, `tgt.process.image.path contains "\\powershell.exe"`, query)
}

func TestConvert_PipelineMapsProjectedFields(t *testing.T) {
	rule := parseRule(t, `
title: Mapped columns
fields:
    - Image
    - CommandLine
logsource:
    category: process_creation
detection:
    selection:
        Image|endswith: '\certutil.exe'
    condition: selection
`)
	c := New(pipeline.New())
	query, err := c.Convert(rule)
	require.NoError(t, err)

	want := `tgt.process.image.path contains "\\certutil.exe" | columns tgt.process.image.path,tgt.process.cmdline`
	assert.Equal(t, want, query)
}

func TestConvert_Negation(t *testing.T) {
	rule := parseRule(t, `
title: Filtered
logsource:
    product: windows
detection:
    selection:
        ProcessName: powershell.exe
    filter:
        TargetUser: SYSTEM
    condition: selection and not filter
`)
	c := New(nil)
	query, err := c.Convert(rule)
	require.NoError(t, err)

	assert.Equal(t, `(ProcessName = "powershell.exe" and not TargetUser = "SYSTEM")`, query)
}

func TestConvert_InFolding(t *testing.T) {
	rule := parseRule(t, `
title: Ports
logsource:
    category: network_connection
detection:
    selection:
        DestinationPort:
            - 4444
            - 5555
    condition: selection
`)
	c := New(pipeline.New())
	query, err := c.Convert(rule)
	require.NoError(t, err)

	assert.Equal(t, `dst.port.number in (4444,5555)`, query)
}

func TestConvertRecord(t *testing.T) {
	rule := parseRule(t, `
title: Structured
id: 11111111-2222-3333-4444-555555555555
description: A test rule
logsource:
    product: windows
detection:
    selection:
        EventID: 4104
    condition: selection
`)
	c := New(nil)
	rec, err := c.ConvertRecord(rule)
	require.NoError(t, err)

	assert.Equal(t, `EventID = 4104`, rec.Query)
	assert.Equal(t, "Structured", rec.Title)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", rec.ID)
	assert.Equal(t, "A test rule", rec.Description)
}

func TestConvert_ErrorNamesRule(t *testing.T) {
	rule := &sigma.Rule{
		Metadata:  sigma.Metadata{Title: "Broken Rule"},
		Condition: nil,
	}
	c := New(nil)
	_, err := c.Convert(rule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Broken Rule")
}

func TestConvert_DoesNotMutateRule(t *testing.T) {
	rule := parseRule(t, `
title: Immutable
logsource:
    category: process_creation
detection:
    selection:
        Image|endswith: '\cmd.exe'
    condition: selection
`)
	c := New(pipeline.New())
	_, err := c.Convert(rule)
	require.NoError(t, err)

	leaf, ok := rule.Condition.(sigma.FieldEquals)
	require.True(t, ok)
	assert.Equal(t, "Image", leaf.Field, "pipeline must rewrite a copy, not the input")
}
