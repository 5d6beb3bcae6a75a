package sigma

import (
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Metadata carries the rule attributes that survive conversion. It is
// read-only input to the backend's finishing step and never part of the
// condition tree.
type Metadata struct {
	Title       string
	ID          string
	Description string
	Status      string
	Level       string
	Author      string
	Tags        []string
	Fields      []string
	LogSource   LogSource
}

// LogSource describes the log source specified in a Sigma rule.
type LogSource struct {
	Category string // e.g., "process_creation", "file_event"
	Product  string // e.g., "windows", "linux"
	Service  string // e.g., "sysmon", "security"
}

// Rule is a parsed Sigma rule: its metadata plus the resolved boolean
// condition tree. The tree is built once here and treated as immutable
// by everything downstream.
type Rule struct {
	Metadata  Metadata
	Condition Node
}

// sigmaRule is the internal representation of a parsed Sigma YAML rule.
// Detection stays a yaml.Node so detection blocks can be walked in
// document order; decoding into map[string]any would shuffle fields and
// make conversion output nondeterministic.
type sigmaRule struct {
	Title       string    `yaml:"title"`
	ID          string    `yaml:"id"`
	Status      string    `yaml:"status"`
	Level       string    `yaml:"level"`
	Description string    `yaml:"description"`
	Author      string    `yaml:"author"`
	Date        string    `yaml:"date"`
	Modified    string    `yaml:"modified"`
	Tags        []string  `yaml:"tags"`
	LogSource   logSource `yaml:"logsource"`
	Detection   yaml.Node `yaml:"detection"`
	FalsePos    []string  `yaml:"falsepositives"`
	Fields      []string  `yaml:"fields"`
}

// logSource maps the Sigma logsource block.
type logSource struct {
	Category string `yaml:"category"`
	Product  string `yaml:"product"`
	Service  string `yaml:"service"`
}

// parseSigmaRule parses raw YAML into a sigmaRule.
func parseSigmaRule(content []byte) (*sigmaRule, error) {
	var rule sigmaRule
	if err := yaml.Unmarshal(content, &rule); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if rule.Detection.Kind == 0 {
		return nil, fmt.Errorf("sigma rule missing 'detection' block")
	}
	if rule.Detection.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("sigma rule 'detection' must be a mapping, got %s", yamlKindName(rule.Detection.Kind))
	}
	return &rule, nil
}

// metadata converts the YAML model into Metadata, generating an id when
// the rule does not declare one so structured output always carries it.
func (r *sigmaRule) metadata() Metadata {
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	ls := LogSource{
		Category: r.LogSource.Category,
		Product:  r.LogSource.Product,
		Service:  r.LogSource.Service,
	}
	return Metadata{
		Title:       r.Title,
		ID:          id,
		Description: r.Description,
		Status:      r.Status,
		Level:       r.Level,
		Author:      r.Author,
		Tags:        r.Tags,
		Fields:      r.Fields,
		LogSource:   ls,
	}
}

func yamlKindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
