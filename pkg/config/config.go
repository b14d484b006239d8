// Package config deserializes the declarative pipeline configuration
// named in spec section 6.4's options table. It stays free of the
// pkg/source, pkg/transform, pkg/sink and pkg/pipeline packages: it
// only describes what a config file says, not how a stage is built
// from it. cmd/etl's wire.go turns a PipelineConfig into concrete
// Source/Transformer/Sink values.
//
// Grounded on the teacher's pkg/config/config.go: Load/Parse/Validate/
// ToYAML/Save built on gopkg.in/yaml.v3, the same library named in the
// teacher's go.mod.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PipelineConfig is the root document. One config describes one
// Source, one Transformer and one Sink wired through a single
// Pipeline (spec section 6.4's full option set, flattened: the
// original spec has no multi-source/multi-sink DAG, unlike the
// teacher's flat/actor pipeline modes).
type PipelineConfig struct {
	Version string `yaml:"version"`
	Name    string `yaml:"name"`

	Source    SourceConfig    `yaml:"source"`
	Transform TransformConfig `yaml:"transform,omitempty"`
	Sink      SinkConfig      `yaml:"sink"`

	// Culture is the `culture` key of spec section 6.4. It is parsed and
	// saved but not read by any stage: text parsing in pkg/textconv
	// always uses Go's locale-independent strconv and fixed date layouts.
	Culture string `yaml:"culture,omitempty"`

	// ChannelCapacity overrides the orchestrator's extract->transform
	// and transform->load channel capacity (spec section 4.6's
	// bounded-channel backpressure knob). Zero means "use the
	// pipeline package's default".
	ChannelCapacity int `yaml:"channel_capacity,omitempty"`
}

// ColumnConfig is one entry of the source's `columns` option (spec
// section 6.4): it maps one input column position to one output
// field.
type ColumnConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Position   int    `yaml:"position"`
	IsHeader   bool   `yaml:"is_header,omitempty"`
	OutputName string `yaml:"output_name,omitempty"`
	Capacity   int    `yaml:"capacity,omitempty"`
}

// SourceConfig is a union of every Source variant's options (spec
// section 6.4). Type selects which fields apply; unused fields for a
// given Type are simply left zero. A DB source (the teacher's SQL
// pkg/source.go path) is not among them: only the DB Sink is
// implemented (see DESIGN.md's dropped/unimplemented-surface notes).
type SourceConfig struct {
	// Type is one of "delimited_text", "directory", "kafka".
	Type string `yaml:"type"`

	Columns []ColumnConfig `yaml:"columns,omitempty"`

	// Delimited-text / directory options.
	FilePath  string `yaml:"file_path,omitempty"`
	Delimiter string `yaml:"delimiter,omitempty"`
	HasHeader bool   `yaml:"has_header,omitempty"`
	Directory string `yaml:"directory,omitempty"`
	Mask      string `yaml:"mask,omitempty"`

	// Kafka source options (supplemental; not in spec section 6.4's
	// table, see SPEC_FULL.md's domain-stack expansion).
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
	GroupID string   `yaml:"group_id,omitempty"`

	RaiseChangeEvery int64 `yaml:"raise_change_every,omitempty"`
}

// TransformConfig selects the bypass or rule-based Transformer (spec
// section 4.5). An empty Type means bypass.
type TransformConfig struct {
	// Type is "bypass" or "rules". Empty defaults to "bypass".
	Type             string       `yaml:"type,omitempty"`
	Rules            []RuleConfig `yaml:"transformations,omitempty"`
	RaiseChangeEvery int64        `yaml:"raise_change_every,omitempty"`
}

// RuleConfig is one `{condition, actions}` entry of `transformations`
// (spec section 6.4).
type RuleConfig struct {
	Condition string         `yaml:"condition"`
	Actions   []ActionConfig `yaml:"actions"`
}

// ActionConfig is one action's field_mappings map.
type ActionConfig struct {
	FieldMappings map[string]FieldMappingConfig `yaml:"field_mappings"`
}

// FieldMappingConfig is one field_mappings entry: either a literal
// Value or, when IsDynamic is true, an expression source string.
type FieldMappingConfig struct {
	Value     string `yaml:"value"`
	IsDynamic bool   `yaml:"is_dynamic,omitempty"`
}

// SinkConfig is a union of every Sink variant's options (spec section
// 6.4).
type SinkConfig struct {
	// Type is one of "sql", "elasticsearch", "mongo".
	Type string `yaml:"type"`

	// Columns defines the sink's record layout (spec section 6.4's
	// `columns` row applies to source AND sink configs). For a "rules"
	// transform, this is also the Transformer's output schema: the
	// Transformer writes records shaped for the Sink, not the Source.
	Columns []ColumnConfig `yaml:"columns,omitempty"`

	// SQL sink options.
	Driver           string `yaml:"driver,omitempty"`
	ConnectionString string `yaml:"connection_string,omitempty"`
	TableName        string `yaml:"table_name,omitempty"`
	BatchSize        int    `yaml:"batch_size,omitempty"`
	WriteThreads     int    `yaml:"write_threads,omitempty"`

	// Elasticsearch sink options.
	Addresses []string `yaml:"addresses,omitempty"`
	Index     string   `yaml:"index,omitempty"`

	// MongoDB sink options.
	URI        string `yaml:"uri,omitempty"`
	Database   string `yaml:"database,omitempty"`
	Collection string `yaml:"collection,omitempty"`

	RaiseChangeEvery int64 `yaml:"raise_change_every,omitempty"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse deserializes YAML bytes into a PipelineConfig and fills in the
// small set of defaults every component is entitled to assume.
func Parse(data []byte) (*PipelineConfig, error) {
	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	if cfg.Transform.Type == "" {
		cfg.Transform.Type = "bypass"
	}
	return &cfg, nil
}

// Validate checks the structural requirements common to every
// Source/Transform/Sink Type, leaving type-specific validation (e.g.
// "delimited_text requires file_path") to each domain package's own
// constructor, which already returns ConfigError for those.
func (c *PipelineConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}
	if c.Source.Type == "" {
		return fmt.Errorf("source.type is required")
	}
	if c.Sink.Type == "" {
		return fmt.Errorf("sink.type is required")
	}
	switch c.Transform.Type {
	case "bypass", "rules":
	default:
		return fmt.Errorf("unknown transform.type: %s", c.Transform.Type)
	}
	return nil
}

// ToYAML serializes the config back to YAML.
func (c *PipelineConfig) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Save writes the config to path as YAML.
func (c *PipelineConfig) Save(path string) error {
	data, err := c.ToYAML()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
