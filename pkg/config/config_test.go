package config

import (
	"path/filepath"
	"testing"
)

const sampleYAML = `
name: customers-to-warehouse
source:
  type: delimited_text
  file_path: ./customers.csv
  has_header: true
  columns:
    - name: id
      type: int64
      position: 0
    - name: full_name
      type: string
      position: 1
      output_name: name
      capacity: 128
transform:
  type: rules
  transformations:
    - condition: "age >= 18"
      actions:
        - field_mappings:
            status:
              value: adult
              is_dynamic: false
sink:
  type: sql
  driver: postgres
  connection_string: postgres://localhost/warehouse
  table_name: customers
  batch_size: 500
  write_threads: 4
`

func TestParse_FillsVersionAndTransformDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Version != "1.0" {
		t.Errorf("Version = %q, want 1.0", cfg.Version)
	}
	if cfg.Transform.Type != "rules" {
		t.Errorf("Transform.Type = %q, want rules", cfg.Transform.Type)
	}

	bare, err := Parse([]byte("name: bare\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if bare.Transform.Type != "bypass" {
		t.Errorf("default Transform.Type = %q, want bypass", bare.Transform.Type)
	}
}

func TestParse_ReadsNestedSections(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Source.Columns) != 2 {
		t.Fatalf("got %d columns, want 2", len(cfg.Source.Columns))
	}
	if cfg.Source.Columns[1].OutputName != "name" {
		t.Errorf("column 1 output_name = %q, want name", cfg.Source.Columns[1].OutputName)
	}
	if cfg.Sink.BatchSize != 500 || cfg.Sink.WriteThreads != 4 {
		t.Errorf("sink batch_size/write_threads = %d/%d, want 500/4", cfg.Sink.BatchSize, cfg.Sink.WriteThreads)
	}
	if len(cfg.Transform.Rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(cfg.Transform.Rules))
	}
	mapping, ok := cfg.Transform.Rules[0].Actions[0].FieldMappings["status"]
	if !ok {
		t.Fatal("missing status field mapping")
	}
	if mapping.Value != "adult" || mapping.IsDynamic {
		t.Errorf("status mapping = %+v, want literal \"adult\"", mapping)
	}
}

func TestParse_RejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("name: [unterminated")); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestValidate_RequiresNameSourceAndSink(t *testing.T) {
	cases := []struct {
		name string
		cfg  PipelineConfig
	}{
		{"missing name", PipelineConfig{Source: SourceConfig{Type: "x"}, Sink: SinkConfig{Type: "y"}}},
		{"missing source type", PipelineConfig{Name: "n", Sink: SinkConfig{Type: "y"}}},
		{"missing sink type", PipelineConfig{Name: "n", Source: SourceConfig{Type: "x"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestValidate_RejectsUnknownTransformType(t *testing.T) {
	cfg := PipelineConfig{
		Name:      "n",
		Source:    SourceConfig{Type: "x"},
		Sink:      SinkConfig{Type: "y"},
		Transform: TransformConfig{Type: "nonsense"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected a validation error for unknown transform type")
	}
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Name != cfg.Name || loaded.Sink.TableName != cfg.Sink.TableName {
		t.Errorf("round trip mismatch: got %+v, want %+v", loaded, cfg)
	}
}
