package main

import (
	"context"
	"fmt"

	"github.com/flowkit/etl/pkg/bufpool"
	"github.com/flowkit/etl/pkg/config"
	"github.com/flowkit/etl/pkg/fieldtype"
	"github.com/flowkit/etl/pkg/schema"
	"github.com/flowkit/etl/pkg/sink"
	"github.com/flowkit/etl/pkg/source"
	"github.com/flowkit/etl/pkg/transform"
)

// buildSource turns a config.SourceConfig into the matching
// pkg/source implementation. The Type switches in this file
// (buildSource, buildTransform, buildSink) are where config type strings
// select stage implementations; column type strings go through
// fieldtype.FromConfigString.
func buildSource(cfg config.SourceConfig, pool *bufpool.Pool) (source.Source, error) {
	columns, err := buildSourceColumns(cfg.Columns)
	if err != nil {
		return nil, fmt.Errorf("source columns: %w", err)
	}
	switch cfg.Type {
	case "delimited_text", "":
		delim := ','
		if cfg.Delimiter != "" {
			delim = []rune(cfg.Delimiter)[0]
		}
		return source.NewDelimitedTextSource(source.DelimitedTextConfig{
			FilePath:         cfg.FilePath,
			Delimiter:        delim,
			HasHeader:        cfg.HasHeader,
			Columns:          columns,
			RaiseChangeEvery: cfg.RaiseChangeEvery,
		}, pool)
	case "directory":
		delim := ','
		if cfg.Delimiter != "" {
			delim = []rune(cfg.Delimiter)[0]
		}
		return source.NewDirectorySource(source.DirectoryConfig{
			Directory:        cfg.Directory,
			Mask:             cfg.Mask,
			Delimiter:        delim,
			HasHeader:        cfg.HasHeader,
			Columns:          columns,
			RaiseChangeEvery: cfg.RaiseChangeEvery,
		}, pool)
	case "kafka":
		return source.NewKafkaSource(source.KafkaConfig{
			Brokers:          cfg.Brokers,
			Topic:            cfg.Topic,
			GroupID:          cfg.GroupID,
			RaiseChangeEvery: cfg.RaiseChangeEvery,
		}, pool)
	default:
		return nil, fmt.Errorf("unknown source.type %q", cfg.Type)
	}
}

func buildSourceColumns(cols []config.ColumnConfig) ([]source.ColumnSpec, error) {
	out := make([]source.ColumnSpec, len(cols))
	for i, c := range cols {
		t, err := fieldtype.FromConfigString(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		out[i] = source.ColumnSpec{
			Name:       c.Name,
			Type:       t,
			Position:   c.Position,
			OutputName: c.OutputName,
			Capacity:   c.Capacity,
		}
	}
	return out, nil
}

// sinkSchema builds the schema a Sink is constructed against, from
// SinkConfig.Columns. For a "rules" Transformer this is also the
// Transformer's output schema (spec section 6.4: the `columns` row
// doubles as the target layout for both Transformer and Sink).
func sinkSchema(cols []config.ColumnConfig) (*schema.Schema, error) {
	specs := make([]schema.FieldSpec, len(cols))
	for i, c := range cols {
		t, err := fieldtype.FromConfigString(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		name := c.OutputName
		if name == "" {
			name = c.Name
		}
		specs[i] = schema.FieldSpec{Name: name, Type: t, Capacity: c.Capacity}
	}
	return schema.Build(specs)
}

// buildTransform turns a config.TransformConfig into the matching
// pkg/transform implementation. inputSchema is always the Source's
// schema; outputSchema is the Sink's schema (equal to inputSchema for
// "bypass").
func buildTransform(cfg config.TransformConfig, inputSchema, outputSchema *schema.Schema, pool *bufpool.Pool) (transform.Transformer, error) {
	switch cfg.Type {
	case "bypass", "":
		if !inputSchema.PositionallyCompatible(outputSchema) {
			return nil, fmt.Errorf("bypass transform requires source and sink schemas to match")
		}
		return transform.NewBypass(inputSchema, cfg.RaiseChangeEvery), nil
	case "rules":
		rules := make([]transform.RuleConfig, len(cfg.Rules))
		for i, r := range cfg.Rules {
			actions := make([]transform.ActionConfig, len(r.Actions))
			for ai, a := range r.Actions {
				mappings := make([]transform.FieldMapping, 0, len(a.FieldMappings))
				for field, m := range a.FieldMappings {
					mappings = append(mappings, transform.FieldMapping{
						FieldName: field,
						Value:     m.Value,
						IsDynamic: m.IsDynamic,
					})
				}
				actions[ai] = transform.ActionConfig{Fields: mappings}
			}
			rules[i] = transform.RuleConfig{ConditionSrc: r.Condition, Actions: actions}
		}
		return transform.NewRuleBased(inputSchema, outputSchema, rules, cfg.RaiseChangeEvery, pool)
	default:
		return nil, fmt.Errorf("unknown transform.type %q", cfg.Type)
	}
}

// buildSink turns a config.SinkConfig into the matching pkg/sink
// implementation, against the schema built from cfg.Columns.
func buildSink(ctx context.Context, cfg config.SinkConfig, s *schema.Schema) (sink.Sink, error) {
	switch cfg.Type {
	case "sql":
		return sink.NewBatchedSQL(sink.SQLConfig{
			Driver:           cfg.Driver,
			DSN:              cfg.ConnectionString,
			TableName:        cfg.TableName,
			BatchSize:        cfg.BatchSize,
			WriteThreads:     cfg.WriteThreads,
			RaiseChangeEvery: cfg.RaiseChangeEvery,
		}, s)
	case "elasticsearch":
		return sink.NewElasticsearch(sink.ElasticsearchConfig{
			Addresses:        cfg.Addresses,
			Index:            cfg.Index,
			BatchSize:        cfg.BatchSize,
			WriteThreads:     cfg.WriteThreads,
			RaiseChangeEvery: cfg.RaiseChangeEvery,
		}, s)
	case "mongo":
		return sink.NewMongo(ctx, sink.MongoConfig{
			URI:              cfg.URI,
			Database:         cfg.Database,
			Collection:       cfg.Collection,
			BatchSize:        cfg.BatchSize,
			WriteThreads:     cfg.WriteThreads,
			RaiseChangeEvery: cfg.RaiseChangeEvery,
		}, s)
	default:
		return nil, fmt.Errorf("unknown sink.type %q", cfg.Type)
	}
}
