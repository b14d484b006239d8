package source

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/flowkit/etl/pkg/bufpool"
	"github.com/flowkit/etl/pkg/etlerr"
	"github.com/flowkit/etl/pkg/record"
	"github.com/flowkit/etl/pkg/schema"
)

// DirectoryConfig configures DirectorySource (spec section 6.4's
// `directory, mask` config row): every file under Directory matching
// Mask is read, in sorted path order, as delimited text sharing one
// column layout.
type DirectoryConfig struct {
	Directory        string
	Mask             string // glob pattern, e.g. "*.csv"
	Delimiter        rune
	HasHeader        bool
	Columns          []ColumnSpec
	RaiseChangeEvery int64
}

// DirectorySource reads every file matching Directory/Mask through a
// DelimitedTextSource, concatenating their rows into one extraction
// pass. Grounded on the teacher's pkg/source/file.go, which resolves
// cfg.Path/cfg.Paths with filepath.Glob before reading.
type DirectorySource struct {
	*Base
	cfg     DirectoryConfig
	schema  *schema.Schema
	pool    *bufpool.Pool
	matches []string
}

// NewDirectorySource expands Directory/Mask via filepath.Glob at
// construction time so a SchemaMismatch/ConfigError on an empty match
// set fails fast, before extraction begins.
func NewDirectorySource(cfg DirectoryConfig, pool *bufpool.Pool) (*DirectorySource, error) {
	if cfg.Directory == "" {
		return nil, etlerr.Config("directory source requires directory")
	}
	mask := cfg.Mask
	if mask == "" {
		mask = "*"
	}
	matches, err := filepath.Glob(filepath.Join(cfg.Directory, mask))
	if err != nil {
		return nil, etlerr.Config("invalid mask %q: %v", mask, err)
	}
	if len(matches) == 0 {
		return nil, etlerr.Config("no files under %s matching %s", cfg.Directory, mask)
	}
	sort.Strings(matches)

	probe, err := NewDelimitedTextSource(DelimitedTextConfig{
		FilePath:  matches[0],
		Delimiter: cfg.Delimiter,
		HasHeader: cfg.HasHeader,
		Columns:   cfg.Columns,
	}, pool)
	if err != nil {
		return nil, err
	}

	return &DirectorySource{
		Base:    NewBase(cfg.RaiseChangeEvery),
		cfg:     cfg,
		schema:  probe.schema,
		pool:    pool,
		matches: matches,
	}, nil
}

func (s *DirectorySource) Schema() *schema.Schema { return s.schema }

// Extract reads every matched file in turn, reusing the same underlying
// DelimitedTextSource machinery (and the same rented buffer within each
// file) but aggregating progress across the whole match set.
func (s *DirectorySource) Extract(ctx context.Context, onRecord func(*record.Record) error) error {
	for _, path := range s.matches {
		if checkCancelled(ctx) {
			s.EmitError(etlerr.Cancelled(), s.Counters().LineNumber, "")
			return etlerr.Cancelled()
		}
		file, err := NewDelimitedTextSource(DelimitedTextConfig{
			FilePath:  path,
			Delimiter: s.cfg.Delimiter,
			HasHeader: s.cfg.HasHeader,
			Columns:   s.cfg.Columns,
		}, s.pool)
		if err != nil {
			wrapped := etlerr.Extract(0, fmt.Errorf("opening %s: %w", path, err))
			s.EmitError(wrapped, 0, "")
			return wrapped
		}
		err = file.Extract(ctx, func(r *record.Record) error {
			s.IncrementLine(0)
			return onRecord(r)
		})
		if err != nil {
			s.EmitError(etlerr.Extract(s.Counters().LineNumber, err), s.Counters().LineNumber, path)
			return err
		}
	}
	s.EmitFinish()
	return nil
}
