package source

import (
	"github.com/flowkit/etl/pkg/fieldtype"
	"github.com/flowkit/etl/pkg/record"
	"github.com/flowkit/etl/pkg/textconv"
)

// parseCell converts one delimited-text cell into a typed record.Value
// for the given target type, delegating to pkg/textconv so the Source's
// text parsing and the Transformer's literal/string coercion share one
// ruleset (spec section 4.1).
func parseCell(cell string, t fieldtype.Type) (record.Value, error) {
	return textconv.ParseText(cell, t)
}
