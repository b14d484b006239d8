package sink

import (
	"github.com/flowkit/etl/pkg/fieldtype"
	"github.com/flowkit/etl/pkg/record"
	"github.com/flowkit/etl/pkg/schema"
)

// rowArgs extracts r's fields, in schema order, as driver-native values
// for a positional database/sql statement.
func rowArgs(r *record.Record, s *schema.Schema) ([]any, error) {
	args := make([]any, s.Len())
	for i := 0; i < s.Len(); i++ {
		v, err := r.Get(i)
		if err != nil {
			return nil, err
		}
		args[i] = nativeValue(v)
	}
	return args, nil
}

// rowMap extracts r's fields into a name-keyed document, for document
// stores (Elasticsearch, MongoDB).
func rowMap(r *record.Record, s *schema.Schema) (map[string]any, error) {
	doc := make(map[string]any, s.Len())
	for i, f := range s.Fields() {
		v, err := r.Get(i)
		if err != nil {
			return nil, err
		}
		doc[f.Name] = nativeValue(v)
	}
	return doc, nil
}

// nativeValue converts a single record.Value to the Go value its
// fieldtype.Type maps to in driver-facing code (database/sql args,
// bson.M documents, JSON bulk bodies).
func nativeValue(v record.Value) any {
	switch v.Tag {
	case fieldtype.Null:
		return nil
	case fieldtype.Int16:
		return v.AsInt16()
	case fieldtype.Int32:
		return v.AsInt32()
	case fieldtype.Int64:
		return v.AsInt64()
	case fieldtype.Byte:
		return v.AsByte()
	case fieldtype.Boolean:
		return v.AsBoolean()
	case fieldtype.Float32:
		return v.AsFloat32()
	case fieldtype.Float64:
		return v.AsFloat64()
	case fieldtype.DateTime:
		return record.TicksToTime(v.AsDateTimeTicks())
	case fieldtype.Decimal:
		d := v.AsDecimal()
		sign := float64(1)
		if d.Negative {
			sign = -1
		}
		scale := 1.0
		for i := uint8(0); i < d.Scale; i++ {
			scale *= 10
		}
		return sign * float64(d.Unscaled) / scale
	case fieldtype.Guid:
		return v.AsGuid().String()
	case fieldtype.String:
		return v.AsString()
	default:
		return nil
	}
}
