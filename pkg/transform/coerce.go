package transform

import (
	"fmt"

	"github.com/flowkit/etl/pkg/etlerr"
	"github.com/flowkit/etl/pkg/fieldtype"
	"github.com/flowkit/etl/pkg/record"
	"github.com/flowkit/etl/pkg/schema"
	"github.com/flowkit/etl/pkg/textconv"
)

// coerce converts v (a literal constant or an evaluated expression
// result) to the type declared by the target field descriptor, using
// the same coercion rules as Record.Set (spec section 4.5.2's "Expression
// result typing"). Failures are reported as CoercionError.
func coerce(v record.Value, target schema.FieldDescriptor, line int64) (record.Value, error) {
	if v.Tag == fieldtype.Null || v.Tag == target.Type {
		return v, nil
	}
	if v.Tag == fieldtype.String && target.Type != fieldtype.String {
		coerced, err := textconv.ParseText(v.AsString(), target.Type)
		if err != nil {
			return record.Value{}, etlerr.Coercion(target.Name, line, err)
		}
		return coerced, nil
	}
	if coerced, ok := textconv.CoerceNumeric(v, target.Type); ok {
		return coerced, nil
	}
	if target.Type == fieldtype.String {
		return record.NewString(v.String()), nil
	}
	return record.Value{}, etlerr.Coercion(target.Name, line,
		fmt.Errorf("cannot coerce value of type %s to field %q of type %s", v.Tag, target.Name, target.Type))
}
