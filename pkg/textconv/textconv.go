// Package textconv converts between text and typed record.Value,
// shared by the delimited-text Source (parsing raw input cells) and the
// rule-based Transformer (coercing literal constants and string-typed
// expression results to a target field type). Centralizing this avoids
// a dependency cycle between pkg/source and pkg/transform while keeping
// one documented parsing/coercion ruleset, per spec section 4.1's "the
// same coercion rules as set."
package textconv

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/flowkit/etl/pkg/fieldtype"
	"github.com/flowkit/etl/pkg/record"
)

// ParseText converts raw text into a typed record.Value for t. An empty
// string for any non-String type parses as Null.
func ParseText(text string, t fieldtype.Type) (record.Value, error) {
	if text == "" && t != fieldtype.String {
		return record.Null(), nil
	}
	switch t {
	case fieldtype.String:
		return record.NewString(text), nil
	case fieldtype.Int16:
		n, err := strconv.ParseInt(text, 10, 16)
		if err != nil {
			return record.Value{}, fmt.Errorf("invalid Int16 %q: %w", text, err)
		}
		return record.NewInt16(int16(n)), nil
	case fieldtype.Int32:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return record.Value{}, fmt.Errorf("invalid Int32 %q: %w", text, err)
		}
		return record.NewInt32(int32(n)), nil
	case fieldtype.Int64:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return record.Value{}, fmt.Errorf("invalid Int64 %q: %w", text, err)
		}
		return record.NewInt64(n), nil
	case fieldtype.Byte:
		n, err := strconv.ParseUint(text, 10, 8)
		if err != nil {
			return record.Value{}, fmt.Errorf("invalid Byte %q: %w", text, err)
		}
		return record.NewByte(byte(n)), nil
	case fieldtype.Float32:
		n, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return record.Value{}, fmt.Errorf("invalid Float32 %q: %w", text, err)
		}
		return record.NewFloat32(float32(n)), nil
	case fieldtype.Float64:
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return record.Value{}, fmt.Errorf("invalid Float64 %q: %w", text, err)
		}
		return record.NewFloat64(n), nil
	case fieldtype.Boolean:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return record.Value{}, fmt.Errorf("invalid Boolean %q: %w", text, err)
		}
		return record.NewBoolean(b), nil
	case fieldtype.DateTime:
		tm, err := ParseDateTime(text)
		if err != nil {
			return record.Value{}, fmt.Errorf("invalid DateTime %q: %w", text, err)
		}
		return record.NewDateTimeTicks(record.TimeToTicks(tm)), nil
	case fieldtype.Guid:
		g, err := uuid.Parse(text)
		if err != nil {
			return record.Value{}, fmt.Errorf("invalid Guid %q: %w", text, err)
		}
		return record.NewGuid(g), nil
	case fieldtype.Decimal:
		d, err := ParseDecimal(text)
		if err != nil {
			return record.Value{}, fmt.Errorf("invalid Decimal %q: %w", text, err)
		}
		return record.NewDecimal(d), nil
	default:
		return record.Null(), nil
	}
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseDateTime tries each recognized layout in turn (RFC3339 first),
// normalizing the result to UTC.
func ParseDateTime(text string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateTimeLayouts {
		if tm, err := time.Parse(layout, text); err == nil {
			return tm.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// ParseDecimal parses a base-10 string with an optional leading '-' and
// a single '.' into the core's (unscaled, scale, sign) Decimal layout.
func ParseDecimal(text string) (record.Decimal, error) {
	negative := false
	s := text
	if len(s) > 0 && s[0] == '-' {
		negative = true
		s = s[1:]
	}
	intPart, fracPart, hasFrac := splitOnce(s, '.')
	scale := 0
	digits := intPart
	if hasFrac {
		scale = len(fracPart)
		digits = intPart + fracPart
	}
	unscaled, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return record.Decimal{}, err
	}
	return record.Decimal{Unscaled: unscaled, Scale: uint8(scale), Negative: negative}, nil
}

func splitOnce(s string, sep byte) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// CoerceNumeric converts a numeric record.Value (or a Float64 produced
// by the expression evaluator's arithmetic boundary) to the target
// numeric type. Returns ok=false if v's tag is not numeric.
func CoerceNumeric(v record.Value, target fieldtype.Type) (record.Value, bool) {
	var f float64
	switch v.Tag {
	case fieldtype.Int16:
		f = float64(v.AsInt16())
	case fieldtype.Int32:
		f = float64(v.AsInt32())
	case fieldtype.Int64:
		f = float64(v.AsInt64())
	case fieldtype.Byte:
		f = float64(v.AsByte())
	case fieldtype.Float32:
		f = float64(v.AsFloat32())
	case fieldtype.Float64:
		f = v.AsFloat64()
	default:
		return record.Value{}, false
	}
	switch target {
	case fieldtype.Int16:
		return record.NewInt16(int16(f)), true
	case fieldtype.Int32:
		return record.NewInt32(int32(f)), true
	case fieldtype.Int64:
		return record.NewInt64(int64(f)), true
	case fieldtype.Byte:
		return record.NewByte(byte(f)), true
	case fieldtype.Float32:
		return record.NewFloat32(float32(f)), true
	case fieldtype.Float64:
		return record.NewFloat64(f), true
	default:
		return record.Value{}, false
	}
}
