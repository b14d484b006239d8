package expr

import (
	"fmt"
	"strings"

	"github.com/flowkit/etl/pkg/etlerr"
	"github.com/flowkit/etl/pkg/fieldtype"
	"github.com/flowkit/etl/pkg/record"
)

// Row is the indexable container expressions evaluate field access
// against: row["field_name"] (spec section 4.3). *record.Record
// satisfies this interface via its Field method.
type Row interface {
	Field(name string) (record.Value, bool)
}

// rtKind is the evaluator's internal runtime representation, richer than
// record.Value so that intermediate arithmetic and string operations
// don't need a field type to box into. Values cross the record.Value
// boundary only when Eval returns its final result, or when a field is
// read from a Row.
type rtKind int

const (
	rtNull rtKind = iota
	rtNumber
	rtString
	rtBool
	rtDateTime
	rtRow
)

type rt struct {
	kind  rtKind
	num   float64
	str   string
	b     bool
	ticks int64
}

// Compiled is an expression compiled once from its source string and
// safe for concurrent evaluation against many records (spec section
// 4.3: "Expressions are compiled once per distinct source string and
// cached").
type Compiled struct {
	src  string
	root node
}

// Compile parses src into a Compiled expression. Parse failures are
// reported as CompileError, to be surfaced at pipeline construction
// time per spec section 4.3/7.
func Compile(src string) (*Compiled, error) {
	n, err := parse(strings.TrimSpace(src))
	if err != nil {
		return nil, etlerr.Compile(src, err)
	}
	return &Compiled{src: src, root: n}, nil
}

// Source returns the original expression text, used in EvalError's
// offending-expression field.
func (c *Compiled) Source() string { return c.src }

// Eval evaluates the compiled expression against row and returns the
// result as a record.Value. line is the record's input line number,
// threaded into EvalError on failure.
func (c *Compiled) Eval(row Row, line int64) (record.Value, error) {
	v, err := evalNode(c.root, row)
	if err != nil {
		return record.Value{}, etlerr.Eval(c.src, line, err)
	}
	return toRecordValue(v), nil
}

// EvalBool evaluates the compiled expression as a boolean predicate.
// A non-boolean result fails with InvalidCondition (spec section 4.3).
func (c *Compiled) EvalBool(row Row, line int64) (bool, error) {
	v, err := evalNode(c.root, row)
	if err != nil {
		return false, etlerr.Eval(c.src, line, err)
	}
	if v.kind != rtBool {
		return false, etlerr.InvalidCondition(c.src, line)
	}
	return v.b, nil
}

func evalNode(n node, row Row) (rt, error) {
	switch t := n.(type) {
	case litNode:
		switch t.kind {
		case litNumber:
			return rt{kind: rtNumber, num: t.num}, nil
		case litString:
			return rt{kind: rtString, str: t.str}, nil
		case litBool:
			return rt{kind: rtBool, b: t.b}, nil
		}
		return rt{}, fmt.Errorf("unreachable literal kind")

	case fieldAccessNode:
		v, ok := row.Field(t.name)
		if !ok {
			return rt{}, fmt.Errorf("field %q not found", t.name)
		}
		return fromRecordValue(v), nil

	case rowRefNode:
		return rt{kind: rtRow}, nil

	case unaryNode:
		x, err := evalNode(t.x, row)
		if err != nil {
			return rt{}, err
		}
		switch t.op {
		case "!":
			if x.kind != rtBool {
				return rt{}, fmt.Errorf("operator ! requires a boolean operand")
			}
			return rt{kind: rtBool, b: !x.b}, nil
		case "-":
			if x.kind != rtNumber {
				return rt{}, fmt.Errorf("unary - requires a numeric operand")
			}
			return rt{kind: rtNumber, num: -x.num}, nil
		}
		return rt{}, fmt.Errorf("unknown unary operator %q", t.op)

	case binaryNode:
		return evalBinary(t, row)

	case ternaryNode:
		cond, err := evalNode(t.cond, row)
		if err != nil {
			return rt{}, err
		}
		if cond.kind != rtBool {
			return rt{}, fmt.Errorf("ternary condition must be boolean")
		}
		if cond.b {
			return evalNode(t.then, row)
		}
		return evalNode(t.els, row)

	case coalesceNode:
		l, err := evalNode(t.l, row)
		if err == nil && l.kind != rtNull {
			return l, nil
		}
		return evalNode(t.r, row)

	case methodCallNode:
		return evalMethodCall(t, row)

	case propertyAccessNode:
		return evalPropertyAccess(t, row)
	}
	return rt{}, fmt.Errorf("unhandled expression node %T", n)
}

func evalBinary(t binaryNode, row Row) (rt, error) {
	switch t.op {
	case "&&":
		l, err := evalNode(t.l, row)
		if err != nil {
			return rt{}, err
		}
		if l.kind != rtBool {
			return rt{}, fmt.Errorf("&& requires boolean operands")
		}
		if !l.b {
			return rt{kind: rtBool, b: false}, nil
		}
		r, err := evalNode(t.r, row)
		if err != nil {
			return rt{}, err
		}
		if r.kind != rtBool {
			return rt{}, fmt.Errorf("&& requires boolean operands")
		}
		return rt{kind: rtBool, b: r.b}, nil
	case "||":
		l, err := evalNode(t.l, row)
		if err != nil {
			return rt{}, err
		}
		if l.kind != rtBool {
			return rt{}, fmt.Errorf("|| requires boolean operands")
		}
		if l.b {
			return rt{kind: rtBool, b: true}, nil
		}
		r, err := evalNode(t.r, row)
		if err != nil {
			return rt{}, err
		}
		if r.kind != rtBool {
			return rt{}, fmt.Errorf("|| requires boolean operands")
		}
		return rt{kind: rtBool, b: r.b}, nil
	}

	l, err := evalNode(t.l, row)
	if err != nil {
		return rt{}, err
	}
	r, err := evalNode(t.r, row)
	if err != nil {
		return rt{}, err
	}

	switch t.op {
	case "==":
		return rt{kind: rtBool, b: rtEqual(l, r)}, nil
	case "!=":
		return rt{kind: rtBool, b: !rtEqual(l, r)}, nil
	case "<", "<=", ">", ">=":
		return rtCompare(t.op, l, r)
	case "+":
		if l.kind == rtString || r.kind == rtString {
			return rt{kind: rtString, str: rtToString(l) + rtToString(r)}, nil
		}
		if l.kind != rtNumber || r.kind != rtNumber {
			return rt{}, fmt.Errorf("+ requires numeric or string operands")
		}
		return rt{kind: rtNumber, num: l.num + r.num}, nil
	case "-":
		if l.kind != rtNumber || r.kind != rtNumber {
			return rt{}, fmt.Errorf("- requires numeric operands")
		}
		return rt{kind: rtNumber, num: l.num - r.num}, nil
	case "*":
		if l.kind != rtNumber || r.kind != rtNumber {
			return rt{}, fmt.Errorf("* requires numeric operands")
		}
		return rt{kind: rtNumber, num: l.num * r.num}, nil
	case "/":
		if l.kind != rtNumber || r.kind != rtNumber {
			return rt{}, fmt.Errorf("/ requires numeric operands")
		}
		if r.num == 0 {
			return rt{}, fmt.Errorf("division by zero")
		}
		return rt{kind: rtNumber, num: l.num / r.num}, nil
	}
	return rt{}, fmt.Errorf("unknown binary operator %q", t.op)
}

func rtEqual(l, r rt) bool {
	if l.kind == rtDateTime || r.kind == rtDateTime {
		return toTicks(l) == toTicks(r)
	}
	if l.kind == rtNumber && r.kind == rtNumber {
		return l.num == r.num
	}
	if l.kind == rtString && r.kind == rtString {
		return l.str == r.str
	}
	if l.kind == rtBool && r.kind == rtBool {
		return l.b == r.b
	}
	if l.kind == rtNull && r.kind == rtNull {
		return true
	}
	return false
}

func toTicks(v rt) int64 {
	if v.kind == rtDateTime {
		return v.ticks
	}
	return int64(v.num)
}

func rtCompare(op string, l, r rt) (rt, error) {
	var cmp int
	switch {
	case l.kind == rtDateTime || r.kind == rtDateTime:
		a, b := toTicks(l), toTicks(r)
		cmp = cmpInt64(a, b)
	case l.kind == rtNumber && r.kind == rtNumber:
		cmp = cmpFloat(l.num, r.num)
	case l.kind == rtString && r.kind == rtString:
		cmp = strings.Compare(l.str, r.str)
	default:
		return rt{}, fmt.Errorf("operator %s requires comparable operands of the same type", op)
	}
	var result bool
	switch op {
	case "<":
		result = cmp < 0
	case "<=":
		result = cmp <= 0
	case ">":
		result = cmp > 0
	case ">=":
		result = cmp >= 0
	}
	return rt{kind: rtBool, b: result}, nil
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func rtToString(v rt) string {
	switch v.kind {
	case rtString:
		return v.str
	case rtNumber:
		return formatNumber(v.num)
	case rtBool:
		if v.b {
			return "true"
		}
		return "false"
	case rtDateTime:
		return record.TicksToTime(v.ticks).Format("2006-01-02T15:04:05Z07:00")
	case rtNull:
		return ""
	default:
		return ""
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func evalMethodCall(t methodCallNode, row Row) (rt, error) {
	target, err := evalNode(t.target, row)
	if err != nil {
		return rt{}, err
	}
	switch t.method {
	case "ToString":
		return rt{kind: rtString, str: rtToString(target)}, nil
	case "ToUpper":
		if target.kind != rtString {
			return rt{}, fmt.Errorf("ToUpper requires a string receiver")
		}
		return rt{kind: rtString, str: strings.ToUpper(target.str)}, nil
	case "StartsWith":
		if target.kind != rtString {
			return rt{}, fmt.Errorf("StartsWith requires a string receiver")
		}
		if len(t.args) != 1 {
			return rt{}, fmt.Errorf("StartsWith takes exactly one argument")
		}
		arg, err := evalNode(t.args[0], row)
		if err != nil {
			return rt{}, err
		}
		if arg.kind != rtString {
			return rt{}, fmt.Errorf("StartsWith argument must be a string")
		}
		return rt{kind: rtBool, b: strings.HasPrefix(target.str, arg.str)}, nil
	case "AddYears":
		if target.kind != rtDateTime {
			return rt{}, fmt.Errorf("AddYears requires a DateTime receiver")
		}
		if len(t.args) != 1 {
			return rt{}, fmt.Errorf("AddYears takes exactly one argument")
		}
		arg, err := evalNode(t.args[0], row)
		if err != nil {
			return rt{}, err
		}
		if arg.kind != rtNumber {
			return rt{}, fmt.Errorf("AddYears argument must be numeric")
		}
		newTime := record.TicksToTime(target.ticks).AddDate(int(arg.num), 0, 0)
		return rt{kind: rtDateTime, ticks: record.TimeToTicks(newTime)}, nil
	case "ContainsKey":
		if target.kind != rtRow {
			return rt{}, fmt.Errorf("ContainsKey is only valid on row")
		}
		if len(t.args) != 1 {
			return rt{}, fmt.Errorf("ContainsKey takes exactly one argument")
		}
		arg, err := evalNode(t.args[0], row)
		if err != nil {
			return rt{}, err
		}
		if arg.kind != rtString {
			return rt{}, fmt.Errorf("ContainsKey argument must be a string")
		}
		_, ok := row.Field(arg.str)
		return rt{kind: rtBool, b: ok}, nil
	}
	return rt{}, fmt.Errorf("unknown method %q", t.method)
}

func evalPropertyAccess(t propertyAccessNode, row Row) (rt, error) {
	target, err := evalNode(t.target, row)
	if err != nil {
		return rt{}, err
	}
	switch t.prop {
	case "Year":
		if target.kind != rtDateTime {
			return rt{}, fmt.Errorf("Year requires a DateTime receiver")
		}
		return rt{kind: rtNumber, num: float64(record.TicksToTime(target.ticks).Year())}, nil
	}
	return rt{}, fmt.Errorf("unknown property %q", t.prop)
}

func fromRecordValue(v record.Value) rt {
	switch v.Tag {
	case fieldtype.Null:
		return rt{kind: rtNull}
	case fieldtype.Boolean:
		return rt{kind: rtBool, b: v.AsBoolean()}
	case fieldtype.String:
		return rt{kind: rtString, str: v.AsString()}
	case fieldtype.DateTime:
		return rt{kind: rtDateTime, ticks: v.AsDateTimeTicks()}
	case fieldtype.Int16:
		return rt{kind: rtNumber, num: float64(v.AsInt16())}
	case fieldtype.Int32:
		return rt{kind: rtNumber, num: float64(v.AsInt32())}
	case fieldtype.Int64:
		return rt{kind: rtNumber, num: float64(v.AsInt64())}
	case fieldtype.Byte:
		return rt{kind: rtNumber, num: float64(v.AsByte())}
	case fieldtype.Float32:
		return rt{kind: rtNumber, num: float64(v.AsFloat32())}
	case fieldtype.Float64:
		return rt{kind: rtNumber, num: v.AsFloat64()}
	default:
		// Decimal and Guid are not used in arithmetic/comparison
		// expressions; expose them via ToString() only.
		return rt{kind: rtString, str: v.String()}
	}
}

// toRecordValue converts the evaluator's final result to a record.Value
// at the evaluator boundary (spec section 4.3). The caller (typically
// the rule-based transformer's action application) is responsible for
// coercing this to the target field's declared type via the same
// coercion rules as Record.Set.
func toRecordValue(v rt) record.Value {
	switch v.kind {
	case rtNull:
		return record.Null()
	case rtBool:
		return record.NewBoolean(v.b)
	case rtString:
		return record.NewString(v.str)
	case rtDateTime:
		return record.NewDateTimeTicks(v.ticks)
	case rtNumber:
		return record.NewFloat64(v.num)
	default:
		return record.Null()
	}
}
