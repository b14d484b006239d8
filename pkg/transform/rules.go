package transform

import (
	"context"

	"github.com/flowkit/etl/pkg/bufpool"
	"github.com/flowkit/etl/pkg/etlerr"
	"github.com/flowkit/etl/pkg/expr"
	"github.com/flowkit/etl/pkg/record"
	"github.com/flowkit/etl/pkg/schema"
)

// FieldMapping is one field-name -> value-spec entry of an action's
// mapping (spec section 6.4's `field_mappings: {name: {value, is_dynamic}}`).
// A literal value-spec is resolved to a typed constant once, at
// construction; a dynamic one is an expression compiled once and
// evaluated per record.
type FieldMapping struct {
	FieldName string
	Value     string // literal text, or expression source when IsDynamic
	IsDynamic bool
}

// ActionConfig is an ordered collection of field mappings (spec
// GLOSSARY: "Action").
type ActionConfig struct {
	Fields []FieldMapping
}

// RuleConfig is a (condition, actions) pair (spec GLOSSARY: "Rule").
// ConditionSrc "" or "true" matches every record (spec section 4.5.2).
type RuleConfig struct {
	ConditionSrc string
	Actions      []ActionConfig
}

type compiledMapping struct {
	targetIndex  int
	dynamic      bool
	literalValue record.Value
	expr         *expr.Compiled
}

type compiledAction struct {
	mappings []compiledMapping
}

type compiledRule struct {
	condition *expr.Compiled
	actions   []compiledAction
}

// RuleBased is the REQUIRED rule-based Transformer variant (spec
// section 4.5.2). It ships REPLACEMENT working-set semantics (spec
// section 9, open question 1): a rule's outputs replace the working
// set rather than appending to it. See TestRuleTransformer_ReplacementSemantics.
type RuleBased struct {
	*Base
	input, output *schema.Schema
	rules         []compiledRule
	pool          *bufpool.Pool
}

// NewRuleBased compiles every rule's condition and every dynamic
// mapping's expression up front, so a malformed expression fails at
// pipeline construction with CompileError (spec sections 4.3, 7)
// instead of mid-run. Literal mappings are coerced to their target
// field's type once here as well.
func NewRuleBased(input, output *schema.Schema, rules []RuleConfig, raiseChangeEvery int64, pool *bufpool.Pool) (*RuleBased, error) {
	compiled := make([]compiledRule, len(rules))
	for ri, rc := range rules {
		cond, err := expr.Compile(rc.ConditionSrc)
		if err != nil {
			return nil, err
		}
		actions := make([]compiledAction, len(rc.Actions))
		for ai, ac := range rc.Actions {
			mappings := make([]compiledMapping, len(ac.Fields))
			for mi, fm := range ac.Fields {
				idx, ok := output.IndexOf(fm.FieldName)
				if !ok {
					return nil, etlerr.SchemaMismatch("rule %d action %d: output schema has no field %q", ri, ai, fm.FieldName)
				}
				cm := compiledMapping{targetIndex: idx, dynamic: fm.IsDynamic}
				if fm.IsDynamic {
					ce, err := expr.Compile(fm.Value)
					if err != nil {
						return nil, err
					}
					cm.expr = ce
				} else {
					lit, err := coerce(record.NewString(fm.Value), output.Field(idx), 0)
					if err != nil {
						return nil, err
					}
					cm.literalValue = lit
				}
				mappings[mi] = cm
			}
			actions[ai] = compiledAction{mappings: mappings}
		}
		compiled[ri] = compiledRule{condition: cond, actions: actions}
	}
	return &RuleBased{
		Base:   NewBase(raiseChangeEvery),
		input:  input,
		output: output,
		rules:  compiled,
		pool:   pool,
	}, nil
}

func (t *RuleBased) InputSchema() *schema.Schema  { return t.input }
func (t *RuleBased) OutputSchema() *schema.Schema { return t.output }

// Transform runs the per-record algorithm of spec section 4.5.2 once
// per input, streaming: it holds at most one input record plus its
// current working set in memory at a time.
func (t *RuleBased) Transform(ctx context.Context, pool *bufpool.Pool, in <-chan *record.Record, out chan<- *record.Record) error {
	var line int64
	for {
		select {
		case <-ctx.Done():
			t.EmitError(etlerr.Cancelled(), line, "")
			return etlerr.Cancelled()
		case r, ok := <-in:
			if !ok {
				t.EmitFinish()
				return nil
			}
			line++
			outputs, err := t.applyRules(r, line)
			pool.ReturnBuffer(r.Buffer())
			if err != nil {
				t.EmitError(err, line, "")
				return err
			}

			t.RecordInput(len(outputs))

			for i, o := range outputs {
				select {
				case <-ctx.Done():
					for _, rem := range outputs[i:] {
						pool.ReturnBuffer(rem.Buffer())
					}
					t.EmitError(etlerr.Cancelled(), line, "")
					return etlerr.Cancelled()
				case out <- o:
				}
			}
		}
	}
}

// applyRules runs the working-set algorithm against one input record
// and returns the final working set, each member backed by its own
// rented output-schema buffer.
func (t *RuleBased) applyRules(r *record.Record, line int64) ([]*record.Record, error) {
	var workingSet []*record.Record

	for _, rule := range t.rules {
		matched, err := rule.condition.EvalBool(r, line)
		if err != nil {
			return nil, err
		}
		if !matched {
			t.RecordExcluded()
			continue
		}

		var base []*record.Record
		if len(workingSet) > 0 {
			base = workingSet
		} else {
			seed, err := t.seedFromInput(r)
			if err != nil {
				return nil, err
			}
			base = []*record.Record{seed}
		}

		var next []*record.Record
		for _, action := range rule.actions {
			for _, member := range base {
				clone, err := t.cloneOutput(member)
				if err != nil {
					return nil, err
				}
				for _, m := range action.mappings {
					v, err := t.resolveMapping(m, r, line)
					if err != nil {
						t.pool.ReturnBuffer(clone.Buffer())
						return nil, err
					}
					if err := clone.Set(m.targetIndex, v); err != nil {
						t.pool.ReturnBuffer(clone.Buffer())
						return nil, err
					}
				}
				next = append(next, clone)
			}
		}

		for _, b := range base {
			t.pool.ReturnBuffer(b.Buffer())
		}
		workingSet = next
	}

	return workingSet, nil
}

func (t *RuleBased) resolveMapping(m compiledMapping, source *record.Record, line int64) (record.Value, error) {
	if !m.dynamic {
		return m.literalValue, nil
	}
	v, err := m.expr.Eval(source, line)
	if err != nil {
		return record.Value{}, err
	}
	return coerce(v, t.output.Field(m.targetIndex), line)
}

// seedFromInput builds the initial working-set member from the source
// record: its fields equal the source's for every name the output
// schema shares with the input schema, and zero-valued (Null-equivalent)
// for fields only the output schema declares (spec section 4.5.2 step 2).
func (t *RuleBased) seedFromInput(r *record.Record) (*record.Record, error) {
	buf := t.pool.RentBuffer(t.output.BufferSize())
	out := record.New(buf, t.output)
	for i := 0; i < t.output.Len(); i++ {
		name := t.output.Field(i).Name
		if srcIdx, ok := t.input.IndexOf(name); ok {
			v, err := r.Get(srcIdx)
			if err != nil {
				t.pool.ReturnBuffer(buf)
				return nil, err
			}
			if v.Tag == t.output.Field(i).Type {
				if err := out.Set(i, v); err != nil {
					t.pool.ReturnBuffer(buf)
					return nil, err
				}
			}
		}
	}
	return out, nil
}

// cloneOutput duplicates an output-schema record's full byte buffer.
func (t *RuleBased) cloneOutput(src *record.Record) (*record.Record, error) {
	buf := t.pool.RentBuffer(t.output.BufferSize())
	copy(buf, src.Buffer())
	return record.New(buf, t.output), nil
}
