package validation

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
)

// costLimit caps evaluation work per constraint
const costLimit = 1000000

// Engine holds compiled constraint programs.
// It is built once at startup and read-only afterwards, so concurrent
// Check calls need no locking.
type Engine struct {
	env         *cel.Env
	constraints []Constraint
	programs    []cel.Program // same order as constraints
}

// NewEngine declares one typed CEL variable per constrained field and
// compiles every constraint. Any compile error fails construction.
func NewEngine(constraints []Constraint) (*Engine, error) {
	if len(constraints) == 0 {
		return nil, errors.New("at least one constraint is required")
	}

	declared := make(map[string]string)
	var opts []cel.EnvOption
	for _, c := range constraints {
		if c.Field == "" {
			return nil, errors.New("constraint field name cannot be empty")
		}
		celType, ok := celTypes[c.Type]
		if !ok {
			return nil, fmt.Errorf("constraint on %q has unsupported type %q (must be one of: int, double, string)", c.Field, c.Type)
		}
		if prev, seen := declared[c.Field]; seen {
			if prev != c.Type {
				return nil, fmt.Errorf("field %q declared as both %s and %s", c.Field, prev, c.Type)
			}
			continue
		}
		declared[c.Field] = c.Type
		opts = append(opts, cel.Variable(c.Field, celType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	en := &Engine{
		env:         env,
		constraints: make([]Constraint, len(constraints)),
		programs:    make([]cel.Program, len(constraints)),
	}
	copy(en.constraints, constraints)

	for i, c := range en.constraints {
		prog, err := en.compile(c.Expression)
		if err != nil {
			return nil, fmt.Errorf("constraint on %q: %w", c.Field, err)
		}
		en.programs[i] = prog
	}

	return en, nil
}

var celTypes = map[string]*cel.Type{
	"int":    cel.IntType,
	"double": cel.DoubleType,
	"string": cel.StringType,
}

func (en *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression %q must return bool, returns %s", expression, ast.OutputType())
	}

	prog, err := en.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// Check evaluates constraints in declaration order and returns the first
// violation, or nil when every constraint holds. The error return is for
// evaluation faults such as a value missing from the activation.
func (en *Engine) Check(values map[string]any) (*Violation, error) {
	for i, c := range en.constraints {
		ok, err := en.eval(i, values)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &Violation{Field: c.Field, Message: c.Message, Value: values[c.Field]}, nil
		}
	}
	return nil, nil
}

func (en *Engine) eval(i int, values map[string]any) (bool, error) {
	c := en.constraints[i]
	if _, ok := values[c.Field]; !ok {
		return false, fmt.Errorf("no value supplied for %q", c.Field)
	}

	out, _, err := en.programs[i].Eval(values)
	if err != nil {
		return false, fmt.Errorf("evaluating constraint on %q: %w", c.Field, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("constraint on %q returned %T, want bool", c.Field, out.Value())
	}
	return matched, nil
}

// Constraints returns a copy of the compiled constraint table
func (en *Engine) Constraints() []Constraint {
	out := make([]Constraint, len(en.constraints))
	copy(out, en.constraints)
	return out
}
