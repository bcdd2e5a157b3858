// Package rule parses and evaluates branch conditions written in a JSON logic
// subset. Parsing and evaluation are separate steps: Parse rejects malformed
// rules with a *ParseError, and Evaluate only ever sees a validated tree.
//
// Evaluation is three-valued. A rule that references a variable absent from the
// bindings evaluates to UNKNOWN and reports the missing names instead of failing.
package rule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrRuleParse = errors.New("rule parse error")

type ParseError struct {
	Rule   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rule parse error: %s", e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrRuleParse
}

type Operator string

const OP_AND Operator = "and"
const OP_OR Operator = "or"
const OP_NOT Operator = "!"
const OP_EQ Operator = "=="
const OP_NEQ Operator = "!="
const OP_LT Operator = "<"
const OP_LTE Operator = "<="
const OP_GT Operator = ">"
const OP_GTE Operator = ">="
const OP_IN Operator = "in"

// min and max operand count per operator, -1 means unbounded
var arity = map[Operator][2]int{
	OP_AND: {1, -1},
	OP_OR:  {1, -1},
	OP_NOT: {1, 1},
	OP_EQ:  {2, 2},
	OP_NEQ: {2, 2},
	OP_LT:  {2, 3},
	OP_LTE: {2, 3},
	OP_GT:  {2, 2},
	OP_GTE: {2, 2},
	OP_IN:  {2, 2},
}

var aliases = map[string]Operator{
	"not": OP_NOT,
	"===": OP_EQ,
	"!==": OP_NEQ,
}

// Expr is a node of a parsed rule. The set of node types is closed.
type Expr interface {
	node()
}

type Var struct {
	Name       string
	Default    any
	HasDefault bool
}

type Literal struct {
	Value any
}

type List struct {
	Items []Expr
}

type Op struct {
	Operator Operator
	Args     []Expr
}

func (Var) node()     {}
func (Literal) node() {}
func (List) node()    {}
func (Op) node()      {}

func Parse(raw []byte) (Expr, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, &ParseError{Rule: string(raw), Reason: "empty rule"}
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, &ParseError{Rule: string(raw), Reason: fmt.Sprintf("invalid json: %v", err)}
	}
	if tree == nil {
		return nil, &ParseError{Rule: string(raw), Reason: "rule must be an operation or literal, got null"}
	}
	expr, err := build(tree)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Rule = string(raw)
		}
		return nil, err
	}
	return expr, nil
}

func ParseString(raw string) (Expr, error) {
	return Parse([]byte(raw))
}

// MustParse is Parse for rules known at compile time.
func MustParse(raw string) Expr {
	expr, err := ParseString(raw)
	if err != nil {
		panic(err)
	}
	return expr
}

func build(node any) (Expr, error) {
	switch n := node.(type) {
	case map[string]any:
		if len(n) != 1 {
			return nil, &ParseError{Reason: fmt.Sprintf("operation must have exactly one key, got %d", len(n))}
		}
		for key, arg := range n {
			if key == "var" {
				return buildVar(arg)
			}
			return buildOp(key, arg)
		}
	case []any:
		items := make([]Expr, 0, len(n))
		for _, item := range n {
			expr, err := build(item)
			if err != nil {
				return nil, err
			}
			items = append(items, expr)
		}
		return List{Items: items}, nil
	}
	return Literal{Value: node}, nil
}

func buildVar(arg any) (Expr, error) {
	switch a := arg.(type) {
	case string:
		if len(a) == 0 {
			return nil, &ParseError{Reason: "var name can not be empty"}
		}
		return Var{Name: a}, nil
	case []any:
		if len(a) == 0 || len(a) > 2 {
			return nil, &ParseError{Reason: fmt.Sprintf("var takes a name and an optional default, got %d arguments", len(a))}
		}
		name, ok := a[0].(string)
		if !ok || len(name) == 0 {
			return nil, &ParseError{Reason: fmt.Sprintf("var name must be a non empty string, got %v", a[0])}
		}
		v := Var{Name: name}
		if len(a) == 2 {
			v.Default = a[1]
			v.HasDefault = true
		}
		return v, nil
	}
	return nil, &ParseError{Reason: fmt.Sprintf("var name must be a string, got %T", arg)}
}

func buildOp(key string, arg any) (Expr, error) {
	op := Operator(key)
	if alias, ok := aliases[key]; ok {
		op = alias
	}
	bounds, ok := arity[op]
	if !ok {
		return nil, &ParseError{Reason: fmt.Sprintf("unsupported operator %q", key)}
	}
	rawArgs, isList := arg.([]any)
	if !isList {
		rawArgs = []any{arg}
	}
	if len(rawArgs) < bounds[0] || (bounds[1] >= 0 && len(rawArgs) > bounds[1]) {
		return nil, &ParseError{Reason: fmt.Sprintf("operator %q got %d operands", key, len(rawArgs))}
	}
	args := make([]Expr, 0, len(rawArgs))
	for _, a := range rawArgs {
		expr, err := build(a)
		if err != nil {
			return nil, err
		}
		args = append(args, expr)
	}
	return Op{Operator: op, Args: args}, nil
}
