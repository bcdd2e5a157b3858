package rule

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

type Status string

const TRUE Status = "True"
const FALSE Status = "False"
const UNKNOWN Status = "Unknown"

// Bindings maps a dotted variable name to its resolved value. A nil value is
// an unresolved variable and counts as missing.
type Bindings map[string]any

type Result struct {
	Status  Status   `json:"status"`
	Missing []string `json:"missingVariables"`
}

// Evaluate never fails. Any variable that is absent from bindings, or bound to
// nil without a default, makes the whole result UNKNOWN.
func Evaluate(expr Expr, bindings Bindings) Result {
	e := &evaluator{bindings: bindings, missing: make(map[string]struct{})}
	value := e.eval(expr)
	if len(e.missing) > 0 {
		missing := make([]string, 0, len(e.missing))
		for name := range e.missing {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return Result{Status: UNKNOWN, Missing: missing}
	}
	if truthy(value) {
		return Result{Status: TRUE, Missing: []string{}}
	}
	return Result{Status: FALSE, Missing: []string{}}
}

type evaluator struct {
	bindings Bindings
	missing  map[string]struct{}
}

func (e *evaluator) eval(expr Expr) any {
	switch x := expr.(type) {
	case Var:
		v, ok := e.bindings[x.Name]
		if ok && v != nil {
			return v
		}
		if x.HasDefault {
			return x.Default
		}
		e.missing[x.Name] = struct{}{}
		return nil
	case Literal:
		return x.Value
	case List:
		out := make([]any, 0, len(x.Items))
		for _, item := range x.Items {
			out = append(out, e.eval(item))
		}
		return out
	case Op:
		return e.evalOp(x)
	}
	return nil
}

// every operand is evaluated so that all missing variables are reported
func (e *evaluator) evalOp(op Op) any {
	args := make([]any, 0, len(op.Args))
	for _, a := range op.Args {
		args = append(args, e.eval(a))
	}
	switch op.Operator {
	case OP_AND:
		for _, a := range args {
			if !truthy(a) {
				return false
			}
		}
		return true
	case OP_OR:
		for _, a := range args {
			if truthy(a) {
				return true
			}
		}
		return false
	case OP_NOT:
		return !truthy(args[0])
	case OP_EQ:
		return equal(args[0], args[1])
	case OP_NEQ:
		return !equal(args[0], args[1])
	case OP_LT, OP_LTE:
		strict := op.Operator == OP_LT
		for i := 0; i+1 < len(args); i++ {
			c, ok := compare(args[i], args[i+1])
			if !ok || c > 0 || (strict && c == 0) {
				return false
			}
		}
		return true
	case OP_GT:
		c, ok := compare(args[0], args[1])
		return ok && c > 0
	case OP_GTE:
		c, ok := compare(args[0], args[1])
		return ok && c >= 0
	case OP_IN:
		return contains(args[1], args[0])
	}
	return false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return len(x) > 0
	case []any:
		return len(x) > 0
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case bool, string, nil:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func equal(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	if aNum != bNum {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func compare(a, b any) (int, bool) {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)
		return ok && strings.Contains(h, n)
	case []any:
		for _, item := range h {
			if equal(item, needle) {
				return true
			}
		}
		return false
	}
	rv := reflect.ValueOf(haystack)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := 0; i < rv.Len(); i++ {
			if equal(rv.Index(i).Interface(), needle) {
				return true
			}
		}
	}
	return false
}
