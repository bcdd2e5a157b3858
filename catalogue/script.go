package catalogue

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// scriptTimeout bounds a single attribute evaluation.
var scriptTimeout = time.Second

// ScriptAttribute compiles a JavaScript expression into a computed attribute.
// A copy of the fetched record is bound to `record`, so scripts never write to
// records shared through the query cache. The value of the last expression is
// the attribute value. null and undefined resolve to nil.
func ScriptAttribute(src string) (AttributeFunc, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("script can not be empty")
	}
	prg, err := goja.Compile("attribute", src, true)
	if err != nil {
		return nil, fmt.Errorf("error compiling javascript %w", err)
	}
	return func(record Record) (any, error) {
		vm := goja.New()
		if err := vm.Set("record", copyValue(map[string]any(record))); err != nil {
			return nil, err
		}
		timer := time.AfterFunc(scriptTimeout, func() {
			vm.Interrupt("script timed out")
		})
		defer timer.Stop()
		val, err := vm.RunProgram(prg)
		if err != nil {
			return nil, fmt.Errorf("error executing javascript %w", err)
		}
		if goja.IsUndefined(val) || goja.IsNull(val) {
			return nil, nil
		}
		return val.Export(), nil
	}, nil
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = copyValue(item)
		}
		return out
	case Record:
		return copyValue(map[string]any(x))
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = copyValue(item)
		}
		return out
	}
	return v
}
