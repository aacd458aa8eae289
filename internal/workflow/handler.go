package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
)

// ExecuteJSHandler runs a JS function body against args, the way the
// snippet/script node does. The handler is a function body (not a full
// declaration) that sees `args` as input and returns a value; non-string
// return values are marshaled to JSON.
func ExecuteJSHandler(handler string, args map[string]any, varLookup ...VarLookup) (string, error) {
	vm := goja.New()

	var vl VarLookup
	if len(varLookup) > 0 {
		vl = varLookup[0]
	}
	if err := SetupGojaVM(vm, map[string]any{"args": args}, vl); err != nil {
		return "", fmt.Errorf("js handler: setup VM: %w", err)
	}

	script := "(function() {\n" + handler + "\n})()"
	val, err := vm.RunString(script)
	if err != nil {
		return "", fmt.Errorf("js handler execution failed: %w", err)
	}

	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return "", nil
	}

	exported := val.Export()
	switch v := exported.(type) {
	case string:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v), nil
		}
		return string(data), nil
	}
}
