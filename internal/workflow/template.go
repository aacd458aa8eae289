package workflow

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/rytsh/mugo/fstore"
	_ "github.com/rytsh/mugo/fstore/registry"
	"github.com/rytsh/mugo/templatex"
)

// RenderTemplate executes a Jinja-style {{expr}} template string against
// the context's variables plus the `global.*` namespace, falling back to
// returning the original string unchanged on any render error — templates
// are a convenience, not something a malformed one should be allowed to
// crash a run over.
func (c *Context) RenderTemplate(tmplText string) string {
	if !strings.Contains(tmplText, "{{") {
		return tmplText
	}

	data := make(map[string]any, len(c.variables)+1)
	for k, v := range c.variables {
		data[k] = v
	}
	data["global"] = c.GlobalVariables()

	out, err := executeTemplate(tmplText, data)
	if err != nil {
		slog.Warn("template render failed, using literal text", "error", err)
		return tmplText
	}
	return out
}

func executeTemplate(content string, data any) (string, error) {
	tpl := templatex.New(
		templatex.WithAddFuncMapWithOpts(func(o templatex.Option) map[string]any {
			return fstore.FuncMap(
				fstore.WithLog(slog.Default()),
				fstore.WithTrust(true),
				fstore.WithExecuteTemplate(o.T),
			)
		}),
		templatex.WithAddFuncMap(map[string]any{
			"json_safe": jsonSafe,
		}),
	)

	var buf bytes.Buffer
	if err := tpl.Execute(
		templatex.WithIO(&buf),
		templatex.WithContent(content),
		templatex.WithData(data),
	); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// jsonSafe renders v as a JSON string literal with the surrounding quotes
// stripped, so `{{ json_safe .x }}` can be embedded inside an already-quoted
// JSON string field without double-escaping.
func jsonSafe(v any) string {
	s, ok := v.(string)
	if !ok {
		s = toDisplayString(v)
	}
	if s == "" {
		return ""
	}

	b, err := json.Marshal(s)
	if err != nil {
		return s
	}
	return string(b[1 : len(b)-1])
}

func toDisplayString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// renderStepConfig walks a step's raw config tree and renders every string
// leaf as a template against wctx, leaving non-string values untouched.
func renderStepConfig(wctx *Context, config map[string]any) (map[string]any, error) {
	rendered, ok := renderAny(wctx, config).(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return rendered, nil
}

func renderAny(wctx *Context, v any) any {
	switch val := v.(type) {
	case string:
		return wctx.RenderTemplate(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = renderAny(wctx, vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = renderAny(wctx, vv)
		}
		return out
	default:
		return v
	}
}
