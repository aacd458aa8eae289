package workflow

import (
	"strings"

	"github.com/rakunlabs/atbot/internal/event"
	"github.com/rakunlabs/atbot/internal/store"
)

// Context carries one workflow run's variable bag, the triggering event,
// and the in-progress response. Every node reads and writes through it.
type Context struct {
	Event event.Event

	variables map[string]any
	response  *event.Message
	handled   bool

	globals func() []store.GlobalVariable
}

// NewContext builds a fresh Context for a single workflow run, seeding
// variables with the event's raw data the way the reference context does.
func NewContext(ev event.Event, globals func() []store.GlobalVariable) *Context {
	vars := make(map[string]any)
	if ev.RawData != nil {
		vars["raw_data"] = ev.RawData
	}
	vars["event"] = map[string]any{
		"id":         ev.ID,
		"protocol":   ev.Protocol,
		"event_name": ev.EventName,
		"user_id":    ev.UserID,
		"group_id":   ev.GroupID,
		"channel_id": ev.ChannelID,
		"to_me":      ev.ToMe,
		"text":       ev.Message.ExtractPlainText(),
	}

	return &Context{Event: ev, variables: vars, globals: globals}
}

// SetVariable stores a value under an exact key.
func (c *Context) SetVariable(key string, value any) {
	c.variables[key] = value
}

// GetVariable resolves key by exact match first, then by dotted descent
// through nested maps, returning def if any segment is missing.
func (c *Context) GetVariable(key string, def any) any {
	if v, ok := c.variables[key]; ok {
		return v
	}

	if !strings.Contains(key, ".") {
		return def
	}

	parts := strings.Split(key, ".")
	var cur any = c.variables
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return def
		}
		v, ok := m[part]
		if !ok {
			return def
		}
		cur = v
	}
	return cur
}

// GlobalVariables snapshots the store-backed global variables as a
// key->value map, for the `global.*` template namespace.
func (c *Context) GlobalVariables() map[string]any {
	out := make(map[string]any)
	if c.globals == nil {
		return out
	}
	for _, g := range c.globals() {
		out[g.Key] = g.Value
	}
	return out
}

// SetResponse records the workflow's outbound message and marks the run as
// handled.
func (c *Context) SetResponse(msg event.Message) {
	c.response = &msg
	c.handled = true
}

// Response returns the recorded response, if any.
func (c *Context) Response() *event.Message {
	return c.response
}

// ClearResponse discards any recorded response without affecting Handled.
func (c *Context) ClearResponse() {
	c.response = nil
}

// Handled reports whether any node called SetResponse during this run.
func (c *Context) Handled() bool {
	return c.handled
}

// AllVariables returns a shallow copy of the variable bag, excluding
// internal bookkeeping keys, for the debug recorder.
func (c *Context) AllVariables() map[string]any {
	out := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		if strings.HasPrefix(k, "_") {
			continue
		}
		out[k] = v
	}
	return out
}
