// Package nodes registers all built-in workflow node types.
//
// Each file in this package defines a node type and registers it via an
// init() function that calls workflow.RegisterNodeType. Importing this
// package (even as a blank import) triggers every registration:
//
//	import _ "github.com/rakunlabs/atbot/internal/workflow/nodes"
//
// Registered node types:
//
//   - start            — extracts event fields into canonical variables
//   - end              — terminates the step walk
//   - send_message     — builds and records the outbound Message
//   - condition        — simple/advanced boolean branch
//   - foreach          — iterate a list or map, one loop-body pass per item
//   - set_variable     — templated variable assignment
//   - string_operation — trim/case/replace/regex/substring/split
//   - http_request     — templated HTTP call via klient
//   - json_extract     — dotted/bracketed path extraction with defaults
//   - data_storage     — per-storage-name JSON file persistence
//   - html_render      — base64 PNG via the external render collaborator
//   - snippet          — user script execution via the embedded Goja VM
//   - delay            — pause for a fixed duration
//   - timestamp        — current time in several representations
//   - schedule_check   — time/weekday gated branch
//   - endpoint         — raw protocol API passthrough
//   - keyword_trigger  — first-step keyword filter
package nodes
