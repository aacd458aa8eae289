package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/worldline-go/klient"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// httpRequestNode issues an HTTP request built from already-templated
// config (the engine renders every string leaf of a step's config before
// Run is called) and reports the outcome on four well-known output keys.
//
// Config: url (required), method (default GET), headers (map[string]string),
// body (string), timeout_seconds (default 30).
type httpRequestNode struct {
	timeout time.Duration
}

func init() {
	workflow.RegisterNodeType("http_request", newHTTPRequestNode)
}

func newHTTPRequestNode(config map[string]any) (workflow.Noder, error) {
	timeout := 30.0
	if t, ok := config["timeout_seconds"].(float64); ok && t > 0 {
		timeout = t
	}
	return &httpRequestNode{timeout: time.Duration(timeout * float64(time.Second))}, nil
}

func (n *httpRequestNode) Type() string { return "http_request" }

func (n *httpRequestNode) Run(ctx context.Context, _ *workflow.Context, inputs map[string]any) (workflow.StepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	url, _ := inputs["url"].(string)
	if url == "" {
		return workflow.StepResult{}, fmt.Errorf("http_request: 'url' is required")
	}

	method, _ := inputs["method"].(string)
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "GET"
	}

	var body io.Reader
	if b, ok := inputs["body"].(string); ok && b != "" {
		body = strings.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return workflow.StepResult{}, fmt.Errorf("http_request: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if headers, ok := inputs["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	client, err := klient.New(
		klient.WithDisableBaseURLCheck(true),
		klient.WithDisableEnvValues(true),
		klient.WithDisableRetry(true),
	)
	if err != nil {
		return workflow.StepResult{}, fmt.Errorf("http_request: build client: %w", err)
	}

	resp, err := client.HTTP.Do(req)
	if err != nil {
		return workflow.StepResult{Data: map[string]any{
			"response_success": false,
			"response_error":   err.Error(),
		}}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return workflow.StepResult{Data: map[string]any{
			"response_success": false,
			"response_error":   err.Error(),
		}}, nil
	}

	var parsed any
	jsonOK := json.Unmarshal(raw, &parsed) == nil

	data := map[string]any{
		"response_status":  resp.StatusCode,
		"response_text":    string(raw),
		"response_success": resp.StatusCode >= 200 && resp.StatusCode < 300,
	}
	if jsonOK {
		data["response_json"] = parsed
	}

	return workflow.StepResult{Data: data}, nil
}

func (n *httpRequestNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
