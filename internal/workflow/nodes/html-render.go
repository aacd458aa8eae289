package nodes

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/worldline-go/klient"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// RenderServiceURL points at the external HTML-to-image rendering
// collaborator. The node here is a thin client over it — rendering itself
// is explicitly out of core scope.
var RenderServiceURL = ""

// htmlRenderNode posts a template name and its data to the external render
// service and returns the resulting image as base64.
//
// Config: template (name, required), data (map, templated).
type htmlRenderNode struct {
	template string
}

func init() {
	workflow.RegisterNodeType("html_render", newHTMLRenderNode)
}

func newHTMLRenderNode(config map[string]any) (workflow.Noder, error) {
	tmpl := str(config, "template", "")
	if tmpl == "" {
		return nil, fmt.Errorf("html_render: 'template' is required")
	}
	return &htmlRenderNode{template: tmpl}, nil
}

func (n *htmlRenderNode) Type() string { return "html_render" }

func (n *htmlRenderNode) Run(ctx context.Context, _ *workflow.Context, inputs map[string]any) (workflow.StepResult, error) {
	if RenderServiceURL == "" {
		return workflow.StepResult{Data: map[string]any{
			"success": false,
			"error":   "html_render: no render service configured",
		}}, nil
	}

	payload, err := json.Marshal(map[string]any{"template": n.template, "data": inputs["data"]})
	if err != nil {
		return workflow.StepResult{}, fmt.Errorf("html_render: marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, RenderServiceURL, bytes.NewReader(payload))
	if err != nil {
		return workflow.StepResult{}, fmt.Errorf("html_render: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client, err := klient.New(klient.WithDisableBaseURLCheck(true), klient.WithDisableEnvValues(true))
	if err != nil {
		return workflow.StepResult{}, fmt.Errorf("html_render: build client: %w", err)
	}

	resp, err := client.HTTP.Do(req)
	if err != nil {
		return workflow.StepResult{Data: map[string]any{"success": false, "error": err.Error()}}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return workflow.StepResult{}, fmt.Errorf("html_render: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return workflow.StepResult{Data: map[string]any{"success": false, "error": string(raw)}}, nil
	}

	return workflow.StepResult{Data: map[string]any{
		"success":      true,
		"image_base64": base64.StdEncoding.EncodeToString(raw),
	}}, nil
}

func (n *htmlRenderNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
