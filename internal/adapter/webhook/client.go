package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/worldline-go/klient"
)

const apiBase = "https://api.sgroup.qq.com"

// restClient is the outbound half of the adapter: one access-token lifecycle
// and one msg_seq counter shared by every API call a bot makes.
type restClient struct {
	tokens *tokenManager
	http   *http.Client
	seq    *msgSeqCounter
}

func newRESTClient(appID, appSecret string) *restClient {
	c, _ := klient.New(
		klient.WithDisableBaseURLCheck(true),
		klient.WithDisableEnvValues(true),
		klient.WithDisableRetry(true),
	)
	return &restClient{
		tokens: newTokenManager(appID, appSecret),
		http:   c.HTTP,
		seq:    newMsgSeqCounter(100),
	}
}

func (c *restClient) callAPI(ctx context.Context, action string, params map[string]any) (any, error) {
	switch action {
	case "send_user_message":
		return c.sendMessage(ctx, fmt.Sprintf("%s/v2/users/%s/messages", apiBase, str(params, "openid")), params)
	case "send_group_message":
		return c.sendMessage(ctx, fmt.Sprintf("%s/v2/groups/%s/messages", apiBase, str(params, "group_openid")), params)
	case "send_channel_message":
		return c.sendMessage(ctx, fmt.Sprintf("%s/channels/%s/messages", apiBase, str(params, "channel_id")), params)
	case "send_dm_message":
		return c.sendMessage(ctx, fmt.Sprintf("%s/dms/%s/messages", apiBase, str(params, "guild_id")), params)
	case "upload_media":
		return c.uploadMedia(ctx, params)
	case "recall_message":
		return c.recallMessage(ctx, str(params, "message_id"))
	case "get_bot_info":
		return c.getBotInfo(ctx)
	default:
		return nil, fmt.Errorf("webhook: unknown action %q", action)
	}
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func (c *restClient) sendMessage(ctx context.Context, url string, params map[string]any) (any, error) {
	token, err := c.tokens.ensure(ctx)
	if err != nil {
		return nil, fmt.Errorf("webhook: ensure token: %w", err)
	}

	msgID := str(params, "msg_id")

	payload := map[string]any{"content": params["content"]}
	if mt, ok := params["msg_type"]; ok {
		payload["msg_type"] = mt
	} else {
		payload["msg_type"] = 0
	}
	for _, k := range []string{"embed", "ark", "markdown", "keyboard", "media", "image"} {
		if v, ok := params[k]; ok {
			payload[k] = v
		}
	}
	if msgID != "" {
		payload["msg_id"] = msgID
	}
	payload["msg_seq"] = c.seq.next(msgID)

	return c.post(ctx, url, token, payload)
}

func (c *restClient) uploadMedia(ctx context.Context, params map[string]any) (any, error) {
	token, err := c.tokens.ensure(ctx)
	if err != nil {
		return nil, fmt.Errorf("webhook: ensure token: %w", err)
	}

	targetType := str(params, "target_type")
	targetID := str(params, "target_id")

	var url string
	switch targetType {
	case "group":
		url = fmt.Sprintf("%s/v2/groups/%s/files", apiBase, targetID)
	case "user":
		url = fmt.Sprintf("%s/v2/users/%s/files", apiBase, targetID)
	default:
		return nil, fmt.Errorf("webhook: unsupported upload target type %q", targetType)
	}

	payload := map[string]any{
		"file_type":    params["file_type"],
		"srv_send_msg": params["srv_send_msg"],
	}
	if fileData := str(params, "file_data"); fileData != "" {
		payload["file_data"] = fileData
	} else {
		payload["url"] = str(params, "url")
	}

	return c.post(ctx, url, token, payload)
}

func (c *restClient) recallMessage(ctx context.Context, messageID string) (any, error) {
	token, err := c.tokens.ensure(ctx)
	if err != nil {
		return nil, fmt.Errorf("webhook: ensure token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/v2/messages/%s", apiBase, messageID), nil)
	if err != nil {
		return nil, fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Authorization", "QQBot "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("webhook: recall failed HTTP %d: %s", resp.StatusCode, string(raw))
	}
	return map[string]any{"recalled": true}, nil
}

func (c *restClient) getBotInfo(ctx context.Context) (any, error) {
	token, err := c.tokens.ensure(ctx)
	if err != nil {
		return nil, fmt.Errorf("webhook: ensure token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/users/@me", nil)
	if err != nil {
		return nil, fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Authorization", "QQBot "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook: request: %w", err)
	}
	defer resp.Body.Close()

	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("webhook: decode bot info: %w", err)
	}
	return info, nil
}

func (c *restClient) post(ctx context.Context, url, token string, payload map[string]any) (any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("webhook: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Authorization", "QQBot "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("webhook: read response: %w", err)
	}

	var result any
	_ = json.Unmarshal(raw, &result)

	if resp.StatusCode >= 400 {
		return result, fmt.Errorf("webhook: api error HTTP %d: %s", resp.StatusCode, string(raw))
	}
	return result, nil
}
