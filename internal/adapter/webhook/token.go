package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/worldline-go/klient"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	authURL          = "https://bots.qq.com/app/getAppAccessToken"
	tokenRefreshSkew = 60 * time.Second
)

// tokenManager holds the access token and refreshes it ahead of expiry:
// synchronously if the token has already expired, in the background
// (deduplicated via singleflight) during the pre-expiry window so that
// in-flight requests keep using the still-valid old token.
type tokenManager struct {
	appID     string
	appSecret string
	http      *http.Client

	mu    sync.RWMutex
	token *oauth2.Token

	group singleflight.Group
}

func newTokenManager(appID, appSecret string) *tokenManager {
	c, _ := klient.New(
		klient.WithDisableBaseURLCheck(true),
		klient.WithDisableEnvValues(true),
		klient.WithDisableRetry(true),
	)
	return &tokenManager{appID: appID, appSecret: appSecret, http: c.HTTP}
}

func (t *tokenManager) current() (*oauth2.Token, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.token == nil {
		return nil, false
	}
	return t.token, time.Now().Before(t.token.Expiry)
}

// ensure returns a usable access token.
func (t *tokenManager) ensure(ctx context.Context) (string, error) {
	tok, valid := t.current()
	if !valid {
		return t.refresh(ctx)
	}

	if time.Now().After(tok.Expiry.Add(-tokenRefreshSkew)) {
		go func() { _, _ = t.refresh(context.Background()) }()
	}

	return tok.AccessToken, nil
}

func (t *tokenManager) refresh(ctx context.Context) (string, error) {
	v, err, _ := t.group.Do("refresh", func() (any, error) {
		return t.authenticate(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (t *tokenManager) authenticate(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"appId":        t.appID,
		"clientSecret": t.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("webhook: marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("webhook: build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("webhook: auth request: %w", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Code        int    `json:"code"`
		Message     string `json:"message"`
		AccessToken string `json:"access_token"`
		ExpiresIn   any    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("webhook: decode auth response: %w", err)
	}
	if parsed.AccessToken == "" {
		if parsed.Code != 0 {
			return "", fmt.Errorf("webhook: auth error %d: %s", parsed.Code, parsed.Message)
		}
		return "", fmt.Errorf("webhook: auth response missing access_token")
	}

	expiresIn := int64(7200)
	switch v := parsed.ExpiresIn.(type) {
	case float64:
		expiresIn = int64(v)
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			expiresIn = n
		}
	}

	tok := &oauth2.Token{
		AccessToken: parsed.AccessToken,
		Expiry:      time.Now().Add(time.Duration(expiresIn) * time.Second),
	}

	t.mu.Lock()
	t.token = tok
	t.mu.Unlock()

	return tok.AccessToken, nil
}
