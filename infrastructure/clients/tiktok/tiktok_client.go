package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crosspost/domain/model"
)

const (
	defaultTokenURL   = "https://open.tiktokapis.com/v2/oauth/token/"
	defaultPublishURL = "https://open.tiktokapis.com/v2/post/publish/video/init/"
	defaultStatusURL  = "https://open.tiktokapis.com/v2/post/publish/status/fetch/"
)

// Config carries the TikTok client credentials. Endpoint URLs are
// overridable for tests.
type Config struct {
	ClientKey    string
	ClientSecret string
	RedirectURI  string
	TokenURL     string
	PublishURL   string
	StatusURL    string
}

// TokenResponse is TikTok's token endpoint payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	OpenID       string `json:"open_id"`
	Scope        string `json:"scope"`
}

// Client publishes videos through TikTok's direct-post API. The upload is
// pull-based: TikTok fetches the video from the given URL itself.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.PublishURL == "" {
		cfg.PublishURL = defaultPublishURL
	}
	if cfg.StatusURL == "" {
		cfg.StatusURL = defaultStatusURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// ExchangeCode trades an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_key", c.cfg.ClientKey)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", c.cfg.RedirectURI)
	return c.tokenRequest(ctx, form, model.ErrTokenExchange)
}

// Refresh exchanges a refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_key", c.cfg.ClientKey)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.tokenRequest(ctx, form, model.ErrTokenRefresh)
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values, kind model.ErrorKind) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewAppError(kind, "tiktok token request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, model.NewAppError(kind,
			fmt.Sprintf("tiktok token endpoint returned status %d", resp.StatusCode), nil).
			WithDetail(string(body))
	}
	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("parse tiktok token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, model.NewAppError(kind, "tiktok token response incomplete", nil).WithDetail(string(body))
	}
	return &token, nil
}

type publishResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// PublishFromURL starts a direct post with PULL_FROM_URL sourcing and returns
// the publish id used for status polling.
func (c *Client) PublishFromURL(ctx context.Context, accessToken, videoURL, caption string) (string, error) {
	requestBody := map[string]interface{}{
		"post_info": map[string]interface{}{
			"title":                caption,
			"privacy_level":        "SELF_ONLY",
			"brand_content_toggle": false,
		},
		"source_info": map[string]interface{}{
			"source":    "PULL_FROM_URL",
			"video_url": videoURL,
		},
	}
	payload, _ := json.Marshal(requestBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.PublishURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", model.NewAppError(model.ErrPostCreation, "tiktok publish request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", model.NewAppError(model.ErrPostCreation,
			fmt.Sprintf("tiktok publish returned status %d", resp.StatusCode), nil).
			WithDetail(string(body))
	}
	var published publishResponse
	if err := json.Unmarshal(body, &published); err != nil {
		return "", fmt.Errorf("parse tiktok publish response: %w", err)
	}
	if published.Error.Code != "" && published.Error.Code != "ok" {
		return "", model.NewAppError(model.ErrPostCreation, published.Error.Message, nil).
			WithDetail(published.Error.Code)
	}
	return published.Data.PublishID, nil
}

// PublishStatus fetches the state of an in-flight publish.
func (c *Client) PublishStatus(ctx context.Context, accessToken, publishID string) (string, error) {
	payload, _ := json.Marshal(map[string]interface{}{"publish_id": publishID})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.StatusURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", model.NewAppError(model.ErrPostCreation, "tiktok status request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", model.NewAppError(model.ErrPostCreation,
			fmt.Sprintf("tiktok status returned status %d", resp.StatusCode), nil).
			WithDetail(string(body))
	}
	var status struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return "", fmt.Errorf("parse tiktok status response: %w", err)
	}
	return status.Data.Status, nil
}
