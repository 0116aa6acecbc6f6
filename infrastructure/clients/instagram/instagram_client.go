package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"crosspost/domain/model"
)

const defaultGraphURL = "https://graph.instagram.com"

// Client publishes media through the Instagram Graph API: create a media
// container referencing a public URL, poll until processed, then publish.
type Client struct {
	httpClient *http.Client
	graphURL   string
	// pollInterval between container status checks; Instagram has no
	// server-dictated pacing, unlike X.
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewClient(httpClient *http.Client, graphURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if graphURL == "" {
		graphURL = defaultGraphURL
	}
	return &Client{
		httpClient:   httpClient,
		graphURL:     graphURL,
		pollInterval: 5 * time.Second,
		pollTimeout:  300 * time.Second,
	}
}

// CreateContainer registers a reel or photo container for the given media URL.
func (c *Client) CreateContainer(ctx context.Context, accessToken, igUserID, mediaURL, caption string, isVideo bool) (string, error) {
	form := url.Values{}
	form.Set("caption", caption)
	form.Set("access_token", accessToken)
	if isVideo {
		form.Set("media_type", "REELS")
		form.Set("video_url", mediaURL)
	} else {
		form.Set("image_url", mediaURL)
	}

	endpoint := fmt.Sprintf("%s/%s/media", c.graphURL, igUserID)
	body, err := c.postForm(ctx, endpoint, form)
	if err != nil {
		return "", err
	}
	var container struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &container); err != nil {
		return "", fmt.Errorf("parse container response: %w", err)
	}
	if container.ID == "" {
		return "", model.NewAppError(model.ErrMediaUpload, "container response missing id", nil).
			WithPhase(model.PhaseInit).WithDetail(string(body))
	}
	return container.ID, nil
}

// WaitForContainer polls the container status until FINISHED or ERROR.
func (c *Client) WaitForContainer(ctx context.Context, accessToken, containerID string) error {
	start := time.Now()
	for {
		endpoint := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s",
			c.graphURL, containerID, url.QueryEscape(accessToken))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return model.NewAppError(model.ErrMediaUpload, "container status request failed", err).
				WithPhase(model.PhaseStatus)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		var status struct {
			StatusCode string `json:"status_code"`
		}
		if err := json.Unmarshal(body, &status); err != nil {
			return fmt.Errorf("parse container status: %w", err)
		}
		switch status.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR":
			return model.NewAppError(model.ErrMediaProcessingFailed, "instagram media processing failed", nil).
				WithDetail(string(body))
		}

		if time.Since(start) > c.pollTimeout {
			return model.NewAppError(model.ErrMediaProcessingTimeout,
				fmt.Sprintf("instagram processing exceeded %s", c.pollTimeout), nil)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// Publish turns a finished container into a live post and returns its id.
func (c *Client) Publish(ctx context.Context, accessToken, igUserID, containerID string) (string, error) {
	form := url.Values{}
	form.Set("creation_id", containerID)
	form.Set("access_token", accessToken)

	endpoint := fmt.Sprintf("%s/%s/media_publish", c.graphURL, igUserID)
	body, err := c.postForm(ctx, endpoint, form)
	if err != nil {
		return "", err
	}
	var published struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &published); err != nil {
		return "", fmt.Errorf("parse publish response: %w", err)
	}
	return published.ID, nil
}

// Permalink fetches the share URL for a published media id.
func (c *Client) Permalink(ctx context.Context, accessToken, mediaID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=permalink&access_token=%s",
		c.graphURL, mediaID, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var media struct {
		Permalink string `json:"permalink"`
	}
	if err := json.Unmarshal(body, &media); err != nil {
		return "", fmt.Errorf("parse permalink response: %w", err)
	}
	return media.Permalink, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = form.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewAppError(model.ErrPostCreation, "instagram request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, model.NewAppError(model.ErrPostCreation,
			fmt.Sprintf("instagram returned status %d", resp.StatusCode), nil).
			WithDetail(string(body))
	}
	return body, nil
}
