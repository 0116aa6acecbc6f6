package x

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"crosspost/domain/model"

	"github.com/google/go-querystring/query"
)

const defaultAPIBaseURL = "https://api.twitter.com/2"

// PostClient publishes posts and reads recent ones. It never refreshes
// tokens itself; callers hand it a valid bearer credential.
type PostClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewPostClient(httpClient *http.Client, baseURL string) *PostClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &PostClient{httpClient: httpClient, baseURL: baseURL}
}

type createPostBody struct {
	Text  string `json:"text"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media,omitempty"`
}

// CreatePost submits text plus previously uploaded media ids. The media block
// is omitted entirely when no ids are attached.
func (c *PostClient) CreatePost(ctx context.Context, accessToken, text string, mediaIDs []string) (*model.Post, error) {
	body := createPostBody{Text: text}
	if len(mediaIDs) > 0 {
		body.Media = &struct {
			MediaIDs []string `json:"media_ids"`
		}{MediaIDs: mediaIDs}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tweets", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewAppError(model.ErrPostCreation, "post request failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, model.NewAppError(model.ErrPostCreation, platformDetail(respBody,
			fmt.Sprintf("post rejected with status %d", resp.StatusCode)), nil).
			WithDetail(string(respBody))
	}

	var created struct {
		Data struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("parse post response: %w", err)
	}

	return &model.Post{
		ID:       created.Data.ID,
		Text:     created.Data.Text,
		ShareURL: "https://x.com/i/web/status/" + created.Data.ID,
		MediaIDs: mediaIDs,
	}, nil
}

type listPostsQuery struct {
	MaxResults  int    `url:"max_results"`
	TweetFields string `url:"tweet.fields"`
}

// ListPosts fetches a user's recent posts. Read-only.
func (c *PostClient) ListPosts(ctx context.Context, accessToken, userID string, max int) ([]model.Post, error) {
	if max <= 0 {
		max = 10
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/users/%s/tweets", c.baseURL, userID), nil)
	if err != nil {
		return nil, err
	}
	values, err := query.Values(listPostsQuery{MaxResults: max, TweetFields: "created_at"})
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = values.Encode()
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewAppError(model.ErrPostCreation, "list posts request failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, model.NewAppError(model.ErrPostCreation,
			fmt.Sprintf("list posts rejected with status %d", resp.StatusCode), nil).
			WithDetail(string(respBody))
	}

	var listed struct {
		Data []struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &listed); err != nil {
		return nil, fmt.Errorf("parse posts response: %w", err)
	}

	posts := make([]model.Post, 0, len(listed.Data))
	for _, item := range listed.Data {
		posts = append(posts, model.Post{
			ID:       item.ID,
			Text:     item.Text,
			ShareURL: "https://x.com/i/web/status/" + item.ID,
		})
	}
	return posts, nil
}

// platformDetail pulls the structured detail string out of a platform error
// body when one is present.
func platformDetail(body []byte, fallback string) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return fallback
}
