package tiktok_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosspost/domain/model"
	"crosspost/infrastructure/clients/tiktok"
)

func newTestClient(handler http.Handler) (*tiktok.Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := tiktok.NewClient(tiktok.Config{
		ClientKey:    "client-key",
		ClientSecret: "client-secret",
		RedirectURI:  "https://relay.example/auth/tiktok/callback",
		TokenURL:     server.URL + "/oauth/token/",
		PublishURL:   server.URL + "/post/publish/video/init/",
		StatusURL:    server.URL + "/post/publish/status/fetch/",
	}, server.Client())
	return client, server
}

func TestExchangeCodeSendsCredentialsAsForm(t *testing.T) {
	var gotForm url.Values
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token/", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":86400,"open_id":"open-1","scope":"video.publish"}`))
	}))
	defer server.Close()

	token, err := client.ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "client-key", gotForm.Get("client_key"))
	assert.Equal(t, "client-secret", gotForm.Get("client_secret"))
	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "auth-code", gotForm.Get("code"))
	assert.Equal(t, "https://relay.example/auth/tiktok/callback", gotForm.Get("redirect_uri"))

	assert.Equal(t, "at", token.AccessToken)
	assert.Equal(t, "rt", token.RefreshToken)
	assert.Equal(t, 86400, token.ExpiresIn)
	assert.Equal(t, "open-1", token.OpenID)
}

func TestRefreshUsesRefreshGrant(t *testing.T) {
	var gotForm url.Values
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))
		w.Write([]byte(`{"access_token":"at2","refresh_token":"rt2","expires_in":86400,"open_id":"open-1"}`))
	}))
	defer server.Close()

	token, err := client.Refresh(context.Background(), "rt1")
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", gotForm.Get("grant_type"))
	assert.Equal(t, "rt1", gotForm.Get("refresh_token"))
	assert.Equal(t, "at2", token.AccessToken)
}

func TestTokenRequestSurfacesUpstreamError(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
	}))
	defer server.Close()

	_, err := client.ExchangeCode(context.Background(), "stale-code")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.ErrTokenExchange))
	appErr, _ := model.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Contains(t, appErr.Detail, "code expired")
}

func TestTokenRequestRejectsIncompleteBody(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"open_id":"open-1"}`))
	}))
	defer server.Close()

	_, err := client.Refresh(context.Background(), "rt1")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.ErrTokenRefresh))
}

func TestPublishFromURLSendsPullSource(t *testing.T) {
	var gotBody map[string]interface{}
	var gotAuth string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/post/publish/video/init/", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"data":{"publish_id":"pub-77"},"error":{"code":"ok","message":""}}`))
	}))
	defer server.Close()

	publishID, err := client.PublishFromURL(context.Background(), "at", "https://cdn.example/clip.mp4", "a caption")
	require.NoError(t, err)
	assert.Equal(t, "pub-77", publishID)
	assert.Equal(t, "Bearer at", gotAuth)

	postInfo := gotBody["post_info"].(map[string]interface{})
	assert.Equal(t, "a caption", postInfo["title"])
	assert.Equal(t, "SELF_ONLY", postInfo["privacy_level"])
	sourceInfo := gotBody["source_info"].(map[string]interface{})
	assert.Equal(t, "PULL_FROM_URL", sourceInfo["source"])
	assert.Equal(t, "https://cdn.example/clip.mp4", sourceInfo["video_url"])
}

func TestPublishFromURLSurfacesAPIErrorCode(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{},"error":{"code":"spam_risk_too_many_posts","message":"daily limit reached"}}`))
	}))
	defer server.Close()

	_, err := client.PublishFromURL(context.Background(), "at", "https://cdn.example/clip.mp4", "")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.ErrPostCreation))
	appErr, _ := model.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "daily limit reached", appErr.Message)
	assert.Equal(t, "spam_risk_too_many_posts", appErr.Detail)
}

func TestPublishStatusFetch(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/post/publish/status/fetch/", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pub-77", body["publish_id"])
		w.Write([]byte(`{"data":{"status":"PUBLISH_COMPLETE"}}`))
	}))
	defer server.Close()

	status, err := client.PublishStatus(context.Background(), "at", "pub-77")
	require.NoError(t, err)
	assert.Equal(t, "PUBLISH_COMPLETE", status)
}
