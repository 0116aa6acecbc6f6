package x

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"crosspost/domain/model"

	"github.com/google/go-querystring/query"
	"golang.org/x/oauth2"
)

const (
	defaultAuthURL  = "https://twitter.com/i/oauth2/authorize"
	defaultTokenURL = "https://api.twitter.com/2/oauth2/token"
	defaultUserURL  = "https://api.twitter.com/2/users/me"
)

// OAuthConfig carries the OAuth 2.0 client credentials for X. Endpoint URLs
// are overridable for tests.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	UserURL      string
}

// AuthorizationRequest is everything the caller needs to start a PKCE flow:
// the URL to redirect the browser to, the CSRF state, and the code verifier
// that must be stored against the state until the callback.
type AuthorizationRequest struct {
	URL          string
	State        string
	CodeVerifier string
}

// TokenResult is a normalized token endpoint response. Refresh tokens on X
// are single-use: every exchange and refresh rotates both values.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// OAuthClient implements the Authorization Code + PKCE flow against X.
type OAuthClient struct {
	conf       *oauth2.Config
	userURL    string
	httpClient *http.Client
}

func NewOAuthClient(cfg OAuthConfig, httpClient *http.Client) *OAuthClient {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.UserURL == "" {
		cfg.UserURL = defaultUserURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuthClient{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		userURL:    cfg.UserURL,
		httpClient: httpClient,
	}
}

// AuthorizationRequest generates a fresh verifier, S256 challenge and CSRF
// state. The verifier is 32 bytes of randomness base64url-encoded without
// padding; the state is 32 random bytes hex-encoded.
func (c *OAuthClient) AuthorizationRequest() (*AuthorizationRequest, error) {
	verifier := oauth2.GenerateVerifier()
	state, err := randomState()
	if err != nil {
		return nil, err
	}
	url := c.conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	return &AuthorizationRequest{URL: url, State: state, CodeVerifier: verifier}, nil
}

// ExchangeCode trades the authorization code plus its verifier for a token
// pair. Client credentials go in a Basic auth header.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResult, error) {
	tok, err := c.conf.Exchange(c.clientContext(ctx), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, tokenError(model.ErrTokenExchange, "token exchange rejected", err)
	}
	return normalizeToken(tok), nil
}

// Refresh exchanges the refresh token for a new pair. Both values rotate;
// the caller must replace the stored record.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*TokenResult, error) {
	source := c.conf.TokenSource(c.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := source.Token()
	if err != nil {
		return nil, tokenError(model.ErrTokenRefresh, "token refresh rejected", err)
	}
	result := normalizeToken(tok)
	if result.RefreshToken == "" {
		result.RefreshToken = refreshToken
	}
	return result, nil
}

type userQuery struct {
	Fields string `url:"user.fields"`
}

// Me fetches the authenticated user's identity.
func (c *OAuthClient) Me(ctx context.Context, accessToken string) (*model.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL, nil)
	if err != nil {
		return nil, err
	}
	values, err := query.Values(userQuery{Fields: "profile_image_url"})
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = values.Encode()
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewAppError(model.ErrNotAuthenticated, "identity lookup failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, model.NewAppError(model.ErrNotAuthenticated,
			fmt.Sprintf("identity lookup failed with status %d", resp.StatusCode), nil).
			WithDetail(string(body))
	}

	var payload struct {
		Data struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			Username        string `json:"username"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse identity response: %w", err)
	}
	return &model.Identity{
		ID:          payload.Data.ID,
		DisplayName: payload.Data.Name,
		Handle:      payload.Data.Username,
		AvatarURL:   payload.Data.ProfileImageURL,
	}, nil
}

func (c *OAuthClient) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func normalizeToken(tok *oauth2.Token) *TokenResult {
	return &TokenResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
}

func tokenError(kind model.ErrorKind, message string, err error) error {
	appErr := model.NewAppError(kind, message, err)
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		appErr.WithDetail(string(retrieveErr.Body))
	}
	return appErr
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
