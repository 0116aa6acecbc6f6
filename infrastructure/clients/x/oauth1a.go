package x

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"crosspost/domain/model"
)

const (
	defaultRequestTokenURL = "https://api.twitter.com/oauth/request_token"
	defaultAuthorizeURL    = "https://api.twitter.com/oauth/authorize"
	defaultAccessTokenURL  = "https://api.twitter.com/oauth/access_token"
)

// OAuth1aConfig carries the consumer credentials for the legacy three-legged
// flow. Endpoint URLs are overridable for tests.
type OAuth1aConfig struct {
	ConsumerKey     string
	ConsumerSecret  string
	CallbackURL     string
	RequestTokenURL string
	AuthorizeURL    string
	AccessTokenURL  string
}

// OAuth1aAccessToken is the credential pair plus identity returned by the
// access token step.
type OAuth1aAccessToken struct {
	Token       string
	TokenSecret string
	UserID      string
	Handle      string
}

// OAuth1aClient signs requests with HMAC-SHA1. Every signed request gets a
// fresh nonce and timestamp; headers are never reused across requests.
type OAuth1aClient struct {
	cfg        OAuth1aConfig
	httpClient *http.Client

	// overridable for deterministic signature tests
	nonce func() string
	clock func() time.Time
}

func NewOAuth1aClient(cfg OAuth1aConfig, httpClient *http.Client) *OAuth1aClient {
	if cfg.RequestTokenURL == "" {
		cfg.RequestTokenURL = defaultRequestTokenURL
	}
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = defaultAuthorizeURL
	}
	if cfg.AccessTokenURL == "" {
		cfg.AccessTokenURL = defaultAccessTokenURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuth1aClient{
		cfg:        cfg,
		httpClient: httpClient,
		nonce:      newNonce,
		clock:      time.Now,
	}
}

// RequestToken performs the first leg: a signed POST carrying oauth_callback,
// signed with an empty token secret.
func (c *OAuth1aClient) RequestToken(ctx context.Context) (token, secret string, err error) {
	params := map[string]string{"oauth_callback": c.cfg.CallbackURL}
	header := c.AuthorizationHeader(http.MethodPost, c.cfg.RequestTokenURL, params, "", "")

	form := url.Values{}
	form.Set("oauth_callback", c.cfg.CallbackURL)

	values, err := c.postForm(ctx, c.cfg.RequestTokenURL, header, form)
	if err != nil {
		return "", "", model.NewAppError(model.ErrAuthorization, "request token rejected", err)
	}
	token = values.Get("oauth_token")
	secret = values.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return "", "", model.NewAppError(model.ErrAuthorization, "request token response incomplete", nil)
	}
	return token, secret, nil
}

// AuthorizationURL builds the user-facing consent URL for the second leg.
func (c *OAuth1aClient) AuthorizationURL(oauthToken string) string {
	return c.cfg.AuthorizeURL + "?oauth_token=" + url.QueryEscape(oauthToken)
}

// AccessToken performs the third leg, now signing with the request token
// secret, and returns the long-lived credential pair plus the user identity.
func (c *OAuth1aClient) AccessToken(ctx context.Context, oauthToken, oauthTokenSecret, oauthVerifier string) (*OAuth1aAccessToken, error) {
	params := map[string]string{"oauth_verifier": oauthVerifier}
	header := c.AuthorizationHeader(http.MethodPost, c.cfg.AccessTokenURL, params, oauthToken, oauthTokenSecret)

	form := url.Values{}
	form.Set("oauth_verifier", oauthVerifier)

	values, err := c.postForm(ctx, c.cfg.AccessTokenURL, header, form)
	if err != nil {
		return nil, model.NewAppError(model.ErrAuthorization, "access token rejected", err)
	}
	result := &OAuth1aAccessToken{
		Token:       values.Get("oauth_token"),
		TokenSecret: values.Get("oauth_token_secret"),
		UserID:      values.Get("user_id"),
		Handle:      values.Get("screen_name"),
	}
	if result.Token == "" || result.TokenSecret == "" {
		return nil, model.NewAppError(model.ErrAuthorization, "access token response incomplete", nil)
	}
	return result, nil
}

// AuthorizationHeader signs one request and renders the OAuth header. A new
// nonce and timestamp are computed on every call; extraParams must contain
// every non-OAuth parameter that is part of the signature base (query and
// form-encoded body parameters).
func (c *OAuth1aClient) AuthorizationHeader(method, rawURL string, extraParams map[string]string, token, tokenSecret string) string {
	oauthParams := map[string]string{
		"oauth_consumer_key":     c.cfg.ConsumerKey,
		"oauth_nonce":            c.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(c.clock().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if token != "" {
		oauthParams["oauth_token"] = token
	}

	signature := c.sign(method, rawURL, oauthParams, extraParams, tokenSecret)
	oauthParams["oauth_signature"] = signature

	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, percentEncode(k), percentEncode(oauthParams[k])))
	}
	return "OAuth " + strings.Join(parts, ", ")
}

func (c *OAuth1aClient) sign(method, rawURL string, oauthParams, extraParams map[string]string, tokenSecret string) string {
	base := signatureBase(method, rawURL, oauthParams, extraParams)
	key := percentEncode(c.cfg.ConsumerSecret) + "&" + percentEncode(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// signatureBase builds METHOD&enc(baseURL)&enc(normalized-params) per the
// OAuth 1.0a signing rules: parameters percent-encoded, sorted by encoded
// key then value, joined with = and &.
func signatureBase(method, rawURL string, oauthParams, extraParams map[string]string) string {
	parsed, err := url.Parse(rawURL)
	baseURL := rawURL
	queryParams := map[string]string{}
	if err == nil {
		for k, vs := range parsed.Query() {
			if len(vs) > 0 {
				queryParams[k] = vs[0]
			}
		}
		parsed.RawQuery = ""
		parsed.Fragment = ""
		baseURL = parsed.String()
	}

	pairs := make([][2]string, 0, len(oauthParams)+len(extraParams)+len(queryParams))
	add := func(m map[string]string) {
		for k, v := range m {
			pairs = append(pairs, [2]string{percentEncode(k), percentEncode(v)})
		}
	}
	add(oauthParams)
	add(extraParams)
	add(queryParams)

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	encoded := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		encoded = append(encoded, pair[0]+"="+pair[1])
	}
	paramString := strings.Join(encoded, "&")

	return strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(paramString)
}

// percentEncode implements the strict RFC 3986 encoding OAuth 1.0a requires:
// only ALPHA, DIGIT, '-', '.', '_', '~' stay literal.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			b.WriteByte(ch)
		case ch == '-' || ch == '.' || ch == '_' || ch == '~':
			b.WriteByte(ch)
		default:
			fmt.Fprintf(&b, "%%%02X", ch)
		}
	}
	return b.String()
}

func (c *OAuth1aClient) postForm(ctx context.Context, rawURL, authHeader string, form url.Values) (url.Values, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oauth endpoint returned status %d: %s", resp.StatusCode, string(body))
	}
	return url.ParseQuery(string(body))
}

func newNonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
