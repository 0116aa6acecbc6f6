package usecase

import (
	"context"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/clients/tiktok"
	"crosspost/infrastructure/clients/x"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/utils"
)

const oauthSessionTTL = 10 * time.Minute

// IXOAuthClient is the PKCE flow surface used during login.
type IXOAuthClient interface {
	AuthorizationRequest() (*x.AuthorizationRequest, error)
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*x.TokenResult, error)
	Me(ctx context.Context, accessToken string) (*model.Identity, error)
}

// IXOAuth1aClient is the request-token flow used for the media upload grant.
type IXOAuth1aClient interface {
	RequestToken(ctx context.Context) (token, secret string, err error)
	AuthorizationURL(oauthToken string) string
	AccessToken(ctx context.Context, oauthToken, oauthTokenSecret, oauthVerifier string) (*x.OAuth1aAccessToken, error)
}

// ITikTokAuthClient completes the TikTok authorization-code exchange.
type ITikTokAuthClient interface {
	ExchangeCode(ctx context.Context, code string) (*tiktok.TokenResponse, error)
}

// LoginResult is what a completed PKCE callback produces.
type LoginResult struct {
	SessionToken string
	Identity     *model.Identity
}

// AuthUsecase owns the login flows and the token lifecycle around them.
type AuthUsecase struct {
	oauth     IXOAuthClient
	oauth1a   IXOAuth1aClient
	tiktok    ITikTokAuthClient
	tokens    repository.IToken
	sessions  repository.IOAuthSession
	secretKey string
}

func NewAuthUsecase(oauth IXOAuthClient, oauth1a IXOAuth1aClient, tiktokClient ITikTokAuthClient, tokens repository.IToken, sessions repository.IOAuthSession, secretKey string) *AuthUsecase {
	return &AuthUsecase{
		oauth:     oauth,
		oauth1a:   oauth1a,
		tiktok:    tiktokClient,
		tokens:    tokens,
		sessions:  sessions,
		secretKey: secretKey,
	}
}

// InitiateLogin builds the authorization redirect and stores the PKCE
// verifier under the state, to be consumed once by the callback.
func (u *AuthUsecase) InitiateLogin(ctx context.Context) (*x.AuthorizationRequest, error) {
	req, err := u.oauth.AuthorizationRequest()
	if err != nil {
		return nil, err
	}
	if err := u.sessions.Save(ctx, req.State, req.CodeVerifier, oauthSessionTTL); err != nil {
		return nil, err
	}
	return req, nil
}

// CompleteCallback consumes the state, exchanges the code, resolves the
// platform identity, persists the token and issues the relay session token.
func (u *AuthUsecase) CompleteCallback(ctx context.Context, state, code string) (*LoginResult, error) {
	verifier, err := u.sessions.Take(ctx, state)
	if err != nil {
		return nil, err
	}

	result, err := u.oauth.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	identity, err := u.oauth.Me(ctx, result.AccessToken)
	if err != nil {
		return nil, err
	}

	stored := &model.StoredToken{
		UserID:       identity.ID,
		Platform:     model.PlatformX,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    result.ExpiresAt,
	}
	if existing, err := u.tokens.Get(ctx, identity.ID, model.PlatformX); err == nil {
		// A relogin must not drop the separately granted OAuth1a pair.
		stored.OAuth1a = existing.OAuth1a
	}
	if err := u.tokens.Save(ctx, stored); err != nil {
		return nil, err
	}

	now := utils.GetCurrentTime()
	sessionToken, err := utils.GenerateToken(map[string]interface{}{
		"user_id": identity.ID,
		"handle":  identity.Handle,
		"iat":     now.Unix(),
		"exp":     now.Add(24 * time.Hour).Unix(),
	}, u.secretKey)
	if err != nil {
		return nil, model.NewAppError(model.ErrAuthorization, "cannot issue session token", err)
	}

	logger.GetLogger().
		WithField("user_id", identity.ID).
		WithField("handle", identity.Handle).
		Info("login completed")
	return &LoginResult{SessionToken: sessionToken, Identity: identity}, nil
}

// InitiateMediaAuth starts the OAuth 1.0a grant needed by the upload API.
// It requires an existing OAuth2 record for the user.
func (u *AuthUsecase) InitiateMediaAuth(ctx context.Context, userID string) (string, error) {
	if _, err := u.tokens.Get(ctx, userID, model.PlatformX); err != nil {
		return "", model.NewAppError(model.ErrPrerequisiteMissing,
			"connect the account before granting media access", err)
	}

	token, secret, err := u.oauth1a.RequestToken(ctx)
	if err != nil {
		return "", err
	}
	// The request-token secret is needed again when signing the access-token
	// call; stash it alongside the user it belongs to.
	if err := u.sessions.Save(ctx, "oauth1a:"+token, userID+"|"+secret, oauthSessionTTL); err != nil {
		return "", err
	}
	return u.oauth1a.AuthorizationURL(token), nil
}

// CompleteMediaCallback finishes the 1.0a dance and attaches the credential
// pair to the user's stored record.
func (u *AuthUsecase) CompleteMediaCallback(ctx context.Context, oauthToken, oauthVerifier string) (string, error) {
	session, err := u.sessions.Take(ctx, "oauth1a:"+oauthToken)
	if err != nil {
		return "", err
	}
	userID, secret := splitSession(session)

	access, err := u.oauth1a.AccessToken(ctx, oauthToken, secret, oauthVerifier)
	if err != nil {
		return "", err
	}

	stored, err := u.tokens.Get(ctx, userID, model.PlatformX)
	if err != nil {
		return "", err
	}
	stored.OAuth1a = &model.OAuth1aCredentials{
		AccessToken:       access.Token,
		AccessTokenSecret: access.TokenSecret,
	}
	if err := u.tokens.Save(ctx, stored); err != nil {
		return "", err
	}

	logger.GetLogger().WithField("user_id", userID).Info("media access granted")
	return userID, nil
}

// ConnectTikTok exchanges an authorization code and stores the resulting
// token under the user's TikTok key.
func (u *AuthUsecase) ConnectTikTok(ctx context.Context, userID, code string) error {
	result, err := u.tiktok.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}
	return u.tokens.Save(ctx, &model.StoredToken{
		UserID:         userID,
		Platform:       model.PlatformTikTok,
		AccessToken:    result.AccessToken,
		RefreshToken:   result.RefreshToken,
		ExpiresAt:      time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
		PlatformUserID: result.OpenID,
	})
}

// ConnectInstagram stores a long-lived Graph API token together with the
// Instagram account id it publishes through.
func (u *AuthUsecase) ConnectInstagram(ctx context.Context, userID, accessToken, igUserID string, expiresAt time.Time) error {
	if accessToken == "" || igUserID == "" {
		return model.NewAppError(model.ErrAuthorization, "access token and account id are required", nil)
	}
	return u.tokens.Save(ctx, &model.StoredToken{
		UserID:         userID,
		Platform:       model.PlatformInstagram,
		AccessToken:    accessToken,
		ExpiresAt:      expiresAt,
		PlatformUserID: igUserID,
	})
}

// Me resolves the current platform identity for a connected user.
func (u *AuthUsecase) Me(ctx context.Context, userID string) (*model.Identity, error) {
	token, err := u.tokens.Get(ctx, userID, model.PlatformX)
	if err != nil {
		return nil, err
	}
	return u.oauth.Me(ctx, token.AccessToken)
}

// UserIDs lists every user with a connected account.
func (u *AuthUsecase) UserIDs(ctx context.Context) ([]string, error) {
	return u.tokens.UserIDs(ctx, model.PlatformX)
}

// Disconnect removes the stored credentials for one platform.
func (u *AuthUsecase) Disconnect(ctx context.Context, userID, platform string) error {
	return u.tokens.Delete(ctx, userID, platform)
}

func splitSession(session string) (userID, secret string) {
	for i := 0; i < len(session); i++ {
		if session[i] == '|' {
			return session[:i], session[i+1:]
		}
	}
	return session, ""
}
