package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/logger"
	"crosspost/usecase"
)

const stateCookieName = "oauth_state"

type IAuthHandler interface {
	Login(c *gin.Context)
	Callback(c *gin.Context)
	LoginMedia(c *gin.Context)
	CallbackMedia(c *gin.Context)
	Users(c *gin.Context)
	Me(c *gin.Context)
	Disconnect(c *gin.Context)
	ConnectTikTok(c *gin.Context)
	ConnectInstagram(c *gin.Context)
}

type AuthHandler struct {
	authUsecase *usecase.AuthUsecase
}

func NewAuthHandler(authUsecase *usecase.AuthUsecase) IAuthHandler {
	return &AuthHandler{authUsecase: authUsecase}
}

// Login starts the PKCE flow: the browser is sent to the authorization URL
// and keeps the state in a short-lived cookie for the callback check.
func (h *AuthHandler) Login(c *gin.Context) {
	req, err := h.authUsecase.InitiateLogin(c.Request.Context())
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("cannot start login")
		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}
	c.SetCookie(stateCookieName, req.State, int((10 * time.Minute).Seconds()), "/", "", false, true)
	c.Redirect(http.StatusFound, req.URL)
}

func (h *AuthHandler) Callback(c *gin.Context) {
	frontend := configuration.C.Frontend.URL
	state := c.Query("state")
	code := c.Query("code")
	if errParam := c.Query("error"); errParam != "" {
		c.Redirect(http.StatusFound, frontend+"?error=access_denied")
		return
	}
	cookieState, err := c.Cookie(stateCookieName)
	if err != nil || state == "" || code == "" || cookieState != state {
		logger.GetLogger().WithField("error", err).Error("state check failed")
		c.Redirect(http.StatusFound, frontend+"?error=auth_failed")
		return
	}
	c.SetCookie(stateCookieName, "", -1, "/", "", false, true)

	result, err := h.authUsecase.CompleteCallback(c.Request.Context(), state, code)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("callback failed")
		c.Redirect(http.StatusFound, frontend+"?error=auth_failed")
		return
	}
	c.Redirect(http.StatusFound, frontend+"?token="+result.SessionToken+"&user_id="+result.Identity.ID)
}

// LoginMedia starts the second, OAuth 1.0a grant used by the upload API.
func (h *AuthHandler) LoginMedia(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "user_id is required"})
		return
	}
	authURL, err := h.authUsecase.InitiateMediaAuth(c.Request.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		if model.IsKind(err, model.ErrPrerequisiteMissing) {
			status = http.StatusPreconditionFailed
		}
		c.JSON(status, errorResponse(err))
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

func (h *AuthHandler) CallbackMedia(c *gin.Context) {
	frontend := configuration.C.Frontend.URL
	oauthToken := c.Query("oauth_token")
	oauthVerifier := c.Query("oauth_verifier")
	if oauthToken == "" || oauthVerifier == "" {
		c.Redirect(http.StatusFound, frontend+"?error=oauth1a_failed")
		return
	}
	userID, err := h.authUsecase.CompleteMediaCallback(c.Request.Context(), oauthToken, oauthVerifier)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("media callback failed")
		c.Redirect(http.StatusFound, frontend+"?error=oauth1a_failed")
		return
	}
	c.Redirect(http.StatusFound, frontend+"?media=granted&user_id="+userID)
}

func (h *AuthHandler) Users(c *gin.Context) {
	userIDs, err := h.authUsecase.UserIDs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}
	c.JSON(http.StatusOK, dto.UsersResponse{UserIDs: userIDs})
}

func (h *AuthHandler) Me(c *gin.Context) {
	identity, err := h.authUsecase.Me(c.Request.Context(), c.Param("userId"))
	if err != nil {
		status := http.StatusInternalServerError
		if model.IsKind(err, model.ErrNotAuthenticated) {
			status = http.StatusNotFound
		}
		c.JSON(status, errorResponse(err))
		return
	}
	c.JSON(http.StatusOK, identity)
}

func (h *AuthHandler) Disconnect(c *gin.Context) {
	userID := c.GetString("user_id")
	platform := c.DefaultQuery("platform", model.PlatformX)
	if err := h.authUsecase.Disconnect(c.Request.Context(), userID, platform); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"disconnected": platform})
}

func (h *AuthHandler) ConnectTikTok(c *gin.Context) {
	var req dto.ConnectTikTokRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	userID := c.GetString("user_id")
	if err := h.authUsecase.ConnectTikTok(c.Request.Context(), userID, req.Code); err != nil {
		c.JSON(http.StatusBadGateway, errorResponse(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": model.PlatformTikTok})
}

func (h *AuthHandler) ConnectInstagram(c *gin.Context) {
	var req dto.ConnectInstagramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	userID := c.GetString("user_id")
	expiresAt := time.Now().Add(time.Duration(req.ExpiresIn) * time.Second)
	if req.ExpiresIn == 0 {
		// Long-lived Graph tokens last about 60 days.
		expiresAt = time.Now().Add(60 * 24 * time.Hour)
	}
	if err := h.authUsecase.ConnectInstagram(c.Request.Context(), userID, req.AccessToken, req.IGUserID, expiresAt); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": model.PlatformInstagram})
}

func errorResponse(err error) dto.ErrorResponse {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		return dto.ErrorResponse{Error: appErr.Message, Kind: string(appErr.Kind), Detail: appErr.Detail}
	}
	return dto.ErrorResponse{Error: err.Error()}
}
