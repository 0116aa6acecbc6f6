package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
	"crosspost/usecase"
)

type IPostHandler interface {
	CreatePost(c *gin.Context)
	ListPosts(c *gin.Context)
}

type PostHandler struct {
	postUsecase *usecase.PostUsecase
}

func NewPostHandler(postUsecase *usecase.PostUsecase) IPostHandler {
	return &PostHandler{postUsecase: postUsecase}
}

// CreatePost fans the submission out and reports one result per platform.
// The response is 200 even when some platforms failed; Success is true only
// when every platform succeeded.
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req dto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while unmarshal")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if len(req.Platforms) == 0 {
		req.Platforms = []string{model.PlatformX}
	}
	if req.UserID == "" {
		req.UserID = c.GetString("user_id")
	}

	results := h.postUsecase.CreatePost(c.Request.Context(), req.UserID, req.Text, req.MediaURLs, req.Platforms)
	success := true
	for _, result := range results {
		if result.Status != model.PlatformStatusSuccess {
			success = false
		}
	}
	c.JSON(http.StatusOK, dto.CreatePostResponse{Success: success, Results: results})
}

func (h *PostHandler) ListPosts(c *gin.Context) {
	max := 10
	if raw := c.Query("max"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			max = parsed
		}
	}
	posts, err := h.postUsecase.ListPosts(c.Request.Context(), c.Param("userId"), max)
	if err != nil {
		status := http.StatusInternalServerError
		if model.IsKind(err, model.ErrNotAuthenticated) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, errorResponse(err))
		return
	}
	c.JSON(http.StatusOK, dto.ListPostsResponse{Posts: posts})
}
