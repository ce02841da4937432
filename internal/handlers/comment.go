// internal/handlers/comment.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nyasabox/nyasabox-api/internal/i18n"
	"github.com/nyasabox/nyasabox-api/internal/services"
	"github.com/nyasabox/nyasabox-api/internal/utils"
)

type CommentHandler struct {
	commentService *services.CommentService
}

func NewCommentHandler(commentService *services.CommentService) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
	}
}

// targetFunc builds the comment target from the :id path parameter.
type targetFunc func(uuid.UUID) services.CommentTarget

// List returns a handler for GET /tracks/:id/comments or /albums/:id/comments.
func (h *CommentHandler) List(target targetFunc, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		params := utils.GetPaginationParams(c)

		comments, total, err := h.commentService.List(target(id), params)
		if err != nil {
			respondError(c, err, resource)
			return
		}

		utils.PaginatedResponse(c, utils.CreatePaginationResult(comments, total, params))
	}
}

// Create returns a handler for POST /tracks/:id/comments or /albums/:id/comments.
func (h *CommentHandler) Create(target targetFunc, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)
		identity, ok := currentIdentity(c)
		if !ok {
			return
		}
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		var req services.CreateCommentRequest
		if !bindJSON(c, &req) {
			return
		}

		comment, err := h.commentService.Add(identity, target(id), &req)
		if err != nil {
			respondError(c, err, resource)
			return
		}

		utils.CreatedResponse(c, gin.H{
			"message": i18n.T(lang, i18n.KeyCommentCreated),
			"comment": comment,
		})
	}
}

// DELETE /comments/:id
func (h *CommentHandler) Delete(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	commentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.commentService.Delete(identity, commentID); err != nil {
		respondError(c, err, "comment")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyCommentDeleted),
	})
}
