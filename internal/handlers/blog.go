// internal/handlers/blog.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nyasabox/nyasabox-api/internal/i18n"
	"github.com/nyasabox/nyasabox-api/internal/services"
	"github.com/nyasabox/nyasabox-api/internal/utils"
)

type BlogHandler struct {
	blogService *services.BlogService
}

func NewBlogHandler(blogService *services.BlogService) *BlogHandler {
	return &BlogHandler{
		blogService: blogService,
	}
}

// GET /blog/posts
func (h *BlogHandler) ListPosts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	posts, total, err := h.blogService.ListPosts(services.BlogFilter{
		PaginationParams: params,
		CategorySlug:     strings.TrimSpace(c.Query("category")),
	})
	if err != nil {
		respondError(c, err, "blog_post")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(posts, total, params))
}

// GET /blog/posts/:slug
func (h *BlogHandler) GetPost(c *gin.Context) {
	post, err := h.blogService.GetPost(c.Param("slug"))
	if err != nil {
		respondError(c, err, "blog_post")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"post": post,
	})
}

// GET /blog/categories
func (h *BlogHandler) ListCategories(c *gin.Context) {
	categories, err := h.blogService.ListCategories()
	if err != nil {
		respondError(c, err, "blog_category")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"categories": categories,
	})
}

// POST /admin/blog/categories
func (h *BlogHandler) CreateCategory(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req services.CreateBlogCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.blogService.CreateCategory(identity, &req)
	if err != nil {
		respondError(c, err, "blog_category")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyBlogCategoryCreated),
		"category": category,
	})
}

// POST /admin/blog/posts
func (h *BlogHandler) CreatePost(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req services.CreateBlogPostRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := h.blogService.CreatePost(identity, &req)
	if err != nil {
		respondError(c, err, "blog_post")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyBlogPostCreated),
		"post":    post,
	})
}

// PUT /admin/blog/posts/:id
func (h *BlogHandler) UpdatePost(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateBlogPostRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := h.blogService.UpdatePost(identity, postID, &req)
	if err != nil {
		respondError(c, err, "blog_post")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyBlogPostUpdated),
		"post":    post,
	})
}

// DELETE /admin/blog/posts/:id
func (h *BlogHandler) DeletePost(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.blogService.DeletePost(identity, postID); err != nil {
		respondError(c, err, "blog_post")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyBlogPostDeleted),
	})
}
