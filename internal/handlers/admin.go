// internal/handlers/admin.go
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nyasabox/nyasabox-api/internal/i18n"
	"github.com/nyasabox/nyasabox-api/internal/models"
	"github.com/nyasabox/nyasabox-api/internal/services"
	"github.com/nyasabox/nyasabox-api/internal/utils"
)

type AdminHandler struct {
	adminService        *services.AdminService
	distributionService *services.DistributionService
}

func NewAdminHandler(adminService *services.AdminService, distributionService *services.DistributionService) *AdminHandler {
	return &AdminHandler{
		adminService:        adminService,
		distributionService: distributionService,
	}
}

// GET /admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	stats, err := h.adminService.GetDashboardStats(identity)
	if err != nil {
		respondError(c, err, "stats")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stats": stats,
	})
}

// GET /admin/revenue
func (h *AdminHandler) GetRevenue(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	report, err := h.adminService.GetRevenue(identity)
	if err != nil {
		respondError(c, err, "revenue")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"revenue": report,
	})
}

// GET /admin/users
func (h *AdminHandler) GetUsers(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	filter := services.AdminUserFilter{
		PaginationParams: params,
	}

	if userType := c.Query("user_type"); userType != "" {
		uType := models.UserType(userType)
		filter.UserType = &uType
	}

	if status := c.Query("status"); status != "" {
		uStatus := models.UserStatus(status)
		filter.Status = &uStatus
	}

	if artistStatus := c.Query("artist_status"); artistStatus != "" {
		aStatus := models.ArtistStatus(artistStatus)
		filter.ArtistStatus = &aStatus
	}

	if createdAfter := c.Query("created_after"); createdAfter != "" {
		if t, err := time.Parse("2006-01-02", createdAfter); err == nil {
			filter.CreatedAfter = &t
		}
	}

	if createdBefore := c.Query("created_before"); createdBefore != "" {
		if t, err := time.Parse("2006-01-02", createdBefore); err == nil {
			filter.CreatedBefore = &t
		}
	}

	users, total, err := h.adminService.GetUsers(identity, filter)
	if err != nil {
		respondError(c, err, "user")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(users, total, params))
}

// PUT /admin/users/:id/status
func (h *AdminHandler) UpdateUserStatus(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateUserStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.adminService.UpdateUserStatus(identity, userID, &req)
	if err != nil {
		respondError(c, err, "user")
		return
	}

	message := i18n.T(lang, i18n.KeyAdminActionSuccess)
	if user.Status == models.UserStatusSuspended {
		message = i18n.T(lang, i18n.KeyAdminUserSuspended)
	}

	utils.SuccessResponse(c, gin.H{
		"message": message,
		"user":    user,
	})
}

// GET /admin/artists/pending
func (h *AdminHandler) GetPendingArtists(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	users, total, err := h.adminService.GetPendingArtists(identity, params)
	if err != nil {
		respondError(c, err, "user")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(users, total, params))
}

// PUT /admin/artists/:id/approve
func (h *AdminHandler) ApproveArtist(c *gin.Context) {
	h.decideArtist(c, h.adminService.ApproveArtist, i18n.KeyAdminArtistApproved)
}

// PUT /admin/artists/:id/reject
func (h *AdminHandler) RejectArtist(c *gin.Context) {
	h.decideArtist(c, h.adminService.RejectArtist, i18n.KeyAdminArtistRejected)
}

type artistDecision func(ctx context.Context, identity services.Identity, userID uuid.UUID, req *services.ArtistDecisionRequest) (*models.User, error)

func (h *AdminHandler) decideArtist(c *gin.Context, decide artistDecision, messageKey string) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	// The body is optional
	var req services.ArtistDecisionRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	user, err := decide(c.Request.Context(), identity, userID, &req)
	if err != nil {
		respondError(c, err, "user")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, messageKey),
		"user":    user,
	})
}

// GET /admin/distribution/requests
func (h *AdminHandler) ListDistributionRequests(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	filter := services.DistributionFilter{
		PaginationParams: params,
		Status:           models.DistributionStatus(c.Query("status")),
	}
	if artistID := c.Query("artist_id"); artistID != "" {
		id, err := uuid.Parse(artistID)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "artist_id"), nil)
			return
		}
		filter.ArtistID = &id
	}

	requests, total, err := h.distributionService.AdminList(identity, filter)
	if err != nil {
		respondError(c, err, "distribution")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(requests, total, params))
}

// PUT /admin/distribution/requests/:id/status
func (h *AdminHandler) UpdateDistributionStatus(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateDistributionStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	request, err := h.distributionService.UpdateStatus(c.Request.Context(), identity, requestID, req)
	if err != nil {
		respondError(c, err, "distribution")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyDistributionStatusUpdated),
		"request": request,
	})
}
