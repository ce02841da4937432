// internal/handlers/distribution.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/nyasabox/nyasabox-api/internal/i18n"
	"github.com/nyasabox/nyasabox-api/internal/services"
	"github.com/nyasabox/nyasabox-api/internal/utils"
)

type DistributionHandler struct {
	distributionService *services.DistributionService
	paymentService      *services.PaymentService
}

func NewDistributionHandler(distributionService *services.DistributionService, paymentService *services.PaymentService) *DistributionHandler {
	return &DistributionHandler{
		distributionService: distributionService,
		paymentService:      paymentService,
	}
}

// GET /distribution/platforms
func (h *DistributionHandler) ListPlatforms(c *gin.Context) {
	platforms, err := h.distributionService.ListPlatforms()
	if err != nil {
		respondError(c, err, "platform")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"platforms": platforms,
	})
}

// GET /distribution/eligible-tracks
func (h *DistributionHandler) EligibleTracks(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	tracks, err := h.distributionService.ListEligibleTracks(identity)
	if err != nil {
		respondError(c, err, "track")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"tracks": tracks,
	})
}

// POST /distribution/requests
func (h *DistributionHandler) Create(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req services.CreateDistributionRequest
	if !bindJSON(c, &req) {
		return
	}

	request, err := h.distributionService.Create(c.Request.Context(), identity, req)
	if err != nil {
		respondError(c, err, "distribution")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyDistributionCreated),
		"request": request,
	})
}

// GET /distribution/requests
func (h *DistributionHandler) History(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	requests, total, err := h.distributionService.History(identity, params)
	if err != nil {
		respondError(c, err, "distribution")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(requests, total, params))
}

// GET /distribution/requests/:id
func (h *DistributionHandler) Get(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	request, err := h.distributionService.Get(identity, requestID)
	if err != nil {
		respondError(c, err, "distribution")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"request": request,
	})
}

// PUT /distribution/requests/:id/tracks
func (h *DistributionHandler) UpdateTracks(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateDistributionTracksRequest
	if !bindJSON(c, &req) {
		return
	}

	request, err := h.distributionService.UpdateTracks(c.Request.Context(), identity, requestID, req)
	if err != nil {
		respondError(c, err, "distribution")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyDistributionTracksUpdated),
		"request": request,
	})
}

// GET /distribution/requests/:id/transactions
func (h *DistributionHandler) ListTransactions(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	transactions, err := h.paymentService.ListTransactions(identity, requestID)
	if err != nil {
		respondError(c, err, "distribution")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"transactions": transactions,
	})
}
