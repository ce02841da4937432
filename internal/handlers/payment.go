// internal/handlers/payment.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nyasabox/nyasabox-api/internal/i18n"
	"github.com/nyasabox/nyasabox-api/internal/services"
	"github.com/nyasabox/nyasabox-api/internal/utils"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// GET /payments/operators
// Always 200; "degraded" tells the client the list may be empty because the
// gateway could not be reached.
func (h *PaymentHandler) ListOperators(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	list := h.paymentService.ListOperators(c.Request.Context())

	response := gin.H{
		"operators": list.Operators,
		"degraded":  list.Degraded,
	}
	if list.Degraded {
		response["message"] = i18n.T(lang, i18n.KeyPaymentOperatorsFailed)
	}

	utils.SuccessResponse(c, response)
}

// POST /payments/distribution/:id/initiate
func (h *PaymentHandler) Initiate(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.InitiatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.paymentService.InitiatePayment(c.Request.Context(), identity, requestID, req)
	if err != nil {
		respondError(c, err, "distribution")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPaymentInitiated),
		"payment": result,
	})
}

// GET /payments/:charge_id/status
func (h *PaymentHandler) Status(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	chargeID := strings.TrimSpace(c.Param("charge_id"))
	if chargeID == "" {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "charge_id"), nil)
		return
	}

	result, err := h.paymentService.VerifyPayment(c.Request.Context(), identity, chargeID)
	if err != nil {
		respondError(c, err, "payment")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"payment": result,
	})
}
