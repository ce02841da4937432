// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nyasabox/nyasabox-api/internal/i18n"
	"github.com/nyasabox/nyasabox-api/internal/middleware"
	"github.com/nyasabox/nyasabox-api/internal/services"
	"github.com/nyasabox/nyasabox-api/internal/utils"
)

// gatewayRetryAfter is how long clients are told to wait after the payment
// gateway could not be reached.
const gatewayRetryAfter = 30 * time.Second

// respondError maps a service error onto the response envelope. resource
// selects the "<resource>.not_found" message.
func respondError(c *gin.Context, err error, resource string) {
	lang := utils.GetLangFromContext(c)

	var (
		validationErr *services.ValidationError
		rejection     *services.GatewayRejectionError
		transition    *services.InvalidTransitionError
	)

	switch {
	case errors.As(err, &rejection):
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodePaymentRejected, i18n.T(lang, i18n.KeyPaymentRejected, rejection.Message), gin.H{
			"gateway_status": rejection.StatusCode,
		})
	case errors.As(err, &validationErr):
		utils.ValidationErrorResponse(c, []utils.ValidationError{{
			Field:   validationErr.Field,
			Tag:     "invalid",
			Message: validationErr.Message,
		}})
	case errors.Is(err, services.ErrValidation):
		utils.BadRequestResponse(c, "", err.Error())
	case errors.As(err, &transition):
		utils.ErrorResponse(c, http.StatusConflict, utils.CodeInvalidTransition, i18n.T(lang, i18n.KeyDistributionInvalidTransition), gin.H{
			"from": transition.From,
			"to":   transition.To,
		})
	case errors.Is(err, services.ErrGatewayUnavailable):
		utils.ServiceUnavailableResponse(c, i18n.T(lang, i18n.KeyPaymentUnavailable), gatewayRetryAfter)
	case errors.Is(err, services.ErrConflict):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyCatalogInUse))
	case errors.Is(err, services.ErrForbidden):
		utils.ForbiddenResponse(c, err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.NotFoundResponse(c, resource)
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidCredentials))
	case errors.Is(err, services.ErrAccountInactive):
		utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyAuthAccountInactive))
	case errors.Is(err, services.ErrInvalidResetToken):
		utils.BadRequestResponse(c, err.Error(), nil)
	default:
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
		utils.InternalErrorResponse(c, "")
	}
}

// currentIdentity returns the caller resolved by middleware.IdentityRequired.
func currentIdentity(c *gin.Context) (services.Identity, bool) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
	}
	return identity, ok
}

// bindJSON binds and validates the body, writing the error response itself.
func bindJSON(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)

	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, name), nil)
		return uuid.Nil, false
	}
	return id, true
}
