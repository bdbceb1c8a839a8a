package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/storagehub/internal/stripeconnect"
	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	codeValidation   = "validation_failed"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
	codeUnauthorized = "unauthorized"
	codeForbidden    = "forbidden"
	codeInternal     = "internal_error"
)

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// respondError maps domain errors onto HTTP statuses: guard violations and
// duplicates conflict, missing entities 404, bad input 400, the rest 500.
func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, occupancy.ErrUnitNotFound),
		errors.Is(err, occupancy.ErrTenantNotFound),
		errors.Is(err, occupancy.ErrFacilityNotFound),
		errors.Is(err, occupancy.ErrCompanyNotFound),
		errors.Is(err, occupancy.ErrRentalNotFound),
		errors.Is(err, occupancy.ErrUserNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse(codeNotFound, err.Error()))
	case errors.Is(err, occupancy.ErrUnitOccupied),
		errors.Is(err, occupancy.ErrUnitNotHeldByTenant),
		errors.Is(err, occupancy.ErrUnitHasTenant),
		errors.Is(err, occupancy.ErrTenantHasUnits),
		errors.Is(err, occupancy.ErrFacilityOccupied),
		errors.Is(err, occupancy.ErrCompanyHasFacilities),
		errors.Is(err, occupancy.ErrDuplicateName),
		errors.Is(err, stripeconnect.ErrCompanyNotOnboarded),
		errors.Is(err, stripeconnect.ErrPriceInactive),
		errors.Is(err, stripeconnect.ErrUnitNotListed),
		errors.Is(err, stripeconnect.ErrRentalAlreadySettled):
		ctx.JSON(http.StatusConflict, errorResponse(codeConflict, err.Error()))
	case errors.Is(err, occupancy.ErrInvalidTenantInput),
		errors.Is(err, occupancy.ErrInvalidUnitID),
		errors.Is(err, occupancy.ErrInvalidTenantID),
		errors.Is(err, occupancy.ErrInvalidFacilityID),
		errors.Is(err, occupancy.ErrInvalidCompanyID),
		errors.Is(err, occupancy.ErrInvalidAmountCents),
		errors.Is(err, occupancy.ErrInvalidUnitStatus),
		errors.Is(err, occupancy.ErrInvalidTenantStatus),
		errors.Is(err, stripeconnect.ErrInvalidCompanyInput),
		errors.Is(err, stripeconnect.ErrUnitNotInFacility),
		errors.Is(err, stripeconnect.ErrInvalidWebhookPayload):
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, err.Error()))
	default:
		handler.logger.Error("request failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse(codeInternal, "internal error"))
	}
}
