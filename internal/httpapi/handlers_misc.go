package httpapi

import (
	"encoding/csv"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/MarkoPoloResearchLab/storagehub/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/storagehub/internal/stripeconnect"
	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// appendEvent records an audit row for API-side mutations. Failures are
// logged, never surfaced to the client.
func (handler *httpHandler) appendEvent(ctx *gin.Context, eventType occupancy.EventType, eventName occupancy.EventName, rawFacilityID string, message string) {
	var facilityID *occupancy.FacilityID
	if rawFacilityID != "" {
		parsed, err := occupancy.NewFacilityID(rawFacilityID)
		if err == nil {
			facilityID = &parsed
		}
	}
	event, err := occupancy.NewEvent(eventType, eventName, facilityID, message, time.Now().UTC().Unix())
	if err != nil {
		handler.logger.Warn("audit event rejected", zap.Error(err))
		return
	}
	if err := handler.store.AppendEvent(ctx.Request.Context(), event); err != nil {
		handler.logger.Warn("audit event append failed", zap.Error(err))
	}
}

func (handler *httpHandler) handleListEvents(ctx *gin.Context) {
	filter := gormstore.EventFilter{
		EventType:  ctx.Query("type"),
		FacilityID: ctx.Query("facilityId"),
	}
	claims := getClaims(ctx)
	if claims != nil && !isSystemRole(claims.Role) {
		if claims.CompanyID == nil {
			ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "session has no company"))
			return
		}
		filter.CompanyID = *claims.CompanyID
	}
	events, err := handler.store.ListEvents(ctx.Request.Context(), filter, pageFromQuery(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"events": events})
}

func (handler *httpHandler) handleListRentals(ctx *gin.Context) {
	claims := getClaims(ctx)
	companyID := ctx.Query("companyId")
	if claims != nil && !isSystemRole(claims.Role) {
		if claims.CompanyID == nil {
			ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "session has no company"))
			return
		}
		companyID = *claims.CompanyID
	}
	rentals, err := handler.store.ListRentals(ctx.Request.Context(), companyID, pageFromQuery(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"rentals": rentals})
}

func (handler *httpHandler) handleSweepDelinquency(ctx *gin.Context) {
	result, err := handler.occupancy.SweepDelinquency(ctx.Request.Context())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"tenantsMarked": result.Tenants,
		"unitsMarked":   result.Units,
	})
}

func (handler *httpHandler) handleAccrueMonthly(ctx *gin.Context) {
	result, err := handler.occupancy.AccrueMonthly(ctx.Request.Context())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"tenantsBilled": result.TenantsBilled,
		"tenantsFailed": result.TenantsFailed,
		"totalCents":    result.TotalCents,
	})
}

// handleExportTenants streams the tenant roster as CSV.
func (handler *httpHandler) handleExportTenants(ctx *gin.Context) {
	tenants, err := handler.store.ListAllTenants(ctx.Request.Context())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Header("Content-Type", "text/csv")
	ctx.Header("Content-Disposition", `attachment; filename="tenants.csv"`)
	writer := csv.NewWriter(ctx.Writer)
	header := []string{"tenant_id", "first_name", "last_name", "email", "phone", "address", "status", "balance_cents", "created_at"}
	if err := writer.Write(header); err != nil {
		handler.logger.Warn("csv export aborted", zap.Error(err))
		return
	}
	for _, tenant := range tenants {
		record := []string{
			tenant.TenantID,
			tenant.FirstName,
			tenant.LastName,
			tenant.Email,
			tenant.Phone,
			tenant.Address,
			tenant.Status,
			strconv.FormatInt(tenant.BalanceCents, 10),
			tenant.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			handler.logger.Warn("csv export aborted", zap.Error(err))
			return
		}
	}
	writer.Flush()
}

func (handler *httpHandler) handlePublicListUnits(ctx *gin.Context) {
	facility, err := handler.store.GetFacility(ctx.Request.Context(), ctx.Param("facilityId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	units, err := handler.store.ListUnits(ctx.Request.Context(), facility.FacilityID, true, pageFromQuery(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"units": units})
}

type checkoutRequest struct {
	FacilityID string `json:"facilityId" binding:"required"`
	UnitID     string `json:"unitId" binding:"required"`
	BuyerName  string `json:"buyerName"`
	BuyerEmail string `json:"buyerEmail" binding:"required"`
	BuyerPhone string `json:"buyerPhone"`
}

func (request checkoutRequest) toInput() stripeconnect.CheckoutInput {
	return stripeconnect.CheckoutInput{
		FacilityID: request.FacilityID,
		UnitID:     request.UnitID,
		BuyerName:  request.BuyerName,
		BuyerEmail: request.BuyerEmail,
		BuyerPhone: request.BuyerPhone,
	}
}

func respondCheckout(ctx *gin.Context, result stripeconnect.CheckoutResult) {
	ctx.JSON(http.StatusCreated, gin.H{
		"sessionId":   result.SessionID,
		"checkoutUrl": result.CheckoutURL,
	})
}

func (handler *httpHandler) handlePublicCheckout(ctx *gin.Context) {
	var request checkoutRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "facilityId, unitId, and buyerEmail are required"))
		return
	}
	result, err := handler.stripe.CreatePublicCheckout(ctx.Request.Context(), request.toInput())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondCheckout(ctx, result)
}

// handleOperatorCheckout opens a checkout session for an authenticated
// operator taking a walk-in rental.
func (handler *httpHandler) handleOperatorCheckout(ctx *gin.Context) {
	var request checkoutRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "facilityId, unitId, and buyerEmail are required"))
		return
	}
	facility, err := handler.store.GetFacility(ctx.Request.Context(), request.FacilityID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if !canAccessCompany(getClaims(ctx), facility.CompanyID) {
		ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "facility not accessible"))
		return
	}
	result, err := handler.stripe.CreateOperatorCheckout(ctx.Request.Context(), request.toInput())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondCheckout(ctx, result)
}

func (handler *httpHandler) handleStripeWebhook(ctx *gin.Context) {
	payload, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "unreadable payload"))
		return
	}
	signature := ctx.GetHeader("Stripe-Signature")
	if err := handler.stripe.HandleWebhook(ctx.Request.Context(), payload, signature); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"received": true})
}
