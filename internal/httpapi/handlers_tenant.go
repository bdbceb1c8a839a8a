package httpapi

import (
	"net/http"

	"github.com/MarkoPoloResearchLab/storagehub/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	"github.com/gin-gonic/gin"
)

type rentUnitsRequest struct {
	FirstName  string   `json:"firstName" binding:"required"`
	LastName   string   `json:"lastName" binding:"required"`
	Email      string   `json:"email" binding:"required"`
	Phone      string   `json:"phone"`
	Address    string   `json:"address"`
	AccessCode string   `json:"accessCode"`
	UnitIDs    []string `json:"unitIds" binding:"required"`
	PaidInCash bool     `json:"paidInCash"`
}

// handleRentUnits creates a tenant and claims the requested units in one
// transaction.
func (handler *httpHandler) handleRentUnits(ctx *gin.Context) {
	var request rentUnitsRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "firstName, lastName, email, and unitIds are required"))
		return
	}
	unitIDs := make([]occupancy.UnitID, 0, len(request.UnitIDs))
	for _, raw := range request.UnitIDs {
		unitID, err := occupancy.NewUnitID(raw)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		unitIDs = append(unitIDs, unitID)
	}
	input := occupancy.NewTenantInput{
		FirstName:  request.FirstName,
		LastName:   request.LastName,
		Email:      request.Email,
		Phone:      request.Phone,
		Address:    request.Address,
		AccessCode: request.AccessCode,
	}
	tenantID, err := handler.occupancy.RentUnits(ctx.Request.Context(), input, unitIDs, request.PaidInCash)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	tenant, err := handler.store.GetTenantModel(ctx.Request.Context(), tenantID.String())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, tenant)
}

func (handler *httpHandler) handleListTenants(ctx *gin.Context) {
	tenants, err := handler.store.ListTenants(ctx.Request.Context(), pageFromQuery(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"tenants": tenants})
}

func (handler *httpHandler) handleGetTenant(ctx *gin.Context) {
	tenantID, err := occupancy.NewTenantID(ctx.Param("tenantId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	tenant, err := handler.store.GetTenantModel(ctx.Request.Context(), tenantID.String())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	units, err := handler.store.ListTenantUnits(ctx.Request.Context(), tenantID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"tenant": tenant, "units": units})
}

type updateTenantRequest struct {
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Phone      *string `json:"phone"`
	Address    *string `json:"address"`
	AccessCode *string `json:"accessCode"`
	Status     *string `json:"status"`
}

func (handler *httpHandler) handleUpdateTenant(ctx *gin.Context) {
	var request updateTenantRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "malformed request body"))
		return
	}
	fields := map[string]interface{}{}
	if request.FirstName != nil {
		fields["first_name"] = *request.FirstName
	}
	if request.LastName != nil {
		fields["last_name"] = *request.LastName
	}
	if request.Phone != nil {
		fields["phone"] = *request.Phone
	}
	if request.Address != nil {
		fields["address"] = *request.Address
	}
	if request.AccessCode != nil {
		fields["access_code"] = *request.AccessCode
	}
	if request.Status != nil {
		status, err := occupancy.ParseTenantStatus(*request.Status)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		fields["status"] = status.String()
	}
	if len(fields) == 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "no fields to update"))
		return
	}
	tenantID := ctx.Param("tenantId")
	if err := handler.store.UpdateTenant(ctx.Request.Context(), tenantID, fields); err != nil {
		handler.respondError(ctx, err)
		return
	}
	tenant, err := handler.store.GetTenantModel(ctx.Request.Context(), tenantID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, tenant)
}

func (handler *httpHandler) handleDeleteTenant(ctx *gin.Context) {
	tenantID, err := occupancy.NewTenantID(ctx.Param("tenantId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := handler.occupancy.DeleteTenant(ctx.Request.Context(), tenantID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

type addUnitRequest struct {
	UnitID     string `json:"unitId" binding:"required"`
	PaidInCash bool   `json:"paidInCash"`
}

func (handler *httpHandler) handleAddUnit(ctx *gin.Context) {
	tenantID, err := occupancy.NewTenantID(ctx.Param("tenantId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request addUnitRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "unitId is required"))
		return
	}
	unitID, err := occupancy.NewUnitID(request.UnitID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := handler.occupancy.AddUnit(ctx.Request.Context(), tenantID, unitID, request.PaidInCash); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

type moveOutRequest struct {
	UnitID string `json:"unitId" binding:"required"`
}

func (handler *httpHandler) handleMoveOut(ctx *gin.Context) {
	tenantID, err := occupancy.NewTenantID(ctx.Param("tenantId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request moveOutRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "unitId is required"))
		return
	}
	unitID, err := occupancy.NewUnitID(request.UnitID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := handler.occupancy.MoveOut(ctx.Request.Context(), tenantID, unitID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

type createTenantNoteRequest struct {
	Body string `json:"body" binding:"required"`
}

func (handler *httpHandler) handleCreateTenantNote(ctx *gin.Context) {
	tenant, err := handler.store.GetTenantModel(ctx.Request.Context(), ctx.Param("tenantId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request createTenantNoteRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "body is required"))
		return
	}
	note := gormstore.TenantNote{TenantID: tenant.TenantID, Body: request.Body}
	if err := handler.store.CreateTenantNote(ctx.Request.Context(), &note); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, note)
}

func (handler *httpHandler) handleListTenantNotes(ctx *gin.Context) {
	notes, err := handler.store.ListTenantNotes(ctx.Request.Context(), ctx.Param("tenantId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"notes": notes})
}

type collectPaymentRequest struct {
	UnitID      string `json:"unitId" binding:"required"`
	AmountCents int64  `json:"amountCents" binding:"required"`
}

func (handler *httpHandler) handleCollectPayment(ctx *gin.Context) {
	var request collectPaymentRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "unitId and amountCents are required"))
		return
	}
	payment, err := handler.stripe.CollectPayment(ctx.Request.Context(), ctx.Param("tenantId"), request.UnitID, request.AmountCents)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, payment)
}

func (handler *httpHandler) handleListPayments(ctx *gin.Context) {
	payments, err := handler.store.ListTenantPayments(ctx.Request.Context(), ctx.Param("tenantId"), pageFromQuery(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"payments": payments})
}
