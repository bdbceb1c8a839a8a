package httpapi

import (
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/storagehub/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	"github.com/gin-gonic/gin"
)

type createUnitRequest struct {
	UnitNumber         string `json:"unitNumber" binding:"required"`
	Size               string `json:"size"`
	ClimateControlled  bool   `json:"climateControlled"`
	SecurityLevel      string `json:"securityLevel"`
	PricePerMonthCents int64  `json:"pricePerMonthCents"`
	StripePriceID      string `json:"stripePriceId"`
}

func (handler *httpHandler) handleCreateUnit(ctx *gin.Context) {
	facility, err := handler.store.GetFacility(ctx.Request.Context(), ctx.Param("facilityId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if !canAccessCompany(getClaims(ctx), facility.CompanyID) {
		ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "facility not accessible"))
		return
	}
	var request createUnitRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "unitNumber is required"))
		return
	}
	if request.PricePerMonthCents < 0 {
		handler.respondError(ctx, occupancy.ErrInvalidAmountCents)
		return
	}
	unit := gormstore.StorageUnit{
		FacilityID:         facility.FacilityID,
		UnitNumber:         request.UnitNumber,
		Size:               request.Size,
		ClimateControlled:  request.ClimateControlled,
		SecurityLevel:      request.SecurityLevel,
		PricePerMonthCents: request.PricePerMonthCents,
		StripePriceID:      request.StripePriceID,
		Availability:       true,
		Status:             occupancy.UnitStatusVacant.String(),
	}
	if err := handler.store.CreateUnit(ctx.Request.Context(), &unit); err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.appendEvent(ctx, occupancy.EventTypeUnit, occupancy.EventNameCreated, facility.FacilityID,
		"unit "+unit.UnitNumber+" created")
	ctx.JSON(http.StatusCreated, unit)
}

func (handler *httpHandler) handleListUnits(ctx *gin.Context) {
	facility, err := handler.store.GetFacility(ctx.Request.Context(), ctx.Param("facilityId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if !canAccessCompany(getClaims(ctx), facility.CompanyID) {
		ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "facility not accessible"))
		return
	}
	availableOnly := ctx.Query("available") == "true"
	units, err := handler.store.ListUnits(ctx.Request.Context(), facility.FacilityID, availableOnly, pageFromQuery(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"units": units})
}

// scopedUnit resolves the unit from the path and enforces the caller's
// company scope through the owning facility. On failure the response is
// already written.
func (handler *httpHandler) scopedUnit(ctx *gin.Context) (gormstore.StorageUnit, bool) {
	unit, err := handler.store.GetUnitModel(ctx.Request.Context(), ctx.Param("unitId"))
	if err != nil {
		handler.respondError(ctx, err)
		return gormstore.StorageUnit{}, false
	}
	facility, err := handler.store.GetFacility(ctx.Request.Context(), unit.FacilityID)
	if err != nil {
		handler.respondError(ctx, err)
		return gormstore.StorageUnit{}, false
	}
	if !canAccessCompany(getClaims(ctx), facility.CompanyID) {
		ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "unit not accessible"))
		return gormstore.StorageUnit{}, false
	}
	return unit, true
}

func (handler *httpHandler) handleGetUnit(ctx *gin.Context) {
	unit, ok := handler.scopedUnit(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, unit)
}

type updateUnitRequest struct {
	Size               *string `json:"size"`
	ClimateControlled  *bool   `json:"climateControlled"`
	SecurityLevel      *string `json:"securityLevel"`
	PricePerMonthCents *int64  `json:"pricePerMonthCents"`
	StripePriceID      *string `json:"stripePriceId"`
	Availability       *bool   `json:"availability"`
}

func (handler *httpHandler) handleUpdateUnit(ctx *gin.Context) {
	if _, ok := handler.scopedUnit(ctx); !ok {
		return
	}
	var request updateUnitRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "malformed request body"))
		return
	}
	fields := map[string]interface{}{}
	if request.Size != nil {
		fields["size"] = *request.Size
	}
	if request.ClimateControlled != nil {
		fields["climate_controlled"] = *request.ClimateControlled
	}
	if request.SecurityLevel != nil {
		fields["security_level"] = *request.SecurityLevel
	}
	if request.PricePerMonthCents != nil {
		if *request.PricePerMonthCents < 0 {
			handler.respondError(ctx, occupancy.ErrInvalidAmountCents)
			return
		}
		fields["price_per_month_cents"] = *request.PricePerMonthCents
	}
	if request.StripePriceID != nil {
		fields["stripe_price_id"] = *request.StripePriceID
	}
	if request.Availability != nil {
		fields["availability"] = *request.Availability
	}
	if len(fields) == 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "no fields to update"))
		return
	}
	unitID := ctx.Param("unitId")
	if err := handler.store.UpdateUnit(ctx.Request.Context(), unitID, fields); err != nil {
		handler.respondError(ctx, err)
		return
	}
	unit, err := handler.store.GetUnitModel(ctx.Request.Context(), unitID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, unit)
}

func (handler *httpHandler) handleDeleteUnit(ctx *gin.Context) {
	if _, ok := handler.scopedUnit(ctx); !ok {
		return
	}
	unitID, err := occupancy.NewUnitID(ctx.Param("unitId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := handler.occupancy.DeleteUnit(ctx.Request.Context(), unitID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

type createUnitNoteRequest struct {
	Body      string     `json:"body" binding:"required"`
	RespondBy *time.Time `json:"respondBy"`
}

func (handler *httpHandler) handleCreateUnitNote(ctx *gin.Context) {
	unit, ok := handler.scopedUnit(ctx)
	if !ok {
		return
	}
	var request createUnitNoteRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "body is required"))
		return
	}
	note := gormstore.UnitNote{
		UnitID:    unit.UnitID,
		Body:      request.Body,
		RespondBy: request.RespondBy,
	}
	if err := handler.store.CreateUnitNote(ctx.Request.Context(), &note); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, note)
}

func (handler *httpHandler) handleListUnitNotes(ctx *gin.Context) {
	if _, ok := handler.scopedUnit(ctx); !ok {
		return
	}
	notes, err := handler.store.ListUnitNotes(ctx.Request.Context(), ctx.Param("unitId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"notes": notes})
}
