package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/MarkoPoloResearchLab/storagehub/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

func pageFromQuery(ctx *gin.Context) gormstore.Page {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	offset, _ := strconv.Atoi(ctx.Query("offset"))
	return gormstore.Page{Limit: limit, Offset: offset}
}

func validFacilityStatus(status string) bool {
	switch status {
	case gormstore.FacilityStatusPendingDeployment,
		gormstore.FacilityStatusEnabled,
		gormstore.FacilityStatusDisabled,
		gormstore.FacilityStatusMaintenance:
		return true
	}
	return false
}

type createFacilityRequest struct {
	Name      string          `json:"name" binding:"required"`
	Address   string          `json:"address"`
	CompanyID string          `json:"companyId" binding:"required"`
	ManagerID *string         `json:"managerId"`
	Settings  json.RawMessage `json:"settings"`
}

func (handler *httpHandler) handleCreateFacility(ctx *gin.Context) {
	var request createFacilityRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "name and companyId are required"))
		return
	}
	if !canAccessCompany(getClaims(ctx), request.CompanyID) {
		ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "company not accessible"))
		return
	}
	if _, err := handler.store.GetCompany(ctx.Request.Context(), request.CompanyID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	facility := gormstore.StorageFacility{
		Name:      request.Name,
		Address:   request.Address,
		CompanyID: request.CompanyID,
		ManagerID: request.ManagerID,
		Status:    gormstore.FacilityStatusPendingDeployment,
	}
	if len(request.Settings) > 0 {
		facility.Settings = datatypes.JSON(request.Settings)
	}
	if err := handler.store.CreateFacility(ctx.Request.Context(), &facility); err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.appendEvent(ctx, occupancy.EventTypeFacility, occupancy.EventNameCreated, facility.FacilityID,
		"facility "+facility.Name+" created")
	ctx.JSON(http.StatusCreated, facility)
}

func (handler *httpHandler) handleListFacilities(ctx *gin.Context) {
	claims := getClaims(ctx)
	companyID := ctx.Query("companyId")
	if claims != nil && !isSystemRole(claims.Role) {
		if claims.CompanyID == nil {
			ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "session has no company"))
			return
		}
		companyID = *claims.CompanyID
	}
	facilities, err := handler.store.ListFacilities(ctx.Request.Context(), companyID, pageFromQuery(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"facilities": facilities})
}

func (handler *httpHandler) handleGetFacility(ctx *gin.Context) {
	facility, err := handler.store.GetFacility(ctx.Request.Context(), ctx.Param("facilityId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if !canAccessCompany(getClaims(ctx), facility.CompanyID) {
		ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "facility not accessible"))
		return
	}
	ctx.JSON(http.StatusOK, facility)
}

type updateFacilityRequest struct {
	Name      *string         `json:"name"`
	Address   *string         `json:"address"`
	ManagerID *string         `json:"managerId"`
	Status    *string         `json:"status"`
	Settings  json.RawMessage `json:"settings"`
}

func (handler *httpHandler) handleUpdateFacility(ctx *gin.Context) {
	facility, err := handler.store.GetFacility(ctx.Request.Context(), ctx.Param("facilityId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if !canAccessCompany(getClaims(ctx), facility.CompanyID) {
		ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "facility not accessible"))
		return
	}
	var request updateFacilityRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "malformed request body"))
		return
	}
	fields := map[string]interface{}{}
	if request.Name != nil {
		fields["name"] = *request.Name
	}
	if request.Address != nil {
		fields["address"] = *request.Address
	}
	if request.ManagerID != nil {
		fields["manager_id"] = *request.ManagerID
	}
	if request.Status != nil {
		if !validFacilityStatus(*request.Status) {
			ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "unknown facility status"))
			return
		}
		fields["status"] = *request.Status
	}
	if len(request.Settings) > 0 {
		fields["settings"] = datatypes.JSON(request.Settings)
	}
	if len(fields) == 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "no fields to update"))
		return
	}
	if err := handler.store.UpdateFacility(ctx.Request.Context(), facility.FacilityID, fields); err != nil {
		handler.respondError(ctx, err)
		return
	}
	updated, err := handler.store.GetFacility(ctx.Request.Context(), facility.FacilityID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, updated)
}

func (handler *httpHandler) handleDeleteFacility(ctx *gin.Context) {
	facility, err := handler.store.GetFacility(ctx.Request.Context(), ctx.Param("facilityId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if !canAccessCompany(getClaims(ctx), facility.CompanyID) {
		ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "facility not accessible"))
		return
	}
	facilityID, err := occupancy.NewFacilityID(facility.FacilityID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := handler.occupancy.DeleteFacility(ctx.Request.Context(), facilityID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}
