package httpapi

import (
	"net/http"

	"github.com/MarkoPoloResearchLab/storagehub/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/storagehub/internal/stripeconnect"
	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	"github.com/gin-gonic/gin"
)

type createCompanyRequest struct {
	Name         string `json:"name" binding:"required"`
	Address      string `json:"address"`
	ContactEmail string `json:"contactEmail" binding:"required"`
	ContactPhone string `json:"contactPhone"`
}

func (handler *httpHandler) handleCreateCompany(ctx *gin.Context) {
	var request createCompanyRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "name and contactEmail are required"))
		return
	}
	company, err := handler.stripe.ProvisionCompany(ctx.Request.Context(), stripeconnect.NewCompanyInput{
		Name:         request.Name,
		Address:      request.Address,
		ContactEmail: request.ContactEmail,
		ContactPhone: request.ContactPhone,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, company)
}

func (handler *httpHandler) handleListCompanies(ctx *gin.Context) {
	companies, err := handler.store.ListCompanies(ctx.Request.Context(), pageFromQuery(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"companies": companies})
}

func (handler *httpHandler) handleGetCompany(ctx *gin.Context) {
	companyID := ctx.Param("companyId")
	if !canAccessCompany(getClaims(ctx), companyID) {
		ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "company not accessible"))
		return
	}
	company, err := handler.store.GetCompany(ctx.Request.Context(), companyID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, company)
}

type updateCompanyRequest struct {
	Name         *string `json:"name"`
	Address      *string `json:"address"`
	ContactEmail *string `json:"contactEmail"`
	ContactPhone *string `json:"contactPhone"`
	Status       *string `json:"status"`
}

func (handler *httpHandler) handleUpdateCompany(ctx *gin.Context) {
	companyID := ctx.Param("companyId")
	if !canAccessCompany(getClaims(ctx), companyID) {
		ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "company not accessible"))
		return
	}
	var request updateCompanyRequest
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
	if request.ContactEmail != nil {
		fields["contact_email"] = *request.ContactEmail
	}
	if request.ContactPhone != nil {
		fields["contact_phone"] = *request.ContactPhone
	}
	if request.Status != nil {
		if *request.Status != gormstore.CompanyStatusEnabled && *request.Status != gormstore.CompanyStatusDisabled {
			ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "unknown company status"))
			return
		}
		fields["status"] = *request.Status
	}
	if len(fields) == 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "no fields to update"))
		return
	}
	if err := handler.store.UpdateCompany(ctx.Request.Context(), companyID, fields); err != nil {
		handler.respondError(ctx, err)
		return
	}
	company, err := handler.store.GetCompany(ctx.Request.Context(), companyID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, company)
}

func (handler *httpHandler) handleDeleteCompany(ctx *gin.Context) {
	companyID, err := occupancy.NewCompanyID(ctx.Param("companyId"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if _, err := handler.store.GetCompany(ctx.Request.Context(), companyID.String()); err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := handler.occupancy.DeleteCompany(ctx.Request.Context(), companyID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleOnboardingLink(ctx *gin.Context) {
	companyID := ctx.Param("companyId")
	if !canAccessCompany(getClaims(ctx), companyID) {
		ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "company not accessible"))
		return
	}
	url, err := handler.stripe.OnboardingLink(ctx.Request.Context(), companyID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"url": url})
}

func (handler *httpHandler) handleSyncRequirements(ctx *gin.Context) {
	companyID := ctx.Param("companyId")
	if !canAccessCompany(getClaims(ctx), companyID) {
		ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, "company not accessible"))
		return
	}
	company, err := handler.stripe.SyncRequirements(ctx.Request.Context(), companyID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, company)
}
