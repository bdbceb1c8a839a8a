package occupancy

import (
	"context"
	"fmt"
)

// Service contains the occupancy lifecycle logic over a Store.
//
// Every transition that touches more than one record runs inside Store.WithTx,
// so a failure partway leaves no half-rented units or dangling tenant links.
type Service struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// RentUnits creates a tenant and claims every requested unit for them.
//
// A claim only succeeds while the unit is still vacant, so two concurrent
// rentals of the same unit resolve to one success and one ErrUnitOccupied.
// The move-in charge equals the unit's monthly price unless paidInCash is set.
func (service *Service) RentUnits(ctx context.Context, input NewTenantInput, unitIDs []UnitID, paidInCash bool) (TenantID, error) {
	var tenantID TenantID
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := input.Validate(); err != nil {
			return err
		}
		if len(unitIDs) == 0 {
			return fmt.Errorf("%w: at least one unit is required", ErrInvalidTenantInput)
		}
		nowUnixUTC := service.nowFn()
		createdTenantID, err := transactionStore.CreateTenant(ctx, input, TenantStatusActive, nowUnixUTC)
		if err != nil {
			return err
		}
		tenantID = createdTenantID
		for _, unitID := range unitIDs {
			if err := service.claimUnit(ctx, transactionStore, unitID, createdTenantID, paidInCash, nowUnixUTC); err != nil {
				return err
			}
		}
		return service.appendEvent(ctx, transactionStore, EventTypeTenant, EventNameCreated, nil,
			fmt.Sprintf("tenant %s created with %d unit(s)", createdTenantID.String(), len(unitIDs)), nowUnixUTC)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRent,
		TenantID:  tenantID,
		Error:     operationError,
	})
	if operationError != nil {
		return TenantID{}, operationError
	}
	return tenantID, nil
}

// AddUnit claims one more unit for an existing tenant.
func (service *Service) AddUnit(ctx context.Context, tenantID TenantID, unitID UnitID, paidInCash bool) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.GetTenant(ctx, tenantID); err != nil {
			return err
		}
		return service.claimUnit(ctx, transactionStore, unitID, tenantID, paidInCash, service.nowFn())
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationAddUnit,
		TenantID:  tenantID,
		UnitID:    unitID,
		Error:     operationError,
	})
	return operationError
}

// MoveOut releases a unit back to vacant and detaches it from the tenant.
//
// The unit's balance resets to zero and the last move-out date is stamped.
func (service *Service) MoveOut(ctx context.Context, tenantID TenantID, unitID UnitID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		unit, err := transactionStore.GetUnit(ctx, unitID)
		if err != nil {
			return err
		}
		if unit.TenantID == nil || *unit.TenantID != tenantID {
			return ErrUnitNotHeldByTenant
		}
		nowUnixUTC := service.nowFn()
		if err := transactionStore.ReleaseUnit(ctx, unitID, tenantID, nowUnixUTC); err != nil {
			return err
		}
		facilityID := unit.FacilityID
		if err := service.appendEvent(ctx, transactionStore, EventTypeUnit, EventNameMovedOut, &facilityID,
			fmt.Sprintf("unit %s vacated", unit.UnitNumber), nowUnixUTC); err != nil {
			return err
		}
		return service.appendEvent(ctx, transactionStore, EventTypeTenant, EventNameMovedOut, &facilityID,
			fmt.Sprintf("tenant %s moved out of unit %s", tenantID.String(), unit.UnitNumber), nowUnixUTC)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationMoveOut,
		TenantID:  tenantID,
		UnitID:    unitID,
		Error:     operationError,
	})
	return operationError
}

// DeleteUnit removes a unit unless a tenant still holds it.
func (service *Service) DeleteUnit(ctx context.Context, unitID UnitID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		unit, err := transactionStore.GetUnit(ctx, unitID)
		if err != nil {
			return err
		}
		if unit.Occupied() {
			return ErrUnitHasTenant
		}
		if err := transactionStore.DeleteUnit(ctx, unitID); err != nil {
			return err
		}
		facilityID := unit.FacilityID
		return service.appendEvent(ctx, transactionStore, EventTypeUnit, EventNameDeleted, &facilityID,
			fmt.Sprintf("unit %s deleted", unit.UnitNumber), service.nowFn())
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDeleteUnit,
		UnitID:    unitID,
		Error:     operationError,
	})
	return operationError
}

// DeleteTenant removes a tenant unless any unit still references them.
func (service *Service) DeleteTenant(ctx context.Context, tenantID TenantID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.GetTenant(ctx, tenantID); err != nil {
			return err
		}
		held, err := transactionStore.CountTenantUnits(ctx, tenantID)
		if err != nil {
			return err
		}
		if held > 0 {
			return ErrTenantHasUnits
		}
		if err := transactionStore.DeleteTenant(ctx, tenantID); err != nil {
			return err
		}
		return service.appendEvent(ctx, transactionStore, EventTypeTenant, EventNameDeleted, nil,
			fmt.Sprintf("tenant %s deleted", tenantID.String()), service.nowFn())
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDeleteTenant,
		TenantID:  tenantID,
		Error:     operationError,
	})
	return operationError
}

// DeleteFacility removes a facility unless any of its units has a tenant.
func (service *Service) DeleteFacility(ctx context.Context, facilityID FacilityID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		occupied, err := transactionStore.CountFacilityOccupiedUnits(ctx, facilityID)
		if err != nil {
			return err
		}
		if occupied > 0 {
			return ErrFacilityOccupied
		}
		if err := transactionStore.DeleteFacility(ctx, facilityID); err != nil {
			return err
		}
		return service.appendEvent(ctx, transactionStore, EventTypeFacility, EventNameDeleted, &facilityID,
			fmt.Sprintf("facility %s deleted", facilityID.String()), service.nowFn())
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDeleteFacility,
		Error:     operationError,
	})
	return operationError
}

// DeleteCompany removes a company unless facilities still reference it.
func (service *Service) DeleteCompany(ctx context.Context, companyID CompanyID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		facilities, err := transactionStore.CountCompanyFacilities(ctx, companyID)
		if err != nil {
			return err
		}
		if facilities > 0 {
			return ErrCompanyHasFacilities
		}
		if err := transactionStore.DeleteCompany(ctx, companyID); err != nil {
			return err
		}
		return service.appendEvent(ctx, transactionStore, EventTypeCompany, EventNameDeleted, nil,
			fmt.Sprintf("company %s deleted", companyID.String()), service.nowFn())
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDeleteCompany,
		Error:     operationError,
	})
	return operationError
}

func (service *Service) claimUnit(ctx context.Context, transactionStore Store, unitID UnitID, tenantID TenantID, paidInCash bool, nowUnixUTC int64) error {
	unit, err := transactionStore.GetUnit(ctx, unitID)
	if err != nil {
		return err
	}
	balance := unit.PricePerMonthCents
	if paidInCash {
		balance = 0
	}
	if err := transactionStore.ClaimUnit(ctx, unitID, tenantID, nowUnixUTC, balance); err != nil {
		return err
	}
	facilityID := unit.FacilityID
	return service.appendEvent(ctx, transactionStore, EventTypeUnit, EventNameRented, &facilityID,
		fmt.Sprintf("unit %s rented to tenant %s", unit.UnitNumber, tenantID.String()), nowUnixUTC)
}

func (service *Service) appendEvent(ctx context.Context, transactionStore Store, eventType EventType, eventName EventName, facilityID *FacilityID, message string, nowUnixUTC int64) error {
	event, err := NewEvent(eventType, eventName, facilityID, message, nowUnixUTC)
	if err != nil {
		return err
	}
	return transactionStore.AppendEvent(ctx, event)
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
