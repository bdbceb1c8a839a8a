package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500

	errorSubjectFacility = "facility"
	errorSubjectRental   = "rental"
	errorSubjectPayment  = "payment"
	errorSubjectUser     = "user"
	errorCodeUpdate      = "update"
)

// Page bounds a list query. Zero values fall back to the defaults.
type Page struct {
	Limit  int
	Offset int
}

func (page Page) apply(query *gorm.DB) *gorm.DB {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	return query.Limit(limit).Offset(offset)
}

// CreateCompany inserts a company row. The caller supplies the Stripe account
// id; rows are never created without one.
func (store *Store) CreateCompany(ctx context.Context, company *Company) error {
	err := store.db.WithContext(ctx).Create(company).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectCompany, errorCodeDuplicate, occupancy.ErrDuplicateName)
	}
	if err != nil {
		return wrapStoreError(errorSubjectCompany, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetCompany(ctx context.Context, companyID string) (Company, error) {
	var company Company
	err := store.db.WithContext(ctx).Where("company_id = ?", companyID).Take(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Company{}, wrapStoreError(errorSubjectCompany, errorCodeGet, occupancy.ErrCompanyNotFound)
		}
		return Company{}, wrapStoreError(errorSubjectCompany, errorCodeGet, err)
	}
	return company, nil
}

func (store *Store) GetCompanyByStripeAccount(ctx context.Context, stripeAccountID string) (Company, error) {
	var company Company
	err := store.db.WithContext(ctx).Where("stripe_account_id = ?", stripeAccountID).Take(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Company{}, wrapStoreError(errorSubjectCompany, errorCodeGet, occupancy.ErrCompanyNotFound)
		}
		return Company{}, wrapStoreError(errorSubjectCompany, errorCodeGet, err)
	}
	return company, nil
}

func (store *Store) ListCompanies(ctx context.Context, page Page) ([]Company, error) {
	var companies []Company
	err := page.apply(store.db.WithContext(ctx).Order("name")).Find(&companies).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectCompany, errorCodeList, err)
	}
	return companies, nil
}

// UpdateCompany applies the given column set to an existing row.
func (store *Store) UpdateCompany(ctx context.Context, companyID string, fields map[string]interface{}) error {
	result := store.db.WithContext(ctx).Model(&Company{}).Where("company_id = ?", companyID).Updates(fields)
	if isUniqueViolation(result.Error) {
		return wrapStoreError(errorSubjectCompany, errorCodeDuplicate, occupancy.ErrDuplicateName)
	}
	if result.Error != nil {
		return wrapStoreError(errorSubjectCompany, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCompany, errorCodeUpdate, occupancy.ErrCompanyNotFound)
	}
	return nil
}

func (store *Store) CreateFacility(ctx context.Context, facility *StorageFacility) error {
	err := store.db.WithContext(ctx).Create(facility).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectFacility, errorCodeDuplicate, occupancy.ErrDuplicateName)
	}
	if err != nil {
		return wrapStoreError(errorSubjectFacility, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetFacility(ctx context.Context, facilityID string) (StorageFacility, error) {
	var facility StorageFacility
	err := store.db.WithContext(ctx).Where("facility_id = ?", facilityID).Take(&facility).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StorageFacility{}, wrapStoreError(errorSubjectFacility, errorCodeGet, occupancy.ErrFacilityNotFound)
		}
		return StorageFacility{}, wrapStoreError(errorSubjectFacility, errorCodeGet, err)
	}
	return facility, nil
}

// ListFacilities returns facilities, optionally scoped to one company.
func (store *Store) ListFacilities(ctx context.Context, companyID string, page Page) ([]StorageFacility, error) {
	query := store.db.WithContext(ctx).Order("name")
	if companyID != "" {
		query = query.Where("company_id = ?", companyID)
	}
	var facilities []StorageFacility
	if err := page.apply(query).Find(&facilities).Error; err != nil {
		return nil, wrapStoreError(errorSubjectFacility, errorCodeList, err)
	}
	return facilities, nil
}

func (store *Store) UpdateFacility(ctx context.Context, facilityID string, fields map[string]interface{}) error {
	result := store.db.WithContext(ctx).Model(&StorageFacility{}).Where("facility_id = ?", facilityID).Updates(fields)
	if isUniqueViolation(result.Error) {
		return wrapStoreError(errorSubjectFacility, errorCodeDuplicate, occupancy.ErrDuplicateName)
	}
	if result.Error != nil {
		return wrapStoreError(errorSubjectFacility, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectFacility, errorCodeUpdate, occupancy.ErrFacilityNotFound)
	}
	return nil
}

func (store *Store) CreateUnit(ctx context.Context, unit *StorageUnit) error {
	err := store.db.WithContext(ctx).Create(unit).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectUnit, errorCodeDuplicate, occupancy.ErrDuplicateName)
	}
	if err != nil {
		return wrapStoreError(errorSubjectUnit, errorCodeCreate, err)
	}
	return nil
}

// GetUnitModel returns the full persistence row, including Stripe linkage the
// occupancy view does not carry.
func (store *Store) GetUnitModel(ctx context.Context, unitID string) (StorageUnit, error) {
	var unit StorageUnit
	err := store.db.WithContext(ctx).Where("unit_id = ?", unitID).Take(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StorageUnit{}, wrapStoreError(errorSubjectUnit, errorCodeGet, occupancy.ErrUnitNotFound)
		}
		return StorageUnit{}, wrapStoreError(errorSubjectUnit, errorCodeGet, err)
	}
	return unit, nil
}

// ListUnits returns units for a facility. When availableOnly is set, only
// vacant units marked available are returned.
func (store *Store) ListUnits(ctx context.Context, facilityID string, availableOnly bool, page Page) ([]StorageUnit, error) {
	query := store.db.WithContext(ctx).Order("unit_number")
	if facilityID != "" {
		query = query.Where("facility_id = ?", facilityID)
	}
	if availableOnly {
		query = query.Where("availability = ? AND status = ?", true, occupancy.UnitStatusVacant.String())
	}
	var units []StorageUnit
	if err := page.apply(query).Find(&units).Error; err != nil {
		return nil, wrapStoreError(errorSubjectUnit, errorCodeList, err)
	}
	return units, nil
}

func (store *Store) UpdateUnit(ctx context.Context, unitID string, fields map[string]interface{}) error {
	result := store.db.WithContext(ctx).Model(&StorageUnit{}).Where("unit_id = ?", unitID).Updates(fields)
	if isUniqueViolation(result.Error) {
		return wrapStoreError(errorSubjectUnit, errorCodeDuplicate, occupancy.ErrDuplicateName)
	}
	if result.Error != nil {
		return wrapStoreError(errorSubjectUnit, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectUnit, errorCodeUpdate, occupancy.ErrUnitNotFound)
	}
	return nil
}

func (store *Store) CreateUnitNote(ctx context.Context, note *UnitNote) error {
	if err := store.db.WithContext(ctx).Create(note).Error; err != nil {
		return wrapStoreError(errorSubjectUnit, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) ListUnitNotes(ctx context.Context, unitID string) ([]UnitNote, error) {
	var notes []UnitNote
	err := store.db.WithContext(ctx).Where("unit_id = ?", unitID).Order("created_at desc").Find(&notes).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectUnit, errorCodeList, err)
	}
	return notes, nil
}

func (store *Store) GetTenantModel(ctx context.Context, tenantID string) (Tenant, error) {
	var tenant Tenant
	err := store.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Take(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Tenant{}, wrapStoreError(errorSubjectTenant, errorCodeGet, occupancy.ErrTenantNotFound)
		}
		return Tenant{}, wrapStoreError(errorSubjectTenant, errorCodeGet, err)
	}
	return tenant, nil
}

func (store *Store) ListTenants(ctx context.Context, page Page) ([]Tenant, error) {
	var tenants []Tenant
	err := page.apply(store.db.WithContext(ctx).Order("last_name, first_name")).Find(&tenants).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTenant, errorCodeList, err)
	}
	return tenants, nil
}

// ListAllTenants streams the complete tenant table, used by the CSV export.
func (store *Store) ListAllTenants(ctx context.Context) ([]Tenant, error) {
	var tenants []Tenant
	err := store.db.WithContext(ctx).Order("last_name, first_name").Find(&tenants).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTenant, errorCodeList, err)
	}
	return tenants, nil
}

func (store *Store) UpdateTenant(ctx context.Context, tenantID string, fields map[string]interface{}) error {
	result := store.db.WithContext(ctx).Model(&Tenant{}).Where("tenant_id = ?", tenantID).Updates(fields)
	if isUniqueViolation(result.Error) {
		return wrapStoreError(errorSubjectTenant, errorCodeDuplicate, occupancy.ErrDuplicateName)
	}
	if result.Error != nil {
		return wrapStoreError(errorSubjectTenant, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectTenant, errorCodeUpdate, occupancy.ErrTenantNotFound)
	}
	return nil
}

func (store *Store) CreateTenantNote(ctx context.Context, note *TenantNote) error {
	if err := store.db.WithContext(ctx).Create(note).Error; err != nil {
		return wrapStoreError(errorSubjectTenant, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) ListTenantNotes(ctx context.Context, tenantID string) ([]TenantNote, error) {
	var notes []TenantNote
	err := store.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at desc").Find(&notes).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTenant, errorCodeList, err)
	}
	return notes, nil
}

// EventFilter narrows ListEvents. Empty fields match everything. CompanyID
// restricts results to events attached to that company's facilities, which
// excludes system-level events with no facility reference.
type EventFilter struct {
	EventType  string
	FacilityID string
	CompanyID  string
}

func (store *Store) ListEvents(ctx context.Context, filter EventFilter, page Page) ([]Event, error) {
	query := store.db.WithContext(ctx).Order("event_id desc")
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.FacilityID != "" {
		query = query.Where("facility_id = ?", filter.FacilityID)
	}
	if filter.CompanyID != "" {
		facilityIDs := store.db.Model(&StorageFacility{}).Select("facility_id").Where("company_id = ?", filter.CompanyID)
		query = query.Where("facility_id IN (?)", facilityIDs)
	}
	var events []Event
	if err := page.apply(query).Find(&events).Error; err != nil {
		return nil, wrapStoreError(errorSubjectEvent, errorCodeList, err)
	}
	return events, nil
}

func (store *Store) CreateRental(ctx context.Context, rental *Rental) error {
	err := store.db.WithContext(ctx).Create(rental).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectRental, errorCodeDuplicate, occupancy.ErrDuplicateName)
	}
	if err != nil {
		return wrapStoreError(errorSubjectRental, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetRentalBySession(ctx context.Context, checkoutSessionID string) (Rental, error) {
	var rental Rental
	err := store.db.WithContext(ctx).Where("checkout_session_id = ?", checkoutSessionID).Take(&rental).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Rental{}, wrapStoreError(errorSubjectRental, errorCodeGet, occupancy.ErrRentalNotFound)
		}
		return Rental{}, wrapStoreError(errorSubjectRental, errorCodeGet, err)
	}
	return rental, nil
}

func (store *Store) ListRentals(ctx context.Context, companyID string, page Page) ([]Rental, error) {
	query := store.db.WithContext(ctx).Order("created_at desc")
	if companyID != "" {
		query = query.Where("company_id = ?", companyID)
	}
	var rentals []Rental
	if err := page.apply(query).Find(&rentals).Error; err != nil {
		return nil, wrapStoreError(errorSubjectRental, errorCodeList, err)
	}
	return rentals, nil
}

// SetRentalStatusBySession advances a rental's checkout state.
func (store *Store) SetRentalStatusBySession(ctx context.Context, checkoutSessionID string, status string) error {
	result := store.db.WithContext(ctx).
		Model(&Rental{}).
		Where("checkout_session_id = ?", checkoutSessionID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return wrapStoreError(errorSubjectRental, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectRental, errorCodeUpdate, occupancy.ErrRentalNotFound)
	}
	return nil
}

func (store *Store) CreatePayment(ctx context.Context, payment *Payment) error {
	err := store.db.WithContext(ctx).Create(payment).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectPayment, errorCodeDuplicate, occupancy.ErrDuplicateName)
	}
	if err != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) ListTenantPayments(ctx context.Context, tenantID string, page Page) ([]Payment, error) {
	var payments []Payment
	err := page.apply(store.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at desc")).Find(&payments).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectPayment, errorCodeList, err)
	}
	return payments, nil
}

func (store *Store) CreateUser(ctx context.Context, user *User) error {
	err := store.db.WithContext(ctx).Create(user).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectUser, errorCodeDuplicate, occupancy.ErrDuplicateName)
	}
	if err != nil {
		return wrapStoreError(errorSubjectUser, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := store.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, wrapStoreError(errorSubjectUser, errorCodeGet, occupancy.ErrUserNotFound)
		}
		return User{}, wrapStoreError(errorSubjectUser, errorCodeGet, err)
	}
	return user, nil
}

func (store *Store) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := store.db.WithContext(ctx).Where("user_id = ?", userID).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, wrapStoreError(errorSubjectUser, errorCodeGet, occupancy.ErrUserNotFound)
		}
		return User{}, wrapStoreError(errorSubjectUser, errorCodeGet, err)
	}
	return user, nil
}
