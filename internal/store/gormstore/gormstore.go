package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19

	errorOperationStore = "store"
	errorSubjectUnit    = "unit"
	errorSubjectTenant  = "tenant"
	errorSubjectCompany = "company"
	errorSubjectEvent   = "event"
	errorSubjectBilling = "billing"
	errorCodeGet        = "get"
	errorCodeClaim      = "claim"
	errorCodeRelease    = "release"
	errorCodeCreate     = "create"
	errorCodeDelete     = "delete"
	errorCodeCount      = "count"
	errorCodeList       = "list"
	errorCodeAppend     = "append"
	errorCodeSweep      = "sweep"
	errorCodeSum        = "sum"
	errorCodeAccrue     = "accrue"
	errorCodeDuplicate  = "duplicate"

	sqlMarkDelinquentUnits = `
		update storage_units set status = 'delinquent'
		where status = 'rented' and tenant_id in (
			select tenant_id from tenants where status = 'active' and balance_cents > 0
		)
	`

	sqlMarkDelinquentTenants = `
		update tenants set status = 'delinquent'
		where status = 'active' and balance_cents > 0
	`
)

// Store implements occupancy.Store using GORM, and carries the CRUD surface
// used by the HTTP API and the Stripe integration.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for migrations.
func (store *Store) DB() *gorm.DB { return store.db }

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore occupancy.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) GetUnit(ctx context.Context, unitID occupancy.UnitID) (occupancy.Unit, error) {
	var model StorageUnit
	err := store.db.WithContext(ctx).Where("unit_id = ?", unitID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return occupancy.Unit{}, wrapStoreError(errorSubjectUnit, errorCodeGet, occupancy.ErrUnitNotFound)
		}
		return occupancy.Unit{}, wrapStoreError(errorSubjectUnit, errorCodeGet, err)
	}
	return mapUnit(model)
}

// ClaimUnit atomically rents a unit: the update only matches while the row is
// still vacant, so concurrent claims resolve to a single winner.
func (store *Store) ClaimUnit(ctx context.Context, unitID occupancy.UnitID, tenantID occupancy.TenantID, moveInUnixUTC int64, balanceCents occupancy.AmountCents) error {
	moveIn := time.Unix(moveInUnixUTC, 0).UTC()
	result := store.db.WithContext(ctx).
		Model(&StorageUnit{}).
		Where("unit_id = ? AND status = ?", unitID.String(), occupancy.UnitStatusVacant.String()).
		Updates(map[string]interface{}{
			"tenant_id":     tenantID.String(),
			"status":        occupancy.UnitStatusRented.String(),
			"availability":  false,
			"balance_cents": balanceCents.Int64(),
			"move_in_date":  moveIn,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectUnit, errorCodeClaim, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := store.db.WithContext(ctx).Model(&StorageUnit{}).Where("unit_id = ?", unitID.String()).Count(&count).Error; err != nil {
			return wrapStoreError(errorSubjectUnit, errorCodeClaim, err)
		}
		if count == 0 {
			return wrapStoreError(errorSubjectUnit, errorCodeClaim, occupancy.ErrUnitNotFound)
		}
		return wrapStoreError(errorSubjectUnit, errorCodeClaim, occupancy.ErrUnitOccupied)
	}
	return nil
}

// ReleaseUnit resets a unit to vacant, conditional on the holding tenant.
func (store *Store) ReleaseUnit(ctx context.Context, unitID occupancy.UnitID, tenantID occupancy.TenantID, moveOutUnixUTC int64) error {
	moveOut := time.Unix(moveOutUnixUTC, 0).UTC()
	result := store.db.WithContext(ctx).
		Model(&StorageUnit{}).
		Where("unit_id = ? AND tenant_id = ?", unitID.String(), tenantID.String()).
		Updates(map[string]interface{}{
			"tenant_id":          nil,
			"status":             occupancy.UnitStatusVacant.String(),
			"availability":       true,
			"balance_cents":      0,
			"move_in_date":       nil,
			"last_move_out_date": moveOut,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectUnit, errorCodeRelease, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectUnit, errorCodeRelease, occupancy.ErrUnitNotHeldByTenant)
	}
	return nil
}

func (store *Store) DeleteUnit(ctx context.Context, unitID occupancy.UnitID) error {
	if err := store.db.WithContext(ctx).Where("unit_id = ?", unitID.String()).Delete(&UnitNote{}).Error; err != nil {
		return wrapStoreError(errorSubjectUnit, errorCodeDelete, err)
	}
	result := store.db.WithContext(ctx).Where("unit_id = ?", unitID.String()).Delete(&StorageUnit{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectUnit, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectUnit, errorCodeDelete, occupancy.ErrUnitNotFound)
	}
	return nil
}

func (store *Store) CreateTenant(ctx context.Context, input occupancy.NewTenantInput, status occupancy.TenantStatus, createdUnixUTC int64) (occupancy.TenantID, error) {
	model := Tenant{
		FirstName:  input.FirstName,
		LastName:   input.LastName,
		Email:      input.Email,
		Phone:      input.Phone,
		Address:    input.Address,
		AccessCode: input.AccessCode,
		Status:     status.String(),
		CreatedAt:  time.Unix(createdUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return occupancy.TenantID{}, wrapStoreError(errorSubjectTenant, errorCodeDuplicate, occupancy.ErrDuplicateName)
	}
	if err != nil {
		return occupancy.TenantID{}, wrapStoreError(errorSubjectTenant, errorCodeCreate, err)
	}
	tenantID, err := occupancy.NewTenantID(model.TenantID)
	if err != nil {
		return occupancy.TenantID{}, wrapStoreError(errorSubjectTenant, errorCodeCreate, err)
	}
	return tenantID, nil
}

func (store *Store) GetTenant(ctx context.Context, tenantID occupancy.TenantID) (occupancy.Tenant, error) {
	var model Tenant
	err := store.db.WithContext(ctx).Where("tenant_id = ?", tenantID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return occupancy.Tenant{}, wrapStoreError(errorSubjectTenant, errorCodeGet, occupancy.ErrTenantNotFound)
		}
		return occupancy.Tenant{}, wrapStoreError(errorSubjectTenant, errorCodeGet, err)
	}
	return mapTenant(model)
}

func (store *Store) ListTenantUnits(ctx context.Context, tenantID occupancy.TenantID) ([]occupancy.Unit, error) {
	var rows []StorageUnit
	err := store.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID.String()).
		Order("unit_number").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectUnit, errorCodeList, err)
	}
	units := make([]occupancy.Unit, 0, len(rows))
	for _, row := range rows {
		unit, mapErr := mapUnit(row)
		if mapErr != nil {
			return nil, mapErr
		}
		units = append(units, unit)
	}
	return units, nil
}

func (store *Store) CountTenantUnits(ctx context.Context, tenantID occupancy.TenantID) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&StorageUnit{}).
		Where("tenant_id = ?", tenantID.String()).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectUnit, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) DeleteTenant(ctx context.Context, tenantID occupancy.TenantID) error {
	if err := store.db.WithContext(ctx).Where("tenant_id = ?", tenantID.String()).Delete(&TenantNote{}).Error; err != nil {
		return wrapStoreError(errorSubjectTenant, errorCodeDelete, err)
	}
	result := store.db.WithContext(ctx).Where("tenant_id = ?", tenantID.String()).Delete(&Tenant{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectTenant, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectTenant, errorCodeDelete, occupancy.ErrTenantNotFound)
	}
	return nil
}

func (store *Store) CountFacilityOccupiedUnits(ctx context.Context, facilityID occupancy.FacilityID) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&StorageUnit{}).
		Where("facility_id = ? AND tenant_id IS NOT NULL", facilityID.String()).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectUnit, errorCodeCount, err)
	}
	return count, nil
}

// DeleteFacility removes a facility together with its (vacant) units. The
// occupancy guard runs before this inside the same transaction.
func (store *Store) DeleteFacility(ctx context.Context, facilityID occupancy.FacilityID) error {
	err := store.db.WithContext(ctx).Where("facility_id = ?", facilityID.String()).Delete(&StorageUnit{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectUnit, errorCodeDelete, err)
	}
	result := store.db.WithContext(ctx).Where("facility_id = ?", facilityID.String()).Delete(&StorageFacility{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectCompany, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCompany, errorCodeDelete, occupancy.ErrFacilityNotFound)
	}
	return nil
}

func (store *Store) CountCompanyFacilities(ctx context.Context, companyID occupancy.CompanyID) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&StorageFacility{}).
		Where("company_id = ?", companyID.String()).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectCompany, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) DeleteCompany(ctx context.Context, companyID occupancy.CompanyID) error {
	result := store.db.WithContext(ctx).Where("company_id = ?", companyID.String()).Delete(&Company{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectCompany, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCompany, errorCodeDelete, occupancy.ErrCompanyNotFound)
	}
	return nil
}

func (store *Store) AppendEvent(ctx context.Context, event occupancy.Event) error {
	var facilityID *string
	if event.FacilityID != nil {
		value := event.FacilityID.String()
		facilityID = &value
	}
	model := Event{
		EventType:  event.Type.String(),
		EventName:  event.Name.String(),
		FacilityID: facilityID,
		Message:    event.Message,
		CreatedAt:  time.Unix(event.CreatedUnixUTC, 0).UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectEvent, errorCodeAppend, err)
	}
	return nil
}

func (store *Store) MarkDelinquentUnits(ctx context.Context, _ int64) (int64, error) {
	result := store.db.WithContext(ctx).Exec(sqlMarkDelinquentUnits)
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectBilling, errorCodeSweep, result.Error)
	}
	return result.RowsAffected, nil
}

func (store *Store) MarkDelinquentTenants(ctx context.Context, _ int64) (int64, error) {
	result := store.db.WithContext(ctx).Exec(sqlMarkDelinquentTenants)
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectBilling, errorCodeSweep, result.Error)
	}
	return result.RowsAffected, nil
}

func (store *Store) ListBillableTenantIDs(ctx context.Context) ([]occupancy.TenantID, error) {
	var rawIDs []string
	err := store.db.WithContext(ctx).
		Model(&Tenant{}).
		Where("status IN ?", []string{occupancy.TenantStatusActive.String(), occupancy.TenantStatusDelinquent.String()}).
		Order("tenant_id").
		Pluck("tenant_id", &rawIDs).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBilling, errorCodeList, err)
	}
	tenantIDs := make([]occupancy.TenantID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		tenantID, parseErr := occupancy.NewTenantID(raw)
		if parseErr != nil {
			return nil, wrapStoreError(errorSubjectBilling, errorCodeList, parseErr)
		}
		tenantIDs = append(tenantIDs, tenantID)
	}
	return tenantIDs, nil
}

func (store *Store) SumTenantMonthlyRate(ctx context.Context, tenantID occupancy.TenantID) (occupancy.AmountCents, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&StorageUnit{}).
		Select("coalesce(sum(price_per_month_cents),0) as total").
		Where("tenant_id = ?", tenantID.String()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBilling, errorCodeSum, err)
	}
	total, err := occupancy.NewAmountCents(sum.Total)
	if err != nil {
		return 0, wrapStoreError(errorSubjectBilling, errorCodeSum, err)
	}
	return total, nil
}

func (store *Store) AddTenantBalance(ctx context.Context, tenantID occupancy.TenantID, delta occupancy.AmountCents) error {
	result := store.db.WithContext(ctx).
		Model(&Tenant{}).
		Where("tenant_id = ?", tenantID.String()).
		Update("balance_cents", gorm.Expr("balance_cents + ?", delta.Int64()))
	if result.Error != nil {
		return wrapStoreError(errorSubjectBilling, errorCodeAccrue, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBilling, errorCodeAccrue, occupancy.ErrTenantNotFound)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return occupancy.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}

func mapUnit(model StorageUnit) (occupancy.Unit, error) {
	unitID, err := occupancy.NewUnitID(model.UnitID)
	if err != nil {
		return occupancy.Unit{}, wrapStoreError(errorSubjectUnit, errorCodeGet, err)
	}
	facilityID, err := occupancy.NewFacilityID(model.FacilityID)
	if err != nil {
		return occupancy.Unit{}, wrapStoreError(errorSubjectUnit, errorCodeGet, err)
	}
	status, err := occupancy.ParseUnitStatus(model.Status)
	if err != nil {
		return occupancy.Unit{}, wrapStoreError(errorSubjectUnit, errorCodeGet, err)
	}
	var tenantID *occupancy.TenantID
	if model.TenantID != nil {
		parsed, parseErr := occupancy.NewTenantID(*model.TenantID)
		if parseErr != nil {
			return occupancy.Unit{}, wrapStoreError(errorSubjectUnit, errorCodeGet, parseErr)
		}
		tenantID = &parsed
	}
	return occupancy.Unit{
		UnitID:             unitID,
		FacilityID:         facilityID,
		TenantID:           tenantID,
		UnitNumber:         model.UnitNumber,
		Status:             status,
		Available:          model.Availability,
		PricePerMonthCents: occupancy.AmountCents(model.PricePerMonthCents),
		BalanceCents:       occupancy.AmountCents(model.BalanceCents),
	}, nil
}

func mapTenant(model Tenant) (occupancy.Tenant, error) {
	tenantID, err := occupancy.NewTenantID(model.TenantID)
	if err != nil {
		return occupancy.Tenant{}, wrapStoreError(errorSubjectTenant, errorCodeGet, err)
	}
	status, err := occupancy.ParseTenantStatus(model.Status)
	if err != nil {
		return occupancy.Tenant{}, wrapStoreError(errorSubjectTenant, errorCodeGet, err)
	}
	return occupancy.Tenant{
		TenantID:     tenantID,
		FirstName:    model.FirstName,
		LastName:     model.LastName,
		Email:        model.Email,
		Phone:        model.Phone,
		Address:      model.Address,
		AccessCode:   model.AccessCode,
		Status:       status,
		BalanceCents: occupancy.AmountCents(model.BalanceCents),
	}, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
