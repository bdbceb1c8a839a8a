package occupancy

const (
	operationRent           = "rent"
	operationAddUnit        = "add_unit"
	operationMoveOut        = "move_out"
	operationDeleteUnit     = "delete_unit"
	operationDeleteTenant   = "delete_tenant"
	operationDeleteFacility = "delete_facility"
	operationDeleteCompany  = "delete_company"
	operationSweep          = "sweep_delinquency"
	operationAccrue         = "accrue_monthly"

	operationStatusOK    = "ok"
	operationStatusError = "error"
)
