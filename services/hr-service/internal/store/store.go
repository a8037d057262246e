package store

import (
	"context"
	"time"

	"payaid/services/hr-service/internal/models"
)

// EmployeeInput carries the writable employee fields. Money is in paise.
type EmployeeInput struct {
	TenantID           string
	Code               string
	Name               string
	Email              string
	State              string
	DateOfJoining      time.Time
	Basic              int64
	HRA                int64
	Special            int64
	Other              int64
	TaxRegime          string
	Declared80C        int64
	Declared80D        int64
	PFOptOut           bool
	PFUncapped         bool
	Status             string
	LastRaiseAt        *time.Time
	PerformanceRating  *int
	LeaveDaysYTD       int
	OvertimeHoursMonth int
	EngagementScore    *int
}

type EmployeeFilter struct {
	Status string
}

type CreateCycleInput struct {
	TenantID  string
	Year      int
	Month     int
	CreatedBy string
}

type CycleActionInput struct {
	TenantID   string
	CycleID    string
	Action     string
	ActorID    string
	OccurredAt time.Time
}

type EmployeeStore interface {
	ListEmployees(ctx context.Context, tenantID string, filter EmployeeFilter) ([]models.Employee, error)
	GetEmployee(ctx context.Context, tenantID, employeeID string) (models.Employee, error)
	CreateEmployee(ctx context.Context, input EmployeeInput) (models.Employee, error)
	UpdateEmployee(ctx context.Context, employeeID string, input EmployeeInput) (models.Employee, error)
}

type PayrollStore interface {
	ListCycles(ctx context.Context, tenantID string) ([]models.PayrollCycle, error)
	GetCycle(ctx context.Context, tenantID, cycleID string) (models.PayrollCycle, error)
	CreateCycle(ctx context.Context, input CreateCycleInput) (models.PayrollCycle, error)
	TransitionCycle(ctx context.Context, input CycleActionInput) (models.PayrollCycle, error)
	ListPayslips(ctx context.Context, tenantID, cycleID string) ([]models.Payslip, error)
	ListPayrollEvents(ctx context.Context, tenantID, cycleID string) ([]PayrollEvent, error)
}

type Store interface {
	EmployeeStore
	PayrollStore
}
