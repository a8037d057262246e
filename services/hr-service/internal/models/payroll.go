package models

import (
	"encoding/json"
	"time"
)

const (
	CycleDraft     = "draft"
	CycleProcessed = "processed"
	CycleApproved  = "approved"
	CyclePaid      = "paid"
	CycleCancelled = "cancelled"
)

type PayrollCycle struct {
	CycleID           string    `json:"cycle_id"`
	TenantID          string    `json:"tenant_id"`
	Year              int       `json:"year"`
	Month             int       `json:"month"`
	Status            string    `json:"status"`
	EmployeeCount     int       `json:"employee_count"`
	TotalGross        int64     `json:"total_gross"`
	TotalDeductions   int64     `json:"total_deductions"`
	TotalNet          int64     `json:"total_net"`
	TotalEmployerCost int64     `json:"total_employer_cost"`
	CreatedBy         string    `json:"created_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Payslip is a stored payslip row. Detail holds the full computation.
type Payslip struct {
	PayslipID       string          `json:"payslip_id"`
	CycleID         string          `json:"cycle_id"`
	EmployeeID      string          `json:"employee_id"`
	EmployeeCode    string          `json:"employee_code"`
	EmployeeName    string          `json:"employee_name"`
	Gross           int64           `json:"gross"`
	PFEmployee      int64           `json:"pf_employee"`
	PFEmployerEPF   int64           `json:"pf_employer_epf"`
	PFEmployerEPS   int64           `json:"pf_employer_eps"`
	ESIEmployee     int64           `json:"esi_employee"`
	ESIEmployer     int64           `json:"esi_employer"`
	ProfessionalTax int64           `json:"professional_tax"`
	TDS             int64           `json:"tds"`
	TotalDeductions int64           `json:"total_deductions"`
	NetPay          int64           `json:"net_pay"`
	EmployerCost    int64           `json:"employer_cost"`
	Detail          json.RawMessage `json:"detail"`
	CreatedAt       time.Time       `json:"created_at"`
}
