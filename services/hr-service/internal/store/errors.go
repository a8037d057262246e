package store

import "errors"

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrEmployeeExists   = errors.New("employee code already exists")
	ErrCycleNotFound    = errors.New("payroll cycle not found")
	ErrCycleExists      = errors.New("payroll cycle already exists")
	ErrInvalidState     = errors.New("invalid payroll cycle state")
	ErrPayslipFailed    = errors.New("payslip computation failed")
)
