package models

import (
	"time"

	"payaid/internal/scoring"
	"payaid/internal/statutory"
)

const (
	EmployeeActive = "active"
	EmployeeExited = "exited"
)

// Employee amounts are monthly and in paise.
type Employee struct {
	EmployeeID         string     `json:"employee_id"`
	TenantID           string     `json:"tenant_id"`
	Code               string     `json:"code"`
	Name               string     `json:"name"`
	Email              string     `json:"email,omitempty"`
	State              string     `json:"state"`
	DateOfJoining      time.Time  `json:"date_of_joining"`
	Basic              int64      `json:"basic"`
	HRA                int64      `json:"hra"`
	Special            int64      `json:"special"`
	Other              int64      `json:"other"`
	TaxRegime          string     `json:"tax_regime"`
	Declared80C        int64      `json:"declared_80c"`
	Declared80D        int64      `json:"declared_80d"`
	PFOptOut           bool       `json:"pf_opt_out"`
	PFUncapped         bool       `json:"pf_uncapped"`
	Status             string     `json:"status"`
	LastRaiseAt        *time.Time `json:"last_raise_at,omitempty"`
	PerformanceRating  *int       `json:"performance_rating,omitempty"`
	LeaveDaysYTD       int        `json:"leave_days_ytd"`
	OvertimeHoursMonth int        `json:"overtime_hours_month"`
	EngagementScore    *int       `json:"engagement_score,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (e Employee) SalaryProfile() statutory.SalaryProfile {
	return statutory.SalaryProfile{
		Basic:       e.Basic,
		HRA:         e.HRA,
		Special:     e.Special,
		Other:       e.Other,
		State:       e.State,
		Regime:      e.TaxRegime,
		Declared80C: e.Declared80C,
		Declared80D: e.Declared80D,
		PFOptOut:    e.PFOptOut,
		PFUncapped:  e.PFUncapped,
	}
}

func (e Employee) RiskInputs() scoring.Inputs {
	return scoring.Inputs{
		DateOfJoining:      e.DateOfJoining,
		LastRaiseAt:        e.LastRaiseAt,
		PerformanceRating:  e.PerformanceRating,
		EngagementScore:    e.EngagementScore,
		LeaveDaysYTD:       e.LeaveDaysYTD,
		OvertimeHoursMonth: e.OvertimeHoursMonth,
	}
}

type FlightRisk struct {
	EmployeeID string `json:"employee_id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	scoring.Result
}
