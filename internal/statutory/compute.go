package statutory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	RegimeNew = "new"
	RegimeOld = "old"
)

var (
	ErrInvalidRegime         = errors.New("invalid tax regime")
	ErrNegativeComponent     = errors.New("salary components must not be negative")
	ErrDeductionsExceedGross = errors.New("deductions exceed gross pay")
)

// SalaryProfile is a monthly salary structure. Money is in paise.
type SalaryProfile struct {
	Basic       int64  `json:"basic"`
	HRA         int64  `json:"hra"`
	Special     int64  `json:"special"`
	Other       int64  `json:"other"`
	State       string `json:"state"`
	Regime      string `json:"tax_regime"`
	Declared80C int64  `json:"declared_80c"`
	Declared80D int64  `json:"declared_80d"`
	PFOptOut    bool   `json:"pf_opt_out"`
	PFUncapped  bool   `json:"pf_uncapped"`
}

func (p SalaryProfile) Gross() int64 {
	return p.Basic + p.HRA + p.Special + p.Other
}

type PF struct {
	Wage        int64 `json:"pf_wage"`
	Employee    int64 `json:"employee"`
	EmployerEPF int64 `json:"employer_epf"`
	EmployerEPS int64 `json:"employer_eps"`
}

type ESI struct {
	Applicable bool  `json:"applicable"`
	Employee   int64 `json:"employee"`
	Employer   int64 `json:"employer"`
}

type TDS struct {
	Regime        string `json:"regime"`
	AnnualGross   int64  `json:"annual_gross"`
	AnnualTaxable int64  `json:"annual_taxable"`
	TaxBeforeCess int64  `json:"tax_before_cess"`
	Rebate        int64  `json:"rebate"`
	Cess          int64  `json:"cess"`
	AnnualTax     int64  `json:"annual_tax"`
	Monthly       int64  `json:"monthly"`
}

type Payslip struct {
	Month           time.Month `json:"month"`
	Basic           int64      `json:"basic"`
	HRA             int64      `json:"hra"`
	Special         int64      `json:"special"`
	Other           int64      `json:"other"`
	Gross           int64      `json:"gross"`
	PF              PF         `json:"pf"`
	ESI             ESI        `json:"esi"`
	ProfessionalTax int64      `json:"professional_tax"`
	TDS             TDS        `json:"tds"`
	TotalDeductions int64      `json:"total_deductions"`
	NetPay          int64      `json:"net_pay"`
	EmployerCost    int64      `json:"employer_cost"`
}

// ComputePayslip applies PF, ESI, professional tax and TDS to one month of
// profile.
func ComputePayslip(rules *Rules, profile SalaryProfile, month time.Month) (Payslip, error) {
	if profile.Basic < 0 || profile.HRA < 0 || profile.Special < 0 || profile.Other < 0 ||
		profile.Declared80C < 0 || profile.Declared80D < 0 {
		return Payslip{}, ErrNegativeComponent
	}
	regime := strings.ToLower(strings.TrimSpace(profile.Regime))
	if regime == "" {
		regime = RegimeNew
	}
	if regime != RegimeNew && regime != RegimeOld {
		return Payslip{}, fmt.Errorf("%w: %q", ErrInvalidRegime, profile.Regime)
	}
	if month < time.January || month > time.December {
		return Payslip{}, fmt.Errorf("invalid month %d", month)
	}

	gross := profile.Gross()
	slip := Payslip{
		Month:   month,
		Basic:   profile.Basic,
		HRA:     profile.HRA,
		Special: profile.Special,
		Other:   profile.Other,
		Gross:   gross,
	}
	slip.PF = rules.ComputePF(profile.Basic, profile.PFOptOut, profile.PFUncapped)
	slip.ESI = rules.ComputeESI(gross)
	slip.ProfessionalTax = rules.MonthlyPT(profile.State, gross, month)
	slip.TDS = rules.ComputeTDS(TDSInput{
		Regime:            regime,
		MonthlyGross:      gross,
		MonthlyPFEmployee: slip.PF.Employee,
		AnnualPT:          rules.AnnualPT(profile.State, gross),
		Declared80C:       profile.Declared80C,
		Declared80D:       profile.Declared80D,
	})

	slip.TotalDeductions = slip.PF.Employee + slip.ESI.Employee + slip.ProfessionalTax + slip.TDS.Monthly
	if slip.TotalDeductions > gross {
		return Payslip{}, ErrDeductionsExceedGross
	}
	slip.NetPay = gross - slip.TotalDeductions
	slip.EmployerCost = gross + slip.PF.EmployerEPF + slip.PF.EmployerEPS + slip.ESI.Employer
	return slip, nil
}

func (r *Rules) ComputePF(basic int64, optOut, uncapped bool) PF {
	ceiling := rupees(r.PF.WageCeiling)
	if optOut && basic > ceiling {
		return PF{}
	}
	wage := basic
	if !uncapped && wage > ceiling {
		wage = ceiling
	}
	employee := roundToRupee(wage*r.PF.EmployeeRateBP, 10000)
	employerTotal := roundToRupee(wage*r.PF.EmployerRateBP, 10000)
	epsWage := wage
	if epsWage > ceiling {
		epsWage = ceiling
	}
	eps := roundToRupee(epsWage*r.PF.EPSRateBP, 10000)
	if capAmount := rupees(r.PF.EPSCap); eps > capAmount {
		eps = capAmount
	}
	return PF{
		Wage:        wage,
		Employee:    employee,
		EmployerEPS: eps,
		EmployerEPF: employerTotal - eps,
	}
}

func (r *Rules) ComputeESI(gross int64) ESI {
	if gross <= 0 || gross > rupees(r.ESI.GrossCeiling) {
		return ESI{}
	}
	return ESI{
		Applicable: true,
		Employee:   ceilToRupee(gross*r.ESI.EmployeeRateBP, 10000),
		Employer:   ceilToRupee(gross*r.ESI.EmployerRateBP, 10000),
	}
}

// MonthlyPT returns the monthly PT for gross in state. States without a
// table pay nothing.
func (r *Rules) MonthlyPT(state string, gross int64, month time.Month) int64 {
	slabs := r.ProfessionalTax[strings.ToUpper(strings.TrimSpace(state))]
	whole := gross / 100
	var amount int64
	for _, slab := range slabs {
		if whole > slab.Above {
			amount = slab.Amount
			if month == time.February && slab.February > 0 {
				amount = slab.February
			}
		}
	}
	return rupees(amount)
}

func (r *Rules) AnnualPT(state string, gross int64) int64 {
	var total int64
	for m := time.January; m <= time.December; m++ {
		total += r.MonthlyPT(state, gross, m)
	}
	return total
}

type TDSInput struct {
	Regime            string
	MonthlyGross      int64
	MonthlyPFEmployee int64
	AnnualPT          int64
	Declared80C       int64
	Declared80D       int64
}

func (r *Rules) ComputeTDS(in TDSInput) TDS {
	regime := r.TDS.New
	if in.Regime == RegimeOld {
		regime = r.TDS.Old
	}
	out := TDS{Regime: in.Regime, AnnualGross: in.MonthlyGross * 12}
	if out.Regime == "" {
		out.Regime = RegimeNew
	}

	taxable := out.AnnualGross - rupees(regime.StandardDeduction)
	if out.Regime == RegimeOld {
		sec80C := in.Declared80C + in.MonthlyPFEmployee*12
		if capAmount := rupees(regime.Section80CCap); sec80C > capAmount {
			sec80C = capAmount
		}
		taxable -= sec80C + in.Declared80D + in.AnnualPT
	}
	if taxable < 0 {
		taxable = 0
	}
	out.AnnualTaxable = taxable

	tax := slabTax(regime.Slabs, taxable)
	limit := rupees(regime.RebateIncomeLimit)
	if taxable <= limit {
		rebate := tax
		if maxRebate := rupees(regime.RebateMax); rebate > maxRebate {
			rebate = maxRebate
		}
		out.Rebate = rebate
		tax -= rebate
	} else if regime.MarginalRelief && tax > taxable-limit {
		out.Rebate = tax - (taxable - limit)
		tax = taxable - limit
	}
	out.TaxBeforeCess = tax
	out.Cess = roundToRupee(tax*r.TDS.CessBP, 10000)
	out.AnnualTax = tax + out.Cess
	out.Monthly = roundToRupee(out.AnnualTax, 12)
	return out
}

// slabTax returns the progressive tax on taxable, rounded to the rupee.
func slabTax(slabs []TaxSlab, taxable int64) int64 {
	var numer int64
	var lower int64
	for _, slab := range slabs {
		upper := rupees(slab.UpTo)
		if slab.UpTo == 0 || upper > taxable {
			upper = taxable
		}
		if upper > lower {
			numer += (upper - lower) * slab.RateBP
		}
		if slab.UpTo == 0 || rupees(slab.UpTo) >= taxable {
			break
		}
		lower = rupees(slab.UpTo)
	}
	return roundToRupee(numer, 10000)
}

func rupees(amount int64) int64 {
	return amount * 100
}

// roundToRupee divides numer by den and rounds half-up to whole rupees.
// numer/den is in paise.
func roundToRupee(numer, den int64) int64 {
	if numer <= 0 {
		return 0
	}
	unit := den * 100
	return (numer + unit/2) / unit * 100
}

// ceilToRupee divides numer by den and rounds up to whole rupees.
func ceilToRupee(numer, den int64) int64 {
	if numer <= 0 {
		return 0
	}
	unit := den * 100
	return (numer + unit - 1) / unit * 100
}
