package gst

import "time"

// Purchase is an inward supply recorded for input tax credit.
type Purchase struct {
	BillID        string    `json:"bill_id"`
	SupplierName  string    `json:"supplier_name"`
	SupplierGSTIN string    `json:"supplier_gstin"`
	BillNumber    string    `json:"bill_number"`
	BillDate      time.Time `json:"bill_date"`
	TaxableValue  int64     `json:"taxable_value"`
	CGST          int64     `json:"cgst"`
	SGST          int64     `json:"sgst"`
	IGST          int64     `json:"igst"`
	ITCEligible   bool      `json:"itc_eligible"`
}

type TaxHeads struct {
	IGST int64 `json:"igst"`
	CGST int64 `json:"cgst"`
	SGST int64 `json:"sgst"`
}

func (t TaxHeads) Total() int64 {
	return t.IGST + t.CGST + t.SGST
}

type Supplies struct {
	TaxableValue int64 `json:"taxable_value"`
	TaxHeads
}

type Utilization struct {
	Credit    string `json:"credit"`
	Liability string `json:"liability"`
	Amount    int64  `json:"amount"`
}

type SetOff struct {
	Utilized     []Utilization `json:"utilized"`
	CashPayable  TaxHeads      `json:"cash_payable"`
	CarryForward TaxHeads      `json:"carry_forward"`
}

type GSTR3B struct {
	Period        string   `json:"period"`
	OutwardTaxed  Supplies `json:"outward_taxable_3_1_a"`
	OutwardNil    Supplies `json:"outward_nil_rated_3_1_c"`
	EligibleITC   TaxHeads `json:"eligible_itc_4a"`
	IneligibleITC TaxHeads `json:"ineligible_itc_4d"`
	SetOff        SetOff   `json:"set_off"`
}

// BuildGSTR3B computes the monthly summary return: outward liability, input
// tax credit and the credit set-off.
func BuildGSTR3B(period string, invoices []Invoice, purchases []Purchase) GSTR3B {
	report := GSTR3B{Period: period}
	for _, inv := range invoices {
		if inv.Status != InvoiceIssued {
			continue
		}
		for _, line := range inv.Lines {
			if line.RateBP == 0 {
				report.OutwardNil.TaxableValue += line.TaxableValue
				continue
			}
			report.OutwardTaxed.TaxableValue += line.TaxableValue
			report.OutwardTaxed.IGST += line.IGST
			report.OutwardTaxed.CGST += line.CGST
			report.OutwardTaxed.SGST += line.SGST
		}
	}
	for _, bill := range purchases {
		heads := TaxHeads{IGST: bill.IGST, CGST: bill.CGST, SGST: bill.SGST}
		if bill.ITCEligible {
			report.EligibleITC = addHeads(report.EligibleITC, heads)
		} else {
			report.IneligibleITC = addHeads(report.IneligibleITC, heads)
		}
	}
	report.SetOff = ApplySetOff(report.OutwardTaxed.TaxHeads, report.EligibleITC)
	return report
}

// ApplySetOff uses credit against liability in the statutory order: IGST
// credit against IGST, CGST, SGST; then CGST credit against CGST, IGST; then
// SGST credit against SGST, IGST. CGST credit never pays SGST or the
// reverse.
func ApplySetOff(liability, credit TaxHeads) SetOff {
	var out SetOff
	use := func(creditName string, from *int64, liabilityName string, to *int64) {
		amount := *from
		if *to < amount {
			amount = *to
		}
		if amount <= 0 {
			return
		}
		*from -= amount
		*to -= amount
		out.Utilized = append(out.Utilized, Utilization{Credit: creditName, Liability: liabilityName, Amount: amount})
	}

	use("igst", &credit.IGST, "igst", &liability.IGST)
	use("igst", &credit.IGST, "cgst", &liability.CGST)
	use("igst", &credit.IGST, "sgst", &liability.SGST)
	use("cgst", &credit.CGST, "cgst", &liability.CGST)
	use("cgst", &credit.CGST, "igst", &liability.IGST)
	use("sgst", &credit.SGST, "sgst", &liability.SGST)
	use("sgst", &credit.SGST, "igst", &liability.IGST)

	out.CashPayable = liability
	out.CarryForward = credit
	return out
}

func addHeads(a, b TaxHeads) TaxHeads {
	return TaxHeads{IGST: a.IGST + b.IGST, CGST: a.CGST + b.CGST, SGST: a.SGST + b.SGST}
}
