package gst

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// AllowedRatesBP are the GST rates in basis points.
var AllowedRatesBP = []int64{0, 10, 25, 150, 300, 500, 1200, 1800, 2800}

var (
	ErrInvalidRate     = errors.New("gst rate is not allowed")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidAmount   = errors.New("amounts must not be negative")
	ErrDiscountTooHigh = errors.New("discount exceeds line value")
	ErrAmountTooLarge  = errors.New("amount exceeds supported range")
)

const (
	// MaxQuantity bounds a line quantity. Quantities are kept to three
	// decimals.
	MaxQuantity = 1e9
	// MaxAmount bounds unit prices, discounts and line values in paise.
	MaxAmount int64 = 1e15
)

// RateFromPercent converts a percentage such as 18 or 0.25 to basis points.
func RateFromPercent(percent float64) (int64, error) {
	bp := int64(math.Round(percent * 100))
	for _, allowed := range AllowedRatesBP {
		if allowed == bp {
			return bp, nil
		}
	}
	return 0, fmt.Errorf("%w: %v%%", ErrInvalidRate, percent)
}

// Line is one invoice or bill line. Money is in paise.
type Line struct {
	Description string  `json:"description"`
	HSN         string  `json:"hsn"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   int64   `json:"unit_price"`
	Discount    int64   `json:"discount"`
	RateBP      int64   `json:"rate_bp"`

	TaxableValue int64 `json:"taxable_value"`
	CGST         int64 `json:"cgst"`
	SGST         int64 `json:"sgst"`
	IGST         int64 `json:"igst"`
}

func (l Line) Tax() int64 {
	return l.CGST + l.SGST + l.IGST
}

// ComputeLine fills in the taxable value and tax heads of line. Intra-state
// supplies split the rate into CGST and SGST; inter-state supplies pay IGST.
func ComputeLine(line Line, intraState bool) (Line, error) {
	if math.IsNaN(line.Quantity) || line.Quantity <= 0 || line.Quantity > MaxQuantity {
		return Line{}, ErrInvalidQuantity
	}
	if line.UnitPrice < 0 || line.Discount < 0 {
		return Line{}, ErrInvalidAmount
	}
	if line.UnitPrice > MaxAmount || line.Discount > MaxAmount {
		return Line{}, ErrAmountTooLarge
	}
	valid := false
	for _, allowed := range AllowedRatesBP {
		if allowed == line.RateBP {
			valid = true
			break
		}
	}
	if !valid {
		return Line{}, fmt.Errorf("%w: %d bp", ErrInvalidRate, line.RateBP)
	}

	qtyMilli := int64(math.Round(line.Quantity * 1000))
	if qtyMilli <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	if line.UnitPrice > (math.MaxInt64-500)/qtyMilli {
		return Line{}, ErrAmountTooLarge
	}
	gross := (qtyMilli*line.UnitPrice + 500) / 1000
	if gross > MaxAmount {
		return Line{}, ErrAmountTooLarge
	}
	if line.Discount > gross {
		return Line{}, ErrDiscountTooHigh
	}
	line.TaxableValue = gross - line.Discount
	line.CGST, line.SGST, line.IGST = 0, 0, 0
	if intraState {
		half := halfUp(line.TaxableValue*line.RateBP, 20000)
		line.CGST = half
		line.SGST = half
	} else {
		line.IGST = halfUp(line.TaxableValue*line.RateBP, 10000)
	}
	return line, nil
}

type Totals struct {
	TaxableValue int64 `json:"taxable_value"`
	CGST         int64 `json:"cgst"`
	SGST         int64 `json:"sgst"`
	IGST         int64 `json:"igst"`
	Total        int64 `json:"total"`
}

// Summarize adds up computed lines. It fails rather than wrap when a sum
// leaves the int64 range.
func Summarize(lines []Line) (Totals, error) {
	var t Totals
	ok := true
	add := func(a, b int64) int64 {
		sum, fits := addPaise(a, b)
		ok = ok && fits
		return sum
	}
	for _, line := range lines {
		t.TaxableValue = add(t.TaxableValue, line.TaxableValue)
		t.CGST = add(t.CGST, line.CGST)
		t.SGST = add(t.SGST, line.SGST)
		t.IGST = add(t.IGST, line.IGST)
	}
	t.Total = add(add(add(t.TaxableValue, t.CGST), t.SGST), t.IGST)
	if !ok {
		return Totals{}, ErrAmountTooLarge
	}
	return t, nil
}

func addPaise(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

// FinancialYear labels the April-March year containing date, e.g. "2025-26".
func FinancialYear(date time.Time) string {
	start := date.Year()
	if date.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

func InvoiceNumber(financialYear string, seq int64) string {
	return fmt.Sprintf("INV/%s/%06d", financialYear, seq)
}

// ParsePeriod parses a YYYY-MM return period into its [start, end) range.
func ParsePeriod(period string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("period must be YYYY-MM: %w", err)
	}
	return start, start.AddDate(0, 1, 0), nil
}

func halfUp(numer, den int64) int64 {
	if numer <= 0 {
		return 0
	}
	return (numer + den/2) / den
}
