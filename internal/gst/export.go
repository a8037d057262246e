package gst

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

const (
	ReportGSTR1 = "gstr1"
	ReportHSN   = "hsn"
)

// WriteCSV renders report as CSV. Amounts are written in rupees with two
// decimals.
func WriteCSV(w io.Writer, report string, r GSTR1) error {
	cw := csv.NewWriter(w)
	var err error
	switch report {
	case ReportGSTR1:
		err = writeGSTR1Rows(cw, r)
	case ReportHSN:
		err = writeHSNRows(cw, r)
	default:
		return fmt.Errorf("unknown report %q", report)
	}
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func writeGSTR1Rows(cw *csv.Writer, r GSTR1) error {
	if err := cw.Write([]string{"section", "ctin", "invoice_number", "invoice_date", "place_of_supply", "rate", "taxable_value", "igst", "cgst", "sgst"}); err != nil {
		return err
	}
	for _, entry := range r.B2B {
		for _, doc := range entry.Invoices {
			for _, item := range doc.Items {
				if err := cw.Write(itemRow("b2b", entry.GSTIN, doc, item)); err != nil {
					return err
				}
			}
		}
	}
	for _, doc := range r.B2CL {
		for _, item := range doc.Items {
			if err := cw.Write(itemRow("b2cl", "", doc, item)); err != nil {
				return err
			}
		}
	}
	for _, entry := range r.B2CS {
		doc := DocumentEntry{PlaceOfSupply: entry.PlaceOfSupply}
		if err := cw.Write(itemRow("b2cs", "", doc, entry.RateItem)); err != nil {
			return err
		}
	}
	return nil
}

func writeHSNRows(cw *csv.Writer, r GSTR1) error {
	if err := cw.Write([]string{"hsn", "rate", "quantity", "taxable_value", "igst", "cgst", "sgst", "total_value"}); err != nil {
		return err
	}
	for _, entry := range r.HSN {
		row := []string{
			entry.HSN,
			rateString(entry.RateBP),
			strconv.FormatFloat(entry.Quantity, 'f', -1, 64),
			amount(entry.Taxable),
			amount(entry.IGST),
			amount(entry.CGST),
			amount(entry.SGST),
			amount(entry.TotalValue),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func itemRow(section, ctin string, doc DocumentEntry, item RateItem) []string {
	return []string{
		section,
		ctin,
		doc.Number,
		doc.Date,
		doc.PlaceOfSupply,
		rateString(item.RateBP),
		amount(item.TaxableValue),
		amount(item.IGST),
		amount(item.CGST),
		amount(item.SGST),
	}
}

func amount(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	return fmt.Sprintf("%s%d.%02d", sign, paise/100, paise%100)
}

func rateString(bp int64) string {
	return strconv.FormatFloat(float64(bp)/100, 'f', -1, 64)
}
