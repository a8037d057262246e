package gst

import (
	"sort"
	"time"
)

// DefaultB2CLThreshold is the invoice value (₹1,00,000) above which an
// inter-state B2C invoice is reported individually.
const DefaultB2CLThreshold int64 = 100000 * 100

const (
	InvoiceDraft     = "draft"
	InvoiceIssued    = "issued"
	InvoiceCancelled = "cancelled"
)

// Invoice is an outward supply as the return builders see it.
type Invoice struct {
	InvoiceID     string    `json:"invoice_id"`
	Number        string    `json:"invoice_number"`
	Status        string    `json:"status"`
	Date          time.Time `json:"invoice_date"`
	CustomerName  string    `json:"customer_name"`
	CustomerGSTIN string    `json:"customer_gstin,omitempty"`
	SupplierState string    `json:"supplier_state"`
	PlaceOfSupply string    `json:"place_of_supply"`
	Lines         []Line    `json:"lines"`
	Totals
}

func (inv Invoice) InterState() bool {
	return inv.SupplierState != inv.PlaceOfSupply
}

func (inv Invoice) B2B() bool {
	return inv.CustomerGSTIN != ""
}

type RateItem struct {
	RateBP       int64 `json:"rate_bp"`
	TaxableValue int64 `json:"taxable_value"`
	IGST         int64 `json:"igst"`
	CGST         int64 `json:"cgst"`
	SGST         int64 `json:"sgst"`
}

type DocumentEntry struct {
	Number        string     `json:"invoice_number"`
	Date          string     `json:"invoice_date"`
	Value         int64      `json:"invoice_value"`
	PlaceOfSupply string     `json:"place_of_supply"`
	Items         []RateItem `json:"items"`
}

type B2BEntry struct {
	GSTIN    string          `json:"ctin"`
	Invoices []DocumentEntry `json:"invoices"`
}

type B2CSEntry struct {
	PlaceOfSupply string `json:"place_of_supply"`
	SupplyType    string `json:"supply_type"`
	RateItem
}

type HSNEntry struct {
	HSN        string  `json:"hsn"`
	RateBP     int64   `json:"rate_bp"`
	Quantity   float64 `json:"quantity"`
	Taxable    int64   `json:"taxable_value"`
	IGST       int64   `json:"igst"`
	CGST       int64   `json:"cgst"`
	SGST       int64   `json:"sgst"`
	TotalValue int64   `json:"total_value"`
}

type DocumentSummary struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Total     int    `json:"total"`
	Cancelled int    `json:"cancelled"`
	Net       int    `json:"net_issued"`
}

type GSTR1 struct {
	Period    string          `json:"period"`
	B2B       []B2BEntry      `json:"b2b"`
	B2CL      []DocumentEntry `json:"b2cl"`
	B2CS      []B2CSEntry     `json:"b2cs"`
	HSN       []HSNEntry      `json:"hsn"`
	Documents DocumentSummary `json:"documents"`
	Totals    Totals          `json:"totals"`
}

type GSTR1Options struct {
	B2CLThreshold int64
}

// BuildGSTR1 summarises the outward supplies of a period. Issued invoices
// feed every section; cancelled ones only count in the document summary.
func BuildGSTR1(period string, invoices []Invoice, opts GSTR1Options) GSTR1 {
	threshold := opts.B2CLThreshold
	if threshold <= 0 {
		threshold = DefaultB2CLThreshold
	}

	report := GSTR1{Period: period, B2B: []B2BEntry{}, B2CL: []DocumentEntry{}, B2CS: []B2CSEntry{}, HSN: []HSNEntry{}}
	b2b := map[string]*B2BEntry{}
	type b2csKey struct {
		pos  string
		rate int64
	}
	b2cs := map[b2csKey]*B2CSEntry{}
	type hsnKey struct {
		hsn  string
		rate int64
	}
	hsn := map[hsnKey]*HSNEntry{}

	var numbers []string
	for _, inv := range invoices {
		if inv.Number != "" && (inv.Status == InvoiceIssued || inv.Status == InvoiceCancelled) {
			numbers = append(numbers, inv.Number)
			report.Documents.Total++
			if inv.Status == InvoiceCancelled {
				report.Documents.Cancelled++
			}
		}
		if inv.Status != InvoiceIssued {
			continue
		}

		report.Totals.TaxableValue += inv.TaxableValue
		report.Totals.CGST += inv.CGST
		report.Totals.SGST += inv.SGST
		report.Totals.IGST += inv.IGST
		report.Totals.Total += inv.Total

		switch {
		case inv.B2B():
			entry, ok := b2b[inv.CustomerGSTIN]
			if !ok {
				entry = &B2BEntry{GSTIN: inv.CustomerGSTIN}
				b2b[inv.CustomerGSTIN] = entry
			}
			entry.Invoices = append(entry.Invoices, documentEntry(inv))
		case inv.InterState() && inv.Total > threshold:
			report.B2CL = append(report.B2CL, documentEntry(inv))
		default:
			supplyType := "INTRA"
			if inv.InterState() {
				supplyType = "INTER"
			}
			for _, item := range rateItems(inv.Lines) {
				key := b2csKey{pos: inv.PlaceOfSupply, rate: item.RateBP}
				entry, ok := b2cs[key]
				if !ok {
					entry = &B2CSEntry{PlaceOfSupply: inv.PlaceOfSupply, SupplyType: supplyType, RateItem: RateItem{RateBP: item.RateBP}}
					b2cs[key] = entry
				}
				entry.TaxableValue += item.TaxableValue
				entry.IGST += item.IGST
				entry.CGST += item.CGST
				entry.SGST += item.SGST
			}
		}

		for _, line := range inv.Lines {
			key := hsnKey{hsn: line.HSN, rate: line.RateBP}
			entry, ok := hsn[key]
			if !ok {
				entry = &HSNEntry{HSN: line.HSN, RateBP: line.RateBP}
				hsn[key] = entry
			}
			entry.Quantity += line.Quantity
			entry.Taxable += line.TaxableValue
			entry.IGST += line.IGST
			entry.CGST += line.CGST
			entry.SGST += line.SGST
			entry.TotalValue += line.TaxableValue + line.Tax()
		}
	}

	for _, entry := range b2b {
		report.B2B = append(report.B2B, *entry)
	}
	sort.Slice(report.B2B, func(i, j int) bool { return report.B2B[i].GSTIN < report.B2B[j].GSTIN })
	sort.Slice(report.B2CL, func(i, j int) bool { return report.B2CL[i].Number < report.B2CL[j].Number })
	for _, entry := range b2cs {
		report.B2CS = append(report.B2CS, *entry)
	}
	sort.Slice(report.B2CS, func(i, j int) bool {
		if report.B2CS[i].PlaceOfSupply != report.B2CS[j].PlaceOfSupply {
			return report.B2CS[i].PlaceOfSupply < report.B2CS[j].PlaceOfSupply
		}
		return report.B2CS[i].RateBP < report.B2CS[j].RateBP
	})
	for _, entry := range hsn {
		report.HSN = append(report.HSN, *entry)
	}
	sort.Slice(report.HSN, func(i, j int) bool {
		if report.HSN[i].HSN != report.HSN[j].HSN {
			return report.HSN[i].HSN < report.HSN[j].HSN
		}
		return report.HSN[i].RateBP < report.HSN[j].RateBP
	})

	sort.Strings(numbers)
	if len(numbers) > 0 {
		report.Documents.From = numbers[0]
		report.Documents.To = numbers[len(numbers)-1]
	}
	report.Documents.Net = report.Documents.Total - report.Documents.Cancelled
	return report
}

func documentEntry(inv Invoice) DocumentEntry {
	return DocumentEntry{
		Number:        inv.Number,
		Date:          inv.Date.Format("2006-01-02"),
		Value:         inv.Total,
		PlaceOfSupply: inv.PlaceOfSupply,
		Items:         rateItems(inv.Lines),
	}
}

// rateItems groups lines by rate.
func rateItems(lines []Line) []RateItem {
	byRate := map[int64]*RateItem{}
	var order []int64
	for _, line := range lines {
		item, ok := byRate[line.RateBP]
		if !ok {
			item = &RateItem{RateBP: line.RateBP}
			byRate[line.RateBP] = item
			order = append(order, line.RateBP)
		}
		item.TaxableValue += line.TaxableValue
		item.IGST += line.IGST
		item.CGST += line.CGST
		item.SGST += line.SGST
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	items := make([]RateItem, 0, len(order))
	for _, rate := range order {
		items = append(items, *byRate[rate])
	}
	return items
}
