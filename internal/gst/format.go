package gst

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var inrPrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatINR renders paise as an Indian rupee string with lakh grouping.
func FormatINR(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	rupees := float64(paise) / 100
	return sign + "₹" + inrPrinter.Sprintf("%v", number.Decimal(rupees, number.Scale(2)))
}
