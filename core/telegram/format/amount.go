package format

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// Amount renders an integer amount with comma thousands separators: 30000 -> "30,000".
func Amount(v int64) string {
	return amountPrinter.Sprintf("%d", v)
}

// Price renders v followed by the currency label: "30,000 UZS".
func Price(v int64, currency string) string {
	if currency == "" {
		return Amount(v)
	}
	return Amount(v) + " " + currency
}
