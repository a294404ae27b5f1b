package provider

import (
	"strconv"
	"strings"
)

// currencySymbols maps ISO 4217 codes to display symbols. Codes without an
// entry fall back to "<code> " as a prefix.
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"AUD": "A$",
	"CAD": "C$",
	"NZD": "NZ$",
	"CHF": "CHF ",
	"SEK": "kr ",
	"NOK": "kr ",
	"DKK": "kr ",
	"PLN": "zł ",
	"INR": "₹",
	"BRL": "R$",
	"KRW": "₩",
	"MXN": "MX$",
	"ZAR": "R ",
}

// zeroDecimalCurrencies have no minor unit
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
}

// FormatPrice renders a raw platform price string ("29", "29.9") with the
// tenant's currency symbol ("£29.90"). Unparseable input is returned with
// the symbol prepended rather than dropped.
func FormatPrice(price, currency string) string {
	if price == "" {
		return ""
	}

	code := strings.ToUpper(strings.TrimSpace(currency))
	symbol, ok := currencySymbols[code]
	if !ok {
		if code == "" {
			symbol = ""
		} else {
			symbol = code + " "
		}
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
	if err != nil {
		return symbol + price
	}

	if zeroDecimalCurrencies[code] {
		return symbol + strconv.FormatFloat(value, 'f', 0, 64)
	}
	return symbol + strconv.FormatFloat(value, 'f', 2, 64)
}

// FormatOrder renders a compact one-line order summary used in engine
// output ("order #1042: processing, total £84.00")
func FormatOrder(o *Order) string {
	if o == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("order #")
	b.WriteString(o.Number)
	b.WriteString(": ")
	b.WriteString(o.Status)
	if o.Total != "" {
		b.WriteString(", total ")
		b.WriteString(FormatPrice(o.Total, o.Currency))
	}
	return b.String()
}
