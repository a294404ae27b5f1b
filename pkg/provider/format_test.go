package provider_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/whippetlabs/whippet/pkg/provider"
)

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		price    string
		currency string
		expected string
	}{
		{"29", "GBP", "£29.00"},
		{"29.9", "GBP", "£29.90"},
		{"129.00", "USD", "$129.00"},
		{"84.5", "EUR", "€84.50"},
		{"1500", "JPY", "¥1500"},
		{"20000", "KRW", "₩20000"},
		{"49.99", "PLN", "zł 49.99"},
		{"10", "XYZ", "XYZ 10.00"},
		{"10", "", "10.00"},
		{"call us", "GBP", "£call us"},
		{"", "GBP", ""},
	}

	for _, tc := range cases {
		gt.Equal(t, provider.FormatPrice(tc.price, tc.currency), tc.expected)
	}
}

func TestFormatOrder(t *testing.T) {
	order := &provider.Order{
		Number:   "1042",
		Status:   "processing",
		Total:    "84",
		Currency: "GBP",
	}
	gt.Equal(t, provider.FormatOrder(order), "order #1042: processing, total £84.00")

	gt.Equal(t, provider.FormatOrder(nil), "")
	gt.Equal(t, provider.FormatOrder(&provider.Order{Number: "7", Status: "refunded"}), "order #7: refunded")
}
