package payments

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Static placeholders; no live rate source is consulted.
var supportedCurrencies = map[enums.PaymentMethod][]string{
	enums.PaymentMethodStripe:         {"USD", "EUR", "GBP", "CAD", "AUD", "JPY", "INR"},
	enums.PaymentMethodRazorpay:       {"INR"},
	enums.PaymentMethodPayPal:         {"USD", "EUR", "GBP", "CAD", "AUD", "JPY"},
	enums.PaymentMethodCashOnDelivery: {"USD", "EUR", "GBP", "INR"},
	enums.PaymentMethodCrypto:         {"BTC", "ETH", "USD", "EUR"},
}

// Units of each currency per US dollar.
var usdRates = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"EUR": decimal.RequireFromString("0.85"),
	"GBP": decimal.RequireFromString("0.73"),
	"INR": decimal.RequireFromString("83.12"),
	"CAD": decimal.RequireFromString("1.35"),
	"AUD": decimal.RequireFromString("1.52"),
	"JPY": decimal.RequireFromString("149.50"),
}

var zeroDecimalCurrencies = map[string]bool{"JPY": true}

// SupportedCurrencies returns the currencies a method can charge in.
func SupportedCurrencies(method enums.PaymentMethod) []string {
	list, ok := supportedCurrencies[method]
	if !ok {
		return []string{"USD"}
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// Supports reports whether method accepts currency.
func Supports(method enums.PaymentMethod, currency string) bool {
	currency = normalizeCurrency(currency)
	for _, c := range supportedCurrencies[method] {
		if c == currency {
			return true
		}
	}
	return false
}

// Convert moves amount between two currencies of the rate table, rounded
// to cents.
func Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	fromRate, ok := usdRates[normalizeCurrency(from)]
	if !ok {
		return decimal.Zero, fmt.Errorf("no exchange rate for %q", from)
	}
	toRate, ok := usdRates[normalizeCurrency(to)]
	if !ok {
		return decimal.Zero, fmt.Errorf("no exchange rate for %q", to)
	}
	return amount.Div(fromRate).Mul(toRate).Round(2), nil
}

// toMinor converts an amount to the gateway's smallest currency unit.
func toMinor(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[normalizeCurrency(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

func fromMinor(amount int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[normalizeCurrency(currency)] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}

func normalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

func decimalFromString(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
