package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// currencyExponents holds ISO 4217 currencies whose minor unit is not 1/100.
var currencyExponents = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"CLP": 0,
	"ISK": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
	"JOD": 3,
	"TND": 3,
}

// CurrencyExponent returns the number of minor-unit digits for a currency.
func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// ToMinorUnits converts an amount to the integer minor units providers
// expect, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	exp := CurrencyExponent(currency)
	return amount.Shift(exp).Round(0).IntPart()
}

// FromMinorUnits converts integer minor units back to an amount.
func FromMinorUnits(units int64, currency string) decimal.Decimal {
	return decimal.New(units, -CurrencyExponent(currency))
}

// FormatAmount renders an amount with the currency's fixed number of digits.
func FormatAmount(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(CurrencyExponent(currency))
}
