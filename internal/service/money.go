package service

import (
	"github.com/shopspring/decimal"
)

const maxIDLength = 64

// validAmount reports whether a is positive with at most two decimals.
func validAmount(a decimal.Decimal) bool {
	return a.IsPositive() && a.Equal(a.Truncate(2))
}

func formatMoney(symbol string, a decimal.Decimal) string {
	return symbol + a.StringFixed(2)
}
