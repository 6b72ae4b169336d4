package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var currencySymbols = map[string]string{
	"NGN": "₦",
	"USD": "$",
	"GBP": "£",
	"GHS": "GH₵",
}

// FormatCurrency renders a naira amount rounded to whole units, e.g. "₦1,234,567".
func FormatCurrency(v float64) string {
	return FormatAmount("NGN", v)
}

// FormatAmount renders v in the given currency. Unknown codes are used as a
// prefix ("ZAR 1,200").
func FormatAmount(currency string, v float64) string {
	sym, ok := currencySymbols[strings.ToUpper(currency)]
	if !ok {
		sym = currency + " "
	}
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + sym + groupDigits(int64(math.Round(v)))
}

// FormatCurrencyPtr is FormatCurrency for optional values; nil is "N/A".
func FormatCurrencyPtr(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return FormatCurrency(*v)
}

// FormatNumber renders an integer count with thousands separators.
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + groupDigits(-n)
	}
	return groupDigits(n)
}

// FormatNumberPtr truncates an optional value to an integer count; nil is "N/A".
func FormatNumberPtr(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return FormatNumber(int64(*v))
}

// FormatPct renders a fraction as a percentage with one decimal.
func FormatPct(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
