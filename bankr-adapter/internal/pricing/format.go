package pricing

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/orders/pkg/model"
)

var (
	expThreshold   = decimal.New(1, -4) // 0.0001
	one            = decimal.NewFromInt(1)
	groupThreshold = decimal.NewFromInt(1000)
)

// FormatDecimal renders d with the display tiers used for every amount and price:
//
//	< 0.0001       exponential, 2 fractional digits (5.00e-5)
//	[0.0001, 1)    6 decimal places
//	[1, 1000)      4 decimal places
//	>= 1000        thousands grouping, at most 4 decimal places
func FormatDecimal(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + FormatDecimal(d.Neg())
	}
	switch {
	case d.LessThan(expThreshold):
		return formatExponential(d)
	case d.LessThan(one):
		return d.StringFixed(6)
	case d.LessThan(groupThreshold):
		return d.StringFixed(4)
	default:
		return groupThousands(d.Round(4).String())
	}
}

// FormatAmount renders a backend amount. Missing amounts render as "-";
// amounts below 0.0001 keep the backend's own formatting.
func FormatAmount(a *model.Amount) string {
	if a == nil {
		return "-"
	}
	d, err := decimal.NewFromString(strings.TrimSpace(a.Formatted))
	if err != nil {
		return a.Formatted
	}
	if d.Abs().LessThan(expThreshold) {
		return a.Formatted
	}
	return FormatDecimal(d)
}

// formatExponential matches the d.ddde±x shape, without exponent zero padding.
func formatExponential(d decimal.Decimal) string {
	f, _ := d.Float64()
	s := strconv.FormatFloat(f, 'e', 2, 64) // 5.00e-05
	mant, exp, ok := strings.Cut(s, "e")
	if !ok {
		return s
	}
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mant + "e" + sign + digits
}

func groupThousands(s string) string {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
