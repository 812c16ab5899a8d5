// Package format renders amounts for display. Rounding happens here and
// nowhere upstream.
package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/iwvelando/emi-calculator/pkg/constants"
)

// Options controls how an amount is displayed.
type Options struct {
	Symbol         string `yaml:"symbol" mapstructure:"symbol"`
	FractionDigits int    `yaml:"fractionDigits" mapstructure:"fractionDigits"`
	Grouping       string `yaml:"grouping" mapstructure:"grouping"`
}

// DefaultOptions matches the calculator's rupee display: no decimals and
// lakh/crore grouping.
func DefaultOptions() Options {
	return Options{
		Symbol:         constants.DefaultCurrencySymbol,
		FractionDigits: constants.DefaultFractionDigits,
		Grouping:       constants.DefaultGrouping,
	}
}

// Normalize fills unset fields and clamps the fraction digits.
func (o Options) Normalize() Options {
	if o.Grouping == "" {
		o.Grouping = constants.DefaultGrouping
	}
	if o.FractionDigits < 0 {
		o.FractionDigits = 0
	}
	if o.FractionDigits > constants.MaxFractionDigits {
		o.FractionDigits = constants.MaxFractionDigits
	}
	return o
}

// Currency returns a currency string with the configured symbol and
// separators (e.g., "-₹1,00,000" or "$1,234.56").
func Currency(amount float64, opts Options) string {
	formatted := NumericCurrency(math.Abs(amount), opts)
	if isNegative(amount, opts) {
		return "-" + opts.Symbol + formatted
	}
	return opts.Symbol + formatted
}

// NumericCurrency returns a currency string without a currency symbol but with separators (e.g., "-1,234.56").
func NumericCurrency(amount float64, opts Options) string {
	opts = opts.Normalize()
	sign := ""
	if isNegative(amount, opts) {
		sign = "-"
	}

	formatted := fmt.Sprintf("%.*f", opts.FractionDigits, math.Abs(amount))
	parts := strings.SplitN(formatted, ".", 2)
	intPart := groupDigits(parts[0], opts.Grouping)
	if len(parts) == 2 {
		return sign + intPart + "." + parts[1]
	}
	return sign + intPart
}

// A value that rounds to zero is shown without a sign.
func isNegative(amount float64, opts Options) bool {
	opts = opts.Normalize()
	scale := math.Pow(10, float64(opts.FractionDigits))
	return math.Round(math.Abs(amount)*scale) > 0 && amount < 0
}

func groupDigits(intPart, grouping string) string {
	if len(intPart) <= 3 {
		return intPart
	}

	head := intPart[:len(intPart)-3]
	tail := intPart[len(intPart)-3:]

	size := 3
	if grouping == constants.GroupingIndian {
		size = 2
	}

	var groups []string
	for len(head) > size {
		groups = append([]string{head[len(head)-size:]}, groups...)
		head = head[:len(head)-size]
	}
	groups = append([]string{head}, groups...)

	return strings.Join(groups, ",") + "," + tail
}
