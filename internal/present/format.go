package present

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

const DefaultCurrency = "₹"

// Formatter renders numbers for display.
type Formatter struct {
	Currency string // prefix for money values
	Unit     string // suffix for quantities, e.g. "kg"
}

// DefaultFormatter uses rupees and kilograms.
func DefaultFormatter() Formatter {
	return Formatter{Currency: DefaultCurrency, Unit: "kg"}
}

// Money rounds to whole units and groups thousands: 125000 -> "₹125,000",
// -500 -> "-₹500".
func (f Formatter) Money(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + f.Currency + humanize.Comma(int64(math.Round(v)))
}

// Quantity formats a measured amount with at most one decimal and the unit.
func (f Formatter) Quantity(v float64) string {
	s := humanize.CommafWithDigits(v, 1)
	if f.Unit == "" {
		return s
	}
	return s + " " + f.Unit
}

func (f Formatter) Percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func (f Formatter) Count(n int) string {
	return humanize.Comma(int64(n))
}
