package concerts

import (
	"strings"

	"github.com/shopspring/decimal"
)

func (c Concert) FormattedDate() string {
	return c.Date.Format("January 2, 2006")
}

func (c Concert) FormattedStartTime() string {
	return c.Date.Format("3:04pm")
}

func (c Concert) TicketPriceInDollars() string {
	return FormatCents(c.TicketPrice)
}

// FormatCents renders cents as dollars with two decimals and comma
// thousands separators, e.g. 123456789 -> "1,234,567.89".
func FormatCents(cents int64) string {
	s := decimal.New(cents, -2).StringFixed(2)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
