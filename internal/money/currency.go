// Package money formats debt amounts as Brazilian reais. Amounts are
// carried everywhere as integer centavos; floats never enter the math.
package money

import "strconv"

// FormatCurrency renders an amount in centavos as pt-BR currency,
// e.g. 150 -> "R$ 1,50" and 123456 -> "R$ 1.234,56".
func FormatCurrency(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}

	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)

	// Group the integer part with "." every three digits.
	var grouped []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, '.')
		}
		grouped = append(grouped, d)
	}

	out := "R$ " + string(grouped) + ","
	if frac < 10 {
		out += "0"
	}
	out += strconv.FormatInt(frac, 10)

	if neg {
		return "-" + out
	}
	return out
}

// ParseCurrency strips everything but digits and returns the amount in
// centavos. "R$ 1.234,56" -> 123456. Empty or digit-free input parses to 0.
func ParseCurrency(s string) int64 {
	var digits []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	if len(digits) == 0 {
		return 0
	}
	n, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// FormatCurrencyInput normalizes free-form user input into canonical
// currency text, for masked amount fields.
func FormatCurrencyInput(s string) string {
	return FormatCurrency(ParseCurrency(s))
}
