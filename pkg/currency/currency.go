// Package currency parses free-form amount strings like "-1,000.01 €" or
// "99$" into a decimal amount and an ISO currency code.
package currency

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Info describes a supported currency.
type Info struct {
	Code    string
	Symbol  string
	Name    string
	Aliases []string
}

// Currencies lists the supported currencies in lookup order.
var Currencies = []Info{
	{Code: "EUR", Symbol: "€", Name: "Euro", Aliases: []string{"E", "e", "€", "eur", "euro"}},
	{Code: "USD", Symbol: "$", Name: "US Dollar", Aliases: []string{"U", "u", "$", "usd", "dollar"}},
	{Code: "CHF", Symbol: "CHF", Name: "Swiss Franc", Aliases: []string{"C", "c", "chf", "franc", "Sfr.", "sfr.", "Sfr", "sfr"}},
	{Code: "GBP", Symbol: "£", Name: "British Pound", Aliases: []string{"G", "g", "£", "gbp", "pound"}},
}

var (
	codesRe   = orRegex(collect(func(i Info) []string { return []string{i.Code} }))
	symbolsRe = orRegex(collect(func(i Info) []string { return []string{i.Symbol} }))
	aliasesRe = orRegex(collect(func(i Info) []string { return i.Aliases }))

	// numberRe captures the numeric part of an amount string, including
	// sign, spaces and thousand/decimal separators.
	numberRe = regexp.MustCompile(`-?\.?\d[\d\s.,']*`)

	// decimalSepRe matches a trailing separator followed by 1-2 digits
	// (a decimal part) or 4+ digits (not a thousand group).
	decimalSepRe = regexp.MustCompile(`([.,])(\d{1,2}|\d{4,})$`)
)

func collect(f func(Info) []string) []string {
	var out []string
	for _, c := range Currencies {
		out = append(out, f(c)...)
	}
	return out
}

func orRegex(symbols []string) *regexp.Regexp {
	escaped := make([]string, len(symbols))
	for i, s := range symbols {
		escaped[i] = regexp.QuoteMeta(s)
	}
	return regexp.MustCompile(strings.Join(escaped, "|"))
}

// Code resolves a currency code, symbol or alias to its ISO code.
// Returns the empty string when the alias is unknown.
func Code(alias string) string {
	for _, c := range Currencies {
		if alias == c.Code {
			return c.Code
		}
		for _, a := range c.Aliases {
			if alias == a {
				return c.Code
			}
		}
	}
	return ""
}

// Known reports whether code is a supported ISO currency code.
func Known(code string) bool {
	for _, c := range Currencies {
		if c.Code == code {
			return true
		}
	}
	return false
}

// extractCurrency finds the currency part of an amount string. Codes win
// over symbols, symbols over single-letter aliases.
func extractCurrency(amount string) string {
	for _, re := range []*regexp.Regexp{codesRe, symbolsRe, aliasesRe} {
		if m := re.FindString(amount); m != "" {
			return m
		}
	}
	return ""
}

// extractNumber pulls the numeric part out of an amount string, keeping
// separators for later normalization. Trailing separators are always
// dropped; a leading one survives when it is the sole "." so that bare
// decimals like ".50" keep their point.
func extractNumber(amount string) string {
	m := strings.TrimRight(numberRe.FindString(amount), ",.")
	if strings.Count(m, ".") != 1 {
		m = strings.TrimLeft(m, ",.")
	}
	return strings.TrimSpace(m)
}

// parseNumber normalizes thousand and decimal separators and parses the
// result. The last "." or "," followed by 1-2 or 4+ digits is the decimal
// separator; 3 trailing digits mean a thousand group.
func parseNumber(number string) (decimal.Decimal, error) {
	number = strings.NewReplacer(" ", "", "'", "").Replace(strings.TrimSpace(number))
	if number == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}

	switch m := decimalSepRe.FindStringSubmatch(number); {
	case m == nil:
		number = strings.NewReplacer(".", "", ",", "").Replace(number)
	case m[1] == ".":
		number = strings.ReplaceAll(number, ",", "")
	default: // ","
		number = strings.ReplaceAll(number, ".", "")
		number = strings.ReplaceAll(number, ",", ".")
	}

	return decimal.NewFromString(number)
}

// Parse splits an amount string into its numeric value (rounded to 2
// decimal places) and currency code. An unparsable number yields zero; an
// unknown or missing currency yields an empty code.
func Parse(amount string) (decimal.Decimal, string) {
	code := Code(extractCurrency(amount))

	n, err := parseNumber(extractNumber(amount))
	if err != nil {
		return decimal.Zero, code
	}
	return n.Round(2), code
}
