package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emalfatti/fintrack/pkg/currency"
)

// dateLayouts are tried in order when parsing a record date.
var dateLayouts = []string{
	"02/01/2006",
	"02.01.2006",
	"2006-01-02",
	"02/01",
	"02.01",
}

// parseDate accepts dd/mm/yyyy style dates, "today", "yesterday", and "-"
// or "" for no date. Year-less forms use the current year.
func parseDate(s string, now time.Time) (*time.Time, error) {
	s = strings.TrimSpace(strings.ToLower(s))

	switch s {
	case "", "-":
		return nil, nil
	case "today":
		d := midnight(now)
		return &d, nil
	case "yesterday":
		d := midnight(now).AddDate(0, 0, -1)
		return &d, nil
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		return &t, nil
	}

	return nil, fmt.Errorf("unrecognized date %q, try dd/mm/yyyy or %q", s, "-")
}

// midnight is the start of now's calendar day in its own location.
// Truncating against the clock would shift the date near midnight in
// non-UTC locations.
func midnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// parseQuickRecord parses the one-line record form:
//
//	date, description, amount, account
//
// The date may be "-" to mean none. The amount may carry a currency code,
// symbol, or alias; negative amounts are expenses.
func parseQuickRecord(line string, now time.Time) (draft, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return draft{}, fmt.Errorf("expected 4 comma-separated fields (date, description, amount, account), got %d", len(parts))
	}

	date, err := parseDate(parts[0], now)
	if err != nil {
		return draft{}, err
	}

	description := strings.TrimSpace(parts[1])
	if description == "" {
		return draft{}, fmt.Errorf("description must not be empty")
	}

	amount, code := currency.Parse(strings.TrimSpace(parts[2]))
	if amount.IsZero() {
		return draft{}, fmt.Errorf("could not read an amount from %q", strings.TrimSpace(parts[2]))
	}

	account := strings.TrimSpace(parts[3])
	if account == "" {
		return draft{}, fmt.Errorf("account must not be empty")
	}

	return draft{
		date:        date,
		description: description,
		amount:      amount,
		currency:    code,
		hasAmount:   true,
		account:     account,
	}, nil
}

// parseAmount reads an amount with an optional currency code, symbol, or
// alias. A zero result means the input was not a number.
func parseAmount(s string) (decimal.Decimal, string) {
	return currency.Parse(strings.TrimSpace(s))
}

// parseClearSelector resolves a deletion selector against a listing of n
// records. Supported forms: "all" or "*", a single position "3", a range
// "2-5", and a list "1,3,7". Positions are 1-based and returned sorted.
func parseClearSelector(s string, n int) (positions []int, all bool, err error) {
	s = strings.TrimSpace(strings.ToLower(s))

	if s == "all" || s == "*" {
		return nil, true, nil
	}

	if from, to, ok := strings.Cut(s, "-"); ok {
		lo, err := parsePosition(from, n)
		if err != nil {
			return nil, false, err
		}
		hi, err := parsePosition(to, n)
		if err != nil {
			return nil, false, err
		}
		if hi < lo {
			return nil, false, fmt.Errorf("range %q is reversed", s)
		}
		for i := lo; i <= hi; i++ {
			positions = append(positions, i)
		}
		return positions, false, nil
	}

	seen := make(map[int]bool)
	for _, field := range strings.Split(s, ",") {
		pos, err := parsePosition(field, n)
		if err != nil {
			return nil, false, err
		}
		if seen[pos] {
			continue
		}
		seen[pos] = true
		positions = append(positions, pos)
	}

	// Keep the listing order regardless of how the user typed them.
	for i := 1; i < len(positions); i++ {
		for j := i; j > 0 && positions[j] < positions[j-1]; j-- {
			positions[j], positions[j-1] = positions[j-1], positions[j]
		}
	}
	return positions, false, nil
}

func parsePosition(s string, n int) (int, error) {
	pos, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid position %q", strings.TrimSpace(s))
	}
	if pos < 1 || pos > n {
		return 0, fmt.Errorf("position %d is out of range, the list has %d record(s)", pos, n)
	}
	return pos, nil
}
