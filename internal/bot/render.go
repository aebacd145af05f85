package bot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/emalfatti/fintrack/pkg/api"
)

var printer = message.NewPrinter(language.English)

// formatAmount renders a monetary amount with thousands separators and
// two decimals, e.g. -1,250.50.
func formatAmount(d decimal.Decimal) string {
	return printer.Sprintf("%.2f", d.InexactFloat64())
}

// renderRecords renders the buffered records as a numbered list, in the
// order they were recorded. The numbering is what /clear_data selectors
// refer to.
func renderRecords(records []*api.Record) string {
	if len(records) == 0 {
		return "No buffered records."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d buffered record(s):\n", len(records))
	for i, r := range records {
		date := "-"
		if r.Date != nil {
			date = r.Date.Format("02/01/2006")
		}
		cur := r.Currency
		if cur == "" {
			cur = "?"
		}
		fmt.Fprintf(&b, "%d. %s | %s | %s %s | %s\n",
			i+1, date, r.Description, formatAmount(r.Amount), cur, r.Account)
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderSummary totals the buffered records per currency. Positive
// amounts count as income, negative as expenses.
func renderSummary(records []*api.Record) string {
	if len(records) == 0 {
		return "No buffered records to summarize."
	}

	type totals struct {
		income  decimal.Decimal
		expense decimal.Decimal
	}

	perCurrency := make(map[string]*totals)
	for _, r := range records {
		cur := r.Currency
		if cur == "" {
			cur = "?"
		}
		t, ok := perCurrency[cur]
		if !ok {
			t = &totals{}
			perCurrency[cur] = t
		}
		if r.Amount.IsNegative() {
			t.expense = t.expense.Add(r.Amount)
		} else {
			t.income = t.income.Add(r.Amount)
		}
	}

	currencies := make([]string, 0, len(perCurrency))
	for cur := range perCurrency {
		currencies = append(currencies, cur)
	}
	sort.Strings(currencies)

	var b strings.Builder
	fmt.Fprintf(&b, "Summary of %d buffered record(s):\n", len(records))
	for _, cur := range currencies {
		t := perCurrency[cur]
		net := t.income.Add(t.expense)
		fmt.Fprintf(&b, "%s: income %s, expenses %s, net %s\n",
			cur, formatAmount(t.income), formatAmount(t.expense), formatAmount(net))
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderDraft shows the record being assembled in the /record dialog.
func renderDraft(d draft) string {
	date := "-"
	if d.date != nil {
		date = d.date.Format("02/01/2006")
	}
	amount := "-"
	if d.hasAmount {
		amount = formatAmount(d.amount)
		if d.currency != "" {
			amount += " " + d.currency
		}
	}
	description := d.description
	if description == "" {
		description = "-"
	}
	account := d.account
	if account == "" {
		account = "-"
	}

	return fmt.Sprintf("Current record:\nDate: %s\nDescription: %s\nAmount: %s\nAccount: %s",
		date, description, amount, account)
}
