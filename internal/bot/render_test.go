package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emalfatti/fintrack/pkg/api"
)

func makeRecord(description, amount, cur string, date *time.Time) *api.Record {
	return &api.Record{
		ID:          uuid.New(),
		UserID:      1,
		Date:        date,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Currency:    cur,
		Account:     "cash",
		RecordedAt:  testNow,
	}
}

func TestRenderRecords(t *testing.T) {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	records := []*api.Record{
		makeRecord("groceries", "-1250.50", "EUR", &date),
		makeRecord("salary", "2500", "EUR", nil),
	}

	out := renderRecords(records)

	for _, want := range []string{
		"2 buffered record(s)",
		"1. 15/03/2026 | groceries | -1,250.50 EUR | cash",
		"2. - | salary | 2,500.00 EUR | cash",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("renderRecords output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderRecords_Empty(t *testing.T) {
	if out := renderRecords(nil); !strings.Contains(out, "No buffered records") {
		t.Errorf("renderRecords(nil) = %q", out)
	}
}

func TestRenderSummary(t *testing.T) {
	records := []*api.Record{
		makeRecord("salary", "2500", "EUR", nil),
		makeRecord("groceries", "-42.50", "EUR", nil),
		makeRecord("rent", "-900", "EUR", nil),
		makeRecord("book", "-15", "USD", nil),
	}

	out := renderSummary(records)

	for _, want := range []string{
		"EUR: income 2,500.00, expenses -942.50, net 1,557.50",
		"USD: income 0.00, expenses -15.00, net -15.00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("renderSummary output missing %q:\n%s", want, out)
		}
	}

	// Currencies come out in a stable order.
	if strings.Index(out, "EUR:") > strings.Index(out, "USD:") {
		t.Errorf("currencies out of order:\n%s", out)
	}
}

func TestRenderSummary_UnknownCurrency(t *testing.T) {
	out := renderSummary([]*api.Record{makeRecord("mystery", "-5", "", nil)})
	if !strings.Contains(out, "?:") {
		t.Errorf("expected placeholder currency in:\n%s", out)
	}
}

func TestRenderDraft(t *testing.T) {
	out := renderDraft(draft{})
	for _, want := range []string{"Date: -", "Description: -", "Amount: -", "Account: -"} {
		if !strings.Contains(out, want) {
			t.Errorf("empty draft missing %q:\n%s", want, out)
		}
	}

	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	full := draft{
		date:        &date,
		description: "groceries",
		amount:      decimal.RequireFromString("-42.50"),
		currency:    "EUR",
		hasAmount:   true,
		account:     "cash",
	}
	out = renderDraft(full)
	for _, want := range []string{"15/03/2026", "groceries", "-42.50 EUR", "cash"} {
		if !strings.Contains(out, want) {
			t.Errorf("full draft missing %q:\n%s", want, out)
		}
	}
}
