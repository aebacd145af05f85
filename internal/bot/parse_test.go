package bot

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/emalfatti/fintrack/pkg/api"
	"github.com/emalfatti/fintrack/pkg/client"
	"github.com/emalfatti/fintrack/pkg/sheets"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want *time.Time
	}{
		{"-", nil},
		{"", nil},
		{"15/03/2026", timePtr(2026, 3, 15)},
		{"15.03.2026", timePtr(2026, 3, 15)},
		{"2026-03-15", timePtr(2026, 3, 15)},
		{"01/12", timePtr(2026, 12, 1)},
		{"today", timePtr(2026, 3, 15)},
		{"yesterday", timePtr(2026, 3, 14)},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseDate(tc.in, testNow)
			if err != nil {
				t.Fatalf("parseDate(%q) error: %v", tc.in, err)
			}
			switch {
			case tc.want == nil && got != nil:
				t.Fatalf("parseDate(%q) = %v, want nil", tc.in, got)
			case tc.want != nil && (got == nil || !got.Equal(*tc.want)):
				t.Fatalf("parseDate(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseDate_RelativeInNonUTCLocation(t *testing.T) {
	// Shortly after midnight in UTC+2 it is still the previous day in
	// UTC; the calendar date must come from the local clock.
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 3, 15, 0, 30, 0, 0, loc)

	got, err := parseDate("today", now)
	if err != nil {
		t.Fatalf("parseDate(today) error: %v", err)
	}
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("parseDate(today) = %v, want %v", got, want)
	}

	got, err = parseDate("yesterday", now)
	if err != nil {
		t.Fatalf("parseDate(yesterday) error: %v", err)
	}
	want = time.Date(2026, 3, 14, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("parseDate(yesterday) = %v, want %v", got, want)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, in := range []string{"32/01/2026", "not a date", "13/13/2026"} {
		if _, err := parseDate(in, testNow); err == nil {
			t.Errorf("parseDate(%q) accepted, want error", in)
		}
	}
}

func TestParseQuickRecord(t *testing.T) {
	d, err := parseQuickRecord("15/03/2026, groceries, -42.50 eur, cash", testNow)
	if err != nil {
		t.Fatalf("parseQuickRecord error: %v", err)
	}

	if d.date == nil || !d.date.Equal(*timePtr(2026, 3, 15)) {
		t.Errorf("date = %v", d.date)
	}
	if d.description != "groceries" {
		t.Errorf("description = %q", d.description)
	}
	if d.amount.String() != "-42.5" {
		t.Errorf("amount = %s", d.amount)
	}
	if d.currency != "EUR" {
		t.Errorf("currency = %q", d.currency)
	}
	if d.account != "cash" {
		t.Errorf("account = %q", d.account)
	}
	if !d.hasAmount {
		t.Error("hasAmount = false")
	}
}

func TestParseQuickRecord_NoDate(t *testing.T) {
	d, err := parseQuickRecord("-, salary, 2500, N26", testNow)
	if err != nil {
		t.Fatalf("parseQuickRecord error: %v", err)
	}
	if d.date != nil {
		t.Errorf("date = %v, want nil", d.date)
	}
	if d.currency != "" {
		t.Errorf("currency = %q, want empty", d.currency)
	}
	if d.amount.String() != "2500" {
		t.Errorf("amount = %s", d.amount)
	}
}

func TestParseQuickRecord_Invalid(t *testing.T) {
	for _, in := range []string{
		"only, three, fields",
		"-, , -10, cash",
		"-, lunch, notanumber, cash",
		"-, lunch, -10, ",
		"99/99/9999, lunch, -10, cash",
	} {
		if _, err := parseQuickRecord(in, testNow); err == nil {
			t.Errorf("parseQuickRecord(%q) accepted, want error", in)
		}
	}
}

func TestParseClearSelector(t *testing.T) {
	tests := []struct {
		in      string
		n       int
		want    []int
		wantAll bool
	}{
		{"all", 5, nil, true},
		{"*", 5, nil, true},
		{"3", 5, []int{3}, false},
		{"2-4", 5, []int{2, 3, 4}, false},
		{"2-2", 5, []int{2}, false},
		{"1,3,5", 5, []int{1, 3, 5}, false},
		{"5, 1, 3", 5, []int{1, 3, 5}, false},
		{"2,2,2", 5, []int{2}, false},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, all, err := parseClearSelector(tc.in, tc.n)
			if err != nil {
				t.Fatalf("parseClearSelector(%q, %d) error: %v", tc.in, tc.n, err)
			}
			if all != tc.wantAll {
				t.Fatalf("all = %v, want %v", all, tc.wantAll)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("positions = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseClearSelector_Invalid(t *testing.T) {
	for _, tc := range []struct {
		in string
		n  int
	}{
		{"0", 5},
		{"6", 5},
		{"4-2", 5},
		{"1-9", 5},
		{"x", 5},
		{"1,x", 5},
		{"", 5},
		{"1", 0},
	} {
		if _, _, err := parseClearSelector(tc.in, tc.n); err == nil {
			t.Errorf("parseClearSelector(%q, %d) accepted, want error", tc.in, tc.n)
		}
	}
}

func TestExtractSpreadsheetID(t *testing.T) {
	const id = "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms"

	tests := []struct {
		in   string
		want string
	}{
		{id, id},
		{"https://docs.google.com/spreadsheets/d/" + id + "/edit#gid=0", id},
		{"https://docs.google.com/spreadsheets/d/" + id, id},
		{"short", ""},
		{"not a spreadsheet", ""},
	}

	for _, tc := range tests {
		if got := extractSpreadsheetID(tc.in); got != tc.want {
			t.Errorf("extractSpreadsheetID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAppendErrorText(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{client.ErrNotAuthorized, "/auth"},
		{sheets.ErrNotConfigured, "/auth_data"},
		{api.ErrNotFound, "/auth_data"},
		{fmt.Errorf("wrapped: %w", sheets.ErrNotFound), "could not find"},
		{fmt.Errorf("wrapped: %w", sheets.ErrPermissionDenied), "edit access"},
		{errors.New("boom"), "still buffered"},
	}

	for _, tc := range tests {
		got := appendErrorText(tc.err)
		if !strings.Contains(strings.ToLower(got), strings.ToLower(tc.want)) {
			t.Errorf("appendErrorText(%v) = %q, want it to mention %q", tc.err, got, tc.want)
		}
	}
}

func timePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}
