package sheets

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"

	"github.com/emalfatti/fintrack/pkg/api"
)

func TestMapAPIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "not found",
			err:  &googleapi.Error{Code: 404, Message: "Requested entity was not found."},
			want: ErrNotFound,
		},
		{
			name: "permission denied",
			err:  &googleapi.Error{Code: 403, Message: "The caller does not have permission"},
			want: ErrPermissionDenied,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := mapAPIError(tc.err)
			if !errors.Is(got, tc.want) {
				t.Fatalf("mapAPIError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestMapAPIError_Passthrough(t *testing.T) {
	plain := errors.New("network down")
	got := mapAPIError(plain)
	if !errors.Is(got, plain) {
		t.Fatalf("expected wrapped original error, got %v", got)
	}
	if errors.Is(got, ErrNotFound) || errors.Is(got, ErrPermissionDenied) {
		t.Fatalf("plain error must not map to a sheet error: %v", got)
	}
}

func TestBuildRows(t *testing.T) {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	recorded := time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)

	records := []*api.Record{
		{
			Date:        &date,
			Description: "groceries",
			Amount:      decimal.RequireFromString("-42.50"),
			Currency:    "EUR",
			Account:     "N26",
			RecordedAt:  recorded,
		},
		{
			Description: "salary",
			Amount:      decimal.RequireFromString("2500"),
			Currency:    "EUR",
			Account:     "N26",
			RecordedAt:  recorded,
		},
	}

	rows := buildRows(records)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	first := rows[0]
	if first[0] != "15/03/2026" {
		t.Errorf("date cell = %v, want 15/03/2026", first[0])
	}
	if first[1] != "groceries" {
		t.Errorf("description cell = %v", first[1])
	}
	if first[2] != -42.5 {
		t.Errorf("amount cell = %v, want -42.5", first[2])
	}

	// Records without an explicit date render a placeholder.
	if rows[1][0] != "-" {
		t.Errorf("missing date cell = %v, want -", rows[1][0])
	}
}

func TestAppend_RequiresConfiguredSheet(t *testing.T) {
	a := New(nil, nil)

	err := a.Append(t.Context(), 1, &api.Settings{UserID: 1}, []*api.Record{{}})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Append without settings = %v, want %v", err, ErrNotConfigured)
	}
}

func TestAppend_EmptyBatch(t *testing.T) {
	a := New(nil, nil)
	s := &api.Settings{UserID: 1, SpreadsheetID: "sheet-id", SheetName: "Data"}

	if err := a.Append(t.Context(), 1, s, nil); err != nil {
		t.Fatalf("Append with no records = %v, want nil", err)
	}
}
