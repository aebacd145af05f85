package scheduler

import (
	"testing"
	"time"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		in   string
		want Spec
	}{
		{"daily 21:30", Spec{Kind: KindDaily, Hour: 21, Minute: 30}},
		{"DAILY 09:05", Spec{Kind: KindDaily, Hour: 9, Minute: 5}},
		{"monthly 1 09:00", Spec{Kind: KindMonthly, Day: 1, Hour: 9}},
		{"monthly 31 23:59", Spec{Kind: KindMonthly, Day: 31, Hour: 23, Minute: 59}},
		{"14:45", Spec{Kind: KindOnce, Hour: 14, Minute: 45}},
		{"  daily  08:00 ", Spec{Kind: KindDaily, Hour: 8}},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseSpec(tc.in)
			if err != nil {
				t.Fatalf("ParseSpec(%q) error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("ParseSpec(%q) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseSpec_Now(t *testing.T) {
	got, err := ParseSpec("now")
	if err != nil {
		t.Fatalf("ParseSpec(now) error: %v", err)
	}
	if got.Kind != KindOnce {
		t.Fatalf("ParseSpec(now).Kind = %v, want KindOnce", got.Kind)
	}
}

func TestParseSpec_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"hourly 12:00",
		"daily",
		"daily 25:00",
		"daily 12:60",
		"monthly 09:00",
		"monthly 0 09:00",
		"monthly 32 09:00",
		"monthly x 09:00",
		"12:3",
		"now please",
	} {
		if _, err := ParseSpec(in); err == nil {
			t.Errorf("ParseSpec(%q) accepted, want error", in)
		}
	}
}

func TestSpec_String_RoundTrip(t *testing.T) {
	for _, in := range []string{"daily 23:59", "monthly 15 08:00", "06:30"} {
		spec, err := ParseSpec(in)
		if err != nil {
			t.Fatalf("ParseSpec(%q) error: %v", in, err)
		}
		if spec.String() != in {
			t.Errorf("ParseSpec(%q).String() = %q", in, spec.String())
		}
	}
}

func TestSpec_Next(t *testing.T) {
	// A Tuesday afternoon.
	after := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		spec Spec
		want time.Time
	}{
		{
			name: "daily later today",
			spec: Spec{Kind: KindDaily, Hour: 23, Minute: 59},
			want: time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC),
		},
		{
			name: "daily already passed rolls to tomorrow",
			spec: Spec{Kind: KindDaily, Hour: 9},
			want: time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "once behaves like daily for the next firing",
			spec: Spec{Kind: KindOnce, Hour: 14, Minute: 30},
			want: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
		},
		{
			name: "monthly later this month",
			spec: Spec{Kind: KindMonthly, Day: 25, Hour: 12},
			want: time.Date(2026, 3, 25, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "monthly already passed rolls to next month",
			spec: Spec{Kind: KindMonthly, Day: 1, Hour: 9},
			want: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "monthly 31st skips short months",
			spec: Spec{Kind: KindMonthly, Day: 31, Hour: 9},
			want: time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.spec.Next(after)
			if !got.Equal(tc.want) {
				t.Fatalf("Next(%v) = %v, want %v", after, got, tc.want)
			}
		})
	}
}

func TestSpec_Next_MonthlySkipsFebruary(t *testing.T) {
	after := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	spec := Spec{Kind: KindMonthly, Day: 30, Hour: 9}

	got := spec.Next(after)
	want := time.Date(2026, 3, 30, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next(%v) = %v, want %v", after, got, want)
	}
}
