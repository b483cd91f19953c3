package usecase

import (
	"testing"
	"time"
)

func TestResolveTime_AbsoluteFormats(t *testing.T) {
	anchor := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", "2026-03-05T15:00:00Z", time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC)},
		{"date and time", "2026-03-05 15:00", time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC)},
		{"date only", "2026-03-05", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"long month", "March 5, 2026 15:00", time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC)},
		{"short month", "Mar 5, 2026", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveTime(tc.in, anchor, time.UTC)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("resolveTime(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestResolveTime_RelativeExpressions(t *testing.T) {
	// Monday morning in the process timezone.
	anchor := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"tomorrow default hour", "tomorrow", time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)},
		{"tomorrow with clock", "tomorrow at 3pm", time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC)},
		{"tomorrow with minutes", "tomorrow 10:30", time.Date(2026, 3, 3, 10, 30, 0, 0, time.UTC)},
		{"today", "today at 4pm", time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)},
		{"next week", "next week", time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)},
		{"noon pm kept", "tomorrow at 12pm", time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)},
		{"midnight am", "tomorrow at 12am", time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveTime(tc.in, anchor, time.UTC)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("resolveTime(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestResolveTime_TimezoneConversion(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	anchor := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	got, err := resolveTime("2026-03-05 15:00", anchor, chicago)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 5, 15, 0, 0, 0, chicago).UTC()
	if !got.Equal(want) {
		t.Errorf("resolveTime in Chicago = %v, want %v", got, want)
	}
}

func TestResolveTime_Errors(t *testing.T) {
	anchor := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	for _, in := range []string{"", "sometime soon", "when convenient"} {
		if _, err := resolveTime(in, anchor, time.UTC); err == nil {
			t.Errorf("resolveTime(%q) succeeded, want error", in)
		}
	}
}

func TestResolveTime_PureFunctionOfInputs(t *testing.T) {
	anchor := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	first, err := resolveTime("tomorrow at 3pm", anchor, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, err := resolveTime("tomorrow at 3pm", anchor, time.UTC)
		if err != nil {
			t.Fatal(err)
		}
		if !again.Equal(first) {
			t.Fatalf("resolveTime drifted between calls: %v vs %v", again, first)
		}
	}
}
