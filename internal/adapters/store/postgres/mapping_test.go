package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDayNumber(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want int
	}{
		{"epoch is day zero", time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC), 0},
		{"day after epoch", time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC), 1},
		{"unix epoch", time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), 25569},
		{"zero time maps to zero", time.Time{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dayNumber(tt.date); got != tt.want {
				t.Errorf("dayNumber(%v) = %d, want %d", tt.date, got, tt.want)
			}
		})
	}
}

func TestScaleAmount(t *testing.T) {
	d := decimal.RequireFromString("0.12345")
	got := scaleAmount(d, 100)
	if got.String() != "12.35" {
		t.Errorf("scaleAmount = %s, want 12.35", got)
	}
}

func TestScaleAmount_RoundingIsStable(t *testing.T) {
	d := decimal.RequireFromString("123.456789")
	once := scaleAmount(d, 100)
	again := once.Round(2)
	if !once.Equal(again) {
		t.Errorf("re-rounding changed value: %s -> %s", once, again)
	}
}

func TestOrBlank(t *testing.T) {
	if got := orBlank("", 10); got != " " {
		t.Errorf("empty string = %q, want single blank", got)
	}
	if got := orBlank("ABCDEFGHIJKLMNOP", 4); got != "ABCD" {
		t.Errorf("over-long string = %q, want ABCD", got)
	}
	if got := orBlank("EUR", 3); got != "EUR" {
		t.Errorf("fitting string = %q, want EUR", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 20); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("0123456789", 4); got != "0123" {
		t.Errorf("truncate long = %q", got)
	}
}
