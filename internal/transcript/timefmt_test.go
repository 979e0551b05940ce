package transcript

import (
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		name     string
		seconds  float64
		expected string
	}{
		{name: "zero", seconds: 0, expected: "00:00.000"},
		{name: "just under a minute", seconds: 59.999, expected: "00:59.999"},
		{name: "one minute", seconds: 60, expected: "01:00.000"},
		{name: "just under an hour", seconds: 3599.999, expected: "59:59.999"},
		{name: "one hour", seconds: 3600, expected: "01:00:00.000"},
		{name: "hour minute second", seconds: 3661.5, expected: "01:01:01.500"},
		{name: "truncates not rounds", seconds: 1.9999, expected: "00:01.999"},
		{name: "sub millisecond", seconds: 0.0004, expected: "00:00.000"},
		{name: "many hours", seconds: 36000 + 120 + 3.25, expected: "10:02:03.250"},
		{name: "negative clamps", seconds: -5, expected: "00:00.000"},
		{name: "nan", seconds: math.NaN(), expected: "00:00.000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTime(tt.seconds); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestFormatTimeHourBoundary(t *testing.T) {
	if got := FormatTime(3599.999); strings.Count(got, ":") != 1 {
		t.Errorf("Expected no hour field for 3599.999, got %s", got)
	}
	if got := FormatTime(3600.0); strings.Count(got, ":") != 2 {
		t.Errorf("Expected hour field for 3600, got %s", got)
	}
}

func TestFormatTimeMonotonic(t *testing.T) {
	// Within each form, later times never sort before earlier ones
	prev := FormatTime(0)
	for ms := 1; ms < 3600*1000; ms += 997 {
		cur := FormatTime(float64(ms) / 1000)
		if cur < prev {
			t.Fatalf("Expected %s >= %s", cur, prev)
		}
		prev = cur
	}

	prev = FormatTime(3600)
	for s := 3600.0; s < 36000; s += 61.3 {
		cur := FormatTime(s)
		if cur < prev {
			t.Fatalf("Expected %s >= %s", cur, prev)
		}
		prev = cur
	}
}

func TestFormatDecimal(t *testing.T) {
	elapsed := decimal.NewFromInt(30)
	start := elapsed.Add(decimal.NewFromFloat(29.999))

	if got := FormatDecimal(start); got != "00:59.999" {
		t.Errorf("Expected 00:59.999, got %s", got)
	}

	if got := FormatDecimal(decimal.RequireFromString("3600.0009")); got != "01:00:00.000" {
		t.Errorf("Expected 01:00:00.000, got %s", got)
	}
}
