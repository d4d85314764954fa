package normalize

import (
	"testing"
	"time"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"rupee lakh grouping", "₹1,25,000", 125000},
		{"empty", "", 0},
		{"nil", nil, 0},
		{"whitespace", "   ", 0},
		{"plain int string", "42", 42},
		{"decimal", "12.50", 12.5},
		{"dollar with space", "$ 1,234.56", 1234.56},
		{"euro", "€99", 99},
		{"pound", "£7.25", 7.25},
		{"yen", "¥300", 300},
		{"unit suffix", "500 kg", 500},
		{"unit suffix no space", "2.5tons", 2.5},
		{"percent", "87%", 87},
		{"negative", "-250", -250},
		{"accounting negative", "(1,000)", -1000},
		{"exponent", "1.2e3", 1200},
		{"garbage", "abc", 0},
		{"dash placeholder", "-", 0},
		{"float64", 3.5, 3.5},
		{"int", 7, 7},
		{"int64", int64(9), 9},
		{"unsupported type", []string{"1"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Amount(tt.in); got != tt.want {
				t.Errorf("Amount(%#v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsEmpty(t *testing.T) {
	empty := []any{nil, "", "  ", "0", "N/A", "na", "-", "NULL", "undefined", " n/a ", 0}
	for _, v := range empty {
		if !IsEmpty(v) {
			t.Errorf("IsEmpty(%#v) = false, want true", v)
		}
	}

	notEmpty := []any{"x", "0.0", "none", "B1", 12, "tbd"}
	for _, v := range notEmpty {
		if IsEmpty(v) {
			t.Errorf("IsEmpty(%#v) = true, want false", v)
		}
	}
}

func TestDate_Serial(t *testing.T) {
	got, ok := Date("45901")
	if !ok {
		t.Fatal("expected serial 45901 to parse")
	}
	want := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Date(45901) = %v, want %v", got, want)
	}
	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 {
		t.Errorf("expected midnight, got %v", got)
	}

	// float input takes the same path
	if f, ok := Date(45901.0); !ok || !f.Equal(want) {
		t.Errorf("Date(45901.0) = %v, %v", f, ok)
	}
}

func TestDate_SerialKeepsTimeOfDay(t *testing.T) {
	got, ok := Date(45901.5)
	if !ok {
		t.Fatal("expected fractional serial to parse")
	}
	want := time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Date(45901.5) = %v, want %v", got, want)
	}
}

func TestDate_SerialOutOfRange(t *testing.T) {
	for _, v := range []any{"12345", 29999.0, 2958467.0, "-5"} {
		if d, ok := Date(v); ok {
			t.Errorf("Date(%#v) = %v, want not ok", v, d)
		}
	}
}

func TestDate_Strings(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"2024/03/15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"03/15/2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"3/5/2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"15-Mar-2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"15 Mar 2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"Mar 15, 2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"March 15, 2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-03-15 14:30:00", time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)},
		{"2024-03-15T00:00:45Z", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Date(tt.in)
			if !ok {
				t.Fatalf("Date(%q) not ok", tt.in)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Date(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDate_Invalid(t *testing.T) {
	for _, v := range []any{nil, "", "n/a", "soon", "32/13/2024", time.Time{}} {
		if d, ok := Date(v); ok {
			t.Errorf("Date(%#v) = %v, want not ok", v, d)
		}
	}
}

func TestSerialToTime(t *testing.T) {
	if got := SerialToTime(25569); !got.Equal(time.Unix(0, 0).UTC()) {
		t.Errorf("SerialToTime(25569) = %v, want unix epoch", got)
	}
}
