package utils

import "testing"

func TestParseGPS(t *testing.T) {
	got, err := ParseGPS("1187008882")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1187008882 {
		t.Fatalf("expected 1187008882, got %v", got)
	}
}

func TestParseGPSRejectsBadInput(t *testing.T) {
	for _, value := range []string{"", "not-a-time", "-100"} {
		if _, err := ParseGPS(value); err == nil {
			t.Fatalf("expected error for %q", value)
		}
	}
}

func TestFormatGPS(t *testing.T) {
	if got := FormatGPS(1187008882); got != "1187008882" {
		t.Fatalf("expected integer rendering, got %q", got)
	}
	if got := FormatGPS(100.5); got != "100.5" {
		t.Fatalf("expected fractional rendering, got %q", got)
	}
}
