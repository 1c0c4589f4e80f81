package cli

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0ms"},
		{850 * time.Millisecond, "850ms"},
		{time.Second, "1.0s"},
		{4200 * time.Millisecond, "4.2s"},
		{59 * time.Second, "59.0s"},
		{time.Minute, "1m0s"},
		{3*time.Minute + 5400*time.Millisecond, "3m5s"},
		{2 * time.Hour, "2h0m0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{10 << 20, "10.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatPercentAndLevel(t *testing.T) {
	if got := FormatPercent(0.8734); got != "87.3%" {
		t.Errorf("FormatPercent = %q, want 87.3%%", got)
	}
	if got := FormatLevel(-23.456); got != "-23.5 dBFS" {
		t.Errorf("FormatLevel = %q, want -23.5 dBFS", got)
	}
}
