package resampler

import (
	"errors"
	"math"
	"testing"
)

func TestResampleLength(t *testing.T) {
	tests := []struct {
		src, dst int
		in, want int
	}{
		{44100, 22050, 44100, 22050},
		{22050, 44100, 22050, 44100},
		{48000, 22050, 48000, 22050},
		{48000, 22050, 1001, 459},
		{16000, 16000, 1234, 1234},
	}
	for _, tt := range tests {
		out, err := Resample(make([]float64, tt.in), tt.src, tt.dst)
		if err != nil {
			t.Fatalf("Resample(%d->%d): %v", tt.src, tt.dst, err)
		}
		if len(out) != tt.want {
			t.Errorf("Resample(%d->%d) len = %d, want %d", tt.src, tt.dst, len(out), tt.want)
		}
		if got := OutputLen(tt.in, tt.src, tt.dst); got != tt.want {
			t.Errorf("OutputLen(%d, %d, %d) = %d, want %d", tt.in, tt.src, tt.dst, got, tt.want)
		}
	}
}

func TestResamplePreservesDC(t *testing.T) {
	in := make([]float64, 44100)
	for i := range in {
		in[i] = 0.25
	}
	out, err := Resample(in, 44100, 22050)
	if err != nil {
		t.Fatal(err)
	}
	// Edges carry the filter's start-up transient.
	for i := 2000; i < len(out)-2000; i++ {
		if math.Abs(out[i]-0.25) > 1e-3 {
			t.Fatalf("out[%d] = %f, want 0.25", i, out[i])
		}
	}
}

func tone(freq float64, rate, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(rate))
	}
	return s
}

func interiorRMS(s []float64, margin int) float64 {
	var sum float64
	n := 0
	for i := margin; i < len(s)-margin; i++ {
		sum += s[i] * s[i]
		n++
	}
	return math.Sqrt(sum / float64(n))
}

func TestResampleKeepsLowTone(t *testing.T) {
	out, err := Resample(tone(440, 44100, 44100), 44100, 22050)
	if err != nil {
		t.Fatal(err)
	}
	if rms := interiorRMS(out, 2000); math.Abs(rms-1/math.Sqrt2) > 0.02 {
		t.Fatalf("rms = %f, want %f", rms, 1/math.Sqrt2)
	}
}

func TestResampleRejectsAboveNyquist(t *testing.T) {
	// 15 kHz does not fit below the 11025 Hz Nyquist limit of 22050 Hz.
	out, err := Resample(tone(15000, 44100, 44100), 44100, 22050)
	if err != nil {
		t.Fatal(err)
	}
	if rms := interiorRMS(out, 2000); rms > 0.05 {
		t.Fatalf("rms = %f, want the tone filtered out", rms)
	}
}

func TestResampleDeterministic(t *testing.T) {
	in := make([]float64, 3000)
	for i := range in {
		in[i] = math.Sin(float64(i) * 0.37)
	}
	a, _ := Resample(in, 48000, 22050)
	b, _ := Resample(in, 48000, 22050)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestResampleInvalidRate(t *testing.T) {
	if _, err := Resample([]float64{1}, 0, 22050); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}

func TestFitLength(t *testing.T) {
	if got := fitLength([]float64{1, 2, 3}, 2); len(got) != 2 || got[1] != 2 {
		t.Errorf("trim = %v", got)
	}
	if got := fitLength([]float64{1}, 3); len(got) != 3 || got[0] != 1 || got[2] != 0 {
		t.Errorf("pad = %v", got)
	}
}

func TestDownmix(t *testing.T) {
	got := Downmix([]float64{1, 0, 0.5, 0.5, -1, 1, 0.3}, 2)
	want := []float64{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}
