package features

import (
	"fmt"
	"math"
	"slices"
)

// chromaMap assigns every FFT bin at or above ChromaFMin to a pitch class
// with C = 0, tuned to A4 = 440 Hz.
func chromaMap(r Recipe) []int {
	bins := r.FrameLength/2 + 1
	classes := make([]int, bins)
	for k := range classes {
		f := float64(k) * float64(r.SampleRate) / float64(r.FrameLength)
		if f < r.ChromaFMin {
			classes[k] = -1
			continue
		}
		midi := int(math.Round(69 + 12*math.Log2(f/440)))
		classes[k] = ((midi % chromaBins) + chromaBins) % chromaBins
	}
	return classes
}

// contrastBands returns inclusive bin ranges for ContrastBands+1 bands with
// edges 0, fmin, 2*fmin, ... and the last band running up to Nyquist.
func contrastBands(r Recipe) ([][2]int, error) {
	binHz := float64(r.SampleRate) / float64(r.FrameLength)
	last := r.FrameLength / 2
	edges := make([]float64, r.ContrastBands+2)
	for i := 1; i <= r.ContrastBands; i++ {
		edges[i] = r.ContrastFMin * math.Pow(2, float64(i-1))
	}
	edges[len(edges)-1] = float64(r.SampleRate) / 2

	bands := make([][2]int, r.NumContrast())
	for b := range bands {
		lo := int(math.Ceil(edges[b] / binHz))
		hi := min(int(math.Floor(edges[b+1]/binHz)), last)
		if b == len(bands)-1 {
			hi = last
		}
		if hi < lo {
			return nil, fmt.Errorf("features: contrast band %d (%g-%g Hz) has no bins", b, edges[b], edges[b+1])
		}
		bands[b] = [2]int{lo, hi}
	}
	return bands, nil
}

func sortedCopy(v []float64) []float64 {
	out := slices.Clone(v)
	slices.Sort(out)
	return out
}

func toDB(v float64) float64 {
	return 10 * math.Log10(math.Max(amin, v))
}
