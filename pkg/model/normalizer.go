package model

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/haivivi/noisemap/pkg/errs"
)

// Scaling records whether a bundle normalises features before prediction.
type Scaling string

const (
	// ScalingStandard subtracts the fitted mean and divides by the fitted
	// scale, slot by slot.
	ScalingStandard Scaling = "standard"
	// ScalingNone passes raw features through unchanged.
	ScalingNone Scaling = "none"
)

// Normalizer holds per-slot standardisation parameters.
type Normalizer struct {
	Mean  []float64 `msgpack:"mean" json:"mean"`
	Scale []float64 `msgpack:"scale" json:"scale"`
}

// FitNormalizer computes the per-slot mean and population standard
// deviation of vectors. A slot with zero deviation gets scale 1.
func FitNormalizer(vectors [][]float64) (*Normalizer, error) {
	const op = "normalizer.fit"
	if len(vectors) == 0 {
		return nil, errs.New(errs.KindInvalidInput, op, "no vectors")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, errs.New(errs.KindInvalidInput, op, "zero-length vectors")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, errs.Newf(errs.KindShapeMismatch, op, "vector %d has %d features, want %d", i, len(v), dim)
		}
	}

	n := &Normalizer{Mean: make([]float64, dim), Scale: make([]float64, dim)}
	col := make([]float64, len(vectors))
	for j := range dim {
		for i, v := range vectors {
			col[i] = v[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std <= 1e-12*math.Max(1, math.Abs(mean)) || math.IsNaN(std) {
			std = 1
		}
		n.Mean[j] = mean
		n.Scale[j] = std
	}
	return n, nil
}

// Dim returns the fitted dimensionality.
func (n *Normalizer) Dim() int { return len(n.Mean) }

// Transform returns (v - mean) / scale. v is not modified.
func (n *Normalizer) Transform(v []float64) ([]float64, error) {
	if err := checkDim("normalizer.transform", len(v), n.Dim()); err != nil {
		return nil, err
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = (x - n.Mean[i]) / n.Scale[i]
	}
	return out, nil
}

// TransformAll applies Transform to every vector.
func (n *Normalizer) TransformAll(vectors [][]float64) ([][]float64, error) {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		t, err := n.Transform(v)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (n *Normalizer) validate() error {
	if len(n.Mean) == 0 || len(n.Mean) != len(n.Scale) {
		return errs.Newf(errs.KindBundleVersion, "normalizer", "mean/scale lengths %d/%d", len(n.Mean), len(n.Scale))
	}
	for i, s := range n.Scale {
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return errs.Newf(errs.KindBundleVersion, "normalizer", "invalid scale %v at slot %d", s, i)
		}
	}
	return nil
}
