// Package model holds the trained artifacts of the classifier and the
// versioned bundle that carries them from training to serving.
//
// A Bundle is the unit of deployment: the label codec, the optional feature
// normaliser and the classifier are written together once by training and
// loaded wholesale by every serving process. Nothing in a loaded bundle is
// mutated afterwards, so it is shared between requests without locking.
package model

import (
	"github.com/haivivi/noisemap/pkg/errs"
)

// Classifier maps a normalised feature vector to a class index.
//
// Implementations are immutable after fit. Predict and Probabilities are
// pure and safe for concurrent use.
type Classifier interface {
	// NumFeatures returns the input dimensionality the classifier was fit on.
	NumFeatures() int
	// NumClasses returns the number of output classes.
	NumClasses() int
	// Predict returns the most likely class index for x.
	Predict(x []float64) (int, error)
	// Probabilities returns one score per class, summing to 1.
	Probabilities(x []float64) ([]float64, error)
}

func checkDim(op string, got, want int) error {
	if got != want {
		return errs.Newf(errs.KindShapeMismatch, op, "got %d features, want %d", got, want)
	}
	return nil
}
