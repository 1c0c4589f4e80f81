package train

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/haivivi/noisemap/pkg/errs"
	"github.com/haivivi/noisemap/pkg/model"
)

// holdOutStream separates the split shuffle from the tree seeds.
const holdOutStream = 0x686f6c64

// holdOut fits a separate normaliser and forest on a stratified training
// split and scores it on the rest. Every class keeps at least one training
// sample; classes with two or more samples contribute at least one test
// sample.
func holdOut(ctx context.Context, x [][]float64, y []int, codec *model.LabelCodec, opts Options) (*Evaluation, error) {
	trainIdx, testIdx := stratifiedSplit(y, codec.Len(), opts.HoldOut, opts.Forest.Seed)
	if len(testIdx) == 0 {
		return nil, errs.New(errs.KindInvalidInput, "train.holdout", "hold-out split is empty")
	}

	trainX := make([][]float64, len(trainIdx))
	trainY := make([]int, len(trainIdx))
	for i, idx := range trainIdx {
		trainX[i], trainY[i] = x[idx], y[idx]
	}
	norm, forest, err := fit(ctx, trainX, trainY, codec.Len(), opts)
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{
		Train:     len(trainIdx),
		Test:      len(testIdx),
		Labels:    codec.Classes(),
		Confusion: make([][]int, codec.Len()),
	}
	for i := range eval.Confusion {
		eval.Confusion[i] = make([]int, codec.Len())
	}
	for _, idx := range testIdx {
		v := x[idx]
		if norm != nil {
			if v, err = norm.Transform(v); err != nil {
				return nil, err
			}
		}
		pred, err := forest.Predict(v)
		if err != nil {
			return nil, err
		}
		eval.Confusion[y[idx]][pred]++
		if pred == y[idx] {
			eval.Correct++
		}
	}
	eval.Accuracy = float64(eval.Correct) / float64(eval.Test)
	return eval, nil
}

func stratifiedSplit(y []int, numClasses int, frac float64, seed uint64) (trainIdx, testIdx []int) {
	r := rand.New(rand.NewPCG(seed, holdOutStream))
	byClass := make([][]int, numClasses)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	for _, idx := range byClass {
		if len(idx) == 0 {
			continue
		}
		r.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		n := int(math.Round(frac * float64(len(idx))))
		if n == 0 && len(idx) >= 2 {
			n = 1
		}
		n = min(n, len(idx)-1)
		testIdx = append(testIdx, idx[:n]...)
		trainIdx = append(trainIdx, idx[n:]...)
	}
	slices.Sort(trainIdx)
	slices.Sort(testIdx)
	return trainIdx, testIdx
}
