package model

import (
	"cmp"
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/haivivi/noisemap/pkg/errs"
)

// AlgorithmRandomForest names the Forest classifier in bundles.
const AlgorithmRandomForest = "random_forest"

// ForestConfig controls random forest training.
type ForestConfig struct {
	// NumTrees is the ensemble size.
	NumTrees int `json:"num_trees" yaml:"num_trees"`
	// MaxDepth limits tree depth. Zero grows trees until leaves are pure.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`
	// MinSamplesSplit is the smallest node that may be split.
	MinSamplesSplit int `json:"min_samples_split" yaml:"min_samples_split"`
	// MinSamplesLeaf is the smallest allowed leaf.
	MinSamplesLeaf int `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	// MaxFeatures is the number of features tried per split. Zero means
	// floor(sqrt(features)).
	MaxFeatures int `json:"max_features" yaml:"max_features"`
	// Seed makes training reproducible. Tree i draws from PCG(Seed, i+1).
	Seed uint64 `json:"seed" yaml:"seed"`
	// Workers bounds concurrent tree construction. Zero means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultForestConfig returns 100 fully grown trees seeded with 42.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NumTrees:        100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
	}
}

// Forest is a bagged ensemble of CART trees using Gini impurity.
// Probabilities are the mean of the per-tree leaf class distributions.
type Forest struct {
	Features int    `msgpack:"features"`
	Classes  int    `msgpack:"classes"`
	Trees    []Tree `msgpack:"trees"`
}

// Tree is a binary decision tree stored as a flat node array with the root
// at index 0. Children always follow their parent.
type Tree struct {
	Nodes []Node `msgpack:"nodes"`
}

// Node is a split (Feature >= 0) or a leaf (Feature == -1).
// Samples with x[Feature] <= Threshold go Left.
type Node struct {
	Feature   int       `msgpack:"f"`
	Threshold float64   `msgpack:"t,omitempty"`
	Left      int32     `msgpack:"l,omitempty"`
	Right     int32     `msgpack:"r,omitempty"`
	Value     []float64 `msgpack:"v,omitempty"`
}

var _ Classifier = (*Forest)(nil)

// FitForest trains a forest on rows x with class indices y in
// [0, numClasses). The result depends only on the inputs and cfg.Seed, not
// on scheduling.
func FitForest(ctx context.Context, x [][]float64, y []int, numClasses int, cfg ForestConfig) (*Forest, error) {
	const op = "forest.fit"
	if len(x) == 0 || len(x) != len(y) {
		return nil, errs.Newf(errs.KindInvalidInput, op, "%d rows, %d labels", len(x), len(y))
	}
	if numClasses <= 0 {
		return nil, errs.Newf(errs.KindInvalidInput, op, "invalid class count %d", numClasses)
	}
	dim := len(x[0])
	if dim == 0 {
		return nil, errs.New(errs.KindInvalidInput, op, "zero-length rows")
	}
	for i, row := range x {
		if len(row) != dim {
			return nil, errs.Newf(errs.KindShapeMismatch, op, "row %d has %d features, want %d", i, len(row), dim)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errs.Newf(errs.KindInvalidInput, op, "row %d has a non-finite value", i)
			}
		}
		if y[i] < 0 || y[i] >= numClasses {
			return nil, errs.Newf(errs.KindUnknownLabel, op, "label %d of row %d outside [0, %d)", y[i], i, numClasses)
		}
	}

	cfg = cfg.withDefaults(dim)
	f := &Forest{Features: dim, Classes: numClasses, Trees: make([]Tree, cfg.NumTrees)}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for t := range f.Trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b := &treeBuilder{
				x:       x,
				y:       y,
				classes: numClasses,
				cfg:     cfg,
				rng:     rand.New(rand.NewPCG(cfg.Seed, uint64(t)+1)),
			}
			f.Trees[t] = Tree{Nodes: b.fit()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

func (c ForestConfig) withDefaults(dim int) ForestConfig {
	if c.NumTrees <= 0 {
		c.NumTrees = 100
	}
	if c.MinSamplesSplit < 2 {
		c.MinSamplesSplit = 2
	}
	if c.MinSamplesLeaf < 1 {
		c.MinSamplesLeaf = 1
	}
	if c.MaxFeatures <= 0 {
		c.MaxFeatures = max(1, int(math.Sqrt(float64(dim))))
	}
	c.MaxFeatures = min(c.MaxFeatures, dim)
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// NumFeatures implements Classifier.
func (f *Forest) NumFeatures() int { return f.Features }

// NumClasses implements Classifier.
func (f *Forest) NumClasses() int { return f.Classes }

// Probabilities implements Classifier.
func (f *Forest) Probabilities(x []float64) ([]float64, error) {
	if err := checkDim("forest.predict", len(x), f.Features); err != nil {
		return nil, err
	}
	probs := make([]float64, f.Classes)
	for i := range f.Trees {
		floats.Add(probs, f.Trees[i].leaf(x))
	}
	floats.Scale(1/float64(len(f.Trees)), probs)
	return probs, nil
}

// Predict implements Classifier. Ties go to the lowest class index.
func (f *Forest) Predict(x []float64) (int, error) {
	probs, err := f.Probabilities(x)
	if err != nil {
		return 0, err
	}
	return floats.MaxIdx(probs), nil
}

func (t *Tree) leaf(x []float64) []float64 {
	i := int32(0)
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validate checks a decoded forest for shapes that would panic at predict
// time.
func (f *Forest) validate() error {
	const op = "forest"
	if f.Features <= 0 || f.Classes <= 0 || len(f.Trees) == 0 {
		return errs.Newf(errs.KindBundleVersion, op, "empty forest: %d features, %d classes, %d trees", f.Features, f.Classes, len(f.Trees))
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return errs.Newf(errs.KindBundleVersion, op, "tree %d has no nodes", ti)
		}
		size := int32(len(t.Nodes))
		for ni, n := range t.Nodes {
			i := int32(ni)
			switch {
			case n.Feature < 0:
				if len(n.Value) != f.Classes {
					return errs.Newf(errs.KindBundleVersion, op, "tree %d leaf %d has %d classes", ti, ni, len(n.Value))
				}
			case n.Feature >= f.Features:
				return errs.Newf(errs.KindBundleVersion, op, "tree %d node %d splits on feature %d", ti, ni, n.Feature)
			case n.Left <= i || n.Right <= i || n.Left >= size || n.Right >= size:
				return errs.Newf(errs.KindBundleVersion, op, "tree %d node %d has invalid children", ti, ni)
			}
		}
	}
	return nil
}

type treeBuilder struct {
	x       [][]float64
	y       []int
	classes int
	cfg     ForestConfig
	rng     *rand.Rand
	nodes   []Node
}

// fit grows one tree on a bootstrap sample.
func (b *treeBuilder) fit() []Node {
	n := len(b.x)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = b.rng.IntN(n)
	}
	b.grow(idx, 0)
	return b.nodes
}

func (b *treeBuilder) grow(idx []int, depth int) int32 {
	counts := make([]int, b.classes)
	for _, i := range idx {
		counts[b.y[i]]++
	}
	self := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{Feature: -1})

	if b.isLeaf(idx, counts, depth) {
		b.nodes[self].Value = distribution(counts, len(idx))
		return self
	}
	feature, threshold, ok := b.split(idx, counts)
	if !ok {
		b.nodes[self].Value = distribution(counts, len(idx))
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return self
}

func (b *treeBuilder) isLeaf(idx []int, counts []int, depth int) bool {
	if b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth {
		return true
	}
	if len(idx) < b.cfg.MinSamplesSplit || len(idx) < 2*b.cfg.MinSamplesLeaf {
		return true
	}
	return slices.Contains(counts, len(idx))
}

// split searches MaxFeatures random features for the threshold with the
// lowest weighted Gini impurity. It reports false if no candidate improves
// on the parent.
func (b *treeBuilder) split(idx []int, parent []int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	best := weightedGini(parent, n)
	sorted := make([]int, n)
	left := make([]int, b.classes)
	right := make([]int, b.classes)
	minLeaf := b.cfg.MinSamplesLeaf

	for _, f := range b.rng.Perm(len(b.x[0]))[:b.cfg.MaxFeatures] {
		copy(sorted, idx)
		slices.SortStableFunc(sorted, func(i, j int) int {
			return cmp.Compare(b.x[i][f], b.x[j][f])
		})
		clear(left)
		copy(right, parent)
		for k := 0; k < n-1; k++ {
			c := b.y[sorted[k]]
			left[c]++
			right[c]--
			lo, hi := b.x[sorted[k]][f], b.x[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			nl, nr := k+1, n-k-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			score := weightedGini(left, nl) + weightedGini(right, nr)
			if score < best-1e-12 {
				best, feature, ok = score, f, true
				threshold = lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
			}
		}
	}
	return feature, threshold, ok
}

// weightedGini returns n times the Gini impurity of counts.
func weightedGini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	var sq float64
	for _, c := range counts {
		sq += float64(c) * float64(c)
	}
	return float64(n) - sq/float64(n)
}

func distribution(counts []int, n int) []float64 {
	out := make([]float64, len(counts))
	for i, c := range counts {
		out[i] = float64(c) / float64(n)
	}
	return out
}
