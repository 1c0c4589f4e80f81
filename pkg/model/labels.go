package model

import (
	"slices"

	"github.com/haivivi/noisemap/pkg/errs"
)

// LabelCodec is a bijection between class names and indices. Indices follow
// the sorted order of the distinct names, so the same label set always
// encodes the same way.
type LabelCodec struct {
	classes []string
	index   map[string]int
}

// FitLabelCodec builds a codec over the distinct values of names.
func FitLabelCodec(names []string) (*LabelCodec, error) {
	classes := slices.Clone(names)
	slices.Sort(classes)
	return NewLabelCodec(slices.Compact(classes))
}

// NewLabelCodec restores a codec from its class list, which must be sorted,
// distinct and non-empty.
func NewLabelCodec(classes []string) (*LabelCodec, error) {
	const op = "labels"
	if len(classes) == 0 {
		return nil, errs.New(errs.KindInvalidInput, op, "no classes")
	}
	c := &LabelCodec{classes: slices.Clone(classes), index: make(map[string]int, len(classes))}
	for i, name := range classes {
		if name == "" {
			return nil, errs.New(errs.KindInvalidInput, op, "empty class name")
		}
		if i > 0 && classes[i-1] >= name {
			return nil, errs.Newf(errs.KindInvalidInput, op, "classes not sorted and distinct at %q", name)
		}
		c.index[name] = i
	}
	return c, nil
}

// Len returns the number of classes.
func (c *LabelCodec) Len() int { return len(c.classes) }

// Classes returns the class names in index order.
func (c *LabelCodec) Classes() []string { return slices.Clone(c.classes) }

// Encode returns the index of name.
func (c *LabelCodec) Encode(name string) (int, error) {
	i, ok := c.index[name]
	if !ok {
		return 0, errs.Newf(errs.KindUnknownLabel, "labels.encode", "unknown class %q", name)
	}
	return i, nil
}

// EncodeAll encodes every name.
func (c *LabelCodec) EncodeAll(names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, name := range names {
		idx, err := c.Encode(name)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// Decode returns the class name at index i.
func (c *LabelCodec) Decode(i int) (string, error) {
	if i < 0 || i >= len(c.classes) {
		return "", errs.Newf(errs.KindUnknownLabel, "labels.decode", "index %d outside [0, %d)", i, len(c.classes))
	}
	return c.classes[i], nil
}
