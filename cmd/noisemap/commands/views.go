package commands

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/haivivi/noisemap/pkg/cli"
	"github.com/haivivi/noisemap/pkg/train"
)

// reportView renders a training report as a table and as the report itself
// for yaml and json.
type reportView struct {
	*train.Report
}

func (r reportView) MarshalJSON() ([]byte, error) { return json.Marshal(r.Report) }
func (r reportView) MarshalYAML() (any, error)    { return r.Report, nil }

func (r reportView) Header() []string { return []string{"item", "value"} }

func (r reportView) Rows() [][]string {
	rows := [][]string{
		{"files", strconv.Itoa(r.Files)},
		{"samples", strconv.Itoa(r.Samples)},
		{"dim", strconv.Itoa(r.Dim)},
		{"elapsed", cli.FormatDuration(r.Elapsed)},
	}
	classes := make([]string, 0, len(r.ClassCounts))
	for c := range r.ClassCounts {
		classes = append(classes, c)
	}
	slices.Sort(classes)
	for _, c := range classes {
		rows = append(rows, []string{"class " + c, strconv.Itoa(r.ClassCounts[c])})
	}
	if e := r.HoldOut; e != nil {
		rows = append(rows,
			[]string{"holdout", fmt.Sprintf("%d/%d correct (%d train)", e.Correct, e.Test, e.Train)},
			[]string{"accuracy", cli.FormatPercent(e.Accuracy)},
		)
	}
	for _, s := range r.Skipped {
		rows = append(rows, []string{"skipped " + s.Path, s.Reason})
	}
	return rows
}

type predictions []prediction

func (p predictions) Header() []string {
	return []string{"file", "label", "confidence", "level", "duration", "error"}
}

func (p predictions) Rows() [][]string {
	rows := make([][]string, len(p))
	for i, r := range p {
		if r.Error != nil {
			rows[i] = []string{r.File, "-", "-", "-", "-", string(r.Error.Kind) + ": " + r.Error.Message}
			continue
		}
		rows[i] = []string{
			r.File,
			r.Label,
			cli.FormatPercent(r.Confidence),
			cli.FormatLevel(r.NoiseLevel),
			cli.FormatDuration(time.Duration(r.Seconds * float64(time.Second))),
			"",
		}
	}
	return rows
}

func (f featureVector) Header() []string { return []string{"#", "slot", "value"} }

func (f featureVector) Rows() [][]string {
	rows := make([][]string, len(f.Slots))
	for i, s := range f.Slots {
		rows[i] = []string{strconv.Itoa(s.Index), s.Name, strconv.FormatFloat(s.Value, 'g', 6, 64)}
	}
	return rows
}

func (in inspection) Header() []string { return []string{"item", "value"} }

func (in inspection) Rows() [][]string {
	rows := [][]string{
		{"recipe", in.Recipe},
		{"format", strconv.Itoa(int(in.FormatVersion))},
		{"sample rate", strconv.Itoa(in.SampleRate)},
		{"dim", strconv.Itoa(in.Dim)},
		{"scaling", string(in.Scaling)},
		{"algorithm", fmt.Sprintf("%s (%d trees)", in.Algorithm, in.Trees)},
		{"labels", strings.Join(in.Labels, ", ")},
		{"samples", strconv.Itoa(in.Samples)},
	}
	if in.HoldOut != nil {
		rows = append(rows, []string{"holdout accuracy", cli.FormatPercent(*in.HoldOut)})
	}
	rows = append(rows, []string{"created", in.CreatedAt.UTC().Format("2006-01-02 15:04:05")})
	if in.Compatible {
		rows = append(rows, []string{"compatible", "yes"})
	} else {
		rows = append(rows, []string{"compatible", "no: " + in.Mismatch})
	}
	return rows
}
