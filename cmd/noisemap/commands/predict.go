package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/noisemap/pkg/errs"
)

var predictCmd = &cobra.Command{
	Use:   "predict FILE...",
	Short: "Classify audio files",
	Long: `Classify each file with the bundle from --bundle or the blob store.

Every file gets a row; files that cannot be classified show the failure
kind instead of a label, and the command exits non-zero.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
}

type prediction struct {
	File       string     `json:"file" yaml:"file"`
	Label      string     `json:"label,omitempty" yaml:"label,omitempty"`
	Confidence float64    `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	NoiseLevel float64    `json:"noise_level,omitempty" yaml:"noise_level,omitempty"`
	Seconds    float64    `json:"seconds,omitempty" yaml:"seconds,omitempty"`
	Error      *errorView `json:"error,omitempty" yaml:"error,omitempty"`
}

type errorView struct {
	Kind    errs.Kind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, err := loadService(ctx)
	if err != nil {
		return err
	}

	results := make(predictions, 0, len(args))
	failed := 0
	for _, path := range args {
		row := prediction{File: path}
		data, err := os.ReadFile(path)
		if err == nil {
			res, cerr := svc.Classify(ctx, data)
			if cerr == nil {
				row.Label = res.Label
				row.Confidence = res.Confidence
				row.NoiseLevel = res.NoiseLevel
				row.Seconds = res.Duration.Seconds()
			}
			err = cerr
		} else {
			err = errs.Wrap(errs.KindInvalidInput, "predict", "read file", err)
		}
		if err != nil {
			failed++
			row.Error = &errorView{Kind: errs.KindOf(err), Message: errs.Message(err)}
		}
		results = append(results, row)
	}

	if err := output(cmd, results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
