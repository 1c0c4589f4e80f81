package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/noisemap/pkg/features"
)

var featuresCmd = &cobra.Command{
	Use:   "features FILE",
	Short: "Print the feature vector of an audio file",
	Long: `Decode FILE with the configured recipe and print every slot of its
feature vector in order. No bundle is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runFeatures,
}

func init() {
	rootCmd.AddCommand(featuresCmd)
}

type slot struct {
	Index int     `json:"index" yaml:"index"`
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

type featureVector struct {
	File       string  `json:"file" yaml:"file"`
	Recipe     string  `json:"recipe" yaml:"recipe"`
	SampleRate int     `json:"sample_rate" yaml:"sample_rate"`
	Duration   string  `json:"duration" yaml:"duration"`
	NoiseLevel float64 `json:"noise_level" yaml:"noise_level"`
	Slots      []slot  `json:"slots" yaml:"slots"`
}

func runFeatures(cmd *cobra.Command, args []string) error {
	recipe, err := globalConfig.Recipe()
	if err != nil {
		return err
	}
	fe, err := features.NewFrontend(recipe, frontendOptions()...)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	w, vec, err := fe.Featurize(cmd.Context(), data)
	if err != nil {
		return err
	}

	names := recipe.SlotNames()
	fv := featureVector{
		File:       args[0],
		Recipe:     recipe.Fingerprint(),
		SampleRate: w.SampleRate,
		Duration:   w.Duration().String(),
		NoiseLevel: w.Level(),
		Slots:      make([]slot, len(vec)),
	}
	for i, v := range vec {
		fv.Slots[i] = slot{Index: i, Name: names[i], Value: v}
	}
	return output(cmd, fv)
}
