package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/noisemap/pkg/model"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Describe a bundle",
	Long: `Load the bundle from --bundle or the blob store and print its recipe,
labels, training counts and hold-out accuracy. The bundle is also checked
against the configured recipe.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

type inspection struct {
	model.Summary `yaml:",inline"`
	// Compatible reports whether the bundle matches the configured recipe.
	Compatible bool   `json:"compatible" yaml:"compatible"`
	Mismatch   string `json:"mismatch,omitempty" yaml:"mismatch,omitempty"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	b, err := loadBundle(cmd.Context())
	if err != nil {
		return err
	}
	recipe, err := globalConfig.Recipe()
	if err != nil {
		return err
	}
	in := inspection{Summary: b.Summary(), Compatible: true}
	if err := b.CheckRecipe(recipe); err != nil {
		in.Compatible = false
		in.Mismatch = err.Error()
	}
	return output(cmd, in)
}
