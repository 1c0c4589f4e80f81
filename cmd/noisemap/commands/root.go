package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/noisemap/pkg/classify"
	"github.com/haivivi/noisemap/pkg/cli"
	"github.com/haivivi/noisemap/pkg/config"
	"github.com/haivivi/noisemap/pkg/features"
	"github.com/haivivi/noisemap/pkg/model"
	"github.com/haivivi/noisemap/pkg/storage"
)

var (
	// Global flags
	verbose      bool
	configPath   string
	envFile      string
	formatOutput string
	outputFile   string
	bundlePath   string

	// globalConfig is loaded before every command runs.
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "noisemap",
	Short: "Urban noise classifier",
	Long: `noisemap - classify short urban sound clips and map where they were heard.

Commands:
  serve      HTTP service: POST /predict, GET /heatmap, /health, /model, /metrics
  train      Train a bundle from <corpus>/<class>/<file> audio
  predict    Classify audio files
  features   Print the feature vector of an audio file
  inspect    Describe a bundle
  version    Version information

Settings come from a YAML file (--config), NOISEMAP_* environment variables
(optionally from a .env file) and flags, in increasing precedence.

Examples:
  noisemap train ./UrbanSound --hold-out 0.2
  noisemap predict clip.wav --format table
  noisemap serve --config noisemap.yaml`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	pf.StringVarP(&configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file with NOISEMAP_* variables")
	pf.StringVar(&formatOutput, "format", "yaml", "output format: yaml, json, table")
	pf.StringVarP(&outputFile, "output", "o", "", "write output to file")
	pf.StringVar(&bundlePath, "bundle", "", "bundle file (default: bundle.key in the blob store)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Log.SetupLogging(cmd.ErrOrStderr()); err != nil {
		return err
	}
	if _, err := cli.ParseFormat(formatOutput); err != nil {
		return err
	}
	globalConfig = cfg
	slog.Debug("config loaded", "path", configPath, "storage", cfg.Storage.Backend, "bundle", cfg.Bundle.Key)
	return nil
}

// output renders v with the global --format and --output flags.
func output(cmd *cobra.Command, v any) error {
	format, err := cli.ParseFormat(formatOutput)
	if err != nil {
		return err
	}
	opts := cli.Options{Format: format, File: outputFile}
	if outputFile == "" {
		opts.Writer = cmd.OutOrStdout()
	}
	return cli.Output(v, opts)
}

// printer writes status lines to stderr so stdout stays machine readable.
func printer(cmd *cobra.Command) *cli.Printer {
	p := cli.NewPrinter(verbose)
	p.Out = cmd.ErrOrStderr()
	p.Err = cmd.ErrOrStderr()
	return p
}

func openStore(ctx context.Context) (storage.BlobStore, error) {
	return storage.Open(ctx, globalConfig.Storage)
}

func frontendOptions() []features.FrontendOption {
	return []features.FrontendOption{
		features.WithFFmpeg(globalConfig.Audio.FFmpegPath),
		features.WithTempDir(globalConfig.Audio.TempDir),
	}
}

// loadBundle reads --bundle if set, otherwise bundle.key from the store.
func loadBundle(ctx context.Context) (*model.Bundle, error) {
	if bundlePath != "" {
		data, err := os.ReadFile(bundlePath)
		if err != nil {
			return nil, fmt.Errorf("read bundle: %w", err)
		}
		return model.DecodeBundle(data)
	}
	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	return classify.LoadBundle(ctx, store, globalConfig.Bundle.Key)
}

func loadService(ctx context.Context) (*classify.Service, error) {
	b, err := loadBundle(ctx)
	if err != nil {
		return nil, err
	}
	recipe, err := globalConfig.Recipe()
	if err != nil {
		return nil, err
	}
	return classify.New(b, recipe, frontendOptions()...)
}
