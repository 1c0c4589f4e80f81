package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/haivivi/noisemap/pkg/cli"
	"github.com/haivivi/noisemap/pkg/model"
	"github.com/haivivi/noisemap/pkg/train"
)

var trainFlags struct {
	holdOut    float64
	trees      int
	maxDepth   int
	seed       uint64
	workers    int
	scaling    string
	save       string
	noProgress bool
}

var trainCmd = &cobra.Command{
	Use:   "train [corpus-dir]",
	Short: "Train a bundle from a labelled corpus",
	Long: `Train a random forest on <corpus>/<class>/<file> audio.

Every file is decoded and featurized with the configured recipe. Files that
fail are skipped and listed in the report. The bundle is written to --save,
or to bundle.key in the blob store.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.Float64Var(&trainFlags.holdOut, "hold-out", 0, "per-class fraction held out for evaluation")
	f.IntVar(&trainFlags.trees, "trees", 0, "number of trees")
	f.IntVar(&trainFlags.maxDepth, "max-depth", 0, "maximum tree depth")
	f.Uint64Var(&trainFlags.seed, "seed", 0, "random seed")
	f.IntVar(&trainFlags.workers, "workers", 0, "parallel extraction workers (0 = GOMAXPROCS)")
	f.StringVar(&trainFlags.scaling, "scaling", "", "feature scaling: standard or none")
	f.StringVar(&trainFlags.save, "save", "", "write the bundle to this file instead of the blob store")
	f.BoolVar(&trainFlags.noProgress, "no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := *globalConfig
	p := printer(cmd)

	dir := cfg.Train.Corpus
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("corpus directory is required")
	}

	flags := cmd.Flags()
	if flags.Changed("hold-out") {
		cfg.Train.HoldOut = trainFlags.holdOut
	}
	if flags.Changed("trees") {
		cfg.Train.Trees = trainFlags.trees
	}
	if flags.Changed("max-depth") {
		cfg.Train.MaxDepth = trainFlags.maxDepth
	}
	if flags.Changed("seed") {
		cfg.Train.Seed = trainFlags.seed
	}
	if flags.Changed("workers") {
		cfg.Train.Workers = trainFlags.workers
	}
	if flags.Changed("scaling") {
		cfg.Train.Scaling = trainFlags.scaling
	}

	recipe, err := cfg.Recipe()
	if err != nil {
		return err
	}
	corpus := os.DirFS(dir)
	entries, err := train.ScanCorpus(corpus)
	if err != nil {
		return fmt.Errorf("scan corpus: %w", err)
	}
	p.Info("%d files in %s", len(entries), dir)

	opts := train.Options{
		Recipe:     recipe,
		FFmpegPath: cfg.Audio.FFmpegPath,
		Scaling:    model.Scaling(cfg.Train.Scaling),
		Forest:     cfg.ForestConfig(),
		HoldOut:    cfg.Train.HoldOut,
		Workers:    cfg.Train.Workers,
	}

	var progress *mpb.Progress
	var bar *mpb.Bar
	if !trainFlags.noProgress && len(entries) > 0 {
		progress = mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(cmd.ErrOrStderr()))
		bar = progress.AddBar(int64(len(entries)),
			mpb.PrependDecorators(
				decor.Name("Extracting: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.AverageETA(decor.ET_STYLE_GO),
			),
		)
		opts.Progress = func(train.Entry, error) { bar.Increment() }
	}

	bundle, report, err := train.Run(ctx, corpus, opts)
	if progress != nil {
		if !bar.Completed() {
			bar.Abort(false)
		}
		progress.Wait()
	}
	if err != nil {
		return err
	}

	data, err := bundle.MarshalBinary()
	if err != nil {
		return err
	}
	if trainFlags.save != "" {
		if err := cli.WriteFile(trainFlags.save, data); err != nil {
			return err
		}
		p.Success("bundle written to %s (%s)", trainFlags.save, cli.FormatBytes(int64(len(data))))
	} else {
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		if err := store.Put(ctx, cfg.Bundle.Key, data); err != nil {
			return fmt.Errorf("store bundle: %w", err)
		}
		p.Success("bundle stored at %s (%s)", cfg.Bundle.Key, cli.FormatBytes(int64(len(data))))
	}
	if len(report.Skipped) > 0 {
		p.Warning("%d of %d files skipped", len(report.Skipped), report.Files)
	}
	return output(cmd, reportView{report})
}
