package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/noisemap/pkg/audio/audiotest"
	"github.com/haivivi/noisemap/pkg/classify/classifytest"
	"github.com/haivivi/noisemap/pkg/config"
	"github.com/haivivi/noisemap/pkg/features"
	"github.com/haivivi/noisemap/pkg/model"
)

// resetFlags restores every flag to its default so runs do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	resetFlags(rootCmd)
	globalConfig = nil
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append(args, "--env-file", ""))
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, class := range classifytest.Classes {
		for v := range 4 {
			path := filepath.Join(dir, class, class+strconv.Itoa(v)+".wav")
			audiotest.WriteWAV(t, path, classifytest.Clip(class, v, features.DefaultSampleRate), features.DefaultSampleRate, 1)
		}
	}
	return dir
}

func TestTrainPredictInspect(t *testing.T) {
	t.Setenv("NOISEMAP_STORAGE_DIR", t.TempDir())
	corpus := writeCorpus(t)
	bundle := filepath.Join(t.TempDir(), "model.nmb")

	out, stderr, err := run(t, "train", corpus, "--no-progress", "--trees", "15", "--hold-out", "0.25", "--save", bundle, "--format", "json")
	if err != nil {
		t.Fatalf("train: %v\n%s", err, stderr)
	}
	var report struct {
		Files       int            `json:"files"`
		Samples     int            `json:"samples"`
		ClassCounts map[string]int `json:"class_counts"`
		HoldOut     *struct {
			Test int `json:"test"`
		} `json:"holdout"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("report: %v\n%s", err, out)
	}
	if report.Files != 8 || report.Samples != 8 {
		t.Errorf("report files=%d samples=%d, want 8/8", report.Files, report.Samples)
	}
	if report.ClassCounts["drilling"] != 4 || report.ClassCounts["traffic"] != 4 {
		t.Errorf("class counts = %v", report.ClassCounts)
	}
	if report.HoldOut == nil || report.HoldOut.Test != 2 {
		t.Errorf("holdout = %+v, want 2 test samples", report.HoldOut)
	}
	if !strings.Contains(stderr, "bundle written") {
		t.Errorf("stderr = %q, want bundle written", stderr)
	}
	if _, err := os.Stat(bundle); err != nil {
		t.Fatal(err)
	}

	clip := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(clip, classifytest.WAV(t, "drilling", 7), 0o644); err != nil {
		t.Fatal(err)
	}
	out, stderr, err = run(t, "predict", clip, "--bundle", bundle, "--format", "json")
	if err != nil {
		t.Fatalf("predict: %v\n%s", err, stderr)
	}
	var preds []prediction
	if err := json.Unmarshal([]byte(out), &preds); err != nil {
		t.Fatalf("predictions: %v\n%s", err, out)
	}
	if len(preds) != 1 || preds[0].Label != "drilling" {
		t.Errorf("predictions = %+v, want drilling", preds)
	}

	out, _, err = run(t, "inspect", "--bundle", bundle, "--format", "table")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"drilling, traffic", "compatible", "yes", "holdout accuracy"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestTrainStoresBundle(t *testing.T) {
	store := t.TempDir()
	t.Setenv("NOISEMAP_STORAGE_DIR", store)
	corpus := writeCorpus(t)

	if _, stderr, err := run(t, "train", corpus, "--no-progress", "--trees", "5"); err != nil {
		t.Fatalf("train: %v\n%s", err, stderr)
	}
	if _, err := os.Stat(filepath.Join(store, model.DefaultBundleKey)); err != nil {
		t.Fatalf("bundle not stored: %v", err)
	}

	out, _, err := run(t, "inspect", "--format", "json")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var in struct {
		Labels     []string `json:"labels"`
		Trees      int      `json:"trees"`
		Compatible bool     `json:"compatible"`
	}
	if err := json.Unmarshal([]byte(out), &in); err != nil {
		t.Fatal(err)
	}
	if len(in.Labels) != 2 || in.Trees != 5 || !in.Compatible {
		t.Errorf("inspect = %+v", in)
	}
}

func TestTrainFlagsLeaveConfig(t *testing.T) {
	t.Setenv("NOISEMAP_STORAGE_DIR", t.TempDir())
	corpus := writeCorpus(t)
	bundle := filepath.Join(t.TempDir(), "model.nmb")

	if _, stderr, err := run(t, "train", corpus, "--no-progress", "--trees", "3", "--seed", "11", "--save", bundle); err != nil {
		t.Fatalf("train: %v\n%s", err, stderr)
	}
	def := config.Default()
	if globalConfig.Train.Trees != def.Train.Trees || globalConfig.Train.Seed != def.Train.Seed {
		t.Errorf("flags leaked into loaded config: trees=%d seed=%d", globalConfig.Train.Trees, globalConfig.Train.Seed)
	}

	out, _, err := run(t, "inspect", "--bundle", bundle, "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var in struct {
		Trees int `json:"trees"`
	}
	if err := json.Unmarshal([]byte(out), &in); err != nil {
		t.Fatal(err)
	}
	if in.Trees != 3 {
		t.Errorf("bundle trees = %d, want 3", in.Trees)
	}
}

func TestTrainRequiresCorpus(t *testing.T) {
	t.Setenv("NOISEMAP_STORAGE_DIR", t.TempDir())
	if _, _, err := run(t, "train", "--no-progress"); err == nil {
		t.Fatal("train without corpus succeeded")
	}
}

func TestPredictReportsFailures(t *testing.T) {
	t.Setenv("NOISEMAP_STORAGE_DIR", t.TempDir())
	dir := t.TempDir()
	bundle := filepath.Join(dir, "model.nmb")
	data, err := classifytest.Bundle(t).MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bundle, data, 0o644); err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(dir, "good.wav")
	if err := os.WriteFile(good, classifytest.WAV(t, "traffic", 3), 0o644); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(bad, []byte("RIFF\x24\x00\x00\x00WAVEjunkjunkjunk"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := run(t, "predict", good, bad, filepath.Join(dir, "missing.wav"), "--bundle", bundle, "--format", "table")
	if err == nil || !strings.Contains(err.Error(), "2 of 3") {
		t.Fatalf("err = %v, want 2 of 3 files failed", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("table has %d lines, want header + 3:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "traffic") {
		t.Errorf("good row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "decode") {
		t.Errorf("bad row = %q, want decode failure", lines[2])
	}
	if !strings.Contains(lines[3], "invalid_input") {
		t.Errorf("missing row = %q, want invalid_input", lines[3])
	}
}

func TestFeatures(t *testing.T) {
	clip := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(clip, classifytest.WAV(t, "traffic", 1), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err := run(t, "features", clip, "--format", "json")
	if err != nil {
		t.Fatalf("features: %v", err)
	}
	var fv featureVector
	if err := json.Unmarshal([]byte(out), &fv); err != nil {
		t.Fatal(err)
	}
	recipe := features.Canonical()
	if len(fv.Slots) != recipe.Dim() {
		t.Fatalf("slots = %d, want %d", len(fv.Slots), recipe.Dim())
	}
	if fv.Recipe != recipe.Fingerprint() || fv.SampleRate != recipe.SampleRate {
		t.Errorf("recipe = %s @ %d", fv.Recipe, fv.SampleRate)
	}
	if fv.Slots[0].Name != recipe.SlotNames()[0] {
		t.Errorf("slot 0 = %q", fv.Slots[0].Name)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "noisemap dev") {
		t.Errorf("version = %q", out)
	}

	out, _, err = run(t, "version", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"version": "dev"`) {
		t.Errorf("version json = %q", out)
	}
}

func TestBadFormat(t *testing.T) {
	if _, _, err := run(t, "version", "--format", "xml"); err == nil {
		t.Fatal("unsupported format accepted")
	}
}
