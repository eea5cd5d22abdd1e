package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnkitChauhan19/Audiva/internal/audio"
	"github.com/AnkitChauhan19/Audiva/internal/config"
	"github.com/AnkitChauhan19/Audiva/internal/dataset"
	"github.com/AnkitChauhan19/Audiva/internal/model"
	"github.com/AnkitChauhan19/Audiva/internal/pipeline"
	"github.com/AnkitChauhan19/Audiva/internal/scaler"
)

// resetFlags restores every flag to its default so commands can run
// repeatedly in one process
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetOut(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

func writeTone(t *testing.T, path string, freq, seconds float64) {
	t.Helper()
	samples := make([]float32, int(seconds*22050))
	for i := range samples {
		samples[i] = float32(0.4 * math.Sin(2*math.Pi*freq*float64(i)/22050))
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, audio.WriteWAVFile(path, samples, 22050))
}

func zeros(r, c int) [][]float64 {
	m := make([][]float64, r)
	for i := range m {
		m[i] = make([]float64, c)
	}
	return m
}

// writeModel writes a network whose output is sigmoid(-2) for any input
func writeModel(t *testing.T, path string) {
	t.Helper()
	w := &model.Weights{
		Format:    "audiva-lstm/v1",
		Timesteps: 13,
		LSTM: model.LSTMWeights{
			Units:           4,
			Kernel:          zeros(1, 16),
			RecurrentKernel: zeros(4, 16),
			Bias:            make([]float64, 16),
		},
		Dense: []model.DenseWeights{
			{Activation: "relu", Kernel: zeros(4, 2), Bias: make([]float64, 2)},
			{Activation: "sigmoid", Kernel: zeros(2, 1), Bias: []float64{-2}},
		},
	}
	require.NoError(t, w.Save(path))
}

type workspace struct {
	dir        string
	configPath string
	artifacts  string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	artifacts := filepath.Join(dir, "artifacts")

	for i, set := range []string{"train", "validation"} {
		for j := 0; j < 3; j++ {
			writeTone(t, filepath.Join(dir, set, "fake", fmt.Sprintf("f%d.wav", j)), 300+float64(100*j+10*i), 2.5)
			writeTone(t, filepath.Join(dir, set, "real", fmt.Sprintf("r%d.wav", j)), 1200+float64(150*j+10*i), 2.5)
		}
	}

	configPath := filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf(`model:
  classifier_path: %[1]s/model.json
  scaler_path: %[1]s/scaler.json
dataset:
  train_dir: %[2]s/train
  validation_dir: %[2]s/validation
  train_output: %[1]s/train.msgpack.zst
  validation_output: %[1]s/validation.msgpack.zst
  workers: 2
logging:
  level: warn
`, artifacts, dir)
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o644))

	return workspace{dir: dir, configPath: configPath, artifacts: artifacts}
}

func TestVersion(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "audiva "+Version)
}

func TestNewLoggerToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audiva.log")
	l, err := newLogger(config.LoggingConfig{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info("dropped")
	l.Warn("kept", "segments", 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.EqualValues(t, 2, entry["segments"])
}

func TestNewLoggerErrors(t *testing.T) {
	_, err := newLogger(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = newLogger(config.LoggingConfig{Level: "info", Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}

func TestMissingExplicitConfig(t *testing.T) {
	_, err := runCmd(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "version")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTrainingWorkflow(t *testing.T) {
	ws := newWorkspace(t)

	out, err := runCmd(t, "--config", ws.configPath, "dataset", "build")
	require.NoError(t, err)
	assert.Contains(t, out, "training: 6 examples (3 fake, 3 real), 0 skipped")
	assert.Contains(t, out, "validation: 6 examples")

	train, err := dataset.Load(filepath.Join(ws.artifacts, "train.msgpack.zst"))
	require.NoError(t, err)
	assert.Equal(t, 6, train.Len())
	assert.Equal(t, 13, train.Dim())
	assert.NotEmpty(t, train.Fingerprint)

	out, err = runCmd(t, "--config", ws.configPath, "scaler", "fit")
	require.NoError(t, err)
	assert.Contains(t, out, "scaler fit on 4 of 6 examples (2 held out)")

	state, err := scaler.Load(filepath.Join(ws.artifacts, "scaler.json"))
	require.NoError(t, err)
	assert.Equal(t, train.Fingerprint, state.Fingerprint)
	assert.Equal(t, 4, state.NumSamples)

	writeModel(t, filepath.Join(ws.artifacts, "model.json"))

	out, err = runCmd(t, "--config", ws.configPath, "evaluate")
	require.NoError(t, err)
	assert.Contains(t, out, "accuracy")
	assert.Contains(t, out, "weighted avg")

	out, err = runCmd(t, "--config", ws.configPath, "evaluate", "--json")
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.InDelta(t, 0.5, report["accuracy"], 1e-12)
}

func fitArtifacts(t *testing.T, ws workspace) {
	t.Helper()
	_, err := runCmd(t, "--config", ws.configPath, "dataset", "build", "--skip-validation")
	require.NoError(t, err)
	_, err = runCmd(t, "--config", ws.configPath, "scaler", "fit")
	require.NoError(t, err)
	writeModel(t, filepath.Join(ws.artifacts, "model.json"))
}

func TestPredict(t *testing.T) {
	ws := newWorkspace(t)
	fitArtifacts(t, ws)

	clip := filepath.Join(ws.dir, "clip.wav")
	writeTone(t, clip, 440, 4.5)

	out, err := runCmd(t, "--config", ws.configPath, "predict", clip)
	require.NoError(t, err)
	assert.Contains(t, out, "AI generated")
	assert.Contains(t, out, "11.92% real, 2 segments")
	assert.Contains(t, out, "Be careful")

	out, err = runCmd(t, "--config", ws.configPath, "predict", "--json", "--threshold", "0.1", clip)
	require.NoError(t, err)
	var result predictOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "real", result.Verdict)
	assert.Equal(t, 2, result.Segments)
	assert.InDelta(t, 1/(1+math.Exp(2)), result.Probability, 1e-12)

	out, err = runCmd(t, "--config", ws.configPath, "predict", clip, filepath.Join(ws.dir, "missing.wav"))
	assert.EqualError(t, err, "1 of 2 files could not be classified")
	assert.Contains(t, out, "missing.wav: Unable to process the input audio.")

	_, err = runCmd(t, "--config", ws.configPath, "predict", "--threshold", "1.5", clip)
	assert.Error(t, err)
}

func TestModelQuantize(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "model.json")
	writeModel(t, input)

	out, err := runCmd(t, "model", "quantize", input)
	require.NoError(t, err)
	assert.Contains(t, out, "model.msgpack")

	network, err := model.Load(filepath.Join(dir, "model.msgpack"), "")
	require.NoError(t, err)
	assert.Equal(t, 13, network.InputLen())
}

func TestSegments(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "speech.wav")
	writeTone(t, clip, 220, 5)
	outDir := filepath.Join(dir, "clips")

	out, err := runCmd(t, "segments", clip, "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 2 segments")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"speech_000.wav", "speech_001.wav"}, names)

	w, err := audio.NewDecoder(22050).DecodeFile(filepath.Join(outDir, "speech_001.wav"))
	require.NoError(t, err)
	assert.Equal(t, 44100, w.Len())

	short := filepath.Join(dir, "short.wav")
	writeTone(t, short, 220, 1)
	_, err = runCmd(t, "segments", short, "-o", outDir)
	assert.ErrorIs(t, err, pipeline.ErrNoSegments)
}
