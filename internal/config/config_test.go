package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []int{512, 256, 128}, cfg.Model.HiddenSizes)
	assert.Equal(t, "adam", cfg.Optimizer.Name)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  hidden_sizes: [400, 200, 100]
data:
  kind: fashion
train:
  epochs: 2
optimizer:
  name: sgd
  lr: 0.05
  momentum: 0.9
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []int{400, 200, 100}, cfg.Model.HiddenSizes)
	assert.Equal(t, 784, cfg.Model.InputSize)
	assert.Equal(t, "fashion", cfg.Data.Kind)
	assert.Equal(t, 2, cfg.Train.Epochs)
	assert.Equal(t, 64, cfg.Train.BatchSize)
	assert.Equal(t, "sgd", cfg.Optimizer.Name)
	assert.InDelta(t, 0.9, cfg.Optimizer.Momentum, 0)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("model:\n  hiden_sizes: [1]\n"))
	assert.Error(t, err)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestWriteRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Train.Epochs = 9
	var buf bytes.Buffer
	require.NoError(t, cfg.Write(&buf))

	got, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Model.InputSize = 0
	cfg.Data.Kind = "cifar"
	cfg.Optimizer.Name = "rmsprop"
	cfg.Dropout = 1
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "dropout")
	assert.ErrorContains(t, err, "model:")
	assert.ErrorContains(t, err, "data:")
	assert.ErrorContains(t, err, "optimizer:")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
