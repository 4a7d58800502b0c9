package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/born-ml/fcnet/internal/checkpoint"
	"github.com/born-ml/fcnet/internal/dataset"
	"github.com/born-ml/fcnet/internal/nn"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestTrainInspectEvaluate(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "run.yaml")
	model := filepath.Join(dir, "model.born")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
log_level: error
data:
  synthetic: true
  synthetic_samples: 300
train:
  epochs: 3
  batch_size: 32
optimizer:
  lr: 0.005
`), 0o600))

	out, err := execute(t, "train", "-config", cfgPath, "-hidden", "32,16", "-out", model, "-quiet")
	require.NoError(t, err)
	assert.Contains(t, out, "784 -> [32 16] -> 10")
	assert.Contains(t, out, "saved "+model)

	ckpt, err := checkpoint.Load(model)
	require.NoError(t, err)
	assert.Equal(t, 3, ckpt.Meta.Epoch)
	assert.Equal(t, "300", ckpt.Meta.Extra[metaSynthetic])

	out, err = execute(t, "inspect", "-model", model)
	require.NoError(t, err)
	assert.Contains(t, out, "hidden_layers.1.weight")
	assert.Contains(t, out, "optimizer.m.output.bias")
	assert.Contains(t, out, "adam (state included)")

	out, err = execute(t, "evaluate", "-model", model)
	require.NoError(t, err)
	assert.Contains(t, out, "samples:  60")

	out, err = execute(t, "predict", "-model", model, "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "/5 correct")

	_, err = execute(t, "evaluate", "-model", model, "-hidden", "64,16")
	require.Error(t, err)
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)

	resumed := filepath.Join(dir, "resumed.born")
	_, err = execute(t, "train", "-config", cfgPath, "-hidden", "32,16", "-resume", model, "-epochs", "1", "-out", resumed, "-quiet")
	require.NoError(t, err)
	ckpt, err = checkpoint.Load(resumed)
	require.NoError(t, err)
	assert.Equal(t, 4, ckpt.Meta.Epoch)
}

func TestServeOptionsFromMetadata(t *testing.T) {
	desc := nn.Descriptor{InputSize: 4, OutputSize: 10, HiddenSizes: []int{3}}
	net, err := nn.NewNetwork(desc, nn.WithSeed(3))
	require.NoError(t, err)
	logger := zap.NewNop()

	fashion := checkpoint.Assemble(net, checkpoint.Meta{Extra: map[string]string{metaDataset: "fashion"}})
	opts := serveOptions(fashion, logger, "http://a.test,http://b.test", 8)
	assert.Equal(t, dataset.Fashion.Classes(), opts.Classes)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, opts.AllowedOrigins)
	assert.Equal(t, 8, opts.MaxBatch)
	assert.Same(t, logger, opts.Logger)

	synthetic := checkpoint.Assemble(net, checkpoint.Meta{Extra: map[string]string{metaDataset: "mnist", metaSynthetic: "300"}})
	assert.Nil(t, serveOptions(synthetic, logger, "*", 8).Classes)

	unknown := checkpoint.Assemble(net, checkpoint.Meta{})
	assert.Nil(t, serveOptions(unknown, logger, "*", 8).Classes)

	narrow, err := nn.NewNetwork(nn.Descriptor{InputSize: 4, OutputSize: 3}, nn.WithSeed(3))
	require.NoError(t, err)
	mnist := checkpoint.Assemble(narrow, checkpoint.Meta{Extra: map[string]string{metaDataset: "mnist"}})
	assert.Nil(t, serveOptions(mnist, logger, "*", 8).Classes)
}

func TestServeStopsOnCancel(t *testing.T) {
	desc := nn.Descriptor{InputSize: 4, OutputSize: 2, HiddenSizes: []int{3}}
	net, err := nn.NewNetwork(desc, nn.WithSeed(3))
	require.NoError(t, err)
	model := filepath.Join(t.TempDir(), "model.born")
	require.NoError(t, checkpoint.Save(model, checkpoint.Assemble(net, checkpoint.Meta{Extra: map[string]string{
		metaMean: "0.5",
		metaStd:  "0.5",
	}})))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout, stderr bytes.Buffer
	err = run(ctx, []string{"serve", "-model", model, "-addr", "127.0.0.1:0", "-log-level", "error"}, &stdout, &stderr)
	assert.NoError(t, err)
}

func TestParseSizes(t *testing.T) {
	sizes, err := parseSizes("512, 256,128")
	require.NoError(t, err)
	assert.Equal(t, []int{512, 256, 128}, sizes)

	sizes, err = parseSizes("")
	require.NoError(t, err)
	assert.Nil(t, sizes)

	_, err = parseSizes("12,x")
	assert.Error(t, err)
}

func TestUsageAndVersion(t *testing.T) {
	_, err := execute(t)
	assert.ErrorIs(t, err, flag.ErrHelp)

	_, err = execute(t, "bogus")
	assert.ErrorContains(t, err, "unknown command")

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version)

	out, err = execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "hidden_sizes")
}
