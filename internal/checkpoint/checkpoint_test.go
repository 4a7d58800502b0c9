package checkpoint_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/fcnet/internal/checkpoint"
	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/optim"
	"github.com/born-ml/fcnet/internal/serialization"
)

var mnistDesc = nn.Descriptor{InputSize: 784, OutputSize: 10, HiddenSizes: []int{512, 256, 128}}

func batch(seed uint64, rows, cols int) (*mat.Dense, []int) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b9))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.Float64()
	}
	labels := make([]int, rows)
	for i := range labels {
		labels[i] = rng.IntN(10)
	}
	return mat.NewDense(rows, cols, data), labels
}

// trained returns a network that has taken one optimizer step, so its
// parameters differ from any fresh initialization.
func trained(t *testing.T, desc nn.Descriptor) (*nn.Network, optim.Optimizer, optim.State) {
	t.Helper()
	net, err := nn.NewNetwork(desc, nn.WithSeed(7))
	require.NoError(t, err)

	x, labels := batch(1, 8, desc.InputSize)
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.01})
	params := net.Params()
	state := opt.Init(params)
	grads, _, err := nn.Gradients(desc, params, x, labels, 0, nil)
	require.NoError(t, err)
	params, state, err = opt.Step(params, grads, state)
	require.NoError(t, err)

	net, err = net.WithParams(params)
	require.NoError(t, err)
	return net, opt, state
}

func TestRoundTripIdenticalPredictions(t *testing.T) {
	net, _, _ := trained(t, mnistDesc)
	path := filepath.Join(t.TempDir(), "mnist.born")

	ckpt := checkpoint.Assemble(net, checkpoint.Meta{Epoch: 10, Loss: 0.31, Accuracy: 0.89})
	require.NoError(t, checkpoint.Save(path, ckpt))

	loaded, err := checkpoint.Load(path)
	require.NoError(t, err)
	assert.True(t, mnistDesc.Equal(loaded.Descriptor))
	assert.True(t, net.Params().Equal(loaded.Params), "parameters must be bit-identical")
	assert.Equal(t, ckpt.Meta.RunID, loaded.Meta.RunID)
	assert.Equal(t, 10, loaded.Meta.Epoch)
	assert.Equal(t, 0.89, loaded.Meta.Accuracy)

	rebuilt, err := checkpoint.Rebuild(loaded)
	require.NoError(t, err)

	x, _ := batch(99, 16, 784)
	assert.True(t, mat.Equal(net.Forward(x), rebuilt.Forward(x)))
	assert.Equal(t, net.Predict(x), rebuilt.Predict(x))
}

func TestLoadAsMismatchedDescriptor(t *testing.T) {
	net, _, _ := trained(t, mnistDesc)
	path := filepath.Join(t.TempDir(), "mnist.born")
	require.NoError(t, checkpoint.Save(path, checkpoint.Assemble(net, checkpoint.Meta{})))

	other := nn.Descriptor{InputSize: 784, OutputSize: 10, HiddenSizes: []int{400, 200, 100}}
	_, err := checkpoint.LoadAs(path, other)
	require.Error(t, err)
	assert.True(t, errors.Is(err, nn.ErrShapeMismatch))

	var mismatch *nn.ShapeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "hidden_layers.0.weight", mismatch.Name)
	assert.Equal(t, []int{400, 784}, []int(mismatch.Expected))
	assert.Equal(t, []int{512, 784}, []int(mismatch.Got))

	ckpt, err := checkpoint.Load(path)
	require.NoError(t, err)
	_, err = checkpoint.RebuildAs(other, ckpt)
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)

	same, err := checkpoint.LoadAs(path, mnistDesc)
	require.NoError(t, err)
	assert.True(t, net.Params().Equal(same.Params()))
}

func TestLoadAsLayerCountMismatch(t *testing.T) {
	small := nn.Descriptor{InputSize: 6, OutputSize: 3, HiddenSizes: []int{5, 4}}
	net, _, _ := trained(t, small)
	path := filepath.Join(t.TempDir(), "small.born")
	require.NoError(t, checkpoint.Save(path, checkpoint.Assemble(net, checkpoint.Meta{})))

	// Fewer hidden layers: hidden_layers.1 is left over and output.weight disagrees.
	_, err := checkpoint.LoadAs(path, nn.Descriptor{InputSize: 6, OutputSize: 3, HiddenSizes: []int{5}})
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)

	// More hidden layers: a key is missing.
	_, err = checkpoint.LoadAs(path, nn.Descriptor{InputSize: 6, OutputSize: 3, HiddenSizes: []int{5, 4, 4}})
	var mismatch *nn.ShapeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "hidden_layers.2.weight", mismatch.Name)
	assert.Nil(t, mismatch.Got)
}

func TestAssembleIsSnapshot(t *testing.T) {
	small := nn.Descriptor{InputSize: 4, OutputSize: 2, HiddenSizes: []int{3}}
	net, err := nn.NewNetwork(small, nn.WithSeed(1))
	require.NoError(t, err)

	extra := map[string]string{"dataset": "synthetic"}
	ckpt := checkpoint.Assemble(net, checkpoint.Meta{Extra: extra})
	before := ckpt.Params.Clone()

	// Replace the network's parameters and the caller's metadata.
	p := net.Params()
	p[0].Weight.Set(0, 0, 123)
	_, err = net.WithParams(p)
	require.NoError(t, err)
	extra["dataset"] = "mnist"

	assert.True(t, before.Equal(ckpt.Params))
	assert.Equal(t, "synthetic", ckpt.Meta.Extra["dataset"])
	assert.NotEmpty(t, ckpt.Meta.RunID)
	assert.False(t, ckpt.Meta.CreatedAt.IsZero())
}

func TestWriteRead(t *testing.T) {
	small := nn.Descriptor{InputSize: 4, OutputSize: 2}
	net, err := nn.NewNetwork(small, nn.WithSeed(3))
	require.NoError(t, err)

	var buf bytes.Buffer
	ckpt := checkpoint.Assemble(net, checkpoint.Meta{RunID: "run-1", Extra: map[string]string{"k": "v"}})
	require.NoError(t, checkpoint.Write(&buf, ckpt))

	got, err := checkpoint.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.Meta.RunID)
	assert.Equal(t, "v", got.Meta.Extra["k"])
	assert.True(t, ckpt.Params.Equal(got.Params))
	require.Len(t, got.Params, 1)
}

func TestTrainingCheckpoint(t *testing.T) {
	small := nn.Descriptor{InputSize: 6, OutputSize: 3, HiddenSizes: []int{5}}
	net, opt, state := trained(t, small)
	path := filepath.Join(t.TempDir(), "ckpt", "epoch_1.born")

	ckpt := checkpoint.Assemble(net, checkpoint.Meta{Epoch: 1, Step: 1})
	require.NoError(t, checkpoint.SaveTraining(path, ckpt, opt, state))

	loaded, gotOpt, gotState, err := checkpoint.LoadTraining(path)
	require.NoError(t, err)
	assert.Equal(t, "adam", gotOpt.Name())
	assert.InDelta(t, 0.01, gotOpt.LR(), 1e-12)
	assert.Equal(t, state.Step, gotState.Step)
	require.Len(t, gotState.Slots, 2)
	for _, slot := range state.Slots {
		assert.True(t, slot.Values.Equal(gotState.Slot(slot.Name)), "slot %s", slot.Name)
	}
	assert.True(t, ckpt.Params.Equal(loaded.Params))

	// Plain loads ignore optimizer tensors.
	plain, err := checkpoint.Load(path)
	require.NoError(t, err)
	assert.True(t, ckpt.Params.Equal(plain.Params))

	summary, err := checkpoint.Inspect(path)
	require.NoError(t, err)
	assert.True(t, summary.Training)
	assert.Equal(t, "adam", summary.Optimizer)
	assert.Len(t, summary.Tensors, 4+2*4, "model tensors plus Adam m and v")
}

func TestLoadTrainingRejectsInferenceCheckpoint(t *testing.T) {
	net, err := nn.NewNetwork(nn.Descriptor{InputSize: 2, OutputSize: 2}, nn.WithSeed(1))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "m.born")
	require.NoError(t, checkpoint.Save(path, checkpoint.Assemble(net, checkpoint.Meta{})))

	_, _, _, err = checkpoint.LoadTraining(path)
	assert.ErrorIs(t, err, checkpoint.ErrNotTraining)
}

func TestInspect(t *testing.T) {
	net, _, _ := trained(t, mnistDesc)
	path := filepath.Join(t.TempDir(), "mnist.born")
	require.NoError(t, checkpoint.Save(path, checkpoint.Assemble(net, checkpoint.Meta{Epoch: 4})))

	s, err := checkpoint.Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, serialization.FormatVersionV2, s.FormatVersion)
	assert.Equal(t, checkpoint.ModelType, s.ModelType)
	assert.True(t, mnistDesc.Equal(s.Descriptor))
	assert.Equal(t, mnistDesc.NumParameters(), s.NumParameters)
	assert.Equal(t, int64(mnistDesc.NumParameters()*8), s.DataSize)
	assert.Equal(t, 4, s.Meta.Epoch)
	assert.False(t, s.Training)
	assert.Len(t, s.Tensors, 8)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := checkpoint.Load(filepath.Join(dir, "absent.born"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "garbage.born")
	require.NoError(t, os.WriteFile(garbage, []byte("not a checkpoint at all"), 0o600))
	_, err = checkpoint.Load(garbage)
	assert.ErrorIs(t, err, serialization.ErrInvalidMagic)

	// Valid container, wrong model type.
	other := filepath.Join(dir, "other.born")
	w, err := serialization.NewBornWriter(other)
	require.NoError(t, err)
	require.NoError(t, w.WriteTensors(nil, serialization.Header{ModelType: "GPT"}))
	require.NoError(t, w.Close())
	_, err = checkpoint.Load(other)
	assert.ErrorIs(t, err, checkpoint.ErrUnsupportedModel)
}

// writeV1 hand-assembles a v1 container so the header can say things the
// writer would refuse to produce.
func writeV1(t *testing.T, path, header string, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(serialization.MagicBytes)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(serialization.FormatVersion)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(0)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(header))))
	buf.WriteString(header)
	for buf.Len()%serialization.HeaderAlignment != 0 {
		buf.WriteByte(0)
	}
	buf.Write(data)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestLoadRejectsOverflowingShapes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.born")
	writeV1(t, path, `{
		"format_version": 1,
		"model_type": "MLP",
		"architecture": {"input_size": 1, "output_size": 2305843009213693953, "hidden_sizes": []},
		"tensors": [
			{"name": "output.weight", "dtype": "float64", "shape": [2305843009213693953, 1], "offset": 0, "size": 8},
			{"name": "output.bias", "dtype": "float64", "shape": [2305843009213693953], "offset": 8, "size": 8}
		]
	}`, make([]byte, 16))

	var err error
	require.NotPanics(t, func() { _, err = checkpoint.Load(path) })
	var vErr *serialization.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "invalid_shape", vErr.Type)

	_, err = checkpoint.Inspect(path)
	assert.Error(t, err)
}

func TestLoadRejectsOversizedDescriptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.born")
	writeV1(t, path, `{
		"format_version": 1,
		"model_type": "MLP",
		"architecture": {"input_size": 1, "output_size": 2305843009213693953, "hidden_sizes": []},
		"tensors": []
	}`, nil)

	var err error
	require.NotPanics(t, func() { _, err = checkpoint.Load(path) })
	assert.ErrorIs(t, err, nn.ErrInvalidDescriptor)
}

func TestMetaNormalization(t *testing.T) {
	norm, ok, err := checkpoint.Meta{}.Normalization()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, checkpoint.Normalization{}, norm)

	meta := checkpoint.Meta{Extra: map[string]string{checkpoint.MetaMean: "0.5", checkpoint.MetaStd: "0.25"}}
	norm, ok, err = meta.Normalization()
	require.NoError(t, err)
	require.True(t, ok)
	row := []float64{1, 0.5, 0}
	norm.Apply(row)
	assert.Equal(t, []float64{2, 0, -2}, row)

	_, _, err = checkpoint.Meta{Extra: map[string]string{checkpoint.MetaStd: "1"}}.Normalization()
	assert.Error(t, err)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	net, err := nn.NewNetwork(nn.Descriptor{InputSize: 2, OutputSize: 2}, nn.WithSeed(1))
	require.NoError(t, err)
	require.NoError(t, checkpoint.Save(filepath.Join(dir, "m.born"), checkpoint.Assemble(net, checkpoint.Meta{})))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "m.born", entries[0].Name())
}
