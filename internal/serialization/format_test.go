package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/fcnet/internal/tensor"
)

func testTensors(t *testing.T) []tensor.Named {
	t.Helper()
	w, err := tensor.FromFloat64(tensor.Shape{3, 2}, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	b, err := tensor.FromFloat64(tensor.Shape{3}, []float64{0.5, -0.5, 0})
	require.NoError(t, err)
	o, err := tensor.FromFloat64(tensor.Shape{2, 3}, []float64{-1, -2, -3, -4, -5, -6})
	require.NoError(t, err)
	return []tensor.Named{
		{Name: "hidden_layers.0.weight", Tensor: w},
		{Name: "hidden_layers.0.bias", Tensor: b},
		{Name: "output.weight", Tensor: o},
	}
}

func encode(t *testing.T, tensors []tensor.Named, h Header, version int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, tensors, h, version))
	return buf.Bytes()
}

func TestFileRoundTrip(t *testing.T) {
	for _, version := range []int{FormatVersion, FormatVersionV2} {
		path := filepath.Join(t.TempDir(), "model.born")
		want := testTensors(t)

		w, err := NewBornWriterVersion(path, version)
		require.NoError(t, err)
		require.NoError(t, w.WriteTensors(want, Header{
			ModelType:    "MLP",
			Architecture: json.RawMessage(`{"input_size":2}`),
			Metadata:     map[string]string{"dataset": "synthetic"},
		}))
		require.NoError(t, w.Close())
		require.ErrorIs(t, w.WriteTensors(want, Header{}), ErrClosed)

		r, err := NewBornReader(path)
		require.NoError(t, err)

		assert.Equal(t, version, r.Version())
		assert.NotZero(t, r.Flags()&FlagHasMetadata)
		assert.False(t, r.HasOptimizerState())
		assert.Equal(t, "MLP", r.Header().ModelType)
		assert.Equal(t, WriterVersion, r.Header().BornVersion)
		assert.JSONEq(t, `{"input_size":2}`, string(r.Header().Architecture))
		assert.Equal(t, "synthetic", r.Metadata()["dataset"])
		assert.Equal(t, []string{"hidden_layers.0.weight", "hidden_layers.0.bias", "output.weight"}, r.TensorNames())
		assert.Equal(t, int64(15*8), r.DataSize())

		got, err := r.ReadTensors()
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Name, got[i].Name)
			assert.True(t, want[i].Tensor.Shape().Equal(got[i].Tensor.Shape()))
			assert.Equal(t, want[i].Tensor.Data(), got[i].Tensor.Data())
		}

		one, err := r.LoadTensor("hidden_layers.0.bias")
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, -0.5, 0}, one.Float64s())

		_, err = r.LoadTensor("missing")
		assert.ErrorIs(t, err, ErrTensorNotFound)

		require.NoError(t, r.Close())
		_, err = r.ReadTensors()
		assert.ErrorIs(t, err, ErrClosed)
	}
}

func TestDataSectionAligned(t *testing.T) {
	data := encode(t, testTensors(t), Header{ModelType: "MLP"}, FormatVersionV2)

	headerSize := int64(binary.LittleEndian.Uint64(data[16:24]))
	dataSize := int64(binary.LittleEndian.Uint64(data[24:32]))
	dataOffset := FixedHeaderSizeV2 + headerSize + paddingFor(FixedHeaderSizeV2+headerSize)

	assert.Zero(t, dataOffset%HeaderAlignment)
	assert.Equal(t, int64(len(data)), dataOffset+dataSize)
}

func TestReadFrom(t *testing.T) {
	data := encode(t, testTensors(t), Header{
		ModelType:      "MLP",
		CheckpointMeta: &CheckpointMeta{IsCheckpoint: true, Epoch: 3, OptimizerType: "adam"},
	}, FormatVersionV2)

	got, h, err := ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, got, 3)
	require.NotNil(t, h.CheckpointMeta)
	assert.Equal(t, 3, h.CheckpointMeta.Epoch)
	assert.Equal(t, "adam", h.CheckpointMeta.OptimizerType)

	r, err := NewReader(bytes.NewReader(data), int64(len(data)), ReaderOptions{})
	require.NoError(t, err)
	assert.True(t, r.HasOptimizerState())
}

func TestChecksumDetectsCorruption(t *testing.T) {
	data := encode(t, testTensors(t), Header{ModelType: "MLP"}, FormatVersionV2)
	data[len(data)-1] ^= 0x01

	_, _, err := ReadFrom(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrChecksumMismatch)

	r, err := NewReader(bytes.NewReader(data), int64(len(data)), ReaderOptions{SkipChecksumValidation: true})
	require.NoError(t, err)
	_, err = r.ReadTensors()
	assert.NoError(t, err)
}

func TestReaderRejectsBadInput(t *testing.T) {
	valid := encode(t, testTensors(t), Header{ModelType: "MLP"}, FormatVersionV2)

	t.Run("magic", func(t *testing.T) {
		data := bytes.Clone(valid)
		copy(data, "NOPE")
		_, _, err := ReadFrom(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("version", func(t *testing.T) {
		data := bytes.Clone(valid)
		binary.LittleEndian.PutUint32(data[4:8], 9)
		_, _, err := ReadFrom(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("header too large", func(t *testing.T) {
		data := bytes.Clone(valid)
		binary.LittleEndian.PutUint64(data[16:24], MaxHeaderSize+1)
		_, _, err := ReadFrom(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrHeaderTooLarge)
	})

	t.Run("truncated", func(t *testing.T) {
		_, _, err := ReadFrom(bytes.NewReader(valid[:len(valid)-8]))
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "truncated", vErr.Type)
	})

	t.Run("empty", func(t *testing.T) {
		_, _, err := ReadFrom(bytes.NewReader(nil))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewBornReader(filepath.Join(t.TempDir(), "absent.born"))
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
}

func TestWriterRejectsInvalidInput(t *testing.T) {
	tensors := testTensors(t)

	dup := append(tensors, tensors[0])
	var buf bytes.Buffer
	err := WriteTo(&buf, dup, Header{}, FormatVersionV2)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "duplicate_name", vErr.Type)

	bad := []tensor.Named{{Name: "../escape", Tensor: tensors[0].Tensor}}
	assert.Error(t, WriteTo(&buf, bad, Header{}, FormatVersionV2))

	assert.ErrorIs(t, WriteTo(&buf, tensors, Header{}, 7), ErrUnsupportedVersion)
	_, err = NewBornWriterVersion(filepath.Join(t.TempDir(), "x.born"), 3)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}
