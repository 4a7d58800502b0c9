package checkpoint

import (
	"fmt"
	"os"

	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/serialization"
)

// Summary describes a checkpoint file without rebuilding the network.
type Summary struct {
	Path          string
	FileSize      int64
	FormatVersion int
	WriterVersion string
	ModelType     string
	Descriptor    nn.Descriptor
	NumParameters int
	DataSize      int64
	Tensors       []serialization.TensorMeta
	Meta          Meta
	Optimizer     string
	Training      bool
}

// Inspect reads the header of the checkpoint at path.
//
// The data section is still checksummed, so a Summary is only returned for
// files that Load would also accept at the container level.
func Inspect(path string) (Summary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Summary{}, err
	}
	r, err := serialization.NewBornReader(path)
	if err != nil {
		return Summary{}, err
	}
	defer func() { _ = r.Close() }()

	h := r.Header()
	s := Summary{
		Path:          path,
		FileSize:      info.Size(),
		FormatVersion: r.Version(),
		WriterVersion: h.BornVersion,
		ModelType:     h.ModelType,
		DataSize:      r.DataSize(),
		Tensors:       h.Tensors,
		Training:      r.HasOptimizerState(),
		Meta: Meta{
			CreatedAt: h.CreatedAt,
			Extra:     h.Metadata,
		},
	}
	if h.ModelType != ModelType {
		return s, fmt.Errorf("%w: %q", ErrUnsupportedModel, h.ModelType)
	}
	desc, err := descriptorOf(h)
	if err != nil {
		return s, err
	}
	s.Descriptor = desc
	s.NumParameters = desc.NumParameters()
	if cm := h.CheckpointMeta; cm != nil {
		s.Meta.RunID = cm.RunID
		s.Meta.Epoch = cm.Epoch
		s.Meta.Step = cm.Step
		s.Meta.Loss = cm.Loss
		s.Meta.Accuracy = cm.Accuracy
		s.Optimizer = cm.OptimizerType
	}
	return s, nil
}
