package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/optim"
	"github.com/born-ml/fcnet/internal/serialization"
	"github.com/born-ml/fcnet/internal/tensor"
)

// Save writes ckpt to path.
//
// The file is written next to path and renamed into place, so an
// interrupted save never leaves a partial checkpoint behind.
func Save(path string, ckpt *Checkpoint) error {
	tensors, header, err := encode(ckpt, nil, optim.State{})
	if err != nil {
		return err
	}
	return writeFile(path, tensors, header)
}

// Write encodes ckpt to w.
func Write(w io.Writer, ckpt *Checkpoint) error {
	tensors, header, err := encode(ckpt, nil, optim.State{})
	if err != nil {
		return err
	}
	return serialization.WriteTo(w, tensors, header, serialization.FormatVersionV2)
}

// Load reads a checkpoint from path using the descriptor stored in it.
func Load(path string) (*Checkpoint, error) {
	tensors, header, err := readFile(path)
	if err != nil {
		return nil, err
	}
	ckpt, _, err := decode(tensors, header, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ckpt, nil
}

// Read decodes a checkpoint from r.
func Read(r io.Reader) (*Checkpoint, error) {
	tensors, header, err := serialization.ReadFrom(r)
	if err != nil {
		return nil, err
	}
	ckpt, _, err := decode(tensors, header, nil)
	return ckpt, err
}

// LoadAs reads the parameters in path into a network built from desc.
//
// The stored descriptor is ignored; every tensor must match the shape implied
// by desc or a *nn.ShapeMismatchError is returned.
func LoadAs(path string, desc nn.Descriptor, opts ...nn.Option) (*nn.Network, error) {
	net, err := nn.NewNetwork(desc, opts...)
	if err != nil {
		return nil, err
	}
	tensors, header, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if header.ModelType != ModelType {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, header.ModelType)
	}
	model, _ := splitOptimizer(tensors)
	params, err := nn.LoadStateDict(desc, model)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return net.WithParams(params)
}

// SaveTraining writes ckpt together with optimizer state so training can resume.
func SaveTraining(path string, ckpt *Checkpoint, opt optim.Optimizer, state optim.State) error {
	if opt == nil {
		return fmt.Errorf("save training checkpoint: optimizer is nil")
	}
	tensors, header, err := encode(ckpt, opt, state)
	if err != nil {
		return err
	}
	return writeFile(path, tensors, header)
}

// LoadTraining reads a training checkpoint and rebuilds its optimizer and state.
func LoadTraining(path string) (*Checkpoint, optim.Optimizer, optim.State, error) {
	tensors, header, err := readFile(path)
	if err != nil {
		return nil, nil, optim.State{}, err
	}
	cm := header.CheckpointMeta
	if cm == nil || !cm.IsCheckpoint {
		return nil, nil, optim.State{}, fmt.Errorf("%s: %w", path, ErrNotTraining)
	}
	opt, err := optim.New(optimizerConfig(cm.OptimizerType, cm.OptimizerConfig))
	if err != nil {
		return nil, nil, optim.State{}, fmt.Errorf("%s: %w", path, err)
	}
	ckpt, optTensors, err := decode(tensors, header, opt)
	if err != nil {
		return nil, nil, optim.State{}, fmt.Errorf("%s: %w", path, err)
	}
	state, err := optim.LoadStateDict(ckpt.Descriptor, opt, optTensors, cm.OptimizerStep)
	if err != nil {
		return nil, nil, optim.State{}, fmt.Errorf("%s: optimizer state: %w", path, err)
	}
	return ckpt, opt, state, nil
}

func encode(ckpt *Checkpoint, opt optim.Optimizer, state optim.State) ([]tensor.Named, serialization.Header, error) {
	if ckpt == nil {
		return nil, serialization.Header{}, fmt.Errorf("checkpoint is nil")
	}
	if err := ckpt.Descriptor.Validate(); err != nil {
		return nil, serialization.Header{}, err
	}
	tensors, err := nn.StateDict(ckpt.Descriptor, ckpt.Params)
	if err != nil {
		return nil, serialization.Header{}, err
	}
	arch, err := json.Marshal(ckpt.Descriptor)
	if err != nil {
		return nil, serialization.Header{}, fmt.Errorf("marshal descriptor: %w", err)
	}

	cm := &serialization.CheckpointMeta{
		RunID:    ckpt.Meta.RunID,
		Epoch:    ckpt.Meta.Epoch,
		Step:     ckpt.Meta.Step,
		Loss:     ckpt.Meta.Loss,
		Accuracy: ckpt.Meta.Accuracy,
	}
	if opt != nil {
		optTensors, err := optim.StateDict(ckpt.Descriptor, state)
		if err != nil {
			return nil, serialization.Header{}, fmt.Errorf("optimizer state: %w", err)
		}
		for _, nt := range optTensors {
			tensors = append(tensors, tensor.Named{Name: optimizerPrefix + nt.Name, Tensor: nt.Tensor})
		}
		cm.IsCheckpoint = true
		cm.OptimizerType = opt.Name()
		cm.OptimizerConfig = opt.Config()
		cm.OptimizerStep = state.Step
	}

	header := serialization.Header{
		ModelType:      ModelType,
		CreatedAt:      ckpt.Meta.CreatedAt,
		Architecture:   arch,
		Metadata:       maps.Clone(ckpt.Meta.Extra),
		CheckpointMeta: cm,
	}
	return tensors, header, nil
}

// decode rebuilds a Checkpoint from file contents and returns the optimizer
// tensors (prefix stripped) separately.
func decode(tensors []tensor.Named, header serialization.Header, opt optim.Optimizer) (*Checkpoint, []tensor.Named, error) {
	if header.ModelType != ModelType {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, header.ModelType)
	}
	desc, err := descriptorOf(header)
	if err != nil {
		return nil, nil, err
	}
	model, optTensors := splitOptimizer(tensors)
	if opt == nil && len(optTensors) > 0 {
		// Inference loads ignore optimizer state.
		optTensors = nil
	}
	params, err := nn.LoadStateDict(desc, model)
	if err != nil {
		return nil, nil, err
	}

	ckpt := &Checkpoint{
		Descriptor: desc,
		Params:     params,
		Meta: Meta{
			CreatedAt: header.CreatedAt,
			Extra:     maps.Clone(header.Metadata),
		},
	}
	if cm := header.CheckpointMeta; cm != nil {
		ckpt.Meta.RunID = cm.RunID
		ckpt.Meta.Epoch = cm.Epoch
		ckpt.Meta.Step = cm.Step
		ckpt.Meta.Loss = cm.Loss
		ckpt.Meta.Accuracy = cm.Accuracy
	}
	return ckpt, optTensors, nil
}

func descriptorOf(header serialization.Header) (nn.Descriptor, error) {
	if len(header.Architecture) == 0 {
		return nn.Descriptor{}, ErrNoArchitecture
	}
	var desc nn.Descriptor
	if err := json.Unmarshal(header.Architecture, &desc); err != nil {
		return nn.Descriptor{}, fmt.Errorf("parse architecture: %w", err)
	}
	if err := desc.Validate(); err != nil {
		return nn.Descriptor{}, err
	}
	return desc, nil
}

func splitOptimizer(tensors []tensor.Named) (model, opt []tensor.Named) {
	for _, nt := range tensors {
		if name, ok := strings.CutPrefix(nt.Name, optimizerPrefix); ok {
			opt = append(opt, tensor.Named{Name: name, Tensor: nt.Tensor})
			continue
		}
		model = append(model, nt)
	}
	return model, opt
}

func optimizerConfig(name string, cfg map[string]any) optim.Config {
	f := func(key string) float64 {
		if v, ok := cfg[key].(float64); ok {
			return v
		}
		return 0
	}
	return optim.Config{
		Name:     name,
		LR:       f("lr"),
		Momentum: f("momentum"),
		Beta1:    f("beta1"),
		Beta2:    f("beta2"),
		Eps:      f("eps"),
	}
}

func readFile(path string) ([]tensor.Named, serialization.Header, error) {
	r, err := serialization.NewBornReader(path)
	if err != nil {
		return nil, serialization.Header{}, err
	}
	defer func() { _ = r.Close() }()

	tensors, err := r.ReadTensors()
	if err != nil {
		return nil, serialization.Header{}, fmt.Errorf("%s: %w", path, err)
	}
	return tensors, r.Header(), nil
}

func writeFile(path string, tensors []tensor.Named, header serialization.Header) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	w, err := serialization.NewBornWriter(tmpName)
	if err != nil {
		return err
	}
	if err := w.WriteTensors(tensors, header); err != nil {
		_ = w.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := w.Sync(); err != nil {
		_ = w.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}
