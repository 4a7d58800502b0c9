package serialization

import (
	"encoding/json"
	"time"
)

// Format constants.
const (
	MagicBytes        = "BORN"
	FormatVersion     = 1    // v1: Basic format without checksum
	FormatVersionV2   = 2    // v2: With SHA-256 checksum
	HeaderAlignment   = 64   // Align tensor data to 64 bytes
	FixedHeaderSizeV1 = 20   // magic + version + flags + header size
	FixedHeaderSizeV2 = 64   // v2 fixed header size (0x40 bytes)
	ChecksumSize      = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffsetV2  = 0x20 // Checksum offset in v2 fixed header
)

// Flags for the .born format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
)

// WriterVersion is recorded in every header this package writes.
const WriterVersion = "fcnet-0.3.0"

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`         // Version of the .born format
	BornVersion    string            `json:"born_version"`           // Version of the writer that created this file
	ModelType      string            `json:"model_type"`             // Type of model (e.g., "MLP")
	CreatedAt      time.Time         `json:"created_at"`             // When the file was created
	Architecture   json.RawMessage   `json:"architecture,omitempty"` // Model architecture record, owned by the caller
	Tensors        []TensorMeta      `json:"tensors"`                // Tensor metadata, in write order
	Metadata       map[string]string `json:"metadata"`               // Custom metadata
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`   // Training state (optional)
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	IsCheckpoint    bool           `json:"is_checkpoint"`              // Whether optimizer state is included
	RunID           string         `json:"run_id,omitempty"`           // Training run identifier
	Epoch           int            `json:"epoch"`                      // Training epoch number
	Step            int64          `json:"step"`                       // Training step number
	Loss            float64        `json:"loss"`                       // Loss value at checkpoint
	Accuracy        float64        `json:"accuracy"`                   // Validation accuracy at checkpoint
	OptimizerType   string         `json:"optimizer_type,omitempty"`   // Optimizer type ("sgd", "adam")
	OptimizerConfig map[string]any `json:"optimizer_config,omitempty"` // Optimizer hyperparameters
	OptimizerStep   int64          `json:"optimizer_step,omitempty"`   // Optimizer step counter
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "hidden_layers.0.weight")
	DType  string `json:"dtype"`  // Data type ("float32", "float64")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section (bytes from start of tensor data)
	Size   int64  `json:"size"`   // Size in bytes
}

// paddingFor returns the number of zero bytes needed after pos to reach HeaderAlignment.
func paddingFor(pos int64) int64 {
	return (HeaderAlignment - (pos % HeaderAlignment)) % HeaderAlignment
}
