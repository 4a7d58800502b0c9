package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/fcnet/internal/tensor"
)

// ReaderOptions configures reader behavior.
type ReaderOptions struct {
	// SkipChecksumValidation skips SHA-256 verification of v2 files.
	SkipChecksumValidation bool
	// ValidationLevel controls header validation strictness.
	ValidationLevel ValidationLevel
}

// BornReader reads tensors from .born format.
type BornReader struct {
	src        io.ReaderAt
	closer     io.Closer
	header     Header
	version    uint32
	flags      uint32
	dataOffset int64
	dataSize   int64
	checksum   [32]byte
	closed     bool
}

// NewBornReader opens a .born file with default options (strict validation, checksum on).
func NewBornReader(path string) (*BornReader, error) {
	return NewBornReaderWithOptions(path, ReaderOptions{})
}

// NewBornReaderWithOptions opens a .born file with custom options.
func NewBornReaderWithOptions(path string, opts ReaderOptions) (*BornReader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	r, err := NewReader(file, info.Size(), opts)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	r.closer = file
	return r, nil
}

// NewReader parses a .born stream of the given total size.
func NewReader(src io.ReaderAt, size int64, opts ReaderOptions) (*BornReader, error) {
	r := &BornReader{src: src}
	if err := r.parse(size, opts); err != nil {
		return nil, err
	}
	return r, nil
}

// ReadFrom reads a whole .born stream and returns its tensors and header.
func ReadFrom(src io.Reader) ([]tensor.Named, Header, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to read stream: %w", err)
	}
	r, err := NewReader(bytes.NewReader(data), int64(len(data)), ReaderOptions{})
	if err != nil {
		return nil, Header{}, err
	}
	tensors, err := r.ReadTensors()
	if err != nil {
		return nil, Header{}, err
	}
	return tensors, r.Header(), nil
}

func (r *BornReader) parse(size int64, opts ReaderOptions) error {
	prefix := make([]byte, 8)
	if err := r.readAt(prefix, 0); err != nil {
		return fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if string(prefix[0:4]) != MagicBytes {
		return fmt.Errorf("%w: expected %q, got %q", ErrInvalidMagic, MagicBytes, string(prefix[0:4]))
	}
	r.version = binary.LittleEndian.Uint32(prefix[4:8])

	var (
		fixedSize  int64
		headerSize uint64
	)
	switch r.version {
	case FormatVersion:
		fixed := make([]byte, FixedHeaderSizeV1)
		if err := r.readAt(fixed, 0); err != nil {
			return fmt.Errorf("failed to read fixed header: %w", err)
		}
		fixedSize = FixedHeaderSizeV1
		r.flags = binary.LittleEndian.Uint32(fixed[8:12])
		headerSize = binary.LittleEndian.Uint64(fixed[12:20])
	case FormatVersionV2:
		fixed := make([]byte, FixedHeaderSizeV2)
		if err := r.readAt(fixed, 0); err != nil {
			return fmt.Errorf("failed to read fixed header: %w", err)
		}
		fixedSize = FixedHeaderSizeV2
		r.flags = binary.LittleEndian.Uint32(fixed[8:12])
		headerSize = binary.LittleEndian.Uint64(fixed[16:24])
		//nolint:gosec // G115: bounded against the stream size below
		r.dataSize = int64(binary.LittleEndian.Uint64(fixed[24:32]))
		copy(r.checksum[:], fixed[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize])
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, r.version)
	}

	if headerSize > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrHeaderTooLarge, headerSize, MaxHeaderSize)
	}
	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	hs := int64(headerSize)
	if fixedSize+hs > size {
		return &ValidationError{
			Type:    "truncated",
			Details: fmt.Sprintf("header of %d bytes extends past end of file (%d bytes)", hs, size),
		}
	}

	headerJSON := make([]byte, hs)
	if err := r.readAt(headerJSON, fixedSize); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if err := json.Unmarshal(headerJSON, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	r.dataOffset = fixedSize + hs + paddingFor(fixedSize+hs)
	if r.version == FormatVersion {
		r.dataSize = max(size-r.dataOffset, 0)
	} else if r.dataSize < 0 || r.dataOffset+r.dataSize > size {
		return &ValidationError{
			Type:    "truncated",
			Details: fmt.Sprintf("data section [%d, %d+%d) exceeds file size %d", r.dataOffset, r.dataOffset, r.dataSize, size),
		}
	}

	if err := ValidateHeader(&r.header, r.dataSize, opts.ValidationLevel); err != nil {
		return fmt.Errorf("invalid header: %w", err)
	}

	if r.version == FormatVersionV2 && !opts.SkipChecksumValidation {
		computed, err := ComputeChecksumReader(io.NewSectionReader(r.src, r.dataOffset, r.dataSize))
		if err != nil {
			return fmt.Errorf("failed to compute checksum: %w", err)
		}
		if err := ValidateChecksum(computed, r.checksum); err != nil {
			return err
		}
	}

	return nil
}

// readAt fills buf from offset off, treating a short read as an error.
func (r *BornReader) readAt(buf []byte, off int64) error {
	n, err := r.src.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Header returns the parsed header.
func (r *BornReader) Header() Header {
	return r.header
}

// Version returns the format version of the file.
func (r *BornReader) Version() int {
	return int(r.version)
}

// Flags returns the raw flags word.
func (r *BornReader) Flags() uint32 {
	return r.flags
}

// HasOptimizerState reports whether the file was written as a training checkpoint.
func (r *BornReader) HasOptimizerState() bool {
	return r.flags&FlagHasOptimizer != 0
}

// Metadata returns the custom metadata.
func (r *BornReader) Metadata() map[string]string {
	return r.header.Metadata
}

// DataSize returns the size of the tensor data section in bytes.
func (r *BornReader) DataSize() int64 {
	return r.dataSize
}

// TensorNames returns tensor names in file order.
func (r *BornReader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, t := range r.header.Tensors {
		names[i] = t.Name
	}
	return names
}

// TensorInfo returns metadata for a named tensor.
func (r *BornReader) TensorInfo(name string) (*TensorMeta, error) {
	for i := range r.header.Tensors {
		if r.header.Tensors[i].Name == name {
			meta := r.header.Tensors[i]
			return &meta, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
}

// ReadTensorData reads the raw bytes of a named tensor.
func (r *BornReader) ReadTensorData(name string) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	return r.readTensorData(*meta)
}

func (r *BornReader) readTensorData(meta TensorMeta) ([]byte, error) {
	if meta.Offset < 0 || meta.Size < 0 || meta.Offset+meta.Size > r.dataSize {
		return nil, &ValidationError{
			Type:    "out_of_bounds",
			Tensor:  meta.Name,
			Details: fmt.Sprintf("offset %d + size %d > data_size %d", meta.Offset, meta.Size, r.dataSize),
		}
	}
	data := make([]byte, meta.Size)
	if err := r.readAt(data, r.dataOffset+meta.Offset); err != nil {
		return nil, fmt.Errorf("failed to read tensor %s: %w", meta.Name, err)
	}
	return data, nil
}

// LoadTensor reads a named tensor.
func (r *BornReader) LoadTensor(name string) (*tensor.RawTensor, error) {
	if r.closed {
		return nil, ErrClosed
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	return r.loadTensor(*meta)
}

func (r *BornReader) loadTensor(meta TensorMeta) (*tensor.RawTensor, error) {
	dtype, ok := tensor.ParseDataType(meta.DType)
	if !ok {
		return nil, fmt.Errorf("tensor %s: unsupported dtype %q", meta.Name, meta.DType)
	}
	data, err := r.readTensorData(meta)
	if err != nil {
		return nil, err
	}
	raw, err := tensor.FromBytes(tensor.Shape(meta.Shape), dtype, data)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
	}
	return raw, nil
}

// ReadTensors reads every tensor in file order.
func (r *BornReader) ReadTensors() ([]tensor.Named, error) {
	if r.closed {
		return nil, ErrClosed
	}
	out := make([]tensor.Named, 0, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		raw, err := r.loadTensor(meta)
		if err != nil {
			return nil, err
		}
		out = append(out, tensor.Named{Name: meta.Name, Tensor: raw})
	}
	return out, nil
}

// Close releases the underlying file, if any.
func (r *BornReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
