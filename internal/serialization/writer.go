package serialization

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/born-ml/fcnet/internal/tensor"
)

// BornWriter writes tensors in .born format.
type BornWriter struct {
	file    *os.File
	version int
	closed  bool
}

// NewBornWriter creates a new .born file writer using format v2.
func NewBornWriter(path string) (*BornWriter, error) {
	return NewBornWriterVersion(path, FormatVersionV2)
}

// NewBornWriterVersion creates a writer for an explicit format version (1 or 2).
func NewBornWriterVersion(path string, version int) (*BornWriter, error) {
	if version != FormatVersion && version != FormatVersionV2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &BornWriter{file: file, version: version}, nil
}

// WriteTensors writes tensors, in order, with the given header.
//
// FormatVersion, BornVersion, and Tensors are filled in by the writer;
// CreatedAt defaults to now.
func (w *BornWriter) WriteTensors(tensors []tensor.Named, header Header) error {
	if w.closed {
		return ErrClosed
	}
	buf := bufio.NewWriter(w.file)
	if err := WriteTo(buf, tensors, header, w.version); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// Sync flushes the file to stable storage.
func (w *BornWriter) Sync() error {
	if w.closed {
		return ErrClosed
	}
	return w.file.Sync()
}

// Close closes the writer and the underlying file.
func (w *BornWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// WriteTo encodes tensors and header to dst using the given format version.
func WriteTo(dst io.Writer, tensors []tensor.Named, header Header, version int) error {
	if version != FormatVersion && version != FormatVersionV2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	header.FormatVersion = version
	header.BornVersion = WriterVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	// Calculate tensor offsets and the data checksum in write order.
	var currentOffset int64
	hash := sha256.New()
	header.Tensors = make([]TensorMeta, 0, len(tensors))
	for _, nt := range tensors {
		if nt.Tensor == nil {
			return fmt.Errorf("tensor %s is nil", nt.Name)
		}
		size := int64(nt.Tensor.ByteSize())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   nt.Name,
			DType:  nt.Tensor.DType().String(),
			Shape:  []int(nt.Tensor.Shape().Clone()),
			Offset: currentOffset,
			Size:   size,
		})
		_, _ = hash.Write(nt.Tensor.Data())
		currentOffset += size
	}
	if err := ValidateHeader(&header, currentOffset, ValidationStrict); err != nil {
		return fmt.Errorf("refusing to write invalid file: %w", err)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	headerSize := uint64(len(headerJSON))

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.CheckpointMeta != nil && header.CheckpointMeta.IsCheckpoint {
		flags |= FlagHasOptimizer
	}

	var fixed []byte
	if version == FormatVersion {
		fixed = make([]byte, FixedHeaderSizeV1)
		copy(fixed[0:4], MagicBytes)
		binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersion))
		binary.LittleEndian.PutUint32(fixed[8:12], flags)
		binary.LittleEndian.PutUint64(fixed[12:20], headerSize)
	} else {
		fixed = make([]byte, FixedHeaderSizeV2)
		copy(fixed[0:4], MagicBytes)
		binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersionV2))
		binary.LittleEndian.PutUint32(fixed[8:12], flags)
		// 0x0C-0x0F: Reserved (0)
		binary.LittleEndian.PutUint64(fixed[16:24], headerSize)
		//nolint:gosec // G115: offsets are non-negative sums of tensor sizes
		binary.LittleEndian.PutUint64(fixed[24:32], uint64(currentOffset))
		copy(fixed[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize], hash.Sum(nil))
	}

	if _, err := dst.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := dst.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	padding := paddingFor(int64(len(fixed)) + int64(headerSize))
	if padding > 0 {
		if _, err := dst.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	for _, nt := range tensors {
		if _, err := dst.Write(nt.Tensor.Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", nt.Name, err)
		}
	}

	return nil
}
