package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// IDX magic numbers.
const (
	imageMagic = 0x00000803 // 2051
	labelMagic = 0x00000801 // 2049
)

// maxIDXItems bounds the sample count accepted from a file header.
const maxIDXItems = 10_000_000

// File names used by both MNIST and Fashion-MNIST.
const (
	trainImagesFile = "train-images-idx3-ubyte"
	trainLabelsFile = "train-labels-idx1-ubyte"
	testImagesFile  = "t10k-images-idx3-ubyte"
	testLabelsFile  = "t10k-labels-idx1-ubyte"
)

// ErrInvalidIDX is returned for files with a bad header.
var ErrInvalidIDX = errors.New("invalid IDX file")

// Images holds decoded IDX image data.
type Images struct {
	Rows, Cols int
	Pixels     [][]byte
}

// ReadImages decodes an IDX3 image stream, gzip-compressed or not.
//
// Format:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes
//	number of cols: 4 bytes
//	pixel data: unsigned bytes (0-255)
func ReadImages(r io.Reader) (*Images, error) {
	r, err := maybeGunzip(r)
	if err != nil {
		return nil, err
	}

	var hdr struct {
		Magic, Count, Rows, Cols uint32
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if hdr.Magic != imageMagic {
		return nil, fmt.Errorf("%w: image magic %d, want %d", ErrInvalidIDX, hdr.Magic, imageMagic)
	}
	if hdr.Count > maxIDXItems || hdr.Rows == 0 || hdr.Cols == 0 || hdr.Rows > 1024 || hdr.Cols > 1024 {
		return nil, fmt.Errorf("%w: implausible dimensions %dx%dx%d", ErrInvalidIDX, hdr.Count, hdr.Rows, hdr.Cols)
	}

	size := int(hdr.Rows * hdr.Cols)
	out := &Images{Rows: int(hdr.Rows), Cols: int(hdr.Cols), Pixels: make([][]byte, hdr.Count)}
	for i := range out.Pixels {
		out.Pixels[i] = make([]byte, size)
		if _, err := io.ReadFull(r, out.Pixels[i]); err != nil {
			return nil, fmt.Errorf("failed to read image %d: %w", i, err)
		}
	}
	return out, nil
}

// ReadLabels decodes an IDX1 label stream, gzip-compressed or not.
//
// Format:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes
func ReadLabels(r io.Reader) ([]byte, error) {
	r, err := maybeGunzip(r)
	if err != nil {
		return nil, err
	}

	var hdr struct {
		Magic, Count uint32
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read label header: %w", err)
	}
	if hdr.Magic != labelMagic {
		return nil, fmt.Errorf("%w: label magic %d, want %d", ErrInvalidIDX, hdr.Magic, labelMagic)
	}
	if hdr.Count > maxIDXItems {
		return nil, fmt.Errorf("%w: implausible label count %d", ErrInvalidIDX, hdr.Count)
	}

	labels := make([]byte, hdr.Count)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return labels, nil
}

// maybeGunzip wraps r in a gzip reader when the stream starts with the gzip magic.
func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(2)
	if err == nil && head[0] == 0x1f && head[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return zr, nil
	}
	return br, nil
}

// LoadIDX loads the train or test split of kind from dir.
//
// Each file may be stored plain or with a .gz suffix. Pixels are scaled to
// [0, 1]. maxSamples > 0 truncates the split.
func LoadIDX(dir string, kind Kind, train bool, maxSamples int) (*Dataset, error) {
	imageFile, labelFile := testImagesFile, testLabelsFile
	if train {
		imageFile, labelFile = trainImagesFile, trainLabelsFile
	}

	var images *Images
	err := withFile(dir, imageFile, func(r io.Reader) (err error) {
		images, err = ReadImages(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}

	var labels []byte
	err = withFile(dir, labelFile, func(r io.Reader) (err error) {
		labels, err = ReadLabels(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}

	if len(images.Pixels) != len(labels) {
		return nil, fmt.Errorf("image count (%d) != label count (%d)", len(images.Pixels), len(labels))
	}

	n := len(labels)
	if maxSamples > 0 && n > maxSamples {
		n = maxSamples
	}
	classes := kind.Classes()
	ds := &Dataset{
		Images:  make([][]float64, n),
		Labels:  make([]int, n),
		Classes: classes,
	}
	for i := range n {
		if int(labels[i]) >= len(classes) {
			return nil, fmt.Errorf("label %d at index %d out of range [0, %d)", labels[i], i, len(classes))
		}
		img := make([]float64, len(images.Pixels[i]))
		for j, p := range images.Pixels[i] {
			img[j] = float64(p) / 255.0
		}
		ds.Images[i] = img
		ds.Labels[i] = int(labels[i])
	}
	return ds, nil
}

// withFile opens dir/name, falling back to dir/name.gz.
func withFile(dir, name string, fn func(io.Reader) error) error {
	path := filepath.Join(dir, name)
	//nolint:gosec // G304: dataset directory is chosen by the user
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		//nolint:gosec // G304: dataset directory is chosen by the user
		f, err = os.Open(path + ".gz")
	}
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return fn(f)
}

// Exists reports whether every file of a split is present in dir.
func Exists(dir string, train bool) bool {
	names := []string{testImagesFile, testLabelsFile}
	if train {
		names = []string{trainImagesFile, trainLabelsFile}
	}
	for _, name := range names {
		if !fileExists(filepath.Join(dir, name)) && !fileExists(filepath.Join(dir, name+".gz")) {
			return false
		}
	}
	return true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
