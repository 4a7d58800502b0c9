package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Default mirrors for the gzip-compressed IDX files.
const (
	MNISTURL   = "https://storage.googleapis.com/cvdf-datasets/mnist/"
	FashionURL = "http://fashion-mnist.s3-website.eu-central-1.amazonaws.com/"
)

// BaseURL returns the default download mirror for k.
func (k Kind) BaseURL() string {
	if k == Fashion {
		return FashionURL
	}
	return MNISTURL
}

// DownloadOptions configures Download.
type DownloadOptions struct {
	BaseURL  string       // Defaults to kind.BaseURL()
	Client   *http.Client // Defaults to http.DefaultClient
	Progress io.Writer    // Progress bar output; nil disables the bar
	Logger   *zap.Logger  // Defaults to a no-op logger
}

// Download fetches the four .gz files of kind into dir, skipping files that
// already exist plain or compressed.
func Download(ctx context.Context, dir string, kind Kind, opts DownloadOptions) error {
	if opts.BaseURL == "" {
		opts.BaseURL = kind.BaseURL()
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	for _, name := range []string{trainImagesFile, trainLabelsFile, testImagesFile, testLabelsFile} {
		target := filepath.Join(dir, name+".gz")
		if fileExists(target) || fileExists(filepath.Join(dir, name)) {
			opts.Logger.Debug("dataset file present", zap.String("file", name))
			continue
		}
		src, err := url.JoinPath(opts.BaseURL, name+".gz")
		if err != nil {
			return fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
		}
		opts.Logger.Info("downloading", zap.String("url", src), zap.String("dest", target))
		n, err := fetch(ctx, opts.Client, src, target, opts.Progress)
		if err != nil {
			return err
		}
		opts.Logger.Info("downloaded", zap.String("file", target), zap.Int64("bytes", n))
	}
	return nil
}

// fetch downloads src into dest via a temporary file.
func fetch(ctx context.Context, client *http.Client, src, dest string, progress io.Writer) (n int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to build request for %q: %w", src, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed downloading %q: %w", src, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed downloading %q: %s", src, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	var dst io.Writer = tmp
	if progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription(filepath.Base(dest)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(progress) }),
		)
		defer func() { _ = bar.Close() }()
		dst = io.MultiWriter(tmp, bar)
	}

	n, err = io.Copy(dst, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("downloading %q to %q: %w", src, dest, err)
	}
	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed closing %q: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("failed moving download into place: %w", err)
	}
	return n, nil
}
