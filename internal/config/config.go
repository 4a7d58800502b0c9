// Package config holds the settings of a training run and their YAML form.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/fcnet/internal/dataset"
	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/optim"
	"github.com/born-ml/fcnet/internal/train"
)

// Config is the full configuration of a run.
type Config struct {
	Model     nn.Descriptor `yaml:"model"`
	Dropout   float64       `yaml:"dropout"` // hidden-layer dropout during training
	Data      Data          `yaml:"data"`
	Train     train.Config  `yaml:"train"`
	Optimizer optim.Config  `yaml:"optimizer"`
	Server    Server        `yaml:"server"`
	Output    string        `yaml:"output"`
	LogLevel  string        `yaml:"log_level"`
}

// Data selects and preprocesses the dataset.
type Data struct {
	Kind             string  `yaml:"kind"` // mnist or fashion
	Dir              string  `yaml:"dir"`
	MaxTrain         int     `yaml:"max_train"` // 0 loads everything
	MaxTest          int     `yaml:"max_test"`
	ValidRatio       float64 `yaml:"valid_ratio"`
	Normalize        bool    `yaml:"normalize"`
	Mean             float64 `yaml:"mean"`
	Std              float64 `yaml:"std"`
	Synthetic        bool    `yaml:"synthetic"` // generate data instead of reading IDX files
	SyntheticSamples int     `yaml:"synthetic_samples"`
}

// Server configures the prediction HTTP server.
type Server struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxBatch       int      `yaml:"max_batch"`
}

// Default returns the configuration for the MNIST classifier.
func Default() *Config {
	return &Config{
		Model: nn.Descriptor{
			InputSize:   784,
			OutputSize:  10,
			HiddenSizes: []int{512, 256, 128},
		},
		Dropout: 0.2,
		Data: Data{
			Kind:             string(dataset.MNIST),
			Dir:              "data/mnist",
			ValidRatio:       0.2,
			Normalize:        true,
			Mean:             0.5,
			Std:              0.5,
			SyntheticSamples: 2000,
		},
		Train: train.DefaultConfig(),
		Optimizer: optim.Config{
			Name: "adam",
			LR:   0.001,
		},
		Server: Server{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			MaxBatch:       256,
		},
		Output:   "model.born",
		LogLevel: "info",
	}
}

// Load reads a YAML file on top of Default. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	//nolint:gosec // G304: config path is chosen by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Write encodes cfg as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// Validate reports every problem in the configuration.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Model.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		errs = append(errs, fmt.Errorf("dropout must be in [0, 1), got %g", c.Dropout))
	}
	if err := c.Train.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("train: %w", err))
	}
	if _, err := optim.New(c.Optimizer); err != nil {
		errs = append(errs, fmt.Errorf("optimizer: %w", err))
	}
	if c.Optimizer.LR < 0 {
		errs = append(errs, fmt.Errorf("optimizer: lr must not be negative, got %g", c.Optimizer.LR))
	}
	if _, err := dataset.ParseKind(c.Data.Kind); err != nil {
		errs = append(errs, fmt.Errorf("data: %w", err))
	}
	if c.Data.ValidRatio < 0 || c.Data.ValidRatio >= 1 {
		errs = append(errs, fmt.Errorf("data: valid_ratio must be in [0, 1), got %g", c.Data.ValidRatio))
	}
	if c.Data.Normalize && c.Data.Std <= 0 {
		errs = append(errs, fmt.Errorf("data: std must be positive when normalize is set, got %g", c.Data.Std))
	}
	if c.Data.Synthetic && c.Data.SyntheticSamples <= 0 {
		errs = append(errs, fmt.Errorf("data: synthetic_samples must be positive, got %d", c.Data.SyntheticSamples))
	}
	if c.Server.MaxBatch <= 0 {
		errs = append(errs, fmt.Errorf("server: max_batch must be positive, got %d", c.Server.MaxBatch))
	}
	if c.Output == "" {
		errs = append(errs, fmt.Errorf("output path is empty"))
	}
	return errors.Join(errs...)
}
