package train

import "fmt"

// Config controls a training run.
type Config struct {
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batch_size"`
	Seed            uint64  `yaml:"seed"`
	PrintEvery      int     `yaml:"print_every"`      // batches between loss logs, 0 disables
	CheckpointEvery int     `yaml:"checkpoint_every"` // epochs between training checkpoints, 0 disables
	CheckpointDir   string  `yaml:"checkpoint_dir"`
}

// DefaultConfig returns the settings used for the MNIST classifier.
func DefaultConfig() Config {
	return Config{
		Epochs:        5,
		BatchSize:     64,
		Seed:          42,
		PrintEvery:    100,
		CheckpointDir: "checkpoints",
	}
}

// Validate checks that the configuration can drive a run.
func (c Config) Validate() error {
	switch {
	case c.Epochs <= 0:
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	case c.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	case c.PrintEvery < 0:
		return fmt.Errorf("print_every must not be negative, got %d", c.PrintEvery)
	case c.CheckpointEvery < 0:
		return fmt.Errorf("checkpoint_every must not be negative, got %d", c.CheckpointEvery)
	case c.CheckpointEvery > 0 && c.CheckpointDir == "":
		return fmt.Errorf("checkpoint_every requires checkpoint_dir")
	}
	return nil
}
