// Package train fits an nn.Network with a functional optimizer.
//
// The trainer owns the current parameters and optimizer state and replaces
// both after every step; neither is ever updated in place.
package train

import (
	"context"
	"fmt"
	"io"
	"maps"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/born-ml/fcnet/internal/checkpoint"
	"github.com/born-ml/fcnet/internal/dataset"
	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/optim"
)

// EpochMetrics summarises one epoch.
type EpochMetrics struct {
	Epoch         int
	TrainLoss     float64
	ValidLoss     float64
	ValidAccuracy float64
	Duration      time.Duration
	Checkpoint    string // path of the training checkpoint written after this epoch, if any
}

// History is the per-epoch record of a Fit call.
type History struct {
	Epochs []EpochMetrics
}

// Last returns the most recent epoch.
func (h History) Last() (EpochMetrics, bool) {
	if len(h.Epochs) == 0 {
		return EpochMetrics{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

// Best returns the epoch with the highest validation accuracy.
func (h History) Best() (EpochMetrics, bool) {
	if len(h.Epochs) == 0 {
		return EpochMetrics{}, false
	}
	best := h.Epochs[0]
	for _, m := range h.Epochs[1:] {
		if m.ValidAccuracy > best.ValidAccuracy {
			best = m
		}
	}
	return best, true
}

// Trainer threads (params, optimizer state) through training steps.
type Trainer struct {
	cfg      Config
	template *nn.Network
	params   nn.Params
	opt      optim.Optimizer
	state    optim.State
	rng      *rand.Rand
	dropout  float64
	logger   *zap.Logger
	progress io.Writer
	runID    string
	extra    map[string]string
	epoch    int
	steps    int64
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(t *Trainer) { t.logger = l }
}

// WithProgress draws a per-epoch progress bar on w.
func WithProgress(w io.Writer) Option {
	return func(t *Trainer) { t.progress = w }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(t *Trainer) { t.runID = id }
}

// WithDropout overrides the dropout probability the network was built with.
func WithDropout(p float64) Option {
	return func(t *Trainer) { t.dropout = p }
}

// WithMetadata attaches extra key/value pairs to every checkpoint.
func WithMetadata(m map[string]string) Option {
	return func(t *Trainer) { t.extra = maps.Clone(m) }
}

// New creates a trainer starting from net's current parameters.
func New(net *nn.Network, opt optim.Optimizer, cfg Config, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opt == nil {
		return nil, fmt.Errorf("optimizer is nil")
	}
	params := net.Params()
	t := &Trainer{
		cfg:      cfg,
		template: net,
		params:   params,
		opt:      opt,
		state:    opt.Init(params),
		//nolint:gosec // G404: shuffling and dropout are not security-critical
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5851f42d4c957f2d)),
		dropout: net.Dropout(),
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(t)
	}
	if t.dropout < 0 || t.dropout >= 1 {
		return nil, fmt.Errorf("dropout must be in [0, 1), got %g", t.dropout)
	}
	if t.runID == "" {
		t.runID = uuid.NewString()
	}
	return t, nil
}

// Resume creates a trainer that continues from a training checkpoint.
// Checkpoints do not record dropout; pass WithDropout to train with it.
func Resume(ckpt *checkpoint.Checkpoint, opt optim.Optimizer, state optim.State, cfg Config, opts ...Option) (*Trainer, error) {
	net, err := checkpoint.Rebuild(ckpt, nn.WithSeed(cfg.Seed))
	if err != nil {
		return nil, err
	}
	t, err := New(net, opt, cfg, append([]Option{WithRunID(ckpt.Meta.RunID)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if len(state.Slots) > 0 || state.Step > 0 {
		t.state = state.Clone()
	}
	t.epoch = ckpt.Meta.Epoch
	t.steps = ckpt.Meta.Step
	return t, nil
}

// RunID returns the identifier recorded in checkpoints.
func (t *Trainer) RunID() string { return t.runID }

// Epoch returns the number of completed epochs.
func (t *Trainer) Epoch() int { return t.epoch }

// Steps returns the number of optimizer steps taken.
func (t *Trainer) Steps() int64 { return t.steps }

// Params returns a copy of the current parameters.
func (t *Trainer) Params() nn.Params { return t.params.Clone() }

// State returns a copy of the current optimizer state.
func (t *Trainer) State() optim.State { return t.state.Clone() }

// Network returns a network holding the current parameters.
func (t *Trainer) Network() (*nn.Network, error) {
	return t.template.WithParams(t.params)
}

// Step performs one optimizer update on b and returns the batch loss.
func (t *Trainer) Step(b dataset.Batch) (float64, error) {
	desc := t.template.Descriptor()
	grads, loss, err := nn.Gradients(desc, t.params, b.X, b.Labels, t.dropout, t.rng)
	if err != nil {
		return 0, fmt.Errorf("step %d: %w", t.steps+1, err)
	}
	params, state, err := t.opt.Step(t.params, grads, t.state)
	if err != nil {
		return 0, fmt.Errorf("step %d: %w", t.steps+1, err)
	}
	t.params, t.state = params, state
	t.steps++
	return loss, nil
}

// Fit runs cfg.Epochs epochs over train, evaluating on valid after each one.
// valid may be nil.
func (t *Trainer) Fit(ctx context.Context, train, valid *dataset.Dataset) (History, error) {
	var hist History
	if train.Len() == 0 {
		return hist, fmt.Errorf("training set is empty")
	}
	if got, want := train.InputSize(), t.template.Descriptor().InputSize; got != want {
		return hist, fmt.Errorf("training samples have %d features, network expects %d", got, want)
	}

	t.logger.Info("training started",
		zap.String("run_id", t.runID),
		zap.Stringer("architecture", t.template.Descriptor()),
		zap.String("optimizer", t.opt.Name()),
		zap.Float64("lr", t.opt.LR()),
		zap.Int("train_samples", train.Len()),
		zap.Int("epochs", t.cfg.Epochs),
		zap.Int("batch_size", t.cfg.BatchSize),
	)

	last := t.epoch + t.cfg.Epochs
	for t.epoch < last {
		m, err := t.runEpoch(ctx, train, valid, last)
		if err != nil {
			return hist, err
		}
		hist.Epochs = append(hist.Epochs, m)
	}
	return hist, nil
}

func (t *Trainer) runEpoch(ctx context.Context, train, valid *dataset.Dataset, last int) (EpochMetrics, error) {
	start := time.Now()
	epoch := t.epoch + 1
	batches, err := dataset.Batches(train, t.cfg.BatchSize, t.rng)
	if err != nil {
		return EpochMetrics{}, err
	}

	var bar *progressbar.ProgressBar
	if t.progress != nil {
		bar = progressbar.NewOptions(len(batches),
			progressbar.OptionSetWriter(t.progress),
			progressbar.OptionSetDescription(fmt.Sprintf("epoch %d/%d", epoch, last)),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("batches"),
			progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(t.progress) }),
		)
	}

	var sum float64
	var seen int
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return EpochMetrics{}, err
		}
		loss, err := t.Step(b)
		if err != nil {
			return EpochMetrics{}, err
		}
		sum += loss * float64(b.Size())
		seen += b.Size()
		if bar != nil {
			_ = bar.Add(1)
		}
		if t.cfg.PrintEvery > 0 && (i+1)%t.cfg.PrintEvery == 0 {
			t.logger.Debug("batch",
				zap.Int("epoch", epoch),
				zap.Int("batch", i+1),
				zap.Int64("step", t.steps),
				zap.Float64("loss", loss),
			)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	t.epoch = epoch

	m := EpochMetrics{Epoch: epoch, TrainLoss: sum / float64(seen)}
	net, err := t.Network()
	if err != nil {
		return EpochMetrics{}, err
	}
	if valid != nil && valid.Len() > 0 {
		m.ValidLoss, m.ValidAccuracy, err = Evaluate(net, valid, t.cfg.BatchSize)
		if err != nil {
			return EpochMetrics{}, fmt.Errorf("validation: %w", err)
		}
	}

	if t.cfg.CheckpointEvery > 0 && epoch%t.cfg.CheckpointEvery == 0 {
		m.Checkpoint = filepath.Join(t.cfg.CheckpointDir, fmt.Sprintf("epoch_%03d.born", epoch))
		if err := t.saveCheckpoint(m.Checkpoint, net, m); err != nil {
			return EpochMetrics{}, err
		}
	}
	m.Duration = time.Since(start)

	t.logger.Info("epoch finished",
		zap.Int("epoch", epoch),
		zap.Float64("train_loss", m.TrainLoss),
		zap.Float64("valid_loss", m.ValidLoss),
		zap.Float64("valid_accuracy", m.ValidAccuracy),
		zap.Duration("duration", m.Duration),
	)
	return m, nil
}

func (t *Trainer) saveCheckpoint(path string, net *nn.Network, m EpochMetrics) error {
	ckpt := checkpoint.Assemble(net, t.Meta(m))
	if err := checkpoint.SaveTraining(path, ckpt, t.opt, t.state); err != nil {
		return fmt.Errorf("epoch %d checkpoint: %w", m.Epoch, err)
	}
	t.logger.Info("checkpoint saved", zap.String("path", path), zap.Int("epoch", m.Epoch))
	return nil
}

// Meta builds checkpoint metadata for the trainer's current position.
func (t *Trainer) Meta(m EpochMetrics) checkpoint.Meta {
	loss := m.ValidLoss
	if loss == 0 {
		loss = m.TrainLoss
	}
	return checkpoint.Meta{
		RunID:    t.runID,
		Epoch:    t.epoch,
		Step:     t.steps,
		Loss:     loss,
		Accuracy: m.ValidAccuracy,
		Extra:    t.extra,
	}
}

// Optimizer returns the trainer's optimizer.
func (t *Trainer) Optimizer() optim.Optimizer { return t.opt }
