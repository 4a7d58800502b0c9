package main

import (
	"context"
	"fmt"
	"io"

	"github.com/born-ml/fcnet/internal/checkpoint"
	"github.com/born-ml/fcnet/internal/config"
	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/train"
)

// loadModel reads path and rebuilds its network. A non-empty hidden list
// rebuilds with that architecture instead of the stored one.
func loadModel(path, hidden string) (*checkpoint.Checkpoint, *nn.Network, error) {
	ckpt, err := checkpoint.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if hidden == "" {
		net, err := checkpoint.Rebuild(ckpt)
		return ckpt, net, err
	}
	sizes, err := parseSizes(hidden)
	if err != nil {
		return nil, nil, err
	}
	desc := ckpt.Descriptor.Clone()
	desc.HiddenSizes = sizes
	net, err := checkpoint.LoadAs(path, desc)
	return ckpt, net, err
}

func runEvaluate(_ context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.Default()
	fs := newFlagSet("evaluate", stderr)
	model := fs.String("model", cfg.Output, "checkpoint to evaluate")
	hidden := fs.String("hidden", "", "rebuild with these hidden widths instead of the stored ones")
	batch := fs.Int("batch", cfg.Train.BatchSize, "evaluation batch size")
	dataFlags(fs, &cfg.Data)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ckpt, net, err := loadModel(*model, *hidden)
	if err != nil {
		return err
	}
	testSet, err := testSplit(cfg, ckpt)
	if err != nil {
		return err
	}
	loss, acc, err := train.Evaluate(net, testSet, *batch)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "model:    %s (%s)\n", *model, net.Descriptor())
	fmt.Fprintf(stdout, "samples:  %d\n", testSet.Len())
	fmt.Fprintf(stdout, "loss:     %.4f\n", loss)
	fmt.Fprintf(stdout, "accuracy: %.2f%%\n", 100*acc)
	return nil
}

func runPredict(_ context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.Default()
	fs := newFlagSet("predict", stderr)
	model := fs.String("model", cfg.Output, "checkpoint to use")
	n := fs.Int("n", 10, "number of test samples to predict")
	dataFlags(fs, &cfg.Data)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ckpt, net, err := loadModel(*model, "")
	if err != nil {
		return err
	}
	testSet, err := testSplit(cfg, ckpt)
	if err != nil {
		return err
	}
	batches, err := datasetHead(testSet, *n)
	if err != nil {
		return err
	}

	probs := net.Probabilities(batches.X)
	preds := nn.Argmax(probs)
	classes := testSet.Classes
	correct := 0
	for i, p := range preds {
		want := batches.Labels[i]
		mark := " "
		if p == want {
			correct++
			mark = "*"
		}
		fmt.Fprintf(stdout, "%s #%-4d predicted %-12s (%.3f)  actual %s\n",
			mark, i, className(classes, p), probs.At(i, p), className(classes, want))
	}
	fmt.Fprintf(stdout, "%d/%d correct\n", correct, len(preds))
	return nil
}

func className(classes []string, label int) string {
	if label >= 0 && label < len(classes) {
		return classes[label]
	}
	return fmt.Sprint(label)
}
