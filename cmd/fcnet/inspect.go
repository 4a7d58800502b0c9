package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/born-ml/fcnet/internal/checkpoint"
	"github.com/born-ml/fcnet/internal/dataset"
)

func runInspect(_ context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("inspect", stderr)
	model := fs.String("model", "model.born", "checkpoint to describe")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := checkpoint.Inspect(*model)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "file:         %s (%s)\n", s.Path, humanize.IBytes(uint64(s.FileSize)))
	fmt.Fprintf(stdout, "format:       v%d, written by %s\n", s.FormatVersion, s.WriterVersion)
	fmt.Fprintf(stdout, "model:        %s %s\n", s.ModelType, s.Descriptor)
	fmt.Fprintf(stdout, "parameters:   %s (%s)\n", humanize.Comma(int64(s.NumParameters)), humanize.IBytes(uint64(s.DataSize)))
	if s.Meta.RunID != "" {
		fmt.Fprintf(stdout, "run:          %s\n", s.Meta.RunID)
	}
	fmt.Fprintf(stdout, "created:      %s (%s)\n", s.Meta.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(s.Meta.CreatedAt))
	fmt.Fprintf(stdout, "epoch/step:   %d / %s\n", s.Meta.Epoch, humanize.Comma(s.Meta.Step))
	fmt.Fprintf(stdout, "loss/acc:     %.4f / %.2f%%\n", s.Meta.Loss, 100*s.Meta.Accuracy)
	if s.Training {
		fmt.Fprintf(stdout, "optimizer:    %s (state included)\n", s.Optimizer)
	}

	if len(s.Meta.Extra) > 0 {
		keys := make([]string, 0, len(s.Meta.Extra))
		for k := range s.Meta.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(stdout, "metadata:")
		for _, k := range keys {
			fmt.Fprintf(stdout, "  %s = %s\n", k, s.Meta.Extra[k])
		}
	}

	fmt.Fprintln(stdout)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TENSOR\tDTYPE\tSHAPE\tSIZE")
	for _, t := range s.Tensors {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", t.Name, t.DType, t.Shape, humanize.IBytes(uint64(t.Size)))
	}
	return tw.Flush()
}

func datasetHead(ds *dataset.Dataset, n int) (dataset.Batch, error) {
	if n <= 0 {
		return dataset.Batch{}, fmt.Errorf("n must be positive, got %d", n)
	}
	batches, err := dataset.Batches(ds.Subset(n), n, nil)
	if err != nil {
		return dataset.Batch{}, err
	}
	if len(batches) == 0 {
		return dataset.Batch{}, fmt.Errorf("no samples to predict")
	}
	return batches[0], nil
}
