// Package main provides the fcnet CLI: train, evaluate, and serve
// fully-connected classifiers stored as .born checkpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const version = "v0.3.0"

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

var commands []command

func init() {
	commands = []command{
		{"download", "Fetch MNIST or Fashion-MNIST IDX files", runDownload},
		{"train", "Train a classifier and save a checkpoint", runTrain},
		{"evaluate", "Report loss and accuracy of a checkpoint on the test split", runEvaluate},
		{"predict", "Print predictions for the first test samples", runPredict},
		{"inspect", "Describe a checkpoint file", runInspect},
		{"serve", "Serve predictions over HTTP", runServe},
		{"config", "Print the default configuration as YAML", runConfig},
		{"version", "Show version", runVersion},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "fcnet: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return flag.ErrHelp
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(ctx, args[1:], stdout, stderr)
		}
	}
	usage(stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "fcnet %s - fully-connected classifiers with .born checkpoints\n\n", version)
	fmt.Fprintln(w, "Usage: fcnet <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
}

func runVersion(_ context.Context, _ []string, stdout, _ io.Writer) error {
	fmt.Fprintf(stdout, "fcnet %s\n", version)
	return nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("fcnet "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}
