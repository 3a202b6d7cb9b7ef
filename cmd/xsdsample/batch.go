package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/agentflare-ai/go-xsdgraph"
	"github.com/midbel/cli"
)

var batchCmd = cli.Command{
	Name:    "batch",
	Summary: "run the jobs of a configuration file in parallel",
	Handler: &BatchCmd{},
}

type BatchCmd struct {
	Workers int
	Verbose bool
}

func (c *BatchCmd) Run(args []string) error {
	set := flag.NewFlagSet("batch", flag.ContinueOnError)
	set.IntVar(&c.Workers, "workers", 0, "maximum jobs in flight, overrides the configuration")
	set.BoolVar(&c.Verbose, "v", false, "log debug messages")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() != 1 {
		return fmt.Errorf("usage: batch [options] <config.yaml>")
	}
	cfg, err := xsdgraph.LoadConfig(set.Arg(0))
	if err != nil {
		return err
	}
	jobs := cfg.BatchJobs()
	if len(jobs) == 0 {
		return fmt.Errorf("%s: no jobs configured", set.Arg(0))
	}

	workers := cfg.Workers
	if c.Workers > 0 {
		workers = c.Workers
	}
	runner := xsdgraph.NewBatchRunner(cfg.NewCache(), workers)
	runner.Logger = newLogger(c.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := runner.ProcessAll(ctx, jobs)
	if err != nil {
		return err
	}

	failed := false
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed = true
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", r.Job.Schema, r.Job.Root, r.Err)
			continue
		case len(r.Outputs) > 0:
			for _, out := range r.Outputs {
				fmt.Fprintf(os.Stdout, "%s %s -> %s\n", r.Job.Schema, r.Job.Root, out)
			}
		default:
			for _, s := range r.Samples {
				fmt.Fprint(os.Stdout, s.XML)
			}
		}
		for i, v := range r.Validations {
			if !v.IsValid {
				failed = true
				fmt.Fprintf(os.Stderr, "%s %s sample %d: %s\n", r.Job.Schema, r.Job.Root, i+1, v.Message)
			}
		}
	}
	if failed {
		return errFail
	}
	return nil
}
