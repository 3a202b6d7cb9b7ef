package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/agentflare-ai/go-xsdgraph"
	"github.com/fsnotify/fsnotify"
	"github.com/midbel/cli"
)

var watchCmd = cli.Command{
	Name:    "watch",
	Summary: "regenerate a sample whenever a schema file changes",
	Handler: &WatchCmd{},
}

type WatchCmd struct {
	CommonOptions
	Mandatory bool
	Seed      uint64
	OutFile   string
}

func (c *WatchCmd) Run(args []string) error {
	set := flag.NewFlagSet("watch", flag.ContinueOnError)
	c.register(set)
	set.BoolVar(&c.Mandatory, "mandatory", false, "emit only required elements and attributes")
	set.Uint64Var(&c.Seed, "seed", 0, "seed the random source for reproducible output")
	set.StringVar(&c.OutFile, "o", "", "write the sample to file instead of stdout")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() != 2 {
		return fmt.Errorf("usage: watch [options] <schema.xsd> <root>")
	}
	cfg, logger, err := c.load(set)
	if err != nil {
		return err
	}
	schemaFile, root := set.Arg(0), set.Arg(1)

	opts := cfg.SynthesisOptions()
	if isSet(set, "mandatory") {
		opts.MandatoryOnly = c.Mandatory
	}
	if isSet(set, "seed") {
		opts.Seed = c.Seed
	}
	opts.Logger = logger

	generate := func() {
		_, g, err := buildGraph(cfg, logger, schemaFile, root)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		sample, err := xsdgraph.NewSynthesizer(opts).Synthesize(g)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		if err := writeFile(c.OutFile, sample.XML); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// editors replace files on save, so the directory is watched
	if err := watcher.Add(filepath.Dir(schemaFile)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	generate()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".xsd") {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				logger.Info("schema changed", "file", ev.Name)
				generate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}
