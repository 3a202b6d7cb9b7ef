package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/midbel/cli"
)

var errFail = errors.New("fail")

var (
	summary = "xsdsample builds structural graphs of XML schemas and synthesizes sample documents"
	help    = `usage: xsdsample <command> [options] <args>

commands:
  graph    <schema.xsd> <root>     print the element graph of a root element
  sample   <schema.xsd> <root>     write a sample document
  validate <doc.xml> <schema.xsd>  validate a document against a schema
  batch    <config.yaml>           run the configured jobs in parallel
  watch    <schema.xsd> <root>     regenerate a sample when the schema changes`
)

func main() {
	var (
		set  = cli.NewFlagSet("xsdsample")
		root = prepare()
	)
	root.SetSummary(summary)
	root.SetHelp(help)
	if err := set.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			root.Help()
			os.Exit(2)
		}
	}
	err := root.Execute(set.Args())
	if err != nil {
		if s, ok := err.(cli.SuggestionError); ok && len(s.Others) > 0 {
			fmt.Fprintln(os.Stderr, "similar command(s)")
			for _, n := range s.Others {
				fmt.Fprintln(os.Stderr, "-", n)
			}
		}
		if !errors.Is(err, errFail) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func prepare() *cli.CommandTrie {
	root := cli.New()
	root.Register([]string{"graph"}, &graphCmd)
	root.Register([]string{"sample"}, &sampleCmd)
	root.Register([]string{"generate"}, &sampleCmd)
	root.Register([]string{"validate"}, &validateCmd)
	root.Register([]string{"batch"}, &batchCmd)
	root.Register([]string{"watch"}, &watchCmd)
	return root
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
