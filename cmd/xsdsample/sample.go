package main

import (
	"flag"
	"fmt"

	"github.com/agentflare-ai/go-xsdgraph"
	"github.com/midbel/cli"
)

var sampleCmd = cli.Command{
	Name:    "sample",
	Alias:   []string{"generate"},
	Summary: "write a sample document for a root element",
	Handler: &SampleCmd{},
}

type SampleCmd struct {
	CommonOptions
	Mandatory bool
	Max       int
	Seed      uint64
	OutFile   string
	Validate  bool
}

func (c *SampleCmd) Run(args []string) error {
	set := flag.NewFlagSet("sample", flag.ContinueOnError)
	c.register(set)
	set.BoolVar(&c.Mandatory, "mandatory", false, "emit only required elements and attributes")
	set.IntVar(&c.Max, "max", xsdgraph.DefaultMaxOccurrences, "cap repetitions of unbounded particles")
	set.Uint64Var(&c.Seed, "seed", 0, "seed the random source for reproducible output")
	set.StringVar(&c.OutFile, "o", "", "write the sample to file instead of stdout")
	set.BoolVar(&c.Validate, "validate", false, "validate the sample against the schema")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() != 2 {
		return fmt.Errorf("usage: sample [options] <schema.xsd> <root>")
	}
	cfg, logger, err := c.load(set)
	if err != nil {
		return err
	}
	schema, g, err := buildGraph(cfg, logger, set.Arg(0), set.Arg(1))
	if err != nil {
		return err
	}

	opts := cfg.SynthesisOptions()
	if isSet(set, "mandatory") {
		opts.MandatoryOnly = c.Mandatory
	}
	if isSet(set, "max") || opts.MaxOccurrences == 0 {
		opts.MaxOccurrences = c.Max
	}
	if isSet(set, "seed") {
		opts.Seed = c.Seed
	}
	opts.Logger = logger

	sample, err := xsdgraph.NewSynthesizer(opts).Synthesize(g)
	if err != nil {
		return err
	}
	printWarnings(xsdgraph.NewDiagnosticConverter(set.Arg(0)).ConvertSynthesisWarnings(g, sample.Warnings))
	if err := writeFile(c.OutFile, sample.XML); err != nil {
		return err
	}
	if !c.Validate {
		return nil
	}
	result := xsdgraph.NewValidationBridge(nil).ValidateWithSchema(sample.XML, schema)
	printResult(c.OutFile, sample.XML, result)
	if !result.IsValid {
		return errFail
	}
	return nil
}
