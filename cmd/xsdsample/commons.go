package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/agentflare-ai/go-xsdgraph"
)

// CommonOptions are shared by the commands that build graphs.
type CommonOptions struct {
	Config     string
	Verbose    bool
	KeepGroups bool
}

func (o *CommonOptions) register(set *flag.FlagSet) {
	set.StringVar(&o.Config, "config", "", "read defaults from a YAML configuration file")
	set.BoolVar(&o.Verbose, "v", false, "log debug messages")
	set.BoolVar(&o.KeepGroups, "keep-groups", false, "keep single-particle groups in the graph")
}

// load reads the configuration and applies the flags that were set.
func (o *CommonOptions) load(set *flag.FlagSet) (*xsdgraph.Config, *slog.Logger, error) {
	cfg := &xsdgraph.Config{}
	if o.Config != "" {
		c, err := xsdgraph.LoadConfig(o.Config)
		if err != nil {
			return nil, nil, err
		}
		cfg = c
	}
	if isSet(set, "keep-groups") {
		cfg.Synthesis.KeepGroups = o.KeepGroups
	}
	logger := newLogger(o.Verbose)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func isSet(set *flag.FlagSet, name string) bool {
	found := false
	set.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func buildGraph(cfg *xsdgraph.Config, logger *slog.Logger, schemaFile, root string) (*xsdgraph.Schema, *xsdgraph.Graph, error) {
	schema, err := cfg.NewCache().Get(schemaFile)
	if err != nil {
		return nil, nil, err
	}
	conv := xsdgraph.NewDiagnosticConverter(schemaFile)
	printWarnings(conv.ConvertLoadWarnings(schema.Warnings))
	builder := xsdgraph.NewGraphBuilder(schema,
		xsdgraph.WithGroupPolicy(cfg.GroupPolicy()),
		xsdgraph.WithBuildLogger(logger))
	g, err := builder.Build(root)
	if err != nil {
		return nil, nil, err
	}
	printWarnings(conv.ConvertBuildWarnings(g))
	return schema, g, nil
}

func printWarnings(diags []xsdgraph.Diagnostic) {
	var formatter xsdgraph.ErrorFormatter
	for _, d := range diags {
		fmt.Fprint(os.Stderr, formatter.Format(d, ""))
	}
}

func writeFile(file, content string) error {
	if file == "" {
		_, err := fmt.Fprint(os.Stdout, content)
		return err
	}
	return os.WriteFile(file, []byte(content), 0o644)
}
