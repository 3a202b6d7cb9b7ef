package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/midbel/cli"
)

var graphCmd = cli.Command{
	Name:    "graph",
	Alias:   []string{"tree"},
	Summary: "print the element graph of a root element",
	Handler: &GraphCmd{},
}

type GraphCmd struct {
	CommonOptions
}

func (c *GraphCmd) Run(args []string) error {
	set := flag.NewFlagSet("graph", flag.ContinueOnError)
	c.register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() != 2 {
		return fmt.Errorf("usage: graph [options] <schema.xsd> <root>")
	}
	cfg, logger, err := c.load(set)
	if err != nil {
		return err
	}
	_, g, err := buildGraph(cfg, logger, set.Arg(0), set.Arg(1))
	if err != nil {
		return err
	}
	return g.Print(os.Stdout)
}
