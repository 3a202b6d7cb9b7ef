package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/agentflare-ai/go-xsdgraph"
	"github.com/midbel/cli"
)

var validateCmd = cli.Command{
	Name:    "validate",
	Alias:   []string{"check"},
	Summary: "validate a document against a schema",
	Handler: &ValidateCmd{},
}

type ValidateCmd struct {
	Color   bool
	Verbose bool
}

func (c *ValidateCmd) Run(args []string) error {
	set := flag.NewFlagSet("validate", flag.ContinueOnError)
	set.BoolVar(&c.Color, "color", false, "colorize diagnostics")
	set.BoolVar(&c.Verbose, "v", false, "log debug messages")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() != 2 {
		return fmt.Errorf("usage: validate [options] <doc.xml> <schema.xsd>")
	}
	xmlFile, xsdFile := set.Arg(0), set.Arg(1)

	xmlData, err := os.ReadFile(xmlFile)
	if err != nil {
		return err
	}
	bridge := xsdgraph.NewValidationBridge(nil)
	bridge.Logger = newLogger(c.Verbose)
	result := bridge.Validate(string(xmlData), xsdFile)

	formatter := xsdgraph.ErrorFormatter{Color: c.Color}
	printDiagnostics(&formatter, xmlFile, string(xmlData), result)
	if !result.IsValid {
		return errFail
	}
	return nil
}

func printResult(file, source string, result xsdgraph.ValidationResult) {
	printDiagnostics(&xsdgraph.ErrorFormatter{}, file, source, result)
}

func printDiagnostics(formatter *xsdgraph.ErrorFormatter, file, source string, result xsdgraph.ValidationResult) {
	if file == "" {
		file = "<stdin>"
	}
	for _, e := range result.Errors {
		diag := xsdgraph.Diagnostic{
			Severity: e.Severity,
			Code:     e.Code,
			Message:  e.Message,
			Position: xsdgraph.Position{File: file, Line: e.Line, Column: e.Column},
		}
		fmt.Fprintln(os.Stderr, formatter.Format(diag, source))
	}
	fmt.Fprintf(os.Stderr, "%s: %s\n", file, result.Message)
}
