package xsdgraph

import (
	"fmt"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// Diagnostic is one finding of the loader, the graph builder, the
// synthesizer or the validator, in a rustc-like shape.
type Diagnostic struct {
	Severity  Severity `json:"severity" yaml:"severity"`
	Code      string   `json:"code" yaml:"code"`
	Message   string   `json:"message" yaml:"message"`
	Position  Position `json:"position" yaml:"position"`
	Path      Path     `json:"path,omitempty" yaml:"path,omitempty"`
	Tag       string   `json:"tag,omitempty" yaml:"tag,omitempty"`
	Attribute string   `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	SpecRef   string   `json:"spec_ref,omitempty" yaml:"spec_ref,omitempty"`
	Hints     []string `json:"hints,omitempty" yaml:"hints,omitempty"`
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Position is a location in an instance or schema document.
type Position struct {
	File   string `json:"file" yaml:"file"`
	Line   int    `json:"line" yaml:"line"`
	Column int    `json:"column" yaml:"column"`
	Offset int64  `json:"offset" yaml:"offset"`
}

// Codes of the warnings produced outside instance validation.
const (
	CodeLoadWarning      = "xsd-warn-load"
	CodeBuildWarning     = "xsd-warn-graph"
	CodeSynthesisWarning = "xsd-warn-synthesis"
)

// DiagnosticConverter turns violations and warnings into diagnostics
// positioned in fileName.
type DiagnosticConverter struct {
	fileName string
}

func NewDiagnosticConverter(fileName string) *DiagnosticConverter {
	return &DiagnosticConverter{fileName: fileName}
}

// Convert converts validator violations.
func (dc *DiagnosticConverter) Convert(violations []Violation) []Diagnostic {
	diagnostics := make([]Diagnostic, 0, len(violations))
	for _, v := range violations {
		d := Diagnostic{
			Severity:  severityOf(v.Code),
			Code:      v.Code,
			Message:   violationMessage(v),
			Position:  dc.position(v.Element, v.Attribute),
			Attribute: v.Attribute,
			SpecRef:   specRef(v.Code),
			Hints:     generateHints(v),
		}
		if v.Element != nil {
			d.Tag = string(v.Element.LocalName())
		}
		diagnostics = append(diagnostics, d)
	}
	return diagnostics
}

// ConvertLoadWarnings positions each warning at the schema document it
// concerns.
func (dc *DiagnosticConverter) ConvertLoadWarnings(warnings []LoadWarning) []Diagnostic {
	diagnostics := make([]Diagnostic, 0, len(warnings))
	for _, w := range warnings {
		msg := w.Message
		if w.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, w.Err)
		}
		file := w.Location
		if file == "" {
			file = dc.fileName
		}
		diagnostics = append(diagnostics, Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeLoadWarning,
			Message:  msg,
			Position: Position{File: file},
		})
	}
	return diagnostics
}

// ConvertBuildWarnings positions graph warnings at the schema component
// the node was built from.
func (dc *DiagnosticConverter) ConvertBuildWarnings(g *Graph) []Diagnostic {
	var diagnostics []Diagnostic
	for _, w := range g.Warnings() {
		diagnostics = append(diagnostics, dc.nodeDiagnostic(g, CodeBuildWarning, w.Path, w.Message))
	}
	return diagnostics
}

// ConvertSynthesisWarnings is ConvertBuildWarnings for the warnings of a
// sample synthesized from g.
func (dc *DiagnosticConverter) ConvertSynthesisWarnings(g *Graph, warnings []SynthesisWarning) []Diagnostic {
	diagnostics := make([]Diagnostic, 0, len(warnings))
	for _, w := range warnings {
		diagnostics = append(diagnostics, dc.nodeDiagnostic(g, CodeSynthesisWarning, w.Path, w.Message))
	}
	return diagnostics
}

func (dc *DiagnosticConverter) nodeDiagnostic(g *Graph, code string, path Path, msg string) Diagnostic {
	d := Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		Message:  msg,
		Path:     path,
		Position: Position{File: dc.fileName},
	}
	if n, ok := g.Node(path); ok {
		d.Tag = n.Name
		if n.Source != nil {
			d.Position = dc.position(n.Source, "")
		}
	}
	return d
}

func severityOf(code string) Severity {
	switch {
	case strings.HasPrefix(code, "xsd-warn-"):
		return SeverityWarning
	case strings.HasPrefix(code, "xsd-info-"):
		return SeverityInfo
	}
	return SeverityError
}

func violationMessage(v Violation) string {
	switch v.Code {
	case "cvc-complex-type.2.4.a":
		if len(v.Expected) > 0 && v.Actual != "" {
			return fmt.Sprintf("Invalid element '%s'. Expected one of: %s", v.Actual, strings.Join(v.Expected, ", "))
		}
	case "cvc-id.1":
		if v.Actual != "" {
			return fmt.Sprintf("Referenced ID '%s' does not exist in document", v.Actual)
		}
	}
	return v.Message
}

// position prefers the attribute node's own location when the document
// recorded one.
func (dc *DiagnosticConverter) position(elem xmldom.Element, attrName string) Position {
	pos := Position{File: dc.fileName}
	if elem == nil {
		return pos
	}
	if attrName != "" {
		if attr := elem.GetAttributeNode(xmldom.DOMString(attrName)); attr != nil {
			if line, col, offset := attr.Position(); line > 0 {
				pos.Line, pos.Column, pos.Offset = line, col, offset
				return pos
			}
		}
	}
	pos.Line, pos.Column, pos.Offset = elem.Position()
	return pos
}

var specRefs = map[string]string{
	"cvc-elt":                 "XML Schema 1.1 Part 1, Validation Rule: Element Locally Valid (Element)",
	"cvc-type":                "XML Schema 1.1 Part 1, Validation Rule: Element Locally Valid (Type)",
	"cvc-complex-type":        "XML Schema 1.1 Part 1, Validation Rule: Element Locally Valid (Complex Type)",
	"cvc-attribute":           "XML Schema 1.1 Part 1, Validation Rule: Attribute Locally Valid",
	"cvc-datatype-valid":      "XML Schema 1.1 Part 2, Validation Rule: Datatype Valid",
	"cvc-id":                  "XML Schema 1.1 Part 1, Validation Rule: Validation Root Valid (ID/IDREF)",
	"cvc-wildcard":            "XML Schema 1.1 Part 1, Validation Rule: Item Valid (Wildcard)",
	"cvc-identity-constraint": "XML Schema 1.1 Part 1, Validation Rule: Identity-constraint Satisfied",
}

// specRef names the XML Schema validation rule a code belongs to.
func specRef(code string) string {
	rule, _, _ := strings.Cut(code, ".")
	return specRefs[rule]
}

func generateHints(v Violation) []string {
	var hints []string
	switch v.Code {
	case "cvc-complex-type.3.2.2":
		if len(v.Expected) > 0 {
			hints = append(hints, fmt.Sprintf("Did you mean: %s?", strings.Join(v.Expected, " or ")))
		}
	case "cvc-complex-type.2.4.a", "cvc-complex-type.2.4.b":
		if len(v.Expected) > 0 {
			hints = append(hints, fmt.Sprintf("Valid children are: %s", strings.Join(v.Expected, ", ")))
		}
	case "cvc-id.1":
		hints = append(hints,
			fmt.Sprintf("Ensure an attribute or element of type xs:ID has the value '%s'", v.Actual),
			"IDs are case-sensitive")
	case "cvc-id.2":
		hints = append(hints, "Each ID value must be unique within the document")
	case "cvc-complex-type.4":
		if len(v.Expected) == 1 {
			hints = append(hints, fmt.Sprintf("Add required attribute: %s=\"...\"", v.Expected[0]))
		}
	case "cvc-datatype-valid.1", "cvc-attribute.3":
		if len(v.Expected) > 0 {
			hints = append(hints, fmt.Sprintf("Valid values are: %s", strings.Join(v.Expected, ", ")))
		}
	}
	if len(hints) == 0 && len(v.Expected) > 0 {
		hints = append(hints, fmt.Sprintf("Expected: %s", strings.Join(v.Expected, ", ")))
	}
	return hints
}

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[31;1m"
	ansiCyan  = "\033[36;1m"
	ansiAmber = "\033[33;1m"
)

var severityColors = map[Severity]string{
	SeverityError:   ansiRed,
	SeverityWarning: ansiAmber,
	SeverityInfo:    ansiCyan,
}

// ErrorFormatter renders diagnostics in rustc style.
type ErrorFormatter struct {
	Color bool
}

func (ef *ErrorFormatter) paint(color, s string) string {
	if !ef.Color || color == "" {
		return s
	}
	return color + s + ansiReset
}

// Format renders diag. A source line excerpt is included when source is
// the text of the diagnostic's file.
func (ef *ErrorFormatter) Format(diag Diagnostic, source string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s[%s]: %s\n", ef.paint(severityColors[diag.Severity], string(diag.Severity)), diag.Code, diag.Message)
	fmt.Fprintf(&sb, " --> %s:%d:%d\n", diag.Position.File, diag.Position.Line, diag.Position.Column)

	lines := strings.Split(source, "\n")
	if line := diag.Position.Line; source != "" && line > 0 && line <= len(lines) {
		fmt.Fprintf(&sb, "%4d | %s\n", line, lines[line-1])
		sb.WriteString("     | ")
		if col := diag.Position.Column; col > 0 {
			sb.WriteString(strings.Repeat(" ", col-1))
			sb.WriteString(ef.paint(ansiRed, "^"))
			sb.WriteString(strings.Repeat("~", len(diag.Attribute)))
		}
		sb.WriteString("\n")
	}

	if diag.Path != "" {
		sb.WriteString("     = in: " + string(diag.Path) + "\n")
	}
	if len(diag.Hints) > 0 {
		sb.WriteString("     |\n")
		for _, hint := range diag.Hints {
			sb.WriteString("     = help: " + hint + "\n")
		}
	}
	if diag.SpecRef != "" {
		sb.WriteString("     = note: see " + diag.SpecRef + "\n")
	}
	return sb.String()
}
