package xsdgraph

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
	"golang.org/x/net/html/charset"
)

// InstanceValidator checks a decoded instance document.
type InstanceValidator interface {
	Validate(doc xmldom.Document) []Violation
}

// ValidationError is one diagnostic of a ValidationResult.
type ValidationError struct {
	Line     int      `json:"line" yaml:"line"`
	Column   int      `json:"column" yaml:"column"`
	Message  string   `json:"message" yaml:"message"`
	Code     string   `json:"code" yaml:"code"`
	Severity Severity `json:"severity" yaml:"severity"`
}

// ValidationResult is the outcome of validating one document.
type ValidationResult struct {
	IsValid bool              `json:"valid" yaml:"valid"`
	Message string            `json:"message" yaml:"message"`
	Errors  []ValidationError `json:"errors,omitempty" yaml:"errors,omitempty"`
	// Downgraded is set when only well-formedness was checked because the
	// schema uses constructs the validator does not evaluate.
	Downgraded bool `json:"downgraded,omitempty" yaml:"downgraded,omitempty"`
}

// Dialect describes the schema language level a schema needs.
type Dialect struct {
	Version string
	// Unchecked lists constructs the validator cannot evaluate.
	Unchecked []string
}

// DetectDialect reports the XSD version a schema needs and which of its
// constructs are beyond the validator.
func DetectDialect(schema *Schema) Dialect {
	d := Dialect{Version: "1.0"}
	f := schema.Features
	if f.Assertions {
		d.Unchecked = append(d.Unchecked, "xs:assert")
	}
	if f.ConditionalAlternatives {
		d.Unchecked = append(d.Unchecked, "conditional xs:alternative")
	}
	if f.OpenContent {
		d.Unchecked = append(d.Unchecked, "xs:openContent")
	}
	if f.Override {
		d.Unchecked = append(d.Unchecked, "xs:override")
	}
	if len(d.Unchecked) > 0 || f.Alternatives || f.ExplicitTimezone {
		d.Version = "1.1"
	}
	return d
}

// ValidationBridge validates instance documents against schemas and
// reports the outcome in one diagnostic shape.
type ValidationBridge struct {
	Loader    *SchemaCache
	Validator func(*Schema) InstanceValidator
	Logger    *slog.Logger
}

func NewValidationBridge(loader *SchemaCache) *ValidationBridge {
	if loader == nil {
		loader = NewSchemaCache("", 0)
	}
	return &ValidationBridge{
		Loader: loader,
		Validator: func(s *Schema) InstanceValidator {
			return NewValidator(s)
		},
		Logger: slog.Default(),
	}
}

// Validate loads schemaFile through the bridge's cache and validates xmlText.
func (b *ValidationBridge) Validate(xmlText, schemaFile string) ValidationResult {
	schema, err := b.Loader.Get(schemaFile)
	if err != nil {
		return ValidationResult{
			Message: fmt.Sprintf("schema %s could not be loaded", schemaFile),
			Errors:  []ValidationError{{Message: err.Error(), Code: "xsd-schema-load", Severity: SeverityError}},
		}
	}
	return b.ValidateWithSchema(xmlText, schema)
}

// ValidateWithSchema validates xmlText against an already loaded schema.
func (b *ValidationBridge) ValidateWithSchema(xmlText string, schema *Schema) ValidationResult {
	if syntaxErr := checkWellFormed(xmlText); syntaxErr != nil {
		return ValidationResult{
			Message: "document is not well-formed",
			Errors:  []ValidationError{*syntaxErr},
		}
	}

	if d := DetectDialect(schema); len(d.Unchecked) > 0 {
		note := fmt.Sprintf("schema uses XSD %s constructs that are not checked (%s); document checked for well-formedness only",
			d.Version, strings.Join(d.Unchecked, ", "))
		b.Logger.Info(note, "schema", schema.Location)
		return ValidationResult{
			IsValid:    true,
			Message:    "document is well-formed",
			Errors:     []ValidationError{{Message: note, Code: "xsd-info-dialect", Severity: SeverityInfo}},
			Downgraded: true,
		}
	}

	text, err := toUTF8(xmlText)
	if err != nil {
		return ValidationResult{
			Message: "document encoding is not supported",
			Errors:  []ValidationError{{Message: err.Error(), Code: "xml-encoding", Severity: SeverityError}},
		}
	}
	doc, err := xmldom.Decode(strings.NewReader(text))
	if err != nil {
		return ValidationResult{
			Message: "document could not be decoded",
			Errors:  []ValidationError{{Message: err.Error(), Code: "xml-syntax", Severity: SeverityError}},
		}
	}

	violations := b.Validator(schema).Validate(doc)
	diagnostics := NewDiagnosticConverter(schema.Location).Convert(violations)

	result := ValidationResult{IsValid: true}
	for _, d := range diagnostics {
		result.Errors = append(result.Errors, ValidationError{
			Line:     d.Position.Line,
			Column:   d.Position.Column,
			Message:  d.Message,
			Code:     d.Code,
			Severity: d.Severity,
		})
		if d.Severity == SeverityError {
			result.IsValid = false
		}
	}
	if result.IsValid {
		result.Message = "document is valid"
	} else {
		result.Message = fmt.Sprintf("document is invalid: %d error(s)", len(result.Errors))
	}
	return result
}

// checkWellFormed runs a streaming parse over the whole document.
func checkWellFormed(xmlText string) *ValidationError {
	dec := xml.NewDecoder(strings.NewReader(xmlText))
	dec.CharsetReader = charset.NewReaderLabel

	roots, depth := 0, 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			verr := &ValidationError{Message: err.Error(), Code: "xml-syntax", Severity: SeverityError}
			var syntax *xml.SyntaxError
			if errors.As(err, &syntax) {
				verr.Line, verr.Message = syntax.Line, syntax.Msg
			}
			return verr
		}
		switch tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	switch {
	case roots == 0:
		return &ValidationError{Message: "document has no root element", Code: "xml-syntax", Severity: SeverityError}
	case roots > 1:
		return &ValidationError{Message: "document has more than one root element", Code: "xml-syntax", Severity: SeverityError}
	}
	return nil
}

var encodingDecl = regexp.MustCompile(`^(<\?xml[^>]*?encoding\s*=\s*)(["'])([^"']*)(["'])`)

// toUTF8 transcodes a document whose declaration names another encoding
// and rewrites the declaration to match.
func toUTF8(xmlText string) (string, error) {
	m := encodingDecl.FindStringSubmatch(xmlText)
	if m == nil || strings.EqualFold(m[3], "utf-8") || strings.EqualFold(m[3], "utf8") {
		return xmlText, nil
	}
	r, err := charset.NewReaderLabel(m[3], strings.NewReader(xmlText))
	if err != nil {
		return "", err
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return encodingDecl.ReplaceAllString(string(decoded), "${1}${2}UTF-8${4}"), nil
}
