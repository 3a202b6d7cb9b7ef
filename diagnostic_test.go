package xsdgraph

import (
	"strings"
	"testing"
)

func TestDiagnosticConverter(t *testing.T) {
	tests := []struct {
		name      string
		violation Violation
		severity  Severity
		message   string
		hints     []string
		specRef   string
	}{
		{
			name:      "missing id",
			violation: Violation{Code: "cvc-id.1", Message: "dangling", Actual: "x7"},
			severity:  SeverityError,
			message:   "Referenced ID 'x7' does not exist in document",
			hints:     []string{"Ensure an attribute or element of type xs:ID has the value 'x7'", "IDs are case-sensitive"},
			specRef:   "ID/IDREF",
		},
		{
			name:      "unexpected child",
			violation: Violation{Code: "cvc-complex-type.2.4.a", Message: "bad child", Actual: "c", Expected: []string{"a", "b"}},
			severity:  SeverityError,
			message:   "Invalid element 'c'. Expected one of: a, b",
			hints:     []string{"Valid children are: a, b"},
			specRef:   "Complex Type",
		},
		{
			name:      "required attribute",
			violation: Violation{Code: "cvc-complex-type.4", Message: "missing id", Expected: []string{"id"}},
			severity:  SeverityError,
			message:   "missing id",
			hints:     []string{`Add required attribute: id="..."`},
			specRef:   "Complex Type",
		},
		{
			name:      "warning",
			violation: Violation{Code: "xsd-warn-remote", Message: "remote disabled", Expected: []string{"local file"}},
			severity:  SeverityWarning,
			message:   "remote disabled",
			hints:     []string{"Expected: local file"},
		},
		{
			name:      "info",
			violation: Violation{Code: "xsd-info-dialect", Message: "downgraded"},
			severity:  SeverityInfo,
			message:   "downgraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := NewDiagnosticConverter("doc.xml").Convert([]Violation{tt.violation})
			if len(diags) != 1 {
				t.Fatalf("Convert() returned %d diagnostics", len(diags))
			}
			d := diags[0]
			if d.Severity != tt.severity {
				t.Errorf("Severity = %s, want %s", d.Severity, tt.severity)
			}
			if d.Message != tt.message {
				t.Errorf("Message = %q, want %q", d.Message, tt.message)
			}
			if strings.Join(d.Hints, "|") != strings.Join(tt.hints, "|") {
				t.Errorf("Hints = %q, want %q", d.Hints, tt.hints)
			}
			if tt.specRef == "" && d.SpecRef != "" || !strings.Contains(d.SpecRef, tt.specRef) {
				t.Errorf("SpecRef = %q, want it to mention %q", d.SpecRef, tt.specRef)
			}
			if d.Position.File != "doc.xml" {
				t.Errorf("Position.File = %q", d.Position.File)
			}
		})
	}
}

func TestErrorFormatter(t *testing.T) {
	diag := Diagnostic{
		Severity:  SeverityError,
		Code:      "cvc-id.1",
		Message:   "dangling reference",
		Position:  Position{File: "doc.xml", Line: 2, Column: 3},
		Attribute: "ref",
		Hints:     []string{"check the id"},
		SpecRef:   "Part 1",
	}
	source := "<doc>\n  <x ref=\"q\"/>\n</doc>"

	want := "error[cvc-id.1]: dangling reference\n" +
		" --> doc.xml:2:3\n" +
		"   2 |   <x ref=\"q\"/>\n" +
		"     |   ^~~~\n" +
		"     |\n" +
		"     = help: check the id\n" +
		"     = note: see Part 1\n"
	if got := (&ErrorFormatter{}).Format(diag, source); got != want {
		t.Errorf("Format() =\n%s\nwant\n%s", got, want)
	}

	colored := (&ErrorFormatter{Color: true}).Format(diag, "")
	if !strings.HasPrefix(colored, "\033[31;1merror\033[0m[cvc-id.1]") {
		t.Errorf("colored output = %q", colored)
	}
	if strings.Contains(colored, " | ") {
		t.Errorf("source excerpt printed without source: %q", colored)
	}
}

func TestConvertWarnings(t *testing.T) {
	schema := parseSchema(t, `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="r">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="a" type="xs:string"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`)
	g := buildGraph(t, schema, "r")
	conv := NewDiagnosticConverter("s.xsd")

	diags := conv.ConvertSynthesisWarnings(g, []SynthesisWarning{
		{Path: "/r/a", Message: "no value"},
		{Path: "/r/gone", Message: "lost"},
	})
	if len(diags) != 2 {
		t.Fatalf("got %d diagnostics", len(diags))
	}
	a := diags[0]
	if a.Severity != SeverityWarning || a.Code != CodeSynthesisWarning || a.Tag != "a" || a.Path != "/r/a" {
		t.Errorf("diagnostic = %+v", a)
	}
	if a.Position.File != "s.xsd" || a.Position.Line != 5 {
		t.Errorf("Position = %+v, want s.xsd line 5", a.Position)
	}
	if gone := diags[1]; gone.Position.Line != 0 || gone.Tag != "" {
		t.Errorf("unknown path positioned: %+v", gone)
	}
	if !strings.Contains((&ErrorFormatter{}).Format(a, ""), "     = in: /r/a\n") {
		t.Error("Format() omitted the graph path")
	}

	loads := conv.ConvertLoadWarnings([]LoadWarning{
		{Location: "inc.xsd", Message: "skipped include", Err: ErrRemoteDisabled},
		{Message: "no location"},
	})
	if loads[0].Position.File != "inc.xsd" || loads[0].Code != CodeLoadWarning ||
		loads[0].Message != "skipped include: "+ErrRemoteDisabled.Error() {
		t.Errorf("load diagnostic = %+v", loads[0])
	}
	if loads[1].Position.File != "s.xsd" {
		t.Errorf("load diagnostic without location = %+v", loads[1])
	}
	if len(conv.ConvertBuildWarnings(g)) != len(g.Warnings()) {
		t.Error("ConvertBuildWarnings() dropped warnings")
	}
}
