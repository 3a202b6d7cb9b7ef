package xsdgraph

import (
	"strings"
	"testing"

	"github.com/agentflare-ai/go-xmldom"
)

func parseSchema(t *testing.T, src string) *Schema {
	t.Helper()
	doc, err := xmldom.Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Failed to decode schema: %v", err)
	}
	schema, err := Parse(doc)
	if err != nil {
		t.Fatalf("Failed to parse schema: %v", err)
	}
	return schema
}

func decodeXML(t *testing.T, src string) xmldom.Document {
	t.Helper()
	doc, err := xmldom.Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Failed to decode document: %v", err)
	}
	return doc
}

func TestExtensionParsing(t *testing.T) {
	schema := parseSchema(t, `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
           targetNamespace="http://example.com/vehicle"
           xmlns:v="http://example.com/vehicle">
  <xs:complexType name="VehicleType">
    <xs:sequence>
      <xs:element name="brand" type="xs:string"/>
      <xs:element name="year" type="xs:int"/>
    </xs:sequence>
  </xs:complexType>
  <xs:complexType name="CarType">
    <xs:complexContent>
      <xs:extension base="v:VehicleType">
        <xs:sequence>
          <xs:element name="doors" type="xs:int"/>
        </xs:sequence>
      </xs:extension>
    </xs:complexContent>
  </xs:complexType>
  <xs:element name="car" type="v:CarType"/>
</xs:schema>`)

	ns := "http://example.com/vehicle"
	carType, ok := schema.ComplexTypes[QName{Namespace: ns, Local: "CarType"}]
	if !ok {
		t.Fatal("CarType not found")
	}
	cc, ok := carType.Content.(*ComplexContent)
	if !ok || cc.Extension == nil {
		t.Fatalf("CarType content = %T, want complex content extension", carType.Content)
	}
	if want := (QName{Namespace: ns, Local: "VehicleType"}); cc.Extension.Base != want {
		t.Errorf("extension base = %v, want %v", cc.Extension.Base, want)
	}
	seq, ok := cc.Extension.Particle.(*ModelGroup)
	if !ok || seq.Kind != SequenceGroup || len(seq.Particles) != 1 {
		t.Fatalf("extension particle = %#v, want a one-particle sequence", cc.Extension.Particle)
	}

	car, ok := schema.LookupElement(QName{Namespace: ns, Local: "car"})
	if !ok {
		t.Fatal("car element not found")
	}
	if car.TypeName.Local != "CarType" || !car.Global {
		t.Errorf("car = %+v", car)
	}
}

func TestElementForms(t *testing.T) {
	schema := parseSchema(t, `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
           targetNamespace="urn:forms" elementFormDefault="qualified">
  <xs:element name="root">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="qualified" type="xs:string"/>
        <xs:element name="local" type="xs:string" form="unqualified"/>
      </xs:sequence>
      <xs:attribute name="plain" type="xs:string"/>
      <xs:attribute name="marked" type="xs:string" form="qualified"/>
    </xs:complexType>
  </xs:element>
</xs:schema>`)

	root, ok := schema.LookupElement(QName{Namespace: "urn:forms", Local: "root"})
	if !ok {
		t.Fatal("root not found")
	}
	ct := root.Type.(*ComplexType)
	seq := ct.Content.(*ModelGroup)

	tests := []struct {
		got  QName
		want QName
	}{
		{seq.Particles[0].(*ElementDecl).Name, QName{Namespace: "urn:forms", Local: "qualified"}},
		{seq.Particles[1].(*ElementDecl).Name, QName{Local: "local"}},
		{ct.Attributes[0].Name, QName{Local: "plain"}},
		{ct.Attributes[1].Name, QName{Namespace: "urn:forms", Local: "marked"}},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %v, want %v", tt.got, tt.want)
		}
	}
}

func TestSchemaFeatures(t *testing.T) {
	schema := parseSchema(t, `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
           xmlns:vc="http://www.w3.org/2007/XMLSchema-versioning" vc:minVersion="1.1">
  <xs:complexType name="Range">
    <xs:sequence>
      <xs:element name="low" type="xs:int"/>
      <xs:element name="high" type="xs:int"/>
    </xs:sequence>
    <xs:assert test="low le high"/>
  </xs:complexType>
  <xs:element name="value">
    <xs:alternative test="@kind = 'range'" type="Range"/>
    <xs:alternative type="xs:string"/>
  </xs:element>
</xs:schema>`)

	if !schema.Features.Assertions {
		t.Error("assertion not recorded")
	}
	if !schema.Features.Alternatives || !schema.Features.ConditionalAlternatives {
		t.Errorf("alternatives not recorded: %+v", schema.Features)
	}

	value, _ := schema.LookupElement(QName{Local: "value"})
	if len(value.Alternatives) != 2 {
		t.Fatalf("got %d alternatives, want 2", len(value.Alternatives))
	}
	if value.Alternatives[0].IsDefault() || !value.Alternatives[1].IsDefault() {
		t.Error("only the test-less alternative is the default")
	}
	if got := schema.ComplexTypes[QName{Local: "Range"}].Assertions; len(got) != 1 || got[0] != "low le high" {
		t.Errorf("assertions = %v", got)
	}
}

func TestDocumentationLanguage(t *testing.T) {
	schema := parseSchema(t, `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="note" type="xs:string">
    <xs:annotation>
      <xs:documentation xml:lang="en-us">A short note.</xs:documentation>
      <xs:documentation xml:lang="not a tag">Kept.</xs:documentation>
    </xs:annotation>
  </xs:element>
</xs:schema>`)

	note, _ := schema.LookupElement(QName{Local: "note"})
	if len(note.Documentation) != 2 {
		t.Fatalf("got %d documentation entries, want 2", len(note.Documentation))
	}
	if got := note.Documentation[0]; got.Lang != "en-US" || got.Text != "A short note." {
		t.Errorf("documentation[0] = %+v", got)
	}
	if got := note.Documentation[1].Lang; got != "not a tag" {
		t.Errorf("unparseable language = %q, want it kept verbatim", got)
	}
}

func TestParseRejectsNonSchema(t *testing.T) {
	doc := decodeXML(t, `<root/>`)
	if _, err := Parse(doc); err != ErrNotSchema {
		t.Errorf("Parse() error = %v, want ErrNotSchema", err)
	}
}
