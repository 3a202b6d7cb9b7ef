package xsdgraph

import (
	"slices"
	"testing"
)

const shapesSchema = `<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" xmlns:s="urn:shapes"
           targetNamespace="urn:shapes" elementFormDefault="qualified">
  <xs:complexType name="ShapeType">
    <xs:attribute name="colour" type="xs:string"/>
  </xs:complexType>
  <xs:complexType name="CircleType">
    <xs:complexContent>
      <xs:extension base="s:ShapeType">
        <xs:attribute name="radius" type="xs:decimal" use="required"/>
      </xs:extension>
    </xs:complexContent>
  </xs:complexType>

  <xs:element name="shape" type="s:ShapeType" abstract="true"/>
  <xs:element name="circle" type="s:CircleType" substitutionGroup="s:shape"/>
  <xs:element name="square" substitutionGroup="s:shape"/>
  <xs:element name="roundel" substitutionGroup="s:circle"/>

  <xs:element name="drawing">
    <xs:complexType>
      <xs:sequence>
        <xs:element ref="s:shape" maxOccurs="unbounded"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`

func TestSubstitutionMembers(t *testing.T) {
	schema := parseSchema(t, shapesSchema)
	q := func(local string) QName { return QName{Namespace: "urn:shapes", Local: local} }

	got := schema.SubstitutionMembers(q("shape"))
	want := []QName{q("circle"), q("square"), q("roundel")}
	if !slices.Equal(got, want) {
		t.Errorf("SubstitutionMembers(shape) = %v, want %v", got, want)
	}

	tests := []struct {
		actual, expected string
		want             bool
	}{
		{"circle", "shape", true},
		{"roundel", "shape", true},
		{"roundel", "circle", true},
		{"shape", "shape", true},
		{"square", "circle", false},
		{"shape", "circle", false},
		{"drawing", "shape", false},
	}
	for _, tt := range tests {
		if got := schema.IsSubstitutableFor(q(tt.actual), q(tt.expected)); got != tt.want {
			t.Errorf("IsSubstitutableFor(%s, %s) = %v, want %v", tt.actual, tt.expected, got, tt.want)
		}
	}
}

func TestSubstitutionGroupValidation(t *testing.T) {
	schema := parseSchema(t, shapesSchema)

	runValidationCases(t, schema, []validationCase{
		{
			name: "members substitute for the head",
			xml: `<drawing xmlns="urn:shapes">
				<circle radius="2"/>
				<square colour="red"/>
				<roundel radius="1.5"/>
			</drawing>`,
		},
		{
			name:      "abstract head used directly",
			xml:       `<drawing xmlns="urn:shapes"><shape/></drawing>`,
			wantCodes: []string{"cvc-elt.2"},
		},
		{
			name:      "element outside the group",
			xml:       `<drawing xmlns="urn:shapes"><triangle/></drawing>`,
			wantCodes: []string{"cvc-complex-type.2.4.a"},
		},
		{
			name:      "member without a type uses the head type",
			xml:       `<drawing xmlns="urn:shapes"><square radius="1"/></drawing>`,
			wantCodes: []string{"cvc-complex-type.3.2.2"},
		},
		{
			name:      "transitive member uses its head type",
			xml:       `<drawing xmlns="urn:shapes"><roundel/></drawing>`,
			wantCodes: []string{"cvc-complex-type.4"},
		},
		{
			name:      "member type is validated",
			xml:       `<drawing xmlns="urn:shapes"><circle radius="big"/></drawing>`,
			wantCodes: []string{"cvc-attribute.3"},
		},
	})
}
