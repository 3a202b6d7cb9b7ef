package xsdgraph

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateSchema(t *testing.T) {
	wrap := func(body string) string {
		return `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">` + body + `</xs:schema>`
	}

	tests := []struct {
		name string
		src  string
		want string // substring of the single expected problem; empty means valid
	}{
		{
			name: "valid",
			src: wrap(`<xs:element name="root">
  <xs:complexType>
    <xs:sequence minOccurs="0" maxOccurs="unbounded">
      <xs:element name="a" type="xs:string" default="x"/>
    </xs:sequence>
    <xs:attribute name="n" type="xs:int" use="optional" default="1"/>
  </xs:complexType>
</xs:element>`),
		},
		{
			name: "name and ref",
			src:  wrap(`<xs:element name="r"><xs:complexType><xs:sequence><xs:element name="a" ref="r"/></xs:sequence></xs:complexType></xs:element>`),
			want: "cannot have both 'name' and 'ref'",
		},
		{
			name: "invalid name",
			src:  wrap(`<xs:element name="1st" type="xs:string"/>`),
			want: "must be a valid NCName",
		},
		{
			name: "occurrence range",
			src:  wrap(`<xs:complexType name="T"><xs:sequence minOccurs="3" maxOccurs="2"/></xs:complexType>`),
			want: "cannot be greater than maxOccurs",
		},
		{
			name: "type and inline type",
			src:  wrap(`<xs:element name="r" type="xs:string"><xs:simpleType><xs:restriction base="xs:string"/></xs:simpleType></xs:element>`),
			want: "both 'type' attribute and inline",
		},
		{
			name: "default and fixed",
			src:  wrap(`<xs:element name="r" type="xs:string" default="a" fixed="b"/>`),
			want: "both 'default' and 'fixed'",
		},
		{
			name: "attribute use",
			src:  wrap(`<xs:attribute name="a" type="xs:string" use="sometimes"/>`),
			want: "invalid use value",
		},
		{
			name: "all maxOccurs",
			src:  wrap(`<xs:complexType name="T"><xs:all maxOccurs="2"/></xs:complexType>`),
			want: "xs:all maxOccurs must be 1",
		},
		{
			name: "negative length",
			src:  wrap(`<xs:simpleType name="S"><xs:restriction base="xs:string"><xs:length value="-1"/></xs:restriction></xs:simpleType>`),
			want: "must be a non-negative integer",
		},
		{
			name: "whiteSpace value",
			src:  wrap(`<xs:simpleType name="S"><xs:restriction base="xs:string"><xs:whiteSpace value="squash"/></xs:restriction></xs:simpleType>`),
			want: "whiteSpace value 'squash'",
		},
		{
			name: "bad pattern",
			src:  wrap(`<xs:simpleType name="S"><xs:restriction base="xs:string"><xs:pattern value="[a-"/></xs:restriction></xs:simpleType>`),
			want: "invalid pattern",
		},
		{
			name: "restriction without base",
			src:  wrap(`<xs:simpleType name="S"><xs:restriction/></xs:simpleType>`),
			want: "either 'base' attribute or inline simpleType",
		},
		{
			name: "unknown component",
			src:  wrap(`<xs:frobnicate/>`),
			want: "unknown XSD element: frobnicate",
		},
		{
			name: "foreign annotation content",
			src:  wrap(`<xs:annotation><xs:appinfo><xs:frobnicate/></xs:appinfo></xs:annotation>`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := NewSchemaValidator().ValidateSchema(decodeXML(t, tt.src))
			if tt.want == "" {
				if len(errs) != 0 {
					t.Errorf("unexpected problems: %v", errs)
				}
				return
			}
			if len(errs) != 1 {
				t.Fatalf("got %d problems, want 1: %v", len(errs), errs)
			}
			if !strings.Contains(errs[0].Error(), tt.want) {
				t.Errorf("problem = %q, want it to contain %q", errs[0], tt.want)
			}
			var p *SchemaProblem
			if !errors.As(errs[0], &p) {
				t.Errorf("problem is %T, want *SchemaProblem", errs[0])
			}
		})
	}
}

func TestValidateSchemaRejectsNonSchema(t *testing.T) {
	errs := NewSchemaValidator().ValidateSchema(decodeXML(t, `<root/>`))
	if len(errs) != 1 || !errors.Is(errs[0], ErrNotSchema) {
		t.Errorf("ValidateSchema() = %v, want ErrNotSchema", errs)
	}
}

func TestSchemaProblemError(t *testing.T) {
	p := &SchemaProblem{Component: "element", Name: "r", Line: 3, Column: 5, Message: "broken"}
	if got := p.Error(); got != "3:5: <element name='r'>: broken" {
		t.Errorf("Error() = %q", got)
	}
	p = &SchemaProblem{Component: "sequence", Message: "broken"}
	if got := p.Error(); got != "<sequence>: broken" {
		t.Errorf("Error() = %q", got)
	}
}
