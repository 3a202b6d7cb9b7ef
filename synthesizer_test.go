package xsdgraph

import (
	"log/slog"
	"regexp"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopSchema = `<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" xmlns:s="urn:shop"
           targetNamespace="urn:shop" elementFormDefault="qualified">
  <xs:simpleType name="SkuType">
    <xs:restriction base="xs:string">
      <xs:pattern value="[A-Z]{3}-\d{4}"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:simpleType name="StatusType">
    <xs:restriction base="xs:token">
      <xs:enumeration value="open"/>
      <xs:enumeration value="shipped"/>
      <xs:enumeration value="closed"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:simpleType name="PriceType">
    <xs:restriction base="xs:decimal">
      <xs:minInclusive value="0.01"/>
      <xs:maxInclusive value="999.99"/>
      <xs:fractionDigits value="2"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:complexType name="LineType">
    <xs:sequence>
      <xs:element name="sku" type="s:SkuType"/>
      <xs:element name="price" type="s:PriceType"/>
      <xs:element name="quantity" type="xs:positiveInteger"/>
      <xs:element name="note" type="xs:string" minOccurs="0"/>
    </xs:sequence>
    <xs:attribute name="id" type="xs:ID" use="required"/>
    <xs:attribute name="related" type="xs:IDREF"/>
  </xs:complexType>
  <xs:element name="order">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="status" type="s:StatusType"/>
        <xs:element name="placed" type="xs:date"/>
        <xs:element name="line" type="s:LineType" maxOccurs="unbounded"/>
      </xs:sequence>
      <xs:attribute name="version" type="xs:string" fixed="2.0"/>
      <xs:attribute name="channel" type="xs:string" default="web"/>
    </xs:complexType>
  </xs:element>
</xs:schema>`

func buildGraph(t *testing.T, schema *Schema, root string) *Graph {
	t.Helper()
	g, err := quietBuilder(schema).Build(root)
	require.NoError(t, err)
	return g
}

func synthesize(t *testing.T, g *Graph, opts SynthesisOptions) *Sample {
	t.Helper()
	opts.Logger = slog.New(slog.DiscardHandler)
	sample, err := NewSynthesizer(opts).Synthesize(g)
	require.NoError(t, err)
	return sample
}

func TestSynthesizedSamplesValidate(t *testing.T) {
	schema := parseSchema(t, shopSchema)
	g := buildGraph(t, schema, "order")

	for seed := uint64(1); seed <= 20; seed++ {
		for _, mandatory := range []bool{false, true} {
			sample := synthesize(t, g, SynthesisOptions{Seed: seed, MandatoryOnly: mandatory})
			assert.Empty(t, sample.Warnings)

			doc := decodeXML(t, sample.XML)
			violations := NewValidator(schema).Validate(doc)
			assert.Empty(t, violations, "seed %d mandatory=%v:\n%s", seed, mandatory, sample.XML)
		}
	}
}

func TestSynthesizedLiterals(t *testing.T) {
	schema := parseSchema(t, shopSchema)
	g := buildGraph(t, schema, "order")
	sample := synthesize(t, g, SynthesisOptions{Seed: 7})

	status := regexp.MustCompile(`<status>([^<]*)</status>`).FindStringSubmatch(sample.XML)
	require.NotNil(t, status, sample.XML)
	assert.Contains(t, []string{"open", "shipped", "closed"}, status[1])

	sku := regexp.MustCompile(`<sku>([^<]*)</sku>`).FindStringSubmatch(sample.XML)
	require.NotNil(t, sku, sample.XML)
	assert.Regexp(t, `^[A-Z]{3}-[0-9]{4}$`, sku[1])

	assert.Contains(t, sample.XML, `<quantity>1</quantity>`)
	assert.Contains(t, sample.XML, `version="2.0"`)
	assert.Contains(t, sample.XML, `channel="web"`)
	assert.Contains(t, sample.XML, `<order xmlns="urn:shop"`)
	assert.Regexp(t, `<placed>2024-\d\d-\d\d|<placed>2025-01-\d\d`, sample.XML)

	ids := regexp.MustCompile(` id="([^"]+)"`).FindAllStringSubmatch(sample.XML, -1)
	refs := regexp.MustCompile(` related="([^"]+)"`).FindAllStringSubmatch(sample.XML, -1)
	require.NotEmpty(t, refs)
	var idValues []string
	for _, m := range ids {
		idValues = append(idValues, m[1])
	}
	for _, m := range refs {
		assert.Contains(t, idValues, m[1], "IDREF must point at a generated ID")
	}
}

func TestMandatoryOnlyOmitsOptionalContent(t *testing.T) {
	schema := parseSchema(t, shopSchema)
	g := buildGraph(t, schema, "order")
	sample := synthesize(t, g, SynthesisOptions{Seed: 3, MandatoryOnly: true})

	assert.NotContains(t, sample.XML, "<note>")
	assert.NotContains(t, sample.XML, "related=")
	assert.NotContains(t, sample.XML, "channel=")
	assert.Len(t, regexp.MustCompile(`<line `).FindAllStringIndex(sample.XML, -1), 1)
}

func TestSynthesisIsReproducible(t *testing.T) {
	schema := parseSchema(t, shopSchema)
	g := buildGraph(t, schema, "order")

	first := synthesize(t, g, SynthesisOptions{Seed: 42})
	second := synthesize(t, g, SynthesisOptions{Seed: 42})
	assert.Equal(t, first.XML, second.XML)
}

func TestChoiceOccurrences(t *testing.T) {
	schema := parseSchema(t, `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="pick">
    <xs:complexType>
      <xs:choice minOccurs="2" maxOccurs="3">
        <xs:element name="a" type="xs:string"/>
        <xs:element name="b" type="xs:int"/>
        <xs:element name="c" type="xs:boolean"/>
        <xs:element name="d" type="xs:date"/>
      </xs:choice>
    </xs:complexType>
  </xs:element>
</xs:schema>`)
	g := buildGraph(t, schema, "pick")
	allowed := []string{"a", "b", "c", "d"}
	seen := map[string]bool{}

	for seed := uint64(1); seed <= 20; seed++ {
		for _, mandatory := range []bool{false, true} {
			sample := synthesize(t, g, SynthesisOptions{Seed: seed, MandatoryOnly: mandatory})
			doc := decodeXML(t, sample.XML)

			children := elementChildren(doc.DocumentElement())
			if mandatory {
				assert.Len(t, children, 2)
			} else {
				assert.True(t, len(children) >= 2 && len(children) <= 3, "got %d children", len(children))
			}
			for _, c := range children {
				assert.True(t, slices.Contains(allowed, string(c.LocalName())), "unexpected child %s", c.LocalName())
				if !mandatory {
					seen[string(c.LocalName())] = true
				}
			}
			assert.Empty(t, NewValidator(schema).Validate(doc), sample.XML)
		}
	}
	assert.GreaterOrEqual(t, len(seen), 2, "choice always picked the same branch")
}

func TestSynthesisOmitsUnproducibleNodes(t *testing.T) {
	schema := parseSchema(t, `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:complexType name="NodeType">
    <xs:sequence>
      <xs:element name="label" type="xs:string"/>
      <xs:element name="child" type="NodeType" minOccurs="0" maxOccurs="unbounded"/>
    </xs:sequence>
  </xs:complexType>
  <xs:element name="tree" type="NodeType"/>
  <xs:element name="loop">
    <xs:complexType>
      <xs:sequence>
        <xs:element ref="loop"/>
        <xs:element name="missing" type="Nowhere"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`)

	tree := synthesize(t, buildGraph(t, schema, "tree"), SynthesisOptions{Seed: 1})
	assert.Empty(t, tree.Warnings)
	assert.NotContains(t, tree.XML, "<child")

	loop := synthesize(t, buildGraph(t, schema, "loop"), SynthesisOptions{Seed: 1})
	require.Len(t, loop.Warnings, 2)
	assert.Equal(t, Path("/loop/sequence#1/loop"), loop.Warnings[0].Path)
	assert.Equal(t, Path("/loop/sequence#1/missing"), loop.Warnings[1].Path)
}

func TestSynthesizeRejectsUnusableRoot(t *testing.T) {
	schema := parseSchema(t, `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="broken" type="Nowhere"/>
</xs:schema>`)
	g, err := quietBuilder(schema).Build("broken")
	require.Error(t, err)

	_, err = NewSynthesizer(SynthesisOptions{Logger: slog.New(slog.DiscardHandler)}).Synthesize(g)
	assert.ErrorIs(t, err, ErrUnsynthesizableRoot)
}

func TestSynthesizeWildcards(t *testing.T) {
	schema := parseSchema(t, `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
           targetNamespace="urn:w" elementFormDefault="qualified">
  <xs:element name="alpha" type="xs:int"/>
  <xs:element name="box">
    <xs:complexType>
      <xs:sequence>
        <xs:any namespace="##targetNamespace" processContents="strict"/>
        <xs:any namespace="##other" processContents="lax"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`)
	sample := synthesize(t, buildGraph(t, schema, "box"), SynthesisOptions{Seed: 5})

	assert.Regexp(t, `<ns\d:alpha>0</ns\d:alpha>`, sample.XML)
	assert.Contains(t, sample.XML, ":anyElement></")
	assert.Contains(t, sample.XML, placeholderNamespace)
	assert.Empty(t, NewValidator(schema).Validate(decodeXML(t, sample.XML)), sample.XML)
}
