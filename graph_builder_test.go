package xsdgraph

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderGraphSchema = `<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" xmlns:g="urn:g"
           targetNamespace="urn:g" elementFormDefault="qualified">
  <xs:element name="order">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="id" type="xs:string"/>
        <xs:choice>
          <xs:element name="email" type="xs:string"/>
          <xs:element name="phone" type="xs:string"/>
        </xs:choice>
        <xs:sequence>
          <xs:element name="note" type="xs:string" maxOccurs="unbounded"/>
        </xs:sequence>
        <xs:element name="item" type="xs:string"/>
        <xs:element name="item" type="xs:int"/>
      </xs:sequence>
      <xs:attribute name="version" type="xs:string" fixed="1"/>
    </xs:complexType>
  </xs:element>
  <xs:element name="broken" type="g:Missing"/>
  <xs:element name="holder">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="ok" type="xs:string"/>
        <xs:element name="bad" type="g:Missing"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`

func quietBuilder(schema *Schema, opts ...BuildOption) *GraphBuilder {
	opts = append([]BuildOption{WithBuildLogger(slog.New(slog.DiscardHandler))}, opts...)
	return NewGraphBuilder(schema, opts...)
}

func nodePaths(g *Graph) []Path {
	var paths []Path
	for _, n := range g.Nodes() {
		paths = append(paths, n.Path)
	}
	return paths
}

func TestBuildElidesTrivialGroups(t *testing.T) {
	schema := parseSchema(t, orderGraphSchema)
	g, err := quietBuilder(schema).Build("order")
	require.NoError(t, err)

	assert.Equal(t, []Path{
		"/order",
		"/order/sequence#1",
		"/order/sequence#1/id",
		"/order/sequence#1/choice#1",
		"/order/sequence#1/choice#1/email",
		"/order/sequence#1/choice#1/phone",
		"/order/sequence#1/note",
		"/order/sequence#1/item",
		"/order/sequence#1/item[2]",
		"/order/@version",
	}, nodePaths(g))

	note, ok := g.Node("/order/sequence#1/note")
	require.True(t, ok)
	assert.Equal(t, Unbounded, note.MaxOccurs)
	assert.True(t, note.IsRepeatable())
	assert.Equal(t, "urn:g", note.Namespace)

	item2, _ := g.Node("/order/sequence#1/item[2]")
	require.NotNil(t, item2.Value)
	assert.Equal(t, "int", item2.Value.Builtin)

	version, _ := g.Node("/order/@version")
	assert.Equal(t, AttributeNode, version.Kind)
	assert.Equal(t, "1", version.Fixed)
	assert.True(t, version.IsOptional())

	choice, _ := g.Node("/order/sequence#1/choice#1")
	assert.Equal(t, ChoiceNode, choice.Kind)
	assert.True(t, choice.IsGroup())
	assert.Empty(t, g.Warnings())
}

func TestBuildKeepAllGroups(t *testing.T) {
	schema := parseSchema(t, orderGraphSchema)
	g, err := quietBuilder(schema, WithGroupPolicy(KeepAllGroups)).Build("order")
	require.NoError(t, err)

	for _, p := range []Path{"/order/sequence#1/sequence#2", "/order/sequence#1/sequence#2/note"} {
		_, ok := g.Node(p)
		assert.True(t, ok, "missing %s", p)
	}
	_, ok := g.Node("/order/sequence#1/note")
	assert.False(t, ok)
}

func TestFlattenSkipsGroups(t *testing.T) {
	schema := parseSchema(t, orderGraphSchema)
	for _, policy := range []GroupPolicy{ElideTrivialGroups, KeepAllGroups} {
		g, err := quietBuilder(schema, WithGroupPolicy(policy)).Build("order")
		require.NoError(t, err)

		var names []string
		for _, n := range g.Flatten("/order") {
			assert.False(t, n.IsGroup())
			names = append(names, n.Name)
		}
		assert.Equal(t, []string{"id", "email", "phone", "note", "item", "item", "version"}, names)
	}
}

func TestFindRoot(t *testing.T) {
	schema := parseSchema(t, orderGraphSchema)
	b := quietBuilder(schema)

	for _, root := range []string{"order", "g:order", "{urn:g}order", " order "} {
		decl, err := b.FindRoot(root)
		if assert.NoError(t, err, root) {
			assert.Equal(t, QName{Namespace: "urn:g", Local: "order"}, decl.Name)
		}
	}
	for _, root := range []string{"missing", "x:order", "{urn:other}order", "{urn:g"} {
		_, err := b.FindRoot(root)
		assert.ErrorIs(t, err, ErrRootNotFound, root)
	}
}

func TestBuildUnresolvedTypes(t *testing.T) {
	schema := parseSchema(t, orderGraphSchema)
	b := quietBuilder(schema)

	g, err := b.Build("broken")
	assert.ErrorIs(t, err, ErrUnresolvedType)
	require.NotNil(t, g)
	assert.True(t, g.Root().Unresolved)

	g, err = b.Build("holder")
	require.NoError(t, err)
	bad, ok := g.Node("/holder/sequence#1/bad")
	require.True(t, ok)
	assert.True(t, bad.Unresolved)
	require.Len(t, g.Warnings(), 1)
	assert.Equal(t, Path("/holder/sequence#1/bad"), g.Warnings()[0].Path)
}

func TestBuildCyclicType(t *testing.T) {
	schema := parseSchema(t, `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:complexType name="NodeType">
    <xs:sequence>
      <xs:element name="label" type="xs:string"/>
      <xs:element name="child" type="NodeType" minOccurs="0" maxOccurs="unbounded"/>
    </xs:sequence>
  </xs:complexType>
  <xs:element name="tree" type="NodeType"/>
  <xs:element name="forest">
    <xs:complexType>
      <xs:sequence>
        <xs:element ref="forest" minOccurs="0"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`)
	b := quietBuilder(schema)

	g, err := b.Build("tree")
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())
	child, ok := g.Node("/tree/sequence#1/child")
	require.True(t, ok)
	assert.True(t, child.Cyclic)
	assert.Equal(t, TypeKey(QName{Local: "NodeType"}), child.CycleRef)
	assert.Empty(t, child.Children)

	// an anonymous type recurs through its global element
	g, err = b.Build("forest")
	require.NoError(t, err)
	inner, ok := g.Node("/forest/forest")
	require.True(t, ok)
	assert.True(t, inner.Cyclic)
	assert.Equal(t, ElementKey(QName{Local: "forest"}), inner.CycleRef)
}

func TestBuildAbstractRootSubstitution(t *testing.T) {
	schema := parseSchema(t, shapesSchema)
	g, err := quietBuilder(schema).Build("shape")
	require.NoError(t, err)

	root := g.Root()
	assert.Equal(t, Path("/circle"), root.Path)
	assert.Equal(t, QName{Namespace: "urn:shapes", Local: "shape"}, root.SubstitutionFor)
	assert.False(t, root.Abstract)

	var attrs []string
	for _, n := range g.Flatten(root.Path) {
		attrs = append(attrs, n.Name)
	}
	assert.ElementsMatch(t, []string{"colour", "radius"}, attrs)

	// a member without its own type takes the head's
	g, err = quietBuilder(schema).Build("square")
	require.NoError(t, err)
	_, ok := g.Node("/square/@colour")
	assert.True(t, ok)
}

func TestBuildWildcards(t *testing.T) {
	schema := parseSchema(t, `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
           targetNamespace="urn:w" elementFormDefault="qualified">
  <xs:element name="zeta" type="xs:string"/>
  <xs:element name="alpha" type="xs:int"/>
  <xs:element name="box">
    <xs:complexType>
      <xs:sequence>
        <xs:any namespace="##targetNamespace" processContents="strict"/>
        <xs:any namespace="##other" processContents="lax" minOccurs="0"/>
        <xs:any namespace="urn:nowhere" processContents="strict"/>
      </xs:sequence>
      <xs:anyAttribute namespace="##other" processContents="skip"/>
    </xs:complexType>
  </xs:element>
</xs:schema>`)

	g, err := quietBuilder(schema).Build("box")
	require.NoError(t, err)

	strict, ok := g.Node("/box/sequence#1/any#1")
	require.True(t, ok)
	assert.True(t, strict.IsWildcard())
	_, ok = g.Node("/box/sequence#1/any#1/alpha")
	assert.True(t, ok, "strict wildcard should be expanded with the first matching global element")

	lax, _ := g.Node("/box/sequence#1/any#2")
	assert.Empty(t, lax.Children)

	anyAttr, ok := g.Node("/box/@anyAttribute")
	require.True(t, ok)
	assert.Equal(t, SkipProcess, anyAttr.Wildcards[0].ProcessContents)

	warnings := g.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, Path("/box/sequence#1/any#3"), warnings[0].Path)
}

func TestBuildIsConcurrencySafe(t *testing.T) {
	schema := parseSchema(t, orderGraphSchema)
	b := quietBuilder(schema)

	errs := make(chan error, 8)
	for range 8 {
		go func() {
			g, err := b.Build("order")
			if err == nil && g.Len() != 10 {
				err = errors.New("unexpected node count")
			}
			errs <- err
		}()
	}
	for range 8 {
		assert.NoError(t, <-errs)
	}
}

func TestBuildThroughIncludeMatchesInline(t *testing.T) {
	globalType := `<xs:complexType name="GlobalType">
    <xs:sequence>
      <xs:element name="x" type="xs:string"/>
      <xs:choice>
        <xs:element name="y" type="xs:int"/>
        <xs:element name="z" type="xs:date"/>
      </xs:choice>
    </xs:sequence>
    <xs:attribute name="ref" type="xs:ID"/>
  </xs:complexType>`
	header := `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" xmlns:t="urn:inc"
           targetNamespace="urn:inc" elementFormDefault="qualified">`
	holder := `<xs:element name="holder" type="t:GlobalType"/>`

	dir := writeSchemaFiles(t, map[string]string{
		"a.xsd": header + `<xs:include schemaLocation="b.xsd"/>` + holder + `</xs:schema>`,
		"b.xsd": header + globalType + `</xs:schema>`,
	})
	included, err := quietLoader(dir).LoadSchemaWithImports("a.xsd")
	require.NoError(t, err)
	inline := parseSchema(t, header+globalType+holder+`</xs:schema>`)

	fromInclude, err := quietBuilder(included).Build("holder")
	require.NoError(t, err)
	fromInline, err := quietBuilder(inline).Build("holder")
	require.NoError(t, err)

	assert.Equal(t, nodePaths(fromInline), nodePaths(fromInclude))
	assert.Contains(t, nodePaths(fromInclude), Path("/holder/sequence#1/choice#1/z"))
	for _, n := range fromInline.Nodes() {
		other, ok := fromInclude.Node(n.Path)
		require.True(t, ok, n.Path)
		assert.Equal(t, n.Kind, other.Kind, n.Path)
		assert.Equal(t, n.Namespace, other.Namespace, n.Path)
		assert.Equal(t, n.Type.String(), other.Type.String(), n.Path)
	}
}
