package xsdgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSample(t *testing.T) {
	root := &sampleElement{Name: QName{Namespace: "urn:a", Local: "r"}}
	root.SetAttr(QName{Local: "id"}, `x"y`)
	root.Append(&sampleElement{Name: QName{Namespace: "urn:a", Local: "t"}, Text: " a<b&c\n", HasText: true})
	other := &sampleElement{Name: QName{Namespace: "urn:b", Local: "u"}}
	other.SetAttr(QName{Namespace: "urn:b", Local: "k"}, "v")
	root.Append(other)

	ns := NewNamespaceTable()
	ns.Declare("b", "urn:b")

	got, err := writeSample(root, ns)
	require.NoError(t, err)
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?>
<ns1:r xmlns:ns1="urn:a" xmlns:b="urn:b" id="x&#34;y">
  <ns1:t> a&lt;b&amp;c&#xA;</ns1:t>
  <b:u b:k="v"></b:u>
</ns1:r>
`, got)

	doc := decodeXML(t, got)
	text := doc.DocumentElement().Children().Item(0)
	assert.Equal(t, "urn:a", string(text.NamespaceURI()))
	assert.Equal(t, " a<b&c\n", string(text.TextContent()))
}

func TestWriteSampleDefaultNamespace(t *testing.T) {
	root := &sampleElement{Name: QName{Namespace: "urn:a", Local: "r"}}
	root.Append(&sampleElement{Name: QName{Namespace: "urn:a", Local: "v"}, Text: "1", HasText: true})
	root.Append(&sampleElement{Name: QName{Namespace: "urn:a", Local: "empty"}, HasText: true})
	root.SetAttr(QName{Namespace: XMLNamespace, Local: "lang"}, "en")

	got, err := writeSample(root, nil)
	require.NoError(t, err)
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?>
<r xmlns="urn:a" xml:lang="en">
  <v>1</v>
  <empty></empty>
</r>
`, got)
}
