package xsdgraph

import (
	"encoding/xml"
	"fmt"
	"slices"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// sampleElement is one element of a synthesized document.
type sampleElement struct {
	Name    QName
	Attrs   []sampleAttr
	Nodes   []*sampleElement
	Text    string
	HasText bool
}

type sampleAttr struct {
	Name  QName
	Value string
}

func (e *sampleElement) Append(child *sampleElement) {
	e.Nodes = append(e.Nodes, child)
}

func (e *sampleElement) SetAttr(name QName, value string) {
	e.Attrs = append(e.Attrs, sampleAttr{Name: name, Value: value})
}

// walk visits e and its descendants in document order.
func (e *sampleElement) walk(fn func(*sampleElement)) {
	fn(e)
	for _, c := range e.Nodes {
		c.walk(fn)
	}
}

// namespaceBinding maps the namespaces of a sample to the prefixes its
// elements and attributes are written with.
type namespaceBinding struct {
	defaultNS string
	prefixes  map[string]string // namespace URI -> prefix
	order     []string
}

// bindNamespaces assigns prefixes. When every element shares one namespace
// it becomes the default namespace; other namespaces get the schema's
// prefix for them, or a generated ns1, ns2, ...
func bindNamespaces(root *sampleElement, ns *NamespaceTable) *namespaceBinding {
	b := &namespaceBinding{prefixes: make(map[string]string)}
	var (
		elementSpaces []string
		attrSpaces    []string
		unqualified   bool
	)
	root.walk(func(e *sampleElement) {
		if e.Name.Namespace == "" {
			unqualified = true
		} else if !slices.Contains(elementSpaces, e.Name.Namespace) {
			elementSpaces = append(elementSpaces, e.Name.Namespace)
		}
		for _, a := range e.Attrs {
			if a.Name.Namespace != "" && a.Name.Namespace != XMLNamespace && !slices.Contains(attrSpaces, a.Name.Namespace) {
				attrSpaces = append(attrSpaces, a.Name.Namespace)
			}
		}
	})

	if len(elementSpaces) == 1 && !unqualified {
		b.defaultNS = elementSpaces[0]
	}

	used := map[string]bool{"xml": true, "xmlns": true}
	generated := 0
	for _, uri := range append(elementSpaces, attrSpaces...) {
		if _, bound := b.prefixes[uri]; bound {
			continue
		}
		// attributes never take the default namespace
		if uri == b.defaultNS && !slices.Contains(attrSpaces, uri) {
			continue
		}
		prefix, ok := "", false
		if ns != nil {
			prefix, ok = ns.PrefixFor(uri)
		}
		for !ok || used[prefix] {
			generated++
			prefix, ok = fmt.Sprintf("ns%d", generated), true
		}
		used[prefix] = true
		b.prefixes[uri] = prefix
		b.order = append(b.order, uri)
	}
	return b
}

func (b *namespaceBinding) qualify(name QName, attribute bool) string {
	switch {
	case name.Namespace == "":
		return name.Local
	case name.Namespace == XMLNamespace:
		return "xml:" + name.Local
	case !attribute && name.Namespace == b.defaultNS:
		return name.Local
	}
	return b.prefixes[name.Namespace] + ":" + name.Local
}

// sampleIndent indents element-only content. Text content is never
// reindented: whitespace is significant in most simple types.
const sampleIndent = "  "

// writeSample renders root as a UTF-8 document with every namespace
// declared on the root element.
func writeSample(root *sampleElement, ns *NamespaceTable) (string, error) {
	doc, err := xmldom.NewDOMImplementation().CreateDocument("", "", nil)
	if err != nil {
		return "", err
	}
	b := bindNamespaces(root, ns)
	elem, err := b.element(doc, root, 0)
	if err != nil {
		return "", err
	}
	if b.defaultNS != "" {
		elem.SetAttributeNS(XMLNSNamespace, "xmlns", xmldom.DOMString(b.defaultNS))
	}
	for _, uri := range b.order {
		elem.SetAttributeNS(XMLNSNamespace, xmldom.DOMString("xmlns:"+b.prefixes[uri]), xmldom.DOMString(uri))
	}
	if err := b.attributes(elem, root); err != nil {
		return "", err
	}
	doc.AppendChild(elem)

	// text nodes are escaped when built, so whitespace is written verbatim
	body, err := xmldom.MarshalIndentWithOptions(elem, "", "", true)
	if err != nil {
		return "", err
	}
	return xml.Header + string(body) + "\n", nil
}

// element builds the DOM for e. Attributes of the root are set by the
// caller after the namespace declarations.
func (b *namespaceBinding) element(doc xmldom.Document, e *sampleElement, depth int) (xmldom.Element, error) {
	elem, err := doc.CreateElementNS(xmldom.DOMString(e.Name.Namespace), xmldom.DOMString(b.qualify(e.Name, false)))
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", e.Name.Local, err)
	}
	if depth > 0 {
		if err := b.attributes(elem, e); err != nil {
			return nil, err
		}
	}

	switch {
	case len(e.Nodes) > 0:
		for _, c := range e.Nodes {
			elem.AppendChild(doc.CreateTextNode(xmldom.DOMString("\n" + strings.Repeat(sampleIndent, depth+1))))
			child, err := b.element(doc, c, depth+1)
			if err != nil {
				return nil, err
			}
			elem.AppendChild(child)
		}
		elem.AppendChild(doc.CreateTextNode(xmldom.DOMString("\n" + strings.Repeat(sampleIndent, depth))))
	case e.HasText && e.Text != "":
		elem.AppendChild(doc.CreateTextNode(xmldom.DOMString(xmldom.EscapeString(e.Text))))
	}
	return elem, nil
}

func (b *namespaceBinding) attributes(elem xmldom.Element, e *sampleElement) error {
	for _, a := range e.Attrs {
		name := b.qualify(a.Name, true)
		if err := elem.SetAttributeNS(xmldom.DOMString(a.Name.Namespace), xmldom.DOMString(name), xmldom.DOMString(a.Value)); err != nil {
			return fmt.Errorf("attribute %s: %w", name, err)
		}
	}
	return nil
}
