package xsdgraph

import (
	"strings"
	"sync"

	"github.com/agentflare-ai/go-xmldom"
	"golang.org/x/text/language"
)

// NamespaceTable maps prefixes to namespace URIs. The first declaration of a
// prefix wins, so merging tables of included schemas never rebinds a prefix
// of the including schema.
type NamespaceTable struct {
	mu       sync.RWMutex
	byPrefix map[string]string
	order    []string
}

func NewNamespaceTable() *NamespaceTable {
	return &NamespaceTable{byPrefix: make(map[string]string)}
}

// Declare binds prefix to uri unless the prefix is already bound.
func (t *NamespaceTable) Declare(prefix, uri string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byPrefix[prefix]; ok {
		return false
	}
	t.byPrefix[prefix] = uri
	t.order = append(t.order, prefix)
	return true
}

func (t *NamespaceTable) Lookup(prefix string) (string, bool) {
	if t == nil {
		return "", false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	uri, ok := t.byPrefix[prefix]
	return uri, ok
}

// PrefixFor returns the first non-empty prefix bound to uri.
func (t *NamespaceTable) PrefixFor(uri string) (string, bool) {
	if t == nil {
		return "", false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, p := range t.order {
		if p != "" && t.byPrefix[p] == uri {
			return p, true
		}
	}
	return "", false
}

// Prefixes returns the declared prefixes in declaration order.
func (t *NamespaceTable) Prefixes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.order...)
}

func (t *NamespaceTable) Merge(other *NamespaceTable) {
	if other == nil || other == t {
		return
	}
	for _, p := range other.Prefixes() {
		uri, _ := other.Lookup(p)
		t.Declare(p, uri)
	}
}

// addDeclarations records the xmlns attributes of elem.
func (t *NamespaceTable) addDeclarations(elem xmldom.Element) {
	attrs := elem.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		attr := attrs.Item(i)
		if attr == nil {
			continue
		}
		if prefix, ok := declaredPrefix(attr); ok {
			t.Declare(prefix, string(attr.NodeValue()))
		}
	}
}

// declaredPrefix reports the prefix an xmlns attribute binds, "" for the
// default namespace. The decoder keeps xmlns:p as namespace "xmlns" (or
// the xmlns URI) with local name p, and xmlns as a plain attribute.
func declaredPrefix(attr xmldom.Node) (string, bool) {
	ns := string(attr.NamespaceURI())
	local := string(attr.LocalName())
	if local == "" {
		local = string(attr.NodeName())
	}
	switch {
	case ns == "xmlns" || ns == XMLNSNamespace:
		if local == "xmlns" {
			return "", true
		}
		return local, true
	case ns == "" && local == "xmlns":
		return "", true
	case ns == "" && strings.HasPrefix(local, "xmlns:"):
		return strings.TrimPrefix(local, "xmlns:"), true
	}
	return "", false
}

// NormalizeLang canonicalizes an xml:lang value. Values that are not valid
// BCP 47 tags are kept verbatim.
func NormalizeLang(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	return parsed.String()
}
