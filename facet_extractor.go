package xsdgraph

import (
	"slices"
)

// FacetExtractor attaches simple type information to graph nodes: the
// value type, its accumulated facets and the element's type alternatives.
type FacetExtractor struct {
	resolver *TypeResolver
}

func NewFacetExtractor(resolver *TypeResolver) *FacetExtractor {
	return &FacetExtractor{resolver: resolver}
}

// Extract sets the type, value type and facets of a simple-typed node.
// For list and union types the node facets are those of the list or union
// itself; item and member facets stay on Type.Item and Type.Members.
func (e *FacetExtractor) Extract(n *Node, ref TypeReference) error {
	t, err := e.resolver.SimpleTypeInfo(ref)
	e.apply(n, t)
	return err
}

// ExtractAttribute sets the type information of an attribute node.
func (e *FacetExtractor) ExtractAttribute(n *Node, decl *AttributeDecl) error {
	t, err := e.resolver.AttributeType(decl)
	e.apply(n, t)
	return err
}

// ExtractContent sets the value type of a simple-content element. The node
// keeps its complex type in Type.
func (e *FacetExtractor) ExtractContent(n *Node, value *TypeRef) {
	n.Value = value
	n.Facets = value.Facets.Clone()
}

func (e *FacetExtractor) apply(n *Node, t *TypeRef) {
	if t == nil {
		t = &TypeRef{Kind: UnknownKind}
	}
	n.Type = t
	n.Value = t
	n.Facets = t.Facets.Clone()
}

// Alternatives returns the type alternatives of decl in evaluation order
// and the unconditional default, if any. A default that is not declared
// last is moved to the end.
func Alternatives(decl *ElementDecl) (ordered []*TypeAlternative, def *TypeAlternative, moved bool) {
	for i, alt := range decl.Alternatives {
		if alt.IsDefault() && def == nil {
			def = alt
			moved = i != len(decl.Alternatives)-1
			continue
		}
		ordered = append(ordered, alt)
	}
	if def != nil {
		ordered = append(ordered, def)
	}
	return ordered, def, moved
}

func graphAlternatives(alts []*TypeAlternative) []Alternative {
	out := make([]Alternative, 0, len(alts))
	for _, a := range alts {
		out = append(out, Alternative{Test: a.Test, Type: a.TypeName})
	}
	return out
}

// Enumerations returns the enumeration values in declaration order.
func Enumerations(f *Facets) []string {
	return f.Values("enumeration")
}

// Patterns returns the patterns of the most derived step that declares
// any. Base steps constrain the same value; see Facets.PatternSteps.
func Patterns(f *Facets) []string {
	if steps := f.PatternSteps(); len(steps) > 0 {
		return steps[0]
	}
	return nil
}

// TimezonePolicy returns the explicitTimezone facet value, "optional" when absent.
func TimezonePolicy(f *Facets) string {
	if v, ok := f.Get("explicitTimezone"); ok {
		return v
	}
	return "optional"
}

// RestrictsLength reports whether any length facet is present.
func RestrictsLength(f *Facets) bool {
	return slices.ContainsFunc([]string{"length", "minLength", "maxLength"}, f.Has)
}
