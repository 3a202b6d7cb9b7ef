package xsdgraph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/agentflare-ai/go-xmldom"
)

// EffectiveContent is the content of a complex type after its derivation
// chain is applied: base particles followed by extension particles, and the
// merged attribute uses.
type EffectiveContent struct {
	Particles            []Particle
	Simple               *TypeRef // non-nil for simple content
	Attributes           []*AttributeDecl
	UnresolvedAttributes []QName
	AnyAttribute         *AnyAttribute
	Mixed                bool
	Assertions           []string
}

// Particle returns the content as a single particle, or nil when empty.
func (ec *EffectiveContent) Particle() Particle {
	switch len(ec.Particles) {
	case 0:
		return nil
	case 1:
		return ec.Particles[0]
	}
	return &ModelGroup{Kind: SequenceGroup, Particles: ec.Particles, MinOcc: 1, MaxOcc: 1}
}

// EffectiveContent computes the effective content of ct.
func (r *TypeResolver) EffectiveContent(ct *ComplexType) (*EffectiveContent, error) {
	return r.effectiveContent(ct, map[QName]bool{})
}

func (r *TypeResolver) effectiveContent(ct *ComplexType, visiting map[QName]bool) (*EffectiveContent, error) {
	if !ct.Anonymous {
		if visiting[ct.QName] {
			return nil, fmt.Errorf("%w: %s", ErrDerivationCycle, ct.QName)
		}
		visiting[ct.QName] = true
		defer delete(visiting, ct.QName)
	}

	ec := &EffectiveContent{Mixed: ct.Mixed, Assertions: slices.Clone(ct.Assertions)}
	var errs []error

	switch c := ct.Content.(type) {
	case *ModelGroup:
		ec.Particles = []Particle{c}
	case *GroupRef:
		ec.Particles = []Particle{c}
	case *ComplexContent:
		switch {
		case c.Extension != nil:
			ext := c.Extension
			base, err := r.complexBase(ext.Base, visiting)
			if err != nil {
				errs = append(errs, err)
			}
			if base != nil {
				ec.Particles = slices.Clone(base.Particles)
				ec.Attributes = slices.Clone(base.Attributes)
				ec.UnresolvedAttributes = slices.Clone(base.UnresolvedAttributes)
				ec.AnyAttribute = base.AnyAttribute
				ec.Assertions = append(slices.Clone(base.Assertions), ec.Assertions...)
				ec.Mixed = ec.Mixed || base.Mixed
			}
			if ext.Particle != nil {
				ec.Particles = append(ec.Particles, ext.Particle)
			}
			r.mergeAttributes(ec, ext.Attributes, ext.AttributeGroups, ext.AnyAttribute)
			ec.Assertions = append(ec.Assertions, ext.Assertions...)
		case c.Restriction != nil:
			res := c.Restriction
			base, err := r.complexBase(res.Base, visiting)
			if err != nil {
				errs = append(errs, err)
			}
			if base != nil {
				ec.Attributes = slices.Clone(base.Attributes)
				ec.UnresolvedAttributes = slices.Clone(base.UnresolvedAttributes)
			}
			if res.Particle != nil {
				ec.Particles = []Particle{res.Particle}
			}
			r.mergeAttributes(ec, res.Attributes, res.AttributeGroups, res.AnyAttribute)
			ec.Assertions = append(ec.Assertions, res.Assertions...)
		}
	case *SimpleContent:
		switch {
		case c.Extension != nil:
			ext := c.Extension
			value, base, err := r.simpleContentBase(ext.Base, visiting)
			if err != nil {
				errs = append(errs, err)
			}
			ec.Simple = value
			if base != nil {
				ec.Attributes = slices.Clone(base.Attributes)
				ec.UnresolvedAttributes = slices.Clone(base.UnresolvedAttributes)
				ec.AnyAttribute = base.AnyAttribute
			}
			r.mergeAttributes(ec, ext.Attributes, ext.AttributeGroups, ext.AnyAttribute)
			ec.Assertions = append(ec.Assertions, ext.Assertions...)
		case c.Restriction != nil:
			res := c.Restriction
			value, base, err := r.simpleContentBase(res.Base, visiting)
			if err != nil {
				errs = append(errs, err)
			}
			if res.BaseType != nil {
				if inline, err := r.simpleTypeOf(res.BaseType, map[QName]bool{}); err == nil {
					value = inline
				}
			}
			if value != nil {
				restricted := *value
				restricted.Facets = res.Facets.Inherit(value.Facets)
				if restricted.Kind == BuiltinKind {
					restricted.Kind = SimpleKind
				}
				restricted.Name, restricted.Inline = QName{}, true
				ec.Simple = &restricted
			}
			if base != nil {
				ec.Attributes = slices.Clone(base.Attributes)
				ec.UnresolvedAttributes = slices.Clone(base.UnresolvedAttributes)
			}
			r.mergeAttributes(ec, res.Attributes, res.AttributeGroups, res.AnyAttribute)
			ec.Assertions = append(ec.Assertions, res.Assertions...)
		}
	}

	r.mergeAttributes(ec, ct.Attributes, ct.AttributeGroups, ct.AnyAttribute)
	return ec, errors.Join(errs...)
}

// complexBase returns the effective content of a complex base type. A
// built-in base (xs:anyType) contributes nothing.
func (r *TypeResolver) complexBase(name QName, visiting map[QName]bool) (*EffectiveContent, error) {
	if name.IsZero() || IsBuiltinQName(name) {
		return nil, nil
	}
	resolved, err := r.Resolve(TypeReference{Name: name}, nil)
	if err != nil {
		return nil, err
	}
	if resolved.Complex == nil {
		return nil, fmt.Errorf("base type %s of complex content is not a complex type", name)
	}
	return r.effectiveContent(resolved.Complex, visiting)
}

// simpleContentBase returns the value type of a simple content base, and
// the effective content of the base when it is itself a complex type.
func (r *TypeResolver) simpleContentBase(name QName, visiting map[QName]bool) (*TypeRef, *EffectiveContent, error) {
	resolved, err := r.Resolve(TypeReference{Name: name}, nil)
	if err != nil {
		return &TypeRef{Kind: UnknownKind, Name: name}, nil, err
	}
	if resolved.Complex != nil {
		base, err := r.effectiveContent(resolved.Complex, visiting)
		if base == nil {
			return &TypeRef{Kind: UnknownKind, Name: name}, nil, err
		}
		if base.Simple == nil {
			return builtinRef("string"), base, err
		}
		return base.Simple, base, err
	}
	value, err := r.SimpleTypeInfo(TypeReference{Name: name})
	return value, nil, err
}

// mergeAttributes adds attribute uses in declaration order. A use with the
// name of an inherited one replaces it in place; prohibited uses remove it.
func (r *TypeResolver) mergeAttributes(ec *EffectiveContent, decls []*AttributeDecl, groups []QName, anyAttr *AnyAttribute) {
	uses, unresolved, groupAny := r.attributeUses(decls, groups, map[QName]bool{})
	ec.UnresolvedAttributes = append(ec.UnresolvedAttributes, unresolved...)
	for _, use := range uses {
		i := slices.IndexFunc(ec.Attributes, func(a *AttributeDecl) bool { return a.Name == use.Name })
		switch {
		case use.Use == ProhibitedUse && i >= 0:
			ec.Attributes = slices.Delete(ec.Attributes, i, i+1)
		case use.Use == ProhibitedUse:
		case i >= 0:
			ec.Attributes[i] = use
		default:
			ec.Attributes = append(ec.Attributes, use)
		}
	}
	if anyAttr != nil {
		ec.AnyAttribute = anyAttr
	} else if groupAny != nil {
		ec.AnyAttribute = groupAny
	}
}

// attributeUses resolves attribute references and expands attribute groups.
func (r *TypeResolver) attributeUses(decls []*AttributeDecl, groups []QName, visiting map[QName]bool) ([]*AttributeDecl, []QName, *AnyAttribute) {
	var (
		uses       []*AttributeDecl
		unresolved []QName
		anyAttr    *AnyAttribute
	)
	for _, decl := range decls {
		if decl.Ref.IsZero() {
			uses = append(uses, decl)
			continue
		}
		use, ok := r.resolveAttributeRef(decl)
		if !ok {
			unresolved = append(unresolved, decl.Ref)
			continue
		}
		uses = append(uses, use)
	}
	for _, name := range groups {
		if visiting[name] {
			continue
		}
		ag, ok := r.schema.LookupAttributeGroup(name)
		if !ok {
			unresolved = append(unresolved, name)
			continue
		}
		visiting[name] = true
		groupUses, groupUnresolved, groupAny := r.attributeUses(ag.Attributes, ag.AttributeGroups, visiting)
		uses = append(uses, groupUses...)
		unresolved = append(unresolved, groupUnresolved...)
		if ag.AnyAttribute != nil {
			anyAttr = ag.AnyAttribute
		} else if groupAny != nil {
			anyAttr = groupAny
		}
	}
	return uses, unresolved, anyAttr
}

var xmlAttributeTypes = map[string]*SimpleType{
	"lang": {Anonymous: true, Restriction: &Restriction{Base: QName{Namespace: XSDNamespace, Local: "language"}, Facets: &Facets{}}},
	"base": {Anonymous: true, Restriction: &Restriction{Base: QName{Namespace: XSDNamespace, Local: "anyURI"}, Facets: &Facets{}}},
	"id":   {Anonymous: true, Restriction: &Restriction{Base: QName{Namespace: XSDNamespace, Local: "ID"}, Facets: &Facets{}}},
	"space": {Anonymous: true, Restriction: &Restriction{
		Base:   QName{Namespace: XSDNamespace, Local: "NCName"},
		Facets: NewFacets("enumeration", "default", "enumeration", "preserve"),
	}},
}

// resolveAttributeRef combines a reference site with the global declaration
// it names. Use, default and fixed of the reference site win.
func (r *TypeResolver) resolveAttributeRef(ref *AttributeDecl) (*AttributeDecl, bool) {
	global, ok := r.schema.LookupAttribute(ref.Ref)
	if !ok {
		st, builtin := xmlAttributeTypes[ref.Ref.Local]
		if ref.Ref.Namespace != XMLNamespace || !builtin {
			return nil, false
		}
		global = &AttributeDecl{Name: ref.Ref, Type: st, Global: true}
	}

	use := *global
	use.Ref = ref.Ref
	use.Use = ref.Use
	use.Source = ref.Source
	if ref.Default != "" {
		use.Default = ref.Default
	}
	if ref.Fixed != "" {
		use.Fixed = ref.Fixed
	}
	if len(ref.Documentation) > 0 {
		use.Documentation = ref.Documentation
	}
	return &use, true
}

// AttributeType returns the simple type description of an attribute.
func (r *TypeResolver) AttributeType(decl *AttributeDecl) (*TypeRef, error) {
	if decl.Type != nil {
		return r.SimpleTypeInfo(TypeReference{Inline: decl.Type})
	}
	return r.SimpleTypeInfo(TypeReference{Name: decl.TypeName})
}

// particleMatch records which declaration or wildcard accepted a child.
type particleMatch struct {
	decl     *ElementDecl
	wildcard *AnyElement
}

// contentMatcher assigns the element children of one parent to the
// particles of a content model by backtracking. Attempts are bounded by a
// step budget so pathological models fail instead of running away.
type contentMatcher struct {
	schema   *Schema
	resolver *TypeResolver
	children []xmldom.Element
	assign   []particleMatch
	steps    int
	limit    int

	furthest int
	expected []string
}

const defaultMatchBudget = 200000

var errMatchBudget = errors.New("content model too complex to match")

func newContentMatcher(resolver *TypeResolver, children []xmldom.Element) *contentMatcher {
	return &contentMatcher{
		schema:   resolver.schema,
		resolver: resolver,
		children: children,
		assign:   make([]particleMatch, len(children)),
		limit:    defaultMatchBudget,
	}
}

// match reports whether the children form a valid instance of p.
func (m *contentMatcher) match(p Particle) (bool, error) {
	ok := m.particle(p, 0, func(pos int) bool {
		if pos < len(m.children) && pos > m.furthest {
			// content ended early; nothing more was expected here
			m.furthest, m.expected = pos, nil
		}
		return pos == len(m.children)
	})
	if m.steps > m.limit {
		return false, errMatchBudget
	}
	return ok, nil
}

func (m *contentMatcher) exhausted() bool {
	m.steps++
	return m.steps > m.limit
}

func (m *contentMatcher) particle(p Particle, pos int, k func(int) bool) bool {
	if m.exhausted() {
		return false
	}
	switch t := p.(type) {
	case *ElementDecl:
		return m.repeat(t.MinOcc, t.MaxOcc, pos, k, func(pos int, k func(int) bool) bool {
			return m.element(t, pos, k)
		})
	case *ElementRef:
		decl, err := m.resolver.Element(t.Ref)
		if err != nil {
			m.note(pos, t.Ref.Local)
			return t.MinOcc == 0 && k(pos)
		}
		return m.repeat(t.MinOcc, t.MaxOcc, pos, k, func(pos int, k func(int) bool) bool {
			return m.element(decl, pos, k)
		})
	case *AnyElement:
		return m.repeat(t.MinOcc, t.MaxOcc, pos, k, func(pos int, k func(int) bool) bool {
			if pos >= len(m.children) || !MatchesWildcard(m.children[pos], t) {
				m.note(pos, "any element")
				return false
			}
			m.assign[pos] = particleMatch{wildcard: t}
			if k(pos + 1) {
				return true
			}
			m.assign[pos] = particleMatch{}
			return false
		})
	case *GroupRef:
		mg, err := m.resolver.Group(t.Ref)
		if err != nil {
			return t.MinOcc == 0 && k(pos)
		}
		return m.particle(&ModelGroup{Kind: mg.Kind, Particles: mg.Particles, MinOcc: t.MinOcc, MaxOcc: t.MaxOcc}, pos, k)
	case *ModelGroup:
		return m.repeat(t.MinOcc, t.MaxOcc, pos, k, func(pos int, k func(int) bool) bool {
			return m.group(t, pos, k)
		})
	}
	return k(pos)
}

// repeat matches term between lo and hi times, preferring more repetitions.
// A repetition that consumes nothing satisfies the remaining minimum.
func (m *contentMatcher) repeat(lo, hi int, pos int, k func(int) bool, term func(int, func(int) bool) bool) bool {
	var loop func(count, pos int) bool
	loop = func(count, pos int) bool {
		if m.exhausted() {
			return false
		}
		if hi == Unbounded || count < hi {
			if term(pos, func(next int) bool {
				if next == pos {
					return k(pos)
				}
				return loop(count+1, next)
			}) {
				return true
			}
		}
		return count >= lo && k(pos)
	}
	return loop(0, pos)
}

func (m *contentMatcher) group(mg *ModelGroup, pos int, k func(int) bool) bool {
	switch mg.Kind {
	case ChoiceGroup:
		if len(mg.Particles) == 0 {
			return k(pos)
		}
		for _, p := range mg.Particles {
			if m.particle(p, pos, k) {
				return true
			}
		}
		return false
	case AllGroup:
		return m.all(mg.Particles, make([]bool, len(mg.Particles)), pos, k)
	}
	return m.sequence(mg.Particles, pos, k)
}

func (m *contentMatcher) sequence(particles []Particle, pos int, k func(int) bool) bool {
	if len(particles) == 0 {
		return k(pos)
	}
	return m.particle(particles[0], pos, func(next int) bool {
		return m.sequence(particles[1:], next, k)
	})
}

// all matches the members of an all group in any order, each at most once
// per group occurrence.
func (m *contentMatcher) all(particles []Particle, used []bool, pos int, k func(int) bool) bool {
	for i, p := range particles {
		if used[i] {
			continue
		}
		used[i] = true
		if m.particle(p, pos, func(next int) bool {
			return next > pos && m.all(particles, used, next, k)
		}) {
			return true
		}
		used[i] = false
	}
	for i, p := range particles {
		if !used[i] && !m.emptiable(p) {
			return false
		}
	}
	return k(pos)
}

func (m *contentMatcher) emptiable(p Particle) bool {
	if p.MinOccurs() == 0 {
		return true
	}
	switch t := p.(type) {
	case *ModelGroup:
		return groupEmptiable(t, m.resolver)
	case *GroupRef:
		if mg, err := m.resolver.Group(t.Ref); err == nil {
			return groupEmptiable(mg, m.resolver)
		}
	}
	return false
}

func groupEmptiable(mg *ModelGroup, r *TypeResolver) bool {
	if mg.Kind == ChoiceGroup {
		if len(mg.Particles) == 0 {
			return true
		}
		for _, p := range mg.Particles {
			if p.MinOccurs() == 0 {
				return true
			}
			if inner, ok := p.(*ModelGroup); ok && groupEmptiable(inner, r) {
				return true
			}
		}
		return false
	}
	for _, p := range mg.Particles {
		if p.MinOccurs() == 0 {
			continue
		}
		inner, ok := p.(*ModelGroup)
		if !ok || !groupEmptiable(inner, r) {
			return false
		}
	}
	return true
}

// element matches one child against decl or a member of its substitution group.
func (m *contentMatcher) element(decl *ElementDecl, pos int, k func(int) bool) bool {
	if pos >= len(m.children) {
		m.note(pos, decl.Name.Local)
		return false
	}
	child := m.children[pos]
	actual := QName{Namespace: string(child.NamespaceURI()), Local: string(child.LocalName())}

	matched := decl
	if actual != decl.Name {
		if !decl.Global || !m.schema.IsSubstitutableFor(actual, decl.Name) {
			m.note(pos, decl.Name.Local)
			return false
		}
		member, ok := m.schema.LookupElement(actual)
		if !ok {
			return false
		}
		matched = member
	}

	m.assign[pos] = particleMatch{decl: matched}
	if k(pos + 1) {
		return true
	}
	m.assign[pos] = particleMatch{}
	return false
}

// note records what was expected at the furthest position reached.
func (m *contentMatcher) note(pos int, name string) {
	switch {
	case pos > m.furthest:
		m.furthest = pos
		m.expected = []string{name}
	case pos == m.furthest && !slices.Contains(m.expected, name):
		m.expected = append(m.expected, name)
	}
}
