package xsdgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// ErrRootNotFound is returned when the requested root is not a global element.
var ErrRootNotFound = errors.New("root element not found")

// GroupPolicy decides which compositors become graph nodes.
type GroupPolicy int

const (
	// ElideTrivialGroups materializes a compositor only when it has more
	// than one particle or occurs other than exactly once.
	ElideTrivialGroups GroupPolicy = iota
	// KeepAllGroups materializes every compositor.
	KeepAllGroups
)

type BuildOption func(*GraphBuilder)

func WithGroupPolicy(p GroupPolicy) BuildOption {
	return func(b *GraphBuilder) { b.policy = p }
}

func WithBuildLogger(l *slog.Logger) BuildOption {
	return func(b *GraphBuilder) { b.logger = l }
}

// GraphBuilder expands a global element declaration into a Graph.
// A builder may be shared; every Build call works on its own state.
type GraphBuilder struct {
	schema   *Schema
	resolver *TypeResolver
	facets   *FacetExtractor
	policy   GroupPolicy
	logger   *slog.Logger
}

func NewGraphBuilder(schema *Schema, opts ...BuildOption) *GraphBuilder {
	resolver := NewTypeResolver(schema)
	b := &GraphBuilder{
		schema:   schema,
		resolver: resolver,
		facets:   NewFacetExtractor(resolver),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build expands the global element named root. root is a local name, a
// prefixed name using a schema prefix, or "{namespace}local".
func (b *GraphBuilder) Build(root string) (*Graph, error) {
	decl, err := b.FindRoot(root)
	if err != nil {
		return nil, err
	}
	return b.BuildElement(decl)
}

// FindRoot looks up a global element declaration by name.
func (b *GraphBuilder) FindRoot(root string) (*ElementDecl, error) {
	root = strings.TrimSpace(root)
	var want QName
	switch {
	case strings.HasPrefix(root, "{"):
		ns, local, ok := strings.Cut(root[1:], "}")
		if !ok {
			return nil, fmt.Errorf("%w: malformed name %q", ErrRootNotFound, root)
		}
		want = QName{Namespace: ns, Local: local}
	case strings.Contains(root, ":"):
		prefix, local, _ := strings.Cut(root, ":")
		uri, ok := b.schema.Namespaces.Lookup(prefix)
		if !ok {
			return nil, fmt.Errorf("%w: unknown prefix %q", ErrRootNotFound, prefix)
		}
		want = QName{Namespace: uri, Local: local}
	default:
		want = QName{Namespace: b.schema.TargetNamespace, Local: root}
	}

	if decl, ok := b.schema.LookupElement(want); ok {
		return decl, nil
	}
	if !strings.ContainsAny(root, "{:") {
		for _, decl := range b.schema.GlobalElements() {
			if decl.Name.Local == root {
				return decl, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
}

// BuildElement expands decl into a new graph.
func (b *GraphBuilder) BuildElement(decl *ElementDecl) (*Graph, error) {
	run := &buildRun{
		GraphBuilder: b,
		g:            newGraph(b.schema.Namespaces, b.schema.TargetNamespace),
		stack:        NewResolutionStack(),
		segments:     make(map[Path]map[string]int),
		ordinals:     make(map[Path]int),
		wildcards:    make(map[Path]int),
	}
	run.addElement(nil, decl, 1, 1, decl.Documentation)

	for _, w := range run.g.Warnings() {
		b.logger.Warn(w.Message, "path", w.Path)
	}

	root := run.g.Root()
	switch {
	case root == nil:
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, decl.Name)
	case root.Unresolved:
		return run.g, fmt.Errorf("%w: root element %s", ErrUnresolvedType, decl.Name)
	}
	return run.g, nil
}

type buildRun struct {
	*GraphBuilder
	g         *Graph
	stack     *ResolutionStack
	segments  map[Path]map[string]int
	ordinals  map[Path]int
	wildcards map[Path]int
}

// place assigns n its path under parent and inserts it.
func (r *buildRun) place(parent *Node, n *Node, segment string) bool {
	var base Path
	n.Level = 1
	if parent != nil {
		base = parent.Path
		n.Level = parent.Level + 1
	}

	counts := r.segments[base]
	if counts == nil {
		counts = make(map[string]int)
		r.segments[base] = counts
	}
	counts[segment]++
	if c := counts[segment]; c > 1 {
		segment = fmt.Sprintf("%s[%d]", segment, c)
	}

	n.Path = base.Child(segment)
	if err := r.g.insert(n); err != nil {
		r.g.warn(n.Path, "%v", err)
		return false
	}
	if parent != nil {
		parent.Children = append(parent.Children, n.Path)
	}
	return true
}

func (r *buildRun) addElement(parent *Node, decl *ElementDecl, minOcc, maxOcc int, docs []Documentation) {
	target := decl
	var head QName
	if decl.Abstract {
		if member := r.firstConcreteMember(decl.Name); member != nil {
			head, target = decl.Name, member
		}
	}

	n := &Node{
		Name:            target.Name.Local,
		Namespace:       target.Name.Namespace,
		Kind:            ElementNode,
		MinOccurs:       minOcc,
		MaxOccurs:       maxOcc,
		Nillable:        target.Nillable,
		Abstract:        target.Abstract,
		SubstitutionFor: head,
		Source:          target.Source,
		Documentation:   docs,
	}
	n.Fixed, _ = HasFixedValue(target)
	n.Default, _ = HasDefaultValue(target)
	if len(n.Documentation) == 0 || target != decl {
		n.Documentation = target.Documentation
	}
	if !r.place(parent, n, target.Name.Local) {
		return
	}
	if n.Abstract {
		r.g.warn(n.Path, "abstract element %s has no concrete substitute", target.Name)
	}
	r.expandElement(n, target)
}

func (r *buildRun) firstConcreteMember(head QName) *ElementDecl {
	for _, name := range r.schema.SubstitutionMembers(head) {
		if decl, ok := r.schema.LookupElement(name); ok && !decl.Abstract {
			return decl
		}
	}
	return nil
}

func (r *buildRun) expandElement(n *Node, decl *ElementDecl) {
	ref := TypeReference{Name: decl.TypeName, Inline: decl.Type}

	alts, def, moved := Alternatives(decl)
	n.Alternatives = graphAlternatives(alts)
	if moved {
		r.g.warn(n.Path, "default type alternative is not declared last")
	}
	if def != nil && (def.Type != nil || !def.TypeName.IsZero()) {
		ref = TypeReference{Name: def.TypeName, Inline: def.Type}
	}
	if ref.IsZero() && !decl.SubstitutionGroup.IsZero() {
		if headDecl, err := r.resolver.Element(decl.SubstitutionGroup); err == nil {
			ref = TypeReference{Name: headDecl.TypeName, Inline: headDecl.Type}
		}
	}

	var elementKey string
	if decl.Global && ref.Inline != nil {
		elementKey = ElementKey(decl.Name)
		if r.stack.Contains(elementKey) {
			n.Cyclic, n.CycleRef = true, elementKey
			n.Type = &TypeRef{Kind: ComplexKind, Inline: true}
			return
		}
	}

	resolved, err := r.resolver.Resolve(ref, r.stack)
	if err != nil {
		n.Unresolved = true
		n.Type = &TypeRef{Kind: UnknownKind, Name: ref.Name}
		r.g.warn(n.Path, "%v", err)
		return
	}
	if resolved.Cyclic {
		n.Cyclic, n.CycleRef = true, resolved.Key
		n.Type = &TypeRef{Kind: ComplexKind, Name: resolved.Name}
		return
	}

	switch {
	case resolved.IsBuiltin():
		if resolved.Builtin == "anyType" {
			n.Type = builtinRef("anyType")
			n.Mixed = true
			return
		}
		r.facets.apply(n, builtinRef(resolved.Builtin))
	case resolved.Simple != nil:
		if err := r.facets.Extract(n, ref); err != nil {
			r.g.warn(n.Path, "%v", err)
		}
	case resolved.Complex != nil:
		if elementKey != "" {
			r.stack.Push(elementKey)
			defer r.stack.Pop()
		}
		if resolved.Key != "" {
			r.stack.Push(resolved.Key)
			defer r.stack.Pop()
		}
		r.expandComplex(n, resolved)
	}
}

func (r *buildRun) expandComplex(n *Node, resolved ResolvedType) {
	ct := resolved.Complex
	n.Type = &TypeRef{Kind: ComplexKind, Name: resolved.Name, Inline: ct.Anonymous}
	n.Abstract = n.Abstract || ct.Abstract
	if len(n.Documentation) == 0 {
		n.Documentation = ct.Documentation
	}

	ec, err := r.resolver.EffectiveContent(ct)
	if err != nil {
		r.g.warn(n.Path, "%v", err)
	}
	if ec == nil {
		return
	}
	n.Mixed = ec.Mixed
	n.Assertions = ec.Assertions
	if ec.Simple != nil {
		r.facets.ExtractContent(n, ec.Simple)
	}

	for _, p := range ec.Particles {
		r.addParticle(n, p)
	}
	for _, attr := range ec.Attributes {
		r.addAttribute(n, attr)
	}
	for _, name := range ec.UnresolvedAttributes {
		a := &Node{Name: name.Local, Namespace: name.Namespace, Kind: AttributeNode, MaxOccurs: 1, Unresolved: true}
		if r.place(n, a, "@"+name.Local) {
			r.g.warn(a.Path, "%v: %s", ErrUnresolvedAttribute, name)
		}
	}
	if anyAttr := ec.AnyAttribute; anyAttr != nil {
		a := &Node{
			Name:      "anyAttribute",
			Kind:      AttributeNode,
			MaxOccurs: 1,
			Wildcards: []Wildcard{{Namespace: anyAttr.Namespace, ProcessContents: anyAttr.ProcessContents, TargetNamespace: anyAttr.TargetNamespace}},
			Source:    anyAttr.Source,
		}
		r.place(n, a, "@anyAttribute")
	}
}

func (r *buildRun) addAttribute(parent *Node, decl *AttributeDecl) {
	n := &Node{
		Name:          decl.Name.Local,
		Namespace:     decl.Name.Namespace,
		Kind:          AttributeNode,
		MaxOccurs:     1,
		Fixed:         decl.Fixed,
		Default:       decl.Default,
		Documentation: decl.Documentation,
		Source:        decl.Source,
	}
	if decl.Use == RequiredUse {
		n.MinOccurs = 1
	}
	if !r.place(parent, n, "@"+decl.Name.Local) {
		return
	}
	if err := r.facets.ExtractAttribute(n, decl); err != nil {
		n.Unresolved = true
		r.g.warn(n.Path, "%v", err)
	}
}

func (r *buildRun) addParticle(parent *Node, p Particle) {
	switch t := p.(type) {
	case *ElementDecl:
		r.addElement(parent, t, t.MinOcc, t.MaxOcc, t.Documentation)
	case *ElementRef:
		decl, err := r.resolver.Element(t.Ref)
		if err != nil {
			n := &Node{
				Name:       t.Ref.Local,
				Namespace:  t.Ref.Namespace,
				Kind:       ElementNode,
				MinOccurs:  t.MinOcc,
				MaxOccurs:  t.MaxOcc,
				Unresolved: true,
				Source:     t.Source,
			}
			if r.place(parent, n, t.Ref.Local) {
				r.g.warn(n.Path, "%v", err)
			}
			return
		}
		r.addElement(parent, decl, t.MinOcc, t.MaxOcc, t.Documentation)
	case *GroupRef:
		mg, err := r.resolver.Group(t.Ref)
		if err != nil {
			r.g.warn(parent.Path, "%v", err)
			return
		}
		effective := &ModelGroup{Kind: mg.Kind, Particles: mg.Particles, MinOcc: t.MinOcc, MaxOcc: t.MaxOcc, Source: mg.Source}
		key := GroupKey(t.Ref)
		if r.stack.Contains(key) {
			n := r.groupNode(parent, effective)
			if n != nil {
				n.Cyclic, n.CycleRef = true, key
			}
			return
		}
		r.stack.Push(key)
		r.addGroup(parent, effective)
		r.stack.Pop()
	case *ModelGroup:
		r.addGroup(parent, t)
	case *AnyElement:
		r.addWildcard(parent, t)
	}
}

func (r *buildRun) addGroup(parent *Node, mg *ModelGroup) {
	trivial := mg.MinOcc == 1 && mg.MaxOcc == 1 && len(mg.Particles) <= 1
	if trivial && r.policy == ElideTrivialGroups {
		for _, p := range mg.Particles {
			r.addParticle(parent, p)
		}
		return
	}

	n := r.groupNode(parent, mg)
	if n == nil {
		return
	}
	for _, p := range mg.Particles {
		r.addParticle(n, p)
	}
}

// groupNode inserts a compositor node. Ordinals count all compositor kinds
// under the same parent.
func (r *buildRun) groupNode(parent *Node, mg *ModelGroup) *Node {
	r.ordinals[parent.Path]++
	n := &Node{
		Name:      strings.ToUpper(string(mg.Kind)),
		Kind:      groupNodeKind(mg.Kind),
		MinOccurs: mg.MinOcc,
		MaxOccurs: mg.MaxOcc,
		Source:    mg.Source,
	}
	if !r.place(parent, n, fmt.Sprintf("%s#%d", mg.Kind, r.ordinals[parent.Path])) {
		return nil
	}
	return n
}

func (r *buildRun) addWildcard(parent *Node, anyElem *AnyElement) {
	r.wildcards[parent.Path]++
	wc := Wildcard{Namespace: anyElem.Namespace, ProcessContents: anyElem.ProcessContents, TargetNamespace: anyElem.TargetNamespace}
	n := &Node{
		Name:      "any",
		Kind:      ElementNode,
		MinOccurs: anyElem.MinOcc,
		MaxOccurs: anyElem.MaxOcc,
		Wildcards: []Wildcard{wc},
		Source:    anyElem.Source,
	}
	if !r.place(parent, n, fmt.Sprintf("any#%d", r.wildcards[parent.Path])) {
		return
	}
	if wc.ProcessContents != StrictProcess || anyElem.MinOcc == 0 {
		return
	}

	sub := r.wildcardSubstitute(wc)
	if sub == nil {
		r.g.warn(n.Path, "no global element satisfies strict wildcard %q", anyElem.Namespace)
		return
	}
	r.addElement(n, sub, 1, 1, sub.Documentation)
}

// wildcardSubstitute returns the first concrete global element, by
// expanded name, allowed by a strict wildcard.
func (r *buildRun) wildcardSubstitute(wc Wildcard) *ElementDecl {
	candidates := r.schema.GlobalElements()
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Name.String() < candidates[j].Name.String()
	})
	for _, decl := range candidates {
		if !decl.Abstract && wc.Allows(decl.Name.Namespace) {
			return decl
		}
	}
	return nil
}
