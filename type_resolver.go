package xsdgraph

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrUnresolvedType      = errors.New("unresolved type")
	ErrUnresolvedElement   = errors.New("unresolved element")
	ErrUnresolvedGroup     = errors.New("unresolved group")
	ErrUnresolvedAttribute = errors.New("unresolved attribute")
	ErrDerivationCycle     = errors.New("circular type derivation")
)

// TypeReference is either a named reference or an inline definition.
type TypeReference struct {
	Name   QName
	Inline Type
}

func (r TypeReference) IsZero() bool {
	return r.Name.IsZero() && r.Inline == nil
}

// ResolvedType is the outcome of resolving a TypeReference. Exactly one of
// Builtin, Complex and Simple is set unless Cyclic is true.
type ResolvedType struct {
	Name    QName
	Builtin string
	Complex *ComplexType
	Simple  *SimpleType
	Cyclic  bool
	Key     string
}

func (r ResolvedType) IsBuiltin() bool { return r.Builtin != "" }

// ResolutionStack holds the keys of the components being expanded along the
// current path. It detects recursion without forbidding the same type from
// appearing on sibling paths.
type ResolutionStack struct {
	keys []string
}

func NewResolutionStack() *ResolutionStack {
	return &ResolutionStack{}
}

func (s *ResolutionStack) Push(key string) {
	s.keys = append(s.keys, key)
}

func (s *ResolutionStack) Pop() {
	if len(s.keys) > 0 {
		s.keys = s.keys[:len(s.keys)-1]
	}
}

func (s *ResolutionStack) Contains(key string) bool {
	return slices.Contains(s.keys, key)
}

func (s *ResolutionStack) Len() int {
	return len(s.keys)
}

func (s *ResolutionStack) Keys() []string {
	return append([]string(nil), s.keys...)
}

func TypeKey(name QName) string    { return "type:" + name.String() }
func ElementKey(name QName) string { return "element:" + name.String() }
func GroupKey(name QName) string   { return "group:" + name.String() }

// TypeResolver looks up type definitions of a schema.
type TypeResolver struct {
	schema *Schema
}

func NewTypeResolver(schema *Schema) *TypeResolver {
	return &TypeResolver{schema: schema}
}

func (r *TypeResolver) Schema() *Schema {
	return r.schema
}

// Resolve turns a reference into a definition. A named type already on the
// stack resolves to a cyclic marker instead of its definition. A zero
// reference resolves to xs:anyType.
func (r *TypeResolver) Resolve(ref TypeReference, stack *ResolutionStack) (ResolvedType, error) {
	switch t := ref.Inline.(type) {
	case *ComplexType:
		return ResolvedType{Complex: t}, nil
	case *SimpleType:
		return ResolvedType{Simple: t}, nil
	}

	name := ref.Name
	if name.IsZero() {
		return ResolvedType{Name: QName{Namespace: XSDNamespace, Local: "anyType"}, Builtin: "anyType"}, nil
	}
	if IsBuiltinQName(name) {
		return ResolvedType{Name: name, Builtin: name.Local}, nil
	}

	key := TypeKey(name)
	if stack != nil && stack.Contains(key) {
		return ResolvedType{Name: name, Cyclic: true, Key: key}, nil
	}

	r.schema.mu.RLock()
	ct, isComplex := r.schema.ComplexTypes[name]
	st, isSimple := r.schema.SimpleTypes[name]
	r.schema.mu.RUnlock()

	switch {
	case isComplex:
		return ResolvedType{Name: name, Complex: ct, Key: key}, nil
	case isSimple:
		return ResolvedType{Name: name, Simple: st, Key: key}, nil
	case name.Namespace == "" && IsBuiltinType(name.Local):
		return ResolvedType{Name: QName{Namespace: XSDNamespace, Local: name.Local}, Builtin: name.Local}, nil
	}
	return ResolvedType{Name: name}, fmt.Errorf("%w: %s", ErrUnresolvedType, name)
}

// Element finds a global element declaration.
func (r *TypeResolver) Element(name QName) (*ElementDecl, error) {
	if decl, ok := r.schema.LookupElement(name); ok {
		return decl, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnresolvedElement, name)
}

// Group finds a named model group.
func (r *TypeResolver) Group(name QName) (*ModelGroup, error) {
	if mg, ok := r.schema.LookupGroup(name); ok {
		return mg, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnresolvedGroup, name)
}

// SimpleTypeInfo describes a named or inline simple type: its kind, its
// built-in ancestor and the facets accumulated along restrictions.
func (r *TypeResolver) SimpleTypeInfo(ref TypeReference) (*TypeRef, error) {
	return r.simpleTypeInfo(ref, map[QName]bool{})
}

func (r *TypeResolver) simpleTypeInfo(ref TypeReference, visiting map[QName]bool) (*TypeRef, error) {
	if st, ok := ref.Inline.(*SimpleType); ok {
		return r.simpleTypeOf(st, visiting)
	}
	if ref.Inline != nil {
		return &TypeRef{Kind: UnknownKind, Name: ref.Inline.Name()}, fmt.Errorf("%w: %s is not a simple type", ErrUnresolvedType, ref.Inline.Name())
	}

	name := ref.Name
	if name.IsZero() {
		return builtinRef("anySimpleType"), nil
	}
	if IsBuiltinQName(name) {
		return builtinRef(name.Local), nil
	}
	if visiting[name] {
		return &TypeRef{Kind: UnknownKind, Name: name}, fmt.Errorf("%w: %s", ErrDerivationCycle, name)
	}

	r.schema.mu.RLock()
	st, ok := r.schema.SimpleTypes[name]
	r.schema.mu.RUnlock()
	if !ok {
		if name.Namespace == "" && IsBuiltinType(name.Local) {
			return builtinRef(name.Local), nil
		}
		return &TypeRef{Kind: UnknownKind, Name: name}, fmt.Errorf("%w: %s", ErrUnresolvedType, name)
	}

	visiting[name] = true
	defer delete(visiting, name)
	return r.simpleTypeOf(st, visiting)
}

func builtinRef(name string) *TypeRef {
	ref := &TypeRef{
		Kind:    BuiltinKind,
		Name:    QName{Namespace: XSDNamespace, Local: name},
		Builtin: name,
		Facets:  &Facets{},
	}
	return ref
}

func (r *TypeResolver) simpleTypeOf(st *SimpleType, visiting map[QName]bool) (*TypeRef, error) {
	switch {
	case st.Restriction != nil:
		res := st.Restriction
		var base *TypeRef
		var err error
		if res.BaseType != nil {
			base, err = r.simpleTypeOf(res.BaseType, visiting)
		} else {
			base, err = r.simpleTypeInfo(TypeReference{Name: res.Base}, visiting)
		}
		if err != nil {
			return &TypeRef{Kind: UnknownKind, Name: st.QName, Inline: st.Anonymous}, err
		}

		derived := *base
		derived.Name = st.QName
		derived.Inline = st.Anonymous
		derived.Facets = res.Facets.Inherit(base.Facets)
		if base.Kind == BuiltinKind {
			derived.Kind = SimpleKind
		}
		return &derived, nil

	case st.List != nil:
		var item *TypeRef
		var err error
		if st.List.Item != nil {
			item, err = r.simpleTypeOf(st.List.Item, visiting)
		} else {
			item, err = r.simpleTypeInfo(TypeReference{Name: st.List.ItemType}, visiting)
		}
		ref := &TypeRef{Kind: ListKind, Name: st.QName, Inline: st.Anonymous, Item: item, Facets: &Facets{}}
		return ref, err

	case st.Union != nil:
		ref := &TypeRef{Kind: UnionKind, Name: st.QName, Inline: st.Anonymous, Facets: &Facets{}}
		var errs []error
		for _, m := range st.Union.MemberTypes {
			member, err := r.simpleTypeInfo(TypeReference{Name: m}, visiting)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			ref.Members = append(ref.Members, member)
		}
		for _, m := range st.Union.Members {
			member, err := r.simpleTypeOf(m, visiting)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			ref.Members = append(ref.Members, member)
		}
		return ref, errors.Join(errs...)
	}

	ref := builtinRef("anySimpleType")
	ref.Name, ref.Inline, ref.Kind = st.QName, st.Anonymous, SimpleKind
	return ref, nil
}
