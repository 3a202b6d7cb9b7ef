package xsdgraph

import (
	"errors"
	"testing"
)

const resolverSchema = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:simpleType name="Word">
    <xs:restriction base="xs:string">
      <xs:maxLength value="10"/>
      <xs:pattern value="[a-z]+"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:simpleType name="ShortWord">
    <xs:restriction base="Word">
      <xs:maxLength value="5"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:simpleType name="Ping">
    <xs:restriction base="Pong"/>
  </xs:simpleType>
  <xs:simpleType name="Pong">
    <xs:restriction base="Ping"/>
  </xs:simpleType>
  <xs:complexType name="Box">
    <xs:sequence>
      <xs:element name="w" type="Word"/>
    </xs:sequence>
  </xs:complexType>
</xs:schema>`

func TestTypeResolverResolve(t *testing.T) {
	r := NewTypeResolver(parseSchema(t, resolverSchema))

	tests := []struct {
		name    string
		ref     TypeReference
		check   func(ResolvedType) bool
		wantErr error
	}{
		{"zero reference", TypeReference{}, func(rt ResolvedType) bool { return rt.Builtin == "anyType" }, nil},
		{"builtin", TypeReference{Name: QName{Namespace: XSDNamespace, Local: "int"}}, func(rt ResolvedType) bool { return rt.IsBuiltin() }, nil},
		{"unprefixed builtin", TypeReference{Name: QName{Local: "date"}}, func(rt ResolvedType) bool { return rt.Builtin == "date" }, nil},
		{"complex", TypeReference{Name: QName{Local: "Box"}}, func(rt ResolvedType) bool { return rt.Complex != nil && rt.Key == "type:Box" }, nil},
		{"simple", TypeReference{Name: QName{Local: "Word"}}, func(rt ResolvedType) bool { return rt.Simple != nil }, nil},
		{"missing", TypeReference{Name: QName{Local: "Nowhere"}}, nil, ErrUnresolvedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := r.Resolve(tt.ref, NewResolutionStack())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(rt) {
				t.Errorf("Resolve() = %+v", rt)
			}
		})
	}
}

func TestTypeResolverCycleMarker(t *testing.T) {
	r := NewTypeResolver(parseSchema(t, resolverSchema))
	box := QName{Local: "Box"}

	stack := NewResolutionStack()
	stack.Push(TypeKey(box))
	rt, err := r.Resolve(TypeReference{Name: box}, stack)
	if err != nil {
		t.Fatal(err)
	}
	if !rt.Cyclic || rt.Complex != nil || rt.Key != TypeKey(box) {
		t.Errorf("Resolve() on stack = %+v, want a cyclic marker", rt)
	}

	stack.Pop()
	if stack.Len() != 0 || stack.Contains(TypeKey(box)) {
		t.Errorf("stack after Pop = %v", stack.Keys())
	}
	stack.Pop()
	if rt, _ := r.Resolve(TypeReference{Name: box}, stack); rt.Cyclic {
		t.Error("type resolved as cyclic after leaving the path")
	}
}

func TestSimpleTypeInfo(t *testing.T) {
	r := NewTypeResolver(parseSchema(t, resolverSchema))

	short, err := r.SimpleTypeInfo(TypeReference{Name: QName{Local: "ShortWord"}})
	if err != nil {
		t.Fatal(err)
	}
	if short.Kind != SimpleKind || short.Builtin != "string" {
		t.Errorf("ShortWord = %s (%v, %q)", short, short.Kind, short.Builtin)
	}
	if got, _ := short.Facets.Get("maxLength"); got != "5" {
		t.Errorf("maxLength = %q, want the restated 5", got)
	}
	if got := Patterns(short.Facets); len(got) != 1 || got[0] != "[a-z]+" {
		t.Errorf("patterns = %v, want the inherited pattern", got)
	}
	if len(short.Facets.Values("maxLength")) != 1 {
		t.Errorf("restated facet kept base value: %v", short.Facets.All())
	}

	if _, err := r.SimpleTypeInfo(TypeReference{Name: QName{Local: "Ping"}}); !errors.Is(err, ErrDerivationCycle) {
		t.Errorf("Ping error = %v, want ErrDerivationCycle", err)
	}
	if _, err := r.SimpleTypeInfo(TypeReference{Name: QName{Local: "Box"}}); !errors.Is(err, ErrUnresolvedType) {
		t.Errorf("Box error = %v, want ErrUnresolvedType", err)
	}
}

func TestTypeResolverLookups(t *testing.T) {
	r := NewTypeResolver(parseSchema(t, resolverSchema))
	if _, err := r.Element(QName{Local: "none"}); !errors.Is(err, ErrUnresolvedElement) {
		t.Errorf("Element() error = %v", err)
	}
	if _, err := r.Group(QName{Local: "none"}); !errors.Is(err, ErrUnresolvedGroup) {
		t.Errorf("Group() error = %v", err)
	}
}
