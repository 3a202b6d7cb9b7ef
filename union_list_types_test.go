package xsdgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unionListSchema = `<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:simpleType name="SizeNumber">
    <xs:restriction base="xs:int">
      <xs:minInclusive value="1"/>
      <xs:maxInclusive value="20"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:simpleType name="SizeWord">
    <xs:restriction base="xs:string">
      <xs:enumeration value="small"/>
      <xs:enumeration value="large"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:simpleType name="Size">
    <xs:union memberTypes="SizeNumber SizeWord"/>
  </xs:simpleType>
  <xs:simpleType name="DateOrUnknown">
    <xs:union memberTypes="xs:date">
      <xs:simpleType>
        <xs:restriction base="xs:token">
          <xs:enumeration value="unknown"/>
        </xs:restriction>
      </xs:simpleType>
    </xs:union>
  </xs:simpleType>
  <xs:simpleType name="IntList">
    <xs:list itemType="xs:int"/>
  </xs:simpleType>
  <xs:simpleType name="ShortList">
    <xs:restriction base="IntList">
      <xs:maxLength value="3"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:simpleType name="SizeList">
    <xs:list itemType="Size"/>
  </xs:simpleType>
</xs:schema>`

func TestUnionAndListValues(t *testing.T) {
	schema := parseSchema(t, unionListSchema)
	resolver := NewTypeResolver(schema)

	tests := []struct {
		typeName string
		value    string
		valid    bool
	}{
		{"Size", "7", true},
		{"Size", "large", true},
		{"Size", "25", false},
		{"Size", "medium", false},
		{"DateOrUnknown", "2024-02-29", true},
		{"DateOrUnknown", "unknown", true},
		{"DateOrUnknown", "someday", false},
		{"IntList", "1 2 3 4 5", true},
		{"IntList", "", true},
		{"IntList", "1 two 3", false},
		{"ShortList", "1  2\n3", true},
		{"ShortList", "1 2 3 4", false},
		{"SizeList", "3 small 20", true},
		{"SizeList", "3 huge", false},
	}

	for _, tt := range tests {
		t.Run(tt.typeName+"/"+tt.value, func(t *testing.T) {
			ref, err := resolver.SimpleTypeInfo(TypeReference{Name: QName{Local: tt.typeName}})
			require.NoError(t, err)

			err = ValidateValue(tt.value, ref)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestUnionAndListTypeInfo(t *testing.T) {
	schema := parseSchema(t, unionListSchema)
	resolver := NewTypeResolver(schema)

	size, err := resolver.SimpleTypeInfo(TypeReference{Name: QName{Local: "Size"}})
	require.NoError(t, err)
	assert.Equal(t, UnionKind, size.Kind)
	require.Len(t, size.Members, 2)
	assert.Equal(t, "int", size.Members[0].Builtin)
	assert.Equal(t, []string{"small", "large"}, size.Members[1].Facets.Values("enumeration"))

	short, err := resolver.SimpleTypeInfo(TypeReference{Name: QName{Local: "ShortList"}})
	require.NoError(t, err)
	assert.Equal(t, ListKind, short.Kind)
	require.NotNil(t, short.Item)
	assert.Equal(t, "int", short.Item.Builtin)
	maxLen, ok := short.Facets.Get("maxLength")
	assert.True(t, ok)
	assert.Equal(t, "3", maxLen)
}

func TestBuiltinListTypes(t *testing.T) {
	tests := []struct {
		builtin string
		value   string
		valid   bool
	}{
		{"NMTOKENS", "a b c", true},
		{"NMTOKENS", "", false},
		{"IDREFS", "a1 b2", true},
		{"IDREFS", "1a", false},
	}

	for _, tt := range tests {
		t.Run(tt.builtin+"/"+tt.value, func(t *testing.T) {
			err := ValidateValue(tt.value, builtinRef(tt.builtin))
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestUnionWithoutMembers(t *testing.T) {
	err := ValidateUnionValue("x", &TypeRef{Kind: UnionKind, Facets: &Facets{}})
	assert.Error(t, err)
}
