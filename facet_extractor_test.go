package xsdgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlternatives(t *testing.T) {
	alt := func(test string) *TypeAlternative {
		return &TypeAlternative{Test: test, TypeName: QName{Local: "T" + test}}
	}

	tests := []struct {
		name      string
		alts      []*TypeAlternative
		wantTests []string
		wantDef   bool
		wantMoved bool
	}{
		{"none", nil, nil, false, false},
		{"default last", []*TypeAlternative{alt("@a"), alt("")}, []string{"@a", ""}, true, false},
		{"default first", []*TypeAlternative{alt(""), alt("@a"), alt("@b")}, []string{"@a", "@b", ""}, true, true},
		{"no default", []*TypeAlternative{alt("@a"), alt("@b")}, []string{"@a", "@b"}, false, false},
		{"blank test", []*TypeAlternative{alt("  "), alt("@a")}, []string{"@a", "  "}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ordered, def, moved := Alternatives(&ElementDecl{Alternatives: tt.alts})
			var got []string
			for _, a := range ordered {
				got = append(got, a.Test)
			}
			assert.Equal(t, tt.wantTests, got)
			assert.Equal(t, tt.wantDef, def != nil)
			assert.Equal(t, tt.wantMoved, moved)
		})
	}
}

func TestFacetExtractor(t *testing.T) {
	schema := parseSchema(t, resolverSchema)
	e := NewFacetExtractor(NewTypeResolver(schema))

	n := &Node{}
	assert.NoError(t, e.Extract(n, TypeReference{Name: QName{Local: "ShortWord"}}))
	assert.Same(t, n.Type, n.Value)
	assert.True(t, RestrictsLength(n.Facets))
	assert.Equal(t, []string{"[a-z]+"}, Patterns(n.Facets))

	// node facets are a copy
	n.Facets.Add("enumeration", "x")
	assert.Empty(t, Enumerations(n.Type.Facets))

	missing := &Node{}
	assert.ErrorIs(t, e.Extract(missing, TypeReference{Name: QName{Local: "Nowhere"}}), ErrUnresolvedType)
	assert.Equal(t, UnknownKind, missing.Type.Kind)
}

func TestFacetHelpers(t *testing.T) {
	f := NewFacets("enumeration", "a", "pattern", "x+", "enumeration", "b", "explicitTimezone", "required")
	assert.Equal(t, []string{"a", "b"}, Enumerations(f))
	assert.Equal(t, []string{"x+"}, Patterns(f))
	assert.Equal(t, "required", TimezonePolicy(f))
	assert.Equal(t, "optional", TimezonePolicy(nil))
	assert.False(t, RestrictsLength(f))
	assert.Equal(t, []string{"enumeration", "pattern", "explicitTimezone"}, f.Names())

	derived := NewFacets("enumeration", "c").Inherit(f)
	assert.Equal(t, []string{"c"}, Enumerations(derived))
	assert.Equal(t, []string{"x+"}, Patterns(derived))
}

func TestPatternSteps(t *testing.T) {
	base := NewFacets("pattern", "[A-Z]+", "pattern", "[0-9]+", "maxLength", "5")
	derived := NewFacets("pattern", "[a-zA-Z]{3}").Inherit(base)
	again := NewFacets("minLength", "1").Inherit(derived)

	assert.Equal(t, [][]string{{"[a-zA-Z]{3}"}, {"[A-Z]+", "[0-9]+"}}, again.PatternSteps())
	assert.Equal(t, []string{"[a-zA-Z]{3}"}, Patterns(again))
	assert.Equal(t, []string{"5"}, again.Values("maxLength"))
	assert.Len(t, FacetValidators(again), 4)
	assert.Nil(t, (*Facets)(nil).PatternSteps())
}
