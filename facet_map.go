package xsdgraph

import "slices"

// Facet is one constraining facet occurrence.
type Facet struct {
	Name  string
	Value string
	Fixed bool
	// Step counts the derivation steps between the type that declared the
	// facet and the type holding it; 0 for its own facets.
	Step int
}

// Facets is an ordered multimap of facet name to values. Repeatable facets
// (pattern, enumeration, assertion) keep every value in declaration order.
// Patterns of one step are alternatives; every step must be matched.
// The zero value and a nil *Facets are both empty.
type Facets struct {
	entries []Facet
}

func NewFacets(pairs ...string) *Facets {
	f := &Facets{}
	for i := 0; i+1 < len(pairs); i += 2 {
		f.Add(pairs[i], pairs[i+1])
	}
	return f
}

func (f *Facets) Add(name, value string) {
	f.AddFixed(name, value, false)
}

func (f *Facets) AddFixed(name, value string, fixed bool) {
	f.entries = append(f.entries, Facet{Name: name, Value: value, Fixed: fixed})
}

// Get returns the first value of name.
func (f *Facets) Get(name string) (string, bool) {
	if f == nil {
		return "", false
	}
	for _, e := range f.entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

func (f *Facets) Values(name string) []string {
	if f == nil {
		return nil
	}
	var out []string
	for _, e := range f.entries {
		if e.Name == name {
			out = append(out, e.Value)
		}
	}
	return out
}

func (f *Facets) Has(name string) bool {
	_, ok := f.Get(name)
	return ok
}

// Names returns the distinct facet names in first-seen order.
func (f *Facets) Names() []string {
	if f == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range f.entries {
		if !seen[e.Name] {
			seen[e.Name] = true
			out = append(out, e.Name)
		}
	}
	return out
}

func (f *Facets) All() []Facet {
	if f == nil {
		return nil
	}
	return append([]Facet(nil), f.entries...)
}

func (f *Facets) Len() int {
	if f == nil {
		return 0
	}
	return len(f.entries)
}

func (f *Facets) Clone() *Facets {
	return &Facets{entries: f.All()}
}

// Inherit returns the facets of a derived type: every name restated in f
// keeps only f's values, other names are taken from base. Patterns and
// assertions of base always survive, one step further removed.
func (f *Facets) Inherit(base *Facets) *Facets {
	out := &Facets{}
	restated := make(map[string]bool)
	for _, name := range f.Names() {
		restated[name] = true
	}
	for _, e := range base.All() {
		switch {
		case e.Name == "pattern" || e.Name == "assertion":
			e.Step++
		case restated[e.Name]:
			continue
		}
		out.entries = append(out.entries, e)
	}
	out.entries = append(out.entries, f.All()...)
	return out
}

// PatternSteps groups the patterns by derivation step, most derived first.
// A value is valid when it matches one pattern of every group.
func (f *Facets) PatternSteps() [][]string {
	if f == nil {
		return nil
	}
	byStep := make(map[int][]string)
	var steps []int
	for _, e := range f.entries {
		if e.Name != "pattern" {
			continue
		}
		if _, ok := byStep[e.Step]; !ok {
			steps = append(steps, e.Step)
		}
		byStep[e.Step] = append(byStep[e.Step], e.Value)
	}
	slices.Sort(steps)
	out := make([][]string, len(steps))
	for i, step := range steps {
		out[i] = byStep[step]
	}
	return out
}
