package xsdgraph

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp/syntax"
	"slices"
	"unicode"

	"github.com/lucasjones/reggen"
)

// patternAttempts bounds how many candidates are drawn per pattern.
const patternAttempts = 20

var errEmptyPattern = errors.New("pattern matches no string")

// patternGenerator produces strings matching XSD patterns. Candidates come
// from reggen over a rewritten pattern whose character classes are
// narrowed to readable ranges and to what base-type patterns allow.
type patternGenerator struct {
	rng *rand.Rand
	// extra caps the repetitions added beyond an operator's minimum.
	extra int
}

func newPatternGenerator(rng *rand.Rand) *patternGenerator {
	return &patternGenerator{rng: rng, extra: 3}
}

// Generate returns a value matching at least one of patterns and accepted
// by accept. The last candidate is returned with an error when no
// candidate is accepted.
func (g *patternGenerator) Generate(patterns []string, accept func(string) bool) (string, error) {
	return g.GenerateSteps([][]string{patterns}, accept)
}

// GenerateSteps is Generate for patterns grouped by derivation step, most
// derived first (Facets.PatternSteps). Candidates are drawn from the first
// step and must match one pattern of every step.
func (g *patternGenerator) GenerateSteps(steps [][]string, accept func(string) bool) (string, error) {
	if len(steps) == 0 || len(steps[0]) == 0 {
		return "", fmt.Errorf("no pattern to satisfy")
	}

	var bases [][]rune
	for _, step := range steps[1:] {
		if a, err := stepAlphabet(step); err == nil {
			bases = append(bases, a)
		}
	}
	matches := func(s string) error {
		for _, step := range steps {
			if err := (&PatternFacet{Patterns: step}).Validate(s, ""); err != nil {
				return err
			}
		}
		return nil
	}

	var (
		last    string
		lastErr error
	)
	for attempt := 0; attempt < patternAttempts; attempt++ {
		pattern := steps[0][g.rng.IntN(len(steps[0]))]
		tree, err := parsePattern(pattern)
		if err != nil {
			lastErr = err
			continue
		}

		// later attempts allow longer repetitions so minimum lengths can be met
		g.extra = 3 + attempt/2
		gen, err := reggen.NewGenerator(g.rewrite(tree, bases).String())
		if err != nil {
			lastErr = fmt.Errorf("pattern %q: %w", pattern, err)
			continue
		}
		gen.SetSeed(int64(g.rng.Uint64()))
		last = gen.Generate(g.extra)

		if err := matches(last); err != nil {
			lastErr = err
			continue
		}
		if accept == nil || accept(last) {
			return last, nil
		}
		lastErr = fmt.Errorf("no candidate for %q satisfies the remaining facets", pattern)
	}
	return last, lastErr
}

func parsePattern(pattern string) (*syntax.Regexp, error) {
	if _, err := CompilePattern(pattern); err != nil {
		return nil, err
	}
	tree, err := syntax.Parse(convertXSDRegex(pattern), syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	tree = tree.Simplify()
	if matchesNothing(tree) {
		return nil, fmt.Errorf("%w: %q", errEmptyPattern, pattern)
	}
	return tree, nil
}

func matchesNothing(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpNoMatch:
		return true
	case syntax.OpCharClass:
		return len(re.Rune) == 0
	case syntax.OpAlternate:
		return !slices.ContainsFunc(re.Sub, func(sub *syntax.Regexp) bool { return !matchesNothing(sub) })
	case syntax.OpStar, syntax.OpQuest:
		return false
	case syntax.OpRepeat:
		return re.Min > 0 && matchesNothing(re.Sub[0])
	}
	return slices.ContainsFunc(re.Sub, matchesNothing)
}

// rewrite copies re with bounded repetitions and every character class
// narrowed to the runes allowed by bases.
func (g *patternGenerator) rewrite(re *syntax.Regexp, bases [][]rune) *syntax.Regexp {
	out := &syntax.Regexp{Op: re.Op, Flags: re.Flags, Min: re.Min, Max: re.Max, Cap: re.Cap, Name: re.Name, Rune: re.Rune}
	switch re.Op {
	case syntax.OpCharClass:
		out.Rune = readable(restrict(re.Rune, bases))
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		out.Op = syntax.OpCharClass
		out.Rune = readable(restrict([]rune{'a', 'z'}, bases))
	case syntax.OpStar:
		out.Op, out.Min, out.Max = syntax.OpRepeat, 0, g.extra
	case syntax.OpPlus:
		out.Op, out.Min, out.Max = syntax.OpRepeat, 1, 1+g.extra
	case syntax.OpRepeat:
		if re.Max < 0 || re.Max > re.Min+g.extra {
			out.Max = re.Min + g.extra
		}
	}
	for _, sub := range re.Sub {
		out.Sub = append(out.Sub, g.rewrite(sub, bases))
	}
	return out
}

// stepAlphabet returns the runes the patterns of one step can produce, as
// sorted [lo, hi] pairs.
func stepAlphabet(patterns []string) ([]rune, error) {
	var pairs []rune
	var walk func(re *syntax.Regexp)
	walk = func(re *syntax.Regexp) {
		switch re.Op {
		case syntax.OpLiteral:
			for _, r := range re.Rune {
				pairs = append(pairs, r, r)
				if re.Flags&syntax.FoldCase != 0 {
					for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
						pairs = append(pairs, f, f)
					}
				}
			}
		case syntax.OpCharClass:
			pairs = append(pairs, re.Rune...)
		case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
			pairs = append(pairs, 0, unicode.MaxRune)
		}
		for _, sub := range re.Sub {
			walk(sub)
		}
	}
	for _, p := range patterns {
		tree, err := parsePattern(p)
		if err != nil {
			return nil, err
		}
		walk(tree)
	}
	return mergeRanges(pairs), nil
}

func mergeRanges(pairs []rune) []rune {
	ranges := make([][2]rune, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		ranges = append(ranges, [2]rune{pairs[i], pairs[i+1]})
	}
	slices.SortFunc(ranges, func(a, b [2]rune) int { return int(a[0] - b[0]) })
	var out []rune
	for _, r := range ranges {
		if n := len(out); n > 0 && r[0] <= out[n-1]+1 {
			out[n-1] = max(out[n-1], r[1])
			continue
		}
		out = append(out, r[0], r[1])
	}
	return out
}

func intersect(a, b []rune) []rune {
	var out []rune
	for i := 0; i+1 < len(a); i += 2 {
		for j := 0; j+1 < len(b); j += 2 {
			if lo, hi := max(a[i], b[j]), min(a[i+1], b[j+1]); lo <= hi {
				out = append(out, lo, hi)
			}
		}
	}
	return out
}

// restrict narrows class by each base alphabet, skipping a base that
// would leave nothing.
func restrict(class []rune, bases [][]rune) []rune {
	for _, base := range bases {
		if narrowed := intersect(class, base); len(narrowed) > 0 {
			class = narrowed
		}
	}
	return class
}

// preferred ranges, tried in order, keep generated text readable.
var preferredRanges = []rune{
	'a', 'z',
	'A', 'Z',
	'0', '9',
	'!', '~',
	0xA0, 0xD7FF,
}

// readable keeps the first preferred range the class overlaps. Classes of
// whitespace or supplementary-plane runes shrink to one printable rune.
func readable(class []rune) []rune {
	for i := 0; i+1 < len(preferredRanges); i += 2 {
		if r := intersect(class, preferredRanges[i:i+2]); len(r) > 0 {
			return r
		}
	}
	for i := 0; i+1 < len(class); i += 2 {
		if unicode.IsPrint(class[i]) || unicode.IsSpace(class[i]) {
			return []rune{class[i], class[i]}
		}
	}
	return class
}
