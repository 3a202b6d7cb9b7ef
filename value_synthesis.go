package xsdgraph

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var errUnsatisfiable = errors.New("facets cannot be satisfied")

// builtinDefaults are the literals used when no facet narrows a type.
var builtinDefaults = map[string]string{
	"anyType":            "sample",
	"anySimpleType":      "sample",
	"anyAtomicType":      "sample",
	"string":             "sample",
	"normalizedString":   "sample",
	"token":              "sample",
	"language":           "en",
	"Name":               "sample",
	"NCName":             "sample",
	"NMTOKEN":            "sample",
	"NMTOKENS":           "sample",
	"ENTITY":             "sample",
	"ENTITIES":           "sample",
	"QName":              "sample",
	"NOTATION":           "sample",
	"anyURI":             "http://example.com/",
	"boolean":            "false",
	"decimal":            "0",
	"float":              "0",
	"double":             "0",
	"duration":           "P1D",
	"dayTimeDuration":    "PT1H",
	"yearMonthDuration":  "P1Y",
	"hexBinary":          "0A1B",
	"base64Binary":       "c2FtcGxl",
	"gMonthDay":          "--01-15",
	"gDay":               "---15",
	"gMonth":             "--01",
}

// referenceTime anchors generated temporal values.
var referenceTime = time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC)

// valueSynthesizer derives literals from simple type descriptions.
type valueSynthesizer struct {
	rng      *rand.Rand
	patterns *patternGenerator
	// idref is called for every IDREF literal and returns a placeholder
	// that is replaced once all IDs are known.
	idref func() string
}

func newValueSynthesizer(rng *rand.Rand, idref func() string) *valueSynthesizer {
	return &valueSynthesizer{rng: rng, patterns: newPatternGenerator(rng), idref: idref}
}

// Value returns a literal for t. On error the returned literal is the best
// effort candidate.
func (v *valueSynthesizer) Value(t *TypeRef) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%w: no type", ErrUnresolvedType)
	}
	switch t.Kind {
	case ListKind:
		return v.list(t)
	case UnionKind:
		return v.union(t)
	case BuiltinKind, SimpleKind:
		return v.atomic(t)
	}
	return "", fmt.Errorf("%w: %s", ErrUnresolvedType, t)
}

func (v *valueSynthesizer) accepts(t *TypeRef) func(string) bool {
	return func(s string) bool { return ValidateValue(s, t) == nil }
}

func (v *valueSynthesizer) enumeration(t *TypeRef) (string, error) {
	values := Enumerations(t.Facets)
	start := v.rng.IntN(len(values))
	for i := range values {
		candidate := values[(start+i)%len(values)]
		if ValidateValue(candidate, t) == nil {
			return candidate, nil
		}
	}
	return values[start], fmt.Errorf("%w: no enumeration value of %s is valid", errUnsatisfiable, t)
}

func (v *valueSynthesizer) list(t *TypeRef) (string, error) {
	if len(Enumerations(t.Facets)) > 0 {
		return v.enumeration(t)
	}
	if len(Patterns(t.Facets)) > 0 {
		return v.patterns.GenerateSteps(t.Facets.PatternSteps(), v.accepts(t))
	}

	lo, hi, lenErr := lengthRange(t.Facets, 1, 2)
	count := max(lo, 0)
	if lenErr == nil {
		count += v.rng.IntN(hi - lo + 1)
	}
	items := make([]string, 0, count)
	for i := 0; i < count; i++ {
		item, err := v.Value(t.Item)
		if err != nil {
			return strings.Join(append(items, item), " "), err
		}
		items = append(items, item)
	}
	return strings.Join(items, " "), lenErr
}

func (v *valueSynthesizer) union(t *TypeRef) (string, error) {
	if len(Enumerations(t.Facets)) > 0 {
		return v.enumeration(t)
	}
	if len(Patterns(t.Facets)) > 0 {
		return v.patterns.GenerateSteps(t.Facets.PatternSteps(), v.accepts(t))
	}
	if len(t.Members) == 0 {
		return "", fmt.Errorf("union type %s has no member types", t)
	}

	// the first member is the default; later members are fallbacks
	var firstErr error
	var first string
	for i, m := range t.Members {
		value, err := v.Value(m)
		if err == nil && ValidateValue(value, t) == nil {
			return value, nil
		}
		if i == 0 {
			first, firstErr = value, err
		}
	}
	if firstErr == nil {
		firstErr = fmt.Errorf("%w: union %s", errUnsatisfiable, t)
	}
	return first, firstErr
}

func (v *valueSynthesizer) atomic(t *TypeRef) (string, error) {
	f := t.Facets
	base := t.Builtin

	if len(Enumerations(f)) > 0 {
		return v.enumeration(t)
	}
	if len(Patterns(f)) > 0 {
		return v.patterns.GenerateSteps(f.PatternSteps(), v.accepts(t))
	}

	if bt := GetBuiltinType(base); bt != nil && bt.ListOf != "" {
		item := builtinRef(bt.ListOf)
		return v.list(&TypeRef{Kind: ListKind, Name: t.Name, Builtin: base, Item: item, Facets: f})
	}

	var (
		value string
		err   error
	)
	switch {
	case base == "ID":
		value = v.id()
	case base == "IDREF":
		value = v.idref()
	case isNumericType(base):
		value, err = v.numeric(t)
	case isDateTimeType(base):
		value, err = v.temporal(t)
	case RestrictsLength(f):
		value, err = v.sized(t)
	default:
		value = builtinDefaults[base]
		if value == "" && base != "" {
			value = "sample"
		}
	}
	if err != nil {
		return value, err
	}
	if verr := ValidateValue(value, t); verr != nil {
		return value, fmt.Errorf("%w: %v", errUnsatisfiable, verr)
	}
	return value, nil
}

func (v *valueSynthesizer) id() string {
	id, err := uuid.NewRandomFromReader(randReader{v.rng})
	if err != nil {
		return fmt.Sprintf("id-%d", v.rng.Uint32())
	}
	return "id-" + id.String()
}

// lengthRange returns the allowed length interval from the length facets,
// defaulting to [def, def+spread].
func lengthRange(f *Facets, def, spread int) (int, int, error) {
	atoi := func(name string) (int, bool) {
		s, ok := f.Get(name)
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		return n, err == nil
	}
	if n, ok := atoi("length"); ok {
		return n, n, nil
	}
	lo, hasLo := atoi("minLength")
	hi, hasHi := atoi("maxLength")
	switch {
	case !hasLo && !hasHi:
		return def, def + spread, nil
	case !hasLo:
		lo = min(def, hi)
	case !hasHi:
		hi = lo + spread
	}
	if lo > hi {
		return lo, hi, fmt.Errorf("%w: minLength %d exceeds maxLength %d", errUnsatisfiable, lo, hi)
	}
	return lo, hi, nil
}

// sized builds a string-family or binary literal honoring length facets.
func (v *valueSynthesizer) sized(t *TypeRef) (string, error) {
	// contradictory lengths still yield a literal of minLength
	lo, hi, err := lengthRange(t.Facets, 6, 4)
	n := max(lo, 0)
	if err == nil {
		n += v.rng.IntN(hi - lo + 1)
	}

	switch t.Builtin {
	case "hexBinary":
		buf := make([]byte, n)
		randReader{v.rng}.Read(buf)
		return strings.ToUpper(hex.EncodeToString(buf)), err
	case "base64Binary":
		buf := make([]byte, n)
		randReader{v.rng}.Read(buf)
		return base64.StdEncoding.EncodeToString(buf), err
	}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteRune(rune('a' + v.rng.IntN(26)))
	}
	return sb.String(), err
}

// numeric picks a number inside the range facets. Values are drawn as
// integers in units of 10^-fractionDigits; without range facets the value
// closest to zero within the built-in bounds is used.
func (v *valueSynthesizer) numeric(t *TypeRef) (string, error) {
	f := t.Facets
	base := t.Builtin

	fd := 2
	if isIntegerType(base) {
		fd = 0
	} else if s, ok := f.Get("fractionDigits"); ok {
		if n, err := strconv.Atoi(s); err == nil {
			fd = min(n, 6)
		}
	}
	scale := new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(fd)), nil))

	var lo, hi *big.Int
	tighten := func(bound *big.Int, lower bool) {
		switch {
		case bound == nil:
		case lower && (lo == nil || bound.Cmp(lo) > 0):
			lo = bound
		case !lower && (hi == nil || bound.Cmp(hi) < 0):
			hi = bound
		}
	}
	units := func(s string, lower, exclusive bool) *big.Int {
		r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
		if !ok {
			return nil
		}
		r.Mul(r, scale)
		q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
		// q is truncated toward zero; adjust to floor or ceil
		exact := m.Sign() == 0
		if !exact && r.Sign() < 0 && !lower {
			q.Sub(q, big.NewInt(1))
		}
		if !exact && r.Sign() > 0 && lower {
			q.Add(q, big.NewInt(1))
		}
		if exclusive && exact {
			if lower {
				q.Add(q, big.NewInt(1))
			} else {
				q.Sub(q, big.NewInt(1))
			}
		}
		return q
	}

	ranged := false
	for name, bound := range map[string][2]bool{
		"minInclusive": {true, false},
		"minExclusive": {true, true},
		"maxInclusive": {false, false},
		"maxExclusive": {false, true},
	} {
		if s, ok := f.Get(name); ok {
			ranged = true
			tighten(units(s, bound[0], bound[1]), bound[0])
		}
	}
	if blo, bhi := BuiltinBounds(base); blo != "" || bhi != "" {
		if blo != "" {
			tighten(units(blo, true, false), true)
		}
		if bhi != "" {
			tighten(units(bhi, false, false), false)
		}
	}
	if s, ok := f.Get("totalDigits"); ok {
		if n, err := strconv.Atoi(s); err == nil {
			limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
			limit.Sub(limit, big.NewInt(1))
			tighten(new(big.Int).Neg(limit), true)
			tighten(limit, false)
		}
	}

	if lo != nil && hi != nil && lo.Cmp(hi) > 0 {
		return "", fmt.Errorf("%w: empty numeric range for %s", errUnsatisfiable, t)
	}

	var n *big.Int
	switch {
	case !ranged:
		n = big.NewInt(0)
		if lo != nil && n.Cmp(lo) < 0 {
			n = lo
		}
		if hi != nil && n.Cmp(hi) > 0 {
			n = hi
		}
	case lo != nil && hi != nil:
		span := new(big.Int).Sub(hi, lo)
		n = new(big.Int).Add(lo, v.below(span))
	case lo != nil:
		n = new(big.Int).Add(lo, big.NewInt(v.rng.Int64N(100)))
	case hi != nil:
		n = new(big.Int).Sub(hi, big.NewInt(v.rng.Int64N(100)))
	default:
		n = big.NewInt(v.rng.Int64N(100))
	}
	return formatUnits(n, fd), nil
}

// below returns a uniform integer in [0, span].
func (v *valueSynthesizer) below(span *big.Int) *big.Int {
	limit := new(big.Int).Add(span, big.NewInt(1))
	if limit.IsInt64() {
		return big.NewInt(v.rng.Int64N(limit.Int64()))
	}
	return big.NewInt(v.rng.Int64N(1 << 62))
}

func formatUnits(n *big.Int, fd int) string {
	if fd == 0 {
		return n.String()
	}
	r := new(big.Rat).SetFrac(n, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(fd)), nil))
	s := r.FloatString(fd)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

var temporalFormats = map[string]string{
	"dateTime":      "2006-01-02T15:04:05",
	"dateTimeStamp": "2006-01-02T15:04:05",
	"date":          "2006-01-02",
	"time":          "15:04:05",
	"gYear":         "2006",
	"gYearMonth":    "2006-01",
}

// temporal produces a date/time literal inside the range facets and
// applies the explicitTimezone policy.
func (v *valueSynthesizer) temporal(t *TypeRef) (string, error) {
	base := t.Builtin
	layout, ok := temporalFormats[base]
	if !ok {
		return v.zoned(builtinDefaults[base], t), nil
	}

	step := func(tm time.Time, n int) time.Time {
		switch base {
		case "gYear":
			return tm.AddDate(n, 0, 0)
		case "gYearMonth":
			return tm.AddDate(0, n, 0)
		case "date":
			return tm.AddDate(0, 0, n)
		}
		return tm.Add(time.Duration(n) * time.Second)
	}

	value := referenceTime.AddDate(0, 0, v.rng.IntN(365))
	if base == "time" {
		// time values parse with year 0; keep the comparison in that frame
		value = time.Date(0, 1, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(v.rng.IntN(8*3600)) * time.Second)
	}

	bound := func(name string) (time.Time, bool) {
		s, ok := t.Facets.Get(name)
		if !ok {
			return time.Time{}, false
		}
		tm, err := parseTemporal(s, base)
		return tm.UTC(), err == nil
	}
	if lo, ok := bound("minInclusive"); ok && value.Before(lo) {
		value = lo
	}
	if lo, ok := bound("minExclusive"); ok && !value.After(lo) {
		value = step(lo, 1)
	}
	if hi, ok := bound("maxInclusive"); ok && value.After(hi) {
		value = hi
	}
	if hi, ok := bound("maxExclusive"); ok && !value.Before(hi) {
		value = step(hi, -1)
	}
	if base == "time" {
		value = time.Date(0, 1, 1, value.Hour(), value.Minute(), value.Second(), 0, time.UTC)
	}
	return v.zoned(value.Format(layout), t), nil
}

// zoned applies the explicitTimezone policy to a literal without offset.
func (v *valueSynthesizer) zoned(value string, t *TypeRef) string {
	value = timezoneSuffix.ReplaceAllString(value, "")
	switch TimezonePolicy(t.Facets) {
	case "required":
		return value + "Z"
	case "prohibited":
		return value
	}
	if t.Builtin == "dateTimeStamp" {
		return value + "Z"
	}
	return value
}

// randReader adapts a seeded generator to io.Reader for uuid.
type randReader struct {
	rng *rand.Rand
}

func (r randReader) Read(p []byte) (int, error) {
	for i := 0; i < len(p); i += 8 {
		n := r.rng.Uint64()
		for j := 0; j < 8 && i+j < len(p); j++ {
			p[i+j] = byte(n >> (8 * j))
		}
	}
	return len(p), nil
}
