package xsdgraph

import (
	"encoding/base64"
	"fmt"
	"math/big"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FacetValidator validates a value against a facet constraint. base is the
// built-in ancestor of the value's type, or listBase for list values.
type FacetValidator interface {
	Validate(value string, base string) error
	Name() string
}

// listBase is the base passed to facets validating a whole list value.
const listBase = "#list"

var facetNames = []string{
	"pattern", "enumeration", "length", "minLength", "maxLength",
	"minInclusive", "maxInclusive", "minExclusive", "maxExclusive",
	"totalDigits", "fractionDigits", "whiteSpace", "explicitTimezone", "assertion",
}

func IsFacetName(name string) bool {
	return slices.Contains(facetNames, name)
}

// PatternFacet validates against the patterns of one derivation step; a
// value must match at least one of them.
type PatternFacet struct {
	Patterns []string
}

func (f *PatternFacet) Name() string {
	return "pattern"
}

func (f *PatternFacet) Validate(value string, base string) error {
	for _, p := range f.Patterns {
		re, err := CompilePattern(p)
		if err != nil {
			return err
		}
		if re.MatchString(value) {
			return nil
		}
	}
	return fmt.Errorf("value '%s' does not match pattern '%s'", value, strings.Join(f.Patterns, "|"))
}

var patternCache sync.Map

// CompilePattern compiles an XSD regular expression into an anchored Go
// regular expression.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile("^(?:" + convertXSDRegex(pattern) + ")$")
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	patternCache.Store(pattern, re)
	return re, nil
}

var blockEscapes = map[string]string{
	"IsBasicLatin":           `\x00-\x7F`,
	"IsLatin-1Supplement":    `\x{80}-\x{FF}`,
	"IsLatinExtended-A":      `\x{100}-\x{17F}`,
	"IsGreek":                `\x{370}-\x{3FF}`,
	"IsCyrillic":             `\x{400}-\x{4FF}`,
	"IsGeneralPunctuation":   `\x{2000}-\x{206F}`,
	"IsCJKUnifiedIdeographs": `\x{4E00}-\x{9FFF}`,
}

// convertXSDRegex rewrites the XSD regex dialect into RE2 syntax. XSD
// expressions are implicitly anchored, so ^ and $ are literals. Character
// class subtraction is dropped.
func convertXSDRegex(pattern string) string {
	var sb strings.Builder
	inClass := false
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes):
			next := runes[i+1]
			i++
			switch next {
			case 'i':
				sb.WriteString(classBody(inClass, `_:A-Za-z`))
			case 'I':
				sb.WriteString(`[^_:A-Za-z]`)
			case 'c':
				sb.WriteString(classBody(inClass, `\-._:A-Za-z0-9`))
			case 'C':
				sb.WriteString(`[^\-._:A-Za-z0-9]`)
			case 'p', 'P':
				end := i + 1
				if end < len(runes) && runes[end] == '{' {
					rbrace := slices.Index(runes[end:], '}')
					if rbrace > 0 {
						name := string(runes[end+1 : end+rbrace])
						if block, ok := blockEscapes[name]; ok {
							if next == 'p' {
								sb.WriteString(classBody(inClass, block))
							} else {
								sb.WriteString("[^" + block + "]")
							}
							i = end + rbrace
							continue
						}
					}
				}
				sb.WriteRune('\\')
				sb.WriteRune(next)
			default:
				sb.WriteRune('\\')
				sb.WriteRune(next)
			}
		case r == '[':
			if inClass {
				sb.WriteString(`\[`)
				continue
			}
			inClass = true
			sb.WriteRune(r)
			if i+1 < len(runes) && runes[i+1] == '^' {
				sb.WriteRune('^')
				i++
			}
		case r == ']':
			inClass = false
			sb.WriteRune(r)
		case inClass && r == '-' && i+1 < len(runes) && runes[i+1] == '[':
			depth := 0
			for i++; i < len(runes); i++ {
				if runes[i] == '[' {
					depth++
				} else if runes[i] == ']' {
					depth--
					if depth == 0 {
						break
					}
				}
			}
		case !inClass && (r == '^' || r == '$'):
			sb.WriteRune('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func classBody(inClass bool, body string) string {
	if inClass {
		return body
	}
	return "[" + body + "]"
}

// EnumerationFacet validates against a set of allowed values
type EnumerationFacet struct {
	Values []string
}

func (f *EnumerationFacet) Name() string {
	return "enumeration"
}

func (f *EnumerationFacet) Validate(value string, base string) error {
	if slices.Contains(f.Values, value) {
		return nil
	}
	if base != "" && base != listBase && !isStringFamily(base) {
		for _, allowed := range f.Values {
			if cmp, err := compareValues(value, allowed, base); err == nil && cmp == 0 {
				return nil
			}
		}
	}
	return fmt.Errorf("value '%s' is not in enumeration %v", value, f.Values)
}

// LengthFacet validates exact length
type LengthFacet struct {
	Value int
}

func (f *LengthFacet) Name() string {
	return "length"
}

func (f *LengthFacet) Validate(value string, base string) error {
	length := lengthOf(value, base)
	if length != f.Value {
		return fmt.Errorf("length must be exactly %d, got %d", f.Value, length)
	}
	return nil
}

// MinLengthFacet validates minimum length
type MinLengthFacet struct {
	Value int
}

func (f *MinLengthFacet) Name() string {
	return "minLength"
}

func (f *MinLengthFacet) Validate(value string, base string) error {
	length := lengthOf(value, base)
	if length < f.Value {
		return fmt.Errorf("length must be at least %d, got %d", f.Value, length)
	}
	return nil
}

// MaxLengthFacet validates maximum length
type MaxLengthFacet struct {
	Value int
}

func (f *MaxLengthFacet) Name() string {
	return "maxLength"
}

func (f *MaxLengthFacet) Validate(value string, base string) error {
	length := lengthOf(value, base)
	if length > f.Value {
		return fmt.Errorf("length must be at most %d, got %d", f.Value, length)
	}
	return nil
}

// lengthOf measures a value the way its type defines length: list items,
// binary octets, or characters.
func lengthOf(value string, base string) int {
	switch base {
	case listBase:
		return len(strings.Fields(value))
	case "hexBinary":
		return len(value) / 2
	case "base64Binary":
		raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(value), ""))
		if err != nil {
			return 0
		}
		return len(raw)
	}
	return len([]rune(value))
}

// MinInclusiveFacet validates minimum value (inclusive)
type MinInclusiveFacet struct {
	Value string
}

func (f *MinInclusiveFacet) Name() string {
	return "minInclusive"
}

func (f *MinInclusiveFacet) Validate(value string, base string) error {
	cmp, err := compareValues(value, f.Value, base)
	if err != nil {
		return err
	}
	if cmp < 0 {
		return fmt.Errorf("value must be >= %s, got %s", f.Value, value)
	}
	return nil
}

// MaxInclusiveFacet validates maximum value (inclusive)
type MaxInclusiveFacet struct {
	Value string
}

func (f *MaxInclusiveFacet) Name() string {
	return "maxInclusive"
}

func (f *MaxInclusiveFacet) Validate(value string, base string) error {
	cmp, err := compareValues(value, f.Value, base)
	if err != nil {
		return err
	}
	if cmp > 0 {
		return fmt.Errorf("value must be <= %s, got %s", f.Value, value)
	}
	return nil
}

// MinExclusiveFacet validates minimum value (exclusive)
type MinExclusiveFacet struct {
	Value string
}

func (f *MinExclusiveFacet) Name() string {
	return "minExclusive"
}

func (f *MinExclusiveFacet) Validate(value string, base string) error {
	cmp, err := compareValues(value, f.Value, base)
	if err != nil {
		return err
	}
	if cmp <= 0 {
		return fmt.Errorf("value must be > %s, got %s", f.Value, value)
	}
	return nil
}

// MaxExclusiveFacet validates maximum value (exclusive)
type MaxExclusiveFacet struct {
	Value string
}

func (f *MaxExclusiveFacet) Name() string {
	return "maxExclusive"
}

func (f *MaxExclusiveFacet) Validate(value string, base string) error {
	cmp, err := compareValues(value, f.Value, base)
	if err != nil {
		return err
	}
	if cmp >= 0 {
		return fmt.Errorf("value must be < %s, got %s", f.Value, value)
	}
	return nil
}

// TotalDigitsFacet validates total number of digits
type TotalDigitsFacet struct {
	Value int
}

func (f *TotalDigitsFacet) Name() string {
	return "totalDigits"
}

func (f *TotalDigitsFacet) Validate(value string, base string) error {
	intPart, fracPart, _ := strings.Cut(strings.TrimLeft(value, "+-"), ".")
	digits := strings.TrimLeft(intPart+strings.TrimRight(fracPart, "0"), "0")
	if digits == "" {
		digits = "0"
	}

	if len(digits) > f.Value {
		return fmt.Errorf("total digits must be at most %d, got %d", f.Value, len(digits))
	}
	return nil
}

// FractionDigitsFacet validates number of fraction digits
type FractionDigitsFacet struct {
	Value int
}

func (f *FractionDigitsFacet) Name() string {
	return "fractionDigits"
}

func (f *FractionDigitsFacet) Validate(value string, base string) error {
	_, frac, ok := strings.Cut(value, ".")
	if !ok {
		return nil
	}

	fractionDigits := len(strings.TrimRight(frac, "0"))
	if fractionDigits > f.Value {
		return fmt.Errorf("fraction digits must be at most %d, got %d", f.Value, fractionDigits)
	}
	return nil
}

// WhiteSpaceFacet handles whitespace normalization
type WhiteSpaceFacet struct {
	Value string // "preserve", "replace", or "collapse"
}

func (f *WhiteSpaceFacet) Name() string {
	return "whiteSpace"
}

// Validate is a no-op; normalization happens before the other facets run.
func (f *WhiteSpaceFacet) Validate(value string, base string) error {
	return nil
}

var timezoneSuffix = regexp.MustCompile(`(Z|[+-]\d{2}:\d{2})$`)

// ExplicitTimezoneFacet constrains the presence of a timezone offset on
// date/time values.
type ExplicitTimezoneFacet struct {
	Value string // "required", "prohibited" or "optional"
}

func (f *ExplicitTimezoneFacet) Name() string {
	return "explicitTimezone"
}

func (f *ExplicitTimezoneFacet) Validate(value string, base string) error {
	has := timezoneSuffix.MatchString(value)
	switch f.Value {
	case "required":
		if !has {
			return fmt.Errorf("value '%s' must carry a timezone", value)
		}
	case "prohibited":
		if has {
			return fmt.Errorf("value '%s' must not carry a timezone", value)
		}
	}
	return nil
}

// AssertionFacet holds an xs:assertion test. Assertions are recorded but
// never evaluated.
type AssertionFacet struct {
	Test string
}

func (f *AssertionFacet) Name() string {
	return "assertion"
}

func (f *AssertionFacet) Validate(value string, base string) error {
	return nil
}

// NormalizeWhiteSpace normalizes whitespace according to the facet value
func NormalizeWhiteSpace(value string, whiteSpace string) string {
	switch whiteSpace {
	case "replace":
		return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(value)
	case "collapse":
		return strings.Join(strings.Fields(value), " ")
	default:
		return value
	}
}

// compareValues compares two values in the value space of base.
func compareValues(v1, v2 string, base string) (int, error) {
	switch {
	case isNumericType(base):
		return compareNumeric(strings.TrimSpace(v1), strings.TrimSpace(v2))
	case isDateTimeType(base):
		t1, err1 := parseTemporal(v1, base)
		t2, err2 := parseTemporal(v2, base)
		if err1 == nil && err2 == nil {
			return t1.Compare(t2), nil
		}
	case base == "duration":
		return 0, fmt.Errorf("duration ordering is not supported")
	}
	return strings.Compare(v1, v2), nil
}

func compareNumeric(v1, v2 string) (int, error) {
	special := map[string]int{"-INF": -2, "INF": 2, "+INF": 2}
	s1, ok1 := special[v1]
	s2, ok2 := special[v2]
	if v1 == "NaN" || v2 == "NaN" {
		return 0, fmt.Errorf("NaN is not ordered")
	}
	if ok1 || ok2 {
		return cmpInt(s1, s2), nil
	}

	r1, ok := new(big.Rat).SetString(v1)
	if !ok {
		return 0, fmt.Errorf("invalid numeric value: %s", v1)
	}
	r2, ok := new(big.Rat).SetString(v2)
	if !ok {
		return 0, fmt.Errorf("invalid numeric value: %s", v2)
	}
	return r1.Cmp(r2), nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

var temporalLayouts = map[string][]string{
	"dateTime":   {"2006-01-02T15:04:05.999999999Z07:00", "2006-01-02T15:04:05.999999999"},
	"date":       {"2006-01-02Z07:00", "2006-01-02"},
	"time":       {"15:04:05.999999999Z07:00", "15:04:05.999999999"},
	"gYear":      {"2006Z07:00", "2006"},
	"gYearMonth": {"2006-01Z07:00", "2006-01"},
}

func parseTemporal(value, base string) (time.Time, error) {
	for _, layout := range temporalLayouts[base] {
		if t, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %s value %q", base, value)
}

var numericTypes = []string{
	"decimal", "integer", "float", "double",
	"nonPositiveInteger", "negativeInteger",
	"long", "int", "short", "byte",
	"nonNegativeInteger", "positiveInteger",
	"unsignedLong", "unsignedInt", "unsignedShort", "unsignedByte",
}

func isNumericType(typeName string) bool {
	return slices.Contains(numericTypes, typeName)
}

func isIntegerType(typeName string) bool {
	return isNumericType(typeName) && typeName != "decimal" && typeName != "float" && typeName != "double"
}

var dateTimeTypes = []string{
	"dateTime", "dateTimeStamp", "date", "time",
	"gYear", "gYearMonth", "gMonth", "gMonthDay", "gDay",
}

func isDateTimeType(typeName string) bool {
	return slices.Contains(dateTimeTypes, typeName)
}

func isStringFamily(typeName string) bool {
	switch typeName {
	case "string", "normalizedString", "token", "language", "Name", "NCName",
		"NMTOKEN", "ID", "IDREF", "ENTITY", "anyURI", "QName", "NOTATION", "anySimpleType":
		return true
	}
	return false
}

// ParseFacet builds the validator for a single facet occurrence.
func ParseFacet(name string, value string) FacetValidator {
	switch name {
	case "pattern":
		return &PatternFacet{Patterns: []string{value}}
	case "enumeration":
		return &EnumerationFacet{Values: []string{value}}
	case "length":
		if v, err := strconv.Atoi(value); err == nil {
			return &LengthFacet{Value: v}
		}
	case "minLength":
		if v, err := strconv.Atoi(value); err == nil {
			return &MinLengthFacet{Value: v}
		}
	case "maxLength":
		if v, err := strconv.Atoi(value); err == nil {
			return &MaxLengthFacet{Value: v}
		}
	case "minInclusive":
		return &MinInclusiveFacet{Value: value}
	case "maxInclusive":
		return &MaxInclusiveFacet{Value: value}
	case "minExclusive":
		return &MinExclusiveFacet{Value: value}
	case "maxExclusive":
		return &MaxExclusiveFacet{Value: value}
	case "totalDigits":
		if v, err := strconv.Atoi(value); err == nil {
			return &TotalDigitsFacet{Value: v}
		}
	case "fractionDigits":
		if v, err := strconv.Atoi(value); err == nil {
			return &FractionDigitsFacet{Value: v}
		}
	case "whiteSpace":
		return &WhiteSpaceFacet{Value: value}
	case "explicitTimezone":
		return &ExplicitTimezoneFacet{Value: value}
	case "assertion":
		return &AssertionFacet{Test: value}
	}
	return nil
}

// FacetValidators turns a facet multimap into validators. Enumerations
// are folded into one validator, patterns into one per derivation step.
func FacetValidators(facets *Facets) []FacetValidator {
	var out []FacetValidator
	for _, patterns := range facets.PatternSteps() {
		out = append(out, &PatternFacet{Patterns: patterns})
	}
	if enums := facets.Values("enumeration"); len(enums) > 0 {
		out = append(out, &EnumerationFacet{Values: enums})
	}
	for _, f := range facets.All() {
		if f.Name == "pattern" || f.Name == "enumeration" {
			continue
		}
		if v := ParseFacet(f.Name, f.Value); v != nil {
			out = append(out, v)
		}
	}
	return out
}

// ValidateFacets validates a value against a list of facets
func ValidateFacets(value string, facets []FacetValidator, base string) error {
	for _, f := range facets {
		if ws, ok := f.(*WhiteSpaceFacet); ok {
			value = NormalizeWhiteSpace(value, ws.Value)
			break
		}
	}

	for _, f := range facets {
		if err := f.Validate(value, base); err != nil {
			return fmt.Errorf("%s constraint violated: %v", f.Name(), err)
		}
	}

	return nil
}
