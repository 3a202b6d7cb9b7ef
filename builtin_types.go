package xsdgraph

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// BuiltinType represents a built-in XSD type
type BuiltinType struct {
	Name       string
	Base       string // parent in the built-in derivation tree
	Validator  func(value string) error
	WhiteSpace string
	// Min and Max bound the value space of the bounded integer types.
	Min, Max string
	// ListOf is the item type of the built-in list types.
	ListOf string
}

var builtinTypes = map[string]*BuiltinType{}

func init() {
	registerBuiltinTypes()
}

func register(name, base string, validator func(string) error) *BuiltinType {
	bt := &BuiltinType{Name: name, Base: base, Validator: validator, WhiteSpace: "collapse"}
	builtinTypes[name] = bt
	return bt
}

func registerBuiltinTypes() {
	register("anyType", "", validateString).WhiteSpace = "preserve"
	register("anySimpleType", "anyType", validateString).WhiteSpace = "preserve"
	register("anyAtomicType", "anySimpleType", validateString).WhiteSpace = "preserve"

	// Primitive types
	register("string", "anyAtomicType", validateString).WhiteSpace = "preserve"
	register("boolean", "anyAtomicType", validateBoolean)
	register("decimal", "anyAtomicType", validateDecimal)
	register("float", "anyAtomicType", validateFloat)
	register("double", "anyAtomicType", validateDouble)
	register("duration", "anyAtomicType", validateDuration)
	register("dateTime", "anyAtomicType", validateDateTime)
	register("time", "anyAtomicType", validateTime)
	register("date", "anyAtomicType", validateDate)
	register("gYearMonth", "anyAtomicType", validateGYearMonth)
	register("gYear", "anyAtomicType", validateGYear)
	register("gMonthDay", "anyAtomicType", validateGMonthDay)
	register("gDay", "anyAtomicType", validateGDay)
	register("gMonth", "anyAtomicType", validateGMonth)
	register("hexBinary", "anyAtomicType", validateHexBinary)
	register("base64Binary", "anyAtomicType", validateBase64Binary)
	register("anyURI", "anyAtomicType", validateAnyURI)
	register("QName", "anyAtomicType", validateQName)
	register("NOTATION", "anyAtomicType", validateQName)

	// XSD 1.1 additions
	register("dateTimeStamp", "dateTime", validateDateTimeStamp)
	register("dayTimeDuration", "duration", validateDayTimeDuration)
	register("yearMonthDuration", "duration", validateYearMonthDuration)

	// Derived types - strings
	register("normalizedString", "string", validateNormalizedString).WhiteSpace = "replace"
	register("token", "normalizedString", validateToken)
	register("language", "token", validateLanguage)
	register("Name", "token", validateName)
	register("NCName", "Name", validateNCName)
	register("ID", "NCName", validateNCName)
	register("IDREF", "NCName", validateNCName)
	register("ENTITY", "NCName", validateNCName)
	register("NMTOKEN", "token", validateNMTOKEN)
	register("IDREFS", "anySimpleType", listOf(validateNCName, "IDREFS")).ListOf = "IDREF"
	register("ENTITIES", "anySimpleType", listOf(validateNCName, "ENTITIES")).ListOf = "ENTITY"
	register("NMTOKENS", "anySimpleType", listOf(validateNMTOKEN, "NMTOKENS")).ListOf = "NMTOKEN"

	// Derived types - numeric
	register("integer", "decimal", validateInteger)
	bounded("nonPositiveInteger", "integer", "", "0")
	bounded("negativeInteger", "nonPositiveInteger", "", "-1")
	bounded("long", "integer", "-9223372036854775808", "9223372036854775807")
	bounded("int", "long", "-2147483648", "2147483647")
	bounded("short", "int", "-32768", "32767")
	bounded("byte", "short", "-128", "127")
	bounded("nonNegativeInteger", "integer", "0", "")
	bounded("unsignedLong", "nonNegativeInteger", "0", "18446744073709551615")
	bounded("unsignedInt", "unsignedLong", "0", "4294967295")
	bounded("unsignedShort", "unsignedInt", "0", "65535")
	bounded("unsignedByte", "unsignedShort", "0", "255")
	bounded("positiveInteger", "nonNegativeInteger", "1", "")
}

func bounded(name, base, lo, hi string) {
	bt := register(name, base, nil)
	bt.Min, bt.Max = lo, hi
	bt.Validator = func(value string) error {
		return validateIntegerRange(name, value, lo, hi)
	}
}

// GetBuiltinType returns a built-in type validator
func GetBuiltinType(name string) *BuiltinType {
	if idx := strings.Index(name, ":"); idx >= 0 {
		name = name[idx+1:]
	}
	return builtinTypes[name]
}

// IsBuiltinType checks if a type is a built-in XSD type
func IsBuiltinType(name string) bool {
	return GetBuiltinType(name) != nil
}

// IsBuiltinQName reports whether q names a type in the XSD namespace.
func IsBuiltinQName(q QName) bool {
	return q.Namespace == XSDNamespace && IsBuiltinType(q.Local)
}

// BuiltinDerivesFrom reports whether name equals ancestor or is derived from it.
func BuiltinDerivesFrom(name, ancestor string) bool {
	for bt := GetBuiltinType(name); bt != nil; bt = GetBuiltinType(bt.Base) {
		if bt.Name == ancestor {
			return true
		}
		if bt.Base == "" {
			break
		}
	}
	return false
}

// BuiltinBounds returns the tightest integer bounds of name along its
// derivation chain; empty strings mean unbounded.
func BuiltinBounds(name string) (lo, hi string) {
	for bt := GetBuiltinType(name); bt != nil; bt = GetBuiltinType(bt.Base) {
		if lo == "" {
			lo = bt.Min
		}
		if hi == "" {
			hi = bt.Max
		}
		if bt.Base == "" {
			break
		}
	}
	return lo, hi
}

// Primitive type validators

var (
	decimalPattern    = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
	floatPattern      = regexp.MustCompile(`^([+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?|[+-]?INF|NaN)$`)
	durationPattern   = regexp.MustCompile(`^-?P(\d+Y)?(\d+M)?(\d+D)?(T(\d+H)?(\d+M)?(\d+(\.\d+)?S)?)?$`)
	timePattern       = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})(\.\d+)?(Z|[+-]\d{2}:\d{2})?$`)
	datePattern       = regexp.MustCompile(`^(-?\d{4,})-(\d{2})-(\d{2})(Z|[+-]\d{2}:\d{2})?$`)
	dateTimePattern   = regexp.MustCompile(`^(-?\d{4,}-\d{2}-\d{2})T(\d{2}:\d{2}:\d{2}(\.\d+)?)(Z|[+-]\d{2}:\d{2})?$`)
	gYearMonthPattern = regexp.MustCompile(`^-?\d{4,}-(\d{2})(Z|[+-]\d{2}:\d{2})?$`)
	gYearPattern      = regexp.MustCompile(`^-?\d{4,}(Z|[+-]\d{2}:\d{2})?$`)
	gMonthDayPattern  = regexp.MustCompile(`^--(\d{2})-(\d{2})(Z|[+-]\d{2}:\d{2})?$`)
	gDayPattern       = regexp.MustCompile(`^---(\d{2})(Z|[+-]\d{2}:\d{2})?$`)
	gMonthPattern     = regexp.MustCompile(`^--(\d{2})(Z|[+-]\d{2}:\d{2})?$`)
	languagePattern   = regexp.MustCompile(`^[a-zA-Z]{1,8}(-[a-zA-Z0-9]{1,8})*$`)
)

func validateString(value string) error {
	return nil
}

func validateBoolean(value string) error {
	switch value {
	case "true", "false", "1", "0":
		return nil
	default:
		return fmt.Errorf("invalid boolean value: %s", value)
	}
}

func validateDecimal(value string) error {
	if !decimalPattern.MatchString(value) {
		return fmt.Errorf("invalid decimal value: %s", value)
	}
	return nil
}

func validateFloat(value string) error {
	if !floatPattern.MatchString(value) {
		return fmt.Errorf("invalid float value: %s", value)
	}
	return nil
}

func validateDouble(value string) error {
	if !floatPattern.MatchString(value) {
		return fmt.Errorf("invalid double value: %s", value)
	}
	return nil
}

func validateDuration(value string) error {
	if !durationPattern.MatchString(value) {
		return fmt.Errorf("invalid duration value: %s", value)
	}
	body := strings.TrimPrefix(value, "-")
	if body == "P" || strings.HasSuffix(body, "T") {
		return fmt.Errorf("duration must have at least one time component: %s", value)
	}
	return nil
}

func validateDayTimeDuration(value string) error {
	if err := validateDuration(value); err != nil {
		return err
	}
	datePart, _, _ := strings.Cut(value, "T")
	if strings.ContainsAny(datePart, "YM") {
		return fmt.Errorf("dayTimeDuration cannot have year or month components: %s", value)
	}
	return nil
}

func validateYearMonthDuration(value string) error {
	if err := validateDuration(value); err != nil {
		return err
	}
	if strings.ContainsAny(value, "DT") {
		return fmt.Errorf("yearMonthDuration can only have year and month components: %s", value)
	}
	return nil
}

func validateDateTime(value string) error {
	m := dateTimePattern.FindStringSubmatch(value)
	if m == nil {
		return fmt.Errorf("invalid dateTime value: %s", value)
	}
	if err := validateDate(m[1]); err != nil {
		return fmt.Errorf("invalid dateTime value: %s", value)
	}
	if m[2][:8] == "24:00:00" {
		return nil
	}
	if err := validateTime(m[2]); err != nil {
		return fmt.Errorf("invalid dateTime value: %s", value)
	}
	return nil
}

func validateDateTimeStamp(value string) error {
	if err := validateDateTime(value); err != nil {
		return err
	}
	if !timezoneSuffix.MatchString(value) {
		return fmt.Errorf("dateTimeStamp requires a timezone: %s", value)
	}
	return nil
}

func validateTime(value string) error {
	m := timePattern.FindStringSubmatch(value)
	if m == nil {
		return fmt.Errorf("invalid time value: %s", value)
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	second, _ := strconv.Atoi(m[3])
	if hour > 23 || minute > 59 || second > 59 {
		return fmt.Errorf("invalid time value: %s", value)
	}
	return nil
}

func validateDate(value string) error {
	m := datePattern.FindStringSubmatch(value)
	if m == nil {
		return fmt.Errorf("invalid date value: %s", value)
	}

	// Years outside 0001-9999 only get the lexical check.
	if strings.HasPrefix(m[1], "-") || len(m[1]) > 4 {
		return nil
	}
	if _, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3]); err != nil {
		return fmt.Errorf("invalid date value: %s", value)
	}
	return nil
}

func validateGYearMonth(value string) error {
	m := gYearMonthPattern.FindStringSubmatch(value)
	if m == nil || !inRange(m[1], 1, 12) {
		return fmt.Errorf("invalid gYearMonth value: %s", value)
	}
	return nil
}

func validateGYear(value string) error {
	if !gYearPattern.MatchString(value) {
		return fmt.Errorf("invalid gYear value: %s", value)
	}
	return nil
}

func validateGMonthDay(value string) error {
	m := gMonthDayPattern.FindStringSubmatch(value)
	if m == nil || !inRange(m[1], 1, 12) || !inRange(m[2], 1, 31) {
		return fmt.Errorf("invalid gMonthDay value: %s", value)
	}
	return nil
}

func validateGDay(value string) error {
	m := gDayPattern.FindStringSubmatch(value)
	if m == nil || !inRange(m[1], 1, 31) {
		return fmt.Errorf("invalid gDay value: %s", value)
	}
	return nil
}

func validateGMonth(value string) error {
	m := gMonthPattern.FindStringSubmatch(value)
	if m == nil || !inRange(m[1], 1, 12) {
		return fmt.Errorf("invalid gMonth value: %s", value)
	}
	return nil
}

func inRange(digits string, lo, hi int) bool {
	n, err := strconv.Atoi(digits)
	return err == nil && n >= lo && n <= hi
}

func validateHexBinary(value string) error {
	if len(value)%2 != 0 {
		return fmt.Errorf("hexBinary must have even number of characters: %s", value)
	}
	if _, err := hex.DecodeString(value); err != nil {
		return fmt.Errorf("invalid hexBinary value: %s", value)
	}
	return nil
}

func validateBase64Binary(value string) error {
	if _, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(value), "")); err != nil {
		return fmt.Errorf("invalid base64Binary value: %s", value)
	}
	return nil
}

func validateAnyURI(value string) error {
	if strings.ContainsAny(value, "<>\"{}|\\^`") {
		return fmt.Errorf("invalid anyURI value: %s", value)
	}
	return nil
}

func validateQName(value string) error {
	parts := strings.Split(value, ":")
	if len(parts) > 2 {
		return fmt.Errorf("invalid QName: too many colons: %s", value)
	}
	for _, part := range parts {
		if err := validateNCName(part); err != nil {
			return fmt.Errorf("invalid QName: %s", value)
		}
	}
	return nil
}

// String derived type validators

func validateNormalizedString(value string) error {
	if strings.ContainsAny(value, "\r\n\t") {
		return fmt.Errorf("normalizedString cannot contain CR, LF, or TAB")
	}
	return nil
}

func validateToken(value string) error {
	if err := validateNormalizedString(value); err != nil {
		return err
	}
	if strings.HasPrefix(value, " ") || strings.HasSuffix(value, " ") {
		return fmt.Errorf("token cannot have leading or trailing spaces")
	}
	if strings.Contains(value, "  ") {
		return fmt.Errorf("token cannot have multiple consecutive spaces")
	}
	return nil
}

func validateLanguage(value string) error {
	if !languagePattern.MatchString(value) {
		return fmt.Errorf("invalid language tag: %s", value)
	}
	return nil
}

func isNameStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == ':'
}

func isNameChar(r rune) bool {
	return isNameStart(r) || unicode.IsDigit(r) || r == '.' || r == '-' || unicode.Is(unicode.Mn, r)
}

func validateName(value string) error {
	if value == "" {
		return fmt.Errorf("Name cannot be empty")
	}
	for i, r := range value {
		if i == 0 && !isNameStart(r) {
			return fmt.Errorf("Name must start with letter, underscore, or colon: %s", value)
		}
		if !isNameChar(r) {
			return fmt.Errorf("invalid character in Name: %s", string(r))
		}
	}
	return nil
}

func validateNCName(value string) error {
	if err := validateName(value); err != nil {
		return err
	}
	if strings.Contains(value, ":") {
		return fmt.Errorf("NCName cannot contain colons: %s", value)
	}
	return nil
}

func validateNMTOKEN(value string) error {
	if value == "" {
		return fmt.Errorf("NMTOKEN cannot be empty")
	}
	for _, r := range value {
		if !isNameChar(r) {
			return fmt.Errorf("invalid character in NMTOKEN: %s", string(r))
		}
	}
	return nil
}

func listOf(item func(string) error, name string) func(string) error {
	return func(value string) error {
		items := strings.Fields(value)
		if len(items) == 0 {
			return fmt.Errorf("%s cannot be empty", name)
		}
		for _, it := range items {
			if err := item(it); err != nil {
				return err
			}
		}
		return nil
	}
}

// Numeric derived type validators

func validateInteger(value string) error {
	if _, ok := new(big.Int).SetString(strings.TrimPrefix(value, "+"), 10); !ok {
		return fmt.Errorf("invalid integer value: %s", value)
	}
	return nil
}

func validateIntegerRange(name, value, lo, hi string) error {
	i, ok := new(big.Int).SetString(strings.TrimPrefix(value, "+"), 10)
	if !ok {
		return fmt.Errorf("invalid %s value: %s", name, value)
	}
	if lo != "" {
		lower, _ := new(big.Int).SetString(lo, 10)
		if i.Cmp(lower) < 0 {
			return fmt.Errorf("%s value out of range: %s", name, value)
		}
	}
	if hi != "" {
		upper, _ := new(big.Int).SetString(hi, 10)
		if i.Cmp(upper) > 0 {
			return fmt.Errorf("%s value out of range: %s", name, value)
		}
	}
	return nil
}
