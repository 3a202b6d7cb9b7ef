package xsdgraph

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// SchemaProblem is a structural error in a schema document.
type SchemaProblem struct {
	Component string // local name of the offending XSD element
	Name      string
	Line      int
	Column    int
	Message   string
}

func (p *SchemaProblem) Error() string {
	where := "<" + p.Component
	if p.Name != "" {
		where += fmt.Sprintf(" name='%s'", p.Name)
	}
	where += ">"
	if p.Line > 0 {
		return fmt.Sprintf("%d:%d: %s: %s", p.Line, p.Column, where, p.Message)
	}
	return fmt.Sprintf("%s: %s", where, p.Message)
}

// SchemaValidator checks a schema document against the structural rules
// of XSD 1.0 and 1.1 before it is parsed into a Schema.
type SchemaValidator struct {
	errors []error
	idMap  map[string]xmldom.Element
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{idMap: make(map[string]xmldom.Element)}
}

type schemaRule func(sv *SchemaValidator, elem xmldom.Element)

var schemaRules = map[string]schemaRule{
	"schema":         nil,
	"annotation":     nil,
	"documentation":  nil,
	"appinfo":        nil,
	"import":         nil,
	"simpleType":     (*SchemaValidator).checkSimpleType,
	"complexType":    (*SchemaValidator).checkComplexType,
	"element":        (*SchemaValidator).checkElement,
	"attribute":      (*SchemaValidator).checkAttribute,
	"restriction":    (*SchemaValidator).checkRestriction,
	"extension":      requireAttrs("base"),
	"sequence":       (*SchemaValidator).checkOccurrences,
	"choice":         (*SchemaValidator).checkOccurrences,
	"all":            (*SchemaValidator).checkAll,
	"group":          (*SchemaValidator).checkNamedOrRef,
	"attributeGroup": (*SchemaValidator).checkNamedOrRef,
	"include":        requireAttrs("schemaLocation"),
	"redefine":       requireAttrs("schemaLocation"),
	"override":       requireAttrs("schemaLocation"),
	"any":            (*SchemaValidator).checkWildcard,
	"anyAttribute":   (*SchemaValidator).checkWildcard,
	"unique":         (*SchemaValidator).checkIdentityConstraint,
	"key":            (*SchemaValidator).checkIdentityConstraint,
	"keyref":         (*SchemaValidator).checkIdentityConstraint,
	"selector":       requireAttrs("xpath"),
	"field":          requireAttrs("xpath"),
	"notation":       (*SchemaValidator).checkNotation,
	"union":          (*SchemaValidator).checkUnion,
	"list":           (*SchemaValidator).checkList,
	"simpleContent":  (*SchemaValidator).checkDerivation,
	"complexContent": (*SchemaValidator).checkDerivation,

	// XSD 1.1
	"alternative":        nil,
	"assert":             requireAttrs("test"),
	"assertion":          requireAttrs("test"),
	"openContent":        nil,
	"defaultOpenContent": nil,
	"explicitTimezone":   (*SchemaValidator).checkFacet,
}

func init() {
	for _, name := range facetNames {
		if name == "assertion" {
			continue
		}
		schemaRules[name] = (*SchemaValidator).checkFacet
	}
}

// ValidateSchema returns the structural problems of a schema document.
func (sv *SchemaValidator) ValidateSchema(doc xmldom.Document) []error {
	sv.errors = nil
	sv.idMap = make(map[string]xmldom.Element)

	if doc == nil {
		return []error{fmt.Errorf("nil document")}
	}
	root := doc.DocumentElement()
	if root == nil {
		return []error{ErrNoRoot}
	}
	if string(root.NamespaceURI()) != XSDNamespace || string(root.LocalName()) != "schema" {
		return []error{ErrNotSchema}
	}

	sv.walk(root)
	return sv.errors
}

func (sv *SchemaValidator) walk(elem xmldom.Element) {
	sv.checkID(elem)

	if string(elem.NamespaceURI()) == XSDNamespace {
		name := string(elem.LocalName())
		rule, known := schemaRules[name]
		switch {
		case !known:
			sv.problem(elem, "unknown XSD element: %s", name)
		case rule != nil:
			rule(sv, elem)
		}
		// appinfo and documentation hold foreign content
		if name == "appinfo" || name == "documentation" {
			return
		}
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		if child := children.Item(i); child != nil {
			sv.walk(child)
		}
	}
}

var ncName = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}._\-\x{B7}]*$`)

func isValidNCName(s string) bool {
	return ncName.MatchString(s)
}

func (sv *SchemaValidator) checkID(elem xmldom.Element) {
	if !elem.HasAttribute("id") {
		return
	}
	id := string(elem.GetAttribute("id"))
	switch {
	case !isValidNCName(id):
		sv.problem(elem, "invalid id value '%s': must be a valid NCName", id)
	case sv.idMap[id] != nil:
		sv.problem(elem, "duplicate id value '%s'", id)
	default:
		sv.idMap[id] = elem
	}
}

func requireAttrs(names ...string) schemaRule {
	return func(sv *SchemaValidator, elem xmldom.Element) {
		for _, name := range names {
			if string(elem.GetAttribute(xmldom.DOMString(name))) == "" {
				sv.problem(elem, "%s must have '%s' attribute", elem.LocalName(), name)
			}
		}
	}
}

func isGlobal(elem xmldom.Element) bool {
	parent := elem.ParentNode()
	return parent != nil && string(parent.LocalName()) == "schema"
}

// xsdChildren returns the local names of elem's XSD children, skipping annotations.
func xsdChildren(elem xmldom.Element) []string {
	var names []string
	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace || string(child.LocalName()) == "annotation" {
			continue
		}
		names = append(names, string(child.LocalName()))
	}
	return names
}

func countOf(names []string, want ...string) int {
	n := 0
	for _, name := range names {
		if slices.Contains(want, name) {
			n++
		}
	}
	return n
}

func (sv *SchemaValidator) checkTypeName(elem xmldom.Element) {
	name := string(elem.GetAttribute("name"))
	switch {
	case isGlobal(elem) && name == "":
		sv.problem(elem, "global %s must have a name attribute", elem.LocalName())
	case isGlobal(elem) && !isValidNCName(name):
		sv.problem(elem, "invalid %s name '%s': must be a valid NCName", elem.LocalName(), name)
	case !isGlobal(elem) && name != "":
		sv.problem(elem, "local %s must not have a name attribute", elem.LocalName())
	}
}

func (sv *SchemaValidator) checkBool(elem xmldom.Element, names ...string) {
	for _, name := range names {
		switch v := string(elem.GetAttribute(xmldom.DOMString(name))); v {
		case "", "true", "false", "1", "0":
		default:
			sv.problem(elem, "invalid %s value '%s': must be a boolean", name, v)
		}
	}
}

func (sv *SchemaValidator) checkSimpleType(elem xmldom.Element) {
	sv.checkTypeName(elem)
	switch n := countOf(xsdChildren(elem), "restriction", "list", "union"); {
	case n == 0:
		sv.problem(elem, "simpleType must have exactly one of: restriction, list or union")
	case n > 1:
		sv.problem(elem, "simpleType cannot have more than one of: restriction, list or union")
	}
}

func (sv *SchemaValidator) checkComplexType(elem xmldom.Element) {
	sv.checkTypeName(elem)
	sv.checkBool(elem, "mixed", "abstract")
}

func (sv *SchemaValidator) checkNameRef(elem xmldom.Element) (name, ref string) {
	name, ref = string(elem.GetAttribute("name")), string(elem.GetAttribute("ref"))
	if name != "" && ref != "" {
		sv.problem(elem, "%s cannot have both 'name' and 'ref' attributes", elem.LocalName())
	}
	if name != "" && !isValidNCName(name) {
		sv.problem(elem, "invalid %s name '%s': must be a valid NCName", elem.LocalName(), name)
	}
	return name, ref
}

func (sv *SchemaValidator) checkNamedOrRef(elem xmldom.Element) {
	name, ref := sv.checkNameRef(elem)
	if name == "" && ref == "" {
		if isGlobal(elem) {
			sv.problem(elem, "global %s must have a name attribute", elem.LocalName())
		} else {
			sv.problem(elem, "%s reference must have 'ref' attribute", elem.LocalName())
		}
	}
	if string(elem.LocalName()) == "group" && !isGlobal(elem) {
		sv.checkOccurrences(elem)
	}
}

func (sv *SchemaValidator) checkElement(elem xmldom.Element) {
	name, ref := sv.checkNameRef(elem)
	if isGlobal(elem) && name == "" {
		sv.problem(elem, "global element must have a name attribute")
	}
	if !isGlobal(elem) && name == "" && ref == "" {
		sv.problem(elem, "local element must have a name or ref attribute")
	}
	sv.checkOccurrences(elem)
	sv.checkBool(elem, "nillable", "abstract")

	inline := countOf(xsdChildren(elem), "simpleType", "complexType")
	if string(elem.GetAttribute("type")) != "" && inline > 0 {
		sv.problem(elem, "element cannot have both 'type' attribute and inline type definition")
	}
	if elem.HasAttribute("default") && elem.HasAttribute("fixed") {
		sv.problem(elem, "element cannot have both 'default' and 'fixed' attributes")
	}
}

func (sv *SchemaValidator) checkAttribute(elem xmldom.Element) {
	sv.checkNameRef(elem)

	use := string(elem.GetAttribute("use"))
	switch use {
	case "", "optional", "required", "prohibited":
	default:
		sv.problem(elem, "invalid use value '%s': must be optional, required or prohibited", use)
	}
	if elem.HasAttribute("default") && elem.HasAttribute("fixed") {
		sv.problem(elem, "attribute cannot have both 'default' and 'fixed' attributes")
	}
	if elem.HasAttribute("default") && use != "" && use != "optional" {
		sv.problem(elem, "attribute with a default must be optional")
	}
}

var nonNegativeInteger = regexp.MustCompile(`^\+?[0-9]+$`)

// checkOccurrences validates minOccurs and maxOccurs.
func (sv *SchemaValidator) checkOccurrences(elem xmldom.Element) {
	minStr, maxStr := string(elem.GetAttribute("minOccurs")), string(elem.GetAttribute("maxOccurs"))
	if minStr != "" && !nonNegativeInteger.MatchString(minStr) {
		sv.problem(elem, "invalid minOccurs value '%s': must be a non-negative integer", minStr)
		return
	}
	if maxStr != "" && maxStr != "unbounded" && !nonNegativeInteger.MatchString(maxStr) {
		sv.problem(elem, "invalid maxOccurs value '%s': must be a non-negative integer or 'unbounded'", maxStr)
		return
	}
	minVal, maxVal := parseOccurs(elem, "minOccurs", 1), parseOccurs(elem, "maxOccurs", 1)
	if maxVal != Unbounded && minVal > maxVal {
		sv.problem(elem, "minOccurs (%d) cannot be greater than maxOccurs (%d)", minVal, maxVal)
	}
}

func (sv *SchemaValidator) checkAll(elem xmldom.Element) {
	sv.checkOccurrences(elem)
	if minStr := string(elem.GetAttribute("minOccurs")); minStr != "" && minStr != "0" && minStr != "1" {
		sv.problem(elem, "xs:all minOccurs must be 0 or 1")
	}
	if maxStr := string(elem.GetAttribute("maxOccurs")); maxStr != "" && maxStr != "1" {
		sv.problem(elem, "xs:all maxOccurs must be 1")
	}
}

func (sv *SchemaValidator) checkRestriction(elem xmldom.Element) {
	if string(elem.GetAttribute("base")) == "" && countOf(xsdChildren(elem), "simpleType") == 0 {
		sv.problem(elem, "restriction must have either 'base' attribute or inline simpleType")
	}
}

func (sv *SchemaValidator) checkWildcard(elem xmldom.Element) {
	if string(elem.LocalName()) == "any" {
		sv.checkOccurrences(elem)
	}
	switch pc := string(elem.GetAttribute("processContents")); pc {
	case "", "strict", "lax", "skip":
	default:
		sv.problem(elem, "invalid processContents value '%s': must be strict, lax or skip", pc)
	}
}

func (sv *SchemaValidator) checkIdentityConstraint(elem xmldom.Element) {
	kind := string(elem.LocalName())
	if ref := string(elem.GetAttribute("ref")); ref != "" {
		return
	}
	name := string(elem.GetAttribute("name"))
	switch {
	case name == "":
		sv.problem(elem, "%s must have 'name' attribute", kind)
	case !isValidNCName(name):
		sv.problem(elem, "invalid %s name '%s': must be a valid NCName", kind, name)
	}
	if kind == "keyref" && string(elem.GetAttribute("refer")) == "" {
		sv.problem(elem, "keyref must have 'refer' attribute")
	}

	children := xsdChildren(elem)
	if countOf(children, "selector") != 1 {
		sv.problem(elem, "%s must have exactly one selector child element", kind)
	}
	if countOf(children, "field") == 0 {
		sv.problem(elem, "%s must have at least one field child element", kind)
	}
}

func (sv *SchemaValidator) checkNotation(elem xmldom.Element) {
	requireAttrs("name")(sv, elem)
	if string(elem.GetAttribute("public")) == "" && string(elem.GetAttribute("system")) == "" {
		sv.problem(elem, "notation must have either 'public' or 'system' attribute")
	}
}

func (sv *SchemaValidator) checkUnion(elem xmldom.Element) {
	if strings.TrimSpace(string(elem.GetAttribute("memberTypes"))) == "" && countOf(xsdChildren(elem), "simpleType") == 0 {
		sv.problem(elem, "union must have either 'memberTypes' attribute or inline simpleType elements")
	}
}

func (sv *SchemaValidator) checkList(elem xmldom.Element) {
	itemType := string(elem.GetAttribute("itemType"))
	inline := countOf(xsdChildren(elem), "simpleType")
	switch {
	case itemType == "" && inline == 0:
		sv.problem(elem, "list must have either 'itemType' attribute or inline simpleType element")
	case itemType != "" && inline > 0:
		sv.problem(elem, "list cannot have both 'itemType' attribute and inline simpleType element")
	}
}

func (sv *SchemaValidator) checkFacet(elem xmldom.Element) {
	// enumeration may legitimately have an empty value
	if !elem.HasAttribute("value") {
		sv.problem(elem, "%s facet must have 'value' attribute", elem.LocalName())
	}
	sv.checkBool(elem, "fixed")

	value := string(elem.GetAttribute("value"))
	switch string(elem.LocalName()) {
	case "length", "minLength", "maxLength", "fractionDigits", "totalDigits":
		if value != "" && !nonNegativeInteger.MatchString(value) {
			sv.problem(elem, "%s value '%s' must be a non-negative integer", elem.LocalName(), value)
		}
	case "whiteSpace":
		if value != "preserve" && value != "replace" && value != "collapse" {
			sv.problem(elem, "whiteSpace value '%s' must be preserve, replace or collapse", value)
		}
	case "explicitTimezone":
		if value != "required" && value != "prohibited" && value != "optional" {
			sv.problem(elem, "explicitTimezone value '%s' must be required, prohibited or optional", value)
		}
	case "pattern":
		if _, err := CompilePattern(value); err != nil {
			sv.problem(elem, "%v", err)
		}
	}
}

func (sv *SchemaValidator) checkDerivation(elem xmldom.Element) {
	switch n := countOf(xsdChildren(elem), "restriction", "extension"); {
	case n == 0:
		sv.problem(elem, "%s must have either restriction or extension child", elem.LocalName())
	case n > 1:
		sv.problem(elem, "%s cannot have more than one restriction or extension child", elem.LocalName())
	}
}

func (sv *SchemaValidator) problem(elem xmldom.Element, format string, args ...any) {
	p := &SchemaProblem{
		Component: string(elem.LocalName()),
		Name:      string(elem.GetAttribute("name")),
		Message:   fmt.Sprintf(format, args...),
	}
	if p.Name == "" {
		p.Name = string(elem.GetAttribute("ref"))
	}
	p.Line, p.Column, _ = elem.Position()
	sv.errors = append(sv.errors, p)
}

// ValidateSchemaFile validates an XSD schema file and returns any errors
func ValidateSchemaFile(filename string) []error {
	f, err := os.Open(filename)
	if err != nil {
		return []error{err}
	}
	defer f.Close()

	doc, err := xmldom.Decode(f)
	if err != nil {
		return []error{fmt.Errorf("parse schema file: %w", err)}
	}
	return NewSchemaValidator().ValidateSchema(doc)
}
