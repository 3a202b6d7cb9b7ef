package xsdgraph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
	"github.com/midbel/distance"
)

// Validator validates XML documents against XSD schemas
type Validator struct {
	schema     *Schema
	resolver   *TypeResolver
	ids        map[string]xmldom.Element
	idRefs     []idReference
	violations []Violation

	constraints map[QName]*IdentityConstraint
}

type idReference struct {
	value     string
	elem      xmldom.Element
	attribute string
}

// NewValidator creates a new validator for a schema
func NewValidator(schema *Schema) *Validator {
	return &Validator{
		schema:   schema,
		resolver: NewTypeResolver(schema),
		ids:      make(map[string]xmldom.Element),

		constraints: make(map[QName]*IdentityConstraint),
	}
}

// Validate validates an XML document against the schema
func (v *Validator) Validate(doc xmldom.Document) []Violation {
	if doc == nil {
		return []Violation{{
			Code:    "xsd-null-document",
			Message: "Document is null",
		}}
	}

	root := doc.DocumentElement()
	if root == nil {
		return []Violation{{
			Code:    "xsd-no-root",
			Message: "Document has no root element",
		}}
	}

	// Reset state
	v.violations = nil
	v.ids = make(map[string]xmldom.Element)
	v.idRefs = nil
	v.constraints = make(map[QName]*IdentityConstraint)

	name := elementName(root)
	decl, ok := v.schema.LookupElement(name)
	if !ok {
		v.addViolation(root, "", "cvc-elt.1",
			fmt.Sprintf("Cannot find declaration for element '%s'", name.Local), nil, name.Local)
		return v.violations
	}
	v.validateElement(root, decl)

	// Check IDREF constraints
	v.validateIDREFs()

	return v.violations
}

func elementName(elem xmldom.Element) QName {
	return QName{Namespace: string(elem.NamespaceURI()), Local: string(elem.LocalName())}
}

// elementType returns the type reference governing decl: the default type
// alternative, the declared type, or the substitution head's type.
func (v *Validator) elementType(decl *ElementDecl) TypeReference {
	ref := TypeReference{Name: decl.TypeName, Inline: decl.Type}
	if _, def, _ := Alternatives(decl); def != nil && (def.Type != nil || !def.TypeName.IsZero()) {
		ref = TypeReference{Name: def.TypeName, Inline: def.Type}
	}
	for head := decl.SubstitutionGroup; ref.IsZero() && !head.IsZero(); {
		headDecl, ok := v.schema.LookupElement(head)
		if !ok {
			break
		}
		ref = TypeReference{Name: headDecl.TypeName, Inline: headDecl.Type}
		head = headDecl.SubstitutionGroup
	}
	return ref
}

// validateElement validates an element against its declaration
func (v *Validator) validateElement(elem xmldom.Element, decl *ElementDecl) {
	elemLocal := string(elem.LocalName())
	if len(decl.Constraints) > 0 {
		defer v.checkIdentityConstraints(elem, decl)
	}

	// Check if element is abstract (cannot be used directly)
	if decl.Abstract {
		v.addViolation(elem, "", "cvc-elt.2",
			fmt.Sprintf("Element '%s' is abstract and cannot be used directly in instance documents", elemLocal),
			nil, elemLocal)
	}

	// Validate nillable and xsi:nil
	if xsiNil := string(elem.GetAttributeNS(XSINamespace, "nil")); xsiNil != "" {
		if !decl.Nillable {
			v.addViolation(elem, "xsi:nil", "cvc-elt.3.1",
				fmt.Sprintf("Element '%s' has xsi:nil='%s' but is not nillable", elemLocal, xsiNil),
				nil, xsiNil)
		}
		if xsiNil == "true" || xsiNil == "1" {
			content := strings.TrimSpace(getElementTextContent(elem))
			if content != "" || elem.Children().Length() > 0 {
				v.addViolation(elem, "xsi:nil", "cvc-elt.3.2.2",
					fmt.Sprintf("Element '%s' has xsi:nil='true' but has content", elemLocal),
					nil, content)
			}
			return
		}
	}

	resolved, err := v.resolver.Resolve(v.elementType(decl), nil)
	if err != nil {
		v.addViolation(elem, "", "cvc-type.1", err.Error(), nil, elemLocal)
		return
	}

	switch {
	case resolved.Builtin == "anyType":
		v.validateAnyContent(elem)
	case resolved.IsBuiltin(), resolved.Simple != nil:
		t, err := v.resolver.SimpleTypeInfo(v.elementType(decl))
		if err != nil {
			v.addViolation(elem, "", "cvc-type.1", err.Error(), nil, elemLocal)
			return
		}
		v.validateAttributes(elem, &EffectiveContent{})
		v.validateSimpleContent(elem, decl, t)
	case resolved.Complex != nil:
		v.validateComplex(elem, decl, resolved.Complex)
	}
}

func (v *Validator) validateComplex(elem xmldom.Element, decl *ElementDecl, ct *ComplexType) {
	elemLocal := string(elem.LocalName())
	if ct.Abstract {
		v.addViolation(elem, "", "cvc-type.2",
			fmt.Sprintf("Element '%s' has abstract type '%s' which cannot be used directly", elemLocal, ct.QName.Local),
			nil, ct.QName.Local)
	}

	ec, err := v.resolver.EffectiveContent(ct)
	if err != nil {
		v.addViolation(elem, "", "cvc-type.1", err.Error(), nil, elemLocal)
	}
	if ec == nil {
		return
	}

	v.validateAttributes(elem, ec)

	if ec.Simple != nil {
		v.validateSimpleContent(elem, decl, ec.Simple)
		return
	}
	v.validateChildren(elem, ec)
}

// validateSimpleContent checks the text of an element with a simple value.
func (v *Validator) validateSimpleContent(elem xmldom.Element, decl *ElementDecl, t *TypeRef) {
	if elem.Children().Length() > 0 {
		v.addViolation(elem, "", "cvc-complex-type.2.2",
			"Element with simple content cannot have element children",
			nil, "element children")
		return
	}

	content := getElementTextContent(elem)
	v.violations = append(v.violations, ValidateElementFixedDefault(elem, decl, content)...)

	// Apply default value if element is empty
	content = ApplyDefaultValue(content, decl.Default)
	if content == "" && decl.Fixed != "" {
		content = decl.Fixed
	}
	if err := ValidateValue(content, t); err != nil {
		v.addViolation(elem, "", "cvc-datatype-valid.1", err.Error(), Enumerations(t.Facets), content)
		return
	}
	v.trackIdentity(elem, "", content, t)
}

// validateAttributes validates element attributes
func (v *Validator) validateAttributes(elem xmldom.Element, ec *EffectiveContent) {
	expected := make(map[QName]*AttributeDecl, len(ec.Attributes))
	names := make([]string, 0, len(ec.Attributes))
	for _, decl := range ec.Attributes {
		expected[decl.Name] = decl
		names = append(names, decl.Name.Local)
	}

	attrs := elem.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		attr := attrs.Item(i)
		if attr == nil {
			continue
		}

		attrLocal := string(attr.LocalName())
		attrNS := string(attr.NamespaceURI())

		// The xmldom library reports xmlns:prefix with namespace="xmlns"
		// and xmlns without prefix with local="xmlns"
		if attrNS == XMLNSNamespace || attrNS == "xmlns" || attrLocal == "xmlns" || attrNS == XSINamespace {
			continue
		}

		name := QName{Namespace: attrNS, Local: attrLocal}
		if decl, ok := expected[name]; ok {
			v.violations = append(v.violations, ValidateAttributeFixedDefault(attr, decl, elem)...)
			v.validateAttributeValue(elem, attr, decl)
			delete(expected, name)
			continue
		}

		if ec.AnyAttribute == nil {
			v.addViolation(elem, attrLocal, "cvc-complex-type.3.2.2",
				fmt.Sprintf("Attribute '%s' is not allowed to appear in element '%s'", attrLocal, elem.LocalName()),
				distance.Levenshtein(attrLocal, names), attrLocal)
			continue
		}

		wildcardViolations := ValidateAnyAttribute(attr, ec.AnyAttribute, v.schema)
		for _, wv := range wildcardViolations {
			wv.Element = elem
			wv.Attribute = attrLocal
			v.violations = append(v.violations, wv)
		}
		if len(wildcardViolations) == 0 && ec.AnyAttribute.ProcessContents != SkipProcess {
			if global, ok := v.schema.LookupAttribute(name); ok {
				v.validateAttributeValue(elem, attr, global)
			}
		}
	}

	// Check for required attributes that are missing
	for name, decl := range expected {
		if decl.Use == RequiredUse {
			v.addViolation(elem, name.Local, "cvc-complex-type.4",
				fmt.Sprintf("Required attribute '%s' is missing", name.Local),
				[]string{name.Local}, "")
		}
	}
}

// validateAttributeValue validates an attribute value against its type
func (v *Validator) validateAttributeValue(elem xmldom.Element, attr xmldom.Node, decl *AttributeDecl) {
	attrName := string(attr.LocalName())
	value := string(attr.NodeValue())

	t, err := v.resolver.AttributeType(decl)
	if err != nil {
		v.addViolation(elem, attrName, "cvc-attribute.1", err.Error(), nil, value)
		return
	}
	if err := ValidateValue(value, t); err != nil {
		v.addViolation(elem, attrName, "cvc-attribute.3",
			fmt.Sprintf("Attribute '%s': %s", attrName, err.Error()),
			Enumerations(t.Facets), value)
		return
	}
	v.trackIdentity(elem, attrName, value, t)
}

// trackIdentity records ID values and IDREF references by type.
func (v *Validator) trackIdentity(elem xmldom.Element, attr, value string, t *TypeRef) {
	value = NormalizeWhiteSpace(value, "collapse")
	switch {
	case t.Kind == ListKind && t.Item != nil && BuiltinDerivesFrom(t.Item.Builtin, "IDREF"),
		t.Kind != ListKind && GetBuiltinType(t.Builtin) != nil && GetBuiltinType(t.Builtin).ListOf == "IDREF":
		for _, ref := range strings.Fields(value) {
			v.idRefs = append(v.idRefs, idReference{value: ref, elem: elem, attribute: attr})
		}
	case t.Kind == ListKind || t.Kind == UnionKind:
	case BuiltinDerivesFrom(t.Builtin, "ID"):
		if _, exists := v.ids[value]; exists {
			v.addViolation(elem, attr, "cvc-id.2",
				fmt.Sprintf("Duplicate ID value '%s'", value), nil, value)
			return
		}
		v.ids[value] = elem
	case BuiltinDerivesFrom(t.Builtin, "IDREF"):
		v.idRefs = append(v.idRefs, idReference{value: value, elem: elem, attribute: attr})
	}
}

// validateChildren validates element children against the content model
func (v *Validator) validateChildren(elem xmldom.Element, ec *EffectiveContent) {
	if !ec.Mixed {
		nodes := elem.ChildNodes()
		for i := uint(0); i < nodes.Length(); i++ {
			if node := nodes.Item(i); node != nil && node.NodeType() == 3 { // TEXT_NODE = 3
				if text := strings.TrimSpace(string(node.NodeValue())); text != "" {
					v.addViolation(elem, "", "cvc-complex-type.2.3",
						"Element cannot have text content (mixed='false')",
						nil, text)
					break
				}
			}
		}
	}

	children := elementChildren(elem)
	particle := ec.Particle()
	if particle == nil {
		if len(children) > 0 {
			v.addViolation(children[0], "", "cvc-complex-type.2.1",
				fmt.Sprintf("Element '%s' must be empty", elem.LocalName()),
				nil, string(children[0].LocalName()))
		}
		return
	}

	m := newContentMatcher(v.resolver, children)
	ok, err := m.match(particle)
	switch {
	case errors.Is(err, errMatchBudget):
		v.addViolation(elem, "", "xsd-content-budget", err.Error(), nil, "")
		return
	case !ok && m.furthest < len(children):
		child := children[m.furthest]
		v.addViolation(child, "", "cvc-complex-type.2.4.a",
			fmt.Sprintf("Invalid content was found starting with element '%s'", child.LocalName()),
			m.expected, string(child.LocalName()))
		return
	case !ok:
		v.addViolation(elem, "", "cvc-complex-type.2.4.b",
			fmt.Sprintf("The content of element '%s' is not complete", elem.LocalName()),
			m.expected, "")
		return
	}

	for i, child := range children {
		switch match := m.assign[i]; {
		case match.decl != nil:
			v.validateElement(child, match.decl)
		case match.wildcard != nil:
			v.validateWildcardElement(child, match.wildcard.ProcessContents)
		}
	}
}

// validateWildcardElement validates an element accepted by xs:any.
func (v *Validator) validateWildcardElement(elem xmldom.Element, mode ProcessContentsMode) {
	if mode == SkipProcess {
		return
	}
	name := elementName(elem)
	decl, ok := v.schema.LookupElement(name)
	switch {
	case ok:
		v.validateElement(elem, decl)
	case mode == StrictProcess || mode == "":
		v.addViolation(elem, "", "cvc-complex-type.2.4.c",
			fmt.Sprintf("No declaration found for element '%s' (processContents='strict')", name.Local),
			nil, name.Local)
	default:
		v.validateAnyContent(elem)
	}
}

// validateAnyContent assesses the children of xs:anyType content laxly.
func (v *Validator) validateAnyContent(elem xmldom.Element) {
	for _, child := range elementChildren(elem) {
		if decl, ok := v.schema.LookupElement(elementName(child)); ok {
			v.validateElement(child, decl)
		}
	}
}

// validateIDREFs validates all collected IDREF references
func (v *Validator) validateIDREFs() {
	for _, ref := range v.idRefs {
		if _, exists := v.ids[ref.value]; !exists {
			v.addViolation(ref.elem, ref.attribute, "cvc-id.1",
				fmt.Sprintf("There is no ID/IDREF binding for IDREF '%s'", ref.value),
				nil, ref.value)
		}
	}
}

// addViolation adds a validation violation
func (v *Validator) addViolation(elem xmldom.Element, attr, code, message string, expected []string, actual string) {
	v.violations = append(v.violations, Violation{
		Element:   elem,
		Attribute: attr,
		Code:      code,
		Message:   message,
		Expected:  expected,
		Actual:    actual,
	})
}

func elementChildren(elem xmldom.Element) []xmldom.Element {
	children := elem.Children()
	out := make([]xmldom.Element, 0, children.Length())
	for i := uint(0); i < children.Length(); i++ {
		if child := children.Item(i); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// getElementTextContent extracts text content from an element
func getElementTextContent(elem xmldom.Element) string {
	var content strings.Builder
	nodes := elem.ChildNodes()
	for i := uint(0); i < nodes.Length(); i++ {
		if node := nodes.Item(i); node != nil && node.NodeType() == 3 { // TEXT_NODE
			content.WriteString(string(node.NodeValue()))
		}
	}
	return content.String()
}
