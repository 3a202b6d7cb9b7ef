package xsdgraph

import (
	"fmt"

	"github.com/agentflare-ai/go-xmldom"
)

// ValidateFixedValue validates that an element or attribute has the required
// fixed value. Values are compared after whitespace collapsing.
func ValidateFixedValue(value, fixed string, isElement bool, name string) *Violation {
	if fixed == "" || NormalizeWhiteSpace(value, "collapse") == NormalizeWhiteSpace(fixed, "collapse") {
		return nil
	}
	if isElement {
		return &Violation{
			Code:     "cvc-elt.5.2.2",
			Message:  fmt.Sprintf("Element '%s' must have fixed value '%s' but has '%s'", name, fixed, value),
			Expected: []string{fixed},
			Actual:   value,
		}
	}
	return &Violation{
		Attribute: name,
		Code:      "cvc-attribute.4",
		Message:   fmt.Sprintf("Attribute '%s' must have fixed value '%s' but has '%s'", name, fixed, value),
		Expected:  []string{fixed},
		Actual:    value,
	}
}

// ApplyDefaultValue returns content, or the default value when content is empty.
func ApplyDefaultValue(content, defaultValue string) string {
	if content == "" {
		return defaultValue
	}
	return content
}

// ValidateElementFixedDefault validates the fixed value of a simple-content
// element. Elements with element children are not checked.
func ValidateElementFixedDefault(elem xmldom.Element, decl *ElementDecl, content string) []Violation {
	if decl == nil || decl.Fixed == "" || elem.Children().Length() > 0 {
		return nil
	}
	if content == "" {
		return nil
	}
	if violation := ValidateFixedValue(content, decl.Fixed, true, decl.Name.Local); violation != nil {
		violation.Element = elem
		return []Violation{*violation}
	}
	return nil
}

// ValidateAttributeFixedDefault validates the fixed value of an attribute.
// An absent attribute takes its fixed value and is always valid.
func ValidateAttributeFixedDefault(attr xmldom.Node, decl *AttributeDecl, elem xmldom.Element) []Violation {
	if decl == nil || decl.Fixed == "" || attr == nil {
		return nil
	}
	if violation := ValidateFixedValue(string(attr.NodeValue()), decl.Fixed, false, decl.Name.Local); violation != nil {
		violation.Element = elem
		return []Violation{*violation}
	}
	return nil
}

// HasDefaultValue checks if an element or attribute declaration has a default value
func HasDefaultValue(decl any) (string, bool) {
	switch d := decl.(type) {
	case *ElementDecl:
		return d.Default, d.Default != ""
	case *AttributeDecl:
		return d.Default, d.Default != ""
	}
	return "", false
}

// HasFixedValue checks if an element or attribute declaration has a fixed value
func HasFixedValue(decl any) (string, bool) {
	switch d := decl.(type) {
	case *ElementDecl:
		return d.Fixed, d.Fixed != ""
	case *AttributeDecl:
		return d.Fixed, d.Fixed != ""
	}
	return "", false
}
