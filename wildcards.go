package xsdgraph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// ProcessContentsMode defines how wildcard content should be processed
type ProcessContentsMode string

const (
	// StrictProcess requires the element/attribute to be validated against its declaration
	StrictProcess ProcessContentsMode = "strict"
	// LaxProcess validates if a declaration is found, otherwise allows it
	LaxProcess ProcessContentsMode = "lax"
	// SkipProcess allows the element/attribute without validation
	SkipProcess ProcessContentsMode = "skip"
)

// placeholderNamespace is used for lax or skip wildcards that only admit
// foreign namespaces.
const placeholderNamespace = "urn:xsdgraph:placeholder"

// Wildcard is the graph form of xs:any and xs:anyAttribute.
type Wildcard struct {
	Namespace       string
	ProcessContents ProcessContentsMode
	TargetNamespace string
}

func (w Wildcard) Constraint() *WildcardNamespaceConstraint {
	return ParseNamespaceConstraint(w.Namespace)
}

// Allows reports whether an item in namespace ns matches the wildcard.
func (w Wildcard) Allows(ns string) bool {
	return w.Constraint().Matches(ns, w.TargetNamespace)
}

// SampleNamespace picks a namespace that satisfies the constraint.
func (w Wildcard) SampleNamespace() string {
	c := w.Constraint()
	switch c.Mode {
	case "##any", "##targetNamespace":
		return w.TargetNamespace
	case "##local":
		return ""
	case "##other":
		return placeholderNamespace
	}
	for _, ns := range c.Namespaces {
		switch ns {
		case "##targetNamespace":
			return w.TargetNamespace
		case "##local":
			return ""
		default:
			return ns
		}
	}
	return w.TargetNamespace
}

// WildcardNamespaceConstraint represents namespace constraints for wildcards
type WildcardNamespaceConstraint struct {
	Mode       string   // "##any", "##other", "##targetNamespace", "##local", or "list"
	Namespaces []string // entries of a list constraint, keywords included
}

// ParseNamespaceConstraint parses a namespace attribute value into a constraint
func ParseNamespaceConstraint(value string) *WildcardNamespaceConstraint {
	value = strings.TrimSpace(value)
	if value == "" {
		value = "##any"
	}

	switch value {
	case "##any", "##other", "##targetNamespace", "##local":
		return &WildcardNamespaceConstraint{Mode: value}
	}
	return &WildcardNamespaceConstraint{Mode: "list", Namespaces: strings.Fields(value)}
}

// Matches checks if a namespace matches this constraint. ##other excludes
// both the target namespace and no namespace.
func (c *WildcardNamespaceConstraint) Matches(namespace, targetNamespace string) bool {
	switch c.Mode {
	case "##any":
		return true
	case "##other":
		return namespace != targetNamespace && namespace != ""
	case "##targetNamespace":
		return namespace == targetNamespace
	case "##local":
		return namespace == ""
	case "list":
		if slices.Contains(c.Namespaces, namespace) {
			return true
		}
		for _, ns := range c.Namespaces {
			if ns == "##targetNamespace" && namespace == targetNamespace {
				return true
			}
			if ns == "##local" && namespace == "" {
				return true
			}
		}
	}
	return false
}

// MatchesWildcard checks if an element matches a wildcard's namespace constraint
func MatchesWildcard(elem xmldom.Element, wildcard *AnyElement) bool {
	return ParseNamespaceConstraint(wildcard.Namespace).Matches(string(elem.NamespaceURI()), wildcard.TargetNamespace)
}

// ValidateAnyAttribute validates attributes against xs:anyAttribute wildcard constraints
func ValidateAnyAttribute(attr xmldom.Node, wildcard *AnyAttribute, schema *Schema) []Violation {
	attrNS := string(attr.NamespaceURI())
	attrName := string(attr.LocalName())

	if attrNS == XMLNSNamespace || attrNS == "xmlns" || attrName == "xmlns" || attrNS == XSINamespace {
		return nil
	}

	if !ParseNamespaceConstraint(wildcard.Namespace).Matches(attrNS, wildcard.TargetNamespace) {
		return []Violation{{
			Attribute: attrName,
			Code:      "cvc-wildcard-attribute.2",
			Message: fmt.Sprintf("Attribute '{%s}%s' is not allowed by the anyAttribute namespace constraint '%s'",
				attrNS, attrName, wildcard.Namespace),
		}}
	}

	switch wildcard.ProcessContents {
	case StrictProcess, "":
		if _, ok := schema.LookupAttribute(QName{Namespace: attrNS, Local: attrName}); !ok && attrNS != XMLNamespace {
			return []Violation{{
				Attribute: attrName,
				Code:      "cvc-assess-attr.1.1",
				Message:   fmt.Sprintf("No attribute declaration found for '{%s}%s' (processContents='strict')", attrNS, attrName),
			}}
		}
	case LaxProcess, SkipProcess:
	default:
		return []Violation{{
			Code:    "cvc-wildcard-attribute.3",
			Message: fmt.Sprintf("Invalid processContents value for anyAttribute: '%s'", wildcard.ProcessContents),
		}}
	}

	return nil
}
