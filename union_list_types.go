package xsdgraph

import (
	"fmt"
	"strings"
)

// ValidateValue checks a lexical value against a simple type description.
// Unknown and complex types accept any value.
func ValidateValue(value string, t *TypeRef) error {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case ListKind:
		return ValidateListValue(value, t)
	case UnionKind:
		return ValidateUnionValue(value, t)
	case BuiltinKind, SimpleKind:
		return validateAtomicValue(value, t)
	}
	return nil
}

// ValidateUnionValue validates a value against a union type. Facets of the
// union itself apply first; the value must then be valid against at least
// one member type.
func ValidateUnionValue(value string, t *TypeRef) error {
	if t.Facets.Len() > 0 {
		if err := ValidateFacets(NormalizeWhiteSpace(value, "collapse"), FacetValidators(t.Facets), ""); err != nil {
			return err
		}
	}
	if len(t.Members) == 0 {
		return fmt.Errorf("union type has no member types")
	}

	var lastError error
	for _, member := range t.Members {
		err := ValidateValue(value, member)
		if err == nil {
			return nil
		}
		lastError = err
	}
	return fmt.Errorf("value '%s' is not valid against any member type of the union: %v", value, lastError)
}

// ValidateListValue validates a value against a list type. Length facets
// count items; every item must be valid against the item type.
func ValidateListValue(value string, t *TypeRef) error {
	value = NormalizeWhiteSpace(value, "collapse")
	if err := ValidateFacets(value, FacetValidators(t.Facets), listBase); err != nil {
		return err
	}
	if t.Item == nil {
		return fmt.Errorf("list type has no item type")
	}

	for i, item := range strings.Fields(value) {
		if err := ValidateValue(item, t.Item); err != nil {
			return fmt.Errorf("list item %d ('%s') is invalid: %v", i+1, item, err)
		}
	}
	return nil
}

func validateAtomicValue(value string, t *TypeRef) error {
	value = NormalizeWhiteSpace(value, whiteSpaceOf(t))

	base := t.Builtin
	if bt := GetBuiltinType(t.Builtin); bt != nil {
		if err := bt.Validator(value); err != nil {
			return err
		}
		if bt.ListOf != "" {
			base = listBase
		}
	}
	return ValidateFacets(value, FacetValidators(t.Facets), base)
}

// whiteSpaceOf returns the whiteSpace facet in effect for t.
func whiteSpaceOf(t *TypeRef) string {
	if ws, ok := t.Facets.Get("whiteSpace"); ok {
		return ws
	}
	if bt := GetBuiltinType(t.Builtin); bt != nil {
		return bt.WhiteSpace
	}
	return "collapse"
}

// GetBuiltinTypeValidator returns a validator function for a built-in XSD type
func GetBuiltinTypeValidator(typeName string) func(string) error {
	if bt := GetBuiltinType(typeName); bt != nil {
		return bt.Validator
	}
	return nil
}
