package xsdgraph

import (
	"fmt"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// IdentityConstraintKind represents the type of identity constraint
type IdentityConstraintKind string

const (
	KeyConstraint    IdentityConstraintKind = "key"
	KeyRefConstraint IdentityConstraintKind = "keyref"
	UniqueConstraint IdentityConstraintKind = "unique"
)

// IdentityConstraint is an xs:key, xs:keyref or xs:unique of an element
// declaration. Selector and field paths use the restricted XPath subset
// of identity constraints; name tests match by local name.
type IdentityConstraint struct {
	Name     QName
	Kind     IdentityConstraintKind
	Selector string
	Fields   []string
	Refer    QName // keyref only
}

func (s *Schema) parseIdentityConstraint(elem xmldom.Element) *IdentityConstraint {
	name := string(elem.GetAttribute("name"))
	if name == "" {
		return nil
	}
	ic := &IdentityConstraint{
		Name: QName{Namespace: s.TargetNamespace, Local: name},
		Kind: IdentityConstraintKind(elem.LocalName()),
	}
	if refer := string(elem.GetAttribute("refer")); refer != "" {
		ic.Refer = s.parseQName(elem, refer)
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}
		switch string(child.LocalName()) {
		case "selector":
			ic.Selector = strings.TrimSpace(string(child.GetAttribute("xpath")))
		case "field":
			ic.Fields = append(ic.Fields, strings.TrimSpace(string(child.GetAttribute("xpath"))))
		}
	}
	return ic
}

// identityTable holds the key sequences a key or unique produced in one scope.
type identityTable map[string]xmldom.Element

// checkIdentityConstraints evaluates the constraints declared on scope's
// declaration against the subtree rooted at scope.
func (v *Validator) checkIdentityConstraints(scope xmldom.Element, decl *ElementDecl) {
	tables := make(map[QName]identityTable)

	for _, ic := range decl.Constraints {
		v.constraints[ic.Name] = ic
		if ic.Kind == KeyRefConstraint {
			continue
		}
		tables[ic.Name] = v.collectKeys(scope, ic)
	}

	for _, ic := range decl.Constraints {
		if ic.Kind != KeyRefConstraint {
			continue
		}
		table, ok := tables[ic.Refer]
		if !ok {
			referred, known := v.constraints[ic.Refer]
			if !known {
				v.addViolation(scope, "", "src-identity-constraint.2.2.2",
					fmt.Sprintf("keyref '%s' refers to unknown constraint '%s'", ic.Name.Local, ic.Refer.Local), nil, ic.Refer.Local)
				continue
			}
			table = v.collectKeys(scope, referred)
		}
		for _, node := range selectNodes(scope, ic.Selector) {
			values, complete := fieldValues(node, ic.Fields)
			if !complete {
				continue
			}
			key := strings.Join(values, "|")
			if _, found := table[key]; !found {
				v.addViolation(node, "", "cvc-identity-constraint.4.3",
					fmt.Sprintf("keyref '%s' value '%s' does not match any key '%s'", ic.Name.Local, key, ic.Refer.Local), nil, key)
			}
		}
	}
}

func (v *Validator) collectKeys(scope xmldom.Element, ic *IdentityConstraint) identityTable {
	table := make(identityTable)
	for _, node := range selectNodes(scope, ic.Selector) {
		values, complete := fieldValues(node, ic.Fields)
		if !complete {
			if ic.Kind == KeyConstraint {
				v.addViolation(node, "", "cvc-identity-constraint.4.2.1",
					fmt.Sprintf("key '%s' requires a value for every field", ic.Name.Local), ic.Fields, "")
			}
			continue
		}
		key := strings.Join(values, "|")
		if _, dup := table[key]; dup {
			v.addViolation(node, "", "cvc-identity-constraint.4.1",
				fmt.Sprintf("duplicate %s '%s' value: %s", ic.Kind, ic.Name.Local, key), nil, key)
			continue
		}
		table[key] = node
	}
	return table
}

// fieldValues evaluates every field of a selected node. complete is false
// when a field selects nothing.
func fieldValues(node xmldom.Element, fields []string) (values []string, complete bool) {
	values = make([]string, 0, len(fields))
	for _, field := range fields {
		value, ok := evaluateField(node, field)
		if !ok {
			return values, false
		}
		values = append(values, value)
	}
	return values, true
}

// selectNodes evaluates a selector, which may be a union of paths.
func selectNodes(scope xmldom.Element, selector string) []xmldom.Element {
	var results []xmldom.Element
	for _, path := range strings.Split(selector, "|") {
		results = append(results, evaluatePath(scope, path)...)
	}
	return results
}

func evaluatePath(scope xmldom.Element, xpath string) []xmldom.Element {
	xpath = removeNamespacePrefixes(strings.TrimSpace(xpath))

	var results []xmldom.Element
	if rest, ok := strings.CutPrefix(xpath, ".//"); ok {
		steps := strings.Split(rest, "/")
		var starts []xmldom.Element
		findDescendants(scope, steps[0], &starts)
		for _, elem := range starts {
			findChildren(elem, steps[1:], &results)
		}
		return results
	}
	findChildren(scope, strings.Split(xpath, "/"), &results)
	return results
}

func stepMatches(elem xmldom.Element, step string) bool {
	return step == "*" || string(elem.LocalName()) == step
}

func findChildren(elem xmldom.Element, steps []string, results *[]xmldom.Element) {
	if len(steps) == 0 {
		*results = append(*results, elem)
		return
	}
	step, rest := steps[0], steps[1:]
	if step == "." || step == "" {
		findChildren(elem, rest, results)
		return
	}
	for _, child := range elementChildren(elem) {
		if stepMatches(child, step) {
			findChildren(child, rest, results)
		}
	}
}

// findDescendants collects the descendants of elem matching step.
func findDescendants(elem xmldom.Element, step string, results *[]xmldom.Element) {
	for _, child := range elementChildren(elem) {
		if stepMatches(child, step) {
			*results = append(*results, child)
		}
		findDescendants(child, step, results)
	}
}

// evaluateField returns the value a field path selects from node.
func evaluateField(node xmldom.Element, xpath string) (string, bool) {
	xpath = removeNamespacePrefixes(strings.TrimSpace(xpath))

	path, attr := xpath, ""
	if i := strings.LastIndex(xpath, "@"); i >= 0 {
		path, attr = strings.TrimSuffix(xpath[:i], "/"), xpath[i+1:]
	}

	target := node
	if path != "" && path != "." {
		elems := evaluatePath(node, path)
		if len(elems) != 1 {
			return "", false
		}
		target = elems[0]
	}

	if attr != "" {
		if !target.HasAttribute(xmldom.DOMString(attr)) {
			return "", false
		}
		return strings.TrimSpace(string(target.GetAttribute(xmldom.DOMString(attr)))), true
	}
	return strings.TrimSpace(getElementTextContent(target)), true
}

// removeNamespacePrefixes removes namespace prefixes from XPath expressions
func removeNamespacePrefixes(xpath string) string {
	parts := strings.Split(xpath, "/")
	for i, part := range parts {
		attr := strings.HasPrefix(part, "@")
		if idx := strings.Index(part, ":"); idx > 0 {
			parts[i] = part[idx+1:]
			if attr {
				parts[i] = "@" + parts[i]
			}
		}
	}
	return strings.Join(parts, "/")
}
