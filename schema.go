package xsdgraph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/agentflare-ai/go-xmldom"
)

// XSDNamespace is the XML Schema namespace
const XSDNamespace = "http://www.w3.org/2001/XMLSchema"

const (
	XSINamespace   = "http://www.w3.org/2001/XMLSchema-instance"
	XMLNamespace   = "http://www.w3.org/XML/1998/namespace"
	XMLNSNamespace = "http://www.w3.org/2000/xmlns/"
)

// Unbounded is the MaxOccurs value of maxOccurs="unbounded".
const Unbounded = -1

var (
	ErrNotSchema = errors.New("not an XSD schema document")
	ErrNoRoot    = errors.New("no root element")
)

// Schema is the parsed form of one schema document, or the merged form of a
// schema document set when produced by SchemaLoader.
type Schema struct {
	mu                   sync.RWMutex
	TargetNamespace      string
	ElementFormDefault   Form
	AttributeFormDefault Form
	Location             string

	ElementDecls    map[QName]*ElementDecl
	AttributeDecls  map[QName]*AttributeDecl
	ComplexTypes    map[QName]*ComplexType
	SimpleTypes     map[QName]*SimpleType
	AttributeGroups map[QName]*AttributeGroup
	Groups          map[QName]*ModelGroup

	Imports  []*Import
	Includes []*Include

	// SubstitutionGroups maps a head element to its direct members, in
	// declaration order.
	SubstitutionGroups map[QName][]QName

	Namespaces *NamespaceTable
	Features   Features
	Warnings   []LoadWarning

	elementOrder []QName
	doc          xmldom.Document
}

// QName represents a qualified XML name
type QName struct {
	Namespace string
	Local     string
}

// String returns the string representation of a QName
func (q QName) String() string {
	if q.Namespace == "" {
		return q.Local
	}
	return fmt.Sprintf("{%s}%s", q.Namespace, q.Local)
}

func (q QName) IsZero() bool {
	return q.Local == ""
}

// Form is the value of a form, elementFormDefault or attributeFormDefault attribute.
type Form string

const (
	Qualified   Form = "qualified"
	Unqualified Form = "unqualified"
)

// Features records schema constructs that matter for dialect detection.
type Features struct {
	Assertions              bool
	Alternatives            bool
	ConditionalAlternatives bool
	OpenContent             bool
	Override                bool
	Redefine                bool
	ExplicitTimezone        bool
}

func (f *Features) merge(o Features) {
	f.Assertions = f.Assertions || o.Assertions
	f.Alternatives = f.Alternatives || o.Alternatives
	f.ConditionalAlternatives = f.ConditionalAlternatives || o.ConditionalAlternatives
	f.OpenContent = f.OpenContent || o.OpenContent
	f.Override = f.Override || o.Override
	f.Redefine = f.Redefine || o.Redefine
	f.ExplicitTimezone = f.ExplicitTimezone || o.ExplicitTimezone
}

// Documentation is one xs:documentation entry.
type Documentation struct {
	Lang   string
	Text   string
	Source string
}

// ElementDecl represents an element declaration
type ElementDecl struct {
	Name              QName
	TypeName          QName // value of @type, zero if absent
	Type              Type  // inline type definition
	MinOcc            int
	MaxOcc            int // Unbounded for "unbounded"
	Nillable          bool
	Abstract          bool
	Global            bool
	SubstitutionGroup QName
	Default           string
	Fixed             string
	Alternatives      []*TypeAlternative
	Constraints       []*IdentityConstraint
	Documentation     []Documentation
	Source            xmldom.Element
}

// Type is the interface for all XSD type definitions
type Type interface {
	Name() QName
}

// SimpleType represents an XSD simple type
type SimpleType struct {
	QName         QName
	Anonymous     bool
	Restriction   *Restriction
	List          *List
	Union         *Union
	Documentation []Documentation
	Source        xmldom.Element
}

// ComplexType represents an XSD complex type
type ComplexType struct {
	QName           QName
	Anonymous       bool
	Content         Content
	Attributes      []*AttributeDecl
	AttributeGroups []QName
	AnyAttribute    *AnyAttribute
	Mixed           bool
	Abstract        bool
	OpenContent     bool
	Assertions      []string
	Documentation   []Documentation
	Source          xmldom.Element
}

// Content is the content model of a complex type: *SimpleContent,
// *ComplexContent, or a particle (*ModelGroup, *GroupRef).
type Content interface {
	isContent()
}

// SimpleContent represents simple content in a complex type
type SimpleContent struct {
	Extension   *Extension
	Restriction *Restriction
}

// ComplexContent represents complex content
type ComplexContent struct {
	Mixed       bool
	Extension   *Extension
	Restriction *Restriction
}

// ModelGroup represents a sequence, choice or all compositor
type ModelGroup struct {
	Kind      ModelGroupKind
	Particles []Particle
	MinOcc    int
	MaxOcc    int
	Source    xmldom.Element
}

// ModelGroupKind represents the kind of model group
type ModelGroupKind string

const (
	SequenceGroup ModelGroupKind = "sequence"
	ChoiceGroup   ModelGroupKind = "choice"
	AllGroup      ModelGroupKind = "all"
)

// Particle is a member of a content model with its own occurrence bounds.
type Particle interface {
	MinOccurs() int
	MaxOccurs() int
}

// ElementRef represents a reference to a global element
type ElementRef struct {
	Ref           QName
	MinOcc        int
	MaxOcc        int
	Documentation []Documentation
	Source        xmldom.Element
}

// GroupRef represents a reference to a named model group
type GroupRef struct {
	Ref    QName
	MinOcc int
	MaxOcc int
	Source xmldom.Element
}

// AnyElement represents xs:any wildcard
type AnyElement struct {
	Namespace       string
	ProcessContents ProcessContentsMode
	MinOcc          int
	MaxOcc          int
	// TargetNamespace of the schema document declaring the wildcard,
	// against which ##targetNamespace and ##other are evaluated.
	TargetNamespace string
	Source          xmldom.Element
}

// AttributeDecl represents an attribute declaration or reference
type AttributeDecl struct {
	Name          QName
	Ref           QName
	TypeName      QName
	Type          *SimpleType
	Use           AttributeUse
	Default       string
	Fixed         string
	Global        bool
	Documentation []Documentation
	Source        xmldom.Element
}

// AttributeUse represents attribute use
type AttributeUse string

const (
	OptionalUse   AttributeUse = "optional"
	RequiredUse   AttributeUse = "required"
	ProhibitedUse AttributeUse = "prohibited"
)

// AttributeGroup represents a named group of attributes
type AttributeGroup struct {
	Name            QName
	Attributes      []*AttributeDecl
	AttributeGroups []QName
	AnyAttribute    *AnyAttribute
}

// Restriction is a derivation by restriction, for simple types, simple
// content and complex content.
type Restriction struct {
	Base            QName
	BaseType        *SimpleType // inline base of a simple type restriction
	Facets          *Facets
	Particle        Particle
	Attributes      []*AttributeDecl
	AttributeGroups []QName
	AnyAttribute    *AnyAttribute
	Assertions      []string
}

// List represents a list type
type List struct {
	ItemType QName
	Item     *SimpleType
}

// Union represents a union type. MemberTypes come first, inline Members after.
type Union struct {
	MemberTypes []QName
	Members     []*SimpleType
}

// Extension represents type extension
type Extension struct {
	Base            QName
	Particle        Particle
	Attributes      []*AttributeDecl
	AttributeGroups []QName
	AnyAttribute    *AnyAttribute
	Assertions      []string
}

// AnyAttribute represents xs:anyAttribute
type AnyAttribute struct {
	Namespace       string
	ProcessContents ProcessContentsMode
	TargetNamespace string
	Source          xmldom.Element
}

// TypeAlternative is an XSD 1.1 xs:alternative of an element declaration.
type TypeAlternative struct {
	Test     string
	TypeName QName
	Type     Type
	Source   xmldom.Element
}

// IsDefault reports whether the alternative is unconditional.
func (a *TypeAlternative) IsDefault() bool {
	return strings.TrimSpace(a.Test) == ""
}

// Import represents an xs:import
type Import struct {
	Namespace      string
	SchemaLocation string
}

// Include represents an xs:include, xs:redefine or xs:override
type Include struct {
	SchemaLocation string
	Kind           string
}

// Violation represents a validation error
type Violation struct {
	Element   xmldom.Element
	Attribute string
	Code      string
	Message   string
	Expected  []string
	Actual    string
}

func (st *SimpleType) Name() QName  { return st.QName }
func (ct *ComplexType) Name() QName { return ct.QName }

func (*SimpleContent) isContent()  {}
func (*ComplexContent) isContent() {}
func (*ModelGroup) isContent()     {}
func (*GroupRef) isContent()       {}

func (ed *ElementDecl) MinOccurs() int { return ed.MinOcc }
func (ed *ElementDecl) MaxOccurs() int { return ed.MaxOcc }
func (er *ElementRef) MinOccurs() int  { return er.MinOcc }
func (er *ElementRef) MaxOccurs() int  { return er.MaxOcc }
func (gr *GroupRef) MinOccurs() int    { return gr.MinOcc }
func (gr *GroupRef) MaxOccurs() int    { return gr.MaxOcc }
func (ae *AnyElement) MinOccurs() int  { return ae.MinOcc }
func (ae *AnyElement) MaxOccurs() int  { return ae.MaxOcc }
func (mg *ModelGroup) MinOccurs() int  { return mg.MinOcc }
func (mg *ModelGroup) MaxOccurs() int  { return mg.MaxOcc }

func newSchema() *Schema {
	return &Schema{
		ElementFormDefault:   Unqualified,
		AttributeFormDefault: Unqualified,
		ElementDecls:         make(map[QName]*ElementDecl),
		AttributeDecls:       make(map[QName]*AttributeDecl),
		ComplexTypes:         make(map[QName]*ComplexType),
		SimpleTypes:          make(map[QName]*SimpleType),
		AttributeGroups:      make(map[QName]*AttributeGroup),
		Groups:               make(map[QName]*ModelGroup),
		SubstitutionGroups:   make(map[QName][]QName),
		Namespaces:           NewNamespaceTable(),
	}
}

// Parse parses an XSD schema from an XML document. References are kept as
// qualified names; includes and imports are not followed (see SchemaLoader).
func Parse(doc xmldom.Document) (*Schema, error) {
	return parseDocument(doc, "", "")
}

// parseDocument parses one schema document. chameleonNS is the namespace a
// no-namespace schema adopts when it is included into a namespaced one.
func parseDocument(doc xmldom.Document, location, chameleonNS string) (*Schema, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}

	root := doc.DocumentElement()
	if root == nil {
		return nil, ErrNoRoot
	}
	if string(root.NamespaceURI()) != XSDNamespace || string(root.LocalName()) != "schema" {
		return nil, ErrNotSchema
	}

	schema := newSchema()
	schema.doc = doc
	schema.Location = location
	schema.TargetNamespace = string(root.GetAttribute("targetNamespace"))
	if schema.TargetNamespace == "" && chameleonNS != "" {
		schema.TargetNamespace = chameleonNS
	}
	if string(root.GetAttribute("elementFormDefault")) == string(Qualified) {
		schema.ElementFormDefault = Qualified
	}
	if string(root.GetAttribute("attributeFormDefault")) == string(Qualified) {
		schema.AttributeFormDefault = Qualified
	}
	schema.Namespaces.addDeclarations(root)

	children := root.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}

		switch string(child.LocalName()) {
		case "element":
			if decl := schema.parseElement(child, true); decl != nil {
				if _, exists := schema.ElementDecls[decl.Name]; !exists {
					schema.elementOrder = append(schema.elementOrder, decl.Name)
				}
				schema.ElementDecls[decl.Name] = decl
			}
		case "attribute":
			if attr := schema.parseAttribute(child, true); attr != nil {
				schema.AttributeDecls[attr.Name] = attr
			}
		case "simpleType":
			if st := schema.parseSimpleType(child); st != nil && !st.Anonymous {
				schema.SimpleTypes[st.QName] = st
			}
		case "complexType":
			if ct := schema.parseComplexType(child); ct != nil && !ct.Anonymous {
				schema.ComplexTypes[ct.QName] = ct
			}
		case "attributeGroup":
			schema.parseAttributeGroup(child)
		case "group":
			schema.parseGroup(child)
		case "import":
			schema.Imports = append(schema.Imports, &Import{
				Namespace:      string(child.GetAttribute("namespace")),
				SchemaLocation: string(child.GetAttribute("schemaLocation")),
			})
		case "include", "redefine", "override":
			kind := string(child.LocalName())
			switch kind {
			case "redefine":
				schema.Features.Redefine = true
			case "override":
				schema.Features.Override = true
			}
			if loc := string(child.GetAttribute("schemaLocation")); loc != "" {
				schema.Includes = append(schema.Includes, &Include{SchemaLocation: loc, Kind: kind})
			}
		case "defaultOpenContent":
			schema.Features.OpenContent = true
		}
	}

	schema.buildSubstitutionGroups()
	return schema, nil
}

// buildSubstitutionGroups indexes substitution group members by head, in
// global declaration order.
func (s *Schema) buildSubstitutionGroups() {
	s.SubstitutionGroups = make(map[QName][]QName)
	for _, name := range s.elementOrder {
		decl := s.ElementDecls[name]
		if decl == nil || decl.SubstitutionGroup.IsZero() {
			continue
		}
		s.SubstitutionGroups[decl.SubstitutionGroup] = append(s.SubstitutionGroups[decl.SubstitutionGroup], name)
	}
}

// SubstitutionMembers returns all elements that can substitute for head,
// transitively, in declaration order.
func (s *Schema) SubstitutionMembers(head QName) []QName {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []QName
	seen := map[QName]bool{head: true}
	queue := []QName{head}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, m := range s.SubstitutionGroups[current] {
			if seen[m] {
				continue
			}
			seen[m] = true
			members = append(members, m)
			queue = append(queue, m)
		}
	}
	return members
}

// IsSubstitutableFor reports whether actual may appear where expected is declared.
func (s *Schema) IsSubstitutableFor(actual, expected QName) bool {
	if actual == expected {
		return true
	}
	for _, m := range s.SubstitutionMembers(expected) {
		if m == actual {
			return true
		}
	}
	return false
}

// GlobalElements returns the global element declarations in document order.
func (s *Schema) GlobalElements() []*ElementDecl {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ElementDecl, 0, len(s.elementOrder))
	for _, name := range s.elementOrder {
		if decl, ok := s.ElementDecls[name]; ok {
			out = append(out, decl)
		}
	}
	return out
}

// LookupElement finds a global element declaration.
func (s *Schema) LookupElement(name QName) (*ElementDecl, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	decl, ok := s.ElementDecls[name]
	return decl, ok
}

// LookupAttribute finds a global attribute declaration.
func (s *Schema) LookupAttribute(name QName) (*AttributeDecl, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	decl, ok := s.AttributeDecls[name]
	return decl, ok
}

// LookupGroup finds a named model group.
func (s *Schema) LookupGroup(name QName) (*ModelGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mg, ok := s.Groups[name]
	return mg, ok
}

// LookupAttributeGroup finds a named attribute group.
func (s *Schema) LookupAttributeGroup(name QName) (*AttributeGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ag, ok := s.AttributeGroups[name]
	return ag, ok
}

// Document returns the parsed schema document of the root schema.
func (s *Schema) Document() xmldom.Document {
	return s.doc
}

func (s *Schema) parseElement(elem xmldom.Element, isGlobal bool) *ElementDecl {
	name := string(elem.GetAttribute("name"))
	if name == "" {
		return nil
	}

	decl := &ElementDecl{
		Name:     QName{Namespace: s.elementNamespace(elem, isGlobal), Local: name},
		MinOcc:   parseOccurs(elem, "minOccurs", 1),
		MaxOcc:   parseOccurs(elem, "maxOccurs", 1),
		Nillable: parseBool(elem, "nillable"),
		Abstract: parseBool(elem, "abstract"),
		Global:   isGlobal,
		Default:  string(elem.GetAttribute("default")),
		Fixed:    string(elem.GetAttribute("fixed")),
		Source:   elem,
	}
	if isGlobal {
		decl.MinOcc, decl.MaxOcc = 1, 1
	}
	if sg := string(elem.GetAttribute("substitutionGroup")); sg != "" {
		// XSD 1.1 allows a list of heads; the first one is kept.
		decl.SubstitutionGroup = s.parseQName(elem, strings.Fields(sg)[0])
	}
	if typeName := string(elem.GetAttribute("type")); typeName != "" {
		decl.TypeName = s.parseQName(elem, typeName)
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}

		switch string(child.LocalName()) {
		case "annotation":
			decl.Documentation = append(decl.Documentation, parseAnnotation(child)...)
		case "simpleType":
			decl.Type = s.parseSimpleType(child)
		case "complexType":
			decl.Type = s.parseComplexType(child)
		case "alternative":
			decl.Alternatives = append(decl.Alternatives, s.parseAlternative(child))
		case "unique", "key", "keyref":
			if ic := s.parseIdentityConstraint(child); ic != nil {
				decl.Constraints = append(decl.Constraints, ic)
			}
		}
	}

	return decl
}

// elementNamespace applies the form rules to a local or global element.
func (s *Schema) elementNamespace(elem xmldom.Element, isGlobal bool) string {
	if isGlobal {
		return s.TargetNamespace
	}
	if tns := string(elem.GetAttribute("targetNamespace")); tns != "" {
		return tns
	}
	form := Form(elem.GetAttribute("form"))
	if form == "" {
		form = s.ElementFormDefault
	}
	if form == Qualified {
		return s.TargetNamespace
	}
	return ""
}

func (s *Schema) attributeNamespace(elem xmldom.Element, isGlobal bool) string {
	if isGlobal {
		return s.TargetNamespace
	}
	form := Form(elem.GetAttribute("form"))
	if form == "" {
		form = s.AttributeFormDefault
	}
	if form == Qualified {
		return s.TargetNamespace
	}
	return ""
}

func (s *Schema) parseAlternative(elem xmldom.Element) *TypeAlternative {
	alt := &TypeAlternative{
		Test:   string(elem.GetAttribute("test")),
		Source: elem,
	}
	s.Features.Alternatives = true
	if !alt.IsDefault() {
		s.Features.ConditionalAlternatives = true
	}
	if typeName := string(elem.GetAttribute("type")); typeName != "" {
		alt.TypeName = s.parseQName(elem, typeName)
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}
		switch string(child.LocalName()) {
		case "simpleType":
			alt.Type = s.parseSimpleType(child)
		case "complexType":
			alt.Type = s.parseComplexType(child)
		}
	}
	return alt
}

// parseSimpleType parses a named or anonymous simple type definition
func (s *Schema) parseSimpleType(elem xmldom.Element) *SimpleType {
	st := &SimpleType{Source: elem}
	if name := string(elem.GetAttribute("name")); name != "" {
		st.QName = QName{Namespace: s.TargetNamespace, Local: name}
	} else {
		st.Anonymous = true
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}

		switch string(child.LocalName()) {
		case "annotation":
			st.Documentation = append(st.Documentation, parseAnnotation(child)...)
		case "restriction":
			st.Restriction = s.parseRestriction(child)
		case "list":
			st.List = s.parseList(child)
		case "union":
			st.Union = s.parseUnion(child)
		}
	}

	return st
}

// parseComplexType parses a named or anonymous complex type definition
func (s *Schema) parseComplexType(elem xmldom.Element) *ComplexType {
	ct := &ComplexType{
		Mixed:    parseBool(elem, "mixed"),
		Abstract: parseBool(elem, "abstract"),
		Source:   elem,
	}
	if name := string(elem.GetAttribute("name")); name != "" {
		ct.QName = QName{Namespace: s.TargetNamespace, Local: name}
	} else {
		ct.Anonymous = true
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}

		switch string(child.LocalName()) {
		case "annotation":
			ct.Documentation = append(ct.Documentation, parseAnnotation(child)...)
		case "simpleContent":
			ct.Content = s.parseSimpleContent(child)
		case "complexContent":
			cc := s.parseComplexContent(child)
			if cc.Mixed {
				ct.Mixed = true
			}
			ct.Content = cc
		case "sequence", "choice", "all":
			ct.Content = s.parseModelGroup(child)
		case "group":
			if ref := s.parseGroupRef(child); ref != nil {
				ct.Content = ref
			}
		case "attribute":
			if attr := s.parseAttribute(child, false); attr != nil {
				ct.Attributes = append(ct.Attributes, attr)
			}
		case "attributeGroup":
			if ref := string(child.GetAttribute("ref")); ref != "" {
				ct.AttributeGroups = append(ct.AttributeGroups, s.parseQName(child, ref))
			}
		case "anyAttribute":
			ct.AnyAttribute = s.parseAnyAttribute(child)
		case "assert":
			s.Features.Assertions = true
			ct.Assertions = append(ct.Assertions, string(child.GetAttribute("test")))
		case "openContent":
			s.Features.OpenContent = true
			ct.OpenContent = true
		}
	}

	return ct
}

func (s *Schema) parseRestriction(elem xmldom.Element) *Restriction {
	r := &Restriction{Facets: &Facets{}}

	if base := string(elem.GetAttribute("base")); base != "" {
		r.Base = s.parseQName(elem, base)
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}

		name := string(child.LocalName())
		switch name {
		case "annotation":
		case "simpleType":
			r.BaseType = s.parseSimpleType(child)
		case "sequence", "choice", "all":
			r.Particle = s.parseModelGroup(child)
		case "group":
			if ref := s.parseGroupRef(child); ref != nil {
				r.Particle = ref
			}
		case "attribute":
			if attr := s.parseAttribute(child, false); attr != nil {
				r.Attributes = append(r.Attributes, attr)
			}
		case "attributeGroup":
			if ref := string(child.GetAttribute("ref")); ref != "" {
				r.AttributeGroups = append(r.AttributeGroups, s.parseQName(child, ref))
			}
		case "anyAttribute":
			r.AnyAttribute = s.parseAnyAttribute(child)
		case "assert":
			s.Features.Assertions = true
			r.Assertions = append(r.Assertions, string(child.GetAttribute("test")))
		case "assertion":
			s.Features.Assertions = true
			r.Facets.Add("assertion", string(child.GetAttribute("test")))
		case "openContent":
			s.Features.OpenContent = true
		default:
			if IsFacetName(name) {
				if name == "explicitTimezone" {
					s.Features.ExplicitTimezone = true
				}
				r.Facets.AddFixed(name, string(child.GetAttribute("value")), parseBool(child, "fixed"))
			}
		}
	}

	return r
}

func (s *Schema) parseList(elem xmldom.Element) *List {
	list := &List{}

	if itemType := string(elem.GetAttribute("itemType")); itemType != "" {
		list.ItemType = s.parseQName(elem, itemType)
		return list
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}
		if string(child.LocalName()) == "simpleType" {
			list.Item = s.parseSimpleType(child)
			break
		}
	}

	return list
}

func (s *Schema) parseUnion(elem xmldom.Element) *Union {
	u := &Union{}

	for _, t := range strings.Fields(string(elem.GetAttribute("memberTypes"))) {
		u.MemberTypes = append(u.MemberTypes, s.parseQName(elem, t))
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}
		if string(child.LocalName()) == "simpleType" {
			u.Members = append(u.Members, s.parseSimpleType(child))
		}
	}

	return u
}

func (s *Schema) parseSimpleContent(elem xmldom.Element) *SimpleContent {
	sc := &SimpleContent{}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}

		switch string(child.LocalName()) {
		case "extension":
			sc.Extension = s.parseExtension(child)
		case "restriction":
			sc.Restriction = s.parseRestriction(child)
		}
	}

	return sc
}

func (s *Schema) parseComplexContent(elem xmldom.Element) *ComplexContent {
	cc := &ComplexContent{Mixed: parseBool(elem, "mixed")}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}

		switch string(child.LocalName()) {
		case "extension":
			cc.Extension = s.parseExtension(child)
		case "restriction":
			cc.Restriction = s.parseRestriction(child)
		}
	}

	return cc
}

func (s *Schema) parseExtension(elem xmldom.Element) *Extension {
	ext := &Extension{
		Base: s.parseQName(elem, string(elem.GetAttribute("base"))),
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}

		switch string(child.LocalName()) {
		case "attribute":
			if attr := s.parseAttribute(child, false); attr != nil {
				ext.Attributes = append(ext.Attributes, attr)
			}
		case "attributeGroup":
			if ref := string(child.GetAttribute("ref")); ref != "" {
				ext.AttributeGroups = append(ext.AttributeGroups, s.parseQName(child, ref))
			}
		case "sequence", "choice", "all":
			ext.Particle = s.parseModelGroup(child)
		case "group":
			if ref := s.parseGroupRef(child); ref != nil {
				ext.Particle = ref
			}
		case "anyAttribute":
			ext.AnyAttribute = s.parseAnyAttribute(child)
		case "assert":
			s.Features.Assertions = true
			ext.Assertions = append(ext.Assertions, string(child.GetAttribute("test")))
		case "openContent":
			s.Features.OpenContent = true
		}
	}

	return ext
}

func (s *Schema) parseModelGroup(elem xmldom.Element) *ModelGroup {
	mg := &ModelGroup{
		Kind:   ModelGroupKind(elem.LocalName()),
		MinOcc: parseOccurs(elem, "minOccurs", 1),
		MaxOcc: parseOccurs(elem, "maxOccurs", 1),
		Source: elem,
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}

		switch string(child.LocalName()) {
		case "element":
			if ref := string(child.GetAttribute("ref")); ref != "" {
				mg.Particles = append(mg.Particles, &ElementRef{
					Ref:           s.parseQName(child, ref),
					MinOcc:        parseOccurs(child, "minOccurs", 1),
					MaxOcc:        parseOccurs(child, "maxOccurs", 1),
					Documentation: annotationOf(child),
					Source:        child,
				})
			} else if decl := s.parseElement(child, false); decl != nil {
				mg.Particles = append(mg.Particles, decl)
			}
		case "group":
			if ref := s.parseGroupRef(child); ref != nil {
				mg.Particles = append(mg.Particles, ref)
			}
		case "choice", "sequence", "all":
			mg.Particles = append(mg.Particles, s.parseModelGroup(child))
		case "any":
			mg.Particles = append(mg.Particles, &AnyElement{
				Namespace:       string(child.GetAttribute("namespace")),
				ProcessContents: parseProcessContents(child),
				MinOcc:          parseOccurs(child, "minOccurs", 1),
				MaxOcc:          parseOccurs(child, "maxOccurs", 1),
				TargetNamespace: s.TargetNamespace,
				Source:          child,
			})
		}
	}

	return mg
}

func (s *Schema) parseGroupRef(elem xmldom.Element) *GroupRef {
	ref := string(elem.GetAttribute("ref"))
	if ref == "" {
		return nil
	}
	return &GroupRef{
		Ref:    s.parseQName(elem, ref),
		MinOcc: parseOccurs(elem, "minOccurs", 1),
		MaxOcc: parseOccurs(elem, "maxOccurs", 1),
		Source: elem,
	}
}

func (s *Schema) parseAttribute(elem xmldom.Element, isGlobal bool) *AttributeDecl {
	attr := &AttributeDecl{
		Use:     OptionalUse,
		Default: string(elem.GetAttribute("default")),
		Fixed:   string(elem.GetAttribute("fixed")),
		Global:  isGlobal,
		Source:  elem,
	}
	if use := string(elem.GetAttribute("use")); use != "" {
		attr.Use = AttributeUse(use)
	}

	if ref := string(elem.GetAttribute("ref")); ref != "" {
		attr.Ref = s.parseQName(elem, ref)
		attr.Name = attr.Ref
	} else if name := string(elem.GetAttribute("name")); name != "" {
		attr.Name = QName{Namespace: s.attributeNamespace(elem, isGlobal), Local: name}
	} else {
		return nil
	}

	if typeName := string(elem.GetAttribute("type")); typeName != "" {
		attr.TypeName = s.parseQName(elem, typeName)
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}
		switch string(child.LocalName()) {
		case "annotation":
			attr.Documentation = append(attr.Documentation, parseAnnotation(child)...)
		case "simpleType":
			attr.Type = s.parseSimpleType(child)
		}
	}

	return attr
}

func (s *Schema) parseAnyAttribute(elem xmldom.Element) *AnyAttribute {
	return &AnyAttribute{
		Namespace:       string(elem.GetAttribute("namespace")),
		ProcessContents: parseProcessContents(elem),
		TargetNamespace: s.TargetNamespace,
		Source:          elem,
	}
}

func (s *Schema) parseAttributeGroup(elem xmldom.Element) {
	name := string(elem.GetAttribute("name"))
	if name == "" {
		return
	}

	ag := &AttributeGroup{
		Name: QName{Namespace: s.TargetNamespace, Local: name},
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}

		switch string(child.LocalName()) {
		case "attribute":
			if attr := s.parseAttribute(child, false); attr != nil {
				ag.Attributes = append(ag.Attributes, attr)
			}
		case "attributeGroup":
			if ref := string(child.GetAttribute("ref")); ref != "" {
				ag.AttributeGroups = append(ag.AttributeGroups, s.parseQName(child, ref))
			}
		case "anyAttribute":
			ag.AnyAttribute = s.parseAnyAttribute(child)
		}
	}

	s.AttributeGroups[ag.Name] = ag
}

func (s *Schema) parseGroup(elem xmldom.Element) {
	name := string(elem.GetAttribute("name"))
	if name == "" {
		return
	}

	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}

		switch string(child.LocalName()) {
		case "sequence", "choice", "all":
			s.Groups[QName{Namespace: s.TargetNamespace, Local: name}] = s.parseModelGroup(child)
			return
		}
	}
}

// parseQName resolves a QName-valued attribute of elem. Prefixes declared on
// elem win over the document-level declarations; unknown prefixes and
// unprefixed names without a default namespace fall back to the target
// namespace.
func (s *Schema) parseQName(elem xmldom.Element, name string) QName {
	name = strings.TrimSpace(name)
	if name == "" {
		return QName{}
	}

	prefix, local, ok := strings.Cut(name, ":")
	if !ok {
		prefix, local = "", name
	}

	if uri, ok := localDeclaration(elem, prefix); ok {
		return QName{Namespace: uri, Local: local}
	}
	if uri, ok := s.Namespaces.Lookup(prefix); ok {
		return QName{Namespace: uri, Local: local}
	}

	switch prefix {
	case "xml":
		return QName{Namespace: XMLNamespace, Local: local}
	case "xs", "xsd":
		return QName{Namespace: XSDNamespace, Local: local}
	}
	return QName{Namespace: s.TargetNamespace, Local: local}
}

// localDeclaration looks for an xmlns declaration of prefix on elem itself.
func localDeclaration(elem xmldom.Element, prefix string) (string, bool) {
	if elem == nil {
		return "", false
	}
	attrs := elem.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		attr := attrs.Item(i)
		if attr == nil {
			continue
		}
		if p, ok := declaredPrefix(attr); ok && p == prefix {
			return string(attr.NodeValue()), true
		}
	}
	return "", false
}

func parseAnnotation(elem xmldom.Element) []Documentation {
	var docs []Documentation
	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace || string(child.LocalName()) != "documentation" {
			continue
		}
		lang := string(child.GetAttributeNS(XMLNamespace, "lang"))
		if lang == "" {
			lang = string(child.GetAttribute("xml:lang"))
		}
		docs = append(docs, Documentation{
			Lang:   NormalizeLang(lang),
			Text:   strings.TrimSpace(string(child.TextContent())),
			Source: string(child.GetAttribute("source")),
		})
	}
	return docs
}

// annotationOf collects the documentation of elem's xs:annotation children.
func annotationOf(elem xmldom.Element) []Documentation {
	var docs []Documentation
	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child != nil && string(child.NamespaceURI()) == XSDNamespace && string(child.LocalName()) == "annotation" {
			docs = append(docs, parseAnnotation(child)...)
		}
	}
	return docs
}

// parseOccurs parses minOccurs/maxOccurs attributes
func parseOccurs(elem xmldom.Element, attr string, defaultValue int) int {
	value := strings.TrimSpace(string(elem.GetAttribute(xmldom.DOMString(attr))))
	if value == "" {
		return defaultValue
	}
	if value == "unbounded" {
		return Unbounded
	}
	if n, err := strconv.Atoi(value); err == nil && n >= 0 {
		return n
	}
	return defaultValue
}

func parseBool(elem xmldom.Element, attr string) bool {
	switch strings.TrimSpace(string(elem.GetAttribute(xmldom.DOMString(attr)))) {
	case "true", "1":
		return true
	}
	return false
}

func parseProcessContents(elem xmldom.Element) ProcessContentsMode {
	mode := ProcessContentsMode(strings.TrimSpace(string(elem.GetAttribute("processContents"))))
	if mode == "" {
		return StrictProcess
	}
	return mode
}
