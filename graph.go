package xsdgraph

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/agentflare-ai/go-xmldom"
)

// ErrDuplicatePath is returned when a path is inserted into a graph twice.
var ErrDuplicatePath = errors.New("duplicate node path")

// Path identifies a node: slash-separated segments from the root element.
// Elements are "/name", duplicates "/name[2]", attributes "/@name", groups
// "/sequence#1", "/choice#2", "/all#1" and wildcards "/any#1".
type Path string

func (p Path) Child(segment string) Path {
	return Path(string(p) + "/" + segment)
}

func (p Path) Parent() Path {
	i := strings.LastIndex(string(p), "/")
	if i <= 0 {
		return ""
	}
	return p[:i]
}

// Base returns the last segment.
func (p Path) Base() string {
	return string(p[strings.LastIndex(string(p), "/")+1:])
}

func (p Path) String() string { return string(p) }

// NodeKind is the kind of a graph node.
type NodeKind int

const (
	ElementNode NodeKind = iota
	AttributeNode
	SequenceNode
	ChoiceNode
	AllNode
)

func (k NodeKind) String() string {
	switch k {
	case ElementNode:
		return "element"
	case AttributeNode:
		return "attribute"
	case SequenceNode:
		return "sequence"
	case ChoiceNode:
		return "choice"
	case AllNode:
		return "all"
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

func groupNodeKind(kind ModelGroupKind) NodeKind {
	switch kind {
	case ChoiceGroup:
		return ChoiceNode
	case AllGroup:
		return AllNode
	}
	return SequenceNode
}

// TypeKind classifies a TypeRef.
type TypeKind int

const (
	UnknownKind TypeKind = iota
	BuiltinKind
	ComplexKind
	SimpleKind
	ListKind
	UnionKind
)

func (k TypeKind) String() string {
	return [...]string{"unknown", "builtin", "complex", "simple", "list", "union"}[k]
}

// TypeRef describes the type of a node. Simple types carry their built-in
// ancestor and the facets accumulated along the derivation chain.
type TypeRef struct {
	Kind    TypeKind
	Name    QName // zero for anonymous types
	Inline  bool
	Builtin string
	Item    *TypeRef
	Members []*TypeRef
	Facets  *Facets
}

func (t *TypeRef) String() string {
	if t == nil {
		return "<none>"
	}
	name := t.Name.String()
	if t.Inline || name == "" {
		name = "<anonymous>"
	}
	switch t.Kind {
	case ListKind:
		return fmt.Sprintf("list(%s)", t.Item)
	case UnionKind:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = m.String()
		}
		return fmt.Sprintf("union(%s)", strings.Join(parts, " | "))
	case SimpleKind:
		if t.Builtin != "" {
			return fmt.Sprintf("%s : %s", name, t.Builtin)
		}
	}
	return name
}

// IsSimple reports whether values of the type are text.
func (t *TypeRef) IsSimple() bool {
	return t != nil && t.Kind != ComplexKind && t.Kind != UnknownKind && !(t.Kind == BuiltinKind && t.Builtin == "anyType")
}

// Alternative is the graph form of a type alternative.
type Alternative struct {
	Test string
	Type QName
}

// Node is one element, attribute or compositor of a Graph.
type Node struct {
	Path      Path
	Name      string
	Namespace string
	Kind      NodeKind
	Type      *TypeRef
	// Value is the type of the text content: the simple type of an
	// attribute or simple element, the content type of a simple-content
	// element, nil otherwise.
	Value     *TypeRef
	MinOccurs int
	MaxOccurs int // Unbounded for unbounded
	Level     int

	Documentation []Documentation
	Facets        *Facets
	Wildcards     []Wildcard
	Alternatives  []Alternative
	Assertions    []string
	Children      []Path
	Source        xmldom.Element

	Fixed           string
	Default         string
	Nillable        bool
	Abstract        bool
	Mixed           bool
	SubstitutionFor QName

	// Cyclic marks a node whose type is already being expanded by an
	// ancestor; CycleRef names the recurring component.
	Cyclic     bool
	CycleRef   string
	Unresolved bool
}

func (n *Node) IsGroup() bool {
	return n.Kind == SequenceNode || n.Kind == ChoiceNode || n.Kind == AllNode
}

func (n *Node) IsWildcard() bool {
	return len(n.Wildcards) > 0
}

func (n *Node) IsRepeatable() bool {
	return n.MaxOccurs == Unbounded || n.MaxOccurs > 1
}

func (n *Node) IsOptional() bool {
	return n.MinOccurs == 0
}

func (n *Node) QName() QName {
	return QName{Namespace: n.Namespace, Local: n.Name}
}

// Graph is the path-keyed structural model of one root element. Nodes are
// inserted once by GraphBuilder; readers may share a built graph.
type Graph struct {
	mu              sync.RWMutex
	nodes           map[Path]*Node
	order           []Path
	root            Path
	warnings        []BuildWarning
	namespaces      *NamespaceTable
	targetNamespace string
}

// BuildWarning is a non-fatal problem found while building a graph.
type BuildWarning struct {
	Path    Path
	Message string
}

func (w BuildWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Message)
}

func newGraph(ns *NamespaceTable, tns string) *Graph {
	return &Graph{
		nodes:           make(map[Path]*Node),
		namespaces:      ns,
		targetNamespace: tns,
	}
}

func (g *Graph) insert(n *Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[n.Path]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePath, n.Path)
	}
	g.nodes[n.Path] = n
	g.order = append(g.order, n.Path)
	if g.root == "" {
		g.root = n.Path
	}
	return nil
}

func (g *Graph) warn(p Path, format string, args ...any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.warnings = append(g.warnings, BuildWarning{Path: p, Message: fmt.Sprintf(format, args...)})
}

func (g *Graph) Root() *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[g.root]
}

func (g *Graph) Node(p Path) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[p]
	return n, ok
}

// Children returns the direct children of n in order.
func (g *Graph) Children(n *Node) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(n.Children))
	for _, p := range n.Children {
		if c, ok := g.nodes[p]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Nodes returns every node in insertion (depth-first) order.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, len(g.order))
	for i, p := range g.order {
		out[i] = g.nodes[p]
	}
	return out
}

func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func (g *Graph) Warnings() []BuildWarning {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]BuildWarning(nil), g.warnings...)
}

func (g *Graph) Namespaces() *NamespaceTable {
	return g.namespaces
}

func (g *Graph) TargetNamespace() string {
	return g.targetNamespace
}

// Walk visits the nodes depth-first from the root. Returning SkipChildren
// from fn skips the node's subtree.
func (g *Graph) Walk(fn func(n *Node, depth int) error) error {
	root := g.Root()
	if root == nil {
		return nil
	}
	return g.walk(root, 0, fn)
}

// SkipChildren is returned by a Walk callback to skip a subtree.
var SkipChildren = errors.New("skip children")

func (g *Graph) walk(n *Node, depth int, fn func(*Node, int) error) error {
	if err := fn(n, depth); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, c := range g.Children(n) {
		if err := g.walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Flatten returns the element and attribute children of the node at p,
// with group nodes replaced by their own flattened children.
func (g *Graph) Flatten(p Path) []*Node {
	n, ok := g.Node(p)
	if !ok {
		return nil
	}
	var out []*Node
	for _, c := range g.Children(n) {
		if c.IsGroup() {
			out = append(out, g.Flatten(c.Path)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

func occursString(n *Node) string {
	hi := strconv.Itoa(n.MaxOccurs)
	if n.MaxOccurs == Unbounded {
		hi = "unbounded"
	}
	return fmt.Sprintf("[%d..%s]", n.MinOccurs, hi)
}

// Print writes the graph as an indented outline, one node per line.
func (g *Graph) Print(w io.Writer) error {
	return g.Walk(func(n *Node, depth int) error {
		var sb strings.Builder
		sb.WriteString(strings.Repeat("  ", depth))
		switch n.Kind {
		case AttributeNode:
			sb.WriteString("@" + n.Name)
		default:
			sb.WriteString(n.Name)
		}
		fmt.Fprintf(&sb, " %s %s", n.Kind, occursString(n))
		if n.Value != nil {
			fmt.Fprintf(&sb, " %s", n.Value)
		} else if n.Type != nil && !n.IsGroup() {
			fmt.Fprintf(&sb, " %s", n.Type)
		}

		var markers []string
		if n.Cyclic {
			markers = append(markers, "cyclic:"+n.CycleRef)
		}
		if n.Unresolved {
			markers = append(markers, "unresolved")
		}
		if n.Abstract {
			markers = append(markers, "abstract")
		}
		if !n.SubstitutionFor.IsZero() {
			markers = append(markers, "substitutes:"+n.SubstitutionFor.Local)
		}
		if n.Fixed != "" {
			markers = append(markers, "fixed="+n.Fixed)
		}
		if n.Default != "" {
			markers = append(markers, "default="+n.Default)
		}
		if len(markers) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(markers, ", "))
		}
		sb.WriteByte('\n')
		_, err := io.WriteString(w, sb.String())
		return err
	})
}
