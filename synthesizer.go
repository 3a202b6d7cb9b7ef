package xsdgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
)

// DefaultMaxOccurrences caps repetitions of unbounded particles.
const DefaultMaxOccurrences = 3

// ErrUnsynthesizableRoot is returned when the root element cannot be emitted.
var ErrUnsynthesizableRoot = errors.New("root element cannot be synthesized")

// SynthesisOptions configure a Synthesizer.
type SynthesisOptions struct {
	// MandatoryOnly emits exactly MinOccurs copies of every particle.
	MandatoryOnly bool
	// MaxOccurrences caps the copies of repeatable particles. Zero means
	// DefaultMaxOccurrences.
	MaxOccurrences int
	// Seed makes runs reproducible when Rand is nil. Zero seeds randomly.
	Seed uint64
	// Rand, when set, is the random source for every run. It is not safe
	// for concurrent use, so neither is the Synthesizer then.
	Rand   *rand.Rand
	Logger *slog.Logger
}

// SynthesisWarning is a per-node problem found while synthesizing.
type SynthesisWarning struct {
	Path    Path
	Message string
}

func (w SynthesisWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Message)
}

// Sample is a synthesized document.
type Sample struct {
	XML      string
	Warnings []SynthesisWarning
}

// Synthesizer generates one sample document per Synthesize call.
type Synthesizer struct {
	opts SynthesisOptions
}

func NewSynthesizer(opts SynthesisOptions) *Synthesizer {
	if opts.MaxOccurrences <= 0 {
		opts.MaxOccurrences = DefaultMaxOccurrences
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Synthesizer{opts: opts}
}

func (s *Synthesizer) random() *rand.Rand {
	switch {
	case s.opts.Rand != nil:
		return s.opts.Rand
	case s.opts.Seed != 0:
		return rand.New(rand.NewPCG(s.opts.Seed, s.opts.Seed^0x9e3779b97f4a7c15))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Synthesize walks g depth-first from its root and returns a sample
// document. Per-node problems become warnings; only a root that cannot
// be emitted is an error.
func (s *Synthesizer) Synthesize(g *Graph) (*Sample, error) {
	root := g.Root()
	switch {
	case root == nil:
		return nil, ErrNoRoot
	case root.Unresolved:
		return nil, fmt.Errorf("%w: %s has an unresolved type", ErrUnsynthesizableRoot, root.Path)
	case root.Cyclic:
		return nil, fmt.Errorf("%w: %s is a cyclic reference", ErrUnsynthesizableRoot, root.Path)
	case root.Abstract:
		return nil, fmt.Errorf("%w: %s is abstract", ErrUnsynthesizableRoot, root.Path)
	}

	run := &synthRun{
		Synthesizer: s,
		g:           g,
		rng:         s.random(),
		refs:        make(map[string]bool),
	}
	run.values = newValueSynthesizer(run.rng, run.placeholder)

	doc := run.element(root)
	run.resolveReferences(doc)

	xml, err := writeSample(doc, g.Namespaces())
	if err != nil {
		return nil, fmt.Errorf("write sample: %w", err)
	}
	for _, w := range run.warnings {
		s.opts.Logger.Warn(w.Message, "path", w.Path)
	}
	return &Sample{XML: xml, Warnings: run.warnings}, nil
}

type synthRun struct {
	*Synthesizer
	g        *Graph
	rng      *rand.Rand
	values   *valueSynthesizer
	warnings []SynthesisWarning

	ids  []string
	refs map[string]bool // IDREF placeholders awaiting an ID
}

func (r *synthRun) warn(p Path, format string, args ...any) {
	r.warnings = append(r.warnings, SynthesisWarning{Path: p, Message: fmt.Sprintf(format, args...)})
}

// occurrences decides how many copies of n to emit.
func (r *synthRun) occurrences(n *Node) int {
	if r.opts.MandatoryOnly || n.IsWildcard() {
		return n.MinOccurs
	}
	if n.MaxOccurs == 0 {
		return 0
	}
	lo := max(n.MinOccurs, 1)
	hi := r.opts.MaxOccurrences
	if n.MaxOccurs != Unbounded {
		hi = min(n.MaxOccurs, hi)
	}
	if hi <= lo {
		return lo
	}
	return lo + r.rng.IntN(hi-lo+1)
}

// producible reports whether n can contribute content. Nodes that cannot
// are left out of choices and omitted elsewhere.
func (r *synthRun) producible(n *Node) bool {
	switch {
	case n.Unresolved, n.Cyclic:
		return false
	case n.Kind == ElementNode && n.Abstract:
		return false
	case n.IsWildcard():
		wc := n.Wildcards[0]
		return wc.ProcessContents != StrictProcess || len(n.Children) > 0
	}
	return true
}

// particle emits every copy of a content particle into parent.
func (r *synthRun) particle(parent *sampleElement, n *Node) {
	if n.Kind == AttributeNode {
		return
	}
	count := r.occurrences(n)
	if count == 0 {
		return
	}
	if !r.producible(n) {
		if n.MinOccurs > 0 {
			r.warn(n.Path, "required %s omitted: %s", n.Kind, r.omission(n))
		}
		return
	}
	for i := 0; i < count; i++ {
		r.emit(parent, n)
	}
}

func (r *synthRun) omission(n *Node) string {
	switch {
	case n.Unresolved:
		return "unresolved type"
	case n.Cyclic:
		return "cyclic reference to " + n.CycleRef
	case n.Abstract:
		return "abstract element without substitute"
	case n.IsWildcard():
		return "strict wildcard without a matching global element"
	}
	return "not producible"
}

func (r *synthRun) emit(parent *sampleElement, n *Node) {
	switch n.Kind {
	case SequenceNode, AllNode:
		for _, c := range r.g.Children(n) {
			r.particle(parent, c)
		}
	case ChoiceNode:
		r.choose(parent, n)
	case ElementNode:
		if n.IsWildcard() {
			r.wildcard(parent, n)
			return
		}
		parent.Append(r.element(n))
	}
}

// choose emits exactly one alternative of a choice occurrence.
func (r *synthRun) choose(parent *sampleElement, n *Node) {
	var enabled []*Node
	for _, c := range r.g.Children(n) {
		if c.Kind == AttributeNode || !r.producible(c) {
			continue
		}
		if r.opts.MandatoryOnly && c.MinOccurs == 0 {
			continue
		}
		enabled = append(enabled, c)
	}
	if len(enabled) == 0 {
		if !r.opts.MandatoryOnly || !r.emptiable(n) {
			r.warn(n.Path, "choice has no producible alternative")
		}
		return
	}
	r.particle(parent, enabled[r.rng.IntN(len(enabled))])
}

// emptiable reports whether a choice is satisfied by emitting nothing.
func (r *synthRun) emptiable(n *Node) bool {
	for _, c := range r.g.Children(n) {
		if c.MinOccurs == 0 {
			return true
		}
	}
	return len(n.Children) == 0
}

// wildcard emits the substitute of a strict wildcard or a placeholder.
func (r *synthRun) wildcard(parent *sampleElement, n *Node) {
	wc := n.Wildcards[0]
	if wc.ProcessContents == StrictProcess {
		children := r.g.Children(n)
		if len(children) == 0 {
			r.warn(n.Path, "strict wildcard without a matching global element omitted")
			return
		}
		r.particle(parent, children[0])
		return
	}
	parent.Append(&sampleElement{Name: QName{Namespace: wc.SampleNamespace(), Local: "anyElement"}})
}

func (r *synthRun) element(n *Node) *sampleElement {
	e := &sampleElement{Name: n.QName()}

	for _, c := range r.g.Children(n) {
		if c.Kind != AttributeNode || c.IsWildcard() {
			continue
		}
		if r.opts.MandatoryOnly && c.MinOccurs == 0 {
			continue
		}
		if c.Unresolved {
			if c.MinOccurs > 0 {
				r.warn(c.Path, "required attribute omitted: unresolved type")
			}
			continue
		}
		e.SetAttr(c.QName(), r.literal(c))
	}

	switch {
	case n.Type.IsSimple() || n.Value != nil:
		e.Text, e.HasText = r.literal(n), true
	default:
		for _, c := range r.g.Children(n) {
			r.particle(e, c)
		}
	}
	return e
}

// literal returns the text of a simple-valued element or attribute. Fixed
// values win over defaults, defaults over generated values.
func (r *synthRun) literal(n *Node) string {
	if n.Fixed != "" {
		return n.Fixed
	}
	if n.Default != "" {
		return n.Default
	}
	value, err := r.values.Value(n.Value)
	if err != nil {
		r.warn(n.Path, "%v", err)
	}
	if value != "" && n.Value != nil && n.Value.Kind != ListKind && BuiltinDerivesFrom(n.Value.Builtin, "ID") {
		r.ids = append(r.ids, value)
	}
	return value
}

func (r *synthRun) placeholder() string {
	p := fmt.Sprintf("idref-%d", len(r.refs)+1)
	r.refs[p] = true
	return p
}

// resolveReferences replaces IDREF placeholders with generated IDs.
func (r *synthRun) resolveReferences(doc *sampleElement) {
	if len(r.refs) == 0 {
		return
	}
	if len(r.ids) == 0 {
		r.warn(r.g.Root().Path, "IDREF values have no ID to refer to")
		return
	}
	replace := func(s string) string {
		fields := strings.Fields(s)
		changed := false
		for i, f := range fields {
			if r.refs[f] {
				fields[i] = r.ids[r.rng.IntN(len(r.ids))]
				changed = true
			}
		}
		if !changed {
			return s
		}
		return strings.Join(fields, " ")
	}
	doc.walk(func(e *sampleElement) {
		if e.HasText {
			e.Text = replace(e.Text)
		}
		for i := range e.Attrs {
			e.Attrs[i].Value = replace(e.Attrs[i].Value)
		}
	})
}
