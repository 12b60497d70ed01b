package assertion

import (
	"bytes"
	"sort"
	"strings"
)

// Term is an N-Quads object position value: either an IRI reference or a
// literal with an optional datatype.
type Term struct {
	IRI      bool
	Value    string
	Datatype string
}

// IRIRef wraps an IRI as a term.
func IRIRef(iri string) Term { return Term{IRI: true, Value: iri} }

// Literal wraps a plain string literal.
func Literal(value string) Term { return Term{Value: value} }

// TypedLiteral wraps a literal carrying an explicit datatype IRI.
func TypedLiteral(value, datatype string) Term {
	return Term{Value: value, Datatype: datatype}
}

// Quad is one statement. Graph is empty for the default graph.
type Quad struct {
	Subject   string
	Predicate string
	Object    Term
	Graph     string
}

// Graph accumulates statements. Every node identifier must be a caller-derived
// IRI — there is no facility for blank nodes, which keeps the serialized form
// independent of construction order and of any labeling algorithm.
type Graph struct {
	quads []Quad
}

func NewGraph() *Graph { return &Graph{} }

// AddIRI appends subject–predicate–IRI to the default graph.
func (g *Graph) AddIRI(subject, predicate, object string) {
	g.quads = append(g.quads, Quad{Subject: subject, Predicate: predicate, Object: IRIRef(object)})
}

// AddTerm appends subject–predicate–term to the default graph.
func (g *Graph) AddTerm(subject, predicate string, object Term) {
	g.quads = append(g.quads, Quad{Subject: subject, Predicate: predicate, Object: object})
}

// AddToNamed appends a statement to the named graph labeled by graph.
func (g *Graph) AddToNamed(graph, subject, predicate string, object Term) {
	g.quads = append(g.quads, Quad{Subject: subject, Predicate: predicate, Object: object, Graph: graph})
}

// Len reports the number of accumulated statements.
func (g *Graph) Len() int { return len(g.quads) }

// NQuads serializes the graph as sorted N-Quads lines. Logically identical
// graphs yield byte-identical output regardless of insertion order.
func (g *Graph) NQuads() []byte {
	lines := make([]string, len(g.quads))
	for i, quad := range g.quads {
		lines[i] = formatQuad(quad)
	}
	sort.Strings(lines)

	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func formatQuad(quad Quad) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(quad.Subject)
	b.WriteString("> <")
	b.WriteString(quad.Predicate)
	b.WriteString("> ")
	b.WriteString(formatTerm(quad.Object))
	if quad.Graph != "" {
		b.WriteString(" <")
		b.WriteString(quad.Graph)
		b.WriteByte('>')
	}
	b.WriteString(" .")
	return b.String()
}

func formatTerm(term Term) string {
	if term.IRI {
		return "<" + term.Value + ">"
	}
	escaped := escapeLiteral(term.Value)
	if term.Datatype != "" {
		return `"` + escaped + `"^^<` + term.Datatype + ">"
	}
	return `"` + escaped + `"`
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeLiteral(value string) string {
	return literalEscaper.Replace(value)
}
