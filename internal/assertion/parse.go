package assertion

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// ParseQuads reads serialized assertion lines back into statements. It
// accepts exactly the shape NQuads produces: IRI subject and predicate, IRI
// or literal object, optional graph label.
func ParseQuads(data []byte) ([]Quad, error) {
	var quads []Quad
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quad, err := parseQuadLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		quads = append(quads, quad)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning assertion: %w", err)
	}
	return quads, nil
}

func parseQuadLine(line string) (Quad, error) {
	rest, ok := strings.CutSuffix(line, " .")
	if !ok {
		return Quad{}, fmt.Errorf("missing statement terminator")
	}

	subject, rest, err := takeIRI(rest)
	if err != nil {
		return Quad{}, fmt.Errorf("subject: %w", err)
	}
	predicate, rest, err := takeIRI(rest)
	if err != nil {
		return Quad{}, fmt.Errorf("predicate: %w", err)
	}
	object, rest, err := takeTerm(rest)
	if err != nil {
		return Quad{}, fmt.Errorf("object: %w", err)
	}

	quad := Quad{Subject: subject, Predicate: predicate, Object: object}
	rest = strings.TrimSpace(rest)
	if rest != "" {
		graph, leftover, err := takeIRI(rest)
		if err != nil {
			return Quad{}, fmt.Errorf("graph label: %w", err)
		}
		if strings.TrimSpace(leftover) != "" {
			return Quad{}, fmt.Errorf("trailing content %q", leftover)
		}
		quad.Graph = graph
	}
	return quad, nil
}

func takeIRI(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "<") {
		return "", "", fmt.Errorf("expected IRI, got %q", s)
	}
	end := strings.IndexByte(s, '>')
	if end < 0 {
		return "", "", fmt.Errorf("unterminated IRI in %q", s)
	}
	return s[1:end], s[end+1:], nil
}

func takeTerm(s string) (Term, string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") {
		iri, rest, err := takeIRI(s)
		if err != nil {
			return Term{}, "", err
		}
		return IRIRef(iri), rest, nil
	}
	if !strings.HasPrefix(s, `"`) {
		return Term{}, "", fmt.Errorf("expected IRI or literal, got %q", s)
	}

	var b strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				return Term{}, "", fmt.Errorf("unknown escape \\%c", s[i+1])
			}
			i += 2
			continue
		}
		if c == '"' {
			rest := s[i+1:]
			if datatype, after, ok := strings.Cut(rest, "^^"); ok && datatype == "" {
				iri, leftover, err := takeIRI(after)
				if err != nil {
					return Term{}, "", err
				}
				return TypedLiteral(b.String(), iri), leftover, nil
			}
			return Literal(b.String()), rest, nil
		}
		b.WriteByte(c)
		i++
	}
	return Term{}, "", fmt.Errorf("unterminated literal in %q", s)
}

// ObjectIRI returns the object of the first default-graph statement matching
// the predicate, when that object is an IRI.
func ObjectIRI(quads []Quad, predicate string) (string, bool) {
	for _, quad := range quads {
		if quad.Graph == "" && quad.Predicate == predicate && quad.Object.IRI {
			return quad.Object.Value, true
		}
	}
	return "", false
}

// ObjectLiteral returns the object of the first default-graph statement
// matching subject and predicate, when that object is a literal.
func ObjectLiteral(quads []Quad, subject, predicate string) (string, bool) {
	for _, quad := range quads {
		if quad.Graph == "" && quad.Subject == subject && quad.Predicate == predicate && !quad.Object.IRI {
			return quad.Object.Value, true
		}
	}
	return "", false
}

// TranscriptContentID extracts the transcript's content id from a parsed
// assertion. The second result is false when the assertion carries no
// transcript link.
func TranscriptContentID(quads []Quad) (string, bool) {
	uri, ok := ObjectIRI(quads, schemaTranscript)
	if !ok {
		return "", false
	}
	id, ok := strings.CutPrefix(uri, ContentURIScheme)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// DocumentNode returns the subject IRI of the digital-document statement.
func DocumentNode(quads []Quad) (string, bool) {
	for _, quad := range quads {
		if quad.Graph == "" && quad.Predicate == rdfType && quad.Object.IRI && quad.Object.Value == schemaDigitalDocument {
			return quad.Subject, true
		}
	}
	return "", false
}
