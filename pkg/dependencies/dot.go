package dependencies

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// WriteDOT renders the graph as a Graphviz digraph. Nodes and edges are
// written in sorted order and edges carry no labels.
func WriteDOT(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph dependencies {")
	for _, name := range g.names {
		fmt.Fprintf(bw, "    %s;\n", quoteID(name))
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(bw, "    %s -> %s;\n", quoteID(e.From), quoteID(e.To))
	}
	fmt.Fprintln(bw, "}")

	return bw.Flush()
}

// ParseDOT reads back the node and edge statements of a digraph written by
// WriteDOT. Attribute lists are skipped; other DOT constructs are rejected.
func ParseDOT(r io.Reader) ([]string, []Edge, error) {
	var (
		nodes  []string
		edges  []Edge
		seen   = make(map[string]bool)
		inBody bool
		lineNo int
	)

	addNode := func(name string) {
		if !seen[name] {
			seen[name] = true
			nodes = append(nodes, name)
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if !inBody {
			if !strings.HasPrefix(line, "digraph") || !strings.HasSuffix(line, "{") {
				return nil, nil, fmt.Errorf("line %d: expected digraph header, got %q", lineNo, line)
			}
			inBody = true
			continue
		}
		if line == "}" {
			return nodes, edges, scanner.Err()
		}

		line = strings.TrimSuffix(line, ";")
		if i := strings.LastIndex(line, "["); i >= 0 && strings.HasSuffix(line, "]") {
			line = strings.TrimSpace(line[:i])
		}

		from, rest, err := unquoteID(line)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rest = strings.TrimSpace(rest)
		if rest == "" {
			addNode(from)
			continue
		}
		if !strings.HasPrefix(rest, "->") {
			return nil, nil, fmt.Errorf("line %d: unexpected %q", lineNo, rest)
		}

		to, rest, err := unquoteID(strings.TrimSpace(rest[2:]))
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if strings.TrimSpace(rest) != "" {
			return nil, nil, fmt.Errorf("line %d: unexpected %q", lineNo, rest)
		}
		addNode(from)
		addNode(to)
		edges = append(edges, Edge{From: from, To: to})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	return nil, nil, fmt.Errorf("unterminated digraph")
}

// idEscaper keeps every ID on one line
var idEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)

func quoteID(s string) string {
	return `"` + idEscaper.Replace(s) + `"`
}

// unquoteID reads one quoted ID from the start of s and returns the remainder
func unquoteID(s string) (string, string, error) {
	if !strings.HasPrefix(s, `"`) {
		return "", "", fmt.Errorf("expected quoted identifier in %q", s)
	}

	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			if i+1 >= len(s) {
				return "", "", fmt.Errorf("dangling escape in %q", s)
			}
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[i])
			}
		case '"':
			return b.String(), s[i+1:], nil
		default:
			b.WriteByte(c)
		}
	}

	return "", "", fmt.Errorf("unterminated identifier in %q", s)
}
