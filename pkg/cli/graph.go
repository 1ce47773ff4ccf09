package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/platinummonkey/morp/pkg/dependencies"
	"github.com/platinummonkey/morp/pkg/observability"
	"github.com/spf13/cobra"
)

// Graph export formats
const (
	FormatDOT  = "dot"
	FormatJSON = "json"
)

// ErrStaleGraph is returned by graph --check when the export file does not match the manifests
var ErrStaleGraph = errors.New("exported graph is out of date")

// graphJSON is the JSON export of the graph
type graphJSON struct {
	Nodes []string            `json:"nodes"`
	Edges []dependencies.Edge `json:"edges"`
}

func newGraphCommand(a *app) *cobra.Command {
	var (
		output string
		format string
		check  bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the dependency graph",
		Long: `Export the internal dependency graph of every package.

The default output is a Graphviz file named dependencies.dot in the current
directory. Use "-o -" to write to standard output.

With --check, the existing DOT file is compared with the manifests and the
command fails if they differ.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("output") {
				a.cfg.Output = output
			}

			repo, err := a.load(cmd.Context())
			if err != nil {
				return err
			}

			if check {
				return checkGraph(a.cfg.Output, repo.Graph)
			}

			var buf bytes.Buffer
			start := time.Now()
			err = writeGraph(&buf, repo.Graph, format)
			a.metrics.ObserveStage(observability.StageExport, start, err)
			if err != nil {
				return err
			}

			if a.cfg.Output == "-" {
				_, err = buf.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err := os.WriteFile(a.cfg.Output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", a.cfg.Output, err)
			}

			a.log.WithField("file", a.cfg.Output).Infof("Wrote graph of %d packages", repo.Graph.Len())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "dependencies.dot", "Output file, - for stdout")
	cmd.Flags().StringVar(&format, "format", FormatDOT, "Output format: dot, json")
	cmd.Flags().BoolVar(&check, "check", false, "Fail if the existing DOT file does not match the manifests")
	return cmd
}

func writeGraph(w io.Writer, g *dependencies.Graph, format string) error {
	switch format {
	case FormatDOT:
		return dependencies.WriteDOT(w, g)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(graphJSON{Nodes: g.Nodes(), Edges: g.Edges()})
	default:
		return fmt.Errorf("unsupported format %q (valid: dot, json)", format)
	}
}

// checkGraph compares a DOT export with the live graph
func checkGraph(path string, g *dependencies.Graph) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	nodes, edges, err := dependencies.ParseDOT(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	sort.Strings(nodes)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	if !equalStrings(nodes, g.Nodes()) || !equalEdges(edges, g.Edges()) {
		return fmt.Errorf("%w: %s, run morp graph to regenerate", ErrStaleGraph, path)
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalEdges(a, b []dependencies.Edge) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
