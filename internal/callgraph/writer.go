package callgraph

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/callgrind-analysis/pkg/writer"
)

// Writer writes a call graph in some format.
type Writer interface {
	Write(cg *CallGraph, writer io.Writer) error
}

// JSONWriter writes call graph data as JSON.
type JSONWriter struct {
	json *writer.JSONWriter[*CallGraph]
}

// NewJSONWriter creates a compact JSON writer.
func NewJSONWriter() *JSONWriter {
	return &JSONWriter{json: writer.NewJSONWriter[*CallGraph]()}
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter() *JSONWriter {
	return &JSONWriter{json: writer.NewPrettyJSONWriter[*CallGraph]()}
}

// Write writes the call graph as JSON to w.
func (j *JSONWriter) Write(cg *CallGraph, w io.Writer) error {
	return j.json.Write(cg, w)
}

// DOTWriter writes call graph data in Graphviz DOT format. Node font size
// grows with self cost and edge width with the edge's share of the total.
type DOTWriter struct{}

// NewDOTWriter creates a new DOT format writer.
func NewDOTWriter() *DOTWriter {
	return &DOTWriter{}
}

// Write writes the call graph in DOT format.
func (d *DOTWriter) Write(cg *CallGraph, w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "digraph %q {\n", "callgraph "+cg.Event)
	fmt.Fprintln(bw, `  node [shape=box, fontname="Helvetica"];`)
	fmt.Fprintf(bw, "  label=%q;\n", fmt.Sprintf("%s total: %s", cg.Event, humanize.Comma(clampInt64(cg.Total))))

	for _, node := range cg.Nodes {
		label := fmt.Sprintf("%s\n%.2f%% (%.2f%% self)\n%s", node.Name, node.TotalPct, node.SelfPct,
			humanize.Comma(clampInt64(node.Self)))
		fmt.Fprintf(bw, "  %q [label=%q, fontsize=%.0f];\n", node.ID, label, nodeFontSize(node.SelfPct))
	}

	for _, edge := range cg.Edges {
		label := fmt.Sprintf("%.2f%%\n%sx", edge.Weight, humanize.Comma(clampInt64(edge.Calls)))
		fmt.Fprintf(bw, "  %q -> %q [label=%q, penwidth=%.1f];\n", edge.Source, edge.Target, label, edgeWidth(edge.Weight))
	}

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func nodeFontSize(selfPct float64) float64 {
	return 10 + 30*math.Sqrt(math.Max(selfPct, 0)/100)
}

func edgeWidth(weight float64) float64 {
	return 1 + 4*math.Min(math.Max(weight, 0), 100)/100
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// WriteToFile writes the call graph to a file with the given writer.
func WriteToFile(w Writer, cg *CallGraph, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := w.Write(cg, file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
