package formatter

import (
	"fmt"
	"io"

	"github.com/callgrind-analysis/internal/analyzer"
	"github.com/callgrind-analysis/internal/callgraph"
	"github.com/callgrind-analysis/pkg/writer"
)

// JSONFormatter writes the whole report as JSON.
type JSONFormatter struct {
	Pretty bool
}

// Name returns "json".
func (f *JSONFormatter) Name() string { return "json" }

// Extension returns ".json".
func (f *JSONFormatter) Extension() string { return ".json" }

// Format writes the report as one JSON document.
func (f *JSONFormatter) Format(report *analyzer.Report, w io.Writer) error {
	jw := writer.NewJSONWriter[*analyzer.Report]()
	if f.Pretty {
		jw = writer.NewPrettyJSONWriter[*analyzer.Report]()
	}
	return jw.Write(report, w)
}

// CallGraphFormatter writes only the call graph as JSON.
type CallGraphFormatter struct {
	Pretty bool
}

// Name returns "callgraph".
func (f *CallGraphFormatter) Name() string { return "callgraph" }

// Extension returns ".json".
func (f *CallGraphFormatter) Extension() string { return ".json" }

// Format writes the report's call graph.
func (f *CallGraphFormatter) Format(report *analyzer.Report, w io.Writer) error {
	if report.CallGraph == nil {
		return fmt.Errorf("report has no call graph")
	}
	cw := callgraph.NewJSONWriter()
	if f.Pretty {
		cw = callgraph.NewPrettyJSONWriter()
	}
	return cw.Write(report.CallGraph, w)
}

// DOTFormatter writes the call graph in Graphviz DOT syntax.
type DOTFormatter struct{}

// Name returns "dot".
func (f *DOTFormatter) Name() string { return "dot" }

// Extension returns ".dot".
func (f *DOTFormatter) Extension() string { return ".dot" }

// Format writes the report's call graph as a digraph.
func (f *DOTFormatter) Format(report *analyzer.Report, w io.Writer) error {
	if report.CallGraph == nil {
		return fmt.Errorf("report has no call graph")
	}
	return callgraph.NewDOTWriter().Write(report.CallGraph, w)
}
