package formatter

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callgrind-analysis/internal/analyzer"
	"github.com/callgrind-analysis/internal/exporter"
	"github.com/callgrind-analysis/internal/parser/callgrind"
	"github.com/callgrind-analysis/internal/testutil"
	"github.com/callgrind-analysis/pkg/utils"
)

func sampleReport(t *testing.T) *analyzer.Report {
	t.Helper()
	cfg := analyzer.DefaultConfig()
	cfg.Clock = utils.NewMockClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	report, err := analyzer.New(callgrind.NewParser(nil), nil, cfg).Analyze(context.Background(), &analyzer.Request{
		ID:     "run-1",
		Source: "callgrind.out.4242",
		Reader: testutil.Reader(testutil.SampleProfile),
	})
	require.NoError(t, err)
	return report
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(Options{})
	assert.Equal(t, []string{"callgraph", "dot", "json", "text"}, r.Names())

	f, err := r.Get("text")
	require.NoError(t, err)
	assert.Equal(t, ".txt", f.Extension())

	_, err = r.Get("yaml")
	assert.ErrorContains(t, err, "unknown output format")

	assert.Error(t, r.Format("json", nil, &bytes.Buffer{}))
}

func TestTextFormatter(t *testing.T) {
	report := sampleReport(t)
	report.Exports = []exporter.Status{
		{Exporter: "storage", Duration: 3 * time.Millisecond},
		{Exporter: "metrics", Duration: time.Second, Error: "endpoint unreachable"},
	}

	var buf bytes.Buffer
	require.NoError(t, NewRegistry(Options{}).Format("text", report, &buf))
	out := buf.String()

	assert.Contains(t, out, "=== Profile ===")
	assert.Contains(t, out, "Source:       callgrind.out.4242")
	assert.Contains(t, out, "Command:      ./app --fast")
	assert.Contains(t, out, "Total Ir:     1,370")
	assert.Contains(t, out, "Total Dr:     340")
	assert.Contains(t, out, "=== Top Functions (Ir, by self) ===")
	assert.Contains(t, out, "1,050")
	assert.Contains(t, out, "compute")
	assert.Contains(t, out, "=== Objects (Ir) ===")
	assert.Contains(t, out, "/lib/libc.so.6")
	assert.Contains(t, out, "=== Hot Path ===")
	assert.Contains(t, out, "main  100.00%")
	assert.Contains(t, out, "\n  compute")
	assert.Contains(t, out, "failed: endpoint unreachable")
	assert.NotContains(t, out, "=== Diagnostics ===")

}

func TestTextFormatter_Diagnostics(t *testing.T) {
	cfg := analyzer.DefaultConfig()
	dump := "events: Ir\nfn=main\n1 2\n3 4\n5 6\n"
	report, err := analyzer.New(callgrind.NewParser(nil), nil, cfg).Analyze(context.Background(),
		&analyzer.Request{Source: "-", Reader: strings.NewReader(dump)})
	require.NoError(t, err)
	require.Len(t, report.Diagnostics, 3)

	var buf bytes.Buffer
	require.NoError(t, (&TextFormatter{MaxRows: 2}).Format(report, &buf))
	out := buf.String()

	assert.Contains(t, out, "Source:       stdin")
	assert.Contains(t, out, "0 warnings, 3 errors, 0 fatal")
	assert.Contains(t, out, "line 3: [error] SyntaxError")
	assert.Contains(t, out, "... and 1 more")
	assert.NotContains(t, out, "suppressed")
}

func TestTextFormatter_SuppressedDiagnostics(t *testing.T) {
	p := callgrind.NewParser(&callgrind.ParserOptions{MaxDiagnostics: 1})
	dump := "events: Ir\nfn=main\n1 2\n3 4\n5 6\n"
	report, err := analyzer.New(p, nil, analyzer.DefaultConfig()).Analyze(context.Background(),
		&analyzer.Request{Source: "-", Reader: strings.NewReader(dump)})
	require.NoError(t, err)
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, 2, report.Suppressed)

	var buf bytes.Buffer
	require.NoError(t, (&TextFormatter{}).Format(report, &buf))
	assert.Contains(t, buf.String(), "2 suppressed after the diagnostics limit")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{Pretty: true}).Format(sampleReport(t), &buf))

	var decoded struct {
		ID       string `json:"id"`
		Summary  struct {
			Events []string `json:"events"`
		} `json:"summary"`
		TopFuncs struct {
			Event string `json:"event"`
		} `json:"top_funcs"`
		HotPath []struct {
			Name string `json:"name"`
		} `json:"hot_path"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.ID)
	assert.Equal(t, []string{"Ir", "Dr"}, decoded.Summary.Events)
	assert.Equal(t, "Ir", decoded.TopFuncs.Event)
	require.Len(t, decoded.HotPath, 3)
	assert.Equal(t, "main", decoded.HotPath[0].Name)
	assert.Contains(t, buf.String(), "\n  ")
}

func TestCallGraphFormatters(t *testing.T) {
	report := sampleReport(t)

	var jsonBuf bytes.Buffer
	require.NoError(t, (&CallGraphFormatter{}).Format(report, &jsonBuf))
	var cg struct {
		Event string            `json:"event"`
		Total uint64            `json:"total"`
		Nodes []json.RawMessage `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &cg))
	assert.Equal(t, "Ir", cg.Event)
	assert.Equal(t, uint64(1370), cg.Total)
	assert.Len(t, cg.Nodes, 4)

	var dotBuf bytes.Buffer
	require.NoError(t, (&DOTFormatter{}).Format(report, &dotBuf))
	assert.True(t, strings.HasPrefix(dotBuf.String(), "digraph"))
	assert.Contains(t, dotBuf.String(), "->")

	report.CallGraph = nil
	assert.Error(t, (&CallGraphFormatter{}).Format(report, &jsonBuf))
	assert.Error(t, (&DOTFormatter{}).Format(report, &dotBuf))
}
