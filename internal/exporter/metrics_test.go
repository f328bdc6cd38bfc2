package exporter_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callgrind-analysis/internal/exporter"
	"github.com/callgrind-analysis/pkg/compression"
)

type payload []struct {
	Common struct {
		Attributes map[string]interface{} `json:"attributes"`
	} `json:"common"`
	Metrics []exporter.Metric `json:"metrics"`
}

// ingestServer records decoded batches and answers with the statuses in
// order, then 202 for every later request.
type ingestServer struct {
	mu       sync.Mutex
	batches  []payload
	headers  []http.Header
	statuses []int
	requests atomic.Int32
}

func (s *ingestServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(s.requests.Add(1))

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	body, err := compression.Decompress(raw)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.batches = append(s.batches, p)
	s.headers = append(s.headers, r.Header.Clone())
	s.mu.Unlock()

	if n <= len(s.statuses) {
		w.WriteHeader(s.statuses[n-1])
		_, _ = w.Write([]byte("try later"))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func newMetricsExporter(t *testing.T, url string, opts exporter.MetricsOptions) *exporter.MetricsExporter {
	t.Helper()
	opts.Endpoint = url
	if opts.APIKey == "" {
		opts.APIKey = "secret-key"
	}
	opts.InitialInterval = time.Millisecond
	exp, err := exporter.NewMetricsExporter(opts)
	require.NoError(t, err)
	return exp
}

func TestNewMetricsExporter_Validation(t *testing.T) {
	_, err := exporter.NewMetricsExporter(exporter.MetricsOptions{APIKey: "k"})
	assert.Error(t, err)

	_, err = exporter.NewMetricsExporter(exporter.MetricsOptions{Endpoint: "http://localhost"})
	assert.Error(t, err)

	exp, err := exporter.NewMetricsExporter(exporter.MetricsOptions{Endpoint: "http://localhost", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "metrics", exp.Name())
}

func TestBuildMetrics_Sample(t *testing.T) {
	summary := sampleSummary(t)
	meta := sampleMeta()

	metrics := exporter.BuildMetrics(summary, meta, "cg")

	// 4 functions x 2 events x (self, inclusive), 3 edges x (count + 2 costs),
	// 2 totals.
	require.Len(t, metrics, 27)

	first := metrics[0]
	assert.Equal(t, "cg.function.self", first.Name)
	assert.Equal(t, "gauge", first.Type)
	assert.Equal(t, uint64(150), first.Value)
	assert.Equal(t, meta.Timestamp.UnixMilli(), first.Timestamp)
	assert.Equal(t, "main", first.Attributes["function"])
	assert.Equal(t, "Ir", first.Attributes["event"])

	assert.Equal(t, "cg.function.inclusive", metrics[1].Name)
	assert.Equal(t, uint64(1370), metrics[1].Value)

	counts := map[string]int{}
	for _, m := range metrics {
		counts[m.Name]++
	}
	assert.Equal(t, map[string]int{
		"cg.function.self":      8,
		"cg.function.inclusive": 8,
		"cg.call.count":         3,
		"cg.call.cost":          6,
		"cg.total":              2,
	}, counts)

	last := metrics[len(metrics)-1]
	assert.Equal(t, "cg.total", last.Name)
	assert.Equal(t, uint64(340), last.Value)
	assert.Equal(t, "Dr", last.Attributes["event"])
}

func TestBuildMetrics_Nil(t *testing.T) {
	assert.Nil(t, exporter.BuildMetrics(nil, sampleMeta(), "cg"))
}

func TestMetricsExporter_Export(t *testing.T) {
	srv := &ingestServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	exp := newMetricsExporter(t, ts.URL, exporter.MetricsOptions{BatchSize: 10, Concurrency: 2})
	require.NoError(t, exp.Export(context.Background(), sampleSummary(t), sampleMeta()))

	// 27 metrics in batches of 10.
	assert.Equal(t, int32(3), srv.requests.Load())

	total := 0
	for i, batch := range srv.batches {
		require.Len(t, batch, 1)
		total += len(batch[0].Metrics)
		attrs := batch[0].Common.Attributes
		assert.Equal(t, "run-1", attrs["profile.id"])
		assert.Equal(t, "./app --fast", attrs["profile.command"])
		assert.Equal(t, "ci-7", attrs["host"])

		h := srv.headers[i]
		assert.Equal(t, "secret-key", h.Get("Api-Key"))
		assert.Equal(t, "gzip", h.Get("Content-Encoding"))
		assert.Equal(t, "application/json", h.Get("Content-Type"))
	}
	assert.Equal(t, 27, total)
}

func TestMetricsExporter_RetriesServerErrors(t *testing.T) {
	srv := &ingestServer{statuses: []int{http.StatusServiceUnavailable, http.StatusTooManyRequests}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	exp := newMetricsExporter(t, ts.URL, exporter.MetricsOptions{BatchSize: 100, MaxRetries: 3})
	require.NoError(t, exp.Export(context.Background(), sampleSummary(t), sampleMeta()))

	assert.Equal(t, int32(3), srv.requests.Load())
}

func TestMetricsExporter_GivesUpAfterMaxRetries(t *testing.T) {
	srv := &ingestServer{statuses: []int{500, 500, 500, 500}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	exp := newMetricsExporter(t, ts.URL, exporter.MetricsOptions{BatchSize: 100, MaxRetries: 2})
	err := exp.Export(context.Background(), sampleSummary(t), sampleMeta())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(3), srv.requests.Load())
}

func TestMetricsExporter_ClientErrorIsPermanent(t *testing.T) {
	srv := &ingestServer{statuses: []int{http.StatusBadRequest}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	exp := newMetricsExporter(t, ts.URL, exporter.MetricsOptions{BatchSize: 100, MaxRetries: 5})
	err := exp.Export(context.Background(), sampleSummary(t), sampleMeta())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), srv.requests.Load())
}
