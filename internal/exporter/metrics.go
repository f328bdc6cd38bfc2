package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/callgrind-analysis/pkg/compression"
	"github.com/callgrind-analysis/pkg/model"
	"github.com/callgrind-analysis/pkg/utils"
)

// Metric is one gauge sample.
type Metric struct {
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Value      uint64                 `json:"value"`
	Timestamp  int64                  `json:"timestamp"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// metricBatch is the payload shape of the ingestion API: common attributes
// plus a list of metrics.
type metricBatch struct {
	Common  metricCommon `json:"common"`
	Metrics []Metric     `json:"metrics"`
}

type metricCommon struct {
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// MetricsOptions configures a MetricsExporter.
type MetricsOptions struct {
	Endpoint    string
	APIKey      string
	Prefix      string
	BatchSize   int
	Concurrency int
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	Timeout    time.Duration
	// InitialInterval is the first retry delay.
	InitialInterval time.Duration
	HTTPClient      *http.Client
	Logger          utils.Logger
}

// MetricsExporter posts gauges to a metric ingestion endpoint.
type MetricsExporter struct {
	opts   MetricsOptions
	client *http.Client
	logger utils.Logger
}

// NewMetricsExporter creates a metrics exporter.
func NewMetricsExporter(opts MetricsOptions) (*MetricsExporter, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("metrics endpoint is required")
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("metrics API key is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = backoff.DefaultInitialInterval
	}
	if opts.Prefix == "" {
		opts.Prefix = "callgrind"
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &MetricsExporter{opts: opts, client: client, logger: logger}, nil
}

// Name returns "metrics".
func (e *MetricsExporter) Name() string { return "metrics" }

// Export builds the gauges of summary and posts them in batches.
func (e *MetricsExporter) Export(ctx context.Context, summary *model.ProfileSummary, meta ExportMeta) error {
	metrics := BuildMetrics(summary, meta, e.opts.Prefix)
	if len(metrics) == 0 {
		return nil
	}

	common := metricCommon{Attributes: map[string]interface{}{
		"profile.id":     meta.ID,
		"profile.source": meta.Source,
	}}
	if cmd := summary.Command(); cmd != "" {
		common.Attributes["profile.command"] = cmd
	}
	for k, v := range meta.Attributes {
		common.Attributes[k] = v
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for start := 0; start < len(metrics); start += e.opts.BatchSize {
		end := min(start+e.opts.BatchSize, len(metrics))
		batch := []metricBatch{{Common: common, Metrics: metrics[start:end]}}
		g.Go(func() error {
			return e.send(gctx, batch)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	e.logger.Debug("posted %d metrics for %s", len(metrics), meta.ID)
	return nil
}

func (e *MetricsExporter) send(ctx context.Context, batch []metricBatch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to marshal metrics: %w", err))
	}
	body, err = compression.Compress(compression.TypeGzip, body)
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.InitialInterval

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, e.post(ctx, body)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(e.opts.MaxRetries)+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			e.logger.Warn("metrics post failed, retrying in %v: %v", next, err)
		}),
	)
	return err
}

func (e *MetricsExporter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", compression.TypeGzip.ContentEncoding())
	req.Header.Set("Api-Key", e.opts.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post metrics: %w", err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("metrics endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	default:
		return backoff.Permanent(fmt.Errorf("metrics endpoint rejected batch with %d: %s", resp.StatusCode, bytes.TrimSpace(msg)))
	}
}

// BuildMetrics flattens a summary into gauges: self and inclusive cost per
// function and event, call count and cost per edge, and the totals. The
// order follows the summary's node order.
func BuildMetrics(summary *model.ProfileSummary, meta ExportMeta, prefix string) []Metric {
	if summary == nil {
		return nil
	}
	ts := meta.Timestamp.UnixMilli()
	if meta.Timestamp.IsZero() {
		ts = time.Now().UnixMilli()
	}
	events := summary.Events()

	var metrics []Metric
	gauge := func(name string, value uint64, attrs map[string]interface{}) {
		metrics = append(metrics, Metric{Name: prefix + "." + name, Type: "gauge", Value: value, Timestamp: ts, Attributes: attrs})
	}
	functionAttrs := func(id model.FunctionID, event string) map[string]interface{} {
		attrs := map[string]interface{}{"function": id.Name}
		if id.Object != "" {
			attrs["object"] = id.Object
		}
		if id.File != "" {
			attrs["file"] = id.File
		}
		if event != "" {
			attrs["event"] = event
		}
		return attrs
	}

	for _, node := range summary.Nodes() {
		inclusive := node.Inclusive()
		for i, event := range events {
			gauge("function.self", at(node.Self, i), functionAttrs(node.ID, event))
			gauge("function.inclusive", at(inclusive, i), functionAttrs(node.ID, event))
		}
		for _, call := range node.Calls {
			attrs := map[string]interface{}{"caller": node.ID.String(), "callee": call.Callee.String()}
			gauge("call.count", call.Calls, attrs)
			for i, event := range events {
				costAttrs := map[string]interface{}{"caller": node.ID.String(), "callee": call.Callee.String(), "event": event}
				gauge("call.cost", at(call.Cost, i), costAttrs)
			}
		}
	}

	totals := summary.Totals()
	for i, event := range events {
		gauge("total", at(totals, i), map[string]interface{}{"event": event})
	}
	return metrics
}

func at(v model.CostVector, i int) uint64 {
	if i < len(v) {
		return v[i]
	}
	return 0
}
