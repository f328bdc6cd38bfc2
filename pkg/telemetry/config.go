package telemetry

import (
	"os"
	"strings"

	"github.com/callgrind-analysis/pkg/config"
)

// Config holds the tracing configuration.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP collector address, with or without a scheme.
	// An "http://" scheme implies an insecure connection.
	Endpoint string
	Protocol string // grpc or http/protobuf
	Headers  map[string]string
	Insecure bool

	Sampler    string
	SamplerArg string

	ResourceAttrs map[string]string
}

const defaultServiceName = "callgrind-analysis"

// LoadFromEnv loads configuration from the OTEL_* environment variables.
func LoadFromEnv() *Config {
	return loadFromLookup(os.LookupEnv)
}

func loadFromLookup(lookup func(string) (string, bool)) *Config {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}
	return &Config{
		Enabled:        strings.EqualFold(get("OTEL_ENABLED", ""), "true"),
		ServiceName:    get("OTEL_SERVICE_NAME", defaultServiceName),
		ServiceVersion: get("OTEL_SERVICE_VERSION", "unknown"),
		Endpoint:       get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Protocol:       get("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		Headers:        parseKeyValuePairs(get("OTEL_EXPORTER_OTLP_HEADERS", "")),
		Insecure:       strings.EqualFold(get("OTEL_EXPORTER_OTLP_INSECURE", ""), "true"),
		Sampler:        get("OTEL_TRACES_SAMPLER", ""),
		SamplerArg:     get("OTEL_TRACES_SAMPLER_ARG", ""),
		ResourceAttrs:  parseKeyValuePairs(get("OTEL_RESOURCE_ATTRIBUTES", "")),
	}
}

// Override applies the telemetry section of the application config. Set
// fields win over the environment; booleans can only switch features on.
func (c *Config) Override(app config.TelemetryConfig) *Config {
	out := *c
	out.Enabled = c.Enabled || app.Enabled
	out.Insecure = c.Insecure || app.Insecure
	if app.ServiceName != "" {
		out.ServiceName = app.ServiceName
	}
	if app.Endpoint != "" {
		out.Endpoint = app.Endpoint
	}
	if app.Protocol != "" {
		out.Protocol = app.Protocol
	}
	if app.Sampler != "" {
		out.Sampler = app.Sampler
	}
	if app.SamplerArg != "" {
		out.SamplerArg = app.SamplerArg
	}
	if len(app.Headers) > 0 {
		out.Headers = make(map[string]string, len(c.Headers)+len(app.Headers))
		for k, v := range c.Headers {
			out.Headers[k] = v
		}
		for k, v := range app.Headers {
			out.Headers[k] = v
		}
	}
	return &out
}

// parseKeyValuePairs parses "k1=v1,k2=v2". Values may contain '='.
func parseKeyValuePairs(s string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		result[key] = strings.TrimSpace(value)
	}
	return result
}
