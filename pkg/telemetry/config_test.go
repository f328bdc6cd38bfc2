package telemetry

import (
	"testing"

	"github.com/callgrind-analysis/pkg/config"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadFromLookup(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := loadFromLookup(lookupFrom(nil))

		if cfg.Enabled {
			t.Error("Expected Enabled to be false by default")
		}
		if cfg.ServiceName != "callgrind-analysis" {
			t.Errorf("Expected ServiceName 'callgrind-analysis', got '%s'", cfg.ServiceName)
		}
		if cfg.ServiceVersion != "unknown" {
			t.Errorf("Expected ServiceVersion 'unknown', got '%s'", cfg.ServiceVersion)
		}
		if cfg.Protocol != "grpc" {
			t.Errorf("Expected Protocol 'grpc', got '%s'", cfg.Protocol)
		}
	})

	t.Run("enabled_case_insensitive", func(t *testing.T) {
		cfg := loadFromLookup(lookupFrom(map[string]string{"OTEL_ENABLED": "TRUE"}))
		if !cfg.Enabled {
			t.Error("Expected Enabled to be true for 'TRUE'")
		}
	})

	t.Run("custom_values", func(t *testing.T) {
		cfg := loadFromLookup(lookupFrom(map[string]string{
			"OTEL_SERVICE_NAME":           "profiler-ci",
			"OTEL_SERVICE_VERSION":        "1.4.2",
			"OTEL_EXPORTER_OTLP_ENDPOINT": "https://collector.example.com:4317",
			"OTEL_EXPORTER_OTLP_PROTOCOL": "http/protobuf",
			"OTEL_EXPORTER_OTLP_INSECURE": "true",
			"OTEL_EXPORTER_OTLP_HEADERS":  "Authorization=Bearer token123,X-Custom=value",
			"OTEL_RESOURCE_ATTRIBUTES":    "deployment.environment=ci",
		}))

		if cfg.ServiceName != "profiler-ci" || cfg.ServiceVersion != "1.4.2" {
			t.Errorf("unexpected service %s %s", cfg.ServiceName, cfg.ServiceVersion)
		}
		if cfg.Endpoint != "https://collector.example.com:4317" {
			t.Errorf("unexpected endpoint %s", cfg.Endpoint)
		}
		if cfg.Protocol != "http/protobuf" || !cfg.Insecure {
			t.Errorf("unexpected transport %s insecure=%v", cfg.Protocol, cfg.Insecure)
		}
		if cfg.Headers["Authorization"] != "Bearer token123" || cfg.Headers["X-Custom"] != "value" {
			t.Errorf("unexpected headers %v", cfg.Headers)
		}
		if cfg.ResourceAttrs["deployment.environment"] != "ci" {
			t.Errorf("unexpected resource attributes %v", cfg.ResourceAttrs)
		}
	})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SERVICE_NAME", "from-env")

	cfg := LoadFromEnv()
	if !cfg.Enabled || cfg.ServiceName != "from-env" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestConfig_Override(t *testing.T) {
	base := loadFromLookup(lookupFrom(map[string]string{
		"OTEL_EXPORTER_OTLP_ENDPOINT": "collector:4317",
		"OTEL_EXPORTER_OTLP_HEADERS":  "Authorization=env,X-Env=1",
	}))

	cfg := base.Override(config.TelemetryConfig{
		Enabled:  true,
		Protocol: "http/protobuf",
		Headers:  map[string]string{"Authorization": "file"},
		Sampler:  "traceidratio",
	})

	if !cfg.Enabled {
		t.Error("Expected the config file to enable tracing")
	}
	if cfg.Endpoint != "collector:4317" {
		t.Errorf("Expected env endpoint to survive, got %s", cfg.Endpoint)
	}
	if cfg.Protocol != "http/protobuf" || cfg.Sampler != "traceidratio" {
		t.Errorf("unexpected overrides %s %s", cfg.Protocol, cfg.Sampler)
	}
	if cfg.Headers["Authorization"] != "file" || cfg.Headers["X-Env"] != "1" {
		t.Errorf("unexpected merged headers %v", cfg.Headers)
	}
	if base.Headers["Authorization"] != "env" {
		t.Error("Override must not modify the receiver")
	}
}

func TestParseKeyValuePairs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{name: "empty", input: "", expected: map[string]string{}},
		{name: "single_pair", input: "key=value", expected: map[string]string{"key": "value"}},
		{name: "multiple_pairs", input: "key1=value1,key2=value2", expected: map[string]string{"key1": "value1", "key2": "value2"}},
		{name: "with_spaces", input: " key1 = value1 , key2 = value2 ", expected: map[string]string{"key1": "value1", "key2": "value2"}},
		{name: "value_with_equals", input: "Authorization=Bearer token=abc", expected: map[string]string{"Authorization": "Bearer token=abc"}},
		{name: "empty_value", input: "key=", expected: map[string]string{"key": ""}},
		{name: "invalid_no_equals", input: "invalid", expected: map[string]string{}},
		{name: "mixed_valid_invalid", input: "valid=value,invalid,=x,another=test", expected: map[string]string{"valid": "value", "another": "test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseKeyValuePairs(tt.input)

			if len(result) != len(tt.expected) {
				t.Errorf("Expected %d pairs, got %d", len(tt.expected), len(result))
			}
			for k, v := range tt.expected {
				if result[k] != v {
					t.Errorf("Expected %s='%s', got '%s'", k, v, result[k])
				}
			}
		})
	}
}
