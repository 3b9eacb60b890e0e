package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/sdk/trace"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "llrt", cfg.ServiceName)
	assert.Equal(t, "grpc", cfg.Protocol)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "TRUE")
	t.Setenv("OTEL_SERVICE_NAME", "llrt-bench")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "Authorization=Bearer abc, x-tenant = prod")

	cfg := LoadFromEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "llrt-bench", cfg.ServiceName)
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer abc",
		"x-tenant":      "prod",
	}, cfg.Headers)
}

func TestParseKeyValuePairsEdgeCases(t *testing.T) {
	assert.Empty(t, parseKeyValuePairs(""))
	assert.Empty(t, parseKeyValuePairs("=value,novalue"))
	assert.Equal(t, map[string]string{"k": "a=b"}, parseKeyValuePairs("k=a=b"))
}

func TestCreateSampler(t *testing.T) {
	cases := []struct {
		sampler string
		arg     string
		want    trace.Sampler
	}{
		{"always_on", "", trace.AlwaysSample()},
		{"always_off", "", trace.NeverSample()},
		{"traceidratio", "0.25", trace.TraceIDRatioBased(0.25)},
		{"traceidratio", "junk", trace.TraceIDRatioBased(1.0)},
		{"traceidratio", "7", trace.TraceIDRatioBased(1.0)},
		{"", "", trace.AlwaysSample()},
	}
	for _, tc := range cases {
		got := createSampler(&Config{Sampler: tc.sampler, SamplerArg: tc.arg})
		assert.Equal(t, tc.want.Description(), got.Description(), "sampler %q arg %q", tc.sampler, tc.arg)
	}
}

func TestParseRatioClamps(t *testing.T) {
	assert.Equal(t, 1.0, parseRatio(""))
	assert.Equal(t, 0.5, parseRatio("0.5"))
	assert.Equal(t, 0.0, parseRatio("-3"))
	assert.Equal(t, 1.0, parseRatio("2"))
}
