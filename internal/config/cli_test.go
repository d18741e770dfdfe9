package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_KebabToSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "debug"},
		{"database.db_name", "database.db_name"},
		{"pipeline.unlock-threshold", "pipeline.unlock_threshold"},
		{"schedule.step1-interval", "schedule.step1_interval"},
		{"rpc.http-port", "rpc.http_port"},
		{"datadog.statsd.sample_rate", "datadog.statsd.sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, KebabToSnakeCase(tt.input))
		})
	}
}

func Test_parseStringAsList(t *testing.T) {
	t.Run("Should return an empty list for an empty string", func(t *testing.T) {
		assert.Equal(t, []string{}, parseStringAsList(""))
	})
	t.Run("Should trim and drop empty entries", func(t *testing.T) {
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, parseStringAsList(" https://a.example, ,https://b.example ,"))
	})
}
