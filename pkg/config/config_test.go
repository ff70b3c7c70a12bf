package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":9090"
  timeout: 45s

llm:
  endpoint: https://api.openai.com/v1
  api_key: test-key
  model: gpt-4o-mini
  temperature: 0.5

newsletter:
  name: Test Brief
  min_credibility: 4.0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, 45*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.InEpsilon(t, 0.5, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, "Test Brief", cfg.Newsletter.Name)
	assert.InEpsilon(t, 4.0, cfg.Newsletter.MinCredibility, 0.001)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  endpoint: https://api.openai.com/v1
  model: gpt-4o-mini
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "file:pressbrief.db?cache=shared&mode=rwc&_txlock=immediate", cfg.Database.DSN)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 30, cfg.Schedule.IngestInterval)
	assert.Equal(t, 6, cfg.Schedule.PipelineHour)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, cfg.Schedule.Weekdays)
	assert.InEpsilon(t, 0.3, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, 1000, cfg.LLM.MaxTokens)
	assert.InEpsilon(t, 6.0, cfg.LLM.Scoring.MinInterest, 0.001)
	assert.Equal(t, 10, cfg.LLM.Scoring.BatchSize)
	assert.Equal(t, "gpt-image-1", cfg.Image.Model)
	assert.Equal(t, 600, cfg.Image.TargetWidth)
	assert.Equal(t, "Pressbrief/1.0", cfg.Ingest.UserAgent)
	assert.Equal(t, "Pressbrief Daily", cfg.Newsletter.Name)
	assert.Equal(t, 2000, cfg.Newsletter.CleanMaxChars)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "secret-from-env")

	path := writeConfig(t, `
llm:
  endpoint: https://api.openai.com/v1
  model: gpt-4o-mini
  api_key: ${TEST_LLM_KEY}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.LLM.APIKey)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "missing llm endpoint",
			content: "llm:\n  model: gpt-4o-mini\n",
			errMsg:  "llm.endpoint is required",
		},
		{
			name:    "missing llm model",
			content: "llm:\n  endpoint: https://api.openai.com/v1\n",
			errMsg:  "llm.model is required",
		},
		{
			name: "temperature out of range",
			content: `
llm:
  endpoint: https://api.openai.com/v1
  model: gpt-4o-mini
  temperature: 3.5
`,
			errMsg: "llm.temperature must be between 0 and 2",
		},
		{
			name: "bad weekday",
			content: `
llm:
  endpoint: https://api.openai.com/v1
  model: gpt-4o-mini
schedule:
  weekdays: [1, 9]
`,
			errMsg: "schedule.weekdays entries must be between 0 and 6",
		},
		{
			name: "bad timezone",
			content: `
llm:
  endpoint: https://api.openai.com/v1
  model: gpt-4o-mini
schedule:
  timezone: Mars/Olympus
`,
			errMsg: "schedule.timezone is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestConfig_Location(t *testing.T) {
	path := writeConfig(t, `
llm:
  endpoint: https://api.openai.com/v1
  model: gpt-4o-mini
schedule:
  timezone: America/New_York
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", cfg.Location().String())

	// load-time validation rejects unknown zones, the fallback covers a
	// host without tzdata for the configured name
	broken := &Config{}
	broken.Schedule.Timezone = "Mars/Olympus"
	assert.Equal(t, time.UTC, broken.Location())
}

func TestConfig_DeliveryDay(t *testing.T) {
	path := writeConfig(t, `
llm:
  endpoint: https://api.openai.com/v1
  model: gpt-4o-mini
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.DeliveryDay(time.Monday))
	assert.True(t, cfg.DeliveryDay(time.Friday))
	assert.False(t, cfg.DeliveryDay(time.Saturday))
	assert.False(t, cfg.DeliveryDay(time.Sunday))
}
