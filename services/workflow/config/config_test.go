// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Normalize()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Coder.MaxIterations)
	assert.Equal(t, 3, cfg.Coder.MaxOutputRefinements)
	assert.Equal(t, 10, cfg.Planner.MaxQuestions)
	assert.Equal(t, 120*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, "result.csv", cfg.Coder.OutputFilename)
	assert.Equal(t, "python", cfg.Coder.Language)
	assert.Equal(t, 500, cfg.Coder.OutputTail)
	assert.Equal(t, 2, cfg.Coder.RecentFailures)
	assert.Equal(t, filepath.Join("storage", "badger"), cfg.Store.BadgerDir)
}

func TestNormalize_Clamps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Executor.Timeout = 10 * time.Millisecond
	cfg.Executor.MaxOutputBytes = 10
	cfg.LLM.Timeout = 0
	cfg.Normalize()

	assert.Equal(t, time.Second, cfg.Executor.Timeout)
	assert.Equal(t, 1024, cfg.Executor.MaxOutputBytes)
	assert.Equal(t, 2*time.Minute, cfg.LLM.Timeout)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "bard" }},
		{"zero iterations", func(c *Config) { c.Coder.MaxIterations = 0 }},
		{"unknown coder language", func(c *Config) { c.Coder.Language = "ruby" }},
		{"zero output tail", func(c *Config) { c.Coder.OutputTail = 0 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "s3" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"empty state dir", func(c *Config) { c.Paths.StateDir = "" }},
		{"bad base url", func(c *Config) { c.LLM.BaseURL = "not a url" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRequireAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorIs(t, cfg.RequireAPIKey(), ErrMissingAPIKey)

	cfg.LLM.APIKey = "sk-test"
	assert.NoError(t, cfg.RequireAPIKey())

	cfg.LLM.APIKey = ""
	cfg.LLM.Provider = "ollama"
	assert.NoError(t, cfg.RequireAPIKey())
}

// clearEnv blanks every variable applyEnv reads so host settings cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"WFB_DATA_DIR", "WFB_OUTPUTS_DIR", "WFB_STORAGE_DIR", "WFB_STATE_DIR",
		"WFB_GENERATED_CODE_DIR", "WFB_LOGS_DIR", "WFB_LLM_PROVIDER", "OPENAI_MODEL",
		"WFB_LLM_MODEL", "OPENAI_API_KEY", "WFB_LLM_BASE_URL", "WFB_PYTHON", "WFB_VENV_DIR",
		"WFB_STORE_BACKEND", "WFB_LOG_LEVEL", "WFB_API_ADDR", "OTEL_TRACES_EXPORTER",
		"OTEL_METRICS_EXPORTER", "OTEL_EXPORTER_OTLP_ENDPOINT", "WFB_EXECUTION_TIMEOUT",
		"WFB_MAX_ITERATIONS", "WFB_MAX_QUESTIONS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	content := `
llm:
  provider: ollama
  model: llama3
coder:
  max_iterations: 7
executor:
  timeout: 30s
store:
  backend: badger
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 7, cfg.Coder.MaxIterations)
	assert.Equal(t, 30*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, "badger", cfg.Store.Backend)
	// Untouched sections keep defaults.
	assert.Equal(t, "python3", cfg.Executor.PythonPath)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coder: [unclosed"), 0600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":        "sk-env",
		"WFB_LLM_MODEL":         "gpt-4o-mini",
		"WFB_EXECUTION_TIMEOUT": "45",
		"WFB_MAX_ITERATIONS":    "3",
		"WFB_STORE_BACKEND":     "badger",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	require.NoError(t, applyEnv(&cfg, lookup))
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 45*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, 3, cfg.Coder.MaxIterations)
	assert.Equal(t, "badger", cfg.Store.Backend)
}

func TestApplyEnv_BadNumber(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "WFB_MAX_ITERATIONS" {
			return "many", true
		}
		return "", false
	}
	cfg := DefaultConfig()
	assert.Error(t, applyEnv(&cfg, lookup))
}

func TestParseSecondsOrDuration(t *testing.T) {
	d, err := parseSecondsOrDuration("90")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = parseSecondsOrDuration("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = parseSecondsOrDuration("soon")
	assert.Error(t, err)
}

func TestWriteDefault_RoundTrips(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Coder, cfg.Coder)
}
