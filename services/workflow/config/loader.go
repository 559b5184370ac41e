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
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when the openai provider has no key.
var ErrMissingAPIKey = errors.New("llm api key is required for the openai provider")

var configValidate = validator.New()

// Load builds a Config from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins).
//
// An empty path skips the file. A path that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags. It does not require an API key; callers
// that build an OpenAI client use RequireAPIKey.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RequireAPIKey returns ErrMissingAPIKey when the configured provider needs
// a key and none is set.
func (c *Config) RequireAPIKey() error {
	if c.LLM.Provider == "openai" && strings.TrimSpace(c.LLM.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// WriteDefault writes the default configuration as YAML to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("WFB_DATA_DIR", &cfg.Paths.DataDir)
	str("WFB_OUTPUTS_DIR", &cfg.Paths.OutputsDir)
	str("WFB_STORAGE_DIR", &cfg.Paths.StorageDir)
	str("WFB_STATE_DIR", &cfg.Paths.StateDir)
	str("WFB_GENERATED_CODE_DIR", &cfg.Paths.GeneratedCodeDir)
	str("WFB_LOGS_DIR", &cfg.Paths.LogsDir)
	str("WFB_LLM_PROVIDER", &cfg.LLM.Provider)
	str("OPENAI_MODEL", &cfg.LLM.Model)
	str("WFB_LLM_MODEL", &cfg.LLM.Model)
	str("OPENAI_API_KEY", &cfg.LLM.APIKey)
	str("WFB_LLM_BASE_URL", &cfg.LLM.BaseURL)
	str("WFB_PYTHON", &cfg.Executor.PythonPath)
	str("WFB_VENV_DIR", &cfg.Executor.VenvDir)
	str("WFB_STORE_BACKEND", &cfg.Store.Backend)
	str("WFB_LOG_LEVEL", &cfg.Logging.Level)
	str("WFB_API_ADDR", &cfg.API.ListenAddr)
	str("OTEL_TRACES_EXPORTER", &cfg.Telemetry.TraceExporter)
	str("OTEL_METRICS_EXPORTER", &cfg.Telemetry.MetricExporter)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)

	if v, ok := lookup("WFB_EXECUTION_TIMEOUT"); ok && v != "" {
		d, err := parseSecondsOrDuration(v)
		if err != nil {
			return fmt.Errorf("WFB_EXECUTION_TIMEOUT: %w", err)
		}
		cfg.Executor.Timeout = d
	}
	if v, ok := lookup("WFB_MAX_ITERATIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WFB_MAX_ITERATIONS: %w", err)
		}
		cfg.Coder.MaxIterations = n
	}
	if v, ok := lookup("WFB_MAX_QUESTIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WFB_MAX_QUESTIONS: %w", err)
		}
		cfg.Planner.MaxQuestions = n
	}
	return nil
}

// parseSecondsOrDuration accepts "90" (seconds) or a Go duration "90s".
func parseSecondsOrDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}
