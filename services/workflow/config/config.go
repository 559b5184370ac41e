// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the runtime configuration of the workflow builder.
//
// A Config is built once at process start (Load) and then passed by value
// into the constructors of the executor, coder, planner, store and
// orchestrator. There is no package-level instance.
package config

import (
	"path/filepath"
	"time"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config is the complete runtime configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	LLM       LLMConfig       `yaml:"llm"`
	Planner   PlannerConfig   `yaml:"planner"`
	Coder     CoderConfig     `yaml:"coder"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	API       APIConfig       `yaml:"api"`
}

// PathsConfig lists the directories the pipeline reads and writes.
type PathsConfig struct {
	// DataDir is the root for uploads and outputs.
	DataDir string `yaml:"data_dir" validate:"required"`

	// UploadsDir holds user supplied CSV files.
	UploadsDir string `yaml:"uploads_dir" validate:"required"`

	// OutputsDir holds one working directory per workflow.
	OutputsDir string `yaml:"outputs_dir" validate:"required"`

	// StorageDir is the root for persisted state and artifacts.
	StorageDir string `yaml:"storage_dir" validate:"required"`

	// StateDir holds one state document per workflow.
	StateDir string `yaml:"state_dir" validate:"required"`

	// GeneratedCodeDir holds timestamped copies of accepted scripts.
	GeneratedCodeDir string `yaml:"generated_code_dir" validate:"required"`

	// LogsDir enables file logging when non-empty.
	LogsDir string `yaml:"logs_dir"`
}

// LLMConfig selects and tunes the language model backend.
type LLMConfig struct {
	// Provider is "openai" or "ollama".
	Provider string `yaml:"provider" validate:"oneof=openai ollama"`

	Model string `yaml:"model" validate:"required"`

	// APIKey is only required by the openai provider.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`

	// RequestsPerMinute caps outgoing model calls. Zero disables limiting.
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`

	// Timeout bounds one model call.
	Timeout time.Duration `yaml:"timeout"`
}

// PlannerConfig tunes the planning conversation.
type PlannerConfig struct {
	MaxQuestions int `yaml:"max_questions" validate:"gte=1,lte=50"`
}

// CoderConfig tunes the code synthesis loop.
type CoderConfig struct {
	MaxIterations int `yaml:"max_iterations" validate:"gte=1,lte=50"`

	// MaxOutputRefinements bounds human driven refinements of a good output.
	MaxOutputRefinements int `yaml:"max_output_refinements" validate:"gte=0,lte=50"`

	// OutputFilename is the name of the result file in the workflow directory.
	OutputFilename string `yaml:"output_filename" validate:"required"`

	// PreviewRows is the number of rows rendered in output previews.
	PreviewRows int `yaml:"preview_rows" validate:"gte=1"`

	// Language is the language generated scripts are written in.
	Language string `yaml:"language" validate:"oneof=python sh bash"`

	// OutputTail is how many trailing bytes of a failed run are quoted
	// back to the model.
	OutputTail int `yaml:"output_tail" validate:"gte=1"`

	// RecentFailures is how many earlier failed attempts the model sees.
	RecentFailures int `yaml:"recent_failures" validate:"gte=1"`
}

// ExecutorConfig tunes subprocess execution.
type ExecutorConfig struct {
	// Timeout applies to each code block. Minimum one second.
	Timeout time.Duration `yaml:"timeout"`

	MaxOutputBytes int `yaml:"max_output_bytes" validate:"gte=0"`

	// PythonPath is the interpreter used when no virtual env is set.
	PythonPath string `yaml:"python_path" validate:"required"`

	// VenvDir points at a virtual environment whose bin directory is put
	// first on PATH.
	VenvDir string `yaml:"venv_dir"`

	// CleanupTempFiles removes synthesized tmp_code_ files after a batch.
	CleanupTempFiles bool `yaml:"cleanup_temp_files"`
}

// StoreConfig selects the state backend.
type StoreConfig struct {
	// Backend is "file" or "badger".
	Backend string `yaml:"backend" validate:"oneof=file badger"`

	// BadgerDir is the badger directory. Defaults under StorageDir.
	BadgerDir string `yaml:"badger_dir"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
}

// TelemetryConfig configures trace and metric exporters.
type TelemetryConfig struct {
	// TraceExporter is "otlp", "stdout" or "none".
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=otlp stdout none"`

	// MetricExporter is "prometheus", "stdout" or "none".
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`

	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// APIConfig configures the inspection server.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr" validate:"required"`
}

// DefaultConfig returns a Config rooted at the current directory.
func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			DataDir:          "data",
			UploadsDir:       filepath.Join("data", "uploads"),
			OutputsDir:       filepath.Join("data", "outputs"),
			StorageDir:       "storage",
			StateDir:         filepath.Join("storage", "workflows"),
			GeneratedCodeDir: filepath.Join("storage", "generated_code"),
			LogsDir:          "",
		},
		LLM: LLMConfig{
			Provider:          "openai",
			Model:             "gpt-4o",
			Temperature:       0.7,
			RequestsPerMinute: 60,
			Timeout:           2 * time.Minute,
		},
		Planner: PlannerConfig{
			MaxQuestions: 10,
		},
		Coder: CoderConfig{
			MaxIterations:        5,
			MaxOutputRefinements: 3,
			OutputFilename:       "result.csv",
			PreviewRows:          10,
			Language:             "python",
			OutputTail:           500,
			RecentFailures:       2,
		},
		Executor: ExecutorConfig{
			Timeout:          120 * time.Second,
			MaxOutputBytes:   64 * 1024,
			PythonPath:       "python3",
			CleanupTempFiles: true,
		},
		Store: StoreConfig{
			Backend: "file",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
		},
		API: APIConfig{
			ListenAddr: ":8085",
		},
	}
}

// Normalize clamps out-of-range values and fills derived defaults.
func (c *Config) Normalize() {
	if c.Executor.Timeout < time.Second {
		c.Executor.Timeout = time.Second
	}
	if c.Executor.MaxOutputBytes > 0 && c.Executor.MaxOutputBytes < 1024 {
		c.Executor.MaxOutputBytes = 1024
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 2 * time.Minute
	}
	if c.Store.BadgerDir == "" {
		c.Store.BadgerDir = filepath.Join(c.Paths.StorageDir, "badger")
	}
}

// WorkflowDir returns the working directory for a sanitized workflow name.
func (c Config) WorkflowDir(safeName string) string {
	return filepath.Join(c.Paths.OutputsDir, safeName)
}
