// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import "time"

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds configuration for an Executor.
type Config struct {
	// WorkDir is where code files are written and processes run.
	// Created on first use.
	// Default: "."
	WorkDir string

	// Timeout applies to each block separately. Must be >= 1s.
	// Default: 120s
	Timeout time.Duration

	// MaxOutputBytes caps captured output per batch. Zero means unlimited.
	// Default: 65536 (64KB)
	MaxOutputBytes int

	// PythonPath is the interpreter used for python blocks when no
	// virtual environment is configured.
	// Default: "python3"
	PythonPath string

	// VenvDir is an optional virtual environment. Its bin directory is put
	// first on PATH and its python is used for python blocks.
	VenvDir string

	// CleanupTempFiles removes tmp_code_ files after each batch.
	// Default: true
	CleanupTempFiles bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		WorkDir:          ".",
		Timeout:          120 * time.Second,
		MaxOutputBytes:   64 * 1024,
		PythonPath:       "python3",
		CleanupTempFiles: true,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Timeout < time.Second {
		return ErrInvalidTimeout
	}
	if c.WorkDir == "" {
		c.WorkDir = "."
	}
	if c.PythonPath == "" {
		c.PythonPath = "python3"
	}
	if c.MaxOutputBytes < 0 {
		c.MaxOutputBytes = 0
	}
	return nil
}

// =============================================================================
// CONFIGURATION OPTIONS
// =============================================================================

// Option is a function that modifies Config.
type Option func(*Config)

// WithWorkDir sets the working directory.
func WithWorkDir(dir string) Option {
	return func(c *Config) {
		c.WorkDir = dir
	}
}

// WithTimeout sets the per-block timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithMaxOutputBytes sets the output capture limit.
func WithMaxOutputBytes(n int) Option {
	return func(c *Config) {
		c.MaxOutputBytes = n
	}
}

// WithPythonPath sets the python interpreter.
func WithPythonPath(path string) Option {
	return func(c *Config) {
		c.PythonPath = path
	}
}

// WithVenvDir sets the virtual environment directory.
func WithVenvDir(dir string) Option {
	return func(c *Config) {
		c.VenvDir = dir
	}
}

// WithCleanup enables or disables temp file cleanup.
func WithCleanup(enabled bool) Option {
	return func(c *Config) {
		c.CleanupTempFiles = enabled
	}
}

// NewConfig creates a Config with the given options applied.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
