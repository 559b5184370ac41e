// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coder

import "errors"

// ErrInvalidMaxIterations indicates a non-positive iteration budget.
var ErrInvalidMaxIterations = errors.New("max iterations must be at least one")

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds configuration for a Session.
type Config struct {
	// MaxIterations bounds generate/execute cycles per Run.
	// Default: 5
	MaxIterations int

	// Language is the code block language sent to the executor and the
	// syntax checker.
	// Default: "python"
	Language string

	// PreviewRows is the number of output rows in the preview.
	// Default: 10
	PreviewRows int

	// OutputTail is how many trailing bytes of output go into corrective
	// instructions.
	// Default: 500
	OutputTail int

	// RecentFailures is how many failed attempts are summarized in the
	// generation context.
	// Default: 2
	RecentFailures int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxIterations:  5,
		Language:       "python",
		PreviewRows:    10,
		OutputTail:     500,
		RecentFailures: 2,
	}
}

// Validate checks the configuration and fills zero values.
func (c *Config) Validate() error {
	if c.MaxIterations < 1 {
		return ErrInvalidMaxIterations
	}
	if c.Language == "" {
		c.Language = "python"
	}
	if c.PreviewRows <= 0 {
		c.PreviewRows = 10
	}
	if c.OutputTail <= 0 {
		c.OutputTail = 500
	}
	if c.RecentFailures <= 0 {
		c.RecentFailures = 2
	}
	return nil
}

// Option is a function that modifies Config.
type Option func(*Config)

// WithMaxIterations sets the iteration budget.
func WithMaxIterations(n int) Option {
	return func(c *Config) {
		c.MaxIterations = n
	}
}

// WithLanguage sets the generated code language.
func WithLanguage(lang string) Option {
	return func(c *Config) {
		c.Language = lang
	}
}

// WithPreviewRows sets the preview row count.
func WithPreviewRows(n int) Option {
	return func(c *Config) {
		c.PreviewRows = n
	}
}

// WithOutputTail sets how much output is quoted in corrective prompts.
func WithOutputTail(n int) Option {
	return func(c *Config) {
		c.OutputTail = n
	}
}

// WithRecentFailures sets how many failed attempts the generation context
// summarizes.
func WithRecentFailures(n int) Option {
	return func(c *Config) {
		c.RecentFailures = n
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
