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

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/dataset"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/executor"
)

// =============================================================================
// REQUEST
// =============================================================================

var requestValidate = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("abspath", func(fl validator.FieldLevel) bool {
		return filepath.IsAbs(fl.Field().String())
	})
	return v
}

// Request describes one code synthesis session.
type Request struct {
	// WorkflowName labels logs and spans.
	WorkflowName string

	// Plan is the approved business logic plan.
	Plan string `validate:"required"`

	// InputFiles are the CSV files the code reads, in placeholder order.
	InputFiles []string `validate:"required,min=1,dive,required"`

	// OutputPath is where the code must write its result.
	OutputPath string `validate:"required,abspath"`
}

// Validate checks the request. Errors wrap ErrInvalidRequest.
func (r Request) Validate() error {
	if err := requestValidate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// =============================================================================
// RESULTS
// =============================================================================

// CodeAttempt is one executed attempt. Attempts are numbered from 1
// without gaps and never change after they are recorded.
type CodeAttempt struct {
	Iteration int                       `json:"iteration"`
	Timestamp time.Time                 `json:"timestamp"`
	Code      string                    `json:"code"`
	Result    *executor.ExecutionResult `json:"execution_result"`
}

// Outcome is the result of a session.
type Outcome struct {
	Success bool `json:"success"`

	// Code is the code that produced the validated output, with paths
	// materialized.
	Code string `json:"code,omitempty"`

	// Iterations counts loop iterations consumed, including those that
	// ended before execution.
	Iterations int `json:"iterations"`

	OutputPath string              `json:"output_path"`
	Validation *dataset.Validation `json:"validation,omitempty"`
	Preview    string              `json:"preview,omitempty"`
	Summary    *dataset.Summary    `json:"summary,omitempty"`

	Attempts   []CodeAttempt             `json:"attempts"`
	LastCode   string                    `json:"last_code,omitempty"`
	LastResult *executor.ExecutionResult `json:"last_result,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// RefineResult is the result of one refinement.
type RefineResult struct {
	Success    bool                      `json:"success"`
	Code       string                    `json:"code,omitempty"`
	Attempt    *CodeAttempt              `json:"attempt,omitempty"`
	Validation *dataset.Validation       `json:"validation,omitempty"`
	Preview    string                    `json:"preview,omitempty"`
	Summary    *dataset.Summary          `json:"summary,omitempty"`
	Result     *executor.ExecutionResult `json:"execution_result,omitempty"`
	Error      string                    `json:"error,omitempty"`
}
