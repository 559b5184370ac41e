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
// EXIT CODES
// =============================================================================

const (
	// ExitCodeSuccess is reported when every block exits zero.
	ExitCodeSuccess = 0

	// ExitCodeRejected is reported for unsupported languages and files
	// declared outside the working directory.
	ExitCodeRejected = 1

	// ExitCodeTimeout is reserved for blocks that exceed the timeout.
	ExitCodeTimeout = 124

	// ExitCodeCancelled is reserved for cancelled batches.
	ExitCodeCancelled = 125
)

// =============================================================================
// STATUS
// =============================================================================

// Status classifies a batch outcome.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// StatusFromExitCode maps a reserved exit code to a Status. Execute does
// not use it: a child that exits 124 or 125 by itself is still an error.
func StatusFromExitCode(code int) Status {
	switch code {
	case ExitCodeSuccess:
		return StatusSuccess
	case ExitCodeTimeout:
		return StatusTimeout
	case ExitCodeCancelled:
		return StatusCancelled
	default:
		return StatusError
	}
}

// =============================================================================
// CODE BLOCK & RESULT
// =============================================================================

// CodeBlock is one unit of source code plus its language tag.
type CodeBlock struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// ExecutionResult is the outcome of one batch. It is never mutated after
// Execute returns it.
type ExecutionResult struct {
	// Status is derived from why the batch stopped, not from ExitCode
	// alone.
	Status Status `json:"status"`

	// ExitCode is the exit code of the last block run, or a reserved code.
	ExitCode int `json:"exit_code"`

	// Output is the merged stdout and stderr of every block run.
	Output string `json:"output"`

	// CodeFile is the absolute path of the first file written.
	CodeFile string `json:"code_file,omitempty"`

	// ErrorMessage summarizes a non-success outcome.
	ErrorMessage string `json:"error_message,omitempty"`

	// Truncated is true when Output hit the capture limit.
	Truncated bool `json:"truncated,omitempty"`

	// BlocksRun counts the blocks whose process was started.
	BlocksRun int `json:"blocks_run"`

	// Duration is the wall time of the batch.
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the batch finished with StatusSuccess.
func (r *ExecutionResult) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}
