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
	"errors"
	"fmt"
)

var (
	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrInvalidRequest indicates a Request failed validation.
	ErrInvalidRequest = errors.New("invalid code generation request")

	// ErrMaxIterations indicates the iteration budget was spent without a
	// valid output.
	ErrMaxIterations = errors.New("maximum iterations reached")

	// ErrCancelled indicates the session was aborted by cancellation.
	ErrCancelled = errors.New("code generation cancelled")

	// ErrNotStarted indicates Refine was called before Run.
	ErrNotStarted = errors.New("session has not run")

	// ErrMaterialize indicates a placeholder could not be replaced.
	ErrMaterialize = errors.New("cannot materialize paths")

	// ErrMissingDependency indicates a required collaborator is nil.
	ErrMissingDependency = errors.New("missing dependency")
)

// RetryExhaustedError is returned by Run when every iteration failed.
// The Outcome carries the attempt history and last code.
type RetryExhaustedError struct {
	Iterations int
	Outcome    *Outcome
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("Failed to generate working code after %d attempts", e.Iterations)
}

func (e *RetryExhaustedError) Unwrap() error {
	return ErrMaxIterations
}
