// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPhase indicates an operation called in the wrong phase.
	ErrInvalidPhase = errors.New("operation not allowed in current phase")

	// ErrRefinementLimit indicates the output refinement budget is spent.
	ErrRefinementLimit = errors.New("maximum refinement iterations reached")

	// ErrRefinementFailed indicates a refinement ran but did not produce
	// a valid output. The previous output is kept.
	ErrRefinementFailed = errors.New("output refinement failed")

	// ErrNoPlan indicates approval without a business logic plan.
	ErrNoPlan = errors.New("no business logic plan available to approve")

	// ErrNoCoderSession indicates a refinement without a live coder
	// session, e.g. after Resume.
	ErrNoCoderSession = errors.New("coder session not available")

	// ErrEmptyInput indicates blank user input or feedback.
	ErrEmptyInput = errors.New("input must not be empty")

	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrMissingDependency indicates a required collaborator is nil.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrCorruptState indicates a persisted state that cannot be used.
	ErrCorruptState = errors.New("corrupt workflow state")
)

// PhaseError describes an operation rejected because of the current phase.
type PhaseError struct {
	Operation string
	Phase     Phase
	Allowed   []Phase
}

func (e *PhaseError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, p := range e.Allowed {
		allowed[i] = string(p)
	}
	return fmt.Sprintf("%s: not allowed in phase %s (allowed: %s)",
		e.Operation, e.Phase, strings.Join(allowed, ", "))
}

func (e *PhaseError) Unwrap() error {
	return ErrInvalidPhase
}
