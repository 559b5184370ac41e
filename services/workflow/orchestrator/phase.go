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

// Phase is the position of a workflow in its lifecycle.
type Phase string

const (
	PhaseNotStarted   Phase = "not_started"
	PhasePlanning     Phase = "planning"
	PhasePlanReview   Phase = "plan_review"
	PhaseCoding       Phase = "coding"
	PhaseOutputReview Phase = "output_review"
	PhaseCompleted    Phase = "completed"
	PhaseFailed       Phase = "failed"
)

// transitions lists the legal targets of each phase. Terminal phases have
// no entry.
var transitions = map[Phase][]Phase{
	PhaseNotStarted:   {PhasePlanning, PhaseFailed},
	PhasePlanning:     {PhasePlanReview, PhaseFailed},
	PhasePlanReview:   {PhaseCoding, PhaseFailed},
	PhaseCoding:       {PhaseOutputReview, PhaseFailed},
	PhaseOutputReview: {PhaseCoding, PhaseCompleted, PhaseFailed},
}

// AllPhases returns every phase in lifecycle order.
func AllPhases() []Phase {
	return []Phase{
		PhaseNotStarted,
		PhasePlanning,
		PhasePlanReview,
		PhaseCoding,
		PhaseOutputReview,
		PhaseCompleted,
		PhaseFailed,
	}
}

// CanTransition reports whether from -> to is an edge of the phase graph.
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves p.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// IsValid reports whether p is a known phase.
func (p Phase) IsValid() bool {
	for _, known := range AllPhases() {
		if p == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}
