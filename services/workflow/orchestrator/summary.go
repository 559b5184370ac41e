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
	"time"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/executor"
)

// PlannerSummary describes the planning stage.
type PlannerSummary struct {
	QuestionsAsked    int  `json:"questions_asked"`
	ConversationTurns int  `json:"conversation_turns"`
	HasPlan           bool `json:"has_plan"`
	PlanApproved      bool `json:"plan_approved"`
}

// AttemptStatus is the outcome of one recorded code attempt.
type AttemptStatus struct {
	Iteration int             `json:"iteration"`
	Status    executor.Status `json:"status"`
	Error     string          `json:"error,omitempty"`
}

// CoderSummary describes the coding stage.
type CoderSummary struct {
	Iterations int             `json:"iterations"`
	Attempts   []AttemptStatus `json:"attempts"`
	HasCode    bool            `json:"has_code"`
	CodePath   string          `json:"code_path,omitempty"`
	LastStatus executor.Status `json:"last_status,omitempty"`
}

// OutputReviewSummary describes the output review stage.
type OutputReviewSummary struct {
	OutputPath           string          `json:"output_path,omitempty"`
	RefinementIterations int             `json:"refinement_iterations"`
	Feedback             []FeedbackEntry `json:"feedback"`
	Approved             bool            `json:"approved"`
}

// WorkflowSummary describes a whole run.
type WorkflowSummary struct {
	RunID        string              `json:"run_id"`
	Name         string              `json:"name"`
	Phase        Phase               `json:"phase"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	Duration     time.Duration       `json:"duration"`
	IsSuccessful bool                `json:"is_successful"`
	Error        string              `json:"error,omitempty"`
	Planner      PlannerSummary      `json:"planner"`
	Coder        CoderSummary        `json:"coder"`
	Output       OutputReviewSummary `json:"output"`
}

// PlannerSummary returns the planning stage summary.
func (o *Orchestrator) PlannerSummary() PlannerSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return plannerSummary(o.state)
}

// CoderSummary returns the coding stage summary.
func (o *Orchestrator) CoderSummary() CoderSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return coderSummary(o.state)
}

// OutputReviewSummary returns the output review summary.
func (o *Orchestrator) OutputReviewSummary() OutputReviewSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return outputSummary(o.state)
}

// Summary returns the summary of the whole run.
func (o *Orchestrator) Summary() WorkflowSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Summarize(o.state, o.now())
}

// Summarize builds a WorkflowSummary from a state. Runs that have not
// completed report the time elapsed until now.
func Summarize(s *WorkflowState, now time.Time) WorkflowSummary {
	sum := WorkflowSummary{
		RunID:        s.RunID,
		Name:         s.WorkflowName,
		Phase:        s.Phase,
		StartedAt:    s.StartedAt,
		CompletedAt:  s.CompletedAt,
		IsSuccessful: s.IsSuccessful,
		Error:        s.ErrorMessage,
		Planner:      plannerSummary(s),
		Coder:        coderSummary(s),
		Output:       outputSummary(s),
	}
	if s.StartedAt != nil {
		end := now
		if s.CompletedAt != nil {
			end = *s.CompletedAt
		}
		sum.Duration = end.Sub(*s.StartedAt)
	}
	return sum
}

func plannerSummary(s *WorkflowState) PlannerSummary {
	return PlannerSummary{
		QuestionsAsked:    s.PlannerQuestionsAsked,
		ConversationTurns: len(s.PlannerConversationHistory),
		HasPlan:           s.BusinessLogicPlan != "",
		PlanApproved:      s.PlanApproved,
	}
}

func coderSummary(s *WorkflowState) CoderSummary {
	sum := CoderSummary{
		Iterations: s.CodeExecutionIterations,
		Attempts:   make([]AttemptStatus, 0, len(s.CodeAttempts)),
		HasCode:    s.GeneratedCode != "",
		CodePath:   s.GeneratedCodePath,
	}
	for _, a := range s.CodeAttempts {
		st := AttemptStatus{Iteration: a.Iteration}
		if a.Result != nil {
			st.Status = a.Result.Status
			st.Error = a.Result.ErrorMessage
		}
		sum.Attempts = append(sum.Attempts, st)
	}
	if s.CodeExecutionResult != nil {
		sum.LastStatus = s.CodeExecutionResult.Status
	}
	return sum
}

func outputSummary(s *WorkflowState) OutputReviewSummary {
	return OutputReviewSummary{
		OutputPath:           s.OutputFilePath,
		RefinementIterations: s.OutputRefinementIterations,
		Feedback:             append([]FeedbackEntry(nil), s.OutputFeedbackHistory...),
		Approved:             s.OutputApproved,
	}
}
