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
	"encoding/json"
	"fmt"
	"time"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/coder"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/executor"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/planner"
)

// ConversationEntry is one turn of the planning conversation.
type ConversationEntry struct {
	Role         string               `json:"role"`
	Content      string               `json:"content"`
	Timestamp    time.Time            `json:"timestamp"`
	ResponseType planner.ResponseType `json:"response_type,omitempty"`
	IsPlan       bool                 `json:"is_plan,omitempty"`
}

// Feedback statuses.
const (
	FeedbackRunning   = "running"
	FeedbackSucceeded = "success"
	FeedbackFailed    = "error"
)

// FeedbackEntry is one output refinement request.
type FeedbackEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Feedback  string    `json:"feedback"`
	Iteration int       `json:"iteration"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// WorkflowState is the persisted checkpoint of one workflow run.
type WorkflowState struct {
	RunID               string   `json:"run_id"`
	WorkflowName        string   `json:"workflow_name"`
	WorkflowDescription string   `json:"workflow_description"`
	CSVFilePaths        []string `json:"csv_filepaths"`

	Phase       Phase      `json:"phase"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Planning
	PlannerQuestionsAsked      int                 `json:"planner_questions_asked"`
	PlannerConversationHistory []ConversationEntry `json:"planner_conversation_history"`
	BusinessLogicPlan          string              `json:"business_logic_plan,omitempty"`
	PlanApproved               bool                `json:"plan_approved"`

	// Coding
	GeneratedCode           string                    `json:"generated_code,omitempty"`
	GeneratedCodePath       string                    `json:"generated_code_path,omitempty"`
	CodeExecutionIterations int                       `json:"code_execution_iterations"`
	CodeExecutionResult     *executor.ExecutionResult `json:"code_execution_result,omitempty"`
	CodeAttempts            []coder.CodeAttempt       `json:"code_attempts"`
	OutputFilePath          string                    `json:"output_file_path,omitempty"`

	// Output review
	OutputApproved             bool            `json:"output_approved"`
	OutputFeedbackHistory      []FeedbackEntry `json:"output_feedback_history"`
	OutputRefinementIterations int             `json:"output_refinement_iterations"`

	ErrorMessage string `json:"error_message,omitempty"`
	IsSuccessful bool   `json:"is_successful"`
}

// newState returns the initial state of a workflow.
func newState(runID string, wf Workflow) *WorkflowState {
	return &WorkflowState{
		RunID:                      runID,
		WorkflowName:               wf.Name,
		WorkflowDescription:        wf.Description,
		CSVFilePaths:               append([]string(nil), wf.InputFiles...),
		Phase:                      PhaseNotStarted,
		PlannerConversationHistory: []ConversationEntry{},
		CodeAttempts:               []coder.CodeAttempt{},
		OutputFeedbackHistory:      []FeedbackEntry{},
	}
}

// Clone returns a copy that shares no slices with s.
func (s *WorkflowState) Clone() *WorkflowState {
	c := *s
	c.CSVFilePaths = append([]string(nil), s.CSVFilePaths...)
	c.PlannerConversationHistory = append([]ConversationEntry(nil), s.PlannerConversationHistory...)
	c.CodeAttempts = append([]coder.CodeAttempt(nil), s.CodeAttempts...)
	c.OutputFeedbackHistory = append([]FeedbackEntry(nil), s.OutputFeedbackHistory...)
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// MarshalState encodes a state as indented JSON.
func MarshalState(s *WorkflowState) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// UnmarshalState decodes and checks a persisted state.
func UnmarshalState(data []byte) (*WorkflowState, error) {
	var s WorkflowState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if s.WorkflowName == "" {
		return nil, fmt.Errorf("%w: missing workflow_name", ErrCorruptState)
	}
	if !s.Phase.IsValid() {
		return nil, fmt.Errorf("%w: unknown phase %q", ErrCorruptState, s.Phase)
	}
	return &s, nil
}
