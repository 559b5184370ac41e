// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator drives a workflow through planning, plan review,
// code generation and output review.
//
// The Orchestrator is a state machine over Phase. Every operation checks
// the current phase first and is rejected with a *PhaseError, without
// touching the state, when called out of order. The state is persisted
// after every transition and every recorded change; a failed write is
// logged and never aborts the operation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/coder"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/config"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/dataset"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/executor"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/planner"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/store"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Workflow identifies what is being built.
type Workflow struct {
	Name        string
	Description string
	InputFiles  []string
}

// CodeSession is the code synthesis session of one workflow.
type CodeSession interface {
	Run(ctx context.Context, req coder.Request) (*coder.Outcome, error)
	Refine(ctx context.Context, feedback string) (*coder.RefineResult, error)
}

// CoderFactory creates a code session whose scripts run in workDir.
type CoderFactory func(workDir string) (CodeSession, error)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Nil keeps slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPhaseHook registers a function called after every transition. It
// runs while the orchestrator is locked and must not call back into it.
func WithPhaseHook(fn func(from, to Phase)) Option {
	return func(o *Orchestrator) {
		o.phaseHook = fn
	}
}

// WithPlannerHook registers a function called with every planner reply.
// The same locking rule as WithPhaseHook applies.
func WithPlannerHook(fn func(text string, kind planner.ResponseType)) Option {
	return func(o *Orchestrator) {
		o.plannerHook = fn
	}
}

// WithArtifactWriter replaces the writer used for code files and output
// backups.
func WithArtifactWriter(w *store.ArtifactWriter) Option {
	return func(o *Orchestrator) {
		if w != nil {
			o.artifacts = w
		}
	}
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs one workflow.
//
// Thread Safety: Safe for concurrent use; operations are serialized.
type Orchestrator struct {
	cfg       config.Config
	planner   planner.Planner
	newCoder  CoderFactory
	store     store.Store
	artifacts *store.ArtifactWriter
	logger    *slog.Logger
	now       func() time.Time

	phaseHook   func(from, to Phase)
	plannerHook func(text string, kind planner.ResponseType)

	mu      sync.Mutex
	state   *WorkflowState
	session CodeSession
}

// New creates an Orchestrator in PhaseNotStarted.
//
// Inputs:
//
//	cfg - Application configuration (directories, limits)
//	wf - Workflow name, description and input files. Name is required.
//	p - Planner for the requirements interview
//	newCoder - Creates the code session when the plan is approved
//	st - Store for state documents
//	opts - Optional hooks, logger and artifact writer
//
// Outputs:
//
//	*Orchestrator - Ready to Start
//	error - ErrMissingDependency or ErrEmptyInput
func New(cfg config.Config, wf Workflow, p planner.Planner, newCoder CoderFactory, st store.Store, opts ...Option) (*Orchestrator, error) {
	if strings.TrimSpace(wf.Name) == "" {
		return nil, fmt.Errorf("%w: workflow name", ErrEmptyInput)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: planner", ErrMissingDependency)
	}
	if newCoder == nil {
		return nil, fmt.Errorf("%w: coder factory", ErrMissingDependency)
	}
	if st == nil {
		return nil, fmt.Errorf("%w: store", ErrMissingDependency)
	}

	o := &Orchestrator{
		cfg:      cfg,
		planner:  p,
		newCoder: newCoder,
		store:    st,
		logger:   slog.Default(),
		now:      time.Now,
		state:    newState(uuid.NewString(), wf),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.artifacts == nil {
		o.artifacts = store.NewArtifactWriter(cfg.Paths.GeneratedCodeDir, o.logger)
	}
	o.logger = o.logger.With(
		slog.String("workflow", wf.Name),
		slog.String("run_id", o.state.RunID),
	)
	return o, nil
}

// Resume loads a persisted workflow. The planner and coder start without
// conversation history, so a resumed workflow in output review cannot be
// refined until code is generated again.
func Resume(ctx context.Context, cfg config.Config, name string, p planner.Planner, newCoder CoderFactory, st store.Store, opts ...Option) (*Orchestrator, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if st == nil {
		return nil, fmt.Errorf("%w: store", ErrMissingDependency)
	}
	data, err := st.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	state, err := UnmarshalState(data)
	if err != nil {
		return nil, err
	}

	restore := func(o *Orchestrator) { o.state = state }
	o, err := New(cfg, Workflow{
		Name:        state.WorkflowName,
		Description: state.WorkflowDescription,
		InputFiles:  state.CSVFilePaths,
	}, p, newCoder, st, append(opts, restore)...)
	if err != nil {
		return nil, err
	}
	o.logger.Info("Resumed workflow", slog.String("phase", string(state.Phase)))
	return o, nil
}

// PlannerReply is the result of a planning operation.
type PlannerReply struct {
	Phase          Phase                `json:"phase"`
	Response       string               `json:"response"`
	ResponseType   planner.ResponseType `json:"response_type"`
	QuestionsAsked int                  `json:"questions_asked"`
}

// Start begins the planning interview.
//
// Legal in PhaseNotStarted. A planner failure moves the workflow to
// PhaseFailed.
func (o *Orchestrator) Start(ctx context.Context) (reply *PlannerReply, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.require("Start", PhaseNotStarted); err != nil {
		return nil, err
	}
	ctx, span := startOperationSpan(ctx, "Start", o.state)
	defer func() { endOperationSpan(span, o.state, err) }()

	o.logger.Info("Starting workflow", slog.Int("inputs", len(o.state.CSVFilePaths)))

	now := o.now()
	o.state.StartedAt = &now
	if err := o.transition(ctx, PhasePlanning); err != nil {
		return nil, err
	}

	text, err := o.planner.Initialize(ctx, o.state.WorkflowName, o.state.WorkflowDescription, o.state.CSVFilePaths)
	if err != nil {
		err = fmt.Errorf("start workflow: %w", err)
		o.fail(ctx, err.Error())
		return nil, err
	}

	kind, err := o.acceptPlannerReply(ctx, text)
	if err != nil {
		return nil, err
	}
	o.persist(ctx)
	return o.reply(text, kind), nil
}

// ProcessUserInput sends an answer to the planner. A reply classified as
// a plan becomes the current plan and moves planning to plan review.
//
// Legal in PhasePlanning and PhasePlanReview. Planner failures leave the
// state unchanged.
func (o *Orchestrator) ProcessUserInput(ctx context.Context, input string) (reply *PlannerReply, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.require("ProcessUserInput", PhasePlanning, PhasePlanReview); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}
	ctx, span := startOperationSpan(ctx, "ProcessUserInput", o.state)
	defer func() { endOperationSpan(span, o.state, err) }()

	text, err := o.planner.Advance(ctx, input)
	if err != nil {
		o.logger.Error("Planner failed to process input", slog.String("error", err.Error()))
		return nil, fmt.Errorf("process user input: %w", err)
	}

	o.state.PlannerQuestionsAsked++
	o.state.PlannerConversationHistory = append(o.state.PlannerConversationHistory, ConversationEntry{
		Role:      "user",
		Content:   input,
		Timestamp: o.now(),
	})
	kind, err := o.acceptPlannerReply(ctx, text)
	if err != nil {
		return nil, err
	}
	o.persist(ctx)
	return o.reply(text, kind), nil
}

// RequestPlanGeneration asks the planner for the complete plan.
//
// Legal in PhasePlanning and PhasePlanReview. The target is
// PhasePlanReview.
func (o *Orchestrator) RequestPlanGeneration(ctx context.Context, force bool) (reply *PlannerReply, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.require("RequestPlanGeneration", PhasePlanning, PhasePlanReview); err != nil {
		return nil, err
	}
	ctx, span := startOperationSpan(ctx, "RequestPlanGeneration", o.state)
	defer func() { endOperationSpan(span, o.state, err) }()

	text, err := o.planner.Finalize(ctx, force)
	if err != nil {
		o.logger.Error("Plan generation failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	o.state.BusinessLogicPlan = text
	o.state.PlannerConversationHistory = append(o.state.PlannerConversationHistory, ConversationEntry{
		Role:         "assistant",
		Content:      text,
		Timestamp:    o.now(),
		ResponseType: planner.ResponsePlan,
		IsPlan:       true,
	})
	o.notifyPlanner(text, planner.ResponsePlan)
	if o.state.Phase == PhasePlanning {
		if err := o.transition(ctx, PhasePlanReview); err != nil {
			return nil, err
		}
	}
	o.persist(ctx)
	return o.reply(text, planner.ResponsePlan), nil
}

// RefinePlan replaces the plan with a revision addressing feedback.
//
// Legal in PhasePlanReview; the phase does not change.
func (o *Orchestrator) RefinePlan(ctx context.Context, feedback string) (reply *PlannerReply, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.require("RefinePlan", PhasePlanReview); err != nil {
		return nil, err
	}
	if strings.TrimSpace(feedback) == "" {
		return nil, ErrEmptyInput
	}
	ctx, span := startOperationSpan(ctx, "RefinePlan", o.state)
	defer func() { endOperationSpan(span, o.state, err) }()

	text, err := o.planner.Revise(ctx, feedback)
	if err != nil {
		o.logger.Error("Plan refinement failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("refine plan: %w", err)
	}

	now := o.now()
	o.state.BusinessLogicPlan = text
	o.state.PlannerConversationHistory = append(o.state.PlannerConversationHistory,
		ConversationEntry{Role: "user", Content: "[Feedback on plan] " + feedback, Timestamp: now},
		ConversationEntry{Role: "assistant", Content: text, Timestamp: now, ResponseType: planner.ResponsePlan, IsPlan: true},
	)
	o.notifyPlanner(text, planner.ResponsePlan)
	o.persist(ctx)
	return o.reply(text, planner.ResponsePlan), nil
}

// CodeResult is the result of code generation.
type CodeResult struct {
	Phase      Phase                     `json:"phase"`
	Success    bool                      `json:"success"`
	Code       string                    `json:"code,omitempty"`
	CodePath   string                    `json:"code_path,omitempty"`
	OutputPath string                    `json:"output_path,omitempty"`
	Validation *dataset.Validation       `json:"validation,omitempty"`
	Preview    string                    `json:"preview,omitempty"`
	Summary    *dataset.Summary          `json:"summary,omitempty"`
	Iterations int                       `json:"iterations"`
	Attempts   []coder.CodeAttempt       `json:"attempts,omitempty"`
	LastResult *executor.ExecutionResult `json:"last_result,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// ApprovePlanAndGenerateCode approves the plan and runs code synthesis.
//
// Description:
//
//	Legal in PhasePlanReview with a plan. The workflow enters PhaseCoding
//	and a code session runs in the workflow's output directory. On
//	success the accepted code is saved as an artifact and the workflow
//	enters PhaseOutputReview. On failure it enters PhaseFailed with the
//	last code, last result and attempts kept in the state.
//
// Outputs:
//
//	*CodeResult - Non-nil once code generation was attempted
//	error - Phase errors, ErrNoPlan, or the code generation failure
func (o *Orchestrator) ApprovePlanAndGenerateCode(ctx context.Context) (result *CodeResult, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.require("ApprovePlanAndGenerateCode", PhasePlanReview); err != nil {
		return nil, err
	}
	if strings.TrimSpace(o.state.BusinessLogicPlan) == "" {
		return nil, ErrNoPlan
	}
	ctx, span := startOperationSpan(ctx, "ApprovePlanAndGenerateCode", o.state)
	defer func() { endOperationSpan(span, o.state, err) }()

	o.logger.Info("Plan approved, starting code generation")
	o.state.PlanApproved = true
	if err := o.transition(ctx, PhaseCoding); err != nil {
		return nil, err
	}

	workDir, err := o.prepareWorkDir()
	if err != nil {
		o.fail(ctx, err.Error())
		return &CodeResult{Phase: o.state.Phase, Error: err.Error()}, err
	}
	o.state.OutputFilePath = filepath.Join(workDir, o.cfg.Coder.OutputFilename)

	session, err := o.newCoder(workDir)
	if err != nil {
		err = fmt.Errorf("create coder session: %w", err)
		o.fail(ctx, err.Error())
		return &CodeResult{Phase: o.state.Phase, Error: err.Error()}, err
	}

	outcome, runErr := session.Run(ctx, coder.Request{
		WorkflowName: o.state.WorkflowName,
		Plan:         o.state.BusinessLogicPlan,
		InputFiles:   o.state.CSVFilePaths,
		OutputPath:   o.state.OutputFilePath,
	})
	if outcome == nil {
		outcome = &coder.Outcome{}
	}
	o.state.CodeExecutionIterations = outcome.Iterations
	o.state.CodeAttempts = append([]coder.CodeAttempt{}, outcome.Attempts...)
	o.state.CodeExecutionResult = outcome.LastResult

	result = &CodeResult{
		Success:    outcome.Success,
		Code:       outcome.Code,
		OutputPath: o.state.OutputFilePath,
		Validation: outcome.Validation,
		Preview:    outcome.Preview,
		Summary:    outcome.Summary,
		Iterations: outcome.Iterations,
		Attempts:   outcome.Attempts,
		LastResult: outcome.LastResult,
	}

	if runErr == nil && (!outcome.Success || outcome.Validation == nil || !outcome.Validation.Valid) {
		runErr = errors.New("code generation finished without a validated output")
	}
	if runErr != nil {
		msg := outcome.Error
		if msg == "" {
			msg = runErr.Error()
		}
		o.state.GeneratedCode = outcome.LastCode
		o.fail(ctx, msg)
		result.Success = false
		result.Code = outcome.LastCode
		result.Error = msg
		result.Phase = o.state.Phase
		return result, fmt.Errorf("generate code: %w", runErr)
	}

	o.session = session
	o.state.GeneratedCode = outcome.Code
	o.state.GeneratedCodePath = o.saveCode(outcome.Code)
	result.CodePath = o.state.GeneratedCodePath

	o.logger.Info("Code generation succeeded",
		slog.Int("iterations", outcome.Iterations),
		slog.String("output", o.state.OutputFilePath),
		slog.String("code_path", result.CodePath),
	)
	if err := o.transition(ctx, PhaseOutputReview); err != nil {
		return nil, err
	}
	result.Phase = o.state.Phase
	return result, nil
}

// RefinementResult is the result of one output refinement.
type RefinementResult struct {
	Phase      Phase               `json:"phase"`
	Success    bool                `json:"success"`
	Iteration  int                 `json:"iteration"`
	Code       string              `json:"code,omitempty"`
	CodePath   string              `json:"code_path,omitempty"`
	OutputPath string              `json:"output_path,omitempty"`
	Validation *dataset.Validation `json:"validation,omitempty"`
	Preview    string              `json:"preview,omitempty"`
	Summary    *dataset.Summary    `json:"summary,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// RefineOutput regenerates the code once to address feedback on the
// output.
//
// Description:
//
//	Legal in PhaseOutputReview. maxRefinements bounds the number of
//	refinements; zero or less uses the configured limit. A refinement
//	slot is consumed as soon as the attempt starts, whether or not it
//	succeeds. The workflow passes through PhaseCoding and always returns
//	to PhaseOutputReview. The previous output is backed up first and
//	restored if the refinement fails.
//
// Outputs:
//
//	*RefinementResult - Outcome of the attempt, nil when rejected
//	error - Phase errors, ErrRefinementLimit, ErrNoCoderSession, or
//	        ErrRefinementFailed when the attempt did not produce output
func (o *Orchestrator) RefineOutput(ctx context.Context, feedback string, maxRefinements int) (result *RefinementResult, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.require("RefineOutput", PhaseOutputReview); err != nil {
		return nil, err
	}
	if strings.TrimSpace(feedback) == "" {
		return nil, ErrEmptyInput
	}
	limit := maxRefinements
	if limit <= 0 {
		limit = o.cfg.Coder.MaxOutputRefinements
	}
	if o.state.OutputRefinementIterations >= limit {
		return nil, fmt.Errorf("%w (%d)", ErrRefinementLimit, limit)
	}
	if o.session == nil {
		return nil, ErrNoCoderSession
	}
	ctx, span := startOperationSpan(ctx, "RefineOutput", o.state)
	defer func() { endOperationSpan(span, o.state, err) }()

	o.state.OutputRefinementIterations++
	iteration := o.state.OutputRefinementIterations
	o.state.OutputFeedbackHistory = append(o.state.OutputFeedbackHistory, FeedbackEntry{
		Timestamp: o.now(),
		Feedback:  feedback,
		Iteration: iteration,
		Status:    FeedbackRunning,
	})
	entry := &o.state.OutputFeedbackHistory[len(o.state.OutputFeedbackHistory)-1]

	o.logger.Info("Refining output",
		slog.Int("iteration", iteration),
		slog.Int("max_refinements", limit),
	)
	if err := o.transition(ctx, PhaseCoding); err != nil {
		return nil, err
	}

	backup, berr := o.artifacts.Backup(o.state.OutputFilePath)
	if berr != nil {
		o.logger.Warn("Could not back up output", slog.String("error", berr.Error()))
	}

	res, refineErr := o.session.Refine(ctx, feedback)
	if refineErr == nil && res == nil {
		res = &coder.RefineResult{Error: "no refinement result"}
	}
	result = &RefinementResult{Iteration: iteration, OutputPath: o.state.OutputFilePath}

	switch {
	case refineErr != nil:
		result.Error = refineErr.Error()
		err = fmt.Errorf("refine output: %w", refineErr)
	case !res.Success:
		result.Error = res.Error
		result.Code = res.Code
		result.Validation = res.Validation
		err = fmt.Errorf("%w: %s", ErrRefinementFailed, res.Error)
	}

	if err != nil {
		if rerr := o.artifacts.Restore(backup, o.state.OutputFilePath); rerr != nil {
			o.logger.Error("Could not restore previous output", slog.String("error", rerr.Error()))
		}
		entry.Status = FeedbackFailed
		entry.Error = result.Error
		recordRefinement(ctx, "failed")
		o.logger.Warn("Output refinement failed",
			slog.Int("iteration", iteration),
			slog.String("error", result.Error),
		)
	} else {
		o.artifacts.Discard(backup)
		o.state.GeneratedCode = res.Code
		o.state.CodeExecutionResult = res.Result
		o.state.GeneratedCodePath = o.saveCode(res.Code)
		entry.Status = FeedbackSucceeded

		result.Success = true
		result.Code = res.Code
		result.CodePath = o.state.GeneratedCodePath
		result.Validation = res.Validation
		result.Preview = res.Preview
		result.Summary = res.Summary
		recordRefinement(ctx, "success")
	}

	if terr := o.transition(ctx, PhaseOutputReview); terr != nil {
		return nil, terr
	}
	result.Phase = o.state.Phase
	return result, err
}

// Completion is the result of approving the output.
type Completion struct {
	Phase         Phase         `json:"phase"`
	OutputPath    string        `json:"output_path"`
	CodePath      string        `json:"code_path,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// ApproveOutputAndComplete marks the output approved and completes the
// workflow.
//
// Legal in PhaseOutputReview.
func (o *Orchestrator) ApproveOutputAndComplete(ctx context.Context) (c *Completion, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.require("ApproveOutputAndComplete", PhaseOutputReview); err != nil {
		return nil, err
	}
	ctx, span := startOperationSpan(ctx, "ApproveOutputAndComplete", o.state)
	defer func() { endOperationSpan(span, o.state, err) }()

	now := o.now()
	o.state.OutputApproved = true
	o.state.IsSuccessful = true
	o.state.CompletedAt = &now
	if err := o.transition(ctx, PhaseCompleted); err != nil {
		return nil, err
	}

	var elapsed time.Duration
	if o.state.StartedAt != nil {
		elapsed = now.Sub(*o.state.StartedAt)
	}
	o.logger.Info("Workflow completed", slog.Duration("execution_time", elapsed))
	return &Completion{
		Phase:         o.state.Phase,
		OutputPath:    o.state.OutputFilePath,
		CodePath:      o.state.GeneratedCodePath,
		ExecutionTime: elapsed,
	}, nil
}

// Fail moves a non-terminal workflow to PhaseFailed with reason.
func (o *Orchestrator) Fail(ctx context.Context, reason string) error {
	if ctx == nil {
		return ErrNilContext
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Phase.IsTerminal() {
		return &PhaseError{Operation: "Fail", Phase: o.state.Phase, Allowed: nonTerminalPhases()}
	}
	o.fail(ctx, reason)
	return nil
}

// =============================================================================
// STATE ACCESS
// =============================================================================

// State returns a copy of the current state.
func (o *Orchestrator) State() *WorkflowState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Phase
}

// IsPlanReady reports whether a plan awaits approval.
func (o *Orchestrator) IsPlanReady() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Phase == PhasePlanReview && o.state.BusinessLogicPlan != ""
}

// IsOutputReady reports whether an output awaits review.
func (o *Orchestrator) IsOutputReady() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Phase == PhaseOutputReview && o.state.OutputFilePath != ""
}

// IsCompleted reports whether the workflow completed.
func (o *Orchestrator) IsCompleted() bool {
	return o.Phase() == PhaseCompleted
}

// IsFailed reports whether the workflow failed.
func (o *Orchestrator) IsFailed() bool {
	return o.Phase() == PhaseFailed
}

// =============================================================================
// HELPERS
// =============================================================================

// require returns a *PhaseError unless the current phase is allowed.
func (o *Orchestrator) require(op string, allowed ...Phase) error {
	for _, p := range allowed {
		if o.state.Phase == p {
			return nil
		}
	}
	o.logger.Warn("Operation rejected",
		slog.String("operation", op),
		slog.String("phase", string(o.state.Phase)),
	)
	return &PhaseError{Operation: op, Phase: o.state.Phase, Allowed: allowed}
}

// transition moves to the target phase and persists the state.
func (o *Orchestrator) transition(ctx context.Context, to Phase) error {
	from := o.state.Phase
	if !CanTransition(from, to) {
		return &PhaseError{Operation: "transition to " + string(to), Phase: from, Allowed: transitions[from]}
	}
	o.state.Phase = to

	o.logger.Info("Workflow phase changed",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	recordTransition(ctx, from, to)
	if o.phaseHook != nil {
		o.phaseHook(from, to)
	}
	o.persist(ctx)
	return nil
}

// fail records reason and moves to PhaseFailed.
func (o *Orchestrator) fail(ctx context.Context, reason string) {
	now := o.now()
	o.state.ErrorMessage = reason
	o.state.CompletedAt = &now
	o.state.IsSuccessful = false
	o.logger.Error("Workflow failed", slog.String("error", reason))
	if err := o.transition(ctx, PhaseFailed); err != nil {
		o.logger.Error("Could not mark workflow failed", slog.String("error", err.Error()))
	}
}

// persist writes the state. Failures are logged and counted only. The
// write is not cancelled with ctx so the final state of a cancelled
// operation is kept.
func (o *Orchestrator) persist(ctx context.Context) {
	o.state.UpdatedAt = o.now()
	data, err := MarshalState(o.state)
	if err == nil {
		err = o.store.Save(context.WithoutCancel(ctx), o.state.WorkflowName, data)
	}
	if err != nil {
		recordPersistError(ctx)
		o.logger.Error("Failed to persist workflow state", slog.String("error", err.Error()))
	}
}

// acceptPlannerReply records an assistant reply and promotes a plan.
func (o *Orchestrator) acceptPlannerReply(ctx context.Context, text string) (planner.ResponseType, error) {
	kind := planner.Classify(text)
	o.state.PlannerConversationHistory = append(o.state.PlannerConversationHistory, ConversationEntry{
		Role:         "assistant",
		Content:      text,
		Timestamp:    o.now(),
		ResponseType: kind,
		IsPlan:       kind.IsPlan(),
	})
	o.notifyPlanner(text, kind)

	if kind.IsPlan() {
		o.logger.Info("Business logic plan received")
		o.state.BusinessLogicPlan = text
		if o.state.Phase == PhasePlanning {
			if err := o.transition(ctx, PhasePlanReview); err != nil {
				return kind, err
			}
		}
	}
	return kind, nil
}

func (o *Orchestrator) notifyPlanner(text string, kind planner.ResponseType) {
	if o.plannerHook != nil {
		o.plannerHook(text, kind)
	}
}

func (o *Orchestrator) reply(text string, kind planner.ResponseType) *PlannerReply {
	return &PlannerReply{
		Phase:          o.state.Phase,
		Response:       text,
		ResponseType:   kind,
		QuestionsAsked: o.state.PlannerQuestionsAsked,
	}
}

// prepareWorkDir creates and returns the absolute output directory of the
// workflow.
func (o *Orchestrator) prepareWorkDir() (string, error) {
	dir, err := filepath.Abs(o.cfg.WorkflowDir(store.SanitizeName(o.state.WorkflowName)))
	if err != nil {
		return "", fmt.Errorf("resolve output directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return dir, nil
}

// saveCode writes the code artifact. Failures are logged and yield an
// empty path.
func (o *Orchestrator) saveCode(code string) string {
	path, err := o.artifacts.SaveCode(o.state.WorkflowName, code)
	if err != nil {
		o.logger.Error("Failed to save generated code", slog.String("error", err.Error()))
		return ""
	}
	return path
}

func nonTerminalPhases() []Phase {
	var out []Phase
	for _, p := range AllPhases() {
		if !p.IsTerminal() {
			out = append(out, p)
		}
	}
	return out
}
