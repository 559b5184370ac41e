// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coder turns an approved business logic plan into a script that
// produces a validated output file.
//
// A Session alternates generation, syntax checking, execution and output
// validation until the output is valid or the iteration budget is spent.
// Every failure becomes a corrective instruction for the next iteration.
package coder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/analyzer"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/dataset"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/executor"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/syntax"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Generator produces code from a prompt. Implementations keep the
// conversation so later prompts can refer to earlier replies.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Executor runs code blocks.
type Executor interface {
	Execute(ctx context.Context, blocks []executor.CodeBlock) (*executor.ExecutionResult, error)
}

// SyntaxChecker parses code without running it.
type SyntaxChecker interface {
	Validate(ctx context.Context, language, code string) (*syntax.Result, error)
}

// OutputValidator checks and summarizes the output file.
type OutputValidator interface {
	Validate(path string) *dataset.Validation
	Preview(path string, rows int) (string, error)
	Summarize(path string) (*dataset.Summary, error)
}

// CSVOutput is the OutputValidator for CSV files.
type CSVOutput struct{}

func (CSVOutput) Validate(path string) *dataset.Validation { return dataset.Validate(path) }

func (CSVOutput) Preview(path string, rows int) (string, error) { return dataset.Preview(path, rows) }

func (CSVOutput) Summarize(path string) (*dataset.Summary, error) { return dataset.Summarize(path) }

// Deps are the collaborators of a Session. Generator and Executor are
// required; the rest default to the tree-sitter syntax checker, CSVOutput
// and dataset.CSVDescriber.
type Deps struct {
	Generator Generator
	Executor  Executor
	Syntax    SyntaxChecker
	Output    OutputValidator
	Describer dataset.Describer
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one code synthesis run against a single plan and output.
//
// Thread Safety: Safe for concurrent use; Run and Refine are serialized.
type Session struct {
	config Config
	deps   Deps
	logger *slog.Logger

	mu          sync.Mutex
	req         *Request
	files       []*dataset.FileInfo
	attempts    []CodeAttempt
	refinements []CodeAttempt
	iterations  int
	lastCode    string
	lastSource  string
	lastResult  *executor.ExecutionResult
}

// New creates a Session.
//
// Inputs:
//
//	cfg - Session configuration. Nil uses DefaultConfig.
//	deps - Collaborators. Generator and Executor must be set.
//	logger - Logger for structured logging. Nil uses slog.Default.
//
// Outputs:
//
//	*Session - Ready to Run
//	error - ErrMissingDependency or a configuration error
func New(cfg *Config, deps Deps, logger *slog.Logger) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("%w: generator", ErrMissingDependency)
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("%w: executor", ErrMissingDependency)
	}
	if deps.Syntax == nil {
		deps.Syntax = syntax.NewValidator()
	}
	if deps.Output == nil {
		deps.Output = CSVOutput{}
	}
	if deps.Describer == nil {
		deps.Describer = dataset.CSVDescriber{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{config: c, deps: deps, logger: logger}, nil
}

// Run generates, executes and validates code until the output is valid.
//
// Description:
//
//	Each iteration sends the generation context plus an instruction to
//	the Generator. The first instruction asks for the script; later ones
//	are the corrective instruction built from the previous failure.
//	Generator errors consume an iteration. Syntax and placeholder errors
//	consume an iteration without running anything and are not recorded
//	as attempts. A cancelled execution ends the session immediately.
//
// Inputs:
//
//	ctx - Cancellation for the whole session
//	req - The plan, inputs and output. Validated first.
//
// Outputs:
//
//	*Outcome - Non-nil whenever the loop ran, including on failure
//	error - *RetryExhaustedError (wraps ErrMaxIterations) when the budget
//	        is spent, ErrCancelled on cancellation, or a setup error
//
// Thread Safety: Safe for concurrent use; calls are serialized.
func (s *Session) Run(ctx context.Context, req Request) (*Outcome, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := startRunSpan(ctx, req.WorkflowName, s.config.MaxIterations)
	defer span.End()

	s.reset(req)
	s.files = s.describeInputs(ctx, req)

	logger := s.logger.With(slog.String("workflow", req.WorkflowName))
	logger.Info("Starting code generation",
		slog.Int("inputs", len(req.InputFiles)),
		slog.Int("max_iterations", s.config.MaxIterations),
	)

	instruction := initialInstruction
	for iter := 1; iter <= s.config.MaxIterations; iter++ {
		if ctx.Err() != nil {
			return s.cancelled(ctx, span)
		}
		s.iterations = iter

		prompt := BuildContext(s.generationContext(iter)) + "\n\n" + instruction
		st := s.step(ctx, prompt)

		switch st.kind {
		case stepSetupFailed:
			recordIteration(ctx, "setup_failed")
			if ctx.Err() != nil {
				return s.cancelled(ctx, span)
			}
			logger.Warn("Iteration could not run the code",
				slog.Int("iteration", iter),
				slog.String("error", st.problem),
			)
			continue

		case stepGenerateFailed:
			recordIteration(ctx, "generate_failed")
			if ctx.Err() != nil {
				return s.cancelled(ctx, span)
			}
			logger.Warn("Code generation failed",
				slog.Int("iteration", iter),
				slog.String("error", st.problem),
			)
			continue

		case stepRejected:
			recordIteration(ctx, "rejected")
			logger.Info("Generated code rejected before execution",
				slog.Int("iteration", iter),
				slog.String("problem", st.problem),
			)
			instruction = st.fix
			continue
		}

		st.attempt.Iteration = len(s.attempts) + 1
		s.attempts = append(s.attempts, *st.attempt)

		switch st.kind {
		case stepCancelled:
			recordIteration(ctx, "cancelled")
			return s.cancelled(ctx, span)

		case stepSucceeded:
			recordIteration(ctx, "success")
			out := s.outcome(true, "")
			out.Code = st.code
			out.Validation = st.validation
			out.Preview = st.preview
			out.Summary = st.summary

			logger.Info("Code generation succeeded",
				slog.Int("iteration", iter),
				slog.Int("row_count", st.validation.RowCount),
				slog.Int("column_count", st.validation.ColumnCount),
			)
			finishSpan(span, true, iter, nil)
			recordSession(ctx, "success")
			return out, nil

		default:
			recordIteration(ctx, "failed")
			logger.Info("Attempt failed",
				slog.Int("iteration", iter),
				slog.String("status", string(st.result.Status)),
				slog.String("problem", st.problem),
			)
			instruction = st.fix
		}
	}

	exhausted := &RetryExhaustedError{Iterations: s.config.MaxIterations}
	exhausted.Outcome = s.outcome(false, exhausted.Error())
	logger.Warn("Code generation exhausted its iterations",
		slog.Int("iterations", s.config.MaxIterations),
		slog.Int("attempts", len(s.attempts)),
	)
	finishSpan(span, false, s.config.MaxIterations, exhausted)
	recordSession(ctx, "exhausted")
	return exhausted.Outcome, exhausted
}

// Refine regenerates the code once to address feedback on a valid
// output, on the same conversation. It never loops; a failed refinement
// is reported in the result, not as an error.
//
// Outputs:
//
//	*RefineResult - Outcome of the single attempt
//	error - ErrNotStarted before Run, ErrCancelled, or a setup error
func (s *Session) Refine(ctx context.Context, feedback string) (*RefineResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.req == nil {
		return nil, ErrNotStarted
	}

	ctx, span := startRefineSpan(ctx, s.req.WorkflowName)
	defer span.End()

	gc := s.generationContext(0)
	gc.MaxIterations = 0
	prompt := BuildContext(gc) + "\n\n" + refinePrompt(feedback, s.lastSource)

	accepted := s.lastSource
	st := s.step(ctx, prompt)
	if st.kind != stepSucceeded {
		// Later refinements build on the last code that produced valid output.
		s.lastSource = accepted
	}

	res := &RefineResult{Code: st.code, Result: st.result, Validation: st.validation}
	if st.attempt != nil {
		st.attempt.Iteration = len(s.refinements) + 1
		s.refinements = append(s.refinements, *st.attempt)
		res.Attempt = &s.refinements[len(s.refinements)-1]
	}

	switch st.kind {
	case stepCancelled:
		finishSpan(span, false, 1, ErrCancelled)
		return res, s.cancelErr(ctx)
	case stepGenerateFailed, stepSetupFailed:
		if ctx.Err() != nil {
			return res, s.cancelErr(ctx)
		}
		if st.kind == stepGenerateFailed {
			res.Error = "code generation failed: " + st.problem
		} else {
			res.Error = st.problem
		}
	case stepSucceeded:
		res.Success = true
		res.Preview = st.preview
		res.Summary = st.summary
	default:
		res.Error = st.problem
	}

	s.logger.Info("Output refinement finished",
		slog.String("workflow", s.req.WorkflowName),
		slog.Bool("success", res.Success),
		slog.String("error", res.Error),
	)
	finishSpan(span, res.Success, 1, nil)
	return res, nil
}

// Attempts returns a copy of the executed attempts of the last Run.
func (s *Session) Attempts() []CodeAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CodeAttempt(nil), s.attempts...)
}

// Refinements returns a copy of the refinement attempts.
func (s *Session) Refinements() []CodeAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CodeAttempt(nil), s.refinements...)
}

// AttemptStatus is one line of an ExecutionSummary.
type AttemptStatus struct {
	Iteration int             `json:"iteration"`
	Status    executor.Status `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
}

// ExecutionSummary is a compact view of a session.
type ExecutionSummary struct {
	WorkflowName    string          `json:"workflow_name"`
	TotalIterations int             `json:"total_iterations"`
	MaxIterations   int             `json:"max_iterations"`
	Attempts        []AttemptStatus `json:"attempts"`
	FinalCode       string          `json:"final_code,omitempty"`
}

// Summary returns the execution summary of the session.
func (s *Session) Summary() ExecutionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := ExecutionSummary{
		TotalIterations: s.iterations,
		MaxIterations:   s.config.MaxIterations,
		FinalCode:       s.lastCode,
		Attempts:        make([]AttemptStatus, 0, len(s.attempts)),
	}
	if s.req != nil {
		sum.WorkflowName = s.req.WorkflowName
	}
	for _, a := range s.attempts {
		sum.Attempts = append(sum.Attempts, AttemptStatus{
			Iteration: a.Iteration,
			Status:    a.Result.Status,
			Timestamp: a.Timestamp,
		})
	}
	return sum
}

// =============================================================================
// ITERATION STEP
// =============================================================================

type stepKind int

const (
	stepGenerateFailed stepKind = iota
	stepSetupFailed
	stepRejected
	stepFailed
	stepCancelled
	stepSucceeded
)

// step is the outcome of one generate/check/execute/validate pass.
type step struct {
	kind    stepKind
	code    string
	fix     string
	problem string

	attempt    *CodeAttempt
	result     *executor.ExecutionResult
	validation *dataset.Validation
	preview    string
	summary    *dataset.Summary
}

// step runs one pass. Every failure, including a syntax checker or
// executor that cannot run, is reported as a step kind so it consumes the
// iteration instead of ending the session.
func (s *Session) step(ctx context.Context, prompt string) step {
	reply, err := s.deps.Generator.Generate(ctx, prompt)
	recordLLMCall(ctx, err == nil)
	if err != nil {
		return step{kind: stepGenerateFailed, problem: err.Error()}
	}

	code := ExtractCode(reply)
	s.lastCode = code

	check, err := s.deps.Syntax.Validate(ctx, s.config.Language, code)
	if err != nil {
		return step{kind: stepSetupFailed, code: code, problem: fmt.Sprintf("syntax check: %v", err)}
	}
	if !check.Valid {
		recordSyntaxFailure(ctx)
		return step{kind: stepRejected, code: code, fix: syntaxFixPrompt(check), problem: check.Error}
	}

	runnable, err := Materialize(code, s.req.InputFiles, s.req.OutputPath)
	if err != nil {
		return step{kind: stepRejected, code: code, fix: materializeFixPrompt(err), problem: err.Error()}
	}
	s.lastCode = runnable
	s.lastSource = code

	if err := os.Remove(s.req.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Could not remove previous output",
			slog.String("path", s.req.OutputPath),
			slog.String("error", err.Error()),
		)
	}

	result, err := s.deps.Executor.Execute(ctx, []executor.CodeBlock{{Language: s.config.Language, Code: runnable}})
	if err != nil {
		return step{kind: stepSetupFailed, code: runnable, problem: fmt.Sprintf("execute code: %v", err)}
	}
	s.lastResult = result

	st := step{
		code:    runnable,
		result:  result,
		attempt: &CodeAttempt{Timestamp: time.Now().UTC(), Code: runnable, Result: result},
	}

	switch result.Status {
	case executor.StatusCancelled:
		st.kind = stepCancelled
		st.problem = result.ErrorMessage
		return st
	case executor.StatusSuccess:
	default:
		a := analyzer.Analyze(result, runnable)
		st.kind = stepFailed
		st.problem = a.ErrorType + ": " + a.ErrorMessage
		st.fix = executionFixPrompt(result, a, s.config.OutputTail)
		return st
	}

	v := s.deps.Output.Validate(s.req.OutputPath)
	st.validation = v
	if !v.Valid {
		st.kind = stepFailed
		st.problem = v.Error
		st.fix = outputFixPrompt(v.Error)
		return st
	}

	st.kind = stepSucceeded
	if st.preview, err = s.deps.Output.Preview(s.req.OutputPath, s.config.PreviewRows); err != nil {
		s.logger.Warn("Could not preview output", slog.String("error", err.Error()))
	}
	if st.summary, err = s.deps.Output.Summarize(s.req.OutputPath); err != nil {
		s.logger.Warn("Could not summarize output", slog.String("error", err.Error()))
	}
	return st
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Session) reset(req Request) {
	r := req
	s.req = &r
	s.files = nil
	s.attempts = nil
	s.refinements = nil
	s.iterations = 0
	s.lastCode = ""
	s.lastSource = ""
	s.lastResult = nil
}

// describeInputs returns file metadata for the prompt. A failure is
// logged and the prompt falls back to file names.
func (s *Session) describeInputs(ctx context.Context, req Request) []*dataset.FileInfo {
	infos, err := dataset.DescribeAll(ctx, s.deps.Describer, req.InputFiles)
	if err != nil {
		s.logger.Warn("Could not describe input files",
			slog.String("workflow", req.WorkflowName),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return infos
}

func (s *Session) generationContext(iter int) GenerationContext {
	return GenerationContext{
		Plan:           s.req.Plan,
		Files:          s.files,
		InputFiles:     s.req.InputFiles,
		Attempts:       s.attempts,
		Iteration:      iter,
		MaxIterations:  s.config.MaxIterations,
		RecentFailures: s.config.RecentFailures,
	}
}

func (s *Session) outcome(success bool, msg string) *Outcome {
	return &Outcome{
		Success:    success,
		Iterations: s.iterations,
		OutputPath: s.req.OutputPath,
		Attempts:   append([]CodeAttempt(nil), s.attempts...),
		LastCode:   s.lastCode,
		LastResult: s.lastResult,
		Error:      msg,
	}
}

func (s *Session) cancelled(ctx context.Context, span trace.Span) (*Outcome, error) {
	err := s.cancelErr(ctx)
	finishSpan(span, false, s.iterations, err)
	s.logger.Info("Code generation cancelled",
		slog.String("workflow", s.req.WorkflowName),
		slog.Int("iteration", s.iterations),
	)
	recordSession(ctx, "cancelled")
	return s.outcome(false, err.Error()), err
}

func (s *Session) cancelErr(ctx context.Context) error {
	if cause := context.Cause(ctx); cause != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, cause)
	}
	return ErrCancelled
}
