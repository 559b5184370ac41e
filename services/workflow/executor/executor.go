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

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// waitDelay bounds how long Wait blocks on output pipes after a kill.
const waitDelay = 2 * time.Second

// exitCodeNotFound is reported when the interpreter cannot be started.
const exitCodeNotFound = 127

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor runs batches of code blocks as subprocesses.
//
// Thread Safety: Safe for concurrent use with distinct working directories.
type Executor struct {
	config    Config
	languages *LanguageRegistry
	logger    *slog.Logger
}

// New creates an Executor.
//
// Inputs:
//
//	cfg - Executor configuration. Nil uses DefaultConfig.
//	logger - Logger for structured logging. Nil uses slog.Default.
//
// Outputs:
//
//	*Executor - Configured executor
//	error - ErrInvalidTimeout when the timeout is below one second
func New(cfg *Config, logger *slog.Logger) (*Executor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := *cfg
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Executor{
		config:    c,
		languages: DefaultLanguages,
		logger:    logger,
	}, nil
}

// WithWorkDir returns a copy of the executor bound to another directory.
func (e *Executor) WithWorkDir(dir string) *Executor {
	clone := *e
	clone.config.WorkDir = dir
	return &clone
}

// WorkDir returns the working directory.
func (e *Executor) WorkDir() string {
	return e.config.WorkDir
}

// Timeout returns the per-block timeout.
func (e *Executor) Timeout() time.Duration {
	return e.config.Timeout
}

// Execute runs blocks in order and aggregates the outcome.
//
// Description:
//
//	Each block is written to a file in the working directory and run
//	with its interpreter. The batch stops at the first unsupported
//	language, non-zero exit, timeout or cancellation. Blocks that already
//	ran are not rolled back. Temporary files are removed afterwards when
//	cleanup is enabled; cleanup failures are only logged.
//
// Inputs:
//
//	ctx - Cancellation for the whole batch
//	blocks - Ordered code blocks. Empty is a trivial success.
//
// Outputs:
//
//	*ExecutionResult - Batch outcome, always non-nil when err is nil
//	error - Non-nil only when the batch could not be attempted
//
// Thread Safety: Safe for concurrent use with distinct working directories.
func (e *Executor) Execute(ctx context.Context, blocks []CodeBlock) (*ExecutionResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	workDir, err := filepath.Abs(e.config.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkDir, err)
	}
	if err := os.MkdirAll(workDir, 0750); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkDir, err)
	}

	start := time.Now()
	ctx, span := startBatchSpan(ctx, workDir, len(blocks))
	defer span.End()

	var buf bytes.Buffer
	out := &limitedWriter{w: &buf, limit: e.config.MaxOutputBytes}

	b := &batch{workDir: workDir, out: out, exitCode: ExitCodeSuccess}
	runErr := e.runBlocks(ctx, b, blocks)

	if e.config.CleanupTempFiles {
		for path, cerr := range removeTempFiles(b.written) {
			e.logger.Warn("Failed to clean up temporary file",
				slog.String("file", path),
				slog.String("error", cerr.Error()),
			)
		}
	}
	if runErr != nil {
		return nil, runErr
	}

	result := &ExecutionResult{
		Status:    b.status(),
		ExitCode:  b.exitCode,
		Output:    buf.String(),
		Truncated: out.truncated,
		BlocksRun: b.started,
		Duration:  time.Since(start),
	}
	if len(b.written) > 0 {
		result.CodeFile = b.written[0]
	}
	result.ErrorMessage = e.errorMessage(result)

	setBatchSpanResult(span, result)
	recordBatch(ctx, result.Status, result.Duration)

	e.logger.Debug("Batch completed",
		slog.String("work_dir", workDir),
		slog.String("status", string(result.Status)),
		slog.Int("exit_code", result.ExitCode),
		slog.Int("blocks", len(blocks)),
		slog.Int("blocks_run", result.BlocksRun),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}

// batch is the mutable state of one Execute call.
type batch struct {
	workDir  string
	out      *limitedWriter
	written  []string
	started  int
	exitCode int

	// stopped is set when the executor itself ended the batch with a
	// timeout or cancellation. A child exiting 124 or 125 on its own
	// leaves it empty.
	stopped Status
}

// status reports why the batch ended. Only the executor's own stop
// reasons map to timeout or cancelled; every other non-zero exit is an
// error.
func (b *batch) status() Status {
	if b.stopped != "" {
		return b.stopped
	}
	if b.exitCode == ExitCodeSuccess {
		return StatusSuccess
	}
	return StatusError
}

// runBlocks executes blocks until one stops the batch. It only returns an
// error for failures that prevent an attempt, such as an unwritable file.
func (e *Executor) runBlocks(ctx context.Context, b *batch, blocks []CodeBlock) error {
	for i, block := range blocks {
		if ctx.Err() != nil {
			b.out.note("\nCancelled")
			b.exitCode = ExitCodeCancelled
			b.stopped = StatusCancelled
			return nil
		}

		lang, ok := e.languages.Resolve(block.Language)
		if !ok {
			b.out.note("\nunknown language " + strings.ToLower(strings.TrimSpace(block.Language)))
			b.exitCode = ExitCodeRejected
			return nil
		}

		code := silencePip(block.Code, lang)

		name, err := declaredFileName(code, b.workDir)
		if err != nil {
			b.out.note("Filename is not in the workspace")
			b.exitCode = ExitCodeRejected
			return nil
		}
		if name == "" {
			name = tempFileName(code, lang)
		}

		path := filepath.Join(b.workDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return fmt.Errorf("create directory for %s: %w", name, err)
		}
		if err := os.WriteFile(path, []byte(code), 0640); err != nil {
			return fmt.Errorf("write code file %s: %w", name, err)
		}
		b.written = append(b.written, path)

		e.logger.Debug("Running code block",
			slog.Int("index", i),
			slog.String("language", lang.Name),
			slog.String("file", name),
		)

		b.started++
		recordBlock(ctx, lang.Name)
		b.exitCode = e.runFile(ctx, lang, path, b)
		if b.exitCode != ExitCodeSuccess {
			return nil
		}
	}
	return nil
}

// runFile runs one file and returns its exit code, writing stop notes for
// timeouts and cancellations.
func (e *Executor) runFile(ctx context.Context, lang *Language, path string, b *batch) int {
	blockCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	program := e.interpreter(lang)
	cmd := exec.CommandContext(blockCtx, program, path)
	cmd.Dir = b.workDir
	cmd.Env = e.environ()
	cmd.Stdout = b.out
	cmd.Stderr = b.out
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	err := cmd.Run()

	// The parent context is checked first so a caller cancellation is
	// never reported as a timeout.
	if ctx.Err() != nil {
		b.out.note("\nCancelled")
		b.stopped = StatusCancelled
		e.logger.Info("Code block cancelled",
			slog.String("file", filepath.Base(path)),
		)
		return ExitCodeCancelled
	}
	if errors.Is(blockCtx.Err(), context.DeadlineExceeded) {
		b.out.note("\nTimeout")
		b.stopped = StatusTimeout
		e.logger.Warn("Code block timed out",
			slog.String("file", filepath.Base(path)),
			slog.Duration("timeout", e.config.Timeout),
		)
		return ExitCodeTimeout
	}

	if err == nil {
		return ExitCodeSuccess
	}
	if code, ok := exitCodeOf(err); ok {
		return code
	}

	// The interpreter could not be started at all.
	b.out.note(fmt.Sprintf("\nfailed to start %s: %v", program, err))
	e.logger.Error("Interpreter failed to start",
		slog.String("program", program),
		slog.String("error", err.Error()),
	)
	return exitCodeNotFound
}

// interpreter returns the program used to run lang.
func (e *Executor) interpreter(lang *Language) string {
	if !lang.IsPython() {
		return lang.Interpreter
	}
	if e.config.VenvDir != "" {
		return filepath.Join(absOrSelf(e.config.VenvDir), "bin", "python")
	}
	return e.config.PythonPath
}

// environ returns the caller's environment, with the virtual environment
// bin directory first on PATH when configured.
func (e *Executor) environ() []string {
	env := os.Environ()
	if e.config.VenvDir == "" {
		return env
	}

	venv := absOrSelf(e.config.VenvDir)
	bin := filepath.Join(venv, "bin")
	pathSet := false
	for i, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			env[i] = "PATH=" + bin + string(os.PathListSeparator) + strings.TrimPrefix(kv, "PATH=")
			pathSet = true
		}
	}
	if !pathSet {
		env = append(env, "PATH="+bin)
	}
	return append(env, "VIRTUAL_ENV="+venv)
}

// errorMessage summarizes a non-success result.
func (e *Executor) errorMessage(r *ExecutionResult) string {
	switch r.Status {
	case StatusSuccess:
		return ""
	case StatusTimeout:
		return fmt.Sprintf("Execution timed out after %d seconds", int(e.config.Timeout.Seconds()))
	case StatusCancelled:
		return "Execution cancelled"
	default:
		return ErrorExcerpt(r.Output)
	}
}
