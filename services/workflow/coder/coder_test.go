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
	"context"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/dataset"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/executor"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/syntax"
)

// =============================================================================
// FAKES
// =============================================================================

type reply struct {
	text string
	err  error
}

// scriptedGenerator returns replies in order and repeats the last one.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	i := len(g.prompts) - 1
	if i >= len(g.replies) {
		i = len(g.replies) - 1
	}
	return g.replies[i].text, g.replies[i].err
}

type fakeExecutor struct {
	mu    sync.Mutex
	calls [][]executor.CodeBlock
	run   func(ctx context.Context, call int, code string) (*executor.ExecutionResult, error)
}

func (e *fakeExecutor) Execute(ctx context.Context, blocks []executor.CodeBlock) (*executor.ExecutionResult, error) {
	e.mu.Lock()
	e.calls = append(e.calls, blocks)
	n := len(e.calls)
	e.mu.Unlock()
	return e.run(ctx, n, blocks[0].Code)
}

func (e *fakeExecutor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// =============================================================================
// FIXTURES
// =============================================================================

const goodCode = `import pandas as pd

sales_path = "{{WFB_INPUT_0}}"
regions_path = "{{WFB_INPUT_1}}"

sales = pd.read_csv(sales_path)
regions = pd.read_csv(regions_path)
result = sales.merge(regions, on="region")
result.to_csv("{{WFB_OUTPUT_PATH}}", index=False)
`

const brokenCode = `import pandas as pd

sales = pd.read_csv("{{WFB_INPUT_0}}"
print((1
`

const keyErrorOutput = `Traceback (most recent call last):
  File "/work/tmp_code_abc.py", line 7, in <module>
    total = sales["amount"].sum()
KeyError: 'amount'
`

func fenced(code string) string {
	return "Here is the script:\n\n```python\n" + code + "```\n"
}

func writeCSV(t *testing.T, path string, rows int) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("region,total\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&sb, "r%d,%d\n", i, i*10)
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
}

type fixture struct {
	dir    string
	inputs []string
	output string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	sales := filepath.Join(dir, "sales.csv")
	regions := filepath.Join(dir, "regions.csv")
	require.NoError(t, os.WriteFile(sales, []byte("region,amount\nnorth,10\nsouth,20\n"), 0644))
	require.NoError(t, os.WriteFile(regions, []byte("region,manager\nnorth,ann\nsouth,bob\n"), 0644))
	return fixture{dir: dir, inputs: []string{sales, regions}, output: filepath.Join(dir, "out", "out.csv")}
}

func (f fixture) request() Request {
	return Request{
		WorkflowName: "Sales Summary",
		Plan:         "Join sales with regions and write one row per region.",
		InputFiles:   f.inputs,
		OutputPath:   f.output,
	}
}

func success() *executor.ExecutionResult {
	return &executor.ExecutionResult{Status: executor.StatusSuccess, ExitCode: 0, Output: "done\n"}
}

func keyError() *executor.ExecutionResult {
	return &executor.ExecutionResult{
		Status:       executor.StatusError,
		ExitCode:     1,
		Output:       keyErrorOutput,
		CodeFile:     "/work/tmp_code_abc.py",
		ErrorMessage: "KeyError: 'amount'",
	}
}

func newSession(t *testing.T, gen Generator, exec Executor, opts ...Option) *Session {
	t.Helper()
	s, err := New(NewConfig(opts...), Deps{Generator: gen, Executor: exec}, nil)
	require.NoError(t, err)
	return s
}

// =============================================================================
// RUN
// =============================================================================

// TestRun_SyntaxErrorThenSuccess verifies that a syntax error costs an
// iteration without execution and the next valid script is accepted.
func TestRun_SyntaxErrorThenSuccess(t *testing.T) {
	f := newFixture(t)
	gen := &scriptedGenerator{replies: []reply{{text: fenced(brokenCode)}, {text: fenced(goodCode)}}}
	exec := &fakeExecutor{run: func(_ context.Context, _ int, code string) (*executor.ExecutionResult, error) {
		require.NoError(t, os.MkdirAll(filepath.Dir(f.output), 0755))
		writeCSV(t, f.output, 10)
		return success(), nil
	}}

	out, err := newSession(t, gen, exec).Run(context.Background(), f.request())
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, 2, out.Iterations)
	require.NotNil(t, out.Validation)
	assert.Equal(t, 10, out.Validation.RowCount)
	assert.Equal(t, []string{"region", "total"}, out.Validation.Columns)
	assert.Contains(t, out.Preview, "showing first 10")
	require.NotNil(t, out.Summary)
	assert.Equal(t, 10, out.Summary.RowCount)

	assert.Equal(t, 1, exec.Calls(), "syntax failure must not execute")
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, 1, out.Attempts[0].Iteration)

	assert.Contains(t, out.Code, fmt.Sprintf("%q", f.inputs[0]))
	assert.Contains(t, out.Code, fmt.Sprintf("%q", f.output))
	assert.NotContains(t, out.Code, "{{WFB_")

	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[1], "SYNTAX ERROR DETECTED")
	assert.Contains(t, gen.prompts[1], "Line: ")
}

// TestRun_ExhaustsIterations verifies the failure outcome after every
// attempt raised a missing column error.
func TestRun_ExhaustsIterations(t *testing.T) {
	f := newFixture(t)
	gen := &scriptedGenerator{replies: []reply{{text: fenced(goodCode)}}}
	exec := &fakeExecutor{run: func(context.Context, int, string) (*executor.ExecutionResult, error) {
		return keyError(), nil
	}}

	out, err := newSession(t, gen, exec, WithMaxIterations(5)).Run(context.Background(), f.request())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxIterations)

	var exhausted *RetryExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 5, exhausted.Iterations)
	assert.Equal(t, "Failed to generate working code after 5 attempts", err.Error())

	require.NotNil(t, out)
	assert.False(t, out.Success)
	assert.Equal(t, 5, out.Iterations)
	assert.Equal(t, err.Error(), out.Error)
	require.Len(t, out.Attempts, 5)
	for i, a := range out.Attempts {
		assert.Equal(t, i+1, a.Iteration)
		assert.Equal(t, executor.StatusError, a.Result.Status)
	}
	assert.Contains(t, out.LastCode, "pd.read_csv")
	require.NotNil(t, out.LastResult)
	assert.Equal(t, 1, out.LastResult.ExitCode)

	require.Len(t, gen.prompts, 5)
	assert.Contains(t, gen.prompts[1], "Error Type: KeyError")
	assert.Contains(t, gen.prompts[1], "Suggested Fix: Column not found")
	assert.Contains(t, gen.prompts[1], "PREVIOUS FAILURES")
	assert.NotContains(t, gen.prompts[2], "last attempt")
	assert.Contains(t, gen.prompts[3], "last attempt")
	assert.Contains(t, gen.prompts[4], "last attempt")
}

func TestRun_AttemptNumbersHaveNoGaps(t *testing.T) {
	f := newFixture(t)
	gen := &scriptedGenerator{replies: []reply{
		{text: fenced(goodCode)},
		{text: fenced(brokenCode)},
		{err: errors.New("connection reset")},
		{text: fenced(goodCode)},
	}}
	exec := &fakeExecutor{run: func(context.Context, int, string) (*executor.ExecutionResult, error) {
		return keyError(), nil
	}}

	out, err := newSession(t, gen, exec, WithMaxIterations(4)).Run(context.Background(), f.request())
	require.ErrorIs(t, err, ErrMaxIterations)

	assert.Equal(t, 4, out.Iterations)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, 1, out.Attempts[0].Iteration)
	assert.Equal(t, 2, out.Attempts[1].Iteration)
	assert.False(t, out.Attempts[1].Timestamp.Before(out.Attempts[0].Timestamp))
}

func TestRun_GeneratorErrorConsumesIteration(t *testing.T) {
	f := newFixture(t)
	gen := &scriptedGenerator{replies: []reply{
		{err: errors.New("rate limited")},
		{text: fenced(goodCode)},
	}}
	exec := &fakeExecutor{run: func(context.Context, int, string) (*executor.ExecutionResult, error) {
		require.NoError(t, os.MkdirAll(filepath.Dir(f.output), 0755))
		writeCSV(t, f.output, 3)
		return success(), nil
	}}

	out, err := newSession(t, gen, exec).Run(context.Background(), f.request())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Iterations)
	assert.Len(t, out.Attempts, 1)
	assert.Equal(t, 1, exec.Calls())
}

// TestRun_ExecutorSetupErrorConsumesIteration verifies that an executor
// that cannot run a batch costs one iteration and the loop continues.
func TestRun_ExecutorSetupErrorConsumesIteration(t *testing.T) {
	f := newFixture(t)
	gen := &scriptedGenerator{replies: []reply{{text: fenced(goodCode)}}}
	exec := &fakeExecutor{run: func(_ context.Context, call int, _ string) (*executor.ExecutionResult, error) {
		if call == 1 {
			return nil, errors.New("write code file: permission denied")
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(f.output), 0755))
		writeCSV(t, f.output, 3)
		return success(), nil
	}}

	out, err := newSession(t, gen, exec).Run(context.Background(), f.request())
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 2, out.Iterations)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, 1, out.Attempts[0].Iteration)
	assert.Equal(t, 2, exec.Calls())
}

// failingChecker reports an error for every syntax check.
type failingChecker struct{}

func (failingChecker) Validate(context.Context, string, string) (*syntax.Result, error) {
	return nil, errors.New("grammar unavailable")
}

// TestRun_SyntaxCheckerErrorExhaustsBudget verifies that a broken syntax
// checker consumes iterations until the budget runs out.
func TestRun_SyntaxCheckerErrorExhaustsBudget(t *testing.T) {
	f := newFixture(t)
	gen := &scriptedGenerator{replies: []reply{{text: fenced(goodCode)}}}
	exec := &fakeExecutor{run: func(context.Context, int, string) (*executor.ExecutionResult, error) {
		return success(), nil
	}}

	s, err := New(NewConfig(WithMaxIterations(3)), Deps{Generator: gen, Executor: exec, Syntax: failingChecker{}}, nil)
	require.NoError(t, err)

	out, err := s.Run(context.Background(), f.request())
	require.ErrorIs(t, err, ErrMaxIterations)
	assert.Equal(t, 3, out.Iterations)
	assert.Empty(t, out.Attempts)
	assert.Zero(t, exec.Calls())
	assert.Len(t, gen.prompts, 3)
}

// TestRun_ScriptExitCodeIsNotCancellation verifies with a real executor
// that a script exiting 125 is an ordinary failure that gets retried.
func TestRun_ScriptExitCodeIsNotCancellation(t *testing.T) {
	if _, err := osexec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	f := newFixture(t)
	req := f.request()
	req.OutputPath = filepath.Join(f.dir, "result.csv")

	ex, err := executor.New(executor.NewConfig(executor.WithWorkDir(f.dir)), nil)
	require.NoError(t, err)

	gen := &scriptedGenerator{replies: []reply{
		{text: "```sh\nexit 125\n```\n"},
		{text: "```sh\nprintf 'region,total\\nnorth,10\\n' > \"{{WFB_OUTPUT_PATH}}\"\n```\n"},
	}}
	s, err := New(NewConfig(WithLanguage("sh")), Deps{Generator: gen, Executor: ex}, nil)
	require.NoError(t, err)

	out, err := s.Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 2, out.Iterations)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, executor.StatusError, out.Attempts[0].Result.Status)
	assert.Equal(t, executor.ExitCodeCancelled, out.Attempts[0].Result.ExitCode)
	assert.Equal(t, executor.StatusSuccess, out.Attempts[1].Result.Status)
	require.NotNil(t, out.Validation)
	assert.Equal(t, 1, out.Validation.RowCount)
}

func TestRun_InvalidOutputIsRetried(t *testing.T) {
	f := newFixture(t)
	gen := &scriptedGenerator{replies: []reply{{text: fenced(goodCode)}}}
	exec := &fakeExecutor{run: func(_ context.Context, call int, _ string) (*executor.ExecutionResult, error) {
		if call == 2 {
			require.NoError(t, os.MkdirAll(filepath.Dir(f.output), 0755))
			writeCSV(t, f.output, 4)
		}
		return success(), nil
	}}

	out, err := newSession(t, gen, exec).Run(context.Background(), f.request())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Iterations)
	assert.Equal(t, 4, out.Validation.RowCount)

	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[1], "OUTPUT VALIDATION FAILED")
	assert.Contains(t, gen.prompts[1], "Output file was not created")
	assert.Contains(t, gen.prompts[1], OutputToken)
}

func TestRun_StaleOutputIsRemoved(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.output), 0755))
	writeCSV(t, f.output, 2)

	gen := &scriptedGenerator{replies: []reply{{text: fenced(goodCode)}}}
	exec := &fakeExecutor{run: func(context.Context, int, string) (*executor.ExecutionResult, error) {
		return success(), nil
	}}

	out, err := newSession(t, gen, exec, WithMaxIterations(1)).Run(context.Background(), f.request())
	require.ErrorIs(t, err, ErrMaxIterations)
	assert.False(t, out.Success)
	assert.NoFileExists(t, f.output)
}

func TestRun_TimeoutWarnsAboutRuntime(t *testing.T) {
	f := newFixture(t)
	gen := &scriptedGenerator{replies: []reply{{text: fenced(goodCode)}}}
	exec := &fakeExecutor{run: func(context.Context, int, string) (*executor.ExecutionResult, error) {
		return &executor.ExecutionResult{
			Status:       executor.StatusTimeout,
			ExitCode:     executor.ExitCodeTimeout,
			Output:       "loading\nTimeout",
			ErrorMessage: "Execution timed out after 120 seconds",
		}, nil
	}}

	_, err := newSession(t, gen, exec, WithMaxIterations(2)).Run(context.Background(), f.request())
	require.ErrorIs(t, err, ErrMaxIterations)
	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[1], "Status: timeout")
	assert.Contains(t, gen.prompts[1], "longer than the allowed time")
}

func TestRun_CancelledExecutionStopsSession(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := &scriptedGenerator{replies: []reply{{text: fenced(goodCode)}}}
	exec := &fakeExecutor{run: func(context.Context, int, string) (*executor.ExecutionResult, error) {
		cancel()
		return &executor.ExecutionResult{
			Status:       executor.StatusCancelled,
			ExitCode:     executor.ExitCodeCancelled,
			Output:       "\nCancelled",
			ErrorMessage: "Execution cancelled",
		}, nil
	}}

	out, err := newSession(t, gen, exec).Run(ctx, f.request())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, out.Success)
	assert.Len(t, out.Attempts, 1)
	assert.Len(t, gen.prompts, 1)
}

func TestRun_UnknownPlaceholderIsRejected(t *testing.T) {
	f := newFixture(t)
	gen := &scriptedGenerator{replies: []reply{
		{text: fenced("import pandas as pd\ndf = pd.read_csv(\"{{WFB_INPUT_7}}\")\n")},
		{text: fenced(goodCode)},
	}}
	exec := &fakeExecutor{run: func(context.Context, int, string) (*executor.ExecutionResult, error) {
		require.NoError(t, os.MkdirAll(filepath.Dir(f.output), 0755))
		writeCSV(t, f.output, 1)
		return success(), nil
	}}

	out, err := newSession(t, gen, exec).Run(context.Background(), f.request())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Iterations)
	assert.Equal(t, 1, exec.Calls())
	assert.Contains(t, gen.prompts[1], "PATH PLACEHOLDER ERROR")
}

func TestRun_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	s := newSession(t, &scriptedGenerator{replies: []reply{{text: "x"}}}, &fakeExecutor{})

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"empty plan", func(r *Request) { r.Plan = "" }},
		{"no inputs", func(r *Request) { r.InputFiles = nil }},
		{"blank input", func(r *Request) { r.InputFiles = []string{""} }},
		{"relative output", func(r *Request) { r.OutputPath = "out.csv" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request()
			tt.mutate(&req)
			_, err := s.Run(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(nil, Deps{Executor: &fakeExecutor{}}, nil)
	assert.ErrorIs(t, err, ErrMissingDependency)

	_, err = New(nil, Deps{Generator: &scriptedGenerator{}}, nil)
	assert.ErrorIs(t, err, ErrMissingDependency)

	_, err = New(NewConfig(WithMaxIterations(0)), Deps{Generator: &scriptedGenerator{}, Executor: &fakeExecutor{}}, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxIterations)
}

// =============================================================================
// REFINE
// =============================================================================

func TestRefine(t *testing.T) {
	t.Run("before run", func(t *testing.T) {
		s := newSession(t, &scriptedGenerator{replies: []reply{{text: "x"}}}, &fakeExecutor{})
		_, err := s.Refine(context.Background(), "add a total column")
		assert.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("success keeps attempts separate", func(t *testing.T) {
		f := newFixture(t)
		refined := strings.Replace(goodCode, "index=False", "index=False, sep=\",\"", 1)
		gen := &scriptedGenerator{replies: []reply{{text: fenced(goodCode)}, {text: fenced(refined)}}}
		exec := &fakeExecutor{run: func(_ context.Context, call int, _ string) (*executor.ExecutionResult, error) {
			require.NoError(t, os.MkdirAll(filepath.Dir(f.output), 0755))
			writeCSV(t, f.output, 5+call)
			return success(), nil
		}}
		s := newSession(t, gen, exec)

		_, err := s.Run(context.Background(), f.request())
		require.NoError(t, err)

		res, err := s.Refine(context.Background(), "add a separator")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, 7, res.Validation.RowCount)
		require.NotNil(t, res.Attempt)
		assert.Equal(t, 1, res.Attempt.Iteration)
		assert.Contains(t, res.Code, `sep=","`)

		assert.Len(t, s.Attempts(), 1)
		assert.Len(t, s.Refinements(), 1)

		require.Len(t, gen.prompts, 2)
		assert.Contains(t, gen.prompts[1], "OUTPUT REFINEMENT REQUEST")
		assert.Contains(t, gen.prompts[1], "add a separator")
		assert.Contains(t, gen.prompts[1], "{{WFB_OUTPUT_PATH}}")
		assert.NotContains(t, gen.prompts[1], "ITERATION")
	})

	t.Run("failure is reported in the result", func(t *testing.T) {
		f := newFixture(t)
		gen := &scriptedGenerator{replies: []reply{
			{text: fenced(goodCode)},
			{text: fenced(strings.Replace(goodCode, "merge", "join_missing", 1))},
			{text: fenced(goodCode)},
		}}
		exec := &fakeExecutor{run: func(_ context.Context, call int, _ string) (*executor.ExecutionResult, error) {
			if call == 2 {
				return keyError(), nil
			}
			require.NoError(t, os.MkdirAll(filepath.Dir(f.output), 0755))
			writeCSV(t, f.output, 2)
			return success(), nil
		}}
		s := newSession(t, gen, exec)
		_, err := s.Run(context.Background(), f.request())
		require.NoError(t, err)

		res, err := s.Refine(context.Background(), "rename columns")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "KeyError")

		_, err = s.Refine(context.Background(), "try again")
		require.NoError(t, err)
		require.Len(t, gen.prompts, 3)
		assert.Contains(t, gen.prompts[2], "sales.merge(regions")
		assert.NotContains(t, gen.prompts[2], "join_missing")
	})
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	gen := &scriptedGenerator{replies: []reply{{text: fenced(goodCode)}}}
	exec := &fakeExecutor{run: func(_ context.Context, call int, _ string) (*executor.ExecutionResult, error) {
		if call == 1 {
			return keyError(), nil
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(f.output), 0755))
		writeCSV(t, f.output, 1)
		return success(), nil
	}}
	s := newSession(t, gen, exec)
	_, err := s.Run(context.Background(), f.request())
	require.NoError(t, err)

	sum := s.Summary()
	assert.Equal(t, "Sales Summary", sum.WorkflowName)
	assert.Equal(t, 2, sum.TotalIterations)
	assert.Equal(t, 5, sum.MaxIterations)
	require.Len(t, sum.Attempts, 2)
	assert.Equal(t, executor.StatusError, sum.Attempts[0].Status)
	assert.Equal(t, executor.StatusSuccess, sum.Attempts[1].Status)
}

// =============================================================================
// PROMPTS
// =============================================================================

func TestBuildContext(t *testing.T) {
	fail := func(n int, msg string) CodeAttempt {
		return CodeAttempt{Iteration: n, Result: &executor.ExecutionResult{Status: executor.StatusError, ErrorMessage: msg}}
	}
	gc := GenerationContext{
		Plan:       "Sum amounts per region.",
		InputFiles: []string{"/data/sales.csv", "/data/regions.csv"},
		Files: []*dataset.FileInfo{{
			Filename: "sales.csv",
			Columns:  []string{"region", "amount"},
			Dtypes:   map[string]string{"region": "object", "amount": "int64"},
			RowCount: 1200,
		}},
		Attempts:       []CodeAttempt{fail(1, "KeyError: 'a'"), fail(2, "KeyError: 'b'\ntraceback"), fail(3, "ValueError: c")},
		Iteration:      2,
		MaxIterations:  5,
		RecentFailures: 2,
	}

	got := BuildContext(gc)
	assert.Contains(t, got, "## BUSINESS LOGIC PLAN\n\nSum amounts per region.")
	assert.Contains(t, got, "File 1: {{WFB_INPUT_0}}")
	assert.Contains(t, got, "Rows: 1,200")
	assert.Contains(t, got, "Dtypes: region=object, amount=int64")
	assert.Contains(t, got, "File 2: {{WFB_INPUT_1}}\n  Name: regions.csv")
	assert.Contains(t, got, "Output path: {{WFB_OUTPUT_PATH}}")
	assert.Contains(t, got, "- Attempt 2 (error): KeyError: 'b'\n")
	assert.Contains(t, got, "- Attempt 3 (error): ValueError: c")
	assert.NotContains(t, got, "Attempt 1 ")
	assert.NotContains(t, got, "last attempt")

	gc.Iteration = 4
	assert.Contains(t, BuildContext(gc), "This is your last attempt")

	gc.Attempts = nil
	assert.NotContains(t, BuildContext(gc), "PREVIOUS FAILURES")
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"python fence", "Sure:\n```python\nprint(1)\n```\nDone.", "print(1)"},
		{"python fence preferred", "```text\nnotes\n```\n```python\nx = 1\n```", "x = 1"},
		{"py alias", "```py\nx = 2\n```", "x = 2"},
		{"any fence", "```\ny = 3\n```", "y = 3"},
		{"raw text", "  z = 4\n", "z = 4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCode(tt.reply))
		})
	}
}

func TestMaterialize(t *testing.T) {
	inputs := []string{"/data/sales.csv", "/data/o'brien.csv"}
	output := "/out/result.csv"

	tests := []struct {
		name string
		code string
		want string
	}{
		{"double quoted", `p = "{{WFB_INPUT_0}}"`, `p = "/data/sales.csv"`},
		{"single quoted", `p = '{{WFB_INPUT_0}}'`, `p = "/data/sales.csv"`},
		{"bare", `p = {{WFB_OUTPUT_PATH}}`, `p = "/out/result.csv"`},
		{"spaces inside braces", `p = "{{ WFB_OUTPUT_PATH }}"`, `p = "/out/result.csv"`},
		{"quote in path", `p = "{{WFB_INPUT_1}}"`, `p = "/data/o'brien.csv"`},
		{"several", `a, b = "{{WFB_INPUT_0}}", "{{WFB_OUTPUT_PATH}}"`, `a, b = "/data/sales.csv", "/out/result.csv"`},
		{"no placeholders", `print("hi")`, `print("hi")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Materialize(tt.code, inputs, output)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("relative paths become absolute", func(t *testing.T) {
		got, err := Materialize(`"{{WFB_INPUT_0}}"`, []string{"in.csv"}, output)
		require.NoError(t, err)
		abs, _ := filepath.Abs("in.csv")
		assert.Equal(t, fmt.Sprintf("%q", abs), got)
	})

	errs := []struct {
		name string
		code string
	}{
		{"index out of range", `"{{WFB_INPUT_2}}"`},
		{"unknown token", `"{{WFB_CONFIG}}"`},
		{"malformed index", `"{{WFB_INPUT_X}}"`},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Materialize(tt.code, inputs, output)
			assert.ErrorIs(t, err, ErrMaterialize)
		})
	}
}
