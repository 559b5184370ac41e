// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/executor"
)

const keyErrorTrace = `Traceback (most recent call last):
  File "/work/tmp_code_abc.py", line 4, in <module>
    total = df["Amount"].sum()
  File "/usr/lib/python3/site-packages/pandas/core/frame.py", line 3761, in __getitem__
    indexer = self.columns.get_loc(key)
KeyError: 'Amount'
`

const sampleCode = `import pandas as pd
df = pd.read_csv("in.csv")
print(df.head())
total = df["Amount"].sum()
print(total)`

func TestAnalyze_KeyError(t *testing.T) {
	result := &executor.ExecutionResult{
		Status:   executor.StatusError,
		ExitCode: 1,
		Output:   keyErrorTrace,
		CodeFile: "/work/tmp_code_abc.py",
	}

	a := Analyze(result, sampleCode)

	assert.Equal(t, "KeyError", a.ErrorType)
	assert.Equal(t, "'Amount'", a.ErrorMessage)
	assert.Equal(t, 4, a.LineNumber)
	require.Len(t, a.CodeContext, 4)
	assert.True(t, strings.HasPrefix(a.CodeContext[2], ">>"), a.CodeContext[2])
	assert.Contains(t, a.CodeContext[2], `total = df["Amount"].sum()`)
	assert.Contains(t, a.SuggestedFix, "Check column names")
}

func TestAnalyze_Deterministic(t *testing.T) {
	result := &executor.ExecutionResult{Status: executor.StatusError, Output: keyErrorTrace}
	assert.Equal(t, Analyze(result, sampleCode), Analyze(result, sampleCode))
}

func TestAnalyze_Unknown(t *testing.T) {
	t.Run("uses result error message", func(t *testing.T) {
		result := &executor.ExecutionResult{
			Status:       executor.StatusTimeout,
			ExitCode:     executor.ExitCodeTimeout,
			Output:       "working\nTimeout",
			ErrorMessage: "Execution timed out after 3 seconds",
		}
		a := Analyze(result, "while True: pass")

		assert.Equal(t, UnknownErrorType, a.ErrorType)
		assert.Equal(t, "Execution timed out after 3 seconds", a.ErrorMessage)
		assert.Equal(t, 0, a.LineNumber)
		assert.Empty(t, a.CodeContext)
		assert.Equal(t, DefaultSuggestion, a.SuggestedFix)
	})

	t.Run("nil result", func(t *testing.T) {
		a := Analyze(nil, "")
		assert.Equal(t, UnknownErrorType, a.ErrorType)
		assert.Equal(t, DefaultSuggestion, a.SuggestedFix)
	})
}

func TestAnalyze_ExceptionFallback(t *testing.T) {
	result := &executor.ExecutionResult{Output: "pandas.errors.ParserException: bad row\n"}
	a := Analyze(result, "")
	assert.Equal(t, "ParserException", a.ErrorType)
	assert.Equal(t, "bad row", a.ErrorMessage)
}

func TestLineNumber(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		codeFile string
		want     int
	}{
		{"script frame wins over library frame", keyErrorTrace, "/work/tmp_code_abc.py", 4},
		{"temp file without code file", keyErrorTrace, "", 4},
		{"declared script name", "  File \"/w/run.py\", line 9, in <module>\n  File \"/lib/x.py\", line 99\n", "/w/run.py", 9},
		{"last script frame", "  File \"run.py\", line 3, in <module>\n  File \"run.py\", line 12, in helper\n", "run.py", 12},
		{"generic line fallback", "  File \"<string>\", Line 7\nSyntaxError: invalid syntax", "", 7},
		{"no line", "boom", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LineNumber(tt.output, tt.codeFile))
		})
	}
}

func TestCodeContext(t *testing.T) {
	code := "a\nb\nc\nd\ne"

	t.Run("middle", func(t *testing.T) {
		got := CodeContext(code, 3)
		assert.Equal(t, []string{
			"      1 | a",
			"      2 | b",
			">>    3 | c",
			"      4 | d",
			"      5 | e",
		}, got)
	})

	t.Run("window of five in longer code", func(t *testing.T) {
		got := CodeContext("1\n2\n3\n4\n5\n6\n7\n8\n9", 5)
		require.Len(t, got, 5)
		assert.Equal(t, "      3 | 3", got[0])
		assert.Equal(t, ">>    5 | 5", got[2])
		assert.Equal(t, "      7 | 7", got[4])
	})

	t.Run("first line", func(t *testing.T) {
		got := CodeContext(code, 1)
		require.Len(t, got, 3)
		assert.True(t, strings.HasPrefix(got[0], ">>"))
	})

	t.Run("last line", func(t *testing.T) {
		got := CodeContext(code, 5)
		require.Len(t, got, 3)
		assert.True(t, strings.HasPrefix(got[2], ">>"))
	})

	t.Run("out of range", func(t *testing.T) {
		assert.Nil(t, CodeContext(code, 6))
		assert.Nil(t, CodeContext(code, 0))
	})
}

func TestSuggest(t *testing.T) {
	tests := []struct {
		errorType string
		message   string
		contains  string
		tip       bool
	}{
		{"KeyError", "'Amount'", "Check column names", false},
		{"KeyError", "key 'x' missing", "Check column names", true},
		{"ValueError", "could not convert string to float", "type conversion", false},
		{"TypeError", "unsupported operand", "Check data types", false},
		{"FileNotFoundError", "No such file", "Verify file path", false},
		{"ModuleNotFoundError", "No module named 'polars'", "Ensure required packages", false},
		{"SyntaxError", "invalid syntax", "missing colons", false},
		{"IndentationError", "unexpected indent", "consistent use", false},
		{"ZeroDivisionError", "division by zero", "Division by zero", false},
		{"Weird", "column mismatch", DefaultSuggestion, true},
		{"Weird", "nothing", DefaultSuggestion, false},
	}
	for _, tt := range tests {
		t.Run(tt.errorType+"/"+tt.message, func(t *testing.T) {
			got := Suggest(tt.errorType, tt.message)
			assert.Contains(t, got, tt.contains)
			assert.Equal(t, tt.tip, strings.Contains(got, columnTip))
		})
	}
}

func TestTailOutput(t *testing.T) {
	assert.Equal(t, "abc", TailOutput("abc", 10))
	assert.Equal(t, "bc", TailOutput("abc", 2))
	assert.Equal(t, "abc", TailOutput("abc", 0))

	// "é" is two bytes; a cut inside it is moved to the next rune.
	assert.Equal(t, "x", TailOutput("éx", 2))
}

func TestExtractErrorExcerpt(t *testing.T) {
	assert.Contains(t, ExtractErrorExcerpt(keyErrorTrace), "KeyError: 'Amount'")
}
