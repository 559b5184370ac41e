// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analyzer turns failed execution results into diagnostics that
// can be fed back to the code generator.
//
// Every function in this package is pure.
package analyzer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/executor"
)

// UnknownErrorType is reported when no error category can be found.
const UnknownErrorType = "Unknown"

// contextBefore and contextAfter bound the source window around the
// failing line.
const (
	contextBefore = 2
	contextAfter  = 2
)

// DefaultSuggestion is used for error types without a specific hint.
const DefaultSuggestion = "Check the error message and traceback for details."

// columnTip is appended when the message mentions columns or keys.
const columnTip = "Tip: Use df.columns.tolist() to see available columns."

var (
	errorPattern     = regexp.MustCompile(`(\w+Error): (.+)`)
	exceptionPattern = regexp.MustCompile(`(\w+Exception): (.+)`)
	linePattern      = regexp.MustCompile(`(?i)line (\d+)`)
	framePattern     = regexp.MustCompile(`File "([^"]+)", line (\d+)`)
)

var suggestions = map[string]string{
	"KeyError":            "Column not found in DataFrame. Check column names with df.columns and verify spelling.",
	"ValueError":          "Invalid value or type conversion. Check data types and value ranges.",
	"FileNotFoundError":   "File not found. Verify file path is correct and file exists.",
	"NameError":           "Variable or function not defined. Check for typos and ensure imports are correct.",
	"TypeError":           "Invalid type operation. Check data types and method signatures.",
	"AttributeError":      "Attribute or method not found. Verify object type and available methods.",
	"IndexError":          "Index out of range. Check array/list length before accessing.",
	"ImportError":         "Module not found. Ensure required packages are installed.",
	"ModuleNotFoundError": "Module not found. Ensure required packages are installed.",
	"SyntaxError":         "Invalid Python syntax. Check for missing colons, parentheses, or quotes.",
	"IndentationError":    "Incorrect indentation. Ensure consistent use of spaces or tabs.",
	"ZeroDivisionError":   "Division by zero. Guard denominators or filter zero values before dividing.",
	"MemoryError":         "Out of memory. Process the data in chunks or select fewer columns.",
}

// Analysis is the diagnostic view of a failed execution.
type Analysis struct {
	// ErrorType is the error category, e.g. "KeyError", or UnknownErrorType.
	ErrorType string `json:"error_type"`

	// ErrorMessage is the text following the error category.
	ErrorMessage string `json:"error_message"`

	// LineNumber is 1-based, or 0 when the output names no line.
	LineNumber int `json:"line_number,omitempty"`

	// CodeContext holds numbered source lines around LineNumber. The
	// failing line is prefixed with ">>".
	CodeContext []string `json:"code_context,omitempty"`

	// SuggestedFix is a human-readable hint for the error category.
	SuggestedFix string `json:"suggested_fix"`
}

// Analyze extracts diagnostics from result and the code that produced it.
//
// Inputs:
//
//	result - The execution result. Nil yields an UnknownErrorType analysis.
//	code - The source that was executed.
//
// Outputs:
//
//	Analysis - Always populated; SuggestedFix is never empty.
func Analyze(result *executor.ExecutionResult, code string) Analysis {
	var output, codeFile, fallback string
	if result != nil {
		output = result.Output
		codeFile = result.CodeFile
		fallback = result.ErrorMessage
	}

	a := Analysis{ErrorType: UnknownErrorType}
	if kind, msg, ok := errorCategory(output); ok {
		a.ErrorType = kind
		a.ErrorMessage = msg
	} else if fallback != "" {
		a.ErrorMessage = fallback
	} else {
		a.ErrorMessage = executor.ErrorExcerpt(output)
	}

	a.LineNumber = LineNumber(output, codeFile)
	if a.LineNumber > 0 {
		a.CodeContext = CodeContext(code, a.LineNumber)
	}
	a.SuggestedFix = Suggest(a.ErrorType, a.ErrorMessage)
	return a
}

// errorCategory returns the first "<Name>Error: msg", falling back to
// the first "<Name>Exception: msg".
func errorCategory(output string) (string, string, bool) {
	for _, re := range []*regexp.Regexp{errorPattern, exceptionPattern} {
		if m := re.FindStringSubmatch(output); m != nil {
			return m[1], strings.TrimSpace(m[2]), true
		}
	}
	return "", "", false
}

// LineNumber finds the failing line of the executed script.
//
// The last traceback frame naming codeFile wins, since frames are listed
// outermost first. With codeFile empty any generated tmp_code_ file
// matches. Without such a frame the first "line N" in the output is used.
// Returns 0 when nothing matches.
func LineNumber(output, codeFile string) int {
	base := filepath.Base(codeFile)
	line := 0
	for _, m := range framePattern.FindAllStringSubmatch(output, -1) {
		name := filepath.Base(m[1])
		matches := (codeFile != "" && name == base) ||
			(codeFile == "" && strings.HasPrefix(name, executor.TempFilePrefix))
		if !matches {
			continue
		}
		if n, err := strconv.Atoi(m[2]); err == nil {
			line = n
		}
	}
	if line > 0 {
		return line
	}

	if m := linePattern.FindStringSubmatch(output); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}

// CodeContext returns numbered source lines around the 1-based line.
// Lines outside the source are skipped; an out-of-range line yields nil.
func CodeContext(code string, line int) []string {
	lines := strings.Split(code, "\n")
	if line < 1 || line > len(lines) {
		return nil
	}

	start := max(1, line-contextBefore)
	end := min(len(lines), line+contextAfter)

	out := make([]string, 0, end-start+1)
	for n := start; n <= end; n++ {
		marker := "  "
		if n == line {
			marker = ">>"
		}
		out = append(out, fmt.Sprintf("%s %4d | %s", marker, n, lines[n-1]))
	}
	return out
}

// Suggest returns the fix hint for an error category. Messages mentioning
// a column or key get an extra tip about listing columns.
func Suggest(errorType, message string) string {
	base, ok := suggestions[errorType]
	if !ok {
		base = DefaultSuggestion
	}
	lower := strings.ToLower(message)
	if strings.Contains(lower, "column") || strings.Contains(lower, "key") {
		return base + "\n\n" + columnTip
	}
	return base
}

// ExtractErrorExcerpt returns the most relevant part of failed output.
func ExtractErrorExcerpt(output string) string {
	return executor.ErrorExcerpt(output)
}

// TailOutput returns at most n trailing bytes of output, starting at a
// rune boundary.
func TailOutput(output string, n int) string {
	if n <= 0 || len(output) <= n {
		return output
	}
	tail := output[len(output)-n:]
	for i := 0; i < len(tail) && i < 4; i++ {
		if tail[i]&0xC0 != 0x80 {
			return tail[i:]
		}
	}
	return tail
}
