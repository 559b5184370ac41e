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
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/analyzer"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/dataset"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/executor"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/syntax"
)

// Instructions is the system prompt for the code generation conversation.
const Instructions = `You are a senior Python developer who writes pandas data processing scripts.

Your code is executed automatically, without review, so it must be complete, correct and
runnable as a single file.

## File paths
Never write file paths yourself. Use these placeholders as Python string literals:
- "` + tokenPrefix + `INPUT_0}}", "` + tokenPrefix + `INPUT_1}}", ... for the input CSV files, in the order listed
- "` + tokenPrefix + `OUTPUT_PATH}}" for the output CSV file
They are replaced with absolute paths before the code runs.

## Structure
1. Imports and one path variable per input file actually used by the plan, named after the
   file (sales.csv -> sales_path = "` + tokenPrefix + `INPUT_0}}").
2. Load each file with pd.read_csv, verify the columns the plan needs and raise a
   ValueError listing any that are missing. Normalize dates, strings and numbers.
3. Apply the business logic step by step, printing a short progress line after each step.
4. Create the output directory if needed and write the result with
   result_df.to_csv(output_path, index=False).

## Rules
- Use exact column names from the input file information.
- Handle missing values explicitly.
- Do not read from stdin and do not open network connections.
- Reply with ONE fenced python code block containing the complete script.`

// initialInstruction asks for the first version of the code.
const initialInstruction = "Generate the complete Python script that implements the business logic plan above."

// GenerationContext is everything a generation prompt is built from.
type GenerationContext struct {
	Plan          string
	Files         []*dataset.FileInfo
	InputFiles    []string
	Attempts      []CodeAttempt
	Iteration     int
	MaxIterations int

	// RecentFailures is how many failed attempts are summarized.
	RecentFailures int
}

// BuildContext renders the generation context prepended to every prompt.
//
// Description:
//
//	Sections, in order: the plan, input file information with the
//	placeholder for each file, the output placeholder, a summary of the
//	most recent failed attempts and, from the second to last iteration
//	on, a last attempt warning. Files may be nil, in which case only the
//	input file names are listed.
func BuildContext(gc GenerationContext) string {
	var sb strings.Builder

	sb.WriteString("## BUSINESS LOGIC PLAN\n\n")
	sb.WriteString(strings.TrimSpace(gc.Plan))
	sb.WriteString("\n\n## INPUT FILE INFORMATION\n\n")
	for i, path := range gc.InputFiles {
		fmt.Fprintf(&sb, "File %d: %s\n", i+1, InputToken(i))
		var info *dataset.FileInfo
		if i < len(gc.Files) {
			info = gc.Files[i]
		}
		if info == nil {
			fmt.Fprintf(&sb, "  Name: %s\n", baseName(path))
			continue
		}
		fmt.Fprintf(&sb, "  Name: %s\n", info.Filename)
		fmt.Fprintf(&sb, "  Rows: %s\n", humanize.Comma(int64(info.RowCount)))
		fmt.Fprintf(&sb, "  Columns: %s\n", strings.Join(info.Columns, ", "))
		fmt.Fprintf(&sb, "  Dtypes: %s\n", formatDtypes(info))
	}

	sb.WriteString("\n## OUTPUT CONFIGURATION\n\n")
	fmt.Fprintf(&sb, "Output path: %s\n", OutputToken)
	sb.WriteString("The output must be a CSV file with a header row and at least one data row.\n")

	if failures := recentFailures(gc.Attempts, gc.RecentFailures); len(failures) > 0 {
		sb.WriteString("\n## PREVIOUS FAILURES\n\n")
		for _, a := range failures {
			fmt.Fprintf(&sb, "- Attempt %d (%s): %s\n", a.Iteration, a.Result.Status, firstLine(a.Result.ErrorMessage))
		}
	}

	if gc.MaxIterations > 0 {
		fmt.Fprintf(&sb, "\n## ITERATION %d of %d\n", gc.Iteration, gc.MaxIterations)
		if gc.Iteration >= gc.MaxIterations-1 {
			sb.WriteString("\nWARNING: This is your last attempt. Review every previous error and make sure the code is correct.\n")
		}
	}
	return sb.String()
}

// recentFailures returns up to n of the latest non-successful attempts,
// oldest first.
func recentFailures(attempts []CodeAttempt, n int) []CodeAttempt {
	var out []CodeAttempt
	for i := len(attempts) - 1; i >= 0 && len(out) < n; i-- {
		if attempts[i].Result != nil && !attempts[i].Result.Succeeded() {
			out = append([]CodeAttempt{attempts[i]}, out...)
		}
	}
	return out
}

func formatDtypes(info *dataset.FileInfo) string {
	parts := make([]string, 0, len(info.Columns))
	for _, col := range info.Columns {
		parts = append(parts, col+"="+info.Dtypes[col])
	}
	if len(parts) == 0 {
		keys := make([]string, 0, len(info.Dtypes))
		for k := range info.Dtypes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+"="+info.Dtypes[k])
		}
	}
	return strings.Join(parts, ", ")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if s == "" {
		return "no error message"
	}
	return s
}

// =============================================================================
// CORRECTIVE INSTRUCTIONS
// =============================================================================

func syntaxFixPrompt(res *syntax.Result) string {
	var sb strings.Builder
	sb.WriteString("SYNTAX ERROR DETECTED\n\n")
	sb.WriteString("Your code has a syntax error and cannot be executed.\n\n")
	fmt.Fprintf(&sb, "Error: %s\n", res.Error)
	if res.Line > 0 {
		fmt.Fprintf(&sb, "Line: %d\n", res.Line)
	}
	if res.Column > 0 {
		fmt.Fprintf(&sb, "Column: %d\n", res.Column)
	}
	if res.Text != "" {
		fmt.Fprintf(&sb, "Text: %s\n", res.Text)
	}
	sb.WriteString("\nPlease fix the syntax error and provide the COMPLETE corrected code.")
	return sb.String()
}

func materializeFixPrompt(err error) string {
	return fmt.Sprintf(`PATH PLACEHOLDER ERROR

Your code could not be prepared for execution: %v

Use only the placeholders listed in the input file information and output configuration,
written as string literals. Provide the COMPLETE corrected code.`, err)
}

func executionFixPrompt(result *executor.ExecutionResult, a analyzer.Analysis, tail int) string {
	var sb strings.Builder
	sb.WriteString("EXECUTION ERROR\n\n")
	sb.WriteString("Your code failed during execution.\n\n")
	fmt.Fprintf(&sb, "Status: %s\n", result.Status)
	fmt.Fprintf(&sb, "Exit Code: %d\n", result.ExitCode)
	fmt.Fprintf(&sb, "Error Type: %s\n", a.ErrorType)
	fmt.Fprintf(&sb, "Error Message: %s\n", a.ErrorMessage)
	if a.LineNumber > 0 {
		fmt.Fprintf(&sb, "Line Number: %d\n", a.LineNumber)
	}
	if len(a.CodeContext) > 0 {
		sb.WriteString("\nCode Context:\n")
		sb.WriteString(strings.Join(a.CodeContext, "\n"))
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nSuggested Fix: %s\n", a.SuggestedFix)
	if result.Status == executor.StatusTimeout {
		sb.WriteString("\nThe script ran longer than the allowed time. Avoid row-by-row loops and apply, ")
		sb.WriteString("use vectorized pandas operations and read only the columns you need.\n")
	}
	fmt.Fprintf(&sb, "\nError Output:\n%s\n", analyzer.TailOutput(result.Output, tail))
	sb.WriteString("\nPlease fix the error and provide the COMPLETE corrected code.\n")
	sb.WriteString("Do NOT just provide a snippet. Provide the full working code.")
	return sb.String()
}

func outputFixPrompt(problem string) string {
	return fmt.Sprintf(`OUTPUT VALIDATION FAILED

Your code executed without errors, but the output file has issues.

Problem: %s
Expected output path: %s

Please fix the issue and provide the COMPLETE corrected code.
Make sure the code saves the output CSV to the exact path placeholder.`, problem, OutputToken)
}

func refinePrompt(feedback, previous string) string {
	return fmt.Sprintf(`OUTPUT REFINEMENT REQUEST

The previous code ran successfully and the user reviewed its output. Update the code to
address this feedback while keeping everything else the same:

%s

Previous code:
`+"```python\n%s\n```"+`

Provide the COMPLETE updated code.`, strings.TrimSpace(feedback), previous)
}

// =============================================================================
// CODE EXTRACTION
// =============================================================================

var (
	pythonFence = regexp.MustCompile("(?s)```(?:python|py|python3)[ \\t]*\\r?\\n(.*?)```")
	anyFence    = regexp.MustCompile("(?s)```[\\w+-]*[ \\t]*\\r?\\n(.*?)```")
)

// ExtractCode returns the code in a model reply: the first python fenced
// block, else the first fenced block of any kind, else the whole reply.
func ExtractCode(reply string) string {
	if m := pythonFence.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := anyFence.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(reply)
}
