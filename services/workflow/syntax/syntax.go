// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package syntax checks generated code for syntax errors with tree-sitter
// without executing it.
//
// Thread Safety: All functions are safe for concurrent use. Each call
// creates its own parser.
package syntax

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/python"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/executor"
)

// maxErrors caps collected errors on heavily malformed input.
const maxErrors = 50

// maxDepth stops recursion on pathologically nested trees.
const maxDepth = 1000

var (
	// ErrUnsupportedLanguage indicates no grammar is available.
	ErrUnsupportedLanguage = errors.New("unsupported language for syntax validation")

	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")
)

var tracer = otel.Tracer("workflow.syntax")

// Error is one syntax problem.
type Error struct {
	// Line is 1-based.
	Line int `json:"line"`

	// Column is 1-based.
	Column int `json:"column"`

	// Message describes the problem, e.g. "Missing )".
	Message string `json:"message"`

	// Text is the offending source line.
	Text string `json:"text"`
}

// Result is the outcome of a syntax check. When Valid is false the
// top-level fields describe the first error.
type Result struct {
	Valid    bool    `json:"valid"`
	Language string  `json:"language"`
	Error    string  `json:"error,omitempty"`
	Line     int     `json:"line,omitempty"`
	Column   int     `json:"column,omitempty"`
	Text     string  `json:"text,omitempty"`
	Errors   []Error `json:"errors,omitempty"`
}

// Validator checks code syntax.
type Validator struct {
	languages *executor.LanguageRegistry
}

// NewValidator creates a Validator that normalizes language tags the same
// way the executor does.
func NewValidator() *Validator {
	return &Validator{languages: executor.DefaultLanguages}
}

// Validate parses code and reports syntax errors.
//
// Description:
//
//	Empty or whitespace-only code is invalid. Python tags use the Python
//	grammar; bash, sh and zsh use the Bash grammar.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	language - Language tag, e.g. "python" or "sh".
//	code - Source to check.
//
// Outputs:
//
//	*Result - Validation result. Non-nil when err is nil.
//	error - ErrUnsupportedLanguage, ErrNilContext, or a parser failure.
func (v *Validator) Validate(ctx context.Context, language, code string) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	lang, ok := v.languages.Resolve(language)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	grammar := grammarFor(lang.Name)
	if grammar == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang.Name)
	}

	ctx, span := tracer.Start(ctx, "syntax.Validate",
		trace.WithAttributes(
			attribute.String("syntax.language", lang.Name),
			attribute.Int("syntax.code_size", len(code)),
		),
	)
	defer span.End()

	if strings.TrimSpace(code) == "" {
		return &Result{Language: lang.Name, Error: "empty code"}, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	content := []byte(code)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, fmt.Errorf("parsing failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	lines := strings.Split(code, "\n")
	var found []Error
	collectErrors(root, content, lines, &found, 0)

	if len(found) == 0 && root.HasError() {
		found = append(found, Error{Line: 1, Column: 1, Message: "Syntax error", Text: lines[0]})
	}

	result := &Result{Valid: len(found) == 0, Language: lang.Name, Errors: found}
	if !result.Valid {
		first := found[0]
		result.Error = first.Message
		result.Line = first.Line
		result.Column = first.Column
		result.Text = first.Text
	}
	span.SetAttributes(
		attribute.Bool("syntax.valid", result.Valid),
		attribute.Int("syntax.errors", len(found)),
	)
	return result, nil
}

// Validate checks code with a default Validator.
func Validate(ctx context.Context, language, code string) (*Result, error) {
	return NewValidator().Validate(ctx, language, code)
}

// grammarFor maps a canonical language name to its grammar.
func grammarFor(name string) *sitter.Language {
	switch name {
	case "python":
		return python.GetLanguage()
	case "bash", "sh", "zsh":
		return bash.GetLanguage()
	default:
		return nil
	}
}

// collectErrors walks the tree collecting ERROR and MISSING nodes.
func collectErrors(node *sitter.Node, content []byte, lines []string, found *[]Error, depth int) {
	if node == nil || depth > maxDepth || len(*found) >= maxErrors {
		return
	}

	if node.IsError() || node.IsMissing() {
		point := node.StartPoint()
		row := int(point.Row)

		text := ""
		if row < len(lines) {
			text = strings.TrimRight(lines[row], "\r")
		}

		*found = append(*found, Error{
			Line:    row + 1,
			Column:  int(point.Column) + 1,
			Message: describe(node, content),
			Text:    text,
		})
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectErrors(node.Child(i), content, lines, found, depth+1)
	}
}

// describe builds a short message for an error node.
func describe(node *sitter.Node, content []byte) string {
	if node.IsMissing() {
		return fmt.Sprintf("Missing %s", node.Type())
	}

	start, end := node.StartByte(), node.EndByte()
	if end > uint32(len(content)) {
		end = uint32(len(content))
	}
	if end <= start {
		return "Syntax error"
	}
	snippet := strings.TrimSpace(string(content[start:end]))
	if i := strings.IndexByte(snippet, '\n'); i >= 0 {
		snippet = snippet[:i]
	}
	if len(snippet) > 50 {
		snippet = snippet[:50] + "..."
	}
	if snippet == "" {
		return "Syntax error"
	}
	return fmt.Sprintf("Unexpected: %s", snippet)
}

// Format renders a result as a short report, one error per line.
func (r *Result) Format() string {
	if r.Valid {
		return fmt.Sprintf("Syntax is valid for %s", r.Language)
	}
	if len(r.Errors) == 0 {
		return r.Error
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d syntax error(s):\n", len(r.Errors))
	for i, e := range r.Errors {
		if i >= 10 {
			fmt.Fprintf(&sb, "... and %d more errors\n", len(r.Errors)-10)
			break
		}
		fmt.Fprintf(&sb, "  Line %d, Col %d: %s\n", e.Line, e.Column, e.Message)
	}
	return sb.String()
}
