// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package planner runs the requirements interview that produces a
// business logic plan.
//
// The Planner interface is the boundary used by the orchestrator. Classify
// decides whether a reply is a question, an acknowledgment or a complete
// plan, independently of any model.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/dataset"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/llm"
)

// DefaultMaxQuestions is used when Config.MaxQuestions is not positive.
const DefaultMaxQuestions = 10

var (
	// ErrNotInitialized indicates a call before Initialize.
	ErrNotInitialized = errors.New("planner not initialized")

	// ErrEmptyInput indicates a blank user answer or feedback.
	ErrEmptyInput = errors.New("input must not be empty")
)

// Planner conducts the planning conversation.
type Planner interface {
	// Initialize starts a new conversation and returns the first reply.
	Initialize(ctx context.Context, name, description string, inputs []string) (string, error)

	// Advance sends a user answer and returns the next reply.
	Advance(ctx context.Context, answer string) (string, error)

	// Finalize asks for the complete plan. With force the plan is
	// requested even if the interview is short.
	Finalize(ctx context.Context, force bool) (string, error)

	// Revise returns an updated plan addressing feedback.
	Revise(ctx context.Context, feedback string) (string, error)
}

// Config tunes an LLMPlanner.
type Config struct {
	MaxQuestions int
	Params       llm.Params
}

// LLMPlanner is a Planner backed by a chat model.
//
// Thread Safety: Safe for concurrent use; calls are serialized.
type LLMPlanner struct {
	client    llm.Client
	describer dataset.Describer
	config    Config
	logger    *slog.Logger

	mu        sync.Mutex
	conv      *llm.Conversation
	questions int
}

// NewLLMPlanner creates a planner. A nil describer disables input file
// descriptions in the context.
func NewLLMPlanner(client llm.Client, describer dataset.Describer, cfg Config, logger *slog.Logger) *LLMPlanner {
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = DefaultMaxQuestions
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMPlanner{client: client, describer: describer, config: cfg, logger: logger}
}

// Initialize implements Planner.
//
// Input files are described before the first model call; a description
// failure is logged and the interview continues without it.
func (p *LLMPlanner) Initialize(ctx context.Context, name, description string, inputs []string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	summary := ""
	if p.describer != nil && len(inputs) > 0 {
		infos, err := dataset.DescribeAll(ctx, p.describer, inputs)
		if err != nil {
			p.logger.Warn("Could not describe input files",
				slog.String("workflow", name),
				slog.String("error", err.Error()),
			)
		} else {
			summary = dataset.FormatFiles(infos)
		}
	}

	system := systemPrompt(BuildContext(name, description, inputs, summary))
	p.conv = llm.NewConversation(p.client, system, p.config.Params)
	p.questions = 0

	reply, err := p.conv.Generate(ctx, initialPrompt(name, description, inputs, p.config.MaxQuestions))
	if err != nil {
		return "", fmt.Errorf("initialize workflow: %w", err)
	}
	p.logger.Info("Planner initialized", slog.String("workflow", name))
	return reply, nil
}

// Advance implements Planner. Once the question budget is spent the
// answer is recorded and the plan is requested instead.
func (p *LLMPlanner) Advance(ctx context.Context, answer string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conv == nil {
		return "", ErrNotInitialized
	}
	if isBlank(answer) {
		return "", ErrEmptyInput
	}

	p.questions++
	if p.questions >= p.config.MaxQuestions {
		p.logger.Info("Question budget reached, requesting plan",
			slog.Int("questions", p.questions),
			slog.Int("max_questions", p.config.MaxQuestions),
		)
		reply, err := p.conv.Generate(ctx, answer+"\n\n"+planInstructions)
		if err != nil {
			return "", fmt.Errorf("generate plan: %w", err)
		}
		return reply, nil
	}

	reply, err := p.conv.Generate(ctx, answer)
	if err != nil {
		return "", fmt.Errorf("process answer: %w", err)
	}
	p.logger.Debug("Planner answered",
		slog.Int("questions", p.questions),
		slog.String("type", string(Classify(reply))),
	)
	return reply, nil
}

// Finalize implements Planner.
func (p *LLMPlanner) Finalize(ctx context.Context, force bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conv == nil {
		return "", ErrNotInitialized
	}
	if !force && p.questions < 3 {
		p.logger.Warn("Generating plan after few questions", slog.Int("questions", p.questions))
	}

	reply, err := p.conv.Generate(ctx, planInstructions)
	if err != nil {
		return "", fmt.Errorf("generate plan: %w", err)
	}
	return reply, nil
}

// Revise implements Planner.
func (p *LLMPlanner) Revise(ctx context.Context, feedback string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conv == nil {
		return "", ErrNotInitialized
	}
	if isBlank(feedback) {
		return "", ErrEmptyInput
	}

	reply, err := p.conv.Generate(ctx, revisePrompt(feedback))
	if err != nil {
		return "", fmt.Errorf("refine plan: %w", err)
	}
	return reply, nil
}

// QuestionsAsked returns the number of answers processed.
func (p *LLMPlanner) QuestionsAsked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.questions
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
