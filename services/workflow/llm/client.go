// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides chat model clients and conversation threads.
//
// Two backends are available: OpenAIClient (OpenAI compatible APIs) and
// OllamaClient (local models through langchaingo). Both are rate limited.
// A Conversation keeps the message history of one thread so follow-up
// prompts see earlier turns.
package llm

import (
	"context"
	"errors"
)

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Params tunes one completion. Nil fields use the client defaults.
type Params struct {
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Client is a chat completion backend.
type Client interface {
	// Chat returns the assistant reply to messages.
	Chat(ctx context.Context, messages []Message, params Params) (string, error)
}

var (
	// ErrNoMessages indicates Chat was called without messages.
	ErrNoMessages = errors.New("no messages to send")

	// ErrEmptyResponse indicates the backend returned no choices.
	ErrEmptyResponse = errors.New("model returned no choices")

	// ErrMissingAPIKey indicates the provider needs an API key.
	ErrMissingAPIKey = errors.New("API key is required")

	// ErrUnknownProvider indicates an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown LLM provider")
)
