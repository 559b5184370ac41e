// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"sync"
)

// Conversation is one chat thread: a system prompt plus the turns
// exchanged so far. Generate sends the whole history with each prompt.
//
// Thread Safety: Safe for concurrent use. Calls are serialized so turns
// never interleave.
type Conversation struct {
	client Client
	system string
	params Params

	mu      sync.Mutex
	history []Message
}

// NewConversation starts a thread on client with the given system prompt.
func NewConversation(client Client, system string, params Params) *Conversation {
	return &Conversation{client: client, system: system, params: params}
}

// Generate sends prompt as the next user turn and returns the reply.
// A failed call leaves the history unchanged.
func (c *Conversation) Generate(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]Message, 0, len(c.history)+2)
	if c.system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: c.system})
	}
	msgs = append(msgs, c.history...)
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt})

	reply, err := c.client.Chat(ctx, msgs, c.params)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	c.history = append(c.history,
		Message{Role: RoleUser, Content: prompt},
		Message{Role: RoleAssistant, Content: reply},
	)
	return reply, nil
}

// History returns a copy of the exchanged turns, without the system
// prompt.
func (c *Conversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.history...)
}

// Turns returns the number of completed exchanges.
func (c *Conversation) Turns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history) / 2
}

// Reset drops the history and keeps the system prompt.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}
