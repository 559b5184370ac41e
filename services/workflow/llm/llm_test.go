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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/config"
)

// scriptedClient returns canned replies and records what it was sent.
type scriptedClient struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   [][]Message
}

func (s *scriptedClient) Chat(_ context.Context, messages []Message, _ Params) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]Message(nil), messages...))
	i := len(s.calls) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", ErrEmptyResponse
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_Generate(t *testing.T) {
	client := &scriptedClient{replies: []string{"first", "second"}}
	conv := NewConversation(client, "be terse", Params{})

	reply, err := conv.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "first", reply)

	reply, err = conv.Generate(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, "second", reply)

	require.Len(t, client.calls, 2)
	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "first"},
		{Role: RoleUser, Content: "again"},
	}, client.calls[1])
	assert.Equal(t, 2, conv.Turns())
}

func TestConversation_FailedCallKeepsHistory(t *testing.T) {
	client := &scriptedClient{
		replies: []string{"ok", "", "later"},
		errs:    []error{nil, errors.New("transport down"), nil},
	}
	conv := NewConversation(client, "", Params{})

	_, err := conv.Generate(context.Background(), "one")
	require.NoError(t, err)

	_, err = conv.Generate(context.Background(), "two")
	require.Error(t, err)
	assert.Len(t, conv.History(), 2)

	_, err = conv.Generate(context.Background(), "three")
	require.NoError(t, err)
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "one"},
		{Role: RoleAssistant, Content: "ok"},
		{Role: RoleUser, Content: "three"},
	}, client.calls[2])
}

func TestConversation_Reset(t *testing.T) {
	client := &scriptedClient{replies: []string{"a", "b"}}
	conv := NewConversation(client, "sys", Params{})

	_, err := conv.Generate(context.Background(), "x")
	require.NoError(t, err)
	conv.Reset()
	assert.Empty(t, conv.History())

	_, err = conv.Generate(context.Background(), "y")
	require.NoError(t, err)
	assert.Len(t, client.calls[1], 2)
}

// =============================================================================
// OPENAI CLIENT TESTS
// =============================================================================

func TestOpenAIClient_Chat(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "print('hi')"}}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
		}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{
		APIKey:  "test-key",
		Model:   "gpt-4o",
		BaseURL: srv.URL + "/v1",
		Timeout: 5 * time.Second,
	}, nil)
	require.NoError(t, err)

	reply, err := client.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "write code"},
	}, Params{})
	require.NoError(t, err)

	assert.Equal(t, "print('hi')", reply)
	assert.Equal(t, "gpt-4o", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "choices": []}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1"}, nil)
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, Params{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIClient_Errors(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "k"}, nil)
	require.NoError(t, err)
	_, err = client.Chat(context.Background(), nil, Params{})
	assert.ErrorIs(t, err, ErrNoMessages)
}

// =============================================================================
// FACTORY AND LIMITER TESTS
// =============================================================================

func TestNewFromConfig(t *testing.T) {
	t.Run("openai", func(t *testing.T) {
		c, err := NewFromConfig(config.LLMConfig{Provider: "openai", Model: "gpt-4o", APIKey: "k"}, nil)
		require.NoError(t, err)
		assert.IsType(t, &OpenAIClient{}, c)
	})

	t.Run("openai without key", func(t *testing.T) {
		_, err := NewFromConfig(config.LLMConfig{Provider: "openai", Model: "gpt-4o"}, nil)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("ollama", func(t *testing.T) {
		c, err := NewFromConfig(config.LLMConfig{Provider: "ollama", Model: "llama3"}, nil)
		require.NoError(t, err)
		assert.IsType(t, &OllamaClient{}, c)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewFromConfig(config.LLMConfig{Provider: "parrot"}, nil)
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})
}

func TestNewLimiter(t *testing.T) {
	unlimited := newLimiter(0)
	for i := 0; i < 100; i++ {
		assert.True(t, unlimited.Allow())
	}

	limited := newLimiter(6)
	assert.True(t, limited.Allow())
	assert.False(t, limited.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, limited.Wait(ctx))
}
