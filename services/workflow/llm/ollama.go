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
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	Model       string
	BaseURL     string
	Temperature float32

	// RequestsPerMinute caps calls. Zero disables limiting.
	RequestsPerMinute int

	// Timeout bounds one HTTP call. Zero means no client timeout.
	Timeout time.Duration
}

// OllamaClient talks to a local Ollama server.
//
// Thread Safety: Safe for concurrent use.
type OllamaClient struct {
	llm         *ollama.LLM
	model       string
	temperature float32
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewOllamaClient creates a client for cfg.Model.
func NewOllamaClient(cfg OllamaConfig, logger *slog.Logger) (*OllamaClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama: model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(strings.TrimSuffix(cfg.BaseURL, "/")),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, ollama.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	model, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	logger.Info("Initializing Ollama client",
		slog.String("base_url", cfg.BaseURL),
		slog.String("model", cfg.Model),
	)
	return &OllamaClient{
		llm:         model,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		limiter:     newLimiter(cfg.RequestsPerMinute),
		logger:      logger,
	}, nil
}

// Chat implements Client.
func (o *OllamaClient) Chat(ctx context.Context, messages []Message, params Params) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}

	ctx, span := startChatSpan(ctx, "ollama", o.model, len(messages))
	defer span.End()

	if err := o.limiter.Wait(ctx); err != nil {
		return "", finishChat(ctx, span, "ollama", fmt.Errorf("rate limiter: %w", err))
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(langchainRole(m.Role), m.Content))
	}

	temperature := o.temperature
	if params.Temperature != nil {
		temperature = *params.Temperature
	}
	opts := []llms.CallOption{llms.WithTemperature(float64(temperature))}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	}
	if len(params.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(params.Stop))
	}

	o.logger.Debug("Generating text via Ollama",
		slog.String("model", o.model),
		slog.Int("messages", len(messages)),
	)

	resp, err := o.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		o.logger.Error("Ollama call failed", slog.String("error", err.Error()))
		return "", finishChat(ctx, span, "ollama", fmt.Errorf("ollama call failed: %w", err))
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", finishChat(ctx, span, "ollama", ErrEmptyResponse)
	}

	_ = finishChat(ctx, span, "ollama", nil)
	return resp.Choices[0].Content, nil
}

func langchainRole(r Role) llms.ChatMessageType {
	switch r {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
