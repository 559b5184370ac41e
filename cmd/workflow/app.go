// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AjayMudhai07/workflow-builder-agent/pkg/logging"
	"github.com/AjayMudhai07/workflow-builder-agent/pkg/ux"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/coder"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/config"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/dataset"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/executor"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/llm"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/orchestrator"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/planner"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/store"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/telemetry"
)

// deps holds the constructors the CLI replaces in tests.
type deps struct {
	newClient func(cfg config.LLMConfig, logger *slog.Logger) (llm.Client, error)
}

func defaultDeps() deps {
	return deps{newClient: llm.NewFromConfig}
}

// rootOptions are the persistent flags.
type rootOptions struct {
	configPath string
	logLevel   string
	jsonOutput bool
	uxLevel    string
}

// app is the per-command runtime built from the configuration.
type app struct {
	cfg    config.Config
	deps   deps
	log    *logging.Logger
	logger *slog.Logger
	out    *ux.Printer
	json   bool

	store             store.Store
	shutdownTelemetry func(context.Context) error
}

func openApp(cmd *cobra.Command, opts *rootOptions, d deps) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	log := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Paths.LogsDir,
		Service: "workflow",
		JSON:    cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(log.Slog())

	shutdown, err := telemetry.Init(cmd.Context(), telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		_ = log.Close()
		return nil, err
	}

	// JSON documents own stdout; progress and prompts move to stderr.
	display := cmd.OutOrStdout()
	if opts.jsonOutput {
		display = cmd.ErrOrStderr()
	}
	uxLevel := ux.DetectLevel(display)
	if opts.uxLevel != "" {
		uxLevel = ux.ParseLevel(opts.uxLevel)
	}
	if opts.jsonOutput {
		uxLevel = ux.LevelMachine
	}

	return &app{
		cfg:               cfg,
		deps:              d,
		log:               log,
		logger:            log.Slog(),
		out:               ux.NewPrinter(display, uxLevel),
		json:              opts.jsonOutput,
		shutdownTelemetry: shutdown,
	}, nil
}

// Close releases the store, flushes telemetry and closes the log file.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.shutdownTelemetry != nil {
		errs = append(errs, a.shutdownTelemetry(context.Background()))
	}
	errs = append(errs, a.log.Close())
	return errors.Join(errs...)
}

// Store opens the configured store on first use.
func (a *app) Store() (store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := store.Open(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.store = st
	return st, nil
}

// Client builds the configured chat model client.
func (a *app) Client() (llm.Client, error) {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	return a.deps.newClient(a.cfg.LLM, a.logger)
}

// Executor builds an executor running in workDir.
func (a *app) Executor(workDir string) (*executor.Executor, error) {
	ec := a.cfg.Executor
	return executor.New(executor.NewConfig(
		executor.WithWorkDir(workDir),
		executor.WithTimeout(ec.Timeout),
		executor.WithMaxOutputBytes(ec.MaxOutputBytes),
		executor.WithPythonPath(ec.PythonPath),
		executor.WithVenvDir(ec.VenvDir),
		executor.WithCleanup(ec.CleanupTempFiles),
	), a.logger)
}

// CoderSession builds a coder session backed by its own conversation.
func (a *app) CoderSession(client llm.Client, workDir string) (*coder.Session, error) {
	ex, err := a.Executor(workDir)
	if err != nil {
		return nil, err
	}
	conv := llm.NewConversation(client, coder.Instructions, a.params())
	return coder.New(coderConfig(a.cfg.Coder), coder.Deps{Generator: conv, Executor: ex}, a.logger)
}

// coderConfig maps the coder section of the configuration to options.
func coderConfig(cc config.CoderConfig) *coder.Config {
	return coder.NewConfig(
		coder.WithMaxIterations(cc.MaxIterations),
		coder.WithLanguage(cc.Language),
		coder.WithPreviewRows(cc.PreviewRows),
		coder.WithOutputTail(cc.OutputTail),
		coder.WithRecentFailures(cc.RecentFailures),
	)
}

// Planner builds the requirements planner.
func (a *app) Planner(client llm.Client) planner.Planner {
	return planner.NewLLMPlanner(client, dataset.CSVDescriber{}, planner.Config{
		MaxQuestions: a.cfg.Planner.MaxQuestions,
		Params:       a.params(),
	}, a.logger)
}

// CoderFactory adapts CoderSession to the orchestrator.
func (a *app) CoderFactory(client llm.Client) orchestrator.CoderFactory {
	return func(workDir string) (orchestrator.CodeSession, error) {
		return a.CoderSession(client, workDir)
	}
}

func (a *app) params() llm.Params {
	t := a.cfg.LLM.Temperature
	return llm.Params{Temperature: &t}
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
