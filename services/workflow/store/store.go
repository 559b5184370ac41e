// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists workflow state documents and artifacts.
//
// State is keyed by the sanitized workflow name. FileStore keeps one JSON
// file per workflow; BadgerStore keeps them in an embedded BadgerDB.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/config"
)

// maxNameLength caps sanitized names, in characters.
const maxNameLength = 200

// defaultName replaces names that sanitize to nothing.
const defaultName = "workflow"

var (
	// ErrNotFound indicates no state exists for the name.
	ErrNotFound = errors.New("workflow state not found")

	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownBackend indicates an unsupported store backend.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// Store persists one state document per workflow.
//
// Names are sanitized by the store; callers pass display names.
type Store interface {
	// Save replaces the document for name.
	Save(ctx context.Context, name string, data []byte) error

	// Load returns the document for name or ErrNotFound.
	Load(ctx context.Context, name string) ([]byte, error)

	// List returns the sanitized names of stored documents, sorted.
	List(ctx context.Context) ([]string, error)

	// Delete removes the document for name. Missing documents are not
	// an error.
	Delete(ctx context.Context, name string) error

	// Close releases resources.
	Close() error
}

var (
	invalidNameChars = regexp.MustCompile(`[/\\:*?"<>|]`)
	underscoreRuns   = regexp.MustCompile(`_+`)
)

// SanitizeName makes a workflow name safe for use as a file name.
//
// Path separators and the characters :*?"<>| become underscores, runs of
// underscores collapse, leading and trailing underscores are trimmed and
// the result is capped at 200 characters. Names that end up empty or
// made only of dots become "workflow".
func SanitizeName(name string) string {
	s := invalidNameChars.ReplaceAllString(name, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if utf8.RuneCountInString(s) > maxNameLength {
		s = string([]rune(s)[:maxNameLength])
	}
	if strings.Trim(s, ".") == "" {
		return defaultName
	}
	return s
}

// Open returns the Store selected by cfg.Store.Backend.
func Open(cfg config.Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Store.Backend {
	case "", "file":
		return NewFileStore(cfg.Paths.StateDir, logger)
	case "badger":
		dir := cfg.Store.BadgerDir
		if dir == "" {
			dir = filepath.Join(cfg.Paths.StorageDir, "badger")
		}
		bcfg := DefaultBadgerConfig()
		bcfg.Path = dir
		bcfg.Logger = logger
		return OpenBadgerStore(bcfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Store.Backend)
	}
}
