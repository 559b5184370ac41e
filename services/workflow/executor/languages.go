// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"sort"
	"strings"
	"sync"
)

// =============================================================================
// LANGUAGE CONFIGURATION
// =============================================================================

// Language describes how to run one canonical language.
type Language struct {
	// Name is the canonical name (e.g., "python", "sh").
	Name string

	// Interpreter is the program that runs the file. Empty for python,
	// which is resolved from the executor config.
	Interpreter string

	// Extension is the file extension without dot.
	Extension string

	// Aliases are alternative tags that normalize to Name.
	Aliases []string
}

// IsPython reports whether the language runs on the python interpreter.
func (l *Language) IsPython() bool {
	return l.Name == "python"
}

// =============================================================================
// LANGUAGE REGISTRY
// =============================================================================

// LanguageRegistry resolves language tags to Language entries.
//
// Thread Safety: Safe for concurrent use. Register should only be called
// during setup.
type LanguageRegistry struct {
	mu      sync.RWMutex
	byAlias map[string]*Language
	names   map[string]*Language
}

// DefaultLanguages is the registry used by executors unless replaced.
var DefaultLanguages = NewLanguageRegistry()

// NewLanguageRegistry creates a registry with python and shell languages.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		byAlias: make(map[string]*Language),
		names:   make(map[string]*Language),
	}
	r.registerDefaults()
	return r
}

func (r *LanguageRegistry) registerDefaults() {
	r.Register(&Language{
		Name:      "python",
		Extension: "py",
		Aliases:   []string{"py", "python3", "py3", "pycon", "python2"},
	})
	r.Register(&Language{
		Name:        "bash",
		Interpreter: "bash",
		Extension:   "bash",
	})
	r.Register(&Language{
		Name:        "sh",
		Interpreter: "sh",
		Extension:   "sh",
		Aliases:     []string{"shell", "console", "shellscript"},
	})
	r.Register(&Language{
		Name:        "zsh",
		Interpreter: "zsh",
		Extension:   "zsh",
	})
}

// Register adds or replaces a language and its aliases.
func (r *LanguageRegistry) Register(lang *Language) {
	if lang == nil || lang.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[lang.Name] = lang
	r.byAlias[lang.Name] = lang
	for _, alias := range lang.Aliases {
		r.byAlias[strings.ToLower(alias)] = lang
	}
}

// Resolve normalizes a tag (case-insensitive) and returns its Language.
func (r *LanguageRegistry) Resolve(tag string) (*Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.byAlias[strings.ToLower(strings.TrimSpace(tag))]
	return lang, ok
}

// Names returns the canonical names in sorted order.
func (r *LanguageRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
