// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders workflow progress in the terminal.
//
// Output richness follows a Level: full uses colors, icons and boxes,
// minimal keeps icons only, machine prints plain prefixed lines suitable
// for scripting.
package ux

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Level defines the richness of CLI output.
type Level string

const (
	// LevelFull enables colors, icons and boxes.
	LevelFull Level = "full"

	// LevelMinimal uses icons and basic formatting only.
	LevelMinimal Level = "minimal"

	// LevelMachine outputs plain text for scripts.
	LevelMachine Level = "machine"
)

// ParseLevel converts a string to a Level. Unknown names map to LevelFull.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal", "min", "m":
		return LevelMinimal
	case "machine", "quiet", "q", "json":
		return LevelMachine
	default:
		return LevelFull
	}
}

// DetectLevel picks LevelFull for terminals and LevelMachine otherwise.
// WFB_UX overrides the detection.
func DetectLevel(w io.Writer) Level {
	if env := os.Getenv("WFB_UX"); env != "" {
		return ParseLevel(env)
	}
	if IsTerminal(w) {
		return LevelFull
	}
	return LevelMachine
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
