// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoInput indicates the input stream ended before an answer.
var ErrNoInput = errors.New("no more input")

// Prompter reads line answers.
//
// Thread Safety: Not safe for concurrent use.
type Prompter struct {
	p  *Printer
	in *bufio.Reader
}

// NewPrompter creates a Prompter reading from in and echoing prompts
// through p.
func NewPrompter(p *Printer, in io.Reader) *Prompter {
	return &Prompter{p: p, in: bufio.NewReader(in)}
}

// Ask prints label and returns the trimmed line typed by the user.
func (q *Prompter) Ask(label string) (string, error) {
	if q.p.level == LevelMachine {
		fmt.Fprintf(q.p.w, "%s\n", label)
	} else {
		fmt.Fprintf(q.p.w, "%s ", Styles.Highlight.Render(label))
	}
	line, err := q.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. An empty answer returns def.
func (q *Prompter) Confirm(label string, def bool) (bool, error) {
	suffix := " [y/N]"
	if def {
		suffix = " [Y/n]"
	}
	answer, err := q.Ask(label + suffix)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
