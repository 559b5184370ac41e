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
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseLevel verifies level names and aliases.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"full", LevelFull},
		{"", LevelFull},
		{"MIN", LevelMinimal},
		{"machine", LevelMachine},
		{"json", LevelMachine},
		{"sparkly", LevelFull},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

// TestDetectLevel verifies buffers are not terminals.
func TestDetectLevel(t *testing.T) {
	t.Setenv("WFB_UX", "")
	assert.Equal(t, LevelMachine, DetectLevel(&bytes.Buffer{}))

	t.Setenv("WFB_UX", "minimal")
	assert.Equal(t, LevelMinimal, DetectLevel(&bytes.Buffer{}))
}

// TestPrinterMachine verifies plain prefixed output.
func TestPrinterMachine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, LevelMachine)

	p.Title("ignored")
	p.Muted("ignored")
	p.Success("saved")
	p.Warning("slow")
	p.Error("broken")
	p.Info("note")
	p.KeyValue([2]string{"phase", "coding"}, [2]string{"iterations", "2"})
	p.Box("Plan", "step one\n")

	assert.Equal(t, "OK: saved\nWARN: slow\nERROR: broken\nnote\nphase=coding\niterations=2\nPlan:\nstep one\n", buf.String())
	assert.Equal(t, "3/5", p.ProgressBar(3, 5, 10))
}

// TestPrinterFull verifies rich output keeps the text.
func TestPrinterFull(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, LevelFull)

	p.Box("Business Logic Plan", "Sum sales per region")
	p.Success("done")
	p.KeyValue([2]string{"a", "1"}, [2]string{"longer", "2"})

	out := buf.String()
	assert.Contains(t, out, "Business Logic Plan")
	assert.Contains(t, out, "Sum sales per region")
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "longer")
	assert.Contains(t, p.ProgressBar(12, 10, 10), "10/10")
}

// TestSpinnerMachine verifies non-animated progress output.
func TestSpinnerMachine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, LevelMachine)

	err := p.WithSpinner("Generating code", func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "PROGRESS: Generating code\nOK: Generating code\n", buf.String())
}

// TestSpinnerFull verifies the animation starts and stops cleanly.
func TestSpinnerFull(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, LevelFull)

	s := p.NewSpinner("Working")
	s.Start()
	s.Start()
	s.Update("Still working")
	s.Stop()
	s.Stop()
	assert.True(t, strings.HasSuffix(buf.String(), "\r\033[K"))
}

// TestPrompter verifies answers, defaults and end of input.
func TestPrompter(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, LevelMachine)
	q := NewPrompter(p, strings.NewReader("  amount column \n\nno\nlast"))

	answer, err := q.Ask("Your answer:")
	require.NoError(t, err)
	assert.Equal(t, "amount column", answer)

	ok, err := q.Confirm("Approve?", true)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.Confirm("Approve?", true)
	require.NoError(t, err)
	assert.False(t, ok)

	answer, err = q.Ask("More:")
	require.NoError(t, err)
	assert.Equal(t, "last", answer)

	_, err = q.Ask("Again:")
	assert.ErrorIs(t, err, ErrNoInput)
	assert.Contains(t, out.String(), "Your answer:\n")
}
