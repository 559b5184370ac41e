// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// maxUniqueTracked bounds distinct-value tracking per column.
const maxUniqueTracked = 10000

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"02.01.2006",
}

// columnStats accumulates one column while streaming.
type columnStats struct {
	name    string
	present int
	missing int

	isInt, isFloat, isBool, isDate bool

	min, max, sum float64
	numeric       int

	unique   map[string]struct{}
	overflow bool
}

func newColumnStats(name string) *columnStats {
	return &columnStats{
		name:    name,
		isInt:   true,
		isFloat: true,
		isBool:  true,
		isDate:  true,
		min:     math.Inf(1),
		max:     math.Inf(-1),
		unique:  make(map[string]struct{}),
	}
}

func (c *columnStats) add(raw string) {
	if isMissing(raw) {
		c.missing++
		return
	}
	c.present++
	v := strings.TrimSpace(raw)

	if !c.overflow {
		c.unique[v] = struct{}{}
		if len(c.unique) > maxUniqueTracked {
			c.overflow = true
		}
	}

	if c.isInt {
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			c.isInt = false
		}
	}
	if c.isFloat {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsInf(f, 0) {
			c.isFloat = false
		} else {
			c.numeric++
			c.sum += f
			c.min = math.Min(c.min, f)
			c.max = math.Max(c.max, f)
		}
	}
	if c.isBool {
		switch strings.ToLower(v) {
		case "true", "false":
		default:
			c.isBool = false
		}
	}
	if c.isDate {
		c.isDate = parsesAsDatetime(v)
	}
}

func (c *columnStats) kind() Kind {
	switch {
	case c.present == 0:
		return KindEmpty
	case c.isInt:
		return KindInteger
	case c.isFloat:
		return KindFloat
	case c.isBool:
		return KindBool
	case c.isDate:
		return KindDatetime
	default:
		return KindString
	}
}

func (c *columnStats) summary() ColumnSummary {
	s := ColumnSummary{
		Name:    c.name,
		Kind:    c.kind(),
		Missing: c.missing,
		Unique:  len(c.unique),
	}
	if s.Kind.IsNumeric() && c.numeric > 0 {
		lo, hi := c.min, c.max
		mean := roundTo(c.sum/float64(c.numeric), 4)
		s.Min, s.Max, s.Mean = &lo, &hi, &mean
	}
	return s
}

func parsesAsDatetime(v string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// Summarize computes row and column counts, inferred column kinds,
// missing-value counts and numeric min, max and mean.
func Summarize(path string) (*Summary, error) {
	var cols []*columnStats
	rows := 0

	err := scan(path, func(header []string) func([]string) error {
		cols = make([]*columnStats, len(header))
		for i, name := range header {
			cols[i] = newColumnStats(name)
		}
		return func(row []string) error {
			rows++
			for i, v := range row {
				cols[i].add(v)
			}
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	s := &Summary{RowCount: rows, ColumnCount: len(cols), Columns: make([]ColumnSummary, len(cols))}
	for i, c := range cols {
		s.Columns[i] = c.summary()
	}
	return s, nil
}

// PandasDtype names the dtype a dataframe reader would most likely
// assign to a column with default options.
func (c ColumnSummary) PandasDtype() string {
	switch c.Kind {
	case KindInteger:
		if c.Missing > 0 {
			return "float64"
		}
		return "int64"
	case KindFloat, KindEmpty:
		return "float64"
	case KindBool:
		if c.Missing > 0 {
			return "object"
		}
		return "bool"
	default:
		return "object"
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
