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

import "errors"

var (
	// ErrNotFound indicates the file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrEmpty indicates a file without a header row.
	ErrEmpty = errors.New("file is empty")

	// ErrInvalidCSV indicates the file could not be parsed as CSV.
	ErrInvalidCSV = errors.New("invalid CSV format")
)

// Kind is an inferred column type.
type Kind string

const (
	KindInteger  Kind = "integer"
	KindFloat    Kind = "float"
	KindBool     Kind = "bool"
	KindDatetime Kind = "datetime"
	KindString   Kind = "string"

	// KindEmpty is used for columns without any non-missing value.
	KindEmpty Kind = "empty"
)

// IsNumeric reports whether values of k have numeric statistics.
func (k Kind) IsNumeric() bool {
	return k == KindInteger || k == KindFloat
}

// Validation is the result of checking an output artifact.
type Validation struct {
	Valid       bool     `json:"valid"`
	Error       string   `json:"error,omitempty"`
	RowCount    int      `json:"row_count"`
	ColumnCount int      `json:"column_count"`
	Columns     []string `json:"columns"`
	FileSizeMB  float64  `json:"file_size_mb"`
}

// ColumnSummary describes one column.
type ColumnSummary struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Missing int    `json:"missing,omitempty"`
	Unique  int    `json:"unique"`

	// Numeric statistics, set only for numeric kinds.
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Mean *float64 `json:"mean,omitempty"`
}

// Summary is a structural and statistical overview of a CSV file.
type Summary struct {
	RowCount    int             `json:"row_count"`
	ColumnCount int             `json:"column_count"`
	Columns     []ColumnSummary `json:"columns"`
}

// Column returns the named column summary, or nil.
func (s *Summary) Column(name string) *ColumnSummary {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}

// FileInfo is the structural metadata of an input file used to build
// generation prompts.
type FileInfo struct {
	Filename   string            `json:"filename"`
	Path       string            `json:"path"`
	Columns    []string          `json:"columns"`
	Dtypes     map[string]string `json:"dtypes"`
	RowCount   int               `json:"row_count"`
	FileSizeMB float64           `json:"file_size_mb"`
	SampleRows [][]string        `json:"sample_rows,omitempty"`
	Summary    *Summary          `json:"summary,omitempty"`
}
