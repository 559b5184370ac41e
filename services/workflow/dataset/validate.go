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
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// DefaultPreviewRows is the preview size used when none is given.
const DefaultPreviewRows = 10

// Validate checks that path exists, parses as CSV and has at least one
// data row. Problems are reported in the returned Validation rather than
// as an error.
func Validate(path string) *Validation {
	v := &Validation{Columns: []string{}}

	var header []string
	err := scan(path, func(h []string) func([]string) error {
		header = h
		return func([]string) error {
			v.RowCount++
			return nil
		}
	})

	switch {
	case errors.Is(err, ErrNotFound):
		v.Error = "Output file was not created"
		return v
	case errors.Is(err, ErrEmpty):
		v.Error = "Output file is empty (0 rows)"
		v.FileSizeMB = fileSizeMB(path)
		return v
	case errors.Is(err, ErrInvalidCSV):
		v.Error = fmt.Sprintf("Invalid CSV format: %s", strings.TrimPrefix(err.Error(), ErrInvalidCSV.Error()+": "))
		v.RowCount = 0
		v.FileSizeMB = fileSizeMB(path)
		return v
	case err != nil:
		v.Error = fmt.Sprintf("Error reading output file: %v", err)
		v.RowCount = 0
		return v
	}

	v.Columns = header
	v.ColumnCount = len(header)
	v.FileSizeMB = fileSizeMB(path)
	if v.RowCount == 0 {
		v.Error = "Output file is empty (0 rows)"
		return v
	}
	v.Valid = true
	return v
}

// Preview renders the first rows of a CSV file as a markdown table under
// a "**Preview (N total rows, showing first M):**" header.
func Preview(path string, rows int) (string, error) {
	if rows <= 0 {
		rows = DefaultPreviewRows
	}

	var header []string
	var kept [][]string
	total := 0
	err := scan(path, func(h []string) func([]string) error {
		header = h
		return func(row []string) error {
			total++
			if len(kept) < rows {
				kept = append(kept, append([]string(nil), row...))
			}
			return nil
		}
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Preview (%s total rows, showing first %d):**\n\n",
		humanize.Comma(int64(total)), len(kept))
	writeMarkdownTable(&sb, header, kept)
	return sb.String(), nil
}

// writeMarkdownTable writes a pipe table with escaped cells.
func writeMarkdownTable(sb *strings.Builder, header []string, rows [][]string) {
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for _, c := range cells {
			sb.WriteString(" ")
			sb.WriteString(escapeCell(c))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	writeRow(header)
	sb.WriteString("|")
	for range header {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
