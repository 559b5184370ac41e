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
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// DefaultSampleRows is the number of sample rows kept by CSVDescriber.
const DefaultSampleRows = 5

// describeConcurrency bounds parallel describes in DescribeAll.
const describeConcurrency = 4

// Describer provides structural metadata for an input file.
type Describer interface {
	Describe(ctx context.Context, path string) (*FileInfo, error)
}

// CSVDescriber describes CSV files from disk.
type CSVDescriber struct {
	// SampleRows is the number of leading rows kept. Zero uses
	// DefaultSampleRows.
	SampleRows int
}

// Describe reads path and returns its columns, dtypes, row count and
// sample rows.
func (d CSVDescriber) Describe(ctx context.Context, path string) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	sampleN := d.SampleRows
	if sampleN <= 0 {
		sampleN = DefaultSampleRows
	}

	info := &FileInfo{Filename: filepath.Base(abs), Path: abs}
	var samples [][]string
	err = scan(abs, func(header []string) func([]string) error {
		info.Columns = header
		return func(row []string) error {
			if len(samples) < sampleN {
				samples = append(samples, append([]string(nil), row...))
			}
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	summary, err := Summarize(abs)
	if err != nil {
		return nil, err
	}

	info.RowCount = summary.RowCount
	info.SampleRows = samples
	info.Summary = summary
	info.FileSizeMB = fileSizeMB(abs)
	info.Dtypes = make(map[string]string, len(summary.Columns))
	for _, c := range summary.Columns {
		info.Dtypes[c.Name] = c.PandasDtype()
	}
	return info, nil
}

// DescribeAll describes paths concurrently and returns the results in
// input order. The first failure cancels the remaining work.
func DescribeAll(ctx context.Context, d Describer, paths []string) ([]*FileInfo, error) {
	infos := make([]*FileInfo, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(describeConcurrency)
	for i, p := range paths {
		g.Go(func() error {
			info, err := d.Describe(gctx, p)
			if err != nil {
				return fmt.Errorf("describe %s: %w", filepath.Base(p), err)
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

// FormatFiles renders a human-readable overview of described files for
// the planning conversation.
func FormatFiles(infos []*FileInfo) string {
	var sb strings.Builder
	for i, info := range infos {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "File: %s\n", info.Filename)
		fmt.Fprintf(&sb, "  Path: %s\n", info.Path)
		fmt.Fprintf(&sb, "  Rows: %s | Columns: %d | Size: %.2f MB\n",
			humanize.Comma(int64(info.RowCount)), len(info.Columns), info.FileSizeMB)
		sb.WriteString("  Columns:\n")
		for _, col := range info.Columns {
			fmt.Fprintf(&sb, "    - %s (%s)", col, info.Dtypes[col])
			if info.Summary != nil {
				if c := info.Summary.Column(col); c != nil {
					if c.Missing > 0 {
						fmt.Fprintf(&sb, " - %s missing", humanize.Comma(int64(c.Missing)))
					}
					if c.Min != nil {
						fmt.Fprintf(&sb, " [min=%g, max=%g, mean=%g]", *c.Min, *c.Max, *c.Mean)
					}
				}
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
