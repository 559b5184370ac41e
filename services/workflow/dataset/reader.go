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
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const utf8BOM = "\ufeff"

// missingValues are treated as absent, matching common dataframe readers.
var missingValues = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
	"None": {},
	"<NA>": {},
}

// isMissing reports whether a raw cell counts as a missing value.
func isMissing(v string) bool {
	_, ok := missingValues[strings.TrimSpace(v)]
	return ok
}

// scan streams the data rows of a CSV file to fn after reading the
// header. A file without a header returns ErrEmpty; a parse failure or a
// ragged row returns ErrInvalidCSV.
func scan(path string, fn func(header []string) func(row []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.ReuseRecord = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}
	header = append([]string(nil), header...)
	header[0] = strings.TrimPrefix(header[0], utf8BOM)

	onRow := fn(header)
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}
		if onRow == nil {
			continue
		}
		if err := onRow(row); err != nil {
			return err
		}
	}
}

// fileSizeMB returns the size of path in megabytes rounded to two places.
func fileSizeMB(path string) float64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return roundTo(float64(info.Size())/(1024*1024), 2)
}
