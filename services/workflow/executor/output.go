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

import "strings"

// excerptTailLines is how many trailing lines are kept when no error
// marker is found.
const excerptTailLines = 10

// ErrorExcerpt extracts the most relevant part of failed output.
//
// Description:
//
//	Returns the lines around the first line containing "Error:" or
//	"Exception:" (two before, three after). Failing that, everything
//	from the last Python traceback header. Failing that, the last ten
//	lines.
func ErrorExcerpt(output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")

	for i, line := range lines {
		if strings.Contains(line, "Error:") || strings.Contains(line, "Exception:") {
			start := max(0, i-2)
			end := min(len(lines), i+3)
			return strings.Join(lines[start:end], "\n")
		}
	}

	if idx := strings.LastIndex(output, "Traceback (most recent call last)"); idx >= 0 {
		return strings.TrimRight(output[idx:], "\n")
	}

	if len(lines) > excerptTailLines {
		lines = lines[len(lines)-excerptTailLines:]
	}
	return strings.Join(lines, "\n")
}
