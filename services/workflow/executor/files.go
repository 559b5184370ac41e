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
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// TempFilePrefix marks files the executor synthesized and may delete.
const TempFilePrefix = "tmp_code_"

// Only the first line is inspected.
var filenamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^<!--\s*filename:\s*(\S+)\s*-->`),
	regexp.MustCompile(`^/\*\s*filename:\s*(\S+)\s*\*/`),
	regexp.MustCompile(`^//\s*filename:\s*(\S+)\s*$`),
	regexp.MustCompile(`^#\s*filename:\s*(\S+)\s*$`),
}

var pipInstallLine = regexp.MustCompile(`(?m)^[ \t]*!?[ \t]*pip3?[ \t]+install\b[^\n]*$`)

// declaredFileName returns the file name declared on the first line of
// code, or "" when none is declared. A declared path that resolves outside
// workDir returns ErrFileOutsideWorkspace.
func declaredFileName(code, workDir string) (string, error) {
	first := code
	if i := strings.IndexByte(code, '\n'); i >= 0 {
		first = code[:i]
	}
	first = strings.TrimSpace(first)

	for _, re := range filenamePatterns {
		m := re.FindStringSubmatch(first)
		if m == nil {
			continue
		}
		name := m[1]
		if !insideDir(workDir, name) {
			return "", ErrFileOutsideWorkspace
		}
		if filepath.IsAbs(name) {
			rel, err := filepath.Rel(absOrSelf(workDir), name)
			if err != nil {
				return "", ErrFileOutsideWorkspace
			}
			name = rel
		}
		return filepath.Clean(name), nil
	}
	return "", nil
}

// tempFileName derives a collision-free name from the code contents.
func tempFileName(code string, lang *Language) string {
	sum := sha256.Sum256([]byte(code))
	return TempFilePrefix + hex.EncodeToString(sum[:]) + "." + lang.Extension
}

// insideDir reports whether name, joined onto dir, stays within dir.
func insideDir(dir, name string) bool {
	base := absOrSelf(dir)
	target := name
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, name)
	}
	rel, err := filepath.Rel(base, filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}

func absOrSelf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// silencePip appends -qqq to pip install lines that are not already quiet.
func silencePip(code string, lang *Language) string {
	if lang == nil {
		return code
	}
	return pipInstallLine.ReplaceAllStringFunc(code, func(line string) string {
		trimmed := strings.TrimRight(line, " \t\r")
		if strings.Contains(trimmed, " -q") {
			return line
		}
		return trimmed + " -qqq"
	})
}

// =============================================================================
// LIMITED WRITER
// =============================================================================

// limitedWriter wraps a writer with a size limit. A limit of zero means
// unlimited.
type limitedWriter struct {
	w         io.Writer
	limit     int
	written   int
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (n int, err error) {
	if lw.limit <= 0 {
		return lw.w.Write(p)
	}
	if lw.written >= lw.limit {
		lw.truncated = true
		return len(p), nil
	}

	// The full length is always reported. A short write would make the
	// exec copy goroutine close the pipe and kill the child with SIGPIPE.
	total := len(p)
	remaining := lw.limit - lw.written
	if total > remaining {
		p = p[:remaining]
		lw.truncated = true
	}

	n, err = lw.w.Write(p)
	lw.written += n
	if err != nil {
		return n, err
	}
	return total, nil
}

// note appends executor notes such as "\nTimeout". Notes bypass the limit
// so the reason for a stop is always visible.
func (lw *limitedWriter) note(s string) {
	_, _ = io.WriteString(lw.w, s)
}

// removeTempFiles deletes synthesized files and reports the ones that
// could not be removed.
func removeTempFiles(paths []string) map[string]error {
	failed := make(map[string]error)
	for _, p := range paths {
		if !strings.HasPrefix(filepath.Base(p), TempFilePrefix) {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			failed[p] = err
		}
	}
	return failed
}
