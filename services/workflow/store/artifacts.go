// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// codeTimestampLayout is the timestamp format in saved code file names.
const codeTimestampLayout = "20060102_150405"

// backupSuffix is appended to output files that are backed up.
const backupSuffix = ".bak"

// ArtifactWriter saves generated code and output backups.
//
// Thread Safety: Safe for concurrent use with distinct workflow names.
type ArtifactWriter struct {
	codeDir string
	logger  *slog.Logger
	now     func() time.Time
}

// NewArtifactWriter returns a writer that saves code under codeDir.
func NewArtifactWriter(codeDir string, logger *slog.Logger) *ArtifactWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactWriter{codeDir: codeDir, logger: logger, now: time.Now}
}

// SaveCode writes code to <codeDir>/<safe name>_<YYYYmmdd_HHMMSS>.py and
// returns the path.
func (w *ArtifactWriter) SaveCode(name, code string) (string, error) {
	file := fmt.Sprintf("%s_%s.py", SanitizeName(name), w.now().Format(codeTimestampLayout))
	path := filepath.Join(w.codeDir, file)
	if err := writeFileAtomic(path, []byte(code)); err != nil {
		return "", fmt.Errorf("save generated code: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	w.logger.Info("Saved generated code", slog.String("path", abs))
	return abs, nil
}

// Backup copies path to path.bak. It returns an empty backup path when
// path does not exist.
func (w *ArtifactWriter) Backup(path string) (string, error) {
	src, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("backup %s: %w", filepath.Base(path), err)
	}
	defer src.Close()

	backup := path + backupSuffix
	dst, err := os.OpenFile(backup, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return "", fmt.Errorf("backup %s: %w", filepath.Base(path), err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("backup %s: %w", filepath.Base(path), err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("backup %s: %w", filepath.Base(path), err)
	}
	return backup, nil
}

// Restore moves backup over path. An empty backup is a no-op.
func (w *ArtifactWriter) Restore(backup, path string) error {
	if backup == "" {
		return nil
	}
	if err := os.Rename(backup, path); err != nil {
		return fmt.Errorf("restore %s: %w", filepath.Base(path), err)
	}
	w.logger.Info("Restored previous output", slog.String("path", path))
	return nil
}

// Discard removes a backup that is no longer needed.
func (w *ArtifactWriter) Discard(backup string) {
	if backup == "" {
		return
	}
	if err := os.Remove(backup); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Warn("Failed to remove backup",
			slog.String("path", backup),
			slog.String("error", err.Error()),
		)
	}
}
