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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/config"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Sales Summary", "Sales Summary"},
		{"separators", "a/b\\c", "a_b_c"},
		{"reserved characters", `q3: "top" <10>?|*`, "q3_ _top_ _10"},
		{"collapsed runs", "a//::b", "a_b"},
		{"trimmed", "/report/", "report"},
		{"empty", "", "workflow"},
		{"only invalid", "///", "workflow"},
		{"dots", "..", "workflow"},
		{"long", strings.Repeat("x", 250), strings.Repeat("x", 200)},
		{"long multibyte", strings.Repeat("é", 201), strings.Repeat("é", 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}

// testStoreContract exercises the Store behavior shared by every backend.
func testStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "Sales: Q3", []byte(`{"phase":"planning"}`)))
	require.NoError(t, s.Save(ctx, "Sales: Q3", []byte(`{"phase":"coding"}`)))
	require.NoError(t, s.Save(ctx, "alpha", []byte(`{}`)))

	data, err := s.Load(ctx, "Sales: Q3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"coding"}`, string(data))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sales_ Q3", "alpha"}, names)

	require.NoError(t, s.Delete(ctx, "alpha"))
	require.NoError(t, s.Delete(ctx, "alpha"))
	_, err = s.Load(ctx, "alpha")
	assert.ErrorIs(t, err, ErrNotFound)

	//nolint:staticcheck // nil context is the case under test
	assert.ErrorIs(t, s.Save(nil, "x", nil), ErrNilContext)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, s.Save(cancelled, "x", []byte("{}")))
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s, err := NewFileStore(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	testStoreContract(t, s)

	t.Run("layout", func(t *testing.T) {
		require.NoError(t, s.Save(context.Background(), "My/Flow", []byte("{}")))
		assert.FileExists(t, filepath.Join(dir, "My_Flow_state.json"))
		assert.Equal(t, filepath.Join(dir, "My_Flow_state.json"), s.Path("My/Flow"))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temporary file left behind: %s", e.Name())
		}
	})

	t.Run("requires directory", func(t *testing.T) {
		_, err := NewFileStore("", nil)
		assert.Error(t, err)
	})
}

func TestBadgerStore_InMemory(t *testing.T) {
	s, err := OpenBadgerStore(InMemoryBadgerConfig())
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.InMemory())
	testStoreContract(t, s)
}

func TestBadgerStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultBadgerConfig()
	cfg.Path = dir
	cfg.SyncWrites = false

	s, err := OpenBadgerStore(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), "flow", []byte(`{"phase":"completed"}`)))
	require.NoError(t, s.Close())

	s2, err := OpenBadgerStore(cfg)
	require.NoError(t, err)
	defer s2.Close()

	data, err := s2.Load(context.Background(), "flow")
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"completed"}`, string(data))
}

func TestBadgerStore_RequiresPath(t *testing.T) {
	_, err := OpenBadgerStore(BadgerConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestOpen(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Paths.StateDir = filepath.Join(t.TempDir(), "state")
	cfg.Paths.StorageDir = t.TempDir()

	t.Run("file", func(t *testing.T) {
		cfg.Store.Backend = "file"
		s, err := Open(cfg, nil)
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &FileStore{}, s)
	})

	t.Run("badger", func(t *testing.T) {
		cfg.Store.Backend = "badger"
		s, err := Open(cfg, nil)
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &BadgerStore{}, s)
		assert.DirExists(t, filepath.Join(cfg.Paths.StorageDir, "badger"))
	})

	t.Run("unknown", func(t *testing.T) {
		cfg.Store.Backend = "s3"
		_, err := Open(cfg, nil)
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})
}

func TestArtifactWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewArtifactWriter(filepath.Join(dir, "code"), nil)
	w.now = func() time.Time { return time.Date(2025, 3, 9, 14, 5, 7, 0, time.UTC) }

	t.Run("save code", func(t *testing.T) {
		path, err := w.SaveCode("Sales: Q3", "print('hi')\n")
		require.NoError(t, err)
		assert.Equal(t, "Sales_ Q3_20250309_140507.py", filepath.Base(path))
		assert.True(t, filepath.IsAbs(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "print('hi')\n", string(data))
	})

	t.Run("backup and restore", func(t *testing.T) {
		out := filepath.Join(dir, "out.csv")
		require.NoError(t, os.WriteFile(out, []byte("a\n1\n"), 0644))

		backup, err := w.Backup(out)
		require.NoError(t, err)
		assert.Equal(t, out+".bak", backup)

		require.NoError(t, os.WriteFile(out, []byte("broken"), 0644))
		require.NoError(t, w.Restore(backup, out))

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "a\n1\n", string(data))
		assert.NoFileExists(t, backup)
	})

	t.Run("backup and discard", func(t *testing.T) {
		out := filepath.Join(dir, "keep.csv")
		require.NoError(t, os.WriteFile(out, []byte("a\n1\n"), 0644))

		backup, err := w.Backup(out)
		require.NoError(t, err)
		w.Discard(backup)
		assert.NoFileExists(t, backup)
		assert.FileExists(t, out)
	})

	t.Run("missing file", func(t *testing.T) {
		backup, err := w.Backup(filepath.Join(dir, "none.csv"))
		require.NoError(t, err)
		assert.Empty(t, backup)
		assert.NoError(t, w.Restore(backup, filepath.Join(dir, "none.csv")))
		w.Discard(backup)
	})
}
