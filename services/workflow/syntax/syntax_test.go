// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Python(t *testing.T) {
	ctx := context.Background()

	t.Run("valid code", func(t *testing.T) {
		code := "import pandas as pd\n\ndef total(df):\n    return df['a'].sum()\n\nprint(total(pd.DataFrame({'a': [1, 2]})))\n"
		result, err := Validate(ctx, "python", code)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
		assert.Equal(t, "python", result.Language)
	})

	t.Run("unbalanced parenthesis", func(t *testing.T) {
		code := "x = 1\ny = 2\nprint((x, y)\n"
		result, err := Validate(ctx, "python", code)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Greater(t, result.Line, 0)
		assert.Greater(t, result.Column, 0)
		assert.NotEmpty(t, result.Error)
		assert.NotEmpty(t, result.Errors)
	})

	t.Run("broken assignment", func(t *testing.T) {
		result, err := Validate(ctx, "py3", "a = 1\nb = = 2\n")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, 2, result.Line)
		assert.Equal(t, "b = = 2", result.Text)
	})

	t.Run("empty code", func(t *testing.T) {
		result, err := Validate(ctx, "python", "  \n\t")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, "empty code", result.Error)
	})
}

func TestValidate_Shell(t *testing.T) {
	ctx := context.Background()

	result, err := Validate(ctx, "sh", "for f in *.csv; do\n  echo \"$f\"\ndone\n")
	require.NoError(t, err)
	assert.True(t, result.Valid)

	result, err = Validate(ctx, "bash", "if [ -f x ]; then\n  echo yes\n")
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestValidate_Errors(t *testing.T) {
	_, err := Validate(context.Background(), "cobol", "DISPLAY 'HI'.")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	//nolint:staticcheck // nil context is the case under test
	_, err = Validate(nil, "python", "x = 1")
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestResult_Format(t *testing.T) {
	valid := &Result{Valid: true, Language: "python"}
	assert.Equal(t, "Syntax is valid for python", valid.Format())

	invalid := &Result{
		Language: "python",
		Error:    "Missing )",
		Errors:   []Error{{Line: 3, Column: 6, Message: "Missing )"}},
	}
	assert.Contains(t, invalid.Format(), "Line 3, Col 6: Missing )")

	empty := &Result{Language: "python", Error: "empty code"}
	assert.Equal(t, "empty code", empty.Format())
}
