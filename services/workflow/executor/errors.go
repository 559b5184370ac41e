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

import "errors"

var (
	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrInvalidTimeout indicates a per-block timeout below one second.
	ErrInvalidTimeout = errors.New("timeout must be at least one second")

	// ErrWorkDir indicates the working directory could not be prepared.
	ErrWorkDir = errors.New("working directory unavailable")

	// ErrFileOutsideWorkspace indicates a declared file name resolves
	// outside the working directory.
	ErrFileOutsideWorkspace = errors.New("filename is not in the workspace")

	// ErrCancelled is the cause recorded by CancellationToken.Cancel.
	ErrCancelled = errors.New("execution cancelled")
)
