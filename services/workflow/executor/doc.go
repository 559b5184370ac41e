// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package executor runs generated code blocks as OS subprocesses.
//
// A batch is an ordered list of CodeBlocks. Each block is written to a file
// inside the executor's working directory and run with the matching
// interpreter, one after another:
//
//  1. Normalize the language alias (py, python3 -> python; shell -> sh)
//  2. Reject unsupported languages (exit code 1, batch stops)
//  3. Pick a file name: a "# filename: x.py" first line, or
//     tmp_code_<sha256>.<ext>
//  4. Run the interpreter with the working directory as CWD
//  5. Stop at the first non-zero exit, timeout or cancellation
//
// After the batch, synthesized tmp_code_ files are removed. Named files the
// caller asked for are left in place.
//
// # Exit Codes
//
//   - 0: success
//   - 1: unsupported language or file outside the workspace
//   - 124: a block exceeded the per-block timeout (process group killed)
//   - 125: the context was cancelled
//
// # Cancellation
//
// Cancellation is a context.Context. CancellationToken wraps one with a
// reason for callers that want an explicit handle.
//
// # Thread Safety
//
// Executor is safe for concurrent use as long as concurrent batches use
// different working directories (see WithWorkDir).
//
// # Example Usage
//
//	exec, err := executor.New(executor.NewConfig(
//	    executor.WithWorkDir("data/outputs/sales"),
//	    executor.WithTimeout(2*time.Minute),
//	), logger)
//	if err != nil {
//	    return err
//	}
//	result, err := exec.Execute(ctx, []executor.CodeBlock{
//	    {Language: "python", Code: script},
//	})
package executor
