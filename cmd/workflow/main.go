// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command workflow builds data-processing workflows from a conversation.
//
// A planner interviews the user about the workflow, writes a business logic
// plan, and a coder turns the approved plan into a Python script that is
// executed and repaired until it writes a valid CSV output.
//
// Usage:
//
//	workflow run --name "Q3 sales" --description "Total sales per region" \
//	  --input data/uploads/sales.csv --input data/uploads/regions.csv
//	workflow exec --plan plan.md --input sales.csv --output out/result.csv
//	workflow status "Q3 sales"
//	workflow serve --addr :8085
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(defaultDeps()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
