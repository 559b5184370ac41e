// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset reads tabular CSV artifacts.
//
// It validates generated output files, renders markdown previews, computes
// column summaries, and describes input files for prompt construction.
// Files are read with a comma delimiter and a mandatory header row; rows
// with a different field count are a parse failure.
package dataset
