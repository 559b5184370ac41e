// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package planner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestClassify verifies every classification rule and their precedence.
func TestClassify(t *testing.T) {
	longLoad := "Load data from both files, join them and write the output. " + strings.Repeat("More detail. ", 40)
	longAck := "Understood. " + strings.Repeat("word ", 160) + "ok?"

	tests := []struct {
		name string
		text string
		want ResponseType
	}{
		// Blank
		{"empty", "", ResponseError},
		{"whitespace", " \n\t ", ResponseError},

		// Plan headings
		{"plan heading", "# Business Logic Plan\n\n## **Workflow Purpose**\nFlag late postings.", ResponsePlan},
		{"plan heading case insensitive", "# BUSINESS LOGIC PLAN\nstuff", ResponsePlan},
		{"required files heading", "## **Required Files**\n[]", ResponsePlan},
		{"requirements heading", "## **Requirements**\nQ1", ResponsePlan},
		{"business logic heading", "## **Business Logic**\n1. Load", ResponsePlan},
		{"output structure heading", "## **Output Dataframe Structure**\n| a |", ResponsePlan},
		{"workflow plan heading", "### Workflow Plan:\n1. x", ResponsePlan},
		{"objective marker", "**Objective:** find duplicates", ResponsePlan},
		{"steps marker", "**Steps:**\n1. load", ResponsePlan},
		{"plan beats question", "# Business Logic Plan\nDoes this look right?", ResponsePlan},

		// Plan-like combinations
		{"workflow and objective", "This workflow has one objective: flag rows.", ResponsePlan},
		{"workflow and steps", "The workflow steps: load, filter, save.", ResponsePlan},
		{"long load data and output", longLoad, ResponsePlan},
		{"short load data and output", "Load data then output it?", ResponseQuestion},

		// Questions with options
		{"select one option", "Which date column?\n\nPlease select one option:\nA) Posting Date\nB) Document Date\nE) Other", ResponseQuestion},
		{"select short form", "Threshold.\nPlease select:\nA) 1 month\nB) 2 months", ResponseQuestion},
		{"select with b option only", "Pick.\nPlease select:\nb) second", ResponseQuestion},
		{"select with inline options", "Please select: a) yes b) no", ResponseQuestion},
		{"select without options", "Please select one option: whichever you like.", ResponseAcknowledgment},

		// Acknowledgments
		{"short thanks", "Thank you for the details. I'll proceed.", ResponseAcknowledgment},
		{"understood with question", "Understood, shall I continue?", ResponseAcknowledgment},
		{"have a", "Have a great day.", ResponseAcknowledgment},
		{"long ack falls through to question", longAck, ResponseQuestion},

		// Fallbacks
		{"bare question", "Which company codes should be excluded?", ResponseQuestion},
		{"plain statement", "Noted the threshold of 5 days.", ResponseAcknowledgment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestClassify_OptionWindow(t *testing.T) {
	// "a)" beyond the first 200 bytes does not count as an option list.
	text := "Please select: " + strings.Repeat("x", 250) + " a) yes"
	assert.Equal(t, ResponseAcknowledgment, Classify(text))
}

func TestResponseType_IsPlan(t *testing.T) {
	assert.True(t, ResponsePlan.IsPlan())
	assert.False(t, ResponseQuestion.IsPlan())
	assert.False(t, ResponseAcknowledgment.IsPlan())
	assert.False(t, ResponseError.IsPlan())
}
