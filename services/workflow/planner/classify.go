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

import "strings"

// ResponseType is the kind of a planner reply.
type ResponseType string

const (
	ResponseQuestion       ResponseType = "question"
	ResponsePlan           ResponseType = "business_logic_plan"
	ResponseAcknowledgment ResponseType = "acknowledgment"
	ResponseError          ResponseType = "error"
)

// IsPlan reports whether t is a complete plan.
func (t ResponseType) IsPlan() bool {
	return t == ResponsePlan
}

// planMarkers identify the headings of a generated plan.
var planMarkers = []string{
	"# business logic plan",
	"## **workflow purpose**",
	"## **required files**",
	"## **requirements**",
	"## **business logic**",
	"## **output dataframe structure**",
	"### workflow plan:",
	"**objective:**",
	"**steps:**",
}

// acknowledgmentPhrases appear in short replies that neither ask nor plan.
var acknowledgmentPhrases = []string{
	"i've analyzed",
	"i've reviewed",
	"thank you for",
	"understood",
	"i'll proceed",
	"let me now",
	"moving forward",
	"if you need",
	"feel free",
	"have a",
	"good luck",
}

// longPlanChars is the minimum length for the load-data/output heuristic.
const longPlanChars = 500

// shortAckWords is the word count below which an acknowledgment phrase
// classifies the reply.
const shortAckWords = 150

// optionWindow is how many leading bytes are searched for "a)".
const optionWindow = 200

// Classify determines the kind of a planner reply. It is a pure function.
//
// Rules, first match wins:
//  1. Blank text is ResponseError.
//  2. A plan heading, or a plan-like combination (workflow with objective,
//     workflow with "steps:", or "load data" with "output" in a long
//     reply) is ResponsePlan.
//  3. A "please select" prompt with lettered options is ResponseQuestion.
//  4. A short reply containing an acknowledgment phrase is
//     ResponseAcknowledgment.
//  5. Any "?" is ResponseQuestion.
//  6. Otherwise ResponseAcknowledgment.
func Classify(text string) ResponseType {
	if strings.TrimSpace(text) == "" {
		return ResponseError
	}
	lower := strings.ToLower(text)

	for _, m := range planMarkers {
		if strings.Contains(lower, m) {
			return ResponsePlan
		}
	}
	hasWorkflow := strings.Contains(lower, "workflow")
	if (hasWorkflow && strings.Contains(lower, "objective")) ||
		(hasWorkflow && strings.Contains(lower, "steps:")) ||
		(strings.Contains(lower, "load data") && strings.Contains(lower, "output") && len(text) > longPlanChars) {
		return ResponsePlan
	}

	if hasSelectPrompt(lower) && hasLetteredOptions(lower) {
		return ResponseQuestion
	}

	if len(strings.Fields(text)) < shortAckWords {
		for _, p := range acknowledgmentPhrases {
			if strings.Contains(lower, p) {
				return ResponseAcknowledgment
			}
		}
	}

	if strings.Contains(text, "?") {
		return ResponseQuestion
	}
	return ResponseAcknowledgment
}

func hasSelectPrompt(lower string) bool {
	return strings.Contains(lower, "please select one option:") ||
		strings.Contains(lower, "please select:")
}

func hasLetteredOptions(lower string) bool {
	if strings.Contains(lower, "\na)") || strings.Contains(lower, "\nb)") {
		return true
	}
	head := lower
	if len(head) > optionWindow {
		head = head[:optionWindow]
	}
	return strings.Contains(head, "a)")
}
