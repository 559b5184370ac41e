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
	"fmt"
	"path/filepath"
	"strings"
)

// systemInstructions drives the planning interview.
const systemInstructions = `You are an expert designer of tabular data-processing workflows. You interview the user to understand the business rules of a workflow and then write an implementable business logic plan.

Ground rules:
- The structure of every input file is given to you in the context below. Refer to real column names.
- Ask only about business logic: which records qualify, thresholds, exclusions, calculations, grouping.
- Never ask about data cleaning, missing values, type or date format conversions, encodings or output format. Assume the data is clean and that the output is a single CSV file.
- Do not ask about anything the workflow description or earlier answers already settle.

Question format. Ask exactly one question per reply:

[Brief context based on previous answers]

[One clear question referencing specific columns]

Please select one option:
A) [choice]
B) [choice]
C) [choice]
D) [choice]
E) Other (please specify)

Interview flow:
1. Three to five business rule questions.
2. One question proposing the output columns (identification, business logic, context and calculated columns), asking the user to confirm or adjust.
3. A final review question asking whether anything was missed before the plan is generated.`

// planInstructions asks for the final plan in a fixed markdown layout.
const planInstructions = `Based on our conversation, write the complete Business Logic Plan now in markdown, using exactly this structure:

# Business Logic Plan

## **Workflow Purpose**
[What the workflow accomplishes and why]

## **Required Files**
A JSON array of {"file_name": "...", "required_columns": ["..."]} objects, followed by a short description of every required column.

## **Requirements**
Every question asked and the user's answer, as **Q1: ...** / - User Response: ... pairs.

## **Business Logic**
Numbered, implementation-ready steps:
1. **Load Data**
2. **Filter Records**
3. **Apply Business Rules**
4. **Create Derived Columns**
5. **Final Dataset**

## **Output Dataframe Structure**
| Column Name | Description | Source/Calculation |
|-------------|-------------|-------------------|

State what one output row represents.

Use the actual column names of the input files. Write the document now.`

// BuildContext renders the workflow context injected into every planner
// turn: the workflow identity, the input files and, when available, the
// structural description of those files.
func BuildContext(name, description string, inputs []string, fileSummary string) string {
	var sb strings.Builder
	sb.WriteString("**Workflow Context:**\n")
	fmt.Fprintf(&sb, "- Name: %s\n", name)
	fmt.Fprintf(&sb, "- Description: %s\n", description)
	names := make([]string, len(inputs))
	for i, p := range inputs {
		names[i] = filepath.Base(p)
	}
	fmt.Fprintf(&sb, "- Files: %s\n", strings.Join(names, ", "))

	if strings.TrimSpace(fileSummary) != "" {
		sb.WriteString("\n**Input File Structure:**\n")
		sb.WriteString(fileSummary)
		if !strings.HasSuffix(fileSummary, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// systemPrompt combines the interview instructions with the workflow
// context.
func systemPrompt(workflowContext string) string {
	return systemInstructions + "\n\n---\n\n" + workflowContext
}

func initialPrompt(name, description string, inputs []string, maxQuestions int) string {
	var sb strings.Builder
	sb.WriteString("I'm starting a new data analysis workflow.\n\n")
	fmt.Fprintf(&sb, "**Workflow Name:** %s\n\n", name)
	fmt.Fprintf(&sb, "**Workflow Description:** %s\n\n", description)
	sb.WriteString("**Input Files:**\n")
	for _, p := range inputs {
		fmt.Fprintf(&sb, "- %s\n", filepath.Base(p))
	}
	sb.WriteString("\nThe structure of these files is already in your context. ")
	fmt.Fprintf(&sb, "Ask me one question at a time; you can ask up to %d questions. Let's begin.", maxQuestions)
	return sb.String()
}

func revisePrompt(feedback string) string {
	return fmt.Sprintf("The user has feedback on the business logic plan:\n\n%q\n\n"+
		"Update the plan to address it and reply with the complete updated document, keeping the same structure.", feedback)
}
