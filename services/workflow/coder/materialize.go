// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coder

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const tokenPrefix = "{{WFB_"

// OutputToken is the placeholder for the output file path.
const OutputToken = tokenPrefix + "OUTPUT_PATH}}"

// InputToken returns the placeholder for the input file at index i.
func InputToken(i int) string {
	return fmt.Sprintf("%sINPUT_%d}}", tokenPrefix, i)
}

// tokenPattern matches a placeholder with optional surrounding quotes.
var tokenPattern = regexp.MustCompile(`(["']?)\{\{\s*WFB_([A-Za-z0-9_]*)\s*\}\}(["']?)`)

// Materialize replaces path placeholders in code with Python string
// literals of absolute paths.
//
// Description:
//
//	A placeholder written inside matching quotes is replaced including
//	the quotes, so "{{WFB_INPUT_0}}" and {{WFB_INPUT_0}} both become a
//	single literal. Unknown WFB placeholders and input indexes without a
//	file are errors wrapping ErrMaterialize. Code without placeholders
//	is returned unchanged.
//
// Inputs:
//
//	code - Generated source
//	inputs - Input files in placeholder order
//	output - Output file
//
// Outputs:
//
//	string - Code with every placeholder replaced
//	error - ErrMaterialize for unresolvable placeholders
func Materialize(code string, inputs []string, output string) (string, error) {
	matches := tokenPattern.FindAllStringSubmatchIndex(code, -1)
	if len(matches) == 0 {
		return code, nil
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		open := code[m[2]:m[3]]
		name := strings.ToUpper(code[m[4]:m[5]])
		closing := code[m[6]:m[7]]

		path, err := resolveToken(name, inputs, output)
		if err != nil {
			return "", err
		}

		literal := pythonString(path)
		if open == "" || open != closing {
			literal = open + literal + closing
		}

		sb.WriteString(code[last:m[0]])
		sb.WriteString(literal)
		last = m[1]
	}
	sb.WriteString(code[last:])
	return sb.String(), nil
}

func resolveToken(name string, inputs []string, output string) (string, error) {
	if name == "OUTPUT_PATH" {
		return absPath(output)
	}
	if idx, ok := strings.CutPrefix(name, "INPUT_"); ok {
		i, err := strconv.Atoi(idx)
		if err != nil {
			return "", fmt.Errorf("%w: malformed placeholder %sINPUT_%s}}", ErrMaterialize, tokenPrefix, idx)
		}
		if i < 0 || i >= len(inputs) {
			return "", fmt.Errorf("%w: %s refers to input %d but only %d input file(s) exist",
				ErrMaterialize, InputToken(i), i, len(inputs))
		}
		return absPath(inputs[i])
	}
	return "", fmt.Errorf("%w: unknown placeholder %s%s}}", ErrMaterialize, tokenPrefix, name)
}

func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMaterialize, err)
	}
	return abs, nil
}

// pythonString quotes s as a double-quoted Python literal. Go escapes
// for printable UTF-8 paths coincide with Python's.
func pythonString(s string) string {
	return strconv.Quote(s)
}

func baseName(p string) string {
	return filepath.Base(p)
}
