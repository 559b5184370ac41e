// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/AjayMudhai07/workflow-builder-agent/pkg/ux"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/coder"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/dataset"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/store"
)

type execOptions struct {
	name     string
	planPath string
	inputs   []string
	output   string
}

func newExecCmd(withApp appRunner) *cobra.Command {
	eo := &execOptions{}
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Generate and run code for an existing plan",
		Long: `Runs the code generation loop for a plan file without the planning
conversation. The script is executed in the directory of the output file.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			return runExec(cmd, a, eo)
		}),
	}
	cmd.Flags().StringVarP(&eo.name, "name", "n", "workflow", "workflow name used for the code artifact")
	cmd.Flags().StringVarP(&eo.planPath, "plan", "p", "", "business logic plan file")
	cmd.Flags().StringSliceVarP(&eo.inputs, "input", "i", nil, "input CSV file (repeatable)")
	cmd.Flags().StringVarP(&eo.output, "output", "o", "", "output CSV path (default: <outputs_dir>/<name>/<output_filename>)")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runExec(cmd *cobra.Command, a *app, eo *execOptions) error {
	plan, err := os.ReadFile(eo.planPath)
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}

	inputs := make([]string, 0, len(eo.inputs))
	for _, in := range eo.inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return fmt.Errorf("resolve input %s: %w", in, err)
		}
		inputs = append(inputs, abs)
	}

	output := eo.output
	if output == "" {
		output = filepath.Join(a.cfg.WorkflowDir(store.SanitizeName(eo.name)), a.cfg.Coder.OutputFilename)
	}
	output, err = filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("resolve output: %w", err)
	}
	workDir := filepath.Dir(output)
	if err := os.MkdirAll(workDir, 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	client, err := a.Client()
	if err != nil {
		return err
	}
	session, err := a.CoderSession(client, workDir)
	if err != nil {
		return err
	}

	var outcome *coder.Outcome
	runErr := a.out.WithSpinner("Generating and executing code", func() error {
		outcome, err = session.Run(cmd.Context(), coder.Request{
			WorkflowName: eo.name,
			Plan:         string(plan),
			InputFiles:   inputs,
			OutputPath:   output,
		})
		return err
	})

	if outcome != nil && outcome.Success {
		path, serr := store.NewArtifactWriter(a.cfg.Paths.GeneratedCodeDir, a.logger).SaveCode(eo.name, outcome.Code)
		if serr != nil {
			a.out.Warning(serr.Error())
		}
		if a.json {
			return writeJSON(cmd.OutOrStdout(), outcome)
		}
		showOutput(a.out, outcome.OutputPath, outcome.Validation, outcome.Preview, path)
		a.out.KeyValue([2]string{"iterations", strconv.Itoa(outcome.Iterations)})
		return nil
	}

	if a.json && outcome != nil {
		if jerr := writeJSON(cmd.OutOrStdout(), outcome); jerr != nil {
			return jerr
		}
	}
	return runErr
}

// showOutput prints the validated output and its preview.
func showOutput(out *ux.Printer, path string, v *dataset.Validation, preview, codePath string) {
	pairs := [][2]string{{"output", path}}
	if v != nil {
		pairs = append(pairs,
			[2]string{"rows", humanize.Comma(int64(v.RowCount))},
			[2]string{"columns", strconv.Itoa(v.ColumnCount)},
			[2]string{"size", humanize.Bytes(uint64(v.FileSizeMB * 1024 * 1024))},
		)
	}
	if codePath != "" {
		pairs = append(pairs, [2]string{"code", codePath})
	}
	out.Success("Output generated")
	out.KeyValue(pairs...)
	if preview != "" {
		out.Box("Preview", preview)
	}
}
