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
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/orchestrator"
)

func newStatusCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "status <name>",
		Short: "Show the persisted state of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			st, err := a.Store()
			if err != nil {
				return err
			}
			data, err := st.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			state, err := orchestrator.UnmarshalState(data)
			if err != nil {
				return err
			}
			sum := orchestrator.Summarize(state, time.Now())
			if a.json {
				return writeJSON(cmd.OutOrStdout(), sum)
			}
			printSummary(a, sum)
			return nil
		}),
	}
}

func printSummary(a *app, sum orchestrator.WorkflowSummary) {
	a.out.Title("Workflow: " + sum.Name)
	pairs := [][2]string{
		{"run", sum.RunID},
		{"phase", string(sum.Phase)},
		{"duration", sum.Duration.Round(time.Second).String()},
		{"questions", strconv.Itoa(sum.Planner.QuestionsAsked)},
		{"plan approved", strconv.FormatBool(sum.Planner.PlanApproved)},
		{"iterations", strconv.Itoa(sum.Coder.Iterations)},
		{"refinements", strconv.Itoa(sum.Output.RefinementIterations)},
	}
	if sum.Output.OutputPath != "" {
		pairs = append(pairs, [2]string{"output", sum.Output.OutputPath})
	}
	if sum.Coder.CodePath != "" {
		pairs = append(pairs, [2]string{"code", sum.Coder.CodePath})
	}
	a.out.KeyValue(pairs...)
	for _, at := range sum.Coder.Attempts {
		a.out.Muted(fmt.Sprintf("attempt %d: %s %s", at.Iteration, at.Status, firstLine(at.Error)))
	}
	switch {
	case sum.Error != "":
		a.out.Error(sum.Error)
	case sum.IsSuccessful:
		a.out.Success("Completed")
	}
}

func newListCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted workflows",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			st, err := a.Store()
			if err != nil {
				return err
			}
			names, err := st.List(cmd.Context())
			if err != nil {
				return err
			}

			sums := make([]orchestrator.WorkflowSummary, 0, len(names))
			for _, name := range names {
				data, err := st.Load(cmd.Context(), name)
				if err != nil {
					a.logger.Warn("Skipping unreadable workflow", "workflow", name, "error", err)
					continue
				}
				state, err := orchestrator.UnmarshalState(data)
				if err != nil {
					a.logger.Warn("Skipping corrupt workflow", "workflow", name, "error", err)
					continue
				}
				sums = append(sums, orchestrator.Summarize(state, time.Now()))
			}

			if a.json {
				return writeJSON(cmd.OutOrStdout(), sums)
			}
			if len(sums) == 0 {
				a.out.Info("No workflows")
				return nil
			}
			for _, s := range sums {
				a.out.KeyValue([2]string{s.Name, string(s.Phase)})
			}
			return nil
		}),
	}
}

func newDeleteCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete the persisted state of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			st, err := a.Store()
			if err != nil {
				return err
			}
			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.out.Success("Deleted " + args[0])
			return nil
		}),
	}
}
