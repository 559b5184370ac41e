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
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AjayMudhai07/workflow-builder-agent/pkg/ux"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/orchestrator"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/planner"
)

// Interactive commands understood at the prompts.
const (
	cmdPlan = "/plan"
	cmdQuit = "/quit"
)

type runOptions struct {
	name        string
	description string
	inputs      []string
	maxRefine   int
}

func newRunCmd(withApp appRunner) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan, generate and review a workflow interactively",
		Long: `Starts a planning conversation for a new workflow. Answer the planner's
questions, type /plan to ask for the plan right away, or /quit to stop.
After the plan is approved the code is generated and executed, and the
output can be refined with feedback before it is approved.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			return runInteractive(cmd, a, ro)
		}),
	}
	cmd.Flags().StringVarP(&ro.name, "name", "n", "", "workflow name")
	cmd.Flags().StringVarP(&ro.description, "description", "d", "", "what the workflow should do")
	cmd.Flags().StringSliceVarP(&ro.inputs, "input", "i", nil, "input CSV file (repeatable)")
	cmd.Flags().IntVar(&ro.maxRefine, "max-refinements", 0, "output refinement limit (0 uses the config)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runInteractive(cmd *cobra.Command, a *app, ro *runOptions) error {
	ctx := cmd.Context()

	inputs := make([]string, 0, len(ro.inputs))
	for _, in := range ro.inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return fmt.Errorf("resolve input %s: %w", in, err)
		}
		inputs = append(inputs, abs)
	}

	client, err := a.Client()
	if err != nil {
		return err
	}
	st, err := a.Store()
	if err != nil {
		return err
	}

	out := a.out
	o, err := orchestrator.New(a.cfg, orchestrator.Workflow{
		Name:        ro.name,
		Description: ro.description,
		InputFiles:  inputs,
	}, a.Planner(client), a.CoderFactory(client), st,
		orchestrator.WithLogger(a.logger),
		orchestrator.WithPhaseHook(func(from, to orchestrator.Phase) {
			out.Muted(fmt.Sprintf("%s %s → %s", ux.IconBullet, from, to))
		}),
	)
	if err != nil {
		return err
	}
	prompt := ux.NewPrompter(out, cmd.InOrStdin())

	out.Title("Workflow: " + ro.name)
	var reply *orchestrator.PlannerReply
	err = out.WithSpinner("Analyzing input files", func() error {
		reply, err = o.Start(ctx)
		return err
	})
	if err != nil {
		return err
	}

	// Planning interview.
	for !o.IsPlanReady() {
		showReply(out, reply)
		answer, err := prompt.Ask("Your answer:")
		if err != nil {
			return stopRun(cmd, a, o, err)
		}
		switch strings.ToLower(answer) {
		case "":
			continue
		case cmdQuit:
			return stopRun(cmd, a, o, errUserQuit)
		case cmdPlan:
			reply, err = o.RequestPlanGeneration(ctx, true)
		default:
			reply, err = o.ProcessUserInput(ctx, answer)
		}
		if err != nil {
			out.Error(err.Error())
		}
	}

	// Plan review.
	for {
		showReply(out, reply)
		answer, err := prompt.Ask("Approve the plan? (yes, feedback, or /quit):")
		if err != nil {
			return stopRun(cmd, a, o, err)
		}
		if isYes(answer) {
			break
		}
		if strings.EqualFold(answer, cmdQuit) {
			return stopRun(cmd, a, o, errUserQuit)
		}
		if answer == "" {
			continue
		}
		if reply, err = o.RefinePlan(ctx, answer); err != nil {
			out.Error(err.Error())
		}
	}

	// Code generation.
	var code *orchestrator.CodeResult
	genErr := out.WithSpinner("Generating and executing code", func() error {
		code, err = o.ApprovePlanAndGenerateCode(ctx)
		return err
	})
	if genErr != nil {
		if code != nil {
			showAttempts(out, code)
		}
		return finishRun(cmd, a, o, genErr)
	}
	showOutput(out, code.OutputPath, code.Validation, code.Preview, code.CodePath)

	// Output review.
	for {
		answer, err := prompt.Ask("Approve the output? (yes, feedback, or /quit):")
		if err != nil {
			return stopRun(cmd, a, o, err)
		}
		if isYes(answer) {
			break
		}
		if strings.EqualFold(answer, cmdQuit) {
			out.Warning("Workflow left in output review")
			return finishRun(cmd, a, o, nil)
		}
		if answer == "" {
			continue
		}

		var res *orchestrator.RefinementResult
		refErr := out.WithSpinner("Refining output", func() error {
			res, err = o.RefineOutput(ctx, answer, ro.maxRefine)
			return err
		})
		switch {
		case errors.Is(refErr, orchestrator.ErrRefinementLimit):
			out.Warning("No refinements left. Approve the output or /quit.")
		case refErr != nil:
			out.Warning("Previous output kept")
		default:
			showOutput(out, res.OutputPath, res.Validation, res.Preview, res.CodePath)
		}
	}

	done, err := o.ApproveOutputAndComplete(ctx)
	if err != nil {
		return err
	}
	out.Success(fmt.Sprintf("Workflow completed in %s", done.ExecutionTime.Round(time.Millisecond)))
	out.KeyValue([2]string{"output", done.OutputPath}, [2]string{"code", done.CodePath})
	return finishRun(cmd, a, o, nil)
}

var errUserQuit = errors.New("stopped by user")

// stopRun fails the workflow with cause and reports the final state.
func stopRun(cmd *cobra.Command, a *app, o *orchestrator.Orchestrator, cause error) error {
	if errors.Is(cause, ux.ErrNoInput) {
		cause = fmt.Errorf("input ended: %w", errUserQuit)
	}
	if err := o.Fail(cmd.Context(), cause.Error()); err != nil {
		a.logger.Warn("Could not mark workflow failed", "error", err)
	}
	a.out.Warning(cause.Error())
	return finishRun(cmd, a, o, cause)
}

// finishRun prints the JSON summary when requested and returns err.
func finishRun(cmd *cobra.Command, a *app, o *orchestrator.Orchestrator, err error) error {
	if a.json {
		if jerr := writeJSON(cmd.OutOrStdout(), o.Summary()); jerr != nil {
			return errors.Join(err, jerr)
		}
	}
	return err
}

func showReply(out *ux.Printer, reply *orchestrator.PlannerReply) {
	if reply == nil {
		return
	}
	if reply.ResponseType == planner.ResponsePlan {
		out.Box("Business Logic Plan", reply.Response)
		return
	}
	out.Info(reply.Response)
}

func showAttempts(out *ux.Printer, code *orchestrator.CodeResult) {
	for _, at := range code.Attempts {
		if at.Result == nil {
			continue
		}
		out.Muted(fmt.Sprintf("attempt %d: %s %s", at.Iteration, at.Result.Status, firstLine(at.Result.ErrorMessage)))
	}
	if code.Error != "" {
		out.ErrorBox("Code generation failed", code.Error)
	}
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "approve", "ok":
		return true
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
