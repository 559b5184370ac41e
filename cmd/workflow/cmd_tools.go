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
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/config"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/dataset"
	"github.com/AjayMudhai07/workflow-builder-agent/services/workflow/syntax"
)

// errInvalidSyntax is returned by validate for code that does not parse.
var errInvalidSyntax = errors.New("syntax errors found")

func newValidateCmd(withApp appRunner) *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check the syntax of a script without running it",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			res, err := syntax.Validate(cmd.Context(), language, string(code))
			if err != nil {
				return err
			}
			if a.json {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else if res.Valid {
				a.out.Success(args[0] + ": syntax OK")
			} else {
				a.out.ErrorBox(args[0], res.Format())
			}
			if !res.Valid {
				return errInvalidSyntax
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&language, "language", "l", "python", "language of the file")
	return cmd
}

func newInspectCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <csv>...",
		Short: "Describe CSV files the way the planner and coder see them",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			infos, err := dataset.DescribeAll(cmd.Context(), dataset.CSVDescriber{}, args)
			if err != nil {
				return err
			}
			if a.json {
				return writeJSON(cmd.OutOrStdout(), infos)
			}
			for _, info := range infos {
				a.out.Title(info.Filename)
				a.out.KeyValue(
					[2]string{"file", info.Path},
					[2]string{"rows", humanize.Comma(int64(info.RowCount))},
					[2]string{"columns", strconv.Itoa(len(info.Columns))},
					[2]string{"size", humanize.Bytes(uint64(info.FileSizeMB * 1024 * 1024))},
				)
				for _, col := range info.Columns {
					a.out.Info(fmt.Sprintf("%s (%s)", col, info.Dtypes[col]))
				}
			}
			return nil
		}),
	}
}

func newInitConfigCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write the default configuration as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
