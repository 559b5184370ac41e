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
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree.
func newRootCmd(d deps) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "workflow",
		Short:         "Build data-processing workflows from a conversation",
		Long:          `workflow interviews you about a data-processing task, writes a business logic plan, and generates, runs and repairs a Python script until it produces the output CSV.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print machine readable JSON")
	flags.StringVar(&opts.uxLevel, "ux", "", "output style (full, minimal, machine)")

	// withApp wraps a command body with app setup and teardown.
	withApp := func(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) (err error) {
			a, err := openApp(cmd, opts, d)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(); cerr != nil && err == nil {
					a.logger.Warn("Cleanup failed", "error", cerr)
				}
			}()
			return fn(cmd, a, args)
		}
	}

	root.AddCommand(
		newRunCmd(withApp),
		newExecCmd(withApp),
		newValidateCmd(withApp),
		newInspectCmd(withApp),
		newStatusCmd(withApp),
		newListCmd(withApp),
		newDeleteCmd(withApp),
		newServeCmd(withApp),
		newInitConfigCmd(),
	)
	return root
}

// appRunner is the wrapper produced by withApp.
type appRunner func(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error
