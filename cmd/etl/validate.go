package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"rosteretl/internal/config"
)

// configFlags are shared by every command that reads a run file.
type configFlags struct {
	path     string
	envFiles []string
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "config", "c", "configs/run.json", "run file JSON path")
	cmd.Flags().StringSliceVar(&f.envFiles, "env-file", nil, "dotenv files to load before reading the run file (default ./.env when present)")
}

// load reads the dotenv files and the run file, prints every validation
// issue to w and fails when any of them is an error.
func (f *configFlags) load(w io.Writer, mutate func(*config.Run)) (config.Run, error) {
	if err := config.LoadEnv(f.envFiles...); err != nil {
		return config.Run{}, err
	}
	run, err := config.Load(f.path, nil)
	if err != nil {
		return config.Run{}, err
	}
	if mutate != nil {
		mutate(&run)
	}

	issues := config.ValidateRun(run)
	printIssues(w, issues)
	if config.HasErrors(issues) {
		return run, fmt.Errorf("%s: invalid run file: %w", f.path, errReported)
	}
	return run, nil
}

var (
	errorColor = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
	okColor    = color.New(color.FgGreen)
)

func printIssues(w io.Writer, issues []config.Issue) {
	for _, iss := range issues {
		c := warnColor
		if iss.Severity == config.SeverityError {
			c = errorColor
		}
		c.Fprintf(w, "%s", iss.Severity)
		fmt.Fprintf(w, ": %s: %s\n", iss.Path, iss.Message)
	}
}

func newValidateCmd() *cobra.Command {
	var flags configFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a run file without touching any source or database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			run, err := flags.load(cmd.ErrOrStderr(), nil)
			if err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "%s: ok", flags.path)
			fmt.Fprintf(cmd.OutOrStdout(), " (job %s, %d sources, storage %s)\n", run.Job, len(run.Sources), run.Storage.Kind)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
