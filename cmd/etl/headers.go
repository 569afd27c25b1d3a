package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"rosteretl/internal/config"
	"rosteretl/internal/datasource/file"
	"rosteretl/internal/excel"
	"rosteretl/internal/sectionmap"
	"rosteretl/internal/survey"
)

type headersFlags struct {
	configFlags
	sheet      string
	years      []int
	sectionMap string
	skipped    bool
}

func newHeadersCmd() *cobra.Command {
	var flags headersFlags
	cmd := &cobra.Command{
		Use:   "headers <workbook>",
		Short: "List the season question columns of a roster workbook",
		Long: `headers reads the header row of a roster workbook, recognizes its
"<season> <year> (<question>)" columns and prints where each one is stored.

Without --config the built-in seasons, years, student key aliases and section
map apply. With --config the survey block of the run file supplies them, so a
workbook that lists cleanly here passes the header checks of "etl run" with
that file. --years and --section-map override the run file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listHeaders(cmd, args[0], flags)
		},
	}
	cmd.Flags().StringVarP(&flags.path, "config", "c", "", "run file whose survey settings apply (default built-in settings)")
	cmd.Flags().StringSliceVar(&flags.envFiles, "env-file", nil, "dotenv files to load before reading the run file")
	cmd.Flags().StringVar(&flags.sheet, "sheet", config.DefaultRosterSheet, "worksheet holding the students")
	cmd.Flags().IntSliceVar(&flags.years, "years", nil, "survey years whose question sets must agree (default 2015-2018)")
	cmd.Flags().StringVar(&flags.sectionMap, "section-map", "", "YAML or workbook section map (default built-in)")
	cmd.Flags().BoolVar(&flags.skipped, "skipped", false, "also list header columns that are not questions")
	return cmd
}

func listHeaders(cmd *cobra.Command, path string, flags headersFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	opts, mapPath, err := headerSettings(cmd, flags)
	if err != nil {
		return err
	}
	sections, err := loadSectionMap(ctx, mapPath)
	if err != nil {
		return err
	}
	sheet, err := excel.ReadSheet(ctx, file.NewLocal(path), flags.sheet)
	if err != nil {
		return err
	}

	headers := sheet.Headers(0)
	err = survey.CheckStudentKey(headers, opts)
	var cat *survey.Catalog
	if err == nil {
		cat, err = survey.BuildCatalog(headers, opts)
	}
	var verr *survey.ValidationError
	if errors.As(err, &verr) {
		printProblems(cmd.ErrOrStderr(), path, verr.Problems)
		return errReported
	}
	if err != nil {
		return err
	}

	printCatalog(out, cat, sections)
	if flags.skipped {
		printSkipped(out, cat.Skipped)
	}
	fmt.Fprintf(out, "%d questions over semesters %v\n", len(cat.Questions), cat.Semesters())
	return nil
}

// headerSettings returns the catalog options and section map path, taken
// from the run file when --config is given and overridden by explicit flags.
func headerSettings(cmd *cobra.Command, flags headersFlags) (survey.Options, string, error) {
	var (
		opts    survey.Options
		mapPath string
	)
	if flags.path != "" {
		run, err := flags.load(cmd.ErrOrStderr(), nil)
		if err != nil {
			return survey.Options{}, "", err
		}
		opts, mapPath = run.Survey.CatalogOptions(), run.Survey.SectionMap
	}
	if cmd.Flags().Changed("years") {
		opts.Years = flags.years
	}
	if flags.sectionMap != "" {
		mapPath = flags.sectionMap
	}
	return opts, mapPath, nil
}

func printCatalog(w io.Writer, cat *survey.Catalog, sections *sectionmap.Map) {
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Column", "Season", "Year", "Question", "Stored as"})
	t.SetAutoWrapText(false)
	for _, q := range cat.Questions {
		target := "-"
		if tgt, ok := sections.Lookup(q.Text); ok {
			target = tgt.String()
		}
		t.Append([]string{q.Label, q.Season, q.Year, q.Text, target})
	}
	t.Render()
}

func printSkipped(w io.Writer, skipped []survey.SkippedHeader) {
	if len(skipped) == 0 {
		return
	}
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Column", "Header", "Reason"})
	t.SetAutoWrapText(false)
	for _, s := range skipped {
		t.Append([]string{s.Label, s.Header, s.Reason})
	}
	t.Render()
}

func printProblems(w io.Writer, source string, problems []string) {
	errorColor.Fprintf(w, "%s: %d problems\n", source, len(problems))
	for _, p := range problems {
		fmt.Fprintf(w, "  - %s\n", p)
	}
}
