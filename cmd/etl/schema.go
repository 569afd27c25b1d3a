package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rosteretl/internal/schema"
	"rosteretl/internal/storage"
)

func newSchemaCmd() *cobra.Command {
	var (
		flags  configFlags
		listed bool
	)
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create any missing tables in the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if listed {
				printTables(cmd, schema.Tables())
				return nil
			}

			run, err := flags.load(cmd.ErrOrStderr(), nil)
			if err != nil {
				return err
			}
			repo, err := openRepositoryFn(cmd.Context(), storage.Config{Kind: run.Storage.Kind, DSN: run.Storage.DSN})
			if err != nil {
				return fmt.Errorf("init repo: %w", err)
			}
			defer repo.Close()

			tables := schema.Tables()
			if err := repo.EnsureSchema(cmd.Context(), tables); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
			logger.Info("schema ensured", zap.String("storage", run.Storage.Kind), zap.Int("tables", len(tables)))
			okColor.Fprintf(out, "%d tables ensured in %s storage\n", len(tables), run.Storage.Kind)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&listed, "list", false, "print the tables and their columns instead of creating them")
	return cmd
}

func printTables(cmd *cobra.Command, tables []schema.Table) {
	t := tablewriter.NewWriter(cmd.OutOrStdout())
	t.SetHeader([]string{"Table", "Columns", "Unique"})
	t.SetAutoWrapText(false)
	for _, tbl := range tables {
		cols := make([]string, len(tbl.Columns))
		for i, c := range tbl.Columns {
			cols[i] = c.Name
		}
		t.Append([]string{tbl.Name, strconv.Itoa(len(cols)) + ": " + strings.Join(cols, ", "), strings.Join(tbl.Unique, ", ")})
	}
	t.Render()
}
