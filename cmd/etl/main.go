package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rosteretl/internal/logging"

	// register all backends with the storage factory.
	// the run file picks one, so the binary carries support for all of them.
	_ "rosteretl/internal/storage/all"
)

var (
	verbose bool
	logger  = zap.NewNop()
)

// errReported marks a failure whose details were already printed.
var errReported = errors.New("failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fatalf("%v", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "etl",
		Short: "Load student rosters and survey spreadsheets into a relational database",
		Long: `etl reads roster exports carrying historical season survey columns, and
single-semester survey sheets bound through a question configuration, and
writes students, semesters, questionnaires and questionnaire sections to a
SQL database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")

	root.AddCommand(newRunCmd(), newValidateCmd(), newHeadersCmd(), newSchemaCmd())
	return root
}

// fatalf prints a formatted error message to stderr and exits with status 1.
func fatalf(format string, args ...any) {
	color.New(color.FgRed).Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
