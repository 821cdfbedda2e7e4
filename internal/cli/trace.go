package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JohnNDvorak/mollitheta/internal/trace"
)

// TraceOptions holds flags for the trace command family.
type TraceOptions struct {
	*RootOptions
	Database string
}

// NewTraceCommand creates the trace command with its list/show
// subcommands.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect stored derivation traces",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "trace.db", "trace database path")

	cmd.AddCommand(newTraceListCommand(opts))
	cmd.AddCommand(newTraceShowCommand(opts))
	return cmd
}

func newTraceListCommand(opts *TraceOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			store, err := trace.Open(opts.Database)
			if err != nil {
				formatter.Error(err.Error())
				return WrapExitError(ExitCommandError, "open trace database", err)
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context())
			if err != nil {
				formatter.Error(err.Error())
				return WrapExitError(ExitCommandError, "list runs", err)
			}

			if opts.Format == "json" {
				return formatter.Success(runs)
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%-38s %-10s %-4s %-8s %s\n", "RUN", "THETA", "K", "VERDICT", "EXPONENT")
			for _, r := range runs {
				fmt.Fprintf(&b, "%-38s %-10s %-4d %-8s %s\n", r.ID, r.Theta, r.K, r.Verdict, r.Exponent)
			}
			fmt.Fprintf(&b, "%d run(s)", len(runs))
			return formatter.Success(b.String())
		},
	}
}

func newTraceShowCommand(opts *TraceOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Show the full term trace of a run",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			store, err := trace.Open(opts.Database)
			if err != nil {
				formatter.Error(err.Error())
				return WrapExitError(ExitCommandError, "open trace database", err)
			}
			defer store.Close()

			runID := args[0]
			run, ok, err := store.GetRun(cmd.Context(), runID)
			if err != nil {
				formatter.Error(err.Error())
				return WrapExitError(ExitCommandError, "get run", err)
			}
			if !ok {
				formatter.Error(fmt.Sprintf("run %q not on file", runID))
				return NewExitError(ExitCommandError, "unknown run")
			}

			terms, err := store.Terms(cmd.Context(), runID)
			if err != nil {
				formatter.Error(err.Error())
				return WrapExitError(ExitCommandError, "read terms", err)
			}

			if opts.Format == "json" {
				return formatter.Success(map[string]any{"run": run, "terms": terms})
			}

			var b strings.Builder
			fmt.Fprintf(&b, "run %s  theta=%s  k=%d  verdict=%s  boundary=%s\n",
				run.ID, run.Theta, run.K, run.Verdict, run.Boundary)
			fmt.Fprintf(&b, "governing %s\n", run.Governing)
			for _, rec := range terms {
				t := rec.Term
				fmt.Fprintf(&b, "  %-7s %-13s %-10s %s", t.ID, t.Kind, t.Status, rec.Scale)
				if t.Citation != "" {
					fmt.Fprintf(&b, "  [%s]", t.Citation)
				}
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%d term(s)", len(terms))
			return formatter.Success(b.String())
		},
	}
}
