package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JohnNDvorak/mollitheta/internal/pipeline"
	"github.com/JohnNDvorak/mollitheta/internal/verify"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	Database string
}

// SweepSummary is the sweep command's output payload.
type SweepSummary struct {
	Runs       []RunSummary `json:"runs"`
	MaxPassing string       `json:"max_passing,omitempty"`
}

func (s SweepSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-10s %-10s %s\n", "THETA", "EXPONENT", "VERDICT", "RUN")
	for _, r := range s.Runs {
		fmt.Fprintf(&b, "%-12s %-10s %-10s %s\n", r.Theta, r.Exponent, r.Verdict, r.RunID)
	}
	if s.MaxPassing != "" {
		fmt.Fprintf(&b, "largest passing theta: %s", s.MaxPassing)
	} else {
		fmt.Fprint(&b, "no passing theta on the grid")
	}
	return b.String()
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep <config.yaml>",
		Short: "Run the reduction over a theta grid",
		Long: `Run the pipeline for every theta declared in a YAML sweep config and
report the verdict grid. A boundary mismatch in any run aborts the
whole sweep.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "trace database path (omit to skip storing)")

	return cmd
}

func runSweep(opts *SweepOptions, configPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	cfg, err := pipeline.LoadSweepConfig(configPath)
	if err != nil {
		formatter.Error(err.Error())
		return WrapExitError(ExitCommandError, "load sweep config", err)
	}

	out, err := pipeline.Sweep(cfg, pipeline.WithLogger(opts.Logger()))
	if err != nil {
		formatter.Error(err.Error())
		if verify.IsMismatch(err) {
			return WrapExitError(ExitFailure, "boundary mismatch", err)
		}
		return WrapExitError(ExitFailure, "sweep failed", err)
	}

	summary := SweepSummary{}
	for _, res := range out.Results {
		if opts.Database != "" {
			if err := storeResult(cmd.Context(), opts.Database, res); err != nil {
				formatter.Error(err.Error())
				return WrapExitError(ExitCommandError, "store trace", err)
			}
		}
		summary.Runs = append(summary.Runs, RunSummary{
			RunID:    res.RunID,
			Theta:    res.Theta.RatString(),
			K:        res.K,
			Verdict:  string(res.Report.Verdict),
			Boundary: res.Report.Boundary.RatString(),
			Exponent: res.Report.ExponentAt.RatString(),
			Terms:    res.Ledger.Len(),
		})
	}
	if out.MaxPassing != nil {
		summary.MaxPassing = out.MaxPassing.RatString()
	}

	return formatter.Success(summary)
}
