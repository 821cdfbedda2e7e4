package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JohnNDvorak/mollitheta/internal/export"
	"github.com/JohnNDvorak/mollitheta/internal/pipeline"
	"github.com/JohnNDvorak/mollitheta/internal/trace"
	"github.com/JohnNDvorak/mollitheta/internal/verify"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Theta    string
	K        int
	Database string
	Output   string
}

// RunSummary is the run command's output payload.
type RunSummary struct {
	RunID    string `json:"run_id"`
	Theta    string `json:"theta"`
	K        int    `json:"k"`
	Verdict  string `json:"verdict"`
	Boundary string `json:"boundary"`
	Exponent string `json:"exponent"`
	Terms    int    `json:"terms"`
}

func (s RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", s.RunID)
	fmt.Fprintf(&b, "  theta    %s\n", s.Theta)
	fmt.Fprintf(&b, "  boundary %s\n", s.Boundary)
	fmt.Fprintf(&b, "  exponent %s\n", s.Exponent)
	fmt.Fprintf(&b, "  terms    %d\n", s.Terms)
	fmt.Fprintf(&b, "  verdict  %s", strings.ToUpper(s.Verdict))
	return b.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full reduction at one theta and verify it",
		Long: `Run the reduction pipeline at a single mollifier-length exponent theta,
apply the cited bounds, and verify the outcome against the published
boundary. Exit code 0 means Pass, 1 means Fail or a fatal mismatch.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Theta, "theta", "0.56", "mollifier length exponent, rational or decimal")
	cmd.Flags().IntVar(&opts.K, "k", 2, "number of mollifier pieces")
	cmd.Flags().StringVar(&opts.Database, "db", "", "trace database path (omit to skip storing)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the claims envelope to this file")

	return cmd
}

func runRun(opts *RunOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	theta, err := pipeline.ParseTheta(opts.Theta)
	if err != nil {
		formatter.Error(err.Error())
		return WrapExitError(ExitCommandError, "invalid theta", err)
	}

	res, err := pipeline.Run(theta, pipeline.WithK(opts.K), pipeline.WithLogger(opts.Logger()))
	if err != nil {
		formatter.Error(err.Error())
		if verify.IsMismatch(err) {
			return WrapExitError(ExitFailure, "boundary mismatch", err)
		}
		return WrapExitError(ExitFailure, "run failed", err)
	}

	if opts.Database != "" {
		if err := storeResult(cmd.Context(), opts.Database, res); err != nil {
			formatter.Error(err.Error())
			return WrapExitError(ExitCommandError, "store trace", err)
		}
	}

	if opts.Output != "" {
		envelope, err := export.Envelope(res.RunID, res.Report, res.Ledger)
		if err != nil {
			formatter.Error(err.Error())
			return WrapExitError(ExitCommandError, "export envelope", err)
		}
		if err := os.WriteFile(opts.Output, envelope, 0o644); err != nil {
			formatter.Error(err.Error())
			return WrapExitError(ExitCommandError, "write envelope", err)
		}
	}

	summary := RunSummary{
		RunID:    res.RunID,
		Theta:    res.Theta.RatString(),
		K:        res.K,
		Verdict:  string(res.Report.Verdict),
		Boundary: res.Report.Boundary.RatString(),
		Exponent: res.Report.ExponentAt.RatString(),
		Terms:    res.Ledger.Len(),
	}
	if err := formatter.Success(summary); err != nil {
		return err
	}

	if res.Report.Verdict != verify.OutcomePass {
		return NewExitError(ExitFailure, fmt.Sprintf("theta %s is past the admissible boundary", summary.Theta))
	}
	return nil
}

func storeResult(ctx context.Context, path string, res *pipeline.Result) error {
	store, err := trace.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	rec := trace.RunRecord{
		ID:        res.RunID,
		Theta:     res.Theta.RatString(),
		K:         res.K,
		Verdict:   string(res.Report.Verdict),
		Boundary:  res.Report.Boundary.RatString(),
		Exponent:  res.Report.ExponentAt.RatString(),
		Governing: res.Report.Governing.String(),
	}
	if err := store.WriteRun(ctx, rec); err != nil {
		return err
	}
	return store.WriteTerms(ctx, res.RunID, res.Ledger.All())
}
