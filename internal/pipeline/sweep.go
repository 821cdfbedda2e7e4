package pipeline

import (
	"fmt"
	"math/big"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/JohnNDvorak/mollitheta/internal/verify"
)

// SweepConfig declares a theta sweep: the grid of thetas to run and the
// mollifier shape. Thetas are exact literals, rational or decimal.
type SweepConfig struct {
	K       int      `yaml:"k"`
	Thetas  []string `yaml:"thetas"`
	Workers int      `yaml:"workers"`
}

// ParseSweepConfig decodes a YAML sweep declaration.
func ParseSweepConfig(data []byte) (SweepConfig, error) {
	var cfg SweepConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SweepConfig{}, fmt.Errorf("sweep config: %w", err)
	}
	if cfg.K == 0 {
		cfg.K = 2
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if len(cfg.Thetas) == 0 {
		return SweepConfig{}, fmt.Errorf("sweep config: no thetas declared")
	}
	return cfg, nil
}

// LoadSweepConfig reads and decodes a YAML sweep file.
func LoadSweepConfig(path string) (SweepConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SweepConfig{}, fmt.Errorf("sweep config: %w", err)
	}
	return ParseSweepConfig(data)
}

// SweepResult aggregates a completed sweep, ordered by theta ascending.
type SweepResult struct {
	Results []*Result

	// MaxPassing is the largest theta on the grid with a Pass verdict,
	// nil if none passed.
	MaxPassing *big.Rat
}

// Sweep runs the pipeline over the configured theta grid with a bounded
// worker pool. Runs are independent; each owns a disjoint ledger.
//
// Any run error aborts the sweep. A boundary mismatch in one run means
// the derivation itself is broken, so partial sweep output would be
// meaningless.
func Sweep(cfg SweepConfig, opts ...Option) (*SweepResult, error) {
	thetas := make([]*big.Rat, len(cfg.Thetas))
	for i, s := range cfg.Thetas {
		theta, err := ParseTheta(s)
		if err != nil {
			return nil, err
		}
		thetas[i] = theta
	}

	workers := cfg.Workers
	if workers > len(thetas) {
		workers = len(thetas)
	}

	runOpts := append([]Option{WithK(cfg.K)}, opts...)
	results := make([]*Result, len(thetas))
	errs := make([]error, len(thetas))

	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], errs[i] = Run(thetas[i], runOpts...)
			}
		}()
	}
	for i := range thetas {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Theta.Cmp(results[j].Theta) < 0
	})

	out := &SweepResult{Results: results}
	for _, r := range results {
		if r.Report.Verdict == verify.OutcomePass {
			out.MaxPassing = r.Theta
		}
	}
	return out, nil
}
