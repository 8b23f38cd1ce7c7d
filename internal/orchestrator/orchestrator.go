// Package orchestrator analyzes several reports in parallel with timeout
// and graceful signal handling.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/enrich"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/output"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/report"
)

// Input is one report document to analyze.
type Input struct {
	Name string
	Data []byte
}

// Outcome is the analysis of one Input. Exactly one of Result and Err is set.
type Outcome struct {
	Name    string
	Result  *model.AnalysisResult
	Err     error
	Elapsed time.Duration
}

// Options configures a batch run.
type Options struct {
	Profile string
	// Report is used as given. Callers wanting the profile's sizes build
	// it with ProfileConfig.Apply before overlaying their own settings.
	Report report.Config
	// Enricher, when set, runs after each successful parse. It is also set
	// implicitly by profiles that enable enrichment.
	Enricher    enrich.Enricher
	Attachments []enrich.RawFile
	Quiet       bool
	Verbose     bool
	// HandleSignals cancels the batch on SIGINT/SIGTERM.
	HandleSignals bool
}

// Orchestrator coordinates report parsing.
type Orchestrator struct {
	opts     Options
	profile  ProfileConfig
	progress *output.Progress
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	profile := GetProfile(opts.Profile)
	if profile.Enrich && opts.Enricher == nil {
		opts.Enricher = enrich.NewLocal(model.RoleAdministrator)
	}
	progress := output.NewVerboseProgress(!opts.Quiet, opts.Verbose)
	if opts.Report.Logger == nil {
		opts.Report.Logger = progress
	}
	return &Orchestrator{opts: opts, profile: profile, progress: progress}
}

// Run parses every input concurrently. Outcomes keep input order. A
// per-input failure is recorded in its Outcome; Run itself only fails when
// every input failed.
func (o *Orchestrator) Run(ctx context.Context, inputs []Input) ([]Outcome, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no reports to analyze")
	}

	ctx, cancel := context.WithTimeout(ctx, o.profile.Timeout)
	defer cancel()

	// Signal handling is started after all context derivations.
	if o.opts.HandleSignals {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sigCh:
				o.progress.Log("Received %v, stopping analysis...", sig)
				cancel()
			case <-ctx.Done():
			}
		}()
		defer signal.Stop(sigCh)
	}

	o.progress.Log("Starting analysis: profile=%s, reports=%d", o.opts.Profile, len(inputs))

	outcomes := make([]Outcome, len(inputs))
	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in Input) {
			defer wg.Done()
			outcomes[i] = o.analyze(ctx, in)
		}(i, in)
	}
	wg.Wait()

	failed := 0
	for _, oc := range outcomes {
		if oc.Err != nil {
			failed++
		}
	}
	o.progress.Log("Analysis complete. %d ok, %d failed", len(outcomes)-failed, failed)
	if failed == len(outcomes) {
		return outcomes, fmt.Errorf("all %d reports failed: %w", failed, outcomes[0].Err)
	}
	return outcomes, nil
}

func (o *Orchestrator) analyze(ctx context.Context, in Input) Outcome {
	start := time.Now()
	oc := Outcome{Name: in.Name}

	if err := ctx.Err(); err != nil {
		o.progress.Log("  [%s] skipped: %v", in.Name, err)
		oc.Err = fmt.Errorf("%s: %w", in.Name, err)
		return oc
	}

	o.progress.Log("  [%s] parsing...", in.Name)
	result, err := report.ParseBytes(in.Data, o.opts.Report)
	if err != nil {
		o.progress.Log("  [%s] error: %v", in.Name, err)
		oc.Err = fmt.Errorf("%s: %w", in.Name, err)
		oc.Elapsed = time.Since(start)
		return oc
	}

	if o.opts.Enricher != nil {
		enriched, err := o.opts.Enricher.Enrich(ctx, result, o.opts.Attachments)
		if err != nil {
			o.progress.Log("  [%s] enrichment skipped: %v", in.Name, err)
		} else {
			result = enriched
		}
	}

	oc.Result = result
	oc.Elapsed = time.Since(start)
	o.progress.Log("  [%s] done (%s) health=%d/100, anomalies=%d",
		in.Name, oc.Elapsed.Round(time.Millisecond), result.HealthScore, len(result.Anomalies))
	return oc
}
