// bwlens: offline analyzer for TIBCO BusinessWorks AppNode HTML
// performance reports.
//
// Parses the report's system, memory, thread dump and application tables
// into a structured JSON analysis with anomalies, a health score and an
// AI-ready prompt.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/config"
	diffpkg "github.com/dmitriimaksimovdevelop/bwlens/internal/diff"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/enrich"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/orchestrator"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/output"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/report"
)

var (
	version = "0.1.0"
)

// Output formats of the analyze command.
const (
	formatJSON     = "json"
	formatMarkdown = "markdown"
	formatProm     = "prom"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "bwlens",
		Short: "Offline analyzer for BusinessWorks performance reports",
		Long: `bwlens turns a TIBCO BusinessWorks AppNode HTML performance report
into a structured JSON analysis.

Extracts OS, JVM memory and thread information, classifies the thread
dump, rebuilds the application/process/activity tree with its charts,
and scores overall health. Works fully offline.`,
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $"+config.EnvPath+")")

	loadConfig := func() (config.Config, error) {
		return config.Load(configPath)
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(loadConfig),
		newDiffCmd(),
		newSessionsCmd(loadConfig),
		newServeCmd(loadConfig),
		newMCPCmd(loadConfig),
	)
	return rootCmd
}

// analyzeOptions mirrors the analyze command flags.
type analyzeOptions struct {
	output   string
	format   string
	profile  string
	role     string
	aiPrompt bool
	enrich   bool
	save     bool
	utc      bool
	quiet    bool
	verbose  bool
}

func newAnalyzeCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <report.html> [more.html|app.log ...]",
		Short: "Analyze one or more HTML performance reports",
		Long: `Parse every .html argument as a report. Other files (AppNode logs)
are passed to the enricher as attachments when --enrich is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cfg, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "-", "Output file path (- for stdout)")
	cmd.Flags().StringVar(&opts.format, "format", formatJSON, "Output format: json, markdown, prom")
	cmd.Flags().StringVarP(&opts.profile, "profile", "p", "standard", "Analysis profile: quick, standard, deep")
	cmd.Flags().StringVar(&opts.role, "role", "Administrator", "Audience: Executive, Administrator, Developer")
	cmd.Flags().BoolVar(&opts.aiPrompt, "ai-prompt", false, "Include AI analysis prompt in output")
	cmd.Flags().BoolVar(&opts.enrich, "enrich", false, "Add offline AI summary and per-application reports")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Store the analysis as a session")
	cmd.Flags().BoolVar(&opts.utc, "utc", false, "Render chart timestamps in UTC")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress progress output")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func runAnalyze(ctx context.Context, cfg config.Config, args []string, opts analyzeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch opts.format {
	case formatJSON, formatMarkdown, formatProm:
	default:
		return fmt.Errorf("unknown format %q (want json, markdown or prom)", opts.format)
	}

	role := model.ParseRole(opts.role)
	if role == "" {
		return fmt.Errorf("unknown role %q", opts.role)
	}

	inputs, attachments, err := loadInputs(args)
	if err != nil {
		return err
	}
	if opts.format == formatProm && len(inputs) > 1 {
		return fmt.Errorf("prom format supports a single report, got %d", len(inputs))
	}

	base := orchestrator.GetProfile(opts.profile).Apply(report.DefaultConfig())
	reportCfg := cfg.ReportConfigOver(base)
	if opts.utc {
		reportCfg.Location = time.UTC
	}
	orchOpts := orchestrator.Options{
		Profile:       opts.profile,
		Report:        reportCfg,
		Attachments:   attachments,
		Quiet:         opts.quiet,
		Verbose:       opts.verbose,
		HandleSignals: true,
	}
	if opts.enrich {
		orchOpts.Enricher = enrich.NewLocal(role)
	}

	outcomes, err := orchestrator.New(orchOpts).Run(ctx, inputs)
	if err != nil {
		return err
	}

	if opts.aiPrompt {
		for i := range outcomes {
			outcomes[i].Result = withAIContext(outcomes[i].Result, role)
		}
	}

	if opts.save {
		if err := saveOutcomes(ctx, cfg, outcomes); err != nil {
			return err
		}
	}

	return writeOutcomes(outcomes, opts.format, opts.output)
}

// withAIContext returns a copy of result carrying an AI prompt for role.
// Results that already have one, and nil results, are returned unchanged.
func withAIContext(result *model.AnalysisResult, role model.Role) *model.AnalysisResult {
	if result == nil || result.AIContext != nil {
		return result
	}
	out := *result
	out.AIContext = output.GenerateAIPrompt(&out, role)
	return &out
}

// loadInputs splits args into HTML reports and raw attachments.
func loadInputs(paths []string) ([]orchestrator.Input, []enrich.RawFile, error) {
	var (
		inputs      []orchestrator.Input
		attachments []enrich.RawFile
	)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		name := filepath.Base(path)
		if report.IsHTMLName(path) {
			inputs = append(inputs, orchestrator.Input{Name: name, Data: data})
		} else {
			attachments = append(attachments, enrich.RawFile{Name: name, Data: data})
		}
	}
	if len(inputs) == 0 {
		return nil, nil, fmt.Errorf("no .html report among %d file(s)", len(paths))
	}
	return inputs, attachments, nil
}

// batchEntry is one report of a multi-report JSON output.
type batchEntry struct {
	Name   string                `json:"name"`
	Result *model.AnalysisResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func writeOutcomes(outcomes []orchestrator.Outcome, format, path string) error {
	if format == formatJSON {
		if len(outcomes) == 1 {
			return output.WriteJSON(outcomes[0].Result, path)
		}
		batch := make([]batchEntry, 0, len(outcomes))
		for _, oc := range outcomes {
			e := batchEntry{Name: oc.Name, Result: oc.Result}
			if oc.Err != nil {
				e.Error = oc.Err.Error()
			}
			batch = append(batch, e)
		}
		return output.WriteJSON(batch, path)
	}

	var buf bytes.Buffer
	for i, oc := range outcomes {
		if oc.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", oc.Name, oc.Err)
			continue
		}
		switch format {
		case formatMarkdown:
			if i > 0 {
				buf.WriteString("\n---\n\n")
			}
			buf.WriteString(output.FormatMarkdown(oc.Result, time.Now()))
		case formatProm:
			if err := output.WritePrometheus(&buf, oc.Result); err != nil {
				return err
			}
		}
	}
	return writeText(buf.Bytes(), path)
}

func writeText(data []byte, path string) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

func saveOutcomes(ctx context.Context, cfg config.Config, outcomes []orchestrator.Outcome) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	for _, oc := range outcomes {
		if oc.Result == nil {
			continue
		}
		sess, err := store.Save(ctx, oc.Result, []string{oc.Name})
		if err != nil {
			return fmt.Errorf("save %s: %w", oc.Name, err)
		}
		fmt.Fprintf(os.Stderr, "Saved %s as %s\n", oc.Name, sess.ID)
	}
	return nil
}

func newDiffCmd() *cobra.Command {
	var diffOutput string

	diffCmd := &cobra.Command{
		Use:   "diff <baseline.json> <current.json>",
		Short: "Compare two bwlens analyses",
		Long:  "Produce a diff showing memory, thread and job deltas plus new/resolved anomalies.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(os.Stdout, args[0], args[1], diffOutput)
		},
	}
	diffCmd.Flags().StringVarP(&diffOutput, "output", "o", "-", "Output diff file path")
	return diffCmd
}

// runDiff handles the `diff` command.
func runDiff(w io.Writer, baselinePath, currentPath, outputPath string) error {
	baseline, err := diffpkg.LoadResult(baselinePath)
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}
	current, err := diffpkg.LoadResult(currentPath)
	if err != nil {
		return fmt.Errorf("load current: %w", err)
	}

	result := diffpkg.Compare(baseline, current)
	result.Baseline = baselinePath
	result.Current = currentPath

	if outputPath == "-" {
		// Print human-readable diff
		fmt.Fprint(w, diffpkg.FormatDiff(result))
		return nil
	}
	// Write JSON diff
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0644)
}
