// Package enrich adds summary layers on top of a parsed report without
// touching the parsed fields.
package enrich

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/output"
)

// RawFile is an auxiliary input (usually an AppNode log) passed through
// from the caller unparsed.
type RawFile struct {
	Name string
	Data []byte
}

// Enricher returns a new result with optional fields populated. The input
// result must not be modified.
type Enricher interface {
	Enrich(ctx context.Context, result *model.AnalysisResult, files []RawFile) (*model.AnalysisResult, error)
}

// Local is an offline Enricher deriving summaries from the parsed data.
type Local struct {
	Role model.Role
}

// NewLocal creates a Local enricher for role.
func NewLocal(role model.Role) *Local {
	return &Local{Role: role}
}

var _ Enricher = (*Local)(nil)

// Enrich implements Enricher.
func (l *Local) Enrich(ctx context.Context, result *model.AnalysisResult, files []RawFile) (*model.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("enrich: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("enrich: nil result")
	}

	out := *result
	out.Role = l.Role
	out.AISummary = buildSummary(result, scanLogs(files))
	out.DetailedApplicationReports = buildApplicationReports(result.Applications)
	out.AIContext = output.GenerateAIPrompt(&out, l.Role)
	return &out, nil
}

// logFinding is an error tally for one auxiliary file.
type logFinding struct {
	name       string
	errors     int
	exceptions int
}

// scanLogs counts ERROR lines and exception headers per file.
func scanLogs(files []RawFile) []logFinding {
	var findings []logFinding
	for _, f := range files {
		var lf logFinding
		lf.name = f.Name
		sc := bufio.NewScanner(bytes.NewReader(f.Data))
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			if strings.Contains(line, " ERROR ") || strings.HasPrefix(line, "ERROR") {
				lf.errors++
			}
			if strings.Contains(line, "Exception:") || strings.Contains(line, "Exception\t") || strings.HasSuffix(line, "Exception") {
				lf.exceptions++
			}
		}
		if lf.errors > 0 || lf.exceptions > 0 {
			findings = append(findings, lf)
		}
	}
	return findings
}

func buildSummary(r *model.AnalysisResult, logs []logFinding) *model.AISummary {
	s := &model.AISummary{
		HealthHighlights: []string{},
		AreasOfConcern:   []model.ApplicationWarning{},
	}

	s.HealthHighlights = append(s.HealthHighlights, fmt.Sprintf("Health score %d/100.", r.HealthScore))
	if n := len(r.Applications); n > 0 {
		running := 0
		for _, app := range r.Applications {
			if app.State == "Running" {
				running++
			}
		}
		s.HealthHighlights = append(s.HealthHighlights, fmt.Sprintf("%d of %d applications running.", running, n))
	}
	if len(r.ThreadAnalysis.DeadlockedThreads) == 0 {
		s.HealthHighlights = append(s.HealthHighlights, "No deadlocked threads reported by the JVM.")
	}
	if ps := r.ProcessStats; ps.TotalJobsCreated > 0 && ps.TotalJobsFaulted == 0 {
		s.HealthHighlights = append(s.HealthHighlights, fmt.Sprintf("%d jobs created without faults.", ps.TotalJobsCreated))
	}

	for _, a := range r.Anomalies {
		s.AreasOfConcern = append(s.AreasOfConcern, model.ApplicationWarning{
			Severity:    severityPriority(a.Severity),
			Description: a.Message + ".",
		})
	}
	if r.DetailedThreadReport != nil {
		s.AreasOfConcern = append(s.AreasOfConcern, r.DetailedThreadReport.Warnings...)
	}
	for _, lf := range logs {
		s.AreasOfConcern = append(s.AreasOfConcern, model.ApplicationWarning{
			Severity:    model.PriorityMedium,
			Description: fmt.Sprintf("%s: %d ERROR lines, %d exceptions.", lf.name, lf.errors, lf.exceptions),
		})
	}

	sort.SliceStable(s.AreasOfConcern, func(i, j int) bool {
		return s.AreasOfConcern[i].Severity.Rank() > s.AreasOfConcern[j].Severity.Rank()
	})
	return s
}

func severityPriority(sev string) model.Priority {
	switch sev {
	case "critical":
		return model.PriorityHigh
	case "warning":
		return model.PriorityMedium
	}
	return model.PriorityLow
}

// Fault ratio thresholds for process warnings, in percent.
const (
	processFaultHigh   = 5.0
	processFaultMedium = 1.0
)

func buildApplicationReports(apps []model.Application) []model.DetailedApplicationReport {
	reports := make([]model.DetailedApplicationReport, 0, len(apps))
	for _, app := range apps {
		rep := model.DetailedApplicationReport{
			ApplicationName: app.Name,
			ServiceCalls:    []model.ServiceCall{},
			Warnings:        []model.ApplicationWarning{},
		}

		var created, faulted uint64
		var slowest *model.Activity
		var slowestProc string
		for i := range app.Processes {
			p := &app.Processes[i]
			created += p.Created
			faulted += p.Faulted
			rep.ServiceCalls = append(rep.ServiceCalls, serviceCall(p))

			if ratio, ok := faultRatio(p.Faulted, p.Created); ok {
				switch {
				case ratio >= processFaultHigh:
					rep.Warnings = append(rep.Warnings, model.ApplicationWarning{
						Severity:    model.PriorityHigh,
						Description: fmt.Sprintf("Process %s faults %.2f%% of its jobs.", p.Name, ratio),
					})
				case ratio >= processFaultMedium:
					rep.Warnings = append(rep.Warnings, model.ApplicationWarning{
						Severity:    model.PriorityMedium,
						Description: fmt.Sprintf("Process %s faults %.2f%% of its jobs.", p.Name, ratio),
					})
				}
			}
			for j := range p.Activities {
				a := &p.Activities[j]
				if slowest == nil || a.MaxElapsedTime > slowest.MaxElapsedTime {
					slowest, slowestProc = a, p.Name
				}
				if a.Faulted > 0 {
					rep.Warnings = append(rep.Warnings, model.ApplicationWarning{
						Severity:    model.PriorityLow,
						Description: fmt.Sprintf("Activity %s in %s faulted %d times.", a.Name, p.Name, a.Faulted),
					})
				}
			}
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%s: %d processes, %d jobs created, %d faulted.", app.State, len(app.Processes), created, faulted)
		if slowest != nil {
			fmt.Fprintf(&sb, " Slowest activity: %s in %s (max %dms).", slowest.Name, slowestProc, slowest.MaxElapsedTime)
		}
		rep.PerformanceSummary = sb.String()
		reports = append(reports, rep)
	}
	return reports
}

// serviceCall treats one process as a called service: its jobs are the calls,
// average latency is total activity time per job.
func serviceCall(p *model.Process) model.ServiceCall {
	call := model.ServiceCall{
		ServiceName:    p.Name,
		CallCount:      p.Created,
		AverageLatency: "N/A",
		ErrorRate:      "N/A",
	}
	if p.Created == 0 {
		return call
	}
	var total uint64
	for _, a := range p.Activities {
		total += a.TotalElapsedTime
	}
	if len(p.Activities) > 0 {
		call.AverageLatency = fmt.Sprintf("%.1f ms", float64(total)/float64(p.Created))
	}
	ratio, _ := faultRatio(p.Faulted, p.Created)
	call.ErrorRate = fmt.Sprintf("%.2f%%", ratio)
	return call
}

func faultRatio(faulted, created uint64) (float64, bool) {
	if created == 0 {
		return 0, false
	}
	return float64(faulted) / float64(created) * 100, true
}
