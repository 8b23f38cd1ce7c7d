package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/report"
)

const markdownThreadLimit = 5

// FormatMarkdown renders a result as a shareable Markdown report.
func FormatMarkdown(result *model.AnalysisResult, now time.Time) string {
	var sb strings.Builder
	w := func(format string, args ...interface{}) {
		fmt.Fprintf(&sb, format, args...)
	}

	role := string(result.Role)
	if role == "" {
		role = "General"
	}
	w("# System Analysis Report - %s\n\n", now.Format("2006-01-02 15:04:05"))
	w("## %s Summary (%s)\n%s\n\n", result.AnalysisType, role, result.Summary)
	w("**Health Score:** %d/100\n\n", result.HealthScore)

	if s := result.AISummary; s != nil {
		w("### Health Highlights\n")
		for _, h := range s.HealthHighlights {
			w("- %s\n", h)
		}
		w("\n### Areas of Concern\n")
		if len(s.AreasOfConcern) == 0 {
			w("None identified.\n")
		}
		for _, c := range s.AreasOfConcern {
			w("- **[%s]** %s\n", c.Severity, c.Description)
		}
		w("\n")
	}

	w("## Key Metrics\n")
	for _, m := range result.KeyMetrics {
		w("- **%s:** %s\n", m.Label, m.Value)
	}
	w("\n")

	if len(result.Anomalies) > 0 {
		w("## Anomalies\n")
		for _, a := range result.Anomalies {
			w("- **[%s]** %s (%s)\n", strings.ToUpper(a.Severity), a.Message, a.Metric)
		}
		w("\n")
	}

	si := result.SystemInfo
	w("## System Information\n")
	w("- **OS:** %s %s\n", si.OSName, si.OSVersion)
	w("- **Architecture:** %s\n", si.Architecture)
	w("- **CPU Load:** %s\n", si.CPULoad)
	w("- **Memory:** %s free of %s\n\n", si.FreePhysicalMemory, si.TotalPhysicalMemory)

	mem := result.MemoryAnalysis
	w("## Memory Analysis\n")
	w("- **Heap Used:** %s / %s\n", report.FormatBytes(mem.Heap.Used), report.FormatBytes(mem.Heap.Max))
	w("- **Non-Heap Used:** %s / %s\n\n", report.FormatBytes(mem.NonHeap.Used), report.FormatBytes(mem.NonHeap.Max))

	ta := result.ThreadAnalysis
	deadlocked := "None"
	if len(ta.DeadlockedThreads) > 0 {
		deadlocked = strings.Join(ta.DeadlockedThreads, ", ")
	}
	w("## Thread Analysis\n")
	w("- **Total Threads:** %d\n", ta.TotalThreads)
	w("- **Peak Threads:** %d\n", ta.PeakThreads)
	w("- **Deadlocked Threads:** %s\n", deadlocked)
	if tr := result.DetailedThreadReport; tr != nil && len(tr.ProblematicThreads) > 0 {
		w("\n### Problematic Threads Identified\n")
		for i, t := range tr.ProblematicThreads {
			if i == markdownThreadLimit {
				break
			}
			w("- **%s** (State: %s, Priority: %s): %s\n", t.ThreadName, t.State, t.Priority, t.Details)
		}
	}
	w("\n")

	w("## Applications & Processes\n")
	w("**Total Jobs Created:** %d\n", result.ProcessStats.TotalJobsCreated)
	w("**Total Jobs Faulted:** %d\n\n", result.ProcessStats.TotalJobsFaulted)
	for _, app := range result.Applications {
		w("### [Application: %s]\n\n**State:** %s\n\n", app.Name, app.State)
		for _, proc := range app.Processes {
			w("#### [Process: %s]\n\n", proc.Name)
			w("- **Created:** %d\n- **Completed:** %d\n- **Faulted:** %d\n\n", proc.Created, proc.Completed, proc.Faulted)
			if len(proc.Activities) == 0 {
				continue
			}
			w("**Activities:**\n")
			for _, act := range proc.Activities {
				w("  - %s (Status: %s, Executed: %d, Faulted: %d, Max Time: %dms)\n",
					act.Name, act.Status, act.Executed, act.Faulted, act.MaxElapsedTime)
			}
			w("\n")
		}
		w("\n")
	}

	if len(result.DetailedApplicationReports) > 0 {
		w("## Application Reports\n")
		for _, ar := range result.DetailedApplicationReports {
			w("### %s\n%s\n", ar.ApplicationName, ar.PerformanceSummary)
			for _, warn := range ar.Warnings {
				w("- **[%s]** %s\n", warn.Severity, warn.Description)
			}
			w("\n")
		}
	}
	return sb.String()
}
