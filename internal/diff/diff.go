// Package diff compares two analysis results and highlights regressions/improvements.
package diff

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
)

// DiffReport contains the comparison between two analyses.
type DiffReport struct {
	Baseline     string          `json:"baseline"`
	Current      string          `json:"current"`
	Changes      []MetricChange  `json:"changes"`
	Regressions  int             `json:"regressions"`
	Improvements int             `json:"improvements"`
	HealthDelta  int             `json:"healthDelta"` // positive = improved
	NewAnomalies []model.Anomaly `json:"newAnomalies"`
	Resolved     []model.Anomaly `json:"resolvedAnomalies"`
}

// MetricChange represents a single metric difference between analyses.
type MetricChange struct {
	Category     string  `json:"category"`
	Metric       string  `json:"metric"`
	OldValue     float64 `json:"oldValue"`
	NewValue     float64 `json:"newValue"`
	Delta        float64 `json:"delta"`
	DeltaPct     float64 `json:"deltaPct"`
	Direction    string  `json:"direction"`    // "regression", "improvement", "unchanged"
	Significance string  `json:"significance"` // "high", "medium", "low"
}

// LoadResult reads a JSON analysis written by `bwlens analyze`.
func LoadResult(path string) (*model.AnalysisResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var result model.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &result, nil
}

// Compare computes differences between two analyses. Baseline and Current
// labels are left for the caller to fill in.
func Compare(baseline, current *model.AnalysisResult) *DiffReport {
	diff := &DiffReport{
		Changes:      []MetricChange{},
		HealthDelta:  current.HealthScore - baseline.HealthScore,
		NewAnomalies: []model.Anomaly{},
		Resolved:     []model.Anomaly{},
	}

	// Memory
	oldHeap, newHeap := baseline.MemoryAnalysis.Heap, current.MemoryAnalysis.Heap
	addChange(diff, "memory", "heap_used_bytes", float64(oldHeap.Used), float64(newHeap.Used), true)
	if oldHeap.Max > 0 && newHeap.Max > 0 {
		addChange(diff, "memory", "heap_utilization_pct", pct(oldHeap.Used, oldHeap.Max), pct(newHeap.Used, newHeap.Max), true)
	}
	addChange(diff, "memory", "nonheap_used_bytes",
		float64(baseline.MemoryAnalysis.NonHeap.Used), float64(current.MemoryAnalysis.NonHeap.Used), true)

	// Threads
	oldT, newT := baseline.ThreadAnalysis, current.ThreadAnalysis
	addChange(diff, "threads", "total", float64(oldT.TotalThreads), float64(newT.TotalThreads), true)
	addChange(diff, "threads", "peak", float64(oldT.PeakThreads), float64(newT.PeakThreads), true)
	addChange(diff, "threads", "blocked",
		float64(oldT.CountInState(model.StateBlocked)), float64(newT.CountInState(model.StateBlocked)), true)
	addChange(diff, "threads", "deadlocked", float64(len(oldT.DeadlockedThreads)), float64(len(newT.DeadlockedThreads)), true)
	addChange(diff, "threads", "problematic",
		float64(problematic(baseline)), float64(problematic(current)), true)
	addChange(diff, "threads", "high_priority",
		float64(baseline.DetailedThreadReport.CountByPriority(model.PriorityHigh)),
		float64(current.DetailedThreadReport.CountByPriority(model.PriorityHigh)), true)

	// Jobs
	oldS, newS := baseline.ProcessStats, current.ProcessStats
	addChange(diff, "jobs", "faulted", float64(oldS.TotalJobsFaulted), float64(newS.TotalJobsFaulted), true)
	addChange(diff, "jobs", "active", float64(oldS.TotalActiveJobs), float64(newS.TotalActiveJobs), true)
	if oldS.TotalJobsCreated > 0 && newS.TotalJobsCreated > 0 {
		addChange(diff, "jobs", "fault_ratio_pct",
			pct(oldS.TotalJobsFaulted, oldS.TotalJobsCreated), pct(newS.TotalJobsFaulted, newS.TotalJobsCreated), true)
	}

	compareActivities(diff, baseline, current)
	compareAnomalies(diff, baseline.Anomalies, current.Anomalies)

	// Tally regressions vs improvements
	for _, c := range diff.Changes {
		switch c.Direction {
		case "regression":
			diff.Regressions++
		case "improvement":
			diff.Improvements++
		}
	}

	return diff
}

func pct(part, whole uint64) float64 {
	return float64(part) / float64(whole) * 100
}

func problematic(r *model.AnalysisResult) int {
	if r.DetailedThreadReport == nil {
		return 0
	}
	return len(r.DetailedThreadReport.ProblematicThreads)
}

func addChange(diff *DiffReport, category, metric string, oldVal, newVal float64, higherIsWorse bool) {
	delta := newVal - oldVal
	deltaPct := 0.0
	if oldVal != 0 {
		deltaPct = (delta / math.Abs(oldVal)) * 100
	} else if newVal != 0 {
		// From zero any appearance counts as a full change.
		deltaPct = math.Copysign(100, delta)
	}

	// Skip negligible changes
	if math.Abs(deltaPct) < 1.0 && math.Abs(delta) < 0.1 {
		return
	}

	direction := "unchanged"
	if higherIsWorse {
		if deltaPct > 5 {
			direction = "regression"
		} else if deltaPct < -5 {
			direction = "improvement"
		}
	} else {
		if deltaPct < -5 {
			direction = "regression"
		} else if deltaPct > 5 {
			direction = "improvement"
		}
	}

	significance := "low"
	absPct := math.Abs(deltaPct)
	if absPct >= 50 {
		significance = "high"
	} else if absPct >= 20 {
		significance = "medium"
	}

	diff.Changes = append(diff.Changes, MetricChange{
		Category:     category,
		Metric:       metric,
		OldValue:     oldVal,
		NewValue:     newVal,
		Delta:        delta,
		DeltaPct:     deltaPct,
		Direction:    direction,
		Significance: significance,
	})
}

// compareActivities compares the max elapsed time of activities present in both.
func compareActivities(diff *DiffReport, baseline, current *model.AnalysisResult) {
	oldActs := collectActivities(baseline)
	newActs := collectActivities(current)

	names := make([]string, 0, len(newActs))
	for name := range newActs {
		if _, ok := oldActs[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		addChange(diff, "activity", name+"_max_ms", float64(oldActs[name]), float64(newActs[name]), true)
	}
}

func collectActivities(r *model.AnalysisResult) map[string]uint64 {
	acts := make(map[string]uint64)
	for _, app := range r.Applications {
		for _, p := range app.Processes {
			for _, a := range p.Activities {
				acts[p.Name+"/"+a.Name] = a.MaxElapsedTime
			}
		}
	}
	return acts
}

func compareAnomalies(diff *DiffReport, baseline, current []model.Anomaly) {
	had := make(map[string]bool, len(baseline))
	for _, a := range baseline {
		had[a.Metric] = true
	}
	has := make(map[string]bool, len(current))
	for _, a := range current {
		has[a.Metric] = true
		if !had[a.Metric] {
			diff.NewAnomalies = append(diff.NewAnomalies, a)
		}
	}
	for _, a := range baseline {
		if !has[a.Metric] {
			diff.Resolved = append(diff.Resolved, a)
		}
	}
}

// FormatDiff returns a human-readable diff summary.
func FormatDiff(d *DiffReport) string {
	var sb strings.Builder

	sb.WriteString("=== Analysis Diff ===\n")
	if d.Baseline != "" {
		sb.WriteString(fmt.Sprintf("Baseline: %s\n", d.Baseline))
	}
	if d.Current != "" {
		sb.WriteString(fmt.Sprintf("Current:  %s\n", d.Current))
	}
	sb.WriteString("\n")

	symbol := "→"
	if d.HealthDelta > 0 {
		symbol = "↑"
	} else if d.HealthDelta < 0 {
		symbol = "↓"
	}
	sb.WriteString(fmt.Sprintf("Health Score: %+d %s\n", d.HealthDelta, symbol))
	sb.WriteString(fmt.Sprintf("Regressions: %d, Improvements: %d\n\n", d.Regressions, d.Improvements))

	// Show regressions first
	if d.Regressions > 0 {
		sb.WriteString("⚠ Regressions:\n")
		writeChanges(&sb, d.Changes, "regression")
		sb.WriteString("\n")
	}

	if d.Improvements > 0 {
		sb.WriteString("✓ Improvements:\n")
		writeChanges(&sb, d.Changes, "improvement")
		sb.WriteString("\n")
	}

	if len(d.NewAnomalies) > 0 {
		sb.WriteString("New anomalies:\n")
		for _, a := range d.NewAnomalies {
			sb.WriteString(fmt.Sprintf("  [%s] %s: %s\n", strings.ToUpper(a.Severity), a.Metric, a.Message))
		}
	}
	if len(d.Resolved) > 0 {
		sb.WriteString("Resolved anomalies:\n")
		for _, a := range d.Resolved {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", a.Metric, a.Message))
		}
	}

	return sb.String()
}

func writeChanges(sb *strings.Builder, changes []MetricChange, direction string) {
	for _, c := range changes {
		if c.Direction == direction {
			sb.WriteString(fmt.Sprintf("  [%s] %s/%s: %.2f → %.2f (%+.1f%%)\n",
				strings.ToUpper(c.Significance), c.Category, c.Metric,
				c.OldValue, c.NewValue, c.DeltaPct))
		}
	}
}
