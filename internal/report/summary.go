package report

import (
	"strconv"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
)

const maxKeyMetrics = 6

// KeyMetrics picks the headline numbers of a result, at most six, skipping
// the ones with nothing to report.
func KeyMetrics(r *model.AnalysisResult) []model.KeyMetric {
	metrics := []model.KeyMetric{}
	add := func(label, value string) {
		metrics = append(metrics, model.KeyMetric{Label: label, Value: value})
	}

	if n := len(r.Applications); n > 0 {
		add("Applications", strconv.Itoa(n))
	}
	if n := r.ThreadAnalysis.TotalThreads; n > 0 {
		add("Total Threads", strconv.Itoa(n))
	}
	if used := r.MemoryAnalysis.Heap.Used; used > 0 {
		add("Heap Used", FormatBytes(used))
	}
	if n := r.ProcessStats.TotalJobsFaulted; n > 0 {
		add("Jobs Faulted", formatThousands(n))
	}
	if r.DetailedThreadReport != nil {
		if n := len(r.DetailedThreadReport.ProblematicThreads); n > 0 {
			add("Problematic Threads", strconv.Itoa(n))
		}
	}
	if len(r.ThreadAnalysis.DeadlockedThreads) > 0 {
		add("Deadlocks", "Detected")
	}

	if len(metrics) > maxKeyMetrics {
		metrics = metrics[:maxKeyMetrics]
	}
	return metrics
}

// finish fills the derived fields once the parsed sections are in place.
func finish(r *model.AnalysisResult) {
	r.KeyMetrics = KeyMetrics(r)
	r.Anomalies = model.DetectAnomalies(r)
	r.HealthScore = model.ComputeHealthScore(r.Anomalies, r.DetailedThreadReport)
}
