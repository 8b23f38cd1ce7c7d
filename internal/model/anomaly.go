package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Threshold defines an anomaly detection rule over a parsed report.
type Threshold struct {
	Metric    string
	Category  string
	Warning   float64
	Critical  float64 // zero means warning only
	Evaluator func(result *AnalysisResult) (float64, bool)
	Message   func(value float64) string
}

// DefaultThresholds returns the built-in anomaly thresholds.
func DefaultThresholds() []Threshold {
	return []Threshold{
		// Memory
		{
			Metric: "heap_utilization", Category: "memory",
			Warning: 80, Critical: 95,
			Evaluator: func(r *AnalysisResult) (float64, bool) {
				return utilizationPct(r.MemoryAnalysis.Heap)
			},
			Message: func(v float64) string {
				return fmt.Sprintf("JVM heap at %.1f%% of max", v)
			},
		},
		{
			Metric: "nonheap_utilization", Category: "memory",
			Warning: 85, Critical: 95,
			Evaluator: func(r *AnalysisResult) (float64, bool) {
				return utilizationPct(r.MemoryAnalysis.NonHeap)
			},
			Message: func(v float64) string {
				return fmt.Sprintf("Non-heap (metaspace, code cache) at %.1f%% of max", v)
			},
		},
		// CPU
		{
			Metric: "jvm_cpu_load", Category: "cpu",
			Warning: 70, Critical: 90,
			Evaluator: func(r *AnalysisResult) (float64, bool) {
				s := strings.TrimSuffix(strings.TrimSpace(r.SystemInfo.CPULoad), "%")
				v, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return 0, false
				}
				return v, true
			},
			Message: func(v float64) string {
				return fmt.Sprintf("JVM CPU load at %.1f%%", v)
			},
		},
		// Jobs
		{
			Metric: "job_fault_ratio", Category: "jobs",
			Warning: 1, Critical: 5, // percent of created jobs
			Evaluator: func(r *AnalysisResult) (float64, bool) {
				s := r.ProcessStats
				if s.TotalJobsCreated == 0 {
					return 0, false
				}
				return float64(s.TotalJobsFaulted) / float64(s.TotalJobsCreated) * 100, true
			},
			Message: func(v float64) string {
				return fmt.Sprintf("%.2f%% of created jobs faulted", v)
			},
		},
		// Threads
		{
			Metric: "blocked_threads", Category: "threads",
			Warning: 1, Critical: 5,
			Evaluator: func(r *AnalysisResult) (float64, bool) {
				if len(r.ThreadAnalysis.ThreadStates) == 0 {
					return 0, false
				}
				return float64(r.ThreadAnalysis.CountInState(StateBlocked)), true
			},
			Message: func(v float64) string {
				return fmt.Sprintf("%.0f threads in BLOCKED state", v)
			},
		},
		{
			Metric: "deadlocked_threads", Category: "threads",
			Warning: 1, Critical: 1,
			Evaluator: func(r *AnalysisResult) (float64, bool) {
				return float64(len(r.ThreadAnalysis.DeadlockedThreads)), true
			},
			Message: func(v float64) string {
				return fmt.Sprintf("%.0f deadlocked threads reported by the JVM", v)
			},
		},
		{
			Metric: "high_priority_threads", Category: "threads",
			Warning: 1, Critical: 5,
			Evaluator: func(r *AnalysisResult) (float64, bool) {
				if r.DetailedThreadReport == nil {
					return 0, false
				}
				return float64(r.DetailedThreadReport.CountByPriority(PriorityHigh)), true
			},
			Message: func(v float64) string {
				return fmt.Sprintf("%.0f threads flagged High (blocked or CPU-hot)", v)
			},
		},
		{
			Metric: "thread_peak_ratio", Category: "threads",
			Warning: 90, // current count as percent of peak, no critical tier
			Evaluator: func(r *AnalysisResult) (float64, bool) {
				t := r.ThreadAnalysis
				if t.PeakThreads <= 0 || t.TotalThreads <= 0 {
					return 0, false
				}
				return float64(t.TotalThreads) / float64(t.PeakThreads) * 100, true
			},
			Message: func(v float64) string {
				return fmt.Sprintf("Live thread count at %.1f%% of recorded peak", v)
			},
		},
	}
}

func (t Threshold) describe() string {
	if t.Critical <= 0 {
		return fmt.Sprintf("warning=%.0f", t.Warning)
	}
	return fmt.Sprintf("warning=%.0f, critical=%.0f", t.Warning, t.Critical)
}

func utilizationPct(m MemoryUsage) (float64, bool) {
	if m.Max == 0 {
		return 0, false
	}
	return float64(m.Used) / float64(m.Max) * 100, true
}

// DetectAnomalies runs all threshold checks against the result.
func DetectAnomalies(result *AnalysisResult) []Anomaly {
	anomalies := []Anomaly{}

	for _, threshold := range DefaultThresholds() {
		value, found := threshold.Evaluator(result)
		if !found {
			continue
		}

		var severity string
		switch {
		case threshold.Critical > 0 && value >= threshold.Critical:
			severity = "critical"
		case value >= threshold.Warning:
			severity = "warning"
		default:
			continue // below all thresholds
		}

		anomalies = append(anomalies, Anomaly{
			Severity:  severity,
			Category:  threshold.Category,
			Metric:    threshold.Metric,
			Message:   threshold.Message(value),
			Value:     fmt.Sprintf("%.2f", value),
			Threshold: threshold.describe(),
		})
	}

	return anomalies
}
