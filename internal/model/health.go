package model

// ComputeHealthScore computes a 0-100 health score.
// 100 = healthy, 0 = critical.
func ComputeHealthScore(anomalies []Anomaly, threads *DetailedThreadReport) int {
	score := 100

	for _, a := range anomalies {
		switch a.Severity {
		case "critical":
			score -= 10
		case "warning":
			score -= 5
		}
	}

	// Thread warnings are already deduplicated, so this is at most two deductions.
	if threads != nil {
		for _, w := range threads.Warnings {
			score -= warningWeight(w.Severity)
		}
	}

	// Clamp to [0, 100]
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func warningWeight(p Priority) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}
