package report

import (
	"sort"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"golang.org/x/net/html"
)

// ComputeProcessStats sums the application summary table. Columns are
// name, created, active, suspended, faulted; shorter rows are ignored.
func ComputeProcessStats(table *html.Node) model.ProcessStats {
	var stats model.ProcessStats
	if table == nil {
		return stats
	}
	for _, row := range dataRows(table) {
		cs := cells(row)
		if len(cs) < 5 {
			continue
		}
		stats.TotalJobsCreated += parseCount(cellText(cs, 1))
		stats.TotalActiveJobs += parseCount(cellText(cs, 2))
		stats.TotalJobsFaulted += parseCount(cellText(cs, 4))
	}
	return stats
}

// SumProcessStats totals the process tree for reports without a summary
// table. Active jobs are created minus completed minus faulted, floored
// at zero.
func SumProcessStats(apps []model.Application) model.ProcessStats {
	var stats model.ProcessStats
	for _, app := range apps {
		for _, p := range app.Processes {
			stats.TotalJobsCreated += p.Created
			stats.TotalJobsFaulted += p.Faulted
			if done := p.Completed + p.Faulted; p.Created > done {
				stats.TotalActiveJobs += p.Created - done
			}
		}
	}
	return stats
}

// TopProcessesByJobs ranks all processes by created jobs, highest first.
// Ties keep report order.
func TopProcessesByJobs(apps []model.Application, n int) []model.ProcessRank {
	ranks := []model.ProcessRank{}
	for _, app := range apps {
		for _, p := range app.Processes {
			ranks = append(ranks, model.ProcessRank{Name: p.Name, Created: p.Created})
		}
	}
	sort.SliceStable(ranks, func(i, j int) bool {
		return ranks[i].Created > ranks[j].Created
	})
	return truncate(ranks, n)
}

// TopActivitiesByTime ranks all activities by max elapsed time, highest
// first. Ties keep report order.
func TopActivitiesByTime(apps []model.Application, n int) []model.ActivityRank {
	ranks := []model.ActivityRank{}
	for _, app := range apps {
		for _, p := range app.Processes {
			for _, a := range p.Activities {
				ranks = append(ranks, model.ActivityRank{Name: a.Name, Process: p.Name, MaxTime: a.MaxElapsedTime})
			}
		}
	}
	sort.SliceStable(ranks, func(i, j int) bool {
		return ranks[i].MaxTime > ranks[j].MaxTime
	})
	return truncate(ranks, n)
}

func truncate[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}
