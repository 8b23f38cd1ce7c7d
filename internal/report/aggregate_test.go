package report

import (
	"testing"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
)

func TestComputeProcessStats(t *testing.T) {
	doc := parseDoc(t, `<body><table>
		<tr><th>Name</th><th>Created</th><th>Active</th><th>Suspended</th><th>Faulted</th></tr>
		<tr><td>a</td><td>10</td><td>5</td><td>0</td><td>2</td></tr>
		<tr><td>b</td><td>7</td><td>3</td><td>0</td><td>1</td></tr>
		<tr><td>short</td><td>100</td></tr>
	</table></body>`)
	stats := ComputeProcessStats(findFirst(doc, "table"))
	want := model.ProcessStats{TotalJobsCreated: 17, TotalActiveJobs: 8, TotalJobsFaulted: 3}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if got := ComputeProcessStats(nil); got != (model.ProcessStats{}) {
		t.Errorf("nil table stats = %+v", got)
	}
}

func TestTopActivitiesByTimeStable(t *testing.T) {
	apps := []model.Application{{
		Name: "app",
		Processes: []model.Process{{
			Name: "p",
			Activities: []model.Activity{
				{Name: "first", MaxElapsedTime: 10},
				{Name: "second", MaxElapsedTime: 10},
				{Name: "slowest", MaxElapsedTime: 99},
				{Name: "third", MaxElapsedTime: 10},
			},
		}, {
			Name: "q",
			Activities: []model.Activity{
				{Name: "fourth", MaxElapsedTime: 10},
				{Name: "fifth", MaxElapsedTime: 10},
			},
		}},
	}}
	top := TopActivitiesByTime(apps, 5)
	want := []string{"slowest", "first", "second", "third", "fourth"}
	if len(top) != len(want) {
		t.Fatalf("top = %d, want %d", len(top), len(want))
	}
	for i, name := range want {
		if top[i].Name != name {
			t.Errorf("top[%d] = %s, want %s", i, top[i].Name, name)
		}
	}
	if top[4].Process != "q" {
		t.Errorf("top[4].Process = %s, want q", top[4].Process)
	}
}

func TestTopProcessesByJobs(t *testing.T) {
	apps := []model.Application{
		{Processes: []model.Process{{Name: "a", Created: 5}, {Name: "b", Created: 50}}},
		{Processes: []model.Process{{Name: "c", Created: 5}, {Name: "d", Created: 500}}},
	}
	top := TopProcessesByJobs(apps, 3)
	want := []string{"d", "b", "a"}
	if len(top) != 3 {
		t.Fatalf("top = %d, want 3", len(top))
	}
	for i, name := range want {
		if top[i].Name != name {
			t.Errorf("top[%d] = %s, want %s", i, top[i].Name, name)
		}
	}
	if got := TopProcessesByJobs(nil, 5); got == nil || len(got) != 0 {
		t.Errorf("empty ranking = %v, want empty non-nil", got)
	}
}

func TestSumProcessStats(t *testing.T) {
	tests := []struct {
		name string
		apps []model.Application
		want model.ProcessStats
	}{
		{"no applications", nil, model.ProcessStats{}},
		{
			"created minus completed and faulted",
			[]model.Application{{Processes: []model.Process{
				{Name: "p1", Created: 10, Completed: 7, Faulted: 2},
				{Name: "p2", Created: 5, Completed: 5},
			}}},
			model.ProcessStats{TotalJobsCreated: 15, TotalActiveJobs: 1, TotalJobsFaulted: 2},
		},
		{
			"active floored at zero",
			[]model.Application{{Processes: []model.Process{
				{Name: "p1", Created: 3, Completed: 3, Faulted: 1},
			}}},
			model.ProcessStats{TotalJobsCreated: 3, TotalActiveJobs: 0, TotalJobsFaulted: 1},
		},
		{
			"across applications",
			[]model.Application{
				{Processes: []model.Process{{Name: "a", Created: 4, Completed: 1}}},
				{Processes: []model.Process{{Name: "b", Created: 6, Completed: 2, Faulted: 3}}},
			},
			model.ProcessStats{TotalJobsCreated: 10, TotalActiveJobs: 4, TotalJobsFaulted: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SumProcessStats(tt.apps); got != tt.want {
				t.Errorf("SumProcessStats = %+v, want %+v", got, tt.want)
			}
		})
	}
}
