package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
)

func parseFixture(t *testing.T) *model.AnalysisResult {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Location = time.UTC
	result, err := ParseBytes(readTestdata(t, "bw_report.html"), cfg)
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	return result
}

func TestParseSystemInfo(t *testing.T) {
	r := parseFixture(t)
	want := model.SystemInfo{
		OSName:              "Linux",
		OSVersion:           "5.15.0-91-generic",
		Architecture:        "amd64",
		TotalPhysicalMemory: "15.5 GB",
		FreePhysicalMemory:  "2.25 GB",
		CPULoad:             "12.34%",
		AvailableProcessors: 8,
	}
	if r.SystemInfo != want {
		t.Errorf("systemInfo = %+v, want %+v", r.SystemInfo, want)
	}
	if r.AnalysisType != model.AnalysisLocal {
		t.Errorf("analysisType = %s", r.AnalysisType)
	}
}

func TestParseMemory(t *testing.T) {
	r := parseFixture(t)
	heap := r.MemoryAnalysis.Heap
	if heap.Used != 900*1024*1024 || heap.Max != 1<<30 || heap.Init != 256*1024*1024 {
		t.Errorf("heap = %+v", heap)
	}
	nonHeap := r.MemoryAnalysis.NonHeap
	if nonHeap.Init != 2496*1024 {
		t.Errorf("nonHeap.init = %d", nonHeap.Init)
	}
	if nonHeap.Max != 0 {
		t.Errorf("nonHeap.max = %d, want 0 for -1", nonHeap.Max)
	}
}

func TestParseThreads(t *testing.T) {
	r := parseFixture(t)
	ta := r.ThreadAnalysis
	if ta.TotalThreads != 120 || ta.PeakThreads != 150 || ta.DaemonThreads != 80 {
		t.Errorf("thread counts = %d/%d/%d", ta.TotalThreads, ta.PeakThreads, ta.DaemonThreads)
	}
	if len(ta.DeadlockedThreads) != 0 {
		t.Errorf("deadlocked = %v, want none", ta.DeadlockedThreads)
	}
	if len(ta.ThreadStates) != 4 {
		t.Fatalf("states = %d, want 4", len(ta.ThreadStates))
	}
	if ta.ThreadStates[2].State != model.StateTimedWaiting || ta.ThreadStates[2].Count != 25 {
		t.Errorf("states[2] = %+v", ta.ThreadStates[2])
	}
	if ta.CountInState(model.StateBlocked) != 5 {
		t.Errorf("blocked = %d, want 5", ta.CountInState(model.StateBlocked))
	}

	dr := r.DetailedThreadReport
	if dr == nil {
		t.Fatal("no detailed thread report")
	}
	if len(dr.ProblematicThreads) != 4 {
		t.Fatalf("problematic = %d, want 4", len(dr.ProblematicThreads))
	}
	p := dr.ProblematicThreads[0]
	if p.Priority != model.PriorityHigh {
		t.Errorf("priority = %s, want High", p.Priority)
	}
	for _, part := range []string{"High CPU Usage (12.50%).", "java.lang.Object"} {
		if !strings.Contains(p.Details, part) {
			t.Errorf("details = %q, missing %q", p.Details, part)
		}
	}
	if got := strings.Count(dr.ProblematicThreads[1].StackTraceSnippet, "\n"); got != 7 {
		t.Errorf("snippet line breaks = %d, want 7", got)
	}
	if dr.CountByPriority(model.PriorityLow) != 2 {
		t.Errorf("low = %d, want 2", dr.CountByPriority(model.PriorityLow))
	}
	if len(dr.Warnings) != 2 {
		t.Errorf("warnings = %+v", dr.Warnings)
	}
}

func TestParseApplicationsAndStats(t *testing.T) {
	r := parseFixture(t)
	if len(r.Applications) != 3 {
		t.Fatalf("applications = %d, want 3", len(r.Applications))
	}
	want := model.ProcessStats{TotalJobsCreated: 2000, TotalActiveJobs: 8, TotalJobsFaulted: 12}
	if r.ProcessStats != want {
		t.Errorf("processStats = %+v, want %+v", r.ProcessStats, want)
	}

	procs := []string{"orders.ProcessOrder", "billing.Invoice", "orders.Cancel", "inventory.Sync"}
	if len(r.TopProcessesByJobs) != len(procs) {
		t.Fatalf("top processes = %+v", r.TopProcessesByJobs)
	}
	for i, name := range procs {
		if r.TopProcessesByJobs[i].Name != name {
			t.Errorf("topProcesses[%d] = %s, want %s", i, r.TopProcessesByJobs[i].Name, name)
		}
	}

	acts := []string{"Notify", "Validate", "Persist"}
	for i, name := range acts {
		if r.TopActivitiesByTime[i].Name != name {
			t.Errorf("topActivities[%d] = %s, want %s", i, r.TopActivitiesByTime[i].Name, name)
		}
	}
	if r.Applications[0].Processes[0].ChartData == nil {
		t.Error("process chart not attached")
	}
}

func TestParseEnvVars(t *testing.T) {
	r := parseFixture(t)
	want := []model.EnvironmentVariable{
		{Key: "java.version", Value: "11.0.21"},
		{Key: "java.home", Value: "/opt/tibco/tibcojre64/11"},
		{Key: "user.name", Value: "tibco"},
		{Key: "BW_HOME", Value: "/opt/tibco/bw/6.9"},
	}
	if len(r.ImportantEnvVars) != len(want) {
		t.Fatalf("env = %+v", r.ImportantEnvVars)
	}
	for i := range want {
		if r.ImportantEnvVars[i] != want[i] {
			t.Errorf("env[%d] = %+v, want %+v", i, r.ImportantEnvVars[i], want[i])
		}
	}
}

func TestParseDerivedFields(t *testing.T) {
	r := parseFixture(t)

	labels := []string{"Applications", "Total Threads", "Heap Used", "Jobs Faulted", "Problematic Threads"}
	if len(r.KeyMetrics) != len(labels) {
		t.Fatalf("keyMetrics = %+v", r.KeyMetrics)
	}
	for i, l := range labels {
		if r.KeyMetrics[i].Label != l {
			t.Errorf("keyMetrics[%d] = %s, want %s", i, r.KeyMetrics[i].Label, l)
		}
	}
	if r.KeyMetrics[2].Value != "900 MB" {
		t.Errorf("heap used = %s, want 900 MB", r.KeyMetrics[2].Value)
	}

	metrics := map[string]string{}
	for _, a := range r.Anomalies {
		metrics[a.Metric] = a.Severity
	}
	wantAnomalies := map[string]string{
		"heap_utilization":      "warning",
		"blocked_threads":       "critical",
		"high_priority_threads": "warning",
	}
	if len(metrics) != len(wantAnomalies) {
		t.Errorf("anomalies = %+v", r.Anomalies)
	}
	for m, sev := range wantAnomalies {
		if metrics[m] != sev {
			t.Errorf("%s severity = %q, want %q", m, metrics[m], sev)
		}
	}
	if r.HealthScore != 76 {
		t.Errorf("healthScore = %d, want 76", r.HealthScore)
	}
	if r.Summary != LocalSummary {
		t.Errorf("summary = %q", r.Summary)
	}
}

func TestParseKeyMetricsCapped(t *testing.T) {
	r := &model.AnalysisResult{
		Applications:         []model.Application{{Name: "a"}},
		ThreadAnalysis:       model.ThreadAnalysis{TotalThreads: 10, DeadlockedThreads: []string{"t1"}},
		MemoryAnalysis:       model.MemoryAnalysis{Heap: model.MemoryUsage{Used: 1536}},
		ProcessStats:         model.ProcessStats{TotalJobsFaulted: 1234567},
		DetailedThreadReport: &model.DetailedThreadReport{ProblematicThreads: []model.ProblematicThread{{}}},
	}
	m := KeyMetrics(r)
	if len(m) != 6 {
		t.Fatalf("metrics = %d, want 6", len(m))
	}
	if m[3].Value != "1,234,567" {
		t.Errorf("jobs faulted = %s", m[3].Value)
	}
	if m[5].Label != "Deadlocks" || m[5].Value != "Detected" {
		t.Errorf("last metric = %+v", m[5])
	}
}

func TestParseUnrecognized(t *testing.T) {
	_, err := ParseBytes([]byte(`<html><body><h1>Hello</h1><table><tr><td>a</td></tr></table></body></html>`), DefaultConfig())
	if !errors.Is(err, ErrUnrecognizedReport) {
		t.Errorf("err = %v, want ErrUnrecognizedReport", err)
	}
}

func TestParsePartialReport(t *testing.T) {
	markup := `<html><body><h3>Memory Information</h3><table>
		<tr><td>Used Heap Size</td><td>lots</td></tr>
		<tr><td>Max Heap Size</td><td>2 GB</td></tr></table></body></html>`
	r, err := ParseBytes([]byte(markup), DefaultConfig())
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if r.SystemInfo != model.DefaultSystemInfo() {
		t.Errorf("systemInfo = %+v, want defaults", r.SystemInfo)
	}
	if r.MemoryAnalysis.Heap.Used != 0 || r.MemoryAnalysis.Heap.Max != 2<<30 {
		t.Errorf("heap = %+v", r.MemoryAnalysis.Heap)
	}
	if r.DetailedThreadReport != nil {
		t.Error("thread report should be absent without a dump")
	}
	if r.Applications == nil || len(r.Applications) != 0 {
		t.Errorf("applications = %v, want empty", r.Applications)
	}
	if r.HealthScore != 100 {
		t.Errorf("healthScore = %d, want 100", r.HealthScore)
	}
}

func TestParseDeadlockedThreads(t *testing.T) {
	markup := `<html><body><h3>Thread Information</h3><table>
		<tr><td>Thread Count</td><td>10</td></tr>
		<tr><td>Deadlocked Threads</td><td>worker-1, worker-2</td></tr></table></body></html>`
	r, err := ParseBytes([]byte(markup), DefaultConfig())
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	got := r.ThreadAnalysis.DeadlockedThreads
	if len(got) != 2 || got[0] != "worker-1" || got[1] != "worker-2" {
		t.Errorf("deadlocked = %v", got)
	}
	if r.KeyMetrics[len(r.KeyMetrics)-1].Label != "Deadlocks" {
		t.Errorf("keyMetrics = %+v", r.KeyMetrics)
	}
}

func TestParseWithoutSummaryTable(t *testing.T) {
	markup := `<html><body><h3>Memory Information</h3><table>
		<tr><td>Max Heap Size</td><td>2 GB</td></tr></table>
		<h6>Application [A - 1.0] - Processes</h6><table>
		<tr><th>Process</th><th>Created</th><th>Completed</th><th>Faulted</th><th>Suspended</th></tr>
		<tr><td>a.Main</td><td>10</td><td>7</td><td>2</td><td>0</td></tr></table></body></html>`
	r, err := ParseBytes([]byte(markup), DefaultConfig())
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if len(r.Applications) != 1 || len(r.Applications[0].Processes) != 1 {
		t.Fatalf("applications = %+v", r.Applications)
	}
	want := model.ProcessStats{TotalJobsCreated: 10, TotalActiveJobs: 1, TotalJobsFaulted: 2}
	if r.ProcessStats != want {
		t.Errorf("processStats = %+v, want %+v", r.ProcessStats, want)
	}

	var faultRatio *model.Anomaly
	for i := range r.Anomalies {
		if r.Anomalies[i].Metric == "job_fault_ratio" {
			faultRatio = &r.Anomalies[i]
		}
	}
	if faultRatio == nil || faultRatio.Severity != "critical" {
		t.Errorf("job_fault_ratio anomaly = %+v, want critical", faultRatio)
	}
	found := false
	for _, m := range r.KeyMetrics {
		if m.Label == "Jobs Faulted" && m.Value == "2" {
			found = true
		}
	}
	if !found {
		t.Errorf("keyMetrics = %+v, want Jobs Faulted 2", r.KeyMetrics)
	}
}

func TestParseThreadStatesSkipsUnknownRows(t *testing.T) {
	tests := []struct {
		name string
		rows string
		want []model.ThreadStateName
	}{
		{
			"total row dropped",
			`<tr><td>Runnable</td><td>3</td></tr><tr><td>Total</td><td>3</td></tr>`,
			[]model.ThreadStateName{model.StateRunnable},
		},
		{
			"spaced label normalized",
			`<tr><td>Timed Waiting</td><td>2</td></tr><tr><td>new</td><td>1</td></tr>`,
			[]model.ThreadStateName{model.StateTimedWaiting, model.StateNew},
		},
		{
			"nothing known",
			`<tr><td>TOTAL</td><td>9</td></tr><tr><td>Daemon</td><td>4</td></tr>`,
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markup := `<html><body><h3>Thread Information</h3><table>
				<tr><td>Thread Count</td><td>3</td></tr></table>
				<h6>Threads State Count</h6><table>
				<tr><th>State</th><th>Count</th></tr>` + tt.rows + `</table></body></html>`
			r, err := ParseBytes([]byte(markup), DefaultConfig())
			if err != nil {
				t.Fatalf("ParseBytes: %v", err)
			}
			got := r.ThreadAnalysis.ThreadStates
			if len(got) != len(tt.want) {
				t.Fatalf("states = %+v, want %v", got, tt.want)
			}
			for i, s := range tt.want {
				if got[i].State != s {
					t.Errorf("states[%d] = %s, want %s", i, got[i].State, s)
				}
			}
		})
	}
}

func TestIsHTMLName(t *testing.T) {
	tests := map[string]bool{
		"report.html": true,
		"REPORT.HTM":  true,
		"app.log":     false,
		"html":        false,
	}
	for name, want := range tests {
		if got := IsHTMLName(name); got != want {
			t.Errorf("IsHTMLName(%q) = %v, want %v", name, got, want)
		}
	}
}
