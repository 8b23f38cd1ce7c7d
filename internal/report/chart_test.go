package report

import (
	"strings"
	"testing"
	"time"
)

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Debug(format string, args ...interface{}) {
	l.lines = append(l.lines, format)
}

const sampleChart = `
function drawChart() {
  var data = new google.visualization.DataTable();
  data.addColumn('datetime', 'Time');
  data.addColumn('number', 'Jobs Created');
  data.addColumn('number', 'Active  Jobs');
  data.addRows([
    [new Date(2024,0,15,10,30,0), 120, 4],
    [new Date(2024,11,31,23,59,59), 135, 2],
  ]);
  var chart = new google.visualization.LineChart(document.getElementById('appChart_1'));
  chart.draw(data, options);
}`

func TestDecodeChartScript(t *testing.T) {
	series := decodeChartScript(sampleChart, time.UTC, nopLogger{})

	wantHeaders := []string{"Time", "Jobs Created", "Active  Jobs"}
	if len(series.Headers) != len(wantHeaders) {
		t.Fatalf("headers = %v, want %v", series.Headers, wantHeaders)
	}
	for i, h := range wantHeaders {
		if series.Headers[i] != h {
			t.Errorf("headers[%d] = %q, want %q", i, series.Headers[i], h)
		}
	}

	if len(series.Points) != 2 {
		t.Fatalf("points = %d, want 2", len(series.Points))
	}

	first := series.Points[0]
	wantDate := time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC).UnixMilli()
	if first.Date != wantDate {
		t.Errorf("date = %d, want %d", first.Date, wantDate)
	}
	if len(first.Fields) != 2 {
		t.Errorf("fields = %v, want 2 entries", first.Fields)
	}
	if first.Fields["jobs_created"] != 120 {
		t.Errorf("jobs_created = %v, want 120", first.Fields["jobs_created"])
	}
	if first.Fields["active_jobs"] != 4 {
		t.Errorf("active_jobs = %v, want 4", first.Fields["active_jobs"])
	}
	if _, ok := first.Fields["time"]; ok {
		t.Error("date column must not be a field")
	}

	last := series.Points[1]
	wantLast := time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC).UnixMilli()
	if last.Date != wantLast {
		t.Errorf("zero-based month: date = %d, want %d", last.Date, wantLast)
	}
}

func TestDecodeChartScriptEmptyRows(t *testing.T) {
	script := `data.addColumn('datetime', 'Time');
data.addColumn('number', 'Jobs');
data.addRows([]);`
	series := DecodeChartScript(script)
	if len(series.Headers) != 2 {
		t.Errorf("headers = %v, want 2", series.Headers)
	}
	if len(series.Points) != 0 {
		t.Errorf("points = %d, want 0", len(series.Points))
	}
}

func TestDecodeChartScriptSkipsBadRows(t *testing.T) {
	script := `data.addColumn('datetime', 'Time');
data.addColumn('number', 'Jobs');
data.addColumn('number', 'Faults');
data.addRows([
  ["not a date", 1, 2],
  [new Date(2024,0,1), 3, 4],
  [42, 5, 6],
  [new Date(2024,0,1,0,0,0), 7],
  [new Date(2024,0,1,0,0,1), null, "8.5"],
]);`
	series := decodeChartScript(script, time.UTC, nopLogger{})
	if len(series.Points) != 2 {
		t.Fatalf("points = %d, want 2", len(series.Points))
	}
	p := series.Points[0]
	if p.Fields["jobs"] != 7 {
		t.Errorf("jobs = %v, want 7", p.Fields["jobs"])
	}
	if _, ok := p.Fields["faults"]; ok {
		t.Error("missing column must be absent, not zero")
	}
	q := series.Points[1]
	if _, ok := q.Fields["jobs"]; ok {
		t.Error("null cell must be absent")
	}
	if q.Fields["faults"] != 8.5 {
		t.Errorf("faults = %v, want 8.5", q.Fields["faults"])
	}
}

func TestDecodeChartScriptMalformed(t *testing.T) {
	log := &recordingLogger{}
	script := `data.addColumn('datetime', 'Time');
data.addColumn('number', 'Jobs');
data.addRows(buildRows());`
	series := decodeChartScript(script, time.UTC, log)
	if len(series.Headers) != 2 {
		t.Errorf("headers = %v, want 2 kept despite bad rows", series.Headers)
	}
	if len(series.Points) != 0 {
		t.Errorf("points = %d, want 0", len(series.Points))
	}
	if len(log.lines) == 0 {
		t.Error("decode failure not logged")
	}
}

func TestDecodeChartScriptNoRows(t *testing.T) {
	series := DecodeChartScript(`var x = 1;`)
	if len(series.Headers) != 0 || len(series.Points) != 0 {
		t.Errorf("series = %+v, want empty", series)
	}
}

func TestChartAnchorID(t *testing.T) {
	if got := ChartAnchorID(sampleChart); got != "appChart_1" {
		t.Errorf("ChartAnchorID = %q, want appChart_1", got)
	}
	if got := ChartAnchorID("var x;"); got != "" {
		t.Errorf("ChartAnchorID = %q, want empty", got)
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Jobs Created":      "jobs_created",
		"Max\tElapsed Time": "max_elapsed_time",
		"CPU":               "cpu",
	}
	for in, want := range tests {
		if got := slug(in); got != want {
			t.Errorf("slug(%q) = %q, want %q", in, got, want)
		}
	}
	if strings.Contains(slug("a  b"), "__") {
		t.Error("whitespace runs should collapse")
	}
}
