package output

import (
	"fmt"
	"io"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// gaugeFamily collects samples of one gauge metric.
type gaugeFamily struct {
	mf *dto.MetricFamily
}

func newGauge(name, help string) *gaugeFamily {
	return &gaugeFamily{mf: &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}}
}

// add appends a sample; labels are name/value pairs.
func (g *gaugeFamily) add(value float64, labels ...string) {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(value)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  proto.String(labels[i]),
			Value: proto.String(labels[i+1]),
		})
	}
	g.mf.Metric = append(g.mf.Metric, m)
}

// MetricFamilies converts a result into Prometheus gauge families so that a
// report snapshot can be pushed to a gateway or scraped from a textfile.
func MetricFamilies(r *model.AnalysisResult) []*dto.MetricFamily {
	heap := newGauge("bw_heap_bytes", "JVM heap memory by kind.")
	nonHeap := newGauge("bw_nonheap_bytes", "JVM non-heap memory by kind.")
	for _, m := range []struct {
		g *gaugeFamily
		u model.MemoryUsage
	}{{heap, r.MemoryAnalysis.Heap}, {nonHeap, r.MemoryAnalysis.NonHeap}} {
		m.g.add(float64(m.u.Init), "kind", "init")
		m.g.add(float64(m.u.Used), "kind", "used")
		m.g.add(float64(m.u.Committed), "kind", "committed")
		m.g.add(float64(m.u.Max), "kind", "max")
	}

	threads := newGauge("bw_threads", "JVM thread counts.")
	ta := r.ThreadAnalysis
	threads.add(float64(ta.TotalThreads), "kind", "live")
	threads.add(float64(ta.PeakThreads), "kind", "peak")
	threads.add(float64(ta.DaemonThreads), "kind", "daemon")
	threads.add(float64(len(ta.DeadlockedThreads)), "kind", "deadlocked")

	states := newGauge("bw_thread_state_count", "Threads per JVM thread state.")
	for _, s := range ta.ThreadStates {
		states.add(float64(s.Count), "state", string(s.State))
	}

	jobs := newGauge("bw_jobs_total", "Engine-wide job totals.")
	jobs.add(float64(r.ProcessStats.TotalJobsCreated), "kind", "created")
	jobs.add(float64(r.ProcessStats.TotalActiveJobs), "kind", "active")
	jobs.add(float64(r.ProcessStats.TotalJobsFaulted), "kind", "faulted")

	procJobs := newGauge("bw_process_jobs", "Jobs per process by kind.")
	actMax := newGauge("bw_activity_elapsed_max_ms", "Maximum elapsed time per activity in milliseconds.")
	for _, app := range r.Applications {
		for _, p := range app.Processes {
			for _, kv := range []struct {
				kind string
				v    uint64
			}{{"created", p.Created}, {"completed", p.Completed}, {"faulted", p.Faulted}, {"suspended", p.Suspended}} {
				procJobs.add(float64(kv.v), "application", app.Name, "process", p.Name, "kind", kv.kind)
			}
			for _, a := range p.Activities {
				actMax.add(float64(a.MaxElapsedTime), "application", app.Name, "process", p.Name, "activity", a.Name)
			}
		}
	}

	flagged := newGauge("bw_problematic_threads", "Threads flagged by the classifier per priority.")
	for _, p := range []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow} {
		flagged.add(float64(r.DetailedThreadReport.CountByPriority(p)), "priority", string(p))
	}

	health := newGauge("bw_health_score", "Overall health score, 0-100.")
	health.add(float64(r.HealthScore))

	var out []*dto.MetricFamily
	for _, g := range []*gaugeFamily{heap, nonHeap, threads, states, jobs, procJobs, actMax, flagged, health} {
		if len(g.mf.Metric) > 0 {
			out = append(out, g.mf)
		}
	}
	return out
}

// WritePrometheus writes the result in the Prometheus text exposition format.
func WritePrometheus(w io.Writer, r *model.AnalysisResult) error {
	for _, mf := range MetricFamilies(r) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
