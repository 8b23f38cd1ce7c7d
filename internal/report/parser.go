// Package report turns a runtime HTML performance report into a
// model.AnalysisResult. Parsing is offline and deterministic: a missing
// section leaves its part of the result at defaults, a malformed cell
// reads as zero, and only a document with none of the expected sections
// is rejected.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"golang.org/x/net/html"
)

// ErrUnrecognizedReport is returned when the document carries none of the
// OS, memory, thread or thread-dump sections.
var ErrUnrecognizedReport = errors.New("not a BusinessWorks HTML performance report: no OS, memory or thread sections found")

// LocalSummary is the summary text of a locally parsed result.
const LocalSummary = "This is a local analysis of the provided TIBCO BusinessWorks HTML report. Key metrics and data points have been extracted directly from the file."

// Logger receives debug messages about skipped report content.
type Logger interface {
	Debug(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}

// Config controls parsing.
type Config struct {
	ThreadConfig

	TopN               int      // entries in each top-N ranking
	ImportantEnvKeys   []string // system properties copied to ImportantEnvVars
	ApplicationsMarker string   // h4 text of the application listing
	Location           *time.Location
	Logger             Logger
}

// DefaultConfig returns the parser defaults.
func DefaultConfig() Config {
	return Config{
		ThreadConfig:       DefaultThreadConfig(),
		TopN:               5,
		ImportantEnvKeys:   []string{"java.version", "java.home", "os.name", "os.version", "user.name", "BW_HOME"},
		ApplicationsMarker: "BW Applications Information",
		Location:           time.Local,
	}
}

func (c Config) logger() Logger {
	if c.Logger == nil {
		return nopLogger{}
	}
	return c.Logger
}

// IsHTMLName reports whether a file name looks like an HTML report.
func IsHTMLName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// ParseBytes parses an in-memory report.
func ParseBytes(data []byte, cfg Config) (*model.AnalysisResult, error) {
	return Parse(bytes.NewReader(data), cfg)
}

// Parse reads one report document and returns its analysis.
func Parse(r io.Reader, cfg Config) (*model.AnalysisResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse report html: %w", err)
	}
	log := cfg.logger()

	osTable := FindTable(doc, "h3", "Operating System Information")
	memTable := FindTable(doc, "h3", "Memory Information")
	threadTable := FindTable(doc, "h3", "Thread Information")
	dumpTable := FindTable(doc, "h3", "Thread Dump")
	if osTable == nil && memTable == nil && threadTable == nil && dumpTable == nil {
		return nil, ErrUnrecognizedReport
	}

	result := &model.AnalysisResult{
		AnalysisType:     model.AnalysisLocal,
		Summary:          LocalSummary,
		KeyMetrics:       []model.KeyMetric{},
		SystemInfo:       model.DefaultSystemInfo(),
		ImportantEnvVars: []model.EnvironmentVariable{},
		ThreadAnalysis: model.ThreadAnalysis{
			DeadlockedThreads: []string{},
			ThreadStates:      []model.ThreadState{},
		},
	}

	if osTable != nil {
		result.SystemInfo = readSystemInfo(ReadKeyValueTable(osTable))
	} else {
		log.Debug("section not found: Operating System Information")
	}
	if memTable != nil {
		result.MemoryAnalysis = readMemory(ReadKeyValueTable(memTable))
	} else {
		log.Debug("section not found: Memory Information")
	}
	if threadTable != nil {
		readThreadInfo(ReadKeyValueTable(threadTable), &result.ThreadAnalysis)
	} else {
		log.Debug("section not found: Thread Information")
	}
	if h := FindHeading(doc, "h6", "Threads State Count"); h != nil {
		result.ThreadAnalysis.ThreadStates = readThreadStates(ReadKeyValueTable(sectionTable(h)), log)
	}

	if dumpTable != nil {
		cpu := ParseThreadCPU(FindTable(doc, "h6", "Top Threads"))
		entries := ParseThreadDump(dumpTable)
		log.Debug("thread dump: %d threads, %d with CPU samples", len(entries), len(cpu))
		threads := ClassifyThreads(entries, cpu, cfg.ThreadConfig)
		result.DetailedThreadReport = &threads
	}

	result.Applications = BuildApplications(doc, cfg.ApplicationsMarker)
	AttachCharts(doc, result.Applications, cfg.Location, log)
	if summary := FindTable(doc, "h4", cfg.ApplicationsMarker); summary != nil {
		result.ProcessStats = ComputeProcessStats(summary)
	} else {
		log.Debug("section not found: %s, summing process tables", cfg.ApplicationsMarker)
		result.ProcessStats = SumProcessStats(result.Applications)
	}
	result.ImportantEnvVars = readEnvVars(FindTable(doc, "h3", "Runtime Information"), cfg.ImportantEnvKeys)

	result.TopProcessesByJobs = TopProcessesByJobs(result.Applications, cfg.TopN)
	result.TopActivitiesByTime = TopActivitiesByTime(result.Applications, cfg.TopN)

	finish(result)
	log.Debug("parsed %d applications, health score %d", len(result.Applications), result.HealthScore)
	return result, nil
}

func readSystemInfo(kv *KeyValues) model.SystemInfo {
	info := model.SystemInfo{
		OSName:              kv.Get("OS Name", "N/A"),
		OSVersion:           kv.Get("OS Version", ""),
		Architecture:        kv.Get("OS Architecture", "N/A"),
		TotalPhysicalMemory: kv.Get("Total Physical Memory", "N/A"),
		FreePhysicalMemory:  kv.Get("Free Physical Memory", "N/A"),
		CPULoad:             "N/A",
		AvailableProcessors: parseInt(kv.Get("Available Processors", "0")),
	}
	if load, ok := parseLeadingFloat(kv.Get("JVM CPU Load", "")); ok {
		info.CPULoad = fmt.Sprintf("%.2f%%", load*100)
	}
	return info
}

func readMemory(kv *KeyValues) model.MemoryAnalysis {
	usage := func(kind string) model.MemoryUsage {
		return model.MemoryUsage{
			Init:      ParseMemoryString(kv.Get("Init "+kind+" Size", "0")),
			Used:      ParseMemoryString(kv.Get("Used "+kind+" Size", "0")),
			Committed: ParseMemoryString(kv.Get("Committed "+kind+" Size", "0")),
			Max:       ParseMemoryString(kv.Get("Max "+kind+" Size", "0")),
		}
	}
	return model.MemoryAnalysis{Heap: usage("Heap"), NonHeap: usage("Non-Heap")}
}

func readThreadInfo(kv *KeyValues, t *model.ThreadAnalysis) {
	t.TotalThreads = parseInt(kv.Get("Thread Count", "0"))
	t.PeakThreads = parseInt(kv.Get("Peak Thread Count", "0"))
	t.DaemonThreads = parseInt(kv.Get("Daemon Thread Count", "0"))

	for _, name := range strings.Split(kv.Get("Deadlocked Threads", ""), ",") {
		name = strings.TrimSpace(name)
		switch strings.ToLower(name) {
		case "", "none", "n/a", "-", "0":
			continue
		}
		t.DeadlockedThreads = append(t.DeadlockedThreads, name)
	}
}

// readThreadStates keeps rows naming a JVM thread state. Labels such as
// a trailing "Total" row are dropped.
func readThreadStates(kv *KeyValues, log Logger) []model.ThreadState {
	states := []model.ThreadState{}
	kv.Each(func(label, count string) {
		state := model.ThreadStateName(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(label), " ", "_")))
		if !state.Known() {
			log.Debug("skipping thread state row %q", label)
			return
		}
		n := parseInt(count)
		if n < 0 {
			n = 0
		}
		states = append(states, model.ThreadState{
			State: state,
			Count: uint32(n),
		})
	})
	return states
}

// readEnvVars pulls the wanted keys out of the "System Properties" row,
// one key=value per line.
func readEnvVars(table *html.Node, keys []string) []model.EnvironmentVariable {
	vars := []model.EnvironmentVariable{}
	if table == nil {
		return vars
	}
	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}
	for _, row := range tableRows(table) {
		cs := cells(row)
		if len(cs) < 2 || cellText(cs, 0) != "System Properties" {
			continue
		}
		for _, line := range cellLines(cs[1]) {
			key, value, _ := strings.Cut(line, "=")
			key = strings.TrimSpace(key)
			if wanted[key] {
				vars = append(vars, model.EnvironmentVariable{Key: key, Value: strings.TrimSpace(value)})
			}
		}
	}
	return vars
}
