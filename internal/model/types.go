// Package model defines all data types for the bwlens analysis output.
// These types are serialized to JSON and consumed by presentation layers
// and AI/LLM enrichment stages.
// Schema version: 1.0.0
package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// --- AnalysisResult: top-level output ---

// AnalysisType tells whether a result was produced locally or by an AI stage.
type AnalysisType string

const (
	AnalysisLocal AnalysisType = "Local"
	AnalysisAI    AnalysisType = "AI"
)

// AnalysisResult is the aggregate root produced by one report parse.
// It is never mutated after construction; enrichment stages return a copy.
type AnalysisResult struct {
	AnalysisType               AnalysisType                `json:"analysisType"`
	Role                       Role                        `json:"role,omitempty"`
	Summary                    string                      `json:"summary"`
	KeyMetrics                 []KeyMetric                 `json:"keyMetrics"`
	SystemInfo                 SystemInfo                  `json:"systemInfo"`
	ImportantEnvVars           []EnvironmentVariable       `json:"importantEnvVars"`
	Applications               []Application               `json:"applications"`
	ProcessStats               ProcessStats                `json:"processStats"`
	MemoryAnalysis             MemoryAnalysis              `json:"memoryAnalysis"`
	ThreadAnalysis             ThreadAnalysis              `json:"threadAnalysis"`
	DetailedApplicationReports []DetailedApplicationReport `json:"detailedApplicationReports,omitempty"`
	DetailedThreadReport       *DetailedThreadReport       `json:"detailedThreadReport,omitempty"`
	TopProcessesByJobs         []ProcessRank               `json:"topProcessesByJobs,omitempty"`
	TopActivitiesByTime        []ActivityRank              `json:"topActivitiesByTime,omitempty"`
	Anomalies                  []Anomaly                   `json:"anomalies"`
	HealthScore                int                         `json:"healthScore"`
	AISummary                  *AISummary                  `json:"aiSummary,omitempty"`
	AIContext                  *AIContext                  `json:"aiContext,omitempty"`
}

// Role selects the audience an AI summary is written for.
type Role string

const (
	RoleExecutive     Role = "Executive"
	RoleAdministrator Role = "Administrator"
	RoleDeveloper     Role = "Developer"
)

// ParseRole maps a case-insensitive name to a Role. Unknown names yield "".
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "executive":
		return RoleExecutive
	case "administrator", "admin":
		return RoleAdministrator
	case "developer", "dev":
		return RoleDeveloper
	}
	return ""
}

type KeyMetric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SystemInfo holds OS-level facts as displayed by the report.
type SystemInfo struct {
	OSName              string `json:"osName"`
	OSVersion           string `json:"osVersion"`
	Architecture        string `json:"architecture"`
	TotalPhysicalMemory string `json:"totalPhysicalMemory"`
	FreePhysicalMemory  string `json:"freePhysicalMemory"`
	CPULoad             string `json:"cpuLoad"`
	AvailableProcessors int    `json:"availableProcessors"`
}

// DefaultSystemInfo is used when the OS section is absent.
func DefaultSystemInfo() SystemInfo {
	return SystemInfo{
		OSName:              "N/A",
		Architecture:        "N/A",
		TotalPhysicalMemory: "N/A",
		FreePhysicalMemory:  "N/A",
		CPULoad:             "N/A",
	}
}

type EnvironmentVariable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// --- Memory ---

type MemoryUsage struct {
	Init      uint64 `json:"init"`
	Used      uint64 `json:"used"`
	Committed uint64 `json:"committed"`
	Max       uint64 `json:"max"`
}

type MemoryAnalysis struct {
	Heap    MemoryUsage `json:"heap"`
	NonHeap MemoryUsage `json:"nonHeap"`
}

// --- Threads ---

type ThreadStateName string

const (
	StateRunnable     ThreadStateName = "RUNNABLE"
	StateWaiting      ThreadStateName = "WAITING"
	StateTimedWaiting ThreadStateName = "TIMED_WAITING"
	StateBlocked      ThreadStateName = "BLOCKED"
	StateTerminated   ThreadStateName = "TERMINATED"
	StateNew          ThreadStateName = "NEW"
)

// Known reports whether s is one of the JVM thread states above.
func (s ThreadStateName) Known() bool {
	switch s {
	case StateRunnable, StateWaiting, StateTimedWaiting, StateBlocked, StateTerminated, StateNew:
		return true
	}
	return false
}

type ThreadState struct {
	State ThreadStateName `json:"state"`
	Count uint32          `json:"count"`
}

type ThreadAnalysis struct {
	TotalThreads      int           `json:"totalThreads"`
	PeakThreads       int           `json:"peakThreads"`
	DaemonThreads     int           `json:"daemonThreads"`
	DeadlockedThreads []string      `json:"deadlockedThreads"`
	ThreadStates      []ThreadState `json:"threadStates"`
}

// CountInState returns the reported count for a state, 0 when absent.
func (t ThreadAnalysis) CountInState(state ThreadStateName) uint32 {
	for _, s := range t.ThreadStates {
		if s.State == state {
			return s.Count
		}
	}
	return 0
}

// Priority is the severity scale shared by warnings and flagged threads.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Rank orders priorities: High=3, Medium=2, Low=1, unknown=0.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// MaxPriority returns the higher of two priorities.
func MaxPriority(a, b Priority) Priority {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

type ApplicationWarning struct {
	Severity    Priority `json:"severity"`
	Description string   `json:"description"`
}

type ProblematicThread struct {
	ThreadName        string   `json:"threadName"`
	State             string   `json:"state"`
	Priority          Priority `json:"priority"`
	Details           string   `json:"details"`
	StackTraceSnippet string   `json:"stackTraceSnippet"`
}

type DetailedThreadReport struct {
	Summary            string               `json:"summary"`
	Warnings           []ApplicationWarning `json:"warnings"`
	ProblematicThreads []ProblematicThread  `json:"problematicThreads"`
}

// CountByPriority tallies flagged threads per priority.
func (r *DetailedThreadReport) CountByPriority(p Priority) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, t := range r.ProblematicThreads {
		if t.Priority == p {
			n++
		}
	}
	return n
}

// --- Applications ---

type Activity struct {
	Name              string `json:"name"`
	Status            string `json:"status"`
	Executed          uint64 `json:"executed"`
	Faulted           uint64 `json:"faulted"`
	RecentElapsedTime uint64 `json:"recentElapsedTime"`
	MinElapsedTime    uint64 `json:"minElapsedTime"`
	MaxElapsedTime    uint64 `json:"maxElapsedTime"`
	TotalElapsedTime  uint64 `json:"totalElapsedTime"`
}

type Process struct {
	Name       string       `json:"name"`
	Created    uint64       `json:"created"`
	Completed  uint64       `json:"completed"`
	Faulted    uint64       `json:"faulted"`
	Suspended  uint64       `json:"suspended"`
	Activities []Activity   `json:"activities"`
	ChartData  *ChartSeries `json:"chartData,omitempty"`
}

type EndpointProperty struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Endpoint struct {
	Type       string             `json:"type"`
	URL        string             `json:"url"`
	Properties []EndpointProperty `json:"properties"`
}

type Application struct {
	Name      string       `json:"name"`
	State     string       `json:"state"`
	Endpoints []Endpoint   `json:"endpoints"`
	Processes []Process    `json:"processes"`
	ChartData *ChartSeries `json:"chartData,omitempty"`
}

type ProcessStats struct {
	TotalJobsCreated uint64 `json:"totalJobsCreated"`
	TotalActiveJobs  uint64 `json:"totalActiveJobs"`
	TotalJobsFaulted uint64 `json:"totalJobsFaulted"`
}

type ProcessRank struct {
	Name    string `json:"name"`
	Created uint64 `json:"created"`
}

type ActivityRank struct {
	Name    string `json:"name"`
	Process string `json:"process"`
	MaxTime uint64 `json:"maxTime"`
}

// --- Charts ---

// ChartSeries is a decoded time-series chart.
type ChartSeries struct {
	Headers []string     `json:"headers"`
	Points  []ChartPoint `json:"points"`
}

// ChartPoint is one sample. Fields holds slugified series names; a series
// missing from the source row is absent, never zero.
type ChartPoint struct {
	Date   int64
	Fields map[string]float64
}

// MarshalJSON flattens the point into {"date": ..., "<field>": ...}.
func (p ChartPoint) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(p.Fields)+1)
	for k, v := range p.Fields {
		m[k] = v
	}
	m["date"] = p.Date
	return json.Marshal(m)
}

// UnmarshalJSON reverses MarshalJSON.
func (p *ChartPoint) UnmarshalJSON(data []byte) error {
	var raw map[string]json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("chart point: %w", err)
	}
	p.Fields = make(map[string]float64, len(raw))
	for k, v := range raw {
		if k == "date" {
			d, err := v.Int64()
			if err != nil {
				return fmt.Errorf("chart point date: %w", err)
			}
			p.Date = d
			continue
		}
		f, err := v.Float64()
		if err != nil {
			return fmt.Errorf("chart point %s: %w", k, err)
		}
		p.Fields[k] = f
	}
	return nil
}

// FieldNames returns the point's field keys in sorted order.
func (p ChartPoint) FieldNames() []string {
	names := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// --- Enrichment ---

type ServiceCall struct {
	ServiceName    string `json:"serviceName"`
	CallCount      uint64 `json:"callCount"`
	AverageLatency string `json:"averageLatency"`
	ErrorRate      string `json:"errorRate"`
}

type DetailedApplicationReport struct {
	ApplicationName    string               `json:"applicationName"`
	PerformanceSummary string               `json:"performanceSummary"`
	ServiceCalls       []ServiceCall        `json:"serviceCalls"`
	Warnings           []ApplicationWarning `json:"warnings"`
}

type AISummary struct {
	HealthHighlights []string             `json:"healthHighlights"`
	AreasOfConcern   []ApplicationWarning `json:"areasOfConcern"`
}

// --- Summary: pre-computed analysis ---

type Anomaly struct {
	Severity  string `json:"severity"`
	Category  string `json:"category"`
	Metric    string `json:"metric"`
	Message   string `json:"message"`
	Value     string `json:"value"`
	Threshold string `json:"threshold"`
}

// --- AI Context ---

type AIContext struct {
	Role          Role     `json:"role,omitempty"`
	Prompt        string   `json:"prompt"`
	Methodology   string   `json:"methodology"`
	KnownPatterns []string `json:"knownPatterns"`
}

// --- Sessions ---

// Session is a persisted analysis.
type Session struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Timestamp int64           `json:"timestamp"`
	Result    *AnalysisResult `json:"result"`
}
