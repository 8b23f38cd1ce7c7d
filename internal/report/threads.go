package report

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"golang.org/x/net/html"
)

var (
	threadNameRe  = regexp.MustCompile(`Thread Name=([^\n]+)`)
	threadStateRe = regexp.MustCompile(`Thread State=([^\n]+)`)
	stackTraceRe  = regexp.MustCompile(`(?s)Stack Trace=\[(.+)\]`)
	waitingLockRe = regexp.MustCompile(`- waiting to lock <([0-9a-fx]+)> \(a (.+)\)`)
)

const (
	warnBlockedOrHot = "Detected BLOCKED or high-CPU threads. These can cause application freezes or significant performance degradation."
	warnNetworkIO    = "Detected threads waiting on network I/O. This could indicate slow downstream services."

	summaryFlagged = "Local analysis flagged %d threads for review. This includes threads that are BLOCKED, have high CPU usage, or are potentially stuck in I/O operations."
	summaryClean   = "Local analysis did not find any critically BLOCKED or high-CPU threads. For a more nuanced analysis of WAITING threads, AI Analysis is recommended."
)

// ThreadDumpEntry is one thread row of the dump table.
type ThreadDumpEntry struct {
	ID    string
	Name  string
	State string
	Stack string // newline-separated frames
}

// ThreadConfig tunes the thread classifier.
type ThreadConfig struct {
	CPUThreshold     float64  // percent; strictly greater flags the thread
	SnippetLines     int      // stack lines kept per flagged thread
	SocketReadFrames []string // frames that mean a blocking socket read
}

// DefaultThreadConfig returns the classifier defaults.
func DefaultThreadConfig() ThreadConfig {
	return ThreadConfig{
		CPUThreshold: 5.0,
		SnippetLines: 8,
		SocketReadFrames: []string{
			"java.net.SocketInputStream.socketRead",
			"sun.nio.ch.NioSocketImpl.read",
			"sun.nio.ch.SocketDispatcher.read",
		},
	}
}

// ParseThreadCPU reads the "Top Threads" table into thread id -> CPU percent.
func ParseThreadCPU(table *html.Node) map[string]float64 {
	cpu := make(map[string]float64)
	if table == nil {
		return cpu
	}
	for _, row := range dataRows(table) {
		cs := cells(row)
		if len(cs) <= 3 {
			continue
		}
		if id := cellText(cs, 0); id != "" {
			cpu[id] = parseFloat(cellText(cs, 3))
		}
	}
	return cpu
}

// ParseThreadDump reads one entry per dump row. Rows without an id, a
// thread name or a state are skipped.
func ParseThreadDump(table *html.Node) []ThreadDumpEntry {
	if table == nil {
		return nil
	}
	var entries []ThreadDumpEntry
	for _, row := range dataRows(table) {
		cs := cells(row)
		if len(cs) < 2 {
			continue
		}
		id := cellText(cs, 0)
		content := strings.Join(cellLines(cs[1]), "\n")
		name := threadNameRe.FindStringSubmatch(content)
		state := threadStateRe.FindStringSubmatch(content)
		if id == "" || name == nil || state == nil {
			continue
		}
		var stack string
		if m := stackTraceRe.FindStringSubmatch(content); m != nil {
			stack = strings.TrimSpace(m[1])
		}
		entries = append(entries, ThreadDumpEntry{
			ID:    id,
			Name:  strings.TrimSpace(name[1]),
			State: strings.TrimSpace(state[1]),
			Stack: stack,
		})
	}
	return entries
}

// ThreadFacts is what a rule sees about one thread.
type ThreadFacts struct {
	Entry  ThreadDumpEntry
	CPU    float64
	HasCPU bool
}

func (f ThreadFacts) state() model.ThreadStateName {
	return model.ThreadStateName(strings.ToUpper(f.Entry.State))
}

// RuleResult is the outcome of one rule: a zero value means no match.
type RuleResult struct {
	Matched  bool
	Priority model.Priority
	Detail   string
}

// Verdict accumulates matched rules for one thread.
type Verdict struct {
	Matched  bool
	Priority model.Priority
	Details  []string
	Rules    []string
}

// Has reports whether the named rule already matched.
func (v Verdict) Has(rule string) bool {
	for _, r := range v.Rules {
		if r == rule {
			return true
		}
	}
	return false
}

func (v Verdict) fold(rule string, r RuleResult) Verdict {
	if !r.Matched {
		return v
	}
	v.Matched = true
	v.Priority = model.MaxPriority(v.Priority, r.Priority)
	v.Details = append(v.Details, r.Detail)
	v.Rules = append(v.Rules, rule)
	return v
}

// ThreadRule is one classifier heuristic. Rules run in order and see the
// verdict of the rules before them.
type ThreadRule struct {
	Name  string
	Apply func(f ThreadFacts, prior Verdict) RuleResult
}

// DefaultThreadRules returns the ordered heuristics: high CPU, BLOCKED,
// socket read, idle worker, object wait.
func DefaultThreadRules(cfg ThreadConfig) []ThreadRule {
	return []ThreadRule{
		{Name: "high_cpu", Apply: func(f ThreadFacts, _ Verdict) RuleResult {
			if !f.HasCPU || f.CPU <= cfg.CPUThreshold {
				return RuleResult{}
			}
			return RuleResult{true, model.PriorityHigh, fmt.Sprintf("High CPU Usage (%.2f%%).", f.CPU)}
		}},
		{Name: "blocked", Apply: func(f ThreadFacts, _ Verdict) RuleResult {
			if f.state() != model.StateBlocked {
				return RuleResult{}
			}
			if m := waitingLockRe.FindStringSubmatch(f.Entry.Stack); m != nil {
				return RuleResult{true, model.PriorityHigh, fmt.Sprintf("BLOCKED: Waiting for lock on a %s.", m[2])}
			}
			return RuleResult{true, model.PriorityHigh, "BLOCKED: Waiting on a monitor lock."}
		}},
		{Name: "socket_read", Apply: func(f ThreadFacts, prior Verdict) RuleResult {
			if f.state() != model.StateRunnable || prior.Priority == model.PriorityHigh {
				return RuleResult{}
			}
			for _, frame := range cfg.SocketReadFrames {
				if strings.Contains(f.Entry.Stack, frame) {
					return RuleResult{true, model.PriorityMedium, "I/O WAIT: May be stuck reading from a network socket, which can be a performance bottleneck."}
				}
			}
			return RuleResult{}
		}},
		{Name: "idle_worker", Apply: func(f ThreadFacts, _ Verdict) RuleResult {
			st := f.state()
			if st != model.StateWaiting && st != model.StateTimedWaiting {
				return RuleResult{}
			}
			s := f.Entry.Stack
			if strings.Contains(s, ".take") && (strings.Contains(s, "BlockingQueue") || strings.Contains(s, "WorkQueue")) {
				return RuleResult{true, model.PriorityLow, "IDLE WORKER: Thread is waiting to take a task from a queue. This is generally normal for worker threads."}
			}
			return RuleResult{}
		}},
		{Name: "object_wait", Apply: func(f ThreadFacts, prior Verdict) RuleResult {
			if f.state() != model.StateWaiting || prior.Has("idle_worker") {
				return RuleResult{}
			}
			if strings.Contains(f.Entry.Stack, "java.lang.Object.wait") {
				return RuleResult{true, model.PriorityLow, "WAITING: Thread is in Object.wait(), waiting for a notification from another thread."}
			}
			return RuleResult{}
		}},
	}
}

// Evaluate runs rules in order over one thread.
func Evaluate(rules []ThreadRule, f ThreadFacts) Verdict {
	var v Verdict
	for _, r := range rules {
		v = v.fold(r.Name, r.Apply(f, v))
	}
	return v
}

// ClassifyThreads flags problematic threads and derives the deduplicated
// warning list and summary.
func ClassifyThreads(entries []ThreadDumpEntry, cpu map[string]float64, cfg ThreadConfig) model.DetailedThreadReport {
	rules := DefaultThreadRules(cfg)
	report := model.DetailedThreadReport{
		Warnings:           []model.ApplicationWarning{},
		ProblematicThreads: []model.ProblematicThread{},
	}

	var sawHigh, sawMedium bool
	for _, e := range entries {
		load, ok := cpu[e.ID]
		v := Evaluate(rules, ThreadFacts{Entry: e, CPU: load, HasCPU: ok})
		if !v.Matched {
			continue
		}
		report.ProblematicThreads = append(report.ProblematicThreads, model.ProblematicThread{
			ThreadName:        e.Name,
			State:             e.State,
			Priority:          v.Priority,
			Details:           strings.Join(v.Details, " "),
			StackTraceSnippet: snippet(e.Stack, cfg.SnippetLines),
		})
		switch v.Priority {
		case model.PriorityHigh:
			sawHigh = true
		case model.PriorityMedium:
			sawMedium = true
		}
	}

	if sawHigh {
		report.Warnings = append(report.Warnings, model.ApplicationWarning{Severity: model.PriorityHigh, Description: warnBlockedOrHot})
	}
	if sawMedium {
		report.Warnings = append(report.Warnings, model.ApplicationWarning{Severity: model.PriorityMedium, Description: warnNetworkIO})
	}

	if n := len(report.ProblematicThreads); n > 0 {
		report.Summary = fmt.Sprintf(summaryFlagged, n)
	} else {
		report.Summary = summaryClean
	}
	return report
}

func snippet(stack string, lines int) string {
	if stack == "" || lines <= 0 {
		return ""
	}
	parts := strings.Split(stack, "\n")
	if len(parts) > lines {
		parts = parts[:lines]
	}
	return strings.Join(parts, "\n")
}
