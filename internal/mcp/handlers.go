package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/enrich"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/output"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/report"
	"github.com/mark3labs/mcp-go/mcp"
)

// analyzeTimeout bounds enrichment of a single report.
const analyzeTimeout = 2 * time.Minute

// toolset holds what the report tools share.
type toolset struct {
	cfg      report.Config
	readFile func(string) ([]byte, error)
}

func (ts *toolset) load(path string) (*model.AnalysisResult, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if !report.IsHTMLName(path) {
		return nil, fmt.Errorf("%s: not an .html report", path)
	}
	data, err := ts.readFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	result, err := report.ParseBytes(data, ts.cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return result, nil
}

// handleAnalyzeReport parses a report and returns the full analysis.
func (ts *toolset) handleAnalyzeReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	args := getArgs(request)
	role := model.ParseRole(stringArg(args, "role", string(model.RoleAdministrator)))
	if role == "" {
		role = model.RoleAdministrator
	}

	result, err := ts.load(stringArg(args, "path", ""))
	if err != nil {
		return errResult(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	if boolArg(args, "enrich", false) {
		enriched, err := enrich.NewLocal(role).Enrich(ctx, result, nil)
		if err != nil {
			return errResult(fmt.Sprintf("enrichment failed: %v", err)), nil
		}
		result = enriched
	} else {
		result = withPrompt(result, role)
	}

	jsonData, err := json.Marshal(result)
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(jsonData)), nil
}

// withPrompt returns a copy of result with an AI prompt for role.
func withPrompt(result *model.AnalysisResult, role model.Role) *model.AnalysisResult {
	out := *result
	out.AIContext = output.GenerateAIPrompt(&out, role)
	return &out
}

// handleSummarizeThreads returns only the thread sections of an analysis.
func (ts *toolset) handleSummarizeThreads(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ts.load(stringArg(getArgs(request), "path", ""))
	if err != nil {
		return errResult(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	// Ensure arrays are never null, for easier consumption by AI agents.
	threads := result.DetailedThreadReport
	if threads == nil {
		threads = &model.DetailedThreadReport{
			Summary:            "No thread dump in report.",
			Warnings:           []model.ApplicationWarning{},
			ProblematicThreads: []model.ProblematicThread{},
		}
	}
	var threadAnomalies []model.Anomaly
	for _, a := range result.Anomalies {
		if a.Category == "threads" {
			threadAnomalies = append(threadAnomalies, a)
		}
	}
	if threadAnomalies == nil {
		threadAnomalies = []model.Anomaly{}
	}

	summary := map[string]interface{}{
		"health_score": result.HealthScore,
		"threads":      result.ThreadAnalysis,
		"report":       threads,
		"anomalies":    threadAnomalies,
		"message":      "Use 'analyze_report' for the full analysis including applications and memory.",
	}

	jsonData, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(jsonData)), nil
}

// handleExplainAnomaly provides detailed explanation for a specific anomaly metric.
func handleExplainAnomaly(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	anomalyID := stringArg(args, "anomaly_id", "")
	if anomalyID == "" {
		return errResult("anomaly_id is required"), nil
	}

	desc, ok := anomalyExplanations[anomalyID]
	if !ok {
		return newTextResult(fmt.Sprintf(
			"No specific explanation for anomaly '%s'. "+
				"General recommendation: compare heap, thread and job statistics against a healthy baseline "+
				"report and inspect the flagged threads returned by 'summarize_threads'.",
			anomalyID,
		)), nil
	}

	return newTextResult(desc), nil
}

// handleListAnomalies returns all known anomaly metric IDs grouped by category.
func handleListAnomalies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type entry struct {
		ID       string `json:"id"`
		Category string `json:"category"`
		Brief    string `json:"brief"`
	}

	categoryMap := make(map[string]string)
	for _, t := range model.DefaultThresholds() {
		categoryMap[t.Metric] = t.Category
	}

	var entries []entry
	for id, desc := range anomalyExplanations {
		cat := categoryMap[id]
		if cat == "" {
			cat = "general"
		}
		// The first non-empty line is the bold title.
		brief := id
		for _, line := range strings.Split(desc, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				brief = strings.ReplaceAll(line, "**", "")
				break
			}
		}
		entries = append(entries, entry{ID: id, Category: cat, Brief: brief})
	}

	// Sort by category then ID for stable output.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Category != entries[j].Category {
			return entries[i].Category < entries[j].Category
		}
		return entries[i].ID < entries[j].ID
	})

	jsonData, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(jsonData)), nil
}

// getArgs safely extracts the arguments map from a CallToolRequest.
// Returns an empty map if Arguments is nil or not a map.
func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

// stringArg extracts a string argument with a default value.
func stringArg(args map[string]interface{}, key, defaultVal string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

// boolArg extracts a boolean argument; "true"/"false" strings are accepted.
func boolArg(args map[string]interface{}, key string, defaultVal bool) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}

// newTextResult creates a successful MCP tool result with text content.
func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
	}
}

// errResult creates an MCP tool error result (IsError=true).
// This is returned as a tool-level error, not a transport-level JSON-RPC error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: msg,
			},
		},
	}
}

var anomalyExplanations = map[string]string{
	"heap_utilization": `**High JVM Heap Utilization**
Used heap is close to the configured maximum (-Xmx). Full GCs become frequent and long.
**Root Causes:**
- Large payloads held in process variables (big XML/JSON documents)
- Too many concurrent jobs (no flow limit on the starters)
- Heap sized too small for the deployed applications
- Memory leak in a shared resource or custom Java code
**Recommendations:**
- Check 'Top Processes by Jobs' for the process driving job volume.
- Set a flow limit on busy process starters.
- Raise -Xmx in the AppNode TRA/config only after ruling out a leak.`,

	"nonheap_utilization": `**High Non-Heap Utilization**
Metaspace or code cache is near its maximum.
**Root Causes:**
- Many deployed applications or shared modules loading classes
- Repeated redeploys without AppNode restart (class loader leak)
- MaxMetaspaceSize set too low
**Recommendations:**
- Restart the AppNode after frequent redeploys.
- Raise -XX:MaxMetaspaceSize or -XX:ReservedCodeCacheSize.`,

	"jvm_cpu_load": `**High JVM CPU Load**
The AppNode JVM is consuming most of the available CPU.
**Root Causes:**
- Hot loops in mappers or XPath over large documents
- GC thrashing caused by heap pressure
- Heavy XML/JSON parsing or schema validation
**Recommendations:**
- Use 'summarize_threads' to find threads flagged for high CPU.
- Correlate with 'heap_utilization': GC can drive CPU.
- Review the slowest activities in the analysis.`,

	"job_fault_ratio": `**High Job Fault Ratio**
A significant share of created jobs ended faulted.
**Root Causes:**
- Downstream service or database unavailable
- Invalid input data failing validation
- Timeouts on invoke or JDBC activities
**Recommendations:**
- Open the per-application reports (analyze_report with enrich=true) to see which processes fault.
- Check AppNode logs around the fault timestamps.
- Add retry or catch handling for transient errors.`,

	"blocked_threads": `**Blocked Threads**
Threads are waiting to enter a monitor held by another thread.
**Root Causes:**
- Synchronized shared resource (connection pool, cache, logger)
- Lock held during slow I/O
- Critical section activity serializing jobs
**Recommendations:**
- Use 'summarize_threads' to see which lock each blocked thread waits on.
- Find the thread holding that lock in the stack snippets.
- Reduce work done while holding shared locks.`,

	"deadlocked_threads": `**Deadlocked Threads**
The JVM detected threads waiting on each other's locks. They never progress.
**Root Causes:**
- Inconsistent lock acquisition order
- Nested critical sections across processes
- Custom Java code with synchronized callbacks
**Recommendations:**
- Capture a full thread dump and inspect the lock cycle.
- Restart the AppNode to recover; the jobs involved are lost.
- Enforce a single lock order in shared code.`,

	"high_priority_threads": `**High Priority Threads Flagged**
Threads were flagged High: blocked on a monitor or above the CPU threshold.
**Root Causes:**
- Lock contention (see 'blocked_threads')
- CPU-hot mapping or parsing logic
**Recommendations:**
- Use 'summarize_threads' for details and stack snippets.
- Ask for the Developer role prompt to get stack-level guidance.`,

	"thread_peak_ratio": `**Live Threads Near Peak**
The live thread count is at or near the recorded peak.
**Root Causes:**
- Thread pool growing under load
- Threads leaking from custom code or connectors
**Recommendations:**
- Compare against a baseline report with 'bwlens diff'.
- Review engine thread pool and HTTP connector sizes.`,
}
