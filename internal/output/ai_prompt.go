package output

import (
	"fmt"
	"strings"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/report"
)

// personas holds the audience-specific instructions for each role.
var personas = map[model.Role]string{
	model.RoleExecutive: `- Persona: You are a CTO presenting a high-level summary to non-technical executives.
- Focus: Business impact, overall system stability, critical risks, and potential service disruptions.
- Key Metrics: Select metrics that reflect service health, user impact, and major risks (e.g., application downtime, deadlocks, severe errors).
- Language: Use clear, concise business language. Avoid deep technical jargon, stack traces, and granular data.
`,
	model.RoleAdministrator: `- Persona: You are a senior System Administrator or SRE responsible for system uptime and performance.
- Focus: System resource utilization (CPU, Memory), infrastructure health, configuration issues, error rates, and identifying bottlenecks.
- Key Metrics: Select metrics crucial for system health monitoring (e.g., CPU load, memory usage, faulted jobs, thread contention).
- Language: Use technical language appropriate for an infrastructure expert. Provide actionable insights for system tuning and problem resolution.
`,
	model.RoleDeveloper: `- Persona: You are a senior Software Developer debugging a complex application performance issue.
- Focus: Application-level performance, code execution, thread behavior, memory management (heap/non-heap), and potential bugs. Analyze service calls, latency, and errors in detail.
- Key Metrics: Select metrics relevant to debugging (e.g., peak threads, deadlocked threads, heap usage vs. max, specific application error rates).
- Language: Use deep technical language. The analysis should help pinpoint specific areas in the application or code that require attention.
`,
}

// GenerateAIPrompt creates a role-aware prompt for AI analysis of a parsed
// report. An empty role falls back to the Administrator persona.
func GenerateAIPrompt(result *model.AnalysisResult, role model.Role) *model.AIContext {
	if _, ok := personas[role]; !ok {
		role = model.RoleAdministrator
	}
	ctx := &model.AIContext{
		Role:          role,
		Methodology:   "Layered JVM and integration-runtime triage: resources, threads, then application jobs",
		KnownPatterns: knownAntiPatterns(),
	}

	var sb strings.Builder
	sb.WriteString("You are analyzing a TIBCO BusinessWorks AppNode performance report. ")
	sb.WriteString("Adopt the following role:\n")
	sb.WriteString(personas[role])
	sb.WriteString("\nProvide:\n")
	sb.WriteString("1. A concise 2-3 sentence summary of overall health\n")
	sb.WriteString("2. Root cause analysis for each detected anomaly\n")
	sb.WriteString("3. Recommendations ordered by impact\n\n")

	si := result.SystemInfo
	sb.WriteString(fmt.Sprintf("System: %s %s (%s), CPUs: %d, CPU load: %s, Physical memory: %s free of %s\n",
		si.OSName, si.OSVersion, si.Architecture, si.AvailableProcessors, si.CPULoad,
		si.FreePhysicalMemory, si.TotalPhysicalMemory))
	for _, env := range result.ImportantEnvVars {
		sb.WriteString(fmt.Sprintf("  %s=%s\n", env.Key, env.Value))
	}

	mem := result.MemoryAnalysis
	sb.WriteString(fmt.Sprintf("Heap: %s used of %s max, Non-heap: %s used of %s max\n",
		report.FormatBytes(mem.Heap.Used), report.FormatBytes(mem.Heap.Max),
		report.FormatBytes(mem.NonHeap.Used), report.FormatBytes(mem.NonHeap.Max)))

	ta := result.ThreadAnalysis
	sb.WriteString(fmt.Sprintf("Threads: %d live, %d peak, %d daemon", ta.TotalThreads, ta.PeakThreads, ta.DaemonThreads))
	if len(ta.DeadlockedThreads) > 0 {
		sb.WriteString(fmt.Sprintf(", DEADLOCKED: %s", strings.Join(ta.DeadlockedThreads, ", ")))
	}
	sb.WriteString("\n")
	if len(ta.ThreadStates) > 0 {
		parts := make([]string, 0, len(ta.ThreadStates))
		for _, s := range ta.ThreadStates {
			parts = append(parts, fmt.Sprintf("%s=%d", s.State, s.Count))
		}
		sb.WriteString(fmt.Sprintf("Thread states: %s\n", strings.Join(parts, ", ")))
	}

	ps := result.ProcessStats
	sb.WriteString(fmt.Sprintf("Jobs: %d created, %d active, %d faulted across %d applications\n\n",
		ps.TotalJobsCreated, ps.TotalActiveJobs, ps.TotalJobsFaulted, len(result.Applications)))

	// Health score context
	sb.WriteString(fmt.Sprintf("Health Score: %d/100\n", result.HealthScore))

	// Anomalies
	if len(result.Anomalies) > 0 {
		sb.WriteString(fmt.Sprintf("\nDetected Anomalies (%d):\n", len(result.Anomalies)))
		for _, a := range result.Anomalies {
			sb.WriteString(fmt.Sprintf("  [%s] %s: %s (value=%s, threshold=%s)\n",
				strings.ToUpper(a.Severity), a.Category, a.Message, a.Value, a.Threshold))
		}
	}

	if tr := result.DetailedThreadReport; tr != nil && len(tr.ProblematicThreads) > 0 {
		sb.WriteString(fmt.Sprintf("\nFlagged Threads (%d):\n", len(tr.ProblematicThreads)))
		for _, w := range tr.Warnings {
			sb.WriteString(fmt.Sprintf("  [%s] %s\n", strings.ToUpper(string(w.Severity)), w.Description))
		}
		for i, t := range tr.ProblematicThreads {
			if i == 5 {
				sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(tr.ProblematicThreads)-i))
				break
			}
			sb.WriteString(fmt.Sprintf("  %s (%s, %s): %s\n", t.ThreadName, t.State, t.Priority, t.Details))
		}
		if role == model.RoleDeveloper {
			sb.WriteString("\nStack trace snippets are available for flagged threads. Identify lock owners ")
			sb.WriteString("and the code paths holding them.\n")
		}
	}

	if len(result.TopProcessesByJobs) > 0 {
		sb.WriteString("\nBusiest processes:\n")
		for _, p := range result.TopProcessesByJobs {
			sb.WriteString(fmt.Sprintf("  %s: %d jobs\n", p.Name, p.Created))
		}
	}
	if len(result.TopActivitiesByTime) > 0 {
		sb.WriteString("\nSlowest activities:\n")
		for _, a := range result.TopActivitiesByTime {
			sb.WriteString(fmt.Sprintf("  %s/%s: max %dms\n", a.Process, a.Name, a.MaxTime))
		}
	}

	if role == model.RoleExecutive {
		sb.WriteString("\nKeep the answer free of stack traces and raw counters.\n")
	} else {
		sb.WriteString("\nProvide actionable, specific configuration or code changes.\n")
	}

	ctx.Prompt = sb.String()
	return ctx
}

// knownAntiPatterns returns a list of common runtime anti-patterns.
func knownAntiPatterns() []string {
	return []string{
		"P1: Monitor contention (many BLOCKED threads on one lock class → serialized job processing)",
		"P2: Deadlock (JVM-reported deadlocked threads → permanently stuck jobs)",
		"P3: Heap exhaustion (used heap near max → long GC pauses → OutOfMemoryError)",
		"P4: Metaspace growth (non-heap near max → class loading failures after redeploys)",
		"P5: Slow downstream service (RUNNABLE threads in socketRead → engine threads starved)",
		"P6: Hot spinning thread (single thread above CPU threshold → busy loop or regex backtracking)",
		"P7: Engine thread pool saturation (live threads at peak → queued jobs and rising latency)",
		"P8: Fault storm (high faulted/created ratio → retries amplify load)",
		"P9: Idle pool oversizing (many workers parked on queue take → wasted memory)",
		"P10: Long-running activity (max elapsed far above average → blocking call inside a process)",
		"P11: Job backlog (active jobs accumulate while created keeps rising → flow limit reached)",
	}
}
