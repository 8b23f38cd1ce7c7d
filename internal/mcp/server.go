// Package mcp exposes report analysis as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"os"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/report"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server instance.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server with registered tools. cfg is the
// parser configuration every tool call starts from.
func NewServer(version string, cfg report.Config) *Server {
	s := server.NewMCPServer("bwlens", version, server.WithLogging())

	registerTools(s, &toolset{cfg: cfg, readFile: os.ReadFile})

	return &Server{
		mcpServer: s,
	}
}

// Start runs the server in stdio mode (blocking).
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools adds all supported tools to the server.
func registerTools(s *server.MCPServer, ts *toolset) {
	// Tool: analyze_report
	analyzeTool := mcp.NewTool("analyze_report",
		mcp.WithDescription("Parse a BusinessWorks HTML performance report from a local path. Returns the full JSON analysis: system info, memory, threads, applications, anomalies, 0-100 health score and AI analysis context."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path to the .html report file"),
		),
		mcp.WithString("role",
			mcp.Description("Audience for the AI context prompt"),
			mcp.DefaultString("Administrator"),
			mcp.Enum("Executive", "Administrator", "Developer"),
		),
		mcp.WithBoolean("enrich",
			mcp.Description("Add offline AI summary and per-application reports"),
		),
	)
	s.AddTool(analyzeTool, ts.handleAnalyzeReport)

	// Tool: summarize_threads
	threadsTool := mcp.NewTool("summarize_threads",
		mcp.WithDescription("Classify the thread dump of a report. Returns thread counts, states, deadlocks, warnings and flagged threads with stack snippets. Smaller than analyze_report."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path to the .html report file"),
		),
	)
	s.AddTool(threadsTool, ts.handleSummarizeThreads)

	// Tool: explain_anomaly
	explainTool := mcp.NewTool("explain_anomaly",
		mcp.WithDescription("Get detailed explanation, root causes, and actionable recommendations for a specific anomaly metric. Use list_anomalies to discover available IDs."),
		mcp.WithString("anomaly_id",
			mcp.Required(),
			mcp.Description("Anomaly metric ID (e.g., 'heap_utilization', 'blocked_threads'). Use list_anomalies to see all."),
		),
	)
	s.AddTool(explainTool, handleExplainAnomaly)

	// Tool: list_anomalies
	listTool := mcp.NewTool("list_anomalies",
		mcp.WithDescription("List all known anomaly metric IDs with brief descriptions. Use with explain_anomaly to get detailed recommendations."),
	)
	s.AddTool(listTool, handleListAnomalies)
}
