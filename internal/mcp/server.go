package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/perflens/perflens/internal/config"
	"github.com/perflens/perflens/internal/report"
	"github.com/perflens/perflens/internal/snapshot"
	"github.com/perflens/perflens/internal/store"
	"github.com/perflens/perflens/internal/thirdparty"
)

// Server exposes the analysis pipeline as MCP tools so coding agents
// can run audits and query saved sessions over stdio.
type Server struct {
	mcp      *server.MCPServer
	store    *store.Store
	cfg      *config.Config
	taxonomy *thirdparty.Taxonomy
}

func NewServer(version string, st *store.Store, cfg *config.Config, tax *thirdparty.Taxonomy) *Server {
	s := &Server{
		mcp: server.NewMCPServer(
			"perflens",
			version,
			server.WithToolCapabilities(true),
		),
		store:    st,
		cfg:      cfg,
		taxonomy: tax,
	}
	s.registerTools()
	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	analyzeTool := mcplib.NewTool("audit_analyze",
		mcplib.WithDescription(`Run the full performance audit over a capture bundle directory and return the report as JSON. Covers dead-code coverage, layout-shift attribution, and third-party script impact. The report is saved as a session; use the returned sessionId with the other tools.`),
		mcplib.WithString("bundle_dir",
			mcplib.Required(),
			mcplib.Description("Directory containing meta.json plus the capture files"),
		),
	)
	s.mcp.AddTool(analyzeTool, s.handleAnalyze)

	coverageTool := mcplib.NewTool("coverage_summary",
		mcplib.WithDescription(`Return the coverage findings of a saved session: per-file waste percentages, severity buckets, hot paths, and unit breakdowns for the worst offenders.`),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("Session ID from audit_analyze or sessions_list"),
		),
	)
	s.mcp.AddTool(coverageTool, s.handleCoverage)

	shiftsTool := mcplib.NewTool("layout_shifts",
		mcplib.WithDescription(`Return the layout-shift attribution of a saved session: every shift with its classified cause (font-swap, content-insertion, unsized-media, animation) and a fix recommendation per cause.`),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("Session ID from audit_analyze or sessions_list"),
		),
	)
	s.mcp.AddTool(shiftsTool, s.handleShifts)

	thirdPartyTool := mcplib.NewTool("third_party_impact",
		mcplib.WithDescription(`Return the third-party script analysis of a saved session: per-script transfer size, execution and blocking time, vendor category, render-blocking status, and per-category totals.`),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("Session ID from audit_analyze or sessions_list"),
		),
	)
	s.mcp.AddTool(thirdPartyTool, s.handleThirdParty)

	sessionsTool := mcplib.NewTool("sessions_list",
		mcplib.WithDescription(`List saved audit sessions, newest first, with session ID, page URL, and capture time.`),
	)
	s.mcp.AddTool(sessionsTool, s.handleSessions)
}

func (s *Server) handleAnalyze(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	dir, err := request.RequireString("bundle_dir")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	if _, err := os.Stat(dir); err != nil {
		return mcplib.NewToolResultError(fmt.Sprintf("bundle dir: %v", err)), nil
	}

	bundle, err := snapshot.LoadBundle(dir)
	if err != nil {
		return mcplib.NewToolResultError(fmt.Sprintf("loading bundle: %v", err)), nil
	}

	r := report.Build(ctx, bundle, report.Options{
		Thresholds: s.cfg.ReportThresholds(),
		Shift:      s.cfg.ShiftThresholds(),
		Taxonomy:   s.taxonomy,
	})

	if _, err := s.store.Save(r); err != nil {
		return mcplib.NewToolResultError(fmt.Sprintf("saving session: %v", err)), nil
	}

	return jsonResult(r)
}

func (s *Server) handleCoverage(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	r, errResult := s.loadSession(request)
	if errResult != nil {
		return errResult, nil
	}
	if r.Coverage == nil {
		return mcplib.NewToolResultError("session has no coverage data"), nil
	}
	return jsonResult(r.Coverage)
}

func (s *Server) handleShifts(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	r, errResult := s.loadSession(request)
	if errResult != nil {
		return errResult, nil
	}
	if r.Shifts == nil {
		return mcplib.NewToolResultError("session has no layout-shift data"), nil
	}
	return jsonResult(map[string]interface{}{
		"summary": r.Shifts,
		"shifts":  r.ShiftDetail,
	})
}

func (s *Server) handleThirdParty(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	r, errResult := s.loadSession(request)
	if errResult != nil {
		return errResult, nil
	}
	if r.ThirdParty == nil {
		return mcplib.NewToolResultError("session has no third-party data"), nil
	}
	return jsonResult(r.ThirdParty)
}

func (s *Server) handleSessions(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	infos, err := s.store.List()
	if err != nil {
		return mcplib.NewToolResultError(fmt.Sprintf("listing sessions: %v", err)), nil
	}
	return jsonResult(infos)
}

func (s *Server) loadSession(request mcplib.CallToolRequest) (*report.Report, *mcplib.CallToolResult) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return nil, mcplib.NewToolResultError(err.Error())
	}
	r, err := s.store.Load(id)
	if err != nil {
		return nil, mcplib.NewToolResultError(fmt.Sprintf("loading session %s: %v", id, err))
	}
	return r, nil
}

func jsonResult(v interface{}) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcplib.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
