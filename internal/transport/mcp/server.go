package mcp

import (
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	portdir "github.com/jmoreland/lead-mesh/internal/port/directory"
	assignersvc "github.com/jmoreland/lead-mesh/internal/service/assigner"
	settingssvc "github.com/jmoreland/lead-mesh/internal/service/settings"
)

// Server exposes the assignment engine to autonomous-agent assignees over
// MCP: agents can inspect the policy they are part of, list the current
// pool, preview the next pick, and trigger an assignment for a lead they
// created themselves.
type Server struct {
	httpSrv *mcpserver.StreamableHTTPServer
}

func New(assignerSvc *assignersvc.Service, settingsSvc *settingssvc.Service, dir portdir.Directory) *Server {
	mcpSrv := mcpserver.NewMCPServer(
		"lead-mesh",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	RegisterTools(mcpSrv, assignerSvc, settingsSvc, dir)

	return &Server{httpSrv: mcpserver.NewStreamableHTTPServer(mcpSrv)}
}

// Handler returns an http.Handler that serves the MCP endpoint.
func (s *Server) Handler() http.Handler {
	return s.httpSrv
}
