package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	domainassign "github.com/jmoreland/lead-mesh/internal/domain/assignment"
	portdir "github.com/jmoreland/lead-mesh/internal/port/directory"
	assignersvc "github.com/jmoreland/lead-mesh/internal/service/assigner"
	settingssvc "github.com/jmoreland/lead-mesh/internal/service/settings"
)

// RegisterTools registers all MCP tools on the server.
func RegisterTools(
	s *mcpserver.MCPServer,
	assignerSvc *assignersvc.Service,
	settingsSvc *settingssvc.Service,
	dir portdir.Directory,
) {
	s.AddTool(mcpmcp.NewTool("get_assignment_settings",
		mcpmcp.WithDescription("Read the assignment policy of an integration: enabled flag, mode, algorithm and configured targets."),
		mcpmcp.WithString("integration_type", mcpmcp.Required(), mcpmcp.Description("One of: website, facebook, shopify, generic")),
		mcpmcp.WithString("integration_id", mcpmcp.Required(), mcpmcp.Description("Integration identifier")),
	), getSettingsHandler(settingsSvc))

	s.AddTool(mcpmcp.NewTool("list_eligible_users",
		mcpmcp.WithDescription("Resolve the current eligible pool for an integration, in selection order."),
		mcpmcp.WithString("integration_type", mcpmcp.Required(), mcpmcp.Description("One of: website, facebook, shopify, generic")),
		mcpmcp.WithString("integration_id", mcpmcp.Required(), mcpmcp.Description("Integration identifier")),
		mcpmcp.WithString("org_id", mcpmcp.Required(), mcpmcp.Description("Organization identifier")),
	), listEligibleHandler(assignerSvc, dir))

	s.AddTool(mcpmcp.NewTool("preview_next_assignee",
		mcpmcp.WithDescription("Preview who the next assignment would pick, without consuming a pool position. Uses the exact selection function real assignment uses."),
		mcpmcp.WithString("integration_type", mcpmcp.Required(), mcpmcp.Description("One of: website, facebook, shopify, generic")),
		mcpmcp.WithString("integration_id", mcpmcp.Required(), mcpmcp.Description("Integration identifier")),
		mcpmcp.WithString("org_id", mcpmcp.Required(), mcpmcp.Description("Organization identifier")),
	), previewNextHandler(assignerSvc, dir))

	s.AddTool(mcpmcp.NewTool("assign_lead",
		mcpmcp.WithDescription("Run the assignment engine for a freshly created lead. Returns the structured outcome; a non-assignment is reported in the reason field, never as an error."),
		mcpmcp.WithString("lead_id", mcpmcp.Required(), mcpmcp.Description("Lead identifier")),
		mcpmcp.WithString("integration_type", mcpmcp.Required(), mcpmcp.Description("One of: website, facebook, shopify, generic")),
		mcpmcp.WithString("integration_id", mcpmcp.Required(), mcpmcp.Description("Integration identifier")),
		mcpmcp.WithString("org_id", mcpmcp.Required(), mcpmcp.Description("Organization identifier")),
	), assignLeadHandler(assignerSvc, dir))
}

func parseKey(req mcpmcp.CallToolRequest) (domainassign.Key, error) {
	key := domainassign.Key{
		Type: domainassign.IntegrationType(mcpmcp.ParseString(req, "integration_type", "")),
		ID:   mcpmcp.ParseString(req, "integration_id", ""),
	}
	if !key.Type.Valid() || key.ID == "" {
		return domainassign.Key{}, fmt.Errorf("invalid integration type or id")
	}
	return key, nil
}

func jsonResult(v any) *mcpmcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err))
	}
	return mcpmcp.NewToolResultText(string(data))
}

func getSettingsHandler(svc *settingssvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		key, err := parseKey(req)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		p, err := svc.Get(ctx, key)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		return jsonResult(p), nil
	}
}

func listEligibleHandler(svc *assignersvc.Service, dir portdir.Directory) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		key, err := parseKey(req)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		users, err := svc.Eligible(ctx, key, mcpmcp.ParseString(req, "org_id", ""), dir)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		return jsonResult(users), nil
	}
}

func previewNextHandler(svc *assignersvc.Service, dir portdir.Directory) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		key, err := parseKey(req)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		next, err := svc.Preview(ctx, key, mcpmcp.ParseString(req, "org_id", ""), dir)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		if next == nil {
			return mcpmcp.NewToolResultText("null"), nil
		}
		return jsonResult(next), nil
	}
}

func assignLeadHandler(svc *assignersvc.Service, dir portdir.Directory) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		key, err := parseKey(req)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		leadID := mcpmcp.ParseString(req, "lead_id", "")
		orgID := mcpmcp.ParseString(req, "org_id", "")
		outcome, err := svc.Assign(ctx, leadID, key, orgID, dir)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		return jsonResult(outcome), nil
	}
}
