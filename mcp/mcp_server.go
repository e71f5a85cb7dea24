package mcp

import (
	"ibird-backend/services"
	"ibird-backend/workflow"

	"github.com/mark3labs/mcp-go/server"
)

// MCPServer wraps the mcp-go server with our business logic
type MCPServer struct {
	mcpServer *server.MCPServer

	feedSvc    *services.FeedService
	publishSvc *services.PublishService
	shareSvc   *services.ShareService
	registry   *workflow.Registry

	defaultTopicID string
}

// NewMCPServer creates a new MCP server using the mcp-go library
func NewMCPServer(feedSvc *services.FeedService, publishSvc *services.PublishService, shareSvc *services.ShareService, registry *workflow.Registry, defaultTopicID string) *MCPServer {
	// Create the MCP server
	mcpServer := server.NewMCPServer(
		"iBird MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		mcpServer:      mcpServer,
		feedSvc:        feedSvc,
		publishSvc:     publishSvc,
		shareSvc:       shareSvc,
		registry:       registry,
		defaultTopicID: defaultTopicID,
	}

	// Register all tools
	s.registerTools()

	return s
}

// GetMCPServer returns the underlying MCP server for transport setup
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// registerTools registers all MCP tools with the server
func (s *MCPServer) registerTools() {
	// Read-path tools
	s.registerListFeedTool()
	s.registerGetThreadTool()

	// Publish tools
	s.registerPublishPostTool()
	s.registerPublishReplyTool()

	// Workflow tools
	s.registerWorkflowStatusTool()

	// Share tool
	s.registerShareLinkTool()
}
