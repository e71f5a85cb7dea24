package main

import (
	"log"

	"ibird-backend/config"
	"ibird-backend/container"
	"ibird-backend/mcp"

	"github.com/mark3labs/mcp-go/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	c, err := container.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer c.Close()

	// Create new MCP server using mcp-go
	mcpServer := mcp.NewMCPServer(c.FeedService, c.PublishService, c.ShareService, c.Registry, cfg.ExploreTopicID)

	log.Printf("iBird MCP server starting (network=%s)", cfg.Network)
	log.Printf("Server: iBird MCP Server v1.0.0")

	// Start the MCP server using stdio transport
	if err := server.ServeStdio(mcpServer.GetMCPServer()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
