package mcp

import (
	"context"
	"fmt"
	"strconv"

	"ibird-backend/feed"
	"ibird-backend/models"
	"ibird-backend/services"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerListFeedTool creates a tool for listing a topic's feed page
func (s *MCPServer) registerListFeedTool() {
	tool := mcp.NewTool("list_feed",
		mcp.WithDescription("List a page of decoded messages from a topic feed"),
		mcp.WithString("topic_id", mcp.Description("Topic ID, defaults to the explore feed")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of messages to return")),
		mcp.WithString("cursor", mcp.Description("Pagination cursor from a previous page")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		topicID := toString(args["topic_id"])
		if topicID == "" {
			topicID = s.defaultTopicID
		}
		limit := int(toInt64(args["limit"]))
		cursor := toString(args["cursor"])

		page, err := s.feedSvc.GetPage(ctx, topicID, limit, cursor)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch feed: %v", err)), nil
		}

		items := feed.Decode(page.Messages)
		result := map[string]interface{}{
			"topic_id":  topicID,
			"items":     items,
			"reactions": feed.Reactions(items),
			"next":      page.Links.Next,
		}

		return mcp.NewToolResultText(fmt.Sprintf("Found %d messages:\n\n%+v", len(items), result)), nil
	})
}

// registerGetThreadTool creates a tool for reconstructing a thread
func (s *MCPServer) registerGetThreadTool() {
	tool := mcp.NewTool("get_thread",
		mcp.WithDescription("Reconstruct the full thread for a topic: posts, nested comments, and reaction tallies"),
		mcp.WithString("topic_id", mcp.Required(), mcp.Description("Topic ID of the thread")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topicID, err := request.RequireString("topic_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		thread, err := s.feedSvc.GetThread(ctx, topicID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to reconstruct thread: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Thread for topic %s:\n\n%+v", topicID, thread)), nil
	})
}

// registerPublishPostTool creates a tool for publishing a post
func (s *MCPServer) registerPublishPostTool() {
	tool := mcp.NewTool("publish_post",
		mcp.WithDescription("Start a publish workflow for a text post"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
		mcp.WithString("topic_id", mcp.Description("Target topic, defaults to the explore feed")),
		mcp.WithString("memo", mcp.Description("Transaction memo")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		text, err := request.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		topicID := toString(args["topic_id"])
		if topicID == "" {
			topicID = s.defaultTopicID
		}

		req := &services.PublishRequest{
			Type:    models.ContentPost,
			TopicID: topicID,
			Text:    text,
			Memo:    toString(args["memo"]),
		}
		inst, err := s.publishSvc.Start(req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to start publish workflow: %v", err)), nil
		}

		inst.Seq.ToggleAutoProgress(ctx)

		result := map[string]interface{}{
			"workflow_id": inst.ID,
			"state":       inst.Seq.Snapshot(),
		}
		return mcp.NewToolResultText(fmt.Sprintf("Publish workflow started:\n\n%+v", result)), nil
	})
}

// registerPublishReplyTool creates a tool for publishing a reply
func (s *MCPServer) registerPublishReplyTool() {
	tool := mcp.NewTool("publish_reply",
		mcp.WithDescription("Start a publish workflow for a reply to an existing message"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Reply text")),
		mcp.WithString("topic_id", mcp.Required(), mcp.Description("Topic the parent message lives in")),
		mcp.WithString("reply_to", mcp.Required(), mcp.Description("Sequence number of the parent message")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := request.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		topicID, err := request.RequireString("topic_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		replyTo, err := request.RequireString("reply_to")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		req := &services.PublishRequest{
			Type:    models.ContentReply,
			TopicID: topicID,
			Text:    text,
			ReplyTo: replyTo,
		}
		inst, err := s.publishSvc.Start(req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to start reply workflow: %v", err)), nil
		}

		inst.Seq.ToggleAutoProgress(ctx)

		result := map[string]interface{}{
			"workflow_id": inst.ID,
			"state":       inst.Seq.Snapshot(),
		}
		return mcp.NewToolResultText(fmt.Sprintf("Reply workflow started:\n\n%+v", result)), nil
	})
}

// registerWorkflowStatusTool creates a tool for inspecting a workflow
func (s *MCPServer) registerWorkflowStatusTool() {
	tool := mcp.NewTool("workflow_status",
		mcp.WithDescription("Get the current step states and notifications of a publish workflow"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("workflow_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		inst := s.registry.Get(id)
		if inst == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Workflow %s not found", id)), nil
		}

		result := map[string]interface{}{
			"workflow_id": inst.ID,
			"label":       inst.Label,
			"state":       inst.Seq.Snapshot(),
			"notices":     inst.Notices(),
		}
		return mcp.NewToolResultText(fmt.Sprintf("Workflow status:\n\n%+v", result)), nil
	})
}

// registerShareLinkTool creates a tool for building a shareable link
func (s *MCPServer) registerShareLinkTool() {
	tool := mcp.NewTool("share_link",
		mcp.WithDescription("Build the shareable deep link for a piece of content"),
		mcp.WithString("type", mcp.Required(), mcp.Description("Content type: Post, Thread, Poll, Ad, Repost, or Reply")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Sequence number of the content, or topic ID for threads")),
		mcp.WithString("comment", mcp.Description("Sequence number of a comment to highlight")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		typeStr, err := request.RequireString("type")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		link, err := s.shareSvc.BuildLink(models.ContentType(typeStr), id, toString(args["comment"]))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to build link: %v", err)), nil
		}

		return mcp.NewToolResultText(link), nil
	})
}

// Helper function to convert interface{} to string
func toString(val interface{}) string {
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

// Helper function to convert interface{} to int64
func toInt64(val interface{}) int64 {
	if i, ok := val.(int64); ok {
		return i
	}
	if i, ok := val.(int); ok {
		return int64(i)
	}
	if f, ok := val.(float64); ok {
		return int64(f)
	}
	if str, ok := val.(string); ok {
		if i, err := strconv.ParseInt(str, 10, 64); err == nil {
			return i
		}
	}
	return 0
}
