package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"ibird-backend/feed"
	"ibird-backend/models"
	"ibird-backend/services"
)

// FeedHandler serves the read path: paginated topic pages and reconstructed
// threads.
type FeedHandler struct {
	*BaseHandler
	feedService *services.FeedService
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feedService *services.FeedService) *FeedHandler {
	return &FeedHandler{
		BaseHandler: NewBaseHandler(),
		feedService: feedService,
	}
}

// HandleMessages returns one page of a topic's messages with the decoded
// payloads and reaction tallies alongside the raw records.
// @Summary Fetch a page of topic messages
// @Produce json
// @Router /api/topics/{topicID}/messages [get]
func (h *FeedHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/topics/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "messages" {
		h.sendError(w, http.StatusBadRequest, "Topic ID required")
		return
	}
	topicID := parts[0]

	limit := 25
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.sendError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	cursor := r.URL.Query().Get("cursor")

	page, err := h.feedService.GetPage(r.Context(), topicID, limit, cursor)
	if err != nil {
		h.sendError(w, http.StatusBadGateway, err.Error())
		return
	}

	items := feed.Decode(page.Messages)
	resp := map[string]interface{}{
		"topic_id":  topicID,
		"items":     items,
		"reactions": feed.Reactions(items),
		"next":      page.Links.Next,
	}
	h.sendSuccess(w, resp)
}

// HandleThread returns the fully reconstructed thread for a topic.
// @Summary Reconstruct a thread
// @Produce json
// @Router /api/threads/{topicID} [get]
func (h *FeedHandler) HandleThread(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	topicID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/threads/"), "/")
	if topicID == "" {
		h.sendError(w, http.StatusBadRequest, "Topic ID required")
		return
	}

	thread, err := h.feedService.GetThread(r.Context(), topicID)
	if err != nil {
		h.sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.sendJSON(w, http.StatusOK, models.NewSuccessResponse(thread))
}
