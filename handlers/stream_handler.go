package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"ibird-backend/services"
)

// StreamHandler pushes newly indexed topic messages to websocket clients. The
// mirror node is pull-only, so the stream is a server-side poll fanned out per
// connection.
type StreamHandler struct {
	*BaseHandler
	feedService *services.FeedService
	interval    time.Duration
	upgrader    websocket.Upgrader
}

// NewStreamHandler creates a stream handler polling the mirror every interval.
func NewStreamHandler(feedService *services.FeedService, interval time.Duration) *StreamHandler {
	return &StreamHandler{
		BaseHandler: NewBaseHandler(),
		feedService: feedService,
		interval:    interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser clients connect from the app origin; CORS policy is
			// open, so the websocket origin check matches.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleStream upgrades the connection and streams decoded messages for a
// topic as they appear, starting after the "after" sequence number.
// @Summary Stream new topic messages
// @Router /api/feed/stream [get]
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	topicID := r.URL.Query().Get("topic")
	if topicID == "" {
		h.sendError(w, http.StatusBadRequest, "Topic ID required")
		return
	}

	var afterSeq int64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			h.sendError(w, http.StatusBadRequest, "Invalid after sequence number")
			return
		}
		afterSeq = n
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Read pump: we never expect client frames, but reading is what surfaces
	// the close handshake.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			items, err := h.feedService.MessagesSince(r.Context(), topicID, afterSeq)
			if err != nil {
				log.Printf("Feed stream poll failed for topic %s: %v", topicID, err)
				continue
			}
			for _, it := range items {
				if err := conn.WriteJSON(it); err != nil {
					return
				}
				if it.Message.SequenceNumber > afterSeq {
					afterSeq = it.Message.SequenceNumber
				}
			}
		}
	}
}
