package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ibird-backend/models"
)

// Client provides read-only access to a mirror node's paginated topic
// message API. All durable state lives on the ledger; this client only
// fetches what the mirror indexed.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the given mirror node base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// GetMessages fetches one page of messages for a topic. cursor is either
// empty (first page) or the links.next value from a previous page.
func (c *Client) GetMessages(ctx context.Context, topicID string, limit int, cursor string) (*models.MessagesPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	var reqURL string
	if cursor != "" {
		// links.next is a path with query baked in.
		reqURL = c.baseURL + cursor
	} else {
		reqURL = fmt.Sprintf("%s/api/v1/topics/%s/messages?limit=%d&order=asc", c.baseURL, url.PathEscape(topicID), limit)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch topic messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("topic %s not found", topicID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fetch topic messages: status %d: %s", resp.StatusCode, string(body))
	}

	var page models.MessagesPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode topic messages: %w", err)
	}
	return &page, nil
}

// FetchAll walks every page for a topic (bounded by maxPages) and returns the
// messages deduplicated by sequence number. Pages can overlap when the mirror
// reindexes, so dedupe is unconditional.
func (c *Client) FetchAll(ctx context.Context, topicID string, maxPages int) ([]models.TopicMessage, error) {
	if maxPages <= 0 {
		maxPages = 40
	}

	var all []models.TopicMessage
	cursor := ""
	for i := 0; i < maxPages; i++ {
		page, err := c.GetMessages(ctx, topicID, 100, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Messages...)
		if page.Links.Next == "" {
			break
		}
		cursor = page.Links.Next
	}
	return Dedupe(all), nil
}

// Dedupe drops repeated sequence numbers, keeping first occurrence order.
func Dedupe(msgs []models.TopicMessage) []models.TopicMessage {
	seen := make(map[int64]bool, len(msgs))
	out := make([]models.TopicMessage, 0, len(msgs))
	for _, m := range msgs {
		if seen[m.SequenceNumber] {
			continue
		}
		seen[m.SequenceNumber] = true
		out = append(out, m)
	}
	return out
}
