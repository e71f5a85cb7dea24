package services

import (
	"context"
	"log"
	"time"

	"ibird-backend/feed"
	"ibird-backend/mirror"
	"ibird-backend/models"
	"ibird-backend/storage"
)

// FeedService serves the read path: paginated topic pages for infinite
// scroll and fully reconstructed threads. It layers an in-memory cache (and
// an optional Postgres tier) over the mirror node.
type FeedService struct {
	mirror *mirror.Client
	cache  *storage.FeedCache
	pages  storage.PageStore // nil when no DATABASE_URL is configured

	pageTTL time.Duration
}

// NewFeedService wires the read path. pages may be nil.
func NewFeedService(m *mirror.Client, cache *storage.FeedCache, pages storage.PageStore, pageTTL time.Duration) *FeedService {
	return &FeedService{
		mirror:  m,
		cache:   cache,
		pages:   pages,
		pageTTL: pageTTL,
	}
}

// GetPage returns one page of topic messages, serving from cache when fresh.
// cursor is the links.next value of the previous page, empty for the first.
func (s *FeedService) GetPage(ctx context.Context, topicID string, limit int, cursor string) (*models.MessagesPage, error) {
	if page, ok := s.cache.GetPage(topicID, cursor); ok {
		return page, nil
	}

	if s.pages != nil {
		if page, err := s.pages.GetPage(ctx, topicID, cursor, s.pageTTL); err != nil {
			log.Printf("Postgres page cache read failed: %v", err)
		} else if page != nil {
			s.cache.PutPage(topicID, cursor, page)
			return page, nil
		}
	}

	page, err := s.mirror.GetMessages(ctx, topicID, limit, cursor)
	if err != nil {
		return nil, err
	}
	page.Messages = mirror.Dedupe(page.Messages)

	s.cache.PutPage(topicID, cursor, page)
	if s.pages != nil {
		if err := s.pages.PutPage(ctx, topicID, cursor, page); err != nil {
			log.Printf("Postgres page cache write failed: %v", err)
		}
	}
	return page, nil
}

// GetThread fetches every message for a topic and reconstructs the thread
// tree. The reconstruction is pure and re-derivable, so a cached copy is just
// an accelerator.
func (s *FeedService) GetThread(ctx context.Context, topicID string) (*feed.Thread, error) {
	if t, ok := s.cache.GetThread(topicID); ok {
		return t, nil
	}

	msgs, err := s.mirror.FetchAll(ctx, topicID, 0)
	if err != nil {
		return nil, err
	}
	t := feed.BuildThread(topicID, msgs)
	s.cache.PutThread(topicID, &t)
	return &t, nil
}

// MessagesSince returns decoded messages with a sequence number greater than
// afterSeq, oldest first. Used by the feed stream.
func (s *FeedService) MessagesSince(ctx context.Context, topicID string, afterSeq int64) ([]feed.Item, error) {
	msgs, err := s.mirror.FetchAll(ctx, topicID, 0)
	if err != nil {
		return nil, err
	}
	var fresh []models.TopicMessage
	for _, m := range msgs {
		if m.SequenceNumber > afterSeq {
			fresh = append(fresh, m)
		}
	}
	return feed.Decode(fresh), nil
}

// Invalidate drops cached state for a topic so the next read refetches.
func (s *FeedService) Invalidate(topicID string) {
	s.cache.InvalidateTopic(topicID)
}
