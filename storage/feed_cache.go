package storage

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"ibird-backend/feed"
	"ibird-backend/models"
)

// FeedCache is a read-path cache for mirror pages and reconstructed threads.
// It is purely an accelerator: the ledger stays the source of truth and every
// entry can be re-derived from a fresh fetch.
type FeedCache struct {
	pages   *lru.Cache[string, pageEntry]
	threads *lru.Cache[string, threadEntry]
	ttl     time.Duration

	mu sync.Mutex
	// topic -> cache keys, so a publish can invalidate one topic cheaply.
	topicKeys map[string][]string
}

type pageEntry struct {
	page *models.MessagesPage
	at   time.Time
}

type threadEntry struct {
	thread *feed.Thread
	at     time.Time
}

// NewFeedCache builds a cache holding up to size entries per kind, each valid
// for ttl.
func NewFeedCache(size int, ttl time.Duration) (*FeedCache, error) {
	if size <= 0 {
		size = 1024
	}
	pages, err := lru.New[string, pageEntry](size)
	if err != nil {
		return nil, err
	}
	threads, err := lru.New[string, threadEntry](size)
	if err != nil {
		return nil, err
	}
	return &FeedCache{
		pages:     pages,
		threads:   threads,
		ttl:       ttl,
		topicKeys: make(map[string][]string),
	}, nil
}

// GetPage returns a cached page for topic+cursor if still fresh.
func (c *FeedCache) GetPage(topicID, cursor string) (*models.MessagesPage, bool) {
	entry, ok := c.pages.Get(pageKey(topicID, cursor))
	if !ok || time.Since(entry.at) > c.ttl {
		return nil, false
	}
	return entry.page, true
}

// PutPage caches a page for topic+cursor.
func (c *FeedCache) PutPage(topicID, cursor string, page *models.MessagesPage) {
	key := pageKey(topicID, cursor)
	c.pages.Add(key, pageEntry{page: page, at: time.Now()})
	c.trackKey(topicID, key)
}

// GetThread returns a cached reconstructed thread if still fresh.
func (c *FeedCache) GetThread(topicID string) (*feed.Thread, bool) {
	entry, ok := c.threads.Get(topicID)
	if !ok || time.Since(entry.at) > c.ttl {
		return nil, false
	}
	return entry.thread, true
}

// PutThread caches a reconstructed thread.
func (c *FeedCache) PutThread(topicID string, t *feed.Thread) {
	c.threads.Add(topicID, threadEntry{thread: t, at: time.Now()})
}

// InvalidateTopic drops every cached entry for a topic. Called after a
// successful publish so the next read reflects the new message.
func (c *FeedCache) InvalidateTopic(topicID string) {
	c.threads.Remove(topicID)

	c.mu.Lock()
	keys := c.topicKeys[topicID]
	delete(c.topicKeys, topicID)
	c.mu.Unlock()

	for _, k := range keys {
		c.pages.Remove(k)
	}
}

func (c *FeedCache) trackKey(topicID, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topicKeys[topicID] = append(c.topicKeys[topicID], key)
}

func pageKey(topicID, cursor string) string {
	return topicID + "|" + cursor
}
