package storage

import (
	"testing"
	"time"

	"ibird-backend/feed"
	"ibird-backend/models"
)

func newCache(t *testing.T, ttl time.Duration) *FeedCache {
	t.Helper()
	c, err := NewFeedCache(16, ttl)
	if err != nil {
		t.Fatalf("NewFeedCache: %v", err)
	}
	return c
}

func TestFeedCachePageRoundTrip(t *testing.T) {
	c := newCache(t, time.Minute)
	page := &models.MessagesPage{Messages: []models.TopicMessage{{SequenceNumber: 1}}}

	if _, ok := c.GetPage("0.0.1", ""); ok {
		t.Error("empty cache returned a page")
	}

	c.PutPage("0.0.1", "", page)
	got, ok := c.GetPage("0.0.1", "")
	if !ok || len(got.Messages) != 1 {
		t.Errorf("GetPage = %+v, %v", got, ok)
	}

	// Different cursor is a different entry.
	if _, ok := c.GetPage("0.0.1", "/page2"); ok {
		t.Error("cursor ignored in cache key")
	}
}

func TestFeedCacheTTLExpiry(t *testing.T) {
	c := newCache(t, 10*time.Millisecond)
	c.PutPage("0.0.1", "", &models.MessagesPage{})
	c.PutThread("0.0.1", &feed.Thread{TopicID: "0.0.1"})

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.GetPage("0.0.1", ""); ok {
		t.Error("stale page served")
	}
	if _, ok := c.GetThread("0.0.1"); ok {
		t.Error("stale thread served")
	}
}

func TestFeedCacheInvalidateTopic(t *testing.T) {
	c := newCache(t, time.Minute)
	c.PutPage("0.0.1", "", &models.MessagesPage{})
	c.PutPage("0.0.1", "/page2", &models.MessagesPage{})
	c.PutPage("0.0.2", "", &models.MessagesPage{})
	c.PutThread("0.0.1", &feed.Thread{TopicID: "0.0.1"})

	c.InvalidateTopic("0.0.1")

	if _, ok := c.GetPage("0.0.1", ""); ok {
		t.Error("invalidated page still cached")
	}
	if _, ok := c.GetPage("0.0.1", "/page2"); ok {
		t.Error("invalidated cursored page still cached")
	}
	if _, ok := c.GetThread("0.0.1"); ok {
		t.Error("invalidated thread still cached")
	}
	// Other topics are untouched.
	if _, ok := c.GetPage("0.0.2", ""); !ok {
		t.Error("unrelated topic was invalidated")
	}
}
