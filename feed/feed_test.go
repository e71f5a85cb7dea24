package feed

import (
	"encoding/base64"
	"encoding/json"
	"reflect"
	"testing"

	"ibird-backend/models"
)

func msg(t *testing.T, seq int64, payer string, p models.Payload) models.TopicMessage {
	t.Helper()
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return models.TopicMessage{
		SequenceNumber: seq,
		PayerAccountID: payer,
		Contents:       base64.StdEncoding.EncodeToString(raw),
	}
}

func intPtr(v int) *int { return &v }

func TestDecodeSkipsInvalidPayloads(t *testing.T) {
	msgs := []models.TopicMessage{
		msg(t, 1, "0.0.100", models.Payload{Type: models.ContentPost, Message: "hello"}),
		{SequenceNumber: 2, Contents: "not-base64!!"},
		{SequenceNumber: 3, Contents: base64.StdEncoding.EncodeToString([]byte("plain text"))},
		msg(t, 4, "0.0.101", models.Payload{Type: "Bogus"}),
	}

	items := Decode(msgs)
	if len(items) != 1 {
		t.Fatalf("Decode kept %d items, want 1", len(items))
	}
	if items[0].Message.SequenceNumber != 1 {
		t.Errorf("kept message %d, want 1", items[0].Message.SequenceNumber)
	}
}

func TestReactionsCountDistinctSenders(t *testing.T) {
	msgs := []models.TopicMessage{
		msg(t, 5, "0.0.100", models.Payload{Type: models.ContentPost, Message: "root"}),
		// Two likes from the same account count once.
		msg(t, 6, "0.0.200", models.Payload{Type: models.ContentPost, LikeTo: "5"}),
		msg(t, 7, "0.0.200", models.Payload{Type: models.ContentPost, LikeTo: "5"}),
		msg(t, 8, "0.0.201", models.Payload{Type: models.ContentPost, LikeTo: "5"}),
		msg(t, 9, "0.0.202", models.Payload{Type: models.ContentPost, DislikeTo: "5"}),
	}

	counts := Reactions(Decode(msgs))
	got := counts["5"]
	if got.Likes != 2 {
		t.Errorf("likes = %d, want 2 (distinct senders)", got.Likes)
	}
	if got.Dislikes != 1 {
		t.Errorf("dislikes = %d, want 1", got.Dislikes)
	}
}

func TestBuildThreadIndexedRoots(t *testing.T) {
	msgs := []models.TopicMessage{
		// Out-of-order arrival; thread index dictates ordering.
		msg(t, 11, "0.0.100", models.Payload{Type: models.ContentThread, Message: "second", ThreadIndex: intPtr(1)}),
		msg(t, 10, "0.0.100", models.Payload{Type: models.ContentThread, Message: "first", ThreadIndex: intPtr(0)}),
		msg(t, 12, "0.0.200", models.Payload{Type: models.ContentReply, Message: "re first", ReplyTo: "10"}),
		msg(t, 13, "0.0.201", models.Payload{Type: models.ContentReply, Message: "re re", ReplyTo: "12"}),
		msg(t, 14, "0.0.202", models.Payload{Type: models.ContentPost, LikeTo: "12"}),
	}

	th := BuildThread("0.0.777", msgs)
	if th.TopicID != "0.0.777" {
		t.Errorf("topic = %q", th.TopicID)
	}
	if len(th.Posts) != 2 {
		t.Fatalf("posts = %d, want 2", len(th.Posts))
	}
	if th.Posts[0].Payload.Message != "first" || th.Posts[1].Payload.Message != "second" {
		t.Errorf("root order = %q, %q", th.Posts[0].Payload.Message, th.Posts[1].Payload.Message)
	}

	first := th.Posts[0]
	if len(first.Comments) != 1 {
		t.Fatalf("first root has %d comments, want 1", len(first.Comments))
	}
	c := first.Comments[0]
	if c.Payload.Message != "re first" || c.Likes != 1 {
		t.Errorf("comment = %q likes=%d, want \"re first\" likes=1", c.Payload.Message, c.Likes)
	}
	if len(c.Replies) != 1 || c.Replies[0].Payload.Message != "re re" {
		t.Errorf("nested replies = %+v", c.Replies)
	}
}

func TestBuildThreadLegacySingleRoot(t *testing.T) {
	// No message carries a thread index: the earliest message without
	// back-references is the single root.
	msgs := []models.TopicMessage{
		msg(t, 3, "0.0.100", models.Payload{Type: models.ContentPost, Message: "later"}),
		msg(t, 1, "0.0.100", models.Payload{Type: models.ContentPost, Message: "root"}),
		msg(t, 2, "0.0.200", models.Payload{Type: models.ContentReply, Message: "comment", ReplyTo: "1"}),
	}

	th := BuildThread("t", msgs)
	if len(th.Posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(th.Posts))
	}
	if th.Posts[0].Payload.Message != "root" {
		t.Errorf("root = %q, want earliest message", th.Posts[0].Payload.Message)
	}
	if len(th.Posts[0].Comments) != 1 {
		t.Errorf("comments = %d, want 1", len(th.Posts[0].Comments))
	}
}

func TestBuildThreadExcludesReactionsFromTree(t *testing.T) {
	msgs := []models.TopicMessage{
		msg(t, 1, "0.0.100", models.Payload{Type: models.ContentPost, Message: "root"}),
		msg(t, 2, "0.0.200", models.Payload{Type: models.ContentPost, LikeTo: "1"}),
		msg(t, 3, "0.0.201", models.Payload{Type: models.ContentPost, DislikeTo: "1"}),
	}

	th := BuildThread("t", msgs)
	if len(th.Posts) != 1 {
		t.Fatalf("posts = %d, want 1 (reactions leaked into the tree?)", len(th.Posts))
	}
	root := th.Posts[0]
	if root.Likes != 1 || root.Dislikes != 1 {
		t.Errorf("root tallies = %d/%d, want 1/1", root.Likes, root.Dislikes)
	}
	if len(root.Comments) != 0 {
		t.Errorf("reactions appeared as comments: %+v", root.Comments)
	}
}

func TestBuildThreadIdempotent(t *testing.T) {
	msgs := []models.TopicMessage{
		msg(t, 1, "0.0.100", models.Payload{Type: models.ContentThread, Message: "a", ThreadIndex: intPtr(0)}),
		msg(t, 2, "0.0.200", models.Payload{Type: models.ContentReply, Message: "b", ReplyTo: "1"}),
		msg(t, 3, "0.0.201", models.Payload{Type: models.ContentPost, LikeTo: "2"}),
	}

	first := BuildThread("t", msgs)
	second := BuildThread("t", msgs)
	if !reflect.DeepEqual(first, second) {
		t.Error("BuildThread is not idempotent over the same input")
	}
}

func TestBuildThreadOrphanReplies(t *testing.T) {
	// A reply whose parent never arrived must not panic or surface as a root.
	msgs := []models.TopicMessage{
		msg(t, 1, "0.0.100", models.Payload{Type: models.ContentPost, Message: "root"}),
		msg(t, 2, "0.0.200", models.Payload{Type: models.ContentReply, Message: "orphan", ReplyTo: "999"}),
	}

	th := BuildThread("t", msgs)
	if len(th.Posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(th.Posts))
	}
	if len(th.Posts[0].Comments) != 0 {
		t.Errorf("orphan reply attached to the wrong parent: %+v", th.Posts[0].Comments)
	}
}
