// Package feed rebuilds threads, comment trees, and reaction tallies from the
// raw message list a mirror node returns for a topic. Everything here is pure:
// the same input always yields the same tree, and nothing is persisted.
package feed

import (
	"sort"
	"strconv"

	"ibird-backend/models"
)

// Item is one decoded topic message.
type Item struct {
	Message models.TopicMessage `json:"message"`
	Payload models.Payload      `json:"payload"`
}

// Comment is a decoded message carrying a reply back-reference, with its own
// nested replies and reaction counts.
type Comment struct {
	Item
	Likes    int        `json:"likes"`
	Dislikes int        `json:"dislikes"`
	Replies  []*Comment `json:"replies,omitempty"`
}

// Post is root thread content.
type Post struct {
	Item
	Likes    int        `json:"likes"`
	Dislikes int        `json:"dislikes"`
	Comments []*Comment `json:"comments,omitempty"`
}

// Thread is the reconstructed view of a topic.
type Thread struct {
	TopicID string `json:"topic_id"`
	Posts   []Post `json:"posts"`
}

// Decode parses every message's payload, dropping records that do not carry
// valid payload JSON (foreign writers can post anything to a public topic).
func Decode(msgs []models.TopicMessage) []Item {
	items := make([]Item, 0, len(msgs))
	for _, m := range msgs {
		p, err := m.Decode()
		if err != nil || !p.Type.Valid() {
			continue
		}
		items = append(items, Item{Message: m, Payload: p})
	}
	return items
}

// ReactionCount tallies distinct reacting senders for one target.
type ReactionCount struct {
	Likes    int
	Dislikes int
}

// Reactions counts likes and dislikes per target sequence number. A tally is
// the number of DISTINCT senders referencing the target, so repeated
// reactions from one account count once.
func Reactions(items []Item) map[string]ReactionCount {
	likers := make(map[string]map[string]bool)
	dislikers := make(map[string]map[string]bool)

	for _, it := range items {
		sender := it.Message.PayerAccountID
		if target := it.Payload.LikeTo; target != "" {
			if likers[target] == nil {
				likers[target] = make(map[string]bool)
			}
			likers[target][sender] = true
		}
		if target := it.Payload.DislikeTo; target != "" {
			if dislikers[target] == nil {
				dislikers[target] = make(map[string]bool)
			}
			dislikers[target][sender] = true
		}
	}

	out := make(map[string]ReactionCount)
	for target, senders := range likers {
		c := out[target]
		c.Likes = len(senders)
		out[target] = c
	}
	for target, senders := range dislikers {
		c := out[target]
		c.Dislikes = len(senders)
		out[target] = c
	}
	return out
}

// BuildThread partitions a topic's messages into root posts and a recursive
// comment tree, attaching reaction tallies. Root posts are ordered by their
// explicit thread index; when no message carries one (legacy topics), the
// earliest message without reply or reaction back-references is the root.
func BuildThread(topicID string, msgs []models.TopicMessage) Thread {
	items := Decode(msgs)
	counts := Reactions(items)

	var roots []Item
	var comments []Item
	hasIndexed := false
	for _, it := range items {
		if it.Payload.ThreadIndex != nil {
			hasIndexed = true
			break
		}
	}

	for _, it := range items {
		switch {
		case isReaction(it):
			// Tallied above; reactions never appear in the tree.
		case it.Payload.ReplyTo != "":
			comments = append(comments, it)
		case hasIndexed && it.Payload.ThreadIndex != nil:
			roots = append(roots, it)
		case hasIndexed:
			// Non-indexed stray content on an indexed topic is ignored.
		default:
			roots = append(roots, it)
		}
	}

	if hasIndexed {
		sort.SliceStable(roots, func(i, j int) bool {
			return *roots[i].Payload.ThreadIndex < *roots[j].Payload.ThreadIndex
		})
	} else if len(roots) > 1 {
		// Legacy topics hold a single root: the earliest qualifying message.
		sort.SliceStable(roots, func(i, j int) bool {
			return roots[i].Message.SequenceNumber < roots[j].Message.SequenceNumber
		})
		roots = roots[:1]
	}

	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].Message.SequenceNumber < comments[j].Message.SequenceNumber
	})

	// Group replies by the sequence number they point at.
	byParent := make(map[string][]Item)
	for _, c := range comments {
		byParent[c.Payload.ReplyTo] = append(byParent[c.Payload.ReplyTo], c)
	}

	thread := Thread{TopicID: topicID}
	for _, r := range roots {
		post := Post{Item: r}
		key := seqKey(r.Message.SequenceNumber)
		post.Likes = counts[key].Likes
		post.Dislikes = counts[key].Dislikes
		post.Comments = buildReplies(byParent, key, counts)
		thread.Posts = append(thread.Posts, post)
	}
	return thread
}

func buildReplies(byParent map[string][]Item, parentKey string, counts map[string]ReactionCount) []*Comment {
	children := byParent[parentKey]
	if len(children) == 0 {
		return nil
	}
	out := make([]*Comment, 0, len(children))
	for _, c := range children {
		key := seqKey(c.Message.SequenceNumber)
		out = append(out, &Comment{
			Item:     c,
			Likes:    counts[key].Likes,
			Dislikes: counts[key].Dislikes,
			Replies:  buildReplies(byParent, key, counts),
		})
	}
	return out
}

func isReaction(it Item) bool {
	return it.Payload.LikeTo != "" || it.Payload.DislikeTo != ""
}

func seqKey(seq int64) string {
	return strconv.FormatInt(seq, 10)
}
