package models

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
)

func TestContentTypePlural(t *testing.T) {
	cases := map[ContentType]string{
		ContentPost:   "Posts",
		ContentThread: "Threads",
		ContentPoll:   "Polls",
		ContentAd:     "Ads",
		ContentRepost: "Reposts",
		ContentReply:  "Replies",
	}
	for ct, want := range cases {
		if got := ct.Plural(); got != want {
			t.Errorf("%s.Plural() = %q, want %q", ct, got, want)
		}
	}
}

func TestPayloadEncodeOmitsEmptyFields(t *testing.T) {
	raw, err := Payload{Type: ContentPost, Message: "hi"}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := string(raw)
	for _, field := range []string{"Reply_to", "Like_to", "DisLike_to", "Thread_index", "Choices"} {
		if strings.Contains(s, field) {
			t.Errorf("empty field %q serialized: %s", field, s)
		}
	}
	if !strings.Contains(s, `"Type":"Post"`) {
		t.Errorf("type discriminator missing: %s", s)
	}
}

func TestPayloadEncodeRejectsUnknownType(t *testing.T) {
	if _, err := (Payload{Type: "Blog"}).Encode(); err == nil {
		t.Error("Encode accepted an unknown content type")
	}
}

func TestTopicMessageDecodeRoundTrip(t *testing.T) {
	idx := 2
	in := Payload{Type: ContentThread, Message: "part three", ThreadIndex: &idx}
	raw, err := in.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	m := TopicMessage{
		SequenceNumber: 9,
		Contents:       base64.StdEncoding.EncodeToString(raw),
	}
	out, err := m.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Type != ContentThread || out.Message != "part three" || out.ThreadIndex == nil || *out.ThreadIndex != 2 {
		t.Errorf("round trip = %+v", out)
	}
}

func TestTopicMessageDecodeErrors(t *testing.T) {
	if _, err := (TopicMessage{Contents: "%%%"}).Decode(); err == nil {
		t.Error("invalid base64 did not error")
	}
	bad := base64.StdEncoding.EncodeToString([]byte("not json"))
	if _, err := (TopicMessage{Contents: bad}).Decode(); err == nil {
		t.Error("non-JSON contents did not error")
	}
}

func TestMessagesPageParsesMirrorShape(t *testing.T) {
	raw := `{
		"messages": [
			{"consensus_timestamp":"1700000000.000000001","message":"aGk=","payer_account_id":"0.0.100","sequence_number":7,"topic_id":"0.0.777"}
		],
		"links": {"next": "/api/v1/topics/0.0.777/messages?limit=25&timestamp=gt:1700000000"}
	}`
	var page MessagesPage
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(page.Messages) != 1 || page.Messages[0].SequenceNumber != 7 {
		t.Errorf("messages = %+v", page.Messages)
	}
	if page.Links.Next == "" {
		t.Error("links.next not parsed")
	}
}
