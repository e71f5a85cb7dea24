package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// ContentType discriminates the payload kinds published to a topic.
type ContentType string

const (
	ContentPost   ContentType = "Post"
	ContentThread ContentType = "Thread"
	ContentPoll   ContentType = "Poll"
	ContentAd     ContentType = "Ad"
	ContentRepost ContentType = "Repost"
	ContentReply  ContentType = "Reply"
)

// Plural returns the path segment used in shareable deep links
// ({origin}/{plural}/{id}).
func (t ContentType) Plural() string {
	switch t {
	case ContentPost:
		return "Posts"
	case ContentThread:
		return "Threads"
	case ContentPoll:
		return "Polls"
	case ContentAd:
		return "Ads"
	case ContentRepost:
		return "Reposts"
	case ContentReply:
		return "Replies"
	}
	return "Posts"
}

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	switch t {
	case ContentPost, ContentThread, ContentPoll, ContentAd, ContentRepost, ContentReply:
		return true
	}
	return false
}

// Payload is the structured content embedded in a topic message. The gateway
// authors the narrow shape below; the mirror node returns it wrapped in a
// TopicMessage after network processing.
type Payload struct {
	Type    ContentType `json:"Type"`
	Message string      `json:"Message,omitempty"`
	Media   string      `json:"Media,omitempty"` // CID on the storage network
	Author  string      `json:"Author,omitempty"`

	// Back-references carry the target sequence number (or topic ID for
	// reposts) as a decimal string, matching the on-ledger convention.
	ReplyTo   string `json:"Reply_to,omitempty"`
	LikeTo    string `json:"Like_to,omitempty"`
	DislikeTo string `json:"DisLike_to,omitempty"`
	Source    string `json:"Source,omitempty"` // reposted content reference

	// Thread posts carry an explicit ordering index. Pointer so plain posts
	// omit the field entirely.
	ThreadIndex *int `json:"Thread_index,omitempty"`

	// Poll-only fields.
	Choices []string `json:"Choices,omitempty"`
	Choice  *int     `json:"Choice,omitempty"`
}

// Encode renders the payload as the JSON bytes submitted to the topic.
func (p Payload) Encode() ([]byte, error) {
	if !p.Type.Valid() {
		return nil, fmt.Errorf("unknown content type %q", p.Type)
	}
	return json.Marshal(p)
}

// TopicMessage is a mirror-node-supplied record. Read-only: the gateway never
// authors this shape directly.
type TopicMessage struct {
	ConsensusTimestamp string `json:"consensus_timestamp"`
	Contents           string `json:"message"` // base64-encoded payload
	PayerAccountID     string `json:"payer_account_id"`
	SequenceNumber     int64  `json:"sequence_number"`
	TopicID            string `json:"topic_id"`
}

// Decode parses the base64 payload carried by the message. Messages whose
// contents are not valid payload JSON are skipped by callers, not errors the
// feed surfaces.
func (m TopicMessage) Decode() (Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(m.Contents)
	if err != nil {
		return Payload{}, fmt.Errorf("decode message %d: %w", m.SequenceNumber, err)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("parse message %d: %w", m.SequenceNumber, err)
	}
	return p, nil
}

// MessagesPage is one page of the mirror node's paginated topic listing.
type MessagesPage struct {
	Messages []TopicMessage `json:"messages"`
	Links    PageLinks      `json:"links"`
}

// PageLinks carries the cursor to the next page, empty when exhausted.
type PageLinks struct {
	Next string `json:"next"`
}

// Receipt is the confirmation record for a submitted transaction.
type Receipt struct {
	TransactionID string `json:"transaction_id"`
	Result        string `json:"result"`
	ConsensusAt   string `json:"consensus_at,omitempty"`
}

// ReceiptSuccess is the only Result value treated as a successful submission.
const ReceiptSuccess = "SUCCESS"

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Network   string `json:"network,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorResponse represents API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code,omitempty"`
	Hint      string `json:"hint,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// APIResponse represents a generic API response
type APIResponse struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Error   *ErrorResponse         `json:"error,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *APIResponse {
	return &APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(error string, code int) *APIResponse {
	return &APIResponse{
		Success: false,
		Error: &ErrorResponse{
			Error:     error,
			Message:   error,
			Code:      code,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewErrorResponseWithHint creates an error response with a hint.
func NewErrorResponseWithHint(error string, code int, hint string) *APIResponse {
	resp := NewErrorResponse(error, code)
	if resp != nil && resp.Error != nil {
		resp.Error.Hint = hint
	}
	return resp
}

// NewSuccessResponseWithMeta creates a success response with metadata
func NewSuccessResponseWithMeta(data interface{}, meta map[string]interface{}) *APIResponse {
	return &APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	}
}
