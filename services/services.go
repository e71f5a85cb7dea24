package services

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"

	"ibird-backend/ipfs"
	"ibird-backend/ledger"
	"ibird-backend/models"
	"ibird-backend/workflow"
)

// PublishRequest carries everything needed to publish one piece of content.
type PublishRequest struct {
	Type    models.ContentType `json:"type"`
	TopicID string             `json:"topic_id"`
	Text    string             `json:"text"`
	Memo    string             `json:"memo,omitempty"`
	Author  string             `json:"author,omitempty"`

	MediaName string `json:"media_name,omitempty"`
	Media     []byte `json:"media,omitempty"`

	ReplyTo     string   `json:"reply_to,omitempty"`
	Source      string   `json:"source,omitempty"`
	ThreadIndex *int     `json:"thread_index,omitempty"`
	Choices     []string `json:"choices,omitempty"`
	Choice      *int     `json:"choice,omitempty"`
}

// PublishService turns publish requests into step workflows: an upload step
// when media is attached, then a publish step that submits the signed topic
// message. Every request gets its own isolated sequencer.
type PublishService struct {
	media     *ipfs.Client
	submitter *ledger.Submitter
	registry  *workflow.Registry

	maxMediaBytes int64
	depPoll       time.Duration
	depTimeout    time.Duration

	// onPublished is invoked with the topic ID after a workflow completes,
	// for cache invalidation and feed refresh.
	onPublished func(topicID string)
}

// NewPublishService wires the publish pipeline.
func NewPublishService(media *ipfs.Client, submitter *ledger.Submitter, registry *workflow.Registry, maxMediaBytes int64, depPoll, depTimeout time.Duration) *PublishService {
	return &PublishService{
		media:         media,
		submitter:     submitter,
		registry:      registry,
		maxMediaBytes: maxMediaBytes,
		depPoll:       depPoll,
		depTimeout:    depTimeout,
	}
}

// OnPublished registers the completion hook.
func (s *PublishService) OnPublished(fn func(topicID string)) {
	s.onPublished = fn
}

// Validate rejects malformed requests before any workflow is created. The
// media size cap is enforced here, ahead of the uploader.
func (s *PublishService) Validate(req *PublishRequest) error {
	if !req.Type.Valid() {
		return fmt.Errorf("unknown content type %q", req.Type)
	}
	if strings.TrimSpace(req.TopicID) == "" {
		return fmt.Errorf("topic ID is required")
	}
	if int64(len(req.Media)) > s.maxMediaBytes {
		return fmt.Errorf("media exceeds %dMB limit", s.maxMediaBytes>>20)
	}
	switch req.Type {
	case models.ContentPoll:
		if req.Choice == nil && len(req.Choices) < 2 {
			return fmt.Errorf("a poll needs at least two choices")
		}
	case models.ContentReply:
		if req.ReplyTo == "" {
			return fmt.Errorf("a reply needs a reply_to reference")
		}
	case models.ContentRepost:
		if req.Source == "" {
			return fmt.Errorf("a repost needs a source reference")
		}
	}
	if req.Type != models.ContentRepost && req.Choice == nil &&
		strings.TrimSpace(req.Text) == "" && len(req.Media) == 0 {
		return fmt.Errorf("message text or media is required")
	}
	return nil
}

// artifactBox passes the upload CID from the upload step to the publish step
// of one workflow instance.
type artifactBox struct {
	mu  sync.Mutex
	cid string
}

func (b *artifactBox) set(cid string) {
	b.mu.Lock()
	b.cid = cid
	b.mu.Unlock()
}

func (b *artifactBox) get() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cid
}

// Start validates the request and registers a fresh workflow for it. Only the
// steps this submission needs are present: the upload step is omitted
// entirely when no media is attached. The workflow is returned idle; the
// caller drives it via RunStep/ToggleAutoProgress.
func (s *PublishService) Start(req *PublishRequest) (*workflow.Instance, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	box := &artifactBox{}
	hasMedia := len(req.Media) > 0

	var steps []workflow.Step
	if hasMedia {
		media, name := req.Media, req.MediaName
		if name == "" {
			name = "media.bin"
		}
		steps = append(steps, workflow.Step{
			Name: workflow.StepUpload,
			Run: func(ctx context.Context) error {
				cid, err := s.media.AddBytes(ctx, name, media)
				if err != nil {
					return &workflow.UploadError{Err: err}
				}
				box.set(cid)
				return nil
			},
		})
	}

	publish := workflow.Step{
		Name: workflow.StepPublish,
		Run: func(ctx context.Context) error {
			payload := buildPayload(req, box.get())
			_, err := s.submitter.Submit(ctx, req.TopicID, payload, req.Memo)
			return err
		},
	}
	if hasMedia {
		// Never submit a payload with a missing media reference: wait for
		// the upload artifact instead.
		publish.Ready = func() bool { return box.get() != "" }
	}
	steps = append(steps, publish)

	var inst *workflow.Instance
	seq, err := workflow.New(steps, workflow.Options{
		DependencyPoll:    s.depPoll,
		DependencyTimeout: s.depTimeout,
		Notify: func(n workflow.Notice) {
			if inst != nil {
				inst.AddNotice(n)
			}
		},
		OnComplete: func() {
			if s.onPublished != nil {
				s.onPublished(req.TopicID)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	inst = s.registry.Add(seq, string(req.Type))
	return inst, nil
}

// SubmitReaction publishes a like or dislike directly, without a workflow:
// reactions carry no media and need no step UI.
func (s *PublishService) SubmitReaction(ctx context.Context, topicID, target string, dislike bool) (*models.Receipt, error) {
	if topicID == "" || target == "" {
		return nil, fmt.Errorf("topic ID and target are required")
	}
	payload := models.Payload{Type: models.ContentPost}
	if dislike {
		payload.DislikeTo = target
	} else {
		payload.LikeTo = target
	}
	return s.submitter.Submit(ctx, topicID, payload, "")
}

func buildPayload(req *PublishRequest, cid string) models.Payload {
	p := models.Payload{
		Type:    req.Type,
		Message: req.Text,
		Media:   cid,
		Author:  req.Author,
	}
	switch req.Type {
	case models.ContentReply:
		p.ReplyTo = req.ReplyTo
	case models.ContentRepost:
		p.Source = req.Source
	case models.ContentThread:
		p.ThreadIndex = req.ThreadIndex
	case models.ContentPoll:
		p.Choices = req.Choices
		p.Choice = req.Choice
	}
	return p
}

// ShareService builds shareable deep links and their QR codes.
type ShareService struct {
	origin string
}

// NewShareService creates a share service for the given origin.
func NewShareService(origin string) *ShareService {
	return &ShareService{origin: strings.TrimRight(origin, "/")}
}

// BuildLink renders {origin}/{ContentTypePlural}/{id}[?comment={commentID}].
// id is a sequence number for posts/polls/ads and a topic ID for threads.
func (s *ShareService) BuildLink(t models.ContentType, id, commentID string) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("unknown content type %q", t)
	}
	if id == "" {
		return "", fmt.Errorf("content ID is required")
	}
	link := fmt.Sprintf("%s/%s/%s", s.origin, t.Plural(), id)
	if commentID != "" {
		link += "?comment=" + commentID
	}
	return link, nil
}

// QRCode renders a PNG QR code for a share link.
func (s *ShareService) QRCode(link string) ([]byte, error) {
	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(256)); err != nil {
		return nil, fmt.Errorf("failed to encode QR code to PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// HealthService handles health check business logic
type HealthService struct {
	network string
}

// NewHealthService creates a new health service
func NewHealthService(network string) *HealthService {
	return &HealthService{network: network}
}

// GetHealthStatus returns current health status
func (s *HealthService) GetHealthStatus() *models.HealthResponse {
	return &models.HealthResponse{
		Status:    "healthy",
		Message:   "Gateway is running",
		Network:   s.network,
		Timestamp: time.Now().Unix(),
	}
}
