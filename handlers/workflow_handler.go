package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ibird-backend/middleware"
	"ibird-backend/models"
	"ibird-backend/services"
	"ibird-backend/workflow"
)

// WorkflowHandler exposes publish workflows over HTTP: create one from a
// publish request, then drive its steps, auto-progression, and error reset.
// Steps run in the background; clients poll the instance for per-step state.
type WorkflowHandler struct {
	*BaseHandler
	publishService *services.PublishService
	registry       *workflow.Registry
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(publishService *services.PublishService, registry *workflow.Registry) *WorkflowHandler {
	return &WorkflowHandler{
		BaseHandler:    NewBaseHandler(),
		publishService: publishService,
		registry:       registry,
	}
}

type workflowView struct {
	ID      string            `json:"id"`
	Label   string            `json:"label"`
	State   workflow.State    `json:"state"`
	Notices []workflow.Notice `json:"notices,omitempty"`
}

func viewOf(in *workflow.Instance) workflowView {
	return workflowView{
		ID:      in.ID,
		Label:   in.Label,
		State:   in.Seq.Snapshot(),
		Notices: in.Notices(),
	}
}

// HandleCreatePublish accepts a publish request (JSON, or multipart with a
// "media" file) and registers a workflow for it.
// @Summary Start a publish workflow
// @Accept json
// @Accept mpfd
// @Produce json
// @Router /api/publish [post]
func (h *WorkflowHandler) HandleCreatePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, autoStart, err := h.parsePublishRequest(r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	inst, err := h.publishService.Start(req)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	if autoStart {
		go h.runTracked(inst, func() {
			inst.Seq.ToggleAutoProgress(context.Background())
		})
	}

	h.sendJSON(w, http.StatusCreated, models.NewSuccessResponse(viewOf(inst)))
}

func (h *WorkflowHandler) parsePublishRequest(r *http.Request) (*services.PublishRequest, bool, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(128 << 20); err != nil {
			return nil, false, fmt.Errorf("failed to parse form")
		}

		req := &services.PublishRequest{
			Type:    models.ContentType(r.FormValue("type")),
			TopicID: r.FormValue("topic_id"),
			Text:    r.FormValue("text"),
			Memo:    r.FormValue("memo"),
			Author:  r.FormValue("author"),
			ReplyTo: r.FormValue("reply_to"),
			Source:  r.FormValue("source"),
		}

		file, header, err := r.FormFile("media")
		if err != nil && err != http.ErrMissingFile {
			return nil, false, fmt.Errorf("error processing media file")
		}
		if err == nil {
			defer file.Close()
			data, rerr := io.ReadAll(file)
			if rerr != nil {
				return nil, false, fmt.Errorf("error reading media file")
			}
			req.Media = data
			req.MediaName = header.Filename
		}

		return req, r.FormValue("auto") == "true" || r.FormValue("auto") == "1", nil
	}

	var payload struct {
		services.PublishRequest
		MediaBase64 string `json:"media_base64,omitempty"`
		Auto        bool   `json:"auto,omitempty"`
	}
	if err := h.parseJSON(r, &payload); err != nil {
		return nil, false, fmt.Errorf("invalid JSON")
	}
	req := payload.PublishRequest
	if payload.MediaBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(payload.MediaBase64)
		if err != nil {
			return nil, false, fmt.Errorf("invalid base64 media")
		}
		req.Media = data
	}
	return &req, payload.Auto, nil
}

// HandleWorkflow routes /api/workflows/{id}[/run/{step}|/auto|/reset].
func (h *WorkflowHandler) HandleWorkflow(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/workflows/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		h.sendError(w, http.StatusBadRequest, "Workflow ID required")
		return
	}

	inst := h.registry.Get(parts[0])
	if inst == nil {
		h.sendError(w, http.StatusNotFound, "Workflow not found")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.sendSuccess(w, viewOf(inst))

	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.registry.Remove(inst.ID)
		h.sendSuccess(w, map[string]string{"status": "cancelled", "id": inst.ID})

	case len(parts) == 3 && parts[1] == "run" && r.Method == http.MethodPost:
		h.handleRunStep(w, inst, workflow.StepName(parts[2]))

	case len(parts) == 2 && parts[1] == "auto" && r.Method == http.MethodPost:
		go h.runTracked(inst, func() {
			inst.Seq.ToggleAutoProgress(context.Background())
		})
		h.sendJSON(w, http.StatusAccepted, models.NewSuccessResponse(viewOf(inst)))

	case len(parts) == 2 && parts[1] == "reset" && r.Method == http.MethodPost:
		go h.runTracked(inst, func() {
			inst.Seq.ResetAfterError(context.Background())
		})
		h.sendJSON(w, http.StatusAccepted, models.NewSuccessResponse(viewOf(inst)))

	default:
		h.sendError(w, http.StatusNotFound, "Unknown workflow operation")
	}
}

func (h *WorkflowHandler) handleRunStep(w http.ResponseWriter, inst *workflow.Instance, step workflow.StepName) {
	// Precondition violations are reported synchronously; the step itself
	// runs in the background and clients poll for its outcome.
	state := inst.Seq.Snapshot()
	ss, ok := state.Steps[step]
	if !ok {
		h.sendError(w, http.StatusNotFound, fmt.Sprintf("Unknown step %q", step))
		return
	}
	if ss.Disabled || ss.Status == workflow.StatusLoading || ss.Status == workflow.StatusWaiting {
		h.sendError(w, http.StatusConflict, fmt.Sprintf("Step %q is not runnable", step))
		return
	}

	go h.runTracked(inst, func() {
		_ = inst.Seq.RunStep(context.Background(), step)
	})
	h.sendJSON(w, http.StatusAccepted, models.NewSuccessResponse(viewOf(inst)))
}

// runTracked runs a workflow action and records per-step outcomes.
func (h *WorkflowHandler) runTracked(inst *workflow.Instance, fn func()) {
	before := inst.Seq.Snapshot()
	fn()
	after := inst.Seq.Snapshot()

	for name, ss := range after.Steps {
		prev := before.Steps[name]
		if prev.Status == ss.Status {
			continue
		}
		switch ss.Status {
		case workflow.StatusSuccess:
			middleware.CountWorkflowStep(string(name), "success")
		case workflow.StatusError:
			middleware.CountWorkflowStep(string(name), "error")
		}
	}
}

// ReactionHandler publishes likes and dislikes directly.
type ReactionHandler struct {
	*BaseHandler
	publishService *services.PublishService
}

// NewReactionHandler creates a new reaction handler
func NewReactionHandler(publishService *services.PublishService) *ReactionHandler {
	return &ReactionHandler{
		BaseHandler:    NewBaseHandler(),
		publishService: publishService,
	}
}

// HandleReaction submits a like or dislike for a target sequence number.
// @Summary Publish a reaction
// @Accept json
// @Produce json
// @Router /api/reactions [post]
func (h *ReactionHandler) HandleReaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		TopicID string `json:"topic_id"`
		Target  string `json:"target"`
		Dislike bool   `json:"dislike,omitempty"`
	}
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	receipt, err := h.publishService.SubmitReaction(r.Context(), req.TopicID, req.Target, req.Dislike)
	if err != nil {
		if workflow.IsUserRejection(err) {
			h.sendError(w, http.StatusConflict, "Signature request rejected")
			return
		}
		h.sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.sendSuccess(w, receipt)
}
