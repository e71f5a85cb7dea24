package handlers

import (
	"encoding/json"
	"net/http"

	"ibird-backend/models"
	"ibird-backend/services"
)

// BaseHandler provides common functionality for all handlers
type BaseHandler struct{}

// NewBaseHandler creates a new base handler
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// sendJSON sends a JSON response
func (h *BaseHandler) sendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// sendError sends an error response
func (h *BaseHandler) sendError(w http.ResponseWriter, statusCode int, message string) {
	errorResp := models.NewErrorResponse(message, statusCode)
	h.sendJSON(w, statusCode, errorResp)
}

// sendSuccess sends a success response
func (h *BaseHandler) sendSuccess(w http.ResponseWriter, data interface{}) {
	successResp := models.NewSuccessResponse(data)
	h.sendJSON(w, http.StatusOK, successResp)
}

// parseJSON parses JSON from request
func (h *BaseHandler) parseJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	*BaseHandler
	healthService *services.HealthService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(healthService *services.HealthService) *HealthHandler {
	return &HealthHandler{
		BaseHandler:   NewBaseHandler(),
		healthService: healthService,
	}
}

// HandleHealth handles health check requests
// @Summary Gateway health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /api/health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	health := h.healthService.GetHealthStatus()
	h.sendSuccess(w, health)
}

// ShareHandler builds shareable deep links and QR codes for content.
type ShareHandler struct {
	*BaseHandler
	shareService *services.ShareService
}

// NewShareHandler creates a new share handler
func NewShareHandler(shareService *services.ShareService) *ShareHandler {
	return &ShareHandler{
		BaseHandler:  NewBaseHandler(),
		shareService: shareService,
	}
}

// HandleShareLink renders the deep link for a piece of content.
// @Summary Build a shareable link
// @Produce json
// @Router /api/share/link [get]
func (h *ShareHandler) HandleShareLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	link, err := h.buildLinkFromQuery(r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.sendSuccess(w, map[string]string{"link": link})
}

// HandleShareQR renders a QR code PNG for a piece of content.
// @Summary QR code for a shareable link
// @Produce png
// @Router /api/share/qr [get]
func (h *ShareHandler) HandleShareQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	link, err := h.buildLinkFromQuery(r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	qrData, err := h.shareService.QRCode(link)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(qrData)
}

func (h *ShareHandler) buildLinkFromQuery(r *http.Request) (string, error) {
	contentType := models.ContentType(r.URL.Query().Get("type"))
	id := r.URL.Query().Get("id")
	comment := r.URL.Query().Get("comment")
	return h.shareService.BuildLink(contentType, id, comment)
}
