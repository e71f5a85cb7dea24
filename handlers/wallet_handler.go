package handlers

import (
	"net/http"

	"ibird-backend/ledger"
)

// WalletHandler manages the gateway's wallet session.
type WalletHandler struct {
	*BaseHandler
	connector ledger.Connector
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(connector ledger.Connector) *WalletHandler {
	return &WalletHandler{
		BaseHandler: NewBaseHandler(),
		connector:   connector,
	}
}

// HandleWallet routes GET /api/wallet (session status).
// @Summary Wallet session status
// @Produce json
// @Router /api/wallet [get]
func (h *WalletHandler) HandleWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	h.sendSuccess(w, map[string]interface{}{
		"connected": h.connector.Connected(),
		"wallets":   ledger.WalletNames,
	})
}

// HandleConnect pairs with a named wallet connector.
// @Summary Connect a wallet
// @Accept json
// @Produce json
// @Router /api/wallet/connect [post]
func (h *WalletHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		Wallet string `json:"wallet"`
	}
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !ledger.KnownWallet(req.Wallet) {
		h.sendError(w, http.StatusBadRequest, "Unknown wallet connector")
		return
	}

	if err := h.connector.Connect(r.Context(), req.Wallet); err != nil {
		h.sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.sendSuccess(w, map[string]string{"status": "connected", "wallet": req.Wallet})
}

// HandleDisconnect drops the wallet session.
// @Summary Disconnect the wallet
// @Produce json
// @Router /api/wallet/disconnect [post]
func (h *WalletHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	h.connector.Disconnect()
	h.sendSuccess(w, map[string]string{"status": "disconnected"})
}
