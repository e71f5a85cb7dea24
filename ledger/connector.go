package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"ibird-backend/models"
	"ibird-backend/workflow"
)

// WalletNames enumerates the supported wallet connectors.
var WalletNames = []string{"hashpack", "blade", "kabila"}

// KnownWallet reports whether name is a supported connector.
func KnownWallet(name string) bool {
	for _, w := range WalletNames {
		if w == name {
			return true
		}
	}
	return false
}

// Connector is the wallet boundary: an opaque capability that can pair with a
// named wallet and submit signed messages to a topic. The signing protocol
// itself lives outside this codebase.
type Connector interface {
	Connect(ctx context.Context, walletName string) error
	Disconnect()
	Connected() bool
	SubmitMessage(ctx context.Context, topicID string, message []byte, memo string) (*models.Receipt, error)
}

// RemoteSigner is a Connector backed by an external signer service that holds
// the wallet session. A declined signature comes back as HTTP 409 and is
// mapped to the user-rejection sentinel, never to a generic error, so the
// workflow can halt auto-progression instead of re-prompting the wallet.
type RemoteSigner struct {
	baseURL string
	client  *http.Client

	mu     sync.Mutex
	wallet string
}

// NewRemoteSigner builds a connector for the signer at baseURL.
func NewRemoteSigner(baseURL string) *RemoteSigner {
	return &RemoteSigner{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Connect pairs with the named wallet.
func (rs *RemoteSigner) Connect(ctx context.Context, walletName string) error {
	if !KnownWallet(walletName) {
		return fmt.Errorf("unknown wallet connector %q", walletName)
	}

	body, _ := json.Marshal(map[string]string{"wallet": walletName})
	resp, err := rs.post(ctx, "/v1/connect", body)
	if err != nil {
		return fmt.Errorf("wallet connect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wallet connect: %s", readError(resp))
	}

	rs.mu.Lock()
	rs.wallet = walletName
	rs.mu.Unlock()
	return nil
}

// Disconnect drops the wallet session. Errors from the signer are ignored;
// the local session is cleared regardless.
func (rs *RemoteSigner) Disconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if resp, err := rs.post(ctx, "/v1/disconnect", nil); err == nil {
		resp.Body.Close()
	}

	rs.mu.Lock()
	rs.wallet = ""
	rs.mu.Unlock()
}

// Connected reports whether a wallet session is active.
func (rs *RemoteSigner) Connected() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.wallet != ""
}

// SubmitMessage asks the signer to submit message to topicID and returns the
// receipt.
func (rs *RemoteSigner) SubmitMessage(ctx context.Context, topicID string, message []byte, memo string) (*models.Receipt, error) {
	if !rs.Connected() {
		return nil, fmt.Errorf("no wallet connected")
	}

	body, _ := json.Marshal(map[string]string{
		"topic_id": topicID,
		"message":  base64.StdEncoding.EncodeToString(message),
		"memo":     memo,
	})
	resp, err := rs.post(ctx, "/v1/submit", body)
	if err != nil {
		return nil, fmt.Errorf("submit message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return nil, workflow.ErrUserRejected
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("submit message: %s", readError(resp))
	}

	var receipt models.Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &receipt, nil
}

func (rs *RemoteSigner) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rs.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return rs.client.Do(req)
}

func readError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if len(body) == 0 {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
}
