package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Webhook-Signature"

const maxWebhookBody = 1 << 20

// Webhook events.
const (
	EventFlagUpdated = "flag.updated"
	EventFlagDeleted = "flag.deleted"
)

// WebhookServer invalidates cached flags when the flag service reports changes
type WebhookServer struct {
	cache  CacheInterface
	addr   string
	secret string
	logger *slog.Logger
	server *http.Server
}

// WebhookPayload represents a change notification
type WebhookPayload struct {
	Event     string   `json:"event"`
	FlagKeys  []string `json:"flag_keys"`
	Timestamp string   `json:"timestamp"`
}

// NewWebhookServer creates a new webhook server. An empty secret disables
// signature verification.
func NewWebhookServer(c CacheInterface, addr, secret string, logger *slog.Logger) *WebhookServer {
	if logger == nil {
		logger = slog.Default()
	}
	w := &WebhookServer{
		cache:  c,
		addr:   addr,
		secret: secret,
		logger: logger,
	}
	w.server = &http.Server{
		Addr:              addr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return w
}

// Handler returns the webhook router
func (w *WebhookServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/webhook", w.handleWebhook)
	return r
}

// Start serves until Shutdown is called
func (w *WebhookServer) Start() error {
	w.logger.Info("webhook server listening", slog.String("addr", w.addr))
	if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("webhook server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (w *WebhookServer) Shutdown(ctx context.Context) error {
	return w.server.Shutdown(ctx)
}

func (w *WebhookServer) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, "Failed to read body", http.StatusBadRequest)
		return
	}

	if w.secret != "" && !w.verifySignature(r, body) {
		w.logger.Warn("webhook rejected: invalid signature", slog.String("remote", r.RemoteAddr))
		http.Error(rw, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if !w.handleEvent(payload) {
		writeJSON(rw, http.StatusOK, map[string]string{"status": "ignored", "event": payload.Event})
		return
	}

	writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
}

func (w *WebhookServer) verifySignature(r *http.Request, body []byte) bool {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(w.secret))
	mac.Write(body)
	expectedSignature := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedSignature))
}

// handleEvent reports whether the event was recognised.
func (w *WebhookServer) handleEvent(payload WebhookPayload) bool {
	switch payload.Event {
	case EventFlagUpdated, EventFlagDeleted:
		removed := 0
		for _, key := range payload.FlagKeys {
			removed += w.cache.InvalidateFlag(key)
		}
		w.logger.Info("flags invalidated by webhook",
			slog.String("event", payload.Event),
			slog.Any("flags", payload.FlagKeys),
			slog.Int("entries", removed),
		)
		return true
	}

	w.logger.Debug("webhook event ignored", slog.String("event", payload.Event))
	return false
}
