package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OrlandoBitencourt/pennant/internal/logger"
)

func sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func postWebhook(h http.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWebhook_Update(t *testing.T) {
	mock := &mockCache{}
	secret := "abc123"
	h := NewWebhookServer(mock, ":0", secret, logger.Discard()).Handler()

	body := []byte(`{"event":"flag.updated","flag_keys":["a","b"]}`)
	w := postWebhook(h, body, sign(secret, body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a", "b"}, mock.invalidated)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	mock := &mockCache{}
	h := NewWebhookServer(mock, ":0", "secret", logger.Discard()).Handler()

	body := []byte(`{"event":"flag.updated","flag_keys":["x"]}`)

	w := postWebhook(h, body, "invalid")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWebhook(h, body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Empty(t, mock.invalidated)
}

func TestWebhook_Delete(t *testing.T) {
	mock := &mockCache{}
	h := NewWebhookServer(mock, ":0", "", logger.Discard()).Handler()

	w := postWebhook(h, []byte(`{"event":"flag.deleted","flag_keys":["x"]}`), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"x"}, mock.invalidated)
}

func TestWebhook_UnknownEvent(t *testing.T) {
	mock := &mockCache{}
	h := NewWebhookServer(mock, ":0", "", logger.Discard()).Handler()

	w := postWebhook(h, []byte(`{"event":"flag.created","flag_keys":["x"]}`), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
	assert.Empty(t, mock.invalidated)
}

func TestWebhook_InvalidJSON(t *testing.T) {
	h := NewWebhookServer(&mockCache{}, ":0", "", logger.Discard()).Handler()

	w := postWebhook(h, []byte(`{not json`), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	h := NewWebhookServer(&mockCache{}, ":0", "", logger.Discard()).Handler()

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
