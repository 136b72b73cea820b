package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mistakeknot/haconverse/internal/config"
)

type capturedRequest struct {
	method string
	path   string
	auth   string
	ctype  string
	body   map[string]any
}

func newHub(t *testing.T, status int, reply string, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(hubHandler(t, status, reply, got))
	t.Cleanup(srv.Close)
	return srv
}

func hubHandler(t *testing.T, status int, reply string, got *capturedRequest) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.method = r.Method
			got.path = r.URL.Path
			got.auth = r.Header.Get("Authorization")
			got.ctype = r.Header.Get("Content-Type")
			raw, err := io.ReadAll(r.Body)
			if err != nil {
				t.Errorf("read body: %v", err)
			}
			got.body = map[string]any{}
			if err := json.Unmarshal(raw, &got.body); err != nil {
				t.Errorf("decode body: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	})
}

func TestConverseSendsMinimalBody(t *testing.T) {
	var got capturedRequest
	srv := newHub(t, http.StatusOK, `{"response":"ok"}`, &got)

	client := NewClient(&config.Config{URL: srv.URL + "/", Token: "tok"})
	raw, err := client.Converse(context.Background(), "turn on the lights")
	require.NoError(t, err)

	assert.JSONEq(t, `{"response":"ok"}`, string(raw))
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/conversation/process", got.path)
	assert.Equal(t, "Bearer tok", got.auth)
	assert.Equal(t, "application/json", got.ctype)
	assert.Equal(t, map[string]any{"text": "turn on the lights"}, got.body)
}

func TestConverseCarriesOptionalFields(t *testing.T) {
	var got capturedRequest
	srv := newHub(t, http.StatusOK, `{}`, &got)

	client := NewClient(&config.Config{
		URL:            srv.URL,
		Token:          "tok",
		AgentID:        "conversation.home_assistant",
		Language:       "fr",
		ConversationID: "c-1",
	})
	_, err := client.Converse(context.Background(), "bonjour")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"text":            "bonjour",
		"language":        "fr",
		"agent_id":        "conversation.home_assistant",
		"conversation_id": "c-1",
	}, got.body)
}

func TestConversationRequestOmitsEmptyFields(t *testing.T) {
	body, err := json.Marshal(NewConversationRequest(&config.Config{Language: "en"}, "hi"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hi","language":"en"}`, string(body))
}

func TestConverseUsesHubMessageOnError(t *testing.T) {
	srv := newHub(t, http.StatusUnauthorized, `{"message":"invalid token"}`, nil)

	_, err := NewClient(&config.Config{URL: srv.URL, Token: "bad"}).Converse(context.Background(), "hi")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid token", apiErr.Error())
}

func TestConverseFallsBackToStatusText(t *testing.T) {
	for _, reply := range []string{``, `not json`, `{"message":""}`, `{"error":"nope"}`} {
		srv := newHub(t, http.StatusInternalServerError, reply, nil)

		_, err := NewClient(&config.Config{URL: srv.URL, Token: "tok"}).Converse(context.Background(), "hi")
		require.Error(t, err)
		assert.Equal(t, "request failed with status code 500", err.Error(), "reply %q", reply)
	}
}

func TestConverseTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(&config.Config{URL: url, Token: "tok"}).Converse(context.Background(), "hi")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Zero(t, apiErr.StatusCode)
	assert.NotNil(t, apiErr.Unwrap())
	assert.Contains(t, apiErr.Error(), "connection refused")
}

func TestConverseRejectsInvalidJSON(t *testing.T) {
	srv := newHub(t, http.StatusOK, `<html>`, nil)

	_, err := NewClient(&config.Config{URL: srv.URL, Token: "tok"}).Converse(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestConverseTLSVerification(t *testing.T) {
	srv := httptest.NewTLSServer(hubHandler(t, http.StatusOK, `{"response":"ok"}`, nil))
	defer srv.Close()

	_, err := NewClient(&config.Config{URL: srv.URL, Token: "tok"}).Converse(context.Background(), "hi")
	require.Error(t, err, "self-signed hub must fail without insecure")

	raw, err := NewClient(&config.Config{URL: srv.URL, Token: "tok", Insecure: true}).Converse(context.Background(), "hi")
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":"ok"}`, string(raw))
}
