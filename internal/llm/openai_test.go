package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, status int, content string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if captured != nil {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, captured)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAI_Validation(t *testing.T) {
	_, err := NewOpenAI(OpenAIOpts{Model: "gpt-4o-mini"})
	require.Error(t, err)
	_, err = NewOpenAI(OpenAIOpts{APIKey: "sk-test"})
	require.Error(t, err)
}

func TestComplete_SendsParameters(t *testing.T) {
	var body map[string]any
	srv := completionServer(t, http.StatusOK, "  Voici 3 étapes.  ", &body)

	c, err := NewOpenAI(OpenAIOpts{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini", MaxRetries: -1})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), Request{
		System:      "sys",
		User:        "comment faire ?",
		Temperature: 0.7,
		MaxTokens:   500,
	})
	require.NoError(t, err)
	assert.Equal(t, "Voici 3 étapes.", out)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.InDelta(t, 0.7, body["temperature"], 1e-9)
	assert.InDelta(t, 500, body["max_tokens"], 1e-9)
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestComplete_ServerError(t *testing.T) {
	srv := completionServer(t, http.StatusInternalServerError, "", nil)
	c, err := NewOpenAI(OpenAIOpts{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini", MaxRetries: -1})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), Request{System: "s", User: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm: completion")
}

func TestComplete_EmptyContent(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "   ", nil)
	c, err := NewOpenAI(OpenAIOpts{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini", MaxRetries: -1})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), Request{System: "s", User: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty completion")
}
