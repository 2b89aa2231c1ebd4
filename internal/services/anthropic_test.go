package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MegaGrindStone/chat-widget/internal/services"
	"github.com/MegaGrindStone/chat-widget/internal/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anthropicServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "key" {
			t.Errorf("unexpected api key header: %q", got)
		}

		var req struct {
			MaxTokens int    `json:"max_tokens"`
			System    string `json:"system"`
			Stream    bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if req.MaxTokens != 256 || req.System != "Be kind." || !req.Stream {
			t.Errorf("unexpected request: %+v", req)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func TestAnthropicGenerate(t *testing.T) {
	body := "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"Take your \"}}\n\n" +
		"event: ping\ndata: {\"type\":\"ping\"}\n\n" +
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"time.\"}}\n\n" +
		"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"

	server := anthropicServer(t, http.StatusOK, body)
	defer server.Close()

	a := services.NewAnthropic("key", server.URL+"/v1", "claude", "Be kind.", 256, services.LLMParameters{})
	reply, err := a.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Take your time.", reply)
}

func TestAnthropicErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "Stream error event",
			status:  http.StatusOK,
			body:    "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n",
			wantErr: "Overloaded",
		},
		{
			name:    "Error status",
			status:  http.StatusUnauthorized,
			body:    `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			wantErr: "invalid x-api-key",
		},
		{
			name:    "Truncated stream",
			status:  http.StatusOK,
			body:    "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"half\"}}\n\n",
			wantErr: "message_stop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := anthropicServer(t, tt.status, tt.body)
			defer server.Close()

			a := services.NewAnthropic("key", server.URL+"/v1", "claude", "Be kind.", 256, services.LLMParameters{})
			_, err := a.Generate(context.Background(), "hello")

			var netErr *widget.NetworkError
			require.ErrorAs(t, err, &netErr)
			assert.Equal(t, "anthropic", netErr.Provider)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
