package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openloop-ai/openloop/types"
)

func TestOpenAIProvider_Completion_ToolCallDecoding(t *testing.T) {
	var gotBody oaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"model": "test-model",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"tool_calls": [{
						"id": "call-1",
						"type": "function",
						"function": {"name": "shell", "arguments": "{\"command\":\"ls\"}"}
					}]
				}
			}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12}
		}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	}, zap.NewNop())

	resp, err := provider.Completion(context.Background(), &ChatRequest{
		Model:      "test-model",
		Messages:   []types.Message{types.NewUserMessage("list files")},
		Tools:      []types.ToolSchema{{Name: "shell", Parameters: []byte(`{"type":"object"}`)}},
		ToolChoice: ToolChoiceAuto,
	})
	require.NoError(t, err)

	assert.Equal(t, "auto", gotBody.ToolChoice)
	require.Len(t, gotBody.Tools, 1)
	assert.Equal(t, "shell", gotBody.Tools[0].Function.Name)

	require.Len(t, resp.Choices, 1)
	calls := resp.Choices[0].Message.ToolCalls
	require.Len(t, calls, 1)
	assert.Equal(t, "call-1", calls[0].ID)
	assert.JSONEq(t, `{"command":"ls"}`, string(calls[0].Arguments))
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestOpenAIProvider_Completion_MapsHTTPErrors(t *testing.T) {
	tests := []struct {
		status    int
		wantCode  types.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, types.ErrUnauthorized, false},
		{http.StatusTooManyRequests, types.ErrRateLimited, true},
		{http.StatusInternalServerError, types.ErrUpstreamError, true},
		{http.StatusBadRequest, types.ErrInvalidRequest, false},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
		}))

		provider := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL}, zap.NewNop())
		_, err := provider.Completion(context.Background(), &ChatRequest{
			Model:    "m",
			Messages: []types.Message{types.NewUserMessage("hi")},
		})
		require.Error(t, err)
		assert.Equal(t, tt.wantCode, types.GetErrorCode(err))
		assert.Equal(t, tt.retryable, types.IsRetryable(err))
		server.Close()
	}
}
