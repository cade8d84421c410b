package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquatrade/backend/internal/core"
)

func streamServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestChatStreamForwardsFragmentsInOrder(t *testing.T) {
	server := streamServer(t, []string{
		`{"message":{"content":"Hel"},"done":false}`,
		`{"message":{"content":"lo "},"done":false}`,
		`{"message":{"content":"there"},"done":true}`,
	})

	client := NewOllamaClient(server.URL, "test-key", "llama3")
	stream, err := client.ChatStream(context.Background(), []core.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	var got string
	for chunk := range stream {
		require.NoError(t, chunk.Err)
		got += chunk.Content
	}
	assert.Equal(t, "Hello there", got)
}

func TestChatStreamInBandError(t *testing.T) {
	server := streamServer(t, []string{
		`{"message":{"content":"partial"},"done":false}`,
		`{"error":"model overloaded"}`,
	})

	client := NewOllamaClient(server.URL, "test-key", "llama3")
	stream, err := client.ChatStream(context.Background(), nil)
	require.NoError(t, err)

	var chunks []Chunk
	for chunk := range stream {
		chunks = append(chunks, chunk)
	}
	require.Len(t, chunks, 2)
	assert.Equal(t, "partial", chunks[0].Content)
	require.Error(t, chunks[1].Err)
	assert.Contains(t, chunks[1].Err.Error(), "model overloaded")
}

func TestChatStreamEndpointDown(t *testing.T) {
	client := NewOllamaClient("http://127.0.0.1:1", "test-key", "llama3")
	_, err := client.ChatStream(context.Background(), nil)
	require.Error(t, err)
}

func TestChatStreamBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "bad-key", "llama3")
	_, err := client.ChatStream(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestChatStreamCancellationStopsConsumption(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"message":{"content":"first"},"done":false}`)
		flusher.Flush()
		select {
		case <-blocked:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(blocked)

	ctx, cancel := context.WithCancel(context.Background())
	client := NewOllamaClient(server.URL, "test-key", "llama3")
	stream, err := client.ChatStream(ctx, nil)
	require.NoError(t, err)

	chunk := <-stream
	assert.Equal(t, "first", chunk.Content)

	cancel()
	select {
	case _, open := <-stream:
		assert.False(t, open, "stream must close after cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancellation")
	}
}
