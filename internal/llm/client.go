// Package llm wraps the external language-model generation capability. The
// model is a black box: given a role-tagged history it returns an
// incremental stream of text fragments, which callers forward unmodified.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/aquatrade/backend/internal/core"
)

// Chunk is one generated text fragment. Err is set on the final chunk when
// the stream dies mid-generation.
type Chunk struct {
	Content string
	Err     error
}

// StreamingClient produces an incremental generation stream for a message
// history. The returned channel is closed when generation finishes or the
// context is cancelled; cancellation stops upstream consumption promptly.
type StreamingClient interface {
	ChatStream(ctx context.Context, messages []core.Message) (<-chan Chunk, error)
}

// OllamaClient streams from an Ollama-compatible chat endpoint with Bearer
// authentication, as exposed by attested inference hosts.
type OllamaClient struct {
	hostURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *log.Logger
}

func NewOllamaClient(hostURL, apiKey, model string) *OllamaClient {
	return &OllamaClient{
		hostURL:    hostURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
		logger:     log.New(log.Writer(), "[LLM] ", log.LstdFlags),
	}
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []core.Message `json:"messages"`
	Stream   bool           `json:"stream"`
}

// chatStreamLine is one NDJSON line of the streaming response.
type chatStreamLine struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// ChatStream opens the generation stream. A failure to reach the endpoint is
// returned synchronously; failures after the stream starts arrive in-band as
// the final chunk's Err.
func (c *OllamaClient) ChatStream(ctx context.Context, messages []core.Message) (<-chan Chunk, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.hostURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open generation stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("generation endpoint returned status %d", resp.StatusCode)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			var parsed chatStreamLine
			if err := json.Unmarshal(line, &parsed); err != nil {
				c.logger.Printf("Skipping malformed stream line: %v", err)
				continue
			}
			if parsed.Error != "" {
				select {
				case out <- Chunk{Err: fmt.Errorf("generation failed: %s", parsed.Error)}:
				case <-ctx.Done():
				}
				return
			}
			if parsed.Message.Content != "" {
				select {
				case out <- Chunk{Content: parsed.Message.Content}:
				case <-ctx.Done():
					return
				}
			}
			if parsed.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case out <- Chunk{Err: fmt.Errorf("read generation stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}
