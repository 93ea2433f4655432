package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"askmydocs/types"
)

// TextGenerator is the language model boundary. Generate returns the
// complete answer; GenerateStream delivers tokens to onToken as they
// arrive and stops as soon as onToken returns an error or ctx is
// cancelled. Neither retries: the caller owns retry policy.
type TextGenerator interface {
	Generate(ctx context.Context, msgs []types.ConversationTurn) (string, error)
	GenerateStream(ctx context.Context, msgs []types.ConversationTurn, onToken func(token string) error) error
}

const (
	DefaultGenerateURL   = "http://localhost:11434"
	DefaultGenerateModel = "llama3.1"
	generateTimeout      = 5 * time.Minute
)

// OllamaGenerator talks to the Ollama chat endpoint. The streaming
// response is NDJSON, one message fragment per line, terminated by a
// done marker.
type OllamaGenerator struct {
	client  *http.Client
	baseURL string
	model   string
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
}

func NewOllamaGenerator(baseURL, model string) *OllamaGenerator {
	if baseURL == "" {
		baseURL = DefaultGenerateURL
	}
	if model == "" {
		model = DefaultGenerateModel
	}
	return &OllamaGenerator{
		client:  &http.Client{Timeout: generateTimeout},
		baseURL: baseURL,
		model:   model,
	}
}

func (g *OllamaGenerator) Generate(ctx context.Context, msgs []types.ConversationTurn) (string, error) {
	resp, err := g.send(ctx, msgs, false)
	if err != nil {
		return "", &types.GenerationError{Err: err}
	}
	defer resp.Body.Close()

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", &types.GenerationError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return chatResp.Message.Content, nil
}

// GenerateStream decodes the NDJSON token stream. Because the request
// carries ctx, cancelling the consumer aborts the upstream call and
// the in-flight body read; nothing is leaked.
func (g *OllamaGenerator) GenerateStream(ctx context.Context, msgs []types.ConversationTurn, onToken func(token string) error) error {
	resp, err := g.send(ctx, msgs, true)
	if err != nil {
		return &types.GenerationError{Err: err}
	}
	defer resp.Body.Close()

	decoder := json.NewDecoder(resp.Body)
	for {
		var chunk ollamaChatResponse
		if err := decoder.Decode(&chunk); err == io.EOF {
			return nil
		} else if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &types.GenerationError{Err: fmt.Errorf("decode stream: %w", err)}
		}

		if chunk.Message.Content != "" {
			if err := onToken(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
}

func (g *OllamaGenerator) send(ctx context.Context, msgs []types.ConversationTurn, stream bool) (*http.Response, error) {
	if len(msgs) == 0 {
		return nil, errors.New("no messages")
	}

	chatMsgs := make([]ollamaChatMessage, len(msgs))
	for i, m := range msgs {
		chatMsgs[i] = ollamaChatMessage{Role: string(m.Role), Content: m.Content}
	}

	body, err := json.Marshal(ollamaChatRequest{Model: g.model, Messages: chatMsgs, Stream: stream})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama status %d: %s", resp.StatusCode, string(msg))
	}
	return resp, nil
}
