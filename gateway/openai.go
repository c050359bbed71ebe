package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type openAIBackend struct {
	url    string
	apiKey string
	hc     *http.Client
}

func newOpenAIBackend(baseURL, apiKey string, timeout time.Duration) *openAIBackend {
	return &openAIBackend{
		url:    strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey: apiKey,
		hc:     &http.Client{Timeout: timeout},
	}
}

type oaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaResponseFormat struct {
	Type string `json:"type"`
}

type oaRequest struct {
	Model          string           `json:"model"`
	Messages       []oaMessage      `json:"messages"`
	Temperature    *float64         `json:"temperature,omitempty"`
	ResponseFormat oaResponseFormat `json:"response_format"`
}

type oaResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// UpstreamError is a non-2xx answer of the model service.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %d: %s", e.Status, e.Message)
}

var errEmptyCompletion = errors.New("completion has no content")

func (b *openAIBackend) complete(ctx context.Context, req completion) (string, error) {
	body, err := json.Marshal(oaRequest{
		Model: req.Model,
		Messages: []oaMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature:    req.Temperature,
		ResponseFormat: oaResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := b.hc.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", &UpstreamError{Status: resp.StatusCode, Message: strings.TrimSpace(string(slurp))}
	}
	var or oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(or.Choices) == 0 || or.Choices[0].Message.Content == "" {
		return "", errEmptyCompletion
	}
	return or.Choices[0].Message.Content, nil
}
