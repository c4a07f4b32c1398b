package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// AssistantProxy forwards prompts to an OpenAI-compatible chat completions
// upstream. It is a pure pass-through: nothing here touches the provenance
// ledger, and the attribution of assistant output is the caller's job.
type AssistantProxy struct {
	upstreamURL  string
	apiKey       string
	defaultModel string
	client       *http.Client
	logger       *slog.Logger
}

// NewAssistantProxy creates a proxy against the given upstream. The API
// key is attached to upstream requests only and never logged.
func NewAssistantProxy(upstreamURL, apiKey string, logger *slog.Logger) *AssistantProxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssistantProxy{
		upstreamURL:  upstreamURL,
		apiKey:       apiKey,
		defaultModel: "gpt-4o-mini",
		client:       &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
	}
}

// PromptRequest is the editor-facing request shape.
type PromptRequest struct {
	Prompt    string `json:"prompt"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// PromptResponse is the editor-facing response shape.
type PromptResponse struct {
	Content    string `json:"content"`
	Model      string `json:"model"`
	TokenCount int    `json:"token_count,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Handle serves POST /v1/assistant.
func (p *AssistantProxy) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	if p.apiKey == "" {
		WriteError(w, http.StatusServiceUnavailable, "Assistant Not Configured", "OPENAI_API_KEY is not set")
		return
	}

	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		WriteBadRequest(w, "prompt cannot be empty")
		return
	}
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	upstream := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	}
	body, err := json.Marshal(upstream)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	httpReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, p.upstreamURL, bytes.NewReader(body))
	if err != nil {
		WriteInternal(w, err)
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Error("assistant upstream request failed", "error", err)
		WriteError(w, http.StatusBadGateway, "Upstream Error", "assistant request failed")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.logger.Error("assistant upstream returned error", "status", resp.StatusCode)
		WriteError(w, http.StatusBadGateway, "Upstream Error",
			fmt.Sprintf("assistant upstream returned %d: %s", resp.StatusCode, string(detail)))
		return
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		WriteError(w, http.StatusBadGateway, "Upstream Error", "cannot parse assistant response")
		return
	}
	if len(chat.Choices) == 0 {
		WriteError(w, http.StatusBadGateway, "Upstream Error", "assistant returned no choices")
		return
	}

	out := PromptResponse{
		Content:    chat.Choices[0].Message.Content,
		Model:      chat.Model,
		TokenCount: chat.Usage.TotalTokens,
	}
	if out.Model == "" {
		out.Model = model
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
