package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
)

const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

// GroqClient implements LLM against Groq's OpenAI-compatible chat completions
// endpoint.
type GroqClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type GroqOption func(*GroqClient)

func WithGroqModel(model string) GroqOption {
	return func(g *GroqClient) {
		g.model = model
	}
}

func WithGroqBaseURL(baseURL string) GroqOption {
	return func(g *GroqClient) {
		g.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithGroqHTTPClient(client *http.Client) GroqOption {
	return func(g *GroqClient) {
		g.httpClient = client
	}
}

func NewGroq(apiKey string, opts ...GroqOption) *GroqClient {
	g := &GroqClient{
		apiKey:     apiKey,
		baseURL:    defaultGroqBaseURL,
		model:      "llama-3.1-8b-instant",
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

type groqChatRequest struct {
	Model    string        `json:"model"`
	Messages []groqMessage `json:"messages"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqChatResponse struct {
	Choices []struct {
		Message groqMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (g *GroqClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload := groqChatRequest{
		Model: g.model,
		Messages: []groqMessage{
			{Role: "user", Content: prompt},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal chat request")
	}

	endpoint := g.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", goerr.Wrap(err, "failed to build chat request")
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to call chat completions")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read chat response")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", goerr.Wrap(ErrQuotaExceeded, "groq rate limited",
			goerr.V("status", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", goerr.New("chat completions returned non-OK status",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(data)))
	}

	var parsed groqChatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", goerr.Wrap(err, "failed to decode chat response")
	}
	if parsed.Error != nil {
		return "", goerr.New("chat completions returned error",
			goerr.V("type", parsed.Error.Type),
			goerr.V("message", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", goerr.New("no choices in chat response")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// CompleteJSON relies on the prompt's JSON-only contract, matching the other
// providers without a native schema mode.
func (g *GroqClient) CompleteJSON(ctx context.Context, prompt string, _ *jsonschema.Schema) (string, error) {
	return g.Complete(ctx, prompt)
}
