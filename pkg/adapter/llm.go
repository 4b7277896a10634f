package adapter

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrQuotaExceeded marks quota/rate-limit failures so the orchestrator can
// show the guest a distinct message instead of the generic failure sentence.
var ErrQuotaExceeded = goerr.New("llm quota exceeded")

// LLM is the single pluggable text-completion capability. One implementation
// per provider (Gemini, Claude, Groq), selected by configuration at startup.
type LLM interface {
	// Complete sends a prompt and returns the generated text.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteJSON sends a prompt that demands JSON-only output. Providers
	// with a native structured-output mode enforce the schema; others rely on
	// the prompt contract and the caller's parse-or-fallback handling.
	CompleteJSON(ctx context.Context, prompt string, schema *jsonschema.Schema) (string, error)
}

// IsQuotaError reports whether an LLM call failed on quota or rate limiting.
// Each provider surfaces this differently: Gemini as an APIError with code
// 429 or a gRPC ResourceExhausted, Claude as an HTTP 429, Groq via the
// ErrQuotaExceeded sentinel. A text match on "quota" catches the rest.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return true
		}
	}

	var anthErr *anthropic.Error
	if errors.As(err, &anthErr) && anthErr.StatusCode == 429 {
		return true
	}

	if status.Code(err) == codes.ResourceExhausted {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "429")
}
