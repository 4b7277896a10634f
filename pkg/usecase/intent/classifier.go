// Package intent classifies guest messages into request categories. The LLM
// does the primary classification with a closed tag set enforced by schema;
// an ordered keyword table backs it up so classification still works when the
// model is down, rate limited, or returns garbage.
package intent

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"text/template"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/ilora-retreats/concierge/pkg/adapter"
	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/ilora-retreats/concierge/pkg/utils/logging"
)

//go:embed prompt/classify.md
var classifyPromptRaw string

var classifyPromptTmpl = template.Must(template.New("classify").Parse(classifyPromptRaw))

var intentSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"intent": {
			Type: "string",
			Enum: []any{"MENU", "ORDER", "SERVICE_REQUEST", "TICKET", "QNA", "SMALL_TALK", "UNKNOWN"},
		},
	},
	Required: []string{"intent"},
}

// Classifier maps a guest message to an Intent.
type Classifier struct {
	llm   adapter.LLM
	rules *RuleTable
}

// New creates a Classifier. A nil llm skips straight to the keyword rules.
func New(llm adapter.LLM, rules *RuleTable) *Classifier {
	return &Classifier{
		llm:   llm,
		rules: rules,
	}
}

// Classify returns the category of a guest message. It never returns an
// error: any LLM or parse failure, and any UNKNOWN verdict, falls through to
// the keyword rules, which always produce a category.
func (c *Classifier) Classify(ctx context.Context, query string) model.Intent {
	if tag := c.classifyWithLLM(ctx, query); tag != model.IntentUnknown {
		return tag
	}
	return c.rules.Match(query)
}

func (c *Classifier) classifyWithLLM(ctx context.Context, query string) model.Intent {
	if c.llm == nil {
		return model.IntentUnknown
	}

	var buf bytes.Buffer
	if err := classifyPromptTmpl.Execute(&buf, map[string]any{"Query": query}); err != nil {
		logging.From(ctx).Warn("failed to render classify prompt", "error", err)
		return model.IntentUnknown
	}

	raw, err := c.llm.CompleteJSON(ctx, buf.String(), intentSchema)
	if err != nil {
		logging.From(ctx).Warn("llm intent classification failed", "error", err)
		return model.IntentUnknown
	}

	var verdict struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		logging.From(ctx).Warn("llm returned unparseable intent", "raw", raw, "error", err)
		return model.IntentUnknown
	}

	return model.ParseIntent(verdict.Intent)
}
