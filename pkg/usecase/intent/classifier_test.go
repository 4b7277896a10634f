package intent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/ilora-retreats/concierge/pkg/usecase/intent"
	"github.com/m-mizutani/gt"
)

// stubLLM returns a canned reply or error for every call.
type stubLLM struct {
	reply string
	err   error
	calls int
}

func (s *stubLLM) Complete(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *stubLLM) CompleteJSON(_ context.Context, _ string, _ *jsonschema.Schema) (string, error) {
	s.calls++
	return s.reply, s.err
}

func mustRules(t *testing.T) *intent.RuleTable {
	t.Helper()
	rules, err := intent.DefaultRules()
	gt.NoError(t, err)
	return rules
}

func TestClassifyFromLLM(t *testing.T) {
	llm := &stubLLM{reply: `{"intent": "ORDER"}`}
	c := intent.New(llm, mustRules(t))

	gt.Equal(t, c.Classify(context.Background(), "two coffees please"), model.IntentOrder)
	gt.Equal(t, llm.calls, 1)
}

func TestClassifyLLMFailureFallsBack(t *testing.T) {
	llm := &stubLLM{err: errors.New("model unavailable")}
	c := intent.New(llm, mustRules(t))

	gt.Equal(t, c.Classify(context.Background(), "can I see the menu"), model.IntentMenu)
}

func TestClassifyGarbageJSONFallsBack(t *testing.T) {
	llm := &stubLLM{reply: "Sure! The intent is probably MENU."}
	c := intent.New(llm, mustRules(t))

	gt.Equal(t, c.Classify(context.Background(), "I need extra towels"), model.IntentServiceRequest)
}

func TestClassifyUnknownVerdictFallsBack(t *testing.T) {
	llm := &stubLLM{reply: `{"intent": "UNKNOWN"}`}
	c := intent.New(llm, mustRules(t))

	gt.Equal(t, c.Classify(context.Background(), "what time is breakfast"), model.IntentMenu)
}

func TestClassifyNilLLMUsesRules(t *testing.T) {
	c := intent.New(nil, mustRules(t))
	ctx := context.Background()

	gt.Equal(t, c.Classify(ctx, "the tap is leaking"), model.IntentTicket)
	gt.Equal(t, c.Classify(ctx, "what time is check-out"), model.IntentQnA)
}

func TestRulePrecedence(t *testing.T) {
	rules := mustRules(t)

	// "not working" outranks the service and order keywords also present.
	gt.Equal(t, rules.Match("the AC is not working in room 12"), model.IntentTicket)

	// Service keywords outrank order phrasing.
	gt.Equal(t, rules.Match("I need extra towels delivered"), model.IntentServiceRequest)

	// Order phrasing outranks menu words.
	gt.Equal(t, rules.Match("I want to order food"), model.IntentOrder)

	gt.Equal(t, rules.Match("show me the menu"), model.IntentMenu)
	gt.Equal(t, rules.Match("is there a pool"), model.IntentQnA)
}

func TestRuleMatchCaseInsensitive(t *testing.T) {
	rules := mustRules(t)
	gt.Equal(t, rules.Match("POWER ISSUE in my room"), model.IntentTicket)
}
