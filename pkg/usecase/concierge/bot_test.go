package concierge_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/ilora-retreats/concierge/pkg/adapter"
	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/ilora-retreats/concierge/pkg/policy"
	"github.com/ilora-retreats/concierge/pkg/runner"
	"github.com/ilora-retreats/concierge/pkg/service/knowledge"
	"github.com/ilora-retreats/concierge/pkg/service/session"
	"github.com/ilora-retreats/concierge/pkg/usecase/concierge"
	"github.com/ilora-retreats/concierge/pkg/usecase/intent"
	"github.com/ilora-retreats/concierge/pkg/utils/textnorm"
	"github.com/m-mizutani/gt"
)

const (
	noInfoReply       = "I'm sorry, I don't have that information at the moment."
	acknowledgedReply = "I've noted your request. Our team will assist you shortly."
	needsStaffReply   = "This request needs staff assistance. I've raised a service ticket for you."
	quotaReply        = "I'm currently handling a lot of requests and have temporarily reached my response limit. Please try again in a minute"
	genericFailReply  = "I'm sorry, I couldn't process that right now."
	restrictedReply   = "I'm sorry, that service is available to checked-in guests only. Please contact the front desk for assistance."
)

// stubLLM answers every call with a canned reply, optionally after a delay.
type stubLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	delay   time.Duration
	prompts []string
}

func (s *stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.reply, s.err
}

func (s *stubLLM) CompleteJSON(ctx context.Context, prompt string, _ *jsonschema.Schema) (string, error) {
	return s.Complete(ctx, prompt)
}

func (s *stubLLM) promptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func (s *stubLLM) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

// fakeSheets serves canned rows per sheet name and records usage updates.
type fakeSheets struct {
	mu      sync.Mutex
	rows    map[string][]map[string]string
	updates []map[string]string
}

func (f *fakeSheets) Rows(_ context.Context, sheetName string) ([]map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[sheetName], nil
}

func (f *fakeSheets) Append(_ context.Context, _ string, _ map[string]string) error {
	return nil
}

func (f *fakeSheets) UpdateByID(_ context.Context, _ string, _ string, _ string, updates map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updates)
	return nil
}

func (f *fakeSheets) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

// fakeTicketSink records tickets in memory.
type fakeTicketSink struct {
	mu      sync.Mutex
	records []model.TicketRecord
}

func (f *fakeTicketSink) Append(_ context.Context, rec *model.TicketRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeTicketSink) Recent(_ context.Context, limit int) ([]model.TicketRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := f.records
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]model.TicketRecord, len(records))
	copy(out, records)
	return out, nil
}

func (f *fakeTicketSink) resolve(idx int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[idx].Status = model.TicketResolved
}

func (f *fakeTicketSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeOrderSink records orders in memory.
type fakeOrderSink struct {
	mu     sync.Mutex
	orders []*model.Order
	err    error
}

func (f *fakeOrderSink) Append(_ context.Context, order *model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.orders = append(f.orders, order)
	return nil
}

type testEnv struct {
	bot      *concierge.Bot
	sheets   *fakeSheets
	answerer *stubLLM
	intents  *stubLLM
	tickets  *fakeTicketSink
	orders   *fakeOrderSink
	sessions session.Store
	history  *session.History
	cache    *knowledge.Cache
}

const guestKey = "guest@example.com"

func newEnv(t *testing.T, cfg concierge.Config) *testEnv {
	t.Helper()
	ctx := context.Background()

	sheets := &fakeSheets{
		rows: map[string][]map[string]string{
			knowledge.DefaultKnowledgeSheet: {
				{"QnA ID": "Q1", "Question": "What time is check-in?", "Answer": "Check-in is after 2 PM.", "Status": "active", "Usage Count": "3"},
				{"QnA ID": "Q2", "Question": "Is there a pool?", "Answer": "Yes, open from 7 AM.", "Status": "active"},
			},
			knowledge.DefaultMenuSheet: {
				{"Item ID": "M1", "Type": "Beverage", "Item": "Coffee", "Price": "50", "Description": "Freshly brewed"},
				{"Item ID": "M2", "Type": "Snack", "Item": "Sandwich", "Price": "120", "Description": "Club sandwich"},
			},
		},
	}

	cache := knowledge.New(sheets, knowledge.Config{})
	gt.NoError(t, cache.Refresh(ctx, true))

	rules, err := intent.DefaultRules()
	gt.NoError(t, err)

	intents := &stubLLM{err: errors.New("classifier offline")} // rules decide by default
	answerer := &stubLLM{reply: "Check-in is after 2 PM."}

	gate, err := policy.New(ctx)
	gt.NoError(t, err)

	sessions := session.NewMemoryStore()
	gt.NoError(t, sessions.Put(ctx, &model.GuestSession{
		Key: guestKey,
		Normalized: model.GuestProfile{
			Email:        guestKey,
			Name:         "Asha",
			RoomAllotted: "12",
		},
		LastLogin: time.Now(),
	}))

	env := &testEnv{
		sheets:   sheets,
		answerer: answerer,
		intents:  intents,
		tickets:  &fakeTicketSink{},
		orders:   &fakeOrderSink{},
		sessions: sessions,
		history:  session.NewHistory(),
		cache:    cache,
	}

	env.bot = concierge.New(cfg, cache, intent.New(intents, rules), answerer,
		runner.New(4), sessions, env.history, env.tickets, env.orders, gate)
	return env
}

func TestAskAnswersFromKnowledge(t *testing.T) {
	env := newEnv(t, concierge.Config{})
	ctx := context.Background()

	reply := env.bot.Ask(ctx, "What time is check-in?", guestKey)
	gt.Equal(t, reply, "Check-in is after 2 PM.")

	// Matched path side effects: usage incremented, prompt carries the entry.
	gt.Equal(t, env.sheets.updateCount(), 1)
	gt.S(t, env.answerer.lastPrompt()).Contains("Q: What time is check-in?")
	gt.S(t, env.answerer.lastPrompt()).Contains("Guest Query: What time is check-in?")

	// Both turns land in history with the classified intent attached.
	recent := env.history.Recent(guestKey)
	gt.A(t, recent).Length(2)
	gt.Equal(t, recent[0].Role, model.RoleUser)
	gt.Equal(t, recent[1].Content, reply)
	gt.Equal(t, recent[1].Meta["intent"], "QNA")
}

func TestAskGuestPromptVariant(t *testing.T) {
	env := newEnv(t, concierge.Config{})
	ctx := context.Background()

	env.bot.Ask(ctx, "What time is check-in?", guestKey)
	prompt := env.answerer.lastPrompt()
	gt.S(t, prompt).Contains("registered guest")
	gt.S(t, prompt).Contains("Room: 12")
}

func TestAskNonGuestPromptVariant(t *testing.T) {
	env := newEnv(t, concierge.Config{})
	ctx := context.Background()

	// Unknown session key resolves to no session, so the visitor template is
	// used and no profile block is injected.
	env.bot.Ask(ctx, "What time is check-in?", "stranger@example.com")
	prompt := env.answerer.lastPrompt()
	gt.S(t, prompt).Contains("not a checked-in guest")
	gt.False(t, strings.Contains(prompt, "Room: 12"))
}

func TestAskNoMatchReturnsFixedSentence(t *testing.T) {
	env := newEnv(t, concierge.Config{})

	reply := env.bot.Ask(context.Background(), "zzzz", guestKey)
	gt.Equal(t, reply, noInfoReply)
	gt.Equal(t, env.answerer.promptCount(), 0)
}

func TestAskSoftFallbackBelowThreshold(t *testing.T) {
	env := newEnv(t, concierge.Config{})
	env.answerer.reply = "Our records do not mention that, sorry."

	// Shares only weak overlap with the check-in entry: scores below 0.55
	// but above zero, so the closest snippet still feeds the LLM.
	reply := env.bot.Ask(context.Background(), "is it sunny outside today", guestKey)
	gt.Equal(t, reply, "Our records do not mention that, sorry.")

	// Sub-threshold answers never touch the usage counter.
	gt.Equal(t, env.sheets.updateCount(), 0)
}

func TestAskHardRefusalBelowThreshold(t *testing.T) {
	env := newEnv(t, concierge.Config{HardRefusal: true})

	reply := env.bot.Ask(context.Background(), "is it sunny outside today", guestKey)
	gt.Equal(t, reply, noInfoReply)
	gt.Equal(t, env.answerer.promptCount(), 0)
}

func TestAskThresholdIsInclusive(t *testing.T) {
	// Pin the threshold to the exact score of this query so the >= path is
	// observable through the usage-count side effect.
	score := textnorm.Score(textnorm.Normalize("What time is check-in?"), textnorm.Normalize("check-in time"))
	gt.True(t, score > 0)

	env := newEnv(t, concierge.Config{QnAMinScore: score})
	reply := env.bot.Ask(context.Background(), "check-in time", guestKey)

	gt.Equal(t, reply, "Check-in is after 2 PM.")
	gt.Equal(t, env.sheets.updateCount(), 1)
}

func TestAskQuotaFailure(t *testing.T) {
	env := newEnv(t, concierge.Config{})
	env.answerer.reply = ""
	env.answerer.err = adapter.ErrQuotaExceeded

	reply := env.bot.Ask(context.Background(), "What time is check-in?", guestKey)
	gt.Equal(t, reply, quotaReply)
}

func TestAskGenericLLMFailure(t *testing.T) {
	env := newEnv(t, concierge.Config{})
	env.answerer.reply = ""
	env.answerer.err = errors.New("connection reset")

	reply := env.bot.Ask(context.Background(), "What time is check-in?", guestKey)
	gt.Equal(t, reply, genericFailReply)
}

func TestAskLLMTimeout(t *testing.T) {
	env := newEnv(t, concierge.Config{LLMTimeout: 30 * time.Millisecond})
	env.answerer.delay = 500 * time.Millisecond

	reply := env.bot.Ask(context.Background(), "What time is check-in?", guestKey)
	gt.Equal(t, reply, genericFailReply)
}

func TestAskMenuListing(t *testing.T) {
	env := newEnv(t, concierge.Config{})

	reply := env.bot.Ask(context.Background(), "show me the menu", guestKey)
	gt.S(t, reply).Contains("MENU")
	gt.S(t, reply).Contains("Coffee")
	gt.S(t, reply).Contains("Sandwich")
	gt.Equal(t, env.answerer.promptCount(), 0)
}

func TestAskMenuUnknownItem(t *testing.T) {
	env := newEnv(t, concierge.Config{})
	env.intents.reply = `{"intent": "MENU"}`
	env.intents.err = nil

	reply := env.bot.Ask(context.Background(), "do you serve pizza", guestKey)
	gt.Equal(t, reply, "That item is not available in our menu.")
}

func TestAskOrderConfirmation(t *testing.T) {
	env := newEnv(t, concierge.Config{})
	env.intents.reply = `{"intent": "ORDER"}`
	env.intents.err = nil

	reply := env.bot.Ask(context.Background(), "2 coffee and sandwich", guestKey)
	gt.S(t, reply).Contains("Order Confirmed!")
	gt.S(t, reply).Contains("2 Coffee, Sandwich")
	gt.S(t, reply).Contains("Total Amount: 220")
	gt.S(t, reply).Contains("Room No: 12")

	gt.A(t, env.orders.orders).Length(1)
	order := env.orders.orders[0]
	gt.Equal(t, order.Email, guestKey)
	gt.Equal(t, order.RoomNo, "12")
	gt.Equal(t, order.Total(), 220.0)
}

func TestAskOrderNoResolvedItems(t *testing.T) {
	env := newEnv(t, concierge.Config{})
	env.intents.reply = `{"intent": "ORDER"}`
	env.intents.err = nil

	reply := env.bot.Ask(context.Background(), "I want to order something nice", guestKey)
	gt.Equal(t, reply, needsStaffReply)
	gt.A(t, env.orders.orders).Length(0)
}

func TestAskOrderSaveFailure(t *testing.T) {
	env := newEnv(t, concierge.Config{})
	env.intents.reply = `{"intent": "ORDER"}`
	env.intents.err = nil
	env.orders.err = errors.New("sheet unavailable")

	reply := env.bot.Ask(context.Background(), "2 coffee", guestKey)
	gt.Equal(t, reply, "I couldn't save your order at the moment. Please try again shortly.")
}

func TestAskOrderRestrictedForVisitors(t *testing.T) {
	env := newEnv(t, concierge.Config{})
	env.intents.reply = `{"intent": "ORDER"}`
	env.intents.err = nil

	reply := env.bot.Ask(context.Background(), "2 coffee", "stranger@example.com")
	gt.Equal(t, reply, restrictedReply)
	gt.A(t, env.orders.orders).Length(0)
}

func TestAskTicketDedup(t *testing.T) {
	env := newEnv(t, concierge.Config{})
	ctx := context.Background()

	// "not working" hits the ticket keyword rule.
	reply := env.bot.Ask(ctx, "the wifi is not working", guestKey)
	gt.Equal(t, reply, acknowledgedReply)
	gt.Equal(t, env.tickets.count(), 1)
	gt.Equal(t, env.tickets.records[0].RoomNo, "12")
	gt.Equal(t, env.tickets.records[0].Status, model.TicketOpen)
	gt.S(t, string(env.tickets.records[0].ID)).Contains("TCK-")

	// Identical request from the same room reuses the open ticket.
	reply = env.bot.Ask(ctx, "the wifi is not working", guestKey)
	gt.Equal(t, reply, acknowledgedReply)
	gt.Equal(t, env.tickets.count(), 1)

	// Once resolved, the same request opens a fresh ticket.
	env.tickets.resolve(0)
	reply = env.bot.Ask(ctx, "the wifi is not working", guestKey)
	gt.Equal(t, reply, acknowledgedReply)
	gt.Equal(t, env.tickets.count(), 2)
}

func TestAskServiceRequestRaisesTicket(t *testing.T) {
	env := newEnv(t, concierge.Config{})

	reply := env.bot.Ask(context.Background(), "please send extra towels", guestKey)
	gt.Equal(t, reply, acknowledgedReply)
	gt.Equal(t, env.tickets.count(), 1)
	gt.Equal(t, env.tickets.records[0].Category, "SERVICE_REQUEST")
	gt.Equal(t, env.tickets.records[0].AssignedTo, "SERVICE_REQUEST")
}

func TestAskTicketRestrictedForVisitors(t *testing.T) {
	env := newEnv(t, concierge.Config{})

	reply := env.bot.Ask(context.Background(), "the wifi is not working", "stranger@example.com")
	gt.Equal(t, reply, restrictedReply)
	gt.Equal(t, env.tickets.count(), 0)
}

func TestAskSmallTalk(t *testing.T) {
	env := newEnv(t, concierge.Config{})
	env.intents.reply = `{"intent": "SMALL_TALK"}`
	env.intents.err = nil

	reply := env.bot.Ask(context.Background(), "hello there", guestKey)
	gt.S(t, reply).Contains("Welcome to Ilora Retreats")
	gt.Equal(t, env.answerer.promptCount(), 0)
}

func TestAskResolvesLatestSessionWithoutKey(t *testing.T) {
	env := newEnv(t, concierge.Config{})

	// No explicit key: the latest-active session (the seeded guest) is used,
	// so history lands under that key.
	env.bot.Ask(context.Background(), "What time is check-in?", "")
	gt.A(t, env.history.Recent(guestKey)).Length(2)
}

func TestAskNeverPanicsWithoutCollaborators(t *testing.T) {
	cache := knowledge.New(&fakeSheets{rows: map[string][]map[string]string{}}, knowledge.Config{})
	rules, err := intent.DefaultRules()
	gt.NoError(t, err)

	bot := concierge.New(concierge.Config{}, cache, intent.New(nil, rules),
		&stubLLM{reply: "ok"}, runner.New(1), nil, nil, nil, nil, nil)

	reply := bot.Ask(context.Background(), "is there a pool", "")
	gt.Equal(t, reply, noInfoReply)
}
