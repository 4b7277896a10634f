// Package concierge is the orchestrator tying classification, retrieval,
// prompt composition, and the external sinks into one Ask call per guest
// message. Ask is the error boundary: every external failure is caught,
// logged, and converted into a safe reply string.
package concierge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ilora-retreats/concierge/pkg/adapter"
	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/ilora-retreats/concierge/pkg/policy"
	"github.com/ilora-retreats/concierge/pkg/runner"
	"github.com/ilora-retreats/concierge/pkg/service/knowledge"
	"github.com/ilora-retreats/concierge/pkg/service/session"
	"github.com/ilora-retreats/concierge/pkg/usecase/intent"
	"github.com/ilora-retreats/concierge/pkg/utils/logging"
)

// Fixed guest-facing reply strings. These are part of the product surface;
// dashboards and tests match on them verbatim.
const (
	msgNoInformation = "I'm sorry, I don't have that information at the moment."
	msgAcknowledged  = "I've noted your request. Our team will assist you shortly."
	msgNeedsStaff    = "This request needs staff assistance. I've raised a service ticket for you."
	msgQuota         = "I'm currently handling a lot of requests and have temporarily reached my response limit. Please try again in a minute"
	msgGenericFail   = "I'm sorry, I couldn't process that right now."
	msgOrderFailed   = "I couldn't save your order at the moment. Please try again shortly."
	msgRestricted    = "I'm sorry, that service is available to checked-in guests only. Please contact the front desk for assistance."
	msgSmallTalk     = "Hello! Welcome to Ilora Retreats. How can I help you today?"
)

// Config carries the orchestrator knobs. Zero values fall back to the
// deployment defaults.
type Config struct {
	AgentName    string
	PropertyName string

	QnAMinScore     float64
	HardRefusal     bool // skip the soft fallback below threshold
	RetrieverK      int
	DedupWindow     int
	RetrieveTimeout time.Duration
	LLMTimeout      time.Duration
}

func (c *Config) fillDefaults() {
	if c.AgentName == "" {
		c.AgentName = "Front Desk Assistant"
	}
	if c.PropertyName == "" {
		c.PropertyName = "Ilora Retreats"
	}
	if c.QnAMinScore <= 0 {
		c.QnAMinScore = 0.55
	}
	if c.RetrieverK <= 0 {
		c.RetrieverK = 5
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 15
	}
	if c.RetrieveTimeout <= 0 {
		c.RetrieveTimeout = 2 * time.Second
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = 8 * time.Second
	}
}

// Bot is the concierge orchestrator.
type Bot struct {
	cfg        Config
	cache      *knowledge.Cache
	classifier *intent.Classifier
	llm        adapter.LLM
	pool       *runner.Pool
	sessions   session.Store
	history    *session.History
	tickets    TicketSink
	orders     OrderSink
	gate       *policy.Gate
}

// New creates a Bot. The sinks and gate may be nil in reduced deployments;
// the corresponding branches then degrade to their fallback replies.
func New(cfg Config, cache *knowledge.Cache, classifier *intent.Classifier, llm adapter.LLM,
	pool *runner.Pool, sessions session.Store, history *session.History,
	tickets TicketSink, orders OrderSink, gate *policy.Gate) *Bot {

	cfg.fillDefaults()
	return &Bot{
		cfg:        cfg,
		cache:      cache,
		classifier: classifier,
		llm:        llm,
		pool:       pool,
		sessions:   sessions,
		history:    history,
		tickets:    tickets,
		orders:     orders,
		gate:       gate,
	}
}

// Ask answers one guest message. It never returns an error: every failure
// path ends in a safe user-facing sentence.
func (b *Bot) Ask(ctx context.Context, query, sessionKey string) string {
	logger := logging.From(ctx)

	sess := b.resolveSession(ctx, sessionKey)
	var profile *model.GuestProfile
	sessKey := ""
	if sess != nil {
		profile = &sess.Normalized
		sessKey = sess.Key
	}

	tag := b.classifier.Classify(ctx, query)
	logger.Info("classified guest message", "intent", tag, "session", sessKey)

	var reply string
	switch tag {
	case model.IntentMenu:
		reply = b.handleMenu(ctx, query)
	case model.IntentOrder:
		reply = b.handleOrder(ctx, query, profile)
	case model.IntentServiceRequest, model.IntentTicket:
		reply = b.handleTicket(ctx, query, profile, tag)
	case model.IntentSmallTalk:
		reply = msgSmallTalk
	default:
		reply = b.handleQnA(ctx, query, profile, sessKey)
	}

	if sessKey != "" && b.history != nil {
		meta := map[string]any{"intent": string(tag)}
		b.history.Add(ctx, sessKey, model.RoleUser, query, meta)
		b.history.Add(ctx, sessKey, model.RoleAssistant, reply, meta)
	}

	return reply
}

// resolveSession returns the explicit session, else the latest active one,
// else nil. Lookup failures degrade to an anonymous session.
func (b *Bot) resolveSession(ctx context.Context, sessionKey string) *model.GuestSession {
	if b.sessions == nil {
		return nil
	}

	if sessionKey != "" {
		sess, err := b.sessions.Get(ctx, sessionKey)
		if err != nil {
			logging.From(ctx).Warn("session lookup failed", "key", sessionKey, "error", err)
			return nil
		}
		return sess
	}

	sess, err := b.sessions.Latest(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNoSessions) {
			logging.From(ctx).Warn("latest session lookup failed", "error", err)
		}
		return nil
	}
	return sess
}

// allowed consults the access policy for room-acting categories. A missing
// gate falls back to the registered-guest check; policy evaluation errors
// deny, never crash.
func (b *Bot) allowed(ctx context.Context, tag model.Intent, profile *model.GuestProfile) bool {
	if b.gate == nil {
		return profile.RegisteredGuest()
	}

	var p model.GuestProfile
	if profile != nil {
		p = *profile
	}
	ok, err := b.gate.Allow(ctx, tag, p)
	if err != nil {
		logging.From(ctx).Warn("access policy evaluation failed", "intent", tag, "error", err)
		return false
	}
	return ok
}

func (b *Bot) handleMenu(ctx context.Context, query string) string {
	if err := b.cache.Refresh(ctx, false); err != nil {
		logging.From(ctx).Warn("menu refresh failed", "error", err)
	}
	return formatMenu(b.cache.Snapshot().Menu, b.cfg.PropertyName, query)
}

func (b *Bot) handleOrder(ctx context.Context, query string, profile *model.GuestProfile) string {
	if !b.allowed(ctx, model.IntentOrder, profile) {
		return msgRestricted
	}
	if profile == nil {
		profile = &model.GuestProfile{}
	}

	if err := b.cache.Refresh(ctx, false); err != nil {
		logging.From(ctx).Warn("menu refresh failed", "error", err)
	}

	lines := extractOrder(b.cache.Snapshot().Menu, query)
	if len(lines) == 0 {
		return msgNeedsStaff
	}

	order := &model.Order{
		Email:  profile.Email,
		Name:   profile.Name,
		RoomNo: profile.RoomAllotted,
		Lines:  lines,
	}
	if order.Email == "" {
		order.Email = "N/A"
	}
	if order.Name == "" {
		order.Name = "Guest"
	}

	if b.orders != nil {
		if err := b.orders.Append(ctx, order); err != nil {
			logging.From(ctx).Error("failed to save order", "error", err, "room", order.RoomNo)
			return msgOrderFailed
		}
	}

	return fmt.Sprintf(
		"Order Confirmed!\n\nItems: %s\nTotal Amount: %s\nRoom No: %s\n\nYour order will be delivered shortly. Thank you!",
		order.Summary(), formatAmount(order.Total()), order.RoomNo)
}

func (b *Bot) handleTicket(ctx context.Context, query string, profile *model.GuestProfile, tag model.Intent) string {
	logger := logging.From(ctx)

	if !b.allowed(ctx, tag, profile) {
		return msgRestricted
	}
	if b.tickets == nil {
		return msgAcknowledged
	}

	room := "N/A"
	if profile != nil && profile.RoomAllotted != "" {
		room = profile.RoomAllotted
	}

	// Duplicate check is best-effort: a failed read never blocks creation.
	recent, err := b.tickets.Recent(ctx, b.cfg.DedupWindow)
	if err != nil {
		logger.Warn("recent ticket fetch failed, skipping dedup", "error", err)
		recent = nil
	}
	if existing, ok := findOpenDuplicate(room, query, recent); ok {
		logger.Info("reusing open ticket", "ticket", existing, "room", room)
		return msgAcknowledged
	}

	ticket := newTicket(profile, query, tag, time.Now())
	if err := b.tickets.Append(ctx, ticket); err != nil {
		logger.Error("failed to create ticket", "error", err, "room", room)
	} else {
		logger.Info("ticket created", "ticket", ticket.ID, "room", room, "category", tag)
	}

	// The guest gets the same acknowledgment either way; staff follow up
	// from the sheet, not from this conversation.
	return msgAcknowledged
}

func (b *Bot) handleQnA(ctx context.Context, query string, profile *model.GuestProfile, sessKey string) string {
	logger := logging.From(ctx)

	if err := b.cache.Refresh(ctx, false); err != nil {
		logger.Warn("knowledge refresh failed", "error", err)
	}

	matches, err := runner.Run(ctx, b.pool, b.cfg.RetrieveTimeout, func(ctx context.Context) ([]knowledge.Match, error) {
		return b.cache.Retrieve(query, b.cfg.RetrieverK), nil
	})
	if err != nil {
		logger.Warn("knowledge retrieval failed", "error", err)
		matches = nil
	}

	if len(matches) == 0 {
		return msgNoInformation
	}

	best := matches[0]
	if best.Score < b.cfg.QnAMinScore {
		if b.cfg.HardRefusal {
			return msgNoInformation
		}
		// Soft fallback: answer from the closest snippet anyway, trading
		// occasional imprecision for availability.
		answer, err := b.generateAnswer(ctx, best.Content, query, profile, sessKey)
		if err != nil {
			logger.Warn("soft-fallback answer failed", "error", err)
			return msgNoInformation
		}
		return answer
	}

	if err := b.cache.IncrementUsage(ctx, best.Entry); err != nil {
		logger.Warn("usage increment failed", "id", best.Entry.ID, "error", err)
	}

	answer, err := b.generateAnswer(ctx, best.Content, query, profile, sessKey)
	if err != nil {
		logger.Error("llm answer failed", "error", err)
		if adapter.IsQuotaError(err) {
			return msgQuota
		}
		return msgGenericFail
	}
	return answer
}

func (b *Bot) generateAnswer(ctx context.Context, hotelData, query string, profile *model.GuestProfile, sessKey string) (string, error) {
	var recent []model.ChatMessage
	if sessKey != "" && b.history != nil {
		recent = b.history.Recent(sessKey)
	}

	prompt, err := b.composePrompt(b.cache.Snapshot(), hotelData, query, profile, recent)
	if err != nil {
		return "", err
	}

	return runner.Run(ctx, b.pool, b.cfg.LLMTimeout, func(ctx context.Context) (string, error) {
		return b.llm.Complete(ctx, prompt)
	})
}
