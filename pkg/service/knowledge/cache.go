// Package knowledge maintains the in-memory copy of the sheet-backed hotel
// knowledge: Q&A entries, menu, campaigns, and communication rules. The whole
// set is refreshed wholesale on a timer and swapped as a single reference, so
// readers never observe a partially loaded cache.
package knowledge

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ilora-retreats/concierge/pkg/adapter"
	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/ilora-retreats/concierge/pkg/utils/logging"
	"github.com/ilora-retreats/concierge/pkg/utils/textnorm"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// Default sheet names, matching the property's spreadsheet tabs.
const (
	DefaultKnowledgeSheet = "QnA_Manager"
	DefaultMenuSheet      = "Menu_Manager"
	DefaultCampaignSheet  = "Campaigns_Manager"
	DefaultRulesSheet     = "Dos and Donts"
)

// Config controls sheet names and refresh cadence.
type Config struct {
	KnowledgeSheet  string
	MenuSheet       string
	CampaignSheet   string
	RulesSheet      string
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
}

func (c *Config) fillDefaults() {
	if c.KnowledgeSheet == "" {
		c.KnowledgeSheet = DefaultKnowledgeSheet
	}
	if c.MenuSheet == "" {
		c.MenuSheet = DefaultMenuSheet
	}
	if c.CampaignSheet == "" {
		c.CampaignSheet = DefaultCampaignSheet
	}
	if c.RulesSheet == "" {
		c.RulesSheet = DefaultRulesSheet
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 300 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 7 * time.Second
	}
}

// Snapshot is one immutable refresh cycle's worth of hotel data.
type Snapshot struct {
	Entries   []*model.KnowledgeEntry
	Menu      []*model.MenuItem
	Campaigns []model.Campaign
	Rules     []model.ConductRule
}

// Match is one retrieval hit: the entry's page content, its score, and the
// backing record for the usage-count side effect.
type Match struct {
	Content string
	Score   float64
	Entry   *model.KnowledgeEntry
}

// Cache is the refresh-on-a-timer store behind the knowledge retriever.
type Cache struct {
	sheets adapter.Sheets
	cfg    Config
	clock  func() time.Time

	mu          sync.Mutex
	lastRefresh time.Time
	snap        *Snapshot
}

type CacheOption func(*Cache)

// WithClock replaces the time source, for refresh-gating tests.
func WithClock(clock func() time.Time) CacheOption {
	return func(c *Cache) {
		c.clock = clock
	}
}

// New creates a Cache. The first Refresh populates it; until then every
// lookup sees an empty snapshot, which retrieval treats as "no matches".
func New(sheets adapter.Sheets, cfg Config, opts ...CacheOption) *Cache {
	cfg.fillDefaults()

	c := &Cache{
		sheets: sheets,
		cfg:    cfg,
		clock:  time.Now,
		snap:   &Snapshot{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Snapshot returns the current cache generation. Never nil.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Refresh reloads every sheet and swaps the snapshot. Unless force is set,
// calls within the refresh interval are no-ops. Two concurrent callers past
// the interval may both fetch; the refresh is idempotent so the duplicate
// work is waste, not a hazard.
func (c *Cache) Refresh(ctx context.Context, force bool) error {
	c.mu.Lock()
	if !force && c.clock().Sub(c.lastRefresh) < c.cfg.RefreshInterval {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	var (
		qnaRows, menuRows, campaignRows, ruleRows []map[string]string
	)

	eg, egCtx := errgroup.WithContext(fetchCtx)
	eg.Go(func() (err error) {
		qnaRows, err = c.sheets.Rows(egCtx, c.cfg.KnowledgeSheet)
		return err
	})
	eg.Go(func() (err error) {
		menuRows, err = c.sheets.Rows(egCtx, c.cfg.MenuSheet)
		return err
	})
	eg.Go(func() (err error) {
		campaignRows, err = c.sheets.Rows(egCtx, c.cfg.CampaignSheet)
		return err
	})
	eg.Go(func() (err error) {
		ruleRows, err = c.sheets.Rows(egCtx, c.cfg.RulesSheet)
		return err
	})
	if err := eg.Wait(); err != nil {
		return goerr.Wrap(err, "failed to refresh sheets")
	}

	snap := buildSnapshot(qnaRows, menuRows, campaignRows, ruleRows)

	c.mu.Lock()
	c.snap = snap
	c.lastRefresh = c.clock()
	c.mu.Unlock()

	logging.From(ctx).Info("knowledge cache refreshed",
		"entries", len(snap.Entries),
		"menu_items", len(snap.Menu),
		"campaigns", len(snap.Campaigns))

	return nil
}

func buildSnapshot(qnaRows, menuRows, campaignRows, ruleRows []map[string]string) *Snapshot {
	snap := &Snapshot{}

	for _, row := range qnaRows {
		entry := model.NewKnowledgeEntry(row)
		if entry == nil || !entry.Active() {
			continue
		}
		snap.Entries = append(snap.Entries, entry)
	}

	for _, row := range menuRows {
		item := model.NewMenuItem(row)
		if item.Name == "" {
			continue
		}
		snap.Menu = append(snap.Menu, item)
	}

	for _, row := range campaignRows {
		campaign := model.Campaign{
			Title:       firstNonEmpty(row["Name"], row["Title"], row["Campaign"]),
			Description: firstNonEmpty(row["Description"], row["Desc"], row["Details"]),
		}
		if campaign.Title == "" && campaign.Description == "" {
			continue
		}
		snap.Campaigns = append(snap.Campaigns, campaign)
	}

	for _, row := range ruleRows {
		rule := model.ConductRule{Do: row["do"], Dont: row["dont"]}
		if rule.Do == "" && rule.Dont == "" {
			continue
		}
		snap.Rules = append(snap.Rules, rule)
	}

	return snap
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Retrieve scores every active entry against the query and returns the top k
// matches, highest first. Equal scores keep sheet order, so repeated calls
// over the same snapshot are deterministic. An empty cache yields no matches,
// not an error.
func (c *Cache) Retrieve(query string, k int) []Match {
	if k <= 0 {
		k = 5
	}

	snap := c.Snapshot()
	queryNorm := textnorm.Normalize(query)

	matches := make([]Match, 0, len(snap.Entries))
	for _, entry := range snap.Entries {
		score := textnorm.Score(entry.QuestionNorm, queryNorm)
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{
			Content: entry.PageContent,
			Score:   score,
			Entry:   entry,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// IncrementUsage bumps the usage counter of the entry that answered a query,
// in memory and on the sheet. Best-effort: the caller logs failures and never
// lets them fail the response.
func (c *Cache) IncrementUsage(ctx context.Context, entry *model.KnowledgeEntry) error {
	if entry == nil || entry.ID == "" {
		return goerr.New("entry has no id")
	}

	c.mu.Lock()
	entry.UsageCount++
	usage := entry.UsageCount
	c.mu.Unlock()

	err := c.sheets.UpdateByID(ctx, c.cfg.KnowledgeSheet, "QnA ID", entry.ID, map[string]string{
		"Usage Count":  strconv.Itoa(usage),
		"Last Updated": c.clock().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to update usage count", goerr.V("id", entry.ID))
	}
	return nil
}
