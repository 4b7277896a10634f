package cli

import (
	"context"
	"os"
	"time"

	"github.com/ilora-retreats/concierge/pkg/adapter"
	"github.com/ilora-retreats/concierge/pkg/policy"
	"github.com/ilora-retreats/concierge/pkg/repository"
	"github.com/ilora-retreats/concierge/pkg/runner"
	"github.com/ilora-retreats/concierge/pkg/service/knowledge"
	"github.com/ilora-retreats/concierge/pkg/service/session"
	"github.com/ilora-retreats/concierge/pkg/store"
	"github.com/ilora-retreats/concierge/pkg/usecase/concierge"
	"github.com/ilora-retreats/concierge/pkg/usecase/intent"
	"github.com/ilora-retreats/concierge/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	logLevel string

	// Sheets
	spreadsheetID string
	ticketSheet   string
	orderSheet    string

	// LLM provider
	llmProvider     string
	geminiProject   string
	geminiLocation  string
	geminiModel     string
	anthropicAPIKey string
	groqAPIKey      string
	groqModel       string

	// Session store
	sessionBackend string
	redisAddr      string
	redisPassword  string
	redisDB        int64
	sessionTTL     time.Duration

	// History persistence
	storageBackend string
	bucket         string
	historyDir     string
	repoBackend    string
	project        string
	database       string

	// Policy and rules
	policyDir string
	rulesFile string

	// Orchestrator
	agentName      string
	qnaMinScore    float64
	qnaHardRefusal bool
	workers        int64

	// Bookings
	bookingsDB string

	// Serve
	addr         string
	refreshEvery string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("CONCIERGE_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "spreadsheet-id",
			Usage:       "Google Sheets spreadsheet ID holding the hotel data",
			Sources:     cli.EnvVars("CONCIERGE_SPREADSHEET_ID"),
			Destination: &cfg.spreadsheetID,
		},
		&cli.StringFlag{
			Name:        "ticket-sheet",
			Usage:       "Sheet tab for staff tickets",
			Value:       adapter.DefaultTicketSheet,
			Sources:     cli.EnvVars("CONCIERGE_TICKET_SHEET"),
			Destination: &cfg.ticketSheet,
		},
		&cli.StringFlag{
			Name:        "order-sheet",
			Usage:       "Sheet tab for room-service orders",
			Value:       adapter.DefaultOrderSheet,
			Sources:     cli.EnvVars("CONCIERGE_ORDER_SHEET"),
			Destination: &cfg.orderSheet,
		},
		&cli.StringFlag{
			Name:        "session-backend",
			Usage:       "Session store backend (memory, redis)",
			Value:       "memory",
			Sources:     cli.EnvVars("CONCIERGE_SESSION_BACKEND"),
			Destination: &cfg.sessionBackend,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address for the session store",
			Value:       "localhost:6379",
			Sources:     cli.EnvVars("CONCIERGE_REDIS_ADDR"),
			Destination: &cfg.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Sources:     cli.EnvVars("CONCIERGE_REDIS_PASSWORD"),
			Destination: &cfg.redisPassword,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Sources:     cli.EnvVars("CONCIERGE_REDIS_DB"),
			Destination: &cfg.redisDB,
		},
		&cli.DurationFlag{
			Name:        "session-ttl",
			Usage:       "Redis session TTL",
			Value:       24 * time.Hour,
			Sources:     cli.EnvVars("CONCIERGE_SESSION_TTL"),
			Destination: &cfg.sessionTTL,
		},
		&cli.StringFlag{
			Name:        "storage-backend",
			Usage:       "Chat history blob backend (local, gcs)",
			Value:       "local",
			Sources:     cli.EnvVars("CONCIERGE_STORAGE_BACKEND"),
			Destination: &cfg.storageBackend,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for chat histories",
			Sources:     cli.EnvVars("CONCIERGE_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "history-dir",
			Usage:       "Local directory for chat histories",
			Value:       "chat_histories",
			Sources:     cli.EnvVars("CONCIERGE_HISTORY_DIR"),
			Destination: &cfg.historyDir,
		},
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "History metadata backend (memory, firestore)",
			Value:       "memory",
			Sources:     cli.EnvVars("CONCIERGE_REPOSITORY_BACKEND"),
			Destination: &cfg.repoBackend,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego access policies (empty: embedded default)",
			Sources:     cli.EnvVars("CONCIERGE_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.StringFlag{
			Name:        "intent-rules",
			Usage:       "YAML file overriding the intent keyword rules",
			Sources:     cli.EnvVars("CONCIERGE_INTENT_RULES"),
			Destination: &cfg.rulesFile,
		},
		&cli.StringFlag{
			Name:        "agent-name",
			Usage:       "Assistant persona name used in prompts",
			Value:       "Front Desk Assistant",
			Sources:     cli.EnvVars("CONCIERGE_AGENT_NAME"),
			Destination: &cfg.agentName,
		},
		&cli.FloatFlag{
			Name:        "qna-min-score",
			Usage:       "Minimum retrieval score for the matched answer path",
			Value:       0.55,
			Sources:     cli.EnvVars("CONCIERGE_QNA_MIN_SCORE"),
			Destination: &cfg.qnaMinScore,
		},
		&cli.BoolFlag{
			Name:        "qna-hard-refusal",
			Usage:       "Refuse instead of soft-fallback when the best match is below threshold",
			Sources:     cli.EnvVars("CONCIERGE_QNA_HARD_REFUSAL"),
			Destination: &cfg.qnaHardRefusal,
		},
		&cli.IntFlag{
			Name:        "workers",
			Usage:       "Worker pool size for bounded external calls",
			Value:       4,
			Sources:     cli.EnvVars("CONCIERGE_WORKERS"),
			Destination: &cfg.workers,
		},
		&cli.StringFlag{
			Name:        "bookings-db",
			Usage:       "Path to the bookings SQLite database (empty: disabled)",
			Sources:     cli.EnvVars("CONCIERGE_BOOKINGS_DB"),
			Destination: &cfg.bookingsDB,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Usage:       "LLM provider (gemini, claude, groq)",
			Value:       "gemini",
			Sources:     cli.EnvVars("CONCIERGE_LLM_PROVIDER"),
			Destination: &cfg.llmProvider,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "groq-api-key",
			Usage:       "Groq API key",
			Sources:     cli.EnvVars("GROQ_API_KEY"),
			Destination: &cfg.groqAPIKey,
		},
		&cli.StringFlag{
			Name:        "groq-model",
			Usage:       "Groq model name",
			Sources:     cli.EnvVars("GROQ_MODEL"),
			Destination: &cfg.groqModel,
		},
	}
}

// setupLogger installs the configured logger as default and attaches it to
// the context.
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stdout)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newLLM creates the configured LLM provider
func (cfg *config) newLLM(ctx context.Context) (adapter.LLM, error) {
	switch cfg.llmProvider {
	case "gemini":
		if cfg.geminiProject == "" {
			return nil, goerr.New("gemini-project is required")
		}
		var opts []adapter.GeminiOption
		if cfg.geminiModel != "" {
			opts = append(opts, adapter.WithGeminiModel(cfg.geminiModel))
		}
		return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)

	case "claude":
		if cfg.anthropicAPIKey == "" {
			return nil, goerr.New("anthropic-api-key is required")
		}
		return adapter.NewClaude(cfg.anthropicAPIKey), nil

	case "groq":
		if cfg.groqAPIKey == "" {
			return nil, goerr.New("groq-api-key is required")
		}
		var opts []adapter.GroqOption
		if cfg.groqModel != "" {
			opts = append(opts, adapter.WithGroqModel(cfg.groqModel))
		}
		return adapter.NewGroq(cfg.groqAPIKey, opts...), nil

	default:
		return nil, goerr.New("unknown llm provider", goerr.V("provider", cfg.llmProvider))
	}
}

// newSheets creates the Sheets adapter
func (cfg *config) newSheets(ctx context.Context) (adapter.Sheets, error) {
	if cfg.spreadsheetID == "" {
		return nil, goerr.New("spreadsheet-id is required")
	}
	return adapter.NewSheets(ctx, cfg.spreadsheetID)
}

// newSessionStore creates the configured session store
func (cfg *config) newSessionStore() (session.Store, error) {
	switch cfg.sessionBackend {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       int(cfg.redisDB),
		})
		return session.NewRedisStore(client, cfg.sessionTTL), nil
	default:
		return nil, goerr.New("unknown session backend", goerr.V("backend", cfg.sessionBackend))
	}
}

// newStorage creates the chat-history blob storage
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	switch cfg.storageBackend {
	case "local":
		return adapter.NewLocalStorage(cfg.historyDir)
	case "gcs":
		if cfg.bucket == "" {
			return nil, goerr.New("bucket is required for gcs storage")
		}
		return adapter.NewStorage(ctx, cfg.bucket)
	default:
		return nil, goerr.New("unknown storage backend", goerr.V("backend", cfg.storageBackend))
	}
}

// newRepository creates the history metadata repository
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	switch cfg.repoBackend {
	case "memory":
		return repository.NewMemory(), nil
	case "firestore":
		if cfg.project == "" {
			return nil, goerr.New("project is required for firestore")
		}
		return repository.NewFirestore(ctx, cfg.project, cfg.database)
	default:
		return nil, goerr.New("unknown repository backend", goerr.V("backend", cfg.repoBackend))
	}
}

// runtime is everything a command needs once configuration is resolved.
type runtime struct {
	cache    *knowledge.Cache
	bot      *concierge.Bot
	sessions session.Store
	history  *session.History
	tickets  concierge.TicketSink
	bookings *store.Store
}

// build assembles the concierge runtime from configuration.
func (cfg *config) build(ctx context.Context) (*runtime, error) {
	sheets, err := cfg.newSheets(ctx)
	if err != nil {
		return nil, err
	}

	llm, err := cfg.newLLM(ctx)
	if err != nil {
		return nil, err
	}

	sessions, err := cfg.newSessionStore()
	if err != nil {
		return nil, err
	}

	storage, err := cfg.newStorage(ctx)
	if err != nil {
		return nil, err
	}
	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, err
	}
	history := session.NewHistory(
		session.WithPersister(session.NewBlobPersister(storage, repo)),
	)

	rules, err := cfg.newRules()
	if err != nil {
		return nil, err
	}

	var gateOpts []policy.GateOption
	if cfg.policyDir != "" {
		gateOpts = append(gateOpts, policy.WithPolicyDir(cfg.policyDir))
	}
	gate, err := policy.New(ctx, gateOpts...)
	if err != nil {
		return nil, err
	}

	cache := knowledge.New(sheets, knowledge.Config{})
	tickets := adapter.NewSheetTicketSink(sheets, cfg.ticketSheet)
	orders := adapter.NewSheetOrderSink(sheets, cfg.orderSheet)

	var bookings *store.Store
	if cfg.bookingsDB != "" {
		bookings, err = store.New(cfg.bookingsDB)
		if err != nil {
			return nil, err
		}
		if err := bookings.AutoMigrate(ctx); err != nil {
			return nil, err
		}
	}

	bot := concierge.New(
		concierge.Config{
			AgentName:   cfg.agentName,
			QnAMinScore: cfg.qnaMinScore,
			HardRefusal: cfg.qnaHardRefusal,
		},
		cache,
		intent.New(llm, rules),
		llm,
		runner.New(int(cfg.workers)),
		sessions,
		history,
		tickets,
		orders,
		gate,
	)

	return &runtime{
		cache:    cache,
		bot:      bot,
		sessions: sessions,
		history:  history,
		tickets:  tickets,
		bookings: bookings,
	}, nil
}

func (cfg *config) newRules() (*intent.RuleTable, error) {
	if cfg.rulesFile != "" {
		return intent.LoadRules(cfg.rulesFile)
	}
	return intent.DefaultRules()
}

func (rt *runtime) close() {
	if rt.bookings != nil {
		_ = rt.bookings.Close()
	}
}
