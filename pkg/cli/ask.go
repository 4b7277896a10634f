package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/ilora-retreats/concierge/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	cfg := &config{}
	var sessionKey string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"s"},
			Usage:       "Session key (guest email). Empty: most recent login",
			Sources:     cli.EnvVars("CONCIERGE_SESSION_KEY"),
			Destination: &sessionKey,
		},
	}
	flags = append(flags, globalFlags(cfg)...)
	flags = append(flags, llmFlags(cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a single guest message and exit",
		ArgsUsage: "<message>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if query == "" {
				return goerr.New("message is required")
			}

			ctx = cfg.setupLogger(ctx)

			rt, err := cfg.build(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.cache.Refresh(ctx, true); err != nil {
				logging.From(ctx).Warn("hotel data load failed", "error", err)
			}

			fmt.Println(rt.bot.Ask(ctx, query, sessionKey))
			return nil
		},
	}
}
