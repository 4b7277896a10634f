package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/ilora-retreats/concierge/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
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
		Name:  "chat",
		Usage: "Interactive concierge session on the terminal",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			logger := logging.From(ctx)

			rt, err := cfg.build(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.cache.Refresh(ctx, true); err != nil {
				logger.Warn("hotel data load failed", "error", err)
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "guest> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "bye",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to open terminal")
			}
			defer rl.Close()

			fmt.Println("Ilora Retreats concierge. Type your message, or 'exit' to quit.")

			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) {
						continue
					}
					if errors.Is(err, io.EOF) {
						return nil
					}
					return goerr.Wrap(err, "failed to read input")
				}

				query := strings.TrimSpace(line)
				if query == "" {
					continue
				}
				if query == "exit" || query == "quit" {
					return nil
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = " thinking..."
				sp.Start()
				reply := rt.bot.Ask(ctx, query, sessionKey)
				sp.Stop()

				fmt.Printf("\n%s\n\n", reply)
			}
		},
	}
}
