package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/ilora-retreats/concierge/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"
)

type askConciergeParams struct {
	Query      string `json:"query" jsonschema:"The guest message to answer"`
	SessionKey string `json:"session_key,omitempty" jsonschema:"Guest session key (email). Empty: most recent login"`
}

type getMenuParams struct {
	Type string `json:"type,omitempty" jsonschema:"Filter by item type, e.g. Beverage. Empty: all items"`
}

func mcpCommand() *cli.Command {
	cfg := &config{}

	flags := append(globalFlags(cfg), llmFlags(cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Expose the concierge as an MCP server on stdio",
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

			server := mcp.NewServer(&mcp.Implementation{
				Name:    "ilora-concierge",
				Version: "1.0.0",
			}, nil)

			mcp.AddTool(server, &mcp.Tool{
				Name:        "ask_concierge",
				Description: "Ask the hotel concierge a question on behalf of a guest",
			}, func(ctx context.Context, req *mcp.CallToolRequest, params *askConciergeParams) (*mcp.CallToolResult, any, error) {
				if strings.TrimSpace(params.Query) == "" {
					return nil, nil, goerr.New("query is required")
				}
				reply := rt.bot.Ask(ctx, params.Query, params.SessionKey)
				return &mcp.CallToolResult{
					Content: []mcp.Content{
						&mcp.TextContent{Text: reply},
					},
				}, nil, nil
			})

			mcp.AddTool(server, &mcp.Tool{
				Name:        "get_menu",
				Description: "List the hotel food and beverage menu",
			}, func(ctx context.Context, req *mcp.CallToolRequest, params *getMenuParams) (*mcp.CallToolResult, any, error) {
				if err := rt.cache.Refresh(ctx, false); err != nil {
					logger.Warn("menu refresh failed", "error", err)
				}

				var lines []string
				for _, item := range rt.cache.Snapshot().Menu {
					if params.Type != "" && !strings.EqualFold(item.Type, params.Type) {
						continue
					}
					lines = append(lines, fmt.Sprintf("%s | %s | %s | %.2f | %s",
						item.ID, item.Type, item.Name, item.Price, item.Description))
				}

				text := "No menu items found."
				if len(lines) > 0 {
					text = strings.Join(lines, "\n")
				}
				return &mcp.CallToolResult{
					Content: []mcp.Content{
						&mcp.TextContent{Text: text},
					},
				}, nil, nil
			})

			logger.Info("concierge MCP server starting on stdio")
			return server.Run(ctx, &mcp.StdioTransport{})
		},
	}
}
