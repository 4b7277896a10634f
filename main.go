package main

import (
	"context"
	"os"

	"github.com/ilora-retreats/concierge/pkg/cli"
	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for local development; deployments set real environment variables.
	_ = godotenv.Load()

	ctx := context.Background()
	if err := cli.Run(ctx, os.Args); err != nil {
		os.Exit(err.Code)
	}
}
