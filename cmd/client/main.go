package main

import (
	"context"
	"log"
	"os"

	"github.com/collabdesk/collabdesk/internal/buildinfo"
	"github.com/collabdesk/collabdesk/internal/client/cli"
	"github.com/collabdesk/collabdesk/internal/client/config"
	"github.com/collabdesk/collabdesk/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewDefault()

	app, err := cli.NewApp(ctx, cfg, logger)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
