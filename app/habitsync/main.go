package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/jrazmi/habitsync/app/habitsync/commands"
	"github.com/jrazmi/habitsync/app/habitsync/config"
	"github.com/jrazmi/habitsync/sdk/environment"
	"github.com/jrazmi/habitsync/sdk/logger"
)

var build = "develop"

func main() {
	environment.LoadEnv()

	log, err := logger.NewFromEnv(config.Prefix)
	if err != nil {
		fmt.Println("oh no we couldn't even get logging going.")
		os.Exit(1)
	}
	ctx := context.Background()
	log.DebugContext(ctx, "startup", "build", build, "GOMAXPROCS", runtime.GOMAXPROCS(0))

	if err := commands.Execute(ctx, log, build); err != nil {
		log.ErrorContext(ctx, "habitsync", "err", err)
		os.Exit(1)
	}
}
