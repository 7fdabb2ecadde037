package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"hlsfn/internal/app"
	"hlsfn/internal/config"
	"hlsfn/internal/pkg/logger"
	"hlsfn/internal/pkg/shutdown"
)

func main() {
	lc := logger.DefaultConfig()
	lc.ServiceName = "hlsfn-lambda"
	log := logger.New(lc)

	cfg, err := config.FromEnv()
	if err != nil {
		log.LogFatal("invalid configuration", err)
	}

	shutdownMgr := shutdown.NewManager(log, 2*time.Second)

	a, err := app.New(context.Background(), cfg, log, shutdownMgr)
	if err != nil {
		shutdownMgr.Shutdown()
		log.LogFatal("failed to initialize", err)
	}

	lambda.StartWithOptions(NewHandler(a.Pipeline),
		lambda.WithEnableSIGTERM(shutdownMgr.Shutdown),
	)
}
