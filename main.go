package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"kasal/app/client/vectorsearch"
	"kasal/app/config"
	"kasal/app/service/agent"
	"kasal/app/service/index"
	"kasal/app/service/memory"
	"kasal/app/service/search"
	"kasal/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

const (
	readyWait     = 5 * time.Minute
	readyInterval = 10 * time.Second
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, vectorsearch.NewClient)
	do.Provide(di, index.New)
	do.Provide(di, search.New)
	do.Provide(di, memory.New)
	do.Provide(di, agent.New)

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	memorySvc := do.MustInvoke[*memory.Service](di)

	provisioned, err := memorySvc.ProvisionAll(appCtx)
	if err != nil {
		log.Fatalf("provisioning failed: %v", err)
	}

	for i := range provisioned.Created {
		created := &provisioned.Created[i]
		created.Apply(&cfg.Memory)

		if created.Success && !created.Ready {
			waited, err := memorySvc.WaitForReady(appCtx, created.MemoryType, readyWait, readyInterval)
			if err != nil {
				log.Fatalf("readiness wait failed: %v", err)
			}
			if !waited.Ready {
				slog.Warn("Index not ready yet, continuing anyway",
					"memory_type", created.MemoryType,
					"name", created.IndexName,
					"attempts", waited.Attempts,
				)
			}
		}
	}

	go func() {
		if err := do.MustInvoke[*agent.Service](di).ServeMCP(appCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP server stopped", "error", err)
			cancel()
		}
	}()

	<-appCtx.Done()
}
