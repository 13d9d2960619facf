package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"voxchat/app/client/ai"
	"voxchat/app/config"
	"voxchat/app/server"
	"voxchat/app/service/assets"
	"voxchat/app/service/reply"
	"voxchat/app/service/session"
	"voxchat/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
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

	do.Provide(di, ai.NewClient)
	do.Provide(di, assets.New)
	do.Provide(di, session.New)
	do.Provide(di, reply.New)
	do.Provide(di, server.New)

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	g, gctx := errgroup.WithContext(appCtx)

	g.Go(func() error {
		do.MustInvoke[*session.Service](di).Run(gctx)
		return nil
	})

	g.Go(func() error {
		do.MustInvoke[*assets.Service](di).Run(gctx)
		return nil
	})

	g.Go(func() error {
		return do.MustInvoke[*server.Server](di).Run(gctx)
	})

	if err = g.Wait(); err != nil {
		log.Fatalf("service stopped: %v", err)
	}
}
