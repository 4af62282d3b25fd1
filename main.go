package main

import (
	"context"
	"log"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/winniek75/flashinput-sub005/internal/config"
	"github.com/winniek75/flashinput-sub005/internal/handlers"
	"github.com/winniek75/flashinput-sub005/internal/security"
	"github.com/winniek75/flashinput-sub005/internal/services"
)

func main() {
	pb := pocketbase.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// Stops the hub and registry loops on terminate
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pb.OnServe().BindFunc(func(se *core.ServeEvent) error {
		logger := se.App.Logger().With("component", "spectator")

		metrics := services.NewMetrics()
		limiter := security.NewRateLimiter(cfg.MaxMessagesPerSecond, config.RateLimitWindow)
		hub := services.NewHub(metrics, limiter, logger)
		registry := services.NewSessionRegistry(hub, metrics, logger, services.RegistryConfig{
			MaxStudents:   cfg.MaxStudents,
			RoomMaxAge:    cfg.RoomMaxAge,
			SweepInterval: cfg.SweepInterval,
		})

		go hub.Run(ctx)
		go registry.Run(ctx, hub.Messages())

		ws := handlers.NewWSHandler(hub, security.NewOriginValidator(cfg.AllowedOrigins), logger)
		se.Router.GET(cfg.WSPath, apis.WrapStdHandler(ws))
		se.Router.GET("/api/spectator/metrics", handlers.HandleMetrics(hub))
		se.Router.GET("/api/spectator/health", handlers.HandleHealth(hub))

		return se.Next()
	})

	pb.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		cancel()
		return e.Next()
	})

	if err := pb.Start(); err != nil {
		log.Fatal(err)
	}
}
