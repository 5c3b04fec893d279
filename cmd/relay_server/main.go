package main

import (
	"fmt"
	"log"
	"os"

	"social_realtime_client/internal/relay"
	"social_realtime_client/pkg/config"
	"social_realtime_client/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.RelayServer, config.EnvConfig.RelayServerLogPath)
	cfg := config.LoadConfig[config.Relay](config.EnvConfig.RelayServer, config.EnvConfig.RelayServerYAMLPath)

	hub := relay.NewHub()
	handler := relay.NewRelayHandler(hub)

	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.RelayServerLogPath),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	relay.RegisterRoutes(r, handler)

	stop := make(chan struct{})
	defer close(stop)
	relay.StartReaper(hub, cfg.PresenceTTL, stop)

	port := ":" + cfg.Port
	log.Printf("Relay Server listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
