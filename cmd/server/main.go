package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cellarena/internal/arena"
	"cellarena/internal/config"
	"cellarena/internal/session"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("no .env file found, using environment variables only")
		}
	} else {
		log.Println("loaded environment from ../.env")
	}

	log.Println("================================")
	log.Println(" CELLARENA - GO SIMULATION ENGINE")
	log.Println("================================")

	appConfig := config.Load()
	worldCfg := appConfig.World

	log.Printf("world: %dx%.0f, %d pellets, %d viruses, %d bots", int(worldCfg.Width), worldCfg.Height, worldCfg.Pellets, worldCfg.Viruses, worldCfg.Bots)

	world := arena.NewWorld(worldCfg.Width, worldCfg.Height, arena.PopulationTargets{
		Pellets: worldCfg.Pellets,
		Viruses: worldCfg.Viruses,
		Bots:    worldCfg.Bots,
	})

	if appConfig.Observability.Enabled {
		if err := session.StartDebugServer(session.ObservabilityConfig{
			Enabled:    true,
			ListenAddr: appConfig.Observability.ListenAddr,
		}); err != nil {
			log.Printf("debug server disabled: %v", err)
		}
	}

	srv := session.NewServer(world, appConfig.Server.CORSOrigins)
	world.SetTickObserver(session.RecordTick)
	if path := os.Getenv("EVENT_LOG_PATH"); path != "" {
		world.SetEventLogPath(path)
	}

	world.Start()
	log.Println("world started")

	go reportPopulationMetrics(world)

	go func() {
		log.Printf("session server listening on %s", appConfig.Server.Addr)
		if err := srv.Start(appConfig.Server.Addr); err != nil {
			log.Fatalf("session server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("ready, press Ctrl+C to stop")
	<-quit

	log.Println("shutting down...")
	srv.Stop(context.Background())
	world.Stop()
	log.Println("goodbye")
}

// reportPopulationMetrics polls World's read-only counters into Prometheus
// gauges; it never touches World's tick pipeline.
func reportPopulationMetrics(world *arena.World) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		counts := world.PopulationCounts()
		session.UpdatePopulationCounts(counts)
		session.UpdatePlayerCount(counts["players"])
		session.UpdateEventLogStats(world.EventLogStats())
	}
}
