package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pomobot/backend/internal/config"
	"pomobot/backend/internal/db"
	"pomobot/backend/internal/handler"
	"pomobot/backend/internal/repository"
	"pomobot/backend/internal/router"
	"pomobot/backend/internal/service"
)

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database, cfg.MigrationsDir); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	configRepo := repository.NewConfigRepository(database)
	statsRepo := repository.NewStatsRepository(database)

	configService := service.NewConfigService(configRepo, cfg.ConfigCacheTTL)
	statsService := service.NewStatsService(statsRepo, cfg.StatsCacheTTL)
	timer := service.NewTimerService(configService, statsService)
	timer.Init(context.Background())

	pomodoroHandler := handler.NewPomodoroHandler(timer, configService, statsService)
	engine := router.New(pomodoroHandler, cfg.CORSOrigins, cfg.AdminToken)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}

	go func() {
		log.Printf("backend listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("run server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Printf("shutting down")

	// Flush an in-flight session as abandoned before the process exits.
	timer.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Printf("server stopped")
}
