// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"tictactoe-service/internal/auth"
	"tictactoe-service/internal/cache"
	"tictactoe-service/internal/database"
	"tictactoe-service/internal/game"
	"tictactoe-service/internal/handlers"
	"tictactoe-service/internal/matchmaking"
	"tictactoe-service/internal/middleware"
	"tictactoe-service/internal/room"
	"tictactoe-service/internal/tasks"
	"tictactoe-service/internal/ws"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := database.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("schema: %v", err)
	}

	store, err := cache.ConnectRedis()
	if err != nil {
		log.Fatalf("redis: %v", err)
	}

	broker := ws.NewBroker(logger)
	userRepo := database.UserRepo{}
	roomRepo := database.RoomRepo{}
	gameRepo := database.GameRepo{}

	registry := room.NewRegistry(roomRepo, logger)
	manager := game.NewManager(store, gameRepo, roomRepo, userRepo, broker, logger)
	queue := matchmaking.NewQueue(store, matchmaking.DefaultMode)
	engine := matchmaking.NewEngine(store, userRepo, registry, broker,
		envInt("MATCH_SKILL_RANGE", 200), logger)

	srv := handlers.NewServer(store, broker, registry, manager, queue, userRepo, logger)
	handler := middleware.LogMiddleware(logger)(srv.Routes())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go tasks.RunMatchmaking(ctx, engine, matchmaking.DefaultMode,
		envDuration("MATCH_INTERVAL", 5*time.Second), logger)
	go tasks.RunRoomSweep(ctx, registry,
		envDuration("ROOM_SWEEP_INTERVAL", 2*time.Hour),
		envDuration("ROOM_MAX_UNSTARTED_AGE", 12*time.Hour), logger)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	httpServer := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	logger.Infof("Running on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server exited: %v", err)
	}
}

func envInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
