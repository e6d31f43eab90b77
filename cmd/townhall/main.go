// Command townhall runs the turn-based town political simulation server.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/talgya/townhall/internal/api"
	"github.com/talgya/townhall/internal/demographics"
	"github.com/talgya/townhall/internal/engine"
	"github.com/talgya/townhall/internal/llm"
	"github.com/talgya/townhall/internal/persistence"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Town Hall — turn-based political simulation")

	dbPath := envString("TOWNHALL_DB_PATH", "data/townhall.db")
	port := envInt("TOWNHALL_PORT", 3001)
	seed := int64(envInt("TOWNHALL_SEED", 42))

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(dbPath), 0755)
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── LLM Client ───────────────────────────────────────────────────
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	llmTimeout := time.Duration(envInt("LLM_TIMEOUT", 30000)) * time.Millisecond
	client := llm.NewClient(apiKey,
		llm.WithModel(os.Getenv("LLM_MODEL")),
		llm.WithTimeout(llmTimeout),
	)
	if client.Enabled() {
		slog.Info("LLM client enabled")
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set — demographic reactions will use the neutral fallback")
	}

	// ── Engine ───────────────────────────────────────────────────────
	eng := engine.New(llm.NewEvaluator(client, llmTimeout))
	eng.Events = engine.NewEventDeck(seed)

	// ── HTTP API ─────────────────────────────────────────────────────
	server := &api.Server{
		DB:         db,
		Engine:     eng,
		Registry:   demographics.Default(),
		LLM:        client,
		Port:       port,
		RateMax:    envInt("RATE_LIMIT_MAX_REQUESTS", 100),
		RateWindow: time.Duration(envInt("RATE_LIMIT_WINDOW_MS", 900000)) * time.Millisecond,
	}
	server.Start()

	slog.Info("town hall open for business", "port", port, "demographics", len(demographics.Default().IDs()))

	// ── Shutdown ─────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
