package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/genai"

	"github.com/plotpilot/server/internal/assistant/connection"
	"github.com/plotpilot/server/internal/assistant/contextbuilder"
	"github.com/plotpilot/server/internal/assistant/model"
	"github.com/plotpilot/server/internal/assistant/orchestrator"
	"github.com/plotpilot/server/internal/assistant/pending"
	"github.com/plotpilot/server/internal/assistant/repo"
	"github.com/plotpilot/server/internal/assistant/tools"
	"github.com/plotpilot/server/internal/assistant/websearch"
	"github.com/plotpilot/server/internal/core"
	"github.com/plotpilot/server/internal/httpapi"
	logx "github.com/plotpilot/server/pkg/logger"
	pkgredis "github.com/plotpilot/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the service, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`

	// Infrastructure
	Redis pkgredis.Config

	// Credential encryption key for stored device hub passwords (hex, 32 bytes).
	CredentialKey string `envconfig:"CREDENTIAL_KEY" required:"true"`

	// LLM provider. An empty key starts the server without a model; chat turns
	// then answer with a configuration notice instead of failing.
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Assistant model.AssistantModelConfig
	Search    model.SearchModelConfig
	Chat      model.ChatConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise redis client")
	}
	defer rdb.Close()

	cipher, err := connection.NewCredentialCipher(cfg.CredentialKey)
	if err != nil {
		logx.Fatal().Err(err).Msg("invalid CREDENTIAL_KEY")
	}

	pendingTTL, err := time.ParseDuration(cfg.Chat.PendingActionTTL)
	if err != nil {
		logx.Fatal().Err(err).Str("value", cfg.Chat.PendingActionTTL).Msg("invalid CHAT_PENDING_ACTION_TTL")
	}
	historyTTL, err := time.ParseDuration(cfg.Chat.HistoryTTL)
	if err != nil {
		logx.Fatal().Err(err).Str("value", cfg.Chat.HistoryTTL).Msg("invalid CHAT_HISTORY_TTL")
	}

	blocks := repo.NewRedisBlockRepository(rdb)
	conversations := repo.NewRedisConversationRepository(rdb, historyTTL, cfg.Chat.HistoryMaxMessages)
	hubs := connection.NewManager(blocks, cipher)

	var (
		chatModel einomodel.ToolCallingChatModel
		searcher  *websearch.Service
	)
	if cfg.APIKey != "" {
		client, cm, err := buildChatModel(ctx, cfg)
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to build chat model")
		}
		chatModel = cm
		searcher = websearch.New(client, cfg.Search)
	} else {
		logx.Warn().Msg("GEMINI_API_KEY not set, assistant runs without a model provider")
	}

	executor := tools.NewExecutor(hubs, searcher)
	store := pending.NewStore(rdb, pendingTTL)
	audit := orchestrator.NewRedisAuditLog(rdb)
	builder := contextbuilder.NewBuilder(blocks)
	orch := orchestrator.New(chatModel, builder, executor, store, audit, cfg.Chat)

	handlers := httpapi.NewHandlers(orch, hubs, conversations)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.NewRouter(handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logx.Info().Str("addr", cfg.ListenAddr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("shutdown incomplete")
	}
	logx.Info().Msg("server stopped")
}

// buildChatModel constructs the genai client and the tool-bound Gemini chat model.
func buildChatModel(ctx context.Context, cfg AppConfig) (*genai.Client, einomodel.ToolCallingChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create genai client: %w", err)
	}

	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Assistant.Model,
		Temperature: &cfg.Assistant.Temperature,
		MaxTokens:   &cfg.Assistant.MaxTokens,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create assistant model: %w", err)
	}

	bound, err := cm.WithTools(tools.Declarations())
	if err != nil {
		return nil, nil, fmt.Errorf("bind tools: %w", err)
	}
	return client, bound, nil
}
