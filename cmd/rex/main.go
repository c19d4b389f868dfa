package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/xaenox/rex/internal/api"
	"github.com/xaenox/rex/internal/auth"
	"github.com/xaenox/rex/internal/bot"
	"github.com/xaenox/rex/internal/chat"
	"github.com/xaenox/rex/internal/conversation"
	"github.com/xaenox/rex/internal/generation"
	"github.com/xaenox/rex/internal/guidelines"
	"github.com/xaenox/rex/internal/metrics"
	"github.com/xaenox/rex/internal/prompt"
	"github.com/xaenox/rex/internal/storage"
	"github.com/xaenox/rex/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func newStorage(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (storage.Storage, error) {
	if cfg.UseInMemory {
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	}

	logger.Info("Using PostgreSQL storage", zap.String("host", cfg.Host), zap.String("dbname", cfg.DBName))
	return storage.NewPostgresStorage(ctx, storage.DatabaseConfig{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		DBName:          cfg.DBName,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
}

func newGenerator(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) generation.Generator {
	policy := generation.RetryPolicy{
		MaxRetries:     cfg.Generation.MaxRetries,
		Delay:          cfg.Generation.RetryDelay,
		AttemptTimeout: cfg.Generation.AttemptTimeout,
	}

	if cfg.Generation.Provider == "openai" {
		logger.Info("Using OpenAI generation", zap.String("model", cfg.OpenAI.Model))
		return generation.NewOpenAI(generation.OpenAIConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
		}, policy, m, logger)
	}

	g := cfg.Generation.Gemini
	logger.Info("Using Gemini generation", zap.String("model", g.Model))
	return generation.NewGemini(generation.GeminiConfig{
		APIKey:          g.APIKey,
		BaseURL:         g.BaseURL,
		Model:           g.Model,
		Temperature:     g.Temperature,
		TopP:            g.TopP,
		TopK:            g.TopK,
		MaxOutputTokens: g.MaxOutputTokens,
	}, policy, m, logger)
}

func newRevoker(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (auth.Revoker, func()) {
	if cfg.Addr == "" {
		return auth.NewMemoryRevoker(), func() {}
	}

	client, err := auth.NewRedisClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	logger.Info("Using Redis token revocation", zap.String("addr", cfg.Addr))
	return auth.NewRedisRevoker(client), func() { client.Close() }
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err), zap.String("path", *configPath))
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		zap.NewExample().Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	store, err := newStorage(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	guides := guidelines.NewAdapter(store, m, logger)
	if err := guides.Seed(ctx); err != nil {
		logger.Error("Failed to seed guidelines", zap.Error(err))
	}

	convs := conversation.NewAdapter(store, storage.MatchMode(cfg.History.MatchMode), m, logger)
	persona := prompt.Persona{Name: cfg.Persona.Name, Owner: cfg.Persona.Owner}
	chatService := chat.NewService(
		chat.Config{AssistantName: cfg.Persona.Name, HistoryLimit: cfg.History.Limit},
		convs,
		guides,
		store,
		prompt.NewBuilder(persona),
		newGenerator(cfg, m, logger),
		m,
		logger,
	)

	revoker, closeRevoker := newRevoker(ctx, cfg.Redis, logger)
	defer closeRevoker()

	authenticator, err := auth.NewAuthenticator(auth.Config{
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
		Secret:   cfg.Auth.SessionSecret,
		TTL:      cfg.Auth.TokenTTL,
	}, revoker, logger)
	if err != nil {
		logger.Fatal("Failed to initialize auth", zap.Error(err))
	}

	server := api.NewServer(api.Deps{
		Chat:          chatService,
		Guidelines:    guides,
		Conversations: convs,
		Reflections:   store,
		Auth:          authenticator,
		Gatherer:      reg,
		Metrics:       m,
		Logger:        logger,
		SecureCookie:  cfg.Server.SecureCookie,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if cfg.Telegram.Token != "" {
		b, err := bot.New(cfg.Telegram.Token, chatService, convs, logger)
		if err != nil {
			logger.Fatal("Failed to create bot", zap.Error(err))
		}
		go func() {
			if err := b.Start(ctx); err != nil {
				logger.Error("Bot error", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
}
