package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/yiyebaofu0518/typix/internal/adapter/repo"
	"github.com/yiyebaofu0518/typix/internal/chat"
	"github.com/yiyebaofu0518/typix/internal/domain"
	"github.com/yiyebaofu0518/typix/internal/http/handlers"
	httpapi "github.com/yiyebaofu0518/typix/internal/http/httpapi"
	"github.com/yiyebaofu0518/typix/internal/infra"
	"github.com/yiyebaofu0518/typix/internal/provider"
	"github.com/yiyebaofu0518/typix/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	var (
		chats       domain.ChatRepository
		messages    domain.MessageRepository
		generations domain.GenerationRepository
		settings    domain.ProviderSettingsRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		chats = repo.NewChatRepository(pool)
		messages = repo.NewMessageRepository(pool)
		generations = repo.NewGenerationRepository(pool)
		settings = repo.NewProviderSettingsRepository(pool)
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory repositories")
		mem := repo.NewMemory()
		chats = mem.Chats()
		messages = mem.Messages()
		generations = mem.Generations()
		settings = mem.Settings()
	}

	files, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	var builtin provider.BuiltinRunner
	if cfg.CloudflareBuiltin {
		// The built-in binding only exists on platforms that inject one;
		// plain deployments always use the REST API.
		logger.Warn().Msg("PROVIDER_CLOUDFLARE_BUILTIN set but no builtin binding is available")
	}
	registry := provider.NewRegistry(
		// The server is a trusted environment, so every provider is
		// dispatched directly.
		provider.NewDispatcher(true, nil),
		provider.NewCloudflare(provider.CloudflareOptions{Builtin: builtin}),
		provider.NewOpenAI(nil),
	)

	chatService := chat.NewService(chat.Deps{
		Chats:       chats,
		Messages:    messages,
		Generations: generations,
		Settings:    settings,
		Files:       files,
		Registry:    registry,
		Logger:      logger,
	})

	app := handlers.NewApp(logger, chatService, registry, files, settings)
	router := httpapi.NewRouter(app, cfg.AllowedOrigins)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	// Let in-flight generations reach their commit point before exit.
	if err := chatService.Drain(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("shutdown before all generations resolved")
	}
	logger.Info().Msg("server stopped")
}
