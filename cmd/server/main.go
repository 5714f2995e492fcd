package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/anthropics/anthropic-sdk-go/option"
    "github.com/gin-gonic/gin"
    "github.com/joho/godotenv"
    "github.com/ternarybob/arbor"

    "github.com/zaqqye/uiflow_backend/internal/apperr"
    "github.com/zaqqye/uiflow_backend/internal/config"
    "github.com/zaqqye/uiflow_backend/internal/database"
    "github.com/zaqqye/uiflow_backend/internal/export"
    "github.com/zaqqye/uiflow_backend/internal/generation"
    "github.com/zaqqye/uiflow_backend/internal/llm"
    "github.com/zaqqye/uiflow_backend/internal/localcache"
    "github.com/zaqqye/uiflow_backend/internal/logging"
    "github.com/zaqqye/uiflow_backend/internal/persistence"
    "github.com/zaqqye/uiflow_backend/internal/routes"
    "github.com/zaqqye/uiflow_backend/internal/ws"
)

func main() {
    // Load .env (non-fatal if missing in production)
    _ = godotenv.Load()

    cfg := config.Load()
    logger := logging.New(cfg.LogLevel)

    db, err := database.Connect(cfg)
    if err != nil {
        logger.Fatal().Err(err).Msg("database connection failed")
    }
    if err := database.Migrate(db); err != nil {
        logger.Fatal().Err(err).Msg("database migration failed")
    }

    local, err := localcache.Open(localcache.Options{
        Path:     cfg.LocalCachePath,
        InMemory: cfg.CacheInMemory(),
    }, logger)
    if err != nil {
        logger.Fatal().Err(err).Str("path", cfg.LocalCachePath).Msg("local cache open failed")
    }
    defer local.Close()

    generator := generation.NewGenerator(newCompleter(cfg, logger), logger, generation.Options{
        Timeout:     cfg.GenerationTimeout(),
        MaxTokens:   cfg.MaxTokens(),
        Temperature: cfg.Temperature(),
    })
    repo := persistence.NewRepository(persistence.NewGormStore(db), local, logger)

    board := export.NewClient(cfg.BoardAPIKey, export.WithBaseURL(cfg.BoardAPIURL), export.WithLogger(logger))
    exporter := export.NewExporter(board, export.Options{
        CardDelay:   cfg.CardDelay(),
        MaxRetries:  cfg.MaxRetries(),
        BackoffBase: cfg.BackoffBase(),
        BoardWebURL: cfg.BoardWebURL,
    }, logger)

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    hub := ws.NewDocumentHub(logger)
    go hub.Run(ctx)

    r := gin.Default()
    routes.Register(r, cfg, routes.Services{
        Generator: generator,
        Repo:      repo,
        Exporter:  exporter,
        Hub:       hub,
        Logger:    logger,
    })

    port := cfg.Port
    if port == "" {
        port = "8080"
    }
    srv := &http.Server{Addr: ":" + port, Handler: r}

    go func() {
        logger.Info().Str("addr", srv.Addr).Msg("server listening")
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            logger.Fatal().Err(err).Msg("server exited with error")
        }
    }()

    <-ctx.Done()
    logger.Info().Msg("shutting down server")

    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := srv.Shutdown(shutdownCtx); err != nil {
        logger.Error().Err(err).Msg("server shutdown failed")
    }
}

// newCompleter returns the Anthropic-backed completer, or one that always
// fails with a transport error when no key is configured so generation
// serves basic screens.
func newCompleter(cfg *config.Config, logger arbor.ILogger) llm.Completer {
    var opts []option.RequestOption
    if cfg.LLMBaseURL != "" {
        opts = append(opts, option.WithBaseURL(cfg.LLMBaseURL))
    }
    completer, err := llm.NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.LLMModel, logger, opts...)
    if err == nil {
        return completer
    }
    logger.Warn().Err(err).Msg("completion service disabled, generation will use basic screens")
    return llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
        return "", apperr.Transport("complete", err)
    })
}
