package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/chathub/internal/config"
	"github.com/zhouzirui/chathub/internal/handler"
	"github.com/zhouzirui/chathub/internal/hub"
	"github.com/zhouzirui/chathub/internal/logging"
	"github.com/zhouzirui/chathub/internal/service/ai"
	"github.com/zhouzirui/chathub/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, continuing with process environment", zap.Error(envErr))
	}

	if err := run(ctx, cfg, logger, store.Open); err != nil {
		logger.Error("chathub stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

type storeOpener func(config.StoreConfig) (store.Store, error)

// run brings the store up, then serves until ctx is cancelled. The HTTP
// listener is never opened if the store cannot be initialized.
func run(ctx context.Context, cfg *config.Config, log *zap.Logger, open storeOpener) error {
	st, err := open(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("failed to close message store", zap.Error(err))
		}
	}()

	retry := store.Retry{MaxAttempts: cfg.Store.InitAttempts, BaseDelay: cfg.Store.InitDelay}
	if err := store.Initialize(ctx, st, retry, log.Named("store")); err != nil {
		return err
	}

	assistant, err := newAssistant(ctx, cfg.AI, log.Named("ai"))
	if err != nil {
		return err
	}

	h := hub.New(st, assistant, hub.Options{
		ReplyDelay:   cfg.Hub.ReplyDelay,
		WelcomeDelay: cfg.Hub.WelcomeDelay,
		OutboxSize:   hub.DefaultOptions().OutboxSize,
	}, log.Named("hub"))

	router := handler.NewRouter(handler.Deps{
		Hub:          h,
		Store:        st,
		Persona:      assistant.Persona(),
		HistoryLimit: cfg.Hub.HistoryLimit,
		Log:          log.Named("http"),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.Run(gctx)
	})
	g.Go(func() error {
		log.Info("chathub listening", zap.String("addr", srv.Addr), zap.String("store", cfg.Store.Driver))
		return runServer(gctx, srv)
	})
	return g.Wait()
}

// newAssistant builds the completion client. Missing or broken Ark settings
// leave the assistant answering with its fallback line.
func newAssistant(ctx context.Context, cfg config.AIConfig, log *zap.Logger) (*ai.Client, error) {
	var chatModel model.BaseChatModel
	if cfg.Enabled() {
		m, err := cfg.NewChatModel(ctx)
		if err != nil {
			log.Warn("failed to initialize chat model, continuing with fallback replies", zap.Error(err))
		} else {
			chatModel = m
			log.Info("chat model initialized", zap.String("model", cfg.Model))
		}
	} else {
		log.Warn("ark credentials not configured, continuing with fallback replies")
	}

	return ai.NewClient(ctx, chatModel, ai.DefaultPersona(), cfg.Timeout, log)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
