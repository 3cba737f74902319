package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abev/portfolio-contact/internal/api"
	"github.com/abev/portfolio-contact/internal/config"
	"github.com/abev/portfolio-contact/internal/counter"
	"github.com/abev/portfolio-contact/internal/mailer"
	"github.com/abev/portfolio-contact/internal/pkg/logger"
	"github.com/abev/portfolio-contact/internal/ratelimit"
	"github.com/abev/portfolio-contact/internal/turnstile"
	"github.com/abev/portfolio-contact/internal/urlcheck"
)

const reapInterval = time.Hour

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, cleanup, err := buildCounterStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize counter store: %v", err)
	}
	defer cleanup()

	limiter := ratelimit.NewCounterLimiter(store, cfg.RateLimit.PerHour, cfg.RateLimit.PerDay)

	verifier := turnstile.NewClient(
		cfg.Turnstile.Secret,
		cfg.Turnstile.Endpoint,
		time.Duration(cfg.Turnstile.TimeoutSeconds)*time.Second,
	)

	sender, err := mailer.NewSESSender(ctx, cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region)
	if err != nil {
		log.Fatalf("Failed to initialize SES sender: %v", err)
	}

	templates, err := mailer.NewTemplateService()
	if err != nil {
		log.Fatalf("Failed to parse email templates: %v", err)
	}

	filter := urlcheck.NewFilter(cfg.Contact.URLDenylist)

	handlers := api.NewHandlers(limiter, verifier, sender, templates, filter, cfg.Contact)
	server := api.NewServer(cfg.Server, handlers)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Starting server on %s (storage=%s, captcha=%t)", addr, cfg.Storage.Backend, cfg.Contact.RequireCaptcha)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// buildCounterStore constructs the configured counter backend and returns a
// cleanup func for its connections. The postgres backend also gets a
// background reaper; correctness never depends on it, it only keeps the
// table small.
func buildCounterStore(ctx context.Context, cfg config.StorageConfig) (counter.Store, func(), error) {
	switch cfg.Backend {
	case "dynamodb":
		store, err := counter.NewDynamoStore(ctx, cfg.DynamoDBTable, cfg.AWSRegion, cfg.AWSProfile)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	case "redis":
		store, err := counter.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case "postgres":
		store, err := counter.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		go runReaper(ctx, store)
		return store, func() { store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func runReaper(ctx context.Context, store *counter.PostgresStore) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.ReapExpired(ctx)
			if err != nil {
				logger.Warn("counter reaper failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Debug("expired counters reaped", "removed", removed)
			}
		}
	}
}
