// Command presence is the SkyOffice presence and room orchestrator process:
// it bootstraps the Room Directory from the Registry, serves the Admin API
// Facade and the realtime WebSocket transport off a single gin engine, and
// keeps the directory reconciled against the Registry in the background.
// Grounded on the teacher's cmd/v1/session/main.go wiring shape (gin engine,
// CORS, graceful shutdown via SIGINT/SIGTERM).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AGIoffice/SkyOffice/internal/v1/admin"
	"github.com/AGIoffice/SkyOffice/internal/v1/config"
	"github.com/AGIoffice/SkyOffice/internal/v1/directory"
	"github.com/AGIoffice/SkyOffice/internal/v1/logging"
	"github.com/AGIoffice/SkyOffice/internal/v1/reconciler"
	"github.com/AGIoffice/SkyOffice/internal/v1/registry"
	"github.com/AGIoffice/SkyOffice/internal/v1/room"
	"github.com/AGIoffice/SkyOffice/internal/v1/secretstore"
	"github.com/AGIoffice/SkyOffice/internal/v1/store"
	"github.com/AGIoffice/SkyOffice/internal/v1/tracing"
	"github.com/AGIoffice/SkyOffice/internal/v1/transport"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const serviceName = "skyoffice-presence"

func main() {
	ctx := context.Background()

	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.ValidateEnv()
	if err != nil {
		// logging isn't initialized yet; this is the one place stdlib-only
		// output is acceptable, since config failure happens before the
		// logger exists.
		println("presence: " + err.Error())
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		println("presence: failed to initialize logger: " + err.Error())
		os.Exit(1)
	}

	var tracerProvider *sdktrace.TracerProvider
	if cfg.OtelCollectorAddr != "" {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.OtelCollectorAddr)
		if err != nil {
			logging.Warn(ctx, "presence: failed to initialize tracing, continuing untraced", zap.Error(err))
		} else {
			tracerProvider = tp
		}
	}

	registryClient := registry.New(cfg.RegistryServiceURL, cfg.RegistryServiceToken)

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	var secretStore secretstore.SecretStore
	if cfg.AWSRegion != "" {
		awsStore, err := secretstore.NewAWSSecretsManagerStore(ctx, cfg.AWSRegion)
		if err != nil {
			logging.Warn(ctx, "presence: failed to initialize AWS secrets manager, falling back to static env only", zap.Error(err))
		} else {
			secretStore = awsStore
		}
	}
	secretResolver := secretstore.NewResolver(registryClient, secretStore).WithRedis(redisClient)

	persistPath := cfg.DataDir + "/rooms.db"
	persistStore, err := store.Open(ctx, persistPath)
	if err != nil {
		logging.Error(ctx, "presence: failed to open persistence store", zap.Error(err))
		os.Exit(1)
	}
	defer persistStore.Close()

	roomStoreAdapter := &room.StoreAdapter{Store: persistStore}
	dirStoreAdapter := &directory.StoreAdapter{Store: persistStore}

	dir := directory.New(directory.Config{
		OfficeBaseDomain: cfg.OfficeBaseDomain,
		Store:            dirStoreAdapter,
	})

	recon := reconciler.New(reconciler.Config{
		Registry:            registryClient,
		Directory:           dir,
		RoomStore:           roomStoreAdapter,
		BootstrapStore:      persistStore,
		OfficeBaseDomain:    cfg.OfficeBaseDomain,
		DefaultAgentVoiceID: cfg.DefaultAgentVoiceID,
		SyncInterval:        time.Duration(cfg.RegistrySyncInterval) * time.Millisecond,
	})

	recon.Bootstrap(ctx)

	reconcilerCtx, cancelReconciler := context.WithCancel(ctx)
	go recon.Run(reconcilerCtx)

	rateLimiter, err := admin.NewRateLimiter(cfg.AdminRateLimitGlobal, cfg.AdminRateLimitRooms, cfg.AdminRateLimitNpcs, redisClient)
	if err != nil {
		logging.Error(ctx, "presence: failed to build rate limiter", zap.Error(err))
		os.Exit(1)
	}

	allowedOrigins := parseAllowedOrigins(cfg.AllowedOrigins)

	grid := loadWalkableGrid(ctx, cfg.DataDir)

	router := admin.Router(admin.Deps{
		Directory:     dir,
		Registry:      registryClient,
		Grid:          grid,
		ChatBridgeURL: cfg.ChatBridgeURL,
		StartedAt:     time.Now(),
	}, rateLimiter, allowedOrigins)

	hub := transport.NewHub(dir, secretResolver, allowedOrigins)
	router.GET("/ws/:namespaceSlug", hub.ServeWs)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "presence: server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "presence: server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "presence: shutting down")

	cancelReconciler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "presence: server forced to shutdown", zap.Error(err))
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logging.Warn(ctx, "presence: tracer provider shutdown failed", zap.Error(err))
		}
	}

	logging.Info(ctx, "presence: exited")
}

func parseAllowedOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
