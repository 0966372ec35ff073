package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/crypto/bcrypt"

	"github.com/acbops/tracker"
	"github.com/acbops/tracker/internal/config"
	"github.com/acbops/tracker/internal/domain"
	"github.com/acbops/tracker/internal/infra/database"
	"github.com/acbops/tracker/internal/infra/repository"
	"github.com/acbops/tracker/internal/present/rest"
	"github.com/acbops/tracker/internal/present/rest/middleware"
	"github.com/acbops/tracker/internal/service"
	"github.com/acbops/tracker/internal/usecase"
)

func main() {
	configPath := flag.String("c", "config.yaml", "path to config file")
	seed := flag.Bool("seed", false, "seed the reference accounts and exit")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := database.MigratePostgres(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	catalog := tracker.NewCatalog()
	authz := tracker.NewAuthorizer(catalog)

	userRepo := repository.NewUserRepository(db)

	if *seed {
		if err := seedUsers(context.Background(), userRepo); err != nil {
			slog.Error("failed to seed users", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("seeded reference accounts")
		return
	}

	if conf.Server.EnableTrace {
		shutdown, err := setupTracer(conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	var tokens service.TokenStore = service.NewMemoryTokenStore()
	if conf.Server.RedisAddr != "" {
		rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
		tokens = repository.NewRedisTokenStore(rdb)
	}

	var shipmentRepo *repository.ShipmentRepository
	if conf.Server.MemcachedAddr != "" {
		shipmentRepo = repository.NewShipmentRepository(db, catalog, database.NewMemcached(conf.Server.MemcachedAddr))
	} else {
		shipmentRepo = repository.NewShipmentRepository(db, catalog, nil)
	}

	shipments := usecase.NewShipmentUsecase(shipmentRepo, userRepo, authz)
	auth := service.NewAuthService(userRepo, tokens, conf.Auth.JWTSecret, conf.Auth.TokenTTL)

	presence := service.NewPresenceService(conf.Presence.Expiry, conf.Presence.SweepInterval)
	presence.Start()
	defer presence.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("trackerd"))
	}

	handler := rest.NewHandler(authz, shipments, presence, auth, conf.Presence.Heartbeat)
	handler.RegisterRoutes(e, middleware.NewAuthMiddleware(auth))

	go func() {
		if err := e.Start(conf.Server.Addr); err != nil {
			slog.Info("server stopped", slog.String("reason", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", slog.String("error", err.Error()))
	}
}

func setupTracer(endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("trackerd"),
		)),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// seedUsers upserts the reference accounts. Passwords come from the
// environment so deployments never ship the defaults.
func seedUsers(ctx context.Context, users *repository.UserRepository) error {
	accounts := []struct {
		username    string
		displayName string
		role        tracker.Role
		passwordEnv string
		fallback    string
	}{
		{"admin", "Admin", tracker.RoleAdmin, "SEED_ADMIN_PASSWORD", "admin123"},
		{"tl", "Team Lead", tracker.RoleTL, "SEED_TL_PASSWORD", "tl123"},
		{"analyst", "Analyst", tracker.RoleAnalyst, "SEED_ANALYST_PASSWORD", "analyst123"},
		{"billing", "Billing", tracker.RoleBilling, "SEED_BILLING_PASSWORD", "billing123"},
	}

	for _, account := range accounts {
		password := os.Getenv(account.passwordEnv)
		if password == "" {
			password = account.fallback
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		err = users.Upsert(ctx, domain.User{
			Username:     account.username,
			PasswordHash: string(hash),
			DisplayName:  account.displayName,
			Role:         account.role,
			IsActive:     true,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
