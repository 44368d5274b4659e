package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"library/docs" // swagger docs
	"library/internal/auth"
	"library/internal/cache"
	"library/internal/config"
	"library/internal/db"
	"library/internal/handler"
	"library/internal/model"
	"library/internal/repository"
	"library/internal/repository/memory"
	"library/internal/router"
	"library/internal/service"
)

// @title Library Management API
// @version 1.0
// @description Library API for books, users and loans with role-based JWT authentication.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file, using process environment")
	}
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration", err)
	}

	store, health, err := openStore(cfg)
	if err != nil {
		fatal("store init", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(context.Background()); err != nil {
		slog.Warn("redis unreachable, refresh tokens will not persist", "addr", cfg.RedisAddr, "error", err)
	}

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	opts := []service.Option{service.WithLogger(logger)}
	bookService := service.NewBookService(store, opts...)
	userService := service.NewUserService(store, opts...)
	loanService := service.NewLoanService(store, opts...)
	authService := service.NewAuthService(store.Users(), jwtService, tokenStore, opts...)

	bootstrapLibrarian(cfg, userService)

	e := echo.New()
	e.HideBanner = true

	router.Register(e, jwtService, tokenStore, router.Handlers{
		Auth:  handler.NewAuthHandler(authService),
		Books: handler.NewBookHandler(bookService),
		Loans: handler.NewLoanHandler(loanService),
		Users: handler.NewUserHandler(userService),
	}, health)

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}
	slog.Info("swagger documentation available", "url", swaggerURL(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := ":" + cfg.ServerPort
		slog.Info("server starting", "addr", addr, "store", cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server start", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
}

func openStore(cfg *config.Config) (repository.Store, router.HealthCheck, error) {
	if cfg.StoreDriver == config.DriverMemory {
		slog.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil, nil
	}

	gormDB, err := db.Open(cfg.StoreDriver, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	if cfg.ResetDB {
		slog.Warn("RESET_DB=true detected, dropping all tables")
		if err := repository.DropTables(gormDB); err != nil {
			slog.Warn("failed to drop tables", "error", err)
		}
	}
	if err := repository.AutoMigrate(gormDB); err != nil {
		return nil, nil, err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, err
	}
	return repository.NewStore(gormDB), sqlDB.PingContext, nil
}

func bootstrapLibrarian(cfg *config.Config, users service.UserService) {
	ctx := context.Background()
	if cfg.AdminPassword == "" {
		librarian := model.RoleLibrarian
		existing, err := users.ListUsers(ctx, &librarian)
		if err == nil && len(existing) == 0 {
			slog.Warn("no librarian account exists; set ADMIN_PASSWORD to create one")
		}
		return
	}

	user, created, err := users.EnsureLibrarian(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		fatal("bootstrap librarian", err)
	}
	if created {
		slog.Info("librarian account created", "username", user.Username)
	}
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
