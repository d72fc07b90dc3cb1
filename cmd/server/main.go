// Command server runs the LAN chat server and its admin API.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/lanchat/internal/api"
	"github.com/99minutos/lanchat/internal/core/ports"
	"github.com/99minutos/lanchat/internal/core/service"
	"github.com/99minutos/lanchat/internal/infrastructure/db/memory"
	mongostore "github.com/99minutos/lanchat/internal/infrastructure/db/mongo"
	mysqlstore "github.com/99minutos/lanchat/internal/infrastructure/db/mysql"
	redisstore "github.com/99minutos/lanchat/internal/infrastructure/db/redis"
	"github.com/99minutos/lanchat/internal/infrastructure/tcp"
	"github.com/99minutos/lanchat/internal/pkg/config"
	"github.com/99minutos/lanchat/pkg/logger"
)

// @title           LAN Chat Admin API
// @version         1.0
// @description     Operations and account management for the LAN chat server.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "lanchat: %v\n", err)
		os.Exit(1)
	}
}

// stores is what the selected backend provides to the services.
type stores struct {
	users    ports.UserRepository
	messages ports.MessageRepository
	checkers []ports.HealthChecker
	closers  []func(context.Context) error
}

func (s *stores) close(ctx context.Context, log zerolog.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			log.Warn().Err(err).Msg("error closing store")
		}
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty || cfg.IsDevelopment(),
		Service: "lanchat",
	})
	mainLog := logger.Component("main")

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close(context.Background(), logger.Component("store"))

	store := service.NewCredentialService(st.users, st.messages, log)
	if _, err := store.EnsureAdmin(ctx, cfg.Store.BootstrapAdminPassword); err != nil {
		return err
	}

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		if jwtSecret, err = randomSecret(); err != nil {
			return err
		}
		mainLog.Warn().Msg("JWT_SECRET not set, admin tokens will not survive a restart")
	}
	auth := service.NewAuthService(store, jwtSecret, 0)

	registry := service.NewRegistry()
	broadcaster := service.NewBroadcaster(store, registry, log)

	chat := tcp.NewServer(tcp.Config{
		Host:          cfg.ChatHost,
		Port:          cfg.ChatPort,
		HistoryLimit:  cfg.Chat.HistoryLimit,
		LoginTimeout:  cfg.Chat.LoginTimeout,
		WriteTimeout:  cfg.Chat.WriteTimeout,
		SendBuffer:    cfg.Chat.SendBuffer,
		MaxFrameBytes: cfg.Chat.MaxFrameBytes,
	}, auth, registry, broadcaster, log)
	if err := chat.Start(); err != nil {
		return err
	}

	var httpErr chan error
	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		e := api.NewRouter(api.Dependencies{
			Auth:           auth,
			Store:          store,
			Sessions:       chat,
			HealthCheckers: append([]ports.HealthChecker{chat}, st.checkers...),
			JWTSecret:      jwtSecret,
		}, log)

		httpSrv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           e,
			ReadHeaderTimeout: 5 * time.Second,
		}
		httpErr = make(chan error, 1)
		go func() {
			mainLog.Info().Str("addr", cfg.HTTPAddr).Msg("admin api listening")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		mainLog.Info().Msg("shutdown signal received")
	case err := <-httpErr:
		mainLog.Error().Err(err).Msg("admin api failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Chat.ShutdownTimeout)
	defer cancel()

	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			mainLog.Warn().Err(err).Msg("admin api shutdown")
		}
	}
	return chat.Stop(shutdownCtx)
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	storeLog := logger.Component("store")
	st := &stores{}

	switch cfg.Store.Driver {
	case config.StoreMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, client.Disconnect)

		users := mongostore.NewUserRepository(db)
		if err := users.EnsureIndexes(ctx); err != nil {
			st.close(ctx, storeLog)
			return nil, err
		}
		st.users = users
		st.messages = mongostore.NewMessageRepository(db)
		st.checkers = append(st.checkers, mongostore.NewHealthChecker(client))

	case config.StoreMySQL:
		db, err := mysqlstore.Connect(ctx, mysqlstore.Config{DSN: cfg.MySQL.DSN})
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func(context.Context) error { return db.Close() })
		st.users = mysqlstore.NewUserRepository(db)
		st.messages = mysqlstore.NewMessageRepository(db)
		st.checkers = append(st.checkers, mysqlstore.NewHealthChecker(db))

	default:
		storeLog.Warn().Msg("using in-memory store, accounts and history are lost on exit")
		st.users = memory.NewUserRepository()
		st.messages = memory.NewMessageRepository()
	}

	if cfg.Redis.Addr != "" {
		client, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			st.close(ctx, storeLog)
			return nil, err
		}
		st.closers = append(st.closers, func(context.Context) error { return client.Close() })

		cache := redisstore.NewHistoryCache(client, st.messages, cfg.Redis.CacheSize, log)
		if err := cache.Warm(ctx); err != nil {
			storeLog.Warn().Err(err).Msg("history cache warm-up failed")
		}
		st.messages = cache
		st.checkers = append(st.checkers, redisstore.NewHealthChecker(client))
	}

	storeLog.Info().Str("driver", cfg.Store.Driver).Bool("history_cache", cfg.Redis.Addr != "").Msg("store ready")
	return st, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
