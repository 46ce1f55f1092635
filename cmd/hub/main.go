// Command hub runs the realtime event channel server: a websocket endpoint
// with credential gating, subscription-scoped broadcast fan-out and an
// optional Redis relay for multi-node deployments.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Gahroot/AgentHQ-sub000/internal/auth"
	"github.com/Gahroot/AgentHQ-sub000/internal/config"
	"github.com/Gahroot/AgentHQ-sub000/internal/hub"
	"github.com/Gahroot/AgentHQ-sub000/pkg/json"
	"github.com/Gahroot/AgentHQ-sub000/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	log := logger.New(logger.Config{
		Environment: cfg.AppEnv,
		LogLevel:    cfg.LogLevel,
		ServiceName: cfg.AppName,
	})
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("hub exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DBDSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	var relay *hub.Relay
	if addr := cfg.RedisAddr(); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		relay = hub.NewRelay(rdb, log)
		log.Info("cross-node relay enabled", zap.String("redis", addr))
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	apiKeys := auth.NewAPIKeyStore(db, log)

	gate := hub.NewAuthGate(
		func(ctx context.Context, token string) (*hub.AgentCredential, error) {
			identity, err := apiKeys.Validate(ctx, token)
			if err != nil {
				return nil, err
			}
			if identity == nil {
				return nil, nil
			}
			return &hub.AgentCredential{AgentID: identity.AgentID, OrgID: identity.OrgID}, nil
		},
		func(token string) (*hub.SessionCredential, error) {
			claims, err := tokens.Verify(token)
			if err != nil {
				return nil, err
			}
			return &hub.SessionCredential{
				SubjectID:  claims.Subject,
				OrgID:      claims.OrgID,
				Role:       claims.Role,
				TokenClass: claims.TokenType,
			}, nil
		},
		log,
	)

	server := hub.NewServer(gate, relay, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(server.Stats()); err != nil {
			log.Warn("write health response", zap.Error(err))
		}
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("hub listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := server.RunRelay(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
