package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fastprodman/wagerledger/internal/api"
	"github.com/fastprodman/wagerledger/internal/cache"
	"github.com/fastprodman/wagerledger/internal/events"
	"github.com/fastprodman/wagerledger/internal/infra/logging"
	"github.com/fastprodman/wagerledger/internal/infra/pgutils"
	"github.com/fastprodman/wagerledger/internal/scheduler"
	"github.com/fastprodman/wagerledger/internal/services/accounts"
	"github.com/fastprodman/wagerledger/internal/services/bets"
	"github.com/fastprodman/wagerledger/internal/store/postgres"
	"github.com/fastprodman/wagerledger/pkg/envconf"
	"github.com/fastprodman/wagerledger/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	_ = godotenv.Load()

	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.AddNamed("postgres", func(context.Context) error {
		return db.Close()
	})

	st := postgres.New(db)
	opts := []accounts.Option{}

	if cfg.Redis.URL != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}

		shutdownqueue.AddNamed("redis", func(context.Context) error {
			return rdb.Close()
		})

		opts = append(opts, accounts.WithCache(cache.NewRedis(rdb, cfg.Redis.TTL)))

		slog.Info("balance cache enabled")
	}

	hub := events.NewHub()
	shutdownqueue.AddNamed("websocket hub", hub.Close)

	publishers := events.Multi{hub}

	if cfg.Kafka.Brokers != "" {
		k := events.NewKafka(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		shutdownqueue.AddNamed("kafka", func(context.Context) error {
			return k.Close()
		})

		publishers = append(publishers, k)

		slog.Info("kafka publisher enabled", "topic", cfg.Kafka.Topic)
	}

	opts = append(opts, accounts.WithPublisher(publishers))

	accountSrv := accounts.New(st, opts...)
	engine := bets.New(st, accountSrv)

	// Bets tombstoned before a crash still hold their IDs.
	purged, err := engine.PurgeTombstoned(ctx)
	if err != nil {
		return fmt.Errorf("purge tombstoned bets: %w", err)
	}

	slog.Info("startup purge finished", "bets", purged)

	if cfg.Income.Schedule != "" {
		sched := scheduler.New(ctx)

		err = sched.AddIncome(cfg.Income.Schedule, accountSrv, cfg.Income.Amount)
		if err != nil {
			return fmt.Errorf("schedule income: %w", err)
		}

		sched.Start()
		shutdownqueue.AddNamed("scheduler", sched.Stop)
	}

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, api.NewRouter(api.Deps{
		Accounts: accountSrv,
		Bets:     engine,
		Health:   st.Ping,
		Live:     hub,
	}))

	shutdownqueue.AddNamed("http server", func(c context.Context) error {
		slog.Info("Shut down server")

		return srv.Shutdown(c)
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port)

	select {
	case <-ctx.Done():
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
