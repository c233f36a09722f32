package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dense-analysis/stockwarp/internal/config"
	"github.com/dense-analysis/stockwarp/internal/database"
	"github.com/dense-analysis/stockwarp/internal/env"
	"github.com/dense-analysis/stockwarp/internal/ledger"
	"github.com/dense-analysis/stockwarp/internal/logging"
	"github.com/dense-analysis/stockwarp/internal/quote"
	"github.com/dense-analysis/stockwarp/internal/route"
	"github.com/dense-analysis/stockwarp/internal/route/util"
	"github.com/dense-analysis/stockwarp/internal/session"
	"github.com/dense-analysis/stockwarp/internal/template"
	"github.com/dense-analysis/stockwarp/pkg/lax"
	"github.com/sirupsen/logrus"
)

// openStore connects to the configured ledger storage.
//
// The returned function closes the store.
func openStore(ctx context.Context, cfg config.Config) (ledger.Store, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logrus.Warn("using memory storage, all data will be lost on exit")

		return ledger.NewMemoryStore(), func() {}, nil
	}

	conn, err := database.Connect(ctx, cfg.Database.URL())

	if err != nil {
		return nil, nil, err
	}

	return ledger.NewPostgresStore(conn), conn.Close, nil
}

func main() {
	env.LoadEnvironmentVariables()

	cfg, err := config.Load()

	if err != nil {
		logrus.Fatalf("configuration error: %s", err)
	}

	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		logrus.Fatalf("logging error: %s", err)
	}

	if cfg.Debug {
		lax.EnableDebugMode()
	}

	store, closeStore, err := openStore(context.Background(), cfg)

	if err != nil {
		logrus.Fatalf("database connection error: %s", err)
	}

	defer closeStore()

	quotes, closeQuotes, err := quote.NewFromConfig(cfg.Quote)

	if err != nil {
		logrus.Fatalf("quote provider error: %s", err)
	}

	defer closeQuotes()

	pages, err := template.New(cfg.Currency)

	if err != nil {
		logrus.Fatalf("template error: %s", err)
	}

	appEnv := &util.Env{
		Ledger: ledger.NewService(store, quotes, ledger.Options{
			StartingCash: cfg.StartingCash,
			BcryptCost:   cfg.BcryptCost,
		}),
		Sessions: session.NewStore(cfg.SecretKey, cfg.SecureCookies),
		Pages:    pages,
	}

	staticDir := ""

	if cfg.Debug {
		staticDir = "./static/"
	}

	server := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           route.NewRouter(appEnv, staticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server error: %s", err)
		}
	}()

	logrus.WithField("port", cfg.Port).WithField("storage", cfg.Storage).Info("server started")
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("server shut down failed: %+v", err)

		return
	}

	logrus.Info("server shut down successfully")
}
