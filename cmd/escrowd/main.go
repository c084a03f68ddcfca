package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vivianchibueze694-alt/bridegeescrow/audit"
	"github.com/vivianchibueze694-alt/bridegeescrow/config"
	"github.com/vivianchibueze694-alt/bridegeescrow/core/state"
	"github.com/vivianchibueze694-alt/bridegeescrow/core/types"
	"github.com/vivianchibueze694-alt/bridegeescrow/gateway/middleware"
	"github.com/vivianchibueze694-alt/bridegeescrow/gateway/routes"
	"github.com/vivianchibueze694-alt/bridegeescrow/native/escrow"
	"github.com/vivianchibueze694-alt/bridegeescrow/observability/logging"
	"github.com/vivianchibueze694-alt/bridegeescrow/observability/metrics"
	"github.com/vivianchibueze694-alt/bridegeescrow/storage"
)

const shutdownTimeout = 10 * time.Second

// vaultAddress is the module's custodial account on the ledger.
var vaultAddress = types.Address{'e', 's', 'c', 'r', 'o', 'w', '-', 'v', 'a', 'u', 'l', 't'}

func main() {
	configPath := flag.String("config", "escrowd.toml", "path to the TOML configuration file")
	flag.Parse()

	logger := logging.Setup("escrowd", os.Getenv("ESCROWD_ENV"))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	owner, err := types.ParseAddress(cfg.Owner)
	if err != nil {
		logger.Error("parse owner address", "error", err)
		os.Exit(1)
	}
	treasury, err := types.ParseAddress(cfg.Treasury)
	if err != nil {
		logger.Error("parse treasury address", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "audit"))
	if err != nil {
		logger.Error("open audit store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	m := metrics.Escrow()
	recorder, err := audit.NewRecorder(db, func(err error) {
		m.AuditSinkError()
		logger.Error("audit sink", "error", err)
	})
	if err != nil {
		logger.Error("open audit recorder", "error", err)
		os.Exit(1)
	}

	ledger := state.NewLedger(vaultAddress, cfg.MinEscrowAmount, cfg.MaxEscrowAmount)
	engine := escrow.NewEngine()
	engine.SetState(ledger)
	engine.SetOwner(owner)
	engine.SetEmitter(recorder)
	engine.SetHeightFunc(ledger.Height)
	if err := engine.SetParams(cfg.Params()); err != nil {
		logger.Error("configure engine", "error", err)
		os.Exit(1)
	}
	if err := ledger.SetTreasuryAddress(treasury); err != nil {
		logger.Error("configure treasury", "error", err)
		os.Exit(1)
	}

	er := routes.NewEscrowRoutes(engine, ledger, recorder, logging.Component(logger, "gateway"), m)
	handler := routes.NewRouter(er, routes.RouterConfig{
		RateLimit: middleware.RateLimit{RequestsPerMinute: 600, Burst: 30},
	}, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("escrowd listening", "address", cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
