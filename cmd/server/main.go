package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"juridico/internal/adapters/oracle"
	pg "juridico/internal/adapters/postgres"
	"juridico/internal/config"
	"juridico/internal/fleetcache"
	"juridico/internal/logging"
	"juridico/internal/services/finequery"
	"juridico/internal/services/finesync"
	"juridico/internal/services/sectorhistory"
	"juridico/internal/services/sectormap"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:           "juridico",
		Short:         "Fine cache and vehicle sector history service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (env vars override it)")
	root.AddCommand(serveCmd(), syncCmd(), purgeCmd(), sectorsCmd(), fleetCmd(), migrateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds the wired adapters and services shared by every command.
type app struct {
	cfg     config.Config
	log     *logrus.Logger
	db      *pg.DB
	oracle  *oracle.Gateway
	fleet   *fleetcache.Cache
	syncer  *finesync.Service
	fines   *finequery.Service
	history *sectorhistory.Service
	reports *sectormap.Service
}

func loadConfig() (config.Config, *logrus.Logger, error) {
	v, err := config.New(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

// openDB connects to Postgres only; used by commands that never reach Oracle.
func openDB(ctx context.Context) (*pg.DB, config.Config, *logrus.Logger, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, cfg, nil, err
	}
	db, err := pg.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.Location)
	if err != nil {
		return nil, cfg, nil, fmt.Errorf("db connect: %w", err)
	}
	return db, cfg, log, nil
}

func openApp(ctx context.Context) (*app, error) {
	db, cfg, log, err := openDB(ctx)
	if err != nil {
		return nil, err
	}

	gw := oracle.Disabled(log)
	if cfg.Oracle.Enabled {
		gw, err = oracle.Open(ctx, cfg.Oracle.DSN, cfg.Oracle.ConnectAttempts, log)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	loc := cfg.TimeLocation()
	clock := clockwork.NewRealClock()
	fleet := fleetcache.New(db, clock, cfg.FleetRefresh, log)
	syncer := finesync.New(finesync.Options{
		Oracle:      gw,
		Fines:       db,
		Fleet:       db,
		Runs:        db,
		Snapshots:   fleet,
		Clock:       clock,
		Log:         log,
		Company:     cfg.Oracle.CompanyCode,
		Freshness:   cfg.SyncFreshness,
		Location:    loc,
		SyncTimeout: cfg.SyncTimeout,
	})
	fines := finequery.New(finequery.Options{
		Fines:    db,
		Syncer:   syncer,
		Runs:     db,
		Clock:    clock,
		Log:      log,
		Location: loc,
	})
	history := sectorhistory.New(sectorhistory.Options{
		Ledger:   db,
		Fleet:    db,
		Clock:    clock,
		Log:      log,
		Location: loc,
	})
	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		oracle:  gw,
		fleet:   fleet,
		syncer:  syncer,
		fines:   fines,
		history: history,
		reports: sectormap.New(fines, history, fleet, log),
	}, nil
}

func (a *app) Close() {
	if err := a.oracle.Close(); err != nil {
		a.log.WithError(err).Warn("closing oracle")
	}
	a.db.Close()
}

// withApp runs fn against a freshly wired app and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
