package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpadapter "juridico/internal/adapters/http"
	"juridico/internal/domain"
	"juridico/internal/workers/syncrunner"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, sync workers and maintenance loop",
		RunE:  withApp(serve),
	}
}

func serve(ctx context.Context, a *app) error {
	if err := a.db.Migrate(ctx); err != nil {
		return err
	}

	api := httpadapter.New(httpadapter.Options{
		Fines:    a.fines,
		Syncer:   a.syncer,
		Jobs:     a.db,
		History:  a.history,
		Reports:  a.reports,
		Fleet:    a.syncer,
		DB:       a.db,
		Location: a.cfg.TimeLocation(),
		Log:      a.log,
	})
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if a.cfg.SyncWorkers > 0 {
		g.Go(func() error {
			a.log.WithField("workers", a.cfg.SyncWorkers).Info("sync workers started")
			syncrunner.Run(ctx, a.db, a.syncer, a.cfg.SyncWorkers, a.cfg.SyncPollInterval, a.log)
			return nil
		})
	}
	g.Go(func() error {
		syncrunner.Maintain(ctx, a.cfg.MaintenanceInterval, a.log, maintenanceTasks(a)...)
		return nil
	})
	return g.Wait()
}

func maintenanceTasks(a *app) []syncrunner.Task {
	return []syncrunner.Task{
		{Name: "fleet-import", Run: func(ctx context.Context) error {
			_, err := a.syncer.ImportFleet(ctx, false)
			return err
		}},
		{Name: "sector-drift", Run: func(ctx context.Context) error {
			_, err := a.history.DetectDrift(ctx)
			return err
		}},
		{Name: "cache-purge", Run: func(ctx context.Context) error {
			_, err := a.fines.Purge(ctx, a.cfg.CacheRetentionDays)
			return err
		}},
		{Name: "history-purge", Run: func(ctx context.Context) error {
			_, err := a.history.Purge(ctx, a.cfg.HistoryRetentionDays)
			return err
		}},
	}
}

func syncCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Force a fine sync for a date range (YYYY-MM-DD)",
		RunE: withApp(func(ctx context.Context, a *app) error {
			r, err := parseRange(from, to, a.cfg.TimeLocation())
			if err != nil {
				return err
			}
			res, err := a.fines.ForceSync(ctx, r)
			if err != nil {
				return err
			}
			return printJSON(res)
		}),
	}
	cmd.Flags().StringVar(&from, "inicio", "", "first issuance day")
	cmd.Flags().StringVar(&to, "fim", "", "last issuance day")
	_ = cmd.MarkFlagRequired("inicio")
	_ = cmd.MarkFlagRequired("fim")
	return cmd
}

func parseRange(from, to string, loc *time.Location) (domain.DateRange, error) {
	start, err := time.ParseInLocation(time.DateOnly, from, loc)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("%w: inicio %q", domain.ErrInvalidInput, from)
	}
	end, err := time.ParseInLocation(time.DateOnly, to, loc)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("%w: fim %q", domain.ErrInvalidInput, to)
	}
	return domain.NewDateRange(start, end)
}

func purgeCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Drop cached fines issued before the retention window",
		RunE: withApp(func(ctx context.Context, a *app) error {
			if days == 0 {
				days = a.cfg.CacheRetentionDays
			}
			n, err := a.fines.Purge(ctx, days)
			if err != nil {
				return err
			}
			return printJSON(map[string]int64{"removidos": n})
		}),
	}
	cmd.Flags().IntVar(&days, "dias", 0, "retention in days (default from config)")
	return cmd
}

func sectorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sectors",
		Short: "Maintain the vehicle sector history",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Open an initial interval for every active vehicle without one",
		RunE: withApp(func(ctx context.Context, a *app) error {
			res, err := a.history.InitializeFromFleet(ctx)
			if err != nil {
				return err
			}
			return printJSON(res)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "drift",
		Short: "Record sector changes found in the current fleet",
		RunE: withApp(func(ctx context.Context, a *app) error {
			res, err := a.history.DetectDrift(ctx)
			if err != nil {
				return err
			}
			return printJSON(res)
		}),
	})

	var days int
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Drop closed intervals that ended before the retention window",
		RunE: withApp(func(ctx context.Context, a *app) error {
			if days == 0 {
				days = a.cfg.HistoryRetentionDays
			}
			n, err := a.history.Purge(ctx, days)
			if err != nil {
				return err
			}
			return printJSON(map[string]int64{"removidos": n})
		}),
	}
	purge.Flags().IntVar(&days, "dias", 0, "retention in days (default from config)")
	cmd.AddCommand(purge)
	return cmd
}

func fleetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Manage the local fleet copy",
	}
	var inactive bool
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Import the fleet snapshot from the source",
		RunE: withApp(func(ctx context.Context, a *app) error {
			res, err := a.syncer.ImportFleet(ctx, inactive)
			if err != nil {
				return err
			}
			return printJSON(res)
		}),
	}
	sync.Flags().BoolVar(&inactive, "incluir-inativos", false, "also import inactive vehicles")
	cmd.AddCommand(sync)
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, log, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			v, err := db.MigrationVersion(cmd.Context())
			if err != nil {
				return err
			}
			log.WithField("version", v).Info("schema up to date")
			return nil
		},
	}
}
