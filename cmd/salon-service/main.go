package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"salon-service/internal/common/logger"
	"salon-service/internal/config"
	"salon-service/internal/connections/database"
	"salon-service/internal/connections/rabbitmq"
	"salon-service/internal/notify"
	"salon-service/internal/recovery"
	"salon-service/internal/repository"
	"salon-service/internal/routing"
	tableorder "salon-service/internal/tableorder/service"
)

func main() {
	mode := flag.String("mode", "", "reconciler | revision-subscriber | stats | reset-all")
	yes := flag.Bool("yes", false, "reset-all: confirm the destructive reset")
	origin := flag.String("origin", "", "revision-subscriber: writer identity (random when empty)")
	flag.Parse()

	lg := logger.New("bootstrap")
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		lg.Error("config_load_failed", err, nil)
		os.Exit(1)
	}

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		lg.Error("db_connect_failed", err, nil)
		os.Exit(1)
	}
	defer db.Close()

	repo := repository.New(db)
	rec := recovery.NewService(repo.Tables, repo.Snapshots, nil,
		recovery.OrphanPolicy(cfg.Engine.OrphanPolicy), logger.New("recovery"))

	switch *mode {
	case "reconciler":
		report, err := rec.Reconcile(ctx)
		if err != nil {
			lg.Error("reconcile_failed", err, nil)
			os.Exit(1)
		}
		lg.Info("reconcile_done", map[string]any{
			"checked": report.Checked, "anomalies": len(report.Anomalies),
		})
		_ = json.NewEncoder(os.Stdout).Encode(report)

	case "stats":
		stats, err := rec.Stats(ctx)
		if err != nil {
			lg.Error("stats_failed", err, nil)
			os.Exit(1)
		}
		_ = json.NewEncoder(os.Stdout).Encode(stats)

	case "reset-all":
		if !*yes {
			fmt.Fprintln(os.Stderr, "reset-all clears every active order; pass --yes to confirm")
			os.Exit(2)
		}
		if err := rec.ResetAll(ctx); err != nil {
			lg.Error("reset_all_failed", err, nil)
			os.Exit(1)
		}

	case "revision-subscriber":
		if err := runSubscriber(ctx, cfg, repo, *origin); err != nil {
			lg.Error("subscriber_failed", err, nil)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "--mode is required: reconciler | revision-subscriber | stats | reset-all")
		os.Exit(2)
	}
}

func runSubscriber(ctx context.Context, cfg config.Config, repo *repository.Repository, origin string) error {
	if origin == "" {
		origin = "subscriber-" + uuid.NewString()[:8]
	}

	rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer rmq.Close()
	if err := rmq.DeclareTopology(); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}

	dests, err := repo.Printers.ListDestinations(ctx)
	if err != nil {
		return err
	}
	router, err := routing.NewRouter(dests)
	if err != nil {
		return err
	}

	publisher := notify.NewPublisher(rmq)
	store := tableorder.New(tableorder.Deps{
		Tables:          repo.Tables,
		Snapshots:       repo.Snapshots,
		Catalog:         repo.Catalog,
		Router:          router,
		Tickets:         publisher,
		Notifier:        publisher,
		Finalizer:       repo.Sales,
		Auditor:         repo.Sales,
		Logger:          logger.New("table-order"),
		FinalizeTimeout: cfg.Engine.FinalizeTimeout,
	})
	rec := recovery.NewService(repo.Tables, repo.Snapshots, store,
		recovery.OrphanPolicy(cfg.Engine.OrphanPolicy), logger.New("recovery"))

	// repair once on startup before trusting any cached state
	if _, err := rec.Reconcile(ctx); err != nil {
		return err
	}

	sub := notify.NewSubscriber(rmq, store, rec, origin, logger.New("revision-subscriber"))
	return sub.Run(ctx)
}
