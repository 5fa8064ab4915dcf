package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-logic-robovac/migrations"

	"github.com/nerrad567/gray-logic-robovac/internal/api"
	"github.com/nerrad567/gray-logic-robovac/internal/bridge"
	"github.com/nerrad567/gray-logic-robovac/internal/device"
	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-robovac/internal/statecache"
	"github.com/nerrad567/gray-logic-robovac/internal/telemetry"
	"github.com/nerrad567/gray-logic-robovac/internal/transport"
)

const (
	// historyRetention is how long state history rows are kept.
	historyRetention = 30 * 24 * time.Hour

	pruneInterval = 6 * time.Hour
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

// run is the service lifecycle, separated from the command for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting robovac",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	path := getConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", path, "vacuums", len(cfg.Vacuums))

	catPath := modelsFile
	if catPath == "" {
		catPath = cfg.ModelsFile
	}
	catalogue, err := loadCatalogue(catPath)
	if err != nil {
		return fmt.Errorf("loading model catalogue: %w", err)
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	store := device.NewSQLiteStore(db.DB)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	gateway := transport.NewGateway(mqttClient, cfg.Gateway.TopicPrefix)
	gateway.SetLogger(log)
	if err := gateway.Start(); err != nil {
		return fmt.Errorf("starting gateway transport: %w", err)
	}
	defer func() {
		if stopErr := gateway.Stop(); stopErr != nil {
			log.Warn("error stopping gateway transport", "error", stopErr)
		}
	}()

	registry := statecache.NewRegistry()
	manager, err := device.NewManager(device.ManagerOptions{
		Registry:  registry,
		Transport: gateway,
		Catalogue: catalogue,
		Store:     store,
		Polling:   cfg.Polling,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("creating device manager: %w", err)
	}
	defer manager.Close()

	for _, vc := range cfg.Vacuums {
		if _, err := manager.Register(ctx, vc); err != nil {
			if errors.Is(err, device.ErrModelNotSupported) || errors.Is(err, device.ErrMissingAddress) {
				log.Warn("vacuum registered without polling", "device_id", vc.ID, "error", err)
				continue
			}
			return fmt.Errorf("registering vacuum %s: %w", vc.ID, err)
		}
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) { log.Error("InfluxDB write error", "error", err) })

		recorder := telemetry.NewRecorder(influxClient)
		defer recorder.Close()
		for _, h := range manager.List() {
			recorder.Attach(h.Cache)
		}
		log.Info("InfluxDB telemetry enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	mqttBridge, err := bridge.New(bridge.BridgeOptions{
		MQTTClient:     mqttClient,
		Commander:      manager,
		Version:        version,
		CommandTimeout: cfg.Polling.CommandTimeout * 2,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating MQTT bridge: %w", err)
	}
	for _, h := range manager.List() {
		mqttBridge.Attach(h.Cache)
	}
	if err := mqttBridge.Start(ctx); err != nil {
		return fmt.Errorf("starting MQTT bridge: %w", err)
	}
	defer mqttBridge.Stop()

	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log,
			Manager: manager,
			MQTT:    mqttClient,
			DB:      db,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("robovac started", "vacuums", manager.Count())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pruneHistory(gctx, store, log)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("robovac stopped")
	return nil
}

// pruneHistory trims old history rows until ctx is done.
func pruneHistory(ctx context.Context, store *device.SQLiteStore, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		n, err := store.PruneHistory(ctx, historyRetention)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn("history prune failed", "error", err)
		case n > 0:
			log.Info("pruned state history", "rows", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
