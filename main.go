// Package main is Titan-AAS's composition root: it loads configuration,
// wires the document store, projection/cache layer, event bus, job queue,
// WebSocket fan-out, and federation sync loop into one running process,
// and exposes the operational surface (health, metrics) every deployment
// needs. The AAS repository/registry/discovery HTTP API that maps URL
// verbs onto these components is a separate external adapter layered on
// top of what this process exports — wiring it in is that adapter's job,
// not this one's.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"titan-aas/internal/config"
	"titan-aas/internal/events"
	"titan-aas/internal/federation"
	"titan-aas/internal/httpserver"
	"titan-aas/internal/jobs"
	"titan-aas/internal/lifecycle"
	"titan-aas/internal/logging"
	"titan-aas/internal/model"
	"titan-aas/internal/repository"
	"titan-aas/internal/wsfanout"
)

const envPrefix = "TITAN"

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("titan-aas: fatal startup error")
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(logging.Config{
		Level:   logging.Level(cfg.Service.LogLevel),
		Format:  cfg.Service.LogFormat,
		Service: cfg.Service.Name,
	})
	entry := logging.Base(log, cfg.Service.Name).WithField("component", "main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Storage.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	shells := repository.NewShellRepository(pool)
	submodels := repository.NewSubmodelRepository(pool)
	concepts := repository.NewConceptDescriptionRepository(pool)

	reg := prometheus.NewRegistry()

	eventBus, err := buildEventBus(cfg.Events, redisClient, reg)
	if err != nil {
		return fmt.Errorf("build event bus: %w", err)
	}

	jobQueue := jobs.New(redisClient, jobs.Config{
		JobTTL:            cfg.Jobs.JobTTL,
		ResultTTL:         cfg.Jobs.ResultTTL,
		DefaultMaxRetries: cfg.Jobs.MaxRetries,
	})
	if err := reg.Register(jobs.NewQueueCollector(jobQueue)); err != nil {
		return fmt.Errorf("register job queue collector: %w", err)
	}

	wsManager := wsfanout.NewSubscriptionManager(256, entry.WithField("component", "wsfanout"))
	eventBus.Subscribe(func(ctx context.Context, ev events.Event) error {
		wsManager.Broadcast(ev)
		return nil
	})

	sup := lifecycle.NewSupervisor(entry)
	sup.Add("events", func(ctx context.Context) error { return eventBus.Start(ctx) })

	graphMirror, err := buildGraphMirror(ctx, cfg.Federation)
	if err != nil {
		return fmt.Errorf("build federation graph mirror: %w", err)
	}
	if graphMirror != nil {
		defer graphMirror.Close(context.Background())
	}

	federationLoop, federationRegistry := buildFederation(cfg.Federation, shells, submodels, concepts, graphMirror)
	sup.Add("federation-sync", federationSyncTask(federationLoop, cfg.Federation.SyncInterval, entry))

	sup.Start(ctx)

	healthCheckers := map[string]httpserver.HealthChecker{
		"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"events":   eventBus.HealthCheck,
	}

	serverCfg := httpserver.Config{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimit:       cfg.Server.RateLimit,
	}
	e := httpserver.New(serverCfg, cfg.Service.Name, reg, healthCheckers)

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- httpserver.Start(e, serverCfg)
	}()

	entry.WithFields(logrus.Fields{
		"port":           cfg.Server.Port,
		"federationMode": cfg.Federation.Mode,
		"peers":          len(federationRegistry.List()),
	}).Info("titan-aas started")

	select {
	case <-ctx.Done():
		entry.Info("shutdown signal received")
	case err := <-serveErrCh:
		if err != nil {
			entry.WithError(err).Error("http server exited unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	sup.Stop()
	_ = eventBus.Stop(shutdownCtx)

	if err := httpserver.Shutdown(e, serverCfg); err != nil {
		entry.WithError(err).Error("error during http shutdown")
	}
	return nil
}

// loadConfig reads TITAN_CONFIG_FILE if set (a YAML/JSON/TOML overlay),
// otherwise falls back to pure environment configuration.
func loadConfig() (*config.Config, error) {
	if path := os.Getenv(envPrefix + "_CONFIG_FILE"); path != "" {
		return config.LoadFromFile(path, envPrefix)
	}
	return config.Load(envPrefix)
}

func buildEventBus(cfg config.EventsConfig, redisClient *redis.Client, reg *prometheus.Registry) (events.Bus, error) {
	metrics, err := events.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register event metrics: %w", err)
	}

	switch cfg.Bus {
	case "redisStreams":
		return events.NewRedisStreamBus(redisClient, metrics), nil
	default:
		return events.NewInMemoryBus(256), nil
	}
}

func buildGraphMirror(ctx context.Context, cfg config.FederationConfig) (*federation.Neo4jGraphMirror, error) {
	if cfg.GraphURI == "" {
		return nil, nil
	}
	return federation.NewNeo4jGraphMirror(ctx, cfg.GraphURI, cfg.GraphUsername, cfg.GraphPassword)
}

func buildFederation(
	cfg config.FederationConfig,
	shells *repository.ShellRepository,
	submodels *repository.SubmodelRepository,
	concepts *repository.ConceptDescriptionRepository,
	graph *federation.Neo4jGraphMirror,
) (*federation.Loop, *federation.Registry) {
	registry := federation.NewRegistry(nil)
	changeQueue := federation.NewChangeQueue(0)
	conflicts := federation.NewManager()

	reader := federation.NewRepositoryReader(
		shells, submodels, concepts,
		func(ctx context.Context, doc []byte) error {
			var shell model.Shell
			if err := json.Unmarshal(doc, &shell); err != nil {
				return fmt.Errorf("decode pulled shell: %w", err)
			}
			_, _, err := shells.Create(ctx, &shell)
			return err
		},
		func(ctx context.Context, doc []byte) error {
			var sm model.Submodel
			if err := json.Unmarshal(doc, &sm); err != nil {
				return fmt.Errorf("decode pulled submodel: %w", err)
			}
			_, _, err := submodels.Create(ctx, &sm)
			return err
		},
		func(ctx context.Context, doc []byte) error {
			var cd model.ConceptDescription
			if err := json.Unmarshal(doc, &cd); err != nil {
				return fmt.Errorf("decode pulled concept description: %w", err)
			}
			_, _, err := concepts.Create(ctx, &cd)
			return err
		},
		nil,
	)

	loop := federation.NewLoop(federation.Config{
		Mode:             federation.Mode(cfg.Mode),
		Topology:         federation.Topology(cfg.Topology),
		HubPeerID:        cfg.HubPeerID,
		DeltaSyncEnabled: cfg.DeltaSyncEnabled,
	}, registry, changeQueue, conflicts, reader, nil)

	if graph != nil {
		loop.SetGraphMirror(graph)
	}

	return loop, registry
}

// federationSyncTask runs the federation sync loop on a fixed interval
// until ctx is cancelled, the same periodic-task shape used for the event
// consumer and MQTT reconnect loop elsewhere in the stack.
func federationSyncTask(loop *federation.Loop, interval time.Duration, log *logrus.Entry) lifecycle.Task {
	if interval <= 0 {
		interval = time.Minute
	}
	return func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				summary := loop.SyncOnce(ctx)
				if summary.Status != "ok" {
					log.WithField("errors", summary.Errors).Warn("federation sync completed with errors")
				}
			}
		}
	}
}
