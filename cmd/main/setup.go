package main

import (
	"context"
	"sync"

	"market-relay/src/grpc_control"
	"market-relay/src/ingest"
	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"
	"market-relay/src/server"
	"market-relay/src/storage"
	"market-relay/src/store"
	"market-relay/src/utils"
)

// -----------------------------------------------------------------------------

// setupJournal opens the configured push journal. The relay keeps running
// without one if the backend is unreachable.
func setupJournal(config *models.MConfig, appLogger *logger.Logger) interfaces.IPushJournal {
	journal, err := storage.NewPushJournal(config, logger.NewLogger(config.LogLevel, "PushJournal"))
	if err != nil {
		appLogger.Error("Failed to init push journal: %v", err)
		return storage.NopJournal{}
	}
	if err := journal.Initialize(); err != nil {
		appLogger.Error("Failed to open push journal, pushes will not be recorded: %v", err)
		return storage.NopJournal{}
	}
	appLogger.Info("Push journal ready (%s)", config.Storage.DBType)
	return journal
}

// -----------------------------------------------------------------------------

type servers struct {
	logger  *logger.Logger
	query   *server.QueryServer
	gateway *ingest.Gateway
	health  *grpc_control.HealthService

	failed chan error
}

func newServers(
	config *models.MConfig,
	appLogger *logger.Logger,
	marketStore interfaces.ISnapshotStore,
	writer interfaces.ISnapshotWriter,
	journal interfaces.IPushJournal,
	clock *utils.MarketClock,
) *servers {
	s := &servers{
		logger:  appLogger,
		query:   server.NewQueryServer(config, logger.NewLogger(config.LogLevel, "QueryService"), marketStore, clock),
		gateway: ingest.NewGateway(config, logger.NewLogger(config.LogLevel, "Ingest"), writer, journal),
		failed:  make(chan error, 3),
	}

	if config.GrpcPort != 0 {
		s.health = grpc_control.NewHealthService(config, logger.NewLogger(config.LogLevel, "HealthService"))
		marketStore.Subscribe(s.health.OnReload)
		// Reflect the dataset loaded before the subscription.
		ds := marketStore.Current()
		s.health.OnReload(store.Event{Instrument: ds.Instrument, Bars: len(ds.Bars), Freshness: ds.Freshness, Err: ds.Err})
	}
	return s
}

// -----------------------------------------------------------------------------

// start launches every listener; the first one to fail is reported on failed.
func (s *servers) start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.query.Run(ctx)
	}()

	go func() {
		if err := s.query.Start(); err != nil {
			s.failed <- err
		}
	}()

	go func() {
		if err := s.gateway.Start(); err != nil {
			s.failed <- err
		}
	}()

	if s.health != nil {
		go func() {
			if err := s.health.Start(); err != nil {
				s.failed <- err
			}
		}()
	}
}

func (s *servers) stop(ctx context.Context) {
	if err := s.gateway.Shutdown(ctx); err != nil {
		s.logger.Warning("Ingestion gateway shutdown: %v", err)
	}
	if err := s.query.Shutdown(ctx); err != nil {
		s.logger.Warning("Query service shutdown: %v", err)
	}
	if s.health != nil {
		s.health.Stop()
	}
}
