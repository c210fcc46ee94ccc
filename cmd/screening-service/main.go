package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/clarion-health/screening/pkg/assignment"
	"github.com/clarion-health/screening/pkg/common/config"
	"github.com/clarion-health/screening/pkg/common/database"
	"github.com/clarion-health/screening/pkg/common/kafka"
	"github.com/clarion-health/screening/pkg/common/logger"
	"github.com/clarion-health/screening/pkg/common/models"
	"github.com/clarion-health/screening/pkg/docmatch"
	"github.com/clarion-health/screening/pkg/documents"
	"github.com/clarion-health/screening/pkg/patients"
	"github.com/clarion-health/screening/pkg/refresh"
	"github.com/clarion-health/screening/pkg/registry"
	"github.com/clarion-health/screening/pkg/status"
	"github.com/clarion-health/screening/pkg/terminology"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	definitionRepo := registry.NewRepository(db)
	if err := definitionRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate definition tables")
	}
	patientRepo := patients.NewRepository(db)
	if err := patientRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate patient tables")
	}
	documentRepo := documents.NewRepository(db)
	if err := documentRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate document tables")
	}
	assignmentRepo := assignment.NewRepository(db)
	if err := assignmentRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate assignment tables")
	}

	catalog := terminology.DefaultCatalog()
	if cfg.TerminologyCatalogPath != "" {
		catalog, err = terminology.Load(cfg.TerminologyCatalogPath)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to load terminology catalog")
		}
	}

	changeProducer := kafka.NewProducer(cfg.DefinitionEventTopic)
	summaryProducer := kafka.NewProducer(cfg.RefreshSummaryTopic)
	defer changeProducer.Close()
	defer summaryProducer.Close()

	directory := patients.NewCachedDirectory(patientRepo, database.GetRedis(), cfg.SnapshotCacheTTL)

	coordinator := refresh.New(
		refresh.Config{
			BatchSize:      cfg.RefreshBatchSize,
			PatientTimeout: cfg.PatientTimeout,
			BatchTimeout:   cfg.BatchTimeout,
		},
		refresh.Deps{
			Patients:    directory,
			Documents:   documentRepo,
			Definitions: definitionRepo,
			Store:       assignmentRepo,
			Matcher:     docmatch.New(docmatch.DefaultConfig()),
			Status: status.New(status.Config{
				AcceptanceThreshold: cfg.AcceptanceThreshold,
				LeadTimeBuffer:      cfg.LeadTimeBuffer,
				GracePeriod:         cfg.GracePeriod,
			}),
			Summaries: summaryProducer,
		},
	)

	registryService := registry.NewService(definitionRepo, changeProducer, catalog)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1/screening").Subrouter()
	registry.NewHandler(registryService).Register(api)
	refresh.NewHandler(coordinator, assignmentRepo).Register(api)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	consumer := kafka.NewConsumer(cfg.DefinitionEventTopic, cfg.KafkaGroupID)
	defer consumer.Close()
	go consumeDefinitionChanges(ctx, consumer, coordinator)
	go runNightlySweep(ctx, cfg.SweepInterval, definitionRepo, coordinator)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("screening service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start screening service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down screening service...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("screening service forced to shutdown")
	}
	logger.Log.Info("screening service stopped")
}

// consumeDefinitionChanges feeds registry change events into the
// targeted-refresh coordinator.
func consumeDefinitionChanges(ctx context.Context, consumer *kafka.Consumer, coordinator *refresh.Coordinator) {
	err := consumer.Consume(ctx, func(ctx context.Context, envelope kafka.Envelope) error {
		var event models.ChangeEvent
		if err := json.Unmarshal(envelope.Data, &event); err != nil {
			logger.Log.WithError(err).WithField("event_id", envelope.ID).Error("malformed change event, dropping")
			return nil
		}
		_, err := coordinator.RefreshDefinition(ctx, event.DefinitionID, event.Kind)
		return err
	})
	if err != nil && ctx.Err() == nil {
		logger.Log.WithError(err).Error("definition change consumer stopped")
	}
}

// runNightlySweep periodically recomputes every active definition so
// that purely time-driven changes happen without any triggering edit:
// statuses drifting toward due, and patients aging into or out of an
// age band. The demographic scope covers the whole population, which is
// what aging requires.
func runNightlySweep(ctx context.Context, interval time.Duration, definitions *registry.Repository, coordinator *refresh.Coordinator) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			defs, err := definitions.ListActive(ctx)
			if err != nil {
				logger.Log.WithError(err).Error("sweep failed to list active definitions")
				continue
			}
			for _, def := range defs {
				if _, err := coordinator.RefreshDefinition(ctx, def.ID, models.DemographicCriteriaChanged); err != nil {
					logger.Log.WithError(err).WithField("definition_id", def.ID).Error("sweep refresh failed")
				}
			}
		}
	}
}
