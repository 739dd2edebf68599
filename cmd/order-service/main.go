package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	attemptsqlite "github.com/jcmexdev/vending-sagas/internal/coordinator/attemptlog/sqlite"
	"github.com/jcmexdev/vending-sagas/internal/order-service/app"
	"github.com/jcmexdev/vending-sagas/internal/order-service/infra/gateway"
	"github.com/jcmexdev/vending-sagas/internal/order-service/infra/httpx"
	"github.com/jcmexdev/vending-sagas/internal/order-service/infra/repo"
	"github.com/jcmexdev/vending-sagas/internal/pkg/alert"
	"github.com/jcmexdev/vending-sagas/internal/pkg/cache"
	"github.com/jcmexdev/vending-sagas/internal/pkg/config"
	"github.com/jcmexdev/vending-sagas/internal/pkg/httpclient"
	"github.com/jcmexdev/vending-sagas/internal/pkg/metrics"
	"github.com/jcmexdev/vending-sagas/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger("order-service")
	cfg := config.OrderFromEnv()

	db, err := sqlx.Connect("mysql", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}
	defer db.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.AttemptLogPath), 0o755); err != nil {
		log.Fatalf("could not create attempt log directory: %v", err)
	}
	attempts, err := attemptsqlite.Open(cfg.AttemptLogPath)
	if err != nil {
		log.Fatalf("could not open attempt log: %v", err)
	}
	defer attempts.Close()

	client := httpclient.NewClient()
	inventory := gateway.NewInventoryClient(client, cfg.InventoryURL, cfg.CallTimeout)
	billing := gateway.NewBillingClient(client, cfg.BillingURL, cfg.CallTimeout)

	var receipts cache.Cache = cache.Noop{}
	if cfg.RedisAddr != "" {
		receipts = cache.NewRedisCache(cfg.RedisAddr, "order-service")
	}

	var notifier alert.Notifier = alert.LogNotifier{}
	if cfg.KafkaHost != "" {
		kafkaNotifier, err := alert.NewKafkaNotifier(cfg.KafkaHost, cfg.AlertTopic)
		if err != nil {
			log.Fatalf("could not connect to kafka: %v", err)
		}
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	store := repo.New(db)
	sagaMetrics := metrics.NewSaga()
	service := app.NewService(store, store, inventory, billing, attempts, receipts, notifier, sagaMetrics)

	// Drive attempts interrupted by the previous shutdown to a terminal
	// state before accepting traffic.
	if err := service.Recover(context.Background()); err != nil {
		log.Fatalf("attempt recovery failed: %v", err)
	}

	handler := httpx.NewHandler(service)
	router := httpx.NewRouter(handler, sagaMetrics.Handler())

	log.Printf("Order service running on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, router); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}
