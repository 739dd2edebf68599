package main

import (
	"log"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	inventoryservice "github.com/jcmexdev/vending-sagas/internal/inventory-service"
	"github.com/jcmexdev/vending-sagas/internal/inventory-service/httpx"
	"github.com/jcmexdev/vending-sagas/internal/pkg/config"
	"github.com/jcmexdev/vending-sagas/internal/pkg/httpclient"
	"github.com/jcmexdev/vending-sagas/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger("inventory-service")
	cfg := config.InventoryFromEnv()

	db, err := sqlx.Connect("mysql", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}
	defer db.Close()

	billing := inventoryservice.NewBillingClient(httpclient.NewClient(), cfg.BillingURL, cfg.CallTimeout)
	service := inventoryservice.NewService(inventoryservice.NewRepo(db), billing)

	handler := httpx.NewHandler(service)
	router := httpx.NewRouter(handler)

	log.Printf("Inventory service running on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, router); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}
