package main

import (
	"log"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	billingservice "github.com/jcmexdev/vending-sagas/internal/billing-service"
	"github.com/jcmexdev/vending-sagas/internal/billing-service/httpx"
	"github.com/jcmexdev/vending-sagas/internal/pkg/config"
	"github.com/jcmexdev/vending-sagas/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger("billing-service")
	cfg := config.BillingFromEnv()

	db, err := sqlx.Connect("mysql", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}
	defer db.Close()

	service := billingservice.NewService(billingservice.NewRepo(db))

	handler := httpx.NewHandler(service)
	router := httpx.NewRouter(handler)

	log.Printf("Billing service running on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, router); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}
