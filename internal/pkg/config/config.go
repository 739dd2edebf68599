// Package config builds the explicit configuration structs each service
// receives at startup. Values come from environment variables with local
// defaults; nothing in the services reads the environment directly.
package config

import (
	"os"
	"time"
)

// Order configures the order service: its own database, the attempt log
// location, and the downstream service endpoints.
type Order struct {
	HTTPAddr       string
	DatabaseDSN    string
	AttemptLogPath string
	InventoryURL   string
	BillingURL     string
	RedisAddr      string
	KafkaHost      string
	AlertTopic     string
	CallTimeout    time.Duration
}

// Inventory configures the inventory service.
type Inventory struct {
	HTTPAddr    string
	DatabaseDSN string
	BillingURL  string
	CallTimeout time.Duration
}

// Billing configures the billing service.
type Billing struct {
	HTTPAddr    string
	DatabaseDSN string
}

// Migrations maps a service name to its migration directory and DSN for
// the migrate CLI.
type Migrations struct {
	Order     MigrationTarget
	Inventory MigrationTarget
	Billing   MigrationTarget
}

type MigrationTarget struct {
	Name         string
	MigrationDir string
	DatabaseDSN  string
}

func OrderFromEnv() Order {
	return Order{
		HTTPAddr:       getEnv("ORDER_HTTP_ADDR", ":8000"),
		DatabaseDSN:    getEnv("ORDER_DB_DSN", "root:password@tcp(localhost:3306)/coffee_machine?parseTime=true"),
		AttemptLogPath: getEnv("ORDER_ATTEMPT_LOG_PATH", "./data/attempts.db"),
		InventoryURL:   getEnv("INVENTORY_SERVICE_URL", "http://localhost:8001"),
		BillingURL:     getEnv("BILLING_SERVICE_URL", "http://localhost:8002"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		KafkaHost:      getEnv("KAFKA_HOST", ""),
		AlertTopic:     getEnv("ALERT_TOPIC", "OPERATIONAL_ALERTS"),
		CallTimeout:    getDuration("SERVICE_CALL_TIMEOUT", 3*time.Second),
	}
}

func InventoryFromEnv() Inventory {
	return Inventory{
		HTTPAddr:    getEnv("INVENTORY_HTTP_ADDR", ":8001"),
		DatabaseDSN: getEnv("INVENTORY_DB_DSN", "root:password@tcp(localhost:3306)/coffee_machine?parseTime=true"),
		BillingURL:  getEnv("BILLING_SERVICE_URL", "http://localhost:8002"),
		CallTimeout: getDuration("SERVICE_CALL_TIMEOUT", 3*time.Second),
	}
}

func BillingFromEnv() Billing {
	return Billing{
		HTTPAddr:    getEnv("BILLING_HTTP_ADDR", ":8002"),
		DatabaseDSN: getEnv("BILLING_DB_DSN", "root:password@tcp(localhost:3306)/coffee_machine?parseTime=true"),
	}
}

func MigrationsFromEnv() Migrations {
	return Migrations{
		Order: MigrationTarget{
			Name:         "order",
			MigrationDir: getEnv("ORDER_MIGRATION_DIR", "migration/order"),
			DatabaseDSN:  OrderFromEnv().DatabaseDSN,
		},
		Inventory: MigrationTarget{
			Name:         "inventory",
			MigrationDir: getEnv("INVENTORY_MIGRATION_DIR", "migration/inventory"),
			DatabaseDSN:  InventoryFromEnv().DatabaseDSN,
		},
		Billing: MigrationTarget{
			Name:         "billing",
			MigrationDir: getEnv("BILLING_MIGRATION_DIR", "migration/billing"),
			DatabaseDSN:  BillingFromEnv().DatabaseDSN,
		},
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
