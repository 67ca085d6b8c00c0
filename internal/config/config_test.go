package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "STORE_DRIVER", "JWT_TTL", "PROJECTOR_WORKERS", "KAFKA_BROKERS", "MIGRATE"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.HTTPAddr != ":8081" {
		t.Fatalf("http addr %q", cfg.HTTPAddr)
	}
	if cfg.StoreDriver != "postgres" {
		t.Fatalf("driver %q", cfg.StoreDriver)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Fatalf("jwt ttl %v", cfg.JWTTTL)
	}
	if cfg.ProjectorWorkers != 4 {
		t.Fatalf("workers %d", cfg.ProjectorWorkers)
	}
	if cfg.Migrate {
		t.Fatalf("migrate should default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("PROJECTOR_WORKERS", "nope")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("MIGRATE", "yes")
	t.Setenv("PAYMENT_BASE_URL", "https://pay.example.com/")

	cfg := Load()
	if cfg.StoreDriver != "memory" {
		t.Fatalf("driver %q", cfg.StoreDriver)
	}
	if cfg.JWTTTL != 90*time.Minute {
		t.Fatalf("jwt ttl %v", cfg.JWTTTL)
	}
	if cfg.ProjectorWorkers != 4 {
		t.Fatalf("bad int should fall back, got %d", cfg.ProjectorWorkers)
	}
	if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"k1:9092", "k2:9092"}) {
		t.Fatalf("brokers %v", cfg.KafkaBrokers)
	}
	if !cfg.Migrate {
		t.Fatalf("migrate not parsed")
	}
	if cfg.PaymentBaseURL != "https://pay.example.com" {
		t.Fatalf("base url %q", cfg.PaymentBaseURL)
	}
}
