package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ariefcatur/go-storefront-orders/internal/auth"
	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/payment"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	var (
		store orders.Store
		users auth.UserStore
	)
	switch cfg.StoreDriver {
	case "memory":
		mem := orders.NewMemStore()
		mem.AddCategory(orders.Category{ID: "general", Name: "General"})
		store, users = mem, auth.NewMemUsers()
		log.Println("using in-memory store; data is lost on restart")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PGMaxConns)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer db.Close()
		if cfg.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				log.Fatalf("migrate: %v", err)
			}
		}
		store, users = &orders.Repo{DB: db}, &auth.PGUsers{DB: db}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	orderEvents := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024)
	orderEvents.Start()
	authEvents := kafkax.NewProducer(cfg.KafkaBrokers, auth.TopicAuthEvents, 256)
	authEvents.Start()

	// Payments
	var gw payment.Gateway = payment.Sandbox{}
	if cfg.PaymentProvider == "http" {
		gw = payment.NewHTTPGateway(cfg.PaymentBaseURL, cfg.PaymentAPIKey)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewServerMetrics(reg, "api")

	// Services
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := &auth.Service{Users: users, Tokens: tokens, Redis: rdb, Events: authEvents, ServiceName: cfg.ServiceName}
	orderSvc := &orders.Service{
		Store:       store,
		Payments:    gw,
		Users:       users,
		Events:      orderEvents,
		Metrics:     m,
		ServiceName: cfg.ServiceName,
	}
	carts := cart.New(rdb)
	cache := catalog.New(rdb, store, cfg.CatalogCacheTTL)

	// Router & handlers
	router := httpx.NewRouter(m, reg, httpx.Authenticate(tokens, cfg.ServiceName))
	(&httpx.AuthHandler{Auth: authSvc, Service: cfg.ServiceName}).Register(router)
	(&httpx.CatalogHandler{Orders: orderSvc, Cache: cache, Service: cfg.ServiceName}).Register(router)
	(&httpx.CartHandler{Cart: carts, Orders: orderSvc, Service: cfg.ServiceName}).Register(router)
	(&httpx.OrdersHandler{Orders: orderSvc, Cart: carts, Redis: rdb, Service: cfg.ServiceName}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		// handlers still running may publish after Close; those events are dropped
		log.Printf("shutdown: %v", err)
	}

	// flush pending events before exit
	orderEvents.Close()
	authEvents.Close()
	orderEvents.WaitClosed()
	authEvents.WaitClosed()
}
