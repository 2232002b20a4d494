package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorilla_handlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jiaming2012/webhook-trader/src/alpaca"
	"github.com/jiaming2012/webhook-trader/src/dbutils"
	"github.com/jiaming2012/webhook-trader/src/eventpubsub"
	"github.com/jiaming2012/webhook-trader/src/models"
	"github.com/jiaming2012/webhook-trader/src/router"
	"github.com/jiaming2012/webhook-trader/src/services"
	"github.com/jiaming2012/webhook-trader/src/utils"
	"github.com/jiaming2012/webhook-trader/src/worker"
)

// TradingView's published webhook egress addresses, plus localhost for
// manual testing.
var defaultWhitelist = []string{
	"52.89.214.238",
	"34.212.75.30",
	"54.218.53.128",
	"52.32.178.7",
	"127.0.0.1",
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("webhook-trader: %v", err)
	}
}

func run() error {
	ctx := context.Background()

	if err := utils.InitEnvironmentVariables(); err != nil {
		log.Warnf("failed to load env file: %v", err)
	}

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		shutdown, err := utils.SetupOTelSDK(ctx, "webhook-trader")
		if err != nil {
			return fmt.Errorf("failed to setup telemetry: %w", err)
		}

		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Errorf("failed to shutdown telemetry: %v", err)
			}
		}()
	}

	dbURI, err := utils.GetEnv("DB_URI")
	if err != nil {
		return err
	}

	db, err := dbutils.InitPostgresWithUrl(dbURI, utils.GetEnvBool("DB_ECHO"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	store := dbutils.NewPostgresStore(db)

	accounts, err := models.ParseAccounts(os.Getenv("ACCOUNTS"))
	if err != nil {
		return err
	}

	brokers := make(map[string]alpaca.Broker, len(accounts))
	for name, creds := range accounts {
		brokers[name] = alpaca.NewClient(creds)
		log.Infof("configured account %s (paper=%v)", name, creds.Paper)
	}

	eventpubsub.Init()

	testMode := utils.GetEnvBool("TEST_MODE")
	if testMode {
		log.Warn("TEST_MODE is enabled: orders will be logged but not forwarded to the broker")
	}

	tradingService := services.NewTradingService(store, brokers, testMode)
	snapshotService := services.NewSnapshotService(store, brokers)

	if err := router.InitOrderFeed(); err != nil {
		return fmt.Errorf("failed to subscribe order feed: %w", err)
	}

	// setup snapshot worker
	snapshotInterval := time.Hour
	if raw := os.Getenv("SNAPSHOT_INTERVAL"); raw != "" {
		snapshotInterval, err = time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid SNAPSHOT_INTERVAL: %w", err)
		}
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go worker.Run(workerCtx, snapshotService, snapshotInterval)

	// setup router
	whitelist := utils.GetEnvList("IP_WHITELIST")
	if whitelist == nil {
		whitelist = defaultWhitelist
	}

	r := mux.NewRouter()
	router.Setup(r, tradingService, snapshotService, store, whitelist)

	origins := utils.GetEnvList("ORIGINS")
	if origins == nil {
		origins = []string{"*"}
	}

	cors := gorilla_handlers.CORS(
		gorilla_handlers.AllowedOrigins(origins),
		gorilla_handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		gorilla_handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilla_handlers.AllowCredentials(),
	)

	port := utils.GetEnvOrDefault("PORT", "8000")

	srv := &http.Server{
		Handler: otelhttp.NewHandler(cors(r), "http.server"),
		Addr:    fmt.Sprintf(":%s", port),
	}

	go func() {
		log.Infof("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil {
			if err != http.ErrServerClosed {
				log.Fatalf("http: failed to listen and serve: %v", err)
			}
		}
	}()

	// Create channel for shutdown signals.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	signal.Notify(stop, syscall.SIGTERM)

	<-stop
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	log.Info("Server gracefully stopped")
	return nil
}
