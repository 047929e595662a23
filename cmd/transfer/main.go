package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	cfg "github.com/sand/solnests/backend/config"
	"github.com/sand/solnests/backend/internal/core/ports"
	"github.com/sand/solnests/backend/internal/handlers"
	"github.com/sand/solnests/backend/internal/signing"
	"github.com/sand/solnests/backend/internal/usecases"
	"github.com/sand/solnests/backend/internal/usecases/repository"
	"github.com/sand/solnests/backend/internal/workers"
	"github.com/sand/solnests/backend/pkg/database"
)

// Server timeout constants.
const (
	readTimeoutSeconds     = 15
	writeTimeoutSeconds    = 15
	idleTimeoutSeconds     = 60
	shutdownTimeoutSeconds = 5
	auditDrainSeconds      = 10
)

// Audit backends.
const (
	auditBackendNone     = "none"
	auditBackendMongo    = "mongo"
	auditBackendPostgres = "postgres"
)

func main() {
	time.Local = time.UTC

	// Parse configuration
	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Setup logging
	opts := &slog.HandlerOptions{
		Level: config.Log.Level,
	}

	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	logger.Warn("Starting application with configuration",
		"debug", config.App.Debug,
		"network", config.Ledger.Network,
		"rpc_url", config.Ledger.RPCURL,
		"signing_agent", config.Signing.Agent,
		"require_approval", config.Signing.RequireApproval,
		"audit_backend", config.Audit.Backend,
		"server_port", config.HTTP.Port)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	catalog, err := usecases.NewPlanCatalog(config.Plans)
	if err != nil {
		logger.Error("Invalid plan table", "error", err)
		log.Fatal(err)
	}

	// Connect to Solana
	endpoints, err := usecases.RPCEndpoints(config.Ledger.Network, config.Ledger.RPCURL)
	if err != nil {
		log.Fatal(err)
	}

	rpcClient, err := usecases.DialSolana(ctx, logger, endpoints)
	if err != nil {
		logger.Error("Solana connection failed", "error", err)
		log.Fatal(err)
	}
	defer rpcClient.Close()

	ledger := usecases.NewSolanaLedger(logger, rpcClient, config.Ledger.Commitment)

	// Signing agents
	var manual *signing.ManualApprover
	var approver signing.Approver = signing.AutoApprove{}
	if config.Signing.RequireApproval {
		manual = signing.NewManualApprover(config.Signing.ApprovalTimeout)
		approver = manual
	}

	registry, err := initSigningAgents(logger, config, rpcClient, approver)
	if err != nil {
		logger.Error("Failed to set up signing agent", "error", err)
		log.Fatal(err)
	}

	// Audit store
	recorder, closeAudit, err := initAuditRecorder(ctx, logger, config)
	if err != nil {
		logger.Error("Failed to set up audit store", "error", err)
		log.Fatal(err)
	}
	defer closeAudit()

	auditDispatcher := usecases.NewAuditDispatcher(logger, recorder, config.Audit.WriteTimeout)

	// Create usecases and components
	poller := workers.NewConfirmationPoller(logger, ledger, config.Confirmation.PollInterval, config.Confirmation.MaxWait)
	builder := usecases.NewTransferBuilder(logger, ledger)
	gateway := usecases.NewSigningGateway(logger, registry, config.Signing.Agent)
	orchestrator := usecases.NewTransferOrchestrator(logger, builder, gateway, poller, auditDispatcher)
	sessions := usecases.NewSessionStore(catalog)

	// Initialize and run workers
	reaper := workers.NewSessionReaper(logger, sessions, config.Sessions.IdleTTL, config.Sessions.ReapInterval)
	go reaper.Start(ctx)

	// Create handlers
	var approvals handlers.ApprovalDecider
	if manual != nil {
		approvals = manual
	}

	websocketManager := handlers.NewWebSocketManager(logger)
	httpHandler := handlers.NewHTTPHandler(ctx, logger, catalog, sessions, orchestrator, approvals)
	wsHandler := handlers.NewWebSocketHandler(logger, sessions, websocketManager)

	// Create router
	router := mux.NewRouter()

	// Register WebSocket routes before HTTP routes
	wsHandler.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   config.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Wrap router in CORS middleware
	handler := c.Handler(router)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  readTimeoutSeconds * time.Second,
		WriteTimeout: writeTimeoutSeconds * time.Second,
		IdleTimeout:  idleTimeoutSeconds * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "address", server.Addr)
		if err = server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatal(err)
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer cancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Abort in-flight submissions, then let queued audit writes finish.
	stop()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), auditDrainSeconds*time.Second)
	defer drainCancel()

	if err = auditDispatcher.Wait(drainCtx); err != nil {
		logger.Error("Audit writes did not finish", "error", err)
	}

	logger.Info("Server exited properly")
}

// initSigningAgents registers the keypair agent built from the configured key material.
func initSigningAgents(logger *slog.Logger, config *cfg.Config, rpcClient signing.Broadcaster, approver signing.Approver) (*signing.Registry, error) {
	registry := signing.NewRegistry()

	var (
		key solana.PrivateKey
		err error
	)

	switch {
	case config.Signing.Mnemonic != "":
		key, err = signing.KeyFromMnemonic(config.Signing.Mnemonic, config.Signing.Passphrase)
	case config.Signing.PrivateKey != "":
		key, err = solana.PrivateKeyFromBase58(config.Signing.PrivateKey)
	default:
		logger.Warn("No signing key configured, transfers will fail with agent unavailable")
		return registry, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	agent := signing.NewKeypairAgent(logger, rpcClient, key, approver)
	if err = registry.Register(agent); err != nil {
		return nil, err
	}

	logger.Info("Signing agent registered", "agent", agent.Name(), "public_key", agent.PublicKey().String())

	return registry, nil
}

// initAuditRecorder connects the configured audit backend. The returned
// function releases its connections.
func initAuditRecorder(ctx context.Context, logger *slog.Logger, config *cfg.Config) (ports.AuditRecorder, func(), error) {
	switch config.Audit.Backend {
	case auditBackendNone, "":
		logger.Warn("Audit store disabled, confirmed transfers will not be recorded")
		return nil, func() {}, nil

	case auditBackendMongo:
		client, err := repository.ConnectMongo(ctx, config.Audit.MongoURI, time.Duration(config.Audit.ConnectTimeout)*time.Second)
		if err != nil {
			return nil, nil, err
		}

		collection := client.Database(config.Audit.MongoDatabase).Collection(config.Audit.MongoCollection)
		if err = repository.EnsureSignatureIndex(ctx, collection); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}

		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("Failed to disconnect from mongo", "error", err)
			}
		}

		return repository.NewTransfersDocumentRepository(logger, collection), closeFn, nil

	case auditBackendPostgres:
		pg, err := database.New(ctx, config.Audit.DatabaseURL,
			database.MaxPoolSize(config.Audit.PoolMax),
			database.ConnTimeout(config.Audit.ConnectTimeout),
			database.HealthCheckPeriod(config.Audit.HealthCheckPeriod),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connection failed: %w", err)
		}

		logger.Info("Running database migrations", "path", config.Audit.MigrationsPath)
		if err = database.RunMigrations(logger, config.Audit.DatabaseURL, config.Audit.MigrationsPath); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
		}

		return repository.NewTransfersRepository(logger, pg), pg.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown audit backend %q", ports.ErrAuditStoreMissing, config.Audit.Backend)
	}
}
