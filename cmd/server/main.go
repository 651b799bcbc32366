package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/config"
	"github.com/garyjia/contract-approvals/internal/container"
	httpserver "github.com/garyjia/contract-approvals/internal/interfaces/http"
	"github.com/garyjia/contract-approvals/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	seedPath := flag.String("seed", "", "workflow seed file applied on startup (overrides workflow.seed_path)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "contract-approvals",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, *seedPath, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, seedPath string, logger *zap.Logger) error {
	logger.Info("Starting contract approvals service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Path))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	if seedPath == "" {
		seedPath = cfg.Workflow.SeedPath
	}
	if seedPath != "" {
		if err := seedWorkflows(ctx, c, seedPath, logger); err != nil {
			return err
		}
	}

	svc := c.Services()
	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			AllowedOrigin:   cfg.Server.AllowedOrigin,
		},
		httpserver.Services{
			References:    svc.References,
			Directory:     svc.Directory,
			Contracts:     svc.Contracts,
			Workflows:     svc.Workflows,
			Router:        svc.Router,
			Escalation:    svc.Escalation,
			Notifications: svc.Notifications,
			Assistant:     svc.Assistant,
			Documents:     svc.Documents,
			Reports:       svc.Reports,
		},
		func(ctx context.Context) (bool, interface{}) {
			status := c.Health(ctx)
			return status.Overall, status
		},
		container.LoggerAdapter(logger.Named("http")),
	)

	// Start blocks until a shutdown signal cancels ctx
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("Shutting down")
	return nil
}

func seedWorkflows(ctx context.Context, c *container.Container, path string, logger *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open workflow seed: %w", err)
	}
	defer f.Close()

	result, err := c.Services().Workflows.Seed(ctx, f)
	if err != nil {
		return fmt.Errorf("seed workflows from %s: %w", path, err)
	}

	logger.Info("Workflow seed applied",
		zap.String("path", path),
		zap.Int("roles_created", result.RolesCreated),
		zap.Int("workflows_created", result.WorkflowsCreated),
		zap.Int("workflows_skipped", result.WorkflowsSkipped),
		zap.Int("rules_created", result.RulesCreated))
	return nil
}
