package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/dispatcher"
	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/application/service"
	"github.com/garyjia/contract-approvals/internal/application/workflow"
	"github.com/garyjia/contract-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/contract-approvals/internal/infrastructure/worker"
	"github.com/garyjia/contract-approvals/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	db           *database.DB
	txManager    *sqlite.DB
	repositories *RepositoryBundle
	cache        *CacheBundle

	// Infrastructure - External
	external *ExternalBundle

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.Engine
	services   *ServiceBundle

	// Workers
	workers *WorkerBundle

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Contract     port.ContractRepository
	History      port.ContractHistoryRepository
	Approval     port.ApprovalRepository
	Workflow     port.WorkflowRepository
	Rule         port.WorkflowRuleRepository
	Role         port.RoleRepository
	User         port.UserRepository
	Department   port.DepartmentRepository
	Delegation   port.DelegationRepository
	Notification port.NotificationRepository
	Reference    port.ReferenceRepository
	Document     port.DocumentRepository
	AISettings   port.AISettingsRepository
	ChatHistory  port.ChatHistoryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	References    service.ReferenceService
	Directory     service.DirectoryService
	Contracts     service.ContractService
	Workflows     service.WorkflowDefinitionService
	Router        service.ApprovalRouter
	Escalation    service.EscalationService
	Notifications service.NotificationService
	Assistant     service.AssistantService
	Documents     service.DocumentService
	Reports       service.ReportService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
	Workers    []worker.Status            `json:"workers,omitempty"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Model cache
// 3. External clients (Lark, LLM providers, documents, reports)
// 4. Event dispatcher and workflow engine
// 5. Application services
// 6. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initCache(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize model cache: %w", err)
	}

	if err := c.initExternalClients(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	if err := c.initDispatcherAndWorkflow(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize dispatcher and workflow: %w", err)
	}
	c.logger.Info("Dispatcher and workflow engine initialized")

	if err := c.initServices(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	if err := c.initWorkers(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %w", len(errs), errs[0])
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been initialized so far, newest first.
func (c *Container) teardown() []error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.Manager.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
		c.workers = nil
	}

	// in-flight handlers may still queue notifications, so the dispatcher
	// closes before the database
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
		c.dispatcher = nil
	}

	if c.cache != nil && c.cache.Closer != nil {
		if err := c.cache.Closer.Close(); err != nil {
			c.logger.Error("Failed to close model cache", zap.Error(err))
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	c.cache = nil

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.db = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	mark := func(name string, err error) {
		if err != nil {
			status.Components[name] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
			return
		}
		status.Components[name] = ComponentHealth{Healthy: true}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if c.db == nil {
		mark("database", fmt.Errorf("not initialized"))
	} else if err := c.db.PingContext(ctx); err != nil {
		mark("database", fmt.Errorf("ping failed: %w", err))
	} else {
		mark("database", nil)
	}

	switch {
	case c.cache == nil:
		mark("model_cache", fmt.Errorf("not initialized"))
	case c.cache.Ping != nil:
		mark("model_cache", c.cache.Ping(ctx))
	default:
		mark("model_cache", nil)
	}

	if c.dispatcher == nil {
		mark("dispatcher", fmt.Errorf("not initialized"))
	} else {
		mark("dispatcher", nil)
	}

	if c.workers == nil {
		mark("workers", fmt.Errorf("not initialized"))
	} else {
		status.Workers = c.workers.Manager.Statuses()
		if c.workers.Manager.IsRunning() {
			mark("workers", nil)
		} else {
			mark("workers", fmt.Errorf("not running"))
		}
	}

	messenger := ComponentHealth{Healthy: true, Message: "disabled"}
	if c.external != nil && c.external.Messenger != nil {
		messenger.Message = "enabled"
	}
	status.Components["lark"] = messenger

	return status
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.db = dbBundle.DB
	c.txManager = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		_ = c.db.Close()
		c.db = nil
		return err
	}

	c.repositories = repos
	return nil
}

func (c *Container) initCache() error {
	bundle, err := ProvideModelCache(c.ctx, &c.config.Cache, c.logger)
	if err != nil {
		return err
	}
	c.cache = bundle
	return nil
}

func (c *Container) initExternalClients() error {
	bundle, err := ProvideExternal(c.config, c.logger)
	if err != nil {
		return err
	}
	c.external = bundle
	return nil
}

func (c *Container) initDispatcherAndWorkflow() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	engine, err := ProvideWorkflowEngine(c.repositories, c.txManager, c.dispatcher, c.logger)
	if err != nil {
		return err
	}
	c.engine = engine

	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:     c.repositories,
		TxManager: c.txManager,
		Engine:    c.engine,
		Publisher: c.dispatcher,
		External:  c.external,
		Cache:     c.cache.Cache,
		Assistant: &c.config.Assistant,
		Worker:    &c.config.Worker,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	return nil
}

func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(c.services, &c.config.Worker, c.logger)
	if err != nil {
		return err
	}
	c.workers = workers

	SubscribeOutboxKick(c.dispatcher, workers.Outbox)

	if err := c.workers.Manager.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.txManager
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the contract lifecycle engine.
func (c *Container) WorkflowEngine() workflow.Engine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	if c.workers == nil {
		return nil
	}
	return c.workers.Manager
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the narrow Logger interfaces of the
// service, workflow and dispatcher packages.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

// LoggerAdapter wraps a zap logger for components that take key-value logging.
func LoggerAdapter(logger *zap.Logger) service.Logger {
	return &zapLoggerAdapter{logger: logger}
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
