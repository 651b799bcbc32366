package container

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/dispatcher"
	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/application/service"
	"github.com/garyjia/contract-approvals/internal/application/workflow"
	"github.com/garyjia/contract-approvals/internal/domain/event"
	"github.com/garyjia/contract-approvals/internal/infrastructure/cache"
	"github.com/garyjia/contract-approvals/internal/infrastructure/document"
	infraLark "github.com/garyjia/contract-approvals/internal/infrastructure/external/lark"
	"github.com/garyjia/contract-approvals/internal/infrastructure/external/llm"
	"github.com/garyjia/contract-approvals/internal/infrastructure/persistence/repository"
	"github.com/garyjia/contract-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/contract-approvals/internal/infrastructure/report"
	"github.com/garyjia/contract-approvals/internal/infrastructure/storage"
	"github.com/garyjia/contract-approvals/internal/infrastructure/worker"
	"github.com/garyjia/contract-approvals/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// CacheBundle holds the model cache and, for networked backends, its closer.
type CacheBundle struct {
	Cache  port.ModelCache
	Closer io.Closer
	Ping   func(ctx context.Context) error
}

// ExternalBundle holds clients for systems outside the process.
type ExternalBundle struct {
	// Messenger is nil when Lark credentials are not configured
	Messenger      port.MessageSender
	LLMFactory     port.LLMProviderFactory
	Extractor      port.TextExtractor
	RegistryWriter port.RegistryWriter
	FileStorage    port.FileStorage
}

// ProvideDatabase opens the SQLite database and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	sqlDB := db.DB
	return &RepositoryBundle{
		Contract:     repository.NewContractRepository(sqlDB, logger),
		History:      repository.NewContractHistoryRepository(sqlDB, logger),
		Approval:     repository.NewApprovalRepository(sqlDB, logger),
		Workflow:     repository.NewWorkflowRepository(sqlDB, logger),
		Rule:         repository.NewWorkflowRuleRepository(sqlDB, logger),
		Role:         repository.NewRoleRepository(sqlDB, logger),
		User:         repository.NewUserRepository(sqlDB, logger),
		Department:   repository.NewDepartmentRepository(sqlDB, logger),
		Delegation:   repository.NewDelegationRepository(sqlDB, logger),
		Notification: repository.NewNotificationRepository(sqlDB, logger),
		Reference:    repository.NewReferenceRepository(sqlDB, logger),
		Document:     repository.NewDocumentRepository(sqlDB, logger),
		AISettings:   repository.NewAISettingsRepository(sqlDB, logger),
		ChatHistory:  repository.NewChatHistoryRepository(sqlDB, logger),
	}, nil
}

// ProvideModelCache returns the Redis cache when a URL is configured and the
// in-process cache otherwise.
func ProvideModelCache(ctx context.Context, cfg *CacheConfig, logger *zap.Logger) (*CacheBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cache config is required")
	}

	if cfg.RedisURL == "" {
		logger.Info("Using in-memory model cache")
		memory := cache.NewMemoryModelCache()
		return &CacheBundle{Cache: memory, Closer: memory}, nil
	}

	redisCache, err := cache.NewRedisModelCache(ctx, cfg.RedisURL, logger)
	if err != nil {
		return nil, err
	}
	return &CacheBundle{
		Cache:  redisCache,
		Closer: redisCache,
		Ping:   redisCache.Ping,
	}, nil
}

// ProvideExternal creates the messenger, LLM factory, document extractor,
// registry writer and file storage.
func ProvideExternal(cfg *Config, logger *zap.Logger) (*ExternalBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &ExternalBundle{
		LLMFactory:     llm.NewFactory(cfg.Assistant.RequestTimeout, logger),
		Extractor:      document.NewExtractor(cfg.Storage.MaxPages, logger),
		RegistryWriter: report.NewRegistryWriter(logger),
		FileStorage:    storage.NewLocalFileStorage(cfg.Storage.BaseDir, logger),
	}

	larkCfg := infraLark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
		BaseURL:   cfg.Lark.BaseURL,
		Timeout:   cfg.Lark.Timeout,
	}
	if larkCfg.Enabled() {
		bundle.Messenger = infraLark.NewMessenger(infraLark.NewSDKClient(larkCfg, logger), logger)
	} else {
		logger.Info("Lark credentials not configured, notifications stay in-app")
	}

	return bundle, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
	), nil
}

// ProvideWorkflowEngine creates the contract lifecycle engine and subscribes
// its audit handler to every committed event.
func ProvideWorkflowEngine(repos *RepositoryBundle, tx port.TransactionManager, disp dispatcher.Dispatcher, logger *zap.Logger) (workflow.Engine, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if disp == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	engine := workflow.NewEngine(repos.Contract, repos.History, tx, &zapLoggerAdapter{logger: logger.Named("workflow")},
		workflow.WithApprovals(repos.Approval))
	workflow.Subscribe(disp, engine)
	return engine, nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Engine    workflow.Engine
	Publisher service.EventPublisher
	External  *ExternalBundle
	Cache     port.ModelCache
	Assistant *AssistantConfig
	Worker    *WorkerConfig
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.External == nil || deps.Assistant == nil || deps.Worker == nil {
		return nil, fmt.Errorf("external clients and configuration are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos

	prompts := service.DefaultAssistantPrompts()
	if deps.Assistant.PromptsPath != "" {
		loaded, err := service.LoadAssistantPrompts(deps.Assistant.PromptsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load prompts: %w", err)
		}
		prompts = loaded
	}

	providers := make(map[string]service.ProviderDefaults, len(deps.Assistant.Providers))
	for name, p := range deps.Assistant.Providers {
		providers[name] = service.ProviderDefaults{BaseURL: p.BaseURL, APIKey: p.APIKey, Model: p.Model}
	}

	directory := service.NewDirectoryService(repos.User, repos.Role, repos.Department, repos.Delegation, serviceLogger)

	return &ServiceBundle{
		References: service.NewReferenceService(repos.Reference, serviceLogger),
		Directory:  directory,
		Contracts: service.NewContractService(
			repos.Contract,
			repos.History,
			repos.Approval,
			repos.Reference,
			deps.Engine,
			deps.TxManager,
			deps.Publisher,
			serviceLogger,
		),
		Workflows: service.NewWorkflowDefinitionService(
			repos.Workflow,
			repos.Rule,
			repos.Role,
			repos.User,
			deps.TxManager,
			serviceLogger,
		),
		Router: service.NewApprovalRouter(
			repos.Contract,
			repos.Approval,
			repos.Workflow,
			repos.Rule,
			repos.User,
			repos.Notification,
			directory,
			deps.Engine,
			deps.TxManager,
			deps.Publisher,
			serviceLogger,
		),
		Escalation: service.NewEscalationService(
			repos.Approval,
			repos.Contract,
			repos.Notification,
			deps.TxManager,
			deps.Publisher,
			serviceLogger,
		),
		Notifications: service.NewNotificationService(
			repos.Notification,
			repos.User,
			deps.External.Messenger,
			service.DeliveryConfig{
				MaxAttempts: deps.Worker.OutboxMaxAttempts,
				BatchSize:   deps.Worker.OutboxBatchSize,
			},
			serviceLogger,
		),
		Assistant: service.NewAssistantService(
			repos.AISettings,
			repos.ChatHistory,
			repos.Contract,
			repos.Document,
			deps.External.LLMFactory,
			deps.Cache,
			service.NewAssistantStats(),
			prompts,
			service.AssistantConfig{
				DefaultProvider: deps.Assistant.DefaultProvider,
				Providers:       providers,
				Temperature:     deps.Assistant.Temperature,
				MaxTokens:       deps.Assistant.MaxTokens,
				RequestTimeout:  deps.Assistant.RequestTimeout,
				ModelCacheTTL:   deps.Assistant.ModelCacheTTL,
				HistoryLimit:    deps.Assistant.HistoryLimit,
			},
			serviceLogger,
		),
		Documents: service.NewDocumentService(
			repos.Document,
			repos.Contract,
			deps.External.FileStorage,
			deps.External.Extractor,
			serviceLogger,
		),
		Reports: service.NewReportService(
			repos.Contract,
			repos.Approval,
			deps.External.FileStorage,
			deps.External.RegistryWriter,
			serviceLogger,
		),
	}, nil
}

// WorkerBundle holds the worker manager and the outbox worker it runs.
type WorkerBundle struct {
	Manager *worker.Manager
	Outbox  *worker.OutboxWorker
}

// ProvideWorkers creates and registers all background workers.
// Workers are registered but not started.
func ProvideWorkers(services *ServiceBundle, cfg *WorkerConfig, logger *zap.Logger) (*WorkerBundle, error) {
	if services == nil {
		return nil, fmt.Errorf("services are required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewManager(logger)

	escalation := worker.NewEscalationWorker(worker.PeriodicConfig{
		Interval:   cfg.EscalationInterval,
		RunOnStart: true,
	}, services.Escalation, logger)
	manager.Register(escalation)

	outbox := worker.NewOutboxWorker(worker.PeriodicConfig{
		Interval:   cfg.OutboxInterval,
		RunOnStart: true,
	}, services.Notifications, logger)
	manager.Register(outbox)

	return &WorkerBundle{Manager: manager, Outbox: outbox}, nil
}

// outboxKickEvents queue notifications inside their transaction, so the
// outbox is drained right after they commit instead of waiting for the next tick.
var outboxKickEvents = []event.Type{
	event.TypeStepActivated,
	event.TypeStepSkipped,
	event.TypeApprovalEscalated,
	event.TypeContractApproved,
	event.TypeContractRejected,
}

// SubscribeOutboxKick triggers an outbox run after events that queue notifications.
func SubscribeOutboxKick(d dispatcher.Dispatcher, outbox *worker.OutboxWorker) {
	kick := func(ctx context.Context, evt *event.Event) error {
		outbox.Trigger()
		return nil
	}
	for _, t := range outboxKickEvents {
		d.SubscribeNamed(t, "outbox-kick", kick)
	}
}
