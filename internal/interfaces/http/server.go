// Package http exposes the application services over a JSON REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/contract-approvals/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthFunc reports readiness and per-component details for GET /health
type HealthFunc func(ctx context.Context) (healthy bool, details interface{})

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigin   string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigin:   "*",
	}
}

// Services are the application services reachable over HTTP
type Services struct {
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

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, health HealthFunc, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config: config,
		router: gin.New(),
		logger: logger,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(corsMiddleware(config.AllowedOrigin))

	s.setupRoutes(NewHandlers(services, health, logger))
	return s
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func corsMiddleware(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes(h *Handlers) {
	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/references", h.ListReferences)
		api.POST("/references", h.CreateReference)
		api.GET("/references/:id", h.GetReference)
		api.PUT("/references/:id", h.UpdateReference)
		api.DELETE("/references/:id", h.DeleteReference)

		api.GET("/departments", h.ListDepartments)
		api.POST("/departments", h.CreateDepartment)
		api.GET("/departments/:id", h.GetDepartment)
		api.PUT("/departments/:id", h.UpdateDepartment)
		api.DELETE("/departments/:id", h.DeleteDepartment)

		api.GET("/users", h.ListUsers)
		api.POST("/users", h.CreateUser)
		api.GET("/users/:id", h.GetUser)
		api.PUT("/users/:id", h.UpdateUser)
		api.DELETE("/users/:id", h.DeactivateUser)

		api.GET("/roles", h.ListRoles)
		api.POST("/roles", h.CreateRole)

		api.GET("/delegations", h.ListDelegations)
		api.POST("/delegations", h.CreateDelegation)
		api.DELETE("/delegations/:id", h.DeactivateDelegation)

		api.GET("/contracts", h.ListContracts)
		api.POST("/contracts", h.CreateContract)
		api.GET("/contracts/:id", h.GetContract)
		api.PUT("/contracts/:id", h.UpdateContract)
		api.DELETE("/contracts/:id", h.DeleteContract)
		api.POST("/contracts/:id/submit", h.SubmitContract)
		api.POST("/contracts/:id/sign", h.SignContract)
		api.POST("/contracts/:id/archive", h.ArchiveContract)
		api.POST("/contracts/:id/resubmit", h.ResubmitContract)
		api.GET("/contracts/:id/history", h.ContractHistory)
		api.GET("/contracts/:id/approvals", h.ContractApprovals)

		api.GET("/documents", h.ListDocuments)
		api.POST("/documents", h.RegisterDocument)
		api.GET("/documents/:id", h.GetDocument)
		api.DELETE("/documents/:id", h.DeleteDocument)

		api.GET("/workflows", h.ListWorkflows)
		api.POST("/workflows", h.CreateWorkflow)
		api.GET("/workflows/:id", h.GetWorkflow)
		api.PUT("/workflows/:id", h.UpdateWorkflow)
		api.DELETE("/workflows/:id", h.DeleteWorkflow)

		api.GET("/workflow-rules", h.ListRules)
		api.POST("/workflow-rules", h.CreateRule)
		api.DELETE("/workflow-rules/:id", h.DeleteRule)

		api.GET("/approvals", h.ListApprovals)
		api.POST("/approvals/auto-assign", h.AutoAssign)
		api.POST("/approvals/escalate", h.Escalate)
		api.POST("/approvals/:id/decision", h.Decide)

		api.GET("/notifications", h.ListNotifications)
		api.POST("/notifications/read-all", h.MarkAllNotificationsRead)
		api.POST("/notifications/:id/read", h.MarkNotificationRead)

		api.GET("/ai-settings", h.GetAISettings)
		api.PUT("/ai-settings", h.SaveAISettings)
		api.POST("/ai-settings/test", h.TestAIConnection)

		api.POST("/ai-assistant", h.Chat)
		api.GET("/ai-assistant/models", h.ListModels)
		api.GET("/ai-assistant/history", h.ChatHistory)
		api.DELETE("/ai-assistant/history", h.ClearChatHistory)
		api.GET("/ai-assistant/stats", h.AssistantStats)
		api.POST("/ai-assistant/stats/reset", h.ResetAssistantStats)

		api.POST("/reports/contracts", h.GenerateRegistry)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.Address(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
