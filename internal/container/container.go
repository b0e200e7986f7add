package container

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/veridoc/signflow/internal/application/port"
	"github.com/veridoc/signflow/internal/application/service"
	"github.com/veridoc/signflow/internal/config"
	"github.com/veridoc/signflow/internal/infrastructure/external/notify"
	"github.com/veridoc/signflow/internal/infrastructure/external/signing"
	"github.com/veridoc/signflow/internal/infrastructure/persistence/repository"
	"github.com/veridoc/signflow/internal/infrastructure/persistence/sqlite"
	"github.com/veridoc/signflow/pkg/database"
)

// Container wires all application dependencies. Collaborator clients are
// constructed once at startup and injected, never reached for as ambient
// singletons.
type Container struct {
	config *config.Config
	logger *zap.Logger

	sqlDB     *sql.DB
	txManager *sqlite.DB

	flowRepo     port.FlowRepository
	documentRepo port.DocumentRepository
	userRepo     port.UserRepository
	auditRepo    port.AuditRepository

	signingClient *signing.Client
	notifyClient  *notify.Client

	flowService         service.FlowService
	notificationService service.NotificationService
	auditService        service.AuditService
}

// New builds the full dependency graph: database, repositories, external
// clients, then services.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	sqlDB, err := database.Open(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	migrator := database.NewMigrator(sqlDB, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	c := &Container{
		config:    cfg,
		logger:    logger,
		sqlDB:     sqlDB,
		txManager: sqlite.NewDB(sqlDB, logger),
	}

	c.flowRepo = repository.NewFlowRepository(sqlDB, logger)
	c.documentRepo = repository.NewDocumentRepository(sqlDB, logger)
	c.userRepo = repository.NewUserRepository(sqlDB, logger)
	c.auditRepo = repository.NewAuditRepository(sqlDB, logger)

	c.signingClient = signing.NewClient(signing.Config{
		BaseURL: cfg.Signing.BaseURL,
		APIKey:  cfg.Signing.APIKey,
		Timeout: cfg.Signing.Timeout,
	}, logger)
	c.notifyClient = notify.NewClient(notify.Config{
		BaseURL: cfg.Notification.BaseURL,
		APIKey:  cfg.Notification.APIKey,
		Timeout: cfg.Notification.Timeout,
	}, logger)

	serviceLogger := &zapLoggerAdapter{logger: logger}
	c.auditService = service.NewAuditService(c.auditRepo, serviceLogger)
	c.notificationService = service.NewNotificationService(c.notifyClient, cfg.Notification.UIBaseURL, serviceLogger)
	c.flowService = service.NewFlowService(
		c.flowRepo,
		c.documentRepo,
		c.userRepo,
		c.txManager,
		c.signingClient,
		c.notificationService,
		c.auditService,
		serviceLogger,
	)

	return c, nil
}

// Close releases held resources
func (c *Container) Close() error {
	c.logger.Info("Closing container")
	return c.sqlDB.Close()
}

// FlowService returns the signature flow engine
func (c *Container) FlowService() service.FlowService {
	return c.flowService
}

// AuditService returns the audit trail service
func (c *Container) AuditService() service.AuditService {
	return c.auditService
}

// Logger returns the container's logger
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
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
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
