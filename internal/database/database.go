// Package database provides the feedback storage backends and the gateway that chooses between them.
package database

import (
	"context"

	"feedbackapp/internal/config"
	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// Manager opens the storage backends at startup and owns the primary client.
type Manager struct {
	logger  *observability.Logger
	metrics *observability.FeedbackMetrics
	mongo   *MongoStore
	file    *FileStore
}

// NewManager creates a new database manager with the provided logger
func NewManager(logger *observability.Logger, metrics *observability.FeedbackMetrics) *Manager {
	if logger == nil {
		logger = observability.NewLogger(nil)
	}
	return &Manager{
		logger:  logger,
		metrics: metrics,
	}
}

// Open decides the primary backend once for the life of the process: the document store
// when a URI is configured and the deployment answers a ping, otherwise the fallback file.
// When the fallback file is the active backend it is created if missing.
func (dm *Manager) Open(ctx context.Context, cfg config.DatabaseConfig) (*Gateway, error) {
	return dm.open(ctx, cfg, true)
}

// OpenReadOnly chooses the backend like Open but never creates the fallback file.
// A missing file reads as empty.
func (dm *Manager) OpenReadOnly(ctx context.Context, cfg config.DatabaseConfig) (*Gateway, error) {
	return dm.open(ctx, cfg, false)
}

func (dm *Manager) open(ctx context.Context, cfg config.DatabaseConfig, ensureFile bool) (result0 *Gateway, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "Open",
		attribute.Bool("db.primary_configured", cfg.MongoDBURI != ""),
		attribute.String("file.path", cfg.FallbackFile),
		attribute.Bool("file.ensure", ensureFile),
	)
	defer observability.FinishSpan(span, &err)

	dm.file = NewFileStore(cfg.FallbackFile, dm.logger)

	usingPrimary := false
	switch {
	case cfg.MongoDBURI == "":
		dm.logger.Warn(ctx, "MongoDB URI not set, using JSON file storage", map[string]interface{}{
			"path": cfg.FallbackFile,
		})
	default:
		store, connectErr := ConnectMongo(ctx, cfg, dm.logger)
		if connectErr != nil {
			dm.logger.Warn(ctx, "MongoDB connection failed, falling back to JSON file storage", map[string]interface{}{
				"error": connectErr.Error(),
				"path":  cfg.FallbackFile,
			})
			break
		}
		dm.mongo = store
		usingPrimary = true
		dm.logger.Info(ctx, "MongoDB connected successfully", map[string]interface{}{
			"database":   cfg.Name,
			"collection": cfg.Collection,
		})
	}

	if !usingPrimary && ensureFile {
		if err := dm.file.EnsureExists(ctx); err != nil {
			return nil, contextutils.WrapError(err, "failed to initialize fallback file")
		}
	}

	span.SetAttributes(observability.AttributeBackend(backendName(usingPrimary)))

	var primary PrimaryStore
	if dm.mongo != nil {
		primary = dm.mongo
	}
	return NewGateway(primary, dm.file, usingPrimary, dm.logger).WithMetrics(dm.metrics), nil
}

// Mongo returns the primary store, or nil when it was not opened
func (dm *Manager) Mongo() *MongoStore {
	return dm.mongo
}

// File returns the fallback store, or nil before Open
func (dm *Manager) File() *FileStore {
	return dm.file
}

// Close releases the primary client if one was opened
func (dm *Manager) Close(ctx context.Context) error {
	if dm.mongo == nil {
		return nil
	}
	return dm.mongo.Close(ctx)
}

func backendName(usingPrimary bool) string {
	if usingPrimary {
		return BackendMongo
	}
	return BackendFile
}
