// Package service holds the business operations behind the HTTP gateway:
// users and carts, the product/category catalog, and the order engine.
// Every service receives its dependencies at construction; there is no
// package-level database or cache state.
package service

import (
	"context"
	"time"

	"github.com/example/storefront/pkg/models"
	"go.uber.org/zap"
)

// ProductCache is the cache-aside store for catalog reads. Implemented by
// repository.RedisRepository; nil disables caching.
type ProductCache interface {
	GetProductCache(ctx context.Context, productID string) (*models.Product, error)
	CacheProduct(ctx context.Context, product *models.Product) error
	InvalidateProducts(ctx context.Context, productIDs ...string) error
}

// AuditLogger records mutations for offline inspection. Implemented by
// repository.MongoRepository; nil disables auditing.
type AuditLogger interface {
	RecordAction(ctx context.Context, action, entityID string, data map[string]interface{}) error
}

// recordAudit writes the audit entry off the request path; audit failures
// are logged, never surfaced to the caller.
func recordAudit(audit AuditLogger, logger *zap.Logger, action, entityID string, data map[string]interface{}) {
	if audit == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := audit.RecordAction(ctx, action, entityID, data); err != nil {
			logger.Warn("Failed to record audit log",
				zap.String("action", action),
				zap.String("entity_id", entityID),
				zap.Error(err))
		}
	}()
}
