package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sitemedic/sitemedic/pkg/db"
)

// ViewAuditStore defines the database operations needed to review audit history
type ViewAuditStore interface {
	ListAuditLog(ctx context.Context, orgID string, limit int) ([]db.AuditLogEntry, error)
}

// ViewAudit returns the most recent pipeline runs for an organisation,
// newest first
func ViewAudit(ctx context.Context, store ViewAuditStore, logger *zap.Logger, orgID string, limit int) ([]db.AuditLogEntry, error) {
	if orgID == "" {
		return nil, fmt.Errorf("organisation id is required")
	}
	if limit <= 0 {
		limit = 20
	}

	logger.Debug("Fetching audit log", zap.String("org_id", orgID), zap.Int("limit", limit))

	entries, err := store.ListAuditLog(ctx, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audit log: %w", err)
	}

	logger.Debug("Fetched audit entries", zap.Int("count", len(entries)))
	return entries, nil
}
