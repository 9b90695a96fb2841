// Package audit keeps an append-only trail of who changed what. Entries are
// never updated or deleted.
package audit

import (
	"context"

	"github.com/seopilot/core/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Actions recorded by the pipeline and review surfaces.
const (
	ActionPipelineRun  = "pipeline.run"
	ActionIssuesStored = "issues.stored"
	ActionFixApplied   = "fix.applied"
	ActionFixReverted  = "fix.reverted"
	ActionPlanCreated  = "plan.created"
	ActionPlanUpdated  = "plan.updated"
	ActionPlanApproved = "plan.approved"
	ActionPlanRejected = "plan.rejected"
)

// ActorSystem marks entries produced by the pipeline itself.
const ActorSystem = "system"

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger.Named("Audit")}
}

// Append writes one entry. Audit failures are logged but do not fail the
// audited operation.
func (s *Service) Append(ctx context.Context, connectionID, actor, action, resourceType, resourceID string, details models.JSONMap) {
	if actor == "" {
		actor = ActorSystem
	}
	entry := models.AuditLogModel{
		ConnectionID: connectionID,
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logger.Error("audit append failed",
			zap.String("action", action),
			zap.String("resource_id", resourceID),
			zap.Error(err),
		)
	}
}
