// Package fixes applies corrected SEO values to the storefront and records
// each mutation as a reversible fix. A fix row exists only for writes the
// platform confirmed; an ambiguous write records nothing.
package fixes

import (
	"context"
	"errors"
	"time"

	"github.com/seopilot/core/internal/models"
	"github.com/seopilot/core/internal/modules/audit"
	"github.com/seopilot/core/internal/modules/issues"
	"github.com/seopilot/core/internal/modules/storefront"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNothingToApply means the issues carried no applicable suggestions.
	ErrNothingToApply = errors.New("no applicable field changes")
	// ErrRollbackExpired means the fix's rollback window has closed.
	ErrRollbackExpired = errors.New("rollback deadline has passed")
	// ErrAlreadyRolledBack means the fix was reverted before.
	ErrAlreadyRolledBack = errors.New("fix already rolled back")
)

// suggestionFields maps detail keys to the storefront fields they correct.
var suggestionFields = map[string]string{
	issues.DetailSuggestedTitle:       storefront.FieldSEOTitle,
	issues.DetailSuggestedDescription: storefront.FieldSEODescription,
	issues.DetailSuggestedAltText:     storefront.FieldImageAltText,
}

type Service struct {
	db     *gorm.DB
	client storefront.Client
	audit  *audit.Service
	logger *zap.Logger
}

func NewService(db *gorm.DB, client storefront.Client, auditSvc *audit.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, client: client, audit: auditSvc, logger: logger.Named("FixApplier")}
}

// BuildUpdates collects the field changes implied by a set of issues,
// dropping suggestions that match the product's current values.
func BuildUpdates(product storefront.Product, batch []models.IssueModel) map[string]interface{} {
	current := product.Fields()
	updates := map[string]interface{}{}
	for _, issue := range batch {
		for detailKey, field := range suggestionFields {
			raw, ok := issue.Details[detailKey]
			if !ok {
				continue
			}
			value, ok := raw.(string)
			if !ok || value == "" || value == current[field] {
				continue
			}
			updates[field] = value
		}
	}
	return updates
}

// Apply pushes all of a product's suggested corrections in one remote write
// and, only after the platform confirms it, records one fix per issue and
// transitions the issues to FIXED. All fixes for the batch share the same
// before/after snapshot pair.
func (s *Service) Apply(ctx context.Context, conn *models.ConnectionModel, product storefront.Product, batch []models.IssueModel, method models.FixMethod, actor string) ([]models.FixModel, error) {
	updates := BuildUpdates(product, batch)
	if len(updates) == 0 {
		return nil, ErrNothingToApply
	}

	current := product.Fields()
	before := models.JSONMap{}
	after := models.JSONMap{}
	for field, value := range updates {
		before[field] = current[field]
		after[field] = value
	}

	if err := s.client.UpdateProduct(ctx, conn, product.ID, updates); err != nil {
		s.logger.Warn("storefront write failed, nothing recorded",
			zap.String("connection_id", conn.ID),
			zap.String("product_id", product.ID),
			zap.Error(err),
		)
		return nil, err
	}

	now := time.Now()
	created := make([]models.FixModel, 0, len(batch))
	for _, issue := range batch {
		created = append(created, models.FixModel{
			ConnectionID:     conn.ID,
			IssueID:          issue.ID,
			ProductID:        product.ID,
			Type:             issue.Type,
			Description:      issue.Title,
			Changes:          models.JSONMap(updates),
			BeforeState:      before,
			AfterState:       after,
			TargetURL:        issue.TargetURL,
			Method:           method,
			Status:           models.FixApplied,
			AppliedAt:        now,
			RollbackDeadline: now.Add(models.RollbackWindow),
		})
	}

	ids := make([]string, 0, len(batch))
	for _, issue := range batch {
		ids = append(ids, issue.ID)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		return tx.Model(&models.IssueModel{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":   models.IssueFixed,
				"fixed_at": now,
			}).Error
	})
	if err != nil {
		// The remote write landed but bookkeeping failed; surface loudly.
		s.logger.Error("fix recording failed after confirmed write",
			zap.String("connection_id", conn.ID),
			zap.String("product_id", product.ID),
			zap.Error(err),
		)
		return nil, err
	}

	for _, fix := range created {
		s.audit.Append(ctx, conn.ID, actor, audit.ActionFixApplied, "fix", fix.ID, models.JSONMap{
			"issue_id":   fix.IssueID,
			"product_id": fix.ProductID,
			"changes":    fix.Changes,
			"method":     string(method),
		})
	}

	s.logger.Info("fixes applied",
		zap.String("connection_id", conn.ID),
		zap.String("product_id", product.ID),
		zap.Int("count", len(created)),
	)
	return created, nil
}

// Rollback writes a fix's before-state back to the storefront, marks the
// fix ROLLED_BACK and reopens its issue. Rejected after the deadline.
func (s *Service) Rollback(ctx context.Context, conn *models.ConnectionModel, fixID, actor string) (*models.FixModel, error) {
	var fix models.FixModel
	if err := s.db.WithContext(ctx).First(&fix, "id = ? AND connection_id = ?", fixID, conn.ID).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	if fix.Status == models.FixRolledBack {
		return nil, ErrAlreadyRolledBack
	}
	if !fix.Revertible(now) {
		return nil, ErrRollbackExpired
	}

	if err := s.client.UpdateProduct(ctx, conn, fix.ProductID, fix.BeforeState); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&fix).Update("status", models.FixRolledBack).Error; err != nil {
			return err
		}
		return tx.Model(&models.IssueModel{}).
			Where("id = ?", fix.IssueID).
			Updates(map[string]interface{}{
				"status":   models.IssueDetected,
				"fixed_at": nil,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	s.audit.Append(ctx, conn.ID, actor, audit.ActionFixReverted, "fix", fix.ID, models.JSONMap{
		"issue_id":   fix.IssueID,
		"product_id": fix.ProductID,
		"restored":   fix.BeforeState,
	})

	fix.Status = models.FixRolledBack
	return &fix, nil
}
