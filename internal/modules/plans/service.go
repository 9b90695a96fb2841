// Package plans stages fixes for human review. A connection has at most one
// PENDING plan; new findings fold into it instead of creating more.
package plans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seopilot/core/internal/models"
	"github.com/seopilot/core/internal/modules/audit"
	"github.com/seopilot/core/internal/modules/fixes"
	"github.com/seopilot/core/internal/modules/storefront"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNoPendingPlan means the connection has nothing awaiting review.
var ErrNoPendingPlan = errors.New("no pending plan for connection")

type Service struct {
	db      *gorm.DB
	applier *fixes.Service
	client  storefront.Client
	audit   *audit.Service
	logger  *zap.Logger
}

func NewService(db *gorm.DB, applier *fixes.Service, client storefront.Client, auditSvc *audit.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, applier: applier, client: client, audit: auditSvc, logger: logger.Named("PlanAggregator")}
}

// AddToPlan folds a batch of staged issues into the connection's pending
// plan, creating it first if none exists. The unique index on PendingKey
// makes concurrent creators converge on one row.
func (s *Service) AddToPlan(ctx context.Context, conn *models.ConnectionModel, batch []models.IssueModel) (*models.PendingPlanModel, error) {
	if len(batch) == 0 {
		return nil, errors.New("empty issue batch")
	}

	plan, created, err := s.findOrCreatePending(ctx, conn)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(batch))
	for _, issue := range batch {
		ids = append(ids, issue.ID)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.IssueModel{}).
			Where("id IN ?", ids).
			Update("plan_id", plan.ID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.IssueModel{}).
			Where("plan_id = ?", plan.ID).
			Count(&count).Error; err != nil {
			return err
		}

		var linked []models.IssueModel
		if err := tx.Where("plan_id = ?", plan.ID).Find(&linked).Error; err != nil {
			return err
		}

		plan.IssueCount = int(count)
		plan.Description = describePlan(linked)
		plan.EstimatedImpact = estimateImpact(linked)
		return tx.Model(plan).Updates(map[string]interface{}{
			"issue_count":      plan.IssueCount,
			"description":      plan.Description,
			"estimated_impact": plan.EstimatedImpact,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	action := audit.ActionPlanUpdated
	if created {
		action = audit.ActionPlanCreated
	}
	s.audit.Append(ctx, conn.ID, audit.ActorSystem, action, "plan", plan.ID, models.JSONMap{
		"issue_count": plan.IssueCount,
		"added":       len(batch),
	})
	return plan, nil
}

func (s *Service) findOrCreatePending(ctx context.Context, conn *models.ConnectionModel) (*models.PendingPlanModel, bool, error) {
	var plan models.PendingPlanModel
	err := s.db.WithContext(ctx).First(&plan, "pending_key = ?", conn.ID).Error
	if err == nil {
		return &plan, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	key := conn.ID
	plan = models.PendingPlanModel{
		ConnectionID: conn.ID,
		Title:        fmt.Sprintf("SEO remediation plan for %s", conn.Name),
		Status:       models.PlanPending,
		PendingKey:   &key,
	}
	if err := s.db.WithContext(ctx).Create(&plan).Error; err != nil {
		// Lost the race; the winner's row carries the pending key.
		var existing models.PendingPlanModel
		if ferr := s.db.WithContext(ctx).First(&existing, "pending_key = ?", conn.ID).Error; ferr == nil {
			return &existing, false, nil
		}
		return nil, false, err
	}
	return &plan, true, nil
}

// GetPending returns the connection's pending plan with its issues.
func (s *Service) GetPending(ctx context.Context, connectionID string) (*models.PendingPlanModel, []models.IssueModel, error) {
	var plan models.PendingPlanModel
	err := s.db.WithContext(ctx).First(&plan, "pending_key = ?", connectionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNoPendingPlan
	}
	if err != nil {
		return nil, nil, err
	}

	var linked []models.IssueModel
	if err := s.db.WithContext(ctx).
		Where("plan_id = ?", plan.ID).
		Order("detected_at DESC").
		Find(&linked).Error; err != nil {
		return nil, nil, err
	}
	return &plan, linked, nil
}

// ApprovalReport summarizes what an approval managed to apply.
type ApprovalReport struct {
	Plan          *models.PendingPlanModel `json:"plan"`
	FixesApplied  int                      `json:"fixes_applied"`
	IssuesSkipped int                      `json:"issues_skipped"`
	Failures      []string                 `json:"failures,omitempty"`
}

// Approve drains the pending plan through the fix applier, one batched
// write per product. Resource failures are contained; their issues stay
// DETECTED for the next run. The plan leaves the pending state either way.
func (s *Service) Approve(ctx context.Context, conn *models.ConnectionModel, actor string) (*ApprovalReport, error) {
	plan, linked, err := s.GetPending(ctx, conn.ID)
	if err != nil {
		return nil, err
	}

	byProduct := map[string][]models.IssueModel{}
	for _, issue := range linked {
		if issue.Status != models.IssueDetected {
			continue
		}
		byProduct[issue.ProductID] = append(byProduct[issue.ProductID], issue)
	}

	report := &ApprovalReport{Plan: plan}
	for productID, batch := range byProduct {
		product, err := s.client.GetProduct(ctx, conn, productID)
		if err != nil {
			report.IssuesSkipped += len(batch)
			report.Failures = append(report.Failures, fmt.Sprintf("product %s: %v", productID, err))
			s.logger.Warn("plan approval skipped product",
				zap.String("connection_id", conn.ID),
				zap.String("product_id", productID),
				zap.Error(err),
			)
			continue
		}

		applied, err := s.applier.Apply(ctx, conn, *product, batch, models.FixManual, actor)
		if err != nil {
			report.IssuesSkipped += len(batch)
			report.Failures = append(report.Failures, fmt.Sprintf("product %s: %v", productID, err))
			continue
		}
		report.FixesApplied += len(applied)
	}

	if err := s.review(ctx, plan, models.PlanApproved); err != nil {
		return nil, err
	}
	report.Plan = plan

	s.audit.Append(ctx, conn.ID, actor, audit.ActionPlanApproved, "plan", plan.ID, models.JSONMap{
		"fixes_applied":  report.FixesApplied,
		"issues_skipped": report.IssuesSkipped,
	})
	return report, nil
}

// Reject closes the pending plan without touching the storefront. The
// issues stay DETECTED and are unlinked so a later run can stage them
// again.
func (s *Service) Reject(ctx context.Context, conn *models.ConnectionModel, actor string) (*models.PendingPlanModel, error) {
	plan, _, err := s.GetPending(ctx, conn.ID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.IssueModel{}).
			Where("plan_id = ? AND status = ?", plan.ID, models.IssueDetected).
			Update("plan_id", nil).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.review(ctx, plan, models.PlanRejected); err != nil {
		return nil, err
	}

	s.audit.Append(ctx, conn.ID, actor, audit.ActionPlanRejected, "plan", plan.ID, nil)
	return plan, nil
}

// review moves a plan out of the pending state; clearing PendingKey frees
// the slot for the connection's next plan.
func (s *Service) review(ctx context.Context, plan *models.PendingPlanModel, status models.PlanStatus) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(plan).Updates(map[string]interface{}{
		"status":      status,
		"reviewed_at": now,
		"pending_key": nil,
	}).Error
	if err != nil {
		return err
	}
	plan.Status = status
	plan.ReviewedAt = &now
	plan.PendingKey = nil
	return nil
}

func describePlan(linked []models.IssueModel) string {
	counts := map[models.IssueSeverity]int{}
	for _, issue := range linked {
		counts[issue.Severity]++
	}
	return fmt.Sprintf("%d issues staged for review: %d critical, %d high, %d medium, %d low",
		len(linked),
		counts[models.SeverityCritical],
		counts[models.SeverityHigh],
		counts[models.SeverityMedium],
		counts[models.SeverityLow],
	)
}

func estimateImpact(linked []models.IssueModel) string {
	counts := map[models.IssueSeverity]int{}
	for _, issue := range linked {
		counts[issue.Severity]++
	}
	switch {
	case counts[models.SeverityCritical] > 0:
		return "high"
	case counts[models.SeverityHigh] > 0:
		return "medium"
	default:
		return "low"
	}
}
