// Package issues persists detected SEO defects. An assessment's findings
// land atomically per resource so a resource is never half-recorded.
package issues

import (
	"context"
	"strings"
	"time"

	"github.com/seopilot/core/internal/models"
	"github.com/seopilot/core/internal/modules/oracle"
	"github.com/seopilot/core/internal/modules/storefront"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Detail keys carrying the oracle's suggested replacement values.
const (
	DetailSuggestedTitle       = "suggested_title"
	DetailSuggestedDescription = "suggested_description"
	DetailSuggestedAltText     = "suggested_alt_text"
)

// MapSeverity narrows the oracle's three-level vocabulary into the store's
// four levels. Anything unrecognized lands on MEDIUM.
func MapSeverity(raw string) models.IssueSeverity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case oracle.SeverityCritical:
		return models.SeverityCritical
	case oracle.SeverityWarning:
		return models.SeverityHigh
	case oracle.SeverityInfo:
		return models.SeverityLow
	default:
		return models.SeverityMedium
	}
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger.Named("IssueStore")}
}

// StoreAssessment writes all of an assessment's findings for one product in
// a single transaction and returns the created rows. An empty assessment
// creates nothing.
func (s *Service) StoreAssessment(ctx context.Context, connectionID string, product storefront.Product, assessment *oracle.Assessment) ([]models.IssueModel, error) {
	if assessment == nil || len(assessment.Findings) == 0 {
		return nil, nil
	}

	details := models.JSONMap{"product_id": product.ID}
	if assessment.SuggestedTitle != "" {
		details[DetailSuggestedTitle] = assessment.SuggestedTitle
	}
	if assessment.SuggestedDescription != "" {
		details[DetailSuggestedDescription] = assessment.SuggestedDescription
	}
	if assessment.SuggestedAltText != "" {
		details[DetailSuggestedAltText] = assessment.SuggestedAltText
	}

	now := time.Now()
	batch := make([]models.IssueModel, 0, len(assessment.Findings))
	for _, finding := range assessment.Findings {
		batch = append(batch, models.IssueModel{
			ConnectionID:   connectionID,
			ProductID:      product.ID,
			Type:           finding.Type,
			Severity:       MapSeverity(finding.Severity),
			Title:          finding.Title,
			Description:    finding.Description,
			Recommendation: finding.Recommendation,
			TargetURL:      product.URL,
			Status:         models.IssueDetected,
			Details:        details,
			DetectedAt:     now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&batch).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("issues stored",
		zap.String("connection_id", connectionID),
		zap.String("product_id", product.ID),
		zap.Int("count", len(batch)),
	)
	return batch, nil
}

// ListOpen returns all DETECTED issues for a connection, newest first.
func (s *Service) ListOpen(ctx context.Context, connectionID string) ([]models.IssueModel, error) {
	var items []models.IssueModel
	err := s.db.WithContext(ctx).
		Where("connection_id = ? AND status = ?", connectionID, models.IssueDetected).
		Order("detected_at DESC").
		Find(&items).Error
	return items, err
}

// OpenTargetURLs returns the newest detection time per target URL among a
// connection's DETECTED issues. The pipeline's freshness index is built
// from this in one query instead of per-resource lookups. The newest-per-URL
// reduction happens in Go so the query stays portable across SQL drivers.
func (s *Service) OpenTargetURLs(ctx context.Context, connectionID string) (map[string]time.Time, error) {
	var rows []models.IssueModel
	err := s.db.WithContext(ctx).
		Select("target_url", "detected_at").
		Where("connection_id = ? AND status = ?", connectionID, models.IssueDetected).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	index := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		if current, ok := index[r.TargetURL]; !ok || r.DetectedAt.After(current) {
			index[r.TargetURL] = r.DetectedAt
		}
	}
	return index, nil
}

// ByIDs loads issues by primary key, scoped to a connection.
func (s *Service) ByIDs(ctx context.Context, connectionID string, ids []string) ([]models.IssueModel, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.IssueModel
	err := s.db.WithContext(ctx).
		Where("connection_id = ? AND id IN ?", connectionID, ids).
		Find(&items).Error
	return items, err
}
