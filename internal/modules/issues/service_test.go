package issues

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/seopilot/core/internal/models"
	"github.com/seopilot/core/internal/modules/oracle"
	"github.com/seopilot/core/internal/modules/storefront"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.IssueModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMapSeverity(t *testing.T) {
	cases := map[string]models.IssueSeverity{
		"critical": models.SeverityCritical,
		"CRITICAL": models.SeverityCritical,
		"warning":  models.SeverityHigh,
		"info":     models.SeverityLow,
		"severe":   models.SeverityMedium,
		"":         models.SeverityMedium,
	}
	for in, want := range cases {
		if got := MapSeverity(in); got != want {
			t.Errorf("MapSeverity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStoreAssessmentBatch(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)

	product := storefront.Product{ID: "prod-1", URL: "https://shop.example/products/widget"}
	assessment := &oracle.Assessment{
		Findings: []oracle.Finding{
			{Type: "missing_meta_description", Severity: "critical", Title: "No meta description"},
			{Type: "short_title", Severity: "warning", Title: "Title too short"},
			{Type: "odd_finding", Severity: "unknown", Title: "Something else"},
		},
		SuggestedTitle:       "Sturdy Widget, Hand Finished",
		SuggestedDescription: "A widget built to last.",
	}

	created, err := svc.StoreAssessment(context.Background(), "conn-1", product, assessment)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("created %d issues", len(created))
	}

	var stored []models.IssueModel
	db.Order("severity").Find(&stored)
	if len(stored) != 3 {
		t.Fatalf("stored %d issues", len(stored))
	}

	for _, issue := range stored {
		if issue.Status != models.IssueDetected {
			t.Errorf("issue %s status = %q", issue.Type, issue.Status)
		}
		if issue.TargetURL != product.URL {
			t.Errorf("issue %s target url = %q", issue.Type, issue.TargetURL)
		}
		if issue.Details[DetailSuggestedTitle] != assessment.SuggestedTitle {
			t.Errorf("issue %s missing suggested title in details", issue.Type)
		}
		if issue.DetectedAt.IsZero() {
			t.Errorf("issue %s has zero detected_at", issue.Type)
		}
	}

	bySeverity := map[string]models.IssueSeverity{}
	for _, issue := range stored {
		bySeverity[issue.Type] = issue.Severity
	}
	if bySeverity["missing_meta_description"] != models.SeverityCritical {
		t.Error("critical finding not mapped to CRITICAL")
	}
	if bySeverity["short_title"] != models.SeverityHigh {
		t.Error("warning finding not mapped to HIGH")
	}
	if bySeverity["odd_finding"] != models.SeverityMedium {
		t.Error("unknown severity not defaulted to MEDIUM")
	}
}

func TestStoreAssessmentEmpty(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)

	created, err := svc.StoreAssessment(context.Background(), "conn-1", storefront.Product{ID: "p"}, &oracle.Assessment{})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if created != nil {
		t.Errorf("expected nil, got %d issues", len(created))
	}

	var count int64
	db.Model(&models.IssueModel{}).Count(&count)
	if count != 0 {
		t.Errorf("stored %d issues for empty assessment", count)
	}
}

func TestOpenTargetURLsNewestPerURL(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	first, err := svc.StoreAssessment(ctx, "conn-1", storefront.Product{ID: "p1", URL: "https://shop.example/a"}, &oracle.Assessment{
		Findings: []oracle.Finding{{Type: "x", Severity: "info", Title: "X"}},
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := svc.StoreAssessment(ctx, "conn-1", storefront.Product{ID: "p2", URL: "https://shop.example/b"}, &oracle.Assessment{
		Findings: []oracle.Finding{{Type: "y", Severity: "info", Title: "Y"}},
	}); err != nil {
		t.Fatalf("store: %v", err)
	}

	// FIXED issues must not appear in the index.
	db.Model(&models.IssueModel{}).Where("id = ?", first[0].ID).
		Update("status", models.IssueFixed)

	// An older open detection on the same URL must lose to the newer one.
	stale := time.Now().Add(-48 * time.Hour)
	db.Create(&models.IssueModel{
		ConnectionID: "conn-1",
		ProductID:    "p2",
		Type:         "z",
		Severity:     models.SeverityLow,
		Title:        "Z",
		TargetURL:    "https://shop.example/b",
		Status:       models.IssueDetected,
		DetectedAt:   stale,
	})

	index, err := svc.OpenTargetURLs(ctx, "conn-1")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if len(index) != 1 {
		t.Fatalf("index has %d entries", len(index))
	}
	newest, ok := index["https://shop.example/b"]
	if !ok {
		t.Fatal("open issue URL missing from index")
	}
	if !newest.After(stale) {
		t.Errorf("index kept stale detection time %v", newest)
	}
}
