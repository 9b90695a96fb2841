package usage

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/seopilot/core/internal/models"
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
	if err := db.AutoMigrate(&models.UsageRecordModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestRecordPersistsCosts(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)

	svc.Record(context.Background(), Event{
		ConnectionID: "conn-1",
		Model:        "claude-sonnet-4-20250514",
		Endpoint:     "assess",
		InputTokens:  1000,
		OutputTokens: 2000,
		LatencyMs:    840,
	})

	var record models.UsageRecordModel
	if err := db.First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.TotalCost != 0.033 {
		t.Errorf("total cost = %v", record.TotalCost)
	}
	if record.Status != models.UsageSuccess {
		t.Errorf("status defaulted to %q", record.Status)
	}
}

func TestRecordNeverPropagatesFailure(t *testing.T) {
	db := newTestDB(t)
	// Drop the table so the insert fails.
	if err := db.Migrator().DropTable(&models.UsageRecordModel{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	svc := NewService(db, nil)

	// Must neither panic nor return anything.
	svc.Record(context.Background(), Event{ConnectionID: "conn-1", Model: "gpt-4o"})
}

func TestRecordSurvivesNilDB(t *testing.T) {
	svc := NewService(nil, nil)
	svc.Record(context.Background(), Event{ConnectionID: "conn-1", Model: "gpt-4o"})
}

func TestSummarizeAndGroupBy(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	svc.Record(ctx, Event{ConnectionID: "conn-1", Model: "gpt-4o", Endpoint: "assess", InputTokens: 100, OutputTokens: 50})
	svc.Record(ctx, Event{ConnectionID: "conn-1", Model: "claude-haiku-4-5", Endpoint: "assess", InputTokens: 200, OutputTokens: 80, Status: models.UsageTimeout})
	svc.Record(ctx, Event{ConnectionID: "conn-2", Model: "gpt-4o", Endpoint: "assess", InputTokens: 300, OutputTokens: 100, Cached: true})

	now := time.Now().Add(time.Minute)
	from := now.Add(-time.Hour)

	all, err := svc.Summarize(ctx, "", from, now)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if all.Requests != 3 {
		t.Errorf("requests = %d", all.Requests)
	}
	if all.InputTokens != 600 || all.OutputTokens != 230 {
		t.Errorf("tokens = %d/%d", all.InputTokens, all.OutputTokens)
	}
	if all.Timeouts != 1 || all.CacheHits != 1 {
		t.Errorf("timeouts = %d, cache hits = %d", all.Timeouts, all.CacheHits)
	}

	scoped, err := svc.Summarize(ctx, "conn-1", from, now)
	if err != nil {
		t.Fatalf("summarize scoped: %v", err)
	}
	if scoped.Requests != 2 {
		t.Errorf("scoped requests = %d", scoped.Requests)
	}

	byModel, err := svc.GroupBy(ctx, "model", "", from, now)
	if err != nil {
		t.Fatalf("group by model: %v", err)
	}
	if len(byModel) != 2 {
		t.Fatalf("model groups = %d", len(byModel))
	}
}

func TestSummarizeSurfacesCountFailure(t *testing.T) {
	db := newTestDB(t)
	// Break only the cache-hit count: the main aggregate never touches the
	// cached column, so it still succeeds.
	if err := db.Migrator().DropColumn(&models.UsageRecordModel{}, "cached"); err != nil {
		t.Fatalf("drop column: %v", err)
	}
	svc := NewService(db, nil)

	now := time.Now()
	if _, err := svc.Summarize(context.Background(), "", now.Add(-time.Hour), now); err == nil {
		t.Fatal("summarize hid the failing count")
	}
}

func TestProjectMonthExtrapolates(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	// A single priced call this month.
	svc.Record(ctx, Event{ConnectionID: "conn-1", Model: "claude-sonnet-4", InputTokens: 1_000_000})

	now := time.Date(2026, time.September, 10, 12, 0, 0, 0, time.UTC)
	record := models.UsageRecordModel{}
	db.First(&record)
	db.Model(&record).Update("created_at", now.Add(-time.Hour))

	projection, err := svc.ProjectMonth(ctx, "conn-1", now)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if projection.DaysInMonth != 30 || projection.DaysElapsed != 10 {
		t.Errorf("days = %d/%d", projection.DaysElapsed, projection.DaysInMonth)
	}
	if projection.MonthToDate != 3 {
		t.Errorf("month to date = %v", projection.MonthToDate)
	}
	if projection.ProjectedEOM != 9 {
		t.Errorf("projected = %v", projection.ProjectedEOM)
	}
}
