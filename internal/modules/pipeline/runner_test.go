package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/seopilot/core/internal/config"
	"github.com/seopilot/core/internal/models"
	"github.com/seopilot/core/internal/modules/audit"
	"github.com/seopilot/core/internal/modules/fixes"
	"github.com/seopilot/core/internal/modules/issues"
	"github.com/seopilot/core/internal/modules/oracle"
	"github.com/seopilot/core/internal/modules/plans"
	"github.com/seopilot/core/internal/modules/storefront"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeClient struct {
	products  []storefront.Product
	listErr   error
	updateErr error
	updates   int
}

func (f *fakeClient) ListProducts(ctx context.Context, conn *models.ConnectionModel) ([]storefront.Product, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.products, nil
}

func (f *fakeClient) GetProduct(ctx context.Context, conn *models.ConnectionModel, productID string) (*storefront.Product, error) {
	for _, p := range f.products {
		if p.ID == productID {
			return &p, nil
		}
	}
	return nil, errors.New("product not found")
}

func (f *fakeClient) UpdateProduct(ctx context.Context, conn *models.ConnectionModel, productID string, fields map[string]interface{}) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	return nil
}

type fakeAssessor struct {
	calls    int
	outcomes map[string]oracle.Outcome
	err      error
}

func (f *fakeAssessor) Assess(ctx context.Context, connectionID string, product storefront.Product) (oracle.Outcome, error) {
	f.calls++
	if f.err != nil {
		return oracle.Outcome{}, f.err
	}
	return f.outcomes[product.ID], nil
}

type memoryLocker struct {
	mu    sync.Mutex
	locks map[string]bool
}

func newMemoryLocker() *memoryLocker { return &memoryLocker{locks: map[string]bool{}} }

func (m *memoryLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *memoryLocker) ReleaseLock(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}

func assessmentWith(findings ...oracle.Finding) oracle.Outcome {
	return oracle.Outcome{Assessment: &oracle.Assessment{
		Findings:       findings,
		SuggestedTitle: "Corrected Title",
	}}
}

type testEnv struct {
	db       *gorm.DB
	client   *fakeClient
	assessor *fakeAssessor
	locker   *memoryLocker
	runner   *Runner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.ConnectionModel{},
		&models.IssueModel{},
		&models.FixModel{},
		&models.PendingPlanModel{},
		&models.AuditLogModel{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	client := &fakeClient{}
	assessor := &fakeAssessor{outcomes: map[string]oracle.Outcome{}}
	locker := newMemoryLocker()

	auditSvc := audit.NewService(db, nil)
	issueSvc := issues.NewService(db, nil)
	applier := fixes.NewService(db, client, auditSvc, nil)
	planSvc := plans.NewService(db, applier, client, auditSvc, nil)

	cfg := config.PipelineConfig{
		FreshnessWindow: 24 * time.Hour,
		OracleTimeout:   time.Second,
		WriteTimeout:    time.Second,
	}
	runner := NewRunner(cfg, db, client, assessor, issueSvc, applier, planSvc, auditSvc, locker, nil)
	return &testEnv{db: db, client: client, assessor: assessor, locker: locker, runner: runner}
}

func (e *testEnv) seedConnection(t *testing.T, mode models.ExecutionMode) *models.ConnectionModel {
	t.Helper()
	conn := &models.ConnectionModel{
		Name:       "Demo Shop",
		Platform:   "shopify",
		ShopDomain: "demo.myshopify.com",
		Mode:       mode,
		Active:     true,
	}
	if err := e.db.Create(conn).Error; err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	return conn
}

// seedFreshIssue makes productURL fresh by planting a recent open detection.
func (e *testEnv) seedFreshIssue(t *testing.T, connID, productID, productURL string) {
	t.Helper()
	issue := models.IssueModel{
		ConnectionID: connID,
		ProductID:    productID,
		Type:         "short_title",
		Severity:     models.SeverityMedium,
		Title:        "Title too short",
		TargetURL:    productURL,
		Status:       models.IssueDetected,
		DetectedAt:   time.Now().Add(-2 * time.Hour),
	}
	if err := e.db.Create(&issue).Error; err != nil {
		t.Fatalf("seed issue: %v", err)
	}
}

func TestRunAutomaticMode(t *testing.T) {
	env := newTestEnv(t)
	conn := env.seedConnection(t, models.ModeAutomatic)

	env.client.products = []storefront.Product{
		{ID: "A", URL: "https://shop.example/p/a"},
		{ID: "B", URL: "https://shop.example/p/b"},
		{ID: "C", URL: "https://shop.example/p/c"},
	}
	// A was analyzed two hours ago, so the run must skip it.
	env.seedFreshIssue(t, conn.ID, "A", "https://shop.example/p/a")

	env.assessor.outcomes["B"] = assessmentWith(oracle.Finding{Type: "missing_seo_title", Severity: "critical", Title: "No SEO title"})
	env.assessor.outcomes["C"] = assessmentWith(oracle.Finding{Type: "thin_description", Severity: "warning", Title: "Thin description"})

	report, err := env.runner.RunConnection(context.Background(), conn)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped)
	}
	if env.assessor.calls != 2 {
		t.Errorf("oracle calls = %d, want 2", env.assessor.calls)
	}
	if report.FixesApplied != 2 {
		t.Errorf("fixes applied = %d, want 2", report.FixesApplied)
	}

	var fixedIssues int64
	env.db.Model(&models.IssueModel{}).
		Where("status = ? AND product_id IN ?", models.IssueFixed, []string{"B", "C"}).
		Count(&fixedIssues)
	if fixedIssues != 2 {
		t.Errorf("FIXED issues = %d, want 2", fixedIssues)
	}

	var auditRuns int64
	env.db.Model(&models.AuditLogModel{}).Where("action = ?", audit.ActionPipelineRun).Count(&auditRuns)
	if auditRuns != 1 {
		t.Errorf("audit run entries = %d", auditRuns)
	}
}

func TestRunPlanMode(t *testing.T) {
	env := newTestEnv(t)
	conn := env.seedConnection(t, models.ModePlan)

	env.client.products = []storefront.Product{
		{ID: "B", URL: "https://shop.example/p/b"},
		{ID: "C", URL: "https://shop.example/p/c"},
	}
	env.assessor.outcomes["B"] = assessmentWith(oracle.Finding{Type: "missing_seo_title", Severity: "critical", Title: "No SEO title"})
	env.assessor.outcomes["C"] = assessmentWith(oracle.Finding{Type: "thin_description", Severity: "warning", Title: "Thin description"})

	report, err := env.runner.RunConnection(context.Background(), conn)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.FixesApplied != 0 || env.client.updates != 0 {
		t.Errorf("plan mode wrote to the storefront: %d fixes, %d writes", report.FixesApplied, env.client.updates)
	}
	if report.Planned != 2 {
		t.Errorf("planned = %d, want 2", report.Planned)
	}

	var detected int64
	env.db.Model(&models.IssueModel{}).Where("status = ?", models.IssueDetected).Count(&detected)
	if detected != 2 {
		t.Errorf("DETECTED issues = %d, want 2", detected)
	}

	var pendingPlans int64
	env.db.Model(&models.PendingPlanModel{}).Where("status = ?", models.PlanPending).Count(&pendingPlans)
	if pendingPlans != 1 {
		t.Errorf("pending plans = %d, want 1", pendingPlans)
	}
}

func TestRunApproveModeStopsAtDetected(t *testing.T) {
	env := newTestEnv(t)
	conn := env.seedConnection(t, models.ModeApprove)

	env.client.products = []storefront.Product{{ID: "B", URL: "https://shop.example/p/b"}}
	env.assessor.outcomes["B"] = assessmentWith(oracle.Finding{Type: "missing_seo_title", Severity: "critical", Title: "No SEO title"})

	report, err := env.runner.RunConnection(context.Background(), conn)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.FixesApplied != 0 || report.Planned != 0 {
		t.Errorf("approve mode dispatched: %d fixes, %d planned", report.FixesApplied, report.Planned)
	}

	var detected int64
	env.db.Model(&models.IssueModel{}).Where("status = ?", models.IssueDetected).Count(&detected)
	if detected != 1 {
		t.Errorf("DETECTED issues = %d, want 1", detected)
	}
}

func TestRunWriteFailureLeavesDetected(t *testing.T) {
	env := newTestEnv(t)
	conn := env.seedConnection(t, models.ModeAutomatic)

	env.client.products = []storefront.Product{{ID: "B", URL: "https://shop.example/p/b"}}
	env.client.updateErr = storefront.ErrWriteTimeout
	env.assessor.outcomes["B"] = assessmentWith(oracle.Finding{Type: "missing_seo_title", Severity: "critical", Title: "No SEO title"})

	report, err := env.runner.RunConnection(context.Background(), conn)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.FixesApplied != 0 {
		t.Errorf("fixes applied = %d after write failure", report.FixesApplied)
	}
	if len(report.Failures) != 1 {
		t.Errorf("failures = %v", report.Failures)
	}

	var fixCount int64
	env.db.Model(&models.FixModel{}).Count(&fixCount)
	if fixCount != 0 {
		t.Errorf("fix rows = %d after write failure", fixCount)
	}

	var detected int64
	env.db.Model(&models.IssueModel{}).Where("status = ?", models.IssueDetected).Count(&detected)
	if detected != 1 {
		t.Errorf("DETECTED issues = %d, want 1", detected)
	}
}

func TestRunOracleFailureIsContained(t *testing.T) {
	env := newTestEnv(t)
	conn := env.seedConnection(t, models.ModeAutomatic)

	env.client.products = []storefront.Product{{ID: "B", URL: "https://shop.example/p/b"}}
	env.assessor.err = errors.New("provider unavailable")

	report, err := env.runner.RunConnection(context.Background(), conn)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Failures) != 1 {
		t.Errorf("failures = %v", report.Failures)
	}
	if report.Assessed != 0 {
		t.Errorf("assessed = %d", report.Assessed)
	}
}

func TestRunParseFailureIsCounted(t *testing.T) {
	env := newTestEnv(t)
	conn := env.seedConnection(t, models.ModeAutomatic)

	env.client.products = []storefront.Product{{ID: "B", URL: "https://shop.example/p/b"}}
	env.assessor.outcomes["B"] = oracle.Outcome{ParseFailure: &oracle.ParseFailure{Raw: "garbage", Reason: "not JSON"}}

	report, err := env.runner.RunConnection(context.Background(), conn)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ParseFailures != 1 {
		t.Errorf("parse failures = %d", report.ParseFailures)
	}

	var issueCount int64
	env.db.Model(&models.IssueModel{}).Count(&issueCount)
	if issueCount != 0 {
		t.Errorf("issues stored from unparseable response: %d", issueCount)
	}
}

func TestRunEnumerationFailureAborts(t *testing.T) {
	env := newTestEnv(t)
	conn := env.seedConnection(t, models.ModeAutomatic)
	env.client.listErr = errors.New("platform unreachable")

	if _, err := env.runner.RunConnection(context.Background(), conn); err == nil {
		t.Fatal("expected the run to abort")
	}

	// The guard is released even when the run aborts.
	acquired, _ := env.locker.AcquireLock(context.Background(), runLockPrefix+conn.ID, time.Minute)
	if !acquired {
		t.Error("run guard not released after aborted run")
	}
}

func TestRunSingleFlightGuard(t *testing.T) {
	env := newTestEnv(t)
	conn := env.seedConnection(t, models.ModeAutomatic)

	// Simulate a run in progress.
	if _, err := env.locker.AcquireLock(context.Background(), runLockPrefix+conn.ID, time.Minute); err != nil {
		t.Fatal(err)
	}

	if _, err := env.runner.RunConnection(context.Background(), conn); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("err = %v, want ErrRunInProgress", err)
	}
	if env.assessor.calls != 0 {
		t.Error("guarded run still called the oracle")
	}
}

func TestRunAllOnlyActiveConnections(t *testing.T) {
	env := newTestEnv(t)
	active := env.seedConnection(t, models.ModeApprove)

	inactive := &models.ConnectionModel{Name: "Old Shop", Platform: "shopify", ShopDomain: "old.myshopify.com", Mode: models.ModeApprove, Active: false}
	if err := env.db.Create(inactive).Error; err != nil {
		t.Fatalf("seed inactive: %v", err)
	}

	env.client.products = nil

	reports, err := env.runner.RunAll(context.Background())
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	if reports[0].ConnectionID != active.ID {
		t.Errorf("ran connection %s", reports[0].ConnectionID)
	}
}
