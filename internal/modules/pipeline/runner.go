// Package pipeline orchestrates remediation runs: enumerate a connection's
// products, assess the stale ones, store findings and dispatch them
// according to the connection's execution mode.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/seopilot/core/internal/config"
	"github.com/seopilot/core/internal/models"
	"github.com/seopilot/core/internal/modules/audit"
	"github.com/seopilot/core/internal/modules/fixes"
	"github.com/seopilot/core/internal/modules/issues"
	"github.com/seopilot/core/internal/modules/oracle"
	"github.com/seopilot/core/internal/modules/plans"
	"github.com/seopilot/core/internal/modules/storefront"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrRunInProgress means another run holds the connection's guard.
var ErrRunInProgress = errors.New("a run is already in progress for this connection")

const (
	runLockPrefix = "sp:pipeline:run:"
	runLockTTL    = 30 * time.Minute
)

// Locker serializes runs per connection. The Redis client satisfies it;
// tests substitute an in-memory one.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// RunReport summarizes one connection run.
type RunReport struct {
	ConnectionID  string    `json:"connection_id"`
	Mode          string    `json:"mode"`
	Products      int       `json:"products"`
	Skipped       int       `json:"skipped"`
	Assessed      int       `json:"assessed"`
	ParseFailures int       `json:"parse_failures"`
	IssuesFound   int       `json:"issues_found"`
	FixesApplied  int       `json:"fixes_applied"`
	Planned       int       `json:"planned"`
	Failures      []string  `json:"failures,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

type Runner struct {
	cfg      config.PipelineConfig
	db       *gorm.DB
	client   storefront.Client
	assessor oracle.Assessor
	issues   *issues.Service
	applier  *fixes.Service
	plans    *plans.Service
	audit    *audit.Service
	locker   Locker
	logger   *zap.Logger
}

func NewRunner(
	cfg config.PipelineConfig,
	db *gorm.DB,
	client storefront.Client,
	assessor oracle.Assessor,
	issueSvc *issues.Service,
	applier *fixes.Service,
	planSvc *plans.Service,
	auditSvc *audit.Service,
	locker Locker,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		db:       db,
		client:   client,
		assessor: assessor,
		issues:   issueSvc,
		applier:  applier,
		plans:    planSvc,
		audit:    auditSvc,
		locker:   locker,
		logger:   logger.Named("Pipeline"),
	}
}

// RunConnection executes one full remediation run. Product enumeration
// failure aborts the run; per-resource failures are logged, counted and
// contained so one bad resource cannot sink the rest.
func (r *Runner) RunConnection(ctx context.Context, conn *models.ConnectionModel) (*RunReport, error) {
	lockKey := runLockPrefix + conn.ID
	acquired, err := r.locker.AcquireLock(ctx, lockKey, runLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	defer func() { _ = r.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey) }()

	report := &RunReport{
		ConnectionID: conn.ID,
		Mode:         string(conn.Mode),
		StartedAt:    time.Now(),
	}

	products, err := r.client.ListProducts(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("enumerate products: %w", err)
	}
	report.Products = len(products)

	newest, err := r.issues.OpenTargetURLs(ctx, conn.ID)
	if err != nil {
		return nil, fmt.Errorf("build freshness index: %w", err)
	}
	index := NewFreshnessIndex(r.cfg.FreshnessWindow, newest)
	now := time.Now()

	for _, product := range products {
		if index.Fresh(product.URL, now) {
			report.Skipped++
			continue
		}
		r.processProduct(ctx, conn, product, report)
	}

	report.FinishedAt = time.Now()
	r.audit.Append(ctx, conn.ID, audit.ActorSystem, audit.ActionPipelineRun, "connection", conn.ID, models.JSONMap{
		"products":       report.Products,
		"skipped":        report.Skipped,
		"assessed":       report.Assessed,
		"parse_failures": report.ParseFailures,
		"issues_found":   report.IssuesFound,
		"fixes_applied":  report.FixesApplied,
		"planned":        report.Planned,
		"failures":       len(report.Failures),
	})
	r.logger.Info("run finished",
		zap.String("connection_id", conn.ID),
		zap.String("mode", report.Mode),
		zap.Int("products", report.Products),
		zap.Int("skipped", report.Skipped),
		zap.Int("issues_found", report.IssuesFound),
		zap.Int("fixes_applied", report.FixesApplied),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (r *Runner) processProduct(ctx context.Context, conn *models.ConnectionModel, product storefront.Product, report *RunReport) {
	fail := func(stage string, err error) {
		report.Failures = append(report.Failures, fmt.Sprintf("product %s: %s: %v", product.ID, stage, err))
		r.logger.Warn("resource failed, continuing run",
			zap.String("connection_id", conn.ID),
			zap.String("product_id", product.ID),
			zap.String("stage", stage),
			zap.Error(err),
		)
	}

	octx, cancel := context.WithTimeout(ctx, r.cfg.OracleTimeout)
	outcome, err := r.assessor.Assess(octx, conn.ID, product)
	cancel()
	if err != nil {
		fail("assess", err)
		return
	}
	if outcome.ParseFailure != nil {
		report.ParseFailures++
		return
	}
	report.Assessed++

	batch, err := r.issues.StoreAssessment(ctx, conn.ID, product, outcome.Assessment)
	if err != nil {
		fail("store issues", err)
		return
	}
	if len(batch) == 0 {
		return
	}
	report.IssuesFound += len(batch)

	switch conn.Mode {
	case models.ModeAutomatic:
		wctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
		applied, err := r.applier.Apply(wctx, conn, product, batch, models.FixAutomatic, audit.ActorSystem)
		cancel()
		if errors.Is(err, fixes.ErrNothingToApply) {
			return
		}
		if err != nil {
			fail("apply fixes", err)
			return
		}
		report.FixesApplied += len(applied)
	case models.ModePlan:
		if _, err := r.plans.AddToPlan(ctx, conn, batch); err != nil {
			fail("stage plan", err)
			return
		}
		report.Planned += len(batch)
	default:
		// APPROVE: issues stay DETECTED for the review surface.
	}
}

// RunAll runs every active connection concurrently, one goroutine each.
func (r *Runner) RunAll(ctx context.Context) ([]*RunReport, error) {
	var conns []models.ConnectionModel
	if err := r.db.WithContext(ctx).Where("active = ?", true).Find(&conns).Error; err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		reports []*RunReport
	)
	for i := range conns {
		conn := conns[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := r.RunConnection(ctx, &conn)
			if err != nil {
				if !errors.Is(err, ErrRunInProgress) {
					r.logger.Error("connection run failed",
						zap.String("connection_id", conn.ID),
						zap.Error(err),
					)
				}
				return
			}
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return reports, nil
}
