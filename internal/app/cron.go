package app

import (
	"context"
	"fmt"
	"time"

	"github.com/seopilot/core/internal/config"
	"github.com/seopilot/core/internal/modules/pipeline"
	pkgcron "github.com/seopilot/core/internal/pkg/cron"
	"github.com/seopilot/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, cfg *config.AppConfig, runner *pipeline.Runner, tasks *taskqueue.Service, logger *zap.Logger) {
	cronLogger := logger.Named("CronService")

	sched.Register(pkgcron.Job{
		Name:        "remediation_run_all",
		Description: "Run the remediation pipeline for every active connection",
		Interval:    cfg.Pipeline.RunInterval,
		Fn: func(ctx context.Context) error {
			reports, err := runner.RunAll(ctx)
			if err != nil {
				cronLogger.Warn("scheduled remediation run failed", zap.Error(err))
				return err
			}
			issuesFound, fixesApplied := 0, 0
			for _, report := range reports {
				issuesFound += report.IssuesFound
				fixesApplied += report.FixesApplied
			}
			cronLogger.Info(fmt.Sprintf("remediation run finished: %d connections, %d issues, %d fixes",
				len(reports), issuesFound, fixesApplied))
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "cleanup_finished_tasks",
		Description: "Remove finished pipeline tasks older than 7 days",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			cutoff := time.Now().AddDate(0, 0, -7).UnixMilli()
			if err := tasks.DeleteCompleted(ctx, cutoff); err != nil {
				cronLogger.Warn("task cleanup failed", zap.Error(err))
				return err
			}
			return nil
		},
	})
}
