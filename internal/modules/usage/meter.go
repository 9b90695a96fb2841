// Package usage meters AI spend. Recording is strictly best-effort: a
// metering failure must never fail the operation being metered.
package usage

import (
	"context"
	"time"

	"github.com/seopilot/core/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Event is one AI invocation to meter.
type Event struct {
	ConnectionID string
	Model        string
	Endpoint     string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Cached       bool
	Status       models.UsageOutcome
	ErrorMessage string
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger.Named("UsageMeter")}
}

// Record persists one usage row with costs derived from the token counts.
// Failures are logged and swallowed.
func (s *Service) Record(ctx context.Context, e Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("usage recording panicked", zap.Any("panic", r))
		}
	}()

	status := e.Status
	if status == "" {
		status = models.UsageSuccess
	}

	inputCost, outputCost, totalCost := Cost(e.Model, e.InputTokens, e.OutputTokens)
	record := models.UsageRecordModel{
		ConnectionID: e.ConnectionID,
		Model:        e.Model,
		Endpoint:     e.Endpoint,
		InputTokens:  e.InputTokens,
		OutputTokens: e.OutputTokens,
		InputCost:    inputCost,
		OutputCost:   outputCost,
		TotalCost:    totalCost,
		LatencyMs:    e.LatencyMs,
		Cached:       e.Cached,
		Status:       status,
		ErrorMessage: e.ErrorMessage,
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logger.Error("usage recording failed",
			zap.String("connection_id", e.ConnectionID),
			zap.String("model", e.Model),
			zap.Error(err),
		)
	}
}

// Summary is the aggregate over a period.
type Summary struct {
	Requests     int64   `json:"requests"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"`
	Errors       int64   `json:"errors"`
	Timeouts     int64   `json:"timeouts"`
	CacheHits    int64   `json:"cache_hits"`
}

// GroupStat is one row of a grouped aggregation.
type GroupStat struct {
	Key          string  `json:"key" gorm:"column:group_key"`
	Requests     int64   `json:"requests"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"`
}

// DailyStat is one calendar day in a trend series.
type DailyStat struct {
	Date      string  `json:"date"`
	Requests  int64   `json:"requests"`
	TotalCost float64 `json:"total_cost"`
}

// Projection estimates month-end spend from the current run rate.
type Projection struct {
	MonthToDate  float64 `json:"month_to_date"`
	ProjectedEOM float64 `json:"projected_eom"`
	DaysElapsed  int     `json:"days_elapsed"`
	DaysInMonth  int     `json:"days_in_month"`
}

func (s *Service) scope(connectionID string, from, to time.Time) *gorm.DB {
	tx := s.db.Model(&models.UsageRecordModel{}).
		Where("created_at >= ? AND created_at < ?", from, to)
	if connectionID != "" {
		tx = tx.Where("connection_id = ?", connectionID)
	}
	return tx
}

// Summarize aggregates the period [from, to).
func (s *Service) Summarize(ctx context.Context, connectionID string, from, to time.Time) (Summary, error) {
	var out struct {
		Requests     int64
		InputTokens  int64
		OutputTokens int64
		TotalCost    float64
	}
	err := s.scope(connectionID, from, to).WithContext(ctx).
		Select("COUNT(*) as requests, COALESCE(SUM(input_tokens),0) as input_tokens, COALESCE(SUM(output_tokens),0) as output_tokens, COALESCE(SUM(total_cost),0) as total_cost").
		Scan(&out).Error
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Requests:     out.Requests,
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
		TotalCost:    round6(out.TotalCost),
	}

	if err := s.scope(connectionID, from, to).WithContext(ctx).
		Where("status = ?", models.UsageError).Count(&summary.Errors).Error; err != nil {
		return Summary{}, err
	}
	if err := s.scope(connectionID, from, to).WithContext(ctx).
		Where("status = ?", models.UsageTimeout).Count(&summary.Timeouts).Error; err != nil {
		return Summary{}, err
	}
	if err := s.scope(connectionID, from, to).WithContext(ctx).
		Where("cached = ?", true).Count(&summary.CacheHits).Error; err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// GroupBy aggregates the period keyed by "model", "endpoint" or
// "connection_id".
func (s *Service) GroupBy(ctx context.Context, column, connectionID string, from, to time.Time) ([]GroupStat, error) {
	switch column {
	case "model", "endpoint", "connection_id":
	default:
		column = "model"
	}

	var results []GroupStat
	err := s.scope(connectionID, from, to).WithContext(ctx).
		Select(column + " as group_key, COUNT(*) as requests, COALESCE(SUM(input_tokens),0) as input_tokens, COALESCE(SUM(output_tokens),0) as output_tokens, COALESCE(SUM(total_cost),0) as total_cost").
		Group(column).
		Order("total_cost DESC").
		Scan(&results).Error
	return results, err
}

// DailyTrend buckets the period into calendar days, filling empty days so
// charts get a continuous series.
func (s *Service) DailyTrend(ctx context.Context, connectionID string, from, to time.Time) ([]DailyStat, error) {
	type row struct {
		CreatedAt time.Time
		TotalCost float64
	}
	var rows []row
	err := s.scope(connectionID, from, to).WithContext(ctx).
		Select("created_at, total_cost").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	buckets := map[string]*DailyStat{}
	for _, r := range rows {
		key := r.CreatedAt.Format("2006-01-02")
		b, ok := buckets[key]
		if !ok {
			b = &DailyStat{Date: key}
			buckets[key] = b
		}
		b.Requests++
		b.TotalCost += r.TotalCost
	}

	var series []DailyStat
	for day := beginningOfDay(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		if b, ok := buckets[key]; ok {
			b.TotalCost = round6(b.TotalCost)
			series = append(series, *b)
		} else {
			series = append(series, DailyStat{Date: key})
		}
	}
	return series, nil
}

// ProjectMonth extrapolates the current month's spend linearly to the end
// of the month.
func (s *Service) ProjectMonth(ctx context.Context, connectionID string, now time.Time) (Projection, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	nextMonth := monthStart.AddDate(0, 1, 0)

	summary, err := s.Summarize(ctx, connectionID, monthStart, now)
	if err != nil {
		return Projection{}, err
	}

	daysInMonth := nextMonth.Add(-time.Hour).Day()
	daysElapsed := now.Day()

	projection := Projection{
		MonthToDate: summary.TotalCost,
		DaysElapsed: daysElapsed,
		DaysInMonth: daysInMonth,
	}
	if daysElapsed > 0 {
		projection.ProjectedEOM = round6(summary.TotalCost / float64(daysElapsed) * float64(daysInMonth))
	}
	return projection, nil
}

func beginningOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
