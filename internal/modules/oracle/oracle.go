// Package oracle obtains AI-generated SEO assessments for storefront
// products. The inference provider is treated as a black box returning
// untrusted structured text; responses are parsed into a tagged outcome so
// callers branch on data instead of catching errors.
package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/seopilot/core/internal/config"
	"github.com/seopilot/core/internal/models"
	"github.com/seopilot/core/internal/modules/storefront"
	"github.com/seopilot/core/internal/modules/usage"
	"go.uber.org/zap"
)

// Oracle severity vocabulary (three levels, narrower than the issue store's).
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// EndpointAssess tags usage records produced by product assessments.
const EndpointAssess = "assess"

// Finding is one defect the oracle reports for a product.
type Finding struct {
	Type           string `json:"type"`
	Severity       string `json:"severity"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// Assessment is the parsed oracle response for one product.
type Assessment struct {
	Findings             []Finding `json:"issues"`
	SuggestedTitle       string    `json:"suggestedTitle"`
	SuggestedDescription string    `json:"suggestedDescription"`
	SuggestedAltText     string    `json:"suggestedAltText"`
}

// ParseFailure carries the raw response and the reason it was rejected.
type ParseFailure struct {
	Raw    string
	Reason string
}

// Outcome is the tagged result of one assessment call: exactly one of
// Assessment or ParseFailure is set when the transport succeeded.
type Outcome struct {
	Assessment   *Assessment
	ParseFailure *ParseFailure
	Model        string
	Usage        TokenUsage
}

// TokenUsage is the token accounting from the provider response envelope.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Assessor is the capability the pipeline consumes; tests substitute fakes.
type Assessor interface {
	Assess(ctx context.Context, connectionID string, product storefront.Product) (Outcome, error)
}

// Recorder receives one usage event per oracle invocation.
type Recorder interface {
	Record(ctx context.Context, e usage.Event)
}

// Service is the production Assessor backed by the configured provider pool.
type Service struct {
	cfg    config.AIConfig
	meter  Recorder
	logger *zap.Logger
}

func NewService(cfg config.AIConfig, meter Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, meter: meter, logger: logger.Named("Oracle")}
}

// Assess sends one product to the oracle and parses the response. Transport
// failures (including timeouts) return an error; malformed responses return
// an Outcome with ParseFailure set. Usage is metered in every case where a
// request went out.
func (s *Service) Assess(ctx context.Context, connectionID string, product storefront.Product) (Outcome, error) {
	provider := selectProvider(s.cfg, s.cfg.AssessModel)
	if provider == nil {
		return Outcome{}, errors.New("no enabled AI provider")
	}

	systemPrompt, prompt := buildAssessmentPrompt(product)
	model := resolveModel(provider)

	start := time.Now()
	raw, tokens, err := callProvider(ctx, provider, systemPrompt, prompt, s.cfg.MaxOutputTokens)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		status := models.UsageError
		if errors.Is(err, context.DeadlineExceeded) {
			status = models.UsageTimeout
		}
		s.record(ctx, connectionID, model, tokens, latency, status, err.Error())
		return Outcome{Model: model, Usage: tokens}, err
	}

	s.record(ctx, connectionID, model, tokens, latency, models.UsageSuccess, "")

	assessment, failure := parseAssessment(raw)
	if failure != nil {
		s.logger.Warn("unparseable oracle response",
			zap.String("connection_id", connectionID),
			zap.String("product_id", product.ID),
			zap.String("reason", failure.Reason),
		)
		return Outcome{ParseFailure: failure, Model: model, Usage: tokens}, nil
	}
	return Outcome{Assessment: assessment, Model: model, Usage: tokens}, nil
}

func (s *Service) record(ctx context.Context, connectionID, model string, tokens TokenUsage, latencyMs int64, status models.UsageOutcome, errMsg string) {
	if s.meter == nil {
		return
	}
	s.meter.Record(ctx, usage.Event{
		ConnectionID: connectionID,
		Model:        model,
		Endpoint:     EndpointAssess,
		InputTokens:  tokens.InputTokens,
		OutputTokens: tokens.OutputTokens,
		LatencyMs:    latencyMs,
		Status:       status,
		ErrorMessage: errMsg,
	})
}
