package usage

import (
	"math"
	"strings"
)

// ModelPricing is USD per one million tokens.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Longest-prefix match against the model identifier; unknown models fall
// back to defaultPricing so metering never blocks on an unpriced model.
var modelPricing = map[string]ModelPricing{
	"claude-opus":      {InputPerMillion: 15, OutputPerMillion: 75},
	"claude-sonnet":    {InputPerMillion: 3, OutputPerMillion: 15},
	"claude-haiku":     {InputPerMillion: 1, OutputPerMillion: 5},
	"claude-3-5-haiku": {InputPerMillion: 0.8, OutputPerMillion: 4},
	"gpt-4o-mini":      {InputPerMillion: 0.15, OutputPerMillion: 0.6},
	"gpt-4o":           {InputPerMillion: 2.5, OutputPerMillion: 10},
	"gpt-4.1-mini":     {InputPerMillion: 0.4, OutputPerMillion: 1.6},
	"gpt-4.1":          {InputPerMillion: 2, OutputPerMillion: 8},
	"o3-mini":          {InputPerMillion: 1.1, OutputPerMillion: 4.4},
	"deepseek":         {InputPerMillion: 0.27, OutputPerMillion: 1.1},
}

var defaultPricing = ModelPricing{InputPerMillion: 3, OutputPerMillion: 15}

// PricingFor resolves the price tier for a model identifier.
func PricingFor(model string) ModelPricing {
	normalized := strings.ToLower(strings.TrimSpace(model))

	var bestPrefix string
	best := defaultPricing
	for prefix, pricing := range modelPricing {
		if strings.HasPrefix(normalized, prefix) && len(prefix) > len(bestPrefix) {
			bestPrefix = prefix
			best = pricing
		}
	}
	return best
}

// Cost prices one invocation. Values are rounded to six decimal places so
// stored costs are stable across databases.
func Cost(model string, inputTokens, outputTokens int) (inputCost, outputCost, totalCost float64) {
	pricing := PricingFor(model)
	inputCost = round6(float64(inputTokens) / 1_000_000 * pricing.InputPerMillion)
	outputCost = round6(float64(outputTokens) / 1_000_000 * pricing.OutputPerMillion)
	totalCost = round6(inputCost + outputCost)
	return
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
