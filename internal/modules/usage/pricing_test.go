package usage

import "testing"

func TestCostKnownModel(t *testing.T) {
	input, output, total := Cost("claude-sonnet-4-20250514", 1000, 2000)
	if input != 0.003 {
		t.Errorf("input cost = %v", input)
	}
	if output != 0.03 {
		t.Errorf("output cost = %v", output)
	}
	if total != 0.033 {
		t.Errorf("total cost = %v", total)
	}
}

func TestCostZeroTokens(t *testing.T) {
	input, output, total := Cost("gpt-4o", 0, 0)
	if input != 0 || output != 0 || total != 0 {
		t.Errorf("expected zero costs, got %v %v %v", input, output, total)
	}
}

func TestCostUnknownModelUsesDefault(t *testing.T) {
	_, _, total := Cost("mystery-model-9000", 1_000_000, 1_000_000)
	want := defaultPricing.InputPerMillion + defaultPricing.OutputPerMillion
	if total != want {
		t.Errorf("total = %v, want %v", total, want)
	}
}

func TestPricingForLongestPrefixWins(t *testing.T) {
	p := PricingFor("gpt-4o-mini-2024-07-18")
	if p != modelPricing["gpt-4o-mini"] {
		t.Errorf("gpt-4o-mini resolved to %+v", p)
	}
	p = PricingFor("GPT-4o")
	if p != modelPricing["gpt-4o"] {
		t.Errorf("case-insensitive match failed: %+v", p)
	}
}
