package oracle

import (
	"strings"
	"testing"
)

func TestParseAssessmentPlainJSON(t *testing.T) {
	raw := `{
		"issues": [
			{"type": "missing_meta_description", "severity": "critical", "title": "No meta description", "description": "The product has no meta description.", "recommendation": "Add one."},
			{"type": "short_title", "severity": "WARNING", "title": "Title too short"}
		],
		"suggestedTitle": "  Better Title  ",
		"suggestedDescription": "A better description."
	}`

	assessment, failure := parseAssessment(raw)
	if failure != nil {
		t.Fatalf("unexpected failure: %s", failure.Reason)
	}
	if len(assessment.Findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(assessment.Findings))
	}
	if assessment.Findings[1].Severity != "warning" {
		t.Errorf("severity not lowercased: %q", assessment.Findings[1].Severity)
	}
	if assessment.SuggestedTitle != "Better Title" {
		t.Errorf("suggested title not trimmed: %q", assessment.SuggestedTitle)
	}
}

func TestParseAssessmentCodeFence(t *testing.T) {
	raw := "```json\n{\"issues\": [{\"type\": \"missing_alt_text\", \"severity\": \"info\", \"title\": \"Image lacks alt text\"}]}\n```"

	assessment, failure := parseAssessment(raw)
	if failure != nil {
		t.Fatalf("unexpected failure: %s", failure.Reason)
	}
	if len(assessment.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(assessment.Findings))
	}
}

func TestParseAssessmentLeadingProse(t *testing.T) {
	raw := "Here is my analysis of the product:\n{\"issues\": [], \"suggestedTitle\": \"X\"}"

	assessment, failure := parseAssessment(raw)
	if failure != nil {
		t.Fatalf("unexpected failure: %s", failure.Reason)
	}
	if len(assessment.Findings) != 0 {
		t.Fatalf("expected no findings, got %d", len(assessment.Findings))
	}
	if assessment.SuggestedTitle != "X" {
		t.Errorf("suggested title = %q", assessment.SuggestedTitle)
	}
}

func TestParseAssessmentNotJSON(t *testing.T) {
	assessment, failure := parseAssessment("I could not analyze this product, sorry.")
	if assessment != nil {
		t.Fatal("expected nil assessment")
	}
	if failure == nil {
		t.Fatal("expected a parse failure")
	}
	if !strings.Contains(failure.Reason, "not valid JSON") {
		t.Errorf("unexpected reason: %q", failure.Reason)
	}
	if failure.Raw == "" {
		t.Error("raw response not preserved")
	}
}

func TestParseAssessmentMissingIssuesKey(t *testing.T) {
	_, failure := parseAssessment(`{"suggestedTitle": "X"}`)
	if failure == nil {
		t.Fatal("expected a parse failure")
	}
	if !strings.Contains(failure.Reason, "issues") {
		t.Errorf("unexpected reason: %q", failure.Reason)
	}
}

func TestParseAssessmentDropsEmptyFindings(t *testing.T) {
	raw := `{"issues": [{"type": "  ", "severity": "info", "title": ""}, {"type": "thin_description", "severity": "warning", "title": "Thin description"}]}`

	assessment, failure := parseAssessment(raw)
	if failure != nil {
		t.Fatalf("unexpected failure: %s", failure.Reason)
	}
	if len(assessment.Findings) != 1 {
		t.Fatalf("expected empty finding to be dropped, got %d findings", len(assessment.Findings))
	}
	if assessment.Findings[0].Type != "thin_description" {
		t.Errorf("wrong finding kept: %q", assessment.Findings[0].Type)
	}
}
