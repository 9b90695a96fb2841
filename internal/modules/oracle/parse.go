package oracle

import (
	"encoding/json"
	"strings"
)

// unmarshalOracleJSON tolerates the usual model output wrapping, code fences
// and leading prose, before giving up.
func unmarshalOracleJSON(raw string, out interface{}) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}

	return json.Unmarshal([]byte(cleaned), out)
}

// parseAssessment turns the raw model output into an Assessment, or a
// ParseFailure describing why the payload was rejected. Exactly one of the
// two return values is non-nil.
func parseAssessment(raw string) (*Assessment, *ParseFailure) {
	var probe map[string]json.RawMessage
	if err := unmarshalOracleJSON(raw, &probe); err != nil {
		return nil, &ParseFailure{Raw: raw, Reason: "response is not valid JSON: " + err.Error()}
	}
	if _, ok := probe["issues"]; !ok {
		return nil, &ParseFailure{Raw: raw, Reason: "response JSON has no issues key"}
	}

	var assessment Assessment
	if err := unmarshalOracleJSON(raw, &assessment); err != nil {
		return nil, &ParseFailure{Raw: raw, Reason: "response JSON does not match the expected shape: " + err.Error()}
	}

	findings := make([]Finding, 0, len(assessment.Findings))
	for _, finding := range assessment.Findings {
		finding.Type = strings.TrimSpace(finding.Type)
		finding.Severity = strings.ToLower(strings.TrimSpace(finding.Severity))
		finding.Title = strings.TrimSpace(finding.Title)
		if finding.Type == "" && finding.Title == "" {
			continue
		}
		findings = append(findings, finding)
	}
	assessment.Findings = findings

	assessment.SuggestedTitle = strings.TrimSpace(assessment.SuggestedTitle)
	assessment.SuggestedDescription = strings.TrimSpace(assessment.SuggestedDescription)
	assessment.SuggestedAltText = strings.TrimSpace(assessment.SuggestedAltText)

	return &assessment, nil
}
