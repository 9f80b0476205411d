// Package judge normalizes raw execution-result payloads from the remote code
// judge into the structures consumed by the session controller and UI. It is a
// pure data-shaping boundary and performs no network I/O.
package judge

import (
	"encoding/json"
	"fmt"

	"github.com/Ravindra162/prepAI-sub000/internal/models"
)

// RawTest mirrors the judge's per-test schema. Actual/Expected stay raw JSON:
// the judge compares values, the orchestrator only displays them.
type RawTest struct {
	Passed   bool            `json:"passed"`
	Input    json.RawMessage `json:"input"`
	Expected json.RawMessage `json:"expected"`
	Actual   json.RawMessage `json:"actual"`
	Error    string          `json:"error,omitempty"`
	Details  map[string]any  `json:"details,omitempty"`
}

// RawResult mirrors the judge's response schema as it arrives on the
// execution-results channel event. Phase, when present, legitimately drives a
// phase transition (e.g. all tests passing advances toward conclusion).
type RawResult struct {
	Success         bool         `json:"success"`
	TestResults     []RawTest    `json:"testResults"`
	PassedTests     *int         `json:"passedTests,omitempty"`
	TotalTests      *int         `json:"totalTests,omitempty"`
	ExecutionTimeMs float64      `json:"executionTimeMs"`
	Error           string       `json:"error,omitempty"`
	Phase           models.Phase `json:"phase,omitempty"`
}

// Decode parses an execution-results payload.
func Decode(data json.RawMessage) (RawResult, error) {
	var raw RawResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawResult{}, fmt.Errorf("decode execution results: %w", err)
	}
	return raw, nil
}

// Interpret maps a raw judge payload into the session's execution result
// model. A top-level error (e.g. a compile failure) is kept orthogonal to
// per-test outcomes; no pass/fail is synthesized for tests that never ran.
func Interpret(raw RawResult) models.ExecutionResult {
	out := models.ExecutionResult{
		Success:       raw.Success,
		ExecutionTime: raw.ExecutionTimeMs,
		Error:         raw.Error,
	}

	if len(raw.TestResults) > 0 {
		out.Tests = make([]models.TestResult, 0, len(raw.TestResults))
		for _, t := range raw.TestResults {
			out.Tests = append(out.Tests, models.TestResult{
				Passed:   t.Passed,
				Input:    t.Input,
				Expected: t.Expected,
				Actual:   t.Actual,
				Error:    t.Error,
				Details:  t.Details,
			})
		}
	}

	passed := 0
	for _, t := range out.Tests {
		if t.Passed {
			passed++
		}
	}

	// Trust the judge's aggregates when supplied, recompute otherwise.
	if raw.PassedTests != nil {
		out.PassedTests = *raw.PassedTests
	} else {
		out.PassedTests = passed
	}
	if raw.TotalTests != nil {
		out.TotalTests = *raw.TotalTests
	} else {
		out.TotalTests = len(out.Tests)
	}

	return out
}
