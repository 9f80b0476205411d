package judge

import (
	"encoding/json"
	"testing"

	"github.com/Ravindra162/prepAI-sub000/internal/models"
)

func TestInterpretComputesAggregates(t *testing.T) {
	raw := RawResult{
		Success: false,
		TestResults: []RawTest{
			{Passed: true, Input: json.RawMessage(`[2,7]`), Expected: json.RawMessage(`9`), Actual: json.RawMessage(`9`)},
			{Passed: false, Input: json.RawMessage(`[3,3]`), Expected: json.RawMessage(`6`), Actual: json.RawMessage(`5`), Error: "wrong answer"},
			{Passed: true},
		},
		ExecutionTimeMs: 42.5,
	}

	res := Interpret(raw)
	if res.PassedTests != 2 || res.TotalTests != 3 {
		t.Fatalf("expected 2/3, got %d/%d", res.PassedTests, res.TotalTests)
	}
	if res.Success {
		t.Fatalf("success flag must pass through unchanged")
	}
	if res.ExecutionTime != 42.5 {
		t.Fatalf("execution time not carried: %v", res.ExecutionTime)
	}
	if res.Tests[1].Error != "wrong answer" {
		t.Fatalf("per-test error dropped: %#v", res.Tests[1])
	}
}

func TestInterpretTrustsJudgeAggregates(t *testing.T) {
	passed, total := 5, 10
	raw := RawResult{
		TestResults: []RawTest{{Passed: true}},
		PassedTests: &passed,
		TotalTests:  &total,
	}
	res := Interpret(raw)
	if res.PassedTests != 5 || res.TotalTests != 10 {
		t.Fatalf("judge aggregates overridden: %d/%d", res.PassedTests, res.TotalTests)
	}
}

func TestInterpretCompileErrorWithoutTests(t *testing.T) {
	raw := RawResult{Success: false, Error: "SyntaxError: invalid syntax"}
	res := Interpret(raw)
	if res.Error != "SyntaxError: invalid syntax" {
		t.Fatalf("top-level error dropped")
	}
	if len(res.Tests) != 0 || res.TotalTests != 0 {
		t.Fatalf("tests synthesized for a run that never happened: %#v", res)
	}
}

func TestInterpretErrorAndTestsCoexist(t *testing.T) {
	raw := RawResult{
		Error:       "warning: deprecated API",
		TestResults: []RawTest{{Passed: true}, {Passed: true}},
	}
	res := Interpret(raw)
	if res.Error == "" || res.PassedTests != 2 {
		t.Fatalf("top-level error and per-test results must coexist: %#v", res)
	}
}

func TestDecodeCarriesPhase(t *testing.T) {
	payload := []byte(`{"success":true,"testResults":[{"passed":true}],"phase":"conclusion"}`)
	raw, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raw.Phase != models.PhaseConclusion {
		t.Fatalf("expected conclusion phase, got %q", raw.Phase)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := Decode([]byte(`{"success":`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
