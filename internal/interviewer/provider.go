// Package interviewer is a development stand-in for the real interview
// backend. It speaks the same websocket event protocol the gateway channel
// expects, with interviewer turns produced either by a deterministic script
// or by Gemini.
package interviewer

import (
	"context"
	"fmt"

	"github.com/Ravindra162/prepAI-sub000/internal/models"
)

// Turn is one interviewer utterance plus any phase the conversation should
// move to.
type Turn struct {
	Message string
	Phase   models.Phase
}

// Provider produces interviewer turns. Implementations must be safe for use
// from a single session goroutine; they are not shared across sessions.
type Provider interface {
	// Greet opens the interview.
	Greet(ctx context.Context, candidate models.Candidate) (Turn, error)
	// Reply answers a candidate message given the current phase.
	Reply(ctx context.Context, phase models.Phase, history []models.Message, text string) (Turn, error)
	// ReviewResults comments on an execution outcome.
	ReviewResults(ctx context.Context, res models.ExecutionResult) (Turn, error)
	// Hint produces a nudge for the current problem and code.
	Hint(ctx context.Context, problem models.Problem, code string) (Turn, error)
	// Encourage produces a gentle nudge when the candidate has gone quiet.
	Encourage(ctx context.Context, activity models.CodeActivityData) (Turn, error)
	// Evaluate closes the interview with a final assessment.
	Evaluate(ctx context.Context, history []models.Message, code string, res *models.ExecutionResult) (models.Evaluation, error)
	Name() string
}

// ProviderError wraps provider failures with enough context to log usefully.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
