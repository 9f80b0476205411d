package session

import "github.com/Ravindra162/prepAI-sub000/internal/models"

// Editor visibility reasons.
const (
	EditorNoProblem     = "no-problem"
	EditorPhaseReady    = "phase-ready"
	EditorReviewResults = "reviewing-results"
	EditorPhaseNotReady = "phase-not-ready"
)

// ShouldShowEditor decides whether the code editor is visible. A problem must
// exist; then either the phase is in the coding/testing/conclusion set, or a
// result set is already present (the candidate returning to review a finished
// run). Pure, so the joint condition is testable away from rendering.
func ShouldShowEditor(phase models.Phase, problem *models.Problem, results *models.ExecutionResult) (bool, string) {
	if problem == nil {
		return false, EditorNoProblem
	}
	switch phase {
	case models.PhaseCoding, models.PhaseTesting, models.PhaseConclusion:
		return true, EditorPhaseReady
	}
	if results != nil {
		return true, EditorReviewResults
	}
	return false, EditorPhaseNotReady
}
