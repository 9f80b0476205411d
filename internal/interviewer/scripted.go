package interviewer

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ravindra162/prepAI-sub000/internal/models"
)

// Scripted is a deterministic provider for local development and tests. Its
// turns depend only on the inputs, never on wall time or randomness.
type Scripted struct {
	replies int
}

func NewScripted() *Scripted { return &Scripted{} }

func (s *Scripted) Name() string { return "scripted" }

func (s *Scripted) Greet(ctx context.Context, candidate models.Candidate) (Turn, error) {
	name := candidate.Name
	if name == "" {
		name = "there"
	}
	return Turn{
		Message: fmt.Sprintf("Hi %s, welcome to your mock interview! Tell me a bit about yourself before we dive into a problem.", name),
		Phase:   models.PhaseIntroduction,
	}, nil
}

func (s *Scripted) Reply(ctx context.Context, phase models.Phase, history []models.Message, text string) (Turn, error) {
	s.replies++
	switch phase {
	case models.PhaseIntroduction:
		return Turn{
			Message: "Great, thanks for sharing. Let's look at a problem together. I'll put it up now; read it through and tell me your initial approach.",
			Phase:   models.PhaseProblem,
		}, nil
	case models.PhaseProblem:
		return Turn{
			Message: "That sounds like a reasonable direction. Go ahead and start coding it up.",
			Phase:   models.PhaseCoding,
		}, nil
	case models.PhaseCoding, models.PhaseTesting:
		if strings.Contains(strings.ToLower(text), "stuck") {
			return Turn{Message: "Take a step back: what data structure gives you constant time lookups?"}, nil
		}
		return Turn{Message: "Keep going, you're on the right track. Run your code whenever you're ready."}, nil
	case models.PhaseConclusion:
		return Turn{Message: "Any last questions for me before we wrap up?"}, nil
	default:
		return Turn{Message: "Let's continue."}, nil
	}
}

func (s *Scripted) ReviewResults(ctx context.Context, res models.ExecutionResult) (Turn, error) {
	if res.Error != "" {
		return Turn{Message: "Looks like it didn't run cleanly. Read the error carefully and fix it."}, nil
	}
	if res.Success {
		return Turn{
			Message: fmt.Sprintf("Nice, all %d tests pass. Let's talk about the complexity of your solution.", res.TotalTests),
			Phase:   models.PhaseConclusion,
		}, nil
	}
	return Turn{
		Message: fmt.Sprintf("%d of %d tests pass. Look at the failing case and walk me through what your code does with it.", res.PassedTests, res.TotalTests),
		Phase:   models.PhaseTesting,
	}, nil
}

func (s *Scripted) Hint(ctx context.Context, problem models.Problem, code string) (Turn, error) {
	if strings.TrimSpace(code) == "" {
		return Turn{Message: "Start by writing the function signature and handling the trivial case first."}, nil
	}
	return Turn{Message: "Think about what you recompute on every iteration. Could you remember it instead?"}, nil
}

func (s *Scripted) Encourage(ctx context.Context, activity models.CodeActivityData) (Turn, error) {
	if activity.CodeLength == 0 {
		return Turn{Message: "No rush. Start with the function signature and the simplest case, we can build from there."}, nil
	}
	return Turn{Message: "Take your time. Talking through where you are often shakes the next step loose."}, nil
}

func (s *Scripted) Evaluate(ctx context.Context, history []models.Message, code string, res *models.ExecutionResult) (models.Evaluation, error) {
	score := 5.0
	strengths := []string{"Communicated throughout the session"}
	areas := []string{"Practice articulating complexity tradeoffs"}
	if res != nil && res.Success {
		score = 8.0
		strengths = append(strengths, "Reached a fully passing solution")
	} else if res != nil {
		areas = append(areas, "Work on debugging failing test cases systematically")
	}
	return models.Evaluation{
		Score:     score,
		Summary:   "Solid session overall. You engaged with the problem, responded to guidance, and made steady progress.",
		Strengths: strengths,
		Areas:     areas,
	}, nil
}
