package interviewer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/Ravindra162/prepAI-sub000/internal/models"
)

const defaultGeminiModel = "gemini-2.5-flash"

const interviewerSystemPrompt = `You are a friendly but rigorous technical interviewer running a live coding interview.
Keep every reply short and conversational, two to four sentences.
Never reveal a full solution. Guide with questions and small nudges.`

// Gemini produces interviewer turns with the Gemini API. Phase transitions
// stay rule-driven; only the wording comes from the model.
type Gemini struct {
	client *genai.Client
	model  string
	rules  *Scripted
}

func NewGemini(ctx context.Context) (*Gemini, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, &ProviderError{Provider: "gemini", Op: "init",
			Err: fmt.Errorf("GEMINI_API_KEY environment variable is required")}
	}
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Op: "init", Err: err}
	}
	return &Gemini{client: client, model: model, rules: NewScripted()}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) generate(ctx context.Context, op, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(interviewerSystemPrompt+"\n\n"+prompt),
		nil,
	)
	if err != nil {
		return "", &ProviderError{Provider: "gemini", Op: op, Err: err}
	}
	if result == nil {
		return "", &ProviderError{Provider: "gemini", Op: op, Err: fmt.Errorf("no response generated")}
	}
	text, err := result.Text()
	if err != nil {
		return "", &ProviderError{Provider: "gemini", Op: op, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ProviderError{Provider: "gemini", Op: op, Err: fmt.Errorf("empty response generated")}
	}
	return text, nil
}

func (g *Gemini) Greet(ctx context.Context, candidate models.Candidate) (Turn, error) {
	msg, err := g.generate(ctx, "greet", fmt.Sprintf(
		"Greet the candidate named %q and ask them to briefly introduce themselves.", candidate.Name))
	if err != nil {
		return Turn{}, err
	}
	return Turn{Message: msg, Phase: models.PhaseIntroduction}, nil
}

func (g *Gemini) Reply(ctx context.Context, phase models.Phase, history []models.Message, text string) (Turn, error) {
	// The rule layer decides where the conversation goes next.
	ruled, _ := g.rules.Reply(ctx, phase, history, text)

	var b strings.Builder
	fmt.Fprintf(&b, "Current interview phase: %s.\n", phase)
	for _, m := range tail(history, 10) {
		fmt.Fprintf(&b, "%s: %s\n", m.Sender, m.Content)
	}
	fmt.Fprintf(&b, "candidate: %s\n", text)
	fmt.Fprintf(&b, "Reply as the interviewer. Intent for this turn: %s", ruled.Message)

	msg, err := g.generate(ctx, "reply", b.String())
	if err != nil {
		return Turn{}, err
	}
	return Turn{Message: msg, Phase: ruled.Phase}, nil
}

func (g *Gemini) ReviewResults(ctx context.Context, res models.ExecutionResult) (Turn, error) {
	ruled, _ := g.rules.ReviewResults(ctx, res)
	summary, _ := json.Marshal(res)
	msg, err := g.generate(ctx, "review", fmt.Sprintf(
		"The candidate ran their code. Result: %s\nComment briefly as the interviewer. Intent: %s",
		summary, ruled.Message))
	if err != nil {
		return Turn{}, err
	}
	return Turn{Message: msg, Phase: ruled.Phase}, nil
}

func (g *Gemini) Hint(ctx context.Context, problem models.Problem, code string) (Turn, error) {
	msg, err := g.generate(ctx, "hint", fmt.Sprintf(
		"Problem: %s\n%s\n\nCandidate code so far:\n%s\n\nGive one small hint, never the solution.",
		problem.Title, problem.Description, code))
	if err != nil {
		return Turn{}, err
	}
	return Turn{Message: msg}, nil
}

func (g *Gemini) Encourage(ctx context.Context, activity models.CodeActivityData) (Turn, error) {
	ruled, _ := g.rules.Encourage(ctx, activity)
	msg, err := g.generate(ctx, "encourage", fmt.Sprintf(
		"The candidate has been quiet for %d seconds with %d characters of code written. Offer one short, warm nudge without giving anything away. Intent: %s",
		activity.IdleSeconds, activity.CodeLength, ruled.Message))
	if err != nil {
		return Turn{}, err
	}
	return Turn{Message: msg}, nil
}

func (g *Gemini) Evaluate(ctx context.Context, history []models.Message, code string, res *models.ExecutionResult) (models.Evaluation, error) {
	// Scores stay rule-derived so they are comparable across sessions;
	// Gemini writes the prose summary.
	eval, _ := g.rules.Evaluate(ctx, history, code, res)
	var b strings.Builder
	b.WriteString("Write a three sentence final interview assessment addressed to the candidate.\nTranscript:\n")
	for _, m := range tail(history, 20) {
		fmt.Fprintf(&b, "%s: %s\n", m.Sender, m.Content)
	}
	fmt.Fprintf(&b, "\nFinal code:\n%s\n", code)

	summary, err := g.generate(ctx, "evaluate", b.String())
	if err != nil {
		return eval, nil // fall back to the scripted summary
	}
	eval.Summary = summary
	return eval, nil
}

func tail(msgs []models.Message, n int) []models.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
