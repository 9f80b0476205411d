package models

import (
	"encoding/json"
	"time"
)

// Phase is the single authoritative stage of an interview session. Transitions
// are driven only by inbound channel events or explicit terminal actions,
// never inferred from UI state.
type Phase string

const (
	PhaseDisconnected Phase = "disconnected"
	PhaseConnecting   Phase = "connecting"
	PhaseIntroduction Phase = "introduction"
	PhaseProblem      Phase = "problem-presentation"
	PhaseCoding       Phase = "coding"
	PhaseTesting      Phase = "testing"
	PhaseConclusion   Phase = "conclusion"
	PhaseCompleted    Phase = "completed"
)

// Valid reports whether p is one of the modeled phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseDisconnected, PhaseConnecting, PhaseIntroduction, PhaseProblem,
		PhaseCoding, PhaseTesting, PhaseConclusion, PhaseCompleted:
		return true
	}
	return false
}

type Language string

const (
	LangPython     Language = "python"
	LangJava       Language = "java"
	LangCPP        Language = "cpp"
	LangJavaScript Language = "javascript"
)

// Candidate is the profile supplied when an interview starts. Name and Email
// must be validated non-empty by the caller before StartInterview.
type Candidate struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Experience string   `json:"experience,omitempty"`
	Skills     []string `json:"skills,omitempty"`
}

// Session is created once per interview attempt and is immutable after
// creation except for profile enrichment.
type Session struct {
	ID        string    `json:"id"`
	Candidate Candidate `json:"candidate"`
	CreatedAt time.Time `json:"createdAt"`
}

type Sender string

const (
	SenderInterviewer Sender = "interviewer"
	SenderCandidate   Sender = "candidate"
)

// AudioPayload is a pre-fetched binary audio attachment carried inline on
// certain channel events.
type AudioPayload struct {
	Data        []byte `json:"data"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// Message is one entry in the append-only interview transcript. Candidate
// messages are appended locally at send time (optimistic); interviewer
// messages only at receive time.
type Message struct {
	Sender    Sender        `json:"sender"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Audio     *AudioPayload `json:"audio,omitempty"`
}

type TestCase struct {
	Input    json.RawMessage `json:"input"`
	Expected json.RawMessage `json:"expected"`
}

// Problem is remote-authoritative: assigned over the channel and overwritten
// wholesale on receipt.
type Problem struct {
	ID          int                 `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Difficulty  string              `json:"difficulty"`
	Category    string              `json:"category"`
	Constraints string              `json:"constraints,omitempty"`
	TestCases   []TestCase          `json:"testCases"`
	Templates   map[Language]string `json:"templates"`
	DriverCode  map[Language]string `json:"driverCode,omitempty"`
}

// Template returns the starter code for lang, or "" when absent.
func (p *Problem) Template(lang Language) string {
	if p == nil {
		return ""
	}
	return p.Templates[lang]
}

// TestResult is the outcome of one test case run.
type TestResult struct {
	Passed   bool            `json:"passed"`
	Input    json.RawMessage `json:"input,omitempty"`
	Expected json.RawMessage `json:"expected,omitempty"`
	Actual   json.RawMessage `json:"actual,omitempty"`
	Error    string          `json:"error,omitempty"`
	Details  map[string]any  `json:"details,omitempty"`
}

// ExecutionResult is produced fresh on every run and fully replaces the prior
// result. A top-level Error (e.g. compile failure) is orthogonal to per-test
// outcomes: both can be present at once.
type ExecutionResult struct {
	Success       bool         `json:"success"`
	Tests         []TestResult `json:"tests"`
	PassedTests   int          `json:"passedTests"`
	TotalTests    int          `json:"totalTests"`
	ExecutionTime float64      `json:"executionTimeMs"`
	Error         string       `json:"error,omitempty"`
}

// InterviewStatus is derived, display-only state mirrored from the remote
// side. It is never used to drive phase transitions locally.
type InterviewStatus struct {
	ElapsedSec     int     `json:"elapsedSeconds"`
	RemainingSec   int     `json:"remainingSeconds"`
	Progress       float64 `json:"progress"`
	Phase          Phase   `json:"phase"`
	ShouldConclude bool    `json:"shouldConclude"`
}

// Evaluation is the final assessment delivered on interview completion.
type Evaluation struct {
	Score     float64        `json:"score"`
	Summary   string         `json:"summary"`
	Strengths []string       `json:"strengths,omitempty"`
	Areas     []string       `json:"areasForImprovement,omitempty"`
	Breakdown map[string]any `json:"breakdown,omitempty"`
}

/*** Channel event envelope and payloads (backend <-> orchestrator) ***/

// Event is the wire envelope on the realtime channel. Data stays raw so each
// handler decodes its own payload shape.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound event names (backend -> orchestrator).
const (
	EvtSessionStarted     = "session-started"
	EvtInterviewerMessage = "interviewer-response"
	EvtProblemAssigned    = "problem-assigned"
	EvtExecutionResults   = "execution-results"
	EvtEncouragement      = "gentle-encouragement"
	EvtProgressUpdate     = "progress-update"
	EvtLanguageChanged    = "language-changed"
	EvtInterviewCompleted = "interview-completed"
	EvtForceEnd           = "force-interview-end"
	EvtError              = "error"
)

// Outbound event names (orchestrator -> backend).
const (
	EvtJoinInterview    = "join-interview"
	EvtCandidateMessage = "candidate-message"
	EvtExecuteCode      = "execute-code"
	EvtRequestHint      = "request-hint"
	EvtChangeLanguage   = "change-language"
	EvtEndInterview     = "end-interview"
	EvtCodeActivity     = "code-activity"
)

type SessionStartedData struct {
	SessionID string           `json:"sessionId"`
	Phase     Phase            `json:"phase"`
	Status    *InterviewStatus `json:"status,omitempty"`
	Message   string           `json:"message"`
	Audio     *AudioPayload    `json:"audio,omitempty"`
}

type InterviewerMessageData struct {
	Message      string           `json:"message"`
	Audio        *AudioPayload    `json:"audio,omitempty"`
	Phase        Phase            `json:"phase,omitempty"`
	RemainingSec *int             `json:"remainingSeconds,omitempty"`
	HintsUsed    *int             `json:"hintsUsed,omitempty"`
	Status       *InterviewStatus `json:"status,omitempty"`
}

type ProblemAssignedData struct {
	Problem Problem `json:"problem"`
}

type ProgressUpdateData struct {
	RemainingSec int `json:"remainingSeconds"`
}

type LanguageChangedData struct {
	Language Language `json:"language"`
	Template string   `json:"template"`
}

type InterviewCompletedData struct {
	Evaluation Evaluation    `json:"evaluation"`
	Audio      *AudioPayload `json:"audio,omitempty"`
}

type ForceEndData struct {
	Message string        `json:"message"`
	Audio   *AudioPayload `json:"audio,omitempty"`
}

type ErrorData struct {
	Message string `json:"message"`
}

type JoinInterviewData struct {
	SessionID string    `json:"sessionId"`
	Candidate Candidate `json:"candidate"`
	Resume    string    `json:"resume,omitempty"`
}

type CandidateMessageData struct {
	Message string `json:"message"`
	Phase   Phase  `json:"phase"`
}

type ExecuteCodeData struct {
	Code      string   `json:"code"`
	Language  Language `json:"language"`
	ProblemID int      `json:"problemId"`
}

type RequestHintData struct {
	Code string `json:"code"`
}

type ChangeLanguageData struct {
	Language Language `json:"language"`
}

type EndInterviewData struct {
	Feedback string `json:"feedback,omitempty"`
}

type CodeActivityData struct {
	Active      bool  `json:"active"`
	IdleSeconds int   `json:"idleSeconds"`
	CodeLength  int   `json:"codeLength"`
	Timestamp   int64 `json:"timestamp"`
}

// NewEvent marshals v into an Event envelope.
func NewEvent(typ string, v any) (Event, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Data: b}, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}
