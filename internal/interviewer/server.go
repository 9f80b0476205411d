package interviewer

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ravindra162/prepAI-sub000/internal/judge"
	"github.com/Ravindra162/prepAI-sub000/internal/models"
)

const (
	defaultInterviewLength = 30 * time.Minute
	progressInterval       = time.Minute
)

// Server is a websocket interview backend for development. One goroutine per
// connection reads candidate events; all writes to the socket go through a
// mutex so timers and the reader never interleave frames.
type Server struct {
	provider func() Provider
	log      *zap.Logger
	upgrader websocket.Upgrader
	length   time.Duration
}

func NewServer(provider func() Provider, log *zap.Logger) *Server {
	return &Server{
		provider: provider,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		length: defaultInterviewLength,
	}
}

// SetInterviewLength overrides the session duration (tests shrink it).
func (s *Server) SetInterviewLength(d time.Duration) { s.length = d }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("dev backend upgrade failed", zap.Error(err))
		return
	}
	sess := &devSession{
		srv:      s,
		conn:     conn,
		provider: s.provider(),
		log:      s.log,
		language: models.LangPython,
	}
	sess.run()
}

type devSession struct {
	srv      *Server
	conn     *websocket.Conn
	provider Provider
	log      *zap.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	sessionID string
	candidate models.Candidate
	phase     models.Phase
	history   []models.Message
	problem   *models.Problem
	language  models.Language
	lastRun   *models.ExecutionResult
	code      string
	hints     int
	idleRuns  int
	startedAt time.Time
	ended     bool
}

func (d *devSession) send(typ string, v any) {
	evt, err := models.NewEvent(typ, v)
	if err != nil {
		d.log.Error("encode outbound event", zap.String("type", typ), zap.Error(err))
		return
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if err := d.conn.WriteJSON(evt); err != nil {
		d.log.Warn("write to candidate failed", zap.Error(err))
	}
}

func (d *devSession) record(sender models.Sender, text string) {
	d.mu.Lock()
	d.history = append(d.history, models.Message{
		Sender: sender, Content: text, Timestamp: time.Now(),
	})
	d.mu.Unlock()
}

func (d *devSession) run() {
	defer d.conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		var evt models.Event
		if err := d.conn.ReadJSON(&evt); err != nil {
			return
		}
		switch evt.Type {
		case models.EvtJoinInterview:
			var data models.JoinInterviewData
			if err := evt.Decode(&data); err != nil {
				d.send(models.EvtError, models.ErrorData{Message: "malformed join request"})
				continue
			}
			d.onJoin(ctx, data)
		case models.EvtCandidateMessage:
			var data models.CandidateMessageData
			if err := evt.Decode(&data); err != nil {
				continue
			}
			d.onCandidateMessage(ctx, data)
		case models.EvtExecuteCode:
			var data models.ExecuteCodeData
			if err := evt.Decode(&data); err != nil {
				continue
			}
			d.onExecute(ctx, data)
		case models.EvtRequestHint:
			var data models.RequestHintData
			if err := evt.Decode(&data); err != nil {
				continue
			}
			d.onHint(ctx, data)
		case models.EvtChangeLanguage:
			var data models.ChangeLanguageData
			if err := evt.Decode(&data); err != nil {
				continue
			}
			d.onChangeLanguage(data)
		case models.EvtEndInterview:
			d.onEnd(ctx)
		case models.EvtCodeActivity:
			var data models.CodeActivityData
			if err := evt.Decode(&data); err != nil {
				continue
			}
			d.onCodeActivity(ctx, data)
		default:
			d.log.Warn("unknown candidate event", zap.String("type", evt.Type))
		}
	}
}

func (d *devSession) onJoin(ctx context.Context, data models.JoinInterviewData) {
	turn, err := d.provider.Greet(ctx, data.Candidate)
	if err != nil {
		d.send(models.EvtError, models.ErrorData{Message: "interviewer unavailable"})
		return
	}

	d.mu.Lock()
	d.sessionID = data.SessionID
	d.candidate = data.Candidate
	d.phase = models.PhaseIntroduction
	d.startedAt = time.Now()
	d.mu.Unlock()
	d.record(models.SenderInterviewer, turn.Message)

	d.send(models.EvtSessionStarted, models.SessionStartedData{
		SessionID: data.SessionID,
		Phase:     models.PhaseIntroduction,
		Message:   turn.Message,
		Status:    d.status(),
	})

	go d.progressLoop(ctx)
	time.AfterFunc(d.srv.length, func() { d.forceEnd(ctx) })
}

func (d *devSession) onCandidateMessage(ctx context.Context, data models.CandidateMessageData) {
	d.record(models.SenderCandidate, data.Message)

	d.mu.Lock()
	phase := d.phase
	history := append([]models.Message(nil), d.history...)
	d.mu.Unlock()

	turn, err := d.provider.Reply(ctx, phase, history, data.Message)
	if err != nil {
		d.log.Warn("provider reply failed", zap.Error(err))
		d.send(models.EvtError, models.ErrorData{Message: "interviewer is thinking too hard, try again"})
		return
	}
	d.applyTurn(turn)

	// Entering problem presentation assigns the next problem.
	if turn.Phase == models.PhaseProblem {
		d.assignProblem()
	}
}

func (d *devSession) applyTurn(turn Turn) {
	d.record(models.SenderInterviewer, turn.Message)
	d.mu.Lock()
	if turn.Phase.Valid() {
		d.phase = turn.Phase
	}
	d.mu.Unlock()
	d.send(models.EvtInterviewerMessage, models.InterviewerMessageData{
		Message: turn.Message,
		Phase:   turn.Phase,
		Status:  d.status(),
	})
}

func (d *devSession) assignProblem() {
	d.mu.Lock()
	next := 0
	if d.problem != nil {
		next = d.problem.ID % len(problemBank)
	}
	p := problemBank[next]
	d.problem = &p
	d.lastRun = nil
	d.mu.Unlock()

	d.send(models.EvtProblemAssigned, models.ProblemAssignedData{Problem: p})
}

// onExecute fabricates a deterministic result: template-identical or empty
// code fails everything, anything else passes everything. Good enough to
// drive the gateway's result handling end to end.
func (d *devSession) onExecute(ctx context.Context, data models.ExecuteCodeData) {
	d.mu.Lock()
	problem := d.problem
	d.code = data.Code
	d.mu.Unlock()
	if problem == nil {
		d.send(models.EvtError, models.ErrorData{Message: "no problem assigned"})
		return
	}

	res := fabricateResult(*problem, data)
	d.mu.Lock()
	d.lastRun = &res
	d.mu.Unlock()

	d.send(models.EvtExecutionResults, toJudgeWire(res))

	turn, err := d.provider.ReviewResults(ctx, res)
	if err != nil {
		d.log.Warn("provider review failed", zap.Error(err))
		return
	}
	d.applyTurn(turn)
}

func fabricateResult(problem models.Problem, data models.ExecuteCodeData) models.ExecutionResult {
	trimmed := strings.TrimSpace(data.Code)
	template := strings.TrimSpace(problem.Template(data.Language))

	if trimmed == "" {
		return models.ExecutionResult{Error: "no code submitted"}
	}

	pass := trimmed != template && !strings.Contains(trimmed, "TODO")
	tests := make([]models.TestResult, len(problem.TestCases))
	passed := 0
	for i, tc := range problem.TestCases {
		tests[i] = models.TestResult{
			Passed:   pass,
			Input:    tc.Input,
			Expected: tc.Expected,
		}
		if pass {
			tests[i].Actual = tc.Expected
			passed++
		} else {
			tests[i].Error = "wrong answer"
		}
	}
	return models.ExecutionResult{
		Success:       passed == len(tests),
		Tests:         tests,
		PassedTests:   passed,
		TotalTests:    len(tests),
		ExecutionTime: float64(40 + 3*len(trimmed)%100),
	}
}

// toJudgeWire reshapes a result into the judge's wire schema, which is what
// the execution-results event carries.
func toJudgeWire(res models.ExecutionResult) judge.RawResult {
	wire := judge.RawResult{
		Success:         res.Success,
		PassedTests:     &res.PassedTests,
		TotalTests:      &res.TotalTests,
		ExecutionTimeMs: res.ExecutionTime,
		Error:           res.Error,
	}
	for _, t := range res.Tests {
		wire.TestResults = append(wire.TestResults, judge.RawTest{
			Passed:   t.Passed,
			Input:    t.Input,
			Expected: t.Expected,
			Actual:   t.Actual,
			Error:    t.Error,
		})
	}
	return wire
}

// onCodeActivity nudges a candidate who has gone idle while coding. One nudge
// per idle streak; typing again re-arms it.
func (d *devSession) onCodeActivity(ctx context.Context, data models.CodeActivityData) {
	d.mu.Lock()
	if data.Active {
		d.idleRuns = 0
		d.mu.Unlock()
		return
	}
	d.idleRuns++
	fire := d.idleRuns == 2 && d.phase == models.PhaseCoding && !d.ended
	d.mu.Unlock()
	if !fire {
		return
	}

	turn, err := d.provider.Encourage(ctx, data)
	if err != nil {
		d.log.Warn("provider encouragement failed", zap.Error(err))
		return
	}
	d.record(models.SenderInterviewer, turn.Message)
	d.send(models.EvtEncouragement, models.InterviewerMessageData{Message: turn.Message})
}

func (d *devSession) onHint(ctx context.Context, data models.RequestHintData) {
	d.mu.Lock()
	problem := d.problem
	d.hints++
	hints := d.hints
	d.mu.Unlock()
	if problem == nil {
		d.send(models.EvtError, models.ErrorData{Message: "no problem assigned"})
		return
	}

	turn, err := d.provider.Hint(ctx, *problem, data.Code)
	if err != nil {
		d.log.Warn("provider hint failed", zap.Error(err))
		return
	}
	d.record(models.SenderInterviewer, turn.Message)
	d.send(models.EvtInterviewerMessage, models.InterviewerMessageData{
		Message:   turn.Message,
		HintsUsed: &hints,
		Status:    d.status(),
	})
}

func (d *devSession) onChangeLanguage(data models.ChangeLanguageData) {
	if !validLanguage(data.Language) {
		d.send(models.EvtError, models.ErrorData{Message: "unsupported language"})
		return
	}
	d.mu.Lock()
	d.language = data.Language
	problem := d.problem
	d.mu.Unlock()

	template := ""
	if problem != nil {
		template = problem.Template(data.Language)
	}
	d.send(models.EvtLanguageChanged, models.LanguageChangedData{
		Language: data.Language,
		Template: template,
	})
}

func (d *devSession) onEnd(ctx context.Context) {
	d.mu.Lock()
	if d.ended {
		d.mu.Unlock()
		return
	}
	d.ended = true
	history := append([]models.Message(nil), d.history...)
	code := d.code
	lastRun := d.lastRun
	d.mu.Unlock()

	eval, err := d.provider.Evaluate(ctx, history, code, lastRun)
	if err != nil {
		d.log.Warn("provider evaluation failed", zap.Error(err))
		eval = models.Evaluation{Score: 5, Summary: "Thanks for completing the interview."}
	}
	d.send(models.EvtInterviewCompleted, models.InterviewCompletedData{Evaluation: eval})
}

func (d *devSession) forceEnd(ctx context.Context) {
	d.mu.Lock()
	if d.ended {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	d.send(models.EvtForceEnd, models.ForceEndData{
		Message: "We're at time, so let's stop here. Thanks for working through this with me!",
	})
	d.onEnd(ctx)
}

func (d *devSession) progressLoop(ctx context.Context) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			ended := d.ended
			d.mu.Unlock()
			if ended {
				return
			}
			d.send(models.EvtProgressUpdate, models.ProgressUpdateData{
				RemainingSec: d.remainingSec(),
			})
		}
	}
}

func (d *devSession) remainingSec() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	remaining := d.srv.length - time.Since(d.startedAt)
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining.Seconds())
}

func (d *devSession) status() *models.InterviewStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	elapsed := time.Since(d.startedAt)
	remaining := d.srv.length - elapsed
	if remaining < 0 {
		remaining = 0
	}
	// Progress stays a finite fraction even for very short sessions; a NaN
	// here would make the whole event unmarshalable.
	progress := 1.0
	if d.srv.length > 0 {
		progress = elapsed.Seconds() / d.srv.length.Seconds()
		if progress > 1 {
			progress = 1
		}
	}
	return &models.InterviewStatus{
		ElapsedSec:   int(elapsed.Seconds()),
		RemainingSec: int(remaining.Seconds()),
		Progress:     progress,
		Phase:        d.phase,
	}
}

func validLanguage(lang models.Language) bool {
	switch lang {
	case models.LangPython, models.LangJava, models.LangCPP, models.LangJavaScript:
		return true
	}
	return false
}
