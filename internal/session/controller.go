package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ravindra162/prepAI-sub000/internal/judge"
	"github.com/Ravindra162/prepAI-sub000/internal/metrics"
	"github.com/Ravindra162/prepAI-sub000/internal/models"
	"github.com/Ravindra162/prepAI-sub000/internal/voice"
)

const (
	defaultLanguage      = models.LangPython
	defaultForceEndGrace = 2 * time.Second
	statusInterval       = 10 * time.Second
)

// Notifier surfaces transient, user-visible notifications (toasts) and state
// pushes. The API layer forwards them to the UI client.
type Notifier interface {
	Notify(level, message string)
	StateChanged(snap Snapshot)
}

// NopNotifier discards everything; useful in tests.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string)  {}
func (NopNotifier) StateChanged(Snapshot) {}

// Snapshot is the read-only view of session state handed to UI collaborators.
type Snapshot struct {
	SessionID    string                  `json:"sessionId"`
	Connected    bool                    `json:"connected"`
	Phase        models.Phase            `json:"phase"`
	Messages     []models.Message        `json:"messages"`
	Code         string                  `json:"code"`
	Language     models.Language         `json:"language"`
	Problem      *models.Problem         `json:"problem,omitempty"`
	Results      *models.ExecutionResult `json:"results,omitempty"`
	Evaluation   *models.Evaluation      `json:"evaluation,omitempty"`
	Executing    bool                    `json:"executing"`
	HintsUsed    int                     `json:"hintsUsed"`
	RemainingSec int                     `json:"remainingSeconds"`
	ElapsedSec   int                     `json:"elapsedSeconds"`
	ShowEditor   bool                    `json:"showEditor"`
	EditorReason string                  `json:"editorReason"`
}

// Controller owns one interview session: connectivity, phase, message
// history, code buffer, problem, execution results, timers, and the hint/end
// actions. Phase is a single piece of truth, mutated only here and only in
// response to inbound channel events or explicit terminal actions.
//
// Candidate messages and the code buffer are locally authoritative; phase,
// problem, results, and language templates are remote-authoritative and
// overwritten wholesale on receipt.
type Controller struct {
	transport Transport
	queue     *voice.Queue
	player    *voice.Player
	notifier  Notifier
	log       *zap.Logger

	forceEndGrace time.Duration

	mu           sync.Mutex
	session      *models.Session
	connected    bool
	phase        models.Phase
	messages     []models.Message
	code         string
	language     models.Language
	problem      *models.Problem
	results      *models.ExecutionResult
	evaluation   *models.Evaluation
	executing    bool
	hintsUsed    int
	remainingSec int
	status       models.InterviewStatus
	startedAt    time.Time

	forceEndTimer *time.Timer
	forceEndGen   int

	monitor    *Monitor
	statusStop chan struct{}
}

func NewController(transport Transport, queue *voice.Queue, player *voice.Player, notifier Notifier, log *zap.Logger) *Controller {
	c := &Controller{
		transport:     transport,
		queue:         queue,
		player:        player,
		notifier:      notifier,
		log:           log,
		forceEndGrace: defaultForceEndGrace,
		phase:         models.PhaseDisconnected,
		language:      defaultLanguage,
	}
	c.monitor = NewMonitor(func(data models.CodeActivityData) {
		if err := c.transport.Emit(models.EvtCodeActivity, data); err != nil {
			c.log.Warn("activity report dropped", zap.Error(err))
		}
	})
	return c
}

// SetForceEndGrace overrides the delay between a forced end and the
// conclusion transition (tests shrink it).
func (c *Controller) SetForceEndGrace(d time.Duration) { c.forceEndGrace = d }

/*** Action surface ***/

// Connect establishes the realtime channel. On success phase becomes
// connecting; on failure the session stays disconnected and the failure is
// surfaced as a notification.
func (c *Controller) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		c.mu.Lock()
		c.connected = false
		c.phase = models.PhaseDisconnected
		c.mu.Unlock()
		c.notifier.Notify("error", "Could not reach the interview service. Please try again.")
		c.pushState()
		return err
	}
	c.mu.Lock()
	c.connected = true
	c.phase = models.PhaseConnecting
	c.mu.Unlock()
	c.pushState()
	return nil
}

// HandleChannelDown is wired to the channel's reconnect-exhaustion callback.
func (c *Controller) HandleChannelDown(cause error) {
	c.mu.Lock()
	c.connected = false
	c.phase = models.PhaseDisconnected
	c.mu.Unlock()
	c.monitor.Stop()
	c.log.Warn("interview channel lost", zap.Error(cause))
	c.notifier.Notify("error", "Connection to the interview lost.")
	c.pushState()
}

// StartInterview joins a new interview attempt. Candidate name and contact
// are validated by the caller; an empty session id mints a fresh one. The
// server is authoritative for all subsequent phase changes.
func (c *Controller) StartInterview(candidate models.Candidate, resume string) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		c.notifier.Notify("error", "Not connected to the interview service.")
		return ErrNotConnected
	}
	if c.session == nil {
		c.session = &models.Session{
			ID:        uuid.NewString(),
			Candidate: candidate,
			CreatedAt: time.Now(),
		}
	} else {
		c.session.Candidate = candidate
	}
	sessionID := c.session.ID
	c.messages = nil
	c.startedAt = time.Now()
	c.phase = models.PhaseIntroduction
	c.mu.Unlock()

	c.startStatusLoop()
	c.pushState()

	return c.transport.Emit(models.EvtJoinInterview, models.JoinInterviewData{
		SessionID: sessionID,
		Candidate: candidate,
		Resume:    resume,
	})
}

// SendMessage appends a candidate message optimistically and forwards it
// tagged with the current phase for server-side context.
func (c *Controller) SendMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		c.notifier.Notify("error", "Message cannot be empty.")
		return errors.New("empty message")
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		c.notifier.Notify("error", "Not connected to the interview service.")
		return ErrNotConnected
	}
	phase := c.phase
	c.messages = append(c.messages, models.Message{
		Sender:    models.SenderCandidate,
		Content:   text,
		Timestamp: time.Now(),
	})
	c.mu.Unlock()
	c.pushState()

	return c.transport.Emit(models.EvtCandidateMessage, models.CandidateMessageData{
		Message: text,
		Phase:   phase,
	})
}

// UpdateCode mutates the local buffer only; code is transmitted on explicit
// execution or through periodic activity monitoring.
func (c *Controller) UpdateCode(text string) {
	c.mu.Lock()
	c.code = text
	n := len(text)
	c.mu.Unlock()
	c.monitor.Touch(n)
}

// SetLanguage requests a language change. The template replacement is
// authoritative from the server response, not computed locally.
func (c *Controller) SetLanguage(lang models.Language) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		c.notifier.Notify("error", "Not connected to the interview service.")
		return ErrNotConnected
	}
	c.mu.Unlock()
	return c.transport.Emit(models.EvtChangeLanguage, models.ChangeLanguageData{Language: lang})
}

// ExecuteCode submits the current buffer for remote evaluation. It declines
// locally when no problem is assigned, the channel is down, or a run is
// already in flight.
func (c *Controller) ExecuteCode() error {
	c.mu.Lock()
	switch {
	case c.problem == nil:
		c.mu.Unlock()
		c.notifier.Notify("error", "No problem assigned yet.")
		return errors.New("no problem assigned")
	case !c.connected:
		c.mu.Unlock()
		c.notifier.Notify("error", "Not connected to the interview service.")
		return ErrNotConnected
	case c.executing:
		c.mu.Unlock()
		return errors.New("execution already in flight")
	}
	c.executing = true
	data := models.ExecuteCodeData{Code: c.code, Language: c.language, ProblemID: c.problem.ID}
	c.mu.Unlock()
	c.pushState()

	if err := c.transport.Emit(models.EvtExecuteCode, data); err != nil {
		c.mu.Lock()
		c.executing = false
		c.mu.Unlock()
		c.pushState()
		return err
	}
	return nil
}

// RequestHint is purely advisory; the server may choose to act on it.
func (c *Controller) RequestHint() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		c.notifier.Notify("error", "Not connected to the interview service.")
		return ErrNotConnected
	}
	code := c.code
	c.mu.Unlock()
	return c.transport.Emit(models.EvtRequestHint, models.RequestHintData{Code: code})
}

// EndInterview emits termination intent. Terminal once the completion event
// is acknowledged.
func (c *Controller) EndInterview(feedback string) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		c.notifier.Notify("error", "Not connected to the interview service.")
		return ErrNotConnected
	}
	c.mu.Unlock()
	return c.transport.Emit(models.EvtEndInterview, models.EndInterviewData{Feedback: feedback})
}

// Reset tears down the whole session: transport, timers, voice, and every
// piece of interview state back to initial values. Idempotent and safe from
// any state.
func (c *Controller) Reset() {
	c.transport.Close()
	c.monitor.Stop()
	c.stopStatusLoop()
	c.queue.StopAll()
	c.player.Stop()

	c.mu.Lock()
	c.cancelForceEndLocked()
	c.session = nil
	c.connected = false
	c.phase = models.PhaseDisconnected
	c.messages = nil
	c.code = ""
	c.language = defaultLanguage
	c.problem = nil
	c.results = nil
	c.evaluation = nil
	c.executing = false
	c.hintsUsed = 0
	c.remainingSec = 0
	c.status = models.InterviewStatus{}
	c.startedAt = time.Time{}
	c.mu.Unlock()
	c.pushState()
}

/*** Read-only state ***/

// Snapshot returns a consistent copy of all session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	msgs := make([]models.Message, len(c.messages))
	copy(msgs, c.messages)

	elapsed := 0
	if !c.startedAt.IsZero() {
		elapsed = int(time.Since(c.startedAt).Seconds())
	}
	show, reason := ShouldShowEditor(c.phase, c.problem, c.results)

	snap := Snapshot{
		Connected:    c.connected,
		Phase:        c.phase,
		Messages:     msgs,
		Code:         c.code,
		Language:     c.language,
		Problem:      c.problem,
		Results:      c.results,
		Evaluation:   c.evaluation,
		Executing:    c.executing,
		HintsUsed:    c.hintsUsed,
		RemainingSec: c.remainingSec,
		ElapsedSec:   elapsed,
		ShowEditor:   show,
		EditorReason: reason,
	}
	if c.session != nil {
		snap.SessionID = c.session.ID
	}
	return snap
}

// Phase returns the current phase.
func (c *Controller) Phase() models.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

/*** Inbound event handling ***/

// HandleEvent applies one inbound channel event. Events are applied strictly
// in arrival order; the channel invokes this from its single reader
// goroutine.
func (c *Controller) HandleEvent(evt models.Event) {
	switch evt.Type {
	case models.EvtSessionStarted:
		decode(c, evt, c.onSessionStarted)
	case models.EvtInterviewerMessage:
		decode(c, evt, c.onInterviewerMessage)
	case models.EvtProblemAssigned:
		decode(c, evt, c.onProblemAssigned)
	case models.EvtExecutionResults:
		c.onExecutionResults(evt)
	case models.EvtEncouragement:
		decode(c, evt, c.onEncouragement)
	case models.EvtProgressUpdate:
		decode(c, evt, c.onProgressUpdate)
	case models.EvtLanguageChanged:
		decode(c, evt, c.onLanguageChanged)
	case models.EvtInterviewCompleted:
		decode(c, evt, c.onInterviewCompleted)
	case models.EvtForceEnd:
		decode(c, evt, c.onForceEnd)
	case models.EvtError:
		decode(c, evt, c.onError)
	default:
		c.log.Warn("unknown channel event", zap.String("type", evt.Type))
	}
}

func (c *Controller) onSessionStarted(d models.SessionStartedData) {
	c.mu.Lock()
	if c.session == nil {
		c.session = &models.Session{ID: d.SessionID, CreatedAt: time.Now()}
	} else if d.SessionID != "" {
		c.session.ID = d.SessionID
	}
	if d.Phase.Valid() {
		c.setPhaseLocked(d.Phase)
	}
	if d.Status != nil {
		c.status = *d.Status
		c.remainingSec = d.Status.RemainingSec
	}
	msg := models.Message{
		Sender:    models.SenderInterviewer,
		Content:   d.Message,
		Timestamp: time.Now(),
		Audio:     d.Audio,
	}
	c.messages = []models.Message{msg}
	c.mu.Unlock()

	c.speakOrPlay(d.Message, d.Audio)
	c.pushState()
}

func (c *Controller) onInterviewerMessage(d models.InterviewerMessageData) {
	c.mu.Lock()
	c.messages = append(c.messages, models.Message{
		Sender:    models.SenderInterviewer,
		Content:   d.Message,
		Timestamp: time.Now(),
		Audio:     d.Audio,
	})
	if d.Phase.Valid() {
		c.setPhaseLocked(d.Phase)
	}
	if d.RemainingSec != nil {
		c.remainingSec = *d.RemainingSec
	}
	if d.HintsUsed != nil {
		c.hintsUsed = *d.HintsUsed
	}
	if d.Status != nil {
		c.status = *d.Status
	}
	c.mu.Unlock()

	c.speakOrPlay(d.Message, d.Audio)
	c.pushState()
}

// onProblemAssigned stores the problem and seeds the code buffer from the
// template matching the current language. It never changes phase: the coding
// transition must arrive on a subsequent interviewer event. Prior results are
// discarded atomically with a reassignment.
func (c *Controller) onProblemAssigned(d models.ProblemAssignedData) {
	c.mu.Lock()
	p := d.Problem
	c.problem = &p
	c.code = p.Template(c.language)
	c.results = nil
	c.executing = false
	c.mu.Unlock()
	c.pushState()
}

func (c *Controller) onExecutionResults(evt models.Event) {
	raw, err := judge.Decode(evt.Data)
	if err != nil {
		c.log.Warn("malformed execution results", zap.Error(err))
		return
	}
	res := judge.Interpret(raw)

	c.mu.Lock()
	c.results = &res
	c.executing = false
	if raw.Phase.Valid() {
		c.setPhaseLocked(raw.Phase)
	}
	c.mu.Unlock()
	c.pushState()
}

func (c *Controller) onEncouragement(d models.InterviewerMessageData) {
	c.mu.Lock()
	c.messages = append(c.messages, models.Message{
		Sender:    models.SenderInterviewer,
		Content:   d.Message,
		Timestamp: time.Now(),
		Audio:     d.Audio,
	})
	c.mu.Unlock()

	c.speakOrPlay(d.Message, d.Audio)
	c.pushState()
}

func (c *Controller) onProgressUpdate(d models.ProgressUpdateData) {
	c.mu.Lock()
	c.remainingSec = d.RemainingSec
	c.mu.Unlock()
	c.pushState()
}

// onLanguageChanged is authoritative: whatever was in the old language's
// buffer is discarded in favor of the supplied template.
func (c *Controller) onLanguageChanged(d models.LanguageChangedData) {
	c.mu.Lock()
	c.language = d.Language
	c.code = d.Template
	c.mu.Unlock()
	c.pushState()
}

// onInterviewCompleted plays any attached narration to completion before the
// evaluation becomes visible, so narration and text arrive together. Phase
// becomes completed only after that.
func (c *Controller) onInterviewCompleted(d models.InterviewCompletedData) {
	if d.Audio != nil {
		if err := c.player.Play(context.Background(), *d.Audio); err != nil {
			c.log.Warn("evaluation narration failed", zap.Error(err))
		}
	} else if d.Evaluation.Summary != "" {
		c.queue.Enqueue(d.Evaluation.Summary, "")
	}

	c.mu.Lock()
	eval := d.Evaluation
	c.evaluation = &eval
	c.setPhaseLocked(models.PhaseCompleted)
	c.executing = false
	c.mu.Unlock()

	c.monitor.Stop()
	c.stopStatusLoop()
	c.pushState()
}

// onForceEnd appends the final message and, after a short grace delay so any
// attached narration can finish, advances to conclusion.
func (c *Controller) onForceEnd(d models.ForceEndData) {
	c.mu.Lock()
	c.messages = append(c.messages, models.Message{
		Sender:    models.SenderInterviewer,
		Content:   d.Message,
		Timestamp: time.Now(),
		Audio:     d.Audio,
	})
	c.mu.Unlock()
	c.speakOrPlay(d.Message, d.Audio)
	c.pushState()

	c.mu.Lock()
	c.cancelForceEndLocked()
	gen := c.forceEndGen
	c.forceEndTimer = time.AfterFunc(c.forceEndGrace, func() {
		c.mu.Lock()
		if gen != c.forceEndGen || c.phase == models.PhaseCompleted {
			c.mu.Unlock()
			return
		}
		c.setPhaseLocked(models.PhaseConclusion)
		c.mu.Unlock()
		c.pushState()
	})
	c.mu.Unlock()
}

// cancelForceEndLocked disarms any pending force-end timer. The generation
// bump guards against a callback that already fired but has not yet taken the
// lock.
func (c *Controller) cancelForceEndLocked() {
	if c.forceEndTimer != nil {
		c.forceEndTimer.Stop()
		c.forceEndTimer = nil
	}
	c.forceEndGen++
}

func (c *Controller) onError(d models.ErrorData) {
	// Transient surface only: no phase or history mutation.
	c.notifier.Notify("error", d.Message)
}

/*** Internals ***/

// setPhaseLocked is the only phase mutation point. The activity monitor runs
// exactly while phase is coding.
func (c *Controller) setPhaseLocked(p models.Phase) {
	if c.phase == p {
		return
	}
	prev := c.phase
	c.phase = p
	c.log.Info("phase transition",
		zap.String("from", string(prev)), zap.String("to", string(p)))
	metrics.PhaseTransition(string(p))

	if p == models.PhaseCoding {
		c.monitor.Start()
	} else if prev == models.PhaseCoding {
		c.monitor.Stop()
	}
}

// speakOrPlay routes an interviewer utterance: inline audio goes to the
// buffer player, plain text to the dedup queue.
func (c *Controller) speakOrPlay(text string, audio *models.AudioPayload) {
	if audio != nil && len(audio.Data) > 0 {
		go func() {
			if err := c.player.Play(context.Background(), *audio); err != nil {
				c.log.Warn("inline audio playback failed", zap.Error(err))
			}
		}()
		return
	}
	c.queue.Enqueue(text, "")
}

func (c *Controller) pushState() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notifier.StateChanged(snap)
}

// startStatusLoop runs the coarse display timer: every 10s the elapsed and
// remaining figures are recomputed and pushed. The fine-grained countdown is
// the UI widget's own business.
func (c *Controller) startStatusLoop() {
	c.mu.Lock()
	if c.statusStop != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.statusStop = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.pushState()
			}
		}
	}()
}

func (c *Controller) stopStatusLoop() {
	c.mu.Lock()
	if c.statusStop != nil {
		close(c.statusStop)
		c.statusStop = nil
	}
	c.mu.Unlock()
}

// decode unmarshals an event payload and applies fn; malformed payloads are
// logged and dropped.
func decode[T any](c *Controller, evt models.Event, fn func(T)) {
	var d T
	if err := json.Unmarshal(evt.Data, &d); err != nil {
		c.log.Warn("malformed event payload",
			zap.String("type", evt.Type), zap.Error(err))
		return
	}
	fn(d)
}
