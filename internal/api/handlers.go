// Package api exposes the gateway's HTTP surface: the browser-facing
// interview websocket plus REST endpoints for tokens, session status, and
// archived interviews.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ravindra162/prepAI-sub000/internal/config"
	"github.com/Ravindra162/prepAI-sub000/internal/metrics"
	"github.com/Ravindra162/prepAI-sub000/internal/models"
	"github.com/Ravindra162/prepAI-sub000/internal/session"
	"github.com/Ravindra162/prepAI-sub000/internal/store"
	"github.com/Ravindra162/prepAI-sub000/internal/synth"
	"github.com/Ravindra162/prepAI-sub000/internal/utils"
	"github.com/Ravindra162/prepAI-sub000/internal/voice"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type Handlers struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *store.Registry // nil when redis is unavailable
	archive  *store.Archive  // nil when postgres is unavailable
}

func NewHandlers(cfg *config.Config, registry *store.Registry, archive *store.Archive, log *zap.Logger) *Handlers {
	return &Handlers{cfg: cfg, log: log, registry: registry, archive: archive}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

/*** Token issuance ***/

type tokenRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
}

// IssueToken mints an interview access token. In a full deployment this sits
// behind the user service's authentication.
func (h *Handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		http.Error(w, "name and email are required", http.StatusBadRequest)
		return
	}
	sessionID := newSessionID()
	token, err := utils.GenerateInterviewToken(sessionID, req.Name, req.Email, h.cfg.TokenTTL)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, tokenResponse{Token: token, SessionID: sessionID})
}

/*** Session registry endpoints ***/

func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		http.Error(w, "session registry unavailable", http.StatusServiceUnavailable)
		return
	}
	entries, err := h.registry.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		http.Error(w, "session registry unavailable", http.StatusServiceUnavailable)
		return
	}
	entry, err := h.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err == store.ErrSessionNotFound {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, entry)
}

/*** Archive endpoints ***/

func (h *Handlers) RecentArchives(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		http.Error(w, "interview archive unavailable", http.StatusServiceUnavailable)
		return
	}
	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	recs, err := h.archive.Recent(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, recs)
}

func (h *Handlers) GetArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		http.Error(w, "interview archive unavailable", http.StatusServiceUnavailable)
		return
	}
	rec, err := h.archive.BySession(chi.URLParam(r, "id"))
	if err == store.ErrSessionNotFound {
		http.Error(w, "archive not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rec)
}

/*** Interview WebSocket ***/

// authenticate accepts the token from the Authorization header or, for
// browser websockets that cannot set headers, the token query parameter.
func authenticate(r *http.Request) (*utils.InterviewTokenClaims, error) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		var err error
		tokenStr, err = utils.ExtractTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			return nil, err
		}
	}
	return utils.ValidateInterviewToken(tokenStr)
}

// InterviewWS owns one browser connection end to end: it wires a per-session
// controller, voice queue, synthesis client, and backend channel, then pumps
// UI action frames until the socket closes.
func (h *Handlers) InterviewWS(w http.ResponseWriter, r *http.Request) {
	claims, err := authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	metrics.SessionOpened()
	defer metrics.SessionClosed()

	log := h.log.With(zap.String("session", claims.SessionID))
	out := &uiConn{conn: conn}
	sink := newWSSink(out, log)

	ttsClient := synth.NewClient(h.cfg.TTSBaseURL, sink, log)
	ttsClient.CheckServiceHealth(r.Context())

	queue := voice.NewQueue(ttsClient.AsSpeaker(), log)
	player := voice.NewPlayer(sink, log)
	channel := session.NewChannel(h.cfg.BackendURL, log)

	notifier := &wsNotifier{out: out, log: log}
	ctrl := session.NewController(channel, queue, player, notifier, log)
	channel.SetHandler(ctrl.HandleEvent)
	channel.SetOnDown(ctrl.HandleChannelDown)
	notifier.onState = func(snap session.Snapshot) { h.mirrorState(claims, snap) }

	defer ctrl.Reset()
	h.pumpFrames(conn, sink, queue, ctrl, claims, log)
}

// pumpFrames reads UI action frames until the socket dies.
func (h *Handlers) pumpFrames(conn *websocket.Conn, sink *wsSink, queue *voice.Queue,
	ctrl *session.Controller, claims *utils.InterviewTokenClaims, log *zap.Logger) {
	for {
		var frame models.Event
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if err := h.handleFrame(frame, sink, queue, ctrl, claims); err != nil {
			log.Warn("ui action failed", zap.String("type", frame.Type), zap.Error(err))
		}
	}
}

// UI action frame types, browser -> gateway.
const (
	actStartInterview  = "start-interview"
	actSendMessage     = "send-message"
	actUpdateCode      = "update-code"
	actSetLanguage     = "set-language"
	actExecuteCode     = "execute-code"
	actRequestHint     = "request-hint"
	actEndInterview    = "end-interview"
	actReset           = "reset"
	actSetVoiceEnabled = "set-voice-enabled"
	actClearSpoken     = "clear-spoken-history"
)

type startFrame struct {
	Candidate models.Candidate `json:"candidate"`
	Resume    string           `json:"resume,omitempty"`
}

func (h *Handlers) handleFrame(frame models.Event, sink *wsSink, queue *voice.Queue,
	ctrl *session.Controller, claims *utils.InterviewTokenClaims) error {
	switch frame.Type {
	case actStartInterview:
		var d startFrame
		if err := frame.Decode(&d); err != nil {
			return err
		}
		if d.Candidate.Name == "" {
			d.Candidate.Name = claims.CandidateName
			d.Candidate.Email = claims.CandidateEmail
		}
		if err := ctrl.Connect(context.Background()); err != nil {
			return err
		}
		return ctrl.StartInterview(d.Candidate, d.Resume)
	case actSendMessage:
		var d struct {
			Text string `json:"text"`
		}
		if err := frame.Decode(&d); err != nil {
			return err
		}
		return ctrl.SendMessage(d.Text)
	case actUpdateCode:
		var d struct {
			Code string `json:"code"`
		}
		if err := frame.Decode(&d); err != nil {
			return err
		}
		ctrl.UpdateCode(d.Code)
		return nil
	case actSetLanguage:
		var d struct {
			Language models.Language `json:"language"`
		}
		if err := frame.Decode(&d); err != nil {
			return err
		}
		return ctrl.SetLanguage(d.Language)
	case actExecuteCode:
		return ctrl.ExecuteCode()
	case actRequestHint:
		return ctrl.RequestHint()
	case actEndInterview:
		var d struct {
			Feedback string `json:"feedback,omitempty"`
		}
		if err := frame.Decode(&d); err != nil {
			return err
		}
		return ctrl.EndInterview(d.Feedback)
	case actReset:
		ctrl.Reset()
		return nil
	case actSetVoiceEnabled:
		var d struct {
			Enabled bool `json:"enabled"`
		}
		if err := frame.Decode(&d); err != nil {
			return err
		}
		queue.SetEnabled(d.Enabled)
		return nil
	case actClearSpoken:
		queue.ClearSpokenHistory()
		return nil
	case framePlaybackDone, framePlaybackError:
		var d ackFrame
		if err := frame.Decode(&d); err != nil {
			return err
		}
		sink.resolve(d.RequestID, d.Error)
		return nil
	case frameNativeVoices:
		var d struct {
			Voices []voice.NativeVoice `json:"voices"`
		}
		if err := frame.Decode(&d); err != nil {
			return err
		}
		sink.setVoices(d.Voices)
		return nil
	default:
		h.log.Warn("unknown ui frame", zap.String("type", frame.Type))
		return nil
	}
}

// mirrorState reflects controller snapshots into the cross-instance registry
// and archives the interview once it completes.
func (h *Handlers) mirrorState(claims *utils.InterviewTokenClaims, snap session.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if h.registry != nil && snap.SessionID != "" {
		entry := store.RegistryEntry{
			SessionID: snap.SessionID,
			Candidate: models.Candidate{Name: claims.CandidateName, Email: claims.CandidateEmail},
			Phase:     snap.Phase,
			Language:  snap.Language,
			StartedAt: time.Now().Add(-time.Duration(snap.ElapsedSec) * time.Second),
		}
		if snap.Problem != nil {
			entry.ProblemID = snap.Problem.ID
		}
		if err := h.registry.Save(ctx, entry); err != nil {
			h.log.Warn("registry save failed", zap.Error(err))
		}
		if snap.Phase == models.PhaseCompleted {
			if err := h.registry.Delete(ctx, snap.SessionID); err != nil {
				h.log.Warn("registry delete failed", zap.Error(err))
			}
		}
	}

	if h.archive != nil && snap.Phase == models.PhaseCompleted && snap.Evaluation != nil {
		rec := buildArchive(claims, snap)
		if err := h.archive.Save(rec); err != nil {
			h.log.Warn("interview archive failed", zap.Error(err))
		}
	}
}

func buildArchive(claims *utils.InterviewTokenClaims, snap session.Snapshot) *store.InterviewArchive {
	var transcript strings.Builder
	for _, m := range snap.Messages {
		transcript.WriteString(string(m.Sender))
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteByte('\n')
	}
	rec := &store.InterviewArchive{
		SessionID:      snap.SessionID,
		CandidateName:  claims.CandidateName,
		CandidateEmail: claims.CandidateEmail,
		Language:       string(snap.Language),
		FinalCode:      snap.Code,
		Transcript:     transcript.String(),
		HintsUsed:      snap.HintsUsed,
		StartedAt:      time.Now().Add(-time.Duration(snap.ElapsedSec) * time.Second),
		CompletedAt:    time.Now(),
	}
	if snap.Problem != nil {
		rec.ProblemID = snap.Problem.ID
		rec.ProblemTitle = snap.Problem.Title
	}
	if snap.Results != nil {
		rec.PassedTests = snap.Results.PassedTests
		rec.TotalTests = snap.Results.TotalTests
	}
	if snap.Evaluation != nil {
		rec.Score = snap.Evaluation.Score
		rec.Summary = snap.Evaluation.Summary
	}
	return rec
}

/*** Notifier over the UI socket ***/

type wsNotifier struct {
	out     *uiConn
	log     *zap.Logger
	onState func(session.Snapshot)
}

type notificationFrame struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type stateFrame struct {
	Type  string           `json:"type"`
	State session.Snapshot `json:"state"`
}

func (n *wsNotifier) Notify(level, message string) {
	if err := n.out.writeJSON(notificationFrame{Type: frameNotification, Level: level, Message: message}); err != nil {
		n.log.Debug("notification dropped", zap.Error(err))
	}
}

func (n *wsNotifier) StateChanged(snap session.Snapshot) {
	if err := n.out.writeJSON(stateFrame{Type: frameState, State: snap}); err != nil {
		n.log.Debug("state push dropped", zap.Error(err))
	}
	if n.onState != nil {
		n.onState(snap)
	}
}

func newSessionID() string { return uuid.NewString() }

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
