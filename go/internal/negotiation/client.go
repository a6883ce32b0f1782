package negotiation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/huanshanxiaoyao/governor-game/go/clients"
	"github.com/huanshanxiaoyao/governor-game/go/internal/appstate"
	"github.com/huanshanxiaoyao/governor-game/go/internal/delegation"
	"github.com/huanshanxiaoyao/governor-game/go/internal/events"
	"github.com/huanshanxiaoyao/governor-game/go/internal/gamesync"
	"github.com/huanshanxiaoyao/governor-game/go/internal/models"
)

// State is the client-side lifecycle state of a negotiation.
type State int

const (
	StateIdle State = iota
	StateActive
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateResolved:
		return "resolved"
	default:
		return "idle"
	}
}

// API defines what the session client needs from the game engine
type API interface {
	GetActiveNegotiation(ctx context.Context, gameID models.ID) (*models.ActiveNegotiationResponse, error)
	StartIrrigationNegotiation(ctx context.Context, gameID models.ID, villageName string) (*models.NegotiationSession, error)
	SendNegotiationChat(ctx context.Context, gameID, sessionID models.ID, req models.ChatRequest) (*models.ChatResponse, error)
	GetNegotiationHistory(ctx context.Context, gameID, sessionID models.ID) (*models.HistoryResponse, error)
}

// Syncer defines what the session client needs from game state sync
type Syncer interface {
	Sync(ctx context.Context, gameID models.ID, action gamesync.Action) error
}

// ticket tags an outgoing request with the session it was made for. A
// response is applied only while its ticket is still current.
type ticket struct {
	sessionID models.ID
	epoch     uint64
}

// Client owns the lifecycle of at most one negotiation session.
type Client struct {
	api       API
	syncer    Syncer
	state     *appstate.State
	publisher events.Publisher

	mu       sync.Mutex
	status   State
	gameID   models.ID
	session  *models.NegotiationSession
	history  []models.NegotiationMessage
	inFlight bool
	epoch    uint64
}

// NewClient creates an idle session client.
func NewClient(api API, syncer Syncer, state *appstate.State, publisher events.Publisher) *Client {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Client{
		api:       api,
		syncer:    syncer,
		state:     state,
		publisher: publisher,
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Session returns a copy of the current session, or nil when idle.
func (c *Client) Session() *models.NegotiationSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// History returns a copy of the message history.
func (c *Client) History() []models.NegotiationMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.NegotiationMessage(nil), c.history...)
}

// InFlight reports whether a send is pending. Sending controls are disabled while true.
func (c *Client) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// RoundDisplay renders the round counter, e.g. "3/8".
func (c *Client) RoundDisplay() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return roundDisplay(c.session)
}

func roundDisplay(s *models.NegotiationSession) string {
	return fmt.Sprintf("%d/%d", s.CurrentRound, s.MaxRounds)
}

func (c *Client) current(t ticket) bool {
	return c.session != nil && c.session.ID == t.sessionID && c.epoch == t.epoch
}

// Open makes session the client's current session and loads its history.
// Server truth returned with the history replaces locally assumed round and
// speaker. When the history fetch fails the session stays open with its
// reported metadata. Reopening the current session while a send is pending
// returns ErrSendInFlight and leaves the session untouched.
func (c *Client) Open(ctx context.Context, gameID models.ID, session models.NegotiationSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid negotiation session: %w", err)
	}
	if session.SpeakerRole == "" {
		session.SpeakerRole = models.SpeakerRolePlayer
	}

	c.mu.Lock()
	if c.inFlight && c.session != nil && c.session.ID == session.ID {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.epoch++
	c.gameID = gameID
	c.session = &session
	c.history = nil
	c.inFlight = false
	c.status = StateActive
	if session.Status == models.SessionStatusResolved {
		c.status = StateResolved
	}
	t := ticket{sessionID: session.ID, epoch: c.epoch}
	opened := session
	c.mu.Unlock()

	if opened.Status != models.SessionStatusResolved {
		c.state.SetActiveNegotiation(&opened)
	}
	c.publisher.Publish(events.New(gameID, events.TypeNegotiationOpened, events.SessionPayload{
		Session: opened,
		Title:   opened.EventType.DisplayName() + "谈判",
	}))

	log.Info().
		Str("game_id", gameID.String()).
		Str("session_id", session.ID.String()).
		Str("event_type", string(session.EventType)).
		Int("round", session.CurrentRound).
		Int("max_rounds", session.MaxRounds).
		Msg("opened negotiation")

	hist, err := c.api.GetNegotiationHistory(ctx, gameID, session.ID)

	c.mu.Lock()
	if !c.current(t) {
		c.mu.Unlock()
		log.Debug().Str("session_id", session.ID.String()).Msg("discarding history for superseded session")
		return ErrStaleResponse
	}
	if err != nil {
		c.mu.Unlock()
		log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("failed to load negotiation history")
		c.publisher.Publish(events.New(gameID, events.TypeNegotiationHistoryFailed, events.ErrorPayload{
			SessionID: session.ID,
			Message:   "加载失败",
		}))
		return &TransportError{Op: "open", SessionID: session.ID, Err: err}
	}

	c.history = append([]models.NegotiationMessage(nil), hist.Messages...)
	if server := hist.Session; server != nil {
		c.session.CurrentRound = server.CurrentRound
		if server.MaxRounds > 0 {
			c.session.MaxRounds = server.MaxRounds
		}
		if server.SpeakerRole != "" {
			c.session.SpeakerRole = models.ParseSpeakerRole(string(server.SpeakerRole))
		}
		if server.Status == models.SessionStatusResolved {
			c.status = StateResolved
			c.session.Status = models.SessionStatusResolved
		}
	}
	synced := *c.session
	history := append([]models.NegotiationMessage(nil), c.history...)
	resolved := c.status == StateResolved
	c.mu.Unlock()

	if resolved {
		c.state.ClearActiveNegotiation(synced.ID)
	} else {
		c.state.SetActiveNegotiation(&synced)
	}
	c.publisher.Publish(events.New(gameID, events.TypeNegotiationHistory, events.HistoryPayload{
		SessionID: synced.ID,
		Messages:  history,
	}))
	c.publishRound(gameID, &synced)
	c.publishControls(gameID, synced.ID, !resolved)
	return nil
}

// Send exchanges one negotiation round. For delegated roles content is ignored
// and replaced by the delegate's scripted stance; the player sees a placeholder
// in its place. At most one send is in flight per session. A send is not
// cancelled with ctx once started; the engine commits the round either way.
func (c *Client) Send(ctx context.Context, content string, role models.SpeakerRole) (*models.ChatResponse, error) {
	role = models.ParseSpeakerRole(string(role))
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	if c.status != StateActive || c.session == nil {
		c.mu.Unlock()
		return nil, ErrNotActive
	}
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrSendInFlight
	}

	var message, displayed string
	if role.IsDelegate() {
		message = delegation.Resolve(c.session.EventType, role)
		displayed = delegation.Placeholder(role)
	} else {
		message = strings.TrimSpace(content)
		if message == "" {
			c.mu.Unlock()
			return nil, ErrEmptyMessage
		}
		displayed = message
	}

	c.inFlight = true
	gameID := c.gameID
	t := ticket{sessionID: c.session.ID, epoch: c.epoch}
	c.mu.Unlock()

	c.publishControls(gameID, t.sessionID, false)

	requestID := uuid.New().String()
	logger := log.With().
		Str("game_id", gameID.String()).
		Str("session_id", t.sessionID.String()).
		Str("request_id", requestID).
		Str("speaker_role", string(role)).
		Logger()

	resp, err := c.api.SendNegotiationChat(clients.WithRequestID(ctx, requestID), gameID, t.sessionID, models.ChatRequest{
		Message:     message,
		SpeakerRole: role,
	})

	c.mu.Lock()
	if !c.current(t) {
		c.mu.Unlock()
		logger.Warn().Msg("discarding negotiation response for superseded session")
		return nil, ErrStaleResponse
	}
	c.inFlight = false

	if err != nil {
		c.mu.Unlock()
		logger.Warn().Err(err).Msg("negotiation send failed")
		terr := &TransportError{Op: "send", SessionID: t.sessionID, Err: err}
		c.publisher.Publish(events.New(gameID, events.TypeNegotiationSendFailed, events.ErrorPayload{
			SessionID: t.sessionID,
			Message:   terr.UserMessage(),
		}))
		c.publishControls(gameID, t.sessionID, true)
		return nil, terr
	}

	playerMsg := models.NegotiationMessage{
		Role:        models.MessageRolePlayer,
		Content:     displayed,
		SpeakerRole: role,
	}
	agentMsg := models.NegotiationMessage{
		Role:    models.MessageRoleAgent,
		Content: resp.Dialogue,
	}
	c.history = append(c.history, playerMsg, agentMsg)

	s := c.session
	if resp.MaxRounds > 0 {
		s.MaxRounds = resp.MaxRounds
	}
	s.CurrentRound = resp.Round
	if s.MaxRounds > 0 && s.CurrentRound > s.MaxRounds {
		logger.Warn().Int("round", resp.Round).Int("max_rounds", s.MaxRounds).Msg("server round exceeds max rounds, clamping")
		s.CurrentRound = s.MaxRounds
	}
	if resp.AgentName != "" {
		s.AgentName = resp.AgentName
	}

	resolved := resp.Resolved()
	handoff := !resolved && resp.HandoffToPlayer
	switch {
	case resolved:
		c.status = StateResolved
		s.Status = models.SessionStatusResolved
	case handoff:
		s.SpeakerRole = models.SpeakerRolePlayer
	default:
		s.SpeakerRole = role
	}
	updated := *s
	c.mu.Unlock()

	c.publisher.Publish(events.New(gameID, events.TypeNegotiationMessage, events.MessagePayload{
		SessionID:    updated.ID,
		Message:      playerMsg,
		SpeakerLabel: delegation.Label(role),
	}))
	c.publisher.Publish(events.New(gameID, events.TypeNegotiationMessage, events.MessagePayload{
		SessionID:    updated.ID,
		Message:      agentMsg,
		SpeakerLabel: updated.AgentName,
	}))
	c.publishRound(gameID, &updated)

	if resolved {
		c.resolve(ctx, gameID, &updated, resp)
		return resp, nil
	}

	c.state.SetActiveNegotiation(&updated)
	if handoff {
		logger.Info().Msg("delegate handed negotiation back to player")
		c.publisher.Publish(events.New(gameID, events.TypeNegotiationHandoff, events.HandoffPayload{
			SessionID: updated.ID,
			Message:   resp.HandoffMessage,
		}))
	}
	c.publishControls(gameID, updated.ID, true)
	return resp, nil
}

// resolve finishes a negotiation: the active session is cleared from the
// application state and exactly one game state sync is made.
func (c *Client) resolve(ctx context.Context, gameID models.ID, session *models.NegotiationSession, resp *models.ChatResponse) {
	outcome := models.OutcomeUnknown
	if resp.FinalDecision != nil {
		outcome = *resp.FinalDecision
	}
	eventType := session.EventType
	if resp.EventType != "" {
		eventType = resp.EventType
	}

	c.state.ClearActiveNegotiation(session.ID)
	c.publisher.Publish(events.New(gameID, events.TypeNegotiationResolved, events.ResolvedPayload{
		SessionID:         session.ID,
		EventType:         eventType,
		Outcome:           outcome.Key(),
		OutcomeText:       outcome.DisplayText(eventType),
		ContributionOffer: resp.ContributionOffer,
		Treasury:          resp.Treasury,
	}))

	log.Info().
		Str("game_id", gameID.String()).
		Str("session_id", session.ID.String()).
		Str("outcome", outcome.Key()).
		Int("round", session.CurrentRound).
		Msg("negotiation resolved")

	if err := c.syncer.Sync(ctx, gameID, gamesync.NewAction(gamesync.ActionNegotiationResolved)); err != nil {
		log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("sync after resolution failed")
	}
}

// Close hides the session and reconciles with the server. One game state sync
// is made whether or not the session resolved, since a delegated turn may
// have changed server state. Responses still in flight for the closed session
// are discarded when they arrive.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil
	}
	gameID := c.gameID
	sessionID := c.session.ID
	resolved := c.status == StateResolved
	c.epoch++
	c.session = nil
	c.history = nil
	c.inFlight = false
	c.status = StateIdle
	c.mu.Unlock()

	if resolved {
		c.state.ClearActiveNegotiation(sessionID)
	}
	c.publisher.Publish(events.New(gameID, events.TypeNegotiationClosed, events.SessionClosedPayload{
		SessionID: sessionID,
	}))
	log.Info().Str("game_id", gameID.String()).Str("session_id", sessionID.String()).Bool("resolved", resolved).Msg("closed negotiation")

	return c.syncer.Sync(context.WithoutCancel(ctx), gameID, gamesync.NewAction(gamesync.ActionNegotiationClosed))
}

// CheckActive asks the server for the game's active negotiation and records
// it in the application state. If the client holds a session the server no
// longer considers active, the client degrades to idle and resyncs.
func (c *Client) CheckActive(ctx context.Context, gameID models.ID) (*models.NegotiationSession, error) {
	resp, err := c.api.GetActiveNegotiation(ctx, gameID)
	if err != nil {
		log.Warn().Err(err).Str("game_id", gameID.String()).Msg("failed to check active negotiation")
		return nil, &TransportError{Op: "check", Err: err}
	}

	var active *models.NegotiationSession
	if resp.Active && resp.Session != nil {
		active = resp.Session
	}

	c.mu.Lock()
	var staleID models.ID
	if c.status == StateActive && c.session != nil && c.gameID == gameID &&
		(active == nil || active.ID != c.session.ID) {
		staleID = c.session.ID
		c.epoch++
		c.session = nil
		c.history = nil
		c.inFlight = false
		c.status = StateIdle
	}
	c.mu.Unlock()

	c.state.SetActiveNegotiation(active)

	if staleID != "" {
		log.Warn().
			Str("game_id", gameID.String()).
			Str("session_id", staleID.String()).
			Msg("server reports session no longer active, dropping it")
		c.publisher.Publish(events.New(gameID, events.TypeNegotiationClosed, events.SessionClosedPayload{
			SessionID: staleID,
			Stale:     true,
		}))
		if err := c.syncer.Sync(context.WithoutCancel(ctx), gameID, gamesync.NewAction(gamesync.ActionStaleSession)); err != nil {
			log.Warn().Err(err).Str("game_id", gameID.String()).Msg("sync after stale session failed")
		}
	}

	if active != nil {
		c.publisher.Publish(events.New(gameID, events.TypeNegotiationAvailable, events.SessionPayload{
			Session: *active,
			Title:   active.EventType.DisplayName() + "谈判进行中",
		}))
	}
	return active, nil
}

// StartIrrigation opens an irrigation negotiation with a village's landlord.
func (c *Client) StartIrrigation(ctx context.Context, gameID models.ID, villageName string) (*models.NegotiationSession, error) {
	villageName = strings.TrimSpace(villageName)
	if villageName == "" {
		return nil, ErrEmptyVillageName
	}
	session, err := c.api.StartIrrigationNegotiation(ctx, gameID, villageName)
	if err != nil {
		return nil, &TransportError{Op: "start", Err: err}
	}
	if err := c.Open(ctx, gameID, *session); err != nil {
		return session, err
	}
	return session, nil
}

func (c *Client) publishRound(gameID models.ID, s *models.NegotiationSession) {
	c.publisher.Publish(events.New(gameID, events.TypeNegotiationRound, events.RoundPayload{
		SessionID:    s.ID,
		CurrentRound: s.CurrentRound,
		MaxRounds:    s.MaxRounds,
		Display:      roundDisplay(s),
	}))
}

func (c *Client) publishControls(gameID, sessionID models.ID, enabled bool) {
	c.publisher.Publish(events.New(gameID, events.TypeControlsChanged, events.ControlsPayload{
		SessionID: sessionID,
		Enabled:   enabled,
	}))
}
