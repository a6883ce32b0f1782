package events

import (
	"encoding/json"

	"github.com/huanshanxiaoyao/governor-game/go/internal/models"
)

// Event payload types shared by the negotiation, precompute and sync packages

// SnapshotUpdatedPayload carries a freshly synced game snapshot
type SnapshotUpdatedPayload struct {
	Snapshot *models.GameSnapshot `json:"snapshot"`
}

// TurnAdvancedPayload carries the raw settlement report of a turn advance
type TurnAdvancedPayload struct {
	Season   int             `json:"season"`
	GameOver bool            `json:"game_over"`
	Report   json.RawMessage `json:"report,omitempty"`
}

// SessionPayload carries the client's current view of a negotiation session
type SessionPayload struct {
	Session models.NegotiationSession `json:"session"`
	Title   string                    `json:"title"`
}

// HistoryPayload replaces the displayed negotiation history
type HistoryPayload struct {
	SessionID models.ID                   `json:"session_id"`
	Messages  []models.NegotiationMessage `json:"messages"`
}

// MessagePayload appends one message to the displayed history
type MessagePayload struct {
	SessionID    models.ID                 `json:"session_id"`
	Message      models.NegotiationMessage `json:"message"`
	SpeakerLabel string                    `json:"speaker_label,omitempty"`
}

// RoundPayload updates the round/max_rounds display
type RoundPayload struct {
	SessionID    models.ID `json:"session_id"`
	CurrentRound int       `json:"current_round"`
	MaxRounds    int       `json:"max_rounds"`
	Display      string    `json:"display"`
}

// HandoffPayload tells the player control has been handed back to them
type HandoffPayload struct {
	SessionID models.ID `json:"session_id"`
	Message   string    `json:"message"`
}

// ResolvedPayload announces the terminal outcome of a negotiation
type ResolvedPayload struct {
	SessionID         models.ID        `json:"session_id"`
	EventType         models.EventType `json:"event_type"`
	Outcome           string           `json:"outcome"`
	OutcomeText       string           `json:"outcome_text"`
	ContributionOffer *float64         `json:"contribution_offer,omitempty"`
	Treasury          *float64         `json:"treasury,omitempty"`
}

// ErrorPayload surfaces a server or transport error to the player verbatim
type ErrorPayload struct {
	SessionID models.ID `json:"session_id,omitempty"`
	Message   string    `json:"message"`
}

// ControlsPayload enables or disables the negotiation input controls
type ControlsPayload struct {
	SessionID models.ID `json:"session_id"`
	Enabled   bool      `json:"enabled"`
}

// SessionClosedPayload hides the negotiation UI
type SessionClosedPayload struct {
	SessionID models.ID `json:"session_id"`
	Stale     bool      `json:"stale,omitempty"`
}

// NeighborCompletedPayload reports one neighbor governor's decisions are ready
type NeighborCompletedPayload struct {
	Neighbor models.CompletedNeighbor `json:"neighbor"`
}

// PrecomputeDonePayload reports all neighbor computations are complete
type PrecomputeDonePayload struct {
	Completed int `json:"completed"`
}
