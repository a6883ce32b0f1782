package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/huanshanxiaoyao/governor-game/go/internal/models"
)

// Event is the envelope for every presentation update pushed to views
type Event struct {
	ID        string          `json:"id"`        // Event UUID
	GameID    string          `json:"game_id"`   // Game the event belongs to
	Type      Type            `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// Type represents the type of view event
type Type string

const (
	TypeSnapshotUpdated          Type = "SnapshotUpdated"
	TypeTurnAdvanced             Type = "TurnAdvanced"
	TypeNegotiationAvailable     Type = "NegotiationAvailable"
	TypeNegotiationOpened        Type = "NegotiationOpened"
	TypeNegotiationHistory       Type = "NegotiationHistory"
	TypeNegotiationHistoryFailed Type = "NegotiationHistoryFailed"
	TypeNegotiationMessage       Type = "NegotiationMessage"
	TypeNegotiationRound         Type = "NegotiationRound"
	TypeNegotiationHandoff       Type = "NegotiationHandoff"
	TypeNegotiationResolved      Type = "NegotiationResolved"
	TypeNegotiationSendFailed    Type = "NegotiationSendFailed"
	TypeNegotiationClosed        Type = "NegotiationClosed"
	TypeControlsChanged          Type = "ControlsChanged"
	TypeNeighborCompleted        Type = "NeighborCompleted"
	TypePrecomputeDone           Type = "PrecomputeDone"
)

// New builds an event around payload.
func New(gameID models.ID, eventType Type, payload any) *Event {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal event payload")
		data = json.RawMessage("null")
	}
	return &Event{
		ID:        uuid.New().String(),
		GameID:    gameID.String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// Publisher delivers events to a view or bus. Publish must not block on slow consumers.
type Publisher interface {
	Publish(event *Event)
}

// Fanout publishes each event to every publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(event *Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(event)
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(*Event) {}
