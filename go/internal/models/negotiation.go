package models

import (
	"fmt"
	"strings"
)

// EventType defines the contested policy event a negotiation is about.
type EventType string

const (
	EventTypeAnnexation EventType = "ANNEXATION"
	EventTypeIrrigation EventType = "IRRIGATION"
	EventTypeHiddenLand EventType = "HIDDEN_LAND"
)

// DisplayName returns the player-facing name of the event type.
func (e EventType) DisplayName() string {
	switch e {
	case EventTypeAnnexation:
		return "地主兼并"
	case EventTypeIrrigation:
		return "兴建水利"
	case EventTypeHiddenLand:
		return "隐匿土地"
	}
	return string(e)
}

// SpeakerRole defines who authors a negotiation turn.
type SpeakerRole string

const (
	SpeakerRolePlayer  SpeakerRole = "PLAYER"
	SpeakerRoleAdvisor SpeakerRole = "ADVISOR"
	SpeakerRoleDeputy  SpeakerRole = "DEPUTY"
)

// ParseSpeakerRole normalizes a role name. Empty or unknown names map to PLAYER,
// matching how the engine treats them.
func ParseSpeakerRole(s string) SpeakerRole {
	switch role := SpeakerRole(strings.ToUpper(strings.TrimSpace(s))); role {
	case SpeakerRoleAdvisor, SpeakerRoleDeputy:
		return role
	default:
		return SpeakerRolePlayer
	}
}

// IsDelegate reports whether the role is a staff persona acting for the player.
func (r SpeakerRole) IsDelegate() bool {
	return r == SpeakerRoleAdvisor || r == SpeakerRoleDeputy
}

// SessionStatus defines the status of a negotiation session.
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusResolved SessionStatus = "resolved"
)

// MessageRole defines the author side of a negotiation message.
type MessageRole string

const (
	MessageRolePlayer MessageRole = "player"
	MessageRoleAgent  MessageRole = "agent"
)

// NegotiationSession is the server's view of a negotiation.
type NegotiationSession struct {
	ID             ID            `json:"id"`
	GameID         ID            `json:"game_id,omitempty"`
	EventType      EventType     `json:"event_type"`
	AgentName      string        `json:"agent_name"`
	AgentRoleTitle string        `json:"agent_role_title"`
	CurrentRound   int           `json:"current_round"`
	MaxRounds      int           `json:"max_rounds"`
	Status         SessionStatus `json:"status"`
	SpeakerRole    SpeakerRole   `json:"speaker_role,omitempty"`
	Season         int           `json:"season,omitempty"`
}

// Validate checks the round invariant.
func (s *NegotiationSession) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if s.CurrentRound < 0 {
		return fmt.Errorf("current_round %d is negative", s.CurrentRound)
	}
	if s.MaxRounds > 0 && s.CurrentRound > s.MaxRounds {
		return fmt.Errorf("current_round %d exceeds max_rounds %d", s.CurrentRound, s.MaxRounds)
	}
	return nil
}

// NegotiationMessage is one utterance in a negotiation. Messages are appended
// in arrival order and never modified.
type NegotiationMessage struct {
	Role        MessageRole `json:"role"`
	Content     string      `json:"content"`
	SpeakerRole SpeakerRole `json:"speaker_role,omitempty"`
	SpeakerName string      `json:"speaker_name,omitempty"`
}

// ChatRequest is the body of a negotiation turn.
type ChatRequest struct {
	Message     string      `json:"message"`
	SpeakerRole SpeakerRole `json:"speaker_role,omitempty"`
}

// ChatResponse is the engine's answer to one negotiation turn.
type ChatResponse struct {
	Dialogue          string        `json:"dialogue"`
	Round             int           `json:"round"`
	MaxRounds         int           `json:"max_rounds"`
	AgentName         string        `json:"agent_name"`
	Status            SessionStatus `json:"status"`
	FinalDecision     *Outcome      `json:"final_decision,omitempty"`
	EventType         EventType     `json:"event_type,omitempty"`
	SpeakerRole       SpeakerRole   `json:"speaker_role,omitempty"`
	HandoffToPlayer   bool          `json:"handoff_to_player,omitempty"`
	HandoffMessage    string        `json:"handoff_message,omitempty"`
	ContributionOffer *float64      `json:"contribution_offer,omitempty"`
	Treasury          *float64      `json:"treasury,omitempty"`
}

// Resolved reports whether the response ends the negotiation.
func (r *ChatResponse) Resolved() bool {
	return r.Status == SessionStatusResolved
}

// HistoryResponse is the negotiation history plus the authoritative session.
type HistoryResponse struct {
	Messages []NegotiationMessage `json:"messages"`
	Session  *NegotiationSession  `json:"session"`
}

// ActiveNegotiationResponse reports the game's currently active negotiation.
type ActiveNegotiationResponse struct {
	Active  bool                `json:"active"`
	Session *NegotiationSession `json:"session"`
}

// StartIrrigationRequest opens an irrigation negotiation with a village landlord.
type StartIrrigationRequest struct {
	VillageName string `json:"village_name"`
}
