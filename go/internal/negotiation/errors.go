package negotiation

import (
	"errors"
	"fmt"

	"github.com/huanshanxiaoyao/governor-game/go/clients"
	"github.com/huanshanxiaoyao/governor-game/go/internal/models"
)

var (
	// ErrEmptyMessage rejects a player turn with no text. No request is made.
	ErrEmptyMessage = errors.New("negotiation message is empty")

	// ErrEmptyVillageName rejects an irrigation negotiation without a village.
	ErrEmptyVillageName = errors.New("village name is required")

	// ErrNotActive is returned when there is no active session to act on.
	ErrNotActive = errors.New("no active negotiation session")

	// ErrSendInFlight is returned while another turn of the session is pending.
	ErrSendInFlight = errors.New("a negotiation turn is already in flight")

	// ErrStaleResponse is returned when a response arrives for a session that
	// has since been closed or replaced. The response is discarded.
	ErrStaleResponse = errors.New("response belongs to a superseded negotiation session")
)

// TransportError is a network or HTTP failure talking to the engine. Session
// state is unchanged and the caller may retry.
type TransportError struct {
	Op        string
	SessionID models.ID
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("negotiation %s failed for session %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to the player.
func (e *TransportError) UserMessage() string {
	return clients.ErrorMessage(e.Err)
}
