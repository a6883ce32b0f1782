package game_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/huanshanxiaoyao/governor-game/go/clients"
	"github.com/huanshanxiaoyao/governor-game/go/internal/models"
)

// GameClient talks to the game engine's REST API.
type GameClient struct {
	*clients.BaseClient
}

// NewGameClient creates a client for the engine at baseURL. csrfToken and
// sessionCookie come from the login collaborator and may be empty.
func NewGameClient(baseURL, csrfToken, sessionCookie string) *GameClient {
	client := &GameClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetCSRFToken(csrfToken)
	if sessionCookie != "" {
		client.SetHeader(SessionCookieHeader, sessionCookie)
	}

	return client
}

func path(format string, ids ...models.ID) string {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = url.PathEscape(id.String())
	}
	return fmt.Sprintf(format, args...)
}

// GetGame fetches the authoritative game snapshot.
func (c *GameClient) GetGame(ctx context.Context, gameID models.ID) (*models.GameSnapshot, error) {
	var snapshot models.GameSnapshot
	if err := c.GetJSON(ctx, path(GameEndpoint, gameID), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return &snapshot, nil
}

// AdvanceTurn settles the current period.
func (c *GameClient) AdvanceTurn(ctx context.Context, gameID models.ID) (*models.AdvanceReport, error) {
	var raw json.RawMessage
	if err := c.PostJSON(ctx, path(AdvanceEndpoint, gameID), nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to advance turn: %w", err)
	}
	var report models.AdvanceReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal advance report: %w", err)
	}
	report.Raw = raw
	return &report, nil
}

// GetActiveNegotiation returns the game's active negotiation, if any.
func (c *GameClient) GetActiveNegotiation(ctx context.Context, gameID models.ID) (*models.ActiveNegotiationResponse, error) {
	var resp models.ActiveNegotiationResponse
	if err := c.GetJSON(ctx, path(ActiveNegotiationEndpoint, gameID), &resp); err != nil {
		return nil, fmt.Errorf("failed to get active negotiation: %w", err)
	}
	return &resp, nil
}

// StartIrrigationNegotiation asks a village landlord to co-fund irrigation.
func (c *GameClient) StartIrrigationNegotiation(ctx context.Context, gameID models.ID, villageName string) (*models.NegotiationSession, error) {
	var session models.NegotiationSession
	req := models.StartIrrigationRequest{VillageName: villageName}
	if err := c.PostJSON(ctx, path(StartIrrigationEndpoint, gameID), req, &session); err != nil {
		return nil, fmt.Errorf("failed to start irrigation negotiation: %w", err)
	}
	return &session, nil
}

// SendNegotiationChat sends one negotiation turn.
func (c *GameClient) SendNegotiationChat(ctx context.Context, gameID, sessionID models.ID, req models.ChatRequest) (*models.ChatResponse, error) {
	var resp models.ChatResponse
	if err := c.PostJSON(ctx, path(NegotiationChatEndpoint, gameID, sessionID), req, &resp); err != nil {
		return nil, fmt.Errorf("failed to send negotiation chat: %w", err)
	}
	return &resp, nil
}

// GetNegotiationHistory fetches the message history and authoritative session.
func (c *GameClient) GetNegotiationHistory(ctx context.Context, gameID, sessionID models.ID) (*models.HistoryResponse, error) {
	var resp models.HistoryResponse
	if err := c.GetJSON(ctx, path(NegotiationChatEndpoint, gameID, sessionID), &resp); err != nil {
		return nil, fmt.Errorf("failed to get negotiation history: %w", err)
	}
	return &resp, nil
}

// TriggerPrecompute starts the server-side neighbor precompute. The engine
// acknowledges immediately; progress is polled separately.
func (c *GameClient) TriggerPrecompute(ctx context.Context, gameID models.ID) error {
	if err := c.PostJSON(ctx, path(NeighborPrecomputeEndpoint, gameID), nil, nil); err != nil {
		return fmt.Errorf("failed to trigger precompute: %w", err)
	}
	return nil
}

// GetPrecomputeStatus polls neighbor precompute progress.
func (c *GameClient) GetPrecomputeStatus(ctx context.Context, gameID models.ID) (*models.PrecomputeStatus, error) {
	var status models.PrecomputeStatus
	if err := c.GetJSON(ctx, path(NeighborPrecomputeEndpoint, gameID), &status); err != nil {
		return nil, fmt.Errorf("failed to get precompute status: %w", err)
	}
	return &status, nil
}
