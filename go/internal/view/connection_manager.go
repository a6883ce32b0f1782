package view

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/huanshanxiaoyao/governor-game/go/internal/events"
	"github.com/huanshanxiaoyao/governor-game/go/internal/models"
)

// ConnectionManager manages WebSocket connections for game views
type ConnectionManager struct {
	// Connection pools organized by game ID
	gameConnections map[models.ID]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan *events.Event

	// Optional source of the current snapshot sent to new connections
	snapshots SnapshotSource
}

// SnapshotSource provides the latest known game snapshot.
type SnapshotSource interface {
	CurrentGame() *models.GameSnapshot
}

// Connection represents a WebSocket connection to a view
type Connection struct {
	ID      string
	GameID  models.ID
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, snapshots SnapshotSource) *ConnectionManager {
	return &ConnectionManager{
		gameConnections: make(map[models.ID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan *events.Event, 1000),
		snapshots:   snapshots,
	}
}

// Start processes broadcast messages until ctx is cancelled
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case event := <-cm.broadcastCh:
			cm.handleBroadcast(event)
		}
	}
}

// Publish queues event for every view of its game. It never blocks; when the
// queue is full the event is dropped.
func (cm *ConnectionManager) Publish(event *events.Event) {
	select {
	case cm.broadcastCh <- event:
	default:
		log.Warn().
			Str("game_id", event.GameID).
			Str("event_type", string(event.Type)).
			Msg("broadcast channel full, dropping message")
	}
}

// SnapshotUpdated relays a synced snapshot to the game's views.
func (cm *ConnectionManager) SnapshotUpdated(gameID models.ID, snapshot *models.GameSnapshot) {
	cm.Publish(events.New(gameID, events.TypeSnapshotUpdated, events.SnapshotUpdatedPayload{Snapshot: snapshot}))
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, gameID models.ID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		GameID:      gameID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.sendInitialSnapshot(connection)
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("game_id", gameID.String()).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) sendInitialSnapshot(conn *Connection) {
	if cm.snapshots == nil {
		return
	}
	snapshot := cm.snapshots.CurrentGame()
	if snapshot == nil || snapshot.ID != conn.GameID {
		return
	}
	data, err := json.Marshal(events.New(conn.GameID, events.TypeSnapshotUpdated, events.SnapshotUpdatedPayload{Snapshot: snapshot}))
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal initial snapshot")
		return
	}
	conn.Send <- data
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.gameConnections[conn.GameID] == nil {
		cm.gameConnections[conn.GameID] = make(map[*Connection]bool)
	}
	cm.gameConnections[conn.GameID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("game_id", conn.GameID.String()).
		Int("total_connections", len(cm.gameConnections[conn.GameID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.gameConnections[conn.GameID]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	close(conn.Send)

	if len(connections) == 0 {
		delete(cm.gameConnections, conn.GameID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("game_id", conn.GameID.String()).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) handleBroadcast(event *events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// Send is closed under the write lock, so sends happen under the read lock.
	cm.mu.RLock()
	connections := cm.gameConnections[models.ID(event.GameID)]
	delivered := len(connections)
	var slow []*Connection
	for conn := range connections {
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		if conn.Conn != nil {
			conn.Conn.Close()
		}
	}

	if delivered == 0 {
		return
	}
	log.Debug().
		Str("event_type", string(event.Type)).
		Str("game_id", event.GameID).
		Int("connections", delivered-len(slow)).
		Msg("event broadcasted")
}

// ConnectionCount returns the number of views connected to gameID
func (cm *ConnectionManager) ConnectionCount(gameID models.ID) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.gameConnections[gameID])
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]any {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	total := 0
	gameCounts := make(map[string]int)
	for gameID, connections := range cm.gameConnections {
		total += len(connections)
		gameCounts[gameID.String()] = len(connections)
	}

	return map[string]any{
		"total_connections": total,
		"active_games":      len(cm.gameConnections),
		"game_connections":  gameCounts,
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump drains the connection. Views only send control frames.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			break
		}
		log.Debug().Str("connection_id", c.ID).Int("bytes", len(message)).Msg("ignoring client message")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
