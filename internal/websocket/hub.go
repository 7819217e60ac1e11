// internal/websocket/hub.go
package websocket

import (
	"context"
	"fmt"
	"sync"

	"cuscatlan-service/internal/domain/subscription"
	wstypes "cuscatlan-service/internal/domain/websocket"
	xerrors "cuscatlan-service/internal/pkg/errors"
	"cuscatlan-service/internal/pkg/jwt"
	"cuscatlan-service/internal/pkg/session"

	"go.uber.org/zap"
)

var (
	ErrTokenBlacklisted = fmt.Errorf("%w: token has been revoked", xerrors.ErrSessionExpired)
	ErrSessionExpired   = fmt.Errorf("%w: no live session for token", xerrors.ErrSessionExpired)
)

type Hub struct {
	// Registered clients by identity (email)
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client

	broadcast chan *BroadcastMessage

	handlers *dispatcher

	jwtVerifier    *jwt.Verifier
	sessionManager *session.Manager
	logger         *zap.Logger
}

type BroadcastMessage struct {
	Identities []string // nil means everyone
	Channel    wstypes.ChannelType
	Message    *wstypes.WSMessage
}

func NewHub(jwtVerifier *jwt.Verifier, sessionManager *session.Manager, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:        make(map[string]map[*Client]bool),
		Register:       make(chan *Client),
		unregister:     make(chan *Client, 64),
		broadcast:      make(chan *BroadcastMessage, 256),
		handlers:       newDispatcher(),
		jwtVerifier:    jwtVerifier,
		sessionManager: sessionManager,
		logger:         logger,
	}
}

// AuthenticateClient validates the JWT token and its session
func (h *Hub) AuthenticateClient(ctx context.Context, token string) (*ClientAuth, error) {
	claims, err := h.jwtVerifier.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}

	blacklisted, err := h.sessionManager.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, ErrTokenBlacklisted
	}

	if _, err := h.sessionManager.GetSession(ctx, claims.Subject, claims.ID); err != nil {
		return nil, ErrSessionExpired
	}

	return &ClientAuth{
		Identity:  claims.Subject,
		SessionID: claims.ID,
		Role:      claims.Role,
		Name:      claims.Name,
	}, nil
}

// RegisterHandler routes the handler's events to it. Events may not be claimed twice.
func (h *Hub) RegisterHandler(handler MessageHandler) error {
	return h.handlers.add(handler)
}

// HandleClientMessage dispatches to a registered handler. The bool reports whether one existed.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	handler, exists := h.handlers.lookup(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.identity] == nil {
		h.clients[client.identity] = make(map[*Client]bool)
	}
	h.clients[client.identity][client] = true

	for _, ch := range wstypes.DefaultChannels {
		client.Subscribe(ch)
	}

	h.logger.Info("websocket client connected",
		zap.String("identity", client.identity),
		zap.String("session_id", client.sessionID),
		zap.Int("total", h.totalClients()),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"identity":   client.identity,
		"session_id": client.sessionID,
		"role":       client.role,
		"channels":   wstypes.DefaultChannels,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.identity]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.identity)
			}

			h.logger.Info("websocket client disconnected",
				zap.String("identity", client.identity),
				zap.String("session_id", client.sessionID),
				zap.Int("total", h.totalClients()),
			)
		}
	}
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.Identities == nil {
		for _, clients := range h.clients {
			for client := range clients {
				if client.IsSubscribed(msg.Channel) {
					client.SendMessage(msg.Message)
				}
			}
		}
		return
	}

	for _, identity := range msg.Identities {
		for client := range h.clients[identity] {
			if client.IsSubscribed(msg.Channel) {
				client.SendMessage(msg.Message)
			}
		}
	}
}

// enqueue never blocks the caller; a full queue drops the event.
func (h *Hub) enqueue(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping event",
			zap.String("type", string(msg.Message.Type)),
		)
	}
}

func (h *Hub) GetConnectedClients(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[identity])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// Public methods for broadcasting

// SubscriptionChanged pushes the new access state to every open tab of identity.
func (h *Hub) SubscriptionChanged(identity string, access subscription.Access) {
	h.enqueue(&BroadcastMessage{
		Identities: []string{identity},
		Channel:    wstypes.ChannelSubscription,
		Message: wstypes.NewMessage(wstypes.EventTypeSubscriptionUpdated, wstypes.SubscriptionEventData{
			Identity: identity,
			Access:   access,
		}),
	})
}

func (h *Hub) BroadcastSystemAlert(alert *wstypes.SystemAlertData) {
	h.enqueue(&BroadcastMessage{
		Channel: wstypes.ChannelSystem,
		Message: wstypes.NewMessage(wstypes.EventTypeSystemAlert, alert),
	})
}

func (h *Hub) ForceLogout(identity, sessionID, reason string) {
	h.enqueue(&BroadcastMessage{
		Identities: []string{identity},
		Channel:    wstypes.ChannelSystem,
		Message: wstypes.NewMessage(wstypes.EventTypeForceLogout, wstypes.SessionEventData{
			SessionID: sessionID,
			Reason:    reason,
			Message:   "You have been logged out",
		}),
	})
}

// IsUserConnected checks if a user has any active connections
func (h *Hub) IsUserConnected(identity string) bool {
	return h.GetConnectedClients(identity) > 0
}

// DisconnectUser forcefully disconnects all sessions for a user
func (h *Hub) DisconnectUser(identity, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[identity]
	if !ok {
		return
	}

	disconnectMsg := wstypes.NewMessage(wstypes.EventTypeDisconnected, map[string]interface{}{
		"reason": reason,
	})
	for client := range clients {
		client.SendMessage(disconnectMsg)
		client.Close()
	}

	delete(h.clients, identity)
	h.logger.Info("disconnected all clients", zap.String("identity", identity), zap.String("reason", reason))
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
