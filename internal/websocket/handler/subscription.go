// internal/websocket/handler/subscription.go
package handlers

import (
	"context"
	"fmt"
	"time"

	"cuscatlan-service/internal/domain/subscription"
	wstypes "cuscatlan-service/internal/domain/websocket"
	ws "cuscatlan-service/internal/websocket"
)

// AccessReader evaluates the entitlement gates for an identity.
type AccessReader interface {
	Access(ctx context.Context, identity string, now time.Time) subscription.Access
}

type SubscriptionHandler struct {
	engine AccessReader
	now    func() time.Time
}

func NewSubscriptionHandler(engine AccessReader) *SubscriptionHandler {
	return &SubscriptionHandler{
		engine: engine,
		now:    time.Now,
	}
}

// SupportedEvents returns events this handler supports
func (h *SubscriptionHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypeSubscriptionRefresh,
	}
}

// HandleMessage answers a refresh with the current access state of the connection's identity
func (h *SubscriptionHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypeSubscriptionRefresh:
		access := h.engine.Access(ctx, client.Identity(), h.now())
		client.SendMessage(wstypes.NewMessage(wstypes.EventTypeSubscriptionStatus, wstypes.SubscriptionEventData{
			Identity: client.Identity(),
			Access:   access,
		}))
		return nil

	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}
