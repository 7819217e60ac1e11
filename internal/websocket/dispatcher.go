// internal/websocket/dispatcher.go
package websocket

import (
	"context"
	"fmt"
	"sync"

	wstypes "cuscatlan-service/internal/domain/websocket"
)

// MessageHandler answers client events for one domain
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error
	SupportedEvents() []wstypes.EventType
}

// dispatcher routes client events to at most one handler each
type dispatcher struct {
	mu     sync.RWMutex
	routes map[wstypes.EventType]MessageHandler
}

func newDispatcher() *dispatcher {
	return &dispatcher{routes: make(map[wstypes.EventType]MessageHandler)}
}

func (d *dispatcher) add(handler MessageHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	events := handler.SupportedEvents()
	for _, ev := range events {
		if _, taken := d.routes[ev]; taken {
			return fmt.Errorf("event %q already has a handler", ev)
		}
		switch ev {
		case wstypes.EventTypePing, wstypes.EventTypeSubscribe, wstypes.EventTypeUnsubscribe:
			return fmt.Errorf("event %q is handled by the client itself", ev)
		}
	}
	for _, ev := range events {
		d.routes[ev] = handler
	}
	return nil
}

func (d *dispatcher) lookup(ev wstypes.EventType) (MessageHandler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.routes[ev]
	return h, ok
}
