package game

import (
	"sync"
	"time"

	"github.com/uaarena/session-engine/internal/game/rules"
)

// GameNotification is pushed to subscribers (websockets) after a session changes.
type GameNotification struct {
	Type      string         `json:"type"`
	GameID    string         `json:"game_id"`
	PlayerID  string         `json:"player_id,omitempty"`
	Turn      int            `json:"turn"`
	Phase     rules.Phase    `json:"phase"`
	Version   int64          `json:"version"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NotificationHandler receives game notifications. Calls are sequential and
// follow commit order; the handler may call back into the engine.
type NotificationHandler func(notification GameNotification)

// SetNotificationHandler sets the handler for game notifications.
func (e *Engine) SetNotificationHandler(handler NotificationHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notificationHandler = handler
}

type eventBatch struct {
	events  []rules.Event
	version int64
}

// notifier delivers event batches one at a time in the order they were
// queued. A drain goroutine runs only while the queue is non-empty.
type notifier struct {
	mu      sync.Mutex
	queue   []eventBatch
	running bool
	deliver func(eventBatch)
}

func (n *notifier) enqueue(batch eventBatch) {
	if len(batch.events) == 0 {
		return
	}
	n.mu.Lock()
	n.queue = append(n.queue, batch)
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.mu.Unlock()

	go n.drain()
}

func (n *notifier) drain() {
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.running = false
			n.mu.Unlock()
			return
		}
		batch := n.queue[0]
		n.queue[0] = eventBatch{}
		n.queue = n.queue[1:]
		n.mu.Unlock()

		n.deliver(batch)
	}
}

// notificationFromEvent converts an engine event. Card ids of draws are
// dropped because they would reveal the drawing player's hand.
func notificationFromEvent(evt rules.Event, version int64) GameNotification {
	data := map[string]any{}
	if evt.Amount != 0 {
		data["amount"] = evt.Amount
	}
	if evt.FromZone != "" {
		data["from_zone"] = evt.FromZone
	}
	if evt.ToZone != "" {
		data["to_zone"] = evt.ToZone
	}
	switch evt.Type {
	case rules.EventCardDrawn, rules.EventExtraDraw, rules.EventLifeLost:
	default:
		if evt.CardID != "" {
			data["card_id"] = evt.CardID
		}
	}
	for k, v := range evt.Metadata {
		data[k] = v
	}
	return GameNotification{
		Type:      string(evt.Type),
		GameID:    evt.GameID,
		PlayerID:  evt.PlayerID,
		Turn:      evt.Turn,
		Phase:     evt.Phase,
		Version:   version,
		Timestamp: evt.Timestamp,
		Data:      data,
	}
}
