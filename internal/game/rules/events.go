package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a game event.
type EventType string

const (
	// Lifecycle events
	EventSessionCreated   EventType = "SESSION_CREATED"
	EventPlayerJoined     EventType = "PLAYER_JOINED"
	EventMulliganStarted  EventType = "MULLIGAN_STARTED"
	EventMulliganResolved EventType = "MULLIGAN_RESOLVED"
	EventGameStarted      EventType = "GAME_STARTED"
	EventGameEnded        EventType = "GAME_ENDED"

	// Turn events
	EventTurnStarted  EventType = "TURN_STARTED"
	EventPhaseChanged EventType = "PHASE_CHANGED"
	EventAPRefreshed  EventType = "AP_REFRESHED"
	EventUntapped     EventType = "UNTAPPED"

	// Card events
	EventCardDrawn      EventType = "CARD_DRAWN"
	EventExtraDraw      EventType = "EXTRA_DRAW"
	EventCardPlayed     EventType = "CARD_PLAYED"
	EventCharacterMoved EventType = "CHARACTER_MOVED"
	EventAttackDeclared EventType = "ATTACK_DECLARED"
	EventLifeLost       EventType = "LIFE_LOST"
	EventZoneChange     EventType = "ZONE_CHANGE"
	EventDeckOut        EventType = "DECK_OUT"

	EventSurrendered EventType = "SURRENDERED"
)

// Event represents a state change that other subsystems may react to.
type Event struct {
	Type      EventType         `json:"type"`
	GameID    string            `json:"game_id,omitempty"`
	PlayerID  string            `json:"player_id,omitempty"`
	CardID    string            `json:"card_id,omitempty"`
	Amount    int               `json:"amount,omitempty"`
	FromZone  string            `json:"from_zone,omitempty"`
	ToZone    string            `json:"to_zone,omitempty"`
	Turn      int               `json:"turn"`
	Phase     Phase             `json:"phase"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener              // All listeners
	typedListeners map[EventType][]TypedListener // Listeners filtered by event type
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle,
// whether it was registered with Subscribe or SubscribeTyped.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, gameID, playerID string) Event {
	return Event{
		Type:      eventType,
		GameID:    gameID,
		PlayerID:  playerID,
		Timestamp: time.Now(),
	}
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, gameID, playerID string, amount int) Event {
	evt := NewEvent(eventType, gameID, playerID)
	evt.Amount = amount
	return evt
}

// NewZoneEvent creates an event describing a card moving between zones.
func NewZoneEvent(eventType EventType, gameID, playerID, cardID, from, to string) Event {
	evt := NewEvent(eventType, gameID, playerID)
	evt.CardID = cardID
	evt.FromZone = from
	evt.ToZone = to
	return evt
}
