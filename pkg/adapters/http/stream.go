package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/cvflow/internal/dto"
	"github.com/aretw0/cvflow/pkg/domain"
)

// Event is one server-sent event.
type Event struct {
	Name string
	Data string
}

// StreamManager fans engine events out to connected SSE clients.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan Event]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a client. The cancel func unregisters it and closes the channel.
func (sm *StreamManager) Subscribe() (<-chan Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Event, 16)
	sm.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			delete(sm.subscribers, ch)
			close(ch)
		})
	}
}

// Broadcast delivers ev to every client, dropping it for clients whose buffer is full.
func (sm *StreamManager) Broadcast(ev Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- ev:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping event", "event", ev.Name)
		}
	}
}

func (sm *StreamManager) publish(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		sm.logger.Error("SSE: Failed to encode event", "event", name, "err", err)
		return
	}
	sm.Broadcast(Event{Name: name, Data: string(data)})
}

// Hooks returns lifecycle hooks that stream run state, cycle and failure
// events to connected clients. Merge them into the engine's hooks.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(_ context.Context, e *domain.StateEvent) {
			sm.publish("state", e)
		},
		OnCycleEnd: func(_ context.Context, e *domain.CycleEvent) {
			sm.publish("cycle", e)
		},
		OnNodeFailure: func(_ context.Context, e *domain.ProcessorError) {
			sm.publish("failure", dto.Failures(map[string]*domain.ProcessorError{e.NodeID: e})[0])
		},
	}
}
