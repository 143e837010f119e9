package events

import (
	"context"
	"sync"
)

// InMemoryPublisher collects events for tests and local development.
type InMemoryPublisher struct {
	mu     sync.Mutex
	events []DecisionEvent
}

// NewInMemoryPublisher creates an empty in-memory publisher.
func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{}
}

func (p *InMemoryPublisher) Emit(ctx context.Context, event DecisionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *InMemoryPublisher) Close() error {
	return nil
}

// Events returns a copy of everything emitted so far.
func (p *InMemoryPublisher) Events() []DecisionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]DecisionEvent, len(p.events))
	copy(out, p.events)
	return out
}
