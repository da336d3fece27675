package chat

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionFactory builds a session for a new conversation against the given
// specification.
type SessionFactory func(conversationID, specID string) *Session

// Registry tracks live sessions by conversation ID so a reconnecting client
// can find its in-flight session within the grace period.
type Registry struct {
	factory SessionFactory

	mu       sync.Mutex
	sessions map[string]*Session

	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewRegistry creates a registry sweeping closed sessions at the given
// interval.
func NewRegistry(factory SessionFactory, sweepInterval time.Duration) *Registry {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &Registry{
		factory:  factory,
		sessions: make(map[string]*Session),
		interval: sweepInterval,
	}
}

// GetOrCreate returns the live session for the conversation ID, or creates
// one bound to the given spec. An empty ID always creates a fresh
// conversation. A closed session under the requested ID is replaced rather
// than revived.
func (r *Registry) GetOrCreate(id, specID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if s, ok := r.sessions[id]; ok && s.State() != StateClosed {
		return s
	}
	s := r.factory(id, specID)
	r.sessions[id] = s
	return s
}

// Get returns the live session for the ID, or nil.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.State() == StateClosed {
		return nil
	}
	return s
}

// Len reports the number of tracked sessions, closed ones included until
// the next sweep.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Start launches the background sweep loop.
func (r *Registry) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.sweep(); n > 0 {
					log.Printf("chat registry: swept %d closed sessions", n)
				}
			}
		}
	}()
}

// Stop halts the sweep loop and closes every tracked session.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}

	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (r *Registry) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.State() == StateClosed {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}
