package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/specwise/specchat/internal/domain"
	"github.com/specwise/specchat/internal/service"
)

// State is the session lifecycle state.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateStreaming
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Retriever produces the grounding context for a turn.
type Retriever interface {
	Retrieve(ctx context.Context, specID, query string, k int) ([]domain.ScoredChunk, error)
}

// TokenStream yields generated fragments; io.EOF signals completion.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Generator starts a streamed generation call. The provider cannot resume a
// stream mid-way; the session buffers on its side for replay.
type Generator interface {
	StreamChat(ctx context.Context, messages []domain.ChatMessage) (TokenStream, error)
}

// Transport delivers events to the connected client.
type Transport interface {
	Send(event Event) error
}

// Config controls session behavior.
type Config struct {
	SpecID string
	// TopK is the retrieval window size per turn.
	TopK int
	// GracePeriod bounds how long a detached session keeps its in-flight
	// turn alive waiting for a reconnect.
	GracePeriod time.Duration
	// BufferSize caps the outbound event channel. When the channel is full
	// the generation producer blocks, so a slow client pauses generation
	// instead of growing the buffer unboundedly.
	BufferSize int
}

// DefaultConfig provides sane defaults for chat sessions.
func DefaultConfig(specID string) Config {
	return Config{
		SpecID:      specID,
		TopK:        5,
		GracePeriod: 30 * time.Second,
		BufferSize:  64,
	}
}

// Session is a per-connection state machine. Sessions never share mutable
// state; the retriever and generator are the only shared collaborators and
// must be safe for concurrent use. A closed session is never reused.
type Session struct {
	id        string
	cfg       Config
	retriever Retriever
	generator Generator

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	transport  Transport
	turnBuffer []Event
	seq        int
	streaming  bool
	turnCancel context.CancelFunc
	graceTimer *time.Timer

	out  chan Event
	done chan struct{}
}

// NewSession creates a session in the CONNECTING state.
func NewSession(id string, cfg Config, retriever Retriever, generator Generator) *Session {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 30 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		cfg:       cfg,
		retriever: retriever,
		generator: generator,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateConnecting,
		out:       make(chan Event, cfg.BufferSize),
		done:      make(chan struct{}),
	}
	go s.pump()
	return s
}

// ID returns the session's conversation ID.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attach binds a transport to the session: the CONNECTING→OPEN handshake on
// first attach, or a reconnect that replays the buffered turn events. The
// replay makes a drop recoverable without discarding in-flight answers.
func (s *Session) Attach(t Transport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return domain.ErrSessionClosed
	}

	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}

	// Replay everything from the current turn. Duplicates are possible
	// around the reattach boundary; sequence numbers let clients dedupe and
	// the terminal event is self-sufficient either way.
	for _, ev := range s.turnBuffer {
		if err := t.Send(ev); err != nil {
			return err
		}
	}

	s.transport = t
	if s.streaming {
		s.state = StateStreaming
	} else {
		s.state = StateOpen
	}
	return nil
}

// Detach records a transport loss. The session enters RECONNECTING and the
// in-flight turn keeps generating into the buffer for the grace period;
// expiry cancels the turn and closes the session.
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}

	s.transport = nil
	s.state = StateReconnecting
	if s.graceTimer == nil {
		s.graceTimer = time.AfterFunc(s.cfg.GracePeriod, func() {
			log.Printf("session %s: reconnect grace period expired", s.id)
			s.Close()
		})
	}
}

// Close terminates the session from any state. In-flight generation is
// cancelled immediately so no downstream work is orphaned; no further
// events are emitted.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.transport = nil
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
	if s.turnCancel != nil {
		s.turnCancel()
	}
	s.mu.Unlock()

	s.cancel()
}

// Done is closed when the session's event pump has drained and stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// HandleMessage processes one inbound frame. A "message" frame starts a
// turn; a second "message" while a turn is streaming is a protocol
// violation and is rejected with an error event rather than queued, so
// two answers never interleave within one session.
func (s *Session) HandleMessage(msg InboundMessage) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}

	if msg.Type == InboundTypeClose {
		s.mu.Unlock()
		s.Close()
		return nil
	}

	if msg.Type != InboundTypeMessage || strings.TrimSpace(msg.Content) == "" {
		seq := s.seq
		s.mu.Unlock()
		s.emit(Event{Type: EventError, Sequence: seq, Error: domain.ErrBadMessage.Message})
		return nil
	}

	if s.streaming {
		seq := s.seq
		s.mu.Unlock()
		s.emit(Event{Type: EventError, Sequence: seq, Error: domain.ErrTurnInFlight.Message})
		return nil
	}

	s.streaming = true
	s.state = StateStreaming
	s.seq = 0
	s.turnBuffer = s.turnBuffer[:0]

	turnCtx, turnCancel := context.WithCancel(s.ctx)
	s.turnCancel = turnCancel
	s.mu.Unlock()

	go s.runTurn(turnCtx, msg)
	return nil
}

// runTurn executes one retrieval + generation turn. The turn always ends
// with exactly one terminal event (final or error) and returns the session
// to OPEN; it never leaves the session stuck in STREAMING.
func (s *Session) runTurn(ctx context.Context, msg InboundMessage) {
	defer s.endTurn()

	results, err := s.retriever.Retrieve(ctx, s.cfg.SpecID, msg.Content, s.cfg.TopK)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("session %s: retrieval failed: %v", s.id, err)
			s.emit(Event{Type: EventError, Sequence: s.nextSeq(), Error: "retrieval failed: " + err.Error()})
		}
		return
	}

	if msg.ShowContext {
		s.emit(Event{Type: EventContext, Sequence: s.currentSeq(), Chunks: contextChunks(results)})
	}

	messages := service.BuildMessages(msg.Content, results)
	stream, err := s.generator.StreamChat(ctx, messages)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("session %s: generation start failed: %v", s.id, err)
			s.emit(Event{Type: EventError, Sequence: s.nextSeq(), Error: domain.ErrGenerationUnavailable.Message})
		}
		return
	}
	defer stream.Close()

	var answer strings.Builder
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("session %s: generation failed mid-stream: %v", s.id, err)
				s.emit(Event{Type: EventError, Sequence: s.nextSeq(), Error: domain.ErrGenerationUnavailable.Message})
			}
			return
		}

		answer.WriteString(fragment)
		s.emit(Event{Type: EventToken, Sequence: s.nextSeq(), Content: fragment})

		if ctx.Err() != nil {
			return
		}
	}

	s.emit(Event{Type: EventFinal, Sequence: s.nextSeq(), Content: answer.String()})
}

func (s *Session) endTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaming = false
	if s.turnCancel != nil {
		s.turnCancel()
		s.turnCancel = nil
	}
	if s.state == StateStreaming {
		s.state = StateOpen
	}
}

func (s *Session) nextSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.seq
	s.seq++
	return seq
}

func (s *Session) currentSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// emit appends the event to the turn buffer and hands it to the pump. The
// channel send blocks when the buffer is full, which is the backpressure
// policy: generation pauses for slow clients.
func (s *Session) emit(ev Event) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.turnBuffer = append(s.turnBuffer, ev)
	s.mu.Unlock()

	select {
	case s.out <- ev:
	case <-s.ctx.Done():
	}
}

// pump forwards buffered events to the attached transport. While detached
// the events are dropped here but retained in the turn buffer, so a
// reconnect replays them.
func (s *Session) pump() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.out:
			s.mu.Lock()
			t := s.transport
			s.mu.Unlock()
			if t == nil {
				continue
			}
			if err := t.Send(ev); err != nil {
				log.Printf("session %s: transport send failed: %v", s.id, err)
				s.Detach()
			}
		}
	}
}
