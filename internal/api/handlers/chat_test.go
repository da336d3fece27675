package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specwise/specchat/internal/chat"
	"github.com/specwise/specchat/internal/domain"
)

type stubRetriever struct {
	results []domain.ScoredChunk
}

func (r *stubRetriever) Retrieve(_ context.Context, _, _ string, _ int) ([]domain.ScoredChunk, error) {
	return r.results, nil
}

type stubStream struct {
	fragments []string
	idx       int
}

func (s *stubStream) Recv() (string, error) {
	if s.idx >= len(s.fragments) {
		return "", io.EOF
	}
	f := s.fragments[s.idx]
	s.idx++
	return f, nil
}

func (s *stubStream) Close() error { return nil }

type stubGenerator struct {
	fragments []string
}

func (g *stubGenerator) StreamChat(_ context.Context, _ []domain.ChatMessage) (chat.TokenStream, error) {
	return &stubStream{fragments: g.fragments}, nil
}

func newChatTestServer(t *testing.T, fragments []string) (*httptest.Server, *chat.Registry) {
	t.Helper()
	registry := chat.NewRegistry(func(id, specID string) *chat.Session {
		cfg := chat.DefaultConfig(specID)
		cfg.GracePeriod = 200 * time.Millisecond
		return chat.NewSession(id, cfg, &stubRetriever{}, &stubGenerator{fragments: fragments})
	}, time.Minute)
	t.Cleanup(registry.Stop)

	handler := NewChatHandler(registry)
	srv := httptest.NewServer(http.HandlerFunc(handler.Serve))
	t.Cleanup(srv.Close)
	return srv, registry
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
}

func TestChatHandler_StreamsAnswer(t *testing.T) {
	srv, _ := newChatTestServer(t, []string{"Hello", " world"})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "spec_id=spec-123"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello sessionHello
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "session", hello.Type)
	assert.NotEmpty(t, hello.ConversationID)

	require.NoError(t, conn.WriteJSON(chat.InboundMessage{Type: chat.InboundTypeMessage, Content: "hi"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var tokens []string
	for {
		var ev chat.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == chat.EventToken {
			tokens = append(tokens, ev.Content)
			continue
		}
		require.Equal(t, chat.EventFinal, ev.Type)
		assert.Equal(t, "Hello world", ev.Content)
		break
	}
	assert.Equal(t, []string{"Hello", " world"}, tokens)
}

func TestChatHandler_RequiresSpecOrConversation(t *testing.T) {
	srv, _ := newChatTestServer(t, nil)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatHandler_CloseFrameEndsSession(t *testing.T) {
	srv, registry := newChatTestServer(t, []string{"answer"})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "spec_id=spec-123"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello sessionHello
	require.NoError(t, conn.ReadJSON(&hello))
	session := registry.Get(hello.ConversationID)
	require.NotNil(t, session)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	// A clean close must not wait out the reconnect grace period.
	require.Eventually(t, func() bool {
		return session.State() == chat.StateClosed
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestChatHandler_ReconnectResumesConversation(t *testing.T) {
	srv, registry := newChatTestServer(t, []string{"answer"})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "spec_id=spec-123"), nil)
	require.NoError(t, err)

	var hello sessionHello
	require.NoError(t, conn.ReadJSON(&hello))
	conversationID := hello.ConversationID
	conn.Close()

	require.Eventually(t, func() bool {
		s := registry.Get(conversationID)
		return s != nil && s.State() == chat.StateReconnecting
	}, time.Second, 10*time.Millisecond)

	conn2, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "conversation_id="+conversationID), nil)
	require.NoError(t, err)
	defer conn2.Close()

	var hello2 sessionHello
	require.NoError(t, conn2.ReadJSON(&hello2))
	assert.Equal(t, conversationID, hello2.ConversationID)
}
