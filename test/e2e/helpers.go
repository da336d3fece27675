//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/gorilla/websocket"

	"github.com/specwise/specchat/internal/api/handlers"
	"github.com/specwise/specchat/internal/chat"
	"github.com/specwise/specchat/internal/chunker"
	"github.com/specwise/specchat/internal/domain"
	"github.com/specwise/specchat/internal/index"
	"github.com/specwise/specchat/internal/openai"
	"github.com/specwise/specchat/internal/server"
	"github.com/specwise/specchat/internal/service"
	"github.com/specwise/specchat/internal/storage"
)

const embeddingDims = 16

// fakeAnswerFragments are the fragments the fake completion endpoint
// streams; fakeAnswer is their concatenation.
var fakeAnswerFragments = []string{"Use GET ", "/pets to ", "list pets."}

const fakeAnswer = "Use GET /pets to list pets."

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client
	BinaryDir    string

	openaiSrv *httptest.Server
	registry  *chat.Registry
}

// SetupE2EEnv starts a fake OpenAI backend and a full in-process server
// wired against the in-memory index, so the suite needs no credentials
// and no external services.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	openaiSrv := newFakeOpenAI()

	embedder := openai.NewClientWithConfig(openai.Config{
		APIKey:              "test-key",
		BaseURL:             openaiSrv.URL + "/v1",
		EmbeddingDimensions: embeddingDims,
	})

	vectorIndex := index.NewMemory()
	specRepo := index.NewMemorySpecs()
	ck := chunker.New(chunker.DefaultConfig())

	ingestSvc := service.NewIngestService(ck, embedder, vectorIndex, specRepo, nil, storage.NewMemoryStore(), service.DefaultPipelineConfig())

	retrievalCfg := service.DefaultRetrievalConfig()
	retrievalCfg.MinScore = 0.05
	retrievalSvc := service.NewRetrievalService(embedder, vectorIndex, retrievalCfg)

	registry := chat.NewRegistry(func(conversationID, specID string) *chat.Session {
		cfg := chat.DefaultConfig(specID)
		cfg.GracePeriod = 2 * time.Second
		return chat.NewSession(conversationID, cfg, retrievalSvc, streamAdapter{embedder})
	}, time.Minute)
	registry.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		SpecHandler:   handlers.NewSpecHandler(ingestSvc),
		SearchHandler: handlers.NewSearchHandler(retrievalSvc),
		ChatHandler:   handlers.NewChatHandler(registry),
		MaxBodyBytes:  10 << 20,
	})

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		ServerURL: serverURL,
		ServerCloser: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		},
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		openaiSrv:  openaiSrv,
		registry:   registry,
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.registry != nil {
		e.registry.Stop()
	}
	if e.openaiSrv != nil {
		e.openaiSrv.Close()
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinary builds the specchat CLI binary into a temp dir.
func (e *E2ETestEnv) BuildBinary() {
	tmpDir, err := os.MkdirTemp("", "specchat-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "specchat"), "./cmd/specchat")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build specchat: %v\n%s", err, out)
	}
}

// RunSpecchat runs the specchat CLI against the test server.
func (e *E2ETestEnv) RunSpecchat(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "specchat"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("SPECCHAT_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, "")
}

// Post performs a POST request with a JSON body
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal body: %w", err)
	}
	return e.doRequest("POST", path, jsonData, "application/json")
}

// PostRaw performs a POST request with a raw body and content type
func (e *E2ETestEnv) PostRaw(path string, body []byte, contentType string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, contentType)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, "")
}

// GetRaw performs a GET request and returns the raw body and content type.
func (e *E2ETestEnv) GetRaw(path string) ([]byte, string, error) {
	resp, err := e.HTTPClient.Get(e.ServerURL + path)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (e *E2ETestEnv) doRequest(method, path string, body []byte, contentType string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// DialChat opens a WebSocket chat connection and returns it with the
// hello frame already consumed.
func (e *E2ETestEnv) DialChat(specID, conversationID string) (*websocket.Conn, helloFrame) {
	wsURL := "ws" + strings.TrimPrefix(e.ServerURL, "http") + "/ws/chat?"
	q := make([]string, 0, 2)
	if specID != "" {
		q = append(q, "spec_id="+specID)
	}
	if conversationID != "" {
		q = append(q, "conversation_id="+conversationID)
	}
	wsURL += strings.Join(q, "&")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		e.T.Fatalf("failed to dial %s: %v", wsURL, err)
	}

	var hello helloFrame
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&hello); err != nil {
		e.T.Fatalf("failed to read hello frame: %v", err)
	}
	return conn, hello
}

type helloFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	SpecID         string `json:"spec_id"`
}

// ReadEventsUntilFinal reads outbound frames until a final or error event
// arrives.
func (e *E2ETestEnv) ReadEventsUntilFinal(conn *websocket.Conn) []chat.Event {
	var events []chat.Event
	deadline := time.Now().Add(10 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var ev chat.Event
		if err := conn.ReadJSON(&ev); err != nil {
			e.T.Fatalf("failed to read event: %v", err)
		}
		events = append(events, ev)
		if ev.Type == chat.EventFinal || ev.Type == chat.EventError {
			return events
		}
	}
}

// streamAdapter bridges the OpenAI client's concrete stream type to the
// session's stream interface.
type streamAdapter struct {
	client *openai.Client
}

func (a streamAdapter) StreamChat(ctx context.Context, messages []domain.ChatMessage) (chat.TokenStream, error) {
	stream, err := a.client.StreamChat(ctx, messages)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// newFakeOpenAI serves the two OpenAI endpoints the server depends on.
// Embeddings are a deterministic bag-of-words hash so that queries sharing
// tokens with a chunk score higher than unrelated ones; chat completions
// stream a canned answer.
func newFakeOpenAI() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type embeddingItem struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]embeddingItem, len(req.Input))
		for i, text := range req.Input {
			data[i] = embeddingItem{Object: "embedding", Index: i, Embedding: hashEmbedding(text)}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 0, "total_tokens": 0},
		})
	})

	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		flusher, _ := w.(http.Flusher)

		writeChunk := func(delta map[string]string, finishReason string) {
			chunk := map[string]interface{}{
				"id":      "chatcmpl-e2e",
				"object":  "chat.completion.chunk",
				"created": time.Now().Unix(),
				"model":   "gpt-4o-mini",
				"choices": []map[string]interface{}{
					{"index": 0, "delta": delta, "finish_reason": finishReason},
				},
			}
			payload, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			if flusher != nil {
				flusher.Flush()
			}
		}

		for _, frag := range fakeAnswerFragments {
			writeChunk(map[string]string{"content": frag}, "")
		}
		writeChunk(map[string]string{}, "stop")
		fmt.Fprint(w, "data: [DONE]\n\n")
		if flusher != nil {
			flusher.Flush()
		}
	})

	return httptest.NewServer(mux)
}

// hashEmbedding maps each lowercased token onto one of the dimensions and
// counts occurrences, then L2-normalizes. Texts with overlapping tokens get
// positive cosine similarity.
func hashEmbedding(text string) []float32 {
	vec := make([]float32, embeddingDims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%embeddingDims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
