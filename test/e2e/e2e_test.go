//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specwise/specchat/internal/chat"
)

const petstoreJSON = `{
  "openapi": "3.0.0",
  "info": {
    "title": "Petstore",
    "version": "1.0.0",
    "description": "A sample pet store API"
  },
  "paths": {
    "/pets": {
      "get": {
        "summary": "List all pets",
        "operationId": "listPets",
        "responses": {"200": {"description": "A paged array of pets"}}
      },
      "post": {
        "summary": "Create a pet",
        "operationId": "createPet",
        "responses": {"201": {"description": "Pet created"}}
      }
    },
    "/pets/{petId}": {
      "get": {
        "summary": "Info for a specific pet",
        "operationId": "showPetById",
        "parameters": [
          {"name": "petId", "in": "path", "required": true, "schema": {"type": "string"}}
        ],
        "responses": {"200": {"description": "Expected response to a valid request"}}
      }
    }
  },
  "components": {
    "schemas": {
      "Pet": {
        "type": "object",
        "required": ["id", "name"],
        "properties": {
          "id": {"type": "integer"},
          "name": {"type": "string"},
          "tag": {"type": "string"}
        }
      }
    }
  }
}`

type ingestResult struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Version       string `json:"version"`
	Format        string `json:"format"`
	SizeBytes     int64  `json:"size_bytes"`
	ChunkCount    int    `json:"chunk_count"`
	SkippedChunks int    `json:"skipped_chunks"`
}

func ingestPetstore(t *testing.T, env *E2ETestEnv) ingestResult {
	resp, err := env.PostRaw("/specs", []byte(petstoreJSON), "application/json")
	require.NoError(t, err)

	var result ingestResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	require.NotEmpty(t, result.ID)
	return result
}

// TestE2E_SpecLifecycle covers upload, get, list, export, and delete.
func TestE2E_SpecLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	var specID string

	t.Run("upload spec", func(t *testing.T) {
		result := ingestPetstore(t, env)
		specID = result.ID

		assert.Equal(t, "Petstore", result.Title)
		assert.Equal(t, "1.0.0", result.Version)
		assert.Equal(t, "json", result.Format)
		assert.Equal(t, int64(len(petstoreJSON)), result.SizeBytes)
		// info + 3 operations + 1 schema
		assert.Equal(t, 5, result.ChunkCount)
		assert.Zero(t, result.SkippedChunks)
	})

	t.Run("get spec", func(t *testing.T) {
		resp, err := env.Get("/specs/" + specID)
		require.NoError(t, err)

		var spec struct {
			ID         string `json:"id"`
			Title      string `json:"title"`
			ChunkCount int    `json:"chunk_count"`
			CreatedAt  string `json:"created_at"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &spec))
		assert.Equal(t, specID, spec.ID)
		assert.Equal(t, "Petstore", spec.Title)
		assert.Equal(t, 5, spec.ChunkCount)
		assert.NotEmpty(t, spec.CreatedAt)
	})

	t.Run("list specs", func(t *testing.T) {
		resp, err := env.Get("/specs")
		require.NoError(t, err)

		var list struct {
			Items []struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"items"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		require.Len(t, list.Items, 1)
		assert.Equal(t, specID, list.Items[0].ID)
	})

	t.Run("export returns original bytes", func(t *testing.T) {
		raw, contentType, err := env.GetRaw("/specs/" + specID + "/export")
		require.NoError(t, err)
		assert.Equal(t, "application/json", contentType)
		assert.Equal(t, petstoreJSON, string(raw))
	})

	t.Run("delete spec", func(t *testing.T) {
		_, err := env.Delete("/specs/" + specID)
		require.NoError(t, err)

		_, err = env.Get("/specs/" + specID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")

		resp, err := env.Get("/specs")
		require.NoError(t, err)
		var list struct {
			Items []json.RawMessage `json:"items"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		assert.Empty(t, list.Items)
	})
}

// TestE2E_UploadValidation covers rejected uploads.
func TestE2E_UploadValidation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("empty body", func(t *testing.T) {
		_, err := env.PostRaw("/specs", nil, "application/json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})

	t.Run("not an OpenAPI document", func(t *testing.T) {
		_, err := env.PostRaw("/specs", []byte(`{"hello": "world"}`), "application/json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})

	t.Run("invalid format param", func(t *testing.T) {
		_, err := env.PostRaw("/specs?format=xml", []byte(petstoreJSON), "application/json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}

// TestE2E_Search covers ranked retrieval over an ingested spec.
func TestE2E_Search(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	result := ingestPetstore(t, env)

	t.Run("query matches operation chunk", func(t *testing.T) {
		resp, err := env.Post("/search", map[string]interface{}{
			"query":   "list all pets",
			"spec_id": result.ID,
			"top_k":   5,
		})
		require.NoError(t, err)

		var search struct {
			Results []struct {
				ChunkID string  `json:"chunk_id"`
				Kind    string  `json:"kind"`
				Score   float32 `json:"score"`
			} `json:"results"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &search))
		require.NotEmpty(t, search.Results)

		for i := 1; i < len(search.Results); i++ {
			assert.LessOrEqual(t, search.Results[i].Score, search.Results[i-1].Score)
		}

		var found bool
		for _, r := range search.Results {
			if r.ChunkID == result.ID+":path:/pets:get" {
				found = true
				assert.Equal(t, "path", r.Kind)
			}
		}
		assert.True(t, found, "expected the GET /pets chunk in results")
	})

	t.Run("unknown spec returns no results", func(t *testing.T) {
		resp, err := env.Post("/search", map[string]interface{}{
			"query":   "list all pets",
			"spec_id": "nonexistent",
		})
		require.NoError(t, err)

		var search struct {
			Results []json.RawMessage `json:"results"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &search))
		assert.Empty(t, search.Results)
	})

	t.Run("empty query rejected", func(t *testing.T) {
		_, err := env.Post("/search", map[string]interface{}{
			"query":   "  ",
			"spec_id": result.ID,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}

// TestE2E_Chat covers the streaming protocol over a live WebSocket.
func TestE2E_Chat(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	result := ingestPetstore(t, env)

	conn, hello := env.DialChat(result.ID, "")
	defer conn.Close()

	require.Equal(t, "session", hello.Type)
	require.NotEmpty(t, hello.ConversationID)
	assert.Equal(t, result.ID, hello.SpecID)

	t.Run("first turn streams context, tokens, final", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"type":         "message",
			"content":      "How do I list all pets?",
			"show_context": true,
		}))

		events := env.ReadEventsUntilFinal(conn)

		var contextEvents, tokens []chat.Event
		for _, ev := range events {
			switch ev.Type {
			case chat.EventContext:
				contextEvents = append(contextEvents, ev)
			case chat.EventToken:
				tokens = append(tokens, ev)
			}
		}

		require.Len(t, contextEvents, 1)
		assert.NotEmpty(t, contextEvents[0].Chunks)

		require.NotEmpty(t, tokens)
		assert.Equal(t, 0, tokens[0].Sequence)
		for i := 1; i < len(tokens); i++ {
			assert.Equal(t, tokens[i-1].Sequence+1, tokens[i].Sequence)
		}

		final := events[len(events)-1]
		require.Equal(t, chat.EventFinal, final.Type)
		assert.Equal(t, fakeAnswer, final.Content)
		assert.Greater(t, final.Sequence, tokens[len(tokens)-1].Sequence)
	})

	t.Run("second turn restarts sequence numbering", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"type":    "message",
			"content": "How do I create a pet?",
		}))

		events := env.ReadEventsUntilFinal(conn)

		var tokens []chat.Event
		for _, ev := range events {
			if ev.Type == chat.EventToken {
				tokens = append(tokens, ev)
			}
		}
		require.NotEmpty(t, tokens)
		assert.Equal(t, 0, tokens[0].Sequence)

		final := events[len(events)-1]
		require.Equal(t, chat.EventFinal, final.Type)
		assert.Equal(t, fakeAnswer, final.Content)
	})

	t.Run("malformed message produces error event", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"type": "message",
		}))

		events := env.ReadEventsUntilFinal(conn)
		require.Len(t, events, 1)
		assert.Equal(t, chat.EventError, events[0].Type)
		assert.NotEmpty(t, events[0].Error)
	})

	t.Run("close frame ends the session", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "close"}))

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev chat.Event
		err := conn.ReadJSON(&ev)
		require.Error(t, err)
	})
}

// TestE2E_ChatReconnect verifies a dropped connection can resume the same
// conversation within the grace window.
func TestE2E_ChatReconnect(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	result := ingestPetstore(t, env)

	conn, hello := env.DialChat(result.ID, "")
	conversationID := hello.ConversationID
	conn.Close()

	conn2, hello2 := env.DialChat("", conversationID)
	defer conn2.Close()

	assert.Equal(t, conversationID, hello2.ConversationID)

	require.NoError(t, conn2.WriteJSON(map[string]interface{}{
		"type":    "message",
		"content": "How do I list all pets?",
	}))
	events := env.ReadEventsUntilFinal(conn2)
	final := events[len(events)-1]
	require.Equal(t, chat.EventFinal, final.Type)
	assert.Equal(t, fakeAnswer, final.Content)
}

// TestE2E_ChatRequiresSpec verifies the endpoint rejects a dial with
// neither a spec nor a conversation.
func TestE2E_ChatRequiresSpec(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.HTTPClient.Get(env.ServerURL + "/ws/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}

// TestE2E_CLI drives the ingest, list, search, and delete commands through
// the built binary.
func TestE2E_CLI(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinary()

	workDir := t.TempDir()
	specPath := filepath.Join(workDir, "petstore.json")
	require.NoError(t, os.WriteFile(specPath, []byte(petstoreJSON), 0o644))

	var specID string

	t.Run("ingest", func(t *testing.T) {
		out, err := env.RunSpecchat(workDir, "ingest", "petstore.json", "--output")
		require.NoError(t, err, out)

		var result ingestResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, "Petstore", result.Title)
		assert.Equal(t, 5, result.ChunkCount)
		specID = result.ID
	})

	t.Run("list", func(t *testing.T) {
		out, err := env.RunSpecchat(workDir, "list")
		require.NoError(t, err, out)
		assert.Contains(t, out, "Petstore")
		assert.Contains(t, out, specID)
	})

	t.Run("search", func(t *testing.T) {
		out, err := env.RunSpecchat(workDir, "search", "list all pets", "--spec", specID)
		require.NoError(t, err, out)
		assert.Contains(t, out, "Found")
		assert.Contains(t, out, ":path:/pets")
	})

	t.Run("export", func(t *testing.T) {
		outPath := filepath.Join(workDir, "exported.json")
		out, err := env.RunSpecchat(workDir, "export", specID, "--out", "exported.json")
		require.NoError(t, err, out)

		exported, err := os.ReadFile(outPath)
		require.NoError(t, err)
		assert.Equal(t, petstoreJSON, string(exported))
	})

	t.Run("delete", func(t *testing.T) {
		out, err := env.RunSpecchat(workDir, "delete", specID)
		require.NoError(t, err, out)
		assert.Contains(t, out, fmt.Sprintf("Deleted %s", specID))

		out, err = env.RunSpecchat(workDir, "list")
		require.NoError(t, err, out)
		assert.True(t, strings.Contains(out, "No specifications ingested."))
	})
}
