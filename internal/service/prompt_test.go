package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specwise/specchat/internal/domain"
)

func TestBuildMessagesWithContext(t *testing.T) {
	chunks := []domain.ScoredChunk{
		{Chunk: domain.Chunk{ID: "c1", Text: "GET /pets lists all pets."}, Score: 0.9},
		{Chunk: domain.Chunk{ID: "c2", Text: "Pet has id and name."}, Score: 0.7},
	}

	messages := BuildMessages("How do I list pets?", chunks)
	require.Len(t, messages, 2)

	assert.Equal(t, domain.ChatRoleSystem, messages[0].Role)
	assert.Contains(t, messages[0].Content, "OpenAPI specifications")

	assert.Equal(t, domain.ChatRoleUser, messages[1].Role)
	assert.Contains(t, messages[1].Content, "GET /pets lists all pets.")
	assert.Contains(t, messages[1].Content, "Pet has id and name.")
	assert.Contains(t, messages[1].Content, "Question: How do I list pets?")
}

func TestBuildMessagesWithoutContext(t *testing.T) {
	messages := BuildMessages("What endpoints exist?", nil)
	require.Len(t, messages, 2)

	assert.Contains(t, messages[1].Content, "No relevant context was found")
	assert.Contains(t, messages[1].Content, "Question: What endpoints exist?")
}
