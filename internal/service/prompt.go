package service

import (
	"fmt"
	"strings"

	"github.com/specwise/specchat/internal/domain"
)

const systemPrompt = `You are an AI assistant helping with OpenAPI specifications. Your role is to:
1. Provide clear, concise, and natural responses about API endpoints
2. When describing endpoints, always include the complete endpoint path and HTTP method
3. List required parameters and authentication requirements when they are known
4. Format code blocks and endpoint paths with markdown backticks
5. Ask clarifying questions when the question is ambiguous

Use the provided OpenAPI specification context to guide your responses. If the
context does not contain the answer, say so rather than guessing.`

// BuildMessages assembles the generation request for one turn: a fixed
// system prompt plus a user message carrying the retrieved context window
// and the question.
func BuildMessages(query string, contextChunks []domain.ScoredChunk) []domain.ChatMessage {
	var b strings.Builder
	if len(contextChunks) == 0 {
		b.WriteString("No relevant context was found in the specification.")
	} else {
		b.WriteString("Using this OpenAPI specification context:\n")
		for _, c := range contextChunks {
			b.WriteString("\n---\n")
			b.WriteString(c.Chunk.Text)
		}
		b.WriteString("\n---\n")
	}
	fmt.Fprintf(&b, "\nQuestion: %s", query)

	return []domain.ChatMessage{
		{Role: domain.ChatRoleSystem, Content: systemPrompt},
		{Role: domain.ChatRoleUser, Content: b.String()},
	}
}
