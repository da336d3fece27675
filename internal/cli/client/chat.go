package client

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

type chatEvent struct {
	Type           string  `json:"type"`
	Content        string  `json:"content,omitempty"`
	Sequence       int     `json:"sequence"`
	Error          string  `json:"error,omitempty"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Chunks         []chunk `json:"chunks,omitempty"`
}

type chunk struct {
	ChunkID string  `json:"chunk_id"`
	Kind    string  `json:"kind"`
	Score   float32 `json:"score"`
}

type chatMessage struct {
	Type        string `json:"type"`
	Content     string `json:"content,omitempty"`
	ShowContext bool   `json:"show_context,omitempty"`
}

// ChatCmd creates the interactive chat command.
func ChatCmd() *cobra.Command {
	var showContext bool

	cmd := &cobra.Command{
		Use:   "chat <spec-id>",
		Short: "Chat about a specification",
		Long:  "Opens an interactive chat grounded in one ingested specification. Answers stream token by token.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(args[0], showContext)
		},
	}

	cmd.Flags().BoolVar(&showContext, "show-context", false, "Print the retrieved chunks before each answer")

	return cmd
}

func runChat(specID string, showContext bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	wsEndpoint, err := websocketURL(api.baseURL, specID)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	var hello chatEvent
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("failed to read session handshake: %w", err)
	}
	fmt.Printf("Connected (conversation %s). Type a question, or 'exit' to quit.\n\n", hello.ConversationID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			conn.WriteJSON(chatMessage{Type: "close"})
			break
		}

		if err := conn.WriteJSON(chatMessage{Type: "message", Content: line, ShowContext: showContext}); err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}

		if err := streamAnswer(conn); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func streamAnswer(conn *websocket.Conn) error {
	for {
		var ev chatEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return fmt.Errorf("connection lost: %w", err)
		}

		switch ev.Type {
		case "context":
			fmt.Println("Context:")
			for _, c := range ev.Chunks {
				fmt.Printf("  [%s] %s (%.2f)\n", c.Kind, c.ChunkID, c.Score)
			}
			fmt.Println()
		case "token":
			fmt.Print(ev.Content)
		case "final":
			fmt.Print("\n\n")
			return nil
		case "error":
			fmt.Printf("error: %s\n", ev.Error)
			return nil
		}
	}
}

func websocketURL(baseURL, specID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid API URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/chat"
	u.RawQuery = url.Values{"spec_id": {specID}}.Encode()
	return u.String(), nil
}
