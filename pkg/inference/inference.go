// Package inference answers chat turns through OpenAI-compatible
// completion APIs.
//
// A Provider turns a prompt into either one whole reply or a stream of
// text deltas. Providers are stateless: callers pass the full prompt,
// persona instruction included, on every call.
//
//	llm, _ := inference.NewOpenAI(
//	    inference.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    inference.WithModel("gpt-4o-mini"),
//	)
//	defer llm.Close()
//
//	stream, _ := llm.Stream(ctx, &inference.ChatRequest{
//	    Messages: []inference.Message{
//	        inference.NewSystemMessage(p.SystemPrompt),
//	        inference.NewUserMessage("Hello!"),
//	    },
//	})
//	reply, _ := inference.Collect(stream, speak)
package inference

import (
	"context"
	"strings"
)

// Provider produces assistant replies.
type Provider interface {
	// Chat returns the whole reply at once.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream returns the reply as it is generated.
	Stream(ctx context.Context, req *ChatRequest) (Stream, error)

	// Health reports whether the backend is reachable with the configured key.
	Health(ctx context.Context) error

	Close() error
}

// Stream yields a reply piece by piece.
type Stream interface {
	// Recv returns the next chunk. The chunk with Done set is the last one.
	Recv() (*StreamChunk, error)

	Close() error
}

// StreamChunk is one piece of a streamed reply.
type StreamChunk struct {
	Delta        string
	FinishReason string
	Done         bool
}

// Role is the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a prompt.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage returns an instruction message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage returns a message spoken by the user.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage returns a message spoken by the persona.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ChatRequest is one completion call. Zero sampling fields leave the
// provider default in place.
type ChatRequest struct {
	Messages []Message

	// Model overrides the configured model.
	Model string

	MaxTokens        int
	Temperature      float64
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
	Stop             []string
}

// ChatResponse is a whole reply.
type ChatResponse struct {
	Message      Message
	FinishReason string
	Usage        Usage
	Model        string
	LatencyMs    int64
}

// Usage counts the tokens billed for a call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Collect drains s, passing every non-empty delta to fn, and returns the
// text read so far. s is closed on return. An error from fn stops reading
// and is returned as is.
func Collect(s Stream, fn func(delta string) error) (string, error) {
	defer s.Close()

	var text strings.Builder
	for {
		chunk, err := s.Recv()
		switch {
		case err != nil:
			return text.String(), err
		case chunk == nil:
			return text.String(), nil
		}

		if chunk.Delta != "" {
			text.WriteString(chunk.Delta)
			if fn != nil {
				if err := fn(chunk.Delta); err != nil {
					return text.String(), err
				}
			}
		}
		if chunk.Done {
			return text.String(), nil
		}
	}
}
