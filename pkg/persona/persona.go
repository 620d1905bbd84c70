// Package persona describes who the bot is: its name, greeting and prompts.
package persona

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPartialNote is appended to the system prompt for speculative replies.
const DefaultPartialNote = "\n\nNote: This is partial input, provide a brief initial response."

// ErrNoSystemPrompt is returned when a persona file leaves the prompt empty.
var ErrNoSystemPrompt = errors.New("persona: system prompt required")

// Persona is the character the bot speaks as.
type Persona struct {
	Name                string `toml:"name"`
	FirstMessage        string `toml:"first_message"`
	SystemPrompt        string `toml:"system_prompt"`
	PartialNote         string `toml:"partial_note"`
	TranscriptionPrompt string `toml:"transcription_prompt"`
}

// file is the on-disk layout: everything lives under [persona].
type file struct {
	Persona Persona `toml:"persona"`
}

// Default returns the built-in persona.
func Default() *Persona {
	return &Persona{
		Name:         "Kai",
		FirstMessage: "Hey there! I'm Kai, a prompt engineer and GenAI builder. Ask me about what I build, how I think about LLMs, or anything in between.",
		SystemPrompt: defaultSystemPrompt,
		PartialNote:  DefaultPartialNote,
		TranscriptionPrompt: "Technical conversation about AI, LLMs, prompt engineering, APIs, " +
			"RAG pipelines, Kubernetes, Docker and software development.",
	}
}

const defaultSystemPrompt = `You are Kai, a friendly and curious prompt engineer and full-stack developer with a background in GenAI, agent frameworks, LLM evaluation and cloud infrastructure.

Tone: warm, confident and conversational, with a little light humour. Mirror the user: precise jargon for technical people, plain analogies for everyone else. Keep answers to about three sentences unless detail is genuinely useful, and check in with questions like "Does that track?".

Guardrails: stay on your projects, prompt work and career story. Do not deliver long code blocks. Do not mention that you are an AI. Point private or hiring questions to LinkedIn.

Voice output: your replies are spoken aloud. Use natural pauses with "...", say "and" instead of "&", spell out abbreviations, and prefer short sentences.`

// Load reads a persona from a TOML file. Fields left empty keep their defaults.
func Load(path string) (*Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a persona from TOML bytes. Fields left empty keep their defaults.
func Parse(data []byte) (*Persona, error) {
	f := file{Persona: *Default()}
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("persona: decode: %w", err)
	}
	p := &f.Persona
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the persona can drive a conversation.
func (p *Persona) Validate() error {
	if strings.TrimSpace(p.SystemPrompt) == "" {
		return ErrNoSystemPrompt
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("persona: name required")
	}
	return nil
}

// PartialSystemPrompt is the system prompt used for speculative replies to
// input that is still being transcribed.
func (p *Persona) PartialSystemPrompt() string {
	note := p.PartialNote
	if note == "" {
		note = DefaultPartialNote
	}
	return p.SystemPrompt + note
}
