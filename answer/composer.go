// Package answer assembles retrieved chunks and recent conversation history
// into a bounded generation request and shapes the response with citations.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gamma-omg/chatpdf-mcp/retrieve"
)

// Message roles understood by the generation capability.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// Only the last 6 history messages (3 exchanges) are forwarded; older
	// history is dropped to bound prompt growth.
	historyLimit = 6
	maxSources   = 3
	previewLen   = 200

	systemPrompt = "You are a helpful AI assistant that answers questions based on PDF documents. " +
		"Use the provided context to answer questions accurately. " +
		"If the answer is not in the context, say so. " +
		"Always cite the page number when referencing information."

	disabledAnswer = "LLM not configured. Please set OPENAI_API_KEY environment variable."
	disabledTag    = "llm not enabled"
)

// Message is one turn of a generation conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator is the external text-generation capability.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Source cites one context chunk backing the answer.
type Source struct {
	PageNum     int     `json:"page_num"`
	Similarity  float64 `json:"similarity_score"`
	TextPreview string  `json:"text_preview"`
}

// Answer is the shaped response. Error is set when generation was disabled
// or failed; the answer text then describes the condition instead of
// answering the question.
type Answer struct {
	Answer      string   `json:"answer"`
	Sources     []Source `json:"sources"`
	Model       string   `json:"model,omitempty"`
	ContextUsed int      `json:"context_used"`
	Error       string   `json:"error,omitempty"`
}

type Composer struct {
	log   *slog.Logger
	gen   Generator
	model string
}

// NewComposer wires the generation capability. A nil gen leaves the
// composer in a disabled state that never performs network I/O.
func NewComposer(gen Generator, model string, log *slog.Logger) *Composer {
	return &Composer{log: log, gen: gen, model: model}
}

func (c *Composer) Enabled() bool {
	return c.gen != nil
}

// Compose builds the prompt from the supplied chunks, in their given order,
// and delegates to the generation capability. Generation failures come back
// as an answer string with an error tag, never as a hard failure.
func (c *Composer) Compose(ctx context.Context, question string, contextChunks []retrieve.Result, history []Message) Answer {
	if c.gen == nil {
		return Answer{Answer: disabledAnswer, Sources: []Source{}, Error: disabledTag}
	}

	var sb strings.Builder
	for i, ch := range contextChunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Page %d] %s", ch.Meta.PageNum, ch.Text)
	}

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	messages = append(messages, history...)
	messages = append(messages, Message{
		Role:    RoleUser,
		Content: fmt.Sprintf("Context from document:\n\n%s\n\nQuestion: %s", sb.String(), question),
	})

	text, err := c.gen.Generate(ctx, messages)
	if err != nil {
		c.log.Error("failed to generate answer", "error", err)
		return Answer{
			Answer:  fmt.Sprintf("Error generating answer: %s", err),
			Sources: []Source{},
			Error:   err.Error(),
		}
	}

	return Answer{
		Answer:      text,
		Sources:     sources(contextChunks),
		Model:       c.model,
		ContextUsed: len(contextChunks),
	}
}

func sources(chunks []retrieve.Result) []Source {
	out := make([]Source, 0, maxSources)
	for _, ch := range chunks[:min(maxSources, len(chunks))] {
		preview := ch.Text
		if runes := []rune(preview); len(runes) > previewLen {
			preview = string(runes[:previewLen])
		}

		out = append(out, Source{
			PageNum:     ch.Meta.PageNum,
			Similarity:  ch.Similarity,
			TextPreview: preview + "...",
		})
	}

	return out
}
