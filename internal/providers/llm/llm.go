package llm

import (
	"context"
	"strings"
)

// SystemPrompt frames every generated reply.
const SystemPrompt = "You are a friendly conversational assistant. Keep replies concise, " +
	"match the user's tone, and acknowledge their mood when it is clearly positive or negative."

type Provider interface {
	// StreamAnswer returns a stream of text chunks (incremental).
	StreamAnswer(ctx context.Context, prompt string) (chunks <-chan string, errs <-chan error)
	Close() error
}

// Collect drains a streamed answer into one string.
func Collect(ctx context.Context, p Provider, prompt string) (string, error) {
	chunks, errs := p.StreamAnswer(ctx, prompt)

	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	if err := <-errs; err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}
