// Package generative asks a chat-completion model to explain fault codes the
// table and scrapers could not answer.
package generative

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoChoices is returned when the model answers with nothing usable.
	ErrNoChoices = errors.New("generative: no choices in completion")
)

// Provider completes a single user prompt.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Prompt builds the fixed analysis prompt for code on equipment.
func Prompt(code, equipment string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following fault code %s for %s.\n", code, equipment)
	b.WriteString("Provide a detailed explanation of what the issue is and step-by-step instructions on how to fix it.\n")
	b.WriteString("Include safety precautions if necessary. Format the response in clear paragraphs.")
	return b.String()
}
