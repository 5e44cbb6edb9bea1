// Package model defines the narrow contract every text-generation backend
// implements, and the errors the gateway distinguishes.
package model

import (
	"context"
	"fmt"

	ctxpkg "github.com/stupiduntilnot/pharmassist/internal/context"
)

// CompletionResponse is the common response model for model backends.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Request carries one generation: the instructions, the enumerated context
// sections, and the conversation turns ending with the current user turn.
type Request struct {
	System   string
	Sections []ctxpkg.Section
	Turns    []ctxpkg.Message
}

// Backend is a single-turn chat completion capability. Implementations differ
// only in how they serialize a Request onto the wire.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (CompletionResponse, error)
}

// ConfigurationError reports a backend that cannot be constructed, typically
// because credentials are missing.
type ConfigurationError struct {
	Backend string
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s backend: %s is required", e.Backend, e.Setting)
	}
	return fmt.Sprintf("%s backend: %s %s", e.Backend, e.Setting, e.Reason)
}

// ProviderError wraps a runtime failure of a configured backend.
type ProviderError struct {
	Backend string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Backend, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// EmptyResponse is substituted when a backend returns no text.
const EmptyResponse = "(empty model response)"
