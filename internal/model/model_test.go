package model

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestConfigurationError_Message(t *testing.T) {
	err := &ConfigurationError{Backend: "openai", Setting: "OPENAI_API_KEY"}
	if got := err.Error(); got != "openai backend: OPENAI_API_KEY is required" {
		t.Fatalf("unexpected message: %s", got)
	}
	err = &ConfigurationError{Backend: "pharmassist", Setting: "PHARMASSIST_PROVIDER", Reason: `"foo" is not supported`}
	if got := err.Error(); got != `pharmassist backend: PHARMASSIST_PROVIDER "foo" is not supported` {
		t.Fatalf("unexpected message: %s", got)
	}
}

func TestProviderError_Unwrap(t *testing.T) {
	wrapped := fmt.Errorf("gateway: %w", &ProviderError{Backend: "ollama", Err: io.ErrUnexpectedEOF})

	var pe *ProviderError
	if !errors.As(wrapped, &pe) {
		t.Fatal("expected ProviderError via errors.As")
	}
	if pe.Backend != "ollama" {
		t.Fatalf("unexpected backend: %s", pe.Backend)
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Fatal("expected cause to be reachable")
	}
}
