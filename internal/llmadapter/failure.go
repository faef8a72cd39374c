package llmadapter

import (
	"context"
	"fmt"
)

// FailureKind classifies a terminal LLMFailure (spec.md §4.1, §7).
type FailureKind string

const (
	FailureTransport FailureKind = "transport"
	FailureParse     FailureKind = "parse"
	FailureSchema    FailureKind = "schema"
	FailureTimeout   FailureKind = "timeout"
)

// LLMFailure is the terminal error surfaced once retries are exhausted
// or a deadline expires mid-flight.
type LLMFailure struct {
	Kind      FailureKind
	Attempts  int
	LastError error
}

func (f *LLMFailure) Error() string {
	return fmt.Sprintf("llmadapter: %s failure after %d attempt(s): %v", f.Kind, f.Attempts, f.LastError)
}

func (f *LLMFailure) Unwrap() error { return f.LastError }

// ProviderAuthError is returned by Verify when the configured provider
// rejects a minimal call at startup (spec.md §7: "returned from model
// verification call. Fatal at startup").
type ProviderAuthError struct {
	Provider string
	Cause    error
}

func (e *ProviderAuthError) Error() string {
	return fmt.Sprintf("llmadapter: %s: provider verification failed: %v", e.Provider, e.Cause)
}

func (e *ProviderAuthError) Unwrap() error { return e.Cause }

// Verify issues one minimal Generate call against provider to confirm
// the configured credentials and base URL actually work, the way the
// CLI's `analyze` command checks a model before spending a whole run
// on it. A failure here is always a ProviderAuthError, regardless of
// the provider's own error shape.
func Verify(ctx context.Context, provider Provider) error {
	_, err := provider.Generate(ctx, []Message{{Role: RoleUser, Content: "ping"}}, Options{MaxTokens: 8})
	if err != nil {
		return &ProviderAuthError{Provider: provider.Name(), Cause: err}
	}
	return nil
}
