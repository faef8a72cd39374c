package llmadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerate_SucceedsOnFirstAttempt(t *testing.T) {
	stub := &stubProvider{responses: []stubResponse{{text: "hello"}}}
	a := New(stub, WithMaxRetries(3))

	text, err := a.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.NoError(t, err)
	require.Equal(t, "hello", text)
}

func TestGenerate_RetriesOnTransportErrorThenSucceeds(t *testing.T) {
	stub := &stubProvider{responses: []stubResponse{
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		{text: "recovered"},
	}}
	a := New(stub, WithMaxRetries(3))

	text, err := a.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.NoError(t, err)
	require.Equal(t, "recovered", text)
}

func TestGenerate_ExhaustsRetriesReturnsLLMFailure(t *testing.T) {
	stub := &stubProvider{responses: []stubResponse{
		{err: errors.New("boom")},
		{err: errors.New("boom")},
		{err: errors.New("boom")},
	}}
	a := New(stub, WithMaxRetries(3))

	_, err := a.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.Error(t, err)
	var failure *LLMFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, FailureTransport, failure.Kind)
	require.Equal(t, 3, failure.Attempts)
}

func TestGenerate_DeadlineExceededReturnsTimeoutFailure(t *testing.T) {
	// S5 — deadline=50ms, provider sleeps 200ms.
	stub := &stubProvider{delay: 200 * time.Millisecond, responses: []stubResponse{{text: "too slow"}}}
	a := New(stub, WithMaxRetries(3))

	_, err := a.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{
		Deadline: time.Now().Add(50 * time.Millisecond),
	})
	require.Error(t, err)
	var failure *LLMFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, FailureTimeout, failure.Kind)
}

func TestGenerateStructured_FallsBackToRepairWhenNoStructuredProvider(t *testing.T) {
	stub := &stubProvider{responses: []stubResponse{{text: "```json\n{\"a\": 1,}\n```"}}}
	a := New(stub, WithMaxRetries(3))

	raw, err := a.GenerateStructured(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Schema{Name: "test"}, Options{})
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(raw))
}

func TestGenerateStructured_ValidateRejectsBadShape(t *testing.T) {
	stub := &stubProvider{responses: []stubResponse{{text: `{"a": 1}`}}}
	a := New(stub, WithMaxRetries(3))

	_, err := a.GenerateStructured(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Schema{
		Name: "test",
		Validate: func(raw []byte) error {
			return errors.New("missing required field b")
		},
	}, Options{})
	require.Error(t, err)
	var failure *LLMFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, FailureSchema, failure.Kind)
	require.Equal(t, 3, failure.Attempts)
}

func TestGenerateStructured_RetriesOnParseFailureThenSucceeds(t *testing.T) {
	stub := &stubProvider{responses: []stubResponse{
		{text: "not json at all, sorry"},
		{text: `{"a": 1}`},
	}}
	a := New(stub, WithMaxRetries(3))

	raw, err := a.GenerateStructured(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Schema{Name: "test"}, Options{})
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(raw))
	require.Equal(t, 2, stub.calls)
}

func TestGenerateStructured_ExhaustsRetriesReturnsLLMFailureWithAttempts(t *testing.T) {
	stub := &stubProvider{responses: []stubResponse{{text: "not json at all, sorry"}}}
	a := New(stub, WithMaxRetries(3))

	_, err := a.GenerateStructured(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Schema{Name: "test"}, Options{})
	require.Error(t, err)
	var failure *LLMFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, FailureParse, failure.Kind)
	require.Equal(t, 3, failure.Attempts)
}

func TestBackoffDelay_CappedAtTwoSeconds(t *testing.T) {
	require.Equal(t, 100*time.Millisecond, backoffDelay(1))
	require.Equal(t, 2*time.Second, backoffDelay(10))
}

func TestWithCredential_CredentialReturnsStoredKey(t *testing.T) {
	stub := &stubProvider{responses: []stubResponse{{text: "ok"}}}
	a := New(stub, WithCredential("sk-secret-value"))

	var seen []byte
	err := a.Credential(func(plaintext []byte) error {
		seen = append([]byte(nil), plaintext...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "sk-secret-value", string(seen))
}
