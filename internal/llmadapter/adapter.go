package llmadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/awnumar/memguard"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/stpasec/engine/internal/jsonrepair"
)

// Provider is the minimal contract a concrete backend must implement;
// see spec.md §6.5. Adapter does retries, deadline enforcement, and
// prompt capture uniformly over any Provider.
type Provider interface {
	Name() string
	Generate(ctx context.Context, messages []Message, opts Options) (string, error)
}

// StructuredProvider is implemented by backends with a native
// schema-constrained decoding mode. Adapter falls back to
// Generate+repair when a provider doesn't implement this, or when the
// constrained call itself fails.
type StructuredProvider interface {
	Provider
	GenerateStructured(ctx context.Context, messages []Message, schema Schema, opts Options) (raw []byte, err error)
}

// PromptSaver is the capture sidecar contract (spec.md C3). Adapter
// calls it after every attempt, success or failure, when configured.
type PromptSaver interface {
	Save(ctx context.Context, entry PromptCapture) error
}

// PromptCapture is one captured prompt/response pair.
type PromptCapture struct {
	Agent          string
	Step           int
	CognitiveStyle string
	Prompt         string
	Response       string
	Metadata       map[string]any
}

var (
	callsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stpasec_llm_calls_total",
		Help: "LLM adapter calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	retriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stpasec_llm_retries_total",
		Help: "LLM adapter retry attempts by provider and reason.",
	}, []string{"provider", "reason"})

	callDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stpasec_llm_call_duration_seconds",
		Help:    "Duration of a single LLM adapter call, across all attempts.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"provider"})
)

func init() {
	prometheus.MustRegister(callsTotal, retriesTotal, callDuration)
}

var tracer = otel.Tracer("stpasec/llmadapter")

// Adapter wraps a Provider with retry/backoff, deadline enforcement,
// optional prompt capture, and structured-output fallback.
type Adapter struct {
	provider   Provider
	saver      PromptSaver
	maxRetries int
	sem        *semaphore.Weighted
	logger     *slog.Logger
	credential *memguard.Enclave
}

// Option configures an Adapter at construction time.
type Option func(*Adapter)

// WithPromptSaver attaches a capture sidecar. Per spec.md C3, the
// enabled/disabled state is fixed at construction.
func WithPromptSaver(s PromptSaver) Option {
	return func(a *Adapter) { a.saver = s }
}

// WithMaxRetries overrides the default retry budget (3).
func WithMaxRetries(n int) Option {
	return func(a *Adapter) { a.maxRetries = n }
}

// WithConcurrency caps the number of in-flight calls across all callers
// of this Adapter (spec.md §5 backpressure, default 8).
func WithConcurrency(n int64) Option {
	return func(a *Adapter) { a.sem = semaphore.NewWeighted(n) }
}

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithCredential holds the provider API key in mlocked memory, matching
// the teacher's handling of streamed tokens in
// services/orchestrator/handlers/secure_accumulator.go. The key itself
// never appears in logs or prompt-capture metadata.
func WithCredential(apiKey string) Option {
	return func(a *Adapter) {
		if apiKey == "" {
			return
		}
		a.credential = memguard.NewEnclave([]byte(apiKey))
	}
}

// New builds an Adapter around a concrete Provider.
func New(provider Provider, opts ...Option) *Adapter {
	a := &Adapter{
		provider:   provider,
		maxRetries: 3,
		sem:        semaphore.NewWeighted(8),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Credential returns the guarded API key for use by providers that need
// to present it on each request, decrypting it only for the duration of
// the closure.
func (a *Adapter) Credential(use func(plaintext []byte) error) error {
	if a.credential == nil {
		return use(nil)
	}
	buf, err := a.credential.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()
	return use(buf.Bytes())
}

// backoffDelay implements the 50ms*2^k capped at 2s policy (spec.md §4.1).
func backoffDelay(attempt int) time.Duration {
	d := 50 * time.Millisecond * time.Duration(math.Pow(2, float64(attempt)))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	return d
}

// Generate sends messages to the provider, retrying on transport error
// up to maxRetries with exponential backoff. Temperature and the
// message list are preserved verbatim across retries.
func (a *Adapter) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	ctx, span := tracer.Start(ctx, "llmadapter.Generate", oteltrace.WithAttributes(
		attribute.String("provider", a.provider.Name()),
	))
	defer span.End()

	start := time.Now()
	defer func() { callDuration.WithLabelValues(a.provider.Name()).Observe(time.Since(start).Seconds()) }()

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return "", a.timeoutFailure(1, err)
	}
	defer a.sem.Release(1)

	deadline := opts.deadlineOrDefault(start)
	callCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		text, err := a.provider.Generate(callCtx, messages, opts)
		if err == nil {
			a.capture(ctx, opts, messages, text, nil)
			callsTotal.WithLabelValues(a.provider.Name(), "success").Inc()
			return text, nil
		}
		lastErr = err
		a.capture(ctx, opts, messages, "", err)

		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			span.SetStatus(codes.Error, "timeout")
			callsTotal.WithLabelValues(a.provider.Name(), "timeout").Inc()
			return "", a.timeoutFailure(attempt, err)
		}

		retriesTotal.WithLabelValues(a.provider.Name(), "transport").Inc()
		a.logger.Warn("llmadapter: generate attempt failed", "attempt", attempt, "error", err)

		if attempt < a.maxRetries {
			select {
			case <-time.After(backoffDelay(attempt)):
			case <-callCtx.Done():
				callsTotal.WithLabelValues(a.provider.Name(), "timeout").Inc()
				return "", a.timeoutFailure(attempt, callCtx.Err())
			}
		}
	}

	span.SetStatus(codes.Error, "transport exhausted")
	callsTotal.WithLabelValues(a.provider.Name(), "transport_failure").Inc()
	return "", &LLMFailure{Kind: FailureTransport, Attempts: a.maxRetries, LastError: lastErr}
}

func (a *Adapter) timeoutFailure(attempts int, cause error) *LLMFailure {
	return &LLMFailure{Kind: FailureTimeout, Attempts: attempts, LastError: cause}
}

// GenerateStructured attempts a schema-constrained call first (if the
// provider supports it); on unsupported/failed/invalid results it falls
// back to Generate + jsonrepair + Schema.Validate, retried up to
// maxRetries with the same exponential backoff Generate uses
// internally for transport errors (spec.md §4.1: "on transport error or
// on a JSON-parse failure after all repairs, retry up to N ... Retries
// re-send the same messages; temperature is preserved").
func (a *Adapter) GenerateStructured(ctx context.Context, messages []Message, schema Schema, opts Options) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "llmadapter.GenerateStructured", oteltrace.WithAttributes(
		attribute.String("provider", a.provider.Name()),
		attribute.String("schema", schema.Name),
	))
	defer span.End()

	if sp, ok := a.provider.(StructuredProvider); ok {
		raw, err := a.structuredAttempt(ctx, sp, messages, schema, opts)
		if err == nil {
			return raw, nil
		}
		a.logger.Warn("llmadapter: structured call failed, falling back to repair", "error", err)
		retriesTotal.WithLabelValues(a.provider.Name(), "schema_fallback").Inc()
	}

	var failure *LLMFailure
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		text, err := a.Generate(ctx, messages, opts)
		if err != nil {
			return nil, err
		}

		raw, ferr := a.repairAndValidate(text, schema)
		if ferr == nil {
			return raw, nil
		}
		ferr.Attempts = attempt
		failure = ferr

		retriesTotal.WithLabelValues(a.provider.Name(), string(ferr.Kind)).Inc()
		a.logger.Warn("llmadapter: structured fallback repair/validation failed", "attempt", attempt, "error", ferr)

		if attempt < a.maxRetries {
			select {
			case <-time.After(backoffDelay(attempt)):
			case <-ctx.Done():
				return nil, &LLMFailure{Kind: FailureTimeout, Attempts: attempt, LastError: ctx.Err()}
			}
		}
	}

	span.SetStatus(codes.Error, string(failure.Kind)+" exhausted")
	return nil, failure
}

// repairAndValidate runs one non-retried attempt at repairing text into
// schema-conformant JSON. Split out of GenerateStructured so the retry
// loop there can re-run it against a freshly generated response each
// attempt without duplicating the parse/marshal/validate sequence.
func (a *Adapter) repairAndValidate(text string, schema Schema) ([]byte, *LLMFailure) {
	v, err := jsonrepair.Parse(text)
	if err != nil {
		return nil, &LLMFailure{Kind: FailureParse, LastError: err}
	}
	raw, err := marshalJSON(v)
	if err != nil {
		return nil, &LLMFailure{Kind: FailureParse, LastError: err}
	}

	if schema.Validate != nil {
		if err := schema.Validate(raw); err != nil {
			return nil, &LLMFailure{Kind: FailureSchema, LastError: err}
		}
	}
	return raw, nil
}

func (a *Adapter) structuredAttempt(ctx context.Context, sp StructuredProvider, messages []Message, schema Schema, opts Options) ([]byte, error) {
	deadline := opts.deadlineOrDefault(time.Now())
	callCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	raw, err := sp.GenerateStructured(callCtx, messages, schema, opts)
	if err != nil {
		return nil, err
	}
	if schema.Validate != nil {
		if err := schema.Validate(raw); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func (a *Adapter) capture(ctx context.Context, opts Options, messages []Message, response string, genErr error) {
	if a.saver == nil {
		return
	}
	prompt := renderPrompt(messages)
	meta := map[string]any{"temperature": opts.Temperature}
	if genErr != nil {
		meta["error"] = genErr.Error()
	}
	entry := PromptCapture{
		Agent:          opts.Agent,
		Step:           opts.Step,
		CognitiveStyle: opts.CognitiveStyle,
		Prompt:         prompt,
		Response:       response,
		Metadata:       meta,
	}
	if err := a.saver.Save(ctx, entry); err != nil {
		a.logger.Warn("llmadapter: prompt capture failed", "error", err)
	}
}

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

func renderPrompt(messages []Message) string {
	var out string
	for _, m := range messages {
		out += string(m.Role) + ": " + m.Content + "\n"
	}
	return out
}
