package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mailsort/server/internal/classifier/catalog"
	"github.com/mailsort/server/internal/classifier/extract"
	"github.com/mailsort/server/internal/classifier/invoke"
	"github.com/mailsort/server/internal/classifier/model"
	"github.com/mailsort/server/internal/classifier/observers"
	"github.com/mailsort/server/internal/classifier/prompts"
	errx "github.com/mailsort/server/internal/core/error"
	logx "github.com/mailsort/server/pkg/logger"
)

const (
	resolveKey     = "catalog"
	resolveTimeout = 30 * time.Second
)

// Resolver produces ranked candidates from the provider catalog.
type Resolver interface {
	Resolve(ctx context.Context) catalog.Resolution
}

// Invoker runs a prompt against ranked candidates.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, candidates []model.ModelCandidate) (*invoke.Result, error)
}

type requestIDKey struct{}

// WithRequestID tags ctx so session logs carry the caller's request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// Classifier runs classification sessions. It owns the active model slot.
type Classifier struct {
	slot      model.ModelSlot
	resolver  Resolver
	engine    Invoker
	callbacks einocb.Handler
	maxRunes  int
	now       func() time.Time
	group     singleflight.Group
}

type Option func(*Classifier)

// WithCallbacks attaches eino callbacks to prompt rendering.
func WithCallbacks(h einocb.Handler) Option {
	return func(c *Classifier) { c.callbacks = h }
}

// WithMaxRunes overrides the email truncation limit.
func WithMaxRunes(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxRunes = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

func New(slot model.ModelSlot, resolver Resolver, engine Invoker, opts ...Option) *Classifier {
	c := &Classifier{
		slot:     slot,
		resolver: resolver,
		engine:   engine,
		maxRunes: model.MaxEmailRunes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// trail accumulates what a session saw, for the error body and logs.
type trail struct {
	log      *zerolog.Logger
	attempts []model.Attempt
	warnings []string
}

func (t *trail) warn(msg string, err error) {
	t.log.Warn().Err(err).Msg(msg)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	t.warnings = append(t.warnings, msg)
}

func (t *trail) fail(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause, Attempts: t.attempts, Warnings: t.warnings}
}

// Classify turns email text into a validated classification envelope.
func (c *Classifier) Classify(ctx context.Context, in model.ClassifyInput) (*model.ClassifyEnvelope, error) {
	id, _ := ctx.Value(requestIDKey{}).(string)
	if id == "" {
		id = uuid.NewString()
	}
	t := &trail{log: logx.With(id)}

	if strings.TrimSpace(in.EmailContent) == "" {
		return nil, errx.BadRequest(t.fail(KindInvalidInput, ErrEmptyContent), "emailContent must not be empty")
	}
	if n := utf8.RuneCountInString(in.EmailContent); n > c.maxRunes {
		in.EmailContent = string([]rune(in.EmailContent)[:c.maxRunes])
		t.warn(fmt.Sprintf("email content truncated from %d to %d characters", n, c.maxRunes), nil)
	}

	prompt, err := prompts.RenderClassify(observers.WithPrompt(ctx, "classify_prompt", c.callbacks), in)
	if err != nil {
		t.log.Error().Err(err).Msg("Error rendering classify prompt")
		return nil, errx.Internal(t.fail(KindMisconfigured, err), "")
	}

	res, err := c.invoke(ctx, t, prompt)
	if err != nil {
		return nil, c.invocationError(t, err)
	}
	c.logUsage(t, res)

	result, err := extract.Extract(res.Text)
	if err != nil {
		t.log.Error().Err(err).Str("model", res.Model).Msg("Error extracting classification")
		return nil, errx.Internal(t.fail(KindInvalidModelOutput, err), "model returned an invalid classification").
			WithCode(errx.CodeInvalidModelOutput)
	}

	t.log.Info().Str("model", res.Model).Str("category", result.Category).Int("attempts", len(t.attempts)).Msg("email classified")
	return model.NewEnvelope(result, res.Model, c.now()), nil
}

// invoke tries the cached model alone first and consults the catalog only
// when that fails or nothing is cached.
func (c *Classifier) invoke(ctx context.Context, t *trail, prompt string) (*invoke.Result, error) {
	cached, ok, err := c.slot.Get(ctx)
	if err != nil {
		t.warn("active model slot unavailable", err)
		ok = false
	}

	var cachedErr error
	if ok {
		res, err := c.engine.Invoke(ctx, prompt, []model.ModelCandidate{{ID: cached, Source: model.SourceCache}})
		if err == nil {
			return c.succeed(ctx, t, res), nil
		}
		var exhausted *invoke.ExhaustedError
		if !errors.As(err, &exhausted) {
			return nil, err
		}
		t.attempts = append(t.attempts, exhausted.Attempts...)
		if exhausted.LastKind.AttributableToModel() {
			c.clear(ctx, t, cached)
		}
		cachedErr = err
		t.log.Info().Str("model", cached).Str("kind", string(exhausted.LastKind)).Msg("cached model failed, resolving catalog")
	}

	resolution, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if resolution.Warning != nil {
		t.warn("model catalog degraded", resolution.Warning)
	}

	candidates := make([]model.ModelCandidate, 0, len(resolution.Candidates))
	for _, cand := range resolution.Candidates {
		if ok && cand.ID == cached {
			continue
		}
		candidates = append(candidates, cand)
	}
	if len(candidates) == 0 && cachedErr != nil {
		return nil, cachedErr
	}

	res, err := c.engine.Invoke(ctx, prompt, candidates)
	if err == nil {
		return c.succeed(ctx, t, res), nil
	}
	var exhausted *invoke.ExhaustedError
	if !errors.As(err, &exhausted) {
		return nil, err
	}
	t.attempts = append(t.attempts, exhausted.Attempts...)
	if exhausted.LastKind.AttributableToModel() {
		if len(exhausted.Attempts) > 0 {
			c.clear(ctx, t, exhausted.Attempts[len(exhausted.Attempts)-1].Candidate)
		}
		if ok {
			c.clear(ctx, t, cached)
		}
	}
	// report the whole session, cached attempt included
	merged := *exhausted
	merged.Attempts = t.attempts
	return nil, &merged
}

func (c *Classifier) succeed(ctx context.Context, t *trail, res *invoke.Result) *invoke.Result {
	t.attempts = append(t.attempts, res.Attempts...)
	if err := c.slot.Set(ctx, res.Model); err != nil {
		t.warn("could not record active model", err)
	}
	return res
}

func (c *Classifier) clear(ctx context.Context, t *trail, id string) {
	cleared, err := c.slot.CompareAndClear(ctx, id)
	if err != nil {
		t.warn("could not clear active model", err)
		return
	}
	if cleared {
		t.log.Info().Str("model", id).Msg("active model cleared")
	}
}

// resolve coalesces concurrent catalog queries into one. The shared query
// outlives any single caller; a caller whose ctx ends stops waiting on it.
func (c *Classifier) resolve(ctx context.Context) (catalog.Resolution, error) {
	ch := c.group.DoChan(resolveKey, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		return c.resolver.Resolve(rctx), nil
	})
	select {
	case <-ctx.Done():
		return catalog.Resolution{}, ctx.Err()
	case r := <-ch:
		return r.Val.(catalog.Resolution), nil
	}
}

func (c *Classifier) invocationError(t *trail, err error) error {
	var exhausted *invoke.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		t.log.Error().Err(err).Int("attempts", len(t.attempts)).Msg("Error invoking model")
		fail := t.fail(KindUpstreamUnavailable, err)
		if exhausted.LastKind == model.KindQuota {
			return errx.TooManyRequests(fail, "model quota exhausted, try again later").
				WithCode(errx.CodeUpstreamQuota)
		}
		return errx.Internal(fail, "no model could classify the email").
			WithCode(errx.CodeUpstreamUnavailable)
	case errors.Is(err, invoke.ErrMissingCredential):
		t.log.Error().Err(err).Msg("Error invoking model")
		return errx.Internal(t.fail(KindMisconfigured, err), "provider credential not configured").
			WithCode(errx.CodeConfig)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		t.log.Warn().Err(err).Msg("classification aborted")
		return errx.New(t.fail(KindAborted, err), http.StatusInternalServerError, "classification aborted")
	default:
		t.log.Error().Err(err).Msg("Error invoking model")
		return errx.Internal(t.fail(KindUpstreamUnavailable, err), "")
	}
}

func (c *Classifier) logUsage(t *trail, res *invoke.Result) {
	if res.Usage == nil {
		return
	}
	inC, outC, totalC := model.ComputeCost(res.Usage, model.ResolvePricing(res.Model))
	t.log.Debug().
		Str("model", res.Model).
		Str("variant", res.Variant).
		Int("prompt_tokens", res.Usage.PromptTokens).
		Int("completion_tokens", res.Usage.CompletionTokens).
		Int("total_tokens", res.Usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}
