package invoke

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/mailsort/server/internal/classifier/model"
	logx "github.com/mailsort/server/pkg/logger"
)

var (
	// ErrAllCandidatesExhausted is matched by every *ExhaustedError.
	ErrAllCandidatesExhausted = errors.New("all model candidates exhausted")
	// ErrMissingCredential is returned when no provider key was configured.
	ErrMissingCredential = errors.New("provider credential not configured")
)

// Request is a single generation call against one model and API version.
type Request struct {
	Model   string
	Variant string
	Prompt  string
}

// Response is the raw reply of a generation call.
type Response struct {
	Text  string
	Usage *schema.TokenUsage
}

// Generator performs one generation call.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Result is a successful invocation.
type Result struct {
	Text     string
	Model    string
	Variant  string
	Usage    *schema.TokenUsage
	Attempts []model.Attempt
}

// ExhaustedError reports that no candidate produced a reply.
type ExhaustedError struct {
	LastKind   model.FailureKind
	LastStatus int
	LastDetail string
	Attempts   []model.Attempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: last failure %s: %s", ErrAllCandidatesExhausted, len(e.Attempts), e.LastKind, e.LastDetail)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllCandidatesExhausted
}

// Engine invokes a prompt against ranked candidates, one at a time.
type Engine struct {
	gen      Generator
	variants []string
	timeout  time.Duration
	breakers *breakerSet
}

type Option func(*Engine)

// WithVariants overrides the API versions tried per candidate, primary first.
func WithVariants(variants ...string) Option {
	return func(e *Engine) {
		if len(variants) > 0 {
			e.variants = variants
		}
	}
}

// WithAttemptTimeout bounds each individual attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithBreaker configures the per-model quota breaker.
func WithBreaker(cfg BreakerConfig) Option {
	return func(e *Engine) {
		e.breakers = newBreakerSet(cfg)
	}
}

func NewEngine(gen Generator, opts ...Option) *Engine {
	e := &Engine{
		gen:      gen,
		variants: model.APIVersions(),
		timeout:  model.AttemptTimeout,
		breakers: newBreakerSet(DefaultBreakerConfig()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Invoke tries candidates in order. A candidate is retried on the next API
// version only when the endpoint itself was not found; every other failure
// moves on to the next candidate.
func (e *Engine) Invoke(ctx context.Context, prompt string, candidates []model.ModelCandidate) (*Result, error) {
	attempts := make([]model.Attempt, 0, len(candidates)*len(e.variants))
	last := model.Attempt{Kind: model.KindOther, Detail: "no candidates"}

	for _, c := range candidates {
		for vi, variant := range e.variants {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			att, resp, err := e.attempt(ctx, c.ID, variant, prompt)
			if err == nil {
				attempts = append(attempts, att)
				logx.Debug().Str("model", c.ID).Str("variant", variant).Dur("took", att.Duration).Int("attempts", len(attempts)).Msg("model invocation succeeded")
				return &Result{Text: resp.Text, Model: c.ID, Variant: variant, Usage: resp.Usage, Attempts: attempts}, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, ErrMissingCredential) {
				return nil, err
			}

			lastVariant := vi == len(e.variants)-1
			if att.Kind == model.KindNotFoundEndpoint && lastVariant {
				// unknown on every endpoint version
				att.Kind = model.KindNotFoundModel
				att.Outcome = model.OutcomePermanentFailure
			}
			attempts = append(attempts, att)
			last = att

			logx.Warn().Str("model", c.ID).Str("variant", variant).Str("kind", string(att.Kind)).Int("status", att.Status).Str("detail", att.Detail).Msg("model invocation failed")

			if att.Kind != model.KindNotFoundEndpoint {
				break
			}
		}
	}

	return nil, &ExhaustedError{
		LastKind:   last.Kind,
		LastStatus: last.Status,
		LastDetail: last.Detail,
		Attempts:   attempts,
	}
}

func (e *Engine) attempt(ctx context.Context, id, variant, prompt string) (model.Attempt, *Response, error) {
	att := model.Attempt{Candidate: id, Variant: variant}
	start := time.Now()

	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	call := func() (*Response, error) {
		return e.gen.Generate(attemptCtx, Request{Model: id, Variant: variant, Prompt: prompt})
	}

	var (
		resp *Response
		err  error
	)
	if cb := e.breakers.get(id); cb != nil {
		var out interface{}
		out, err = cb.Execute(func() (interface{}, error) {
			return call()
		})
		if err == nil {
			resp, _ = out.(*Response)
		}
	} else {
		resp, err = call()
	}
	att.Duration = time.Since(start)

	if err == nil && resp == nil {
		err = errors.New("empty response from generator")
	}
	if err == nil {
		att.Outcome = model.OutcomeSuccess
		return att, resp, nil
	}

	switch {
	case rejected(err):
		att.Kind = model.KindQuota
		att.Detail = "quota breaker open: " + err.Error()
	case attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		att.Kind = model.KindOther
		att.Detail = fmt.Sprintf("attempt timed out after %s", e.timeout)
	default:
		att.Kind, att.Status, att.Detail = Classify(err)
	}
	att.Outcome = outcomeOf(att.Kind, att.Status)
	return att, nil, err
}
