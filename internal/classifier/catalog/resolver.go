package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/mailsort/server/internal/classifier/model"
	logx "github.com/mailsort/server/pkg/logger"
)

// ErrCatalogUnavailable wraps any failure to obtain a usable catalog.
var ErrCatalogUnavailable = errors.New("model catalog unavailable")

// GenerateContentAction is the capability a candidate must advertise.
const GenerateContentAction = "generateContent"

// Entry is one model listed by the provider catalog.
type Entry struct {
	ID      string
	Actions []string
}

// Lister queries the provider catalog. Implementations return every page.
type Lister interface {
	ListModels(ctx context.Context) ([]Entry, error)
}

// Resolution is the outcome of one catalog resolution.
type Resolution struct {
	Candidates []model.ModelCandidate
	// Degraded is set when the catalog could not be used and Candidates holds
	// only the fallback.
	Degraded bool
	Warning  error
}

// Resolver turns the provider catalog into a ranked candidate list.
type Resolver struct {
	lister Lister
	policy Policy
}

func NewResolver(lister Lister, policy Policy) *Resolver {
	return &Resolver{lister: lister, policy: policy}
}

// Fallback returns the candidate used when nothing better is known.
func (r *Resolver) Fallback() model.ModelCandidate {
	return model.ModelCandidate{ID: r.policy.Fallback, Source: model.SourceFallback}
}

// Resolve performs one catalog query and ranks the result. It never fails:
// catalog errors degrade to the fallback candidate with a warning.
func (r *Resolver) Resolve(ctx context.Context) Resolution {
	entries, err := r.lister.ListModels(ctx)
	if err != nil {
		warn := fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		logx.Warn().Err(err).Str("fallback", r.policy.Fallback).Msg("model catalog query failed, using fallback model")
		return r.degraded(warn)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if supports(e.Actions, GenerateContentAction) {
			ids = append(ids, e.ID)
		}
	}
	if len(ids) == 0 {
		warn := fmt.Errorf("%w: no model supports %s", ErrCatalogUnavailable, GenerateContentAction)
		logx.Warn().Int("listed", len(entries)).Str("fallback", r.policy.Fallback).Msg("model catalog is empty, using fallback model")
		return r.degraded(warn)
	}

	ranked := r.policy.Rank(ids)
	if len(ranked) == 0 {
		logx.Info().Int("listed", len(ids)).Str("fallback", r.policy.Fallback).Msg("no catalog model matched the preference policy")
		return Resolution{Candidates: []model.ModelCandidate{r.Fallback()}}
	}

	logx.Debug().Int("candidates", len(ranked)).Str("top", ranked[0].ID).Msg("model catalog resolved")
	return Resolution{Candidates: ranked}
}

func (r *Resolver) degraded(warn error) Resolution {
	return Resolution{
		Candidates: []model.ModelCandidate{r.Fallback()},
		Degraded:   true,
		Warning:    warn,
	}
}

func supports(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}
