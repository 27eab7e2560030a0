package invoke

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mailsort/server/internal/classifier/model"
	logx "github.com/mailsort/server/pkg/logger"
)

// BreakerConfig tunes the per-model quota breaker.
type BreakerConfig struct {
	// ConsecutiveQuota failures that open the breaker. Zero disables breaking.
	ConsecutiveQuota uint32
	// OpenFor is how long an open breaker rejects calls before probing again.
	OpenFor time.Duration
}

// DefaultBreakerConfig opens after three quota answers in a row for one minute.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{ConsecutiveQuota: 3, OpenFor: 60 * time.Second}
}

// breakerSet holds one circuit breaker per model identifier. Only quota
// failures count against a breaker; any other outcome is a success for it.
type breakerSet struct {
	cfg      BreakerConfig
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func newBreakerSet(cfg BreakerConfig) *breakerSet {
	return &breakerSet{cfg: cfg, breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func (s *breakerSet) get(id string) *gobreaker.CircuitBreaker {
	if s == nil || s.cfg.ConsecutiveQuota == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[id]; ok {
		return cb
	}
	threshold := s.cfg.ConsecutiveQuota
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        id,
		MaxRequests: 1,
		Timeout:     s.cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			kind, _, _ := Classify(err)
			return kind != model.KindQuota
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logx.Warn().Str("model", name).Str("from", from.String()).Str("to", to.String()).Msg("model quota breaker state changed")
		},
	})
	s.breakers[id] = cb
	return cb
}

// rejected reports whether err came from a breaker refusing the call.
func rejected(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}
