package catalog

import (
	"strings"

	"github.com/mailsort/server/internal/classifier/model"
)

// Policy is the static preference order applied to catalog entries.
type Policy struct {
	// Preferred holds keyword patterns, most preferred first.
	Preferred []string
	// Excluded markers drop an entry even when it matches a preferred pattern.
	Excluded []string
	// Family marks entries acceptable when no preferred pattern matched.
	Family string
	// Fallback is used when the catalog yields nothing usable.
	Fallback string
}

// DefaultPolicy favours cheap, stable text models with generous free-tier quota.
func DefaultPolicy() Policy {
	return Policy{
		Preferred: []string{
			"gemini-2.0-flash-lite",
			"gemini-2.0-flash",
			"gemini-1.5-flash-8b",
			"gemini-1.5-flash",
			"gemini-2.5-flash-lite",
			"gemini-2.5-flash",
			"gemini-1.5-pro",
			"gemini-2.5-pro",
			"gemini-1.0-pro",
			"gemini-pro",
		},
		Excluded: []string{
			"experimental",
			"-exp",
			"preview",
			"tts",
			"image",
			"audio",
			"live",
			"thinking",
			"embedding",
			"vision",
			"learnlm",
		},
		Family:   "gemini",
		Fallback: "gemini-2.0-flash",
	}
}

func (p Policy) excluded(id string) bool {
	lower := strings.ToLower(id)
	for _, marker := range p.Excluded {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Rank orders catalog ids by the policy. The result is empty when nothing in
// ids is acceptable; callers substitute the fallback.
func (p Policy) Rank(ids []string) []model.ModelCandidate {
	usable := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !p.excluded(id) {
			usable = append(usable, id)
		}
	}

	ranked := make([]model.ModelCandidate, 0, len(usable))
	seen := make(map[string]bool, len(usable))
	add := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		ranked = append(ranked, model.ModelCandidate{ID: id, Rank: len(ranked), Source: model.SourceCatalog})
	}

	for _, pattern := range p.Preferred {
		for _, id := range usable {
			if strings.Contains(strings.ToLower(id), pattern) {
				add(id)
			}
		}
	}
	if len(ranked) > 0 || p.Family == "" {
		return ranked
	}
	for _, id := range usable {
		if strings.Contains(strings.ToLower(id), p.Family) {
			add(id)
		}
	}
	return ranked
}
