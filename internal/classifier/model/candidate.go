package model

import "time"

// CandidateSource records where a candidate came from.
type CandidateSource string

const (
	SourceCache    CandidateSource = "cache"
	SourceCatalog  CandidateSource = "catalog"
	SourceFallback CandidateSource = "fallback"
)

// ModelCandidate names a remote model, ranked by its position in a preference list.
type ModelCandidate struct {
	ID     string          `json:"id"`
	Rank   int             `json:"rank"`
	Source CandidateSource `json:"source"`
}

// FailureKind classifies a failed invocation attempt.
type FailureKind string

const (
	KindNone             FailureKind = ""
	KindQuota            FailureKind = "quota"
	KindNotFoundModel    FailureKind = "not_found_model"
	KindNotFoundEndpoint FailureKind = "not_found_endpoint"
	KindOther            FailureKind = "other"
)

// AttributableToModel reports whether the failure says something about the
// model identifier itself, which invalidates a cached identifier.
func (k FailureKind) AttributableToModel() bool {
	return k == KindQuota || k == KindNotFoundModel
}

// Outcome is the coarse result of a single attempt.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeTransientFailure Outcome = "transient_failure"
	OutcomePermanentFailure Outcome = "permanent_failure"
)

// Attempt records one (candidate, endpoint variant) invocation.
type Attempt struct {
	Candidate string        `json:"model"`
	Variant   string        `json:"variant"`
	Outcome   Outcome       `json:"outcome"`
	Kind      FailureKind   `json:"kind,omitempty"`
	Status    int           `json:"status,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Duration  time.Duration `json:"-"`
}

// Failed reports whether the attempt did not succeed.
func (a Attempt) Failed() bool {
	return a.Outcome != OutcomeSuccess
}
