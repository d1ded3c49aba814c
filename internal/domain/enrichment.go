package domain

// Stage is one step of the enrichment fallback cascade
type Stage int

const (
	StageExactSearch Stage = iota + 1
	StageEnhancedSearch
	StageImageSearch
)

func (s Stage) String() string {
	switch s {
	case StageExactSearch:
		return "exact_search"
	case StageEnhancedSearch:
		return "enhanced_search"
	case StageImageSearch:
		return "image_search"
	default:
		return "unknown"
	}
}

// StageStatus tags the outcome of a single stage
type StageStatus int

const (
	// StageSucceeded means the stage ran its search; Items may still be empty.
	StageSucceeded StageStatus = iota + 1
	// StageUnavailable means the stage had nothing to search with (no enhancement, no image).
	StageUnavailable
	// StageFailed means a remote call of the stage returned an error.
	StageFailed
)

func (s StageStatus) String() string {
	switch s {
	case StageSucceeded:
		return "succeeded"
	case StageUnavailable:
		return "unavailable"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StageOutcome records what one stage of the cascade produced
type StageOutcome struct {
	Stage  Stage
	Status StageStatus
	Query  string
	Items  []SoldItem
	Err    error
}

// FailureReason explains an unsuccessful enrichment
type FailureReason string

const (
	FailureNoMatches         FailureReason = "no_matches"
	FailureComputationFailed FailureReason = "computation_failed"
)

// EnrichmentResult is the outcome of one enrichment attempt for a listing.
// Failure is empty on success.
type EnrichmentResult struct {
	EstimatedValue  float64       `json:"avgSoldPrice"`
	SourcePrice     float64       `json:"fbPrice"`
	Profit          float64       `json:"profit"`
	ProfitMarginPct float64       `json:"profitMargin"`
	SampleSize      int           `json:"sampleSize"`
	MatchedQuery    string        `json:"searchQuery"`
	Failure         FailureReason `json:"error,omitempty"`

	// Cause is the error behind a failure, e.g. ErrQuotaExceeded when the cascade was aborted.
	Cause       error          `json:"-"`
	Stages      []StageOutcome `json:"-"`
	RemoteCalls int            `json:"-"`
}

// OK reports whether the enrichment produced profit metrics
func (r *EnrichmentResult) OK() bool {
	return r.Failure == ""
}

// Err returns the failure as an error, wrapping Cause when present
func (r *EnrichmentResult) Err() error {
	switch r.Failure {
	case "":
		return nil
	case FailureComputationFailed:
		if r.Cause != nil {
			return &EnrichmentError{Kind: ErrComputationFailed, Cause: r.Cause}
		}
		return ErrComputationFailed
	default:
		if r.Cause != nil {
			return &EnrichmentError{Kind: ErrNoMatches, Cause: r.Cause}
		}
		return ErrNoMatches
	}
}

// EnrichmentError pairs the display-level failure kind with the underlying cause,
// so errors.Is matches both (e.g. ErrNoMatches and ErrQuotaExceeded).
type EnrichmentError struct {
	Kind  error
	Cause error
}

func (e *EnrichmentError) Error() string {
	return e.Kind.Error() + ": " + e.Cause.Error()
}

func (e *EnrichmentError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}
