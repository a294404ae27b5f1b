package model

import (
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrProviderUnavailable is returned when the commerce provider is
	// unreachable: the circuit is open or the call failed after retries.
	// Degraded search continues on the remaining sources.
	ErrProviderUnavailable = goerr.New("provider unavailable")
)

// SourceKind identifies which backend produced a search result
type SourceKind string

const (
	SourceProvider SourceKind = "provider"
	SourceFulltext SourceKind = "fulltext"
	SourceSemantic SourceKind = "semantic"
)

// ErrorKind is the coarse cause attached to an upstream failure. Callers use
// it to decide whether a "no result" outcome can be trusted.
type ErrorKind string

const (
	ErrorKindTimeout  ErrorKind = "timeout"
	ErrorKindAuth     ErrorKind = "auth"
	ErrorKindNotFound ErrorKind = "not_found"
	ErrorKindUnknown  ErrorKind = "unknown"
)

// Warning records a branch-local failure that did not abort the turn. A
// search response carrying warnings means its result set may be incomplete,
// which is distinct from a true empty result.
type Warning struct {
	Source  SourceKind `json:"source"`
	Kind    ErrorKind  `json:"kind"`
	Message string     `json:"message,omitempty"`
}

// SearchResult is one ranked hit. Ephemeral: produced fresh per query, never
// persisted.
type SearchResult struct {
	// ID is the canonical identifier used for cross-source deduplication
	// (product URL or page URL).
	ID     string     `json:"id"`
	Source SourceKind `json:"source"`

	Title string `json:"title"`
	URL   string `json:"url,omitempty"`

	// RawScore is the backend-native relevance. BlendedScore is the weighted
	// combination used for ranking; for provider results it is a fixed rank
	// bonus so they always sort first.
	RawScore     float64 `json:"raw_score"`
	BlendedScore float64 `json:"blended_score"`

	Payload map[string]any `json:"payload,omitempty"`
}
