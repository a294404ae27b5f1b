package model

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidEntityKind = goerr.New("invalid entity kind")

type EntityID string

// NewEntityID generates a new unique EntityID
func NewEntityID() EntityID {
	return EntityID(uuid.New().String())
}

type EntityKind string

const (
	EntityKindProduct  EntityKind = "product"
	EntityKindOrder    EntityKind = "order"
	EntityKindCategory EntityKind = "category"
)

// Validate checks if the entity kind is valid
func (k EntityKind) Validate() error {
	switch k {
	case EntityKindProduct, EntityKindOrder, EntityKindCategory:
		return nil
	default:
		return goerr.Wrap(ErrInvalidEntityKind, "unknown kind", goerr.V("kind", k))
	}
}

// TrackedEntity is a reference-worthy mention extracted from engine output.
// A correction never deletes an entity: it appends a new version carrying the
// same alias set with Supersedes pointing at the replaced one, so resolution
// finds the newest version while history stays intact for audit.
type TrackedEntity struct {
	ID   EntityID   `json:"id"`
	Kind EntityKind `json:"kind"`

	// Value is the display name ("Road Runner Gloves"), Ref the canonical
	// reference behind it (product URL, order number, category slug).
	Value string `json:"value"`
	Ref   string `json:"ref,omitempty"`

	Aliases        []string `json:"aliases"`
	TurnIntroduced int      `json:"turn_introduced"`
	Supersedes     EntityID `json:"supersedes,omitempty"`

	Attributes map[string]string `json:"attributes,omitempty"`
}

// HasAlias reports whether the normalized token is in the entity's alias set.
// Tokens must already be normalized by the caller.
func (e *TrackedEntity) HasAlias(token string) bool {
	for _, a := range e.Aliases {
		if a == token {
			return true
		}
	}
	return false
}

// Correction records one user correction. The log is append-only; entries are
// never mutated after the turn that produced them.
type Correction struct {
	TurnNumber     int    `json:"turn_number"`
	OriginalValue  string `json:"original_value"`
	CorrectedValue string `json:"corrected_value"`
	RawUtterance   string `json:"raw_utterance"`
}

type ListID string

// NewListID generates a new unique ListID
func NewListID() ListID {
	return ListID(uuid.New().String())
}

// ListItem is one positional entry of an enumerated list shown to the user
type ListItem struct {
	Position int    `json:"position"` // 1-based
	Name     string `json:"name"`
	Ref      string `json:"ref,omitempty"`
}

// ListSnapshot captures an enumerated list the engine presented. Positional
// references ("the second one") resolve against the most recent snapshot by
// TurnNumber only; older snapshots are retained for debugging.
type ListSnapshot struct {
	ListID     ListID     `json:"list_id"`
	TurnNumber int        `json:"turn_number"`
	Items      []ListItem `json:"items"`
}

// Item returns the 1-based item at position n, or nil when out of range
func (s *ListSnapshot) Item(n int) *ListItem {
	if n < 1 || n > len(s.Items) {
		return nil
	}
	return &s.Items[n-1]
}
