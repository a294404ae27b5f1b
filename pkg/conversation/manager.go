package conversation

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"github.com/whippetlabs/whippet/pkg/model"
)

var ErrIncompatibleBlob = goerr.New("incompatible conversation blob")

// DefaultRecencyWindow is how many turns back ResolveReference looks when
// matching aliases. Entities introduced earlier are kept for history but no
// longer resolve.
const DefaultRecencyWindow = 5

// Manager owns the metadata state of a single session: tracked entities,
// the correction log, enumerated-list snapshots and the turn counter. It is
// not safe for concurrent use; each session's turns are serialized by the
// caller, so one Manager is only ever touched by one goroutine at a time.
type Manager struct {
	state  *model.Conversation
	window int
}

// Option is a functional option for Manager
type Option func(*Manager)

// WithRecencyWindow overrides the alias-resolution window in turns
func WithRecencyWindow(turns int) Option {
	return func(m *Manager) {
		if turns > 0 {
			m.window = turns
		}
	}
}

// New creates a Manager with fresh state for the session
func New(id model.SessionID, opts ...Option) *Manager {
	m := &Manager{
		state:  model.NewConversation(id),
		window: DefaultRecencyWindow,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FromBlob restores a Manager from a serialized conversation blob
func FromBlob(data []byte, opts ...Option) (*Manager, error) {
	var state model.Conversation
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal conversation blob")
	}
	if state.Version > model.ConversationVersion {
		return nil, goerr.Wrap(ErrIncompatibleBlob, "blob version is newer than supported",
			goerr.V("version", state.Version))
	}
	state.Version = model.ConversationVersion

	m := &Manager{
		state:  &state,
		window: DefaultRecencyWindow,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Blob serializes the conversation state. FromBlob(Blob()) round-trips
// losslessly.
func (m *Manager) Blob() ([]byte, error) {
	data, err := json.Marshal(m.state)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal conversation state")
	}
	return data, nil
}

// State exposes the underlying conversation record for archiving and display
func (m *Manager) State() *model.Conversation {
	return m.state
}

// Turn returns the current turn number
func (m *Manager) Turn() int {
	return m.state.Turn
}

// IncrementTurn advances the turn counter by exactly one and returns the new
// value. Call once per inbound utterance, before any tracking for that turn.
func (m *Manager) IncrementTurn() int {
	m.state.Turn++
	m.touch()
	return m.state.Turn
}

// TrackEntity records a reference-worthy mention. The entity's own value is
// always added to its alias set so "the <name>" style references resolve.
func (m *Manager) TrackEntity(e *model.TrackedEntity) {
	if e == nil {
		return
	}
	if e.ID == "" {
		e.ID = model.NewEntityID()
	}
	if e.TurnIntroduced == 0 {
		e.TurnIntroduced = m.state.Turn
	}
	e.Aliases = normalizeAliases(append(e.Aliases, e.Value))
	m.state.Entities = append(m.state.Entities, e)
	m.touch()
}

// TrackCorrection appends to the correction log and supersedes the entity
// the original value referred to, if one is tracked. The superseded entity
// keeps its place in history; the successor inherits kind and aliases so
// pronoun references now resolve to the corrected value.
func (m *Manager) TrackCorrection(original, corrected, rawUtterance string) *model.TrackedEntity {
	m.state.Corrections = append(m.state.Corrections, &model.Correction{
		TurnNumber:     m.state.Turn,
		OriginalValue:  original,
		CorrectedValue: corrected,
		RawUtterance:   rawUtterance,
	})

	successor := &model.TrackedEntity{
		ID:             model.NewEntityID(),
		Kind:           model.EntityKindProduct,
		Value:          corrected,
		TurnIntroduced: m.state.Turn,
	}

	origTok := NormalizeToken(original)
	if prev := m.findCurrent(origTok, 0); prev != nil {
		successor.Kind = prev.Kind
		successor.Supersedes = prev.ID
		for _, a := range prev.Aliases {
			// The replaced value must not keep resolving to the successor
			if a == origTok {
				continue
			}
			successor.Aliases = append(successor.Aliases, a)
		}
	} else {
		successor.Aliases = []string{"it", "that", "this"}
	}
	successor.Aliases = normalizeAliases(append(successor.Aliases, corrected))

	m.state.Entities = append(m.state.Entities, successor)
	m.touch()
	return successor
}

// TrackList snapshots an enumerated list shown to the user. Empty input is
// ignored; single-item runs are filtered out upstream by the parser.
func (m *Manager) TrackList(items []model.ListItem) model.ListID {
	if len(items) == 0 {
		return ""
	}
	snap := &model.ListSnapshot{
		ListID:     model.NewListID(),
		TurnNumber: m.state.Turn,
		Items:      items,
	}
	m.state.Lists = append(m.state.Lists, snap)
	m.touch()
	return snap.ListID
}

// ResolveReference maps a token ("it", "the zf4") to the current entity it
// refers to. Pure with respect to state: repeated calls return the same
// result. Returns nil when nothing within the recency window matches; the
// caller must treat that as ambiguity, never fabricate an answer.
func (m *Manager) ResolveReference(token string) *model.TrackedEntity {
	tok := NormalizeToken(token)
	if tok == "" {
		return nil
	}
	cutoff := m.state.Turn - m.window + 1
	return m.findCurrent(tok, cutoff)
}

// ResolveListItem resolves a 1-based position against the most recent list
// snapshot only. Older lists never participate. Out-of-range positions and
// the no-list case return nil.
func (m *Manager) ResolveListItem(position int) *model.ListItem {
	latest := m.LatestList()
	if latest == nil {
		return nil
	}
	return latest.Item(position)
}

// LatestList returns the most recent list snapshot by turn, or nil
func (m *Manager) LatestList() *model.ListSnapshot {
	var latest *model.ListSnapshot
	for _, snap := range m.state.Lists {
		if latest == nil || snap.TurnNumber >= latest.TurnNumber {
			latest = snap
		}
	}
	return latest
}

// CurrentEntities returns non-superseded entities introduced within the
// recency window, oldest first. Order is deterministic: turn introduced,
// then tracking order.
func (m *Manager) CurrentEntities() []*model.TrackedEntity {
	cutoff := m.state.Turn - m.window + 1
	superseded := m.supersededIDs()

	var out []*model.TrackedEntity
	for _, e := range m.state.Entities {
		if e.TurnIntroduced < cutoff || superseded[e.ID] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// findCurrent returns the most recently introduced non-superseded entity
// matching the normalized token, ignoring entities before cutoff. Later
// tracking order breaks turn ties.
func (m *Manager) findCurrent(tok string, cutoff int) *model.TrackedEntity {
	superseded := m.supersededIDs()

	var best *model.TrackedEntity
	for _, e := range m.state.Entities {
		if e.TurnIntroduced < cutoff || superseded[e.ID] {
			continue
		}
		if !e.HasAlias(tok) {
			continue
		}
		if best == nil || e.TurnIntroduced >= best.TurnIntroduced {
			best = e
		}
	}
	return best
}

func (m *Manager) supersededIDs() map[model.EntityID]bool {
	ids := make(map[model.EntityID]bool)
	for _, e := range m.state.Entities {
		if e.Supersedes != "" {
			ids[e.Supersedes] = true
		}
	}
	return ids
}

func (m *Manager) touch() {
	m.state.UpdatedAt = time.Now()
}

// NormalizeToken lowercases a reference token, strips punctuation and
// collapses whitespace so alias matching is stable across phrasing.
func NormalizeToken(token string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(token) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func normalizeAliases(aliases []string) []string {
	seen := make(map[string]bool, len(aliases))
	out := make([]string, 0, len(aliases))
	for _, a := range aliases {
		tok := NormalizeToken(a)
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}
