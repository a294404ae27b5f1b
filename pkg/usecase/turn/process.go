package turn

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/whippetlabs/whippet/pkg/conversation"
	"github.com/whippetlabs/whippet/pkg/model"
	"github.com/whippetlabs/whippet/pkg/parser"
	"github.com/whippetlabs/whippet/pkg/search"
	"github.com/whippetlabs/whippet/pkg/utils/logging"
)

// ProcessInput is one inbound utterance
type ProcessInput struct {
	SessionID model.SessionID
	Domain    string
	Utterance string
	Filters   search.Filters
	Cursor    string
	Limit     int
}

// Output is what the downstream prompt-building layer consumes
type Output struct {
	// ContextBlock is the reference-resolution summary for the LLM prompt
	ContextBlock string

	// ResolvedQuery is the utterance after pronoun and list-position
	// substitution; equal to the utterance when nothing resolved
	ResolvedQuery string

	// ResultsBlock is the canonical linked-markdown rendering of Results,
	// in the structure the parser tracks turn over turn
	ResultsBlock string

	Results    []*model.SearchResult
	HasMore    bool
	NextCursor string
	Warnings   []model.Warning
	Turn       int
}

// ProcessTurn runs one full turn: parse the utterance against session
// state, resolve references, search, observe the outgoing result set, and
// persist the updated state. Turns for the same session are serialized;
// a cancelled turn does not persist state.
func (u *UseCase) ProcessTurn(ctx context.Context, input ProcessInput) (*Output, error) {
	unlock := u.lock(input.SessionID)
	defer unlock()

	mgr, err := u.loadSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	turnNo := mgr.IncrementTurn()
	logger := logging.From(ctx).With("session_id", input.SessionID, "turn", turnNo)

	signals := parser.ParseUserMessage(input.Utterance, turnNo)
	for _, c := range signals.Corrections {
		mgr.TrackCorrection(c.OriginalValue, c.CorrectedValue, c.RawUtterance)
		logger.Debug("tracked correction", "original", c.OriginalValue, "corrected", c.CorrectedValue)
	}

	query := u.resolveQuery(mgr, input.Utterance, signals)

	resp, err := u.orchestrator.Search(ctx, search.Request{
		Domain:    input.Domain,
		SessionID: input.SessionID,
		Query:     query,
		Filters:   input.Filters,
		Cursor:    input.Cursor,
		Limit:     input.Limit,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search", goerr.V("session_id", input.SessionID))
	}

	out := &Output{
		ResolvedQuery: query,
		Results:       resp.Results,
		HasMore:       resp.HasMore,
		NextCursor:    resp.NextCursor,
		Warnings:      resp.Warnings,
		Turn:          turnNo,
	}
	out.ResultsBlock = RenderResults(resp.Results)

	// Scan the outgoing result set so next turn's "the second one" and
	// "it" resolve against what the user is about to see
	observed := parser.ParseEngineOutput(out.ResultsBlock, turnNo)
	for _, e := range observed.Entities {
		mgr.TrackEntity(e)
	}
	for _, list := range observed.Lists {
		mgr.TrackList(list)
	}

	out.ContextBlock = mgr.Summarize()

	// A cancelled turn must not mutate persisted state
	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "turn cancelled before persist")
	}
	if err := u.saveSession(ctx, input.SessionID, mgr); err != nil {
		return nil, err
	}

	return out, nil
}

// resolveQuery substitutes tracked references into the utterance: a list
// position reference becomes the item name, and pronouns become the value
// of the entity they resolve to. Unresolvable references leave the
// utterance untouched; the caller decides whether to ask for clarification.
func (u *UseCase) resolveQuery(mgr *conversation.Manager, utterance string, signals parser.UserSignals) string {
	// The latest correction is the strongest signal for what the user is
	// actually after
	if n := len(signals.Corrections); n > 0 {
		return signals.Corrections[n-1].CorrectedValue
	}

	if signals.ListPosition > 0 {
		if item := mgr.ResolveListItem(signals.ListPosition); item != nil {
			return item.Name
		}
		// Out-of-range reference: fall through with the raw utterance
	}

	return substitutePronouns(mgr, utterance)
}

// pronounTokens are the substitution candidates, longest first so "this
// one" wins over "this"
var pronounTokens = []string{"this one", "that one", "it", "that", "this"}

func substitutePronouns(mgr *conversation.Manager, utterance string) string {
	for _, tok := range pronounTokens {
		idx := indexOfWord(utterance, tok)
		if idx < 0 {
			continue
		}
		e := mgr.ResolveReference(tok)
		if e == nil {
			e = mgr.ResolveReference("it")
		}
		if e == nil {
			continue
		}
		return utterance[:idx] + e.Value + utterance[idx+len(tok):]
	}
	return utterance
}

// indexOfWord finds tok in s at word boundaries, ASCII
// case-insensitively, or -1. Matching runs on the original string, never
// a lowered copy: Unicode case mappings can change byte length and would
// shift the offset used for substitution.
func indexOfWord(s, tok string) int {
	for idx := 0; idx+len(tok) <= len(s); idx++ {
		if !equalFoldASCII(s[idx:idx+len(tok)], tok) {
			continue
		}
		end := idx + len(tok)
		leftOK := idx == 0 || !isWordByte(s[idx-1])
		rightOK := end == len(s) || !isWordByte(s[end])
		if leftOK && rightOK {
			return idx
		}
	}
	return -1
}

// equalFoldASCII compares equal-length strings ignoring ASCII letter
// case. Non-ASCII bytes must match exactly.
func equalFoldASCII(a, b string) bool {
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (u *UseCase) loadSession(ctx context.Context, id model.SessionID) (*conversation.Manager, error) {
	blob, err := u.store.GetBlob(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load session", goerr.V("session_id", id))
	}
	if blob == nil {
		return conversation.New(id, conversation.WithRecencyWindow(u.window)), nil
	}

	mgr, err := conversation.FromBlob(blob, conversation.WithRecencyWindow(u.window))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to restore session state", goerr.V("session_id", id))
	}
	return mgr, nil
}

func (u *UseCase) saveSession(ctx context.Context, id model.SessionID, mgr *conversation.Manager) error {
	blob, err := mgr.Blob()
	if err != nil {
		return err
	}
	if err := u.store.PutBlob(ctx, id, blob); err != nil {
		return goerr.Wrap(err, "failed to persist session", goerr.V("session_id", id))
	}
	return nil
}
