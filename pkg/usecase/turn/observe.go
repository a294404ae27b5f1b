package turn

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/whippetlabs/whippet/pkg/model"
	"github.com/whippetlabs/whippet/pkg/parser"
)

// ObserveResponse feeds the downstream model's final reply back into the
// session state, so entities and lists the reply introduced are tracked
// alongside the engine's own result set.
func (u *UseCase) ObserveResponse(ctx context.Context, id model.SessionID, text string) error {
	unlock := u.lock(id)
	defer unlock()

	mgr, err := u.loadSession(ctx, id)
	if err != nil {
		return err
	}

	signals := parser.ParseEngineOutput(text, mgr.Turn())
	if len(signals.Entities) == 0 && len(signals.Lists) == 0 {
		return nil
	}

	for _, e := range signals.Entities {
		mgr.TrackEntity(e)
	}
	for _, list := range signals.Lists {
		mgr.TrackList(list)
	}

	if err := ctx.Err(); err != nil {
		return goerr.Wrap(err, "observation cancelled before persist")
	}
	return u.saveSession(ctx, id, mgr)
}

// Context returns the current reference-resolution block for a session
// without advancing the turn
func (u *UseCase) Context(ctx context.Context, id model.SessionID) (string, error) {
	unlock := u.lock(id)
	defer unlock()

	mgr, err := u.loadSession(ctx, id)
	if err != nil {
		return "", err
	}
	return mgr.Summarize(), nil
}
