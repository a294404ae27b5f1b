package turn

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/whippetlabs/whippet/pkg/model"
)

// Archive exports a session's full metadata history, superseded entities
// and all list snapshots included, to object storage for offline
// debugging.
func (u *UseCase) Archive(ctx context.Context, id model.SessionID) error {
	if u.storage == nil {
		return goerr.New("archive storage is not configured")
	}

	unlock := u.lock(id)
	defer unlock()

	mgr, err := u.loadSession(ctx, id)
	if err != nil {
		return err
	}

	w, err := u.storage.Put(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to open archive writer", goerr.V("session_id", id))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(mgr.State()); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write session archive", goerr.V("session_id", id))
	}

	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize session archive", goerr.V("session_id", id))
	}
	return nil
}
