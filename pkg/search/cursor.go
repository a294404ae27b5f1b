package search

import (
	"encoding/base64"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/whippetlabs/whippet/pkg/model"
)

// cursor is the keyset pagination position: the (blendedScore, id) pair of
// the last item on the previous page. Using the sort key instead of an
// offset keeps pages stable while the index mutates underneath.
type cursor struct {
	Score float64 `json:"s"`
	ID    string  `json:"id"`
}

// encodeCursor renders the cursor after the given result
func encodeCursor(r *model.SearchResult) string {
	data, err := json.Marshal(cursor{Score: r.BlendedScore, ID: r.ID})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeCursor parses a cursor token. An empty token means the first page.
func decodeCursor(token string) (*cursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid cursor token")
	}
	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, goerr.Wrap(err, "invalid cursor payload")
	}
	return &c, nil
}

// after reports whether a result sorts strictly after the cursor position
// in (blendedScore desc, id asc) order
func (c *cursor) after(r *model.SearchResult) bool {
	if r.BlendedScore != c.Score {
		return r.BlendedScore < c.Score
	}
	return r.ID > c.ID
}
