package repository

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestContentDocID(t *testing.T) {
	// Canonical IDs are URLs; the derived doc ID must never contain a
	// path separator
	id := contentDocID("idx-1", "https://shop.example.com/product/road-runner")
	gt.True(t, !strings.Contains(id, "/"))

	// Deterministic, so repeated upserts hit the same document
	gt.Equal(t, id, contentDocID("idx-1", "https://shop.example.com/product/road-runner"))

	// Distinct per index and per canonical ID
	gt.True(t, id != contentDocID("idx-2", "https://shop.example.com/product/road-runner"))
	gt.True(t, id != contentDocID("idx-1", "https://shop.example.com/product/trail-mitts"))
}
