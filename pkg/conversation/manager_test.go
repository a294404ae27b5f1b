package conversation_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/whippetlabs/whippet/pkg/conversation"
	"github.com/whippetlabs/whippet/pkg/model"
)

func newManager() *conversation.Manager {
	return conversation.New(model.NewSessionID())
}

func TestResolveReferenceByAlias(t *testing.T) {
	m := newManager()
	m.IncrementTurn()
	m.TrackEntity(&model.TrackedEntity{
		Kind:    model.EntityKindProduct,
		Value:   "Road Runner Gloves",
		Ref:     "https://shop.example.com/product/road-runner-gloves",
		Aliases: []string{"it", "that", "the gloves"},
	})

	e := m.ResolveReference("the gloves")
	gt.V(t, e).NotNil()
	gt.Equal(t, e.Value, "Road Runner Gloves")

	// The entity's own value resolves too, with punctuation and case ignored
	gt.V(t, m.ResolveReference("Road Runner Gloves!")).NotNil()
	gt.V(t, m.ResolveReference("IT")).NotNil()
}

func TestResolveReferenceIdempotent(t *testing.T) {
	m := newManager()
	m.IncrementTurn()
	m.TrackEntity(&model.TrackedEntity{
		Kind:    model.EntityKindProduct,
		Value:   "ZF5",
		Aliases: []string{"it"},
	})

	first := m.ResolveReference("it")
	gt.V(t, first).NotNil()
	for i := 0; i < 5; i++ {
		again := m.ResolveReference("it")
		gt.V(t, again).NotNil()
		gt.Equal(t, again.ID, first.ID)
	}
}

func TestResolveReferenceUnknownToken(t *testing.T) {
	m := newManager()
	m.IncrementTurn()
	gt.V(t, m.ResolveReference("something never mentioned")).Nil()
	gt.V(t, m.ResolveReference("")).Nil()
}

func TestRecencyPrecedence(t *testing.T) {
	m := newManager()

	m.IncrementTurn()
	m.TrackEntity(&model.TrackedEntity{
		Kind:    model.EntityKindProduct,
		Value:   "Old Gloves",
		Aliases: []string{"it", "the gloves"},
	})

	m.IncrementTurn()
	m.TrackEntity(&model.TrackedEntity{
		Kind:    model.EntityKindProduct,
		Value:   "New Gloves",
		Aliases: []string{"it", "the gloves"},
	})

	e := m.ResolveReference("the gloves")
	gt.V(t, e).NotNil()
	gt.Equal(t, e.Value, "New Gloves")
}

func TestRecencyWindowExpiry(t *testing.T) {
	m := conversation.New(model.NewSessionID(), conversation.WithRecencyWindow(5))

	m.IncrementTurn()
	m.TrackEntity(&model.TrackedEntity{
		Kind:    model.EntityKindProduct,
		Value:   "ZF5",
		Aliases: []string{"it"},
	})

	// Still inside the window at turn 5
	for i := 0; i < 4; i++ {
		m.IncrementTurn()
	}
	gt.V(t, m.ResolveReference("it")).NotNil()

	// Turn 6: the turn-1 entity falls outside the 5-turn window
	m.IncrementTurn()
	gt.V(t, m.ResolveReference("it")).Nil()
}

func TestCorrectionOverridesWithoutDeletion(t *testing.T) {
	m := newManager()
	m.IncrementTurn()
	m.TrackEntity(&model.TrackedEntity{
		Kind:    model.EntityKindProduct,
		Value:   "ZF5",
		Aliases: []string{"it", "that"},
	})

	m.IncrementTurn()
	successor := m.TrackCorrection("ZF5", "ZF4", "I meant ZF4 not ZF5")
	gt.V(t, successor).NotNil()

	// Pronoun resolution now yields the corrected value
	e := m.ResolveReference("it")
	gt.V(t, e).NotNil()
	gt.Equal(t, e.Value, "ZF4")

	// The corrected value must not resolve back to the old entity
	gt.V(t, m.ResolveReference("ZF5")).Nil()

	// The original entity stays in history with its value intact
	var original *model.TrackedEntity
	for _, candidate := range m.State().Entities {
		if candidate.ID == successor.Supersedes {
			original = candidate
		}
	}
	gt.V(t, original).NotNil()
	gt.Equal(t, original.Value, "ZF5")

	// And the correction log recorded the mapping
	gt.A(t, m.State().Corrections).Length(1)
	gt.Equal(t, m.State().Corrections[0].OriginalValue, "ZF5")
	gt.Equal(t, m.State().Corrections[0].CorrectedValue, "ZF4")
}

func TestCorrectionWithoutTrackedOriginal(t *testing.T) {
	m := newManager()
	m.IncrementTurn()

	successor := m.TrackCorrection("lgoves", "gloves", "sorry, gloves not lgoves")
	gt.V(t, successor).NotNil()
	gt.Equal(t, successor.Supersedes, model.EntityID(""))

	e := m.ResolveReference("it")
	gt.V(t, e).NotNil()
	gt.Equal(t, e.Value, "gloves")
}

func TestResolveListItemUsesMostRecentList(t *testing.T) {
	m := newManager()

	m.IncrementTurn()
	m.IncrementTurn()
	m.TrackList([]model.ListItem{
		{Position: 1, Name: "Alpha Jacket"},
		{Position: 2, Name: "Beta Jacket"},
	})

	for i := 0; i < 3; i++ {
		m.IncrementTurn()
	}
	m.TrackList([]model.ListItem{
		{Position: 1, Name: "Road Runner Gloves"},
		{Position: 2, Name: "Trail Mitts"},
		{Position: 3, Name: "Winter Liners"},
	})

	item := m.ResolveListItem(2)
	gt.V(t, item).NotNil()
	gt.Equal(t, item.Name, "Trail Mitts")

	// Out of range positions return nil rather than falling back to older lists
	gt.V(t, m.ResolveListItem(0)).Nil()
	gt.V(t, m.ResolveListItem(4)).Nil()
}

func TestResolveListItemNoList(t *testing.T) {
	m := newManager()
	m.IncrementTurn()
	gt.V(t, m.ResolveListItem(1)).Nil()
}

func TestBlobRoundTrip(t *testing.T) {
	m := newManager()
	m.IncrementTurn()
	m.TrackEntity(&model.TrackedEntity{
		Kind:       model.EntityKindProduct,
		Value:      "ZF5",
		Ref:        "https://shop.example.com/product/zf5",
		Aliases:    []string{"it"},
		Attributes: map[string]string{"price": "129.00"},
	})
	m.TrackList([]model.ListItem{
		{Position: 1, Name: "ZF5", Ref: "https://shop.example.com/product/zf5"},
		{Position: 2, Name: "ZF4", Ref: "https://shop.example.com/product/zf4"},
	})
	m.IncrementTurn()
	m.TrackCorrection("ZF5", "ZF4", "actually ZF4, not ZF5")

	blob, err := m.Blob()
	gt.NoError(t, err)

	restored, err := conversation.FromBlob(blob)
	gt.NoError(t, err)

	gt.Equal(t, restored.Turn(), m.Turn())
	gt.Equal(t, restored.State().SessionID, m.State().SessionID)
	gt.A(t, restored.State().Entities).Length(len(m.State().Entities))
	gt.A(t, restored.State().Corrections).Length(1)
	gt.A(t, restored.State().Lists).Length(1)

	// Resolution behaves identically on the restored state
	e := restored.ResolveReference("it")
	gt.V(t, e).NotNil()
	gt.Equal(t, e.Value, "ZF4")
	item := restored.ResolveListItem(2)
	gt.V(t, item).NotNil()
	gt.Equal(t, item.Name, "ZF4")
}

func TestFromBlobRejectsNewerVersion(t *testing.T) {
	blob := []byte(`{"v":99,"session_id":"s","turn":1}`)
	_, err := conversation.FromBlob(blob)
	gt.Error(t, err)
}

func TestFromBlobRejectsGarbage(t *testing.T) {
	_, err := conversation.FromBlob([]byte("not json"))
	gt.Error(t, err)
}
