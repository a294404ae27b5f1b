package conversation

import (
	"fmt"
	"strings"

	"github.com/whippetlabs/whippet/pkg/model"
)

// MaxSummaryEntities bounds how many entities the summary block lists.
// When the recency window holds more, the most recent ones win.
const MaxSummaryEntities = 10

// Summarize renders the conversation state into the reference-resolution
// context block consumed by the downstream model. The output is
// deterministic for a given state: section order, entity order and alias
// order are all fixed, so identical states always produce identical blocks.
func (m *Manager) Summarize() string {
	var b strings.Builder

	if corrections := m.state.Corrections; len(corrections) > 0 {
		b.WriteString("## Corrections\n")
		for _, c := range corrections {
			fmt.Fprintf(&b, "- turn %d: %q -> %q\n", c.TurnNumber, c.OriginalValue, c.CorrectedValue)
		}
	}

	entities := m.CurrentEntities()
	if len(entities) > MaxSummaryEntities {
		entities = entities[len(entities)-MaxSummaryEntities:]
	}
	if len(entities) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Tracked references\n")
		for _, e := range entities {
			fmt.Fprintf(&b, "- %s %q (turn %d)", e.Kind, e.Value, e.TurnIntroduced)
			if aliases := referenceAliases(e); len(aliases) > 0 {
				fmt.Fprintf(&b, " referred to as: %s", strings.Join(aliases, ", "))
			}
			b.WriteString("\n")
		}
	}

	if latest := m.LatestList(); latest != nil {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## Current list (turn %d)\n", latest.TurnNumber)
		for _, item := range latest.Items {
			fmt.Fprintf(&b, "%d. %s\n", item.Position, item.Name)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// referenceAliases returns the entity's aliases excluding its own value,
// preserving tracking order so output stays stable.
func referenceAliases(e *model.TrackedEntity) []string {
	self := NormalizeToken(e.Value)
	var out []string
	for _, a := range e.Aliases {
		if a == self {
			continue
		}
		out = append(out, a)
	}
	return out
}
