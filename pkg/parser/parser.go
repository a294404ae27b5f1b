// Package parser extracts trackable signals from chat traffic: corrections
// and positional references from user utterances, linked entities and
// enumerated lists from engine output. Everything here is a best-effort
// heuristic keyed on structural markers; a missed signal just means the
// caller asks the user to clarify, while a false positive would poison the
// conversation state, so ambiguous matches are dropped rather than guessed.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/whippetlabs/whippet/pkg/model"
)

// Correction patterns, tried in order. Each must capture a clear
// (corrected, original) or (corrected) pair; candidates without both sides
// of the mapping are discarded. Package-level so deployments can tune them.
var (
	// "I meant ZF4 not ZF5", "i meant ZF4, not ZF5"
	reMeantNot = regexp.MustCompile(`(?i)\bi\s+meant\s+(.+?)\s*,?\s+not\s+(.+?)\s*[.!?]?\s*$`)
	// "sorry, ZF4 not ZF5" / "actually ZF4, not ZF5"
	reSorryNot = regexp.MustCompile(`(?i)\b(?:sorry|actually)\s*,?\s+(.+?)\s*,?\s+not\s+(.+?)\s*[.!?]?\s*$`)
	// bare "ZF4 not ZF5" (whole utterance only, to avoid matching prose)
	reBareNot = regexp.MustCompile(`(?i)^\s*(\S(?:.*?\S)?)\s+not\s+(\S(?:.*?\S)?)\s*[.!?]?\s*$`)
)

// Positional references: "the second one", "number 2", "item 2", "2."
var (
	reOrdinalRef  = regexp.MustCompile(`(?i)\bthe\s+(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth)\s+(?:one|item|option)\b`)
	reNumberRef   = regexp.MustCompile(`(?i)\b(?:number|item|option|#)\s*(\d{1,2})\b`)
	ordinalValues = map[string]int{
		"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
		"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	}
)

// Engine output structure: markdown links, optionally behind a numbered or
// bulleted list marker.
var (
	reMarkdownLink = regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\s]+)\)`)
	reListLine     = regexp.MustCompile(`^\s*(?:(\d{1,2})[.)]|[-*])\s+(.*)$`)
)

// defaultAliases is the alias set every extracted entity starts with
func defaultAliases(kind model.EntityKind) []string {
	return []string{"it", "that", "this", "the " + string(kind)}
}

// UserSignals is what ParseUserMessage extracted from one utterance
type UserSignals struct {
	Corrections []model.Correction

	// ListPosition is the 1-based position referenced by the utterance, or
	// zero when no positional reference was found.
	ListPosition int
}

// ParseUserMessage scans a user utterance for correction phrasing and
// explicit list-position references.
func ParseUserMessage(text string, turn int) UserSignals {
	var out UserSignals

	if c := detectCorrection(text, turn); c != nil {
		out.Corrections = append(out.Corrections, *c)
	}
	out.ListPosition = detectListPosition(text)

	return out
}

// EngineSignals is what ParseEngineOutput extracted from one engine response
type EngineSignals struct {
	Entities []*model.TrackedEntity
	Lists    [][]model.ListItem
}

// ParseEngineOutput scans engine output for linked entity mentions and
// enumerated lists. A run of two or more consecutive list lines with linked
// names becomes a list; a single list line is ignored as an ambiguous
// singular reference. Linked mentions outside lists become entities.
func ParseEngineOutput(text string, turn int) EngineSignals {
	var out EngineSignals

	var run []model.ListItem
	flush := func() {
		if len(run) >= 2 {
			out.Lists = append(out.Lists, run)
		}
		run = nil
	}

	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		if item, ok := parseListLine(line); ok {
			item.Position = len(run) + 1
			run = append(run, item)
			continue
		}
		flush()

		for _, match := range reMarkdownLink.FindAllStringSubmatch(line, -1) {
			name, ref := strings.TrimSpace(match[1]), match[2]
			if name == "" || seen[ref] {
				continue
			}
			seen[ref] = true
			out.Entities = append(out.Entities, newEntity(name, ref, turn))
		}
	}
	flush()

	// List items are reference-worthy entities too: "the gloves" after a
	// list should resolve even when the user never says "item 2".
	for _, list := range out.Lists {
		for _, item := range list {
			if item.Ref == "" || seen[item.Ref] {
				continue
			}
			seen[item.Ref] = true
			out.Entities = append(out.Entities, newEntity(item.Name, item.Ref, turn))
		}
	}

	return out
}

func newEntity(name, ref string, turn int) *model.TrackedEntity {
	kind := classifyRef(ref)
	return &model.TrackedEntity{
		ID:             model.NewEntityID(),
		Kind:           kind,
		Value:          name,
		Ref:            ref,
		Aliases:        defaultAliases(kind),
		TurnIntroduced: turn,
	}
}

// classifyRef infers the entity kind from the reference URL path
func classifyRef(ref string) model.EntityKind {
	lower := strings.ToLower(ref)
	switch {
	case strings.Contains(lower, "/order"):
		return model.EntityKindOrder
	case strings.Contains(lower, "/category") || strings.Contains(lower, "/product-category"):
		return model.EntityKindCategory
	default:
		return model.EntityKindProduct
	}
}

func detectCorrection(text string, turn int) *model.Correction {
	trimmed := strings.TrimSpace(text)

	for _, re := range []*regexp.Regexp{reMeantNot, reSorryNot, reBareNot} {
		m := re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		corrected := strings.Trim(strings.TrimSpace(m[1]), `"'`)
		original := strings.Trim(strings.TrimSpace(m[2]), `"'`)
		if corrected == "" || original == "" || strings.EqualFold(corrected, original) {
			continue
		}
		// The bare "X not Y" form is the loosest pattern: require short
		// noun-ish sides so ordinary prose ("that is not what I asked")
		// never registers as a correction.
		if re == reBareNot && (wordCount(corrected) > 4 || wordCount(original) > 4 || containsStopPhrase(corrected)) {
			continue
		}
		return &model.Correction{
			TurnNumber:     turn,
			OriginalValue:  original,
			CorrectedValue: corrected,
			RawUtterance:   text,
		}
	}
	return nil
}

func detectListPosition(text string) int {
	if m := reOrdinalRef.FindStringSubmatch(text); m != nil {
		return ordinalValues[strings.ToLower(m[1])]
	}
	if m := reNumberRef.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 {
			return n
		}
	}
	return 0
}

func parseListLine(line string) (model.ListItem, bool) {
	m := reListLine.FindStringSubmatch(line)
	if m == nil {
		return model.ListItem{}, false
	}
	link := reMarkdownLink.FindStringSubmatch(m[2])
	if link == nil {
		// Unlinked list lines carry no resolvable reference
		return model.ListItem{}, false
	}
	name := strings.TrimSpace(link[1])
	if name == "" {
		return model.ListItem{}, false
	}
	return model.ListItem{Name: name, Ref: link[2]}, true
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// containsStopPhrase rejects bare "X not Y" candidates whose left side is
// conversational rather than a value
func containsStopPhrase(s string) bool {
	lower := " " + strings.ToLower(s) + " "
	for _, stop := range []string{" is ", " was ", " do ", " does ", " did ", " that ", " what ", " why "} {
		if strings.Contains(lower, stop) {
			return true
		}
	}
	switch strings.ToLower(s) {
	case "it", "that", "this", "its", "it's", "no", "maybe":
		return true
	}
	return false
}
