package turn

import (
	"fmt"
	"strings"

	"github.com/whippetlabs/whippet/pkg/model"
)

// RenderResults renders a ranked result set as the canonical numbered
// linked-markdown block. The structure matters: it is exactly what the
// parser recognizes as a trackable list, which keeps entity and list
// tracking alive turn over turn.
func RenderResults(results []*model.SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. [%s](%s)", i+1, r.Title, r.URL)
		if price, ok := r.Payload["price"].(string); ok && price != "" {
			b.WriteString(" - ")
			b.WriteString(price)
		}
		if inStock, ok := r.Payload["in_stock"].(bool); ok && !inStock {
			b.WriteString(" (out of stock)")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
