package resolver

import (
	"regexp"
	"strings"
	"time"

	"github.com/JakeFAU/bookharvest/internal/apollo"
)

const publicationLayout = "January 02, 2006"

var tagPattern = regexp.MustCompile(`<.*?>`)

// cleanHTML drops anything that looks like a tag and collapses whitespace.
func cleanHTML(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := tagPattern.ReplaceAllString(raw, "")
	return strings.Join(strings.Fields(stripped), " ")
}

// joinNames joins the name of every element in items. Elements are resolved
// through the store first; field names the object inside each element that
// carries the name ("" means the element itself).
func joinNames(store *apollo.Store, items []any, field string) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		n := store.Resolve(item)
		if field != "" {
			n = store.ResolveField(n, field)
		}
		if name := n.String("name"); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

// formatPublication renders a millisecond epoch timestamp as a UTC calendar date.
func formatPublication(ms float64) string {
	return time.UnixMilli(int64(ms)).UTC().Format(publicationLayout)
}

// firstTimestamp returns the first present publicationTime among nodes.
func firstTimestamp(nodes ...apollo.Node) (float64, bool) {
	for _, n := range nodes {
		if v, ok := n.Float("publicationTime"); ok {
			return v, true
		}
	}
	return 0, false
}

func nonNegativeFloat(n apollo.Node, field string) float64 {
	v, ok := n.Float(field)
	if !ok || v < 0 {
		return 0
	}
	return v
}

func nonNegativeInt(n apollo.Node, field string) int64 {
	v := n.Int(field)
	if v < 0 {
		return 0
	}
	return v
}
