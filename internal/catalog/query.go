package catalog

import (
	"fmt"
	"strings"
)

// buildSearchExpr builds the catalog query expression for a normalized name
// search. Single-word terms use a plain wildcard match; multi-word terms are
// quoted and wildcarded on both ends so phrase-plus-partial matching works.
func buildSearchExpr(normalized string) string {
	if strings.ContainsRune(normalized, ' ') {
		return fmt.Sprintf(`name:"*%s*"`, normalized)
	}
	return fmt.Sprintf(`name:*%s*`, normalized)
}

// buildIDExpr joins item ids into a logical-OR identifier expression.
func buildIDExpr(ids []string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf(`id:"%s"`, id)
	}
	return strings.Join(parts, " OR ")
}
