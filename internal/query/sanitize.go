package query

import (
	"regexp"
	"strings"
)

var isoDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// correction rewrites a token the generation step is known to get wrong
// for specific tables. This is a deliberate, auditable patch list; each
// entry names the tables whose schema triggers the rewrite.
type correction struct {
	tables []string
	wrong  *regexp.Regexp
	right  string
}

// knownCorrections covers the name-history tables, whose end-date column
// is nameendt but is routinely generated as nameenddt.
var knownCorrections = []correction{
	{
		tables: []string{"crsp.dsenames", "crsp.msenames", "crsp.stocknames"},
		wrong:  regexp.MustCompile(`(?i)nameenddt`),
		right:  "nameendt",
	},
}

// Sanitize strips surrounding markdown code-fence markup from a generated
// statement.
func Sanitize(sqlText string) string {
	cleaned := strings.TrimSpace(sqlText)

	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx != -1 {
			cleaned = cleaned[idx+1:]
		} else {
			cleaned = strings.TrimPrefix(cleaned, "```")
		}
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

// ApplyCorrections rewrites known-bad tokens whenever the statement
// references one of the affected tables, regardless of casing.
func ApplyCorrections(sqlText string) string {
	lower := strings.ToLower(sqlText)
	for _, c := range knownCorrections {
		for _, table := range c.tables {
			if strings.Contains(lower, table) {
				sqlText = c.wrong.ReplaceAllString(sqlText, c.right)
				break
			}
		}
	}
	return sqlText
}
