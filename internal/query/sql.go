package query

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"wrdsquery/internal/types"
)

// BuildSQL translates an Intent into an executable statement. The
// translation is a deterministic, order-preserving template - not a query
// planner: SELECT metrics FROM the first table, joined to the remaining
// tables over their documented link keys, filtered by tickers, inclusive
// date bounds and any extra predicates, then grouped, ordered, and
// limited.
func (b *Builder) BuildSQL(intent types.Intent, tables map[string]types.TableInfo) string {
	normalizeIntent(&intent)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(intent.Metrics, ", "))

	base := intent.Tables[0]
	sb.WriteString("\nFROM ")
	sb.WriteString(base)

	for _, other := range intent.Tables[1:] {
		join, ok := joinClause(base, other, tables)
		if !ok {
			b.logger.Warn("no documented link between tables, skipping join",
				zap.String("base", base),
				zap.String("table", other))
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(join)
	}

	var where []string
	if len(intent.Tickers) > 0 {
		quoted := make([]string, len(intent.Tickers))
		for i, t := range intent.Tickers {
			quoted[i] = "'" + strings.ReplaceAll(t, "'", "''") + "'"
		}
		where = append(where, fmt.Sprintf("ticker IN (%s)", strings.Join(quoted, ", ")))
	}
	if intent.DateRange.Start != "" {
		where = append(where, fmt.Sprintf("date >= '%s'", intent.DateRange.Start))
	}
	if intent.DateRange.End != "" {
		where = append(where, fmt.Sprintf("date <= '%s'", intent.DateRange.End))
	}
	for _, filter := range intent.Filters {
		if f := strings.TrimSpace(filter); f != "" {
			where = append(where, f)
		}
	}
	if len(where) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	if len(intent.Grouping) > 0 {
		sb.WriteString("\nGROUP BY ")
		sb.WriteString(strings.Join(intent.Grouping, ", "))
	}

	ordering := intent.Sorting
	if len(ordering) == 0 && containsColumn(intent.Metrics, "date") {
		ordering = []string{"date"}
	}
	if len(ordering) > 0 {
		sb.WriteString("\nORDER BY ")
		sb.WriteString(strings.Join(ordering, ", "))
	}

	fmt.Fprintf(&sb, "\nLIMIT %d", intent.Limit)
	return sb.String()
}

// joinClause derives the join between base and other from the catalog's
// linking info, in either direction.
func joinClause(base, other string, tables map[string]types.TableInfo) (string, bool) {
	if info, ok := tables[base]; ok {
		if key, ok := info.LinkingInfo[other]; ok {
			return renderJoin(base, other, key), true
		}
	}
	if info, ok := tables[other]; ok {
		if key, ok := info.LinkingInfo[base]; ok {
			return renderJoin(base, other, types.JoinKey{From: key.To, To: key.From}), true
		}
	}
	return "", false
}

func renderJoin(base, other string, key types.JoinKey) string {
	if key.From == key.To {
		return fmt.Sprintf("JOIN %s USING (%s)", other, key.From)
	}
	return fmt.Sprintf("JOIN %s ON %s.%s = %s.%s", other, base, key.From, other, key.To)
}

func containsColumn(columns []string, name string) bool {
	for _, c := range columns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}
