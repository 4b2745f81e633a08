// Package repository holds query helpers shared by the booking and archive repositories.
package repository

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// MaxPageSize caps every listing and search.
const MaxPageSize = 50

// Precision is the timestamp resolution kept by every supported database.
const Precision = time.Microsecond

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// ClampLimit bounds limit to [1, MaxPageSize]; non-positive values mean MaxPageSize.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// ContainsPattern builds a case-insensitive LIKE pattern matching text anywhere.
func ContainsPattern(text string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(text))) + "%"
}

// MatchText restricts q to rows whose customer name, email or tracking id contains the pattern.
func MatchText(q *bun.SelectQuery, pattern string) *bun.SelectQuery {
	return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("LOWER(?TableAlias.customer_name) LIKE ? ESCAPE '!'", pattern).
			WhereOr("LOWER(?TableAlias.email) LIKE ? ESCAPE '!'", pattern).
			WhereOr("LOWER(?TableAlias.tracking_id) LIKE ? ESCAPE '!'", pattern)
	})
}

// Later returns candidate truncated to Precision, moved forward so it is strictly after prev.
func Later(prev, candidate time.Time) time.Time {
	candidate = candidate.UTC().Truncate(Precision)
	if !candidate.After(prev) {
		return prev.UTC().Truncate(Precision).Add(Precision)
	}
	return candidate
}
