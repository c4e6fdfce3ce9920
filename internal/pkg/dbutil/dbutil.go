package dbutil

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize rewrites a gendry-built query (mysql placeholder style) into
// postgres form: LIMIT x,y becomes LIMIT/OFFSET and ? becomes $N.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	loc := limitRegex.FindStringIndex(query)
	if loc != nil {
		prefix := query[:loc[0]]
		qCount := strings.Count(prefix, "?")
		if qCount+1 < len(args) {
			args[qCount], args[qCount+1] = args[qCount+1], args[qCount]
			query = limitRegex.ReplaceAllString(query, "LIMIT ? OFFSET ?")
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

// IsUnavailable reports whether a postgres error is a transient-unavailability
// condition worth retrying: connection exceptions (08xxx), insufficient
// resources (53xxx) or an admin shutdown in progress.
func IsUnavailable(err error) bool {
	var pgErr *pq.Error
	if !errors.As(err, &pgErr) {
		return false
	}
	code := string(pgErr.Code)
	return strings.HasPrefix(code, "08") ||
		strings.HasPrefix(code, "53") ||
		code == "57P01"
}
