// Package sheets pulls raw booking rows from the spreadsheet source.
package sheets

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Row is one spreadsheet row keyed by normalized (snake_case) column names.
type Row map[string]string

// Sheet is one source sheet's worth of rows plus its configured group type.
type Sheet struct {
	Name      string `json:"name"`
	GroupType string `json:"group_type"`
	Rows      []Row  `json:"sheet_data"`
}

// Result is everything a single pull produced.
type Result struct {
	Updated time.Time `json:"updated"`
	Sheets  []Sheet   `json:"data"`
}

// Source produces booking rows for ingestion. pullNew forces a fresh fetch
// from the provider instead of the cache.
type Source interface {
	Rows(ctx context.Context, pullNew bool) (*Result, error)
}

var (
	punctuationRe = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// NormalizeKey converts a column header like "Arrival Date / Time" into a
// safe snake_case key ("arrival_date_time").
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	key = punctuationRe.ReplaceAllString(key, "")
	key = whitespaceRe.ReplaceAllString(key, "_")
	return strings.ToLower(key)
}
