package database

import (
	"fmt"
	"strings"
	"time"

	"campsite/config"
	"campsite/models"
)

// migrateLiveDocument walks the raw live document through the ordered chain
// of version-to-version transforms until it reaches the current schema
// version. Documents without a schema_version key are treated as version 1.
func migrateLiveDocument(doc map[string]any, mappings *config.FieldMappings) (map[string]any, error) {
	version := documentVersion(doc)

	// A document from a newer schema is a downgrade scenario; refuse it
	// here rather than letting validation trip over it later.
	if version > models.SchemaVersion {
		return nil, fmt.Errorf("no migration path from version %d", version)
	}

	for version < models.SchemaVersion {
		switch version {
		case 1:
			if err := migrateLiveV1ToV2(doc, mappings); err != nil {
				return nil, fmt.Errorf("v1 to v2: %w", err)
			}
			version = 2
		default:
			return nil, fmt.Errorf("no migration path from version %d", version)
		}
		doc["schema_version"] = version
	}
	return doc, nil
}

// checkArchiveVersion rejects archive documents at any other schema version.
// Archived records carry booking facts only, so there has been nothing to
// migrate there yet.
func checkArchiveVersion(doc map[string]any) error {
	if v := documentVersion(doc); v != models.SchemaVersion {
		return fmt.Errorf("unexpected schema version %d in archive file, want %d", v, models.SchemaVersion)
	}
	return nil
}

func documentVersion(doc map[string]any) int {
	v, ok := doc["schema_version"].(float64)
	if !ok {
		return 1
	}
	return int(v)
}

// migrateLiveV1ToV2 applies the v2 schema changes in place:
//   - booking gains event_type, derived from the arrival/departure pair
//   - booking facilities converts from a formatted string to a list,
//     unrecognised entries moving to tracking.bookers_comment
//   - tracking drops the invoice flag and gains cost_estimate
func migrateLiveV1ToV2(doc map[string]any, mappings *config.FieldMappings) error {
	items, _ := doc["items"].([]any)

	for i, rawItem := range items {
		item, ok := rawItem.(map[string]any)
		if !ok {
			return fmt.Errorf("item %d: not an object", i)
		}
		booking, okB := item["booking"].(map[string]any)
		tracking, okT := item["tracking"].(map[string]any)
		if !okB || !okT {
			return fmt.Errorf("item %d: missing booking or tracking section", i)
		}

		arriving, err := parseDocTime(booking["arriving"])
		if err != nil {
			return fmt.Errorf("item %d: arriving: %w", i, err)
		}
		departing, err := parseDocTime(booking["departing"])
		if err != nil {
			return fmt.Errorf("item %d: departing: %w", i, err)
		}
		booking["event_type"] = models.DeriveEventType(arriving, departing)

		facilities, extra := splitFacilities(booking["facilities"], mappings)
		booking["facilities"] = facilities

		delete(tracking, "invoice")

		groupSize, _ := booking["group_size"].(float64)
		tracking["cost_estimate"] = mappings.EstimateCost(
			booking["event_type"].(string), int(groupSize), facilities)

		if len(extra) > 0 {
			tracking["bookers_comment"] = strings.Join(extra, ", ")
		}
	}
	return nil
}

// splitFacilities converts a v1 facilities value into the v2 list form. The
// v1 value is a formatted string like "DAY: Tree Top + Roxby Hut"; entries
// not in the configured bookable set are returned separately.
func splitFacilities(raw any, mappings *config.FieldMappings) ([]string, []string) {
	switch v := raw.(type) {
	case []any:
		// Already a list; nothing to convert.
		out := make([]string, 0, len(v))
		for _, f := range v {
			if s, ok := f.(string); ok {
				out = append(out, s)
			}
		}
		return out, nil
	case string:
		facilities := []string{}
		var extra []string
		if _, rest, found := strings.Cut(v, ":"); found {
			for _, f := range strings.Split(rest, "+") {
				f = strings.TrimSpace(f)
				if f == "" {
					continue
				}
				if mappings.IsBookableFacility(f) {
					facilities = append(facilities, f)
				} else {
					extra = append(extra, f)
				}
			}
		}
		return facilities, extra
	default:
		return []string{}, nil
	}
}

func parseDocTime(raw any) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected an ISO-8601 string, got %T", raw)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
