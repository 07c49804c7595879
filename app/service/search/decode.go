package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// numeric fields default to 0 instead of ""
var numericColumns = map[string]bool{
	"interaction_sequence": true,
	"chunk_index":          true,
	"quality":              true,
	"importance":           true,
	"confidence_score":     true,
}

// decodeRow turns one raw query row into a Record. Rows arrive either as
// objects keyed by column name or as bare positional arrays in the order of
// the memory type's column mapping, possibly with a trailing relevance
// score appended by the server. A malformed row degrades to an empty record
// rather than failing the whole response.
func decodeRow(raw json.RawMessage, memoryType MemoryType, position int) Record {
	columns := memoryType.Columns()
	fields := make(map[string]any, len(columns))
	score := 0.0

	var object map[string]any
	if err := json.Unmarshal(raw, &object); err == nil {
		for _, col := range columns {
			fields[col] = object[col]
		}
		if s, ok := object["score"].(float64); ok {
			score = s
		}
	} else {
		var values []any
		if err := json.Unmarshal(raw, &values); err == nil {
			for i, col := range columns {
				if i < len(values) {
					fields[col] = values[i]
				}
			}
			// trailing extra position is the relevance score
			if len(values) > len(columns) {
				if s, ok := values[len(values)-1].(float64); ok {
					score = s
				}
			}
		}
	}

	fillDefaults(fields, columns)

	record := Record{
		ID:         stableID(fields, memoryType, position),
		Text:       textProjection(fields, memoryType),
		MemoryType: memoryType,
		Score:      score,
		Fields:     fields,
	}
	record.Fields["id"] = record.ID

	return record
}

func decodeRows(rows []json.RawMessage, memoryType MemoryType) []Record {
	return lo.Map(rows, func(raw json.RawMessage, i int) Record {
		return decodeRow(raw, memoryType, i)
	})
}

// fillDefaults guarantees every mapped column is present: "" for strings,
// 0 for numeric columns.
func fillDefaults(fields map[string]any, columns []string) {
	for _, col := range columns {
		if fields[col] != nil {
			continue
		}
		if numericColumns[col] {
			fields[col] = float64(0)
		} else {
			fields[col] = ""
		}
	}
}

// stableID synthesizes an id when the remote one is null or empty: a slug
// of the entity name for entities, a positional id otherwise.
func stableID(fields map[string]any, memoryType MemoryType, position int) string {
	if id := stringField(fields, "id"); id != "" {
		return id
	}

	if memoryType == Entity {
		if name := stringField(fields, "entity_name"); name != "" {
			return slugify(name)
		}
	}

	return fmt.Sprintf("%s_%d", memoryType, position)
}

func textProjection(fields map[string]any, memoryType MemoryType) string {
	if memoryType == Entity {
		if desc := stringField(fields, "description"); desc != "" {
			return desc
		}
		return stringField(fields, "entity_name")
	}
	return stringField(fields, "content")
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return strings.TrimSpace(s)
}

func slugify(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
			}
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
