package search

import (
	"encoding/json"
	"strings"

	"github.com/elliotchance/pie/v2"
)

// EntityTypeHeuristic guesses an entity type from its name. Used only for
// entities synthesized from unresolved relationship targets, kept separate
// from graph resolution so it can be swapped out.
type EntityTypeHeuristic func(name string) string

func defaultEntityType(name string) string {
	lower := strings.ToLower(name)

	switch {
	case containsAny(lower, "team", "researchers", "engineer", "scientist", "developer", "user"):
		return "person"
	case containsAny(lower, "system", "api", "database", "service", "platform", "server"):
		return "system"
	case containsAny(lower, "company", "organization", "corp", "inc", "lab"):
		return "organization"
	default:
		return "concept"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// rawRelationship tolerates the field-name variants the stored JSON has
// accumulated over time.
type rawRelationship struct {
	Target     string  `json:"target"`
	TargetName string  `json:"target_name"`
	Type       string  `json:"type"`
	Relation   string  `json:"relation"`
	Label      string  `json:"label"`
	Strength   float64 `json:"strength"`
}

func (r rawRelationship) target() string {
	if r.Target != "" {
		return r.Target
	}
	return r.TargetName
}

func (r rawRelationship) kind() string {
	if r.Type != "" {
		return r.Type
	}
	if r.Relation != "" {
		return r.Relation
	}
	return "related_to"
}

// extractEntityGraph builds the graph for entity-type search hits. The
// attributes and relationships columns hold embedded JSON strings, parse
// failures degrade in place: attributes become {"raw": <original>},
// relationships become empty. Relationship targets are free-text names
// resolved case-insensitively against the parsed entities, unresolved
// targets materialize as synthetic inferred entities so the returned graph
// has no dangling references.
func extractEntityGraph(records []Record, inferType EntityTypeHeuristic) *EntityGraph {
	graph := &EntityGraph{
		Entities:      []GraphEntity{},
		Relationships: []GraphRelationship{},
	}

	type pending struct {
		sourceID string
		rel      rawRelationship
	}
	var pendingRels []pending

	for _, record := range records {
		entity := GraphEntity{
			ID:         record.ID,
			Name:       stringField(record.Fields, "entity_name"),
			Type:       stringField(record.Fields, "entity_type"),
			Attributes: parseAttributes(record.Fields["attributes"]),
		}
		if entity.Name == "" {
			entity.Name = record.ID
		}
		if entity.Type == "" {
			entity.Type = "concept"
		}
		graph.Entities = append(graph.Entities, entity)

		for _, rel := range parseRelationships(record.Fields["relationships"]) {
			pendingRels = append(pendingRels, pending{sourceID: entity.ID, rel: rel})
		}
	}

	// resolve targets only after every entity is known
	byName := make(map[string]string, len(graph.Entities))
	for _, entity := range graph.Entities {
		byName[strings.ToLower(entity.Name)] = entity.ID
	}

	for _, p := range pendingRels {
		target := strings.TrimSpace(p.rel.target())
		if target == "" {
			continue
		}

		targetID, ok := byName[strings.ToLower(target)]
		if !ok {
			synthetic := GraphEntity{
				ID:   slugify(target),
				Name: target,
				Type: inferType(target),
				Attributes: map[string]any{
					"inferred": true,
				},
			}
			if synthetic.ID == "" {
				synthetic.ID = "inferred-" + slugify(p.sourceID)
			}

			exists := pie.Any(graph.Entities, func(e GraphEntity) bool {
				return e.ID == synthetic.ID
			})
			if !exists {
				graph.Entities = append(graph.Entities, synthetic)
			}

			byName[strings.ToLower(target)] = synthetic.ID
			targetID = synthetic.ID
		}

		strength := p.rel.Strength
		if strength == 0 {
			strength = 0.5
		}

		graph.Relationships = append(graph.Relationships, GraphRelationship{
			SourceID: p.sourceID,
			TargetID: targetID,
			Type:     p.rel.kind(),
			Label:    p.rel.Label,
			Strength: strength,
		})
	}

	return graph
}

// parseAttributes decodes the embedded attributes JSON. A value that is
// already a map passes through, a string that fails to parse is preserved
// under "raw".
func parseAttributes(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case string:
		if strings.TrimSpace(v) == "" {
			return map[string]any{}
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return map[string]any{"raw": v}
		}
		return parsed
	default:
		return map[string]any{}
	}
}

// parseRelationships decodes the embedded relationships JSON, returning
// nothing on malformed input.
func parseRelationships(value any) []rawRelationship {
	var data []byte

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		data = []byte(v)
	case []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		data = encoded
	default:
		return nil
	}

	var parsed []rawRelationship
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil
	}
	return parsed
}
