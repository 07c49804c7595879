package vectorsearch

import "strings"

// IndexState is the canonical readiness state of a remote index. It is
// derived from the latest payload on every call and never cached.
type IndexState string

const (
	StateReady        IndexState = "READY"
	StateProvisioning IndexState = "PROVISIONING"
	StateOffline      IndexState = "OFFLINE"
	StateFailed       IndexState = "FAILED"
	StateNotFound     IndexState = "NOT_FOUND"
	StateUnknown      IndexState = "UNKNOWN"
)

func ParseIndexState(s string) (IndexState, bool) {
	switch IndexState(strings.ToUpper(strings.TrimSpace(s))) {
	case StateReady:
		return StateReady, true
	case StateProvisioning:
		return StateProvisioning, true
	case StateOffline:
		return StateOffline, true
	case StateFailed:
		return StateFailed, true
	case StateNotFound:
		return StateNotFound, true
	case StateUnknown:
		return StateUnknown, true
	}
	return StateUnknown, false
}

var detailedStates = map[string]IndexState{
	"ONLINE_DIRECT_ACCESS": StateReady,
	"PROVISIONING":         StateProvisioning,
	"INITIALIZING":         StateProvisioning,
	"OFFLINE":              StateOffline,
	"STOPPING":             StateOffline,
	"STOPPED":              StateOffline,
	"FAILED":               StateFailed,
	"ERROR":                StateFailed,
}

// Normalize collapses the heterogeneous status shapes the API returns into
// one canonical state. Order matters: state wins over detailed_state wins
// over the ready flag, and unrecognized strings fall through instead of
// failing. The API has returned detailed_state without state in the past,
// those payloads must not regress to UNKNOWN.
func Normalize(p *IndexPayload) IndexState {
	if p == nil {
		return StateUnknown
	}

	state := p.State
	detailed := p.DetailedState
	ready := p.Ready
	if p.Status != nil {
		if state == "" {
			state = p.Status.State
		}
		if detailed == "" {
			detailed = p.Status.DetailedState
		}
		if ready == nil {
			ready = p.Status.Ready
		}
	}

	if state != "" {
		if parsed, ok := ParseIndexState(state); ok {
			return parsed
		}
	}

	if detailed != "" {
		if mapped, ok := detailedStates[strings.ToUpper(strings.TrimSpace(detailed))]; ok {
			return mapped
		}
	}

	if ready != nil && *ready {
		return StateReady
	}

	return StateUnknown
}

// NormalizedReady reports whether the payload resolves to READY.
func NormalizedReady(p *IndexPayload) bool {
	return Normalize(p) == StateReady
}
