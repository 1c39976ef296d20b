// Package stream implements the live-event ingestion engine for a
// simulation run: one server-push connection, channel classification,
// termination detection, turn reconstruction and per-round analysis
// aggregation, drained by a pull-based consumer.
package stream

import "time"

// Kind classifies a normalized event.
type Kind string

const (
	KindLog            Kind = "log"
	KindTurn           Kind = "turn"
	KindCaseCreated    Kind = "case_created"
	KindRoundMarker    Kind = "round_marker"
	KindJudgement      Kind = "judgement"
	KindGuidance       Kind = "guidance"
	KindPrevention     Kind = "prevention"
	KindTerminalSignal Kind = "terminal_signal"
	KindError          Kind = "error"
	KindControl        Kind = "control"
	KindUnclassified   Kind = "unclassified"
)

// DefaultChannel is the SSE default event name used when the backend sends
// a frame without an explicit event field.
const DefaultChannel = "message"

// LocalChannel marks events synthesized client-side (close reasons,
// transport failures) rather than received over the wire.
const LocalChannel = "local"

// channelKinds is the fixed catalog of named channels the backend is known
// to use. Unrecognized named channels map to KindUnclassified so they stay
// visible downstream instead of being silently dropped.
var channelKinds = map[string]Kind{
	"run_start":            KindControl,
	"log":                  KindLog,
	"terminal":             KindLog,
	"agent_action":         KindLog,
	"tool_observation":     KindLog,
	"agent_finish":         KindLog,
	"new_message":          KindTurn,
	"turn_event":           KindTurn,
	"debug":                KindLog,
	"result":               KindControl,
	"run_end":              KindTerminalSignal,
	"ping":                 KindControl,
	"heartbeat":            KindControl,
	"error":                KindError,
	"case_created":         KindCaseCreated,
	"round_start":          KindRoundMarker,
	"simulation_progress":  KindLog,
	"conversation_log":     KindTurn,
	"conversation_logs":    KindTurn,
	"round_complete":       KindRoundMarker,
	"judgement":            KindJudgement,
	"guidance":             KindGuidance,
	"guidance_generated":   KindGuidance,
	"prevention":           KindPrevention,
	"prevention_generated": KindPrevention,
	"prevention_tip":       KindPrevention,

	DefaultChannel: KindLog,
}

// Channels returns the catalog of named channels the router subscribes to,
// excluding the default channel.
func Channels() []string {
	out := make([]string, 0, len(channelKinds)-1)
	for ch := range channelKinds {
		if ch == DefaultChannel {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// Meta carries optional context decoded from a payload.
type Meta struct {
	Round     int       `json:"round,omitempty"`
	RunNo     int       `json:"run_no,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Event is the normalized unit handed to the consumer. Immutable once
// constructed.
type Event struct {
	Kind    Kind   `json:"kind"`
	Channel string `json:"channel"`

	// Content is the display text: the payload's message field when the
	// payload is an object carrying one, otherwise the raw payload.
	Content string `json:"content,omitempty"`

	// Raw preserves the wire payload untouched for pass-through display
	// and artifact decoding.
	Raw string `json:"raw,omitempty"`

	// Fields holds the decoded payload object, when the payload was valid
	// JSON. Nil for opaque string payloads.
	Fields map[string]any `json:"fields,omitempty"`

	// Turn is set on KindTurn events that survived deduplication.
	Turn *ConversationTurn `json:"turn,omitempty"`

	// Artifact is set on judgement/guidance/prevention events whose
	// payload decoded cleanly.
	Artifact RoundArtifact `json:"-"`

	Meta Meta `json:"meta,omitempty"`
}
