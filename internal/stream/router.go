package stream

import (
	"encoding/json"
	"time"
)

// classify normalizes one wire frame into a tagged Event.
//
// The payload is decoded strictly as JSON; on failure it is treated as an
// opaque string. When the decoded object carries its own discriminant tag
// ("type") naming a cataloged channel, that tag wins; otherwise the channel
// name is normative. The default channel runs through the same path as the
// named log channels, so terminal text arriving untagged still reaches the
// sanitizer and the termination detector.
func classify(f Frame) Event {
	ev := Event{
		Channel: f.Channel,
		Raw:     f.Payload,
		Content: f.Payload,
		Meta:    Meta{Timestamp: time.Now()},
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(f.Payload), &fields); err == nil && fields != nil {
		ev.Fields = fields
		if tag, ok := fields["type"].(string); ok {
			if _, known := channelKinds[tag]; known {
				ev.Channel = tag
			}
		}
		if msg := firstString(fields, "message", "content", "text"); msg != "" {
			ev.Content = msg
		}
		if n, ok := intField(fields, "round", "round_no"); ok {
			ev.Meta.Round = n
		}
		if n, ok := intField(fields, "run_no"); ok {
			ev.Meta.RunNo = n
		}
	}

	kind, known := channelKinds[ev.Channel]
	if !known {
		kind = KindUnclassified
	}
	ev.Kind = kind
	return ev
}

// firstString returns the first present string field among keys.
func firstString(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := fields[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// intField reads the first present numeric field among keys. JSON numbers
// decode as float64; string-encoded integers are not accepted.
func intField(fields map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		if v, ok := fields[k].(float64); ok {
			return int(v), true
		}
	}
	return 0, false
}
