package stream

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/secdrill/phishwatch/internal/sanitize"
)

// Conversation roles. The offender speaks plain prose; the victim's
// utterances embed a JSON object with dialogue, inner thoughts and a
// convinced score.
const (
	RoleOffender = "offender"
	RoleVictim   = "victim"
)

// ConversationTurn is one normalized utterance, appended (never mutated)
// to the consumer-visible message list.
type ConversationTurn struct {
	Role         string    `json:"role"`
	DisplayText  string    `json:"display_text"`
	Thoughts     string    `json:"thoughts,omitempty"`
	ConvincedPct *int      `json:"convinced_pct,omitempty"`
	Round        int       `json:"round"`
	TurnIndex    int       `json:"turn_index"`
	Timestamp    time.Time `json:"timestamp"`
}

// TurnKey identifies a logical turn regardless of which channel delivered
// it. Once seen, a key is never processed again for the run's lifetime.
type TurnKey struct {
	Round     int
	TurnIndex int
	Role      string
}

// ledger guards against the same turn arriving through both the batched
// and the incremental delivery paths. Scoped to one run.
type ledger struct {
	seen map[TurnKey]struct{}
}

func newLedger() *ledger {
	return &ledger{seen: make(map[TurnKey]struct{})}
}

func (l *ledger) Seen(k TurnKey) bool {
	_, ok := l.seen[k]
	return ok
}

func (l *ledger) Record(k TurnKey) {
	l.seen[k] = struct{}{}
}

// rawTurn is one turn record as delivered on the wire.
type rawTurn struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	TurnIndex *int   `json:"turn_index"`
	Round     *int   `json:"round"`
}

// victimPayload is the JSON object embedded in a victim turn's text.
// IsConvinced arrives on a 0-10 scale.
type victimPayload struct {
	Dialogue    string   `json:"dialogue"`
	Thoughts    string   `json:"thoughts"`
	IsConvinced *float64 `json:"is_convinced"`
}

// normalizeTurn converts a raw turn into a ConversationTurn. The text may
// be plain prose, a JSON object inside a markdown fence, or a bare JSON
// object surrounded by other text. Every failure path degrades to the best
// available plain text; normalization never fails.
func normalizeTurn(raw rawTurn, round, index int, now time.Time) ConversationTurn {
	turn := ConversationTurn{
		Role:      raw.Role,
		Round:     round,
		TurnIndex: index,
		Timestamp: now,
	}

	candidate := sanitize.ExtractJSON(sanitize.StripFences(raw.Text))
	if candidate != "" {
		var p victimPayload
		if err := json.Unmarshal([]byte(candidate), &p); err == nil && p.Dialogue != "" {
			turn.DisplayText = p.Dialogue
			turn.Thoughts = p.Thoughts
			if p.IsConvinced != nil {
				pct := int(math.Round(*p.IsConvinced * 10))
				if pct < 0 {
					pct = 0
				}
				if pct > 100 {
					pct = 100
				}
				turn.ConvincedPct = &pct
			}
			return turn
		}
	}

	turn.DisplayText = sanitize.NormalizeWhitespace(raw.Text)
	return turn
}

// conversationLogMarker prefixes single-string conversation_log payloads;
// the remainder of the string is the usual batch object.
const conversationLogMarker = "CONVERSATION_LOG:"

// batchPayload is the object shape of conversation_log(s) events.
type batchPayload struct {
	Turns []rawTurn `json:"turns"`
	Round *int      `json:"round"`
}

// parseTurnPayload extracts the raw turns carried by a turn-kind event.
// Batched events yield every listed turn; incremental events yield one.
// Malformed payloads yield none — a bad frame never aborts the run.
func parseTurnPayload(ev Event) []rawTurn {
	switch ev.Channel {
	case "conversation_log", "conversation_logs":
		raw := ev.Raw
		if strings.HasPrefix(strings.TrimSpace(raw), conversationLogMarker) {
			raw = strings.TrimPrefix(strings.TrimSpace(raw), conversationLogMarker)
		}
		candidate := sanitize.ExtractJSON(raw)
		if candidate == "" {
			candidate = raw
		}
		var batch batchPayload
		if err := json.Unmarshal([]byte(candidate), &batch); err != nil {
			return nil
		}
		if batch.Round != nil {
			for i := range batch.Turns {
				if batch.Turns[i].Round == nil {
					batch.Turns[i].Round = batch.Round
				}
			}
		}
		return batch.Turns
	default:
		var t rawTurn
		if err := json.Unmarshal([]byte(ev.Raw), &t); err != nil || t.Role == "" {
			return nil
		}
		return []rawTurn{t}
	}
}
