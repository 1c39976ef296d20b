package stream

import (
	"strconv"
	"testing"
	"time"
)

func TestNormalizeTurnVictimJSON(t *testing.T) {
	raw := rawTurn{Role: RoleVictim, Text: `{"dialogue":"hello","thoughts":"suspicious","is_convinced":7}`}
	turn := normalizeTurn(raw, 1, 0, time.Now())

	if turn.DisplayText != "hello" {
		t.Errorf("display text = %q, want %q", turn.DisplayText, "hello")
	}
	if turn.Thoughts != "suspicious" {
		t.Errorf("thoughts = %q, want %q", turn.Thoughts, "suspicious")
	}
	if turn.ConvincedPct == nil || *turn.ConvincedPct != 70 {
		t.Errorf("convinced pct = %v, want 70", turn.ConvincedPct)
	}
}

func TestNormalizeTurnPlainText(t *testing.T) {
	raw := rawTurn{Role: RoleVictim, Text: "just a plain reply"}
	turn := normalizeTurn(raw, 1, 0, time.Now())

	if turn.DisplayText != "just a plain reply" {
		t.Errorf("display text = %q", turn.DisplayText)
	}
	if turn.Thoughts != "" {
		t.Errorf("thoughts should be empty, got %q", turn.Thoughts)
	}
	if turn.ConvincedPct != nil {
		t.Errorf("convinced pct should be nil, got %d", *turn.ConvincedPct)
	}
}

func TestNormalizeTurnFencedJSON(t *testing.T) {
	raw := rawTurn{Role: RoleVictim, Text: "```json\n{\"dialogue\":\"ok then\",\"is_convinced\":3}\n```"}
	turn := normalizeTurn(raw, 2, 1, time.Now())

	if turn.DisplayText != "ok then" {
		t.Errorf("display text = %q", turn.DisplayText)
	}
	if turn.ConvincedPct == nil || *turn.ConvincedPct != 30 {
		t.Errorf("convinced pct = %v, want 30", turn.ConvincedPct)
	}
}

func TestNormalizeTurnJSONWithSurroundingText(t *testing.T) {
	raw := rawTurn{Role: RoleVictim, Text: `The victim says: {"dialogue":"who is this?"} (end)`}
	turn := normalizeTurn(raw, 1, 2, time.Now())

	if turn.DisplayText != "who is this?" {
		t.Errorf("display text = %q", turn.DisplayText)
	}
}

func TestNormalizeTurnMalformedJSONFallsBack(t *testing.T) {
	raw := rawTurn{Role: RoleVictim, Text: `{"dialogue": broken`}
	turn := normalizeTurn(raw, 1, 0, time.Now())

	if turn.DisplayText != `{"dialogue": broken` {
		t.Errorf("display text = %q", turn.DisplayText)
	}
	if turn.ConvincedPct != nil {
		t.Error("convinced pct should be nil on parse failure")
	}
}

func TestNormalizeTurnConvincedClamped(t *testing.T) {
	for _, tt := range []struct {
		score float64
		want  int
	}{
		{0, 0}, {10, 100}, {12, 100}, {-1, 0}, {5.5, 55},
	} {
		raw := rawTurn{Role: RoleVictim, Text: `{"dialogue":"x","is_convinced":` + strconv.FormatFloat(tt.score, 'g', -1, 64) + `}`}
		turn := normalizeTurn(raw, 1, 0, time.Now())
		if turn.ConvincedPct == nil || *turn.ConvincedPct != tt.want {
			t.Errorf("is_convinced=%v: pct = %v, want %d", tt.score, turn.ConvincedPct, tt.want)
		}
	}
}

func TestLedger(t *testing.T) {
	l := newLedger()
	key := TurnKey{Round: 1, TurnIndex: 2, Role: RoleOffender}

	if l.Seen(key) {
		t.Error("fresh ledger should not have seen the key")
	}
	l.Record(key)
	if !l.Seen(key) {
		t.Error("recorded key should be seen")
	}
	if l.Seen(TurnKey{Round: 1, TurnIndex: 2, Role: RoleVictim}) {
		t.Error("same index with different role is a distinct key")
	}
}

func TestParseTurnPayloadBatch(t *testing.T) {
	ev := classify(Frame{
		Channel: "conversation_logs",
		Payload: `{"round":3,"turns":[{"role":"offender","text":"hi","turn_index":0},{"role":"victim","text":"hello","turn_index":1}]}`,
	})
	turns := parseTurnPayload(ev)
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Round == nil || *turns[0].Round != 3 {
		t.Error("batch round should propagate to each turn")
	}
}

func TestParseTurnPayloadMarkerPrefix(t *testing.T) {
	ev := classify(Frame{
		Channel: "conversation_log",
		Payload: conversationLogMarker + `{"round":1,"turns":[{"role":"offender","text":"hey"}]}`,
	})
	turns := parseTurnPayload(ev)
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].Text != "hey" {
		t.Errorf("text = %q", turns[0].Text)
	}
}

func TestParseTurnPayloadSingle(t *testing.T) {
	ev := classify(Frame{
		Channel: "new_message",
		Payload: `{"role":"victim","text":"fine","round":2,"turn_index":4}`,
	})
	turns := parseTurnPayload(ev)
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].TurnIndex == nil || *turns[0].TurnIndex != 4 {
		t.Error("turn_index should be preserved")
	}
}

func TestParseTurnPayloadMalformed(t *testing.T) {
	ev := classify(Frame{Channel: "turn_event", Payload: "not json at all"})
	if turns := parseTurnPayload(ev); turns != nil {
		t.Errorf("malformed payload should yield no turns, got %v", turns)
	}
}
