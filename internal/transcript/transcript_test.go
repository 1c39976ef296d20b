package transcript

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/secdrill/phishwatch/internal/stream"
)

func TestWriteAndLoadRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	w, err := store.Open(Header{RunID: "run-1", ScenarioID: "sc-7", VictimID: "v-2"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	pct := 40
	events := []stream.Event{
		{Kind: stream.KindLog, Channel: "log", Content: "starting", Raw: "starting"},
		{Kind: stream.KindTurn, Channel: "new_message", Turn: &stream.ConversationTurn{
			Role:         stream.RoleVictim,
			DisplayText:  "who is this?",
			ConvincedPct: &pct,
			Round:        1,
			TurnIndex:    0,
		}, Meta: stream.Meta{Round: 1}},
		{Kind: stream.KindJudgement, Channel: "judgement",
			Content: "judgement", Raw: `{"case_id":"c1","phishing":true}`,
			Meta: stream.Meta{Round: 1}},
	}
	for _, ev := range events {
		if err := w.Record(ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := w.Close("run_end"); err != nil {
		t.Fatalf("Close: %v", err)
	}

	run, err := store.Load("run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if run.Header.RunID != "run-1" || run.Header.ScenarioID != "sc-7" {
		t.Errorf("header mismatch: %+v", run.Header)
	}
	if !run.Complete {
		t.Error("expected complete run")
	}
	if run.CloseReason != "run_end" {
		t.Errorf("close reason = %q, want run_end", run.CloseReason)
	}
	if len(run.Events) != 3 {
		t.Fatalf("got %d events, want 3", len(run.Events))
	}
	for i, rec := range run.Events {
		if rec.Seq != uint64(i+1) {
			t.Errorf("event %d seq = %d", i, rec.Seq)
		}
	}
	turn := run.Events[1].Turn
	if turn == nil || turn.DisplayText != "who is this?" {
		t.Fatalf("turn not preserved: %+v", turn)
	}
	if turn.ConvincedPct == nil || *turn.ConvincedPct != 40 {
		t.Errorf("convinced pct not preserved: %+v", turn.ConvincedPct)
	}
	if run.Events[2].Raw != `{"case_id":"c1","phishing":true}` {
		t.Errorf("raw payload not preserved: %q", run.Events[2].Raw)
	}
}

func TestLoadTruncatedTranscript(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	w, err := store.Open(Header{RunID: "run-2"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Record(stream.Event{Kind: stream.KindLog, Channel: "log", Content: "x"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	// No Close: simulates the recorder dying mid-run.
	w.f.Close()

	run, err := store.Load("run-2")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if run.Complete {
		t.Error("truncated run reported complete")
	}
	if len(run.Events) != 1 {
		t.Errorf("got %d events, want 1", len(run.Events))
	}
}

func TestLoadPartialTrailingLine(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	w, err := store.Open(Header{RunID: "run-4", ScenarioID: "sc-1"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Record(stream.Event{Kind: stream.KindLog, Channel: "log", Content: "x"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	w.f.Close()

	// Recorder killed mid-write: the last line is cut off mid-JSON.
	f, err := os.OpenFile(store.Path("run-4"), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"_type":"event","seq":2,"kind":"log","con`); err != nil {
		t.Fatal(err)
	}
	f.Close()

	run, err := store.Load("run-4")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if run.Header.ScenarioID != "sc-1" {
		t.Errorf("header mismatch: %+v", run.Header)
	}
	if run.Complete {
		t.Error("truncated run reported complete")
	}
	if len(run.Events) != 1 {
		t.Errorf("got %d events, want 1 (partial line should be skipped)", len(run.Events))
	}
}

func TestLoadMissingHeader(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := os.WriteFile(store.Path("bad"), []byte(`{"_type":"event","seq":1}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("bad"); err == nil || !strings.Contains(err.Error(), "no header") {
		t.Errorf("expected missing-header error, got %v", err)
	}
}

func TestRecordAfterClose(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	w, err := store.Open(Header{RunID: "run-3"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Close("manual_close"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close("manual_close"); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if err := w.Record(stream.Event{Kind: stream.KindLog}); err == nil {
		t.Error("Record after Close should fail")
	}
}

func TestListNewestFirst(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	for _, id := range []string{"old", "new"} {
		w, err := store.Open(Header{RunID: id})
		if err != nil {
			t.Fatalf("Open %s: %v", id, err)
		}
		if err := w.Close("run_end"); err != nil {
			t.Fatalf("Close %s: %v", id, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	ids, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 || ids[0] != "new" || ids[1] != "old" {
		t.Errorf("List = %v, want [new old]", ids)
	}
}
