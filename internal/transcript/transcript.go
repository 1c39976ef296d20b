// Package transcript persists run event streams to disk as JSONL and
// reads them back for replay.
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/secdrill/phishwatch/internal/stream"
)

// Record types for the JSONL transcript format.
const (
	RecordTypeHeader = "header" // Run metadata (first line)
	RecordTypeEvent  = "event"  // One stream event
	RecordTypeFooter = "footer" // Close reason (last line, absent if the recorder died)
)

// Header identifies the run a transcript belongs to.
type Header struct {
	RunID      string    `json:"run_id"`
	ScenarioID string    `json:"scenario_id,omitempty"`
	OffenderID string    `json:"offender_id,omitempty"`
	VictimID   string    `json:"victim_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// EventRecord is one recorded stream event. Seq preserves arrival order.
type EventRecord struct {
	Seq       uint64                   `json:"seq"`
	Kind      string                   `json:"kind"`
	Channel   string                   `json:"channel"`
	Content   string                   `json:"content,omitempty"`
	Raw       string                   `json:"raw,omitempty"`
	Round     int                      `json:"round,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
	Turn      *stream.ConversationTurn `json:"turn,omitempty"`
}

// Footer records how the run ended.
type Footer struct {
	CloseReason string    `json:"close_reason"`
	EventCount  int       `json:"event_count"`
	EndedAt     time.Time `json:"ended_at"`
}

// Record is the JSONL line wrapper with type discrimination.
type Record struct {
	RecordType string `json:"_type"`

	// Header fields (when _type == "header")
	*Header `json:",omitempty"`

	// Event fields (when _type == "event")
	*EventRecord `json:",omitempty"`

	// Footer fields (when _type == "footer")
	CloseReason string    `json:"close_reason,omitempty"`
	EventCount  int       `json:"event_count,omitempty"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
}

// Run is a fully loaded transcript. Complete is false when the footer is
// missing, which happens when the recording process was killed mid-run.
type Run struct {
	Header      Header
	Events      []EventRecord
	CloseReason string
	EndedAt     time.Time
	Complete    bool
}

// FileStore keeps one <runID>.jsonl file per run under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the transcript directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the transcript file path for a run.
func (s *FileStore) Path(runID string) string {
	return filepath.Join(s.dir, runID+".jsonl")
}

// List returns recorded run IDs, newest first.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	type stamped struct {
		id  string
		mod time.Time
	}
	var runs []stamped
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		runs = append(runs, stamped{
			id:  strings.TrimSuffix(e.Name(), ".jsonl"),
			mod: info.ModTime(),
		})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].mod.After(runs[j].mod) })
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.id
	}
	return ids, nil
}

// Writer appends transcript records for one run as events arrive. Lines
// are flushed per record so a live pager sees them promptly.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	seq    uint64
	closed bool
}

// Open starts a new transcript, writing the header immediately.
func (s *FileStore) Open(h Header) (*Writer, error) {
	if h.StartedAt.IsZero() {
		h.StartedAt = time.Now()
	}
	f, err := os.Create(s.Path(h.RunID))
	if err != nil {
		return nil, fmt.Errorf("create transcript file: %w", err)
	}
	w := &Writer{f: f}
	if err := w.writeLine(Record{RecordType: RecordTypeHeader, Header: &h}); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Record appends one stream event.
func (w *Writer) Record(ev stream.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("transcript already closed")
	}

	w.seq++
	rec := EventRecord{
		Seq:       w.seq,
		Kind:      string(ev.Kind),
		Channel:   ev.Channel,
		Content:   ev.Content,
		Round:     ev.Meta.Round,
		Timestamp: eventTime(ev),
		Turn:      ev.Turn,
	}
	// Raw payloads matter for replaying analysis cards; skip them for
	// turns, where the normalized form is what replay renders.
	if ev.Turn == nil && ev.Raw != ev.Content {
		rec.Raw = ev.Raw
	}
	return w.writeLine(Record{RecordType: RecordTypeEvent, EventRecord: &rec})
}

// Close writes the footer and closes the file. Safe to call once.
func (w *Writer) Close(reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.writeLine(Record{
		RecordType:  RecordTypeFooter,
		CloseReason: reason,
		EventCount:  int(w.seq),
		EndedAt:     time.Now(),
	})
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (w *Writer) writeLine(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal transcript record: %w", err)
	}
	if _, err := w.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write transcript record: %w", err)
	}
	return w.f.Sync()
}

// Load reads a transcript back. A missing footer is not an error: the
// run is returned with Complete false so replay can label it truncated.
// Malformed lines are skipped.
func (s *FileStore) Load(runID string) (*Run, error) {
	f, err := os.Open(s.Path(runID))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) (*Run, error) {
	run := &Run{}
	sawHeader := false

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			// A recorder killed mid-write leaves a partial final line;
			// skip lines that do not decode rather than losing the run.
			parseLine(bytes.TrimSpace(line), run, &sawHeader)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read transcript: %w", err)
		}
	}

	if !sawHeader {
		return nil, fmt.Errorf("transcript has no header record")
	}
	return run, nil
}

func parseLine(line []byte, run *Run, sawHeader *bool) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return
	}

	switch rec.RecordType {
	case RecordTypeHeader:
		if rec.Header != nil {
			run.Header = *rec.Header
			*sawHeader = true
		}
	case RecordTypeEvent:
		if rec.EventRecord != nil {
			run.Events = append(run.Events, *rec.EventRecord)
		}
	case RecordTypeFooter:
		run.CloseReason = rec.CloseReason
		run.EndedAt = rec.EndedAt
		run.Complete = true
	}
}

func eventTime(ev stream.Event) time.Time {
	if !ev.Meta.Timestamp.IsZero() {
		return ev.Meta.Timestamp
	}
	return time.Now()
}
