package stream

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// State is the lifecycle of a stream session.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateEnded      State = "ended"
)

// Params correlates a run with the operator's choices. RunID may be
// pre-assigned; when empty the manager generates one.
type Params struct {
	RunID      string
	OffenderID string
	VictimID   string
	ScenarioID string
}

// Manager owns at most one open transport at a time. Opening a new session
// unconditionally closes the previous one, so rapid repeated starts can
// never leak a connection or double-deliver events.
type Manager struct {
	transport Transport
	logger    *zap.Logger

	mu     sync.Mutex
	active *Session
}

// NewManager creates a session manager over the given transport.
func NewManager(t Transport, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{transport: t, logger: logger}
}

// Open starts a new run session. Any prior session owned by this manager
// is closed first.
func (m *Manager) Open(ctx context.Context, p Params) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		m.active.Close(ReasonSuperseded)
		m.active = nil
	}

	runID := p.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	query := url.Values{"stream_id": {runID}}
	if p.OffenderID != "" {
		query.Set("offender_id", p.OffenderID)
	}
	if p.VictimID != "" {
		query.Set("victim_id", p.VictimID)
	}
	if p.ScenarioID != "" {
		query.Set("scenario_id", p.ScenarioID)
	}

	sctx, cancel := context.WithCancel(ctx)
	sctx, span := startRunSpan(sctx, runID, p)

	s := &Session{
		runID:       runID,
		state:       StateConnecting,
		logger:      m.logger.With(zap.String("run_id", runID)),
		cancel:      cancel,
		span:        span,
		wake:        make(chan struct{}, 1),
		ledger:      newLedger(),
		rounds:      NewAggregator(),
		fallbackIdx: make(map[int]int),
	}

	frames, err := m.transport.Stream(sctx, query)
	if err != nil {
		span.RecordError(err)
		span.End()
		cancel()
		return nil, fmt.Errorf("open stream session: %w", err)
	}

	s.setState(StateStreaming)
	m.active = s
	s.logger.Info("stream session opened",
		zap.String("scenario_id", p.ScenarioID),
		zap.String("offender_id", p.OffenderID),
		zap.String("victim_id", p.VictimID))

	go s.ingest(frames)
	return s, nil
}

// Session is one open run stream. The internal queue and waiter are private
// to the session, so independent sessions never share consumer state.
type Session struct {
	runID  string
	logger *zap.Logger
	cancel context.CancelFunc
	span   trace.Span

	mu    sync.Mutex
	state State
	queue []Event
	ended bool
	wake  chan struct{}

	// ingest-side bookkeeping; touched only by the transport-reader
	// goroutine.
	ledger      *ledger
	rounds      *Aggregator
	fallbackIdx map[int]int
}

// RunID returns the run identifier, stable for the session's lifetime.
func (s *Session) RunID() string { return s.runID }

// State reports the session lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Analysis exposes the per-round artifact lists accumulated so far.
func (s *Session) Analysis() *Aggregator { return s.rounds }

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) isEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Close ends the session. Idempotent: only the first call wins, whether it
// comes from the caller, a transport failure, or an in-band termination
// signal. The first call synthesizes one final control event carrying the
// close reason, so a consumer watching only the queue still learns the run
// is over.
func (s *Session) Close(reason string) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.state = StateEnded
	s.queue = append(s.queue, Event{
		Kind:    KindControl,
		Channel: LocalChannel,
		Content: reason,
		Meta:    Meta{Timestamp: time.Now()},
	})
	s.mu.Unlock()

	s.cancel()
	s.signal()
	s.span.SetAttributes(attribute.String("run.close_reason", reason))
	s.span.End()
	s.logger.Info("stream session closed", zap.String("reason", reason))
}

// Next yields the next event, blocking while the queue is empty. It
// returns ok=false once the session has ended and the queue — including
// the final synthesized event — is fully drained, or when ctx is done.
func (s *Session) Next(ctx context.Context) (Event, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, true
		}
		if s.ended {
			s.mu.Unlock()
			return Event{}, false
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, false
		case <-s.wake:
		}
	}
}

// push enqueues an event and wakes a parked consumer. Producers never
// block: the queue is unbounded and the waiter slot is non-blocking.
func (s *Session) push(ev Event) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.signal()
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// ingest is the single producer: it drains transport frames until the
// stream ends or the session is closed. Transport failures are terminal
// for the run — never retried — and surface as a synthesized error event
// before the close.
func (s *Session) ingest(frames <-chan Frame) {
	for f := range frames {
		if s.isEnded() {
			break
		}
		if f.Err != nil {
			s.logger.Warn("transport failure", zap.Error(f.Err))
			s.span.RecordError(f.Err)
			s.push(Event{
				Kind:    KindError,
				Channel: LocalChannel,
				Content: f.Err.Error(),
				Meta:    Meta{Timestamp: time.Now()},
			})
			s.Close(ReasonTransport)
			break
		}
		s.handleFrame(f)
	}

	// Server closed the stream without any termination signal.
	if !s.isEnded() {
		s.push(Event{
			Kind:    KindError,
			Channel: LocalChannel,
			Content: "stream closed by server",
			Meta:    Meta{Timestamp: time.Now()},
		})
		s.Close(ReasonTransport)
	}

	// The transport reader blocks on send once its buffer fills; drain
	// whatever is still in flight so it can exit and close the response
	// body after the session ends.
	for range frames {
	}
}

// handleFrame classifies one frame, routes it by kind, and applies the
// termination rules to the classified event.
func (s *Session) handleFrame(f Frame) {
	ev := classify(f)

	switch ev.Kind {
	case KindTurn:
		s.handleTurn(ev)
	case KindJudgement, KindGuidance, KindPrevention:
		if art := decodeArtifact(ev); art != nil {
			ev.Artifact = art
			ev.Meta.Round = art.Round()
			s.rounds.Absorb(art)
		} else {
			s.logger.Debug("artifact decode failed",
				zap.String("channel", ev.Channel))
		}
		s.push(ev)
	default:
		s.push(ev)
	}

	if v := shouldTerminate(ev); v.Terminate {
		s.Close(v.Reason)
	}
}

// handleTurn expands a turn-kind event into zero or more accepted turns.
// The ledger is consulted before anything reaches the queue, so a turn
// delivered through both the batched and incremental channels renders
// exactly once. A payload that cannot be parsed as turns degrades to a
// log-kind event instead of being lost.
func (s *Session) handleTurn(ev Event) {
	raws := parseTurnPayload(ev)
	if len(raws) == 0 {
		s.logger.Debug("unparseable turn payload",
			zap.String("channel", ev.Channel))
		s.push(Event{
			Kind:    KindLog,
			Channel: ev.Channel,
			Content: ev.Content,
			Raw:     ev.Raw,
			Meta:    ev.Meta,
		})
		return
	}

	batched := ev.Channel == "conversation_log" || ev.Channel == "conversation_logs"
	for i, raw := range raws {
		round := ev.Meta.Round
		if raw.Round != nil {
			round = *raw.Round
		}
		index := s.turnIndex(raw, i, round, batched)
		key := TurnKey{Round: round, TurnIndex: index, Role: raw.Role}
		if s.ledger.Seen(key) {
			s.logger.Debug("duplicate turn dropped",
				zap.Int("round", round),
				zap.Int("turn_index", index),
				zap.String("role", raw.Role))
			continue
		}
		s.ledger.Record(key)

		turn := normalizeTurn(raw, round, index, time.Now())
		s.push(Event{
			Kind:    KindTurn,
			Channel: ev.Channel,
			Content: turn.DisplayText,
			Raw:     ev.Raw,
			Turn:    &turn,
			Meta:    Meta{Round: round, RunNo: ev.Meta.RunNo, Timestamp: turn.Timestamp},
		})
	}
}

// turnIndex resolves a turn's index identically for both delivery paths:
// the wire value when present, the batch position for batched turns, and a
// per-round counter for incremental turns without an index.
func (s *Session) turnIndex(raw rawTurn, pos, round int, batched bool) int {
	if raw.TurnIndex != nil {
		return *raw.TurnIndex
	}
	if batched {
		return pos
	}
	idx := s.fallbackIdx[round]
	s.fallbackIdx[round] = idx + 1
	return idx
}
