// Package replay renders recorded run transcripts for review.
package replay

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/secdrill/phishwatch/internal/transcript"
)

// Replayer reads and formats run transcripts for after-action review.
type Replayer struct {
	store          *transcript.FileStore
	output         io.Writer
	verbosity      int // 0=normal, 1=verbose (-v), 2=very verbose (-vv)
	maxContentSize int // Maximum size for content fields (0 = unlimited)
}

// ReplayerOption configures a Replayer.
type ReplayerOption func(*Replayer)

// WithMaxContentSize limits content field size to avoid OOM on large runs.
func WithMaxContentSize(size int) ReplayerOption {
	return func(r *Replayer) {
		r.maxContentSize = size
	}
}

// New creates a new Replayer over a transcript store.
func New(store *transcript.FileStore, output io.Writer, verbosity int, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		store:          store,
		output:         output,
		verbosity:      verbosity,
		maxContentSize: 50 * 1024,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReplayRun loads and replays a recorded run to the output writer.
func (r *Replayer) ReplayRun(runID string) error {
	run, err := r.store.Load(runID)
	if err != nil {
		return err
	}
	return r.Replay(run)
}

// ReplayInteractive replays a run inside the interactive pager.
func (r *Replayer) ReplayInteractive(runID string) error {
	run, err := r.store.Load(runID)
	if err != nil {
		return err
	}

	content, err := r.render(run)
	if err != nil {
		return err
	}
	p := NewPager(fmt.Sprintf("Run: %s", run.Header.RunID))
	return p.Run(content)
}

// ReplayLive replays a run that is still being recorded, refreshing the
// pager as the transcript file grows.
func (r *Replayer) ReplayLive(runID string) error {
	renderFunc := func() (string, error) {
		run, err := r.store.Load(runID)
		if err != nil {
			return "", err
		}
		return r.render(run)
	}

	if _, err := r.store.Load(runID); err != nil {
		return err
	}
	p := NewPager(fmt.Sprintf("Run: %s (LIVE)", runID))
	return p.RunLive(r.store.Path(runID), renderFunc)
}

// Replay outputs the formatted run timeline.
func (r *Replayer) Replay(run *transcript.Run) error {
	r.printHeader(run)
	r.printTimeline(run)
	r.printSummary(run)
	return nil
}

func (r *Replayer) render(run *transcript.Run) (string, error) {
	var buf strings.Builder
	oldOutput := r.output
	r.output = &buf
	err := r.Replay(run)
	r.output = oldOutput
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Replayer) printHeader(run *transcript.Run) {
	h := run.Header
	fmt.Fprintln(r.output)
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("RUN"), valueStyle.Render(h.RunID))
	fmt.Fprintln(r.output, divider)
	if h.ScenarioID != "" {
		fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Scenario:"), valueStyle.Render(h.ScenarioID))
	}
	if h.OffenderID != "" || h.VictimID != "" {
		fmt.Fprintf(r.output, "%s %s vs %s\n", labelStyle.Render("Agents:  "),
			offenderStyle.Render(orDash(h.OffenderID)),
			victimStyle.Render(orDash(h.VictimID)))
	}
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Started: "), valueStyle.Render(h.StartedAt.Format(time.RFC3339)))
	fmt.Fprintln(r.output)
}

func (r *Replayer) printTimeline(run *transcript.Run) {
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("TIMELINE"),
		dimStyle.Render(fmt.Sprintf("(%d events)", len(run.Events))))
	fmt.Fprintln(r.output, divider)

	lastRound := 0
	for i := range run.Events {
		r.formatEvent(&run.Events[i], &lastRound)
	}
}

func (r *Replayer) printSummary(run *transcript.Run) {
	fmt.Fprintln(r.output)
	fmt.Fprintln(r.output, divider)

	switch {
	case !run.Complete:
		fmt.Fprintln(r.output, warnStyle.Render("TRUNCATED (no footer; recorder did not close this run)"))
	case run.CloseReason == "run_end" || run.CloseReason == "finished_chain":
		fmt.Fprintf(r.output, "%s %s\n", successStyle.Render("COMPLETED:"), valueStyle.Render(run.CloseReason))
	case run.CloseReason == "error" || run.CloseReason == "transport_error":
		fmt.Fprintf(r.output, "%s %s\n", errorStyle.Render("FAILED:"), valueStyle.Render(run.CloseReason))
	default:
		fmt.Fprintf(r.output, "%s %s\n", warnStyle.Render("CLOSED:"), valueStyle.Render(run.CloseReason))
	}

	PrintSummary(r.output, ComputeSummary(run))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
