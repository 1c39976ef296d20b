package replay

import (
	"fmt"
	"io"
	"time"

	"github.com/secdrill/phishwatch/internal/stream"
	"github.com/secdrill/phishwatch/internal/transcript"
)

// Summary holds aggregate statistics for a run.
type Summary struct {
	DurationMs int64

	OffenderTurns int
	VictimTurns   int
	Rounds        int

	// Final convinced score reported by the victim, -1 when never reported.
	FinalConvincedPct int

	Judgements  int
	Guidance    int
	Preventions int
	Errors      int
}

// ComputeSummary calculates aggregate statistics from transcript events.
func ComputeSummary(run *transcript.Run) *Summary {
	s := &Summary{FinalConvincedPct: -1}

	var firstEvent, lastEvent time.Time
	maxRound := 0

	for _, rec := range run.Events {
		if !rec.Timestamp.IsZero() {
			if firstEvent.IsZero() || rec.Timestamp.Before(firstEvent) {
				firstEvent = rec.Timestamp
			}
			if lastEvent.IsZero() || rec.Timestamp.After(lastEvent) {
				lastEvent = rec.Timestamp
			}
		}
		if rec.Round > maxRound {
			maxRound = rec.Round
		}

		switch stream.Kind(rec.Kind) {
		case stream.KindTurn:
			if rec.Turn == nil {
				continue
			}
			if rec.Turn.Role == stream.RoleVictim {
				s.VictimTurns++
			} else {
				s.OffenderTurns++
			}
			if rec.Turn.ConvincedPct != nil {
				s.FinalConvincedPct = *rec.Turn.ConvincedPct
			}
			if rec.Turn.Round > maxRound {
				maxRound = rec.Turn.Round
			}
		case stream.KindJudgement:
			s.Judgements++
		case stream.KindGuidance:
			s.Guidance++
		case stream.KindPrevention:
			s.Preventions++
		case stream.KindError:
			s.Errors++
		}
	}

	s.Rounds = maxRound
	if !firstEvent.IsZero() && !lastEvent.IsZero() {
		s.DurationMs = lastEvent.Sub(firstEvent).Milliseconds()
	}
	return s
}

// PrintSummary writes the run summary block.
func PrintSummary(w io.Writer, s *Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("SUMMARY"))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Duration: "), valueStyle.Render(formatDuration(s.DurationMs)))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Rounds:   "), valueStyle.Render(fmt.Sprintf("%d", s.Rounds)))
	fmt.Fprintf(w, "%s %s offender / %s victim\n", labelStyle.Render("Turns:    "),
		offenderStyle.Render(fmt.Sprintf("%d", s.OffenderTurns)),
		victimStyle.Render(fmt.Sprintf("%d", s.VictimTurns)))
	if s.FinalConvincedPct >= 0 {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Convinced:"), convincedGauge(s.FinalConvincedPct))
	}
	fmt.Fprintf(w, "%s %s judgements, %s guidance, %s prevention\n", labelStyle.Render("Analysis: "),
		valueStyle.Render(fmt.Sprintf("%d", s.Judgements)),
		valueStyle.Render(fmt.Sprintf("%d", s.Guidance)),
		valueStyle.Render(fmt.Sprintf("%d", s.Preventions)))
	if s.Errors > 0 {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Errors:   "), errorStyle.Render(fmt.Sprintf("%d", s.Errors)))
	}
}

func formatDuration(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	d := time.Duration(ms) * time.Millisecond
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
