package replay

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/secdrill/phishwatch/internal/stream"
	"github.com/secdrill/phishwatch/internal/transcript"
)

// formatEvent formats a single transcript event for display.
func (r *Replayer) formatEvent(rec *transcript.EventRecord, lastRound *int) {
	// Show round transitions
	if rec.Round > 0 && rec.Round != *lastRound {
		fmt.Fprintln(r.output)
		fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("ROUND"), valueStyle.Render(fmt.Sprintf("%d", rec.Round)))
		fmt.Fprintln(r.output)
		*lastRound = rec.Round
	}

	ts := timeStyle.Render(rec.Timestamp.Format("15:04:05"))
	seqNum := seqStyle.Render(fmt.Sprintf("%d", rec.Seq))

	switch stream.Kind(rec.Kind) {
	case stream.KindTurn:
		r.fmtTurn(seqNum, ts, rec)
	case stream.KindJudgement:
		r.fmtJudgement(seqNum, ts, rec)
	case stream.KindGuidance:
		r.fmtGuidance(seqNum, ts, rec)
	case stream.KindPrevention:
		r.fmtPrevention(seqNum, ts, rec)
	case stream.KindCaseCreated:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
			valueStyle.Render("CASE CREATED"), dimStyle.Render(rec.Content))
	case stream.KindRoundMarker:
		fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts,
			dimStyle.Render(strings.ToUpper(strings.ReplaceAll(rec.Channel, "_", " "))))
	case stream.KindTerminalSignal:
		fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, successStyle.Render("RUN END"))
	case stream.KindError:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
			errorStyle.Render("ERROR:"), valueStyle.Render(r.truncate(rec.Content)))
	case stream.KindControl:
		if r.verbosity >= 2 {
			fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
				dimStyle.Render("control:"), dimStyle.Render(rec.Content))
		}
	case stream.KindLog:
		r.fmtLog(seqNum, ts, rec)
	default:
		if r.verbosity >= 1 {
			fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
				dimStyle.Render(rec.Channel+":"), dimStyle.Render(r.truncate(rec.Content)))
		}
	}
}

func (r *Replayer) fmtTurn(seqNum, ts string, rec *transcript.EventRecord) {
	turn := rec.Turn
	if turn == nil {
		return
	}

	roleStyle := offenderStyle
	label := "OFFENDER"
	if turn.Role == stream.RoleVictim {
		roleStyle = victimStyle
		label = "VICTIM"
	}

	convinced := ""
	if turn.ConvincedPct != nil {
		convinced = " " + convincedGauge(*turn.ConvincedPct)
	}

	fmt.Fprintf(r.output, "%s │ %s │ %s%s\n", seqNum, ts, roleStyle.Render(label+":"), convinced)
	r.printContent(turn.DisplayText)
	if r.verbosity >= 1 && turn.Thoughts != "" {
		fmt.Fprintf(r.output, "      │          │   %s %s\n",
			thoughtStyle.Render("thinks:"),
			thoughtStyle.Render(r.truncate(turn.Thoughts)))
	}
}

func (r *Replayer) fmtJudgement(seqNum, ts string, rec *transcript.EventRecord) {
	fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, judgementStyle.Render("JUDGEMENT"))

	art := stream.DecodeArtifact(stream.KindJudgement, rec.Raw, rec.Round)
	j, ok := art.(stream.Judgement)
	if !ok {
		r.printContent(rec.Content)
		return
	}

	verdict := successStyle.Render("benign")
	if j.Phishing {
		verdict = errorStyle.Render("phishing")
	}
	fmt.Fprintf(r.output, "      │          │   %s %s  %s %s (%.2f)\n",
		labelStyle.Render("verdict:"), verdict,
		labelStyle.Render("risk:"), riskStyle(j.Risk.Level).Render(orDash(j.Risk.Level)), j.Risk.Score)
	if j.Evidence != "" {
		fmt.Fprintf(r.output, "      │          │   %s %s\n",
			labelStyle.Render("evidence:"), valueStyle.Render(r.truncate(j.Evidence)))
	}
	if r.verbosity >= 1 && len(j.Vulnerabilities) > 0 {
		fmt.Fprintf(r.output, "      │          │   %s %s\n",
			labelStyle.Render("vulnerabilities:"), valueStyle.Render(strings.Join(j.Vulnerabilities, ", ")))
	}
}

func (r *Replayer) fmtGuidance(seqNum, ts string, rec *transcript.EventRecord) {
	fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, guidanceStyle.Render("GUIDANCE"))

	art := stream.DecodeArtifact(stream.KindGuidance, rec.Raw, rec.Round)
	g, ok := art.(stream.Guidance)
	if !ok {
		r.printContent(rec.Content)
		return
	}

	if len(g.Categories) > 0 {
		fmt.Fprintf(r.output, "      │          │   %s %s\n",
			labelStyle.Render("categories:"), valueStyle.Render(strings.Join(g.Categories, ", ")))
	}
	if g.Reasoning != "" {
		fmt.Fprintf(r.output, "      │          │   %s %s\n",
			labelStyle.Render("reasoning:"), valueStyle.Render(r.truncate(g.Reasoning)))
	}
	if r.verbosity >= 1 && g.ExpectedEffect != "" {
		fmt.Fprintf(r.output, "      │          │   %s %s\n",
			labelStyle.Render("expected:"), valueStyle.Render(r.truncate(g.ExpectedEffect)))
	}
}

func (r *Replayer) fmtPrevention(seqNum, ts string, rec *transcript.EventRecord) {
	fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, preventionStyle.Render("PREVENTION"))

	art := stream.DecodeArtifact(stream.KindPrevention, rec.Raw, rec.Round)
	p, ok := art.(stream.Prevention)
	if !ok {
		r.printContent(rec.Content)
		return
	}

	if p.Summary != "" {
		fmt.Fprintf(r.output, "      │          │   %s\n", valueStyle.Render(r.truncate(p.Summary)))
	}
	for _, step := range p.Steps {
		fmt.Fprintf(r.output, "      │          │   %s %s\n",
			labelStyle.Render("•"), valueStyle.Render(r.truncate(step)))
	}
	if r.verbosity >= 1 {
		for _, tip := range p.Tips {
			fmt.Fprintf(r.output, "      │          │   %s %s\n",
				dimStyle.Render("tip:"), dimStyle.Render(r.truncate(tip)))
		}
	}
}

func (r *Replayer) fmtLog(seqNum, ts string, rec *transcript.EventRecord) {
	// Debug chatter only at -vv; other log channels at -v.
	if rec.Channel == "debug" && r.verbosity < 2 {
		return
	}
	if r.verbosity < 1 {
		return
	}
	fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
		dimStyle.Render(rec.Channel+":"), dimStyle.Render(r.truncate(rec.Content)))
}

// printContent prints multi-line content indented under the timeline row.
func (r *Replayer) printContent(content string) {
	content = r.truncate(content)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(r.output, "      │          │   %s\n", valueStyle.Render(line))
	}
}

func (r *Replayer) truncate(s string) string {
	if r.maxContentSize > 0 && len(s) > r.maxContentSize {
		return s[:r.maxContentSize] + dimStyle.Render(fmt.Sprintf(" …[%d bytes truncated]", len(s)-r.maxContentSize))
	}
	return s
}

// convincedGauge renders the victim's convinced score as a small bar.
func convincedGauge(pct int) string {
	filled := pct / 10
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
	style := successStyle
	switch {
	case pct >= 70:
		style = errorStyle
	case pct >= 40:
		style = warnStyle
	}
	return style.Render(fmt.Sprintf("%s %d%%", bar, pct))
}

func riskStyle(level string) lipgloss.Style {
	switch strings.ToLower(level) {
	case "high", "critical":
		return errorStyle
	case "medium":
		return warnStyle
	default:
		return successStyle
	}
}
