package stream

import (
	"regexp"

	"github.com/secdrill/phishwatch/internal/sanitize"
)

// Close reasons surfaced to the consumer on the final synthesized event.
const (
	ReasonRunEnd        = "run_end"
	ReasonError         = "error"
	ReasonFinishedChain = "finished_chain"
	ReasonManualClose   = "manual_close"
	ReasonSuperseded    = "superseded"
	ReasonTransport     = "transport_error"
)

// The agent runtime behind the backend does not always emit a structured
// end-of-run event; when it doesn't, this log marker is the only reliable
// completion signal. Whole-word, case-insensitive, matched after ANSI
// stripping.
var sentinelPattern = regexp.MustCompile(`(?i)\bfinished chain\b`)

// Verdict is the termination decision for one event.
type Verdict struct {
	Terminate bool
	Reason    string
}

// shouldTerminate applies the termination rules in priority order:
// explicit end-of-run signal, explicit error, then the textual sentinel on
// log-kind events. Ambiguous partial matches never terminate.
func shouldTerminate(ev Event) Verdict {
	switch ev.Kind {
	case KindTerminalSignal:
		return Verdict{Terminate: true, Reason: ReasonRunEnd}
	case KindError:
		return Verdict{Terminate: true, Reason: ReasonError}
	case KindLog:
		if sentinelPattern.MatchString(sanitize.StripANSI(ev.Content)) {
			return Verdict{Terminate: true, Reason: ReasonFinishedChain}
		}
	}
	return Verdict{}
}
