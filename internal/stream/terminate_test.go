package stream

import "testing"

func TestShouldTerminate(t *testing.T) {
	tests := []struct {
		name   string
		ev     Event
		want   bool
		reason string
	}{
		{
			name:   "explicit run end",
			ev:     Event{Kind: KindTerminalSignal, Channel: "run_end"},
			want:   true,
			reason: ReasonRunEnd,
		},
		{
			name:   "explicit error",
			ev:     Event{Kind: KindError, Channel: "error", Content: "boom"},
			want:   true,
			reason: ReasonError,
		},
		{
			name:   "sentinel in log text",
			ev:     Event{Kind: KindLog, Channel: "log", Content: "> Finished chain."},
			want:   true,
			reason: ReasonFinishedChain,
		},
		{
			name:   "sentinel with ansi escapes",
			ev:     Event{Kind: KindLog, Channel: "terminal", Content: "\x1b[31mFinished chain\x1b[0m"},
			want:   true,
			reason: ReasonFinishedChain,
		},
		{
			name:   "sentinel mixed case",
			ev:     Event{Kind: KindLog, Channel: DefaultChannel, Content: "fInIsHeD cHaIn"},
			want:   true,
			reason: ReasonFinishedChain,
		},
		{
			name: "partial word does not match",
			ev:   Event{Kind: KindLog, Channel: "log", Content: "refinished chain"},
		},
		{
			name: "plural does not match",
			ev:   Event{Kind: KindLog, Channel: "log", Content: "finished chains pending"},
		},
		{
			name: "sentinel in non-log kind ignored",
			ev:   Event{Kind: KindUnclassified, Channel: "mystery", Content: "Finished chain"},
		},
		{
			name: "ordinary log",
			ev:   Event{Kind: KindLog, Channel: "log", Content: "entering chain step 3"},
		},
		{
			name: "control keepalive",
			ev:   Event{Kind: KindControl, Channel: "heartbeat"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := shouldTerminate(tt.ev)
			if v.Terminate != tt.want {
				t.Fatalf("terminate = %v, want %v", v.Terminate, tt.want)
			}
			if tt.want && v.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", v.Reason, tt.reason)
			}
		})
	}
}
