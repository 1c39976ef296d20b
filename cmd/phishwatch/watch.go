package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/secdrill/phishwatch/internal/relay"
	"github.com/secdrill/phishwatch/internal/stream"
	"github.com/secdrill/phishwatch/internal/telemetry"
	"github.com/secdrill/phishwatch/internal/transcript"
	"github.com/secdrill/phishwatch/internal/watch"
)

// Run implements the watch command.
func (c *WatchCmd) Run(env *appEnv) error {
	// The dashboard owns the terminal; logs go to a file or nowhere.
	logPath := c.LogFile
	if logPath == "" {
		logPath = "-"
	}
	logger, err := newLogger(logPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, env.cfg.Telemetry, version)
	if err != nil {
		logger.Warn("telemetry disabled", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	runID := c.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	sinks, cleanup, err := buildSinks(env, logger, runID, sinkParams{
		record:   c.Record,
		relay:    c.Relay,
		scenario: c.Scenario,
		offender: c.Offender,
		victim:   c.Victim,
	})
	if err != nil {
		cleanup()
		return err
	}
	defer cleanup()

	mgr := stream.NewManager(newTransport(env), logger)
	return watch.Run(ctx, watch.Options{
		Manager: mgr,
		Params: stream.Params{
			RunID:      runID,
			ScenarioID: c.Scenario,
			OffenderID: c.Offender,
			VictimID:   c.Victim,
		},
		Sinks: sinks,
	})
}

func newTransport(env *appEnv) *stream.SSETransport {
	t := stream.NewSSETransport(env.cfg.Backend.BaseURL)
	if token := env.cfg.GetToken(); token != "" {
		t.Header = http.Header{"Authorization": {"Bearer " + token}}
	}
	return t
}

type sinkParams struct {
	record   bool
	relay    bool
	scenario string
	offender string
	victim   string
}

// buildSinks assembles the optional transcript recorder and NATS relay.
// The returned cleanup closes whatever was opened, even on error, and is
// never nil; the recorder's footer reason is the close reason carried by
// the final synthesized control event.
func buildSinks(env *appEnv, logger *zap.Logger, runID string, p sinkParams) ([]watch.Sink, func(), error) {
	var sinks []watch.Sink
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if p.record {
		store, err := transcript.NewFileStore(env.cfg.Transcripts.Dir)
		if err != nil {
			return nil, cleanup, err
		}
		w, err := store.Open(transcript.Header{
			RunID:      runID,
			ScenarioID: p.scenario,
			OffenderID: p.offender,
			VictimID:   p.victim,
		})
		if err != nil {
			return nil, cleanup, err
		}

		closeReason := "interrupted"
		sinks = append(sinks, func(ev stream.Event) {
			if ev.Kind == stream.KindControl && ev.Channel == stream.LocalChannel {
				closeReason = ev.Content
				return
			}
			if err := w.Record(ev); err != nil {
				logger.Warn("transcript write failed", zap.Error(err))
			}
		})
		closers = append(closers, func() {
			if err := w.Close(closeReason); err != nil {
				logger.Warn("transcript close failed", zap.Error(err))
			}
		})
	}

	if p.relay || env.cfg.Relay.Enabled {
		r, err := relay.Connect(env.cfg.Relay.URL, env.cfg.Relay.SubjectPrefix, logger)
		if err != nil {
			return nil, cleanup, err
		}
		sinks = append(sinks, func(ev stream.Event) {
			_ = r.Forward(runID, ev)
		})
		closers = append(closers, r.Close)
	}

	return sinks, cleanup, nil
}
